package aggregator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/diegopy/order-aggregator/internal/book"
	"github.com/diegopy/order-aggregator/internal/broadcast"
)

func mustLevel(t *testing.T, price, amount float64, exchange string) book.Level {
	t.Helper()
	l, err := book.NewLevel(price, amount, book.ExchangeID(exchange))
	require.NoError(t, err)
	return l
}

func TestAggregator_PublishesOneSummaryPerMessage(t *testing.T) {
	slot := broadcast.NewSlot()
	a := New(5, slot)
	cursor := slot.NewCursor()
	_, _ = cursor.Wait() // drain the initial empty value

	a.apply(book.ExchangeOrders{
		Exchange: "binance",
		Bids:     []book.Level{mustLevel(t, 10, 1, "binance")},
		Asks:     []book.Level{mustLevel(t, 11, 1, "binance")},
	})

	v, ok := cursor.Wait()
	require.True(t, ok)
	require.Equal(t, float64(10), v.Bids[0].Price)
	require.Equal(t, float64(11), v.Asks[0].Price)
	require.Equal(t, float64(1), v.Spread)
}

// A second snapshot from the same exchange fully replaces the first,
// with no mingling between the two.
func TestAggregator_FeedReplacementHasNoMingling(t *testing.T) {
	slot := broadcast.NewSlot()
	a := New(5, slot)

	a.apply(book.ExchangeOrders{
		Exchange: "binance",
		Bids:     []book.Level{mustLevel(t, 10, 1, "binance"), mustLevel(t, 9, 1, "binance")},
		Asks:     []book.Level{mustLevel(t, 11, 1, "binance")},
	})
	a.apply(book.ExchangeOrders{
		Exchange: "binance",
		Bids:     []book.Level{mustLevel(t, 20, 1, "binance")},
		Asks:     []book.Level{mustLevel(t, 21, 1, "binance"), mustLevel(t, 22, 1, "binance")},
	})

	s := a.Summary()
	require.Equal(t, []book.Level{mustLevel(t, 20, 1, "binance")}, s.Bids)
	require.Equal(t, []book.Level{
		mustLevel(t, 21, 1, "binance"),
		mustLevel(t, 22, 1, "binance"),
	}, s.Asks)
}

// Round-trip / idempotence: resubmitting the same snapshot twice produces
// two identical Summary values.
func TestAggregator_IdempotentResubmission(t *testing.T) {
	slot := broadcast.NewSlot()
	a := New(5, slot)

	m := book.ExchangeOrders{
		Exchange: "bitstamp",
		Bids:     []book.Level{mustLevel(t, 5, 1, "bitstamp")},
		Asks:     []book.Level{mustLevel(t, 6, 1, "bitstamp")},
	}
	a.apply(m)
	first := a.Summary()
	a.apply(m)
	second := a.Summary()

	require.Equal(t, first, second)
}

func TestAggregator_SummaryIsPureFunctionOfTable(t *testing.T) {
	slot := broadcast.NewSlot()
	a := New(5, slot)
	a.apply(book.ExchangeOrders{
		Exchange: "binance",
		Bids:     []book.Level{mustLevel(t, 10, 1, "binance")},
		Asks:     []book.Level{mustLevel(t, 11, 1, "binance")},
	})

	first := a.Summary()
	second := a.Summary()
	require.Equal(t, first, second)
}

func TestAggregator_MergesAcrossMultipleExchanges(t *testing.T) {
	slot := broadcast.NewSlot()
	a := New(2, slot)

	a.apply(book.ExchangeOrders{
		Exchange: "a",
		Bids:     []book.Level{mustLevel(t, 10, 1, "a")},
		Asks:     []book.Level{mustLevel(t, 15, 1, "a")},
	})
	a.apply(book.ExchangeOrders{
		Exchange: "b",
		Bids:     []book.Level{mustLevel(t, 12, 1, "b")},
		Asks:     []book.Level{mustLevel(t, 13, 1, "b")},
	})

	s := a.Summary()
	require.Len(t, s.Bids, 2)
	require.Equal(t, float64(12), s.Bids[0].Price)
	require.Equal(t, float64(10), s.Bids[1].Price)
	require.Len(t, s.Asks, 2)
	require.Equal(t, float64(13), s.Asks[0].Price)
	require.Equal(t, float64(15), s.Asks[1].Price)
	// Best ask (13, exchange b) minus best bid (12, exchange b).
	require.Equal(t, float64(1), s.Spread)
}

func TestAggregator_ProducerWithNoMessageContributesNothing(t *testing.T) {
	slot := broadcast.NewSlot()
	a := New(5, slot)
	s := a.Summary()
	require.Empty(t, s.Bids)
	require.Empty(t, s.Asks)
	require.Equal(t, float64(0), s.Spread)
}

func TestAggregator_RunExitsCleanlyWhenIngressCloses(t *testing.T) {
	slot := broadcast.NewSlot()
	a := New(5, slot)
	ingress := make(chan book.ExchangeOrders)
	close(ingress)

	err := a.Run(context.Background(), ingress)
	require.NoError(t, err)
}

func TestAggregator_RunExitsCleanlyOnCancellation(t *testing.T) {
	slot := broadcast.NewSlot()
	a := New(5, slot)
	ingress := make(chan book.ExchangeOrders)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- a.Run(ctx, ingress) }()
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}

func TestAggregator_RunPublishesEachMessageInOrder(t *testing.T) {
	slot := broadcast.NewSlot()
	a := New(5, slot)
	ingress := make(chan book.ExchangeOrders, 2)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() { _ = a.Run(ctx, ingress) }()

	cursor := slot.NewCursor()
	_, _ = cursor.Wait() // initial empty value

	ingress <- book.ExchangeOrders{
		Exchange: "a",
		Bids:     []book.Level{mustLevel(t, 1, 1, "a")},
	}
	v, ok := cursor.Wait()
	require.True(t, ok)
	require.Equal(t, float64(1), v.Bids[0].Price)

	ingress <- book.ExchangeOrders{
		Exchange: "a",
		Bids:     []book.Level{mustLevel(t, 2, 1, "a")},
	}
	v, ok = cursor.Wait()
	require.True(t, ok)
	require.Equal(t, float64(2), v.Bids[0].Price)
}
