// Package aggregator implements the merge stage of the pipeline: it reads
// normalized ExchangeOrders off the ingress channel, keeps the latest
// snapshot per exchange (the exchange table), and republishes a freshly
// merged Summary to the broadcast slot after every update.
//
// The exchange table is single-owner state: it is only ever read and
// written from the goroutine running Run, so it needs no lock of its own,
// the same shape as a single-threaded matching core fed by one channel.
package aggregator

import (
	"context"

	"github.com/diegopy/order-aggregator/internal/book"
	"github.com/diegopy/order-aggregator/internal/broadcast"
)

// Aggregator owns the exchange table and recomputes + republishes the
// merged Summary on every update. It must only ever be driven by Run from
// a single goroutine; that is the entire thread-safety story.
type Aggregator struct {
	maxLevels int
	table     map[book.ExchangeID]book.ExchangeOrders
	slot      *broadcast.Slot
}

// New creates an Aggregator that publishes merged summaries of at most
// maxLevels per side to slot.
func New(maxLevels int, slot *broadcast.Slot) *Aggregator {
	return &Aggregator{
		maxLevels: maxLevels,
		table:     make(map[book.ExchangeID]book.ExchangeOrders),
		slot:      slot,
	}
}

// Run consumes from ingress until it is closed or ctx is cancelled,
// updating the Exchange Table and publishing a Summary after every
// message. No attempt is made to batch or rate-limit updates; every input
// message produces exactly one output snapshot.
//
// Run returns nil on a clean shutdown (ingress closed, ctx cancelled, or
// the broadcast slot closed under it): downstream closure and cancellation
// are not errors for this component.
func (a *Aggregator) Run(ctx context.Context, ingress <-chan book.ExchangeOrders) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case m, ok := <-ingress:
			if !ok {
				return nil
			}
			if !a.apply(m) {
				// Slot closed: nothing can observe future summaries.
				return nil
			}
		}
	}
}

// apply performs one update cycle: overwrite the exchange's entry,
// recompute the merged Summary, and publish it. It reports false if the
// publish was dropped because the slot is closed.
func (a *Aggregator) apply(m book.ExchangeOrders) bool {
	a.table[m.Exchange] = m
	return a.slot.Publish(a.Summary())
}

// Summary recomputes the merged Summary from the current exchange table.
// It is a pure function of the table: calling it twice without an
// intervening apply returns bit-identical results, because MergeTopN
// never mutates its inputs and the comparator is deterministic.
func (a *Aggregator) Summary() book.Summary {
	bidSides := make([][]book.Level, 0, len(a.table))
	askSides := make([][]book.Level, 0, len(a.table))
	for _, orders := range a.table {
		if len(orders.Bids) > 0 {
			bidSides = append(bidSides, orders.Bids)
		}
		if len(orders.Asks) > 0 {
			askSides = append(askSides, orders.Asks)
		}
	}

	bids := book.MergeTopN(bidSides, a.maxLevels, book.DescendingByPrice)
	asks := book.MergeTopN(askSides, a.maxLevels, book.AscendingByPrice)

	return book.Summary{
		Bids:   bids,
		Asks:   asks,
		Spread: book.Spread(bids, asks),
	}
}
