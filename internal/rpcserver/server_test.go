package rpcserver

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/diegopy/order-aggregator/internal/book"
	"github.com/diegopy/order-aggregator/internal/broadcast"
)

func startTestServer(t *testing.T, slot *broadcast.Slot, done <-chan struct{}) (addr string, stop func()) {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	s := grpc.NewServer(grpc.ForceServerCodec(Codec()))
	RegisterOrderbookAggregatorServer(s, NewServer(slot, done))

	go s.Serve(lis)

	return lis.Addr().String(), s.Stop
}

func dialTestServer(t *testing.T, addr string) (OrderbookAggregatorClient, func()) {
	t.Helper()
	conn, err := grpc.NewClient(addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.ForceCodec(Codec())),
	)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return NewOrderbookAggregatorClient(conn), func() { conn.Close() }
}

func TestBookSummary_StreamsPublishedSnapshots(t *testing.T) {
	slot := broadcast.NewSlot()
	done := make(chan struct{})
	addr, stop := startTestServer(t, slot, done)
	defer stop()

	client, closeConn := dialTestServer(t, addr)
	defer closeConn()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	stream, err := client.BookSummary(ctx, &Empty{})
	if err != nil {
		t.Fatalf("BookSummary: %v", err)
	}

	slot.Publish(book.Summary{
		Bids:   []book.Level{{Price: 10, Amount: 1, Exchange: "binance"}},
		Asks:   []book.Level{{Price: 11, Amount: 1, Exchange: "binance"}},
		Spread: 1,
	})

	// A subscriber that raced the publish may see the initial empty
	// snapshot first; skip past it to the published one.
	for {
		summary, err := stream.Recv()
		if err != nil {
			t.Fatalf("Recv: %v", err)
		}
		if len(summary.Bids) == 0 {
			continue
		}
		if summary.Bids[0].Price != 10 {
			t.Fatalf("got %+v, want a single bid at price 10", summary)
		}
		if summary.Spread != 1 {
			t.Fatalf("got spread %v, want 1", summary.Spread)
		}
		return
	}
}

func TestBookSummary_EndsStreamOnSlotClose(t *testing.T) {
	slot := broadcast.NewSlot()
	done := make(chan struct{})
	addr, stop := startTestServer(t, slot, done)
	defer stop()

	client, closeConn := dialTestServer(t, addr)
	defer closeConn()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	stream, err := client.BookSummary(ctx, &Empty{})
	if err != nil {
		t.Fatalf("BookSummary: %v", err)
	}

	slot.Publish(book.Summary{Spread: 2})
	slot.Close()

	// The stream must deliver the last write and then end; any initial
	// empty snapshot that slipped in first is fine.
	var last *Summary
	for {
		summary, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Recv: %v", err)
		}
		last = summary
	}
	if last == nil || last.Spread != 2 {
		t.Fatalf("expected the final snapshot before EOF to have spread 2, got %+v", last)
	}
}

func TestBookSummary_EndsStreamOnShutdownSignal(t *testing.T) {
	slot := broadcast.NewSlot()
	done := make(chan struct{})
	addr, stop := startTestServer(t, slot, done)
	defer stop()

	client, closeConn := dialTestServer(t, addr)
	defer closeConn()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	stream, err := client.BookSummary(ctx, &Empty{})
	if err != nil {
		t.Fatalf("BookSummary: %v", err)
	}

	close(done)

	for {
		_, err := stream.Recv()
		if err == io.EOF {
			return
		}
		if err != nil {
			t.Fatalf("expected io.EOF after shutdown signal, got %v", err)
		}
	}
}
