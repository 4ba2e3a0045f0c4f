package rpcserver

import (
	"github.com/diegopy/order-aggregator/internal/book"
	"github.com/diegopy/order-aggregator/internal/broadcast"
)

// Server implements OrderbookAggregatorServer against a broadcast.Slot:
// each accepted call gets its own cursor and streams a Summary every time
// the slot's value changes.
type Server struct {
	slot *broadcast.Slot
	done <-chan struct{}
}

// NewServer builds a Server reading from slot. done is the process-wide
// shutdown signal; when it closes, every in-flight stream ends promptly
// even if the slot itself stays open.
func NewServer(slot *broadcast.Slot, done <-chan struct{}) *Server {
	return &Server{slot: slot, done: done}
}

// BookSummary streams merged Summary snapshots until the peer disconnects,
// the shutdown signal fires, or the slot closes.
func (s *Server) BookSummary(_ *Empty, stream OrderbookAggregator_BookSummaryServer) error {
	cursor := s.slot.NewCursor()
	ctx := stream.Context()

	for {
		type waitResult struct {
			value book.Summary
			ok    bool
		}
		results := make(chan waitResult, 1)
		go func() {
			v, ok := cursor.Wait()
			results <- waitResult{v, ok}
		}()

		select {
		case <-ctx.Done():
			return nil
		case <-s.done:
			return nil
		case r := <-results:
			if !r.ok {
				return nil
			}
			if err := stream.Send(toWireSummary(r.value)); err != nil {
				return err
			}
		}
	}
}

func toWireSummary(s book.Summary) *Summary {
	return &Summary{
		Spread: s.Spread,
		Bids:   toWireLevels(s.Bids),
		Asks:   toWireLevels(s.Asks),
	}
}

func toWireLevels(levels []book.Level) []Level {
	out := make([]Level, len(levels))
	for i, l := range levels {
		out[i] = Level{Price: l.Price, Amount: l.Amount, Exchange: string(l.Exchange)}
	}
	return out
}
