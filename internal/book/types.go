// Package book defines the data model shared by every stage of the
// aggregation pipeline: the per-exchange snapshot coming off the wire,
// the merged top-of-book summary published to subscribers, and the price
// level that both are built from.
//
// Design decisions:
//
//  1. Prices and amounts are float64 rather than fixed-point cents: this
//     service never matches or settles anything, it only orders and
//     merges numbers it is handed. A finite, non-NaN float64 gives the
//     total ordering this pipeline needs without a fixed-point/decimal
//     dependency the exchanges themselves don't use on the wire.
//  2. Levels are immutable once constructed: NewLevel validates finiteness
//     once, at the boundary, so every downstream comparison can assume a
//     total order and never needs to re-check for NaN/Inf.
package book

import (
	"fmt"
	"math"
)

// ExchangeID names a depth feed producer, e.g. "binance" or "bitstamp".
type ExchangeID string

// Level is one price/amount quote contributed by a single exchange.
//
// Total ordering is by Price first; Amount and Exchange are deterministic
// but semantically irrelevant tie-breakers. Levels from the same exchange
// at the same price are never coalesced; each stays a distinct entry.
type Level struct {
	Price    float64
	Amount   float64
	Exchange ExchangeID
}

// NewLevel validates price and amount and returns a Level, or an error if
// either is NaN or infinite. This is the only place non-finite numbers are
// rejected; every other component may assume the invariant already holds.
func NewLevel(price, amount float64, exchange ExchangeID) (Level, error) {
	if !isFinite(price) {
		return Level{}, fmt.Errorf("book: price %v is not finite", price)
	}
	if !isFinite(amount) || amount < 0 {
		return Level{}, fmt.Errorf("book: amount %v is not a finite non-negative number", amount)
	}
	return Level{Price: price, Amount: amount, Exchange: exchange}, nil
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// Less reports whether l sorts strictly before o under ascending price
// order (the natural order for asks). Ties are broken by amount, then by
// exchange name, so that the ordering is total and deterministic: the
// published Summary never depends on map iteration order or heap internals.
func (l Level) Less(o Level) bool {
	if l.Price != o.Price {
		return l.Price < o.Price
	}
	if l.Amount != o.Amount {
		return l.Amount < o.Amount
	}
	return l.Exchange < o.Exchange
}

// ExchangeOrders is the normalized snapshot a producer delivers for one
// exchange: bids sorted descending by price, asks sorted ascending, both
// trimmed to at most the producer's configured depth, and every level's
// Exchange field equal to the outer Exchange.
type ExchangeOrders struct {
	Exchange ExchangeID
	Bids     []Level // descending price
	Asks     []Level // ascending price
}

// Summary is the published, cross-exchange aggregate: the merged top-N
// bids and asks and the resulting spread. Once placed on the broadcast
// slot it is treated as shared-immutable; nothing mutates a Summary after
// publication.
type Summary struct {
	Bids   []Level // descending price, len <= maxLevels
	Asks   []Level // ascending price, len <= maxLevels
	Spread float64
}

// Spread computes asks[0].Price - bids[0].Price, or 0 if either side is
// empty. The result is reported as-is, including negative (crossed book)
// values; callers must never clamp it to zero.
func Spread(bids, asks []Level) float64 {
	if len(bids) == 0 || len(asks) == 0 {
		return 0
	}
	return asks[0].Price - bids[0].Price
}
