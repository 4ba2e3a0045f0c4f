package exchange

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/diegopy/order-aggregator/internal/book"
)

// rawLevel is one [price, quantity] string pair as it appears on the wire.
type rawLevel [2]string

// depthMessage is the shape of an inbound JSON depth snapshot, as decoded
// from either exchange's payload. binance.go decodes its payload directly
// into this; bitstamp.go unwraps its own envelope first. Extra fields in
// the source JSON are ignored by encoding/json.
type depthMessage struct {
	Bids []rawLevel `json:"bids"`
	Asks []rawLevel `json:"asks"`
}

// normalize applies the producer's normalization rules to one inbound
// snapshot: parse each [price, quantity] pair as finite non-NaN numbers
// (a protocol violation otherwise), trim to depth, sort if the source
// isn't already guaranteed sorted, and attach exchange to every level.
func normalize(exchange book.ExchangeID, msg depthMessage, depth int, sorted bool) (book.ExchangeOrders, error) {
	bids, err := normalizeSide(exchange, msg.Bids, depth)
	if err != nil {
		return book.ExchangeOrders{}, fmt.Errorf("exchange %s: bids: %w", exchange, err)
	}
	asks, err := normalizeSide(exchange, msg.Asks, depth)
	if err != nil {
		return book.ExchangeOrders{}, fmt.Errorf("exchange %s: asks: %w", exchange, err)
	}

	if !sorted {
		sort.Slice(bids, func(i, j int) bool { return bids[i].Price > bids[j].Price })
		sort.Slice(asks, func(i, j int) bool { return asks[i].Price < asks[j].Price })
	}

	return book.ExchangeOrders{Exchange: exchange, Bids: bids, Asks: asks}, nil
}

func normalizeSide(exchange book.ExchangeID, raw []rawLevel, depth int) ([]book.Level, error) {
	if len(raw) > depth {
		raw = raw[:depth]
	}
	out := make([]book.Level, 0, len(raw))
	for _, pair := range raw {
		price, err := strconv.ParseFloat(pair[0], 64)
		if err != nil {
			return nil, fmt.Errorf("price %q: %w", pair[0], err)
		}
		amount, err := strconv.ParseFloat(pair[1], 64)
		if err != nil {
			return nil, fmt.Errorf("amount %q: %w", pair[1], err)
		}
		level, err := book.NewLevel(price, amount, exchange)
		if err != nil {
			return nil, err
		}
		out = append(out, level)
	}
	return out, nil
}
