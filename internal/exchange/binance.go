package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/diegopy/order-aggregator/internal/book"
)

// Binance streams a partial depth feed at a fixed update interval: the
// symbol, requested depth, and interval are baked into the stream path,
// which streamURL composes from the configured base URL, e.g.
// wss://stream.binance.com:9443 + ethbtc/20/100ms ->
// wss://stream.binance.com:9443/ws/ethbtc@depth20@100ms.
//
// A single connect, then a read loop that decodes every text frame as a
// fresh snapshot, since Binance's partial-depth stream is always a full
// replacement, never a diff. Binary frames and the peer closing the
// connection are treated as failures the supervisor should retry.
type Binance struct {
	cfg    exchangeConfig
	symbol string
}

// NewBinance builds a Binance producer from its exchange configuration
// and the aggregator's trading symbol.
func NewBinance(cfg exchangeConfig, symbol string) *Binance {
	return &Binance{cfg: cfg, symbol: symbol}
}

// streamURL bakes symbol, depth, and update interval into the
// partial-depth stream path. An unset interval is omitted, leaving the
// feed at Binance's default cadence.
func (b *Binance) streamURL() string {
	u := strings.TrimSuffix(b.cfg.URL, "/")
	u += fmt.Sprintf("/ws/%s@depth%d", b.symbol, b.cfg.Depth)
	if ms := b.cfg.Interval.Duration().Milliseconds(); ms > 0 {
		u += fmt.Sprintf("@%dms", ms)
	}
	return u
}

func (b *Binance) Run(ctx context.Context, out chan<- book.ExchangeOrders) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	conn, err := dial(ctx, b.streamURL())
	if err != nil {
		return err
	}
	defer conn.Close()

	go keepAlive(ctx, conn)

	for {
		if ctx.Err() != nil {
			return nil
		}
		kind, payload, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("exchange: binance: read: %w", err)
		}
		if kind != websocket.TextMessage {
			return fmt.Errorf("exchange: binance: unsupported frame type %d", kind)
		}

		var msg depthMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			return fmt.Errorf("exchange: binance: parsing %s: %w", payload, err)
		}
		orders, err := normalize("binance", msg, b.cfg.Depth, b.cfg.Sorted)
		if err != nil {
			return err
		}

		if !sendOrDone(ctx, out, orders) {
			return nil
		}
	}
}
