package exchange

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gorilla/websocket"

	"github.com/diegopy/order-aggregator/internal/book"
)

// bitstampSubscribe is the envelope Bitstamp's websocket API expects to
// join a channel: {"event": "bts:subscribe", "data": {"channel":
// "order_book_<symbol>"}}.
type bitstampSubscribe struct {
	Event string `json:"event"`
	Data  struct {
		Channel string `json:"channel"`
	} `json:"data"`
}

// bitstampEnvelope wraps every frame Bitstamp sends after subscribing;
// only "data" events carry a depth snapshot, everything else (subscription
// acks, heartbeats) is ignored.
type bitstampEnvelope struct {
	Event string       `json:"event"`
	Data  depthMessage `json:"data"`
}

// Bitstamp streams a full order book snapshot on every update, pushed to
// a per-symbol channel that must be joined explicitly after connecting:
// connect, send a single subscribe envelope naming order_book_<symbol>,
// then treat every "data"-tagged frame as a fresh snapshot and ignore
// everything else.
type Bitstamp struct {
	cfg    exchangeConfig
	symbol string
}

// NewBitstamp builds a Bitstamp producer from its exchange configuration
// and the aggregator's trading symbol.
func NewBitstamp(cfg exchangeConfig, symbol string) *Bitstamp {
	return &Bitstamp{cfg: cfg, symbol: symbol}
}

func (b *Bitstamp) Run(ctx context.Context, out chan<- book.ExchangeOrders) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	conn, err := dial(ctx, b.cfg.URL)
	if err != nil {
		return err
	}
	defer conn.Close()

	sub := bitstampSubscribe{Event: "bts:subscribe"}
	sub.Data.Channel = "order_book_" + b.symbol
	if err := conn.WriteJSON(sub); err != nil {
		return fmt.Errorf("exchange: bitstamp: subscribing: %w", err)
	}

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
			return fmt.Errorf("exchange: bitstamp: read: %w", err)
		}
		if kind != websocket.TextMessage {
			return fmt.Errorf("exchange: bitstamp: unsupported frame type %d", kind)
		}

		var env bitstampEnvelope
		if err := json.Unmarshal(payload, &env); err != nil {
			return fmt.Errorf("exchange: bitstamp: parsing %s: %w", payload, err)
		}
		if env.Event != "data" {
			continue
		}

		orders, err := normalize("bitstamp", env.Data, b.cfg.Depth, b.cfg.Sorted)
		if err != nil {
			return err
		}

		if !sendOrDone(ctx, out, orders) {
			return nil
		}
	}
}
