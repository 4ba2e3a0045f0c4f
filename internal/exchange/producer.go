// Package exchange implements the depth-feed producers: one per exchange,
// each maintaining a websocket session, decoding inbound depth snapshots,
// and delivering normalized book.ExchangeOrders to the ingress channel in
// arrival order.
//
// Each producer dials once, starts a keepalive goroutine, and then loops
// reading and decoding frames until ctx is cancelled or the connection
// fails. The keepalive goroutine tears the connection down when ctx ends,
// which unblocks a read parked in ReadMessage; that is how cancellation
// races the blocking network read.
package exchange

import (
	"context"
	"fmt"
	"time"

	"github.com/gorilla/websocket"

	"github.com/diegopy/order-aggregator/internal/book"
	"github.com/diegopy/order-aggregator/internal/config"
)

// pongWait bounds how long a connection may go without a control frame
// before it is considered dead; pingPeriod must be comfortably shorter.
const (
	pongWait   = 30 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Producer is the contract every exchange-specific feed implements: run
// until ctx is cancelled or a recoverable failure occurs. out is never
// closed by the consumer; its going away is signalled through ctx.
//
// Implementations must:
//   - produce no output before the session is established;
//   - return nil when the downstream consumer is gone; that is a clean
//     exit, not an error;
//   - return a non-nil error for any other termination, so the Supervisor
//     treats it as recoverable and retries with backoff.
type Producer interface {
	Run(ctx context.Context, out chan<- book.ExchangeOrders) error
}

// dial opens a websocket connection to url and installs the keep-alive
// handling a long-lived depth feed needs: control frames are answered with
// the symmetric response. gorilla/websocket's default ping handler already
// replies to a ping with a pong; this only needs to refresh the read
// deadline on each pong so a silently dead connection is detected instead
// of blocking forever.
func dial(ctx context.Context, url string) (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("exchange: dial %s: %w", url, err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	return conn, nil
}

// sendOrDone delivers m to out, blocking under backpressure, and reports
// false without delivering if ctx ends first. The consumer going away is
// signalled through ctx, not through the channel; either way a false
// return is a clean exit, not an error.
func sendOrDone(ctx context.Context, out chan<- book.ExchangeOrders, m book.ExchangeOrders) bool {
	select {
	case <-ctx.Done():
		return false
	case out <- m:
		return true
	}
}

// keepAlive periodically writes a ping control frame so idle connections
// are noticed by the peer and by pongWait on our side. When ctx ends it
// closes conn before returning, unblocking any goroutine parked in
// ReadMessage on the same connection. Callers pass a per-connection
// context so keepAlive does not outlive its connection.
func keepAlive(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			conn.Close()
			return
		case <-ticker.C:
			_ = conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
		}
	}
}

// exchangeConfig narrows config.Exchange to what a producer needs,
// keeping this package's public surface independent of the config
// package's YAML tags.
type exchangeConfig = config.Exchange
