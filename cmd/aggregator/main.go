// Command aggregator runs the order-book aggregation service: it connects
// to a set of exchange depth feeds, merges them into one cross-exchange
// top-of-book view, and serves that view over gRPC as a stream of Summary
// snapshots. See proto/orderbook.proto for the wire contract.
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/diegopy/order-aggregator/internal/aggregator"
	"github.com/diegopy/order-aggregator/internal/book"
	"github.com/diegopy/order-aggregator/internal/broadcast"
	"github.com/diegopy/order-aggregator/internal/config"
	"github.com/diegopy/order-aggregator/internal/exchange"
	"github.com/diegopy/order-aggregator/internal/rpcserver"
	"github.com/diegopy/order-aggregator/internal/supervisor"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML configuration file")
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "aggregator: building logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(*configPath, logger); err != nil {
		logger.Error("aggregator exiting with error", zap.Error(err))
		os.Exit(1)
	}
}

func run(configPath string, logger *zap.Logger) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ingress := make(chan book.ExchangeOrders, cfg.ChannelSize)
	slot := broadcast.NewSlot()
	agg := aggregator.New(cfg.MaxAggregatedLevels, slot)

	done := make(chan struct{})
	sup := supervisor.New(logger)

	for _, ex := range cfg.Exchanges {
		ex := ex
		producer, err := buildProducer(ex, cfg.Symbol)
		if err != nil {
			return fmt.Errorf("configuring exchange %q: %w", ex.Name, err)
		}
		sup.Supervise(ex.Name, supervisor.BackoffConfig{
			Retries: cfg.Backoff.Retries,
			Min:     cfg.Backoff.Min.Duration(),
			Max:     cfg.Backoff.Max.Duration(),
			Jitter:  cfg.Backoff.Min.Duration(),
		}, func(ctx context.Context) error {
			return producer.Run(ctx, ingress)
		})
	}

	sup.Once("aggregator", func(ctx context.Context) error {
		defer slot.Close()
		return agg.Run(ctx, ingress)
	})

	lis, err := net.Listen("tcp", fmt.Sprintf("[::1]:%d", cfg.Server.Port))
	if err != nil {
		return fmt.Errorf("binding server.port %d: %w", cfg.Server.Port, err)
	}
	grpcServer := grpc.NewServer(grpc.ForceServerCodec(rpcserver.Codec()))
	rpcserver.RegisterOrderbookAggregatorServer(grpcServer, rpcserver.NewServer(slot, done))

	sup.Once("rpcserver", func(ctx context.Context) error {
		errCh := make(chan error, 1)
		go func() { errCh <- grpcServer.Serve(lis) }()
		select {
		case <-ctx.Done():
			stopped := make(chan struct{})
			go func() {
				grpcServer.GracefulStop()
				close(stopped)
			}()
			select {
			case <-stopped:
			case <-time.After(5 * time.Second):
				grpcServer.Stop()
			}
			return nil
		case err := <-errCh:
			return err
		}
	})

	logger.Info("aggregator starting",
		zap.String("symbol", cfg.Symbol),
		zap.Int("port", cfg.Server.Port),
		zap.Int("exchanges", len(cfg.Exchanges)),
	)

	outcomes, runErr := sup.Run(ctx)
	close(done)

	for _, o := range outcomes {
		if o.Err != nil {
			logger.Warn("task ended with error", zap.String("task", o.Task), zap.Error(o.Err))
		}
	}
	if runErr != nil {
		if name, ok := supervisor.TaskNameOf(runErr); ok {
			logger.Error("supervised task died, shutting down", zap.String("task", name))
		}
	}
	return runErr
}

func buildProducer(ex config.Exchange, symbol string) (exchange.Producer, error) {
	switch ex.Name {
	case "binance":
		return exchange.NewBinance(ex, symbol), nil
	case "bitstamp":
		return exchange.NewBitstamp(ex, symbol), nil
	default:
		return nil, fmt.Errorf("unknown exchange %q (expected \"binance\" or \"bitstamp\")", ex.Name)
	}
}
