// Command aggregator-client is a thin demo consumer of the aggregator's
// BookSummary stream: it carries no aggregation logic of its own and
// exists only to make the service demonstrable end-to-end.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/diegopy/order-aggregator/internal/rpcserver"
)

func main() {
	addr := flag.String("addr", "[::1]:50051", "aggregator server address")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	conn, err := grpc.NewClient(*addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.ForceCodec(rpcserver.Codec())),
	)
	if err != nil {
		log.Fatalf("aggregator-client: dialing %s: %v", *addr, err)
	}
	defer conn.Close()

	client := rpcserver.NewOrderbookAggregatorClient(conn)
	stream, err := client.BookSummary(ctx, &rpcserver.Empty{})
	if err != nil {
		log.Fatalf("aggregator-client: opening stream: %v", err)
	}

	for {
		summary, err := stream.Recv()
		if err == io.EOF {
			log.Println("aggregator-client: stream closed by server")
			return
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Fatalf("aggregator-client: receiving: %v", err)
		}
		printSummary(summary)
	}
}

func printSummary(s *rpcserver.Summary) {
	fmt.Printf("spread=%.8f\n", s.Spread)
	for i, l := range s.Bids {
		fmt.Printf("  bid[%d] %s %.8f @ %.8f\n", i, l.Exchange, l.Price, l.Amount)
	}
	for i, l := range s.Asks {
		fmt.Printf("  ask[%d] %s %.8f @ %.8f\n", i, l.Exchange, l.Price, l.Amount)
	}
	os.Stdout.Sync()
}
