package rpcserver

import (
	"context"

	"google.golang.org/grpc"
)

// OrderbookAggregatorServer is the interface BookSummary's handler dispatches
// to, matching what protoc-gen-go-grpc would emit for proto/orderbook.proto.
type OrderbookAggregatorServer interface {
	BookSummary(*Empty, OrderbookAggregator_BookSummaryServer) error
}

// OrderbookAggregator_BookSummaryServer is the per-call server-side stream.
type OrderbookAggregator_BookSummaryServer interface {
	Send(*Summary) error
	grpc.ServerStream
}

type orderbookAggregatorBookSummaryServer struct {
	grpc.ServerStream
}

func (x *orderbookAggregatorBookSummaryServer) Send(m *Summary) error {
	return x.ServerStream.SendMsg(m)
}

func bookSummaryHandler(srv interface{}, stream grpc.ServerStream) error {
	m := new(Empty)
	if err := stream.RecvMsg(m); err != nil {
		return err
	}
	return srv.(OrderbookAggregatorServer).BookSummary(m, &orderbookAggregatorBookSummaryServer{stream})
}

// ServiceDesc describes the OrderbookAggregator service to grpc.Server,
// in the same shape protoc-gen-go-grpc generates for a service with a
// single server-streaming method and no unary methods.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: "orderbook.OrderbookAggregator",
	HandlerType: (*OrderbookAggregatorServer)(nil),
	Methods:     []grpc.MethodDesc{},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "BookSummary",
			Handler:       bookSummaryHandler,
			ServerStreams: true,
		},
	},
	Metadata: "proto/orderbook.proto",
}

// RegisterOrderbookAggregatorServer registers srv with s under the service
// descriptor above.
func RegisterOrderbookAggregatorServer(s grpc.ServiceRegistrar, srv OrderbookAggregatorServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// OrderbookAggregatorClient is the client-side stub for the service.
type OrderbookAggregatorClient interface {
	BookSummary(ctx context.Context, in *Empty, opts ...grpc.CallOption) (OrderbookAggregator_BookSummaryClient, error)
}

type orderbookAggregatorClient struct {
	cc grpc.ClientConnInterface
}

// NewOrderbookAggregatorClient wraps an established connection as a typed client.
func NewOrderbookAggregatorClient(cc grpc.ClientConnInterface) OrderbookAggregatorClient {
	return &orderbookAggregatorClient{cc}
}

func (c *orderbookAggregatorClient) BookSummary(ctx context.Context, in *Empty, opts ...grpc.CallOption) (OrderbookAggregator_BookSummaryClient, error) {
	stream, err := c.cc.NewStream(ctx, &ServiceDesc.Streams[0], "/orderbook.OrderbookAggregator/BookSummary", opts...)
	if err != nil {
		return nil, err
	}
	x := &orderbookAggregatorBookSummaryClient{stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}

// OrderbookAggregator_BookSummaryClient is the per-call client-side stream.
type OrderbookAggregator_BookSummaryClient interface {
	Recv() (*Summary, error)
	grpc.ClientStream
}

type orderbookAggregatorBookSummaryClient struct {
	grpc.ClientStream
}

func (x *orderbookAggregatorBookSummaryClient) Recv() (*Summary, error) {
	m := new(Summary)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}
