package rpcserver

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

// jsonCodec implements encoding.Codec (grpc's wire-format abstraction)
// over plain JSON instead of protobuf, since the messages here are plain
// structs rather than generated protobuf types.
type jsonCodec struct{}

func (jsonCodec) Name() string { return "json" }

func (jsonCodec) Marshal(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}

// Codec returns the wire codec BookSummary is served and consumed with.
// Callers pass it to grpc.ForceServerCodec on the server and grpc.ForceCodec
// as a default call option on the client.
func Codec() encoding.Codec { return jsonCodec{} }
