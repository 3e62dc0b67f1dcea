// Package orderstream describes the server-streaming gRPC endpoint the order
// service exposes for order change notifications. Messages travel as
// structpb.Struct so no generated stubs are needed on either side.
package orderstream

import (
	"encoding/json"
	"fmt"

	"github.com/froggyflex/hotelma/pkg/event"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	ServiceName = "hotelma.order.v1.OrderEvents"
	StreamName  = "Stream"
	// Method is the full method name clients open a stream against.
	Method = "/" + ServiceName + "/" + StreamName
)

// Server is implemented by the order service stream server.
type Server interface {
	Stream(req *structpb.Struct, stream grpc.ServerStream) error
}

// StreamDesc is shared by the server registration and by clients calling
// grpc.ClientConn.NewStream.
var StreamDesc = grpc.StreamDesc{
	StreamName:    StreamName,
	Handler:       streamHandler,
	ServerStreams: true,
}

// ServiceDesc registers a Server on a grpc.Server.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*Server)(nil),
	Methods:     []grpc.MethodDesc{},
	Streams:     []grpc.StreamDesc{StreamDesc},
	Metadata:    "hotelma/order/v1/events",
}

func streamHandler(srv interface{}, stream grpc.ServerStream) error {
	req := new(structpb.Struct)
	if err := stream.RecvMsg(req); err != nil {
		return err
	}
	return srv.(Server).Stream(req, stream)
}

// Filter narrows a subscription to one table. An empty TableID receives all events.
type Filter struct {
	TableID string `json:"table_id,omitempty"`
}

func EncodeFilter(f Filter) (*structpb.Struct, error) {
	return toStruct(f)
}

func DecodeFilter(s *structpb.Struct) (Filter, error) {
	var f Filter
	err := fromStruct(s, &f)
	return f, err
}

func EncodeEvent(evt event.OrderEvent) (*structpb.Struct, error) {
	return toStruct(evt)
}

func DecodeEvent(s *structpb.Struct) (event.OrderEvent, error) {
	var evt event.OrderEvent
	err := fromStruct(s, &evt)
	return evt, err
}

func toStruct(v interface{}) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("cannot marshal stream message: %w", err)
	}
	s := &structpb.Struct{}
	if err := protojson.Unmarshal(raw, s); err != nil {
		return nil, fmt.Errorf("cannot build stream message: %w", err)
	}
	return s, nil
}

func fromStruct(s *structpb.Struct, dest interface{}) error {
	if s == nil {
		return fmt.Errorf("nil stream message")
	}
	raw, err := protojson.Marshal(s)
	if err != nil {
		return fmt.Errorf("cannot read stream message: %w", err)
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("cannot decode stream message: %w", err)
	}
	return nil
}
