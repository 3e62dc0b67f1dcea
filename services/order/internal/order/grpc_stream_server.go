package order

import (
	"sync"

	"github.com/aquamarinepk/aqm"
	"github.com/froggyflex/hotelma/pkg/event"
	"github.com/froggyflex/hotelma/pkg/orderstream"
	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const subscriberBuffer = 100

// OrderEventStreamServer fans order events out to connected waiter terminals.
type OrderEventStreamServer struct {
	logger aqm.Logger

	mu          sync.RWMutex
	subscribers map[string]*subscriber
}

type subscriber struct {
	filter orderstream.Filter
	events chan event.OrderEvent
}

func NewOrderEventStreamServer(logger aqm.Logger) *OrderEventStreamServer {
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}
	return &OrderEventStreamServer{
		logger:      logger,
		subscribers: make(map[string]*subscriber),
	}
}

// RegisterGRPCService registers this service with the gRPC server.
func (s *OrderEventStreamServer) RegisterGRPCService(server *grpc.Server) {
	server.RegisterService(&orderstream.ServiceDesc, s)
}

// Stream serves one subscriber until its context ends.
func (s *OrderEventStreamServer) Stream(req *structpb.Struct, stream grpc.ServerStream) error {
	ctx := stream.Context()

	filter, err := orderstream.DecodeFilter(req)
	if err != nil {
		return err
	}

	id := uuid.NewString()
	sub := &subscriber{filter: filter, events: make(chan event.OrderEvent, subscriberBuffer)}

	s.mu.Lock()
	s.subscribers[id] = sub
	s.mu.Unlock()

	s.logger.Info("order events subscriber connected", "subscriber_id", id, "table_filter", filter.TableID)

	defer func() {
		s.mu.Lock()
		delete(s.subscribers, id)
		s.mu.Unlock()
		s.logger.Info("order events subscriber disconnected", "subscriber_id", id)
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case evt := <-sub.events:
			msg, err := orderstream.EncodeEvent(evt)
			if err != nil {
				s.logger.Error("cannot encode order event", "error", err, "event_type", evt.EventType)
				continue
			}
			if err := stream.SendMsg(msg); err != nil {
				s.logger.Errorf("failed to send event: %v", err)
				return err
			}
		}
	}
}

// Broadcast never blocks; slow subscribers lose events and catch up on their
// next refetch.
func (s *OrderEventStreamServer) Broadcast(evt event.OrderEvent) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for id, sub := range s.subscribers {
		if sub.filter.TableID != "" && sub.filter.TableID != evt.TableID {
			continue
		}
		select {
		case sub.events <- evt:
		default:
			s.logger.Info("subscriber channel full, dropping event", "subscriber_id", id)
		}
	}
}

// Subscribers reports the number of connected streams.
func (s *OrderEventStreamServer) Subscribers() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subscribers)
}
