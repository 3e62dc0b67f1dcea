package feed

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/aquamarinepk/aqm"
	"github.com/froggyflex/hotelma/pkg/orderstream"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	initialBackoff = 1 * time.Second
	maxBackoff     = 30 * time.Second
)

// GRPCClient keeps a stream open to the order service and fans its events
// out to local subscribers. It reconnects with exponential backoff.
type GRPCClient struct {
	*hub

	addr     string
	filter   orderstream.Filter
	dialOpts []grpc.DialOption

	connMu  sync.Mutex
	conn    *grpc.ClientConn
	started bool
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
}

func NewGRPCClient(addr string, logger aqm.Logger, opts ...grpc.DialOption) *GRPCClient {
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}
	if len(opts) == 0 {
		opts = []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &GRPCClient{
		hub:      newHub(logger),
		addr:     addr,
		dialOpts: opts,
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
}

// Start connects in the background and never blocks startup. Calls after the
// first are no-ops.
func (c *GRPCClient) Start(ctx context.Context) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	if c.started {
		return nil
	}
	c.started = true

	c.logger.Info("starting order stream client", "addr", c.addr)
	go c.connectWithRetry()
	return nil
}

func (c *GRPCClient) connectWithRetry() {
	defer close(c.done)
	backoff := initialBackoff

	for {
		if c.ctx.Err() != nil {
			c.logger.Info("order stream client shutdown, stopping connection attempts")
			return
		}

		c.logger.Debug("attempting to connect to order gRPC stream", "addr", c.addr)

		conn, err := grpc.NewClient(c.addr, c.dialOpts...)
		if err != nil {
			c.logger.Error("failed to create gRPC client", "error", err, "retry_in", backoff)
			if !c.wait(backoff) {
				return
			}
			backoff = nextBackoff(backoff)
			continue
		}

		c.connMu.Lock()
		c.conn = conn
		c.connMu.Unlock()

		stream, err := c.open(conn)
		if err != nil {
			c.logger.Error("failed to subscribe to order events", "error", err, "retry_in", backoff)
			conn.Close()
			if !c.wait(backoff) {
				return
			}
			backoff = nextBackoff(backoff)
			continue
		}

		c.logger.Info("connected to order gRPC stream")
		backoff = initialBackoff

		c.receiveEvents(stream)
		conn.Close()
	}
}

func (c *GRPCClient) open(conn *grpc.ClientConn) (grpc.ClientStream, error) {
	stream, err := conn.NewStream(c.ctx, &orderstream.StreamDesc, orderstream.Method)
	if err != nil {
		return nil, err
	}

	req, err := orderstream.EncodeFilter(c.filter)
	if err != nil {
		return nil, err
	}
	if err := stream.SendMsg(req); err != nil {
		return nil, err
	}
	if err := stream.CloseSend(); err != nil {
		return nil, err
	}
	return stream, nil
}

func (c *GRPCClient) receiveEvents(stream grpc.ClientStream) {
	for {
		msg := new(structpb.Struct)
		err := stream.RecvMsg(msg)
		if errors.Is(err, io.EOF) {
			c.logger.Info("order gRPC stream closed (EOF)")
			return
		}
		if err != nil {
			if c.ctx.Err() == nil {
				c.logger.Error("error receiving from order stream", "error", err)
			}
			return
		}

		evt, err := orderstream.DecodeEvent(msg)
		if err != nil {
			c.logger.Error("cannot decode order event", "error", err)
			continue
		}
		c.broadcast(evt)
	}
}

func (c *GRPCClient) wait(d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-c.ctx.Done():
		return false
	}
}

// Stop closes the stream and every subscriber channel.
func (c *GRPCClient) Stop(ctx context.Context) error {
	c.logger.Info("stopping order stream client")

	c.cancel()

	c.connMu.Lock()
	if c.conn != nil {
		c.conn.Close()
	}
	started := c.started
	c.started = true
	c.connMu.Unlock()

	if started {
		select {
		case <-c.done:
		case <-ctx.Done():
		}
	}

	c.closeAll()
	return nil
}

func nextBackoff(d time.Duration) time.Duration {
	d *= 2
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}
