package waiter

import (
	"context"
	"strings"
	"sync"

	"github.com/aquamarinepk/aqm"
	"github.com/froggyflex/hotelma/pkg/event"
	"github.com/froggyflex/hotelma/services/waiter/internal/feed"
)

const (
	DefaultTerminal = "default"
	feedSubscriber  = "waiter-sessions"
)

// Sessions keeps one Session per terminal and routes order events to them.
type Sessions struct {
	orders  OrderAPI
	catalog Catalog
	printer *Printer
	logger  aqm.Logger

	mu       sync.Mutex
	sessions map[string]*Session

	source feed.Source
	cancel context.CancelFunc
	done   chan struct{}
}

func NewSessions(orders OrderAPI, cat Catalog, printer *Printer, source feed.Source, logger aqm.Logger) *Sessions {
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}
	return &Sessions{
		orders:   orders,
		catalog:  cat,
		printer:  printer,
		logger:   logger,
		sessions: map[string]*Session{},
		source:   source,
	}
}

// Get returns the session of a terminal, creating it on first use.
func (m *Sessions) Get(terminal string) *Session {
	terminal = strings.TrimSpace(terminal)
	if terminal == "" {
		terminal = DefaultTerminal
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[terminal]
	if !ok {
		s = NewSession(m.orders, m.catalog, m.printer, m.logger.With("terminal", terminal))
		m.sessions[terminal] = s
	}
	return s
}

func (m *Sessions) all() []*Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	return out
}

// Dispatch hands an order event to every session.
func (m *Sessions) Dispatch(ctx context.Context, evt event.OrderEvent) {
	for _, s := range m.all() {
		s.OnOrderEvent(ctx, evt)
	}
}

// Start consumes the feed until Stop. Without a feed sessions only see
// their own changes and whatever a manual refresh brings.
func (m *Sessions) Start(ctx context.Context) error {
	if m.source == nil {
		m.logger.Info("no order event feed configured")
		return nil
	}

	events := m.source.Subscribe(feedSubscriber)
	runCtx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.done = make(chan struct{})

	go func() {
		defer close(m.done)
		for {
			select {
			case <-runCtx.Done():
				return
			case evt, ok := <-events:
				if !ok {
					return
				}
				m.Dispatch(runCtx, evt)
			}
		}
	}()
	return nil
}

func (m *Sessions) Stop(ctx context.Context) error {
	if m.cancel == nil {
		return nil
	}
	m.cancel()
	m.source.Unsubscribe(feedSubscriber)

	select {
	case <-m.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}
