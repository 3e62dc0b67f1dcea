package bridge

import (
	"context"
	"sync"
	"time"
)

// Guarded rejects a print while another one is still running on the same
// bridge instead of interleaving bytes on the printer.
type Guarded struct {
	next PrinterBridge

	mu   sync.Mutex
	busy bool
}

func NewGuarded(next PrinterBridge) *Guarded {
	return &Guarded{next: next}
}

func (g *Guarded) Print(ctx context.Context, payload string) (Result, error) {
	g.mu.Lock()
	if g.busy {
		g.mu.Unlock()
		return Result{Code: CodePrintInProgress}, ErrPrintInProgress
	}
	g.busy = true
	g.mu.Unlock()

	defer func() {
		g.mu.Lock()
		g.busy = false
		g.mu.Unlock()
	}()

	return g.next.Print(ctx, payload)
}

func (g *Guarded) Busy() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.busy
}

func (g *Guarded) Name() string {
	return NameOf(g.next)
}

// NewDevice wraps a physical printer: the guard sits inside the timeout, so a
// call abandoned at the deadline keeps the printer marked busy until it
// really returns and later prints get ErrPrintInProgress meanwhile.
func NewDevice(next PrinterBridge, timeout time.Duration) PrinterBridge {
	return WithTimeout(NewGuarded(next), timeout)
}

type timeoutBridge struct {
	next    PrinterBridge
	timeout time.Duration
}

// WithTimeout bounds every call to next. A call still running at the
// deadline is abandoned and reported as CodePrintTimeout.
func WithTimeout(next PrinterBridge, timeout time.Duration) PrinterBridge {
	if timeout <= 0 {
		return next
	}
	return &timeoutBridge{next: next, timeout: timeout}
}

type printOutcome struct {
	res Result
	err error
}

func (b *timeoutBridge) Print(ctx context.Context, payload string) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	done := make(chan printOutcome, 1)
	go func() {
		res, err := b.next.Print(ctx, payload)
		done <- printOutcome{res: res, err: err}
	}()

	select {
	case out := <-done:
		return out.res, out.err
	case <-ctx.Done():
		return Result{Code: CodePrintTimeout}, &PrintError{Code: CodePrintTimeout, Err: ctx.Err()}
	}
}

func (b *timeoutBridge) Name() string {
	return NameOf(b.next)
}
