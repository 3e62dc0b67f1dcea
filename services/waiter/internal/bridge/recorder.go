package bridge

import (
	"context"
	"sync"
)

// Recorder keeps payloads in memory instead of printing them. PrintFunc,
// when set, decides the outcome of each call.
type Recorder struct {
	PrintFunc func(ctx context.Context, payload string) (Result, error)

	mu       sync.Mutex
	payloads []string
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Print(ctx context.Context, payload string) (Result, error) {
	r.mu.Lock()
	r.payloads = append(r.payloads, payload)
	r.mu.Unlock()

	if r.PrintFunc != nil {
		return r.PrintFunc(ctx, payload)
	}
	return Result{OK: true}, nil
}

func (r *Recorder) Payloads() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.payloads...)
}

func (r *Recorder) Name() string {
	return "memory"
}
