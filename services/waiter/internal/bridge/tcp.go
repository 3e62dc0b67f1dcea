package bridge

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
)

const (
	DefaultWakePause = 400 * time.Millisecond
	escInit          = "\x1B\x40"
)

// TCP prints raw ESC/POS over a socket, the way network thermal printers
// listen on port 9100.
type TCP struct {
	addr      string
	dialer    net.Dialer
	encoder   *encoding.Encoder
	wake      bool
	wakePause time.Duration
}

type TCPOption func(*TCP)

// WithCodePage transcodes payloads from UTF-8 to the printer code page.
func WithCodePage(cm *charmap.Charmap) TCPOption {
	return func(t *TCP) {
		if cm != nil {
			t.encoder = encoding.ReplaceUnsupported(cm.NewEncoder())
		}
	}
}

// WithWake sends a lone newline and waits pause before the payload, which
// some printers need after idling.
func WithWake(pause time.Duration) TCPOption {
	return func(t *TCP) {
		t.wake = true
		t.wakePause = pause
	}
}

func NewTCP(addr string, opts ...TCPOption) *TCP {
	t := &TCP{
		addr:   addr,
		dialer: net.Dialer{Timeout: 5 * time.Second},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *TCP) Name() string {
	return "tcp"
}

func (t *TCP) Print(ctx context.Context, payload string) (Result, error) {
	conn, err := t.dialer.DialContext(ctx, "tcp", t.addr)
	if err != nil {
		return Result{Code: CodeUnreachable}, fmt.Errorf("cannot reach printer at %s: %w", t.addr, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	if t.wake {
		if _, err := conn.Write([]byte("\n")); err != nil {
			return Result{Code: CodePrintFailed}, fmt.Errorf("cannot wake printer: %w", err)
		}
		if err := sleep(ctx, t.wakePause); err != nil {
			return Result{Code: CodePrintTimeout}, err
		}
	}

	data, err := t.encode(escInit + payload + "\n")
	if err != nil {
		return Result{Code: CodePrintFailed}, err
	}
	if _, err := conn.Write(data); err != nil {
		return Result{Code: CodePrintFailed}, fmt.Errorf("cannot write to printer: %w", err)
	}

	return Result{OK: true}, nil
}

func (t *TCP) encode(s string) ([]byte, error) {
	if t.encoder == nil {
		return []byte(s), nil
	}
	out, err := t.encoder.String(s)
	if err != nil {
		return nil, fmt.Errorf("cannot encode payload: %w", err)
	}
	return []byte(out), nil
}

// CodePage resolves a configured code page name. An empty name means the
// printer takes UTF-8 and nil is returned.
func CodePage(name string) (*charmap.Charmap, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "utf-8", "utf8":
		return nil, nil
	case "cp437", "pc437":
		return charmap.CodePage437, nil
	case "cp850":
		return charmap.CodePage850, nil
	case "cp858":
		return charmap.CodePage858, nil
	case "cp866":
		return charmap.CodePage866, nil
	case "windows-1252", "cp1252":
		return charmap.Windows1252, nil
	case "windows-1253", "cp1253":
		return charmap.Windows1253, nil
	case "iso-8859-7", "greek":
		return charmap.ISO8859_7, nil
	default:
		return nil, fmt.Errorf("unsupported printer code page %q", name)
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
