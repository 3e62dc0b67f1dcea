package waiter

import (
	"errors"

	"github.com/froggyflex/hotelma/services/waiter/internal/bridge"
	"github.com/froggyflex/hotelma/services/waiter/internal/draft"
	"github.com/froggyflex/hotelma/services/waiter/internal/orderapi"
)

var (
	ErrNoTable        = errors.New("no table selected")
	ErrUnknownTable   = errors.New("unknown table")
	ErrUnknownProduct = errors.New("unknown product")
	ErrEmptyDraft     = errors.New("draft is empty")
	ErrNoOrder        = errors.New("table has no active order")
	ErrNothingToPrint = errors.New("no items pending print")
)

const (
	CodeBridgeUnavailable = bridge.CodeBridgeUnavailable
	CodePrintInProgress   = bridge.CodePrintInProgress
	CodePrintFailed       = bridge.CodePrintFailed
	CodeNetwork           = "NETWORK_ERROR"
	CodeConflict          = "CONFLICT"
	CodeNotFound          = "NOT_FOUND"
	CodeInvalid           = "INVALID"
	CodeInternal          = "INTERNAL"
)

// Code classifies err into the codes shown to the waiter.
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, orderapi.ErrConflict):
		return CodeConflict
	case errors.Is(err, orderapi.ErrNetwork):
		return CodeNetwork
	case errors.Is(err, bridge.ErrBridgeUnavailable),
		errors.Is(err, bridge.ErrPrintInProgress),
		errors.Is(err, bridge.ErrPrintFailed):
		return bridge.Code(err)
	case errors.Is(err, orderapi.ErrNotFound), errors.Is(err, ErrNoOrder),
		errors.Is(err, draft.ErrItemNotFound), errors.Is(err, ErrUnknownTable),
		errors.Is(err, ErrUnknownProduct):
		return CodeNotFound
	case errors.Is(err, ErrNoTable), errors.Is(err, ErrEmptyDraft),
		errors.Is(err, ErrNothingToPrint), errors.Is(err, orderapi.ErrInvalid),
		errors.Is(err, draft.ErrNoPending):
		return CodeInvalid
	default:
		return CodeInternal
	}
}
