// Package services defines the settlement engine: the fungible ledger, the
// daily entitlement tracker, the creator registry, and the message, purchase
// and withdrawal settlements built on them.
//
// This file centralizes the service-level error values so that they can be
// returned consistently and checked by callers with errors.Is. Translation
// into HTTP status codes happens in the handler layer.
package services

import (
	"errors"

	"github.com/tbourn/go-chat-ledger/internal/domain"
	"github.com/tbourn/go-chat-ledger/internal/units"
)

var (
	// ErrUnauthorized is returned when the caller lacks the required role:
	// owner-only operations called by anyone else, or a debit on behalf of a
	// user by an address that is neither the user nor an authorized spender.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInvalidAmount is returned for zero or otherwise unusable quantities.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrInsufficientBalance is returned when a debit exceeds the balance.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrBelowMinimum is returned when a purchase is under MIN_PURCHASE.
	ErrBelowMinimum = errors.New("purchase below minimum")

	// ErrAlreadyClaimed is returned for a second daily claim on the same UTC day.
	ErrAlreadyClaimed = errors.New("daily reward already claimed")

	// ErrNothingToClaim is returned when a withdrawal finds no pending accrual.
	ErrNothingToClaim = errors.New("nothing to claim")

	// ErrTransferFailed wraps a failed native-currency send. The settlement
	// that issued it has been rolled back.
	ErrTransferFailed = errors.New("native transfer failed")

	// ErrSettlementNotFound is returned when a settlement id is unknown.
	ErrSettlementNotFound = errors.New("settlement not found")

	// ErrOverflow is returned when an amount would not fit in 256 bits.
	ErrOverflow = units.ErrOverflow

	// ErrCreatorChanged is returned when the creator of a content id kept
	// changing between resolving it and locking it. The message was not
	// settled and may be retried.
	ErrCreatorChanged = errors.New("chatbot creator changed, retry")

	// ErrInvalidAddress is returned for malformed or zero addresses where a
	// real account is required.
	ErrInvalidAddress = domain.ErrInvalidAddress
)

// ErrorCode returns the stable machine-readable code of err. Unknown errors
// map to "internal_error".
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrInvalidAmount):
		return "invalid_amount"
	case errors.Is(err, ErrInsufficientBalance):
		return "insufficient_balance"
	case errors.Is(err, ErrBelowMinimum):
		return "below_minimum"
	case errors.Is(err, ErrAlreadyClaimed):
		return "already_claimed"
	case errors.Is(err, ErrNothingToClaim):
		return "nothing_to_claim"
	case errors.Is(err, ErrTransferFailed):
		return "transfer_failed"
	case errors.Is(err, ErrOverflow):
		return "overflow"
	case errors.Is(err, ErrInvalidAddress):
		return "invalid_address"
	case errors.Is(err, ErrCreatorChanged):
		return "creator_changed"
	case errors.Is(err, ErrSettlementNotFound):
		return "not_found"
	default:
		return "internal_error"
	}
}
