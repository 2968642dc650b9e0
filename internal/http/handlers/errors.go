// Package handlers defines HTTP-layer error codes used across all API endpoints.
//
// Codes are lowercase snake_case and stable: clients branch on them. Ledger
// failures use the code returned by services.ErrorCode; the generic ones below
// cover transport problems the services never see.
//
// Example response:
//
//	{
//	  "request_id": "e1b9be03-4999-4289-9f03-999b042d65d6",
//	  "code": "insufficient_balance",
//	  "message": "insufficient balance"
//	}
package handlers

import "net/http"

const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeUnauthorized     = "unauthorized"
	ErrCodeNotFound         = "not_found"
	ErrCodeInternal         = "internal_error"
	ErrCodeMethodNotAllowed = "method_not_allowed"

	// Ledger codes, as produced by services.ErrorCode.
	ErrCodeInvalidAmount       = "invalid_amount"
	ErrCodeInsufficientBalance = "insufficient_balance"
	ErrCodeBelowMinimum        = "below_minimum"
	ErrCodeAlreadyClaimed      = "already_claimed"
	ErrCodeNothingToClaim      = "nothing_to_claim"
	ErrCodeTransferFailed      = "transfer_failed"
	ErrCodeOverflow            = "overflow"
	ErrCodeInvalidAddress      = "invalid_address"
	ErrCodeCreatorChanged      = "creator_changed"
)

// statusFor maps an error code to its HTTP status.
func statusFor(code string) int {
	switch code {
	case ErrCodeUnauthorized:
		return http.StatusForbidden
	case ErrCodeInsufficientBalance:
		return http.StatusPaymentRequired
	case ErrCodeAlreadyClaimed, ErrCodeNothingToClaim, ErrCodeCreatorChanged:
		return http.StatusConflict
	case ErrCodeTransferFailed:
		return http.StatusBadGateway
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeInvalidAmount, ErrCodeBelowMinimum, ErrCodeOverflow,
		ErrCodeInvalidAddress, ErrCodeBadRequest:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// messageFor returns the client-facing message for err. Internal errors are
// not echoed.
func messageFor(err error, code string) string {
	if code == ErrCodeInternal {
		return "internal server error"
	}
	return err.Error()
}
