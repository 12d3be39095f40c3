package domain

import "errors"

// Sentinel errors for domain-level error discrimination.
// Services wrap these so handlers can map to HTTP status codes without leaking infrastructure details.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrBadRequest   = errors.New("bad request")
)

// Verification failure taxonomy. All of these are recoverable by the user
// (resend or retry) and must never take the process down.
var (
	ErrMalformedCode  = errors.New("malformed code")
	ErrCodeMismatch   = errors.New("code mismatch")
	ErrCodeExpired    = errors.New("code expired")
	ErrNoPendingCode  = errors.New("no pending code")
	ErrDeliveryFailed = errors.New("delivery failed")
	ErrResendCooldown = errors.New("resend cooldown active")
)
