package billing

import "errors"

// Error kinds surfaced by the billing package. Callers classify with
// errors.Is; messages carry the detail.
var (
	ErrValidation     = errors.New("validation failed")
	ErrSignature      = errors.New("webhook signature invalid")
	ErrNotFound       = errors.New("not found")
	ErrConfiguration  = errors.New("billing misconfigured")
	ErrUpstream       = errors.New("payment provider request failed")
	ErrDuplicate      = errors.New("already recorded")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrLedgerConflict = errors.New("ledger limit verification failed")
)
