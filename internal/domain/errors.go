package domain

import "errors"

// Failure taxonomy for the transfer engine. Every value is recoverable:
// the caller fixes the input (invalid amount, same account, not found,
// insufficient funds) or retries (contention, timeout).
var (
	ErrInvalidAmount        = errors.New("amount must be positive")
	ErrSameAccount          = errors.New("debit and credit accounts must differ")
	ErrAccountNotFound      = errors.New("account not found")
	ErrInsufficientFunds    = errors.New("insufficient funds")
	ErrContention           = errors.New("transfer aborted due to contention")
	ErrTimeout              = errors.New("transfer timed out")
	ErrDuplicateTransaction = errors.New("duplicate transaction id")

	// ErrTransactionNotFound is a read-path error, not part of the
	// engine's failure set.
	ErrTransactionNotFound = errors.New("transaction not found")
)

// Retryable reports whether the error is transient and worth retrying
// with the same input.
func Retryable(err error) bool {
	return errors.Is(err, ErrContention) || errors.Is(err, ErrTimeout)
}
