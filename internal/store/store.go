package store

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/punchamoorthee/ledgercore/internal/domain"
)

// CreateAccountParams are the caller-supplied fields for a new account.
// Type and Currency fall back to CHECKING / USD when empty.
type CreateAccountParams struct {
	OwnerID  uuid.UUID
	Name     string
	Type     domain.AccountType
	Currency string
}

func (p CreateAccountParams) withDefaults() CreateAccountParams {
	if p.Type == "" {
		p.Type = domain.AccountTypeChecking
	}
	if p.Currency == "" {
		p.Currency = "USD"
	}
	p.Currency = strings.ToUpper(p.Currency)
	return p
}

// Store is the durable boundary shared by the account store and the
// transaction log. Reads run autocommit; all balance mutation flows
// through a UnitOfWork opened with Begin.
type Store interface {
	CreateAccount(ctx context.Context, params CreateAccountParams) (*domain.Account, error)
	GetAccount(ctx context.Context, id uuid.UUID) (*domain.Account, error)

	GetTransaction(ctx context.Context, id uuid.UUID) (*domain.Transaction, error)
	ListByAccount(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]domain.Transaction, error)
	ListRecent(ctx context.Context, limit int) ([]domain.Transaction, error)

	// AppendFailed records a FAILED attempt outside any unit of work.
	// Used only when failed-attempt recording is enabled.
	AppendFailed(ctx context.Context, txn *domain.Transaction) error

	Begin(ctx context.Context) (UnitOfWork, error)
}

// UnitOfWork is one atomic read-mutate-append scope. Either Commit
// makes every staged write visible at once, or Rollback discards all
// of them; no intermediate state is observable from outside.
//
// Rollback after a successful Commit is a no-op, so it is safe (and
// expected) to defer Rollback on every path.
type UnitOfWork interface {
	// AccountForUpdate reads the latest committed account state and
	// locks the row for the remainder of the unit of work. Callers
	// lock multiple accounts in ascending id order.
	AccountForUpdate(ctx context.Context, id uuid.UUID) (*domain.Account, error)

	// AdjustBalance applies delta to the account's balance, guarded by
	// the balance the caller read (expected): a mismatch aborts with
	// domain.ErrContention.
	AdjustBalance(ctx context.Context, id uuid.UUID, delta, expected decimal.Decimal) error

	// AppendTransaction stages an immutable transaction record. A
	// duplicate id fails with domain.ErrDuplicateTransaction.
	AppendTransaction(ctx context.Context, txn *domain.Transaction) error

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// LockOrder returns the two ids in the fixed global lock order
// (ascending by byte value). Every transfer locks accounts in this
// order regardless of which side is the debit, so two reciprocal
// transfers can never deadlock each other.
func LockOrder(a, b uuid.UUID) (uuid.UUID, uuid.UUID) {
	for i := range a {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return a, b
			}
			return b, a
		}
	}
	return a, b
}
