package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/punchamoorthee/ledgercore/internal/domain"
	"github.com/punchamoorthee/ledgercore/internal/store"
)

const (
	// DefaultHistoryLimit caps account history pages when the caller
	// does not pick a page size.
	DefaultHistoryLimit = 50

	// DefaultRecentLimit is the default size of the recent-activity feed.
	DefaultRecentLimit = 10

	maxPageLimit = 500
)

// QueryService is the read-only side of the ledger. It never opens a
// unit of work: reads observe committed state and do not block
// in-flight transfers.
type QueryService struct {
	store store.Store
}

func NewQueryService(s store.Store) *QueryService {
	return &QueryService{store: s}
}

// AccountBalance returns the account with its latest committed balance.
func (q *QueryService) AccountBalance(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	return q.store.GetAccount(ctx, id)
}

// AccountTransactions lists transactions touching the account on
// either side, newest first.
func (q *QueryService) AccountTransactions(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]domain.Transaction, error) {
	limit = clampLimit(limit, DefaultHistoryLimit)
	if offset < 0 {
		offset = 0
	}
	return q.store.ListByAccount(ctx, accountID, limit, offset)
}

// RecentTransactions lists the latest committed transactions across
// all accounts, newest first.
func (q *QueryService) RecentTransactions(ctx context.Context, limit int) ([]domain.Transaction, error) {
	return q.store.ListRecent(ctx, clampLimit(limit, DefaultRecentLimit))
}

// Transaction fetches a single record by id.
func (q *QueryService) Transaction(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	return q.store.GetTransaction(ctx, id)
}

func clampLimit(limit, fallback int) int {
	if limit <= 0 {
		return fallback
	}
	if limit > maxPageLimit {
		return maxPageLimit
	}
	return limit
}
