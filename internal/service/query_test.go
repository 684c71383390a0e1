package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/punchamoorthee/ledgercore/internal/domain"
	"github.com/punchamoorthee/ledgercore/internal/store"
)

func appendMany(t *testing.T, s *store.MemoryStore, debit, credit uuid.UUID, count int) []uuid.UUID {
	t.Helper()
	ctx := context.Background()
	ids := make([]uuid.UUID, 0, count)
	for i := 0; i < count; i++ {
		txn := domain.Transaction{
			ID:              uuid.New(),
			DebitAccountID:  debit,
			CreditAccountID: credit,
			Amount:          decimal.NewFromInt(1),
			Description:     fmt.Sprintf("txn-%d", i),
			Type:            domain.TransactionTypeTransfer,
			Status:          domain.StatusCompleted,
			CreatedAt:       time.Now().UTC(),
		}
		uow, err := s.Begin(ctx)
		require.NoError(t, err)
		require.NoError(t, uow.AppendTransaction(ctx, &txn))
		require.NoError(t, uow.Commit(ctx))
		ids = append(ids, txn.ID)
	}
	return ids
}

func TestQueryService_AccountTransactions_Defaults(t *testing.T) {
	s := store.NewMemoryStore()
	q := NewQueryService(s)
	a := seedAccount(t, s, "a", "100")
	b := seedAccount(t, s, "b", "100")

	ids := appendMany(t, s, a.ID, b.ID, 55)

	// Zero limit falls back to the default page size.
	page, err := q.AccountTransactions(context.Background(), a.ID, 0, 0)
	require.NoError(t, err)
	require.Len(t, page, DefaultHistoryLimit)
	// Newest first: the last appended id leads.
	assert.Equal(t, ids[len(ids)-1], page[0].ID)

	// Offset walks backwards through history.
	page, err = q.AccountTransactions(context.Background(), a.ID, 10, 50)
	require.NoError(t, err)
	require.Len(t, page, 5)
	assert.Equal(t, ids[4], page[0].ID)
	assert.Equal(t, ids[0], page[4].ID)

	// Negative offset is treated as zero.
	page, err = q.AccountTransactions(context.Background(), a.ID, 1, -3)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, ids[len(ids)-1], page[0].ID)

	_, err = q.AccountTransactions(context.Background(), uuid.New(), 10, 0)
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
}

func TestQueryService_RecentTransactions_DefaultLimit(t *testing.T) {
	s := store.NewMemoryStore()
	q := NewQueryService(s)
	a := seedAccount(t, s, "a", "100")
	b := seedAccount(t, s, "b", "100")

	ids := appendMany(t, s, a.ID, b.ID, 15)

	recent, err := q.RecentTransactions(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, recent, DefaultRecentLimit)
	assert.Equal(t, ids[len(ids)-1], recent[0].ID)

	recent, err = q.RecentTransactions(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, recent, 3)
}

func TestQueryService_AccountBalance(t *testing.T) {
	s := store.NewMemoryStore()
	q := NewQueryService(s)
	a := seedAccount(t, s, "a", "42.50")

	account, err := q.AccountBalance(context.Background(), a.ID)
	require.NoError(t, err)
	assert.True(t, account.Balance.Equal(decimal.RequireFromString("42.50")))

	_, err = q.AccountBalance(context.Background(), uuid.New())
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
}

func TestQueryService_Transaction(t *testing.T) {
	s := store.NewMemoryStore()
	q := NewQueryService(s)
	a := seedAccount(t, s, "a", "100")
	b := seedAccount(t, s, "b", "100")

	ids := appendMany(t, s, a.ID, b.ID, 1)

	txn, err := q.Transaction(context.Background(), ids[0])
	require.NoError(t, err)
	assert.Equal(t, ids[0], txn.ID)
	require.NotNil(t, txn.DebitAccount)
	assert.Equal(t, "a", txn.DebitAccount.Name)

	_, err = q.Transaction(context.Background(), uuid.New())
	assert.ErrorIs(t, err, domain.ErrTransactionNotFound)
}
