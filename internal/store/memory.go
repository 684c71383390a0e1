package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/punchamoorthee/ledgercore/internal/domain"
)

// MemoryStore is an in-memory Store with the same semantics as the
// Postgres one. It backs the test suites and lets the service run
// without a database. Row locks are modelled as 1-buffered channels
// so acquisition can be abandoned when the context expires.
type MemoryStore struct {
	mu       sync.RWMutex
	accounts map[uuid.UUID]*memAccount
	txIndex  map[uuid.UUID]struct{}
	log      []domain.Transaction
}

type memAccount struct {
	lock    chan struct{}
	account domain.Account
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts: make(map[uuid.UUID]*memAccount),
		txIndex:  make(map[uuid.UUID]struct{}),
	}
}

func (s *MemoryStore) CreateAccount(ctx context.Context, params CreateAccountParams) (*domain.Account, error) {
	return s.Seed(ctx, params, decimal.Zero)
}

// Seed creates an account with a starting balance. It is the in-memory
// counterpart of the database seeder and is not part of the Store
// contract: regular account creation always starts at zero.
func (s *MemoryStore) Seed(_ context.Context, params CreateAccountParams, balance decimal.Decimal) (*domain.Account, error) {
	if balance.IsNegative() {
		return nil, domain.ErrInvalidAmount
	}
	params = params.withDefaults()

	account := domain.Account{
		ID:        uuid.New(),
		OwnerID:   params.OwnerID,
		Name:      params.Name,
		Type:      params.Type,
		Currency:  params.Currency,
		Balance:   balance,
		CreatedAt: time.Now().UTC(),
	}

	s.mu.Lock()
	s.accounts[account.ID] = &memAccount{
		lock:    make(chan struct{}, 1),
		account: account,
	}
	s.mu.Unlock()

	return &account, nil
}

func (s *MemoryStore) GetAccount(_ context.Context, id uuid.UUID) (*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ma, ok := s.accounts[id]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	account := ma.account
	return &account, nil
}

func (s *MemoryStore) GetTransaction(_ context.Context, id uuid.UUID) (*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := range s.log {
		if s.log[i].ID == id {
			txn := s.log[i]
			s.attachRefs(&txn)
			return &txn, nil
		}
	}
	return nil, domain.ErrTransactionNotFound
}

func (s *MemoryStore) ListByAccount(_ context.Context, accountID uuid.UUID, limit, offset int) ([]domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.accounts[accountID]; !ok {
		return nil, domain.ErrAccountNotFound
	}

	var txns []domain.Transaction
	skipped := 0
	// Newest first: walk the append-only log backwards.
	for i := len(s.log) - 1; i >= 0 && len(txns) < limit; i-- {
		t := s.log[i]
		if t.DebitAccountID != accountID && t.CreditAccountID != accountID {
			continue
		}
		if skipped < offset {
			skipped++
			continue
		}
		s.attachRefs(&t)
		txns = append(txns, t)
	}
	return txns, nil
}

func (s *MemoryStore) ListRecent(_ context.Context, limit int) ([]domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var txns []domain.Transaction
	for i := len(s.log) - 1; i >= 0 && len(txns) < limit; i-- {
		t := s.log[i]
		s.attachRefs(&t)
		txns = append(txns, t)
	}
	return txns, nil
}

func (s *MemoryStore) AppendFailed(_ context.Context, txn *domain.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, dup := s.txIndex[txn.ID]; dup {
		return domain.ErrDuplicateTransaction
	}
	s.txIndex[txn.ID] = struct{}{}
	s.log = append(s.log, stripRefs(*txn))
	return nil
}

func (s *MemoryStore) Begin(_ context.Context) (UnitOfWork, error) {
	return &memUnitOfWork{
		store:  s,
		staged: make(map[uuid.UUID]*domain.Account),
	}, nil
}

// attachRefs rebuilds the denormalized account summaries from current
// account state. Callers hold at least s.mu.RLock.
func (s *MemoryStore) attachRefs(txn *domain.Transaction) {
	if ma, ok := s.accounts[txn.DebitAccountID]; ok {
		txn.DebitAccount = &domain.AccountRef{ID: ma.account.ID, Name: ma.account.Name}
	}
	if ma, ok := s.accounts[txn.CreditAccountID]; ok {
		txn.CreditAccount = &domain.AccountRef{ID: ma.account.ID, Name: ma.account.Name}
	}
}

func stripRefs(txn domain.Transaction) domain.Transaction {
	txn.DebitAccount = nil
	txn.CreditAccount = nil
	return txn
}

type memUnitOfWork struct {
	store    *MemoryStore
	locked   []*memAccount
	staged   map[uuid.UUID]*domain.Account
	dirty    []uuid.UUID
	appended []domain.Transaction
	done     bool
}

func (u *memUnitOfWork) AccountForUpdate(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	// The select below can win the lock even when ctx.Done() is
	// already closed, so check first.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	u.store.mu.RLock()
	ma, ok := u.store.accounts[id]
	u.store.mu.RUnlock()
	if !ok {
		return nil, domain.ErrAccountNotFound
	}

	select {
	case ma.lock <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	u.locked = append(u.locked, ma)

	// Fresh read after the lock: any transfer that held this account
	// has fully committed or rolled back by now.
	u.store.mu.RLock()
	account := ma.account
	u.store.mu.RUnlock()

	u.staged[id] = &account
	return &account, nil
}

func (u *memUnitOfWork) AdjustBalance(_ context.Context, id uuid.UUID, delta, expected decimal.Decimal) error {
	staged, ok := u.staged[id]
	if !ok {
		return fmt.Errorf("account %s not locked in this unit of work", id)
	}
	if !staged.Balance.Equal(expected) {
		return domain.ErrContention
	}
	next := staged.Balance.Add(delta)
	if next.IsNegative() {
		return domain.ErrInsufficientFunds
	}
	staged.Balance = next
	u.dirty = append(u.dirty, id)
	return nil
}

func (u *memUnitOfWork) AppendTransaction(_ context.Context, txn *domain.Transaction) error {
	u.store.mu.RLock()
	_, dup := u.store.txIndex[txn.ID]
	u.store.mu.RUnlock()
	if !dup {
		for i := range u.appended {
			if u.appended[i].ID == txn.ID {
				dup = true
				break
			}
		}
	}
	if dup {
		return domain.ErrDuplicateTransaction
	}
	u.appended = append(u.appended, stripRefs(*txn))
	return nil
}

func (u *memUnitOfWork) Commit(ctx context.Context) error {
	if u.done {
		return nil
	}
	if err := ctx.Err(); err != nil {
		u.release()
		return err
	}

	u.store.mu.Lock()
	for i := range u.appended {
		if _, dup := u.store.txIndex[u.appended[i].ID]; dup {
			u.store.mu.Unlock()
			u.release()
			return domain.ErrDuplicateTransaction
		}
	}
	for _, id := range u.dirty {
		if ma, ok := u.store.accounts[id]; ok {
			ma.account.Balance = u.staged[id].Balance
		}
	}
	for i := range u.appended {
		u.store.txIndex[u.appended[i].ID] = struct{}{}
		u.store.log = append(u.store.log, u.appended[i])
	}
	u.store.mu.Unlock()

	u.release()
	return nil
}

func (u *memUnitOfWork) Rollback(_ context.Context) error {
	if u.done {
		return nil
	}
	u.release()
	return nil
}

func (u *memUnitOfWork) release() {
	for _, ma := range u.locked {
		<-ma.lock
	}
	u.locked = nil
	u.done = true
}
