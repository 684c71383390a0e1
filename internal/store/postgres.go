package store

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/punchamoorthee/ledgercore/internal/domain"
)

//go:embed schema.sql
var schemaSQL string

// PostgresStore is the production Store backed by a pgx pool.
type PostgresStore struct {
	db *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	return &PostgresStore{db: pool}, nil
}

// Migrate applies the schema. Statements are idempotent.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("schema migration failed: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() {
	s.db.Close()
}

func (s *PostgresStore) CreateAccount(ctx context.Context, params CreateAccountParams) (*domain.Account, error) {
	params = params.withDefaults()

	var account domain.Account
	err := s.db.QueryRow(ctx,
		`INSERT INTO accounts (owner_id, name, type, currency)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, owner_id, name, type, currency, balance, created_at`,
		params.OwnerID, params.Name, params.Type, params.Currency,
	).Scan(&account.ID, &account.OwnerID, &account.Name, &account.Type,
		&account.Currency, &account.Balance, &account.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("account insert failed: %w", err)
	}
	return &account, nil
}

func (s *PostgresStore) GetAccount(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	var account domain.Account
	err := s.db.QueryRow(ctx,
		`SELECT id, owner_id, name, type, currency, balance, created_at
		 FROM accounts WHERE id = $1`, id,
	).Scan(&account.ID, &account.OwnerID, &account.Name, &account.Type,
		&account.Currency, &account.Balance, &account.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

const transactionColumns = `t.id, t.debit_account_id, t.credit_account_id, t.amount,
	t.description, t.type, t.status, t.created_at, d.name, c.name`

const transactionJoins = `FROM transactions t
	JOIN accounts d ON d.id = t.debit_account_id
	JOIN accounts c ON c.id = t.credit_account_id`

func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	var txn domain.Transaction
	var debitName, creditName string
	err := row.Scan(&txn.ID, &txn.DebitAccountID, &txn.CreditAccountID, &txn.Amount,
		&txn.Description, &txn.Type, &txn.Status, &txn.CreatedAt, &debitName, &creditName)
	if err != nil {
		return nil, err
	}
	txn.DebitAccount = &domain.AccountRef{ID: txn.DebitAccountID, Name: debitName}
	txn.CreditAccount = &domain.AccountRef{ID: txn.CreditAccountID, Name: creditName}
	return &txn, nil
}

func (s *PostgresStore) GetTransaction(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	txn, err := scanTransaction(s.db.QueryRow(ctx,
		`SELECT `+transactionColumns+` `+transactionJoins+` WHERE t.id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTransactionNotFound
		}
		return nil, err
	}
	return txn, nil
}

func (s *PostgresStore) ListByAccount(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]domain.Transaction, error) {
	var exists bool
	if err := s.db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM accounts WHERE id = $1)`, accountID).Scan(&exists); err != nil {
		return nil, err
	}
	if !exists {
		return nil, domain.ErrAccountNotFound
	}

	rows, err := s.db.Query(ctx,
		`SELECT `+transactionColumns+` `+transactionJoins+`
		 WHERE t.debit_account_id = $1 OR t.credit_account_id = $1
		 ORDER BY t.created_at DESC
		 LIMIT $2 OFFSET $3`,
		accountID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectTransactions(rows)
}

func (s *PostgresStore) ListRecent(ctx context.Context, limit int) ([]domain.Transaction, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+transactionColumns+` `+transactionJoins+`
		 ORDER BY t.created_at DESC
		 LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectTransactions(rows)
}

func collectTransactions(rows pgx.Rows) ([]domain.Transaction, error) {
	var txns []domain.Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txns = append(txns, *txn)
	}
	return txns, rows.Err()
}

func (s *PostgresStore) AppendFailed(ctx context.Context, txn *domain.Transaction) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO transactions (id, debit_account_id, credit_account_id, amount, description, type, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		txn.ID, txn.DebitAccountID, txn.CreditAccountID, txn.Amount,
		txn.Description, txn.Type, txn.Status, txn.CreatedAt)
	return mapPgError(err)
}

func (s *PostgresStore) Begin(ctx context.Context) (UnitOfWork, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return nil, fmt.Errorf("tx begin failed: %w", err)
	}
	return &pgUnitOfWork{tx: tx}, nil
}

type pgUnitOfWork struct {
	tx pgx.Tx
}

func (u *pgUnitOfWork) AccountForUpdate(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	var account domain.Account
	err := u.tx.QueryRow(ctx,
		`SELECT id, owner_id, name, type, currency, balance, created_at
		 FROM accounts WHERE id = $1 FOR UPDATE`, id,
	).Scan(&account.ID, &account.OwnerID, &account.Name, &account.Type,
		&account.Currency, &account.Balance, &account.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, mapPgError(err)
	}
	return &account, nil
}

func (u *pgUnitOfWork) AdjustBalance(ctx context.Context, id uuid.UUID, delta, expected decimal.Decimal) error {
	tag, err := u.tx.Exec(ctx,
		`UPDATE accounts SET balance = balance + $1 WHERE id = $2 AND balance = $3`,
		delta, id, expected)
	if err != nil {
		return mapPgError(err)
	}
	if tag.RowsAffected() == 0 {
		// The row moved under us despite the lock, or the caller's
		// read is stale. Either way the whole attempt must restart.
		return domain.ErrContention
	}
	return nil
}

func (u *pgUnitOfWork) AppendTransaction(ctx context.Context, txn *domain.Transaction) error {
	_, err := u.tx.Exec(ctx,
		`INSERT INTO transactions (id, debit_account_id, credit_account_id, amount, description, type, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		txn.ID, txn.DebitAccountID, txn.CreditAccountID, txn.Amount,
		txn.Description, txn.Type, txn.Status, txn.CreatedAt)
	return mapPgError(err)
}

func (u *pgUnitOfWork) Commit(ctx context.Context) error {
	return mapPgError(u.tx.Commit(ctx))
}

func (u *pgUnitOfWork) Rollback(ctx context.Context) error {
	err := u.tx.Rollback(ctx)
	if err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return err
	}
	return nil
}

// mapPgError translates SQLSTATEs into the domain taxonomy:
// serialization failures and deadlocks become ErrContention (retried
// by the engine), unique violations on the transaction id become
// ErrDuplicateTransaction, and balance CHECK violations surface as
// ErrInsufficientFunds.
func mapPgError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01":
			return domain.ErrContention
		case "23505":
			return domain.ErrDuplicateTransaction
		case "23514":
			return domain.ErrInsufficientFunds
		}
	}
	return err
}
