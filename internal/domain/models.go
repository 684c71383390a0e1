package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AccountType distinguishes the two supported account kinds.
type AccountType string

const (
	AccountTypeChecking AccountType = "CHECKING"
	AccountTypeSavings  AccountType = "SAVINGS"
)

// TransactionStatus is the terminal state of a transfer attempt.
type TransactionStatus string

const (
	StatusCompleted TransactionStatus = "COMPLETED"
	StatusFailed    TransactionStatus = "FAILED"
)

// TransactionTypeTransfer is the only transaction type in this core.
const TransactionTypeTransfer = "TRANSFER"

// Account holds a single owner's balance in one currency.
// Balance is only ever mutated inside a transfer's unit of work and
// stays non-negative at all observable times.
type Account struct {
	ID        uuid.UUID       `json:"id"`
	OwnerID   uuid.UUID       `json:"ownerId"`
	Name      string          `json:"name"`
	Type      AccountType     `json:"type"`
	Currency  string          `json:"currency"`
	Balance   decimal.Decimal `json:"balance"`
	CreatedAt time.Time       `json:"createdAt"`
}

// AccountRef is the denormalized account summary embedded in transfer
// responses. It is rebuilt from the account store on every read and is
// never a source of truth on its own.
type AccountRef struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// Transaction is the immutable record of one double-entry transfer:
// the debit account decreases by Amount and the credit account
// increases by the same Amount, atomically.
type Transaction struct {
	ID              uuid.UUID         `json:"id"`
	DebitAccountID  uuid.UUID         `json:"debitAccountId"`
	CreditAccountID uuid.UUID         `json:"creditAccountId"`
	Amount          decimal.Decimal   `json:"amount"`
	Description     string            `json:"description"`
	Type            string            `json:"type"`
	Status          TransactionStatus `json:"status"`
	CreatedAt       time.Time         `json:"createdAt"`

	DebitAccount  *AccountRef `json:"debitAccount,omitempty"`
	CreditAccount *AccountRef `json:"creditAccount,omitempty"`
}

// TransferRequest carries the already-validated identifiers and amount
// for one transfer. ID is optional: when the caller pre-generates it,
// a duplicate append is rejected as ErrDuplicateTransaction, which
// gives retrying callers exactly-once semantics.
type TransferRequest struct {
	ID              uuid.UUID
	DebitAccountID  uuid.UUID
	CreditAccountID uuid.UUID
	Amount          decimal.Decimal
	Description     string
}
