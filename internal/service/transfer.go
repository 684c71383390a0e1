package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/punchamoorthee/ledgercore/internal/domain"
	"github.com/punchamoorthee/ledgercore/internal/store"
)

var (
	transfersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_transfers_total",
		Help: "Transfer attempts by terminal outcome",
	}, []string{"outcome"})

	transferRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledger_transfer_retries_total",
		Help: "Internal retries after transient commit conflicts",
	})

	transferDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ledger_transfer_duration_seconds",
		Help:    "Latency of Execute including retries",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
	})
)

// TransferOptions tune the engine. Zero values select the defaults.
type TransferOptions struct {
	// MaxRetries bounds internal re-attempts after transient commit
	// conflicts. The caller sees a single Execute call either way.
	MaxRetries int

	// Timeout is applied per Execute when the caller's context has no
	// deadline of its own.
	Timeout time.Duration

	// RecordFailed, when set, appends insufficient-funds failures to
	// the transaction log with status FAILED. Other failure classes
	// reference missing accounts or carry non-positive amounts, which
	// the log itself rejects; contention and timeout aborts are never
	// recorded since the caller may retry them.
	RecordFailed bool
}

const (
	defaultMaxRetries = 3
	defaultTimeout    = 5 * time.Second
)

// TransferService atomically validates and applies double-entry
// transfers between two accounts.
type TransferService struct {
	store        store.Store
	logger       *slog.Logger
	maxRetries   int
	timeout      time.Duration
	recordFailed bool
}

func NewTransferService(s store.Store, logger *slog.Logger, opts TransferOptions) *TransferService {
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = defaultMaxRetries
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TransferService{
		store:        s,
		logger:       logger,
		maxRetries:   opts.MaxRetries,
		timeout:      opts.Timeout,
		recordFailed: opts.RecordFailed,
	}
}

// Execute moves req.Amount from the debit account to the credit
// account as one atomic unit of work, and returns the committed
// transaction record with denormalized account summaries. Every error
// path leaves persisted state untouched.
func (s *TransferService) Execute(ctx context.Context, req domain.TransferRequest) (*domain.Transaction, error) {
	timer := prometheus.NewTimer(transferDuration)
	defer timer.ObserveDuration()

	txn, err := s.execute(ctx, req)
	transfersTotal.WithLabelValues(outcomeLabel(err)).Inc()
	return txn, err
}

func (s *TransferService) execute(ctx context.Context, req domain.TransferRequest) (*domain.Transaction, error) {
	if !req.Amount.IsPositive() {
		return nil, domain.ErrInvalidAmount
	}
	if req.DebitAccountID == req.CreditAccountID {
		return nil, domain.ErrSameAccount
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	for attempt := 0; ; attempt++ {
		txn, err := s.attempt(ctx, req)
		if err == nil {
			return txn, nil
		}

		if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, domain.ErrTimeout
		}

		if errors.Is(err, domain.ErrContention) {
			if attempt+1 >= s.maxRetries {
				s.logger.WarnContext(ctx, "transfer contention retries exhausted",
					"debit_account", req.DebitAccountID,
					"credit_account", req.CreditAccountID,
					"attempts", attempt+1)
				return nil, domain.ErrContention
			}
			transferRetries.Inc()
			continue
		}

		if errors.Is(err, domain.ErrInsufficientFunds) {
			return nil, s.fail(ctx, req, err)
		}
		return nil, err
	}
}

// attempt runs one full pass of the algorithm: open the unit of work,
// lock and read both accounts in the fixed global order, validate,
// apply both balance writes, append the record, commit.
func (s *TransferService) attempt(ctx context.Context, req domain.TransferRequest) (*domain.Transaction, error) {
	uow, err := s.store.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("unit of work begin failed: %w", err)
	}
	defer uow.Rollback(ctx)

	first, second := store.LockOrder(req.DebitAccountID, req.CreditAccountID)
	firstAcc, err := uow.AccountForUpdate(ctx, first)
	if err != nil {
		return nil, err
	}
	secondAcc, err := uow.AccountForUpdate(ctx, second)
	if err != nil {
		return nil, err
	}

	debit, credit := firstAcc, secondAcc
	if debit.ID != req.DebitAccountID {
		debit, credit = secondAcc, firstAcc
	}

	if debit.Balance.LessThan(req.Amount) {
		return nil, domain.ErrInsufficientFunds
	}

	if err := uow.AdjustBalance(ctx, debit.ID, req.Amount.Neg(), debit.Balance); err != nil {
		return nil, err
	}
	if err := uow.AdjustBalance(ctx, credit.ID, req.Amount, credit.Balance); err != nil {
		return nil, err
	}

	txn := s.buildRecord(req, debit, credit, domain.StatusCompleted)
	if err := uow.AppendTransaction(ctx, txn); err != nil {
		return nil, err
	}

	if err := uow.Commit(ctx); err != nil {
		return nil, err
	}
	return txn, nil
}

func (s *TransferService) buildRecord(req domain.TransferRequest, debit, credit *domain.Account, status domain.TransactionStatus) *domain.Transaction {
	id := req.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	txn := &domain.Transaction{
		ID:              id,
		DebitAccountID:  req.DebitAccountID,
		CreditAccountID: req.CreditAccountID,
		Amount:          req.Amount,
		Description:     req.Description,
		Type:            domain.TransactionTypeTransfer,
		Status:          status,
		CreatedAt:       time.Now().UTC(),
	}
	if debit != nil {
		txn.DebitAccount = &domain.AccountRef{ID: debit.ID, Name: debit.Name}
	}
	if credit != nil {
		txn.CreditAccount = &domain.AccountRef{ID: credit.ID, Name: credit.Name}
	}
	return txn
}

// fail records a business-rule failure when configured to, then
// passes the error through unchanged. The FAILED record gets its own
// id: the caller-supplied id stays free for a corrected retry.
func (s *TransferService) fail(ctx context.Context, req domain.TransferRequest, cause error) error {
	if !s.recordFailed {
		return cause
	}

	failed := s.buildRecord(req, nil, nil, domain.StatusFailed)
	failed.ID = uuid.New()
	if failed.Description == "" {
		failed.Description = cause.Error()
	}

	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()
	if err := s.store.AppendFailed(recordCtx, failed); err != nil {
		s.logger.ErrorContext(ctx, "failed-transfer record append failed", "error", err)
	}
	return cause
}

func outcomeLabel(err error) string {
	switch {
	case err == nil:
		return "completed"
	case errors.Is(err, domain.ErrInvalidAmount):
		return "invalid_amount"
	case errors.Is(err, domain.ErrSameAccount):
		return "same_account"
	case errors.Is(err, domain.ErrAccountNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, domain.ErrContention):
		return "contention"
	case errors.Is(err, domain.ErrTimeout):
		return "timeout"
	case errors.Is(err, domain.ErrDuplicateTransaction):
		return "conflict"
	default:
		return "error"
	}
}
