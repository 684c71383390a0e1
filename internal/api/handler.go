package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shopspring/decimal"

	"github.com/punchamoorthee/ledgercore/internal/domain"
	"github.com/punchamoorthee/ledgercore/internal/service"
	"github.com/punchamoorthee/ledgercore/internal/store"
)

// Metrics
var (
	httpReqTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "endpoint", "status"})

	httpLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ledger_http_request_duration_seconds",
		Help:    "Request latency",
		Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1},
	}, []string{"method", "endpoint"})
)

type Handler struct {
	store     store.Store
	transfers *service.TransferService
	queries   *service.QueryService
}

func NewHandler(s store.Store, transfers *service.TransferService, queries *service.QueryService) *Handler {
	return &Handler{store: s, transfers: transfers, queries: queries}
}

type createAccountRequest struct {
	OwnerID  uuid.UUID `json:"ownerId"`
	Name     string    `json:"name"`
	Type     string    `json:"type"`
	Currency string    `json:"currency"`
}

type createTransferRequest struct {
	TransactionID   uuid.UUID       `json:"transactionId,omitempty"`
	DebitAccountID  uuid.UUID       `json:"debitAccountId"`
	CreditAccountID uuid.UUID       `json:"creditAccountId"`
	Amount          decimal.Decimal `json:"amount"`
	Description     string          `json:"description"`
}

func (h *Handler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid JSON", "POST", "/accounts")
		return
	}
	if req.OwnerID == uuid.Nil {
		h.respondError(w, http.StatusBadRequest, "ownerId is required", "POST", "/accounts")
		return
	}
	if req.Name == "" {
		h.respondError(w, http.StatusBadRequest, "name is required", "POST", "/accounts")
		return
	}
	if req.Currency != "" && len(req.Currency) != 3 {
		h.respondError(w, http.StatusBadRequest, "currency must be a 3-letter code", "POST", "/accounts")
		return
	}
	switch domain.AccountType(req.Type) {
	case "", domain.AccountTypeChecking, domain.AccountTypeSavings:
	default:
		h.respondError(w, http.StatusBadRequest, "type must be CHECKING or SAVINGS", "POST", "/accounts")
		return
	}

	account, err := h.store.CreateAccount(r.Context(), store.CreateAccountParams{
		OwnerID:  req.OwnerID,
		Name:     req.Name,
		Type:     domain.AccountType(req.Type),
		Currency: req.Currency,
	})
	if err != nil {
		h.respondError(w, http.StatusInternalServerError, "System error creating account", "POST", "/accounts")
		return
	}
	h.respondJSON(w, http.StatusCreated, account, "POST", "/accounts")
}

func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid account id", "GET", "/accounts/{id}")
		return
	}

	account, err := h.queries.AccountBalance(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			h.respondError(w, http.StatusNotFound, "Account not found", "GET", "/accounts/{id}")
			return
		}
		h.respondError(w, http.StatusInternalServerError, "Internal Server Error", "GET", "/accounts/{id}")
		return
	}
	h.respondJSON(w, http.StatusOK, account, "GET", "/accounts/{id}")
}

func (h *Handler) GetAccountTransactions(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid account id", "GET", "/accounts/{id}/transactions")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	txns, err := h.queries.AccountTransactions(r.Context(), id, limit, offset)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			h.respondError(w, http.StatusNotFound, "Account not found", "GET", "/accounts/{id}/transactions")
			return
		}
		h.respondError(w, http.StatusInternalServerError, "Internal Server Error", "GET", "/accounts/{id}/transactions")
		return
	}
	if txns == nil {
		txns = []domain.Transaction{}
	}
	h.respondJSON(w, http.StatusOK, txns, "GET", "/accounts/{id}/transactions")
}

func (h *Handler) CreateTransfer(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(httpLatency.WithLabelValues("POST", "/transfers"))
	defer timer.ObserveDuration()

	var req createTransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid JSON", "POST", "/transfers")
		return
	}
	if req.DebitAccountID == uuid.Nil || req.CreditAccountID == uuid.Nil {
		h.respondError(w, http.StatusBadRequest, "debitAccountId and creditAccountId are required", "POST", "/transfers")
		return
	}
	if req.Description == "" {
		h.respondError(w, http.StatusBadRequest, "description is required", "POST", "/transfers")
		return
	}

	txn, err := h.transfers.Execute(r.Context(), domain.TransferRequest{
		ID:              req.TransactionID,
		DebitAccountID:  req.DebitAccountID,
		CreditAccountID: req.CreditAccountID,
		Amount:          req.Amount,
		Description:     req.Description,
	})
	if err != nil {
		h.respondTransferError(w, err)
		return
	}

	w.Header().Set("Location", fmt.Sprintf("/api/v1/transfers/%s", txn.ID))
	h.respondJSON(w, http.StatusCreated, txn, "POST", "/transfers")
}

func (h *Handler) respondTransferError(w http.ResponseWriter, err error) {
	if domain.Retryable(err) {
		w.Header().Set("Retry-After", "1")
	}
	switch {
	case errors.Is(err, domain.ErrInvalidAmount):
		h.respondError(w, http.StatusUnprocessableEntity, "Amount must be positive", "POST", "/transfers")
	case errors.Is(err, domain.ErrSameAccount):
		h.respondError(w, http.StatusUnprocessableEntity, "Cannot transfer to self", "POST", "/transfers")
	case errors.Is(err, domain.ErrInsufficientFunds):
		h.respondError(w, http.StatusUnprocessableEntity, "Insufficient funds", "POST", "/transfers")
	case errors.Is(err, domain.ErrAccountNotFound):
		h.respondError(w, http.StatusNotFound, "Account not found", "POST", "/transfers")
	case errors.Is(err, domain.ErrDuplicateTransaction):
		h.respondError(w, http.StatusConflict, "Duplicate transaction id", "POST", "/transfers")
	case errors.Is(err, domain.ErrContention):
		h.respondError(w, http.StatusConflict, "Transfer aborted due to contention, retry", "POST", "/transfers")
	case errors.Is(err, domain.ErrTimeout):
		h.respondError(w, http.StatusGatewayTimeout, "Transfer timed out, retry", "POST", "/transfers")
	default:
		h.respondError(w, http.StatusInternalServerError, "Internal Server Error", "POST", "/transfers")
	}
}

func (h *Handler) GetTransfer(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid transaction id", "GET", "/transfers/{id}")
		return
	}

	txn, err := h.queries.Transaction(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrTransactionNotFound) {
			h.respondError(w, http.StatusNotFound, "Transaction not found", "GET", "/transfers/{id}")
			return
		}
		h.respondError(w, http.StatusInternalServerError, "Internal Server Error", "GET", "/transfers/{id}")
		return
	}
	h.respondJSON(w, http.StatusOK, txn, "GET", "/transfers/{id}")
}

func (h *Handler) ListRecentTransfers(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	txns, err := h.queries.RecentTransactions(r.Context(), limit)
	if err != nil {
		h.respondError(w, http.StatusInternalServerError, "Internal Server Error", "GET", "/transfers")
		return
	}
	if txns == nil {
		txns = []domain.Transaction{}
	}
	h.respondJSON(w, http.StatusOK, txns, "GET", "/transfers")
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"}, "GET", "/health")
}

// Helpers
func (h *Handler) respondJSON(w http.ResponseWriter, code int, payload interface{}, method, endpoint string) {
	httpReqTotal.WithLabelValues(method, endpoint, strconv.Itoa(code)).Inc()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(payload)
}

func (h *Handler) respondError(w http.ResponseWriter, code int, msg, method, endpoint string) {
	h.respondJSON(w, code, map[string]string{"error": msg}, method, endpoint)
}
