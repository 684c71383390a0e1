package api

import (
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter wires the full route table for the service.
func NewRouter(h *Handler) *mux.Router {
	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.Handler())
	r.HandleFunc("/health", h.Health).Methods("GET")

	apiV1 := r.PathPrefix("/api/v1").Subrouter()
	apiV1.HandleFunc("/accounts", h.CreateAccount).Methods("POST")
	apiV1.HandleFunc("/accounts/{id}", h.GetAccount).Methods("GET")
	apiV1.HandleFunc("/accounts/{id}/transactions", h.GetAccountTransactions).Methods("GET")
	apiV1.HandleFunc("/transfers", h.CreateTransfer).Methods("POST")
	apiV1.HandleFunc("/transfers", h.ListRecentTransfers).Methods("GET")
	apiV1.HandleFunc("/transfers/{id}", h.GetTransfer).Methods("GET")

	return r
}
