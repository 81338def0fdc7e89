package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/membership-ledger/internal/model"
	"github.com/sakif/membership-ledger/internal/service"
)

// TransactionHandler serves /api/transactions and /api/users/{userId}/transactions.
type TransactionHandler struct {
	transactions *service.TransactionService
	logger       *slog.Logger
}

func NewTransactionHandler(transactions *service.TransactionService, logger *slog.Logger) *TransactionHandler {
	return &TransactionHandler{transactions: transactions, logger: logger}
}

func (h *TransactionHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var in service.TransactionInput
	if err := decodeJSON(w, r, &in); err != nil {
		h.logger.Warn("invalid transaction body", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	t, err := h.transactions.Create(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (h *TransactionHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := pageParams(r)
	if err != nil {
		writeError(w, err)
		return
	}

	list, err := h.transactions.List(r.Context(), limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *TransactionHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	t, err := h.transactions.Get(r.Context(), chi.URLParam(r, "transId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *TransactionHandler) HandleListByUser(w http.ResponseWriter, r *http.Request) {
	list, err := h.transactions.ListByUser(r.Context(), chi.URLParam(r, "userId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *TransactionHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var upd model.TransactionUpdate
	if err := decodeJSON(w, r, &upd); err != nil {
		writeError(w, err)
		return
	}

	t, err := h.transactions.Update(r.Context(), chi.URLParam(r, "transId"), upd)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *TransactionHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ack, err := h.transactions.Delete(r.Context(), chi.URLParam(r, "transId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ack)
}
