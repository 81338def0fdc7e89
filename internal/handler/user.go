package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/membership-ledger/internal/model"
	"github.com/sakif/membership-ledger/internal/service"
)

// UserHandler serves /api/users.
type UserHandler struct {
	registrar *service.Registrar
	ledger    *service.RewardLedger
	users     *service.UserService
	logger    *slog.Logger
}

func NewUserHandler(registrar *service.Registrar, ledger *service.RewardLedger, users *service.UserService, logger *slog.Logger) *UserHandler {
	return &UserHandler{
		registrar: registrar,
		ledger:    ledger,
		users:     users,
		logger:    logger,
	}
}

type statusRequest struct {
	Status string `json:"status"`
}

type coinsRequest struct {
	Email string `json:"email"`
	Coins int64  `json:"coins"`
}

// HandleRegister handles POST /api/users.
func (h *UserHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var in service.RegisterInput
	if err := decodeJSON(w, r, &in); err != nil {
		h.logger.Warn("invalid registration body", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	user, err := h.registrar.Register(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

// HandleList handles GET /api/users?limit=&offset=.
func (h *UserHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := pageParams(r)
	if err != nil {
		writeError(w, err)
		return
	}

	users, err := h.users.List(r.Context(), limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (h *UserHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.Get(r.Context(), chi.URLParam(r, "userId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *UserHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var upd model.UserUpdate
	if err := decodeJSON(w, r, &upd); err != nil {
		writeError(w, err)
		return
	}

	user, err := h.users.Update(r.Context(), chi.URLParam(r, "userId"), upd)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// HandleUpdateStatus handles PUT /api/users/{userId}/status and settles the
// referral reward.
func (h *UserHandler) HandleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	user, err := h.ledger.SetUserStatus(r.Context(), chi.URLParam(r, "userId"), req.Status)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *UserHandler) HandleGetPayment(w http.ResponseWriter, r *http.Request) {
	payment, err := h.users.Payment(r.Context(), chi.URLParam(r, "userId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, payment)
}

// HandleUpdateCoins handles PUT /api/users/coins.
func (h *UserHandler) HandleUpdateCoins(w http.ResponseWriter, r *http.Request) {
	var req coinsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	balance, err := h.users.UpdateCoinsByEmail(r.Context(), req.Email, req.Coins)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, balance)
}

func (h *UserHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ack, err := h.users.Delete(r.Context(), chi.URLParam(r, "userId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ack)
}
