package handler

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"deposito-ledger/model"
	"deposito-ledger/storage"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// DepositoTypeHandler serves /deposito-types.
type DepositoTypeHandler struct {
	store  storage.Store
	logger *slog.Logger
}

func NewDepositoTypeHandler(store storage.Store, logger *slog.Logger) *DepositoTypeHandler {
	return &DepositoTypeHandler{store: store, logger: logger}
}

func readDepositoType(w http.ResponseWriter, r *http.Request) (*model.DepositoTypeRequest, bool) {
	req, ok := decode[model.DepositoTypeRequest](w, r)
	if !ok {
		return nil, false
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeMessage(w, http.StatusBadRequest, "name is required")
		return nil, false
	}
	if !validRate(req.YearlyReturn) {
		writeMessage(w, http.StatusBadRequest, "yearly_return must be between 0 and 1")
		return nil, false
	}
	return req, true
}

// Create handles POST /deposito-types.
func (h *DepositoTypeHandler) Create(w http.ResponseWriter, r *http.Request) {
	req, ok := readDepositoType(w, r)
	if !ok {
		return
	}
	now := time.Now().UTC()
	d := model.DepositoType{ID: uuid.NewString(), Name: req.Name, YearlyReturn: req.YearlyReturn, CreatedAt: now, UpdatedAt: now}
	if err := h.store.CreateDepositoType(r.Context(), d); err != nil {
		writeError(w, h.logger, err)
		return
	}
	h.logger.Info("deposito type created", "deposito_type_id", d.ID, "yearly_return", d.YearlyReturn.String())
	writeJSON(w, http.StatusCreated, d)
}

// List handles GET /deposito-types.
func (h *DepositoTypeHandler) List(w http.ResponseWriter, r *http.Request) {
	types, err := h.store.ListDepositoTypes(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, types)
}

// Get handles GET /deposito-types/{id}.
func (h *DepositoTypeHandler) Get(w http.ResponseWriter, r *http.Request) {
	d, err := h.store.GetDepositoType(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// Update handles PUT /deposito-types/{id}. New rates apply to withdrawals
// settled afterwards; past ledger entries keep what they earned.
func (h *DepositoTypeHandler) Update(w http.ResponseWriter, r *http.Request) {
	req, ok := readDepositoType(w, r)
	if !ok {
		return
	}
	d, err := h.store.GetDepositoType(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	d.Name = req.Name
	d.YearlyReturn = req.YearlyReturn
	d.UpdatedAt = time.Now().UTC()
	if err := h.store.UpdateDepositoType(r.Context(), *d); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// Delete handles DELETE /deposito-types/{id}.
func (h *DepositoTypeHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DeleteDepositoType(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
