package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"deposito-ledger/model"
	"deposito-ledger/storage"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// CustomerHandler serves /customers.
type CustomerHandler struct {
	store  storage.Store
	logger *slog.Logger
}

func NewCustomerHandler(store storage.Store, logger *slog.Logger) *CustomerHandler {
	return &CustomerHandler{store: store, logger: logger}
}

// readName decodes a CustomerRequest and trims the name before validating it,
// so "   " is rejected as empty.
func readName(w http.ResponseWriter, r *http.Request) (string, bool) {
	req, ok := decode[model.CustomerRequest](w, r)
	if !ok {
		return "", false
	}
	name := strings.TrimSpace(req.Name)
	if err := validate.Var(name, "required,max=100"); err != nil {
		writeMessage(w, http.StatusBadRequest, "name is required and must be at most 100 characters")
		return "", false
	}
	return name, true
}

// Create handles POST /customers.
func (h *CustomerHandler) Create(w http.ResponseWriter, r *http.Request) {
	name, ok := readName(w, r)
	if !ok {
		return
	}
	now := time.Now().UTC()
	c := model.Customer{ID: uuid.NewString(), Name: name, CreatedAt: now, UpdatedAt: now}
	if err := h.store.CreateCustomer(r.Context(), c); err != nil {
		writeError(w, h.logger, err)
		return
	}
	h.logger.Info("customer created", "customer_id", c.ID)
	writeJSON(w, http.StatusCreated, c)
}

// List handles GET /customers.
func (h *CustomerHandler) List(w http.ResponseWriter, r *http.Request) {
	customers, err := h.store.ListCustomers(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, customers)
}

// Get handles GET /customers/{id}.
func (h *CustomerHandler) Get(w http.ResponseWriter, r *http.Request) {
	c, err := h.store.GetCustomer(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// Update handles PUT /customers/{id}; only the name can change.
func (h *CustomerHandler) Update(w http.ResponseWriter, r *http.Request) {
	name, ok := readName(w, r)
	if !ok {
		return
	}
	id := mux.Vars(r)["id"]
	c, err := h.store.GetCustomer(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	c.Name = name
	c.UpdatedAt = time.Now().UTC()
	if err := h.store.UpdateCustomer(r.Context(), *c); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// Delete handles DELETE /customers/{id}. Customers that still hold accounts
// are kept (409).
func (h *CustomerHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := h.store.DeleteCustomer(r.Context(), id); err != nil {
		if errors.Is(err, storage.ErrInUse) {
			writeMessage(w, http.StatusConflict, "customer still has accounts, close them first")
			return
		}
		writeError(w, h.logger, err)
		return
	}
	h.logger.Info("customer deleted", "customer_id", id)
	w.WriteHeader(http.StatusNoContent)
}

// Accounts handles GET /customers/{id}/accounts.
func (h *CustomerHandler) Accounts(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if _, err := h.store.GetCustomer(r.Context(), id); err != nil {
		writeError(w, h.logger, err)
		return
	}
	accounts, err := h.store.ListAccounts(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, accounts)
}
