package subscriptions

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kazdocs/kazdocs-platform/internal/http/middleware"
	"github.com/kazdocs/kazdocs-platform/pkg/logging"
)

// Handler serves the subscription catalog over HTTP.
type Handler struct {
	store  Store
	logger *logging.Logger
}

func NewHandler(store Store, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{store: store, logger: logger}
}

type listResponse struct {
	SubscriptionTypes []*SubscriptionType `json:"subscriptionTypes"`
}

// List handles GET /api/subscription-types
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	types, err := h.store.List(r.Context())
	if err != nil {
		h.logger.Error("failed to list subscription types", "error", err)
		http.Error(w, "failed to list subscription types", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, listResponse{SubscriptionTypes: types})
}

// Create handles POST /admin/subscription-types
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateTypeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	t, err := h.store.Create(r.Context(), &req)
	switch {
	case errors.Is(err, ErrInvalidType):
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	case errors.Is(err, ErrDuplicateName):
		http.Error(w, err.Error(), http.StatusConflict)
		return
	case err != nil:
		h.logger.Error("failed to create subscription type", "error", err, "name", req.Name)
		http.Error(w, "failed to create subscription type", http.StatusInternalServerError)
		return
	}
	h.logger.Info("subscription type created", "id", t.ID, "name", t.Name)
	writeJSON(w, http.StatusCreated, t)
}

type deleteRequest struct {
	Reason string `json:"reason"`
}

// Delete handles DELETE /admin/subscription-types/{typeID}. The body is
// optional.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "typeID")
	var req deleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	var deletedBy string
	if claims, ok := middleware.AdminClaimsFromContext(r.Context()); ok {
		deletedBy = claims.Subject
	}

	t, err := h.store.SoftDelete(r.Context(), id, deletedBy, req.Reason)
	switch {
	case errors.Is(err, ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	case errors.Is(err, ErrAlreadyDeleted):
		http.Error(w, err.Error(), http.StatusConflict)
		return
	case err != nil:
		h.logger.Error("failed to delete subscription type", "error", err, "id", id)
		http.Error(w, "failed to delete subscription type", http.StatusInternalServerError)
		return
	}
	h.logger.Info("subscription type deleted", "id", id, "by", deletedBy)
	writeJSON(w, http.StatusOK, t)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
