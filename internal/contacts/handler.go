package contacts

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/kazdocs/kazdocs-platform/internal/events"
	"github.com/kazdocs/kazdocs-platform/internal/observability/metrics"
	"github.com/kazdocs/kazdocs-platform/pkg/logging"
)

var contactsTracer = otel.Tracer("kazdocs.internal.contacts")

const maxRegisterBody = 64 << 10

// Response messages returned by the registration endpoint.
const (
	msgInvalidBody   = "Invalid request body"
	msgMissingFields = "Name and email are required"
	msgAlreadyExists = "User already exists"
	msgInternal      = "Internal server error"
)

// SubscriptionResolver picks the subscription type matching a volume.
type SubscriptionResolver interface {
	ResolveTypeID(ctx context.Context, volume int) (string, error)
}

// Handler handles HTTP requests for contacts
type Handler struct {
	repo      Repository
	resolver  SubscriptionResolver
	publisher events.Publisher
	metrics   *metrics.IntakeMetrics
	logger    *logging.Logger
}

// HandlerOption configures optional collaborators.
type HandlerOption func(*Handler)

// WithSubscriptionResolver stamps new contacts with a matching subscription type.
func WithSubscriptionResolver(r SubscriptionResolver) HandlerOption {
	return func(h *Handler) { h.resolver = r }
}

// WithPublisher emits contact.created events after each registration.
func WithPublisher(p events.Publisher) HandlerOption {
	return func(h *Handler) { h.publisher = p }
}

// WithMetrics records registration outcomes.
func WithMetrics(m *metrics.IntakeMetrics) HandlerOption {
	return func(h *Handler) { h.metrics = m }
}

// NewHandler creates a new contacts handler
func NewHandler(repo Repository, logger *logging.Logger, opts ...HandlerOption) *Handler {
	if repo == nil {
		panic("contacts: repository required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	h := &Handler{
		repo:   repo,
		logger: logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Envelope is the response shape of the public registration endpoint.
type Envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

// RegisteredContact is the subset of a contact echoed back on creation.
type RegisteredContact struct {
	ID    string `json:"_id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Register handles POST /api/register requests
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx, span := contactsTracer.Start(r.Context(), "contacts.register")
	defer span.End()

	var req CreateContactRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRegisterBody)).Decode(&req); err != nil {
		h.logger.Warn("failed to decode registration", "error", err)
		h.finish(w, start, metrics.OutcomeInvalid, http.StatusBadRequest, Envelope{Message: msgInvalidBody})
		return
	}

	req.Normalize()
	if err := req.Validate(); err != nil {
		h.finish(w, start, metrics.OutcomeInvalid, http.StatusBadRequest, Envelope{Message: msgMissingFields})
		return
	}
	span.SetAttributes(attribute.Int("kazdocs.subscription_volume", req.SubscriptionVolume))

	if h.resolver != nil && req.SubscriptionVolume > 0 {
		typeID, err := h.resolver.ResolveTypeID(ctx, req.SubscriptionVolume)
		if err != nil {
			h.logger.Warn("subscription type not resolved", "error", err, "volume", req.SubscriptionVolume)
		} else {
			req.SubscriptionTypeID = typeID
		}
	}

	contact, err := h.repo.Create(ctx, &req)
	switch {
	case errors.Is(err, ErrDuplicateEmail):
		h.logger.Info("duplicate registration rejected", "email", req.Email)
		h.finish(w, start, metrics.OutcomeDuplicate, http.StatusConflict, Envelope{Message: msgAlreadyExists})
		return
	case errors.Is(err, ErrMissingFields):
		h.finish(w, start, metrics.OutcomeInvalid, http.StatusBadRequest, Envelope{Message: msgMissingFields})
		return
	case err != nil:
		span.RecordError(err)
		h.logger.Error("failed to create contact", "error", err, "email", req.Email)
		h.finish(w, start, metrics.OutcomeError, http.StatusInternalServerError, Envelope{Message: msgInternal})
		return
	}

	span.SetAttributes(attribute.String("kazdocs.contact_id", contact.ID))
	h.logger.Info("contact created", "id", contact.ID, "email", contact.Email, "volume", contact.SubscriptionVolume)
	h.publishCreated(ctx, contact)

	h.finish(w, start, metrics.OutcomeCreated, http.StatusCreated, Envelope{
		Success: true,
		Data: RegisteredContact{
			ID:    contact.ID,
			Name:  contact.Name,
			Email: contact.Email,
		},
	})
}

func (h *Handler) publishCreated(ctx context.Context, contact *Contact) {
	if h.publisher == nil {
		return
	}
	evt := events.ContactCreatedV1{
		EventID:            uuid.NewString(),
		ContactID:          contact.ID,
		Name:               contact.Name,
		Email:              contact.Email,
		Company:            contact.Company,
		Sector:             contact.Sector,
		Message:            contact.Message,
		SubscriptionVolume: contact.SubscriptionVolume,
		SubscriptionTypeID: contact.SubscriptionTypeID,
		OccurredAt:         contact.CreatedAt,
	}
	err := h.publisher.Publish(ctx, contact.ID, events.TypeContactCreated, evt)
	h.metrics.ObservePublish(events.TypeContactCreated, err)
	if err != nil {
		h.logger.Error("failed to publish contact event", "error", err, "contact_id", contact.ID)
	}
}

func (h *Handler) finish(w http.ResponseWriter, start time.Time, outcome string, status int, body Envelope) {
	h.metrics.ObserveRegistration(outcome, time.Since(start).Seconds())
	writeJSON(w, status, body)
}

// ListContactsResponse is the response for listing contacts
type ListContactsResponse struct {
	Contacts []*Contact `json:"contacts"`
	Count    int        `json:"count"`
	Offset   int        `json:"offset"`
	Limit    int        `json:"limit"`
}

// ListContacts handles GET /admin/contacts requests
func (h *Handler) ListContacts(w http.ResponseWriter, r *http.Request) {
	filter := ListFilter{
		Limit:  50,
		Offset: 0,
	}

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil && limit > 0 && limit <= 100 {
			filter.Limit = limit
		}
	}

	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil && offset >= 0 {
			filter.Offset = offset
		}
	}

	if email := r.URL.Query().Get("email"); email != "" {
		h.lookupByEmail(w, r, email, filter)
		return
	}

	if status := r.URL.Query().Get("status"); status != "" {
		filter.Status = Status(status)
		if !filter.Status.Valid() {
			http.Error(w, ErrInvalidStatus.Error(), http.StatusBadRequest)
			return
		}
	}

	contacts, err := h.repo.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("failed to list contacts", "error", err)
		http.Error(w, "failed to list contacts", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, ListContactsResponse{
		Contacts: contacts,
		Count:    len(contacts),
		Offset:   filter.Offset,
		Limit:    filter.Limit,
	})
}

// lookupByEmail answers ?email= with zero or one contact.
func (h *Handler) lookupByEmail(w http.ResponseWriter, r *http.Request, email string, filter ListFilter) {
	found := []*Contact{}
	contact, err := h.repo.GetByEmail(r.Context(), email)
	switch {
	case errors.Is(err, ErrContactNotFound):
	case err != nil:
		h.logger.Error("failed to look up contact", "error", err)
		http.Error(w, "failed to list contacts", http.StatusInternalServerError)
		return
	default:
		found = append(found, contact)
	}
	writeJSON(w, http.StatusOK, ListContactsResponse{
		Contacts: found,
		Count:    len(found),
		Offset:   filter.Offset,
		Limit:    filter.Limit,
	})
}

// GetContact handles GET /admin/contacts/{contactID}
func (h *Handler) GetContact(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "contactID")
	contact, err := h.repo.GetByID(r.Context(), id)
	if errors.Is(err, ErrContactNotFound) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	if err != nil {
		h.logger.Error("failed to load contact", "error", err, "contact_id", id)
		http.Error(w, "failed to load contact", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, contact)
}

type updateStatusRequest struct {
	Status Status `json:"status"`
}

// UpdateStatus handles PATCH /admin/contacts/{contactID}/status
func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "contactID")
	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	contact, err := h.repo.UpdateStatus(r.Context(), id, req.Status)
	switch {
	case errors.Is(err, ErrInvalidStatus):
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	case errors.Is(err, ErrContactNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	case err != nil:
		h.logger.Error("failed to update contact status", "error", err, "contact_id", id)
		http.Error(w, "failed to update contact", http.StatusInternalServerError)
		return
	}

	h.logger.Info("contact status updated", "contact_id", id, "status", contact.Status)
	writeJSON(w, http.StatusOK, contact)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
