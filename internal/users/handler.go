package users

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kazdocs/kazdocs-platform/internal/http/middleware"
	"github.com/kazdocs/kazdocs-platform/pkg/logging"
)

const defaultTokenTTL = 12 * time.Hour

// Handler exposes user administration endpoints.
type Handler struct {
	repo        Repository
	logger      *logging.Logger
	tokenSecret string
	tokenTTL    time.Duration
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithAdminTokens enables Login, signing tokens with secret for ttl.
func WithAdminTokens(secret string, ttl time.Duration) HandlerOption {
	return func(h *Handler) {
		h.tokenSecret = secret
		if ttl > 0 {
			h.tokenTTL = ttl
		}
	}
}

func NewHandler(repo Repository, logger *logging.Logger, opts ...HandlerOption) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	h := &Handler{repo: repo, logger: logger, tokenTTL: defaultTokenTTL}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Login handles POST /admin/login. Unknown emails, wrong passwords and
// inactive accounts all answer 401; non-admin roles answer 403.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	if h.tokenSecret == "" {
		http.Error(w, "admin login disabled", http.StatusServiceUnavailable)
		return
	}
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))

	user, err := h.repo.GetByEmail(r.Context(), email)
	switch {
	case errors.Is(err, ErrUserNotFound):
		h.logger.Info("admin login rejected", "email", email, "reason", "unknown email")
		http.Error(w, ErrInvalidCredentials.Error(), http.StatusUnauthorized)
		return
	case err != nil:
		h.logger.Error("failed to load user for login", "error", err, "email", email)
		http.Error(w, "login failed", http.StatusInternalServerError)
		return
	}
	if err := user.CheckPassword(req.Password); err != nil || !user.Active {
		h.logger.Info("admin login rejected", "user_id", user.ID, "active", user.Active)
		http.Error(w, ErrInvalidCredentials.Error(), http.StatusUnauthorized)
		return
	}
	if user.Role != RoleAdmin && user.Role != RoleSuperAdmin {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	expiresAt := time.Now().Add(h.tokenTTL).UTC()
	token, err := middleware.IssueAdminToken(h.tokenSecret, user.ID, string(user.Role), h.tokenTTL)
	if err != nil {
		h.logger.Error("failed to issue admin token", "error", err, "user_id", user.ID)
		http.Error(w, "login failed", http.StatusInternalServerError)
		return
	}
	h.logger.Info("admin logged in", "user_id", user.ID, "role", user.Role)
	writeJSON(w, http.StatusOK, loginResponse{Token: token, ExpiresAt: expiresAt})
}

type listUsersResponse struct {
	Users  []*User `json:"users"`
	Count  int     `json:"count"`
	Offset int     `json:"offset"`
	Limit  int     `json:"limit"`
}

// List handles GET /admin/users
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	filter := ListFilter{Limit: 50, Role: Role(r.URL.Query().Get("role"))}
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 && v <= 100 {
		filter.Limit = v
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && v >= 0 {
		filter.Offset = v
	}

	list, err := h.repo.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("failed to list users", "error", err)
		http.Error(w, "failed to list users", http.StatusInternalServerError)
		return
	}
	if list == nil {
		list = []*User{}
	}
	writeJSON(w, http.StatusOK, listUsersResponse{Users: list, Count: len(list), Offset: filter.Offset, Limit: filter.Limit})
}

// Create handles POST /admin/users
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	user, err := h.repo.Create(r.Context(), &req)
	switch {
	case errors.Is(err, ErrInvalidUser):
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	case errors.Is(err, ErrDuplicateEmail):
		http.Error(w, err.Error(), http.StatusConflict)
		return
	case err != nil:
		h.logger.Error("failed to create user", "error", err, "email", req.Email)
		http.Error(w, "failed to create user", http.StatusInternalServerError)
		return
	}
	h.logger.Info("user created", "id", user.ID, "email", user.Email, "role", user.Role)
	writeJSON(w, http.StatusCreated, user)
}

type deleteUserRequest struct {
	Reason string `json:"reason"`
}

// Delete handles DELETE /admin/users/{userID}
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "userID")
	var req deleteUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	var deletedBy string
	if claims, ok := middleware.AdminClaimsFromContext(r.Context()); ok {
		deletedBy = claims.Subject
	}

	user, err := h.repo.SoftDelete(r.Context(), id, deletedBy, req.Reason)
	if errors.Is(err, ErrUserNotFound) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	if err != nil {
		h.logger.Error("failed to delete user", "error", err, "user_id", id)
		http.Error(w, "failed to delete user", http.StatusInternalServerError)
		return
	}
	h.logger.Info("user deleted", "user_id", id, "by", deletedBy)
	writeJSON(w, http.StatusOK, user)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
