package router

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kazdocs/kazdocs-platform/internal/contacts"
	httpmiddleware "github.com/kazdocs/kazdocs-platform/internal/http/middleware"
	"github.com/kazdocs/kazdocs-platform/internal/observability/metrics"
	"github.com/kazdocs/kazdocs-platform/internal/subscriptions"
	"github.com/kazdocs/kazdocs-platform/internal/users"
	"github.com/kazdocs/kazdocs-platform/pkg/logging"
)

const testSecret = "router-secret"

func newTestRouter(t *testing.T, mutate func(*Config)) http.Handler {
	t.Helper()
	logger := logging.Discard()
	store := subscriptions.NewMemoryStore()
	catalog := subscriptions.NewCatalog(store, logger)
	if err := catalog.EnsureDefaults(context.Background()); err != nil {
		t.Fatalf("seed catalog: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	cfg := &Config{
		Logger:               logger,
		ContactsHandler:      contacts.NewHandler(contacts.NewMemoryRepository(), logger, contacts.WithSubscriptionResolver(catalog)),
		SubscriptionsHandler: subscriptions.NewHandler(store, logger),
		RegisterLimiter:      httpmiddleware.NewRateLimiter(ctx, 100, 100),
		AdminAuthSecret:      testSecret,
		MetricsHandler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("# metrics"))
		}),
	}
	if mutate != nil {
		mutate(cfg)
	}
	return New(cfg)
}

func serve(router http.Handler, method, path, body, token string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestRouterHealthEndpoint(t *testing.T) {
	router := newTestRouter(t, nil)
	rr := serve(router, http.MethodGet, "/health", "", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}
	var resp healthResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode health response: %v", err)
	}
	if resp.Status != "ok" {
		t.Errorf("expected status 'ok', got %q", resp.Status)
	}
}

func TestRouterHealthDegraded(t *testing.T) {
	router := newTestRouter(t, func(cfg *Config) {
		cfg.HealthChecks = map[string]HealthCheck{
			"postgres": func(context.Context) error { return nil },
			"redis":    func(context.Context) error { return errors.New("connection refused") },
		}
	})
	rr := serve(router, http.MethodGet, "/health", "", "")
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
	var resp healthResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Checks["postgres"] != "ok" || resp.Checks["redis"] != "connection refused" {
		t.Fatalf("unexpected checks %v", resp.Checks)
	}
}

func TestRouterRegisterFlow(t *testing.T) {
	router := newTestRouter(t, nil)
	body := `{"name":"Ahmed Ben Ali","email":"a@b.com","company":"","message":"","sector":"","subscriptionVolume":10000}`

	rr := serve(router, http.MethodPost, "/api/register", body, "")
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	var env contacts.Envelope
	if err := json.NewDecoder(rr.Body).Decode(&env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !env.Success {
		t.Fatalf("expected success envelope, got %+v", env)
	}

	rr = serve(router, http.MethodPost, "/api/register", strings.Replace(body, "a@b.com", "A@B.com", 1), "")
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409 for normalised duplicate, got %d", rr.Code)
	}

	rr = serve(router, http.MethodPost, "/api/register", `{"name":"","email":""}`, "")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestRouterRegisterRateLimited(t *testing.T) {
	router := newTestRouter(t, func(cfg *Config) {
		ctx, cancel := context.WithCancel(context.Background())
		t.Cleanup(cancel)
		cfg.RegisterLimiter = httpmiddleware.NewRateLimiter(ctx, 0.001, 1)
	})

	first := serve(router, http.MethodPost, "/api/register", `{"name":"A","email":"a@b.com"}`, "")
	if first.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", first.Code)
	}
	second := serve(router, http.MethodPost, "/api/register", `{"name":"B","email":"b@b.com"}`, "")
	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", second.Code)
	}
	other := serve(router, http.MethodGet, "/api/subscription-types", "", "")
	if other.Code != http.StatusOK {
		t.Fatalf("limit should only apply to registration, got %d", other.Code)
	}
}

func TestRouterPublicSubscriptionTypes(t *testing.T) {
	router := newTestRouter(t, nil)
	rr := serve(router, http.MethodGet, "/api/subscription-types", "", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var resp struct {
		SubscriptionTypes []subscriptions.SubscriptionType `json:"subscriptionTypes"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.SubscriptionTypes) != len(subscriptions.DefaultTypes()) {
		t.Fatalf("expected seeded types, got %d", len(resp.SubscriptionTypes))
	}
}

func TestRouterAdminRequiresToken(t *testing.T) {
	router := newTestRouter(t, nil)
	if rr := serve(router, http.MethodGet, "/admin/contacts", "", ""); rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}

	token, err := httpmiddleware.IssueAdminToken(testSecret, "admin-1", httpmiddleware.RoleAdmin, time.Minute)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	serve(router, http.MethodPost, "/api/register", `{"name":"A","email":"a@b.com","subscriptionVolume":1000}`, "")

	rr := serve(router, http.MethodGet, "/admin/contacts", "", token)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var list contacts.ListContactsResponse
	if err := json.NewDecoder(rr.Body).Decode(&list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if list.Count != 1 || list.Contacts[0].SubscriptionTypeID == "" {
		t.Fatalf("expected one contact stamped with a subscription type, got %+v", list)
	}
}

func TestRouterAdminDisabledWithoutSecret(t *testing.T) {
	router := newTestRouter(t, func(cfg *Config) { cfg.AdminAuthSecret = "" })
	if rr := serve(router, http.MethodGet, "/admin/contacts", "", ""); rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestRouterAdminStats(t *testing.T) {
	reg := prometheus.NewRegistry()
	intake := metrics.NewIntakeMetrics(reg)
	router := newTestRouter(t, func(cfg *Config) {
		cfg.StatsGatherer = reg
		cfg.ContactsHandler = contacts.NewHandler(contacts.NewMemoryRepository(), logging.Discard(), contacts.WithMetrics(intake))
	})
	serve(router, http.MethodPost, "/api/register", `{"name":"A","email":"a@b.com"}`, "")
	serve(router, http.MethodPost, "/api/register", `{"name":"A","email":"a@b.com"}`, "")

	token, err := httpmiddleware.IssueAdminToken(testSecret, "admin-1", httpmiddleware.RoleAdmin, time.Minute)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	rr := serve(router, http.MethodGet, "/admin/stats", "", token)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var snap metrics.IntakeSnapshot
	if err := json.NewDecoder(rr.Body).Decode(&snap); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if snap.Registrations[metrics.OutcomeCreated] != 1 || snap.Registrations[metrics.OutcomeDuplicate] != 1 {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
}

func TestRouterMetrics(t *testing.T) {
	router := newTestRouter(t, nil)
	rr := serve(router, http.MethodGet, "/metrics", "", "")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "# metrics") {
		t.Fatalf("unexpected metrics response %d %q", rr.Code, rr.Body.String())
	}
}

type singleUserRepo struct {
	user *users.User
}

func (r singleUserRepo) Create(context.Context, *users.CreateUserRequest) (*users.User, error) {
	return nil, errors.New("not supported")
}

func (r singleUserRepo) GetByID(_ context.Context, id string) (*users.User, error) {
	if id == r.user.ID {
		return r.user, nil
	}
	return nil, users.ErrUserNotFound
}

func (r singleUserRepo) GetByEmail(_ context.Context, email string) (*users.User, error) {
	if email == r.user.Email {
		return r.user, nil
	}
	return nil, users.ErrUserNotFound
}

func (r singleUserRepo) List(context.Context, users.ListFilter) ([]*users.User, error) {
	return []*users.User{r.user}, nil
}

func (r singleUserRepo) SoftDelete(context.Context, string, string, string) (*users.User, error) {
	return nil, users.ErrUserNotFound
}

func TestRouterAdminLoginIsPublicAndRateLimited(t *testing.T) {
	hash, err := users.HashPassword("s3cret!")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	repo := singleUserRepo{user: &users.User{ID: "u-1", Email: "ops@kazdocs.com", PasswordHash: hash, Role: users.RoleAdmin, Active: true}}
	router := newTestRouter(t, func(cfg *Config) {
		ctx, cancel := context.WithCancel(context.Background())
		t.Cleanup(cancel)
		cfg.UsersHandler = users.NewHandler(repo, logging.Discard(), users.WithAdminTokens(testSecret, time.Minute))
		cfg.LoginLimiter = httpmiddleware.NewRateLimiter(ctx, 0.001, 2)
	})

	rr := serve(router, http.MethodPost, "/admin/login", `{"email":"ops@kazdocs.com","password":"s3cret!"}`, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rr := serve(router, http.MethodGet, "/admin/users", "", resp.Token); rr.Code != http.StatusOK {
		t.Fatalf("issued token rejected: %d", rr.Code)
	}

	if rr := serve(router, http.MethodPost, "/admin/login", `{"email":"ops@kazdocs.com","password":"bad"}`, ""); rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
	if rr := serve(router, http.MethodPost, "/admin/login", `{"email":"ops@kazdocs.com","password":"s3cret!"}`, ""); rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rr.Code)
	}
}
