package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hitoshi/cyclone/internal/middleware"
	"github.com/hitoshi/cyclone/internal/model"
)

const (
	testSessionID = "session-router-1"
	testCSRFToken = "csrf-router-token"
)

type mockUserResolverForRouter struct{}

func (mockUserResolverForRouter) CurrentUser(ctx context.Context, sessionID string) (*model.User, error) {
	if sessionID == testSessionID {
		return testUser, nil
	}
	return nil, model.NewNotAuthenticatedError()
}

type mockHealthChecker struct {
	err error
}

func (m *mockHealthChecker) PingContext(ctx context.Context) error {
	return m.err
}

type statusCounter struct {
	statuses []int
}

func (s *statusCounter) RecordHTTPStatus(statusCode int) {
	s.statuses = append(s.statuses, statusCode)
}

func createTestRouter(t *testing.T, health *mockHealthChecker, recorder *statusCounter) http.Handler {
	t.Helper()
	limiter := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig())
	t.Cleanup(limiter.Stop)

	deps := &RouterDeps{
		UserResolver:      mockUserResolverForRouter{},
		HealthChecker:     health,
		CORSAllowedOrigin: "http://localhost:3000",
		RateLimiter:       limiter,
		Logger:            slog.New(slog.NewJSONHandler(io.Discard, nil)),
		MetricsHandler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, "# metrics\n")
		}),
		AuthService: &mockAuthService{},
		AuthConfig: AuthHandlerConfig{
			BaseURL:       "http://localhost:3000",
			SessionMaxAge: 86400,
			InstallURL:    testInstallURL,
		},
		InstallationService: &mockInstallationService{},
		OrganizationService: &mockOrganizationService{},
		RepositoryService:   &mockRepositoryService{},
		WaitlistService:     &mockWaitlistService{},
		InvitationService:   &mockInvitationService{},
	}
	if recorder != nil {
		deps.StatusRecorder = recorder
	}
	return NewRouter(deps)
}

func authed(req *http.Request) *http.Request {
	req.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: testSessionID})
	return req
}

func withCSRF(req *http.Request) *http.Request {
	req.AddCookie(&http.Cookie{Name: "csrf_token", Value: testCSRFToken})
	req.Header.Set("X-CSRF-Token", testCSRFToken)
	return req
}

func TestNewRouter_Health(t *testing.T) {
	router := createTestRouter(t, &mockHealthChecker{}, nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
}

func TestNewRouter_Health_DatabaseDown(t *testing.T) {
	router := createTestRouter(t, &mockHealthChecker{err: errors.New("connection refused")}, nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}
}

func TestNewRouter_MetricsAndCSRFToken_NoAuthRequired(t *testing.T) {
	router := createTestRouter(t, &mockHealthChecker{}, nil)

	for _, path := range []string{"/metrics", "/api/csrf-token"} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		if w.Code != http.StatusOK {
			t.Errorf("GET %s status = %d, want %d", path, w.Code, http.StatusOK)
		}
	}
}

func TestNewRouter_SecurityHeaders(t *testing.T) {
	router := createTestRouter(t, &mockHealthChecker{}, nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	if got := w.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q", got)
	}
}

func TestNewRouter_ProtectedRoutes_NoSession_Returns401(t *testing.T) {
	router := createTestRouter(t, &mockHealthChecker{}, nil)

	routes := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/dashboard"},
		{http.MethodGet, "/api/organizations"},
		{http.MethodGet, "/api/organizations/1"},
		{http.MethodGet, "/api/organizations/1/repositories"},
		{http.MethodGet, "/api/organizations/1/available-repositories"},
		{http.MethodGet, "/auth/me"},
	}
	for _, rt := range routes {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(rt.method, rt.path, nil))
		if w.Code != http.StatusUnauthorized {
			t.Errorf("%s %s status = %d, want %d", rt.method, rt.path, w.Code, http.StatusUnauthorized)
		}
	}
}

func TestNewRouter_ProtectedRoute_WithSession_Succeeds(t *testing.T) {
	router := createTestRouter(t, &mockHealthChecker{}, nil)

	for _, path := range []string{"/api/dashboard", "/api/organizations", "/api/organizations/1/repositories"} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, authed(httptest.NewRequest(http.MethodGet, path, nil)))
		if w.Code != http.StatusOK {
			t.Errorf("GET %s status = %d, want %d: %s", path, w.Code, http.StatusOK, w.Body.String())
		}
	}
}

func TestNewRouter_StateChange_RequiresCSRF(t *testing.T) {
	router := createTestRouter(t, &mockHealthChecker{}, nil)

	body := `{"name":"Acme"}`
	w := httptest.NewRecorder()
	router.ServeHTTP(w, authed(jsonRequest(http.MethodPost, "/api/organizations", body)))
	if w.Code != http.StatusForbidden {
		t.Fatalf("without CSRF status = %d, want %d", w.Code, http.StatusForbidden)
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, withCSRF(authed(jsonRequest(http.MethodPost, "/api/organizations", body))))
	if w.Code != http.StatusCreated {
		t.Errorf("with CSRF status = %d, want %d: %s", w.Code, http.StatusCreated, w.Body.String())
	}
}

func TestNewRouter_RepositoryRoutes(t *testing.T) {
	router := createTestRouter(t, &mockHealthChecker{}, nil)

	tests := []struct {
		method string
		path   string
		body   string
		want   int
	}{
		{http.MethodPost, "/api/organizations/1/repositories", `{"name":"svc-web"}`, http.StatusCreated},
		{http.MethodPatch, "/api/repositories/10", `{"name":"svc-api"}`, http.StatusOK},
		{http.MethodDelete, "/api/repositories/10", "", http.StatusNoContent},
		{http.MethodPost, "/api/installations", `{"installation_id":12345}`, http.StatusCreated},
	}
	for _, tt := range tests {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, withCSRF(authed(jsonRequest(tt.method, tt.path, tt.body))))
		if w.Code != tt.want {
			t.Errorf("%s %s status = %d, want %d: %s", tt.method, tt.path, w.Code, tt.want, w.Body.String())
		}
	}
}

func TestNewRouter_Waitlist_NoSessionRequired(t *testing.T) {
	router := createTestRouter(t, &mockHealthChecker{}, nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, withCSRF(jsonRequest(http.MethodPost, "/api/waitlist", `{"email":"dev@example.com","role":"CTO"}`)))

	if w.Code != http.StatusCreated {
		t.Errorf("status = %d, want %d: %s", w.Code, http.StatusCreated, w.Body.String())
	}
}

func TestNewRouter_Invite_InvalidKeyRedirects(t *testing.T) {
	router := createTestRouter(t, &mockHealthChecker{}, nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/invite?inviteKey=nope", nil))

	if w.Code != http.StatusSeeOther {
		t.Errorf("status = %d, want %d", w.Code, http.StatusSeeOther)
	}
}

func TestNewRouter_InstallationCallback(t *testing.T) {
	router := createTestRouter(t, &mockHealthChecker{}, nil)
	target := "/github/installation/callback?installation_id=12345&setup_action=install"

	// 未ログインはサインインへ
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
	if loc := w.Header().Get("Location"); !strings.Contains(loc, signInPath) {
		t.Errorf("unauthenticated Location = %q", loc)
	}

	// ログイン済みは保存してダッシュボードへ
	w = httptest.NewRecorder()
	router.ServeHTTP(w, authed(httptest.NewRequest(http.MethodGet, target, nil)))
	if loc := w.Header().Get("Location"); loc != "http://localhost:3000/dashboard?installation_success=true" {
		t.Errorf("authenticated Location = %q", loc)
	}
}

func TestNewRouter_AuthLogin(t *testing.T) {
	router := createTestRouter(t, &mockHealthChecker{}, nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/auth/github/login", nil))

	if w.Code != http.StatusTemporaryRedirect {
		t.Errorf("status = %d, want %d", w.Code, http.StatusTemporaryRedirect)
	}
}

func TestNewRouter_RecordsHTTPStatus(t *testing.T) {
	recorder := &statusCounter{}
	router := createTestRouter(t, &mockHealthChecker{}, recorder)

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/dashboard", nil))

	if len(recorder.statuses) != 2 || recorder.statuses[0] != http.StatusOK || recorder.statuses[1] != http.StatusUnauthorized {
		t.Errorf("recorded statuses = %v, want [200 401]", recorder.statuses)
	}
}
