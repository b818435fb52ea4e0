package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/cyclone/internal/installation"
	"github.com/hitoshi/cyclone/internal/middleware"
	"github.com/hitoshi/cyclone/internal/model"
	"github.com/hitoshi/cyclone/internal/repolink"
)

// --- モック定義 ---

type mockAuthService struct {
	getLoginURLFn    func(state string) string
	handleCallbackFn func(ctx context.Context, code string) (*model.Session, error)
	logoutFn         func(ctx context.Context, sessionID string) error
}

func (m *mockAuthService) GetLoginURL(state string) string {
	if m.getLoginURLFn != nil {
		return m.getLoginURLFn(state)
	}
	return "https://github.com/login/oauth/authorize?state=" + state
}

func (m *mockAuthService) HandleCallback(ctx context.Context, code string) (*model.Session, error) {
	if m.handleCallbackFn != nil {
		return m.handleCallbackFn(ctx, code)
	}
	return &model.Session{ID: "session-1", UserID: "user-1"}, nil
}

func (m *mockAuthService) Logout(ctx context.Context, sessionID string) error {
	if m.logoutFn != nil {
		return m.logoutFn(ctx, sessionID)
	}
	return nil
}

type mockInstallationService struct {
	saveFn        func(ctx context.Context, user *model.User, installationID string) (*model.Installation, error)
	handleSetupFn func(ctx context.Context, user *model.User, installationID, setupAction string) (installation.SetupResult, error)
	currentFn     func(ctx context.Context, user *model.User) (*model.Installation, error)
}

func (m *mockInstallationService) Save(ctx context.Context, user *model.User, installationID string) (*model.Installation, error) {
	if m.saveFn != nil {
		return m.saveFn(ctx, user, installationID)
	}
	return &model.Installation{ID: 1, InstallationID: installationID, UserID: user.ID}, nil
}

func (m *mockInstallationService) HandleSetup(ctx context.Context, user *model.User, installationID, setupAction string) (installation.SetupResult, error) {
	if m.handleSetupFn != nil {
		return m.handleSetupFn(ctx, user, installationID, setupAction)
	}
	return installation.SetupInstalled, nil
}

func (m *mockInstallationService) Current(ctx context.Context, user *model.User) (*model.Installation, error) {
	if m.currentFn != nil {
		return m.currentFn(ctx, user)
	}
	return nil, nil
}

type mockOrganizationService struct {
	createFn func(ctx context.Context, user *model.User, name, description string) (*model.Organization, error)
	listFn   func(ctx context.Context, user *model.User) ([]*model.Organization, error)
	getFn    func(ctx context.Context, user *model.User, organizationID string) (*model.Organization, error)
}

func (m *mockOrganizationService) Create(ctx context.Context, user *model.User, name, description string) (*model.Organization, error) {
	if m.createFn != nil {
		return m.createFn(ctx, user, name, description)
	}
	return &model.Organization{ID: 1, Name: name, Description: description, InstallationID: 1}, nil
}

func (m *mockOrganizationService) List(ctx context.Context, user *model.User) ([]*model.Organization, error) {
	if m.listFn != nil {
		return m.listFn(ctx, user)
	}
	return nil, nil
}

func (m *mockOrganizationService) Get(ctx context.Context, user *model.User, organizationID string) (*model.Organization, error) {
	if m.getFn != nil {
		return m.getFn(ctx, user, organizationID)
	}
	return nil, model.NewOrganizationNotFoundError()
}

type mockRepositoryService struct {
	listFn          func(ctx context.Context, user *model.User, organizationID string) ([]*model.Repository, error)
	listAvailableFn func(ctx context.Context, user *model.User, organizationID string) ([]model.ExternalRepository, error)
	linkFn          func(ctx context.Context, user *model.User, organizationID string, in repolink.LinkInput) (*model.Repository, error)
	updateFn        func(ctx context.Context, user *model.User, repositoryID string, in repolink.UpdateInput) (*model.Repository, error)
	deleteFn        func(ctx context.Context, user *model.User, repositoryID string) error
}

func (m *mockRepositoryService) List(ctx context.Context, user *model.User, organizationID string) ([]*model.Repository, error) {
	if m.listFn != nil {
		return m.listFn(ctx, user, organizationID)
	}
	return nil, nil
}

func (m *mockRepositoryService) ListAvailable(ctx context.Context, user *model.User, organizationID string) ([]model.ExternalRepository, error) {
	if m.listAvailableFn != nil {
		return m.listAvailableFn(ctx, user, organizationID)
	}
	return nil, nil
}

func (m *mockRepositoryService) Link(ctx context.Context, user *model.User, organizationID string, in repolink.LinkInput) (*model.Repository, error) {
	if m.linkFn != nil {
		return m.linkFn(ctx, user, organizationID, in)
	}
	return &model.Repository{ID: 10, Name: in.Name, OrganizationID: 1}, nil
}

func (m *mockRepositoryService) Update(ctx context.Context, user *model.User, repositoryID string, in repolink.UpdateInput) (*model.Repository, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, user, repositoryID, in)
	}
	return &model.Repository{ID: 10, Name: "svc-api", OrganizationID: 1}, nil
}

func (m *mockRepositoryService) Delete(ctx context.Context, user *model.User, repositoryID string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, user, repositoryID)
	}
	return nil
}

type mockWaitlistService struct {
	joinFn func(ctx context.Context, email, role string) (*model.WaitlistEntry, error)
}

func (m *mockWaitlistService) Join(ctx context.Context, email, role string) (*model.WaitlistEntry, error) {
	if m.joinFn != nil {
		return m.joinFn(ctx, email, role)
	}
	return &model.WaitlistEntry{ID: 1, Email: email, Role: role}, nil
}

type mockInvitationService struct {
	claimFn func(ctx context.Context, key string) (*model.Invitation, error)
}

func (m *mockInvitationService) Claim(ctx context.Context, key string) (*model.Invitation, error) {
	if m.claimFn != nil {
		return m.claimFn(ctx, key)
	}
	return nil, model.NewInvitationInvalidError()
}

// --- テストヘルパー ---

var testUser = &model.User{ID: "user-1", Email: "octocat@example.com", Name: "Octocat"}

// withUser はセッションミドルウェア通過後と同じコンテキストを持つリクエストを返す。
func withUser(req *http.Request, user *model.User) *http.Request {
	return req.WithContext(middleware.ContextWithUser(req.Context(), user))
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Code    string          `json:"code"`
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.NewDecoder(w.Body).Decode(&env); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return env
}

func decodeData(t *testing.T, env envelope, v any) {
	t.Helper()
	if err := json.Unmarshal(env.Data, v); err != nil {
		t.Fatalf("failed to decode data: %v (raw: %s)", err, env.Data)
	}
}
