package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/cyclone/internal/middleware"
	"github.com/hitoshi/cyclone/internal/model"
)

// OrganizationServiceInterface は組織ハンドラーが必要とするサービスインターフェース。
type OrganizationServiceInterface interface {
	Create(ctx context.Context, user *model.User, name, description string) (*model.Organization, error)
	List(ctx context.Context, user *model.User) ([]*model.Organization, error)
	Get(ctx context.Context, user *model.User, organizationID string) (*model.Organization, error)
}

// DashboardHandler はダッシュボードのサマリーを返すHTTPハンドラー。
type DashboardHandler struct {
	installations InstallationServiceInterface
	orgs          OrganizationServiceInterface
	installURL    string
}

// NewDashboardHandler はDashboardHandlerを生成する。
func NewDashboardHandler(installations InstallationServiceInterface, orgs OrganizationServiceInterface, installURL string) *DashboardHandler {
	return &DashboardHandler{
		installations: installations,
		orgs:          orgs,
		installURL:    installURL,
	}
}

// dashboardResponse はダッシュボードのAPIレスポンス。
type dashboardResponse struct {
	User          userResponse           `json:"user"`
	Installed     bool                   `json:"installed"`
	Installation  *installationResponse  `json:"installation"`
	Organizations []organizationResponse `json:"organizations"`
	InstallURL    string                 `json:"install_url"`
}

// Get はログインユーザー、インストール状況、組織一覧、インストールURLを返す。
// GET /api/dashboard
func (h *DashboardHandler) Get(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.UserFromContext(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	inst, err := h.installations.Current(r.Context(), user)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	orgs, err := h.orgs.List(r.Context(), user)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, dashboardResponse{
		User:          toUserResponse(user),
		Installed:     inst != nil,
		Installation:  toInstallationResponse(inst),
		Organizations: toOrganizationResponses(orgs),
		InstallURL:    h.installURL,
	})
}
