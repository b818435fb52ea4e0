package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/hitoshi/cyclone/internal/installation"
	"github.com/hitoshi/cyclone/internal/middleware"
	"github.com/hitoshi/cyclone/internal/model"
)

// signInPath はサインインの入口。
const signInPath = "/auth/github/login"

// InstallationServiceInterface はインストールハンドラーが必要とするサービスインターフェース。
type InstallationServiceInterface interface {
	Save(ctx context.Context, user *model.User, installationID string) (*model.Installation, error)
	HandleSetup(ctx context.Context, user *model.User, installationID, setupAction string) (installation.SetupResult, error)
	Current(ctx context.Context, user *model.User) (*model.Installation, error)
}

// InstallationHandler はGitHub Appインストールの紐付けのHTTPハンドラー。
type InstallationHandler struct {
	service   InstallationServiceInterface
	baseURL   string
	validator *requestValidator
}

// NewInstallationHandler はInstallationHandlerを生成する。
func NewInstallationHandler(service InstallationServiceInterface, baseURL string) *InstallationHandler {
	return &InstallationHandler{
		service:   service,
		baseURL:   strings.TrimRight(baseURL, "/"),
		validator: newRequestValidator(),
	}
}

// saveInstallationRequest はインストール保存リクエストのボディ。
// installation_idは数値と文字列のどちらでも受け付ける。
type saveInstallationRequest struct {
	InstallationID json.Number `json:"installation_id" validate:"required"`
}

// Save は現在のユーザーにinstallation idを紐付ける。
// POST /api/installations
func (h *InstallationHandler) Save(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.UserFromContext(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	var req saveInstallationRequest
	if apiErr := h.validator.decodeAndValidate(w, r, &req); apiErr != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, apiErr)
		return
	}

	inst, err := h.service.Save(r.Context(), user, req.InstallationID.String())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toInstallationResponse(inst))
}

// SetupCallback はGitHub Appのインストール完了後のリダイレクトを処理する。
// オプショナルセッションミドルウェアの内側で使う。
// GET /github/installation/callback?installation_id=xxx&setup_action=install
func (h *InstallationHandler) SetupCallback(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.UserFromContext(r.Context())
	if err != nil {
		// サインイン後に同じコールバックへ戻す
		login := signInPath + "?next=" + url.QueryEscape(r.URL.RequestURI())
		http.Redirect(w, r, h.baseURL+login, http.StatusSeeOther)
		return
	}

	q := r.URL.Query()
	result, err := h.service.HandleSetup(r.Context(), user, q.Get("installation_id"), q.Get("setup_action"))
	if err != nil {
		slog.Error("installation setup failed",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
		result = installation.SetupFailed
	}

	flag := "installation_error"
	switch result {
	case installation.SetupInstalled:
		flag = "installation_success"
	case installation.SetupUpdated:
		flag = "installation_updated"
	}
	http.Redirect(w, r, h.baseURL+defaultLandingPath+"?"+flag+"=true", http.StatusSeeOther)
}
