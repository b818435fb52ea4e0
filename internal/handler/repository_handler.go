package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/cyclone/internal/middleware"
	"github.com/hitoshi/cyclone/internal/model"
	"github.com/hitoshi/cyclone/internal/repolink"
)

// RepositoryServiceInterface はリポジトリハンドラーが必要とするサービスインターフェース。
type RepositoryServiceInterface interface {
	List(ctx context.Context, user *model.User, organizationID string) ([]*model.Repository, error)
	ListAvailable(ctx context.Context, user *model.User, organizationID string) ([]model.ExternalRepository, error)
	Link(ctx context.Context, user *model.User, organizationID string, in repolink.LinkInput) (*model.Repository, error)
	Update(ctx context.Context, user *model.User, repositoryID string, in repolink.UpdateInput) (*model.Repository, error)
	Delete(ctx context.Context, user *model.User, repositoryID string) error
}

// RepositoryHandler はリポジトリ連携のHTTPハンドラー。
type RepositoryHandler struct {
	service   RepositoryServiceInterface
	validator *requestValidator
}

// NewRepositoryHandler はRepositoryHandlerを生成する。
func NewRepositoryHandler(service RepositoryServiceInterface) *RepositoryHandler {
	return &RepositoryHandler{
		service:   service,
		validator: newRequestValidator(),
	}
}

// linkRepositoryRequest はリポジトリ連携リクエストのボディ。
type linkRepositoryRequest struct {
	Name           string `json:"name" validate:"required,max=100"`
	CustomPrompt   string `json:"custom_prompt" validate:"max=10000"`
	ReviewStrength string `json:"review_strength" validate:"omitempty,oneof=balanced thorough strict"`
	ExternalID     string `json:"external_id" validate:"omitempty,numeric"`
}

// updateRepositoryRequest はリポジトリ設定更新リクエストのボディ。省略したフィールドは変更しない。
type updateRepositoryRequest struct {
	Name           *string `json:"name" validate:"omitempty,max=100"`
	CustomPrompt   *string `json:"custom_prompt" validate:"omitempty,max=10000"`
	ReviewStrength *string `json:"review_strength" validate:"omitempty,oneof=balanced thorough strict"`
}

// List は組織に連携されたリポジトリ一覧を返す。
// GET /api/organizations/{id}/repositories
func (h *RepositoryHandler) List(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.UserFromContext(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	repos, err := h.service.List(r.Context(), user, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRepositoryResponses(repos))
}

// ListAvailable はGitHub App経由で見えるリポジトリのうち未連携のものを返す。
// GET /api/organizations/{id}/available-repositories
func (h *RepositoryHandler) ListAvailable(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.UserFromContext(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	repos, err := h.service.ListAvailable(r.Context(), user, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toExternalRepositoryResponses(repos))
}

// Link は組織にリポジトリを連携する。
// POST /api/organizations/{id}/repositories
func (h *RepositoryHandler) Link(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.UserFromContext(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	var req linkRepositoryRequest
	if apiErr := h.validator.decodeAndValidate(w, r, &req); apiErr != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, apiErr)
		return
	}

	repo, err := h.service.Link(r.Context(), user, chi.URLParam(r, "id"), repolink.LinkInput{
		Name:           req.Name,
		CustomPrompt:   req.CustomPrompt,
		ReviewStrength: req.ReviewStrength,
		ExternalID:     req.ExternalID,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toRepositoryResponse(repo))
}

// Update はリポジトリの名前とレビュー設定を更新する。
// PATCH /api/repositories/{id}
func (h *RepositoryHandler) Update(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.UserFromContext(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	var req updateRepositoryRequest
	if apiErr := h.validator.decodeAndValidate(w, r, &req); apiErr != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, apiErr)
		return
	}

	repo, err := h.service.Update(r.Context(), user, chi.URLParam(r, "id"), repolink.UpdateInput{
		Name:           req.Name,
		CustomPrompt:   req.CustomPrompt,
		ReviewStrength: req.ReviewStrength,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRepositoryResponse(repo))
}

// Delete はリポジトリの連携を解除する。
// DELETE /api/repositories/{id}
func (h *RepositoryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.UserFromContext(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	if err := h.service.Delete(r.Context(), user, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
