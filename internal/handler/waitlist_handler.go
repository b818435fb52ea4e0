package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/cyclone/internal/middleware"
	"github.com/hitoshi/cyclone/internal/model"
)

// WaitlistServiceInterface はウェイトリストハンドラーが必要とするサービスインターフェース。
type WaitlistServiceInterface interface {
	Join(ctx context.Context, email, role string) (*model.WaitlistEntry, error)
}

// WaitlistHandler はウェイトリスト登録のHTTPハンドラー。セッションを必要としない。
type WaitlistHandler struct {
	service   WaitlistServiceInterface
	validator *requestValidator
}

// NewWaitlistHandler はWaitlistHandlerを生成する。
func NewWaitlistHandler(service WaitlistServiceInterface) *WaitlistHandler {
	return &WaitlistHandler{
		service:   service,
		validator: newRequestValidator(),
	}
}

// joinWaitlistRequest はウェイトリスト登録リクエストのボディ。
// 値の検証はサービス層で行う。
type joinWaitlistRequest struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

// Join はウェイトリストに登録する。
// POST /api/waitlist
func (h *WaitlistHandler) Join(w http.ResponseWriter, r *http.Request) {
	var req joinWaitlistRequest
	if apiErr := h.validator.decodeAndValidate(w, r, &req); apiErr != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, apiErr)
		return
	}

	entry, err := h.service.Join(r.Context(), req.Email, req.Role)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, waitlistResponse{
		Email:     entry.Email,
		Role:      entry.Role,
		CreatedAt: entry.CreatedAt,
	})
}
