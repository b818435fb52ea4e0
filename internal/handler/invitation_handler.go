package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/hitoshi/cyclone/internal/model"
)

// InvitationServiceInterface は招待ハンドラーが必要とするサービスインターフェース。
type InvitationServiceInterface interface {
	Claim(ctx context.Context, key string) (*model.Invitation, error)
}

// InvitationHandler は招待キー受諾のHTTPハンドラー。
type InvitationHandler struct {
	service InvitationServiceInterface
	baseURL string
}

// NewInvitationHandler はInvitationHandlerを生成する。
func NewInvitationHandler(service InvitationServiceInterface, baseURL string) *InvitationHandler {
	return &InvitationHandler{
		service: service,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Claim は招待キーを受諾する。
// 無効・使用済みのキーは理由を示さずトップページへリダイレクトする。
// GET /invite?inviteKey=xxx
func (h *InvitationHandler) Claim(w http.ResponseWriter, r *http.Request) {
	inv, err := h.service.Claim(r.Context(), r.URL.Query().Get("inviteKey"))
	if err != nil {
		var apiErr *model.APIError
		if errors.As(err, &apiErr) {
			http.Redirect(w, r, h.baseURL+"/", http.StatusSeeOther)
			return
		}
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, invitationResponse{
		InvitationKey: inv.InvitationKey,
		IsClaimed:     inv.IsClaimed,
		Email:         inv.Email,
		ClaimedAt:     inv.ClaimedAt,
	})
}
