// Package invitation は招待キーの使用処理を提供する。
package invitation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hitoshi/cyclone/internal/model"
	"github.com/hitoshi/cyclone/internal/repository"
)

// Service は招待キーのサービス層。
type Service struct {
	invitationRepo repository.InvitationRepository
	now            func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(invitationRepo repository.InvitationRepository) *Service {
	return &Service{invitationRepo: invitationRepo, now: time.Now}
}

// Claim は招待キーを使用済みにする。
// キーが空、存在しない、または使用済みの場合はINVITATION_INVALIDを返す。
func (s *Service) Claim(ctx context.Context, key string) (*model.Invitation, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, model.NewInvitationInvalidError()
	}

	inv, err := s.invitationRepo.Claim(ctx, key, s.now().UTC())
	if err != nil {
		return nil, fmt.Errorf("招待キーの使用に失敗しました: %w", err)
	}
	if inv == nil {
		slog.Info("invitation claim rejected")
		return nil, model.NewInvitationInvalidError()
	}

	slog.Info("invitation claimed", slog.Int64("invitation_id", inv.ID))
	return inv, nil
}
