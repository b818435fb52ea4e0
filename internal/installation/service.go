// Package installation はGitHub Appインストールとユーザーの紐付けを扱う。
package installation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hitoshi/cyclone/internal/model"
	"github.com/hitoshi/cyclone/internal/repository"
)

// GitHubのsetup_action
const (
	SetupActionInstall = "install"
	SetupActionUpdate  = "update"
)

// SetupResult はインストールコールバックの処理結果。
type SetupResult int

const (
	// SetupFailed は保存しなかった、または保存に失敗したことを表す。
	SetupFailed SetupResult = iota
	// SetupInstalled はインストールを保存したことを表す。
	SetupInstalled
	// SetupUpdated は既存インストールの設定変更を受け付けたことを表す。保存は行わない。
	SetupUpdated
)

// Service はインストール紐付けのサービス層。
type Service struct {
	installationRepo repository.InstallationRepository
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(installationRepo repository.InstallationRepository) *Service {
	return &Service{installationRepo: installationRepo}
}

// Save はユーザーとinstallation idの紐付けを保存する。同じ紐付けの再保存は既存行を返す。
func (s *Service) Save(ctx context.Context, user *model.User, installationID string) (*model.Installation, error) {
	if user == nil {
		return nil, model.NewNotAuthenticatedError()
	}
	installationID = strings.TrimSpace(installationID)
	if _, err := model.ParseEntityID(installationID); err != nil {
		return nil, model.NewValidationError("Installation id must be a positive number")
	}

	inst, created, err := s.installationRepo.Save(ctx, user.ID, installationID)
	if err != nil {
		return nil, fmt.Errorf("インストールの保存に失敗しました: %w", err)
	}

	slog.Info("installation saved",
		slog.String("user_id", user.ID),
		slog.String("installation_id", installationID),
		slog.Bool("created", created),
	)
	return inst, nil
}

// HandleSetup はGitHub Appのインストール完了コールバックを処理する。
// setup_actionがinstallの場合のみ紐付けを保存する。
func (s *Service) HandleSetup(ctx context.Context, user *model.User, installationID, setupAction string) (SetupResult, error) {
	if user == nil {
		return SetupFailed, model.NewNotAuthenticatedError()
	}

	switch setupAction {
	case SetupActionInstall:
		if _, err := s.Save(ctx, user, installationID); err != nil {
			return SetupFailed, err
		}
		return SetupInstalled, nil
	case SetupActionUpdate:
		return SetupUpdated, nil
	default:
		slog.Warn("unexpected installation setup action",
			slog.String("user_id", user.ID),
			slog.String("setup_action", setupAction),
		)
		return SetupFailed, nil
	}
}

// Current はユーザーの最新のインストールを返す。無い場合はnilを返す。
func (s *Service) Current(ctx context.Context, user *model.User) (*model.Installation, error) {
	if user == nil {
		return nil, model.NewNotAuthenticatedError()
	}
	inst, err := s.installationRepo.FindLatestByUser(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("インストールの取得に失敗しました: %w", err)
	}
	return inst, nil
}
