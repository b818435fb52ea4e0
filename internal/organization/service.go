// Package organization は組織管理のドメインロジックを提供する。
package organization

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hitoshi/cyclone/internal/model"
	"github.com/hitoshi/cyclone/internal/repository"
)

// Authorizer は組織操作に必要な所有チェーンの判定インターフェース。
// access.Resolverが実装する。
type Authorizer interface {
	ResolveInstallationForUser(ctx context.Context, user *model.User) (*model.Installation, error)
	ResolveOrganizationsForUser(ctx context.Context, user *model.User) ([]*model.Organization, error)
	AuthorizeOrganizationAccess(ctx context.Context, user *model.User, organizationID string) (*model.Organization, error)
}

// Sanitizer は自由記述テキストのサニタイズインターフェース。
type Sanitizer interface {
	Sanitize(text string) string
}

// Service は組織管理のサービス層。
type Service struct {
	access    Authorizer
	orgRepo   repository.OrganizationRepository
	sanitizer Sanitizer
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(access Authorizer, orgRepo repository.OrganizationRepository, sanitizer Sanitizer) *Service {
	return &Service{
		access:    access,
		orgRepo:   orgRepo,
		sanitizer: sanitizer,
	}
}

// Create はユーザーのインストールに属する組織を作成する。
// インストールが無い場合は組織を作成せずにエラーを返す。
func (s *Service) Create(ctx context.Context, user *model.User, name, description string) (*model.Organization, error) {
	inst, err := s.access.ResolveInstallationForUser(ctx, user)
	if model.HasCode(err, model.ErrCodeInstallationNotFound) {
		return nil, model.NewInstallationRequiredError()
	}
	if err != nil {
		return nil, err
	}

	name = s.sanitizer.Sanitize(name)
	if name == "" {
		return nil, model.NewValidationError("Organization name is required")
	}

	org := &model.Organization{
		Name:           name,
		Description:    s.sanitizer.Sanitize(description),
		InstallationID: inst.ID,
	}
	if err := s.orgRepo.Create(ctx, org); err != nil {
		return nil, fmt.Errorf("組織の作成に失敗しました: %w", err)
	}

	slog.Info("organization created",
		slog.String("user_id", user.ID),
		slog.Int64("organization_id", org.ID),
		slog.Int64("installation_id", inst.ID),
	)
	return org, nil
}

// List はユーザーの組織一覧を返す。インストールが無い場合は空の一覧になる。
func (s *Service) List(ctx context.Context, user *model.User) ([]*model.Organization, error) {
	return s.access.ResolveOrganizationsForUser(ctx, user)
}

// Get は指定IDの組織を返す。
// 他ユーザーの組織の存在を開示しないため、アクセス拒否は未検出として返す。
func (s *Service) Get(ctx context.Context, user *model.User, organizationID string) (*model.Organization, error) {
	org, err := s.access.AuthorizeOrganizationAccess(ctx, user, organizationID)
	if model.HasCode(err, model.ErrCodeAccessDenied) {
		return nil, model.NewOrganizationNotFoundError()
	}
	if err != nil {
		return nil, err
	}
	return org, nil
}
