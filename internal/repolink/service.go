// Package repolink は組織へのリポジトリ連携とレビュー設定のドメインロジックを提供する。
package repolink

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hitoshi/cyclone/internal/model"
	"github.com/hitoshi/cyclone/internal/repository"
)

// Authorizer はリポジトリ操作に必要な所有チェーンの判定インターフェース。
// access.Resolverが実装する。
type Authorizer interface {
	ResolveInstallationForUser(ctx context.Context, user *model.User) (*model.Installation, error)
	AuthorizeOrganizationAccess(ctx context.Context, user *model.User, organizationID string) (*model.Organization, error)
	AuthorizeRepositoryAccess(ctx context.Context, user *model.User, repositoryID string) (*model.Repository, error)
	OwnedOrganizationFilter(ctx context.Context, user *model.User) (repository.OwnedOrganizations, error)
}

// RepositoryLister はインストールから見えるリポジトリを列挙するインターフェース。
// githubapp.Bridgeが実装する。
type RepositoryLister interface {
	ListInstallationRepositories(ctx context.Context, installationID string) ([]model.ExternalRepository, error)
}

// Sanitizer は自由記述テキストのサニタイズインターフェース。
type Sanitizer interface {
	Sanitize(text string) string
}

// LinkInput はリポジトリ連携の入力。
type LinkInput struct {
	Name           string
	CustomPrompt   string
	ReviewStrength string // 空の場合はbalanced
	ExternalID     string // GitHub側のrepository id。任意
}

// UpdateInput はリポジトリ設定更新の入力。nilのフィールドは変更しない。
type UpdateInput struct {
	Name           *string
	CustomPrompt   *string
	ReviewStrength *string
}

// Service はリポジトリ連携のサービス層。
type Service struct {
	access    Authorizer
	repoRepo  repository.LinkedRepositoryRepository
	lister    RepositoryLister
	sanitizer Sanitizer
	matchKey  MatchKey
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	access Authorizer,
	repoRepo repository.LinkedRepositoryRepository,
	lister RepositoryLister,
	sanitizer Sanitizer,
	matchKey MatchKey,
) *Service {
	return &Service{
		access:    access,
		repoRepo:  repoRepo,
		lister:    lister,
		sanitizer: sanitizer,
		matchKey:  matchKey,
	}
}

// List は組織に連携されたリポジトリを返す。
func (s *Service) List(ctx context.Context, user *model.User, organizationID string) ([]*model.Repository, error) {
	org, err := s.access.AuthorizeOrganizationAccess(ctx, user, organizationID)
	if err != nil {
		return nil, err
	}

	repos, err := s.repoRepo.ListByOrganization(ctx, org.ID)
	if err != nil {
		return nil, fmt.Errorf("リポジトリ一覧の取得に失敗しました: %w", err)
	}
	return repos, nil
}

// ListAvailable はインストールから見えるリポジトリのうち、組織に未連携のものを返す。
func (s *Service) ListAvailable(ctx context.Context, user *model.User, organizationID string) ([]model.ExternalRepository, error) {
	org, err := s.access.AuthorizeOrganizationAccess(ctx, user, organizationID)
	if err != nil {
		return nil, err
	}
	inst, err := s.access.ResolveInstallationForUser(ctx, user)
	if err != nil {
		return nil, err
	}

	external, err := s.lister.ListInstallationRepositories(ctx, inst.InstallationID)
	if err != nil {
		return nil, err
	}

	linked, err := s.repoRepo.ListByOrganization(ctx, org.ID)
	if err != nil {
		return nil, fmt.Errorf("リポジトリ一覧の取得に失敗しました: %w", err)
	}

	return FilterAvailable(external, linked, s.matchKey), nil
}

// Link は組織にリポジトリを連携する。
func (s *Service) Link(ctx context.Context, user *model.User, organizationID string, in LinkInput) (*model.Repository, error) {
	org, err := s.access.AuthorizeOrganizationAccess(ctx, user, organizationID)
	if err != nil {
		return nil, err
	}

	name := s.sanitizer.Sanitize(in.Name)
	if name == "" {
		return nil, model.NewValidationError("Repository name is required")
	}
	strength, err := model.ParseReviewStrength(in.ReviewStrength)
	if err != nil {
		return nil, model.NewValidationError("Review strength must be one of balanced, thorough, strict")
	}

	if err := s.ensureNameAvailable(ctx, org.ID, name, 0); err != nil {
		return nil, err
	}

	repo := &model.Repository{
		Name:           name,
		CustomPrompt:   s.sanitizer.Sanitize(in.CustomPrompt),
		ReviewStrength: &strength,
		OrganizationID: org.ID,
	}
	if in.ExternalID != "" {
		externalID := in.ExternalID
		repo.ExternalID = &externalID
	}
	if err := s.repoRepo.Create(ctx, repo); err != nil {
		return nil, fmt.Errorf("リポジトリの連携に失敗しました: %w", err)
	}

	slog.Info("repository linked",
		slog.String("user_id", user.ID),
		slog.Int64("organization_id", org.ID),
		slog.Int64("repository_id", repo.ID),
	)
	return repo, nil
}

// Update はリポジトリの名前とレビュー設定を更新する。
// 所有判定は更新ステートメントの条件にも含めるため、判定後に所有関係が変わった場合は未検出になる。
func (s *Service) Update(ctx context.Context, user *model.User, repositoryID string, in UpdateInput) (*model.Repository, error) {
	current, err := s.access.AuthorizeRepositoryAccess(ctx, user, repositoryID)
	if err != nil {
		return nil, err
	}

	var update repository.RepositoryUpdate
	if in.Name != nil {
		name := s.sanitizer.Sanitize(*in.Name)
		if name == "" {
			return nil, model.NewValidationError("Repository name is required")
		}
		if name != current.Name {
			if err := s.ensureNameAvailable(ctx, current.OrganizationID, name, current.ID); err != nil {
				return nil, err
			}
		}
		update.Name = &name
	}
	if in.CustomPrompt != nil {
		prompt := s.sanitizer.Sanitize(*in.CustomPrompt)
		update.CustomPrompt = &prompt
	}
	if in.ReviewStrength != nil {
		strength, err := model.ParseReviewStrength(*in.ReviewStrength)
		if err != nil {
			return nil, model.NewValidationError("Review strength must be one of balanced, thorough, strict")
		}
		update.ReviewStrength = &strength
	}
	if update.IsEmpty() {
		return current, nil
	}

	owned, err := s.access.OwnedOrganizationFilter(ctx, user)
	if err != nil {
		return nil, err
	}
	updated, err := s.repoRepo.UpdateOwned(ctx, current.ID, owned, update)
	if err != nil {
		return nil, fmt.Errorf("リポジトリの更新に失敗しました: %w", err)
	}
	if updated == nil {
		return nil, model.NewRepositoryNotFoundError()
	}
	return updated, nil
}

// ensureNameAvailable は組織内にexceptID以外で同名の連携済みリポジトリが無いことを確認する。
func (s *Service) ensureNameAvailable(ctx context.Context, organizationID int64, name string, exceptID int64) error {
	linked, err := s.repoRepo.ListByOrganization(ctx, organizationID)
	if err != nil {
		return fmt.Errorf("リポジトリ一覧の取得に失敗しました: %w", err)
	}
	for _, r := range linked {
		if r.Name == name && r.ID != exceptID {
			return model.NewValidationError("Repository is already linked to this organization")
		}
	}
	return nil
}

// Delete はリポジトリの連携を解除する。
func (s *Service) Delete(ctx context.Context, user *model.User, repositoryID string) error {
	current, err := s.access.AuthorizeRepositoryAccess(ctx, user, repositoryID)
	if err != nil {
		return err
	}
	owned, err := s.access.OwnedOrganizationFilter(ctx, user)
	if err != nil {
		return err
	}

	deleted, err := s.repoRepo.DeleteOwned(ctx, current.ID, owned)
	if err != nil {
		return fmt.Errorf("リポジトリの削除に失敗しました: %w", err)
	}
	if !deleted {
		return model.NewRepositoryNotFoundError()
	}

	slog.Info("repository unlinked",
		slog.String("user_id", user.ID),
		slog.Int64("repository_id", current.ID),
	)
	return nil
}
