// Package access は User → Installation → Organization → Repository の
// 所有チェーンに基づくアクセス判定を提供する。
//
// すべての操作は呼び出し元のユーザーを明示的に受け取り、読み取りのみを行う。
package access

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hitoshi/cyclone/internal/model"
	"github.com/hitoshi/cyclone/internal/repository"
)

// DenialRecorder はアクセス拒否を記録するインターフェース。
type DenialRecorder interface {
	RecordAccessDenied(resource string)
}

// Resolver は所有チェーンを辿ってアクセス可否を判定する。
type Resolver struct {
	installations repository.InstallationRepository
	orgs          repository.OrganizationRepository
	repos         repository.LinkedRepositoryRepository
	denials       DenialRecorder
}

// NewResolver はResolverを生成する。denialsはnilでもよい。
func NewResolver(
	installations repository.InstallationRepository,
	orgs repository.OrganizationRepository,
	repos repository.LinkedRepositoryRepository,
	denials DenialRecorder,
) *Resolver {
	return &Resolver{
		installations: installations,
		orgs:          orgs,
		repos:         repos,
		denials:       denials,
	}
}

// ResolveInstallationForUser はユーザーのインストールを返す。
// 複数ある場合は最も新しいものを使う。
func (r *Resolver) ResolveInstallationForUser(ctx context.Context, user *model.User) (*model.Installation, error) {
	if user == nil {
		return nil, model.NewNotAuthenticatedError()
	}

	insts, err := r.installations.ListByUser(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve installation: %w", err)
	}
	if len(insts) == 0 {
		return nil, model.NewInstallationNotFoundError()
	}
	if len(insts) > 1 {
		slog.Info("multiple installations, using most recent",
			slog.String("user_id", user.ID),
			slog.Int64("installation_row_id", insts[0].ID),
			slog.Int("count", len(insts)),
		)
	}
	return insts[0], nil
}

// OwnedOrganizationFilter はユーザーの所有組織を表す書き込み条件を返す。
// UpdateOwned/DeleteOwnedに渡し、所有判定と書き込みを1ステートメントで行う。
func (r *Resolver) OwnedOrganizationFilter(ctx context.Context, user *model.User) (repository.OwnedOrganizations, error) {
	inst, err := r.ResolveInstallationForUser(ctx, user)
	if err != nil {
		return repository.OwnedOrganizations{}, err
	}
	return repository.OwnedOrganizations{InstallationID: inst.ID}, nil
}

// ResolveOrganizationsForUser はユーザーのインストールに属する組織を返す。
// インストールが無いユーザーには空の集合を返す。
func (r *Resolver) ResolveOrganizationsForUser(ctx context.Context, user *model.User) ([]*model.Organization, error) {
	inst, err := r.ResolveInstallationForUser(ctx, user)
	if model.HasCode(err, model.ErrCodeInstallationNotFound) {
		return []*model.Organization{}, nil
	}
	if err != nil {
		return nil, err
	}

	orgs, err := r.orgs.ListByInstallation(ctx, inst.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve organizations: %w", err)
	}
	return orgs, nil
}

// AuthorizeOrganizationAccess はorganizationIDの組織がユーザーの所有であれば返す。
// 数値として解釈できないIDと所有外の組織はどちらもアクセス拒否になる。
func (r *Resolver) AuthorizeOrganizationAccess(ctx context.Context, user *model.User, organizationID string) (*model.Organization, error) {
	orgs, err := r.ResolveOrganizationsForUser(ctx, user)
	if err != nil {
		return nil, err
	}

	id, err := model.ParseEntityID(organizationID)
	if err != nil {
		return nil, r.deny(user, "organization", organizationID)
	}

	for _, org := range orgs {
		if org.ID == id {
			return org, nil
		}
	}
	return nil, r.deny(user, "organization", organizationID)
}

// AuthorizeRepositoryAccess はrepositoryIDのリポジトリが所有組織に属していれば返す。
// リポジトリへのアクセス権はその組織へのアクセス権と同一である。
func (r *Resolver) AuthorizeRepositoryAccess(ctx context.Context, user *model.User, repositoryID string) (*model.Repository, error) {
	if user == nil {
		return nil, model.NewNotAuthenticatedError()
	}

	id, err := model.ParseEntityID(repositoryID)
	if err != nil {
		return nil, model.NewRepositoryNotFoundError()
	}

	repo, err := r.repos.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find repository: %w", err)
	}
	if repo == nil {
		return nil, model.NewRepositoryNotFoundError()
	}

	inst, err := r.ResolveInstallationForUser(ctx, user)
	if model.HasCode(err, model.ErrCodeInstallationNotFound) {
		return nil, r.deny(user, "repository", repositoryID)
	}
	if err != nil {
		return nil, err
	}

	org, err := r.orgs.FindByID(ctx, repo.OrganizationID)
	if err != nil {
		return nil, fmt.Errorf("failed to find organization: %w", err)
	}
	if org == nil || org.InstallationID != inst.ID {
		return nil, r.deny(user, "repository", repositoryID)
	}
	return repo, nil
}

func (r *Resolver) deny(user *model.User, resource, id string) error {
	slog.Warn("access denied",
		slog.String("user_id", user.ID),
		slog.String("resource", resource),
		slog.String("resource_id", id),
	)
	if r.denials != nil {
		r.denials.RecordAccessDenied(resource)
	}
	return model.NewAccessDeniedError()
}
