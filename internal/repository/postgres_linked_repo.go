package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hitoshi/cyclone/internal/model"
	"github.com/hitoshi/cyclone/internal/store"
)

// PostgresLinkedRepo はPostgreSQLを使用した連携リポジトリのリポジトリ。
type PostgresLinkedRepo struct {
	gw *store.Gateway
}

// NewPostgresLinkedRepo はPostgresLinkedRepoを生成する。
func NewPostgresLinkedRepo(gw *store.Gateway) *PostgresLinkedRepo {
	return &PostgresLinkedRepo{gw: gw}
}

func repositoryFromRow(row store.Row) (*model.Repository, error) {
	r := newRowReader(store.TableRepository, row)
	repo := &model.Repository{
		ID:             r.int64("id"),
		Name:           r.str("name"),
		CustomPrompt:   r.str("custom_prompt"),
		ExternalID:     r.nullStr("external_id"),
		OrganizationID: r.int64("organization_id"),
		CreatedAt:      r.time("created_at"),
		UpdatedAt:      r.time("updated_at"),
	}
	if s := r.nullStr("review_strength"); s != nil {
		strength, err := model.ParseReviewStrength(*s)
		r.keep(err)
		repo.ReviewStrength = &strength
	}
	return repo, r.err
}

func repositoriesFromRows(rows []store.Row) ([]*model.Repository, error) {
	repos := make([]*model.Repository, 0, len(rows))
	for _, row := range rows {
		repo, err := repositoryFromRow(row)
		if err != nil {
			return nil, err
		}
		repos = append(repos, repo)
	}
	return repos, nil
}

// FindByID は指定IDのリポジトリを取得する。見つからない場合はnilを返す。
func (r *PostgresLinkedRepo) FindByID(ctx context.Context, id int64) (*model.Repository, error) {
	row, err := r.gw.SelectSingle(ctx, store.Query{
		Table:   store.TableRepository,
		Filters: []store.Filter{store.Eq("id", id)},
	})
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find repository: %w", err)
	}
	return repositoryFromRow(row)
}

// ListByOrganization は組織に連携されたリポジトリを作成順で返す。
func (r *PostgresLinkedRepo) ListByOrganization(ctx context.Context, organizationID int64) ([]*model.Repository, error) {
	rows, err := r.gw.SelectAll(ctx, store.Query{
		Table:   store.TableRepository,
		Filters: []store.Filter{store.Eq("organization_id", organizationID)},
		OrderBy: []store.Order{{Column: "created_at"}, {Column: "id"}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list repositories: %w", err)
	}
	return repositoriesFromRows(rows)
}

// Create はリポジトリを連携する。
func (r *PostgresLinkedRepo) Create(ctx context.Context, repo *model.Repository) error {
	values := store.Row{
		"name":            repo.Name,
		"custom_prompt":   repo.CustomPrompt,
		"organization_id": repo.OrganizationID,
		"external_id":     nil,
		"review_strength": nil,
	}
	if repo.ReviewStrength != nil {
		values["review_strength"] = string(*repo.ReviewStrength)
	}
	if repo.ExternalID != nil {
		values["external_id"] = *repo.ExternalID
	}

	row, err := r.gw.Insert(ctx, store.TableRepository, values)
	if err != nil {
		return fmt.Errorf("failed to create repository: %w", err)
	}
	created, err := repositoryFromRow(row)
	if err != nil {
		return err
	}
	*repo = *created
	return nil
}

// UpdateOwned はリポジトリの組織がownedに含まれる場合に限り更新する。
// 所有判定と更新は1ステートメントで行う。
func (r *PostgresLinkedRepo) UpdateOwned(ctx context.Context, id int64, owned OwnedOrganizations, update RepositoryUpdate) (*model.Repository, error) {
	set := store.Row{"updated_at": time.Now()}
	if update.Name != nil {
		set["name"] = *update.Name
	}
	if update.CustomPrompt != nil {
		set["custom_prompt"] = *update.CustomPrompt
	}
	if update.ReviewStrength != nil {
		set["review_strength"] = string(*update.ReviewStrength)
	}

	rows, err := r.gw.Update(ctx, store.TableRepository, set, store.Eq("id", id), owned.Filter())
	if err != nil {
		return nil, fmt.Errorf("failed to update repository: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return repositoryFromRow(rows[0])
}

// DeleteOwned はリポジトリの組織がownedに含まれる場合に限り削除する。
func (r *PostgresLinkedRepo) DeleteOwned(ctx context.Context, id int64, owned OwnedOrganizations) (bool, error) {
	rows, err := r.gw.Delete(ctx, store.TableRepository, store.Eq("id", id), owned.Filter())
	if err != nil {
		return false, fmt.Errorf("failed to delete repository: %w", err)
	}
	return len(rows) > 0, nil
}

// compile-time interface check
var _ LinkedRepositoryRepository = (*PostgresLinkedRepo)(nil)
