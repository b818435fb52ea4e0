package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/hitoshi/cyclone/internal/model"
	"github.com/hitoshi/cyclone/internal/store"
)

// PostgresOrganizationRepo はPostgreSQLを使用した組織リポジトリ。
type PostgresOrganizationRepo struct {
	gw *store.Gateway
}

// NewPostgresOrganizationRepo はPostgresOrganizationRepoを生成する。
func NewPostgresOrganizationRepo(gw *store.Gateway) *PostgresOrganizationRepo {
	return &PostgresOrganizationRepo{gw: gw}
}

func organizationFromRow(row store.Row) (*model.Organization, error) {
	r := newRowReader(store.TableOrganization, row)
	org := &model.Organization{
		ID:             r.int64("id"),
		Name:           r.str("name"),
		Description:    r.str("description"),
		InstallationID: r.int64("installation_id"),
		CreatedAt:      r.time("created_at"),
	}
	return org, r.err
}

// Create は組織を作成する。ID、CreatedAtは採番された値で更新される。
func (r *PostgresOrganizationRepo) Create(ctx context.Context, org *model.Organization) error {
	row, err := r.gw.Insert(ctx, store.TableOrganization, store.Row{
		"name":            org.Name,
		"description":     org.Description,
		"installation_id": org.InstallationID,
	})
	if err != nil {
		return fmt.Errorf("failed to create organization: %w", err)
	}
	created, err := organizationFromRow(row)
	if err != nil {
		return err
	}
	*org = *created
	return nil
}

// FindByID は指定IDの組織を取得する。見つからない場合はnilを返す。
func (r *PostgresOrganizationRepo) FindByID(ctx context.Context, id int64) (*model.Organization, error) {
	row, err := r.gw.SelectSingle(ctx, store.Query{
		Table:   store.TableOrganization,
		Filters: []store.Filter{store.Eq("id", id)},
	})
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find organization: %w", err)
	}
	return organizationFromRow(row)
}

// ListByInstallation は指定インストールに属する組織を作成順で返す。
func (r *PostgresOrganizationRepo) ListByInstallation(ctx context.Context, installationID int64) ([]*model.Organization, error) {
	rows, err := r.gw.SelectAll(ctx, store.Query{
		Table:   store.TableOrganization,
		Filters: []store.Filter{store.Eq("installation_id", installationID)},
		OrderBy: []store.Order{{Column: "created_at"}, {Column: "id"}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list organizations: %w", err)
	}

	orgs := make([]*model.Organization, 0, len(rows))
	for _, row := range rows {
		org, err := organizationFromRow(row)
		if err != nil {
			return nil, err
		}
		orgs = append(orgs, org)
	}
	return orgs, nil
}

// compile-time interface check
var _ OrganizationRepository = (*PostgresOrganizationRepo)(nil)
