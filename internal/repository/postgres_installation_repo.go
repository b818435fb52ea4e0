package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/hitoshi/cyclone/internal/model"
	"github.com/hitoshi/cyclone/internal/store"
)

// PostgresInstallationRepo はPostgreSQLを使用したインストールリポジトリ。
type PostgresInstallationRepo struct {
	gw *store.Gateway
}

// NewPostgresInstallationRepo はPostgresInstallationRepoを生成する。
func NewPostgresInstallationRepo(gw *store.Gateway) *PostgresInstallationRepo {
	return &PostgresInstallationRepo{gw: gw}
}

// newestFirst は複数インストールがある場合の決定的な並び順。
var newestFirst = []store.Order{
	{Column: "created_at", Desc: true},
	{Column: "id", Desc: true},
}

func installationFromRow(row store.Row) (*model.Installation, error) {
	r := newRowReader(store.TableInstallation, row)
	inst := &model.Installation{
		ID:             r.int64("id"),
		InstallationID: r.str("installation_id"),
		UserID:         r.str("user_id"),
		CreatedAt:      r.time("created_at"),
	}
	return inst, r.err
}

func installationsFromRows(rows []store.Row) ([]*model.Installation, error) {
	result := make([]*model.Installation, 0, len(rows))
	for _, row := range rows {
		inst, err := installationFromRow(row)
		if err != nil {
			return nil, err
		}
		result = append(result, inst)
	}
	return result, nil
}

// ListByUser はユーザーのインストールを新しい順（created_at DESC, id DESC）で返す。
func (r *PostgresInstallationRepo) ListByUser(ctx context.Context, userID string) ([]*model.Installation, error) {
	rows, err := r.gw.SelectAll(ctx, store.Query{
		Table:   store.TableInstallation,
		Filters: []store.Filter{store.Eq("user_id", userID)},
		OrderBy: newestFirst,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list installations: %w", err)
	}
	return installationsFromRows(rows)
}

// FindLatestByUser はユーザーの最新のインストールを返す。見つからない場合はnilを返す。
func (r *PostgresInstallationRepo) FindLatestByUser(ctx context.Context, userID string) (*model.Installation, error) {
	rows, err := r.gw.SelectAll(ctx, store.Query{
		Table:   store.TableInstallation,
		Filters: []store.Filter{store.Eq("user_id", userID)},
		OrderBy: newestFirst,
		Limit:   1,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to find installation: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return installationFromRow(rows[0])
}

// Save はユーザーとinstallation idの紐付けを保存する。
// (user_id, installation_id) の一意制約に衝突した場合は既存行を返す。
func (r *PostgresInstallationRepo) Save(ctx context.Context, userID, installationID string) (*model.Installation, bool, error) {
	row, err := r.gw.InsertOrIgnore(ctx, store.TableInstallation,
		store.Row{"user_id": userID, "installation_id": installationID},
		"user_id", "installation_id",
	)
	if err != nil {
		return nil, false, fmt.Errorf("failed to save installation: %w", err)
	}
	if row != nil {
		inst, err := installationFromRow(row)
		return inst, true, err
	}

	row, err = r.gw.SelectSingle(ctx, store.Query{
		Table: store.TableInstallation,
		Filters: []store.Filter{
			store.Eq("user_id", userID),
			store.Eq("installation_id", installationID),
		},
	})
	if errors.Is(err, store.ErrNotFound) {
		// 衝突後に削除された
		return nil, false, fmt.Errorf("installation %s disappeared after conflict", installationID)
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to find existing installation: %w", err)
	}
	inst, err := installationFromRow(row)
	return inst, false, err
}

// compile-time interface check
var _ InstallationRepository = (*PostgresInstallationRepo)(nil)
