package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hitoshi/cyclone/internal/model"
	"github.com/hitoshi/cyclone/internal/store"
)

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
// ユーザーの参照はセッション権限、作成・更新は管理者権限で実行する。
type PostgresUserRepo struct {
	admin  *store.Gateway
	reader *store.Gateway
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db store.Querier) *PostgresUserRepo {
	return &PostgresUserRepo{
		admin:  store.NewGateway(db, store.ScopeAdmin),
		reader: store.NewGateway(db, store.ScopeSession),
	}
}

func userFromRow(row store.Row) (*model.User, error) {
	r := newRowReader(store.TableUsers, row)
	user := &model.User{
		ID:        r.str("id"),
		Email:     r.str("email"),
		Name:      r.str("name"),
		CreatedAt: r.time("created_at"),
		UpdatedAt: r.time("updated_at"),
	}
	return user, r.err
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	row, err := r.reader.SelectSingle(ctx, store.Query{
		Table:   store.TableUsers,
		Filters: []store.Filter{store.Eq("id", id)},
	})
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by ID: %w", err)
	}
	return userFromRow(row)
}

// CreateWithIdentity はユーザーとidentityを同一トランザクションで作成する。
func (r *PostgresUserRepo) CreateWithIdentity(ctx context.Context, user *model.User, identity *model.Identity) error {
	return r.admin.InTx(ctx, func(tx *store.Gateway) error {
		_, err := tx.Insert(ctx, store.TableUsers, store.Row{
			"id":         user.ID,
			"email":      user.Email,
			"name":       user.Name,
			"created_at": user.CreatedAt,
			"updated_at": user.UpdatedAt,
		})
		if err != nil {
			return fmt.Errorf("failed to insert user: %w", err)
		}

		_, err = tx.Insert(ctx, store.TableIdentities, store.Row{
			"id":               identity.ID,
			"user_id":          identity.UserID,
			"provider":         identity.Provider,
			"provider_user_id": identity.ProviderUserID,
			"created_at":       identity.CreatedAt,
		})
		if err != nil {
			return fmt.Errorf("failed to insert identity: %w", err)
		}
		return nil
	})
}

// UpdateProfile はIdPから取得したメールアドレスと表示名でユーザーを更新する。
func (r *PostgresUserRepo) UpdateProfile(ctx context.Context, id, email, name string) error {
	rows, err := r.admin.Update(ctx, store.TableUsers,
		store.Row{"email": email, "name": name, "updated_at": time.Now()},
		store.Eq("id", id),
	)
	if err != nil {
		return fmt.Errorf("failed to update user profile: %w", err)
	}
	if len(rows) == 0 {
		return fmt.Errorf("user not found: %s", id)
	}
	return nil
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
