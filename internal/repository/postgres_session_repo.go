package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hitoshi/cyclone/internal/model"
	"github.com/hitoshi/cyclone/internal/store"
)

// PostgresSessionRepo はPostgreSQLを使用したセッションリポジトリ。
// セッションの参照はセッション権限、作成・削除は管理者権限で実行する。
type PostgresSessionRepo struct {
	admin  *store.Gateway
	reader *store.Gateway
}

// NewPostgresSessionRepo はPostgresSessionRepoを生成する。
func NewPostgresSessionRepo(db store.Querier) *PostgresSessionRepo {
	return &PostgresSessionRepo{
		admin:  store.NewGateway(db, store.ScopeAdmin),
		reader: store.NewGateway(db, store.ScopeSession),
	}
}

// Create はセッションを作成する。
func (r *PostgresSessionRepo) Create(ctx context.Context, session *model.Session) error {
	_, err := r.admin.Insert(ctx, store.TableSessions, store.Row{
		"id":         session.ID,
		"user_id":    session.UserID,
		"expires_at": session.ExpiresAt,
		"created_at": session.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
func (r *PostgresSessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	row, err := r.reader.SelectSingle(ctx, store.Query{
		Table:   store.TableSessions,
		Filters: []store.Filter{store.Eq("id", id), store.Gt("expires_at", time.Now())},
	})
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}

	rr := newRowReader(store.TableSessions, row)
	session := &model.Session{
		ID:        rr.str("id"),
		UserID:    rr.str("user_id"),
		ExpiresAt: rr.time("expires_at"),
		CreatedAt: rr.time("created_at"),
	}
	if rr.err != nil {
		return nil, rr.err
	}
	return session, nil
}

// DeleteByID は指定IDのセッションを削除する。
func (r *PostgresSessionRepo) DeleteByID(ctx context.Context, id string) error {
	if _, err := r.admin.Delete(ctx, store.TableSessions, store.Eq("id", id)); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// DeleteExpired はbefore時点で期限切れのセッションを削除し、削除件数を返す。
func (r *PostgresSessionRepo) DeleteExpired(ctx context.Context, before time.Time) (int, error) {
	rows, err := r.admin.Delete(ctx, store.TableSessions, store.Lt("expires_at", before))
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}
	return len(rows), nil
}

// compile-time interface check
var _ SessionRepository = (*PostgresSessionRepo)(nil)
