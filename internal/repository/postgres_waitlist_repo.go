package repository

import (
	"context"
	"fmt"

	"github.com/hitoshi/cyclone/internal/model"
	"github.com/hitoshi/cyclone/internal/store"
)

// PostgresWaitlistRepo はPostgreSQLを使用したウェイトリストリポジトリ。
type PostgresWaitlistRepo struct {
	gw *store.Gateway
}

// NewPostgresWaitlistRepo はPostgresWaitlistRepoを生成する。
func NewPostgresWaitlistRepo(gw *store.Gateway) *PostgresWaitlistRepo {
	return &PostgresWaitlistRepo{gw: gw}
}

// Create はウェイトリストに登録する。
func (r *PostgresWaitlistRepo) Create(ctx context.Context, entry *model.WaitlistEntry) error {
	row, err := r.gw.Insert(ctx, store.TableWaitlist, store.Row{
		"email": entry.Email,
		"role":  entry.Role,
	})
	if err != nil {
		return fmt.Errorf("failed to add to waitlist: %w", err)
	}

	rr := newRowReader(store.TableWaitlist, row)
	entry.ID = rr.int64("id")
	entry.CreatedAt = rr.time("created_at")
	return rr.err
}

// compile-time interface check
var _ WaitlistRepository = (*PostgresWaitlistRepo)(nil)
