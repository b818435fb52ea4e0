package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/hitoshi/cyclone/internal/model"
	"github.com/hitoshi/cyclone/internal/store"
)

// PostgresInvitationRepo はPostgreSQLを使用した招待リポジトリ。
type PostgresInvitationRepo struct {
	gw *store.Gateway
}

// NewPostgresInvitationRepo はPostgresInvitationRepoを生成する。
func NewPostgresInvitationRepo(gw *store.Gateway) *PostgresInvitationRepo {
	return &PostgresInvitationRepo{gw: gw}
}

// Claim は未使用の招待キーを使用済みにし、更新後の招待を返す。
// is_claimed = false を条件にした1回の更新で行うため、同じキーで成功するのは1回だけ。
func (r *PostgresInvitationRepo) Claim(ctx context.Context, key string, now time.Time) (*model.Invitation, error) {
	rows, err := r.gw.Update(ctx, store.TableInvitation,
		store.Row{"is_claimed": true, "claimed_at": now},
		store.Eq("invitation_key", key),
		store.Eq("is_claimed", false),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to claim invitation: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	rr := newRowReader(store.TableInvitation, rows[0])
	inv := &model.Invitation{
		ID:            rr.int64("id"),
		InvitationKey: rr.str("invitation_key"),
		IsClaimed:     rr.bool("is_claimed"),
		Email:         rr.nullStr("email"),
		CreatedAt:     rr.time("created_at"),
		ClaimedAt:     rr.nullTime("claimed_at"),
	}
	if rr.err != nil {
		return nil, rr.err
	}
	return inv, nil
}

// compile-time interface check
var _ InvitationRepository = (*PostgresInvitationRepo)(nil)
