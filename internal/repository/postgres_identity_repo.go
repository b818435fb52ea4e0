package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/hitoshi/cyclone/internal/model"
	"github.com/hitoshi/cyclone/internal/store"
)

// PostgresIdentityRepo はPostgreSQLを使用したidentityリポジトリ。
type PostgresIdentityRepo struct {
	gw *store.Gateway
}

// NewPostgresIdentityRepo はPostgresIdentityRepoを生成する。
func NewPostgresIdentityRepo(gw *store.Gateway) *PostgresIdentityRepo {
	return &PostgresIdentityRepo{gw: gw}
}

// FindByProviderAndProviderUserID はproviderとprovider_user_idでidentityを検索する。
// 見つからない場合はnilを返す。
func (r *PostgresIdentityRepo) FindByProviderAndProviderUserID(ctx context.Context, provider, providerUserID string) (*model.Identity, error) {
	row, err := r.gw.SelectSingle(ctx, store.Query{
		Table: store.TableIdentities,
		Filters: []store.Filter{
			store.Eq("provider", provider),
			store.Eq("provider_user_id", providerUserID),
		},
	})
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find identity: %w", err)
	}

	rr := newRowReader(store.TableIdentities, row)
	identity := &model.Identity{
		ID:             rr.str("id"),
		UserID:         rr.str("user_id"),
		Provider:       rr.str("provider"),
		ProviderUserID: rr.str("provider_user_id"),
		CreatedAt:      rr.time("created_at"),
	}
	if rr.err != nil {
		return nil, rr.err
	}
	return identity, nil
}

// compile-time interface check
var _ IdentityRepository = (*PostgresIdentityRepo)(nil)
