package store_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/hitoshi/cyclone/internal/database"
	"github.com/hitoshi/cyclone/internal/store"
)

// startPostgres はテスト用のPostgreSQLコンテナを起動し、マイグレーション済みのDBを返す。
// Dockerが利用できない環境ではスキップする。
func startPostgres(t *testing.T) *sql.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("short モードのためスキップ")
	}

	ctx := context.Background()
	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("cyclone"),
		postgres.WithUsername("cyclone"),
		postgres.WithPassword("cyclone"),
		postgres.BasicWaitStrategies(),
	)
	if err != nil {
		t.Skipf("PostgreSQLコンテナを起動できません（スキップ）: %v", err)
	}
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	require.NoError(t, database.RunMigrations(dsn))

	db, err := database.Open(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func insertUser(t *testing.T, gw *store.Gateway, email string) string {
	t.Helper()
	row, err := gw.Insert(context.Background(), store.TableUsers, store.Row{"email": email, "name": "Test"})
	require.NoError(t, err)
	id, err := row.String("id")
	require.NoError(t, err)
	return id
}

func TestGateway_Integration(t *testing.T) {
	db := startPostgres(t)
	ctx := context.Background()
	gw := store.NewGateway(db, store.ScopeAdmin)

	userID := insertUser(t, gw, "owner@example.com")

	t.Run("InsertOrIgnoreは重複時にnilを返す", func(t *testing.T) {
		values := store.Row{"installation_id": "100", "user_id": userID}
		first, err := gw.InsertOrIgnore(ctx, store.TableInstallation, values, "user_id", "installation_id")
		require.NoError(t, err)
		require.NotNil(t, first)

		second, err := gw.InsertOrIgnore(ctx, store.TableInstallation, values, "user_id", "installation_id")
		require.NoError(t, err)
		assert.Nil(t, second)

		rows, err := gw.SelectAll(ctx, store.Query{
			Table:   store.TableInstallation,
			Filters: []store.Filter{store.Eq("user_id", userID)},
		})
		require.NoError(t, err)
		assert.Len(t, rows, 1)
	})

	t.Run("SelectSingleは0件と複数件を区別する", func(t *testing.T) {
		_, err := gw.SelectSingle(ctx, store.Query{
			Table:   store.TableInstallation,
			Filters: []store.Filter{store.Eq("installation_id", "missing")},
		})
		assert.True(t, errors.Is(err, store.ErrNotFound))

		_, err = gw.InsertOrIgnore(ctx, store.TableInstallation,
			store.Row{"installation_id": "200", "user_id": userID}, "user_id", "installation_id")
		require.NoError(t, err)

		_, err = gw.SelectSingle(ctx, store.Query{
			Table:   store.TableInstallation,
			Filters: []store.Filter{store.Eq("user_id", userID)},
		})
		assert.True(t, errors.Is(err, store.ErrMultipleRows))
	})

	t.Run("条件付き更新は一度だけ成功する", func(t *testing.T) {
		_, err := gw.Insert(ctx, store.TableInvitation, store.Row{"invitation_key": "k-1"})
		require.NoError(t, err)

		claim := func() ([]store.Row, error) {
			return gw.Update(ctx, store.TableInvitation,
				store.Row{"is_claimed": true, "claimed_at": time.Now()},
				store.Eq("invitation_key", "k-1"), store.Eq("is_claimed", false))
		}

		rows, err := claim()
		require.NoError(t, err)
		require.Len(t, rows, 1)
		claimed, err := rows[0].Bool("is_claimed")
		require.NoError(t, err)
		assert.True(t, claimed)

		rows, err = claim()
		require.NoError(t, err)
		assert.Empty(t, rows)
	})

	t.Run("セッション権限では組織を読めない", func(t *testing.T) {
		sessionGW := store.NewGateway(db, store.ScopeSession)
		_, err := sessionGW.SelectAll(ctx, store.Query{Table: store.TableOrganization})
		assert.True(t, errors.Is(err, store.ErrScopeDenied))
	})

	t.Run("InTxはエラー時にロールバックする", func(t *testing.T) {
		sentinel := errors.New("boom")
		err := gw.InTx(ctx, func(tx *store.Gateway) error {
			if _, err := tx.Insert(ctx, store.TableWaitlist, store.Row{"email": "tx@example.com", "role": "CTO"}); err != nil {
				return err
			}
			return sentinel
		})
		assert.ErrorIs(t, err, sentinel)

		rows, err := gw.SelectAll(ctx, store.Query{
			Table:   store.TableWaitlist,
			Filters: []store.Filter{store.Eq("email", "tx@example.com")},
		})
		require.NoError(t, err)
		assert.Empty(t, rows)
	})
}
