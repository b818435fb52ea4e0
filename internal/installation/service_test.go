package installation

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hitoshi/cyclone/internal/model"
)

// memInstallationRepo は (user_id, installation_id) の一意制約を再現するインメモリ実装。
type memInstallationRepo struct {
	rows   []*model.Installation
	saveFn func(ctx context.Context, userID, installationID string) (*model.Installation, bool, error)
}

func (m *memInstallationRepo) ListByUser(ctx context.Context, userID string) ([]*model.Installation, error) {
	var result []*model.Installation
	for i := len(m.rows) - 1; i >= 0; i-- {
		if m.rows[i].UserID == userID {
			result = append(result, m.rows[i])
		}
	}
	return result, nil
}

func (m *memInstallationRepo) FindLatestByUser(ctx context.Context, userID string) (*model.Installation, error) {
	list, _ := m.ListByUser(ctx, userID)
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}

func (m *memInstallationRepo) Save(ctx context.Context, userID, installationID string) (*model.Installation, bool, error) {
	if m.saveFn != nil {
		return m.saveFn(ctx, userID, installationID)
	}
	for _, r := range m.rows {
		if r.UserID == userID && r.InstallationID == installationID {
			return r, false, nil
		}
	}
	inst := &model.Installation{ID: int64(len(m.rows) + 1), UserID: userID, InstallationID: installationID}
	m.rows = append(m.rows, inst)
	return inst, true, nil
}

var alice = &model.User{ID: "alice"}

func TestHandleSetup_Install(t *testing.T) {
	repo := &memInstallationRepo{}
	svc := NewService(repo)

	result, err := svc.HandleSetup(context.Background(), alice, "12345", SetupActionInstall)
	require.NoError(t, err)
	assert.Equal(t, SetupInstalled, result)
	require.Len(t, repo.rows, 1)
	assert.Equal(t, "12345", repo.rows[0].InstallationID)
	assert.Equal(t, "alice", repo.rows[0].UserID)
}

// 同じインストールのコールバックが繰り返されても行は増えない
func TestHandleSetup_InstallTwice(t *testing.T) {
	repo := &memInstallationRepo{}
	svc := NewService(repo)

	for range 2 {
		result, err := svc.HandleSetup(context.Background(), alice, "12345", SetupActionInstall)
		require.NoError(t, err)
		assert.Equal(t, SetupInstalled, result)
	}
	assert.Len(t, repo.rows, 1)
}

func TestHandleSetup_OtherActionsDoNotPersist(t *testing.T) {
	tests := []struct {
		action string
		want   SetupResult
	}{
		{SetupActionUpdate, SetupUpdated},
		{"request", SetupFailed},
		{"", SetupFailed},
	}
	for _, tt := range tests {
		repo := &memInstallationRepo{}
		svc := NewService(repo)

		result, err := svc.HandleSetup(context.Background(), alice, "12345", tt.action)
		require.NoError(t, err, tt.action)
		assert.Equal(t, tt.want, result, tt.action)
		assert.Empty(t, repo.rows, tt.action)
	}
}

func TestHandleSetup_Errors(t *testing.T) {
	svc := NewService(&memInstallationRepo{})

	result, err := svc.HandleSetup(context.Background(), nil, "12345", SetupActionInstall)
	assert.Equal(t, SetupFailed, result)
	assert.True(t, model.HasCode(err, model.ErrCodeNotAuthenticated))

	result, err = svc.HandleSetup(context.Background(), alice, "", SetupActionInstall)
	assert.Equal(t, SetupFailed, result)
	assert.True(t, model.HasCode(err, model.ErrCodeValidationFailed))

	storeErr := errors.New("connection reset")
	failing := NewService(&memInstallationRepo{saveFn: func(ctx context.Context, userID, installationID string) (*model.Installation, bool, error) {
		return nil, false, storeErr
	}})
	result, err = failing.HandleSetup(context.Background(), alice, "12345", SetupActionInstall)
	assert.Equal(t, SetupFailed, result)
	assert.ErrorIs(t, err, storeErr)
}

func TestSave_RejectsNonNumericID(t *testing.T) {
	svc := NewService(&memInstallationRepo{})
	for _, id := range []string{"abc", "-1", "0", "12a"} {
		_, err := svc.Save(context.Background(), alice, id)
		assert.True(t, model.HasCode(err, model.ErrCodeValidationFailed), id)
	}
}

func TestCurrent(t *testing.T) {
	repo := &memInstallationRepo{}
	svc := NewService(repo)

	inst, err := svc.Current(context.Background(), alice)
	require.NoError(t, err)
	assert.Nil(t, inst)

	_, err = svc.Save(context.Background(), alice, "10")
	require.NoError(t, err)
	_, err = svc.Save(context.Background(), alice, "11")
	require.NoError(t, err)

	inst, err = svc.Current(context.Background(), alice)
	require.NoError(t, err)
	assert.Equal(t, "11", inst.InstallationID)

	_, err = svc.Current(context.Background(), nil)
	assert.True(t, model.HasCode(err, model.ErrCodeNotAuthenticated))
}
