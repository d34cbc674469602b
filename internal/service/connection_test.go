package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/veridata/consent-server-go/internal/errors"
	"github.com/veridata/consent-server-go/internal/model"
)

func newTestConnectionService(connRepo *fakeConnectionRepo, activityRepo *fakeActivityRepo, fetcher *fakeFetcher) *ConnectionService {
	return NewConnectionService(connRepo, activityRepo, fetcher, DefaultProviderTable, "")
}

func TestUpsertAppliesProviderDefaults(t *testing.T) {
	connRepo := newFakeConnectionRepo()
	activityRepo := &fakeActivityRepo{}
	svc := newTestConnectionService(connRepo, activityRepo, &fakeFetcher{})

	t.Run("provider signal wins over default", func(t *testing.T) {
		conn, err := svc.Upsert(context.Background(), "user-1", &model.NormalizedProfile{
			Provider:  model.ProviderNameGitHub,
			Handle:    "alice",
			DataCount: 5,
		})
		require.NoError(t, err)
		assert.Equal(t, 5, conn.DataCount)
		assert.Equal(t, 92, conn.TrustScore)
		assert.Equal(t, "Code Repositories", conn.DataType)
		assert.Equal(t, model.ConnectionStatusConnected, conn.Status)
	})

	t.Run("no signal falls back to table", func(t *testing.T) {
		conn, err := svc.Upsert(context.Background(), "user-1", &model.NormalizedProfile{
			Provider:  model.ProviderNameGoogle,
			Handle:    "alice@example.com",
			DataCount: -1,
		})
		require.NoError(t, err)
		assert.Equal(t, 1240, conn.DataCount)
		assert.Equal(t, 85, conn.TrustScore)
	})

	t.Run("unknown provider uses fallback", func(t *testing.T) {
		conn, err := svc.Upsert(context.Background(), "user-1", &model.NormalizedProfile{
			Provider:  "Notion",
			DataCount: -1,
		})
		require.NoError(t, err)
		assert.Equal(t, FallbackDefault.DataCount, conn.DataCount)
		assert.Equal(t, FallbackDefault.TrustScore, conn.TrustScore)
		assert.Equal(t, FallbackDefault.DataType, conn.DataType)
	})
}

func TestUpsertLogsActivityWithHandle(t *testing.T) {
	connRepo := newFakeConnectionRepo()
	activityRepo := &fakeActivityRepo{}
	svc := newTestConnectionService(connRepo, activityRepo, &fakeFetcher{})

	_, err := svc.Upsert(context.Background(), "user-1", &model.NormalizedProfile{
		Provider:  model.ProviderNameTwitter,
		Handle:    "bob",
		DataCount: 432,
	})
	require.NoError(t, err)

	entry := activityRepo.last()
	require.NotNil(t, entry)
	assert.Equal(t, "Connected Twitter / X account (@bob)", entry.Action)
	assert.Equal(t, model.ActivityStatusApproved, entry.Status)
}

func TestUpsertEncryptsAccessToken(t *testing.T) {
	connRepo := newFakeConnectionRepo()
	key := "0000000000000000000000000000000000000000000000000000000000000000"
	svc := NewConnectionService(connRepo, &fakeActivityRepo{}, &fakeFetcher{}, DefaultProviderTable, key)

	conn, err := svc.Upsert(context.Background(), "user-1", &model.NormalizedProfile{
		Provider:    model.ProviderNameGitHub,
		AccessToken: "gho_secret",
		DataCount:   1,
	})
	require.NoError(t, err)
	require.NotNil(t, conn.AccessToken)
	assert.NotEqual(t, "gho_secret", *conn.AccessToken)
}

func TestUpsertIsIdempotentPerProvider(t *testing.T) {
	connRepo := newFakeConnectionRepo()
	svc := newTestConnectionService(connRepo, &fakeActivityRepo{}, &fakeFetcher{})

	first, err := svc.Upsert(context.Background(), "user-1", &model.NormalizedProfile{
		Provider: model.ProviderNameGitHub, DataCount: 5,
	})
	require.NoError(t, err)

	second, err := svc.Upsert(context.Background(), "user-1", &model.NormalizedProfile{
		Provider: model.ProviderNameGitHub, DataCount: 6,
	})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 6, second.DataCount)

	connections, err := svc.List(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Len(t, connections, 1)
}

func TestConnectManualProvider(t *testing.T) {
	connRepo := newFakeConnectionRepo()
	svc := newTestConnectionService(connRepo, &fakeActivityRepo{}, &fakeFetcher{})

	conn, err := svc.Connect(context.Background(), "user-1", "Dropbox", model.ConnectionStatusConnected, "")
	require.NoError(t, err)
	assert.Equal(t, 850, conn.DataCount)
	assert.Equal(t, "Files, Documents", conn.DataType)

	_, err = svc.Connect(context.Background(), "user-1", "", model.ConnectionStatusConnected, "")
	assert.Equal(t, apperrors.ErrCodeMissingRequired, apperrors.GetCode(err))
}

func TestDisconnect(t *testing.T) {
	connRepo := newFakeConnectionRepo()
	activityRepo := &fakeActivityRepo{}
	svc := newTestConnectionService(connRepo, activityRepo, &fakeFetcher{})

	_, err := svc.Connect(context.Background(), "user-1", "Dropbox", model.ConnectionStatusConnected, "")
	require.NoError(t, err)

	require.NoError(t, svc.Disconnect(context.Background(), "user-1", "Dropbox"))
	assert.Equal(t, model.ActivityStatusBlocked, activityRepo.last().Status)

	err = svc.Disconnect(context.Background(), "user-1", "Dropbox")
	assert.Equal(t, apperrors.ErrCodeNotFound, apperrors.GetCode(err))
}

func TestListRefreshesStaleDataCounts(t *testing.T) {
	connRepo := newFakeConnectionRepo()
	fetcher := &fakeFetcher{count: 77}
	svc := newTestConnectionService(connRepo, &fakeActivityRepo{}, fetcher)

	token := "plaintext-token"
	conn, err := connRepo.Upsert(context.Background(), model.UpsertConnectionParams{
		UserID:      "user-1",
		Provider:    model.ProviderNameGitHub,
		Status:      model.ConnectionStatusConnected,
		AccessToken: &token,
		DataCount:   5,
	})
	require.NoError(t, err)

	t.Run("fresh connection is not refreshed", func(t *testing.T) {
		_, err := svc.List(context.Background(), "user-1")
		require.NoError(t, err)
		assert.Equal(t, 0, fetcher.calls)
	})

	t.Run("stale connection is refreshed", func(t *testing.T) {
		connRepo.mu.Lock()
		stale := connRepo.connections[connKey("user-1", model.ProviderNameGitHub)]
		stale.LastSyncedAt = stale.LastSyncedAt.Add(-2 * time.Hour)
		connRepo.mu.Unlock()

		connections, err := svc.List(context.Background(), "user-1")
		require.NoError(t, err)
		assert.Equal(t, 1, fetcher.calls)
		require.Len(t, connections, 1)
		assert.Equal(t, 77, connections[0].DataCount)
		assert.Equal(t, conn.ID, connections[0].ID)
	})
}
