package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orderhub/orderhub/internal/domain"
	"github.com/orderhub/orderhub/pkg/errors"
)

func TestConnectionStore_SaveAndGet(t *testing.T) {
	ctx := context.Background()
	store := NewConnectionStore()

	_, err := store.Get(ctx, domain.PlatformEbay)
	assert.True(t, errors.IsNotFound(err))

	conn := &domain.PlatformConnection{Platform: domain.PlatformEbay, CredentialRef: "env:ebay", Connected: true}
	require.NoError(t, store.Save(ctx, conn))
	assert.True(t, conn.CreatedAt.IsZero())
	assert.True(t, conn.UpdatedAt.IsZero())

	first, err := store.Get(ctx, domain.PlatformEbay)
	require.NoError(t, err)
	assert.False(t, first.CreatedAt.IsZero())
	assert.Equal(t, domain.SyncStatusNever, first.LastSyncStatus)

	conn.LastSyncCursor = "cursor-1"
	require.NoError(t, store.Save(ctx, conn))

	got, err := store.Get(ctx, domain.PlatformEbay)
	require.NoError(t, err)
	assert.Equal(t, "cursor-1", got.LastSyncCursor)
	assert.Equal(t, first.CreatedAt, got.CreatedAt)

	got.LastSyncCursor = "mutated"
	again, _ := store.Get(ctx, domain.PlatformEbay)
	assert.Equal(t, "cursor-1", again.LastSyncCursor)
}

func TestConnectionStore_UpdateSyncStateKeepsCredential(t *testing.T) {
	ctx := context.Background()
	store := NewConnectionStore()

	_, err := store.UpdateSyncState(ctx, domain.PlatformEtsy, domain.SyncStateUpdate{Status: domain.SyncStatusRunning})
	assert.True(t, errors.IsNotFound(err))

	require.NoError(t, store.Save(ctx, &domain.PlatformConnection{Platform: domain.PlatformEtsy, CredentialRef: "env:old", Connected: true}))
	require.NoError(t, store.Save(ctx, &domain.PlatformConnection{Platform: domain.PlatformEtsy, CredentialRef: "env:new", Connected: true}))

	cursor := "page-2"
	got, err := store.UpdateSyncState(ctx, domain.PlatformEtsy, domain.SyncStateUpdate{
		Status:    domain.SyncStatusRunning,
		Cursor:    &cursor,
		AddOrders: 5,
	})
	require.NoError(t, err)
	assert.Equal(t, "env:new", got.CredentialRef)
	assert.Equal(t, "page-2", got.LastSyncCursor)
	assert.EqualValues(t, 5, got.OrdersSynced)

	disconnected := false
	got, err = store.UpdateSyncState(ctx, domain.PlatformEtsy, domain.SyncStateUpdate{
		Status:    domain.SyncStatusFailed,
		AddOrders: 2,
		Connected: &disconnected,
		Error:     &domain.SyncError{Message: "token expired", Kind: domain.ErrorKindAuth},
	})
	require.NoError(t, err)
	assert.EqualValues(t, 7, got.OrdersSynced)
	assert.Equal(t, "page-2", got.LastSyncCursor)
	assert.True(t, got.RequiresReconnect())

	got, err = store.UpdateSyncState(ctx, domain.PlatformEtsy, domain.SyncStateUpdate{ClearError: true})
	require.NoError(t, err)
	assert.Nil(t, got.LastError)
	assert.Equal(t, domain.SyncStatusFailed, got.LastSyncStatus)
}

func TestConnectionStore_LinkKeepsCursor(t *testing.T) {
	ctx := context.Background()
	store := NewConnectionStore()

	conn, err := store.Link(ctx, domain.PlatformAmazon, "env:amazon")
	require.NoError(t, err)
	assert.True(t, conn.Connected)
	assert.Equal(t, domain.SyncStatusNever, conn.LastSyncStatus)

	cursor := "next-token"
	disconnected := false
	_, err = store.UpdateSyncState(ctx, domain.PlatformAmazon, domain.SyncStateUpdate{
		Cursor:    &cursor,
		Connected: &disconnected,
		Error:     &domain.SyncError{Message: "forbidden", Kind: domain.ErrorKindAuth},
	})
	require.NoError(t, err)

	conn, err = store.Link(ctx, domain.PlatformAmazon, "env:amazon-2")
	require.NoError(t, err)
	assert.Equal(t, "env:amazon-2", conn.CredentialRef)
	assert.Equal(t, "next-token", conn.LastSyncCursor)
	assert.False(t, conn.RequiresReconnect())
	assert.Nil(t, conn.LastError)
}

func TestAnomalyStore_ListNewestFirst(t *testing.T) {
	ctx := context.Background()
	store := NewAnomalyStore()
	require.NoError(t, store.Record(ctx, &domain.Anomaly{Platform: domain.PlatformShopify, ExternalOrderID: "1"}))
	require.NoError(t, store.Record(ctx, &domain.Anomaly{Platform: domain.PlatformEtsy, ExternalOrderID: "2"}))
	require.NoError(t, store.Record(ctx, &domain.Anomaly{Platform: domain.PlatformShopify, ExternalOrderID: "3"}))

	all, err := store.List(ctx, nil, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "3", all[0].ExternalOrderID)

	shopify := domain.PlatformShopify
	filtered, err := store.List(ctx, &shopify, 1)
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, "3", filtered[0].ExternalOrderID)
}
