// Copyright (c) 2025, the vodvault contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package catalogsync

import (
	"context"
	"crypto/sha256"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vodvault/vodvault/internal/database"
	"github.com/vodvault/vodvault/internal/models"
)

type fakeBackend struct {
	mu sync.Mutex

	videos      []models.VideoAsset
	videosErr   error
	favorites   []int
	favoriteErr error

	setFavoriteErr   error
	setFavoriteCalls []struct {
		PostID   int
		Favorite bool
	}
}

func (f *fakeBackend) GetVideos(ctx context.Context, username, password string) ([]models.VideoAsset, error) {
	return f.videos, f.videosErr
}

func (f *fakeBackend) GetFavoriteIDs(ctx context.Context, username, password string) ([]int, error) {
	return f.favorites, f.favoriteErr
}

func (f *fakeBackend) SetFavorite(ctx context.Context, username, password string, postID int, favorite bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setFavoriteCalls = append(f.setFavoriteCalls, struct {
		PostID   int
		Favorite bool
	}{postID, favorite})
	return f.setFavoriteErr
}

func newTestService(t *testing.T, fb *fakeBackend) (*Service, *models.CatalogStore) {
	t.Helper()

	db, err := database.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	key := sha256.Sum256([]byte("test-secret"))
	creds, err := models.NewCredentialStore(db, key[:])
	require.NoError(t, err)

	require.NoError(t, creds.Store(context.Background(), models.Credentials{
		Username: "alex",
		Password: "hunter2",
	}))

	catalog := models.NewCatalogStore(db)
	return NewService(fb, catalog, creds), catalog
}

func TestServiceSync(t *testing.T) {
	fb := &fakeBackend{
		videos: []models.VideoAsset{
			{ID: 10, VimeoID: 111, Title: "Armbar from guard"},
			{ID: 20, VimeoID: 222, Title: "Back take"},
		},
		favorites: []int{20},
	}

	svc, catalog := newTestService(t, fb)

	merged, err := svc.Sync(context.Background())
	require.NoError(t, err)
	require.Len(t, merged, 2)

	assert.False(t, merged[0].Favorite)
	assert.True(t, merged[1].Favorite)

	assert.Equal(t, merged, catalog.List())
}

func TestServiceSync_BackendFailureLeavesCatalogAlone(t *testing.T) {
	fb := &fakeBackend{
		videos:    []models.VideoAsset{{ID: 10, VimeoID: 111, Title: "Armbar from guard"}},
		favorites: []int{10},
	}

	svc, catalog := newTestService(t, fb)

	_, err := svc.Sync(context.Background())
	require.NoError(t, err)

	fb.videosErr = errors.New("backend down")
	_, err = svc.Sync(context.Background())
	require.Error(t, err)

	// The cached catalog keeps serving
	require.Len(t, catalog.List(), 1)
	assert.True(t, catalog.List()[0].Favorite)
}

func TestServiceSync_NoCredentials(t *testing.T) {
	db, err := database.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	defer db.Close()

	key := sha256.Sum256([]byte("test-secret"))
	creds, err := models.NewCredentialStore(db, key[:])
	require.NoError(t, err)

	svc := NewService(&fakeBackend{}, models.NewCatalogStore(db), creds)

	_, err = svc.Sync(context.Background())
	assert.ErrorIs(t, err, models.ErrNoCredentials)
}

func TestServiceToggleFavorite(t *testing.T) {
	fb := &fakeBackend{
		videos: []models.VideoAsset{{ID: 10, VimeoID: 111, Title: "Armbar from guard"}},
	}

	svc, catalog := newTestService(t, fb)

	_, err := svc.Sync(context.Background())
	require.NoError(t, err)

	on, err := svc.ToggleFavorite(context.Background(), 10)
	require.NoError(t, err)
	assert.True(t, on)

	require.Len(t, fb.setFavoriteCalls, 1)
	assert.Equal(t, 10, fb.setFavoriteCalls[0].PostID)
	assert.True(t, fb.setFavoriteCalls[0].Favorite)

	v, ok := catalog.Get(10)
	require.True(t, ok)
	assert.True(t, v.Favorite)
}

func TestServiceToggleFavorite_BackendFailureKeepsLocalState(t *testing.T) {
	fb := &fakeBackend{
		videos:         []models.VideoAsset{{ID: 10, VimeoID: 111, Title: "Armbar from guard"}},
		setFavoriteErr: errors.New("backend down"),
	}

	svc, catalog := newTestService(t, fb)

	_, err := svc.Sync(context.Background())
	require.NoError(t, err)

	on, err := svc.ToggleFavorite(context.Background(), 10)
	require.NoError(t, err)
	assert.True(t, on)

	// No rollback: the flag stays flipped locally and reconverges on the
	// next Sync.
	v, ok := catalog.Get(10)
	require.True(t, ok)
	assert.True(t, v.Favorite)
}

func TestServiceToggleFavorite_UnknownVideo(t *testing.T) {
	svc, _ := newTestService(t, &fakeBackend{})

	_, err := svc.ToggleFavorite(context.Background(), 999)
	assert.ErrorIs(t, err, models.ErrVideoNotFound)
}
