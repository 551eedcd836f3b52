// Copyright (c) 2025, the vodvault contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/vodvault/vodvault/internal/dbinterface"
)

var ErrVideoNotFound = errors.New("video not found in catalog")

// Tag is a taxonomy term attached to a video (technique, position or type).
type Tag struct {
	TermID int    `json:"term_id"`
	Name   string `json:"name"`
}

// VideoAsset is one catalog record mirrored from the backend. Favorite is the
// only locally mutated field; everything else is replaced wholesale on merge.
type VideoAsset struct {
	ID           int    `json:"id"`
	VimeoID      int64  `json:"vimeoId"`
	Title        string `json:"title"`
	ThumbnailURL string `json:"thumbnailUrl"`
	Favorite     bool   `json:"favorite"`
	Techniques   []Tag  `json:"techniques,omitempty"`
	Positions    []Tag  `json:"positions,omitempty"`
	Types        []Tag  `json:"types,omitempty"`
}

// CatalogStore owns the synchronized video catalog. The persisted form is a
// single row holding the full catalog as one JSON array; every mutation
// rewrites the whole payload. An in-memory copy backs reads, guarded by mu.
type CatalogStore struct {
	db dbinterface.Querier

	mu     sync.RWMutex
	videos []VideoAsset

	listenersMu sync.RWMutex
	listeners   []func([]VideoAsset)
}

func NewCatalogStore(db dbinterface.Querier) *CatalogStore {
	return &CatalogStore{db: db}
}

// Load reads the persisted catalog into memory. A missing or corrupt payload
// yields an empty catalog, never an error the caller has to handle.
func (s *CatalogStore) Load(ctx context.Context) ([]VideoAsset, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM catalog WHERE id = 1`).Scan(&payload)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		s.setVideos(nil)
		return []VideoAsset{}, nil
	case err != nil:
		return nil, err
	}

	var videos []VideoAsset
	if err := json.Unmarshal([]byte(payload), &videos); err != nil {
		log.Warn().Err(err).Msg("Persisted catalog is corrupt, starting empty")
		s.setVideos(nil)
		return []VideoAsset{}, nil
	}

	s.setVideos(videos)
	return s.List(), nil
}

// Merge replaces the catalog with the server snapshot, marking favorites by
// membership in favoriteIDs. The replace is wholesale: no field-level patching,
// and applying the same snapshot twice yields the same catalog.
func (s *CatalogStore) Merge(ctx context.Context, serverVideos []VideoAsset, favoriteIDs []int) ([]VideoAsset, error) {
	favs := make(map[int]struct{}, len(favoriteIDs))
	for _, id := range favoriteIDs {
		favs[id] = struct{}{}
	}

	merged := make([]VideoAsset, 0, len(serverVideos))
	seen := make(map[int]struct{}, len(serverVideos))
	for _, v := range serverVideos {
		if _, dup := seen[v.ID]; dup {
			log.Warn().Int("id", v.ID).Msg("Duplicate catalog id in server snapshot, keeping first")
			continue
		}
		seen[v.ID] = struct{}{}

		_, fav := favs[v.ID]
		v.Favorite = fav
		merged = append(merged, v)
	}

	if err := s.persist(ctx, merged); err != nil {
		return nil, err
	}

	s.setVideos(merged)
	s.notify()

	return s.List(), nil
}

// Toggle flips the favorite flag for id and re-persists the whole catalog.
// The backend set-favorite call is the caller's concern; there is no rollback
// here if that call fails, the next Merge reconverges the flag.
func (s *CatalogStore) Toggle(ctx context.Context, id int) (bool, error) {
	s.mu.Lock()

	idx := -1
	for i := range s.videos {
		if s.videos[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return false, ErrVideoNotFound
	}

	s.videos[idx].Favorite = !s.videos[idx].Favorite
	newState := s.videos[idx].Favorite
	snapshot := make([]VideoAsset, len(s.videos))
	copy(snapshot, s.videos)
	s.mu.Unlock()

	if err := s.persist(ctx, snapshot); err != nil {
		return newState, err
	}

	s.notify()

	return newState, nil
}

// Clear removes the persisted catalog and wipes the in-memory copy. Called on
// logout.
func (s *CatalogStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM catalog WHERE id = 1`); err != nil {
		return err
	}

	s.setVideos(nil)
	s.notify()

	return nil
}

// List returns a copy of the in-memory catalog.
func (s *CatalogStore) List() []VideoAsset {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]VideoAsset, len(s.videos))
	copy(out, s.videos)
	return out
}

// Get returns the catalog record with the given id.
func (s *CatalogStore) Get(id int) (VideoAsset, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, v := range s.videos {
		if v.ID == id {
			return v, true
		}
	}
	return VideoAsset{}, false
}

// Favorites returns catalog records with the favorite flag set, sorted by
// title for stable display.
func (s *CatalogStore) Favorites() []VideoAsset {
	all := s.List()

	favs := all[:0]
	for _, v := range all {
		if v.Favorite {
			favs = append(favs, v)
		}
	}
	sort.Slice(favs, func(i, j int) bool { return favs[i].Title < favs[j].Title })
	return favs
}

// Subscribe registers a listener invoked with a catalog snapshot after every
// mutation. Listeners run synchronously on the mutating goroutine.
func (s *CatalogStore) Subscribe(fn func([]VideoAsset)) {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()
	s.listeners = append(s.listeners, fn)
}

func (s *CatalogStore) setVideos(videos []VideoAsset) {
	s.mu.Lock()
	s.videos = videos
	s.mu.Unlock()
}

func (s *CatalogStore) persist(ctx context.Context, videos []VideoAsset) error {
	if videos == nil {
		videos = []VideoAsset{}
	}

	payload, err := json.Marshal(videos)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO catalog (id, payload, updated_at)
		VALUES (1, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (id) DO UPDATE SET payload = excluded.payload, updated_at = CURRENT_TIMESTAMP
	`, string(payload))
	return err
}

func (s *CatalogStore) notify() {
	snapshot := s.List()

	s.listenersMu.RLock()
	defer s.listenersMu.RUnlock()
	for _, fn := range s.listeners {
		fn(snapshot)
	}
}
