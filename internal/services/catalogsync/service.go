// Copyright (c) 2025, the vodvault contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package catalogsync keeps the local catalog in step with the backend: a
// full merge on login and optimistic favorite toggles in between.
package catalogsync

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/vodvault/vodvault/internal/backend"
	"github.com/vodvault/vodvault/internal/metrics"
	"github.com/vodvault/vodvault/internal/models"
)

// BackendClient is the slice of the backend client this service uses.
type BackendClient interface {
	GetVideos(ctx context.Context, username, password string) ([]models.VideoAsset, error)
	GetFavoriteIDs(ctx context.Context, username, password string) ([]int, error)
	SetFavorite(ctx context.Context, username, password string, postID int, favorite bool) error
}

var _ BackendClient = (*backend.Client)(nil)

type Service struct {
	backend BackendClient
	catalog *models.CatalogStore
	creds   *models.CredentialStore
}

func NewService(backendClient BackendClient, catalog *models.CatalogStore, creds *models.CredentialStore) *Service {
	return &Service{
		backend: backendClient,
		catalog: catalog,
		creds:   creds,
	}
}

// Sync fetches the server catalog and favorite ids concurrently and replaces
// the local catalog wholesale. Sync with the same server state is idempotent.
func (s *Service) Sync(ctx context.Context) ([]models.VideoAsset, error) {
	creds, err := s.creds.Get(ctx)
	if err != nil {
		return nil, err
	}

	var (
		videos      []models.VideoAsset
		favoriteIDs []int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		videos, err = s.backend.GetVideos(gctx, creds.Username, creds.Password)
		if err != nil {
			return fmt.Errorf("fetch catalog: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		favoriteIDs, err = s.backend.GetFavoriteIDs(gctx, creds.Username, creds.Password)
		if err != nil {
			return fmt.Errorf("fetch favorites: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged, err := s.catalog.Merge(ctx, videos, favoriteIDs)
	if err != nil {
		return nil, err
	}

	metrics.CatalogSyncs.Inc()
	log.Info().Int("videos", len(merged)).Int("favorites", len(favoriteIDs)).Msg("Catalog synchronized")

	return merged, nil
}

// ToggleFavorite flips the flag locally first, then tells the backend. The
// local state is not rolled back if the backend call fails; the flag
// reconverges on the next Sync. The new local state is returned either way.
func (s *Service) ToggleFavorite(ctx context.Context, id int) (bool, error) {
	newState, err := s.catalog.Toggle(ctx, id)
	if err != nil {
		return false, err
	}

	creds, err := s.creds.Get(ctx)
	if err != nil {
		log.Error().Err(err).Int("id", id).Msg("Favorite toggled locally but credentials are unavailable")
		return newState, nil
	}

	if err := s.backend.SetFavorite(ctx, creds.Username, creds.Password, id, newState); err != nil {
		log.Error().Err(err).Int("id", id).Bool("favorite", newState).Msg("Backend favorite update failed, local state kept")
	}

	return newState, nil
}
