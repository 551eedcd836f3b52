// Copyright (c) 2025, the vodvault contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package offline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/vodvault/vodvault/internal/metrics"
	"github.com/vodvault/vodvault/internal/models"
)

// StorageError reports a failed delete of an offline artifact. The underlying
// cause is preserved for the API layer to surface.
type StorageError struct {
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage operation on %s failed: %v", e.Path, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func (e *StorageError) Is(target error) bool {
	_, ok := target.(*StorageError)
	return ok
}

// Artifact is a downloaded video surviving in local storage, enriched with
// catalog display metadata. Immutable once produced by a scan; it disappears
// by expiring or by explicit deletion.
type Artifact struct {
	VideoID         string   `json:"videoId"`
	ResolutionLabel string   `json:"resolutionLabel"`
	AcquiredAt      time.Time `json:"acquiredAt"`
	FileName        string   `json:"fileName"`
	FilePath        string   `json:"filePath"`
	Remaining       TimeLeft `json:"remaining"`

	CatalogID    int    `json:"catalogId"`
	Title        string `json:"title"`
	ThumbnailURL string `json:"thumbnailUrl"`
	Favorite     bool   `json:"favorite"`
}

// CatalogProvider is the slice of the catalog store the scanner needs.
type CatalogProvider interface {
	List() []models.VideoAsset
}

// Scanner reconciles the download directory against the catalog: it decodes
// artifact filenames, evicts expired files, and merges survivors with catalog
// metadata into renderable records.
type Scanner struct {
	dir     string
	window  time.Duration
	catalog CatalogProvider

	// now is swappable for tests
	now func() time.Time
}

func NewScanner(dir string, window time.Duration, catalog CatalogProvider) *Scanner {
	if window <= 0 {
		window = DefaultRetentionWindow
	}

	return &Scanner{
		dir:     dir,
		window:  window,
		catalog: catalog,
		now:     time.Now,
	}
}

// Scan enumerates the download directory and returns the displayable offline
// records, newest acquisition first. Expired artifacts are deleted from disk
// as part of the pass. Undecodable files and files without a catalog match
// are skipped, never errors. Scan is safe to call repeatedly: a missing
// directory or an already-deleted file does not fail the pass.
func (s *Scanner) Scan(ctx context.Context) ([]Artifact, error) {
	metrics.ScansRun.Inc()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []Artifact{}, nil
		}
		return nil, fmt.Errorf("failed to read download directory: %w", err)
	}

	byVimeoID := make(map[string]models.VideoAsset)
	for _, v := range s.catalog.List() {
		byVimeoID[strconv.FormatInt(v.VimeoID, 10)] = v
	}

	now := s.now()

	var artifacts []Artifact
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), MediaExt) {
			continue
		}

		meta, err := DecodeFilename(entry.Name())
		if err != nil {
			log.Debug().Err(err).Str("file", entry.Name()).Msg("Skipping undecodable file in download directory")
			continue
		}

		path := filepath.Join(s.dir, entry.Name())

		remaining := Remaining(meta.AcquiredAt, now, s.window)
		if remaining.Expired {
			if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
				log.Error().Err(err).Str("file", entry.Name()).Msg("Failed to delete expired artifact")
			} else {
				log.Info().Str("file", entry.Name()).Msg("Deleted expired artifact")
				metrics.ArtifactsEvicted.Inc()
			}
			continue
		}

		video, ok := byVimeoID[meta.VideoID]
		if !ok {
			// Decodable but unknown to the catalog: hidden from the result,
			// left on disk. Expiry will reclaim the space eventually.
			log.Debug().Str("file", entry.Name()).Str("videoId", meta.VideoID).Msg("No catalog match for offline artifact")
			continue
		}

		artifacts = append(artifacts, Artifact{
			VideoID:         meta.VideoID,
			ResolutionLabel: meta.ResolutionLabel,
			AcquiredAt:      meta.AcquiredAt,
			FileName:        entry.Name(),
			FilePath:        path,
			Remaining:       remaining,
			CatalogID:       video.ID,
			Title:           video.Title,
			ThumbnailURL:    video.ThumbnailURL,
			Favorite:        video.Favorite,
		})
	}

	sort.Slice(artifacts, func(i, j int) bool {
		return artifacts[i].AcquiredAt.After(artifacts[j].AcquiredAt)
	})

	return artifacts, nil
}

// Delete removes a single artifact at the user's request. The filename is
// reduced to its base name and must decode, so arbitrary paths cannot be
// reached through this entry point.
func (s *Scanner) Delete(ctx context.Context, filename string) error {
	name := filepath.Base(filename)
	if _, err := DecodeFilename(name); err != nil {
		return err
	}

	path := filepath.Join(s.dir, name)
	if err := os.Remove(path); err != nil {
		return &StorageError{Path: path, Err: err}
	}

	log.Info().Str("file", name).Msg("Deleted offline artifact")
	return nil
}
