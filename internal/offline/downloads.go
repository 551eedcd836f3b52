// Copyright (c) 2025, the vodvault contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package offline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/vodvault/vodvault/internal/backend"
	"github.com/vodvault/vodvault/internal/buildinfo"
	"github.com/vodvault/vodvault/internal/metrics"
)

// adaptiveRendition is the streaming-only rendition excluded from download
// offers.
const adaptiveRendition = "adaptive"

// ErrDownloadInFlight means a download for the same rendition link is already
// running; the caller must wait for it to finish before re-triggering.
var ErrDownloadInFlight = errors.New("download already in flight for this link")

// DownloadError wraps any network, storage-space or filesystem failure during
// a download. There is no automatic retry; the user re-invokes the action.
type DownloadError struct {
	Link string
	Err  error
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("download of %s failed: %v", e.Link, e.Err)
}

func (e *DownloadError) Unwrap() error {
	return e.Err
}

func (e *DownloadError) Is(target error) bool {
	_, ok := target.(*DownloadError)
	return ok
}

// RenditionLister provides the raw rendition listing for a provider video id.
type RenditionLister interface {
	GetDownloadLinks(ctx context.Context, vimeoID string) ([]backend.Rendition, error)
}

// Job describes one accepted download.
type Job struct {
	ID              string    `json:"id"`
	VideoID         string    `json:"videoId"`
	ResolutionLabel string    `json:"resolutionLabel"`
	Link            string    `json:"link"`
	FilePath        string    `json:"filePath"`
	StartedAt       time.Time `json:"startedAt"`
}

// Manager downloads chosen renditions into the offline directory. At most one
// download per rendition link runs at a time; concurrent requests for the
// same link are refused rather than queued.
type Manager struct {
	dir        string
	renditions RenditionLister
	httpClient *http.Client

	mu       sync.Mutex
	inflight map[string]Job

	// now is swappable for tests
	now func() time.Time
}

func NewManager(dir string, renditions RenditionLister, httpClient *http.Client) *Manager {
	if httpClient == nil {
		// Deliberately no client timeout: a large rendition on a slow
		// connection can legitimately take a long time. Cancellation comes
		// from the request context.
		httpClient = &http.Client{}
	}

	return &Manager{
		dir:        dir,
		renditions: renditions,
		httpClient: httpClient,
		inflight:   make(map[string]Job),
		now:        time.Now,
	}
}

// Renditions lists the downloadable variants for a video, largest first. The
// adaptive streaming rendition is excluded; the picker relies on the
// descending-size ordering.
func (m *Manager) Renditions(ctx context.Context, vimeoID string) ([]backend.Rendition, error) {
	all, err := m.renditions.GetDownloadLinks(ctx, vimeoID)
	if err != nil {
		return nil, err
	}

	offered := make([]backend.Rendition, 0, len(all))
	for _, r := range all {
		if r.Rendition == adaptiveRendition {
			continue
		}
		if r.SizeShort == "" && r.Size > 0 {
			r.SizeShort = humanize.Bytes(uint64(r.Size))
		}
		offered = append(offered, r)
	}

	sort.SliceStable(offered, func(i, j int) bool { return offered[i].Size > offered[j].Size })

	return offered, nil
}

// Active returns the currently running downloads.
func (m *Manager) Active() []Job {
	m.mu.Lock()
	defer m.mu.Unlock()

	jobs := make([]Job, 0, len(m.inflight))
	for _, job := range m.inflight {
		jobs = append(jobs, job)
	}
	return jobs
}

// Download streams the rendition at link into the offline directory under the
// codec-generated name and returns the finished job. A second call for a link
// that is still downloading returns ErrDownloadInFlight without starting a
// transfer. Any failure removes the partial file and surfaces as a
// *DownloadError.
func (m *Manager) Download(ctx context.Context, videoID, link, resolutionLabel string) (*Job, error) {
	startedAt := m.now()

	job := Job{
		ID:              uuid.New().String(),
		VideoID:         videoID,
		ResolutionLabel: resolutionLabel,
		Link:            link,
		FilePath:        filepath.Join(m.dir, EncodeFilename(videoID, resolutionLabel, startedAt)),
		StartedAt:       startedAt,
	}

	m.mu.Lock()
	if _, busy := m.inflight[link]; busy {
		m.mu.Unlock()
		metrics.DownloadsRejected.Inc()
		return nil, ErrDownloadInFlight
	}
	m.inflight[link] = job
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		delete(m.inflight, link)
		m.mu.Unlock()
	}()

	metrics.DownloadsStarted.Inc()
	log.Info().
		Str("jobId", job.ID).
		Str("videoId", videoID).
		Str("resolution", resolutionLabel).
		Msg("Starting rendition download")

	if err := m.transfer(ctx, link, job.FilePath); err != nil {
		metrics.DownloadsFailed.Inc()
		log.Error().Err(err).Str("jobId", job.ID).Msg("Download failed")
		return nil, &DownloadError{Link: link, Err: err}
	}

	log.Info().Str("jobId", job.ID).Str("path", job.FilePath).Msg("Download complete")
	return &job, nil
}

func (m *Manager) transfer(ctx context.Context, link, dest string) error {
	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", buildinfo.UserAgent)

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("rendition server returned status %d", resp.StatusCode)
	}

	out, err := os.Create(dest)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		m.removePartial(dest)
		return err
	}

	if err := out.Close(); err != nil {
		m.removePartial(dest)
		return err
	}

	return nil
}

func (m *Manager) removePartial(dest string) {
	if err := os.Remove(dest); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Error().Err(err).Str("path", dest).Msg("Failed to remove partial download")
	}
}
