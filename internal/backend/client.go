// Copyright (c) 2025, the vodvault contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package backend is the client for the content backend: account login,
// catalog and favorites listings, per-video download links, and video notes.
package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/avast/retry-go"
	"github.com/rs/zerolog/log"

	"github.com/vodvault/vodvault/internal/buildinfo"
	"github.com/vodvault/vodvault/internal/models"
)

const (
	defaultTimeout    = 30 * time.Second
	bulkFetchAttempts = 3
	bulkFetchDelay    = 2 * time.Second

	maxResponseBytes int64 = 8 << 20 // 8 MiB cap on API payloads
)

// StatusError represents a non-2xx response from the backend.
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("backend request to %s returned status %d", e.URL, e.StatusCode)
}

func (e *StatusError) Is(target error) bool {
	_, ok := target.(*StatusError)
	return ok
}

// LoginError carries the backend's own rejection message for a failed login.
type LoginError struct {
	Message string
}

func (e *LoginError) Error() string {
	if e.Message == "" {
		return "backend rejected login"
	}
	return fmt.Sprintf("backend rejected login: %s", e.Message)
}

func (e *LoginError) Is(target error) bool {
	_, ok := target.(*LoginError)
	return ok
}

// Account is the identity returned by a successful login.
type Account struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	Email       string `json:"user_email"`
}

// Rendition is one downloadable quality variant of a video.
type Rendition struct {
	Link      string `json:"link"`
	Quality   string `json:"quality"`
	Rendition string `json:"rendition"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	Size      int64  `json:"size"`
	SizeShort string `json:"size_short"`
}

// Note is a timestamped note a user attached to a video.
type Note struct {
	ID                int    `json:"id"`
	PlaybackTimestamp int    `json:"note_playback_timestamp"`
	Text              string `json:"note_text"`
	UserID            int    `json:"user_id"`
	VideoID           int    `json:"video_id"`
}

// Client talks to the content backend's app API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string, timeoutSeconds int) *Client {
	timeout := defaultTimeout
	if timeoutSeconds > 0 {
		timeout = time.Duration(timeoutSeconds) * time.Second
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Login authenticates against the backend's form-login endpoint. A 200 with
// result=false is a rejected login, not a transport error.
func (c *Client) Login(ctx context.Context, username, password string) (*Account, error) {
	form := url.Values{}
	form.Set("log", username)
	form.Set("pwd", password)
	form.Set("lwa", "1")
	form.Set("login-with-ajax", "login")

	endpoint := c.baseURL + "/wp-admin/admin-ajax.php"

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", buildinfo.UserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("login request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{StatusCode: resp.StatusCode, URL: endpoint}
	}

	var payload struct {
		Result bool   `json:"result"`
		Error  string `json:"error"`
		Account
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode login response: %w", err)
	}

	if !payload.Result {
		return nil, &LoginError{Message: payload.Error}
	}

	return &payload.Account, nil
}

// GetVideos fetches the full catalog. The read is idempotent, so transient
// failures are retried a few times before giving up.
func (c *Client) GetVideos(ctx context.Context, username, password string) ([]models.VideoAsset, error) {
	params := url.Values{}
	params.Set("username", username)
	params.Set("password", password)

	var raw []struct {
		ID         int    `json:"id"`
		VimeoID    int64  `json:"vimeoid"`
		Title      string `json:"title"`
		ThumbURL   string `json:"thumburl"`
		Types      []models.Tag `json:"video_types"`
		Positions  []models.Tag `json:"video_positions"`
		Techniques []models.Tag `json:"video_techniques"`
	}

	if err := c.getJSONRetry(ctx, "/app-api/get-videos.php", params, &raw); err != nil {
		return nil, err
	}

	videos := make([]models.VideoAsset, 0, len(raw))
	for _, v := range raw {
		videos = append(videos, models.VideoAsset{
			ID:           v.ID,
			VimeoID:      v.VimeoID,
			Title:        v.Title,
			ThumbnailURL: v.ThumbURL,
			Techniques:   v.Techniques,
			Positions:    v.Positions,
			Types:        v.Types,
		})
	}

	return videos, nil
}

// GetFavoriteIDs fetches the ids of the account's favorited videos.
func (c *Client) GetFavoriteIDs(ctx context.Context, username, password string) ([]int, error) {
	params := url.Values{}
	params.Set("username", username)
	params.Set("password", password)

	var raw []struct {
		ID json.Number `json:"id"`
	}

	if err := c.getJSONRetry(ctx, "/app-api/get-favorites.php", params, &raw); err != nil {
		return nil, err
	}

	ids := make([]int, 0, len(raw))
	for _, item := range raw {
		id, err := item.ID.Int64()
		if err != nil {
			log.Warn().Str("id", item.ID.String()).Msg("Skipping non-numeric favorite id")
			continue
		}
		ids = append(ids, int(id))
	}

	return ids, nil
}

// SetFavorite records or removes a favorite on the backend.
func (c *Client) SetFavorite(ctx context.Context, username, password string, postID int, favorite bool) error {
	isFav := "0"
	if favorite {
		isFav = "1"
	}

	params := url.Values{}
	params.Set("post_id", fmt.Sprintf("%d", postID))
	params.Set("is_fav", isFav)
	params.Set("username", username)
	params.Set("password", password)

	var raw json.RawMessage
	return c.getJSON(ctx, "/app-api/set-favorite.php", params, &raw)
}

// GetDownloadLinks lists the downloadable renditions for a provider video id.
// The result is unfiltered and unsorted; rendition selection policy lives in
// the download manager.
func (c *Client) GetDownloadLinks(ctx context.Context, vimeoID string) ([]Rendition, error) {
	params := url.Values{}
	params.Set("id", vimeoID)

	var renditions []Rendition
	if err := c.getJSON(ctx, "/app-api/get-video-download-links.php", params, &renditions); err != nil {
		return nil, err
	}

	return renditions, nil
}

// GetNotes lists a user's notes for a video.
func (c *Client) GetNotes(ctx context.Context, userID, videoID int) ([]Note, error) {
	params := url.Values{}
	params.Set("user_id", fmt.Sprintf("%d", userID))
	params.Set("video_id", fmt.Sprintf("%d", videoID))

	var notes []Note
	if err := c.getJSON(ctx, "/app-api/get-video-notes.php", params, &notes); err != nil {
		return nil, err
	}

	return notes, nil
}

// AddNote creates a note and returns it with the backend-assigned id.
func (c *Client) AddNote(ctx context.Context, note Note) (*Note, error) {
	params := url.Values{}
	params.Set("user_id", fmt.Sprintf("%d", note.UserID))
	params.Set("video_id", fmt.Sprintf("%d", note.VideoID))
	params.Set("note_text", note.Text)
	params.Set("note_playback_timestamp", fmt.Sprintf("%d", note.PlaybackTimestamp))

	var created struct {
		ID int `json:"id"`
	}
	if err := c.getJSON(ctx, "/app-api/add-video-note.php", params, &created); err != nil {
		return nil, err
	}
	if created.ID == 0 {
		return nil, fmt.Errorf("backend did not assign a note id")
	}

	note.ID = created.ID
	return &note, nil
}

func (c *Client) getJSON(ctx context.Context, path string, params url.Values, out any) error {
	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", buildinfo.UserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("backend request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &StatusError{StatusCode: resp.StatusCode, URL: c.baseURL + path}
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(out); err != nil {
		return fmt.Errorf("failed to decode backend response: %w", err)
	}

	return nil
}

func (c *Client) getJSONRetry(ctx context.Context, path string, params url.Values, out any) error {
	return retry.Do(
		func() error {
			return c.getJSON(ctx, path, params, out)
		},
		retry.Attempts(bulkFetchAttempts),
		retry.Delay(bulkFetchDelay),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			log.Debug().Err(err).Uint("attempt", n+1).Str("path", path).Msg("Retrying backend fetch")
		}),
	)
}
