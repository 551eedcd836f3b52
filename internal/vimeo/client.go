// Copyright (c) 2025, the vodvault contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package vimeo is a minimal client for the provider's video-metadata API.
// Requests carry a bearer token; the interesting part of the response is the
// adaptive (HLS) playback link.
package vimeo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/vodvault/vodvault/internal/buildinfo"
)

const (
	DefaultBaseURL = "https://api.vimeo.com"

	defaultTimeout = 30 * time.Second

	maxResponseBytes int64 = 4 << 20
)

// StatusError represents a non-2xx response from the provider, typically a
// 401 on a missing or expired token.
type StatusError struct {
	StatusCode int
	VideoID    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("provider request for video %s returned status %d", e.VideoID, e.StatusCode)
}

func (e *StatusError) Is(target error) bool {
	_, ok := target.(*StatusError)
	return ok
}

// Video is the subset of the provider's video metadata the resolver needs.
type Video struct {
	Name string `json:"name"`
	Play struct {
		HLS struct {
			Link string `json:"link"`
		} `json:"hls"`
	} `json:"play"`
	Files []File `json:"files"`
}

type File struct {
	Link    string `json:"link"`
	Quality string `json:"quality"`
	Width   int    `json:"width"`
	Height  int    `json:"height"`
}

// HLSLink returns the adaptive playback link, or empty if the provider did
// not include one.
func (v *Video) HLSLink() string {
	return v.Play.HLS.Link
}

type Client struct {
	baseURL    string
	httpClient *http.Client
}

type Config struct {
	BaseURL        string
	TimeoutSeconds int
	HTTPClient     *http.Client
}

func NewClient(cfg Config) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := defaultTimeout
		if cfg.TimeoutSeconds > 0 {
			timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// GetVideo fetches metadata for a provider video id using the given bearer
// token.
func (c *Client) GetVideo(ctx context.Context, videoID, token string) (*Video, error) {
	endpoint := fmt.Sprintf("%s/videos/%s", c.baseURL, videoID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("User-Agent", buildinfo.UserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("provider request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{StatusCode: resp.StatusCode, VideoID: videoID}
	}

	var video Video
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&video); err != nil {
		return nil, fmt.Errorf("failed to decode provider response: %w", err)
	}

	return &video, nil
}
