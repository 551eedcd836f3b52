// Copyright (c) 2025, the vodvault contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package playback decides where a playback request is served from: a local
// offline artifact or the provider's adaptive stream.
package playback

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/vodvault/vodvault/internal/vimeo"
)

// AuthError means the provider stream could not be resolved: the bearer
// credential is missing or invalid, or the metadata fetch failed.
type AuthError struct {
	VideoID string
	Err     error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("cannot authorize playback of video %s: %v", e.VideoID, e.Err)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

func (e *AuthError) Is(target error) bool {
	_, ok := target.(*AuthError)
	return ok
}

type SourceType string

const (
	SourceLocal  SourceType = "local"
	SourceStream SourceType = "stream"
)

// Request asks for a playback source. LocalPath, when set, wins outright and
// no provider call is made.
type Request struct {
	LocalPath string `json:"localPath,omitempty"`
	VimeoID   string `json:"vimeoId,omitempty"`
}

// Source is the resolved playback target. NotesEnabled reflects whether
// remote-only metadata surfaces (notes, favorites) apply: local file playback
// suppresses them.
type Source struct {
	Type         SourceType `json:"type"`
	URL          string     `json:"url"`
	Title        string     `json:"title,omitempty"`
	NotesEnabled bool       `json:"notesEnabled"`
}

// TokenSource yields the provider bearer credential from secure storage.
type TokenSource interface {
	ProviderToken(ctx context.Context) (string, error)
}

// VideoProvider fetches provider video metadata.
type VideoProvider interface {
	GetVideo(ctx context.Context, videoID, token string) (*vimeo.Video, error)
}

type Resolver struct {
	tokens   TokenSource
	provider VideoProvider
}

func NewResolver(tokens TokenSource, provider VideoProvider) *Resolver {
	return &Resolver{
		tokens:   tokens,
		provider: provider,
	}
}

// Resolve picks the playback source for a request. A local path short-
// circuits: the file is served directly with no authorization attached.
// Otherwise the provider's adaptive (HLS) link is fetched with the stored
// bearer token; any failure on that path is an *AuthError.
func (r *Resolver) Resolve(ctx context.Context, req Request) (*Source, error) {
	if req.LocalPath != "" {
		log.Debug().Str("path", req.LocalPath).Msg("Resolved playback to local artifact")
		return &Source{
			Type:         SourceLocal,
			URL:          req.LocalPath,
			NotesEnabled: false,
		}, nil
	}

	if req.VimeoID == "" {
		return nil, &AuthError{VideoID: req.VimeoID, Err: fmt.Errorf("no local path and no provider video id")}
	}

	token, err := r.tokens.ProviderToken(ctx)
	if err != nil {
		return nil, &AuthError{VideoID: req.VimeoID, Err: err}
	}

	video, err := r.provider.GetVideo(ctx, req.VimeoID, token)
	if err != nil {
		return nil, &AuthError{VideoID: req.VimeoID, Err: err}
	}

	link := video.HLSLink()
	if link == "" {
		return nil, &AuthError{VideoID: req.VimeoID, Err: fmt.Errorf("provider response has no adaptive playback link")}
	}

	log.Debug().Str("videoId", req.VimeoID).Msg("Resolved playback to provider stream")

	return &Source{
		Type:         SourceStream,
		URL:          link,
		Title:        video.Name,
		NotesEnabled: true,
	}, nil
}
