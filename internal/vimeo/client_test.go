// Copyright (c) 2025, the vodvault contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package vimeo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientGetVideo(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/videos/12345", r.URL.Path)
		assert.Equal(t, "Bearer secret-token", r.Header.Get("Authorization"))

		w.Write([]byte(`{
			"name": "Armbar from guard",
			"play": {"hls": {"link": "https://stream/playlist.m3u8"}},
			"files": [{"link": "https://cdn/720", "quality": "hd", "width": 1280, "height": 720}]
		}`))
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL})

	video, err := client.GetVideo(context.Background(), "12345", "secret-token")
	require.NoError(t, err)

	assert.Equal(t, "Armbar from guard", video.Name)
	assert.Equal(t, "https://stream/playlist.m3u8", video.HLSLink())
	require.Len(t, video.Files, 1)
	assert.Equal(t, 720, video.Files[0].Height)
}

func TestClientGetVideo_Unauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL})

	video, err := client.GetVideo(context.Background(), "12345", "expired")
	assert.Nil(t, video)

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusUnauthorized, statusErr.StatusCode)
	assert.Equal(t, "12345", statusErr.VideoID)
}

func TestVideoHLSLink_Missing(t *testing.T) {
	var v Video
	assert.Empty(t, v.HLSLink())
}
