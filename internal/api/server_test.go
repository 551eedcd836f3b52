// Copyright (c) 2025, the vodvault contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package api

import (
	"crypto/sha256"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vodvault/vodvault/internal/backend"
	"github.com/vodvault/vodvault/internal/config"
	"github.com/vodvault/vodvault/internal/database"
	"github.com/vodvault/vodvault/internal/domain"
	"github.com/vodvault/vodvault/internal/models"
	"github.com/vodvault/vodvault/internal/offline"
	"github.com/vodvault/vodvault/internal/playback"
	"github.com/vodvault/vodvault/internal/services/catalogsync"
	"github.com/vodvault/vodvault/internal/vimeo"
)

// fakeBackendServer mimics the content backend's app API endpoints.
func fakeBackendServer(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/wp-admin/admin-ajax.php", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		if r.PostFormValue("pwd") != "hunter2" {
			w.Write([]byte(`{"result":false,"error":"Invalid username or password"}`))
			return
		}
		w.Write([]byte(`{"result":true,"user_id":"42","display_name":"Alex","user_email":"alex@example.com"}`))
	})
	mux.HandleFunc("/app-api/get-videos.php", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[
			{"id":10,"vimeoid":111,"title":"Armbar from guard","thumburl":"https://cdn/10.jpg"},
			{"id":20,"vimeoid":222,"title":"Back take","thumburl":"https://cdn/20.jpg"}
		]`))
	})
	mux.HandleFunc("/app-api/get-favorites.php", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"id":20}]`))
	})
	mux.HandleFunc("/app-api/set-favorite.php", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":true}`))
	})
	mux.HandleFunc("/app-api/get-video-download-links.php", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"link":"https://cdn/720","rendition":"720p","size":500000000}]`))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestServer(t *testing.T) *Server {
	t.Helper()

	db, err := database.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, db.Close()) })

	key := sha256.Sum256([]byte("test-secret"))
	credentialStore, err := models.NewCredentialStore(db, key[:])
	require.NoError(t, err)

	catalogStore := models.NewCatalogStore(db)

	backendSrv := fakeBackendServer(t)
	backendClient := backend.NewClient(backendSrv.URL, 0)

	syncService := catalogsync.NewService(backendClient, catalogStore, credentialStore)

	downloadDir := t.TempDir()
	scanner := offline.NewScanner(downloadDir, offline.DefaultRetentionWindow, catalogStore)
	downloads := offline.NewManager(downloadDir, backendClient, nil)
	resolver := playback.NewResolver(credentialStore, vimeo.NewClient(vimeo.Config{BaseURL: backendSrv.URL}))

	sessionManager := scs.New()
	sessionManager.Lifetime = time.Hour

	return NewServer(&Dependencies{
		Config: &config.AppConfig{
			Config: &domain.Config{BaseURL: "/"},
		},
		Version:         "test",
		SessionManager:  sessionManager,
		DB:              db,
		CatalogStore:    catalogStore,
		CredentialStore: credentialStore,
		BackendClient:   backendClient,
		SyncService:     syncService,
		Scanner:         scanner,
		Downloads:       downloads,
		Resolver:        resolver,
	})
}

func newTestClient(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{Jar: jar}
}

func TestServerRequiresAuthentication(t *testing.T) {
	ts := httptest.NewServer(newTestServer(t).Handler())
	defer ts.Close()

	for _, path := range []string{"/api/catalog/", "/api/offline/", "/api/auth/me"} {
		resp, err := http.Get(ts.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, path)
	}
}

func TestServerLoginFlow(t *testing.T) {
	ts := httptest.NewServer(newTestServer(t).Handler())
	defer ts.Close()

	client := newTestClient(t)

	// Bad password is rejected
	resp, err := client.Post(ts.URL+"/api/auth/login", "application/json",
		strings.NewReader(`{"username":"alex","password":"wrong"}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// Good login establishes a session and syncs the catalog
	resp, err = client.Post(ts.URL+"/api/auth/login", "application/json",
		strings.NewReader(`{"username":"alex","password":"hunter2","providerToken":"tok"}`))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = client.Get(ts.URL + "/api/auth/me")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = client.Get(ts.URL + "/api/catalog/")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Logout drops session, catalog and credentials
	resp, err = client.Post(ts.URL+"/api/auth/logout", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = client.Get(ts.URL + "/api/catalog/")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestServerHealthEndpoints(t *testing.T) {
	ts := httptest.NewServer(newTestServer(t).Handler())
	defer ts.Close()

	for _, path := range []string{"/healthz/liveness", "/healthz/readiness"} {
		resp, err := http.Get(ts.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
	}
}
