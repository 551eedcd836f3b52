// Copyright (c) 2025, the vodvault contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models_test

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vodvault/vodvault/internal/models"
)

func testEncryptionKey(seed string) []byte {
	sum := sha256.Sum256([]byte(seed))
	return sum[:]
}

func newTestCredentialStore(t *testing.T) *models.CredentialStore {
	t.Helper()
	store, err := models.NewCredentialStore(newTestDB(t), testEncryptionKey("test-secret"))
	require.NoError(t, err)
	return store
}

func TestNewCredentialStore_RejectsBadKey(t *testing.T) {
	_, err := models.NewCredentialStore(newTestDB(t), []byte("too short"))
	assert.Error(t, err)
}

func TestCredentialStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTestCredentialStore(t)

	err := store.Store(ctx, models.Credentials{
		Username:      "alex",
		Password:      "hunter2",
		ProviderToken: "bearer-token",
		UserID:        "42",
		DisplayName:   "Alex",
		Email:         "alex@example.com",
	})
	require.NoError(t, err)

	got, err := store.Get(ctx)
	require.NoError(t, err)

	assert.Equal(t, "alex", got.Username)
	assert.Equal(t, "hunter2", got.Password)
	assert.Equal(t, "bearer-token", got.ProviderToken)
	assert.Equal(t, "42", got.UserID)
	assert.Equal(t, "Alex", got.DisplayName)
	assert.Equal(t, "alex@example.com", got.Email)
	assert.False(t, got.UpdatedAt.IsZero())
}

func TestCredentialStoreStore_SingleSlot(t *testing.T) {
	ctx := context.Background()
	store := newTestCredentialStore(t)

	require.NoError(t, store.Store(ctx, models.Credentials{Username: "first", Password: "p1"}))
	require.NoError(t, store.Store(ctx, models.Credentials{Username: "second", Password: "p2", ProviderToken: "tok"}))

	got, err := store.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "second", got.Username)
	assert.Equal(t, "p2", got.Password)
}

func TestCredentialStoreStore_RequiresUsername(t *testing.T) {
	store := newTestCredentialStore(t)

	err := store.Store(context.Background(), models.Credentials{Password: "p"})
	assert.Error(t, err)
}

func TestCredentialStoreSecretsNotStoredInPlaintext(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	store, err := models.NewCredentialStore(db, testEncryptionKey("test-secret"))
	require.NoError(t, err)

	require.NoError(t, store.Store(ctx, models.Credentials{
		Username:      "alex",
		Password:      "plaintext-password",
		ProviderToken: "plaintext-token",
	}))

	var passwordEncrypted, tokenEncrypted string
	err = db.QueryRowContext(ctx, `SELECT password_encrypted, provider_token_encrypted FROM credentials WHERE id = 1`).
		Scan(&passwordEncrypted, &tokenEncrypted)
	require.NoError(t, err)

	assert.NotContains(t, passwordEncrypted, "plaintext-password")
	assert.NotContains(t, tokenEncrypted, "plaintext-token")
}

func TestCredentialStoreGet_WrongKey(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	store, err := models.NewCredentialStore(db, testEncryptionKey("secret-a"))
	require.NoError(t, err)
	require.NoError(t, store.Store(ctx, models.Credentials{Username: "alex", Password: "p"}))

	other, err := models.NewCredentialStore(db, testEncryptionKey("secret-b"))
	require.NoError(t, err)

	_, err = other.Get(ctx)
	assert.Error(t, err)
}

func TestCredentialStoreProviderToken(t *testing.T) {
	ctx := context.Background()
	store := newTestCredentialStore(t)

	require.NoError(t, store.Store(ctx, models.Credentials{Username: "alex", Password: "p", ProviderToken: "tok"}))

	token, err := store.ProviderToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, "tok", token)
}

func TestCredentialStoreProviderToken_EmptyIsMissing(t *testing.T) {
	ctx := context.Background()
	store := newTestCredentialStore(t)

	require.NoError(t, store.Store(ctx, models.Credentials{Username: "alex", Password: "p"}))

	_, err := store.ProviderToken(ctx)
	assert.ErrorIs(t, err, models.ErrNoCredentials)
}

func TestCredentialStoreClear(t *testing.T) {
	ctx := context.Background()
	store := newTestCredentialStore(t)

	require.NoError(t, store.Store(ctx, models.Credentials{Username: "alex", Password: "p"}))
	require.NoError(t, store.Clear(ctx))

	_, err := store.Get(ctx)
	assert.ErrorIs(t, err, models.ErrNoCredentials)
}

func TestCredentialStoreGet_NoCredentials(t *testing.T) {
	store := newTestCredentialStore(t)

	_, err := store.Get(context.Background())
	assert.ErrorIs(t, err, models.ErrNoCredentials)
}

func TestCredentialsMarshalJSON_RedactsSecrets(t *testing.T) {
	creds := models.Credentials{
		Username:      "alex",
		Password:      "hunter2",
		ProviderToken: "bearer-token",
		Email:         "alex@example.com",
	}

	b, err := json.Marshal(creds)
	require.NoError(t, err)

	s := string(b)
	assert.NotContains(t, s, "hunter2")
	assert.NotContains(t, s, "bearer-token")
	assert.Contains(t, s, "alex@example.com")
	assert.True(t, strings.Contains(s, "********"))
}
