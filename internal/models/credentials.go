// Copyright (c) 2025, the vodvault contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/vodvault/vodvault/internal/dbinterface"
	"github.com/vodvault/vodvault/internal/domain"
)

var ErrNoCredentials = errors.New("no stored credentials")

// Credentials is the single stored account: backend login, account identity
// and the provider bearer token used for video-metadata requests.
type Credentials struct {
	Username      string    `json:"username"`
	Password      string    `json:"-"`
	ProviderToken string    `json:"-"`
	UserID        string    `json:"userId"`
	DisplayName   string    `json:"displayName"`
	Email         string    `json:"email"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

func (c Credentials) MarshalJSON() ([]byte, error) {
	return json.Marshal(&struct {
		Username      string    `json:"username"`
		Password      string    `json:"password,omitempty"`
		ProviderToken string    `json:"providerToken,omitempty"`
		UserID        string    `json:"userId"`
		DisplayName   string    `json:"displayName"`
		Email         string    `json:"email"`
		UpdatedAt     time.Time `json:"updatedAt"`
	}{
		Username:      c.Username,
		Password:      domain.RedactString(c.Password),
		ProviderToken: domain.RedactString(c.ProviderToken),
		UserID:        c.UserID,
		DisplayName:   c.DisplayName,
		Email:         c.Email,
		UpdatedAt:     c.UpdatedAt,
	})
}

// CredentialStore persists the account credentials encrypted with AES-GCM.
type CredentialStore struct {
	db            dbinterface.Querier
	encryptionKey []byte
}

func NewCredentialStore(db dbinterface.Querier, encryptionKey []byte) (*CredentialStore, error) {
	if len(encryptionKey) != 32 {
		return nil, errors.New("encryption key must be 32 bytes")
	}

	return &CredentialStore{
		db:            db,
		encryptionKey: encryptionKey,
	}, nil
}

// encrypt encrypts a string using AES-GCM
func (s *CredentialStore) encrypt(plaintext string) (string, error) {
	block, err := aes.NewCipher(s.encryptionKey)
	if err != nil {
		return "", err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	ciphertext := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// decrypt decrypts a string encrypted with encrypt
func (s *CredentialStore) decrypt(ciphertext string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", err
	}

	block, err := aes.NewCipher(s.encryptionKey)
	if err != nil {
		return "", err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}

	if len(data) < gcm.NonceSize() {
		return "", errors.New("malformed ciphertext")
	}

	nonce, ciphertextBytes := data[:gcm.NonceSize()], data[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, ciphertextBytes, nil)
	if err != nil {
		return "", err
	}

	return string(plaintext), nil
}

// Store replaces the stored credentials. There is a single account slot; a
// new login overwrites the previous one.
func (s *CredentialStore) Store(ctx context.Context, creds Credentials) error {
	if creds.Username == "" {
		return errors.New("username cannot be empty")
	}

	encryptedPassword, err := s.encrypt(creds.Password)
	if err != nil {
		return fmt.Errorf("failed to encrypt password: %w", err)
	}

	encryptedToken, err := s.encrypt(creds.ProviderToken)
	if err != nil {
		return fmt.Errorf("failed to encrypt provider token: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO credentials (id, username, password_encrypted, provider_token_encrypted, user_id, display_name, email, updated_at)
		VALUES (1, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (id) DO UPDATE SET
			username = excluded.username,
			password_encrypted = excluded.password_encrypted,
			provider_token_encrypted = excluded.provider_token_encrypted,
			user_id = excluded.user_id,
			display_name = excluded.display_name,
			email = excluded.email,
			updated_at = CURRENT_TIMESTAMP
	`,
		creds.Username,
		encryptedPassword,
		encryptedToken,
		creds.UserID,
		creds.DisplayName,
		creds.Email,
	)
	return err
}

// Get returns the stored credentials with secrets decrypted.
func (s *CredentialStore) Get(ctx context.Context) (*Credentials, error) {
	var creds Credentials
	var passwordEncrypted, tokenEncrypted string

	err := s.db.QueryRowContext(ctx, `
		SELECT username, password_encrypted, provider_token_encrypted, user_id, display_name, email, updated_at
		FROM credentials
		WHERE id = 1
	`).Scan(
		&creds.Username,
		&passwordEncrypted,
		&tokenEncrypted,
		&creds.UserID,
		&creds.DisplayName,
		&creds.Email,
		&creds.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoCredentials
		}
		return nil, err
	}

	if creds.Password, err = s.decrypt(passwordEncrypted); err != nil {
		return nil, fmt.Errorf("failed to decrypt password: %w", err)
	}
	if creds.ProviderToken, err = s.decrypt(tokenEncrypted); err != nil {
		return nil, fmt.Errorf("failed to decrypt provider token: %w", err)
	}

	return &creds, nil
}

// ProviderToken returns just the decrypted bearer token.
func (s *CredentialStore) ProviderToken(ctx context.Context) (string, error) {
	creds, err := s.Get(ctx)
	if err != nil {
		return "", err
	}
	if creds.ProviderToken == "" {
		return "", ErrNoCredentials
	}
	return creds.ProviderToken, nil
}

// Clear deletes the stored credentials. Called on logout.
func (s *CredentialStore) Clear(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM credentials WHERE id = 1`)
	return err
}
