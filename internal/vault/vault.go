// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package vault provides encryption at rest for small secrets (API keys).
//
// Secrets are encrypted with AES-256-GCM under a per-installation key
// derived via PBKDF2-SHA-256 from a random master secret stored in a
// 0600 key file. Ciphertext is self-describing: the ENC: prefix followed
// by base64(nonce | ciphertext | tag). Key material never leaves this
// package.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/pbkdf2"

	"github.com/jeranaias/loom-tui/internal/util"
)

// =============================================================================
// CONSTANTS
// =============================================================================

// Prefix marks a value as encrypted (format: ENC:base64(nonce|ciphertext|tag))
const Prefix = "ENC:"

// NonceSize is the size of the nonce/IV for AES-GCM (12 bytes / 96 bits)
const NonceSize = 12

// KeySize is the size of the AES-256 key (32 bytes / 256 bits)
const KeySize = 32

// SaltSize is the size of the salt for key derivation (32 bytes)
const SaltSize = 32

// PBKDF2Iterations is the number of iterations for PBKDF2 key derivation.
// OWASP 2023 recommends 600,000+ for PBKDF2-SHA-256.
const PBKDF2Iterations = 600000

// keyFileName is the name of the key file inside the vault directory.
const keyFileName = "vault.key"

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrInvalidCiphertext indicates the ciphertext format is invalid.
	ErrInvalidCiphertext = errors.New("invalid ciphertext format")

	// ErrDecryptionFailed indicates decryption failed (wrong key or
	// tampered data). Callers treat this the same as "no key configured"
	// rather than crashing.
	ErrDecryptionFailed = errors.New("decryption failed: authentication tag mismatch")
)

// IsDecryptionError reports whether err means the stored ciphertext is
// unusable, for either format or authentication reasons.
func IsDecryptionError(err error) bool {
	return errors.Is(err, ErrDecryptionFailed) || errors.Is(err, ErrInvalidCiphertext)
}

// =============================================================================
// SECURITY HELPERS
// =============================================================================

// ZeroBytes securely zeros sensitive byte slices to prevent memory
// disclosure via crash dumps.
func ZeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// =============================================================================
// VAULT
// =============================================================================

// Vault encrypts and decrypts small secrets with a per-installation key.
type Vault struct {
	aead    cipher.AEAD
	keyPath string
}

// Open loads the vault key from dir, creating a fresh key file on first
// use. The key file holds salt | master secret and is written 0600.
func Open(dir string) (*Vault, error) {
	keyPath := filepath.Join(dir, keyFileName)

	raw, err := os.ReadFile(keyPath)
	if errors.Is(err, os.ErrNotExist) {
		raw, err = generateKeyFile(keyPath)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load vault key: %w", err)
	}
	if len(raw) != SaltSize+KeySize {
		return nil, fmt.Errorf("vault key file %s is corrupt", keyPath)
	}

	salt, secret := raw[:SaltSize], raw[SaltSize:]
	key := pbkdf2.Key(secret, salt, PBKDF2Iterations, KeySize, sha256.New)
	defer ZeroBytes(key)
	ZeroBytes(secret)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return &Vault{aead: aead, keyPath: keyPath}, nil
}

// generateKeyFile creates a new random salt + master secret and persists it.
func generateKeyFile(keyPath string) ([]byte, error) {
	raw := make([]byte, SaltSize+KeySize)
	if _, err := io.ReadFull(rand.Reader, raw); err != nil {
		return nil, fmt.Errorf("failed to generate key material: %w", err)
	}

	if err := util.AtomicWriteFile(keyPath, raw, 0600); err != nil {
		ZeroBytes(raw)
		return nil, err
	}
	return raw, nil
}

// =============================================================================
// ENCRYPT / DECRYPT
// =============================================================================

// Encrypt encrypts a plaintext secret, returning ENC:-prefixed ciphertext.
// The empty string round-trips: it stays empty and is never encrypted.
func (v *Vault) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}

	nonce := make([]byte, NonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := v.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return Prefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt decrypts an ENC:-prefixed ciphertext produced by Encrypt.
// Malformed input fails with ErrInvalidCiphertext; tampered data or a
// foreign key fails with ErrDecryptionFailed. Wrong plaintext is never
// returned silently.
func (v *Vault) Decrypt(ciphertext string) (string, error) {
	if ciphertext == "" {
		return "", nil
	}
	if !strings.HasPrefix(ciphertext, Prefix) {
		return "", ErrInvalidCiphertext
	}

	sealed, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(ciphertext, Prefix))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidCiphertext, err)
	}
	if len(sealed) < NonceSize+v.aead.Overhead() {
		return "", ErrInvalidCiphertext
	}

	nonce, data := sealed[:NonceSize], sealed[NonceSize:]
	plaintext, err := v.aead.Open(nil, nonce, data, nil)
	if err != nil {
		return "", ErrDecryptionFailed
	}
	return string(plaintext), nil
}

// IsEncrypted reports whether a value carries the ENC: prefix.
func IsEncrypted(value string) bool {
	return strings.HasPrefix(value, Prefix)
}

// KeyPath returns the path of the key file backing this vault.
func (v *Vault) KeyPath() string {
	return v.keyPath
}
