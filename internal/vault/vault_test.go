// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package vault

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	v, err := Open(t.TempDir())
	require.NoError(t, err)

	inputs := []string{
		"sk-abc123",
		"a",
		strings.Repeat("x", 10000),
		"日本語の秘密 with mixed ascii",
		"line1\nline2\ttabs",
	}

	for _, plaintext := range inputs {
		ct, err := v.Encrypt(plaintext)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(ct, Prefix), "ciphertext should carry ENC: prefix")
		assert.NotEqual(t, Prefix+plaintext, ct)

		pt, err := v.Decrypt(ct)
		require.NoError(t, err)
		assert.Equal(t, plaintext, pt)
	}
}

func TestEncryptEmptyStringStaysEmpty(t *testing.T) {
	v, err := Open(t.TempDir())
	require.NoError(t, err)

	ct, err := v.Encrypt("")
	require.NoError(t, err)
	assert.Equal(t, "", ct)

	pt, err := v.Decrypt("")
	require.NoError(t, err)
	assert.Equal(t, "", pt)
}

func TestEncryptIsNonDeterministic(t *testing.T) {
	v, err := Open(t.TempDir())
	require.NoError(t, err)

	a, err := v.Encrypt("same secret")
	require.NoError(t, err)
	b, err := v.Encrypt("same secret")
	require.NoError(t, err)
	assert.NotEqual(t, a, b, "fresh nonce per encryption")
}

func TestDecryptTamperedCiphertext(t *testing.T) {
	v, err := Open(t.TempDir())
	require.NoError(t, err)

	ct, err := v.Encrypt("secret value")
	require.NoError(t, err)

	// Flip a character in the base64 payload
	payload := []byte(ct)
	last := len(payload) - 5
	if payload[last] == 'A' {
		payload[last] = 'B'
	} else {
		payload[last] = 'A'
	}

	_, err = v.Decrypt(string(payload))
	require.Error(t, err)
	assert.True(t, IsDecryptionError(err), "tampered ciphertext must fail as a decryption error, got %v", err)
}

func TestDecryptForeignKeyCiphertext(t *testing.T) {
	v1, err := Open(t.TempDir())
	require.NoError(t, err)
	v2, err := Open(t.TempDir())
	require.NoError(t, err)

	ct, err := v1.Encrypt("secret")
	require.NoError(t, err)

	_, err = v2.Decrypt(ct)
	assert.ErrorIs(t, err, ErrDecryptionFailed)
}

func TestDecryptMalformedInput(t *testing.T) {
	v, err := Open(t.TempDir())
	require.NoError(t, err)

	for _, bad := range []string{
		"not encrypted at all",
		"ENC:",
		"ENC:!!!not-base64!!!",
		"ENC:c2hvcnQ=", // valid base64, too short for nonce+tag
	} {
		_, err := v.Decrypt(bad)
		require.Error(t, err, "input %q should fail", bad)
		assert.True(t, IsDecryptionError(err), "input %q should be a decryption error, got %v", bad, err)
	}
}

func TestVaultKeyPersistsAcrossOpens(t *testing.T) {
	dir := t.TempDir()

	v1, err := Open(dir)
	require.NoError(t, err)
	ct, err := v1.Encrypt("persistent secret")
	require.NoError(t, err)

	// Reopen from the same directory: same key, same plaintexts
	v2, err := Open(dir)
	require.NoError(t, err)
	pt, err := v2.Decrypt(ct)
	require.NoError(t, err)
	assert.Equal(t, "persistent secret", pt)
}

func TestVaultKeyFilePermissions(t *testing.T) {
	dir := t.TempDir()
	v, err := Open(dir)
	require.NoError(t, err)

	info, err := os.Stat(v.KeyPath())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
	assert.Equal(t, filepath.Join(dir, "vault.key"), v.KeyPath())
}

func TestIsEncrypted(t *testing.T) {
	assert.True(t, IsEncrypted("ENC:abcdef"))
	assert.False(t, IsEncrypted("sk-plaintext"))
	assert.False(t, IsEncrypted(""))
}
