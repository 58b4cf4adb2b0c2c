// Package vault seals sensitive session values (the bearer token) before they
// reach device storage, using AES-GCM with a key derived from a passphrase.
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
	"strings"

	"golang.org/x/crypto/hkdf"
)

// sealPrefix marks values written by Seal so plaintext from older installs can
// still be recognised.
const sealPrefix = "v1:"

var (
	// ErrDecrypt is returned when a sealed value cannot be opened (wrong key or tampered data).
	ErrDecrypt = errors.New("decryption failed (wrong key or tampered data)")
	// ErrNotSealed is returned when Open is given a value Seal did not produce.
	ErrNotSealed = errors.New("value is not sealed")
)

// DeriveKey stretches a passphrase into a 32-byte AES-256 key.
// The salt scopes the key (the storage profile name is used), so the same
// passphrase yields different keys per profile.
func DeriveKey(passphrase, salt string) ([]byte, error) {
	if passphrase == "" {
		return nil, errors.New("empty passphrase")
	}
	key := make([]byte, 32)
	r := hkdf.New(sha256.New, []byte(passphrase), []byte(salt), []byte("intern-connect session vault"))
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	return key, nil
}

// Seal encrypts plaintext with key. The associated data binds the ciphertext to
// the storage key it was written under, so values cannot be swapped between keys.
func Seal(plaintext string, key []byte, associated string) (string, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	// Prepend the nonce so Open can find it
	sealed := gcm.Seal(nonce, nonce, []byte(plaintext), []byte(associated))
	return sealPrefix + base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Open reverses Seal.
func Open(sealed string, key []byte, associated string) (string, error) {
	if !IsSealed(sealed) {
		return "", ErrNotSealed
	}
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimPrefix(sealed, sealPrefix))
	if err != nil {
		return "", fmt.Errorf("decode sealed value: %w", err)
	}

	gcm, err := newGCM(key)
	if err != nil {
		return "", err
	}

	nonceSize := gcm.NonceSize()
	if len(raw) < nonceSize {
		return "", fmt.Errorf("ciphertext too short")
	}

	nonce, ciphertext := raw[:nonceSize], raw[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, []byte(associated))
	if err != nil {
		return "", ErrDecrypt
	}
	return string(plaintext), nil
}

// IsSealed reports whether v carries the Seal prefix.
func IsSealed(v string) bool {
	return strings.HasPrefix(v, sealPrefix)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
