package vault

import (
	"context"

	"github.com/celerix-dev/intern-connect/internal/engine"
)

// KV is the flat key-value view the vault wraps.
type KV interface {
	Get(key string) (string, error)
	Set(key, val string) error
	Delete(keys ...string) error
}

// SealedStore encrypts a fixed set of keys on the way into the wrapped store
// and decrypts them on the way out. Other keys pass through untouched.
type SealedStore struct {
	inner     KV
	masterKey []byte
	sealed    map[string]bool
}

// NewSealedStore wraps inner, sealing the listed keys with masterKey.
func NewSealedStore(inner KV, masterKey []byte, keys ...string) *SealedStore {
	set := make(map[string]bool, len(keys))
	for _, k := range keys {
		set[k] = true
	}
	return &SealedStore{inner: inner, masterKey: masterKey, sealed: set}
}

// Get retrieves and, for sealed keys, decrypts a value.
// A plaintext value left by an unsealed install is returned as is and
// re-sealed on the next Set.
func (s *SealedStore) Get(key string) (string, error) {
	val, err := s.inner.Get(key)
	if err != nil || !s.sealed[key] {
		return val, err
	}
	if !IsSealed(val) {
		return val, nil
	}
	return Open(val, s.masterKey, key)
}

// Set encrypts sealed keys before storing them.
func (s *SealedStore) Set(key, val string) error {
	if !s.sealed[key] {
		return s.inner.Set(key, val)
	}
	ciphertext, err := Seal(val, s.masterKey, key)
	if err != nil {
		return err
	}
	return s.inner.Set(key, ciphertext)
}

// Delete removes keys from the wrapped store.
func (s *SealedStore) Delete(keys ...string) error {
	return s.inner.Delete(keys...)
}

// Unwrap returns the wrapped store.
func (s *SealedStore) Unwrap() KV {
	return s.inner
}

// Watch forwards change notification to the wrapped store when it supports it.
func (s *SealedStore) Watch(ctx context.Context, onChange func()) error {
	w, ok := s.inner.(interface {
		Watch(ctx context.Context, onChange func()) error
	})
	if !ok {
		return engine.ErrWatchUnsupported
	}
	return w.Watch(ctx, onChange)
}
