package engine

import "context"

// Scope pins a backend to one profile. It is the flat key-value view the SDK
// consumes (Get/Set/Delete on string keys).
type Scope struct {
	backend Backend
	profile string
}

// NewScope returns a scoped view over backend for profile.
func NewScope(b Backend, profile string) *Scope {
	if profile == "" {
		profile = DefaultProfile
	}
	return &Scope{backend: b, profile: profile}
}

// Profile returns the pinned profile name.
func (s *Scope) Profile() string { return s.profile }

// Backend returns the underlying storage engine.
func (s *Scope) Backend() Backend { return s.backend }

// Get retrieves a value using the pinned profile.
func (s *Scope) Get(key string) (string, error) {
	return s.backend.Get(s.profile, key)
}

// Set stores a value using the pinned profile.
func (s *Scope) Set(key, val string) error {
	return s.backend.Set(s.profile, key, val)
}

// Delete removes keys using the pinned profile.
func (s *Scope) Delete(keys ...string) error {
	return s.backend.Delete(s.profile, keys...)
}

// Watch calls onChange whenever the profile is modified by another process.
// Only the file backend supports it; others return ErrWatchUnsupported.
func (s *Scope) Watch(ctx context.Context, onChange func()) error {
	ms, ok := s.backend.(*MemStore)
	if !ok || ms.persister == nil {
		return ErrWatchUnsupported
	}
	return ms.Watch(ctx, s.profile, onChange)
}
