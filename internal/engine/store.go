// Package engine implements the device-local key-value storage that backs the
// session artifact (token, user record, flags) and UI preferences.
package engine

import (
	"errors"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"
)

var (
	// ErrKeyNotFound is returned when a requested key does not exist within a profile.
	ErrKeyNotFound = errors.New("key not found")
	// ErrProfileNotFound is returned when a requested profile has never been written.
	ErrProfileNotFound = errors.New("profile not found")
	// ErrWatchUnsupported is returned by Watch on backends without change notification.
	ErrWatchUnsupported = errors.New("storage backend does not support watching")
)

// DefaultProfile is the profile used when none is configured.
const DefaultProfile = "default"

// Storage drivers accepted by Open.
const (
	DriverFile   = "file"
	DriverSQLite = "sqlite"
	DriverMemory = "memory"
)

// Backend is the contract shared by every storage engine.
// Values are opaque strings, the same model mobile key-value storage offers.
type Backend interface {
	// Get returns the value stored under key in profile.
	Get(profile, key string) (string, error)
	// Set stores val under key in profile, creating the profile if needed.
	Set(profile, key, val string) error
	// Delete removes the given keys. Missing keys are not an error.
	Delete(profile string, keys ...string) error
	// Profiles lists every profile that holds data.
	Profiles() ([]string, error)
	// Dump returns a copy of all keys in a profile.
	Dump(profile string) (map[string]string, error)
	// Close releases the backend's resources.
	Close() error
}

// Option configures Open.
type Option func(*openOptions)

type openOptions struct {
	logger *zap.Logger
}

// WithLogger sets the logger used for load and watch warnings.
func WithLogger(l *zap.Logger) Option {
	return func(o *openOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// Open builds a backend for the given driver rooted at dir.
func Open(driver, dir string, opts ...Option) (Backend, error) {
	o := openOptions{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	switch driver {
	case DriverFile, "":
		p, err := NewPersistence(dir)
		if err != nil {
			return nil, err
		}
		p.logger = o.logger
		data, err := p.LoadAll()
		if err != nil {
			return nil, err
		}
		ms := NewMemStore(data, p)
		ms.logger = o.logger
		return ms, nil
	case DriverSQLite:
		return OpenSQLite(filepath.Join(dir, "session.db"))
	case DriverMemory:
		return NewMemStore(nil, nil), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", driver)
	}
}
