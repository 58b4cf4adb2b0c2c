package sdk

import (
	"context"

	"github.com/celerix-dev/intern-connect/internal/engine"
)

// ErrKeyNotFound is returned by a Store when a key has never been written or was deleted.
var ErrKeyNotFound = engine.ErrKeyNotFound

// Persisted session keys. The names match what earlier mobile builds wrote so an
// existing device store stays readable.
const (
	KeyAuthToken       = "auth_token"
	KeyUser            = "user"
	KeyIsAuthenticated = "isAuthenticated"
	KeyTheme           = "theme"
)

// sessionKeys are removed together whenever a session ends.
var sessionKeys = []string{KeyUser, KeyAuthToken, KeyIsAuthenticated}

// --- Functional Interfaces (Interface Segregation) ---

// KVReader reads a single persisted value.
type KVReader interface {
	Get(key string) (string, error)
}

// KVWriter writes and removes persisted values. Delete of a missing key is not an error.
type KVWriter interface {
	Set(key, val string) error
	Delete(keys ...string) error
}

// Store is the device-local key-value storage the client and session manager share.
// Implementations must be safe for concurrent use.
type Store interface {
	KVReader
	KVWriter
}

// ChangeNotifier is implemented by stores that can report writes made by other processes.
type ChangeNotifier interface {
	Watch(ctx context.Context, onChange func()) error
}
