package sdk

import (
	"cmp"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/celerix-dev/intern-connect/internal/engine"
	"github.com/celerix-dev/intern-connect/internal/vault"
)

// DefaultBaseURL is used when neither Options nor the environment name an API origin.
const DefaultBaseURL = "https://shramicerp.pythonanywhere.com"

// Options configures New. Zero values fall back to the environment, then to defaults.
type Options struct {
	BaseURL       string
	Timeout       time.Duration
	HealthTimeout time.Duration

	StorageDriver string // file, sqlite or memory
	StorageDir    string
	Profile       string
	// Passphrase, when set, seals the bearer token at rest.
	Passphrase string

	Logger *zap.Logger
}

// Kit bundles everything a consumer needs, sharing one store and one client.
type Kit struct {
	Client      *Client
	Session     *Manager
	Intern      *Intern
	Preferences *Preferences
	Store       Store

	backend engine.Backend
}

// New wires storage, the HTTP client and the session manager together.
// The session is not bootstrapped; call Kit.Session.Bootstrap.
func New(opts Options) (*Kit, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	baseURL := cmp.Or(opts.BaseURL,
		os.Getenv("INTERN_API_URL"),
		os.Getenv("API_URL"),
		os.Getenv("REACT_APP_API_URL"),
		DefaultBaseURL,
	)
	driver := cmp.Or(opts.StorageDriver, os.Getenv("INTERN_STORAGE_DRIVER"), engine.DriverFile)
	dir := cmp.Or(opts.StorageDir, os.Getenv("INTERN_STORAGE_DIR"), ".intern-connect")
	profile := cmp.Or(opts.Profile, os.Getenv("INTERN_PROFILE"), engine.DefaultProfile)

	backend, err := engine.Open(driver, dir, engine.WithLogger(logger.Named("storage")))
	if err != nil {
		return nil, fmt.Errorf("open %s storage: %w", driver, err)
	}

	var store Store = engine.NewScope(backend, profile)
	if opts.Passphrase != "" {
		key, err := vault.DeriveKey(opts.Passphrase, profile)
		if err != nil {
			backend.Close()
			return nil, err
		}
		store = vault.NewSealedStore(store, key, KeyAuthToken)
	}

	client, err := NewClient(baseURL, store,
		WithLogger(logger.Named("api")),
		WithTimeout(opts.Timeout),
		WithHealthTimeout(opts.HealthTimeout),
	)
	if err != nil {
		backend.Close()
		return nil, err
	}

	logger.Debug("sdk initialised",
		zap.String("base_url", client.BaseURL()),
		zap.String("storage", driver),
		zap.String("profile", profile),
		zap.Bool("sealed", opts.Passphrase != ""),
	)

	return &Kit{
		Client:      client,
		Session:     NewManager(client),
		Intern:      NewIntern(client),
		Preferences: NewPreferences(store, logger.Named("prefs")),
		Store:       store,
		backend:     backend,
	}, nil
}

// Backend exposes the storage engine, e.g. for migration.
func (k *Kit) Backend() engine.Backend { return k.backend }

// Close detaches the session manager, drops idle connections and closes storage.
func (k *Kit) Close() error {
	k.Session.Close()
	k.Client.Close()
	return k.backend.Close()
}
