package sdk

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/celerix-dev/intern-connect/internal/engine"
	"github.com/celerix-dev/intern-connect/pkg/schema"
)

// ErrWatchUnsupported is returned by WatchStore when the store cannot report changes.
var ErrWatchUnsupported = engine.ErrWatchUnsupported

// State is the position of the session state machine.
type State int

const (
	StateBootstrapping State = iota
	StateAnonymous
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateBootstrapping:
		return "bootstrapping"
	case StateAnonymous:
		return "anonymous"
	case StateAuthenticated:
		return "authenticated"
	}
	return "unknown"
}

// Snapshot is a consistent read of the session.
type Snapshot struct {
	User            schema.User `json:"user"`
	IsAuthenticated bool        `json:"isAuthenticated"`
	Loading         bool        `json:"loading"`
	State           State       `json:"-"`
}

// LoginResult is the normalized outcome of Login. Status carries the domain
// status code (PENDING, REJECTED) when the backend supplied one.
type LoginResult struct {
	Success    bool        `json:"success"`
	User       schema.User `json:"user,omitempty"`
	Error      string      `json:"error,omitempty"`
	Status     string      `json:"status,omitempty"`
	HTTPStatus int         `json:"http_status,omitempty"`
	Kind       Kind        `json:"kind,omitempty"`
}

// RegisterResult is the normalized outcome of Register.
type RegisterResult struct {
	Success  bool   `json:"success"`
	Message  string `json:"message,omitempty"`
	InternID string `json:"intern_id,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Manager owns the authenticated identity. It is the only writer of the
// in-memory session; everything else reads Snapshot or subscribes.
type Manager struct {
	client *Client
	store  Store
	logger *zap.Logger

	mu      sync.RWMutex
	user    schema.User
	state   State
	loading bool

	refresh     singleflight.Group
	changes     broadcaster[Snapshot]
	unsubscribe func()
}

// NewManager returns a manager in the Bootstrapping state. It listens to the
// client's session events so a 401 on any request ends the session here too.
func NewManager(client *Client) *Manager {
	m := &Manager{
		client:  client,
		store:   client.store,
		logger:  client.logger.Named("session"),
		state:   StateBootstrapping,
		loading: true,
	}
	m.unsubscribe = client.Subscribe(m.handleEvent)
	return m
}

func (m *Manager) handleEvent(ev Event) {
	if ev.Type != EventSessionInvalidated {
		return
	}
	m.logger.Info("session invalidated by server", zap.String("path", ev.Path))
	m.transition(nil, StateAnonymous)
}

// Bootstrap restores the session from storage and validates it with the
// server. Failures are absorbed: the result is simply Anonymous.
func (m *Manager) Bootstrap(ctx context.Context) Snapshot {
	m.checkAuthStatus(ctx)
	m.mu.Lock()
	m.loading = false
	if m.state == StateBootstrapping {
		m.state = StateAnonymous
	}
	m.mu.Unlock()
	snap := m.Snapshot()
	m.changes.publish(snap)
	return snap
}

// RefreshUser re-validates the persisted session. Concurrent calls share one request.
func (m *Manager) RefreshUser(ctx context.Context) Snapshot {
	_, _, _ = m.refresh.Do("me", func() (any, error) {
		m.checkAuthStatus(ctx)
		return nil, nil
	})
	return m.Snapshot()
}

func (m *Manager) checkAuthStatus(ctx context.Context) {
	stored, err := m.store.Get(KeyUser)
	if err != nil || stored == "" {
		if err != nil && !errors.Is(err, ErrKeyNotFound) {
			m.logger.Error("auth check: read user", zap.Error(err))
		}
		m.transition(nil, StateAnonymous)
		return
	}

	resp, err := m.client.Execute(ctx, Request{Path: PathMe})
	if err == nil {
		var payload schema.Payload
		if payload, err = resp.Payload(); err == nil {
			if user := identityFrom(ResolvePayload(payload)); user != nil {
				if err = m.persistUser(user); err == nil {
					m.transition(user, StateAuthenticated)
					return
				}
			} else {
				err = errors.New("empty identity")
			}
		}
	}

	m.logger.Info("session expired, clearing local data", zap.Error(err))
	if delErr := m.store.Delete(KeyUser, KeyIsAuthenticated); delErr != nil {
		m.logger.Error("auth check: clear user", zap.Error(delErr))
	}
	m.transition(nil, StateAnonymous)
}

// Login authenticates with the given credentials, passed as given. It never
// returns a Go error; every outcome is described by the result. A rejected
// login leaves the session alone unless the server answers 401, which ends any
// stored session like a 401 anywhere else.
func (m *Manager) Login(ctx context.Context, email, password string, remember bool) LoginResult {
	resp, err := m.client.Execute(ctx, Request{
		Method: http.MethodPost,
		Path:   PathLogin,
		Body:   schema.Credentials{Email: email, Password: password, Remember: remember},
	})
	if err != nil {
		m.logger.Warn("login failed", zap.Error(err))
		return loginFailure(err)
	}

	payload, err := resp.Payload()
	if err != nil {
		return LoginResult{Error: "Login failed", HTTPStatus: resp.Status, Kind: KindValidation}
	}
	data := ResolvePayload(payload)

	user := data.Object("user")
	if user == nil {
		msg := data.String("error")
		if msg == "" {
			msg = "Login failed"
		}
		m.logger.Info("login rejected", zap.String("status", data.String("status")))
		return LoginResult{
			Error:      msg,
			Status:     data.String("status"),
			HTTPStatus: resp.Status,
			Kind:       KindValidation,
		}
	}

	identity := schema.User(user)
	if err := m.persistUser(identity); err != nil {
		m.logger.Error("login: persist session", zap.Error(err))
		return LoginResult{Error: err.Error(), HTTPStatus: resp.Status}
	}
	if tok := cmp.Or(data.String("token"), data.String("access_token")); tok != "" {
		if err := m.client.SetToken(tok); err != nil {
			m.logger.Error("login: persist token", zap.Error(err))
		}
	} else if err := m.client.ClearToken(); err != nil {
		// A token left by an earlier login must not ride along with the new identity.
		m.logger.Error("login: clear stale token", zap.Error(err))
	}

	m.transition(identity, StateAuthenticated)
	m.logger.Info("login successful", zap.String("intern_id", identity.InternID()))
	return LoginResult{Success: true, User: identity.Clone(), HTTPStatus: resp.Status}
}

func loginFailure(err error) LoginResult {
	res := LoginResult{Error: err.Error(), Kind: KindOf(err)}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		res.Error = apiErr.Message
		res.Status = apiErr.Code
		res.HTTPStatus = apiErr.Status
	}
	if res.Error == "" {
		res.Error = "Login failed. Please try again."
	}
	return res
}

// Register creates a pending account. It never authenticates.
func (m *Manager) Register(ctx context.Context, req schema.RegisterRequest) RegisterResult {
	resp, err := m.client.Execute(ctx, Request{Method: http.MethodPost, Path: PathRegister, Body: req})
	if err != nil {
		m.logger.Warn("registration failed", zap.Error(err))
		msg := err.Error()
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			msg = apiErr.Message
		}
		if msg == "" {
			msg = "Registration failed. Please try again."
		}
		return RegisterResult{Error: msg}
	}

	payload, err := resp.Payload()
	if err != nil {
		// 2xx without a JSON body still means the account was created.
		return RegisterResult{Success: true}
	}
	data := ResolvePayload(payload)
	return RegisterResult{
		Success:  true,
		Message:  data.String("message"),
		InternID: data.String("intern_id"),
	}
}

// CheckPendingStatus asks whether a registered account has been approved.
func (m *Manager) CheckPendingStatus(ctx context.Context, email string) (schema.Payload, error) {
	resp, err := m.client.Execute(ctx, Request{
		Method: http.MethodPost,
		Path:   PathPendingStatus,
		Body:   map[string]string{"email": email},
	})
	if err != nil {
		return nil, err
	}
	payload, err := resp.Payload()
	if err != nil {
		return nil, err
	}
	return ResolvePayload(payload), nil
}

// Logout tells the server, then always clears the local session. A server
// failure is only logged; the returned error reports local storage failures.
func (m *Manager) Logout(ctx context.Context) error {
	if _, err := m.client.Execute(ctx, Request{Method: http.MethodPost, Path: PathLogout}); err != nil {
		m.logger.Warn("logout request failed", zap.Error(err))
	}

	m.transition(nil, StateAnonymous)

	var errs []error
	if err := m.store.Delete(KeyUser, KeyIsAuthenticated); err != nil {
		errs = append(errs, fmt.Errorf("clear user: %w", err))
	}
	if err := m.client.ClearToken(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// UpdateUser replaces the identity in memory and storage without a network
// call. The state is left as it is: an anonymous session stays anonymous until
// the stored user is validated by Bootstrap.
func (m *Manager) UpdateUser(user schema.User) error {
	if user == nil {
		return errors.New("user is required")
	}
	state := m.State()
	if err := m.storeUser(user); err != nil {
		return err
	}
	if state == StateAuthenticated {
		if err := m.store.Set(KeyIsAuthenticated, "true"); err != nil {
			return fmt.Errorf("persist auth flag: %w", err)
		}
	}
	m.transition(user.Clone(), state)
	return nil
}

// Resync re-reads the persisted session, picking up changes made by the HTTP
// layer or another process. A missing user or flag means Anonymous.
func (m *Manager) Resync() Snapshot {
	raw, err := m.store.Get(KeyUser)
	flag, flagErr := m.store.Get(KeyIsAuthenticated)
	if err != nil || flagErr != nil || raw == "" || flag != "true" {
		m.transition(nil, StateAnonymous)
		return m.Snapshot()
	}

	var user schema.User
	if err := json.Unmarshal([]byte(raw), &user); err != nil || user == nil {
		m.logger.Warn("resync: stored user is not valid JSON", zap.Error(err))
		m.transition(nil, StateAnonymous)
		return m.Snapshot()
	}
	m.transition(user, StateAuthenticated)
	return m.Snapshot()
}

// WatchStore resyncs whenever the backing store is changed by another
// process. It returns once the watch is running; cancel ctx to stop it.
func (m *Manager) WatchStore(ctx context.Context) error {
	n, ok := m.store.(ChangeNotifier)
	if !ok {
		return ErrWatchUnsupported
	}
	return n.Watch(ctx, func() {
		snap := m.Resync()
		m.logger.Debug("session store changed", zap.Stringer("state", snap.State))
	})
}

// Snapshot returns the current session.
func (m *Manager) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Snapshot{
		User:            m.user.Clone(),
		IsAuthenticated: m.state == StateAuthenticated,
		Loading:         m.loading,
		State:           m.state,
	}
}

// User returns a copy of the current identity, or nil.
func (m *Manager) User() schema.User {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.user.Clone()
}

// IsAuthenticated reports whether a validated identity is held.
func (m *Manager) IsAuthenticated() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state == StateAuthenticated
}

// Loading reports whether Bootstrap has not finished yet.
func (m *Manager) Loading() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.loading
}

// State returns the state machine position.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Subscribe registers fn for session changes. The returned func unsubscribes.
func (m *Manager) Subscribe(fn func(Snapshot)) func() {
	return m.changes.subscribe(fn)
}

// Close detaches the manager from the client's events.
func (m *Manager) Close() error {
	if m.unsubscribe != nil {
		m.unsubscribe()
	}
	return nil
}

func (m *Manager) storeUser(user schema.User) error {
	raw, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}
	if err := m.store.Set(KeyUser, string(raw)); err != nil {
		return fmt.Errorf("persist user: %w", err)
	}
	return nil
}

func (m *Manager) persistUser(user schema.User) error {
	if err := m.storeUser(user); err != nil {
		return err
	}
	if err := m.store.Set(KeyIsAuthenticated, "true"); err != nil {
		return fmt.Errorf("persist auth flag: %w", err)
	}
	return nil
}

// transition moves the state machine and notifies subscribers when anything
// visible changed.
func (m *Manager) transition(user schema.User, state State) {
	m.mu.Lock()
	changed := m.state != state || !sameUser(m.user, user)
	m.user = user
	m.state = state
	m.mu.Unlock()

	if changed {
		m.changes.publish(m.Snapshot())
	}
}

func sameUser(a, b schema.User) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ra, errA := json.Marshal(a)
	rb, errB := json.Marshal(b)
	return errA == nil && errB == nil && string(ra) == string(rb)
}
