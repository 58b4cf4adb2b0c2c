package sdk

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/celerix-dev/intern-connect/pkg/schema"
)

// Preferences holds device UI settings kept next to the session.
type Preferences struct {
	store  Store
	logger *zap.Logger
}

// NewPreferences returns preferences backed by store.
func NewPreferences(store Store, logger *zap.Logger) *Preferences {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Preferences{store: store, logger: logger}
}

// Theme returns the persisted theme. Anything unreadable falls back to light.
func (p *Preferences) Theme() schema.Theme {
	v, err := p.store.Get(KeyTheme)
	if err != nil {
		if !errors.Is(err, ErrKeyNotFound) {
			p.logger.Warn("error loading theme", zap.Error(err))
		}
		return schema.ThemeLight
	}
	if t := schema.Theme(v); t.Valid() {
		return t
	}
	return schema.ThemeLight
}

func (p *Preferences) SetTheme(t schema.Theme) error {
	if !t.Valid() {
		return fmt.Errorf("unknown theme %q", t)
	}
	if err := p.store.Set(KeyTheme, string(t)); err != nil {
		return fmt.Errorf("save theme: %w", err)
	}
	return nil
}

// ToggleTheme flips between light and dark and returns the new theme.
func (p *Preferences) ToggleTheme() (schema.Theme, error) {
	next := schema.ThemeDark
	if p.Theme() == schema.ThemeDark {
		next = schema.ThemeLight
	}
	return next, p.SetTheme(next)
}
