package companion

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// LiveService is the name under which the *Live is registered.
const LiveService = "companion.live"

// Loader returns the first persisted character, if any.
type Loader interface {
	First(ctx context.Context) (CharacterState, bool, error)
}

// Live holds the in-process snapshot of the companion. It is safe for
// concurrent use.
type Live struct {
	mu     sync.RWMutex
	state  CharacterState
	loader Loader
	now    func() time.Time
	logger *slog.Logger
}

// LiveOption configures a Live.
type LiveOption func(*Live)

// WithClock overrides the clock used for default characters.
func WithClock(now func() time.Time) LiveOption {
	return func(l *Live) { l.now = now }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) LiveOption {
	return func(l *Live) { l.logger = logger }
}

// NewLive creates a Live backed by loader. The initial snapshot is a default
// character until Reload is called.
func NewLive(loader Loader, opts ...LiveOption) *Live {
	l := &Live{
		loader: loader,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(l)
	}
	l.state = DefaultCharacter(l.now().UTC())
	return l
}

// Snapshot returns the current character. Slices and maps are shared with
// the snapshot and must not be modified.
func (l *Live) Snapshot() CharacterState {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// Set replaces the current character.
func (l *Live) Set(c CharacterState) {
	l.mu.Lock()
	l.state = c
	l.mu.Unlock()
}

// Reload re-reads the first persisted character. When none is persisted the
// snapshot is reset to a default character.
func (l *Live) Reload(ctx context.Context) error {
	c, ok, err := l.loader.First(ctx)
	if err != nil {
		return fmt.Errorf("companion: reload: %w", err)
	}
	if !ok {
		c = DefaultCharacter(l.now().UTC())
	}
	l.Set(c)
	l.logger.Debug("companion: reloaded", "name", c.Name, "persisted", ok)
	return nil
}
