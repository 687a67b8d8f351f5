// Package registry enforces the single-active-playback rule across every
// player instance in the process. The registry knows only opaque handles and
// a stop callback per handle, never player internals: claiming ownership is
// the one path through which a superseded player learns it must stop, which
// replaces scanning all live players on every play.
package registry

import (
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Handle identifies one live playback instance. It is used only for registry
// bookkeeping, never for playback control.
type Handle = uuid.UUID

// Registry tracks the single currently-active playback handle. One instance
// is shared by every player in the process.
type Registry struct {
	logger *zap.Logger

	mu     sync.Mutex
	active Handle
	stops  map[Handle]func()
}

// New creates an empty registry
func New(logger *zap.Logger) *Registry {
	return &Registry{
		logger: logger,
		stops:  make(map[Handle]func()),
	}
}

// Register records the stop callback the registry invokes when the handle is
// superseded by another claim. Players register once at construction.
func (r *Registry) Register(h Handle, stop func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stops[h] = stop
}

// Deregister forgets a handle. An active handle being deregistered also
// releases its claim.
func (r *Registry) Deregister(h Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.stops, h)
	if r.active == h {
		r.active = uuid.Nil
	}
}

// Claim makes h the active handle. A previously active handle is told to
// stop through its registered callback. The active slot is reassigned before
// the callback runs, so the superseded player's own Release arrives stale
// and cannot clobber the new claim. Claiming while already active is a no-op.
func (r *Registry) Claim(h Handle) {
	r.mu.Lock()
	prev := r.active
	if prev == h {
		r.mu.Unlock()
		return
	}
	r.active = h
	stop := r.stops[prev]
	r.mu.Unlock()

	if prev != uuid.Nil && stop != nil {
		r.logger.Debug("playback claim superseded",
			zap.String("previous", prev.String()),
			zap.String("active", h.String()))
		stop()
	}
}

// Release clears the active slot, but only when h still owns it. A stale
// release from a just-superseded player is a no-op.
func (r *Registry) Release(h Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active == h {
		r.active = uuid.Nil
	}
}

// Active returns the currently active handle, if any
func (r *Registry) Active() (Handle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active, r.active != uuid.Nil
}
