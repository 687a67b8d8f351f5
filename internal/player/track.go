// Package player implements the playback state machines that sit between the
// catalog resolvers and the audio engines. Each player owns exactly one
// engine and one registry handle, reacts only to discrete engine events
// (never by polling), and publishes a display-state value the UI layer
// renders without computing any playback logic of its own.
package player

import (
	"math"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/alexplain/jukebox/internal/display"
	"github.com/alexplain/jukebox/internal/domain"
	"github.com/alexplain/jukebox/internal/registry"
)

// usableDuration reports whether a duration can participate in progress
// math. The engine reports zero or non-finite values before metadata loads;
// those must never reach a division.
func usableDuration(d float64) bool {
	return d > 0 && !math.IsNaN(d) && !math.IsInf(d, 0)
}

// TrackPlayer is the state machine of one standalone track widget:
// Idle -> Playing <-> Paused -> Ended -> Idle, with Failed reachable from
// any state when the source cannot load. A Play from Failed retries.
type TrackPlayer struct {
	logger *zap.Logger
	reg    *registry.Registry
	engine domain.AudioEngine
	handle registry.Handle

	mu        sync.Mutex
	title     string
	sourceURL string
	state     domain.PlayerState
	current   float64
	duration  float64
	progress  float64
	onUpdate  func(domain.TrackDisplay)

	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// NewTrackPlayer binds a player to one audio source. The engine is owned
// exclusively by this player from here on.
func NewTrackPlayer(logger *zap.Logger, reg *registry.Registry, engine domain.AudioEngine, sourceURL, title string) *TrackPlayer {
	p := &TrackPlayer{
		logger:    logger,
		reg:       reg,
		engine:    engine,
		handle:    uuid.New(),
		title:     title,
		sourceURL: sourceURL,
		state:     domain.StateIdle,
		quit:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	reg.Register(p.handle, p.stopPlayback)
	engine.SetSource(sourceURL)
	go p.run()
	return p
}

// ID returns the stable widget identifier
func (p *TrackPlayer) ID() string {
	return p.handle.String()
}

// SetUpdateCallback registers the function invoked with a fresh display
// snapshot after every observable change
func (p *TrackPlayer) SetUpdateCallback(fn func(domain.TrackDisplay)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onUpdate = fn
}

// Play claims playback ownership and starts the engine
func (p *TrackPlayer) Play() {
	p.reg.Claim(p.handle)

	p.mu.Lock()
	p.state = domain.StatePlaying
	p.mu.Unlock()

	p.engine.Play()

	// Another widget may have claimed between our claim and the engine
	// start; its callback would have found us not yet playing.
	if h, ok := p.reg.Active(); !ok || h != p.handle {
		p.stopPlayback()
		return
	}
	p.logger.Debug("track playing", zap.String("title", p.title))
	p.publish()
}

// Pause stops the engine and gives up the claim. Only meaningful while
// playing; the registry's supersede callback funnels through here too.
func (p *TrackPlayer) Pause() {
	p.mu.Lock()
	if p.state != domain.StatePlaying {
		p.mu.Unlock()
		return
	}
	p.state = domain.StatePaused
	p.mu.Unlock()

	p.engine.Pause()
	p.reg.Release(p.handle)
	p.logger.Debug("track paused", zap.String("title", p.title))
	p.publish()
}

// Toggle flips between Play and Pause
func (p *TrackPlayer) Toggle() {
	p.mu.Lock()
	playing := p.state == domain.StatePlaying
	p.mu.Unlock()

	if playing {
		p.Pause()
	} else {
		p.Play()
	}
}

// Seek moves the engine position to fraction*duration. The fraction is
// clamped to [0,1]; seeking is legal while playing or paused and a no-op
// while the duration is still unknown.
func (p *TrackPlayer) Seek(fraction float64) {
	if math.IsNaN(fraction) {
		return
	}
	if fraction < 0 {
		fraction = 0
	} else if fraction > 1 {
		fraction = 1
	}

	p.mu.Lock()
	d := p.duration
	legal := p.state == domain.StatePlaying || p.state == domain.StatePaused
	p.mu.Unlock()

	if !legal || !usableDuration(d) {
		return
	}
	p.engine.SeekTo(fraction * d)
}

// Snapshot returns the current display state
func (p *TrackPlayer) Snapshot() domain.TrackDisplay {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshotLocked()
}

// Close stops the event loop, forgets the registry handle and releases the
// engine
func (p *TrackPlayer) Close() error {
	var err error
	p.closeOnce.Do(func() {
		close(p.quit)
		p.reg.Deregister(p.handle)
		err = p.engine.Close()
		<-p.done
	})
	return err
}

// stopPlayback is the registry's supersede callback: another widget claimed
// playback, so this one must stop and reset its playing indicator.
func (p *TrackPlayer) stopPlayback() {
	p.Pause()
}

func (p *TrackPlayer) run() {
	defer close(p.done)
	events := p.engine.Events()
	for {
		select {
		case <-p.quit:
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			p.handleEvent(ev)
		}
	}
}

func (p *TrackPlayer) handleEvent(ev domain.EngineEvent) {
	switch ev.Kind {
	case domain.EventTimeUpdate:
		p.mu.Lock()
		p.current = ev.Position
		if usableDuration(ev.Duration) {
			p.duration = ev.Duration
		}
		// Skip the progress update entirely when the duration cannot
		// support it; a stale bar beats a NaN one.
		if usableDuration(p.duration) {
			p.progress = p.current / p.duration * 100
		}
		p.mu.Unlock()

	case domain.EventLoadedMetadata:
		p.mu.Lock()
		if usableDuration(ev.Duration) {
			p.duration = ev.Duration
		}
		p.mu.Unlock()

	case domain.EventEnded:
		p.mu.Lock()
		p.state = domain.StateEnded
		p.current = 0
		p.progress = 0
		p.mu.Unlock()
		// Engine end already implies silence; releasing here only frees
		// the claim slot, it does not stop anything.
		p.reg.Release(p.handle)

	case domain.EventError:
		p.mu.Lock()
		p.state = domain.StateFailed
		p.current = 0
		p.progress = 0
		p.mu.Unlock()
		p.logger.Warn("track source failed",
			zap.String("title", p.title),
			zap.String("error", ev.Err))
		p.reg.Release(p.handle)
	}
	p.publish()
}

func (p *TrackPlayer) snapshotLocked() domain.TrackDisplay {
	return domain.TrackDisplay{
		ID:        p.handle.String(),
		Title:     p.title,
		SourceURL: p.sourceURL,
		Playing:   p.state == domain.StatePlaying,
		Failed:    p.state == domain.StateFailed,
		Progress:  p.progress,
		Elapsed:   display.FormatTime(p.current),
		Length:    display.FormatTime(p.duration),
	}
}

func (p *TrackPlayer) publish() {
	p.mu.Lock()
	fn := p.onUpdate
	snap := p.snapshotLocked()
	p.mu.Unlock()

	if fn != nil {
		fn(snap)
	}
}
