package player

import (
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/alexplain/jukebox/internal/display"
	"github.com/alexplain/jukebox/internal/domain"
	"github.com/alexplain/jukebox/internal/registry"
)

// AlbumPlayer steps one audio engine through a resolved release playlist.
// Auto-advance on track end is what distinguishes it from a row of
// standalone TrackPlayers; after the last track it rewinds to track zero and
// stops rather than replaying.
type AlbumPlayer struct {
	logger  *zap.Logger
	reg     *registry.Registry
	engine  domain.AudioEngine
	handle  registry.Handle
	release domain.ReleaseBundle
	urls    []string
	rows    []string // precomputed row titles

	mu          sync.Mutex
	index       int // current playlist position, always valid while urls is non-empty
	activeIndex int // highlighted row, -1 when none
	playing     bool
	failed      bool // the last source load failed; cleared on the next start
	loaded      bool // engine source currently matches urls[index]
	current     float64
	duration    float64
	progress    float64
	onUpdate    func(domain.AlbumDisplay)

	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// NewAlbumPlayer binds a player to a release. resolveURL maps a catalog
// entry to its playable URL; the engine is owned exclusively by this player.
// An empty release is valid: every operation on it is a no-op.
func NewAlbumPlayer(logger *zap.Logger, reg *registry.Registry, engine domain.AudioEngine, release domain.ReleaseBundle, resolveURL func(domain.CatalogEntry) string) *AlbumPlayer {
	urls := make([]string, len(release.Tracks))
	rows := make([]string, len(release.Tracks))
	for i, tr := range release.Tracks {
		urls[i] = resolveURL(tr)
		rows[i] = display.TrackListTitle(tr.Name)
	}

	p := &AlbumPlayer{
		logger:      logger,
		reg:         reg,
		engine:      engine,
		handle:      uuid.New(),
		release:     release,
		urls:        urls,
		rows:        rows,
		activeIndex: -1,
		quit:        make(chan struct{}),
		done:        make(chan struct{}),
	}
	reg.Register(p.handle, p.stopPlayback)
	if len(urls) > 0 {
		engine.SetSource(urls[0])
		p.loaded = true
	}
	go p.run()
	return p
}

// ID returns the stable widget identifier
func (p *AlbumPlayer) ID() string {
	return p.handle.String()
}

// SetUpdateCallback registers the function invoked with a fresh display
// snapshot after every observable change
func (p *AlbumPlayer) SetUpdateCallback(fn func(domain.AlbumDisplay)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onUpdate = fn
}

// PlayFrom restarts playback at the given playlist position. Out-of-range
// indices and empty playlists are silent no-ops. The previously active row
// loses its progress display before the new one activates.
func (p *AlbumPlayer) PlayFrom(index int) {
	p.mu.Lock()
	if len(p.urls) == 0 || index < 0 || index >= len(p.urls) {
		p.mu.Unlock()
		return
	}
	url := p.urls[index]
	p.index = index
	p.activeIndex = index
	p.playing = true
	p.failed = false
	p.loaded = true
	p.current = 0
	p.duration = 0
	p.progress = 0
	p.mu.Unlock()

	p.reg.Claim(p.handle)
	p.engine.SetSource(url)
	p.engine.Play()

	if h, ok := p.reg.Active(); !ok || h != p.handle {
		p.stopPlayback()
		return
	}
	p.logger.Debug("release track started",
		zap.String("release", p.release.DisplayName),
		zap.Int("index", index))
	p.publish()
}

// SelectTrack is a user-initiated jump: it always starts the chosen track
// from the top, regardless of prior state.
func (p *AlbumPlayer) SelectTrack(index int) {
	p.PlayFrom(index)
}

// Toggle is the single play/pause control overlaying the release art.
// Pausing keeps the current track and position; resuming continues the
// loaded track instead of restarting it.
func (p *AlbumPlayer) Toggle() {
	p.mu.Lock()
	playing := p.playing
	loaded := p.loaded
	index := p.index
	p.mu.Unlock()

	if playing {
		p.pause()
		return
	}
	if !loaded {
		p.PlayFrom(index)
		return
	}

	p.reg.Claim(p.handle)

	p.mu.Lock()
	p.playing = true
	p.failed = false
	if p.activeIndex < 0 {
		p.activeIndex = p.index
	}
	p.mu.Unlock()

	p.engine.Play()

	if h, ok := p.reg.Active(); !ok || h != p.handle {
		p.stopPlayback()
		return
	}
	p.publish()
}

// Snapshot returns the current display state. Only the active row carries a
// progress value and time label; the rest render empty.
func (p *AlbumPlayer) Snapshot() domain.AlbumDisplay {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshotLocked()
}

// Close stops the event loop, forgets the registry handle and releases the
// engine
func (p *AlbumPlayer) Close() error {
	var err error
	p.closeOnce.Do(func() {
		close(p.quit)
		p.reg.Deregister(p.handle)
		err = p.engine.Close()
		<-p.done
	})
	return err
}

// stopPlayback is the registry's supersede callback
func (p *AlbumPlayer) stopPlayback() {
	p.pause()
}

func (p *AlbumPlayer) pause() {
	p.mu.Lock()
	if !p.playing {
		p.mu.Unlock()
		return
	}
	p.playing = false
	p.mu.Unlock()

	p.engine.Pause()
	p.reg.Release(p.handle)
	p.publish()
}

func (p *AlbumPlayer) run() {
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

func (p *AlbumPlayer) handleEvent(ev domain.EngineEvent) {
	switch ev.Kind {
	case domain.EventTimeUpdate:
		p.mu.Lock()
		p.current = ev.Position
		if usableDuration(ev.Duration) {
			p.duration = ev.Duration
		}
		if usableDuration(p.duration) {
			p.progress = p.current / p.duration * 100
		}
		p.mu.Unlock()
		p.publish()

	case domain.EventLoadedMetadata:
		p.mu.Lock()
		if usableDuration(ev.Duration) {
			p.duration = ev.Duration
		}
		p.mu.Unlock()
		p.publish()

	case domain.EventEnded:
		p.handleEnded()

	case domain.EventError:
		p.mu.Lock()
		p.playing = false
		p.failed = true
		p.mu.Unlock()
		p.logger.Warn("release source failed",
			zap.String("release", p.release.DisplayName),
			zap.String("error", ev.Err))
		p.reg.Release(p.handle)
		p.publish()
	}
}

// handleEnded advances to the next track, or wraps to a "rewound but
// stopped" state after the last one: index back to zero, source reloaded
// without playing, highlight cleared.
func (p *AlbumPlayer) handleEnded() {
	p.mu.Lock()
	next := p.index + 1
	if next < len(p.urls) {
		p.mu.Unlock()
		p.PlayFrom(next)
		return
	}

	var url string
	if len(p.urls) > 0 {
		url = p.urls[0]
		p.loaded = true
	}
	p.index = 0
	p.activeIndex = -1
	p.playing = false
	p.current = 0
	p.duration = 0
	p.progress = 0
	p.mu.Unlock()

	if url != "" {
		p.engine.SetSource(url)
	}
	p.reg.Release(p.handle)
	p.logger.Debug("release finished", zap.String("release", p.release.DisplayName))
	p.publish()
}

func (p *AlbumPlayer) snapshotLocked() domain.AlbumDisplay {
	rows := make([]domain.AlbumRow, len(p.rows))
	for i, title := range p.rows {
		rows[i] = domain.AlbumRow{Title: title}
	}
	if p.activeIndex >= 0 && p.activeIndex < len(rows) {
		rows[p.activeIndex].Progress = p.progress
		if usableDuration(p.duration) {
			rows[p.activeIndex].TimeLabel = display.FormatTimeRange(p.current, p.duration)
		}
	}

	var artPath string
	if p.release.Art != nil {
		artPath = p.release.Art.Path
	}
	return domain.AlbumDisplay{
		ID:          p.handle.String(),
		Title:       p.release.DisplayName,
		ArtPath:     artPath,
		TrackCount:  len(p.rows),
		Playing:     p.playing,
		Failed:      p.failed,
		ActiveIndex: p.activeIndex,
		Rows:        rows,
	}
}

func (p *AlbumPlayer) publish() {
	p.mu.Lock()
	fn := p.onUpdate
	snap := p.snapshotLocked()
	p.mu.Unlock()

	if fn != nil {
		fn(snap)
	}
}
