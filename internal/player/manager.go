package player

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/alexplain/jukebox/internal/display"
	"github.com/alexplain/jukebox/internal/domain"
	"github.com/alexplain/jukebox/internal/playlist"
	"github.com/alexplain/jukebox/internal/registry"
)

// section is one widget group of the page: a directory of standalone tracks,
// or the releases grid.
type section struct {
	id     string
	status domain.SectionStatus
	tracks []*TrackPlayer
	albums []*AlbumPlayer
}

// Manager builds and owns the page's player widgets. Sections load
// asynchronously as their catalog listings arrive; one section's fetch
// failure is isolated to that section and never prevents siblings from
// loading or playing.
type Manager struct {
	logger  *zap.Logger
	catalog domain.CatalogClient
	engines domain.EngineFactory
	reg     *registry.Registry

	baseURL     string
	sectionIDs  []string
	releasesDir string

	mu       sync.RWMutex
	sections []*section
	tracks   map[string]*TrackPlayer
	albums   map[string]*AlbumPlayer
	onUpdate func()

	wg sync.WaitGroup
}

// NewManager wires the manager against its collaborators. Widgets are not
// built until Load.
func NewManager(logger *zap.Logger, cfg domain.Config, catalog domain.CatalogClient, engines domain.EngineFactory, reg *registry.Registry) *Manager {
	m := &Manager{
		logger:      logger,
		catalog:     catalog,
		engines:     engines,
		reg:         reg,
		sectionIDs:  cfg.Sections(),
		releasesDir: cfg.ReleasesDir(),
		tracks:      make(map[string]*TrackPlayer),
		albums:      make(map[string]*AlbumPlayer),
	}
	// Source URLs point at the gateway, or directly into the local library
	// when one is configured
	if dir := cfg.MusicDir(); dir != "" {
		m.baseURL = strings.TrimRight(dir, "/")
	} else {
		m.baseURL = cfg.GatewayURL()
	}

	for _, id := range m.sectionIDs {
		m.sections = append(m.sections, &section{id: id, status: domain.SectionLoading})
	}
	m.sections = append(m.sections, &section{id: m.releasesDir, status: domain.SectionLoading})
	return m
}

// SetUpdateCallback registers the hook invoked after any widget publishes a
// new display state or a section changes status
func (m *Manager) SetUpdateCallback(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onUpdate = fn
}

// Load fetches every configured section concurrently and builds its widgets.
// It returns once the loads are scheduled; sections flip from "loading" as
// their listings arrive.
func (m *Manager) Load(ctx context.Context) {
	for _, id := range m.sectionIDs {
		m.wg.Add(1)
		go func(id string) {
			defer m.wg.Done()
			m.loadTrackSection(ctx, id)
		}(id)
	}
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.loadReleases(ctx)
	}()
}

// Wait blocks until all scheduled section loads have settled
func (m *Manager) Wait() {
	m.wg.Wait()
}

// Track looks a standalone track player up by widget ID
func (m *Manager) Track(id string) (*TrackPlayer, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.tracks[id]
	return p, ok
}

// Album looks a release player up by widget ID
func (m *Manager) Album(id string) (*AlbumPlayer, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.albums[id]
	return p, ok
}

// Snapshot renders every section in page order
func (m *Manager) Snapshot() []domain.SectionView {
	m.mu.RLock()
	defer m.mu.RUnlock()

	views := make([]domain.SectionView, 0, len(m.sections))
	for _, s := range m.sections {
		view := domain.SectionView{
			ID:     s.id,
			Status: s.status,
			Tracks: make([]domain.TrackDisplay, 0, len(s.tracks)),
			Albums: make([]domain.AlbumDisplay, 0, len(s.albums)),
		}
		for _, p := range s.tracks {
			view.Tracks = append(view.Tracks, p.Snapshot())
		}
		for _, p := range s.albums {
			view.Albums = append(view.Albums, p.Snapshot())
		}
		views = append(views, view)
	}
	return views
}

// Close waits for pending loads and shuts every widget down
func (m *Manager) Close() error {
	m.wg.Wait()

	m.mu.Lock()
	defer m.mu.Unlock()

	var err error
	for _, p := range m.tracks {
		err = multierr.Append(err, p.Close())
	}
	for _, p := range m.albums {
		err = multierr.Append(err, p.Close())
	}
	return err
}

func (m *Manager) loadTrackSection(ctx context.Context, id string) {
	entries, listErr := m.catalog.List(ctx, id)
	if listErr != nil {
		m.logger.Error("Failed to load track section",
			zap.String("section", id),
			zap.Error(listErr))
		m.setStatus(id, domain.SectionFailed)
		return
	}

	tracks := playlist.Resolve(entries)
	if len(tracks) == 0 {
		m.setStatus(id, domain.SectionEmpty)
		return
	}

	players := make([]*TrackPlayer, 0, len(tracks))
	for _, e := range tracks {
		engine, err := m.engines.NewEngine()
		if err != nil {
			m.logger.Error("Failed to create audio engine",
				zap.String("section", id),
				zap.String("track", e.Name),
				zap.Error(err))
			continue
		}
		p := NewTrackPlayer(m.logger, m.reg, engine, m.sourceURL(e), display.TrackTitle(e.Name))
		p.SetUpdateCallback(func(domain.TrackDisplay) { m.notify() })
		players = append(players, p)
	}

	m.mu.Lock()
	for _, p := range players {
		m.tracks[p.ID()] = p
	}
	if s := m.sectionLocked(id); s != nil {
		s.tracks = players
		s.status = domain.SectionReady
	}
	m.mu.Unlock()

	m.logger.Info("Track section loaded",
		zap.String("section", id),
		zap.Int("tracks", len(players)))
	m.notify()
}

func (m *Manager) loadReleases(ctx context.Context) {
	entries, listErr := m.catalog.List(ctx, m.releasesDir)
	if listErr != nil {
		m.logger.Error("Failed to list releases",
			zap.String("directory", m.releasesDir),
			zap.Error(listErr))
		m.setStatus(m.releasesDir, domain.SectionFailed)
		return
	}

	var players []*AlbumPlayer
	for _, e := range entries {
		if !e.IsDir {
			continue
		}
		sub, err := m.catalog.List(ctx, m.releasesDir+"/"+e.Name)
		if err != nil {
			// One broken release must not take the section down
			m.logger.Error("Failed to load release",
				zap.String("release", e.Name),
				zap.Error(err))
			continue
		}
		bundle := playlist.ResolveRelease(e.Name, sub)

		engine, err := m.engines.NewEngine()
		if err != nil {
			m.logger.Error("Failed to create audio engine",
				zap.String("release", e.Name),
				zap.Error(err))
			continue
		}
		p := NewAlbumPlayer(m.logger, m.reg, engine, bundle, m.sourceURL)
		p.SetUpdateCallback(func(domain.AlbumDisplay) { m.notify() })
		players = append(players, p)
	}

	status := domain.SectionReady
	if len(players) == 0 {
		status = domain.SectionEmpty
	}

	m.mu.Lock()
	for _, p := range players {
		m.albums[p.ID()] = p
	}
	if s := m.sectionLocked(m.releasesDir); s != nil {
		s.albums = players
		s.status = status
	}
	m.mu.Unlock()

	m.logger.Info("Releases loaded", zap.Int("releases", len(players)))
	m.notify()
}

func (m *Manager) sourceURL(e domain.CatalogEntry) string {
	return m.baseURL + e.Path
}

func (m *Manager) sectionLocked(id string) *section {
	for _, s := range m.sections {
		if s.id == id {
			return s
		}
	}
	return nil
}

func (m *Manager) setStatus(id string, status domain.SectionStatus) {
	m.mu.Lock()
	if s := m.sectionLocked(id); s != nil {
		s.status = status
	}
	m.mu.Unlock()
	m.notify()
}

func (m *Manager) notify() {
	m.mu.RLock()
	fn := m.onUpdate
	m.mu.RUnlock()

	if fn != nil {
		fn()
	}
}
