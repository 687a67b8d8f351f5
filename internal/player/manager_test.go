package player

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/mock/gomock"
	"go.uber.org/zap"

	"github.com/alexplain/jukebox/internal/domain"
	"github.com/alexplain/jukebox/internal/domain/mocks"
	"github.com/alexplain/jukebox/internal/registry"
)

type testConfig struct {
	gateway  string
	sections []string
	musicDir string
}

func (c testConfig) GatewayURL() string  { return c.gateway }
func (c testConfig) Sections() []string  { return c.sections }
func (c testConfig) ReleasesDir() string { return "releases" }
func (c testConfig) ListenAddr() string  { return ":0" }
func (c testConfig) MusicDir() string    { return c.musicDir }

func anyEngineFactory(ctrl *gomock.Controller) *mocks.MockEngineFactory {
	factory := mocks.NewMockEngineFactory(ctrl)
	factory.EXPECT().NewEngine().DoAndReturn(func() (domain.AudioEngine, error) {
		return newFakeEngine(), nil
	}).AnyTimes()
	return factory
}

func TestManager_LoadsSectionsAndReleases(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	catalog := mocks.NewMockCatalogClient(ctrl)
	catalog.EXPECT().List(gomock.Any(), "jams").Return([]domain.CatalogEntry{
		{Name: "b.mp3", Path: "/jams/b.mp3"},
		{Name: "a.mp3", Path: "/jams/a.mp3"},
		{Name: "notes.txt", Path: "/jams/notes.txt", MimeType: "text/plain"},
	}, nil)
	catalog.EXPECT().List(gomock.Any(), "releases").Return([]domain.CatalogEntry{
		{Name: "demo-tape", Path: "/releases/demo-tape", IsDir: true},
	}, nil)
	catalog.EXPECT().List(gomock.Any(), "releases/demo-tape").Return([]domain.CatalogEntry{
		{Name: "01 - one.mp3", Path: "/releases/demo-tape/01 - one.mp3"},
		{Name: "art.png", Path: "/releases/demo-tape/art.png", MimeType: "image/png"},
	}, nil)

	cfg := testConfig{gateway: "https://gw.example", sections: []string{"jams"}}
	m := NewManager(zap.NewNop(), cfg, catalog, anyEngineFactory(ctrl), registry.New(zap.NewNop()))
	t.Cleanup(func() { _ = m.Close() })

	m.Load(context.Background())
	m.Wait()

	views := m.Snapshot()
	if len(views) != 2 {
		t.Fatalf("expected 2 sections, got %d", len(views))
	}

	jams := views[0]
	if jams.ID != "jams" || jams.Status != domain.SectionReady {
		t.Fatalf("unexpected jams section: %+v", jams)
	}
	if len(jams.Tracks) != 2 {
		t.Fatalf("expected 2 track widgets, got %d", len(jams.Tracks))
	}
	// Playlist order, not listing order
	if jams.Tracks[0].Title != "a" || jams.Tracks[1].Title != "b" {
		t.Errorf("unexpected track order: %q, %q", jams.Tracks[0].Title, jams.Tracks[1].Title)
	}
	if jams.Tracks[0].SourceURL != "https://gw.example/jams/a.mp3" {
		t.Errorf("unexpected source URL: %q", jams.Tracks[0].SourceURL)
	}

	releases := views[1]
	if releases.Status != domain.SectionReady || len(releases.Albums) != 1 {
		t.Fatalf("unexpected releases section: %+v", releases)
	}
	if releases.Albums[0].Title != "Demo Tape" {
		t.Errorf("unexpected album title %q", releases.Albums[0].Title)
	}

	if _, ok := m.Track(jams.Tracks[0].ID); !ok {
		t.Error("track widget not routable by ID")
	}
	if _, ok := m.Album(releases.Albums[0].ID); !ok {
		t.Error("album widget not routable by ID")
	}
}

func TestManager_FailedSectionIsIsolated(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	catalog := mocks.NewMockCatalogClient(ctrl)
	catalog.EXPECT().List(gomock.Any(), "roughs").Return(nil, errors.New("gateway timeout"))
	catalog.EXPECT().List(gomock.Any(), "jams").Return([]domain.CatalogEntry{
		{Name: "a.mp3", Path: "/jams/a.mp3"},
	}, nil)
	catalog.EXPECT().List(gomock.Any(), "releases").Return(nil, errors.New("gateway timeout"))

	cfg := testConfig{gateway: "https://gw.example", sections: []string{"roughs", "jams"}}
	m := NewManager(zap.NewNop(), cfg, catalog, anyEngineFactory(ctrl), registry.New(zap.NewNop()))
	t.Cleanup(func() { _ = m.Close() })

	m.Load(context.Background())
	m.Wait()

	views := m.Snapshot()
	byID := make(map[string]domain.SectionView)
	for _, v := range views {
		byID[v.ID] = v
	}

	if byID["roughs"].Status != domain.SectionFailed {
		t.Errorf("expected roughs failed, got %s", byID["roughs"].Status)
	}
	if byID["releases"].Status != domain.SectionFailed {
		t.Errorf("expected releases failed, got %s", byID["releases"].Status)
	}
	if byID["jams"].Status != domain.SectionReady || len(byID["jams"].Tracks) != 1 {
		t.Errorf("sibling section must load despite failures: %+v", byID["jams"])
	}
}

func TestManager_EmptyListingIsNotAnError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	catalog := mocks.NewMockCatalogClient(ctrl)
	catalog.EXPECT().List(gomock.Any(), "at-home").Return([]domain.CatalogEntry{
		{Name: "readme.md", Path: "/at-home/readme.md", MimeType: "text/markdown"},
	}, nil)
	catalog.EXPECT().List(gomock.Any(), "releases").Return([]domain.CatalogEntry{}, nil)

	cfg := testConfig{gateway: "https://gw.example", sections: []string{"at-home"}}
	m := NewManager(zap.NewNop(), cfg, catalog, anyEngineFactory(ctrl), registry.New(zap.NewNop()))
	t.Cleanup(func() { _ = m.Close() })

	m.Load(context.Background())
	m.Wait()

	for _, v := range m.Snapshot() {
		if v.Status != domain.SectionEmpty {
			t.Errorf("section %s: expected empty status, got %s", v.ID, v.Status)
		}
	}
}

func TestManager_BrokenReleaseIsSkipped(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	catalog := mocks.NewMockCatalogClient(ctrl)
	catalog.EXPECT().List(gomock.Any(), "releases").Return([]domain.CatalogEntry{
		{Name: "broken", Path: "/releases/broken", IsDir: true},
		{Name: "good-one", Path: "/releases/good-one", IsDir: true},
	}, nil)
	catalog.EXPECT().List(gomock.Any(), "releases/broken").Return(nil, errors.New("boom"))
	catalog.EXPECT().List(gomock.Any(), "releases/good-one").Return([]domain.CatalogEntry{
		{Name: "01.mp3", Path: "/releases/good-one/01.mp3"},
	}, nil)

	cfg := testConfig{gateway: "https://gw.example"}
	m := NewManager(zap.NewNop(), cfg, catalog, anyEngineFactory(ctrl), registry.New(zap.NewNop()))
	t.Cleanup(func() { _ = m.Close() })

	m.Load(context.Background())
	m.Wait()

	views := m.Snapshot()
	releases := views[len(views)-1]
	if releases.Status != domain.SectionReady {
		t.Fatalf("expected releases ready, got %s", releases.Status)
	}
	if len(releases.Albums) != 1 || releases.Albums[0].Title != "Good One" {
		t.Fatalf("expected the intact release only, got %+v", releases.Albums)
	}
}

func TestManager_UpdateCallbackFires(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	catalog := mocks.NewMockCatalogClient(ctrl)
	catalog.EXPECT().List(gomock.Any(), gomock.Any()).Return([]domain.CatalogEntry{
		{Name: "a.mp3", Path: "/jams/a.mp3"},
	}, nil).AnyTimes()

	cfg := testConfig{gateway: "https://gw.example", sections: []string{"jams"}}
	m := NewManager(zap.NewNop(), cfg, catalog, anyEngineFactory(ctrl), registry.New(zap.NewNop()))
	t.Cleanup(func() { _ = m.Close() })

	updates := make(chan struct{}, 64)
	m.SetUpdateCallback(func() { updates <- struct{}{} })

	m.Load(context.Background())
	m.Wait()

	select {
	case <-updates:
	default:
		t.Fatal("loading sections published no update")
	}
}
