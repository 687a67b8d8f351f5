package domain

import "context"

//go:generate mockgen -destination=mocks/interfaces_mock.go -package=mocks github.com/alexplain/jukebox/internal/domain CatalogClient,AudioEngine,EngineFactory

// CatalogClient lists directories of the remote content catalog.
// Implementations handle the transport (gateway HTTP, local filesystem);
// callers treat any failure as "no data", never as fatal.
type CatalogClient interface {
	// List returns the entries of one catalog directory.
	// path is relative to the catalog root (e.g. "jams", "releases/demo-tape").
	List(ctx context.Context, path string) ([]CatalogEntry, error)
}

// AudioEngine is the narrow command/event surface of one playback engine
// instance. Each player owns exactly one engine; engines are never shared.
// Commands are asynchronous and safe to call from any goroutine.
type AudioEngine interface {
	// SetSource replaces the engine's source. Any previous source stops and
	// its pending events become inert.
	SetSource(url string)

	// Play starts or resumes playback of the current source
	Play()

	// Pause suspends playback, keeping the current position
	Pause()

	// SeekTo moves the playback position, in seconds. No-op before a source
	// has loaded.
	SeekTo(seconds float64)

	// Events returns the engine's event stream. Events for a single engine
	// are delivered in chronological order. The channel is closed by Close.
	Events() <-chan EngineEvent

	// Close stops playback and releases engine resources
	Close() error
}

// EngineFactory creates one AudioEngine per player widget
type EngineFactory interface {
	NewEngine() (AudioEngine, error)
}

// Config defines the interface for application configuration
type Config interface {
	// GatewayURL returns the catalog gateway base URL
	GatewayURL() string

	// Sections returns the standalone-track directories to load
	Sections() []string

	// ReleasesDir returns the catalog directory holding release subdirectories
	ReleasesDir() string

	// ListenAddr returns the HTTP listen address
	ListenAddr() string

	// MusicDir returns the local library root; non-empty selects the local
	// catalog instead of the gateway
	MusicDir() string
}
