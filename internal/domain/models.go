package domain

// CatalogEntry is one row of a catalog directory listing.
// Entries are immutable once fetched.
type CatalogEntry struct {
	// Name is the bare file or directory name
	Name string `json:"name"`
	// Path is the entry path relative to the catalog root, with leading slash
	Path string `json:"path"`
	// IsDir marks subdirectories (releases live in their own subdirectory)
	IsDir bool `json:"is_dir"`
	// MimeType is the declared media type, empty when the catalog has none
	MimeType string `json:"mime_type"`
}

// Playlist is an ordered sequence of audio-typed catalog entries.
// An empty playlist is a valid value, not an error.
type Playlist []CatalogEntry

// ReleaseBundle is a multi-track album resolved from one catalog subdirectory.
type ReleaseBundle struct {
	// DisplayName is the human-readable album title derived from the directory name
	DisplayName string
	// Art points at the cover-art entry, nil when the release has none
	Art *CatalogEntry
	// Tracks is the ordered album playlist
	Tracks Playlist
}

// PlayerState represents the current state of a player instance
type PlayerState string

const (
	// StateIdle is the initial state before the first play
	StateIdle PlayerState = "Idle"
	// StatePlaying indicates the player holds the active claim and is audible
	StatePlaying PlayerState = "Playing"
	// StatePaused indicates playback is suspended but position is kept
	StatePaused PlayerState = "Paused"
	// StateEnded indicates the track ran to completion and was rewound
	StateEnded PlayerState = "Ended"
	// StateFailed indicates the source could not be loaded or decoded.
	// A later Play retries from scratch.
	StateFailed PlayerState = "Failed"
)

// EngineEventKind discriminates the events an audio engine emits
type EngineEventKind int

const (
	// EventTimeUpdate reports the current playback position
	EventTimeUpdate EngineEventKind = iota
	// EventLoadedMetadata reports the source duration once it is known
	EventLoadedMetadata
	// EventEnded reports that the source ran to completion
	EventEnded
	// EventError reports that the source failed to load or decode
	EventError
)

// EngineEvent is a single playback event. Position and Duration are seconds;
// either may be zero or non-finite before metadata has loaded.
type EngineEvent struct {
	Kind     EngineEventKind
	Position float64
	Duration float64
	// Err carries the failure description for EventError, empty otherwise
	Err string
}

// SectionStatus is the load state of one widget section of the page
type SectionStatus string

const (
	// SectionLoading means the catalog listing is still in flight
	SectionLoading SectionStatus = "loading"
	// SectionReady means the section has at least one widget
	SectionReady SectionStatus = "ready"
	// SectionEmpty means the listing succeeded but held no audio entries
	SectionEmpty SectionStatus = "empty"
	// SectionFailed means the catalog fetch failed; siblings are unaffected
	SectionFailed SectionStatus = "failed"
)

// TrackDisplay is the observable surface of a standalone track player.
// The UI renders it verbatim and computes no playback logic itself.
type TrackDisplay struct {
	ID        string  `json:"id"`
	Title     string  `json:"title"`
	SourceURL string  `json:"source_url"`
	Playing   bool    `json:"playing"`
	Failed    bool    `json:"failed"`   // source failed to load; the play control is dead
	Progress  float64 `json:"progress"` // percent, 0..100
	Elapsed   string  `json:"elapsed"`  // "M:SS"
	Length    string  `json:"length"`   // "M:SS"
}

// AlbumRow is the observable surface of one track row inside a release.
// Rows that are not active always show zero progress and an empty label.
type AlbumRow struct {
	Title     string  `json:"title"`
	Progress  float64 `json:"progress"`
	TimeLabel string  `json:"time_label"` // "M:SS / M:SS" while active
}

// AlbumDisplay is the observable surface of a release player.
type AlbumDisplay struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	ArtPath     string     `json:"art_path,omitempty"`
	TrackCount  int        `json:"track_count"`
	Playing     bool       `json:"playing"`
	Failed      bool       `json:"failed"`
	ActiveIndex int        `json:"active_index"` // -1 when no row is active
	Rows        []AlbumRow `json:"rows"`
}

// SectionView is the rendered state of one page section
type SectionView struct {
	ID     string         `json:"id"`
	Status SectionStatus  `json:"status"`
	Tracks []TrackDisplay `json:"tracks"`
	Albums []AlbumDisplay `json:"albums"`
}
