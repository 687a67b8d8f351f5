// Package playlist turns raw catalog listings into ordered playlists and
// release bundles. Everything here is a pure function of its input: empty or
// malformed listings produce empty results, never errors, so callers render a
// "no tracks found" state instead of an error state for that case.
package playlist

import (
	"sort"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/alexplain/jukebox/internal/display"
	"github.com/alexplain/jukebox/internal/domain"
)

var audioExtensions = []string{".mp3", ".m4a", ".wav", ".ogg"}

var artNames = []string{"art.png", "art.jpg", "art.jpeg"}

// IsAudio reports whether a catalog entry is a playable audio file: not a
// directory, and either declared as audio/* or carrying a recognized
// extension.
func IsAudio(e domain.CatalogEntry) bool {
	if e.IsDir {
		return false
	}
	if strings.HasPrefix(e.MimeType, "audio/") {
		return true
	}
	lower := strings.ToLower(e.Name)
	for _, ext := range audioExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// Resolve filters a directory listing down to its audio entries and sorts
// them by name, case-insensitively and independent of any locale. The output
// order is fully determined by the entry names: resolving a permuted copy of
// the same listing yields an identical playlist.
func Resolve(entries []domain.CatalogEntry) domain.Playlist {
	tracks := make(domain.Playlist, 0, len(entries))
	for _, e := range entries {
		if IsAudio(e) {
			tracks = append(tracks, e)
		}
	}

	// language.Und keeps the collation locale-independent; names that are
	// caseless equals tie-break on raw bytes so the sort stays total.
	c := collate.New(language.Und, collate.IgnoreCase)
	sort.SliceStable(tracks, func(i, j int) bool {
		switch c.CompareString(tracks[i].Name, tracks[j].Name) {
		case -1:
			return true
		case 1:
			return false
		default:
			return tracks[i].Name < tracks[j].Name
		}
	})
	return tracks
}

// ResolveArt locates the release cover entry: the first case-insensitive
// match on art.png / art.jpg / art.jpeg. Multiple matches should not occur in
// a well-formed catalog; when they do the first wins. Absence yields nil.
func ResolveArt(entries []domain.CatalogEntry) *domain.CatalogEntry {
	for i := range entries {
		lower := strings.ToLower(entries[i].Name)
		for _, name := range artNames {
			if lower == name {
				e := entries[i]
				return &e
			}
		}
	}
	return nil
}

// ResolveRelease bundles one catalog subdirectory into a playable release
func ResolveRelease(directoryName string, entries []domain.CatalogEntry) domain.ReleaseBundle {
	return domain.ReleaseBundle{
		DisplayName: display.ReleaseTitle(directoryName),
		Art:         ResolveArt(entries),
		Tracks:      Resolve(entries),
	}
}
