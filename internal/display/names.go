package display

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	// Trailing audio extension, same set the playlist audio predicate accepts
	extensionPattern = regexp.MustCompile(`(?i)\.(mp3|m4a|wav|ogg)$`)

	// Capture-device timestamp suffix, e.g. " - 10!25!25, 7.31 PM".
	// The shape is a contract with the recording device's file naming and
	// must not be generalized further.
	timestampPattern = regexp.MustCompile(`(?i)\s*-\s*\d+!\d+!\d+,\s*\d+\.\d+\s*(AM|PM)`)

	// Leading track-number prefix on album files, e.g. "03 - " or "2_"
	ordinalPattern = regexp.MustCompile(`^\d+[-_.\s]*`)
)

// TrackTitle derives the display title of a standalone track from its raw
// catalog filename: the audio extension is stripped, then any embedded
// capture timestamp is removed. Input matching neither pattern is returned
// unchanged beyond extension stripping.
func TrackTitle(filename string) string {
	name := extensionPattern.ReplaceAllString(filename, "")
	return timestampPattern.ReplaceAllString(name, "")
}

// TrackListTitle derives the label of one row in a release track list:
// a leading ordinal prefix and the audio extension are stripped. This is
// deliberately distinct from TrackTitle; the two apply to different display
// contexts and change independently.
func TrackListTitle(filename string) string {
	name := ordinalPattern.ReplaceAllString(filename, "")
	return extensionPattern.ReplaceAllString(name, "")
}

// ReleaseTitle turns a catalog directory name into an album title:
// "demo-tape" becomes "Demo Tape". Names without a dash only get their
// first rune capitalized.
func ReleaseTitle(directoryName string) string {
	segments := strings.Split(directoryName, "-")
	for i, seg := range segments {
		segments[i] = capitalize(seg)
	}
	return strings.Join(segments, " ")
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	runes := []rune(s)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
