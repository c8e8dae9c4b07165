package ripper

import (
	"strings"

	"github.com/zachfi/icyrip/pkg/charset"
	"github.com/zachfi/icyrip/pkg/icy"
	"github.com/zachfi/icyrip/pkg/metaparse"
)

// Decision is the splitter's verdict on a metadata change.
type Decision int

const (
	// NoMetadata means the stream carries no usable track info; the
	// caller falls back to one continuous file.
	NoMetadata Decision = iota
	// SameTrack means the metadata repeats the current track. Some
	// encoders re-send the same string every interval; this must not
	// split.
	SameTrack
	// NewTrack means the current track ends here and a new one opens.
	NewTrack
)

func (d Decision) String() string {
	switch d {
	case SameTrack:
		return "same"
	case NewTrack:
		return "new"
	default:
		return "no-metadata"
	}
}

// Decide compares the previous and the newly parsed track records. A
// new track requires parsed info that differs by value from the
// previous record; identity never enters into it.
func Decide(prev, next *metaparse.TrackInfo) Decision {
	if next == nil || !next.HaveTrackInfo {
		return NoMetadata
	}
	if prev != nil && next.Same(prev) {
		return SameTrack
	}
	return NewTrack
}

// CandidateName builds the deterministic file name for a track so the
// writer's overwrite decision is reproducible. Unparsed records fall
// back to the raw metadata string.
func CandidateName(ti *metaparse.TrackInfo, ct icy.ContentType) string {
	base := ""
	if ti != nil {
		switch {
		case ti.Artist != "" && ti.Title != "":
			base = ti.Artist + " - " + ti.Title
		case ti.Title != "":
			base = ti.Title
		default:
			base = ti.RawMetadata
		}
	}
	base = charset.SanitizeFilename(charset.Normalize(base))
	if base == "" {
		base = "untitled"
	}
	return base + ct.Extension()
}

// ContinuousName names the fallback single file for streams without
// metadata, derived from the station name when the server sent one.
func ContinuousName(station string, ct icy.ContentType) string {
	base := charset.SanitizeFilename(charset.Normalize(strings.TrimSpace(station)))
	if base == "" {
		base = "stream"
	}
	return base + ct.Extension()
}
