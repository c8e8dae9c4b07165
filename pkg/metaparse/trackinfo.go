package metaparse

// MaxFieldLen bounds every derived metadata field. Longer values are
// silently truncated at this boundary rather than rejected.
const MaxFieldLen = 256

// TrackInfo is the structured result of running the rule engine over one
// raw metadata string. A new value is produced each time the raw metadata
// changes; existing values are never mutated in place, so consumers compare
// by value.
type TrackInfo struct {
	RawMetadata string
	Artist      string
	Title       string
	Album       string
	TrackNo     string
	Year        string

	// HaveTrackInfo is true once a field-bearing rule matched the metadata.
	HaveTrackInfo bool

	// SaveTrack is true when a save-flagged rule matched and no
	// exclude-flagged rule matched afterward.
	SaveTrack bool
}

// Same reports whether two records describe the same track by value,
// preferring derived artist+title and falling back to the raw string when
// neither record was parsed into fields.
func (ti *TrackInfo) Same(other *TrackInfo) bool {
	if ti == nil || other == nil {
		return ti == other
	}
	if ti.HaveTrackInfo && other.HaveTrackInfo {
		return ti.Artist == other.Artist && ti.Title == other.Title
	}
	return ti.RawMetadata == other.RawMetadata
}

func truncate(s string) string {
	if len(s) > MaxFieldLen {
		return s[:MaxFieldLen]
	}
	return s
}
