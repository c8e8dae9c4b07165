package metaparse

import (
	"log/slog"
)

// Engine applies an ordered rule list to raw metadata strings. It holds no
// per-stream state; track history lives with the caller.
type Engine struct {
	rules  []Rule
	logger *slog.Logger
}

func NewEngine(rules []Rule, logger *slog.Logger) *Engine {
	return &Engine{
		rules:  rules,
		logger: logger.With("module", "metaparse"),
	}
}

// Parse runs the rule list over raw and returns a fresh TrackInfo. Fields a
// matching rule does not capture are carried over from prev, so a stream
// that sends the album once keeps it until overwritten. prev may be nil.
func (e *Engine) Parse(raw string, prev *TrackInfo) *TrackInfo {
	ti := &TrackInfo{RawMetadata: truncate(raw)}
	if prev != nil {
		ti.Artist = prev.Artist
		ti.Title = prev.Title
		ti.Album = prev.Album
		ti.TrackNo = prev.TrackNo
		ti.Year = prev.Year
	}

	text := raw
	for i := range e.rules {
		rule := &e.rules[i]
		switch rule.Cmd {
		case CmdSubstitute:
			replaced, matched := rule.substitute(text)
			if !matched {
				continue
			}
			text = replaced
		case CmdMatch:
			groups := rule.re.FindStringSubmatch(text)
			if groups == nil {
				continue
			}
			if rule.Flags.Exclude {
				// Not a keepable track; an exclude match never marks the
				// record as parsed.
				ti.SaveTrack = false
				e.logger.Debug("metadata excluded by rule", "pattern", rule.Pattern, "metadata", ti.RawMetadata)
			} else {
				ti.HaveTrackInfo = true
				rule.capture(ti, groups)
				if rule.Flags.Save {
					ti.SaveTrack = true
				}
			}
		default:
			continue
		}
		if rule.Flags.SkipRest {
			break
		}
	}

	return ti
}

// substitute applies the rule to text, honoring the global flag, and
// reports whether the pattern matched at all.
func (r *Rule) substitute(text string) (string, bool) {
	if r.Flags.Global {
		if !r.re.MatchString(text) {
			return text, false
		}
		return r.re.ReplaceAllString(text, r.Replace), true
	}
	loc := r.re.FindStringSubmatchIndex(text)
	if loc == nil {
		return text, false
	}
	expanded := r.re.ExpandString(nil, r.Replace, text, loc)
	return text[:loc[0]] + string(expanded) + text[loc[1]:], true
}

func (r *Rule) capture(ti *TrackInfo, groups []string) {
	set := func(dst *string, idx int) {
		if idx > 0 && idx < len(groups) {
			*dst = truncate(groups[idx])
		}
	}
	set(&ti.Artist, r.ArtistIdx)
	set(&ti.Title, r.TitleIdx)
	set(&ti.Album, r.AlbumIdx)
	set(&ti.TrackNo, r.TrackIdx)
	set(&ti.Year, r.YearIdx)
}
