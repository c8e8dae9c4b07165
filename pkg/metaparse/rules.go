// Package metaparse extracts structured track fields from raw stream
// metadata by running an ordered list of match and substitute rules,
// compatible with streamripper parse-rule files.
package metaparse

import (
	"bufio"
	"io"
	"log/slog"
	"os"
	"regexp"
	"strings"
)

type Command int

const (
	CmdMatch Command = iota + 1
	CmdSubstitute
)

// Flags modify how a single rule is applied. They combine independently.
type Flags struct {
	// SkipRest halts evaluation of later rules once this rule matches.
	SkipRest bool
	// Global applies a substitution to all occurrences instead of the first.
	Global bool
	// IgnoreCase matches case-insensitively.
	IgnoreCase bool
	// Save marks a matching metadata string as a track worth keeping.
	Save bool
	// Exclude marks a matching metadata string as not a keepable track.
	Exclude bool
}

// Rule is one ordered entry of the parse program: either a pattern match
// that may capture fields, or a text substitution applied before later
// rules run.
type Rule struct {
	Cmd     Command
	Pattern string
	Replace string // substitution template, CmdSubstitute only
	Flags   Flags

	// Capture group indices mapping to TrackInfo fields; zero means the
	// rule does not touch that field.
	ArtistIdx int
	TitleIdx  int
	AlbumIdx  int
	TrackIdx  int
	YearIdx   int

	re *regexp.Regexp
}

// Compile prepares the rule's pattern, honoring the case flag. Rules loaded
// through LoadRules arrive compiled.
func (r *Rule) Compile() error {
	pat := r.Pattern
	if r.Flags.IgnoreCase {
		pat = "(?i)" + pat
	}
	re, err := regexp.Compile(pat)
	if err != nil {
		return err
	}
	r.re = re
	return nil
}

// DefaultRules reproduces the stock rule list: drop "A suivre:" continuity
// announcements, strip a trailing "mp3pro" marker, split on " - " into
// artist and title, and fall back to treating the whole string as a title.
func DefaultRules() []Rule {
	rules := []Rule{
		{Cmd: CmdMatch, Pattern: `^A suivre:`, Flags: Flags{SkipRest: true, Exclude: true}},
		{Cmd: CmdSubstitute, Pattern: `\s*-?\s*mp3pro$`, Replace: "", Flags: Flags{IgnoreCase: true}},
		{Cmd: CmdMatch, Pattern: `^\s*(.*\S)\s+-\s+(.*)$`, Flags: Flags{Save: true, SkipRest: true}, ArtistIdx: 1, TitleIdx: 2},
		{Cmd: CmdMatch, Pattern: `^(.*)$`, Flags: Flags{Save: true}, TitleIdx: 1},
	}
	for i := range rules {
		if err := rules[i].Compile(); err != nil {
			panic("metaparse: default rule does not compile: " + err.Error())
		}
	}
	return rules
}

// LoadRulesFile reads a rule file, falling back to the default rules when
// the path is empty or unreadable.
func LoadRulesFile(path string, logger *slog.Logger) []Rule {
	if path == "" {
		return DefaultRules()
	}
	f, err := os.Open(path)
	if err != nil {
		logger.Warn("rules file not readable, using defaults", "path", path, "err", err)
		return DefaultRules()
	}
	defer f.Close()
	rules := LoadRules(f, logger)
	if len(rules) == 0 {
		return DefaultRules()
	}
	return rules
}

// LoadRules parses rules in the sed-like file format, one per line:
//
//	m/pattern/flags-and-field-indices
//	s/pattern/replacement/flags
//
// Field indices are letters A (artist), T (title), C (album), N (track
// number), Y (year) followed by a capture group number. Flag letters are
// e (skip rest, excluded), s (save), x (exclude), i (ignore case),
// g (global). Lines starting with # and blank lines are skipped; malformed
// lines are logged and skipped, never fatal.
func LoadRules(r io.Reader, logger *slog.Logger) []Rule {
	var rules []Rule
	scanner := bufio.NewScanner(r)
	lineno := 0
	for scanner.Scan() {
		lineno++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		rule, err := parseRuleLine(line)
		if err != nil {
			logger.Warn("skipping malformed parse rule", "line", lineno, "err", err)
			continue
		}
		rules = append(rules, rule)
	}
	return rules
}

type ruleSyntaxError string

func (e ruleSyntaxError) Error() string { return string(e) }

func parseRuleLine(line string) (Rule, error) {
	var rule Rule
	if len(line) < 2 {
		return rule, ruleSyntaxError("line too short")
	}
	switch line[0] {
	case 'm':
		rule.Cmd = CmdMatch
	case 's':
		rule.Cmd = CmdSubstitute
	default:
		return rule, ruleSyntaxError("unknown command " + line[:1])
	}
	if line[1] != '/' {
		return rule, ruleSyntaxError("missing pattern delimiter")
	}

	rest := line[2:]
	pattern, rest, ok := splitUnescaped(rest)
	if !ok {
		return rule, ruleSyntaxError("unterminated pattern")
	}
	rule.Pattern = pattern

	if rule.Cmd == CmdSubstitute {
		replacement, tail, ok := splitUnescaped(rest)
		if !ok {
			return rule, ruleSyntaxError("unterminated replacement")
		}
		rule.Replace = sedToTemplate(replacement)
		rest = tail
	}

	if err := parseRuleTail(&rule, rest); err != nil {
		return rule, err
	}
	if err := rule.Compile(); err != nil {
		return rule, err
	}
	return rule, nil
}

// splitUnescaped cuts s at the first '/' not preceded by a backslash,
// unescaping `\/` in the returned head.
func splitUnescaped(s string) (head, tail string, ok bool) {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '\\' && i+1 < len(s) && s[i+1] == '/' {
			b.WriteByte('/')
			i++
			continue
		}
		if c == '/' {
			return b.String(), s[i+1:], true
		}
		b.WriteByte(c)
	}
	return "", "", false
}

// sedToTemplate rewrites sed-style backreferences (\1 .. \9) into Go regexp
// expansion templates, and escapes any literal $.
func sedToTemplate(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '\\' && i+1 < len(s) && s[i+1] >= '1' && s[i+1] <= '9':
			b.WriteString("${")
			b.WriteByte(s[i+1])
			b.WriteString("}")
			i++
		case c == '$':
			b.WriteString("$$")
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

func parseRuleTail(rule *Rule, tail string) error {
	i := 0
	for i < len(tail) {
		c := tail[i]
		switch c {
		case 'e':
			rule.Flags.SkipRest = true
			rule.Flags.Exclude = true
			i++
		case 's':
			rule.Flags.Save = true
			i++
		case 'x':
			rule.Flags.Exclude = true
			i++
		case 'i':
			rule.Flags.IgnoreCase = true
			i++
		case 'g':
			rule.Flags.Global = true
			i++
		case 'A', 'T', 'C', 'N', 'Y':
			idx, next := parseIndex(tail, i+1)
			if idx == 0 {
				return ruleSyntaxError("field letter without capture index")
			}
			switch c {
			case 'A':
				rule.ArtistIdx = idx
			case 'T':
				rule.TitleIdx = idx
			case 'C':
				rule.AlbumIdx = idx
			case 'N':
				rule.TrackIdx = idx
			case 'Y':
				rule.YearIdx = idx
			}
			i = next
		case ' ', '\t':
			// Trailing whitespace or an inline comment ends the spec.
			return nil
		case '#':
			return nil
		default:
			return ruleSyntaxError("unknown flag " + tail[i:i+1])
		}
	}
	return nil
}

func parseIndex(s string, i int) (idx, next int) {
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		idx = idx*10 + int(s[i]-'0')
		i++
	}
	return idx, i
}
