package metaparse

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseRuleLineMatch(t *testing.T) {
	rule, err := parseRuleLine(`m/^([^-]+) - (.+)$/A1T2`)
	if err != nil {
		t.Fatal(err)
	}
	if rule.Cmd != CmdMatch {
		t.Error("wrong command")
	}
	if rule.Pattern != `^([^-]+) - (.+)$` {
		t.Errorf("Pattern = %q", rule.Pattern)
	}
	if rule.ArtistIdx != 1 || rule.TitleIdx != 2 {
		t.Errorf("indices A%d T%d", rule.ArtistIdx, rule.TitleIdx)
	}
}

func TestParseRuleLineSubstitute(t *testing.T) {
	rule, err := parseRuleLine(`s/TEST//i`)
	if err != nil {
		t.Fatal(err)
	}
	if rule.Cmd != CmdSubstitute {
		t.Error("wrong command")
	}
	if rule.Pattern != "TEST" || rule.Replace != "" {
		t.Errorf("pattern=%q replace=%q", rule.Pattern, rule.Replace)
	}
	if !rule.Flags.IgnoreCase {
		t.Error("i flag not set")
	}
	if got, _ := rule.substitute("a test b"); got != "a  b" {
		t.Errorf("case-insensitive substitution: got %q", got)
	}
}

func TestParseRuleLineFlags(t *testing.T) {
	cases := []struct {
		line string
		want Flags
	}{
		{`m/x/e`, Flags{SkipRest: true, Exclude: true}},
		{`m/x/s`, Flags{Save: true}},
		{`m/x/x`, Flags{Exclude: true}},
		{`m/x/i`, Flags{IgnoreCase: true}},
		{`s/x/y/g`, Flags{Global: true}},
		{`m/x/esi`, Flags{SkipRest: true, Exclude: true, Save: true, IgnoreCase: true}},
	}
	for _, tc := range cases {
		rule, err := parseRuleLine(tc.line)
		if err != nil {
			t.Errorf("%q: %v", tc.line, err)
			continue
		}
		if rule.Flags != tc.want {
			t.Errorf("%q: flags %+v, want %+v", tc.line, rule.Flags, tc.want)
		}
	}
}

func TestParseRuleLineExtendedFields(t *testing.T) {
	rule, err := parseRuleLine(`m/^(.+) - (.+) \[(.+)\] \((.+)\) #(.+)$/A1T2C3Y4N5`)
	if err != nil {
		t.Fatal(err)
	}
	if rule.ArtistIdx != 1 || rule.TitleIdx != 2 || rule.AlbumIdx != 3 ||
		rule.YearIdx != 4 || rule.TrackIdx != 5 {
		t.Errorf("indices A%d T%d C%d Y%d N%d",
			rule.ArtistIdx, rule.TitleIdx, rule.AlbumIdx, rule.YearIdx, rule.TrackIdx)
	}

	e := NewEngine([]Rule{rule}, testLogger())
	ti := e.Parse("Artist - Title [Album] (2004) #7", nil)
	if ti.Artist != "Artist" || ti.Title != "Title" || ti.Album != "Album" ||
		ti.Year != "2004" || ti.TrackNo != "7" {
		t.Errorf("parsed %+v", ti)
	}
}

func TestParseRuleLineEscapedDelimiter(t *testing.T) {
	rule, err := parseRuleLine(`m/^AC\/DC - (.*)$/T1`)
	if err != nil {
		t.Fatal(err)
	}
	if rule.Pattern != `^AC/DC - (.*)$` {
		t.Errorf("Pattern = %q", rule.Pattern)
	}
	ti := NewEngine([]Rule{rule}, testLogger()).Parse("AC/DC - Thunderstruck", nil)
	if ti.Title != "Thunderstruck" {
		t.Errorf("Title = %q", ti.Title)
	}
}

func TestParseRuleLineMalformed(t *testing.T) {
	bad := []string{
		"",
		"m",
		"q/pattern/",
		"m-pattern-",
		`m/unterminated`,
		`s/pattern/unterminated`,
		`m/(unbalanced/`,
	}
	for _, line := range bad {
		if _, err := parseRuleLine(line); err == nil {
			t.Errorf("%q: expected error", line)
		}
	}
}

func TestLoadRulesSkipsCommentsAndMalformed(t *testing.T) {
	input := strings.NewReader(strings.Join([]string{
		"# station rules",
		"",
		`m/^Ad:/e`,
		"this is not a rule",
		`s/\s+$//`,
		`m/^(.*) - (.*)$/A1T2s`,
	}, "\n"))

	rules := LoadRules(input, testLogger())
	if len(rules) != 3 {
		t.Fatalf("len(rules) = %d, want 3", len(rules))
	}
	if rules[0].Cmd != CmdMatch || !rules[0].Flags.Exclude {
		t.Error("first rule wrong")
	}
	if rules[1].Cmd != CmdSubstitute {
		t.Error("second rule wrong")
	}
	if !rules[2].Flags.Save || rules[2].ArtistIdx != 1 {
		t.Error("third rule wrong")
	}
}

func TestLoadRulesFileDefaults(t *testing.T) {
	if got := LoadRulesFile("", testLogger()); len(got) != len(DefaultRules()) {
		t.Error("empty path should return defaults")
	}
	if got := LoadRulesFile("/nonexistent/parse.rules", testLogger()); len(got) != len(DefaultRules()) {
		t.Error("unreadable path should return defaults")
	}

	path := filepath.Join(t.TempDir(), "parse.rules")
	if err := os.WriteFile(path, []byte("# only comments\n\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if got := LoadRulesFile(path, testLogger()); len(got) != len(DefaultRules()) {
		t.Error("file with no rules should return defaults")
	}

	if err := os.WriteFile(path, []byte(`m/^(.*)$/T1s`+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	rules := LoadRulesFile(path, testLogger())
	if len(rules) != 1 || rules[0].TitleIdx != 1 {
		t.Errorf("loaded %+v", rules)
	}
}

func TestSedToTemplate(t *testing.T) {
	cases := []struct{ in, out string }{
		{`\1`, `${1}`},
		{`pre \2 post`, `pre ${2} post`},
		{`$5`, `$$5`},
		{`plain`, `plain`},
	}
	for _, tc := range cases {
		if got := sedToTemplate(tc.in); got != tc.out {
			t.Errorf("sedToTemplate(%q) = %q, want %q", tc.in, got, tc.out)
		}
	}
}

func TestSplitUnescaped(t *testing.T) {
	head, tail, ok := splitUnescaped(`a\/b/rest`)
	if !ok || head != "a/b" || tail != "rest" {
		t.Errorf("head=%q tail=%q ok=%v", head, tail, ok)
	}
	if _, _, ok := splitUnescaped(`no delimiter`); ok {
		t.Error("expected !ok without delimiter")
	}
}
