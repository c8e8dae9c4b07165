package ripper

import (
	"os"
	"path"
	"testing"
)

func writeTrack(t *testing.T, w *FileWriter, name string, save bool, content string) error {
	t.Helper()
	tf, err := w.Open(name, save)
	if err != nil {
		t.Fatal(err)
	}
	if content != "" {
		if _, err := tf.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	return w.Close(tf)
}

func readFile(t *testing.T, p string) string {
	t.Helper()
	b, err := os.ReadFile(p)
	if err != nil {
		t.Fatalf("read %s: %v", p, err)
	}
	return string(b)
}

func TestParseOverwritePolicy(t *testing.T) {
	cases := []struct {
		in   string
		want OverwritePolicy
	}{
		{"always", OverwriteAlways},
		{"never", OverwriteNever},
		{"larger", OverwriteIfLarger},
		{"if-larger", OverwriteIfLarger},
		{"", OverwriteIfLarger},
		{"Version", OverwriteVersion},
	}
	for _, tc := range cases {
		got, err := ParseOverwritePolicy(tc.in)
		if err != nil {
			t.Errorf("%q: %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("%q: got %v, want %v", tc.in, got, tc.want)
		}
	}
	if _, err := ParseOverwritePolicy("sometimes"); err == nil {
		t.Error("expected error for unknown policy")
	}
}

func TestWriterCommitsOnClose(t *testing.T) {
	dir := t.TempDir()
	w := NewFileWriter(dir, OverwriteAlways, testLogger())

	if err := writeTrack(t, w, "artist - song.mp3", true, "audio bytes"); err != nil {
		t.Fatal(err)
	}

	dest := path.Join(dir, "artist - song.mp3")
	if got := readFile(t, dest); got != "audio bytes" {
		t.Errorf("content = %q", got)
	}

	// No temp files left behind.
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("%d entries in dir, want 1", len(entries))
	}
}

func TestWriterNoPartialFileBeforeClose(t *testing.T) {
	dir := t.TempDir()
	w := NewFileWriter(dir, OverwriteAlways, testLogger())

	tf, err := w.Open("track.mp3", true)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := tf.Write([]byte("partial")); err != nil {
		t.Fatal(err)
	}

	if _, err := os.Stat(path.Join(dir, "track.mp3")); !os.IsNotExist(err) {
		t.Error("destination must not exist before Close")
	}
	if err := w.Close(tf); err != nil {
		t.Fatal(err)
	}
}

func TestWriterDiscardsUnsavedTrack(t *testing.T) {
	dir := t.TempDir()
	w := NewFileWriter(dir, OverwriteAlways, testLogger())

	if err := writeTrack(t, w, "jingle.mp3", false, "ad content"); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path.Join(dir, "jingle.mp3")); !os.IsNotExist(err) {
		t.Error("unsaved track must not be committed")
	}
}

func TestWriterDiscardsEmptyTrack(t *testing.T) {
	dir := t.TempDir()
	w := NewFileWriter(dir, OverwriteAlways, testLogger())

	if err := writeTrack(t, w, "empty.mp3", true, ""); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path.Join(dir, "empty.mp3")); !os.IsNotExist(err) {
		t.Error("zero-byte track must not be committed")
	}
}

func TestWriterOverwriteNever(t *testing.T) {
	dir := t.TempDir()
	w := NewFileWriter(dir, OverwriteNever, testLogger())

	if err := writeTrack(t, w, "song.mp3", true, "original"); err != nil {
		t.Fatal(err)
	}
	if err := writeTrack(t, w, "song.mp3", true, "replacement that is longer"); err != nil {
		t.Fatal(err)
	}
	if got := readFile(t, path.Join(dir, "song.mp3")); got != "original" {
		t.Errorf("content = %q, want the original kept", got)
	}
}

func TestWriterOverwriteIfLarger(t *testing.T) {
	dir := t.TempDir()
	w := NewFileWriter(dir, OverwriteIfLarger, testLogger())

	if err := writeTrack(t, w, "song.mp3", true, "a complete recording"); err != nil {
		t.Fatal(err)
	}
	if err := writeTrack(t, w, "song.mp3", true, "short"); err != nil {
		t.Fatal(err)
	}
	if got := readFile(t, path.Join(dir, "song.mp3")); got != "a complete recording" {
		t.Errorf("shorter rip replaced the longer one: %q", got)
	}

	longer := "an even more complete recording of the song"
	if err := writeTrack(t, w, "song.mp3", true, longer); err != nil {
		t.Fatal(err)
	}
	if got := readFile(t, path.Join(dir, "song.mp3")); got != longer {
		t.Errorf("longer rip did not replace: %q", got)
	}
}

func TestWriterOverwriteVersion(t *testing.T) {
	dir := t.TempDir()
	w := NewFileWriter(dir, OverwriteVersion, testLogger())

	for i, content := range []string{"first", "second", "third"} {
		if err := writeTrack(t, w, "song.mp3", true, content); err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
	}

	if got := readFile(t, path.Join(dir, "song.mp3")); got != "first" {
		t.Errorf("song.mp3 = %q", got)
	}
	if got := readFile(t, path.Join(dir, "song (1).mp3")); got != "second" {
		t.Errorf("song (1).mp3 = %q", got)
	}
	if got := readFile(t, path.Join(dir, "song (2).mp3")); got != "third" {
		t.Errorf("song (2).mp3 = %q", got)
	}
}

func TestWriterCreatesSubdirectories(t *testing.T) {
	dir := t.TempDir()
	w := NewFileWriter(dir, OverwriteAlways, testLogger())

	if err := writeTrack(t, w, "Station Name/song.mp3", true, "x"); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path.Join(dir, "Station Name", "song.mp3")); err != nil {
		t.Error("nested destination not created")
	}
}
