package ripper

import (
	"fmt"
	"log/slog"
	"os"
	"path"
	"strings"

	pkgerrors "github.com/pkg/errors"

	"github.com/zachfi/icyrip/pkg/srerror"
)

// OverwritePolicy selects what Close does when the destination file
// already exists.
type OverwritePolicy int

const (
	// OverwriteIfLarger keeps whichever recording is longer, so a
	// partial rip never clobbers a complete one.
	OverwriteIfLarger OverwritePolicy = iota
	OverwriteAlways
	OverwriteNever
	// OverwriteVersion never replaces; it appends " (1)", " (2)" and
	// so on to the base name until a free one is found.
	OverwriteVersion
)

func ParseOverwritePolicy(s string) (OverwritePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "larger", "if-larger":
		return OverwriteIfLarger, nil
	case "always":
		return OverwriteAlways, nil
	case "never":
		return OverwriteNever, nil
	case "version":
		return OverwriteVersion, nil
	default:
		return 0, pkgerrors.Wrap(srerror.ErrInvalidParam, "unknown overwrite policy "+s)
	}
}

func (p OverwritePolicy) String() string {
	switch p {
	case OverwriteAlways:
		return "always"
	case OverwriteNever:
		return "never"
	case OverwriteVersion:
		return "version"
	default:
		return "larger"
	}
}

// FileWriter owns track files under a directory. Tracks are written to
// a temp file in the destination directory and only renamed into place
// on Close, so a crash or mid-track shutdown leaves no half-named
// recording behind.
type FileWriter struct {
	dir    string
	policy OverwritePolicy
	logger *slog.Logger
}

func NewFileWriter(dir string, policy OverwritePolicy, logger *slog.Logger) *FileWriter {
	return &FileWriter{
		dir:    dir,
		policy: policy,
		logger: logger.With("module", "writer"),
	}
}

// TrackFile is one open recording.
type TrackFile struct {
	f       *os.File
	dest    string
	written int64
	save    bool
}

// Written reports the audio bytes accepted so far.
func (tf *TrackFile) Written() int64 { return tf.written }

// Name returns the destination path the track commits to.
func (tf *TrackFile) Name() string { return tf.dest }

// Open creates a temp file for the named track. The save flag carries
// the parse-rule verdict: an unsaved track is still consumed, but
// Close discards it instead of committing.
func (w *FileWriter) Open(name string, save bool) (*TrackFile, error) {
	dest := path.Join(w.dir, name)

	if err := os.MkdirAll(path.Dir(dest), os.ModePerm); err != nil {
		return nil, pkgerrors.Wrap(srerror.ErrCantCreateDir, err.Error())
	}

	f, err := os.CreateTemp(path.Dir(dest), "."+path.Base(dest)+".*.tmp")
	if err != nil {
		return nil, pkgerrors.Wrap(srerror.ErrCantCreateFile, err.Error())
	}

	w.logger.Debug("track opened", "dest", dest, "save", save)
	return &TrackFile{f: f, dest: dest, save: save}, nil
}

func (tf *TrackFile) Write(p []byte) (int, error) {
	n, err := tf.f.Write(p)
	tf.written += int64(n)
	if err != nil {
		return n, pkgerrors.Wrap(srerror.ErrCantWriteToFile, err.Error())
	}
	return n, nil
}

// Close flushes the track and commits or discards the temp file per
// the overwrite policy.
func (w *FileWriter) Close(tf *TrackFile) error {
	if tf == nil || tf.f == nil {
		return nil
	}
	tmpPath := tf.f.Name()

	if err := tf.f.Sync(); err != nil {
		w.logger.Error("error syncing track file", "err", err, "path", tmpPath)
	}
	if err := tf.f.Close(); err != nil {
		w.logger.Error("error closing track file", "err", err, "path", tmpPath)
	}
	tf.f = nil

	if !tf.save || tf.written == 0 {
		_ = os.Remove(tmpPath)
		w.logger.Debug("track discarded", "dest", tf.dest, "save", tf.save, "written", tf.written)
		return nil
	}
	return w.commit(tmpPath, tf.dest)
}

func (w *FileWriter) commit(tmpPath, destPath string) error {
	switch w.policy {
	case OverwriteAlways:
		return w.rename(tmpPath, destPath)

	case OverwriteNever:
		if _, err := os.Stat(destPath); err == nil {
			_ = os.Remove(tmpPath)
			w.logger.Debug("kept existing recording", "path", destPath)
			return nil
		} else if !os.IsNotExist(err) {
			_ = os.Remove(tmpPath)
			return pkgerrors.Wrap(srerror.ErrCantCreateFile, err.Error())
		}
		return w.rename(tmpPath, destPath)

	case OverwriteVersion:
		return w.rename(tmpPath, w.versionedPath(destPath))

	default: // OverwriteIfLarger
		return w.commitIfLarger(tmpPath, destPath)
	}
}

// commitIfLarger renames tmpPath to destPath only if dest doesn't
// exist or the temp file is larger, so a previous crash doesn't
// overwrite a good recording with a shorter one.
func (w *FileWriter) commitIfLarger(tmpPath, destPath string) error {
	tmpInfo, err := os.Stat(tmpPath)
	if err != nil {
		_ = os.Remove(tmpPath)
		return pkgerrors.Wrap(srerror.ErrCantCreateFile, err.Error())
	}
	destInfo, err := os.Stat(destPath)
	if err != nil {
		if !os.IsNotExist(err) {
			_ = os.Remove(tmpPath)
			return pkgerrors.Wrap(srerror.ErrCantCreateFile, err.Error())
		}
		return w.rename(tmpPath, destPath)
	}
	if tmpInfo.Size() > destInfo.Size() {
		if err := w.rename(tmpPath, destPath); err != nil {
			return err
		}
		w.logger.Debug("overwrote with longer recording", "path", destPath, "size", tmpInfo.Size())
		return nil
	}
	_ = os.Remove(tmpPath)
	w.logger.Debug("discarded shorter recording", "path", destPath,
		"temp_size", tmpInfo.Size(), "existing_size", destInfo.Size())
	return nil
}

// versionedPath finds the first free "name (n).ext" variant.
func (w *FileWriter) versionedPath(destPath string) string {
	if _, err := os.Stat(destPath); os.IsNotExist(err) {
		return destPath
	}
	ext := path.Ext(destPath)
	base := strings.TrimSuffix(destPath, ext)
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s (%d)%s", base, i, ext)
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate
		}
	}
}

func (w *FileWriter) rename(tmpPath, destPath string) error {
	if err := os.Rename(tmpPath, destPath); err != nil {
		_ = os.Remove(tmpPath)
		return pkgerrors.Wrap(srerror.ErrCantCreateFile, err.Error())
	}
	w.logger.Debug("track saved", "path", destPath)
	return nil
}
