// Package output writes split calendars to disk, one file per class,
// never replacing an existing file.
package output

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	ical "github.com/arran4/golang-ical"

	appLog "calsplit/internal/log"
)

var (
	// ErrExists is returned when the destination file for a class is
	// already present. It wraps fs.ErrExist.
	ErrExists = fmt.Errorf("output: calendar file already exists: %w", fs.ErrExist)

	// ErrInvalidName is returned for class identifiers that cannot be used
	// as a single file name.
	ErrInvalidName = errors.New("output: class identifier is not a valid file name")
)

// Writer creates <dir>/<class><ext> files.
type Writer struct {
	dir string
	ext string
}

// NewWriter returns a Writer rooted at dir. ext is appended verbatim to
// every file name and may be empty.
func NewWriter(dir, ext string) *Writer {
	return &Writer{dir: dir, ext: ext}
}

// Dir returns the output directory.
func (w *Writer) Dir() string {
	return w.dir
}

// Prepare creates the output directory if it does not exist yet.
func (w *Writer) Prepare() error {
	if w.dir == "" {
		return errors.New("output: directory is empty")
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("output: create directory %s: %w", w.dir, err)
	}
	return nil
}

// Path returns the destination file for a class.
func (w *Writer) Path(code string) (string, error) {
	if err := validName(code); err != nil {
		return "", err
	}
	return filepath.Join(w.dir, code+w.ext), nil
}

// Write serializes cal and stores it as a new file for code. It fails with
// ErrExists instead of overwriting. A partially written file is removed.
func (w *Writer) Write(code string, cal *ical.Calendar) (string, error) {
	path, err := w.Path(code)
	if err != nil {
		return "", err
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return "", fmt.Errorf("%w: %s", ErrExists, path)
		}
		return "", fmt.Errorf("output: create %s: %w", path, err)
	}

	if err := cal.SerializeTo(f); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("output: write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("output: close %s: %w", path, err)
	}

	appLog.Debug("calendar file written", "class", code, "path", path, "components", len(cal.Components))
	return path, nil
}

func validName(code string) error {
	switch {
	case code == "", code == ".", code == "..":
		return fmt.Errorf("%w: %q", ErrInvalidName, code)
	case strings.ContainsAny(code, `/\`), strings.ContainsRune(code, 0):
		return fmt.Errorf("%w: %q", ErrInvalidName, code)
	}
	return nil
}
