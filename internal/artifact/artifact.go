// Package artifact stores comic image bytes on a filesystem. Paths are a
// pure function of the comic's date and source URL, so a lost file can be
// rewritten to the same place the database row already points at.
package artifact

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/spf13/afero"
)

// ErrEmpty is returned when asked to store zero bytes.
var ErrEmpty = errors.New("artifact: empty data")

// Store writes artifacts below Dir on Fs.
type Store struct {
	Fs  afero.Fs
	Dir string
}

// NewOsStore returns a Store on the real filesystem.
func NewOsStore(dir string) *Store {
	return &Store{Fs: afero.NewOsFs(), Dir: dir}
}

// Path returns the location for a comic published on date and downloaded
// from sourceURL: <dir>/<date>_<basename><ext>. When the URL carries no
// extension it is detected from data.
func (s *Store) Path(date, sourceURL string, data []byte) string {
	base := "comic"
	ext := ""
	if u, err := url.Parse(sourceURL); err == nil {
		b := path.Base(u.Path)
		if b != "." && b != "/" && b != "" {
			ext = path.Ext(b)
			base = strings.TrimSuffix(b, ext)
		}
	}
	if ext == "" {
		ext = mimetype.Detect(data).Extension()
	}
	if ext == "" {
		ext = ".bin"
	}
	return filepath.Join(s.Dir, fmt.Sprintf("%s_%s%s", date, sanitize(base), strings.ToLower(ext)))
}

// Write stores data at p, replacing any previous content. The file is first
// written under a temporary name and then renamed into place.
func (s *Store) Write(p string, data []byte) error {
	if len(data) == 0 {
		return ErrEmpty
	}
	if err := s.Fs.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	tmp := p + ".tmp-" + uuid.NewString()
	if err := afero.WriteFile(s.Fs, tmp, data, 0o644); err != nil {
		_ = s.Fs.Remove(tmp)
		return err
	}
	if err := s.Fs.Rename(tmp, p); err != nil {
		_ = s.Fs.Remove(tmp)
		return err
	}
	return nil
}

// Exists reports whether a non-empty file is present at p.
func (s *Store) Exists(p string) (bool, error) {
	fi, err := s.Fs.Stat(p)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return !fi.IsDir() && fi.Size() > 0, nil
}

// Read returns the bytes stored at p.
func (s *Store) Read(p string) ([]byte, error) {
	return afero.ReadFile(s.Fs, p)
}

func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		}
		return '_'
	}, s)
}
