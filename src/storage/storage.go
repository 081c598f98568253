// Package storage holds raw statement blobs so that the ingestion
// pipeline can re-read them after the upload request has completed.
package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/justaszie/spending-tracker/src/models"
)

// FileStorage is the collaborator boundary the orchestrator downloads
// statement bytes from. SaveStatement returns the stored path that is
// recorded on the ingest job.
type FileStorage interface {
	SaveStatement(userID uuid.UUID, source models.TxnSource, filename string, r io.Reader) (string, error)
	Open(path string) (io.ReadCloser, error)
}

// LocalFileStorage stores statement files under a root directory using
// the layout <userID>/<source>/<timestamp>_<filename>.
type LocalFileStorage struct {
	root string
}

func NewLocalFileStorage(root string) (*LocalFileStorage, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("creating storage root %s: %w", root, err)
	}
	return &LocalFileStorage{root: root}, nil
}

func (s *LocalFileStorage) SaveStatement(userID uuid.UUID, source models.TxnSource, filename string, r io.Reader) (string, error) {
	dir := filepath.Join(userID.String(), strings.ToLower(string(source)))
	if err := os.MkdirAll(filepath.Join(s.root, dir), 0o755); err != nil {
		return "", fmt.Errorf("creating statement dir %s: %w", dir, err)
	}

	name := fmt.Sprintf("%s_%s", time.Now().UTC().Format("20060102T150405"), sanitizeFilename(filename))
	path := filepath.Join(dir, name)

	f, err := os.Create(filepath.Join(s.root, path))
	if err != nil {
		return "", fmt.Errorf("creating statement file %s: %w", path, err)
	}
	defer f.Close()

	written, err := io.Copy(f, r)
	if err != nil {
		return "", fmt.Errorf("writing statement file %s: %w", path, err)
	}
	if written == 0 {
		os.Remove(filepath.Join(s.root, path))
		return "", fmt.Errorf("no content in the file provided")
	}

	return path, nil
}

func (s *LocalFileStorage) Open(path string) (io.ReadCloser, error) {
	cleaned := filepath.Clean(path)
	if strings.HasPrefix(cleaned, "..") || filepath.IsAbs(cleaned) {
		return nil, fmt.Errorf("invalid statement path %q", path)
	}
	f, err := os.Open(filepath.Join(s.root, cleaned))
	if err != nil {
		return nil, fmt.Errorf("opening statement file %s: %w", path, err)
	}
	return f, nil
}

// sanitizeFilename strips directory components and characters that would
// make the stored name ambiguous.
func sanitizeFilename(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" || base == "." {
		base = "statement"
	}
	return base
}
