package voice

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

const defaultInputName = "audio.webm"

// AudioStore keeps uploaded and synthesized audio under one directory that is
// also served over HTTP.
type AudioStore struct {
	dir       string
	urlPrefix string
	publicURL string
}

// NewAudioStore creates dir if needed. urlPrefix is the route the directory
// is served under, publicURL the externally reachable base of the service.
func NewAudioStore(dir, urlPrefix, publicURL string) (*AudioStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create audio dir: %w", err)
	}
	return &AudioStore{
		dir:       dir,
		urlPrefix: strings.Trim(urlPrefix, "/"),
		publicURL: strings.TrimRight(publicURL, "/"),
	}, nil
}

func (s *AudioStore) Dir() string { return s.dir }

// SaveInput copies an upload to input_<random>_<name> and returns its path.
func (s *AudioStore) SaveInput(name string, r io.Reader) (string, error) {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		name = defaultInputName
	}
	full := filepath.Join(s.dir, fmt.Sprintf("input_%s_%s", randomHex(), name))
	f, err := os.Create(full)
	if err != nil {
		return "", fmt.Errorf("create input file: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(full)
		return "", fmt.Errorf("write input file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close input file: %w", err)
	}
	return full, nil
}

// CreateResponse opens a new response_<random>.mp3 for writing. The
// returned name is relative to the store directory.
func (s *AudioStore) CreateResponse() (*os.File, string, error) {
	name := fmt.Sprintf("response_%s.mp3", randomHex())
	f, err := os.Create(filepath.Join(s.dir, name))
	if err != nil {
		return nil, "", fmt.Errorf("create response file: %w", err)
	}
	return f, name, nil
}

// Remove deletes a file previously returned by the store; missing files are
// ignored.
func (s *AudioStore) Remove(name string) error {
	full := name
	if !filepath.IsAbs(name) && !strings.HasPrefix(name, s.dir) {
		full = filepath.Join(s.dir, name)
	}
	if err := os.Remove(full); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// RelPath is the served path of a stored file, e.g. "audio/response_x.mp3".
func (s *AudioStore) RelPath(name string) string {
	return path.Join(s.urlPrefix, name)
}

func (s *AudioStore) URL(name string) string {
	return s.publicURL + "/" + s.RelPath(name)
}

func randomHex() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
