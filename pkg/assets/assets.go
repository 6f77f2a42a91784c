// Package assets stores binary files (profile pictures) outside the
// blob store and hands out download URLs. Paths follow the fixed
// convention images/<formattedIdentity>_profile_picture.png.
package assets

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"chatdb/pkg/logger"
)

// ProfilePicturePath returns the asset path for a formatted identity.
func ProfilePicturePath(formatted string) string {
	return "images/" + formatted + "_profile_picture.png"
}

// Store is a filesystem-backed asset store. BaseURL is the public
// prefix download locations are resolved against.
type Store struct {
	dir     string
	baseURL string
}

func New(dir, baseURL string) *Store {
	return &Store{dir: dir, baseURL: strings.TrimRight(baseURL, "/")}
}

// Upload writes the bytes at path, creating parent directories.
func (s *Store) Upload(path string, data []byte) error {
	full, err := s.resolve(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o750); err != nil {
		return err
	}
	if err := os.WriteFile(full, data, 0o640); err != nil {
		logger.Log.Error("asset_upload_failed", zap.String("path", path), zap.Error(err))
		return err
	}
	logger.Log.Info("asset_uploaded", zap.String("path", path), zap.Int("len", len(data)))
	return nil
}

// ResolveDownloadLocation returns the public URL for a stored asset, or
// an error when nothing was uploaded at path.
func (s *Store) ResolveDownloadLocation(path string) (string, error) {
	full, err := s.resolve(path)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(full); err != nil {
		return "", fmt.Errorf("asset not found at %s: %w", path, err)
	}
	u := s.baseURL + "/" + strings.TrimLeft(path, "/")
	if _, err := url.Parse(u); err != nil {
		return "", err
	}
	return u, nil
}

// resolve maps an asset path onto the store directory, rejecting any
// path that would escape it.
func (s *Store) resolve(path string) (string, error) {
	if strings.Contains(path, "..") {
		return "", fmt.Errorf("invalid asset path %q", path)
	}
	return filepath.Join(s.dir, filepath.Clean("/"+path)), nil
}
