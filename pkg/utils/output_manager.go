package utils

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// AssetManager resolves dashboard asset paths under a static root
type AssetManager struct {
	BaseDir   string
	IndexFile string
}

// NewAssetManager creates a new asset manager serving baseDir, falling back to index.html
func NewAssetManager(baseDir string) *AssetManager {
	return &AssetManager{
		BaseDir:   baseDir,
		IndexFile: "index.html",
	}
}

// Resolve maps a URL path to a file under BaseDir.
// Paths that do not name an existing file resolve to the index file so client-side routes work.
func (am *AssetManager) Resolve(urlPath string) (string, error) {
	clean := filepath.Clean("/" + strings.TrimPrefix(urlPath, "/"))
	full := filepath.Join(am.BaseDir, filepath.FromSlash(clean))

	rel, err := filepath.Rel(am.BaseDir, full)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("path %q escapes asset root", urlPath)
	}

	if info, err := os.Stat(full); err == nil && !info.IsDir() {
		return full, nil
	}

	index := filepath.Join(am.BaseDir, am.IndexFile)
	if _, err := os.Stat(index); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("no asset for %q and no %s: %w", urlPath, am.IndexFile, err)
		}
		return "", err
	}
	return index, nil
}

// GetContentType determines the content type based on extension
func (am *AssetManager) GetContentType(fileName string) string {
	ext := strings.ToLower(filepath.Ext(fileName))
	switch ext {
	case ".html":
		return "text/html; charset=utf-8"
	case ".js":
		return "application/javascript"
	case ".css":
		return "text/css; charset=utf-8"
	case ".json":
		return "application/json"
	case ".csv":
		return "text/csv"
	case ".svg":
		return "image/svg+xml"
	case ".png":
		return "image/png"
	case ".ico":
		return "image/x-icon"
	default:
		return "application/octet-stream"
	}
}

// EnsureBaseDirExists reports whether the static root is usable
func (am *AssetManager) EnsureBaseDirExists() error {
	info, err := os.Stat(am.BaseDir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", am.BaseDir)
	}
	return nil
}
