package scan

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/hackclub/blurhash/internal/manifest"
)

// Source is an image file found under the scanned directory.
type Source struct {
	AbsPath string
	// RelPath uses forward slashes and keys the manifest.
	RelPath string
	Format  string
	Size    int64
}

var imageExtensions = map[string]string{
	".png":  "png",
	".jpg":  "jpeg",
	".jpeg": "jpeg",
	".gif":  "gif",
	".webp": "webp",
	".bmp":  "bmp",
	".tif":  "tiff",
	".tiff": "tiff",
	".heic": "heif",
	".heif": "heif",
	".avif": "avif",
}

// IsImagePath reports whether path has a recognized image extension.
func IsImagePath(path string) bool {
	_, ok := imageExtensions[strings.ToLower(filepath.Ext(path))]
	return ok
}

// ScanImages walks dir and returns every image file, skipping hidden
// directories.
func ScanImages(dir string) ([]Source, error) {
	var sources []Source

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Name() == manifest.FileName {
			return nil
		}

		src, ok, err := NewSource(dir, path)
		if err != nil || !ok {
			return err
		}
		sources = append(sources, src)
		return nil
	})

	return sources, err
}

// NewSource describes path relative to dir. ok is false for files that
// are not images.
func NewSource(dir, path string) (Source, bool, error) {
	format, ok := imageExtensions[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return Source{}, false, nil
	}

	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return Source{}, false, err
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return Source{}, false, err
	}

	info, err := os.Stat(abs)
	if err != nil {
		return Source{}, false, err
	}

	return Source{
		AbsPath: abs,
		RelPath: filepath.ToSlash(rel),
		Format:  format,
		Size:    info.Size(),
	}, true, nil
}

func relKey(dir, path string) (string, error) {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return "", err
	}
	return filepath.ToSlash(rel), nil
}
