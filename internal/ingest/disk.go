package ingest

import (
	"fmt"
	"io/fs"
	"log"
	"mime"
	"path/filepath"
	"strings"

	"github.com/electronjoe/DamageReview/internal/photo"
)

// imageTypes covers extensions the platform MIME table often lacks.
var imageTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".bmp":  "image/bmp",
	".tif":  "image/tiff",
	".tiff": "image/tiff",
	".webp": "image/webp",
	".heic": "image/heic",
	".heif": "image/heif",
}

// MIMEType guesses a file's MIME type from its extension.
func MIMEType(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if t, ok := imageTypes[ext]; ok {
		return t
	}
	return mime.TypeByExtension(ext)
}

// LoadDir walks root and returns one Upload per regular file, with paths
// relative to root's parent so that the first segment is root's own name.
// Unreadable entries are logged and skipped.
func LoadDir(root string) ([]Upload, error) {
	// "." has no parent to be relative to
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", root, err)
	}
	root = abs
	base := filepath.Dir(root)

	var uploads []Upload
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			log.Printf("Error accessing %s: %v", path, err)
			// Skip this file/dir but keep walking
			return nil
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(base, path)
		if err != nil {
			log.Printf("Warning: cannot relativise %s: %v", path, err)
			return nil
		}
		f, err := photo.OpenDiskFile(path)
		if err != nil {
			log.Printf("Warning: could not stat %s: %v", path, err)
			return nil
		}
		uploads = append(uploads, Upload{
			File:     f,
			Path:     filepath.ToSlash(rel),
			MIMEType: MIMEType(path),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	return uploads, nil
}

// DiskPaths returns the on-disk paths of uploads loaded by LoadDir, for
// pruning the metadata cache.
func DiskPaths(uploads []Upload) map[string]struct{} {
	paths := make(map[string]struct{}, len(uploads))
	for _, up := range uploads {
		if df, ok := up.File.(*photo.DiskFile); ok {
			paths[df.Path()] = struct{}{}
		}
	}
	return paths
}
