package preview

import (
	"context"
	"errors"
	"net/url"
	"path/filepath"

	"github.com/electronjoe/DamageReview/internal/ingest"
)

// ErrNoLocalPath is returned by FileURIs for uploads not backed by a file on disk.
var ErrNoLocalPath = errors.New("upload has no local path")

// FileURIs publishes previews as file:// URIs pointing at the original files.
type FileURIs struct{}

func (FileURIs) Publish(_ context.Context, up ingest.Upload) (string, error) {
	df, ok := up.File.(interface{ Path() string })
	if !ok {
		return "", ErrNoLocalPath
	}
	abs, err := filepath.Abs(df.Path())
	if err != nil {
		return "", err
	}
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}
	return u.String(), nil
}
