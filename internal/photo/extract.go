package photo

import (
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/rwcarlsen/goexif/exif"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Result is the outcome of extracting one file. Warning is set when some
// metadata could not be read; Record is always usable.
type Result struct {
	Record  Record
	Warning error
}

// Extractor reads GPS, orientation, capture time and dimensions from images.
// It is safe for concurrent use.
type Extractor struct {
	cache *Cache
}

// NewExtractor returns an Extractor. cache may be nil.
func NewExtractor(cache *Cache) *Extractor {
	return &Extractor{cache: cache}
}

// Extract never fails: a file whose EXIF cannot be decoded yields a record
// with no location or orientation and the file's mod time as capture time.
func (e *Extractor) Extract(f File) Result {
	modTime := f.ModTime()
	rec := Record{
		Source:     f,
		Name:       f.Name(),
		CapturedAt: modTime,
	}

	diskPath := ""
	if df, ok := f.(interface{ Path() string }); ok {
		diskPath = df.Path()
	}
	if diskPath != "" {
		if meta, ok := e.cache.get(diskPath, modTime); ok {
			meta.applyTo(&rec)
			return Result{Record: rec}
		}
	}

	var warning error
	x, err := decodeExif(f)
	if err != nil {
		warning = fmt.Errorf("exif %s: %w", f.Name(), err)
	} else {
		rec.Location = resolveLocation(x)
		rec.Orientation = orientation(x)
		if t, err := x.DateTime(); err == nil {
			rec.CapturedAt = t
		}
	}

	if w, h, err := dimensions(f); err == nil {
		rec.Width, rec.Height = w, h
	}

	if diskPath != "" && warning == nil {
		e.cache.set(diskPath, modTime, rec)
	}
	return Result{Record: rec, Warning: warning}
}

func decodeExif(f File) (x *exif.Exif, err error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer rc.Close()

	// goexif can panic on some truncated segments.
	defer func() {
		if r := recover(); r != nil {
			x, err = nil, fmt.Errorf("decode: %v", r)
		}
	}()
	return exif.Decode(rc)
}

func orientation(x *exif.Exif) *int {
	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return nil
	}
	v, err := tag.Int(0)
	if err != nil {
		return nil
	}
	return &v
}

// dimensions uses image.DecodeConfig to get width and height without decoding the full image.
func dimensions(f File) (int, int, error) {
	rc, err := f.Open()
	if err != nil {
		return 0, 0, fmt.Errorf("open for dimensions: %w", err)
	}
	defer rc.Close()

	cfg, _, err := image.DecodeConfig(rc)
	if err != nil {
		return 0, 0, fmt.Errorf("decode config: %w", err)
	}
	return cfg.Width, cfg.Height, nil
}
