package photo

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"time"
)

// Location is a WGS84 coordinate in decimal degrees.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// valid rejects out-of-range values and coordinates with a zero component,
// which cameras write as a placeholder when they have no fix.
func (l Location) valid() bool {
	if l.Latitude == 0 || l.Longitude == 0 {
		return false
	}
	return l.Latitude >= -90 && l.Latitude <= 90 &&
		l.Longitude >= -180 && l.Longitude <= 180
}

// File is the source of one uploaded image. Implementations must allow
// Open to be called more than once.
type File interface {
	Name() string
	ModTime() time.Time
	Open() (io.ReadCloser, error)
}

// Record represents a single photo's metadata.
type Record struct {
	Source      File      `json:"-"`
	Name        string    `json:"name"`
	Path        string    `json:"path,omitempty"`
	PreviewURI  string    `json:"previewUri,omitempty"`
	Location    *Location `json:"location,omitempty"`
	Orientation *int      `json:"orientation,omitempty"`
	CapturedAt  time.Time `json:"capturedAt,omitzero"`
	Width       int       `json:"width,omitempty"`
	Height      int       `json:"height,omitempty"`
}

// HasLocation reports whether GPS data was found for the photo.
func (r Record) HasLocation() bool {
	return r.Location != nil
}

// DiskFile is a File backed by a path on the local file system.
type DiskFile struct {
	path    string
	modTime time.Time
}

// OpenDiskFile stats path and returns a File for it.
func OpenDiskFile(path string) (*DiskFile, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	return &DiskFile{path: path, modTime: info.ModTime()}, nil
}

func (f *DiskFile) Name() string                 { return filepath.Base(f.path) }
func (f *DiskFile) Path() string                 { return f.path }
func (f *DiskFile) ModTime() time.Time           { return f.modTime }
func (f *DiskFile) Open() (io.ReadCloser, error) { return os.Open(f.path) }

// MemoryFile is a File held entirely in memory.
type MemoryFile struct {
	name    string
	data    []byte
	modTime time.Time
}

func NewMemoryFile(name string, data []byte, modTime time.Time) *MemoryFile {
	return &MemoryFile{name: name, data: data, modTime: modTime}
}

func (f *MemoryFile) Name() string       { return f.name }
func (f *MemoryFile) ModTime() time.Time { return f.modTime }
func (f *MemoryFile) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(f.data)), nil
}
