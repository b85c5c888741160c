package tus

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/bdragon300/tusgo"
	"github.com/google/uuid"

	"go-upload-stream/internal/engine"
)

// File is a local file queued for upload to a tus server.
type File struct {
	id          string
	path        string
	name        string
	size        int64
	contentType string

	confirmed atomic.Int64
	finished  atomic.Bool

	upload tusgo.Upload

	mu       sync.Mutex
	location string
}

var _ engine.File = (*File)(nil)

// NewFile stats path and returns a handle for it. Directories are rejected.
func NewFile(path string) (*File, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}

	return &File{
		id:          uuid.NewString(),
		path:        path,
		name:        filepath.Base(path),
		size:        info.Size(),
		contentType: detectContentType(path),
	}, nil
}

func (f *File) ID() string   { return f.id }
func (f *File) Name() string { return f.name }
func (f *File) Size() int64  { return f.size }
func (f *File) Path() string { return f.path }

// ContentType is sent to the server as the filetype metadata entry.
func (f *File) ContentType() string { return f.contentType }

// Location returns the remote upload URL, or "" before the upload was created.
func (f *File) Location() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.location
}

func (f *File) Progress(relative bool) float64 {
	confirmed := f.confirmed.Load()
	if !relative {
		return float64(confirmed)
	}
	if f.size == 0 {
		if f.finished.Load() {
			return 1
		}
		return 0
	}
	ratio := float64(confirmed) / float64(f.size)
	if ratio > 1 {
		ratio = 1
	}
	return ratio
}

// confirm records offset as acknowledged by the server. The value never
// decreases.
func (f *File) confirm(offset int64) {
	for {
		cur := f.confirmed.Load()
		if offset <= cur || f.confirmed.CompareAndSwap(cur, offset) {
			return
		}
	}
}

func (f *File) finish() {
	f.confirm(f.size)
	f.finished.Store(true)
}

func (f *File) setLocation(loc string) {
	f.mu.Lock()
	f.location = loc
	f.mu.Unlock()
}
