// Package enginetest provides a scriptable engine.Engine for tests. Command
// methods are recorded with testify's mock; callbacks are fired explicitly
// through Fire.
package enginetest

import (
	"sync"

	"github.com/stretchr/testify/mock"

	"go-upload-stream/internal/engine"
)

type registration struct {
	id int
	h  engine.Handler
}

// Engine is a mock engine. Command expectations are set on the Mock field;
// callback registrations go through On.
type Engine struct {
	Mock mock.Mock

	mu       sync.Mutex
	nextID   int
	handlers map[engine.Callback][]registration
}

var _ engine.Engine = (*Engine)(nil)

func New() *Engine {
	return &Engine{handlers: make(map[engine.Callback][]registration)}
}

// Constructor returns an engine.Constructor that always hands out e.
func (e *Engine) Constructor() engine.Constructor {
	return func(engine.Options) (engine.Engine, error) {
		return e, nil
	}
}

func (e *Engine) On(name engine.Callback, h engine.Handler) func() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.nextID++
	id := e.nextID
	e.handlers[name] = append(e.handlers[name], registration{id: id, h: h})

	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		regs := e.handlers[name]
		for i, r := range regs {
			if r.id == id {
				e.handlers[name] = append(regs[:i:i], regs[i+1:]...)
				return
			}
		}
	}
}

// Fire invokes every handler registered under name, in registration order.
func (e *Engine) Fire(name engine.Callback, args engine.Args) {
	e.mu.Lock()
	regs := append([]registration(nil), e.handlers[name]...)
	e.mu.Unlock()

	for _, r := range regs {
		r.h(args)
	}
}

// Handlers returns the number of handlers registered under name.
func (e *Engine) Handlers(name engine.Callback) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.handlers[name])
}

func (e *Engine) AddFile(f engine.File) {
	e.Mock.Called(f)
}

func (e *Engine) AddFiles(files []engine.File) {
	e.Mock.Called(files)
}

func (e *Engine) Upload() {
	e.Mock.Called()
}

func (e *Engine) Pause() {
	e.Mock.Called()
}

func (e *Engine) Cancel() {
	e.Mock.Called()
}

func (e *Engine) IsUploading() bool {
	args := e.Mock.Called()
	return args.Bool(0)
}

// File is a fixed engine.File.
type File struct {
	FileID   string
	FileName string
	Bytes    int64
	Fraction float64
}

var _ engine.File = (*File)(nil)

func NewFile(name string, size int64) *File {
	return &File{FileID: name, FileName: name, Bytes: size}
}

func (f *File) ID() string   { return f.FileID }
func (f *File) Name() string { return f.FileName }
func (f *File) Size() int64  { return f.Bytes }

func (f *File) Progress(relative bool) float64 {
	if relative {
		return f.Fraction
	}
	return f.Fraction * float64(f.Bytes)
}
