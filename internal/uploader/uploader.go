// Package uploader is the command façade over an upload engine: it submits
// files, forwards pause and cancel, and exposes the engine's events as a
// stream that completes only after the caller has closed submissions.
package uploader

import (
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"sync/atomic"

	"go-upload-stream/internal/bridge"
	"go-upload-stream/internal/engine"
	"go-upload-stream/internal/event"
	"go-upload-stream/internal/model"
)

// SubmissionError reports a value the submission channel cannot accept.
type SubmissionError struct {
	Value any
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("%s: got %T", model.ErrInvalidSubmission, e.Value)
}

func (e *SubmissionError) Unwrap() error {
	return model.ErrInvalidSubmission
}

// Uploader owns one engine, one event bridge and the completion gate.
type Uploader struct {
	engine engine.Engine
	bridge *bridge.Bridge
	logger *slog.Logger

	closed  atomic.Bool
	offGate func()

	mu    sync.Mutex
	fault error

	closeOnce sync.Once
}

// Option configures an Uploader.
type Option func(*Uploader)

// WithLogger sets the logger passed down to the bridge.
func WithLogger(l *slog.Logger) Option {
	return func(u *Uploader) {
		if l != nil {
			u.logger = l
		}
	}
}

// New constructs an engine from opts with ctor and wraps it.
func New(ctor engine.Constructor, opts engine.Options, uopts ...Option) (*Uploader, error) {
	e, err := ctor(opts)
	if err != nil {
		return nil, fmt.Errorf("construct upload engine: %w", err)
	}
	return NewWithEngine(e, uopts...), nil
}

// NewWithEngine wraps an engine that was built elsewhere. The Uploader takes
// ownership of its callback registrations; e must not be wrapped twice.
func NewWithEngine(e engine.Engine, opts ...Option) *Uploader {
	u := &Uploader{
		engine: e,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(u)
	}

	// The bridge registers first so its Complete marker is pushed before the
	// gate can end the stream.
	u.bridge = bridge.New(e, bridge.WithLogger(u.logger))
	u.offGate = e.On(engine.CallbackComplete, func(engine.Args) {
		if u.closed.Load() {
			u.bridge.Complete()
		}
	})

	return u
}

// Events returns the public event stream. It completes once submissions are
// closed and the engine then reports complete, and fails on the first
// fileError or error callback.
func (u *Uploader) Events() event.Stream {
	return u.bridge.Events()
}

// Submit accepts nil (ignored), a single engine.File, a []engine.File, or a
// []any holding only engine.File values. Files are forwarded to the engine,
// which is started if it is idle. Any other value returns a *SubmissionError
// before the engine is touched, and every later Submit returns the same error.
func (u *Uploader) Submit(v any) error {
	if v == nil {
		return nil
	}

	if err := u.checkOpen(); err != nil {
		return err
	}

	switch x := v.(type) {
	case engine.File:
		if isNilFile(x) {
			return u.setFault(&SubmissionError{Value: v})
		}
		u.engine.AddFile(x)
	case []engine.File:
		for _, f := range x {
			if isNilFile(f) {
				return u.setFault(&SubmissionError{Value: v})
			}
		}
		u.engine.AddFiles(x)
	case []any:
		files := make([]engine.File, len(x))
		for i, item := range x {
			f, ok := item.(engine.File)
			if !ok || isNilFile(f) {
				return u.setFault(&SubmissionError{Value: v})
			}
			files[i] = f
		}
		u.engine.AddFiles(files)
	default:
		return u.setFault(&SubmissionError{Value: v})
	}

	if !u.engine.IsUploading() {
		u.engine.Upload()
	}
	return nil
}

// isNilFile reports whether f is nil or wraps a nil pointer, such as a
// (*tus.File)(nil) stored in the interface.
func isNilFile(f engine.File) bool {
	if f == nil {
		return true
	}
	v := reflect.ValueOf(f)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface:
		return v.IsNil()
	}
	return false
}

// AddFile submits a single file.
func (u *Uploader) AddFile(f engine.File) error {
	if f == nil {
		return nil
	}
	return u.Submit(f)
}

// AddFiles submits files as one ordered list.
func (u *Uploader) AddFiles(files ...engine.File) error {
	return u.Submit(files)
}

// CloseSubmissions signals that no more files will be submitted. The event
// stream completes on the next complete callback from the engine.
func (u *Uploader) CloseSubmissions() {
	u.closed.Store(true)
}

// SubmissionsClosed reports whether CloseSubmissions has been called.
func (u *Uploader) SubmissionsClosed() bool {
	return u.closed.Load()
}

func (u *Uploader) Pause() {
	u.engine.Pause()
}

// Resume starts the engine if it is idle. A paused queue continues from the
// confirmed offsets; an empty queue makes the engine report complete.
func (u *Uploader) Resume() {
	if !u.engine.IsUploading() {
		u.engine.Upload()
	}
}

func (u *Uploader) Cancel() {
	u.engine.Cancel()
}

func (u *Uploader) IsUploading() bool {
	return u.engine.IsUploading()
}

// Close removes every callback registration the Uploader made. The engine
// itself is not stopped.
func (u *Uploader) Close() error {
	u.closeOnce.Do(func() {
		u.offGate()
		u.bridge.Detach()
	})
	return nil
}

func (u *Uploader) checkOpen() error {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.fault != nil {
		return u.fault
	}
	if u.closed.Load() {
		return model.ErrSubmissionsClosed
	}
	return nil
}

func (u *Uploader) setFault(err error) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.fault == nil {
		u.fault = err
	}
	return u.fault
}
