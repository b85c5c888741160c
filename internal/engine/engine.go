// Package engine describes the upload engine the event bridge wraps. The engine
// owns chunking, retries, resumability and transport; this package only names
// the callbacks it fires and the commands it accepts.
package engine

import (
	"log/slog"
	"time"
)

// Callback is the name an engine handler is registered under.
type Callback string

const (
	CallbackFileAdded        Callback = "fileAdded"
	CallbackFilesAdded       Callback = "filesAdded"
	CallbackFileProgress     Callback = "fileProgress"
	CallbackFileSuccess      Callback = "fileSuccess"
	CallbackFileRetry        Callback = "fileRetry"
	CallbackFileError        Callback = "fileError"
	CallbackUploadStart      Callback = "uploadStart"
	CallbackChunkingStart    Callback = "chunkingStart"
	CallbackChunkingProgress Callback = "chunkingProgress"
	CallbackChunkingComplete Callback = "chunkingComplete"
	CallbackProgress         Callback = "progress"
	CallbackComplete         Callback = "complete"
	CallbackPause            Callback = "pause"
	CallbackBeforeCancel     Callback = "beforeCancel"
	CallbackCancel           Callback = "cancel"
	CallbackError            Callback = "error"
)

var callbacks = [...]Callback{
	CallbackFileAdded,
	CallbackFilesAdded,
	CallbackFileProgress,
	CallbackFileSuccess,
	CallbackFileRetry,
	CallbackFileError,
	CallbackUploadStart,
	CallbackChunkingStart,
	CallbackChunkingProgress,
	CallbackChunkingComplete,
	CallbackProgress,
	CallbackComplete,
	CallbackPause,
	CallbackBeforeCancel,
	CallbackCancel,
	CallbackError,
}

// Callbacks returns every recognized callback name in a stable order.
func Callbacks() []Callback {
	out := make([]Callback, len(callbacks))
	copy(out, callbacks[:])
	return out
}

func (c Callback) String() string {
	return string(c)
}

// File is an in-progress upload unit. It is owned and mutated by the engine.
type File interface {
	ID() string
	Name() string
	Size() int64

	// Progress reports the engine's own progress measure for the file. With
	// relative set it is a fraction in [0,1]; otherwise it is the number of
	// bytes the remote side has confirmed.
	Progress(relative bool) float64
}

// Args carries the arguments of a single callback invocation. Each callback
// fills only the fields its signature provides:
//
//	fileAdded, fileProgress, fileSuccess, fileRetry,
//	chunkingStart, chunkingComplete, beforeCancel, cancel  File
//	filesAdded                                             Files
//	chunkingProgress                                       File, Ratio
//	fileError, error                                       File, Message
//	uploadStart, progress, complete, pause                 (none)
type Args struct {
	File    File
	Files   []File
	Ratio   float64
	Message string
}

// Handler receives callback invocations.
type Handler func(Args)

// Registrar is the callback-registration half of an engine.
type Registrar interface {
	// On registers h under name and returns a function that removes exactly
	// that registration.
	On(name Callback, h Handler) (off func())
}

// Engine is the full upload engine surface consumed by the uploader.
type Engine interface {
	Registrar

	AddFile(f File)
	AddFiles(files []File)
	Upload()
	Pause()
	Cancel()
	IsUploading() bool
}

// Options is the configuration record an engine is constructed from.
type Options struct {
	// Target is the upload endpoint.
	Target string

	// ChunkSize is the maximum number of bytes sent per request.
	ChunkSize int64

	// MaxChunkRetries is the number of retries for a failed request.
	MaxChunkRetries int

	// ChunkRetryInterval is the minimum wait between retries.
	ChunkRetryInterval time.Duration

	// Metadata is attached to every remote upload.
	Metadata map[string]string

	Logger *slog.Logger
}

// MaxChunkSize bounds Options.ChunkSize. Engines hold one chunk in memory
// per transfer.
const MaxChunkSize int64 = 256 << 20

// DefaultOptions returns options with the engine defaults filled in.
func DefaultOptions() Options {
	return Options{
		ChunkSize:          1 << 20,
		MaxChunkRetries:    3,
		ChunkRetryInterval: 2 * time.Second,
	}
}

// Constructor builds an engine from a configuration record.
type Constructor func(Options) (Engine, error)
