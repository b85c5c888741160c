// Package bridge turns an upload engine's named callbacks into a typed,
// multicast event stream.
package bridge

import (
	"log/slog"
	"sync"

	"go-upload-stream/internal/engine"
	"go-upload-stream/internal/event"
)

// translate builds the event for one callback invocation.
type translate func(engine.Args) event.Event

// translators holds exactly one entry per recognized callback name. The two
// error callbacks produce an event.UploadError, which the bridge turns into a
// stream failure instead of a push.
var translators = map[engine.Callback]translate{
	engine.CallbackFileAdded: func(a engine.Args) event.Event {
		return event.NewFileAdded(a.File)
	},
	engine.CallbackFilesAdded: func(a engine.Args) event.Event {
		return event.NewFilesAdded(a.Files)
	},
	engine.CallbackFileProgress: func(a engine.Args) event.Event {
		return event.NewFileProgress(a.File)
	},
	engine.CallbackFileSuccess: func(a engine.Args) event.Event {
		return event.NewFileSuccess(a.File)
	},
	engine.CallbackFileRetry: func(a engine.Args) event.Event {
		return event.NewFileRetry(a.File)
	},
	engine.CallbackFileError: func(a engine.Args) event.Event {
		return event.NewFileError(a.File, a.Message)
	},
	engine.CallbackUploadStart: func(engine.Args) event.Event {
		return event.NewUploadStart()
	},
	engine.CallbackChunkingStart: func(a engine.Args) event.Event {
		return event.NewChunkingStart(a.File)
	},
	engine.CallbackChunkingProgress: func(a engine.Args) event.Event {
		return event.NewChunkingProgress(a.File, a.Ratio)
	},
	engine.CallbackChunkingComplete: func(a engine.Args) event.Event {
		return event.NewChunkingComplete(a.File)
	},
	engine.CallbackProgress: func(engine.Args) event.Event {
		return event.NewProgress()
	},
	engine.CallbackComplete: func(engine.Args) event.Event {
		return event.NewComplete()
	},
	engine.CallbackPause: func(engine.Args) event.Event {
		return event.NewPause()
	},
	engine.CallbackBeforeCancel: func(a engine.Args) event.Event {
		return event.NewBeforeCancel(a.File)
	},
	engine.CallbackCancel: func(a engine.Args) event.Event {
		return event.NewCancel(a.File)
	},
	engine.CallbackError: func(a engine.Args) event.Event {
		return event.NewError(a.Message, a.File)
	},
}

// Bridge owns one handler registration per callback name on a single engine.
//
// Creating two bridges for the same engine registers every handler twice and
// delivers every event twice. Callers own that constraint; uploader.Uploader
// creates exactly one bridge per engine.
type Bridge struct {
	subject *event.Subject
	logger  *slog.Logger

	mu   sync.Mutex
	offs []func()
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithLogger sets the logger used for attach and detach lines.
func WithLogger(l *slog.Logger) Option {
	return func(b *Bridge) {
		if l != nil {
			b.logger = l
		}
	}
}

// New registers the bridge's handlers on r and returns it ready to emit.
func New(r engine.Registrar, opts ...Option) *Bridge {
	b := &Bridge{
		subject: event.NewSubject(),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}

	names := engine.Callbacks()
	b.offs = make([]func(), 0, len(names))
	for _, name := range names {
		fn := translators[name]
		b.offs = append(b.offs, r.On(name, b.handler(fn)))
	}

	b.logger.Debug("event bridge attached", "callbacks", len(b.offs))
	return b
}

// Events returns the bridged stream.
func (b *Bridge) Events() event.Stream {
	return b.subject
}

// Complete ends the bridged stream normally. Only the uploader's completion
// gate calls it; the engine's own complete callback never does.
func (b *Bridge) Complete() {
	b.subject.Complete()
}

// Detach removes every handler registered by New. The stream is left in
// whatever state it is in.
func (b *Bridge) Detach() {
	b.mu.Lock()
	offs := b.offs
	b.offs = nil
	b.mu.Unlock()

	if offs == nil {
		return
	}
	for _, off := range offs {
		off()
	}
	b.logger.Debug("event bridge detached", "callbacks", len(offs))
}

func (b *Bridge) handler(fn translate) engine.Handler {
	return func(args engine.Args) {
		e := fn(args)
		if failure, ok := e.(event.UploadError); ok {
			b.subject.Error(failure)
			return
		}
		b.subject.Next(e)
	}
}
