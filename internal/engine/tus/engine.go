// Package tus implements engine.Engine on top of the tus resumable upload
// protocol. Transfers are chunked and resumable through tusgo; failed requests
// are retried by go-retryablehttp.
package tus

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"sync"
	"time"

	"github.com/bdragon300/tusgo"
	"github.com/hashicorp/go-retryablehttp"

	"go-upload-stream/internal/engine"
)

type fileKey struct{}

type registration struct {
	id int
	h  engine.Handler
}

// Engine uploads queued files one at a time to a tus endpoint.
type Engine struct {
	opts   engine.Options
	logger *slog.Logger
	client *tusgo.Client

	hmu      sync.Mutex
	nextID   int
	handlers map[engine.Callback][]registration

	mu        sync.Mutex
	queue     []*File
	current   *File
	uploading bool
	stop      context.CancelFunc
	idle      chan struct{}
}

var _ engine.Engine = (*Engine)(nil)

// Constructor adapts New to engine.Constructor.
func Constructor(opts engine.Options) (engine.Engine, error) {
	return New(opts)
}

func New(opts engine.Options) (*Engine, error) {
	if opts.Target == "" {
		return nil, errors.New("upload target is required")
	}
	target, err := url.Parse(opts.Target)
	if err != nil {
		return nil, fmt.Errorf("parse upload target: %w", err)
	}
	if target.Scheme != "http" && target.Scheme != "https" {
		return nil, fmt.Errorf("upload target %q must be an http(s) URL", opts.Target)
	}

	if opts.ChunkSize > engine.MaxChunkSize {
		return nil, fmt.Errorf("chunk size %d exceeds the %d byte maximum", opts.ChunkSize, engine.MaxChunkSize)
	}

	defaults := engine.DefaultOptions()
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = defaults.ChunkSize
	}
	if opts.MaxChunkRetries < 0 {
		opts.MaxChunkRetries = 0
	}
	if opts.ChunkRetryInterval <= 0 {
		opts.ChunkRetryInterval = defaults.ChunkRetryInterval
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	e := &Engine{
		opts:     opts,
		logger:   opts.Logger.With("component", "tus"),
		handlers: make(map[engine.Callback][]registration),
	}

	rc := retryablehttp.NewClient()
	rc.RetryMax = opts.MaxChunkRetries
	rc.RetryWaitMin = opts.ChunkRetryInterval
	rc.RetryWaitMax = 4 * opts.ChunkRetryInterval
	rc.Logger = e.logger
	rc.RequestLogHook = e.onRequest

	e.client = tusgo.NewClient(rc.StandardClient(), target)
	return e, nil
}

func (e *Engine) On(name engine.Callback, h engine.Handler) func() {
	e.hmu.Lock()
	defer e.hmu.Unlock()

	e.nextID++
	id := e.nextID
	e.handlers[name] = append(e.handlers[name], registration{id: id, h: h})

	return func() {
		e.hmu.Lock()
		defer e.hmu.Unlock()
		regs := e.handlers[name]
		for i, r := range regs {
			if r.id == id {
				e.handlers[name] = append(regs[:i:i], regs[i+1:]...)
				return
			}
		}
	}
}

func (e *Engine) fire(name engine.Callback, args engine.Args) {
	e.hmu.Lock()
	regs := append([]registration(nil), e.handlers[name]...)
	e.hmu.Unlock()

	for _, r := range regs {
		r.h(args)
	}
}

func (e *Engine) AddFile(f engine.File) {
	e.AddFiles([]engine.File{f})
}

// AddFiles queues files. Handles not created by NewFile are reported through
// the error callback and skipped.
func (e *Engine) AddFiles(files []engine.File) {
	accepted := make([]*File, 0, len(files))
	for _, f := range files {
		tf, ok := f.(*File)
		if !ok || tf == nil {
			msg := fmt.Sprintf("unsupported file handle %T", f)
			e.logger.Error("file rejected", "error", msg)
			e.fire(engine.CallbackError, engine.Args{Message: msg, File: f})
			continue
		}
		accepted = append(accepted, tf)
	}

	for _, f := range accepted {
		e.fire(engine.CallbackChunkingStart, engine.Args{File: f})
		e.fire(engine.CallbackChunkingProgress, engine.Args{File: f, Ratio: 1})
		e.fire(engine.CallbackChunkingComplete, engine.Args{File: f})
	}

	e.mu.Lock()
	e.queue = append(e.queue, accepted...)
	e.mu.Unlock()

	added := make([]engine.File, len(accepted))
	for i, f := range accepted {
		e.logger.Debug("file queued", "file", f.Name(), "size", f.Size())
		e.fire(engine.CallbackFileAdded, engine.Args{File: f})
		added[i] = f
	}
	e.fire(engine.CallbackFilesAdded, engine.Args{Files: added})
}

// Upload starts the worker. It is a no-op while an upload is running.
func (e *Engine) Upload() {
	e.mu.Lock()
	if e.uploading {
		e.mu.Unlock()
		return
	}
	ctx, stop := context.WithCancel(context.Background())
	prev := e.idle
	idle := make(chan struct{})
	e.uploading = true
	e.stop = stop
	e.idle = idle
	e.mu.Unlock()

	e.logger.Info("upload started")
	e.fire(engine.CallbackUploadStart, engine.Args{})

	go func() {
		defer close(idle)
		if prev != nil {
			<-prev
		}
		e.run(ctx)
	}()
}

// Pause aborts the in-flight request. The current file goes back to the head
// of the queue and resumes from the server offset on the next Upload.
func (e *Engine) Pause() {
	e.mu.Lock()
	if !e.uploading {
		e.mu.Unlock()
		return
	}
	e.stop()
	if e.current != nil {
		e.queue = append([]*File{e.current}, e.queue...)
		e.current = nil
	}
	e.uploading = false
	e.mu.Unlock()

	e.logger.Info("upload paused")
	e.fire(engine.CallbackPause, engine.Args{})
}

// Cancel aborts the running upload and drops every queued file. Remote
// uploads that were already created are deleted in the background.
func (e *Engine) Cancel() {
	e.mu.Lock()
	if e.stop != nil {
		e.stop()
	}
	var files []*File
	if e.current != nil {
		files = append(files, e.current)
	}
	files = append(files, e.queue...)
	e.current = nil
	e.queue = nil
	e.uploading = false
	e.mu.Unlock()

	for _, f := range files {
		e.fire(engine.CallbackBeforeCancel, engine.Args{File: f})
		if loc := f.Location(); loc != "" {
			go e.deleteRemote(f.Name(), loc)
		}
		e.logger.Info("upload cancelled", "file", f.Name())
		e.fire(engine.CallbackCancel, engine.Args{File: f})
	}
}

func (e *Engine) IsUploading() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.uploading
}

func (e *Engine) run(ctx context.Context) {
	for {
		f, ok := e.next(ctx)
		if !ok {
			return
		}
		if f == nil {
			e.logger.Info("upload complete")
			e.fire(engine.CallbackComplete, engine.Args{})
			return
		}

		err := e.transfer(ctx, f)
		if ctx.Err() != nil {
			// Paused or cancelled; Pause and Cancel already settled the queue.
			return
		}

		e.mu.Lock()
		if e.current == f {
			e.current = nil
		}
		e.mu.Unlock()

		if err != nil {
			msg := err.Error()
			e.logger.Error("file upload failed", "file", f.Name(), "error", msg)
			e.fire(engine.CallbackFileError, engine.Args{File: f, Message: msg})
			e.fire(engine.CallbackError, engine.Args{Message: msg, File: f})
			continue
		}

		f.finish()
		e.logger.Info("file uploaded", "file", f.Name(), "location", f.Location())
		e.fire(engine.CallbackFileSuccess, engine.Args{File: f})
	}
}

// next pops the head of the queue. It returns ok=false when the run was
// stopped, and a nil file when the queue is drained.
func (e *Engine) next(ctx context.Context) (*File, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if ctx.Err() != nil {
		return nil, false
	}
	if len(e.queue) == 0 {
		e.uploading = false
		e.stop()
		return nil, true
	}
	f := e.queue[0]
	e.queue[0] = nil
	e.queue = e.queue[1:]
	e.current = f
	return f, true
}

func (e *Engine) transfer(ctx context.Context, f *File) error {
	ctx = context.WithValue(ctx, fileKey{}, f)
	cl := e.client.WithContext(ctx)

	// f.upload is only touched here, and runs never overlap.
	if f.upload.Location == "" {
		meta := make(map[string]string, len(e.opts.Metadata)+2)
		for k, v := range e.opts.Metadata {
			meta[k] = v
		}
		meta["filename"] = f.name
		meta["filetype"] = f.contentType

		if _, err := cl.CreateUpload(&f.upload, f.size, false, meta); err != nil {
			return fmt.Errorf("create upload: %w", err)
		}
		f.setLocation(f.upload.Location)
		e.logger.Debug("remote upload created", "file", f.name, "location", f.upload.Location)
	}

	stream := tusgo.NewUploadStream(cl, &f.upload)
	stream.ChunkSize = e.opts.ChunkSize
	if _, err := stream.Sync(); err != nil {
		return fmt.Errorf("sync offset: %w", err)
	}

	offset := stream.Tell()
	f.confirm(offset)
	if offset >= f.size {
		return nil
	}

	src, err := os.Open(f.path)
	if err != nil {
		return fmt.Errorf("open file: %w", err)
	}
	defer src.Close()

	if _, err := src.Seek(offset, io.SeekStart); err != nil {
		return fmt.Errorf("seek to offset %d: %w", offset, err)
	}

	buf := make([]byte, e.opts.ChunkSize)
	for {
		n, rerr := io.ReadFull(src, buf)
		if n > 0 {
			if _, err := stream.Write(buf[:n]); err != nil {
				return fmt.Errorf("write chunk at offset %d: %w", stream.Tell(), err)
			}
			f.confirm(stream.Tell())
			e.fire(engine.CallbackFileProgress, engine.Args{File: f})
			e.fire(engine.CallbackProgress, engine.Args{})
		}
		if rerr == io.EOF || rerr == io.ErrUnexpectedEOF {
			return nil
		}
		if rerr != nil {
			return fmt.Errorf("read file: %w", rerr)
		}
	}
}

func (e *Engine) deleteRemote(name, location string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := e.client.WithContext(ctx).DeleteUpload(tusgo.Upload{Location: location}); err != nil {
		e.logger.Warn("remote upload not deleted", "file", name, "location", location, "error", err)
	}
}

// onRequest turns retried attempts into fileRetry callbacks.
func (e *Engine) onRequest(_ retryablehttp.Logger, req *http.Request, attempt int) {
	if attempt == 0 {
		return
	}
	f, ok := req.Context().Value(fileKey{}).(*File)
	if !ok {
		return
	}
	e.logger.Warn("retrying request", "file", f.Name(), "method", req.Method, "attempt", attempt)
	e.fire(engine.CallbackFileRetry, engine.Args{File: f})
}
