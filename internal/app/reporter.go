package app

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/docker/go-units"
	"golang.org/x/time/rate"

	"go-upload-stream/internal/engine"
	"go-upload-stream/internal/event"
)

// Reporter logs the event stream for the CLI. Progress lines are throttled to
// one per interval; every other event is logged as it arrives.
type Reporter struct {
	logger  *slog.Logger
	limiter *rate.Limiter
	now     func() time.Time

	uploaded int
	bytes    int64
	started  time.Time

	done chan struct{}
	once sync.Once
	err  error
}

var _ event.Observer = (*Reporter)(nil)

func NewReporter(logger *slog.Logger, interval time.Duration) *Reporter {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = time.Second
	}
	return &Reporter{
		logger:  logger.With("component", "reporter"),
		limiter: rate.NewLimiter(rate.Every(interval), 1),
		now:     time.Now,
		done:    make(chan struct{}),
	}
}

// Attach observes s until it terminates or the returned function is called.
func (r *Reporter) Attach(s event.Stream) func() {
	return s.Observe(r)
}

// Done is closed once the observed stream terminates.
func (r *Reporter) Done() <-chan struct{} {
	return r.done
}

// Err returns the stream's terminal error after Done is closed.
func (r *Reporter) Err() error {
	<-r.done
	return r.err
}

func (r *Reporter) OnNext(e event.Event) {
	switch v := e.(type) {
	case event.FileAdded:
		r.logger.Info("file queued", "file", v.File.Name(), "size", humanSize(v.File.Size()))
	case event.FilesAdded:
		var total int64
		for _, f := range v.Files {
			total += f.Size()
		}
		r.logger.Info("files queued", "count", len(v.Files), "size", humanSize(total))
	case event.UploadStart:
		if r.started.IsZero() {
			r.started = r.now()
		}
		r.logger.Info("upload started")
	case event.FileProgress:
		if !r.limiter.AllowN(r.now(), 1) {
			return
		}
		r.logger.Info("uploading",
			"file", v.File.Name(),
			"progress", percent(v.Progress(true)),
			"sent", fmt.Sprintf("%s / %s", humanSize(int64(v.Progress(false))), humanSize(v.File.Size())),
		)
	case event.FileSuccess:
		r.uploaded++
		r.bytes += v.File.Size()
		r.logger.Info("file uploaded", "file", v.File.Name(), "size", humanSize(v.File.Size()))
	case event.FileRetry:
		r.logger.Warn("retrying chunk", "file", fileName(v.File))
	case event.ChunkingStart:
		r.logger.Debug("chunking started", "file", fileName(v.File))
	case event.ChunkingProgress:
		r.logger.Debug("chunking", "file", fileName(v.File), "progress", percent(v.Ratio))
	case event.ChunkingComplete:
		r.logger.Debug("chunking complete", "file", fileName(v.File))
	case event.Progress:
	case event.Complete:
		r.logger.Info("queue drained", "uploaded", r.uploaded)
	case event.Pause:
		r.logger.Info("upload paused")
	case event.BeforeCancel:
		r.logger.Debug("cancelling", "file", fileName(v.File))
	case event.Cancel:
		r.logger.Warn("upload cancelled", "file", fileName(v.File))
	case event.UploadError:
		r.logger.Error("upload error", "file", fileName(v.File), "error", v.Message)
	}
}

func (r *Reporter) OnError(err error) {
	r.logger.Error("upload failed", "error", err, "uploaded", r.uploaded)
	r.finish(err)
}

func (r *Reporter) OnComplete() {
	attrs := []any{"files", r.uploaded, "size", humanSize(r.bytes)}
	if !r.started.IsZero() {
		attrs = append(attrs, "duration", r.now().Sub(r.started).Round(time.Millisecond))
	}
	r.logger.Info("all uploads finished", attrs...)
	r.finish(nil)
}

func (r *Reporter) finish(err error) {
	r.once.Do(func() {
		r.err = err
		close(r.done)
	})
}

func humanSize(size int64) string {
	return units.HumanSizeWithPrecision(float64(size), 3)
}

func percent(fraction float64) string {
	return fmt.Sprintf("%.1f%%", fraction*100)
}

func fileName(f engine.File) string {
	if f == nil {
		return ""
	}
	return f.Name()
}
