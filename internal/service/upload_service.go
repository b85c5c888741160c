package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"go-upload-stream/internal/engine"
	"go-upload-stream/internal/engine/tus"
	"go-upload-stream/internal/event"
	"go-upload-stream/internal/model"
	"go-upload-stream/internal/source"
	"go-upload-stream/internal/uploader"
	"go-upload-stream/pkg/apierror"
)

// FileOpener builds an engine file handle for a local path.
type FileOpener func(path string) (engine.File, error)

// OpenTusFile is the FileOpener for the tus engine.
func OpenTusFile(path string) (engine.File, error) {
	f, err := tus.NewFile(path)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// UploadService is the path-based front of an Uploader shared by the CLI and
// the control API.
type UploadService struct {
	uploader *uploader.Uploader
	resolver *source.Resolver
	open     FileOpener
	logger   *slog.Logger
}

func NewUploadService(u *uploader.Uploader, resolver *source.Resolver, open FileOpener, logger *slog.Logger) *UploadService {
	if open == nil {
		open = OpenTusFile
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &UploadService{uploader: u, resolver: resolver, open: open, logger: logger}
}

// Submit expands patterns and submits every matching file as one list.
func (s *UploadService) Submit(ctx context.Context, patterns []string) (model.SubmitResponse, error) {
	if len(patterns) == 0 {
		return model.SubmitResponse{}, apierror.BadRequest("paths is required", "")
	}
	if s.uploader.SubmissionsClosed() {
		return model.SubmitResponse{}, model.ErrSubmissionsClosed
	}

	paths, err := s.resolver.Expand(patterns)
	if err != nil {
		return model.SubmitResponse{}, err
	}

	files := make([]engine.File, 0, len(paths))
	resp := model.SubmitResponse{Files: make([]model.SubmittedFile, 0, len(paths))}
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return model.SubmitResponse{}, err
		}

		f, err := s.open(path)
		if err != nil {
			return model.SubmitResponse{}, apierror.Wrap(err, "INVALID_FILE", "file cannot be opened", http.StatusBadRequest)
		}
		files = append(files, f)
		resp.Files = append(resp.Files, model.SubmittedFile{ID: f.ID(), Name: f.Name(), Path: path, Size: f.Size()})
		resp.Bytes += f.Size()
	}

	if err := s.uploader.Submit(files); err != nil {
		return model.SubmitResponse{}, fmt.Errorf("submit files: %w", err)
	}

	s.logger.Info("files submitted", "count", len(files), "bytes", resp.Bytes)
	return resp, nil
}

func (s *UploadService) Status() model.StatusResponse {
	stream := s.uploader.Events()
	status := model.StatusResponse{
		Uploading:         s.uploader.IsUploading(),
		SubmissionsClosed: s.uploader.SubmissionsClosed(),
		State:             stream.State().String(),
	}
	if err := stream.Err(); err != nil {
		status.Error = err.Error()
	}
	return status
}

func (s *UploadService) Pause() {
	s.logger.Info("pause requested")
	s.uploader.Pause()
}

func (s *UploadService) Resume() {
	s.logger.Info("resume requested")
	s.uploader.Resume()
}

func (s *UploadService) Cancel() {
	s.logger.Info("cancel requested")
	s.uploader.Cancel()
}

// CloseSubmissions returns model.ErrSubmissionsClosed when called twice so the
// API can report the no-op. An idle engine is resumed so that it reports
// complete once more for the closed session.
func (s *UploadService) CloseSubmissions() error {
	if s.uploader.SubmissionsClosed() {
		return model.ErrSubmissionsClosed
	}
	s.uploader.CloseSubmissions()
	s.uploader.Resume()
	s.logger.Info("submissions closed")
	return nil
}

func (s *UploadService) Events() event.Stream {
	return s.uploader.Events()
}

