package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"go-upload-stream/internal/engine"
	"go-upload-stream/internal/engine/enginetest"
	"go-upload-stream/internal/model"
	"go-upload-stream/internal/source"
	"go-upload-stream/internal/uploader"
	"go-upload-stream/pkg/apierror"
)

func newTestService(t *testing.T) (*UploadService, *enginetest.Engine, string) {
	t.Helper()

	root := t.TempDir()
	for name, content := range map[string]string{"a.bin": "aaaa", "b.bin": "bb", "c.txt": "c"} {
		require.NoError(t, os.WriteFile(filepath.Join(root, name), []byte(content), 0o644))
	}

	resolver, err := source.NewResolver(root)
	require.NoError(t, err)

	eng := enginetest.New()
	svc := NewUploadService(uploader.NewWithEngine(eng), resolver, nil, nil)
	return svc, eng, root
}

func TestUploadService_Submit(t *testing.T) {
	svc, eng, root := newTestService(t)

	var submitted []engine.File
	eng.Mock.On("AddFiles", mock.Anything).Run(func(args mock.Arguments) {
		submitted = args.Get(0).([]engine.File)
	}).Return().Once()
	eng.Mock.On("IsUploading").Return(false).Once()
	eng.Mock.On("Upload").Return().Once()

	resp, err := svc.Submit(context.Background(), []string{"*.bin"})
	require.NoError(t, err)

	require.Len(t, resp.Files, 2)
	assert.Equal(t, "a.bin", resp.Files[0].Name)
	assert.Equal(t, filepath.Join(root, "a.bin"), resp.Files[0].Path)
	assert.Equal(t, "b.bin", resp.Files[1].Name)
	assert.Equal(t, int64(6), resp.Bytes)
	require.Len(t, submitted, 2)
	assert.Equal(t, resp.Files[0].ID, submitted[0].ID())
	eng.Mock.AssertExpectations(t)
}

func TestUploadService_SubmitErrors(t *testing.T) {
	t.Run("no paths", func(t *testing.T) {
		svc, _, _ := newTestService(t)

		_, err := svc.Submit(context.Background(), nil)

		var apiErr *apierror.APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, "BAD_REQUEST", apiErr.Code)
	})

	t.Run("no match", func(t *testing.T) {
		svc, eng, _ := newTestService(t)

		_, err := svc.Submit(context.Background(), []string{"*.iso"})

		assert.ErrorIs(t, err, model.ErrNoFiles)
		eng.Mock.AssertNotCalled(t, "AddFiles", mock.Anything)
	})

	t.Run("closed", func(t *testing.T) {
		svc, eng, _ := newTestService(t)
		eng.Mock.On("IsUploading").Return(true).Once()
		require.NoError(t, svc.CloseSubmissions())

		_, err := svc.Submit(context.Background(), []string{"*.bin"})

		assert.ErrorIs(t, err, model.ErrSubmissionsClosed)
		eng.Mock.AssertNotCalled(t, "AddFiles", mock.Anything)
	})

	t.Run("opener failure", func(t *testing.T) {
		svc, eng, _ := newTestService(t)
		svc.open = func(string) (engine.File, error) { return nil, errors.New("permission denied") }

		_, err := svc.Submit(context.Background(), []string{"c.txt"})

		var apiErr *apierror.APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, "INVALID_FILE", apiErr.Code)
		eng.Mock.AssertNotCalled(t, "AddFiles", mock.Anything)
	})

	t.Run("cancelled context", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := svc.Submit(ctx, []string{"*.bin"})
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestUploadService_Status(t *testing.T) {
	svc, eng, _ := newTestService(t)
	eng.Mock.On("IsUploading").Return(true)

	status := svc.Status()
	assert.True(t, status.Uploading)
	assert.False(t, status.SubmissionsClosed)
	assert.Equal(t, "active", status.State)
	assert.Empty(t, status.Error)

	eng.Fire(engine.CallbackError, engine.Args{Message: "quota exceeded"})

	status = svc.Status()
	assert.Equal(t, "failed", status.State)
	assert.Equal(t, "error: quota exceeded", status.Error)
}

func TestUploadService_Commands(t *testing.T) {
	svc, eng, _ := newTestService(t)
	eng.Mock.On("Pause").Return().Once()
	eng.Mock.On("Cancel").Return().Once()

	svc.Pause()
	svc.Cancel()
	eng.Mock.AssertExpectations(t)
}

func TestUploadService_Resume(t *testing.T) {
	svc, eng, _ := newTestService(t)
	eng.Mock.On("IsUploading").Return(true).Once()

	svc.Resume()
	eng.Mock.AssertNotCalled(t, "Upload")

	eng.Mock.On("IsUploading").Return(false).Once()
	eng.Mock.On("Upload").Return().Once()

	svc.Resume()
	eng.Mock.AssertExpectations(t)
}

func TestUploadService_CloseSubmissions(t *testing.T) {
	svc, eng, _ := newTestService(t)
	eng.Mock.On("IsUploading").Return(false).Once()
	eng.Mock.On("Upload").Run(func(mock.Arguments) {
		eng.Fire(engine.CallbackComplete, engine.Args{})
	}).Return().Once()

	require.NoError(t, svc.CloseSubmissions())
	assert.Equal(t, "completed", svc.Events().State().String())

	assert.ErrorIs(t, svc.CloseSubmissions(), model.ErrSubmissionsClosed)
	eng.Mock.AssertExpectations(t)
}
