package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"go-upload-stream/internal/engine/enginetest"
	"go-upload-stream/internal/model"
	"go-upload-stream/internal/service"
	"go-upload-stream/internal/source"
	"go-upload-stream/internal/uploader"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *model.APIError `json:"error"`
}

func newTestHandler(t *testing.T) (*UploadHandler, *enginetest.Engine) {
	t.Helper()

	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.bin"), []byte("aaaa"), 0o644))
	resolver, err := source.NewResolver(root)
	require.NoError(t, err)

	eng := enginetest.New()
	svc := service.NewUploadService(uploader.NewWithEngine(eng), resolver, nil, nil)
	return NewUploadHandler(svc), eng
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func TestUploadHandler_Submit(t *testing.T) {
	t.Run("accepted", func(t *testing.T) {
		h, eng := newTestHandler(t)
		eng.Mock.On("AddFiles", mock.Anything).Return().Once()
		eng.Mock.On("IsUploading").Return(false).Once()
		eng.Mock.On("Upload").Return().Once()

		req := httptest.NewRequest(http.MethodPost, "/api/v1/uploads", strings.NewReader(`{"paths":["*.bin"]}`))
		rec := httptest.NewRecorder()
		h.Submit(rec, req)

		assert.Equal(t, http.StatusAccepted, rec.Code)
		env := decode(t, rec)
		assert.True(t, env.Success)

		var resp model.SubmitResponse
		require.NoError(t, json.Unmarshal(env.Data, &resp))
		require.Len(t, resp.Files, 1)
		assert.Equal(t, "a.bin", resp.Files[0].Name)
		assert.Equal(t, int64(4), resp.Bytes)
		eng.Mock.AssertExpectations(t)
	})

	tests := []struct {
		name   string
		body   string
		status int
		code   string
	}{
		{"invalid json", `{"paths":`, http.StatusBadRequest, "BAD_REQUEST"},
		{"no paths", `{"paths":[]}`, http.StatusBadRequest, "BAD_REQUEST"},
		{"no match", `{"paths":["*.iso"]}`, http.StatusNotFound, "NO_FILES"},
		{"traversal", `{"paths":["../etc/passwd"]}`, http.StatusForbidden, "PATH_TRAVERSAL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, eng := newTestHandler(t)

			req := httptest.NewRequest(http.MethodPost, "/api/v1/uploads", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			h.Submit(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			env := decode(t, rec)
			assert.False(t, env.Success)
			require.NotNil(t, env.Error)
			assert.Equal(t, tt.code, env.Error.Code)
			eng.Mock.AssertNotCalled(t, "AddFiles", mock.Anything)
		})
	}
}

func TestUploadHandler_Close(t *testing.T) {
	h, eng := newTestHandler(t)
	eng.Mock.On("IsUploading").Return(false)
	eng.Mock.On("Upload").Return().Once()

	rec := httptest.NewRecorder()
	h.Close(rec, httptest.NewRequest(http.MethodPost, "/api/v1/uploads/close", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	var status model.StatusResponse
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &status))
	assert.True(t, status.SubmissionsClosed)

	rec = httptest.NewRecorder()
	h.Close(rec, httptest.NewRequest(http.MethodPost, "/api/v1/uploads/close", nil))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "SUBMISSIONS_CLOSED", decode(t, rec).Error.Code)

	rec = httptest.NewRecorder()
	h.Submit(rec, httptest.NewRequest(http.MethodPost, "/api/v1/uploads", strings.NewReader(`{"paths":["a.bin"]}`)))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestUploadHandler_Commands(t *testing.T) {
	h, eng := newTestHandler(t)
	eng.Mock.On("Pause").Return().Once()
	eng.Mock.On("Cancel").Return().Once()
	eng.Mock.On("Upload").Return().Once()
	eng.Mock.On("IsUploading").Return(false)

	rec := httptest.NewRecorder()
	h.Pause(rec, httptest.NewRequest(http.MethodPost, "/api/v1/uploads/pause", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.Resume(rec, httptest.NewRequest(http.MethodPost, "/api/v1/uploads/resume", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.Cancel(rec, httptest.NewRequest(http.MethodPost, "/api/v1/uploads/cancel", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.Status(rec, httptest.NewRequest(http.MethodGet, "/api/v1/uploads/status", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	var status model.StatusResponse
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &status))
	assert.Equal(t, "active", status.State)
	eng.Mock.AssertExpectations(t)
}

func TestHealth(t *testing.T) {
	rec := httptest.NewRecorder()
	Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}
