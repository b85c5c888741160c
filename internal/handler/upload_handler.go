package handler

import (
	"encoding/json"
	"net/http"

	"go-upload-stream/internal/model"
	"go-upload-stream/internal/service"
	"go-upload-stream/pkg/apierror"
)

const maxSubmitBody = 1 << 20

type UploadHandler struct {
	service *service.UploadService
}

func NewUploadHandler(service *service.UploadService) *UploadHandler {
	return &UploadHandler{service: service}
}

// Status handles GET /api/v1/uploads/status
func (h *UploadHandler) Status(w http.ResponseWriter, _ *http.Request) {
	writeSuccess(w, http.StatusOK, h.service.Status())
}

// Submit handles POST /api/v1/uploads
func (h *UploadHandler) Submit(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxSubmitBody)
	defer r.Body.Close()

	var req model.SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apierror.BadRequest("invalid JSON body", err.Error()))
		return
	}

	resp, err := h.service.Submit(r.Context(), req.Paths)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusAccepted, resp)
}

// Pause handles POST /api/v1/uploads/pause
func (h *UploadHandler) Pause(w http.ResponseWriter, _ *http.Request) {
	h.service.Pause()
	writeSuccess(w, http.StatusOK, h.service.Status())
}

// Resume handles POST /api/v1/uploads/resume
func (h *UploadHandler) Resume(w http.ResponseWriter, _ *http.Request) {
	h.service.Resume()
	writeSuccess(w, http.StatusOK, h.service.Status())
}

// Cancel handles POST /api/v1/uploads/cancel
func (h *UploadHandler) Cancel(w http.ResponseWriter, _ *http.Request) {
	h.service.Cancel()
	writeSuccess(w, http.StatusOK, h.service.Status())
}

// Close handles POST /api/v1/uploads/close
func (h *UploadHandler) Close(w http.ResponseWriter, _ *http.Request) {
	if err := h.service.CloseSubmissions(); err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, h.service.Status())
}

// Health handles GET /health
func Health(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
