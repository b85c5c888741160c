package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"go-upload-stream/internal/model"
	"go-upload-stream/internal/uploader"
	"go-upload-stream/pkg/apierror"
)

func writeSuccess(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(model.APIResponse{
		Success: true,
		Data:    data,
	})
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	body := &model.APIError{
		Code:    "INTERNAL_ERROR",
		Message: "Unexpected server error",
	}

	var apiErr *apierror.APIError
	var subErr *uploader.SubmissionError
	if errors.As(err, &apiErr) {
		status = apiErr.HTTPStatus
		body.Code = apiErr.Code
		body.Message = apiErr.Message
		body.Details = apiErr.Details
	} else if errors.Is(err, model.ErrSubmissionsClosed) {
		status = http.StatusConflict
		body.Code = "SUBMISSIONS_CLOSED"
		body.Message = "Submissions are closed"
	} else if errors.As(err, &subErr) {
		status = http.StatusConflict
		body.Code = "SUBMISSIONS_FAULTED"
		body.Message = "Submission channel failed"
		body.Details = subErr.Error()
	} else if errors.Is(err, model.ErrNoFiles) {
		status = http.StatusNotFound
		body.Code = "NO_FILES"
		body.Message = "No files matched"
		body.Details = err.Error()
	} else if errors.Is(err, model.ErrUnauthorized) || errors.Is(err, model.ErrInvalidToken) {
		status = http.StatusUnauthorized
		body.Code = "UNAUTHORIZED"
		body.Message = "Authentication required"
	} else if errors.Is(err, model.ErrInvalidInput) {
		status = http.StatusBadRequest
		body.Code = "BAD_REQUEST"
		body.Message = "Invalid input"
		body.Details = err.Error()
	} else {
		// Log unclassified errors so they are visible in container logs.
		slog.Error("unhandled error in writeError", "error", err.Error())
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(model.APIResponse{
		Success: false,
		Error:   body,
	})
}
