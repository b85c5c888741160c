package model

import "errors"

var (
	// Submission related errors
	ErrInvalidSubmission = errors.New("submission is neither a file nor a list of files")
	ErrSubmissionsClosed = errors.New("submissions closed")
	ErrNoFiles           = errors.New("no files matched")

	// Control API errors
	ErrUnauthorized = errors.New("unauthorized")
	ErrInvalidToken = errors.New("invalid token")

	// Generic errors
	ErrInvalidInput = errors.New("invalid input")
)
