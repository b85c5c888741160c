package model

type SubmitRequest struct {
	Paths []string `json:"paths"`
}

type SubmittedFile struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Path string `json:"path"`
	Size int64  `json:"size"`
}

type SubmitResponse struct {
	Files []SubmittedFile `json:"files"`
	Bytes int64           `json:"bytes"`
}

type StatusResponse struct {
	Uploading         bool   `json:"uploading"`
	SubmissionsClosed bool   `json:"submissions_closed"`
	State             string `json:"state"`
	Error             string `json:"error,omitempty"`
}

type Claims struct {
	Subject string `json:"sub"`
	TokenID string `json:"jti"`
}
