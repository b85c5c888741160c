package websocket

import (
	"errors"
	"fmt"
	"time"

	"go-upload-stream/internal/engine"
	"go-upload-stream/internal/event"
)

// Final frame types sent when the stream terminates.
const (
	TypeCompleted = "completed"
	TypeFailed    = "failed"
)

type FileInfo struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Size     int64   `json:"size"`
	Progress float64 `json:"progress"`
}

// Message is the JSON envelope pushed to websocket clients.
type Message struct {
	Type      string     `json:"type"`
	File      *FileInfo  `json:"file,omitempty"`
	Files     []FileInfo `json:"files,omitempty"`
	Ratio     *float64   `json:"ratio,omitempty"`
	Message   string     `json:"message,omitempty"`
	Progress  *float64   `json:"progress,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
}

func fileInfo(f engine.File) *FileInfo {
	if f == nil {
		return nil
	}
	return &FileInfo{ID: f.ID(), Name: f.Name(), Size: f.Size(), Progress: f.Progress(true)}
}

// Encode maps an event to its envelope.
func Encode(e event.Event, now time.Time) (Message, error) {
	m := Message{Type: e.Type().String(), Timestamp: now}

	switch v := e.(type) {
	case event.FileAdded:
		m.File = fileInfo(v.File)
	case event.FilesAdded:
		m.Files = make([]FileInfo, 0, len(v.Files))
		for _, f := range v.Files {
			if info := fileInfo(f); info != nil {
				m.Files = append(m.Files, *info)
			}
		}
	case event.FileProgress:
		m.File = fileInfo(v.File)
		if v.File != nil {
			p := v.Progress(true)
			m.Progress = &p
		}
	case event.FileSuccess:
		m.File = fileInfo(v.File)
	case event.FileRetry:
		m.File = fileInfo(v.File)
	case event.ChunkingStart:
		m.File = fileInfo(v.File)
	case event.ChunkingProgress:
		m.File = fileInfo(v.File)
		ratio := v.Ratio
		m.Ratio = &ratio
	case event.ChunkingComplete:
		m.File = fileInfo(v.File)
	case event.UploadStart, event.Progress, event.Complete, event.Pause:
	case event.BeforeCancel:
		m.File = fileInfo(v.File)
	case event.Cancel:
		m.File = fileInfo(v.File)
	case event.UploadError:
		m.File = fileInfo(v.File)
		m.Message = v.Message
	default:
		return Message{}, fmt.Errorf("unknown event type %T", e)
	}

	return m, nil
}

// Final builds the closing envelope for a terminated stream. err is nil for
// a completed stream.
func Final(err error, now time.Time) Message {
	if err == nil {
		return Message{Type: TypeCompleted, Timestamp: now}
	}

	m := Message{Type: TypeFailed, Message: err.Error(), Timestamp: now}
	var failure event.UploadError
	if errors.As(err, &failure) {
		m.Message = failure.Message
		m.File = fileInfo(failure.File)
	}
	return m
}
