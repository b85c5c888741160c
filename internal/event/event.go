package event

import (
	"fmt"

	"go-upload-stream/internal/engine"
)

// Type is the discriminant of an event. Its values equal the engine callback
// names they are translated from.
type Type string

const (
	TypeFileAdded        Type = "fileAdded"
	TypeFilesAdded       Type = "filesAdded"
	TypeFileProgress     Type = "fileProgress"
	TypeFileSuccess      Type = "fileSuccess"
	TypeFileRetry        Type = "fileRetry"
	TypeFileError        Type = "fileError"
	TypeUploadStart      Type = "uploadStart"
	TypeChunkingStart    Type = "chunkingStart"
	TypeChunkingProgress Type = "chunkingProgress"
	TypeChunkingComplete Type = "chunkingComplete"
	TypeProgress         Type = "progress"
	TypeComplete         Type = "complete"
	TypePause            Type = "pause"
	TypeBeforeCancel     Type = "beforeCancel"
	TypeCancel           Type = "cancel"
	TypeError            Type = "error"
)

var types = [...]Type{
	TypeFileAdded,
	TypeFilesAdded,
	TypeFileProgress,
	TypeFileSuccess,
	TypeFileRetry,
	TypeFileError,
	TypeUploadStart,
	TypeChunkingStart,
	TypeChunkingProgress,
	TypeChunkingComplete,
	TypeProgress,
	TypeComplete,
	TypePause,
	TypeBeforeCancel,
	TypeCancel,
	TypeError,
}

// Types returns all sixteen discriminants.
func Types() []Type {
	out := make([]Type, len(types))
	copy(out, types[:])
	return out
}

func (t Type) String() string {
	return string(t)
}

// IsTerminal reports whether events of this type end a stream in the
// failed state instead of being pushed.
func (t Type) IsTerminal() bool {
	return t == TypeFileError || t == TypeError
}

// Event is a sealed set of upload notifications. Values are immutable once
// constructed.
type Event interface {
	Type() Type
	event()
}

var (
	_ Event = FileAdded{}
	_ Event = FilesAdded{}
	_ Event = FileProgress{}
	_ Event = FileSuccess{}
	_ Event = FileRetry{}
	_ Event = UploadStart{}
	_ Event = ChunkingStart{}
	_ Event = ChunkingProgress{}
	_ Event = ChunkingComplete{}
	_ Event = Progress{}
	_ Event = Complete{}
	_ Event = Pause{}
	_ Event = BeforeCancel{}
	_ Event = Cancel{}
	_ Event = UploadError{}
	_ error = UploadError{}
)

////////////////////////////////////////////////////////////////////////////////
// FILE EVENTS

type FileAdded struct {
	File engine.File
}

func NewFileAdded(f engine.File) FileAdded { return FileAdded{File: f} }
func (FileAdded) Type() Type { return TypeFileAdded }
func (FileAdded) event() {}

type FilesAdded struct {
	Files []engine.File
}

// NewFilesAdded copies files so the event does not share the engine's slice.
func NewFilesAdded(files []engine.File) FilesAdded {
	var cp []engine.File
	if files != nil {
		cp = make([]engine.File, len(files))
		copy(cp, files)
	}
	return FilesAdded{Files: cp}
}
func (FilesAdded) Type() Type { return TypeFilesAdded }
func (FilesAdded) event() {}

type FileProgress struct {
	File engine.File
}

func NewFileProgress(f engine.File) FileProgress { return FileProgress{File: f} }
func (FileProgress) Type() Type { return TypeFileProgress }
func (FileProgress) event() {}

// Progress forwards to the file's own progress query.
func (e FileProgress) Progress(relative bool) float64 {
	return e.File.Progress(relative)
}

type FileSuccess struct {
	File engine.File
}

func NewFileSuccess(f engine.File) FileSuccess { return FileSuccess{File: f} }
func (FileSuccess) Type() Type { return TypeFileSuccess }
func (FileSuccess) event() {}

// FileRetry reports an engine-internal retry. It never ends the stream.
type FileRetry struct {
	File engine.File
}

func NewFileRetry(f engine.File) FileRetry { return FileRetry{File: f} }
func (FileRetry) Type() Type { return TypeFileRetry }
func (FileRetry) event() {}

////////////////////////////////////////////////////////////////////////////////
// CHUNKING EVENTS

type ChunkingStart struct {
	File engine.File
}

func NewChunkingStart(f engine.File) ChunkingStart { return ChunkingStart{File: f} }
func (ChunkingStart) Type() Type { return TypeChunkingStart }
func (ChunkingStart) event() {}

type ChunkingProgress struct {
	File  engine.File
	Ratio float64
}

func NewChunkingProgress(f engine.File, ratio float64) ChunkingProgress {
	return ChunkingProgress{File: f, Ratio: ratio}
}
func (ChunkingProgress) Type() Type { return TypeChunkingProgress }
func (ChunkingProgress) event() {}

type ChunkingComplete struct {
	File engine.File
}

func NewChunkingComplete(f engine.File) ChunkingComplete { return ChunkingComplete{File: f} }
func (ChunkingComplete) Type() Type { return TypeChunkingComplete }
func (ChunkingComplete) event() {}

////////////////////////////////////////////////////////////////////////////////
// UPLOAD LIFECYCLE EVENTS

type UploadStart struct{}

func NewUploadStart() UploadStart { return UploadStart{} }
func (UploadStart) Type() Type { return TypeUploadStart }
func (UploadStart) event() {}

type Progress struct{}

func NewProgress() Progress { return Progress{} }
func (Progress) Type() Type { return TypeProgress }
func (Progress) event() {}

// Complete marks the engine finishing its queue. It does not by itself end a
// stream.
type Complete struct{}

func NewComplete() Complete { return Complete{} }
func (Complete) Type() Type { return TypeComplete }
func (Complete) event() {}

type Pause struct{}

func NewPause() Pause { return Pause{} }
func (Pause) Type() Type { return TypePause }
func (Pause) event() {}

type BeforeCancel struct {
	File engine.File
}

func NewBeforeCancel(f engine.File) BeforeCancel { return BeforeCancel{File: f} }
func (BeforeCancel) Type() Type { return TypeBeforeCancel }
func (BeforeCancel) event() {}

type Cancel struct {
	File engine.File
}

func NewCancel(f engine.File) Cancel { return Cancel{File: f} }
func (Cancel) Type() Type { return TypeCancel }
func (Cancel) event() {}

////////////////////////////////////////////////////////////////////////////////
// ERRORS

// UploadError is the shared shape of the fileError and error callbacks. Kind
// records which of the two fired. File is nil when the engine reported a
// global failure without a file.
type UploadError struct {
	Kind    Type
	File    engine.File
	Message string
}

// NewFileError takes the fileError callback arguments (file, message).
func NewFileError(f engine.File, message string) UploadError {
	return UploadError{Kind: TypeFileError, File: f, Message: message}
}

// NewError takes the error callback arguments (message, file).
func NewError(message string, f engine.File) UploadError {
	return UploadError{Kind: TypeError, File: f, Message: message}
}

func (e UploadError) Type() Type { return e.Kind }
func (UploadError) event() {}

func (e UploadError) Error() string {
	if e.File != nil {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.File.Name(), e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}
