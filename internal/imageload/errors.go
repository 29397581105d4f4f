package imageload

import (
	"context"
	"errors"
	"fmt"
)

// Pipeline failures. Every one is terminal for the invocation; callers match
// them with errors.Is.
var (
	ErrNoFileChosen       = errors.New("file not chosen")
	ErrWrongFileCount     = errors.New("wrong amount of files")
	ErrNotAnImage         = errors.New("file is not an image")
	ErrFileTooLarge       = errors.New("file is bigger than allowed")
	ErrRead               = errors.New("unable to read file")
	ErrDecode             = errors.New("unable to decode image")
	ErrSurfaceUnavailable = errors.New("unable to create drawing surface")
	ErrCancelled          = errors.New("image loading cancelled")
)

// Stage names a step of the pipeline state machine.
type Stage string

const (
	StageIdle        Stage = "idle"
	StageChoosing    Stage = "choosing"
	StageValidating  Stage = "validating"
	StageReading     Stage = "reading"
	StageDecoding    Stage = "decoding"
	StageCompressing Stage = "compressing"
	StageCropping    Stage = "cropping"
	StageResolved    Stage = "resolved"
	StageFailed      Stage = "failed"
)

// StageError records which stage of the pipeline failed.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Kind strings are stable and safe to persist or return to clients.
const (
	KindNone               = ""
	KindNoFileChosen       = "no_file_chosen"
	KindWrongFileCount     = "wrong_file_count"
	KindNotAnImage         = "not_an_image"
	KindFileTooLarge       = "file_too_large"
	KindReadError          = "read_error"
	KindDecodeError        = "decode_error"
	KindSurfaceUnavailable = "surface_unavailable"
	KindCancelled          = "cancelled"
	KindUnknown            = "unknown"
)

var kinds = []struct {
	err  error
	kind string
}{
	{ErrNoFileChosen, KindNoFileChosen},
	{ErrWrongFileCount, KindWrongFileCount},
	{ErrNotAnImage, KindNotAnImage},
	{ErrFileTooLarge, KindFileTooLarge},
	{ErrRead, KindReadError},
	{ErrDecode, KindDecodeError},
	{ErrSurfaceUnavailable, KindSurfaceUnavailable},
	{ErrCancelled, KindCancelled},
	{context.Canceled, KindCancelled},
	{context.DeadlineExceeded, KindCancelled},
}

// KindOf classifies err into one of the Kind constants.
func KindOf(err error) string {
	if err == nil {
		return KindNone
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindUnknown
}

// IsValidation reports whether err was produced by the file validator.
func IsValidation(err error) bool {
	switch KindOf(err) {
	case KindNoFileChosen, KindWrongFileCount, KindNotAnImage, KindFileTooLarge:
		return true
	}
	return false
}

func failed(stage Stage, err error) error {
	return &StageError{Stage: stage, Err: err}
}
