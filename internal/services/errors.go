package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInput         = errors.New("input error")
	ErrProbe         = errors.New("probe error")
	ErrSpawn         = errors.New("spawn error")
	ErrEncode        = errors.New("encode error")
	ErrPackage       = errors.New("package error")
	ErrManifestWrite = errors.New("manifest write error")
	ErrConfiguration = errors.New("configuration error")
)

// Wrap builds an error message that includes stage context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	if marker == nil {
		marker = ErrEncode
	}
	return &stageError{
		marker: marker,
		stage:  strings.TrimSpace(stage),
		detail: buildDetail(operation, message),
		cause:  err,
	}
}

// Tag attaches a pipeline stage to an error produced by Wrap without
// disturbing its marker or cause chain. Errors from other sources are wrapped
// under ErrEncode. Already-tagged errors are returned unchanged.
func Tag(err error, stage string) error {
	if err == nil {
		return nil
	}
	var se *stageError
	if errors.As(err, &se) {
		if se.stage != "" {
			return err
		}
		return &stageError{marker: se.marker, stage: strings.TrimSpace(stage), detail: se.detail, cause: se.cause}
	}
	return &stageError{marker: ErrEncode, stage: strings.TrimSpace(stage), cause: err}
}

// StageOf returns the pipeline stage tag carried by err, or "" when err was
// not produced by Wrap.
func StageOf(err error) string {
	var se *stageError
	if errors.As(err, &se) {
		return se.stage
	}
	return ""
}

type stageError struct {
	marker error
	stage  string
	detail string
	cause  error
}

func (e *stageError) Error() string {
	parts := make([]string, 0, 4)
	parts = append(parts, e.marker.Error())
	if e.stage != "" {
		parts = append(parts, e.stage)
	}
	if e.detail != "" {
		parts = append(parts, e.detail)
	}
	if e.cause != nil {
		parts = append(parts, e.cause.Error())
	}
	return strings.Join(parts, ": ")
}

func (e *stageError) Unwrap() []error {
	if e.cause != nil {
		return []error{e.marker, e.cause}
	}
	return []error{e.marker}
}

func buildDetail(operation, message string) string {
	parts := make([]string, 0, 2)
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}

// ExitDetail renders a subprocess termination for user-facing messages,
// distinguishing signal deaths from plain non-zero exits.
func ExitDetail(exitCode int, signal string) string {
	if strings.TrimSpace(signal) != "" {
		return fmt.Sprintf("terminated by signal %s", signal)
	}
	return fmt.Sprintf("exited with code %d", exitCode)
}
