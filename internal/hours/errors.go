package hours

import (
	"context"
	"errors"
)

// Sentinel errors returned across the pipeline.
var (
	ErrRendererDisabled  = errors.New("renderer disabled")
	ErrRenderFailed      = errors.New("render failed")
	ErrRenderTimeout     = errors.New("render timed out")
	ErrIncompleteMetrics = errors.New("metrics incomplete")
	ErrJoinFailed        = errors.New("join channel failed")
	ErrNotifyFailed      = errors.New("notification failed")
	ErrStoreWrite        = errors.New("snapshot store write failed")
)

// Error classes used as log fields and metric labels.
const (
	ClassRender  = "render"
	ClassExtract = "extract"
	ClassNotify  = "notify"
	ClassPersist = "persist"
	ClassUnknown = "unknown"
)

// Classify maps an error to one of the pipeline error classes.
func Classify(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrRenderTimeout),
		errors.Is(err, ErrRenderFailed),
		errors.Is(err, ErrRendererDisabled),
		errors.Is(err, context.DeadlineExceeded):
		return ClassRender
	case errors.Is(err, ErrIncompleteMetrics):
		return ClassExtract
	case errors.Is(err, ErrNotifyFailed), errors.Is(err, ErrJoinFailed):
		return ClassNotify
	case errors.Is(err, ErrStoreWrite):
		return ClassPersist
	default:
		return ClassUnknown
	}
}
