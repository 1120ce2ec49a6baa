package errors

import (
	stderrors "errors"
	"fmt"
)

type Kind string

const (
	DeviceNotInitialized      Kind = "device_not_initialized"
	DeviceConnectionFailure   Kind = "device_connection_failure"
	ImageSaveFailure          Kind = "image_save_failure"
	PrintBackendUnavailable   Kind = "print_backend_unavailable"
	PrintJobQueryFailure      Kind = "print_job_query_failure"
	PrintJobFailed            Kind = "print_job_failed"
	CollageCompositionFailure Kind = "collage_composition_failure"
	QuotaExceeded             Kind = "quota_exceeded"
	Unauthorized              Kind = "unauthorized"
	InvalidConfig             Kind = "invalid_config"
	IOFailure                 Kind = "io_failure"
	Internal                  Kind = "internal"
)

type AppError struct {
	Kind Kind
	Op   string
	Path string
	Err  error
}

func (e *AppError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func Wrap(kind Kind, op, path string, err error) error {
	if err == nil {
		return nil
	}
	return &AppError{
		Kind: kind,
		Op:   op,
		Path: path,
		Err:  err,
	}
}

// New builds an AppError from a plain message.
func New(kind Kind, op, msg string) error {
	return &AppError{Kind: kind, Op: op, Err: stderrors.New(msg)}
}

// KindOf returns the kind of the outermost AppError in err's chain,
// or Internal when there is none.
func KindOf(err error) Kind {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Kind
	}
	return Internal
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Reason is the short machine-readable reason sent to clients with a
// failure event. Empty means the client gets no reason.
func Reason(err error) string {
	switch KindOf(err) {
	case QuotaExceeded:
		return "print_limit_exceeded"
	default:
		return ""
	}
}

func UserMessage(err error) string {
	var appErr *AppError
	if !stderrors.As(err, &appErr) {
		return err.Error()
	}
	switch appErr.Kind {
	case InvalidConfig:
		return fmt.Sprintf("Invalid configuration: %v", appErr.Err)
	case DeviceNotInitialized:
		return "Camera not initialized"
	case DeviceConnectionFailure:
		return fmt.Sprintf("Camera connection failed: %v", appErr.Err)
	case ImageSaveFailure:
		return fmt.Sprintf("Saving photo failed: %v", appErr.Err)
	case PrintBackendUnavailable:
		return fmt.Sprintf("Printer unavailable: %v", appErr.Err)
	case PrintJobQueryFailure, PrintJobFailed:
		return fmt.Sprintf("Print job failed: %v", appErr.Err)
	case CollageCompositionFailure:
		return fmt.Sprintf("Collage failed: %v", appErr.Err)
	case QuotaExceeded:
		return "Print limit exceeded"
	case IOFailure:
		return fmt.Sprintf("I/O error: %s", appErr.Path)
	default:
		return fmt.Sprintf("Unexpected error: %v", appErr.Err)
	}
}
