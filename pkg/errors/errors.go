package medshift_errors

import "errors"

// Common errors
var (
	ErrNotFound            = errors.New("not found")
	ErrAlreadyExists       = errors.New("already exists")
	ErrInvalidInput        = errors.New("invalid input")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrTooLarge            = errors.New("file too large")
	ErrUnsupportedFileKind = errors.New("unsupported file kind")
	ErrQuotaExceeded       = errors.New("upload quota exceeded")
	ErrOrgUnresolved       = errors.New("organization identity could not be resolved")
	ErrSendRejected        = errors.New("message send rejected")
	ErrNotUploaded         = errors.New("file not uploaded")
	ErrSubscriptionClosed  = errors.New("feed subscription closed")
)
