package media

import "net/http"

// Typed failures for media resolution. All are terminal for the request;
// the HTTP layer maps them 1:1 to response statuses.

type validationError struct{ msg string }

func (e validationError) Error() string   { return e.msg }
func (e validationError) StatusCode() int { return http.StatusBadRequest }

// ErrValidation constructs a client-error for unsupported or malformed media.
func ErrValidation(msg string) error { return validationError{msg: msg} }

// IsValidation reports whether err is a media validation failure.
func IsValidation(err error) bool {
	_, ok := err.(validationError)
	return ok
}

type notFoundError struct{ path string }

func (e notFoundError) Error() string   { return "local file not found: " + e.path }
func (e notFoundError) StatusCode() int { return http.StatusNotFound }

// IsNotFound reports whether err indicates a missing local file.
func IsNotFound(err error) bool {
	_, ok := err.(notFoundError)
	return ok
}

type permissionError struct{ path string }

func (e permissionError) Error() string   { return "no read permission: " + e.path }
func (e permissionError) StatusCode() int { return http.StatusForbidden }

// IsPermission reports whether err indicates an unreadable local file.
func IsPermission(err error) bool {
	_, ok := err.(permissionError)
	return ok
}

type timeoutError struct{ url string }

func (e timeoutError) Error() string   { return "media download timed out: " + e.url }
func (e timeoutError) StatusCode() int { return http.StatusRequestTimeout }

// IsTimeout reports whether err indicates a fetch timeout.
func IsTimeout(err error) bool {
	_, ok := err.(timeoutError)
	return ok
}
