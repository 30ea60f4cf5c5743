package manager

import "net/http"

// validationError signals client-side input problems (no messages, prompt
// over the engine's input limit) for 400 mapping.
type validationError struct{ msg string }

func (e validationError) Error() string   { return e.msg }
func (e validationError) StatusCode() int { return http.StatusBadRequest }

// ErrValidation constructs a validation error.
func ErrValidation(msg string) error { return validationError{msg: msg} }

// IsValidation reports whether err is a request validation failure.
func IsValidation(err error) bool {
	_, ok := err.(validationError)
	return ok
}

// tooBusyError signals admission timeout/overflow for 429 mapping.
type tooBusyError struct{}

func (e tooBusyError) Error() string   { return "too many concurrent requests" }
func (e tooBusyError) StatusCode() int { return http.StatusTooManyRequests }

// IsTooBusy reports whether err indicates backpressure (return 429).
func IsTooBusy(err error) bool {
	_, ok := err.(tooBusyError)
	return ok
}

// engineError wraps any failure raised inside the inference session or the
// generation loop. The originating error is carried, never swallowed.
type engineError struct{ cause error }

func (e engineError) Error() string   { return "engine: " + e.cause.Error() }
func (e engineError) Unwrap() error   { return e.cause }
func (e engineError) StatusCode() int { return http.StatusInternalServerError }

// ErrEngine wraps cause as an engine failure.
func ErrEngine(cause error) error {
	if cause == nil {
		return nil
	}
	return engineError{cause: cause}
}

// IsEngine reports whether err originated inside the engine.
func IsEngine(err error) bool {
	_, ok := err.(engineError)
	return ok
}

// dependencyUnavailableError signals a missing runtime (unknown engine kind)
// so the HTTP layer can return 503 instead of 500.
type dependencyUnavailableError struct{ msg string }

func (e dependencyUnavailableError) Error() string   { return e.msg }
func (e dependencyUnavailableError) StatusCode() int { return http.StatusServiceUnavailable }

// ErrDependencyUnavailable constructs a dependencyUnavailableError.
func ErrDependencyUnavailable(msg string) error { return dependencyUnavailableError{msg: msg} }

// IsDependencyUnavailable reports whether err indicates a missing runtime.
func IsDependencyUnavailable(err error) bool {
	_, ok := err.(dependencyUnavailableError)
	return ok
}
