// Package apperrors defines the error type used across the service.
// Errors form trees: a sentinel created with New is a root, and each
// call to New on an existing Error derives a child that matches the
// parent under errors.Is. HTTP status codes ride along for the API
// layer to map outcomes without inspecting messages.
package apperrors

type Error interface {
	Error() string
	ErrorAll() string
	// New derives a child error that inherits the status code and
	// matches this error under Is.
	New(msg string) Error
	MsgErr(msg string, err ...error) Error
	Msg(msg string) Error
	Prefix(prefix string) Error
	Suffix(suffix string) Error
	Err(err ...error) Error
	Unwrap() []error
	Is(target error) bool
	SetExpandError(expand bool) Error
	SetStatusCode(code int) Error
	StatusCode() int
}
