package models

import (
	"fmt"
	"net/http"
)

// Result is returned by every client call. Exactly one of Success and Error
// is non-nil.
type Result[T any] struct {
	Success *Data[T] `json:"success"`
	Error   *Error   `json:"error"`
}

type Data[T any] struct {
	Data    T      `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

// Error describes a failed call. StatusCode is the HTTP status of the final
// response, or StatusTransportFailure when no response was received.
type Error struct {
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
	Details    any    `json:"details,omitempty"`
}

// StatusTransportFailure marks errors where the request never produced an
// HTTP response (network failure, invalid URL, unresolved path parameter).
const StatusTransportFailure = 0

func (e *Error) Error() string {
	if e.StatusCode == StatusTransportFailure {
		return fmt.Sprintf("request failed: %s", e.Message)
	}
	return fmt.Sprintf("http status %d: %s", e.StatusCode, e.Message)
}

func Succeeded[T any](data T, message string) Result[T] {
	return Result[T]{Success: &Data[T]{Data: data, Message: message}}
}

func Failed[T any](statusCode int, message string, details any) Result[T] {
	return Result[T]{Error: &Error{StatusCode: statusCode, Message: message, Details: details}}
}

func (r Result[T]) IsSuccess() bool {
	return r.Success != nil && r.Error == nil
}

// HTTPStatus maps the result onto a status code suitable for relaying to a
// downstream HTTP caller.
func (r Result[T]) HTTPStatus() int {
	if r.Error == nil {
		return http.StatusOK
	}
	if r.Error.StatusCode == StatusTransportFailure {
		return http.StatusBadGateway
	}
	return r.Error.StatusCode
}
