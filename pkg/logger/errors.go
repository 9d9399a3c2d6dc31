package logger

import (
	"fmt"
)

type ErrType string

const (
	ErrTypeInvalidConfig  ErrType = "INVALID_CONFIG"
	ErrTypeNotInitialized ErrType = "NOT_INITIALIZED"
	ErrTypeIO             ErrType = "IO_ERROR"
	ErrTypeNetworkError   ErrType = "NETWORK_ERROR"
	ErrTypeServerError    ErrType = "SERVER_ERROR"
	ErrTypeParse          ErrType = "PARSE_ERROR"
)

type Error struct {
	Type    ErrType `json:"type"`
	Message string  `json:"message"`
	Err     error   `json:"error,omitempty"`
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s - %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func ErrInvalidConfig(message string) *Error {
	return &Error{
		Type:    ErrTypeInvalidConfig,
		Message: message,
	}
}

func ErrNotInitialized() *Error {
	return &Error{
		Type:    ErrTypeNotInitialized,
		Message: "logger service is not initialized",
	}
}

func ErrIO(message string, err error) *Error {
	return &Error{
		Type:    ErrTypeIO,
		Message: message,
		Err:     err,
	}
}

func ErrNetworkError(message string, err error) *Error {
	return &Error{
		Type:    ErrTypeNetworkError,
		Message: message,
		Err:     err,
	}
}

func ErrServerError(message string, err error) *Error {
	return &Error{
		Type:    ErrTypeServerError,
		Message: message,
		Err:     err,
	}
}

func ErrParse(message string, err error) *Error {
	return &Error{
		Type:    ErrTypeParse,
		Message: message,
		Err:     err,
	}
}
