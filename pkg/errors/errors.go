package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode represents a unique error code
type ErrorCode int

// AppError represents an application error
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Common error codes
const (
	ErrNotFound ErrorCode = iota + 1000
	ErrBadRequest
	ErrUnauthorized
	ErrForbidden
	ErrInternal
	ErrValidation
	ErrDoctorUnavailable
	ErrSlotTaken
	ErrSlotInPast
	ErrInvalidTransition
	ErrDataUnavailable
	ErrNotificationFailed
)

// StatusCode maps the error code to an HTTP status, consumed by the
// error-handling middleware.
func (e *AppError) StatusCode() int {
	switch e.Code {
	case ErrNotFound:
		return http.StatusNotFound
	case ErrBadRequest, ErrValidation, ErrSlotInPast:
		return http.StatusBadRequest
	case ErrUnauthorized:
		return http.StatusUnauthorized
	case ErrForbidden:
		return http.StatusForbidden
	case ErrDoctorUnavailable, ErrSlotTaken, ErrInvalidTransition:
		return http.StatusConflict
	case ErrDataUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Error constructors
func NewNotFound(resource string, err error) *AppError {
	return &AppError{
		Code:    ErrNotFound,
		Message: fmt.Sprintf("%s not found", resource),
		Err:     err,
	}
}

func NewBadRequest(message string, err error) *AppError {
	return &AppError{
		Code:    ErrBadRequest,
		Message: message,
		Err:     err,
	}
}

func NewValidation(message string, err error) *AppError {
	return &AppError{
		Code:    ErrValidation,
		Message: message,
		Err:     err,
	}
}

func NewInternal(err error) *AppError {
	return &AppError{
		Code:    ErrInternal,
		Message: "internal server error",
		Err:     err,
	}
}

func Unauthorized(err error) *AppError {
	return &AppError{
		Code:    ErrUnauthorized,
		Message: "unauthorized",
		Err:     err,
	}
}

// NewDoctorUnavailable signals a leave-blocked slot. The message carries the
// leave reason so callers can surface why the doctor is away.
func NewDoctorUnavailable(reason string) *AppError {
	return &AppError{
		Code:    ErrDoctorUnavailable,
		Message: fmt.Sprintf("doctor is on leave: %s", reason),
	}
}

func NewSlotTaken(slot string) *AppError {
	return &AppError{
		Code:    ErrSlotTaken,
		Message: fmt.Sprintf("slot %s is already booked", slot),
	}
}

func NewSlotInPast(slot string) *AppError {
	return &AppError{
		Code:    ErrSlotInPast,
		Message: fmt.Sprintf("slot %s has already passed", slot),
	}
}

func NewInvalidTransition(from, event string) *AppError {
	return &AppError{
		Code:    ErrInvalidTransition,
		Message: fmt.Sprintf("cannot %s an appointment in status %s", event, from),
	}
}

func NewDataUnavailable(err error) *AppError {
	return &AppError{
		Code:    ErrDataUnavailable,
		Message: "data temporarily unavailable",
		Err:     err,
	}
}

func NewNotificationFailed(err error) *AppError {
	return &AppError{
		Code:    ErrNotificationFailed,
		Message: "notification dispatch failed",
		Err:     err,
	}
}

// Code extracts the ErrorCode from err, or ErrInternal if err is not an AppError.
func Code(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrInternal
}

// Is reports whether err carries the given code.
func Is(err error, code ErrorCode) bool {
	return Code(err) == code
}
