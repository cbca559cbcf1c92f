// Package apperror defines the error taxonomy shared by the directory, request store,
// workflow engine and notification dispatcher.
package apperror

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies an application error
type Kind string

const (
	KindValidation                 Kind = "VALIDATION_ERROR"
	KindUnauthorized               Kind = "UNAUTHORIZED"
	KindUnauthenticated            Kind = "UNAUTHENTICATED"
	KindNotFound                   Kind = "NOT_FOUND"
	KindNoApproverConfigured       Kind = "NO_APPROVER_CONFIGURED"
	KindStaleState                 Kind = "STALE_STATE"
	KindTransitionFailed           Kind = "TRANSITION_FAILED"
	KindNotificationDeliveryFailed Kind = "NOTIFICATION_DELIVERY_FAILED"
)

// Sentinels for errors.Is checks; any *Error with the same kind matches.
var (
	ErrValidation                 = &Error{Kind: KindValidation, Message: "validation failed"}
	ErrUnauthorized               = &Error{Kind: KindUnauthorized, Message: "not authorized"}
	ErrUnauthenticated            = &Error{Kind: KindUnauthenticated, Message: "authentication required"}
	ErrNotFound                   = &Error{Kind: KindNotFound, Message: "not found"}
	ErrNoApproverConfigured       = &Error{Kind: KindNoApproverConfigured, Message: "no approver configured"}
	ErrStaleState                 = &Error{Kind: KindStaleState, Message: "request state changed concurrently"}
	ErrTransitionFailed           = &Error{Kind: KindTransitionFailed, Message: "transition failed"}
	ErrNotificationDeliveryFailed = &Error{Kind: KindNotificationDeliveryFailed, Message: "notification delivery failed"}
)

// FieldError describes one missing or invalid input field
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error is a classified application error
type Error struct {
	Kind    Kind
	Message string
	Fields  []FieldError
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if len(e.Fields) > 0 {
		names := make([]string, len(e.Fields))
		for i, f := range e.Fields {
			names[i] = f.Field
		}
		b.WriteString(" [")
		b.WriteString(strings.Join(names, ", "))
		b.WriteString("]")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// Validation builds a ValidationError carrying every offending field
func Validation(fields ...FieldError) *Error {
	return &Error{Kind: KindValidation, Message: "invalid request", Fields: fields}
}

// Unauthorized reports a role, department or state mismatch
func Unauthorized(format string, args ...interface{}) *Error {
	return &Error{Kind: KindUnauthorized, Message: fmt.Sprintf(format, args...)}
}

// Unauthenticated reports missing or wrong credentials
func Unauthenticated(message string) *Error {
	return &Error{Kind: KindUnauthenticated, Message: message}
}

// NotFound reports an unknown entity
func NotFound(entity string, id interface{}) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf("%s %v not found", entity, id)}
}

// NoApproverConfigured reports a routing gap for role in department
func NoApproverConfigured(role string, departmentID int64) *Error {
	return &Error{
		Kind:    KindNoApproverConfigured,
		Message: fmt.Sprintf("no active %s configured for department %d", role, departmentID),
	}
}

// StaleState reports an optimistic concurrency conflict
func StaleState(requestID int64) *Error {
	return &Error{
		Kind:    KindStaleState,
		Message: fmt.Sprintf("request %d was modified by another transition", requestID),
	}
}

// TransitionFailed wraps a persistence failure during a transition
func TransitionFailed(requestID int64, err error) *Error {
	return &Error{
		Kind:    KindTransitionFailed,
		Message: fmt.Sprintf("transition of request %d was rolled back", requestID),
		Err:     err,
	}
}

// DeliveryFailed wraps a channel send failure
func DeliveryFailed(channel string, err error) *Error {
	return &Error{
		Kind:    KindNotificationDeliveryFailed,
		Message: fmt.Sprintf("delivery over %s failed", channel),
		Err:     err,
	}
}

// KindOf returns the kind of the first *Error in err's chain, or "" if none
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return ""
}

// FieldsOf returns the field list of a ValidationError in err's chain
func FieldsOf(err error) []FieldError {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Fields
	}
	return nil
}
