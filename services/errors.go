package services

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a rejected or failed game operation.
type ErrorKind string

const (
	KindValidation  ErrorKind = "validation"
	KindNotFound    ErrorKind = "not_found"
	KindPersistence ErrorKind = "persistence"
)

// GameError is returned by every engine operation that is rejected.
// The engine state is unchanged whenever a GameError is returned.
type GameError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *GameError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *GameError) Unwrap() error { return e.Err }

func validationf(format string, args ...any) error {
	return &GameError{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func notFoundf(format string, args ...any) error {
	return &GameError{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func persistenceFailure(err error, format string, args ...any) error {
	return &GameError{Kind: KindPersistence, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf reports the ErrorKind of err, or "" if err is not a GameError.
func KindOf(err error) ErrorKind {
	var ge *GameError
	if errors.As(err, &ge) {
		return ge.Kind
	}
	return ""
}

func IsValidation(err error) bool { return KindOf(err) == KindValidation }

func IsNotFound(err error) bool { return KindOf(err) == KindNotFound }

// PublicMessage is the text safe to show the caller.
func PublicMessage(err error) string {
	var ge *GameError
	if errors.As(err, &ge) {
		return ge.Message
	}
	return "internal error"
}
