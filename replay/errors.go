package replay

import (
	"errors"
	"fmt"
)

// Class is the failure category of a replay resolution.
type Class int

const (
	// ClassUnknown is any failure that was not classified by a backend.
	ClassUnknown Class = iota
	// ClassNotFound means the remote store has no record for the code.
	ClassNotFound
	// ClassNetwork covers transport failures and unexpected remote statuses.
	ClassNetwork
	// ClassInvalidData means bytes were received but could not be decoded or lack required fields.
	ClassInvalidData
)

// String returns a human-readable name for the class.
func (c Class) String() string {
	switch c {
	case ClassNotFound:
		return "not_found"
	case ClassNetwork:
		return "network_error"
	case ClassInvalidData:
		return "invalid_data"
	default:
		return "unknown"
	}
}

// ErrCacheMiss is returned by Storage implementations when no entry exists for a key.
var ErrCacheMiss = errors.New("replay cache miss")

// Error is a classified resolution failure.
type Error struct {
	Class Class
	Code  Code
	Err   error
}

func (e *Error) Error() string {
	msg := "replay"
	if e.Code != "" {
		msg += " " + string(e.Code)
	}
	msg += ": " + e.Class.String()
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func classify(class Class, code Code, err error) *Error {
	return &Error{Class: class, Code: code, Err: err}
}

// ClassOf returns the class carried by err, or ClassUnknown when err is not a *Error.
func ClassOf(err error) Class {
	var re *Error
	if errors.As(err, &re) {
		return re.Class
	}
	return ClassUnknown
}
