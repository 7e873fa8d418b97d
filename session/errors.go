// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package session

// ErrorKind classifies a session [Error].
type ErrorKind int

const (
	KindIO ErrorKind = iota
	KindUnsupportedFormat
	KindPathExists
	KindNotFound
	KindSchema
)

func (k ErrorKind) String() string {
	switch k {
	case KindUnsupportedFormat:
		return "unsupported format"
	case KindPathExists:
		return "path exists"
	case KindNotFound:
		return "not found"
	case KindSchema:
		return "schema"
	default:
		return "io"
	}
}

// Sentinels for use with errors.Is. They match any *Error of the same kind.
var (
	ErrUnsupportedFormat = &Error{Kind: KindUnsupportedFormat}
	ErrPathExists        = &Error{Kind: KindPathExists}
	ErrNotFound          = &Error{Kind: KindNotFound}
	ErrSchema            = &Error{Kind: KindSchema}
)

// Error is returned by session operations.
type Error struct {
	Kind ErrorKind
	Op   string // "write", "read", "read_image"
	Path string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Path != "" {
		msg = e.Path + ": " + msg
	}
	if e.Op != "" {
		msg = e.Op + " " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error with the same Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

func newError(kind ErrorKind, op, path string, err error) *Error {
	return &Error{Kind: kind, Op: op, Path: path, Err: err}
}
