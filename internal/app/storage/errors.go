package storage

import (
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
)

// ErrorKind classifies store failures.
type ErrorKind string

const (
	KindNetwork    ErrorKind = "network"
	KindQuery      ErrorKind = "query"
	KindConstraint ErrorKind = "constraint"
	KindNotFound   ErrorKind = "not_found"
)

// Error is the kind+message pair every backend returns.
type Error struct {
	Kind    ErrorKind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s (%s): %s", e.Kind, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// ErrNotFound is matched by errors.Is for KindNotFound errors.
var ErrNotFound = errors.New("record not found")

// Is lets errors.Is(err, ErrNotFound) succeed for not-found store errors.
func (e *Error) Is(target error) bool {
	return target == ErrNotFound && e.Kind == KindNotFound
}

// NotFound builds a not-found error for table/id.
func NotFound(table string, id int64) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf("%s %d not found", table, id)}
}

// KindForCode maps a SQLSTATE code to an error kind.
func KindForCode(code string) ErrorKind {
	switch {
	case code == "":
		return KindQuery
	case pgerrcode.IsIntegrityConstraintViolation(code):
		return KindConstraint
	case pgerrcode.IsConnectionException(code):
		return KindNetwork
	default:
		return KindQuery
	}
}

// IsUniqueViolation reports whether err is a unique constraint failure.
func IsUniqueViolation(err error) bool {
	var storeErr *Error
	if !errors.As(err, &storeErr) {
		return false
	}
	return storeErr.Kind == KindConstraint && storeErr.Code == pgerrcode.UniqueViolation
}

// AsError returns the store error in err's chain.
func AsError(err error) (*Error, bool) {
	var storeErr *Error
	if errors.As(err, &storeErr) {
		return storeErr, true
	}
	return nil, false
}
