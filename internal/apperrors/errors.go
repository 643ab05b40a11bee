// Package apperrors defines the failure taxonomy shared by ingestion and queries.
package apperrors

import (
	"errors"
	"fmt"
)

// Kind distinguishes failures for callers
type Kind string

const (
	KindSchema       Kind = "schema"
	KindParse        Kind = "parse"
	KindEmptyDataset Kind = "empty_dataset"
	KindNoData       Kind = "no_data"
	KindValidation   Kind = "validation"
	KindComputation  Kind = "computation"
)

// Sentinels for errors.Is
var (
	ErrSchema       = &Error{Kind: KindSchema}
	ErrParse        = &Error{Kind: KindParse}
	ErrEmptyDataset = &Error{Kind: KindEmptyDataset}
	ErrNoData       = &Error{Kind: KindNoData}
	ErrValidation   = &Error{Kind: KindValidation}
	ErrComputation  = &Error{Kind: KindComputation}
)

// Error is a classified failure. Row is 1-based over data rows and only set
// for parse failures.
type Error struct {
	Kind    Kind
	Message string
	Row     int
	Column  string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Row > 0 {
		msg = fmt.Sprintf("row %d, column %q: %s", e.Row, e.Column, msg)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
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
	return t.Kind == e.Kind
}

// KindOf returns the kind of the first *Error in err's chain
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// Schema reports a missing or renamed required column
func Schema(format string, args ...any) *Error {
	return &Error{Kind: KindSchema, Message: fmt.Sprintf(format, args...)}
}

// Parse reports a coercion failure at a data row and column
func Parse(row int, column string, err error) *Error {
	return &Error{Kind: KindParse, Message: "cannot parse value", Row: row, Column: column, Err: err}
}

// Parsef reports a parse failure not tied to a cell
func Parsef(format string, args ...any) *Error {
	return &Error{Kind: KindParse, Message: fmt.Sprintf(format, args...)}
}

// EmptyDataset reports an export with no data rows
func EmptyDataset() *Error {
	return &Error{Kind: KindEmptyDataset, Message: "no data rows found after header"}
}

// NoData reports a query issued before any successful ingestion
func NoData() *Error {
	return &Error{Kind: KindNoData, Message: "no data uploaded yet"}
}

// Validation reports a bad caller parameter
func Validation(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// Computation reports a degenerate numeric case
func Computation(format string, args ...any) *Error {
	return &Error{Kind: KindComputation, Message: fmt.Sprintf(format, args...)}
}
