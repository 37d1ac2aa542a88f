package services

import (
	"errors"
	"sort"
	"strings"

	"github.com/mdobak/go-xerrors"
	"gorm.io/gorm"
)

var (
	ErrNotFound           = xerrors.Message("record not found")
	ErrNotAuthor          = xerrors.Message("only the author can edit this post")
	ErrSelfFollow         = xerrors.Message("users can't follow themselves")
	ErrInvalidCredentials = xerrors.Message("invalid username or password")
	ErrUsernameTaken      = xerrors.Message("username already taken")
	ErrInvalidImage       = xerrors.Message(MsgInvalidImage)
)

// ValidationError carries field-level messages for re-rendering a form.
type ValidationError struct {
	Fields map[string]string
	// Err is an optional sentinel describing the cause.
	Err error
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// FieldErrors returns the field messages when err is a ValidationError.
func FieldErrors(err error) (map[string]string, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Fields, true
	}
	return nil, false
}

// dbError translates gorm errors at the service boundary.
func dbError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return xerrors.New(ErrNotFound)
	}
	return xerrors.New(err)
}
