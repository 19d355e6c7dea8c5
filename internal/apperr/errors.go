// Package apperr defines the error kinds shared across smart-tags and maps
// them to coded errors and process exit codes at the CLI boundary.
package apperr

import (
	"errors"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrAlreadyExists = errors.New("already exists")
	ErrCorruptStore  = errors.New("corrupt tag store")
	ErrIO            = errors.New("i/o failure")
	ErrHeaderParse   = errors.New("front matter parse error")
	ErrInvalidTag    = errors.New("invalid tag")
	ErrInvalidInput  = errors.New("invalid input")
)

// Exit codes returned by the CLI.
const (
	ExitGeneric      = 1
	ExitInvalidInput = 2
	ExitConflict     = 3
	ExitCorruptStore = 4
	ExitHeaderParse  = 5
	ExitIO           = 6
)

// Coded converts err into an errbuilder error carrying a status code that
// matches its kind. Errors that already carry a code are returned as is.
func Coded(err error) error {
	if err == nil {
		return nil
	}
	var builder *errbuilder.ErrBuilder
	if errors.As(err, &builder) {
		return err
	}
	return errbuilder.New().
		WithCode(codeFor(err)).
		WithMsg(err.Error()).
		WithCause(err)
}

func codeFor(err error) errbuilder.ErrCode {
	switch {
	case errors.Is(err, ErrInvalidTag), errors.Is(err, ErrInvalidInput):
		return errbuilder.CodeInvalidArgument
	case errors.Is(err, ErrConflict), errors.Is(err, ErrAlreadyExists):
		return errbuilder.CodeAlreadyExists
	case errors.Is(err, ErrNotFound):
		return errbuilder.CodeNotFound
	case errors.Is(err, ErrHeaderParse), errors.Is(err, ErrCorruptStore):
		return errbuilder.CodeFailedPrecondition
	case errors.Is(err, ErrIO):
		return errbuilder.CodePermissionDenied
	default:
		return errbuilder.CodeInternal
	}
}

// ExitCode maps an error returned from a command to the process exit code.
// File-level kinds are checked first since several of them share a code.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, ErrCorruptStore):
		return ExitCorruptStore
	case errors.Is(err, ErrHeaderParse):
		return ExitHeaderParse
	case errors.Is(err, ErrIO):
		return ExitIO
	}

	switch errbuilder.CodeOf(Coded(err)) {
	case errbuilder.CodeInvalidArgument:
		return ExitInvalidInput
	case errbuilder.CodeAlreadyExists, errbuilder.CodeNotFound:
		return ExitConflict
	default:
		return ExitGeneric
	}
}

// Message returns the human-readable message of err, preferring the
// message of a coded error over its full chain.
func Message(err error) string {
	var builder *errbuilder.ErrBuilder
	if errors.As(err, &builder) && strings.TrimSpace(builder.Msg) != "" {
		return builder.Msg
	}
	return err.Error()
}
