package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/stretchr/testify/assert"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{name: "nil", err: nil, expected: 0},
		{name: "corrupt store", err: fmt.Errorf("tagstore: load: %w", ErrCorruptStore), expected: ExitCorruptStore},
		{name: "header parse", err: fmt.Errorf("frontmatter: %w", ErrHeaderParse), expected: ExitHeaderParse},
		{name: "io", err: fmt.Errorf("write: %w", ErrIO), expected: ExitIO},
		{name: "invalid tag", err: fmt.Errorf("%w: empty tag", ErrInvalidTag), expected: ExitInvalidInput},
		{name: "invalid input", err: fmt.Errorf("choice: %w", ErrInvalidInput), expected: ExitInvalidInput},
		{name: "conflict", err: fmt.Errorf("%w: rs", ErrConflict), expected: ExitConflict},
		{
			name: "coded invalid argument",
			err: errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg("at least one tag is required"),
			expected: ExitInvalidInput,
		},
		{name: "unknown", err: errors.New("boom"), expected: ExitGeneric},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ExitCode(tt.err))
		})
	}
}

func TestCoded_KeepsExistingCode(t *testing.T) {
	orig := errbuilder.New().
		WithCode(errbuilder.CodeNotFound).
		WithMsg("missing")
	assert.Equal(t, errbuilder.CodeNotFound, errbuilder.CodeOf(Coded(orig)))
}

func TestCoded_MapsKinds(t *testing.T) {
	assert.Equal(t, errbuilder.CodeAlreadyExists, errbuilder.CodeOf(Coded(fmt.Errorf("x: %w", ErrConflict))))
	assert.Equal(t, errbuilder.CodeNotFound, errbuilder.CodeOf(Coded(fmt.Errorf("x: %w", ErrNotFound))))
	assert.Equal(t, errbuilder.CodeInternal, errbuilder.CodeOf(Coded(errors.New("boom"))))
	assert.Nil(t, Coded(nil))
}

func TestMessage(t *testing.T) {
	coded := Coded(fmt.Errorf("tagstore: %w", ErrConflict))
	assert.Equal(t, "tagstore: conflict", Message(coded))
	assert.Equal(t, "plain", Message(errors.New("plain")))
}
