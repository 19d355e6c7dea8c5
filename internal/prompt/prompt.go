// Package prompt provides the choosers the resolver consults for unknown
// tags: an interactive numbered menu and a fixed non-interactive policy.
package prompt

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/starford/smarttags/internal/apperr"
	"github.com/starford/smarttags/internal/resolver"
	"github.com/starford/smarttags/internal/similarity"
)

// ErrNoAnswer is returned when input ends before a valid choice was made.
var ErrNoAnswer = errors.New("prompt: no answer")

// Terminal asks the user on a line-oriented terminal.
type Terminal struct {
	out    io.Writer
	reader *bufio.Reader
}

// NewTerminal creates a Terminal that reads answers from in and writes the
// menu to out.
func NewTerminal(in io.Reader, out io.Writer) *Terminal {
	return &Terminal{out: out, reader: bufio.NewReader(in)}
}

type option struct {
	label    string
	decision resolver.Decision
}

func menu(input string, suggestions []similarity.Suggestion) []option {
	opts := make([]option, 0, len(suggestions)+2)
	for _, s := range suggestions {
		opts = append(opts, option{
			label:    fmt.Sprintf("Use existing '%s' (typo correction, distance %d)", s.Tag, s.Distance),
			decision: resolver.Decision{Intent: resolver.UseExisting, Candidate: s.Tag},
		})
	}
	best := suggestions[0].Tag
	opts = append(opts,
		option{
			label:    fmt.Sprintf("Register '%s' as alias for '%s'", input, best),
			decision: resolver.Decision{Intent: resolver.RegisterAlias, Candidate: best},
		},
		option{
			label:    fmt.Sprintf("Create new tag '%s'", input),
			decision: resolver.Decision{Intent: resolver.CreateNew},
		},
	)
	return opts
}

// Choose renders the menu and blocks until a valid answer is read. An empty
// answer picks option 1, the closest suggestion.
func (t *Terminal) Choose(ctx context.Context, input string, suggestions []similarity.Suggestion) (resolver.Decision, error) {
	if len(suggestions) == 0 {
		return resolver.Decision{Intent: resolver.CreateNew}, nil
	}
	opts := menu(input, suggestions)

	fmt.Fprintf(t.out, "\nTag '%s' is not known. Similar tags exist.\n", input)
	fmt.Fprintln(t.out, "What would you like to do?")
	for i, o := range opts {
		fmt.Fprintf(t.out, "  %d. %s\n", i+1, o.label)
	}

	for {
		if err := ctx.Err(); err != nil {
			return resolver.Decision{}, err
		}
		fmt.Fprintf(t.out, "Choose [1-%d] (default 1): ", len(opts))

		line, err := t.reader.ReadString('\n')
		answer := strings.TrimSpace(line)
		if err != nil && (!errors.Is(err, io.EOF) || answer == "") {
			if errors.Is(err, io.EOF) {
				return resolver.Decision{}, fmt.Errorf("%w for tag %q", ErrNoAnswer, input)
			}
			return resolver.Decision{}, fmt.Errorf("prompt: read answer: %w", err)
		}

		if answer == "" {
			return opts[0].decision, nil
		}
		n, convErr := strconv.Atoi(answer)
		if convErr == nil && n >= 1 && n <= len(opts) {
			return opts[n-1].decision, nil
		}
		fmt.Fprintln(t.out, "Invalid choice, please try again.")
		if err != nil {
			return resolver.Decision{}, fmt.Errorf("%w for tag %q", ErrNoAnswer, input)
		}
	}
}

// Fixed answers every prompt with the same intent, targeting the closest
// suggestion.
type Fixed struct {
	Intent resolver.Intent
}

// Choose implements resolver.Chooser.
func (f Fixed) Choose(_ context.Context, _ string, suggestions []similarity.Suggestion) (resolver.Decision, error) {
	if f.Intent == resolver.CreateNew || len(suggestions) == 0 {
		return resolver.Decision{Intent: resolver.CreateNew}, nil
	}
	return resolver.Decision{Intent: f.Intent, Candidate: suggestions[0].Tag}, nil
}

// ParseIntent maps a policy name to an intent.
func ParseIntent(s string) (resolver.Intent, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "use":
		return resolver.UseExisting, nil
	case "alias":
		return resolver.RegisterAlias, nil
	case "new":
		return resolver.CreateNew, nil
	default:
		return 0, fmt.Errorf("prompt: unknown choice %q (want use, alias or new): %w", s, apperr.ErrInvalidInput)
	}
}

var (
	_ resolver.Chooser = (*Terminal)(nil)
	_ resolver.Chooser = Fixed{}
)
