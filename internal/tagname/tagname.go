// Package tagname holds the normalization and validity rules for tag strings.
package tagname

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/smarttags/internal/apperr"
)

// MaxLength is the maximum number of runes in a tag.
const MaxLength = 100

// Normalize lower-cases and trims a raw tag string.
func Normalize(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// Equal compares two tags by their normalized form.
func Equal(a, b string) bool {
	return Normalize(a) == Normalize(b)
}

var noControlChars = validation.By(func(value interface{}) error {
	s, _ := value.(string)
	for _, r := range s {
		if unicode.IsControl(r) {
			return errors.New("must not contain control characters")
		}
	}
	return nil
})

// Validate checks an already normalized tag.
func Validate(tag string) error {
	err := validation.Validate(tag,
		validation.Required,
		validation.RuneLength(1, MaxLength),
		noControlChars,
	)
	if err != nil {
		return fmt.Errorf("%w %q: %s", apperr.ErrInvalidTag, tag, err.Error())
	}
	return nil
}
