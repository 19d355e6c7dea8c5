package tagname

import (
	"errors"
	"strings"
	"testing"

	"github.com/starford/smarttags/internal/apperr"
)

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"  Rust ":   "rust",
		"PYTHON":    "python",
		"go":        "go",
		"\tweb-dev": "web-dev",
		"   ":       "",
	}
	for in, want := range cases {
		if got := Normalize(in); got != want {
			t.Errorf("Normalize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestEqual(t *testing.T) {
	if !Equal("Python", " python ") {
		t.Error("expected case/space-insensitive equality")
	}
	if Equal("py", "python") {
		t.Error("different tags must not be equal")
	}
}

func TestValidate(t *testing.T) {
	valid := []string{"rust", "web-dev", "c++", "日本語"}
	for _, tag := range valid {
		if err := Validate(tag); err != nil {
			t.Errorf("Validate(%q) = %v, want nil", tag, err)
		}
	}

	invalid := []string{"", "a\nb", "tab\there", strings.Repeat("x", MaxLength+1)}
	for _, tag := range invalid {
		err := Validate(tag)
		if !errors.Is(err, apperr.ErrInvalidTag) {
			t.Errorf("Validate(%q) = %v, want ErrInvalidTag", tag, err)
		}
	}
}
