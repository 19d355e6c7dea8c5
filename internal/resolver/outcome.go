package resolver

import (
	"fmt"

	"github.com/starford/smarttags/internal/similarity"
)

// Kind identifies how an input tag was resolved.
type Kind int

const (
	// AlreadyCanonical means the input was a canonical tag.
	AlreadyCanonical Kind = iota + 1
	// ResolvedViaAlias means the input was a registered alias.
	ResolvedViaAlias
	// TypoCorrectedOnce means a suggestion was used for this call only.
	TypoCorrectedOnce
	// AliasRegistered means the input was persisted as an alias of a suggestion.
	AliasRegistered
	// NewTagCreated means the input became a new canonical tag.
	NewTagCreated
)

func (k Kind) String() string {
	switch k {
	case AlreadyCanonical:
		return "already-canonical"
	case ResolvedViaAlias:
		return "resolved-via-alias"
	case TypoCorrectedOnce:
		return "typo-corrected-once"
	case AliasRegistered:
		return "alias-registered"
	case NewTagCreated:
		return "new-tag-created"
	default:
		return "unknown"
	}
}

// MarshalText lets Kind render by name in JSON payloads.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText parses a kind name produced by MarshalText.
func (k *Kind) UnmarshalText(text []byte) error {
	for c := AlreadyCanonical; c <= NewTagCreated; c++ {
		if c.String() == string(text) {
			*k = c
			return nil
		}
	}
	return fmt.Errorf("resolver: unknown outcome kind %q", text)
}

// Mutates reports whether an outcome of this kind changed the store.
func (k Kind) Mutates() bool {
	return k == AliasRegistered || k == NewTagCreated
}

// Outcome is the result of resolving one input tag.
type Outcome struct {
	Input       string                  `json:"input"`
	Kind        Kind                    `json:"kind"`
	Tag         string                  `json:"tag"`
	Suggestions []similarity.Suggestion `json:"suggestions,omitempty"`
}

// Intent is the choice returned by a Chooser.
type Intent int

const (
	// UseExisting applies a suggested tag for this call only.
	UseExisting Intent = iota + 1
	// RegisterAlias persists the input as an alias of a suggested tag.
	RegisterAlias
	// CreateNew registers the input as a new canonical tag.
	CreateNew
)

func (i Intent) String() string {
	switch i {
	case UseExisting:
		return "use"
	case RegisterAlias:
		return "alias"
	case CreateNew:
		return "new"
	default:
		return "unknown"
	}
}

// Decision is a Chooser answer. Candidate is ignored for CreateNew.
type Decision struct {
	Intent    Intent
	Candidate string
}
