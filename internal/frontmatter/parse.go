package frontmatter

import (
	"fmt"
	"strings"

	"github.com/starford/smarttags/internal/apperr"
)

// Result holds the read-only view of a document.
type Result struct {
	Frontmatter map[string]interface{}
	Body        string
	// Tags are the header tags as written, in document order.
	Tags      []string
	Title     string
	HasHeader bool
}

// Parse splits a document into its header and body and extracts the header
// tags and a title. A header that is present but unparsable is an
// apperr.ErrHeaderParse error.
func Parse(data []byte) (*Result, error) {
	h, ok, err := locate(data)
	if err != nil {
		return nil, err
	}
	if !ok {
		body := string(data)
		return &Result{Body: body, Title: deriveTitle(nil, body)}, nil
	}

	root, err := parseMapping(h.content)
	if err != nil {
		return nil, err
	}
	fm := map[string]interface{}{}
	if root != nil {
		if err := root.Decode(&fm); err != nil {
			return nil, fmt.Errorf("%w: %w", apperr.ErrHeaderParse, err)
		}
	}

	_, v, _ := lookup(root, tagsKey)
	tags, err := tagValues(v)
	if err != nil {
		return nil, err
	}

	body := string(data[h.bodyStart:])
	return &Result{
		Frontmatter: fm,
		Body:        body,
		Tags:        tags,
		Title:       deriveTitle(fm, body),
		HasHeader:   true,
	}, nil
}

// Tags returns only the header tags of a document.
func Tags(data []byte) ([]string, error) {
	r, err := Parse(data)
	if err != nil {
		return nil, err
	}
	return r.Tags, nil
}

// deriveTitle returns the frontmatter "title" if present, otherwise the first
// H1 heading, otherwise empty string.
func deriveTitle(fm map[string]interface{}, body string) string {
	if fm != nil {
		if t, ok := fm["title"]; ok {
			if s, ok := t.(string); ok && s != "" {
				return s
			}
		}
	}
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") {
			return strings.TrimSpace(trimmed[2:])
		}
	}
	return ""
}
