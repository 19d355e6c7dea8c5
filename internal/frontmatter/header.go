// Package frontmatter reads and edits the YAML header at the top of a
// Markdown document. Edits are made on the raw text so that everything
// outside the tags value keeps its exact bytes.
package frontmatter

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"github.com/starford/smarttags/internal/apperr"
)

const (
	delimiter = "---"
	tagsKey   = "tags"
)

// header locates the front matter of a document by byte offsets.
type header struct {
	content   string // text between the delimiter lines, newline terminated
	start     int    // offset of content in the document
	end       int    // offset of the closing delimiter line
	bodyStart int    // offset just past the closing delimiter line
	newline   string
}

// locate finds the header. ok is false when the document does not start
// with a delimiter line; an opening delimiter without a closing one is an
// error.
func locate(doc []byte) (h header, ok bool, err error) {
	firstEnd := bytes.IndexByte(doc, '\n')
	if firstEnd < 0 {
		if string(bytes.TrimSuffix(doc, []byte("\r"))) == delimiter {
			return header{}, false, fmt.Errorf("%w: opening %q without closing delimiter", apperr.ErrHeaderParse, delimiter)
		}
		return header{}, false, nil
	}

	first := doc[:firstEnd]
	nl := "\n"
	if bytes.HasSuffix(first, []byte("\r")) {
		first = first[:len(first)-1]
		nl = "\r\n"
	}
	if string(first) != delimiter {
		return header{}, false, nil
	}

	start := firstEnd + 1
	for pos := start; pos < len(doc); {
		lineEnd, next := len(doc), len(doc)
		if i := bytes.IndexByte(doc[pos:], '\n'); i >= 0 {
			lineEnd, next = pos+i, pos+i+1
		}
		if string(bytes.TrimSuffix(doc[pos:lineEnd], []byte("\r"))) == delimiter {
			return header{
				content:   string(doc[start:pos]),
				start:     start,
				end:       pos,
				bodyStart: next,
				newline:   nl,
			}, true, nil
		}
		pos = next
	}
	return header{}, false, fmt.Errorf("%w: opening %q without closing delimiter", apperr.ErrHeaderParse, delimiter)
}

// detectNewline returns the line ending used by the first line of doc.
func detectNewline(doc []byte) string {
	if i := bytes.IndexByte(doc, '\n'); i > 0 && doc[i-1] == '\r' {
		return "\r\n"
	}
	return "\n"
}

// parseMapping parses header content and returns its top-level mapping.
// An empty or comment-only header yields a nil node.
func parseMapping(content string) (*yaml.Node, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(content), &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", apperr.ErrHeaderParse, err)
	}
	if doc.Kind == 0 || len(doc.Content) == 0 {
		return nil, nil
	}
	root := doc.Content[0]
	if root.Kind == yaml.ScalarNode && root.Tag == "!!null" {
		return nil, nil
	}
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: header is not a mapping", apperr.ErrHeaderParse)
	}
	return root, nil
}

// lookup returns the key and value nodes of a top-level key, and the index
// of the key in the mapping content.
func lookup(m *yaml.Node, key string) (k, v *yaml.Node, idx int) {
	if m == nil {
		return nil, nil, -1
	}
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return m.Content[i], m.Content[i+1], i
		}
	}
	return nil, nil, -1
}

// text wraps header content with line/column to offset helpers. Lines and
// columns are 1-based as reported by yaml.Node; columns count runes.
type text struct {
	s          string
	lineStarts []int
}

func newText(s string) *text {
	t := &text{s: s, lineStarts: []int{0}}
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' && i+1 < len(s) {
			t.lineStarts = append(t.lineStarts, i+1)
		}
	}
	return t
}

func (t *text) lines() int {
	if t.s == "" {
		return 0
	}
	return len(t.lineStarts)
}

// lineStart returns the offset of a line; one past the last line maps to
// the end of the text.
func (t *text) lineStart(line int) int {
	if line > len(t.lineStarts) {
		return len(t.s)
	}
	return t.lineStarts[line-1]
}

// lineEnd returns the offset of the line terminator, excluding any '\r'.
func (t *text) lineEnd(line int) int {
	start := t.lineStart(line)
	end := strings.IndexByte(t.s[start:], '\n')
	if end < 0 {
		end = len(t.s)
	} else {
		end += start
	}
	if end > start && t.s[end-1] == '\r' {
		end--
	}
	return end
}

func (t *text) line(n int) string {
	return t.s[t.lineStart(n):t.lineEnd(n)]
}

func (t *text) offset(line, column int) int {
	start := t.lineStart(line)
	off := start
	for c := 1; c < column && off < len(t.s); c++ {
		_, size := utf8.DecodeRuneInString(t.s[off:])
		off += size
	}
	return off
}

// significant reports whether a line holds anything besides blanks and a
// comment.
func significant(line string) bool {
	trimmed := strings.TrimSpace(line)
	return trimmed != "" && !strings.HasPrefix(trimmed, "#")
}

// stripComment removes a trailing " # ..." comment from a plain line.
func stripComment(line string) string {
	for i := 0; i < len(line); i++ {
		if line[i] == '#' && (i == 0 || line[i-1] == ' ' || line[i-1] == '\t') {
			return line[:i]
		}
	}
	return line
}

// tagValues returns the string items of a tags node. Scalars count as a
// single item and null as none.
func tagValues(v *yaml.Node) ([]string, error) {
	if v == nil {
		return nil, nil
	}
	switch v.Kind {
	case yaml.ScalarNode:
		if v.Tag == "!!null" || v.Value == "" {
			return nil, nil
		}
		return []string{v.Value}, nil
	case yaml.SequenceNode:
		out := make([]string, 0, len(v.Content))
		for _, item := range v.Content {
			if item.Kind != yaml.ScalarNode {
				return nil, fmt.Errorf("%w: %q holds a non-scalar item", apperr.ErrHeaderParse, tagsKey)
			}
			out = append(out, item.Value)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: %q must be a list of strings", apperr.ErrHeaderParse, tagsKey)
	}
}
