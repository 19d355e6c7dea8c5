package frontmatter

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/starford/smarttags/internal/apperr"
	"github.com/starford/smarttags/internal/tagname"
)

// MergeResult is the outcome of Merge.
type MergeResult struct {
	Content []byte
	// Added lists the tags that were not yet present, in the order written.
	Added []string
}

// Changed reports whether Content differs from the input document.
func (r MergeResult) Changed() bool {
	return len(r.Added) > 0
}

// edit replaces s[from:to] with repl.
type edit struct {
	from, to int
	repl     string
}

func apply(s string, edits []edit) string {
	sort.Slice(edits, func(i, j int) bool { return edits[i].from < edits[j].from })
	var b strings.Builder
	last := 0
	for _, e := range edits {
		b.WriteString(s[last:e.from])
		b.WriteString(e.repl)
		last = e.to
	}
	b.WriteString(s[last:])
	return b.String()
}

// Merge adds tags to the document header, skipping tags that are already
// present (compared after normalization). Only the tags value is touched;
// every other byte of the document is preserved. When nothing needs adding
// the input is returned unchanged.
//
// A leading "---" line without a closing delimiter is ErrHeaderParse rather
// than a thematic break, so such a document is never rewritten.
func Merge(doc []byte, tags []string) (MergeResult, error) {
	h, ok, err := locate(doc)
	if err != nil {
		return MergeResult{}, err
	}

	if !ok {
		add := pending(nil, tags)
		if len(add) == 0 {
			return MergeResult{Content: doc}, nil
		}
		nl := detectNewline(doc)
		lines, err := blockItems(add, "  - ", nl)
		if err != nil {
			return MergeResult{}, err
		}
		var b strings.Builder
		b.WriteString(delimiter + nl)
		b.WriteString(tagsKey + ":" + nl)
		b.WriteString(lines)
		b.WriteString(delimiter + nl)
		b.Write(doc)
		return MergeResult{Content: []byte(b.String()), Added: add}, nil
	}

	root, err := parseMapping(h.content)
	if err != nil {
		return MergeResult{}, err
	}
	key, value, idx := lookup(root, tagsKey)
	existing, err := tagValues(value)
	if err != nil {
		return MergeResult{}, err
	}
	add := pending(existing, tags)
	if len(add) == 0 {
		return MergeResult{Content: doc}, nil
	}
	if root != nil && root.Style&yaml.FlowStyle != 0 {
		return MergeResult{}, fmt.Errorf("%w: flow-style header mapping cannot be edited", apperr.ErrHeaderParse)
	}

	t := newText(h.content)
	var edits []edit
	switch {
	case key == nil:
		edits, err = appendKey(t, add, h.newline)
	case value.Kind == yaml.SequenceNode && value.Style&yaml.FlowStyle != 0:
		edits, err = extendFlow(t, value, add)
	case value.Kind == yaml.SequenceNode:
		edits, err = extendBlock(t, root, idx, value, add, h.newline)
	case value.Kind == yaml.ScalarNode && (value.Tag == "!!null" || value.Value == "") && value.Style == 0:
		edits, err = fillEmpty(t, key, value, add, h.newline)
	case value.Kind == yaml.ScalarNode:
		edits, err = scalarToFlow(t, value, add)
	default:
		err = fmt.Errorf("%w: unsupported %q value", apperr.ErrHeaderParse, tagsKey)
	}
	if err != nil {
		return MergeResult{}, err
	}

	content := apply(h.content, edits)
	if err := verify(content, append(slices.Clone(existing), add...)); err != nil {
		return MergeResult{}, err
	}

	out := make([]byte, 0, len(doc)+len(content)-len(h.content))
	out = append(out, doc[:h.start]...)
	out = append(out, content...)
	out = append(out, doc[h.end:]...)
	return MergeResult{Content: out, Added: add}, nil
}

// pending returns the normalized tags missing from existing, de-duplicated,
// in input order.
func pending(existing, tags []string) []string {
	seen := make(map[string]struct{}, len(existing)+len(tags))
	for _, e := range existing {
		seen[tagname.Normalize(e)] = struct{}{}
	}
	var out []string
	for _, raw := range tags {
		tag := tagname.Normalize(raw)
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}

// encode renders a tag as a YAML scalar. Inside flow collections a tag
// holding flow indicators is always double quoted.
func encode(tag string, flow bool) (string, error) {
	n := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: tag}
	if flow && strings.ContainsAny(tag, ",[]{}#") {
		n.Style = yaml.DoubleQuotedStyle
	}
	out, err := yaml.Marshal(n)
	if err != nil {
		return "", fmt.Errorf("frontmatter: encode tag %q: %w", tag, err)
	}
	return strings.TrimSuffix(string(out), "\n"), nil
}

func blockItems(tags []string, prefix, nl string) (string, error) {
	var b strings.Builder
	for _, tag := range tags {
		s, err := encode(tag, false)
		if err != nil {
			return "", err
		}
		b.WriteString(prefix + s + nl)
	}
	return b.String(), nil
}

func flowItems(tags []string) (string, error) {
	parts := make([]string, len(tags))
	for i, tag := range tags {
		s, err := encode(tag, true)
		if err != nil {
			return "", err
		}
		parts[i] = s
	}
	return strings.Join(parts, ", "), nil
}

// appendKey adds a tags block as the last header entry.
func appendKey(t *text, add []string, nl string) ([]edit, error) {
	lines, err := blockItems(add, "  - ", nl)
	if err != nil {
		return nil, err
	}
	end := len(t.s)
	return []edit{{from: end, to: end, repl: tagsKey + ":" + nl + lines}}, nil
}

// extendBlock inserts new "- tag" lines after the last item of a block
// sequence, copying the item prefix of that line.
func extendBlock(t *text, root *yaml.Node, idx int, seq *yaml.Node, add []string, nl string) ([]edit, error) {
	last := seq.Content[len(seq.Content)-1]
	if last.Style&(yaml.LiteralStyle|yaml.FoldedStyle) != 0 {
		return nil, fmt.Errorf("%w: block scalar in %q", apperr.ErrHeaderParse, tagsKey)
	}

	// The sequence ends before the next top-level key, or at the end of the
	// header. Trailing blank and comment lines stay after the new items.
	regionEnd := t.lines()
	if idx+2 < len(root.Content) {
		regionEnd = root.Content[idx+2].Line - 1
	}
	after := last.Line
	for l := regionEnd; l > last.Line; l-- {
		if significant(t.line(l)) {
			after = l
			break
		}
	}

	prefix := strings.Repeat(" ", max(seq.Column-1, 0)) + "- "
	lineStart := t.lineStart(last.Line)
	if p := t.s[lineStart:t.offset(last.Line, last.Column)]; strings.TrimSpace(p) == "-" && strings.Trim(p, " -") == "" {
		prefix = p
	}

	lines, err := blockItems(add, prefix, nl)
	if err != nil {
		return nil, err
	}
	at := t.lineStart(after + 1)
	if at == len(t.s) && t.s != "" && !strings.HasSuffix(t.s, "\n") {
		lines = nl + lines
	}
	return []edit{{from: at, to: at, repl: lines}}, nil
}

// extendFlow inserts new items before the closing bracket of a flow sequence.
func extendFlow(t *text, seq *yaml.Node, add []string) ([]edit, error) {
	open := t.offset(seq.Line, seq.Column)
	if open >= len(t.s) || t.s[open] != '[' {
		return nil, fmt.Errorf("%w: cannot locate %q list", apperr.ErrHeaderParse, tagsKey)
	}
	closing, err := matchBracket(t.s, open)
	if err != nil {
		return nil, err
	}

	at := closing
	for at > open+1 && strings.ContainsRune(" \t\r\n", rune(t.s[at-1])) {
		at--
	}
	items, err := flowItems(add)
	if err != nil {
		return nil, err
	}
	switch {
	case len(seq.Content) == 0:
	case t.s[at-1] == ',':
		items = " " + items
	default:
		items = ", " + items
	}
	return []edit{{from: at, to: at, repl: items}}, nil
}

// matchBracket returns the offset of the ']' closing the '[' at open.
func matchBracket(s string, open int) (int, error) {
	depth := 0
	var prev byte
	for i := open; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '[' || c == '{':
			depth++
		case c == ']' || c == '}':
			depth--
			if depth == 0 {
				if c == ']' {
					return i, nil
				}
				return -1, fmt.Errorf("%w: mismatched brackets in %q", apperr.ErrHeaderParse, tagsKey)
			}
		case (c == '"' || c == '\'') && strings.IndexByte("[{,:", prev) >= 0:
			end := closeQuote(s, i)
			if end < 0 {
				return -1, fmt.Errorf("%w: unterminated quote in %q", apperr.ErrHeaderParse, tagsKey)
			}
			i = end
		case c == '#' && i > 0 && strings.IndexByte(" \t\n", s[i-1]) >= 0:
			for i < len(s) && s[i] != '\n' {
				i++
			}
			continue
		}
		if !strings.ContainsRune(" \t\r\n", rune(c)) {
			prev = c
		}
	}
	return -1, fmt.Errorf("%w: unterminated %q list", apperr.ErrHeaderParse, tagsKey)
}

// closeQuote returns the offset of the quote closing the one at start.
func closeQuote(s string, start int) int {
	q := s[start]
	for i := start + 1; i < len(s); i++ {
		switch {
		case q == '"' && s[i] == '\\':
			i++
		case s[i] == q && q == '\'' && i+1 < len(s) && s[i+1] == '\'':
			i++
		case s[i] == q:
			return i
		}
	}
	return -1
}

// fillEmpty turns "tags:" or "tags: ~" into a block sequence.
func fillEmpty(t *text, key, value *yaml.Node, add []string, nl string) ([]edit, error) {
	colon, err := colonAfterKey(t, key)
	if err != nil {
		return nil, err
	}
	lineEnd := t.lineEnd(key.Line)
	rest := stripComment(t.s[colon+1 : lineEnd])

	var edits []edit
	if v := strings.TrimSpace(rest); v != "" {
		// Explicit null on the key line: drop it, keep any comment.
		from := colon + 1
		to := from + strings.Index(rest, v) + len(v)
		edits = append(edits, edit{from: from, to: to})
	}

	indent := strings.Repeat(" ", max(key.Column-1, 0)) + "  - "
	lines, err := blockItems(add, indent, nl)
	if err != nil {
		return nil, err
	}
	at := t.lineStart(key.Line + 1)
	if at == len(t.s) && !strings.HasSuffix(t.s, "\n") {
		lines = nl + lines
	}
	return append(edits, edit{from: at, to: at, repl: lines}), nil
}

func colonAfterKey(t *text, key *yaml.Node) (int, error) {
	i := t.offset(key.Line, key.Column)
	switch {
	case i < len(t.s) && (t.s[i] == '"' || t.s[i] == '\''):
		end := closeQuote(t.s, i)
		if end < 0 {
			return -1, fmt.Errorf("%w: cannot locate %q key", apperr.ErrHeaderParse, tagsKey)
		}
		i = end + 1
	default:
		i += len(key.Value)
	}
	for i < len(t.s) && (t.s[i] == ' ' || t.s[i] == '\t') {
		i++
	}
	if i >= len(t.s) || t.s[i] != ':' {
		return -1, fmt.Errorf("%w: cannot locate %q key", apperr.ErrHeaderParse, tagsKey)
	}
	return i, nil
}

// scalarToFlow rewrites "tags: x" as "tags: [x, new]". The original scalar
// text is kept unless it would change meaning inside a flow sequence.
func scalarToFlow(t *text, v *yaml.Node, add []string) ([]edit, error) {
	if v.Style&(yaml.LiteralStyle|yaml.FoldedStyle|yaml.TaggedStyle) != 0 || v.Anchor != "" {
		return nil, fmt.Errorf("%w: unsupported %q scalar", apperr.ErrHeaderParse, tagsKey)
	}

	start := t.offset(v.Line, v.Column)
	lineEnd := t.lineEnd(v.Line)
	var end int
	switch v.Style {
	case yaml.DoubleQuotedStyle, yaml.SingleQuotedStyle:
		q := closeQuote(t.s[:lineEnd], start)
		if q < 0 {
			return nil, fmt.Errorf("%w: multi-line %q scalar", apperr.ErrHeaderParse, tagsKey)
		}
		end = q + 1
	default:
		end = start + len(strings.TrimRight(stripComment(t.s[start:lineEnd]), " \t"))
	}

	original := t.s[start:end]
	var decoded string
	if err := yaml.Unmarshal([]byte(original), &decoded); err != nil || decoded != v.Value {
		return nil, fmt.Errorf("%w: multi-line %q scalar", apperr.ErrHeaderParse, tagsKey)
	}
	if v.Style == 0 && strings.ContainsAny(original, ",[]{}#") {
		quoted, err := encode(v.Value, true)
		if err != nil {
			return nil, err
		}
		original = quoted
	}

	items, err := flowItems(add)
	if err != nil {
		return nil, err
	}
	if v.Value == "" {
		return []edit{{from: start, to: end, repl: "[" + items + "]"}}, nil
	}
	return []edit{{from: start, to: end, repl: "[" + original + ", " + items + "]"}}, nil
}

// verify re-parses edited header content and checks the tags value reads
// back as want.
func verify(content string, want []string) error {
	root, err := parseMapping(content)
	if err != nil {
		return fmt.Errorf("%w: edited header does not parse", apperr.ErrHeaderParse)
	}
	_, v, _ := lookup(root, tagsKey)
	got, err := tagValues(v)
	if err != nil || !slices.Equal(got, want) {
		return fmt.Errorf("%w: %q value could not be edited in place", apperr.ErrHeaderParse, tagsKey)
	}
	return nil
}
