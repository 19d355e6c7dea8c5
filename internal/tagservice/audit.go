package tagservice

import (
	"context"
	"log/slog"

	"github.com/starford/smarttags/internal/frontmatter"
	"github.com/starford/smarttags/internal/similarity"
	"github.com/starford/smarttags/internal/tagname"
)

// Finding is a document tag that is not written in canonical form.
type Finding struct {
	Path        string                  `json:"path"`
	Tag         string                  `json:"tag"`
	Status      Status                  `json:"status"`
	Canonical   string                  `json:"canonical,omitempty"`
	Suggestions []similarity.Suggestion `json:"suggestions,omitempty"`
}

// DocumentError is a document the audit could not read or parse.
type DocumentError struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

// AuditReport summarizes the tags found across the vault.
type AuditReport struct {
	Documents int             `json:"documents"`
	Tags      int             `json:"tags"`
	Findings  []Finding       `json:"findings"`
	Errors    []DocumentError `json:"errors,omitempty"`
}

// Clean reports whether every document tag is canonical.
func (r *AuditReport) Clean() bool {
	return len(r.Findings) == 0 && len(r.Errors) == 0
}

// Audit classifies every header tag in the vault against the store. It
// never writes documents.
func (s *Service) Audit(ctx context.Context) (*AuditReport, error) {
	if err := s.requireDocuments(); err != nil {
		return nil, err
	}
	metas, err := s.docs.List("")
	if err != nil {
		return nil, err
	}
	store := s.Snapshot()

	report := &AuditReport{Findings: []Finding{}}
	for _, m := range metas {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := s.docs.Read(m.Path)
		if err != nil {
			report.Errors = append(report.Errors, DocumentError{Path: m.Path, Error: err.Error()})
			continue
		}
		tags, err := frontmatter.Tags(data)
		if err != nil {
			s.logger.Debug("audit: header parse failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			report.Errors = append(report.Errors, DocumentError{Path: m.Path, Error: err.Error()})
			continue
		}
		report.Documents++

		for _, raw := range tags {
			report.Tags++
			tag := tagname.Normalize(raw)
			canonical, ok := store.ResolveExact(tag)
			switch {
			case ok && canonical == tag:
				continue
			case ok:
				report.Findings = append(report.Findings, Finding{
					Path: m.Path, Tag: raw, Status: StatusAlias, Canonical: canonical,
				})
			default:
				report.Findings = append(report.Findings, Finding{
					Path: m.Path, Tag: raw, Status: StatusUnknown,
					Suggestions: s.matcher.Suggest(tag, store.AllCanonical()),
				})
			}
		}
	}
	return report, nil
}
