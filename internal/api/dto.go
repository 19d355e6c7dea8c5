package api

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/smarttags/internal/tagservice"
)

// CreateTagRequest is the request body for creating a canonical tag.
type CreateTagRequest struct {
	Name string `json:"name" example:"rust" validate:"required"`
}

// Validate checks required fields.
func (r *CreateTagRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Name, validation.Required),
	)
}

// RegisterAliasRequest is the request body for registering an alias.
type RegisterAliasRequest struct {
	Alias  string `json:"alias" example:"rs" validate:"required"`
	Target string `json:"target" example:"rust" validate:"required"`
}

// Validate checks required fields.
func (r *RegisterAliasRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Alias, validation.Required),
		validation.Field(&r.Target, validation.Required),
	)
}

// TagDocumentRequest is the request body for tagging a vault document.
// Choice is the policy applied to unknown tags: use, alias or new.
type TagDocumentRequest struct {
	Path   string   `json:"path" example:"notes/hello.md" validate:"required"`
	Tags   []string `json:"tags" example:"rust,go" validate:"required"`
	Choice string   `json:"choice,omitempty" example:"use"`
	DryRun bool     `json:"dry_run,omitempty"`
}

// Validate checks required fields.
func (r *TagDocumentRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Path, validation.Required),
		validation.Field(&r.Tags, validation.Required),
		validation.Field(&r.Choice, validation.In("", "use", "alias", "new")),
	)
}

// TagInfo is a canonical tag with aliases and usage (aliased from the domain layer).
type TagInfo = tagservice.TagInfo

// TagListResponse wraps the tag listing.
type TagListResponse struct {
	Tags []TagInfo `json:"tags" validate:"required"`
}

// TagDocumentsResponse lists the documents carrying a tag.
type TagDocumentsResponse struct {
	Tag       string   `json:"tag" example:"rust" validate:"required"`
	Documents []string `json:"documents" validate:"required"`
}

// CreateTagResponse is returned after creating a tag.
type CreateTagResponse struct {
	Name    string `json:"name" example:"rust" validate:"required"`
	Created bool   `json:"created" validate:"required"`
}

// RegisterAliasResponse is returned after registering an alias.
type RegisterAliasResponse struct {
	Alias  string `json:"alias" example:"rs" validate:"required"`
	Target string `json:"target" example:"rust" validate:"required"`
	Added  bool   `json:"added" validate:"required"`
}

// TagDocumentResponse reports the tagging result. Content is only set for
// dry runs.
type TagDocumentResponse struct {
	*tagservice.Result
	Content string `json:"content,omitempty"`
}
