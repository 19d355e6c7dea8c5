package api

import (
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/starford/smarttags/internal/prompt"
	"github.com/starford/smarttags/internal/tagname"
	"github.com/starford/smarttags/internal/tagservice"
)

// Handler holds API route handlers.
type Handler struct {
	svc *tagservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *tagservice.Service) *Handler {
	return &Handler{svc: svc}
}

// ListTags handles GET /api/tags.
//
//	@Summary		List canonical tags with aliases and usage counts
//	@Tags			tags
//	@Produce		json
//	@Success		200	{object}	TagListResponse
//	@Security		BearerAuth
//	@Router			/tags [get]
func (h *Handler) ListTags(w http.ResponseWriter, r *http.Request) {
	tags, err := h.svc.ListTags(r.Context())
	if err != nil {
		writeError(w, "list tags", err)
		return
	}
	writeJSON(w, http.StatusOK, TagListResponse{Tags: tags})
}

// ResolveTag handles GET /api/tags/resolve.
//
//	@Summary		Preview how a tag resolves without changing the store
//	@Tags			tags
//	@Produce		json
//	@Param			tag	query		string	true	"Tag to resolve"
//	@Success		200	{object}	tagservice.Inspection
//	@Failure		400	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/tags/resolve [get]
func (h *Handler) ResolveTag(w http.ResponseWriter, r *http.Request) {
	tag := r.URL.Query().Get("tag")
	if tag == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'tag' is required"))
		return
	}
	in, err := h.svc.Inspect(r.Context(), tag)
	if err != nil {
		writeError(w, "resolve tag", err)
		return
	}
	writeJSON(w, http.StatusOK, in)
}

// TagDocuments handles GET /api/tags/{tag}/documents.
//
//	@Summary		List documents carrying a tag
//	@Tags			tags
//	@Produce		json
//	@Param			tag	path		string	true	"Tag or alias"
//	@Success		200	{object}	TagDocumentsResponse
//	@Failure		400	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/tags/{tag}/documents [get]
func (h *Handler) TagDocuments(w http.ResponseWriter, r *http.Request) {
	tag := chi.URLParam(r, "tag")
	if decoded, err := url.PathUnescape(tag); err == nil {
		tag = decoded
	}
	paths, err := h.svc.Documents(r.Context(), tag)
	if err != nil {
		writeError(w, "tag documents", err)
		return
	}
	writeJSON(w, http.StatusOK, TagDocumentsResponse{Tag: tagname.Normalize(tag), Documents: paths})
}

// CreateTag handles POST /api/tags.
//
//	@Summary		Create a canonical tag
//	@Tags			tags
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateTagRequest	true	"Tag to create"
//	@Success		201		{object}	CreateTagResponse
//	@Success		200		{object}	CreateTagResponse
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/tags [post]
func (h *Handler) CreateTag(w http.ResponseWriter, r *http.Request) {
	var req CreateTagRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	created, err := h.svc.CreateTag(r.Context(), req.Name)
	if err != nil {
		writeError(w, "create tag", err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, CreateTagResponse{Name: tagname.Normalize(req.Name), Created: created})
}

// RegisterAlias handles POST /api/aliases.
//
//	@Summary		Register an alias for a canonical tag
//	@Tags			tags
//	@Accept			json
//	@Produce		json
//	@Param			body	body		RegisterAliasRequest	true	"Alias mapping"
//	@Success		201		{object}	RegisterAliasResponse
//	@Success		200		{object}	RegisterAliasResponse
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/aliases [post]
func (h *Handler) RegisterAlias(w http.ResponseWriter, r *http.Request) {
	var req RegisterAliasRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	added, err := h.svc.RegisterAlias(r.Context(), req.Alias, req.Target)
	if err != nil {
		writeError(w, "register alias", err)
		return
	}
	status := http.StatusOK
	if added {
		status = http.StatusCreated
	}
	writeJSON(w, status, RegisterAliasResponse{
		Alias:  tagname.Normalize(req.Alias),
		Target: tagname.Normalize(req.Target),
		Added:  added,
	})
}

// TagDocument handles POST /api/documents/tag.
//
//	@Summary		Resolve tags and merge them into a vault document
//	@Tags			documents
//	@Accept			json
//	@Produce		json
//	@Param			body	body		TagDocumentRequest	true	"Document and tags"
//	@Success		200		{object}	TagDocumentResponse
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Failure		422		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/documents/tag [post]
func (h *Handler) TagDocument(w http.ResponseWriter, r *http.Request) {
	var req TagDocumentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	intent, err := prompt.ParseIntent(req.Choice)
	if err != nil {
		writeError(w, "tag document", err)
		return
	}
	res, err := h.svc.TagDocument(r.Context(), req.Path, req.Tags, prompt.Fixed{Intent: intent}, req.DryRun)
	if err != nil {
		writeError(w, "tag document", err)
		return
	}
	resp := TagDocumentResponse{Result: res}
	if req.DryRun {
		resp.Content = string(res.Content)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Audit handles GET /api/audit.
//
//	@Summary		Report document tags that are not canonical
//	@Tags			documents
//	@Produce		json
//	@Success		200	{object}	tagservice.AuditReport
//	@Security		BearerAuth
//	@Router			/audit [get]
func (h *Handler) Audit(w http.ResponseWriter, r *http.Request) {
	report, err := h.svc.Audit(r.Context())
	if err != nil {
		writeError(w, "audit", err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// ReloadStore handles POST /api/store/reload.
//
//	@Summary		Re-read the tag store file
//	@Tags			tags
//	@Success		204	"Store reloaded"
//	@Failure		409	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/store/reload [post]
func (h *Handler) ReloadStore(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Reload(r.Context()); err != nil {
		writeError(w, "reload store", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
