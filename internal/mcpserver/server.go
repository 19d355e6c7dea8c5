// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes smart-tags tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/smarttags/internal/prompt"
	"github.com/starford/smarttags/internal/tagservice"
)

// ConventionsURI is the resource URI of the tag conventions document.
const ConventionsURI = "smart-tags://conventions"

// Server wraps the MCP server with smart-tags tools.
type Server struct {
	mcp *server.MCPServer
	svc *tagservice.Service
}

// New creates a new MCP server with all tools registered.
func New(svc *tagservice.Service, version string) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"smart-tags",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_tags",
		mcp.WithDescription("List canonical tags with their aliases and the number of documents using them."),
	), s.listTags)

	s.mcp.AddTool(mcp.NewTool("resolve_tag",
		mcp.WithDescription("Preview how a tag resolves: canonical, alias of a canonical tag, or unknown with suggestions. Never changes anything."),
		mcp.WithString("tag", mcp.Required(), mcp.Description("Tag to resolve")),
	), s.resolveTag)

	s.mcp.AddTool(mcp.NewTool("create_tag",
		mcp.WithDescription("Register a new canonical tag."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Tag name")),
	), s.createTag)

	s.mcp.AddTool(mcp.NewTool("register_alias",
		mcp.WithDescription("Register an alternate spelling for an existing canonical tag."),
		mcp.WithString("alias", mcp.Required(), mcp.Description("Alternate spelling, e.g. rs")),
		mcp.WithString("target", mcp.Required(), mcp.Description("Existing canonical tag, e.g. rust")),
	), s.registerAlias)

	s.mcp.AddTool(mcp.NewTool("tag_document",
		mcp.WithDescription("Resolve tags and append the canonical tags to a document's front matter. "+
			"Read the conventions first via get_tag_conventions or the "+ConventionsURI+" resource."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative path to the document (e.g. folder/note.md)")),
		mcp.WithString("tags", mcp.Required(), mcp.Description("Comma-separated tags")),
		mcp.WithString("choice", mcp.Description("Policy for unknown tags: use (default), alias or new")),
		mcp.WithString("dry_run", mcp.Description("Set to true to return the merged document without writing it")),
	), s.tagDocument)

	s.mcp.AddTool(mcp.NewTool("find_documents",
		mcp.WithDescription("List documents carrying a tag. Aliases resolve to their canonical tag."),
		mcp.WithString("tag", mcp.Required(), mcp.Description("Tag or alias")),
	), s.findDocuments)

	s.mcp.AddTool(mcp.NewTool("audit_tags",
		mcp.WithDescription("Report document tags that are aliases or unknown. Never writes documents."),
	), s.auditTags)

	s.mcp.AddTool(mcp.NewTool("get_tag_conventions",
		mcp.WithDescription("Returns the tag conventions. Call this before tagging documents."),
	), s.getTagConventions)

	s.mcp.AddResource(
		mcp.NewResource(ConventionsURI, "Tag Conventions",
			mcp.WithResourceDescription("How tags are written in front matter and resolved against the alias store."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readConventionsResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func splitTags(s string) []string {
	var out []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func (s *Server) listTags(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tags, err := s.svc.ListTags(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(tags)
}

func (s *Server) resolveTag(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tag, err := req.RequireString("tag")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	in, err := s.svc.Inspect(ctx, tag)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(in)
}

func (s *Server) createTag(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	created, err := s.svc.CreateTag(ctx, name)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if !created {
		return mcp.NewToolResultText(fmt.Sprintf("exists: %s", name)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("created: %s", name)), nil
}

func (s *Server) registerAlias(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	alias, err := req.RequireString("alias")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	target, err := req.RequireString("target")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	added, err := s.svc.RegisterAlias(ctx, alias, target)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if !added {
		return mcp.NewToolResultText(fmt.Sprintf("exists: %s -> %s", alias, target)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("registered: %s -> %s", alias, target)), nil
}

func (s *Server) tagDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	raw, err := req.RequireString("tags")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	tags := splitTags(raw)
	if len(tags) == 0 {
		return mcp.NewToolResultError("at least one tag is required"), nil
	}

	choice := ""
	if c, err := req.RequireString("choice"); err == nil {
		choice = c
	}
	intent, err := prompt.ParseIntent(choice)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	dryRun := false
	if d, err := req.RequireString("dry_run"); err == nil {
		dryRun = strings.EqualFold(strings.TrimSpace(d), "true")
	}

	res, err := s.svc.TagDocument(ctx, path, tags, prompt.Fixed{Intent: intent}, dryRun)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if dryRun {
		return mcp.NewToolResultText(string(res.Content)), nil
	}
	return jsonResult(res)
}

func (s *Server) findDocuments(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tag, err := req.RequireString("tag")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	paths, err := s.svc.Documents(ctx, tag)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(paths) == 0 {
		return mcp.NewToolResultText("no documents found"), nil
	}
	return mcp.NewToolResultText(strings.Join(paths, "\n")), nil
}

func (s *Server) auditTags(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	report, err := s.svc.Audit(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(report)
}

func (s *Server) getTagConventions(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(TagConventions), nil
}

func (s *Server) readConventionsResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      ConventionsURI,
			MIMEType: "text/markdown",
			Text:     TagConventions,
		},
	}, nil
}
