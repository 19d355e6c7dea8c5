package mcpserver

// TagConventions describes how tags are written in document front matter
// and how unknown tags are resolved against the alias store.
const TagConventions = `# Smart Tags Conventions

Tags live in the YAML front matter of a Markdown document under the ` + "`" + `tags` + "`" + ` key.

## Format

` + "```" + `markdown
---
title: Weekly standup
tags:
  - meeting-notes
  - project-x
---
` + "```" + `

The flow form ` + "`" + `tags: [meeting-notes, project-x]` + "`" + ` is equally valid. Existing
layout is preserved: new tags are appended in the style the header already uses.

## Rules

1. **Tags are normalized** by trimming surrounding whitespace and lowercasing.
   ` + "`" + `Rust` + "`" + ` and ` + "`" + ` rust ` + "`" + ` are the same tag.
2. **Canonical tags** are the registered spellings. Prefer them over new tags.
3. **Aliases** map an alternate spelling to exactly one canonical tag
   (` + "`" + `rs` + "`" + ` -> ` + "`" + `rust` + "`" + `). Aliases never chain.
4. **Unknown tags** get suggestions: canonical tags within a small edit distance,
   closest first. Pick one of:
   - ` + "`" + `use` + "`" + `: write the suggested canonical tag (no store change),
   - ` + "`" + `alias` + "`" + `: write it and remember the input as an alias,
   - ` + "`" + `new` + "`" + `: register the input as a new canonical tag.
5. **Tags are never removed** and never duplicated. Tagging is idempotent.
6. A tag is at most 100 characters and may not contain line breaks.

## Workflow

1. Call ` + "`" + `resolve_tag` + "`" + ` to preview how a tag would resolve.
2. Call ` + "`" + `tag_document` + "`" + ` with the document path and the tags, choosing a
   policy for unknown tags. Use ` + "`" + `dry_run` + "`" + ` to see the merged document first.
3. Call ` + "`" + `register_alias` + "`" + ` when a spelling keeps coming back.
`
