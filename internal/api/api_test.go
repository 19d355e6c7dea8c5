package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/starford/smarttags/internal/tagservice"
	"github.com/starford/smarttags/internal/testutil"
)

// testEnv sets up a temp vault, tag store, SQLite DB, service and router.
// An empty authToken means auth is disabled.
func testEnv(t *testing.T, authToken string) (*tagservice.Service, http.Handler, string) {
	t.Helper()
	return testEnvWithSSE(t, authToken, nil)
}

func testEnvWithSSE(t *testing.T, authToken string, sseHandler http.Handler) (*tagservice.Service, http.Handler, string) {
	t.Helper()

	vaultDir, vault := testutil.TestVault(t)
	svc, err := tagservice.New(
		testutil.TestStore(t, []string{"rust", "development"}, map[string]string{"rs": "rust"}),
		tagservice.WithDocuments(vault),
		tagservice.WithIndex(testutil.TestDB(t)),
		tagservice.WithLogger(testutil.Logger()),
	)
	if err != nil {
		t.Fatalf("tagservice.New: %v", err)
	}
	router := NewRouter(svc, authToken != "", authToken, sseHandler)
	return svc, router, vaultDir
}

func do(t *testing.T, router http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		req = httptest.NewRequest(method, target, bytes.NewReader(raw))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestListTags(t *testing.T) {
	_, router, _ := testEnv(t, "")

	w := do(t, router, http.MethodGet, "/tags", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list = %d", w.Code)
	}
	var resp TagListResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Tags) != 2 {
		t.Fatalf("len(tags) = %d, want 2", len(resp.Tags))
	}
	if resp.Tags[0].Name != "rust" || len(resp.Tags[0].Aliases) != 1 || resp.Tags[0].Aliases[0] != "rs" {
		t.Errorf("tags[0] = %+v", resp.Tags[0])
	}
}

func TestResolveTag(t *testing.T) {
	_, router, _ := testEnv(t, "")

	w := do(t, router, http.MethodGet, "/tags/resolve?tag=RS", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("resolve = %d, body = %s", w.Code, w.Body.String())
	}
	var in tagservice.Inspection
	_ = json.Unmarshal(w.Body.Bytes(), &in)
	if in.Status != tagservice.StatusAlias || in.Tag != "rust" {
		t.Errorf("inspection = %+v", in)
	}

	w = do(t, router, http.MethodGet, "/tags/resolve?tag=developmnt", nil)
	_ = json.Unmarshal(w.Body.Bytes(), &in)
	if in.Status != tagservice.StatusUnknown || len(in.Suggestions) == 0 || in.Suggestions[0].Tag != "development" {
		t.Errorf("inspection = %+v", in)
	}
}

func TestResolveTag_MissingQuery(t *testing.T) {
	_, router, _ := testEnv(t, "")

	w := do(t, router, http.MethodGet, "/tags/resolve", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("resolve no tag = %d, want 400", w.Code)
	}
}

func TestCreateTag(t *testing.T) {
	_, router, _ := testEnv(t, "")

	w := do(t, router, http.MethodPost, "/tags", CreateTagRequest{Name: " Go "})
	if w.Code != http.StatusCreated {
		t.Fatalf("create = %d, body = %s", w.Code, w.Body.String())
	}
	var resp CreateTagResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Name != "go" || !resp.Created {
		t.Errorf("resp = %+v", resp)
	}

	// Existing canonical tag is not an error.
	w = do(t, router, http.MethodPost, "/tags", CreateTagRequest{Name: "go"})
	if w.Code != http.StatusOK {
		t.Errorf("repeat create = %d, want 200", w.Code)
	}

	// Name taken by an alias.
	w = do(t, router, http.MethodPost, "/tags", CreateTagRequest{Name: "rs"})
	if w.Code != http.StatusConflict {
		t.Errorf("alias create = %d, want 409", w.Code)
	}

	w = do(t, router, http.MethodPost, "/tags", map[string]string{})
	if w.Code != http.StatusBadRequest {
		t.Errorf("empty create = %d, want 400", w.Code)
	}
}

func TestCreateTag_InvalidJSON(t *testing.T) {
	_, router, _ := testEnv(t, "")

	req := httptest.NewRequest(http.MethodPost, "/tags", strings.NewReader("{"))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("invalid body = %d, want 400", w.Code)
	}
}

func TestRegisterAlias(t *testing.T) {
	_, router, _ := testEnv(t, "")

	w := do(t, router, http.MethodPost, "/aliases", RegisterAliasRequest{Alias: "dev", Target: "development"})
	if w.Code != http.StatusCreated {
		t.Fatalf("alias = %d, body = %s", w.Code, w.Body.String())
	}

	w = do(t, router, http.MethodPost, "/aliases", RegisterAliasRequest{Alias: "dev", Target: "development"})
	if w.Code != http.StatusOK {
		t.Errorf("repeat alias = %d, want 200", w.Code)
	}

	w = do(t, router, http.MethodPost, "/aliases", RegisterAliasRequest{Alias: "dev", Target: "rust"})
	if w.Code != http.StatusConflict {
		t.Errorf("conflicting alias = %d, want 409", w.Code)
	}

	w = do(t, router, http.MethodPost, "/aliases", RegisterAliasRequest{Alias: "py", Target: "python"})
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown target = %d, want 404", w.Code)
	}
}

func TestTagDocument(t *testing.T) {
	_, router, vaultDir := testEnv(t, "")
	testutil.WriteDoc(t, vaultDir, "notes/a.md", "---\ntitle: A\ntags: [rust]\n---\nBody\n")

	w := do(t, router, http.MethodPost, "/documents/tag", TagDocumentRequest{
		Path: "notes/a.md", Tags: []string{"rs", "developmnt"}, Choice: "use",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("tag = %d, body = %s", w.Code, w.Body.String())
	}
	var resp tagservice.Result
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Added) != 1 || resp.Added[0] != "development" {
		t.Errorf("added = %v", resp.Added)
	}
	if resp.StoreChanged {
		t.Error("use policy must not change the store")
	}

	got := testutil.ReadDoc(t, vaultDir, "notes/a.md")
	if got != "---\ntitle: A\ntags: [rust, development]\n---\nBody\n" {
		t.Errorf("document = %q", got)
	}

	// Usage is visible through the index.
	w = do(t, router, http.MethodGet, "/tags/rust/documents", nil)
	var docs TagDocumentsResponse
	_ = json.Unmarshal(w.Body.Bytes(), &docs)
	if len(docs.Documents) != 1 || docs.Documents[0] != "notes/a.md" {
		t.Errorf("documents = %+v", docs)
	}
}

func TestTagDocument_DryRun(t *testing.T) {
	_, router, vaultDir := testEnv(t, "")
	testutil.WriteDoc(t, vaultDir, "a.md", "body\n")

	w := do(t, router, http.MethodPost, "/documents/tag", TagDocumentRequest{
		Path: "a.md", Tags: []string{"zig"}, Choice: "new", DryRun: true,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("dry run = %d, body = %s", w.Code, w.Body.String())
	}
	var resp TagDocumentResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Content != "---\ntags:\n  - zig\n---\nbody\n" {
		t.Errorf("content = %q", resp.Content)
	}
	if testutil.ReadDoc(t, vaultDir, "a.md") != "body\n" {
		t.Error("dry run wrote the document")
	}
}

func TestTagDocument_Errors(t *testing.T) {
	_, router, vaultDir := testEnv(t, "")
	testutil.WriteDoc(t, vaultDir, "bad.md", "---\ntitle: x\n")

	tests := []struct {
		name string
		req  TagDocumentRequest
		want int
	}{
		{"missing document", TagDocumentRequest{Path: "nope.md", Tags: []string{"rust"}}, http.StatusNotFound},
		{"broken header", TagDocumentRequest{Path: "bad.md", Tags: []string{"rust"}}, http.StatusUnprocessableEntity},
		{"unknown choice", TagDocumentRequest{Path: "bad.md", Tags: []string{"rust"}, Choice: "maybe"}, http.StatusBadRequest},
		{"no tags", TagDocumentRequest{Path: "bad.md"}, http.StatusBadRequest},
		{"path outside vault", TagDocumentRequest{Path: "../x.md", Tags: []string{"rust"}}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, router, http.MethodPost, "/documents/tag", tt.req)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d, body = %s", w.Code, tt.want, w.Body.String())
			}
		})
	}
}

func TestAudit(t *testing.T) {
	_, router, vaultDir := testEnv(t, "")
	testutil.WriteDoc(t, vaultDir, "a.md", "---\ntags: [rs, rust]\n---\n")

	w := do(t, router, http.MethodGet, "/audit", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("audit = %d", w.Code)
	}
	var report tagservice.AuditReport
	_ = json.Unmarshal(w.Body.Bytes(), &report)
	if report.Documents != 1 || len(report.Findings) != 1 || report.Findings[0].Canonical != "rust" {
		t.Errorf("report = %+v", report)
	}
}

func TestReloadStore(t *testing.T) {
	svc, router, _ := testEnv(t, "")

	w := do(t, router, http.MethodPost, "/store/reload", nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("reload = %d", w.Code)
	}
	if !svc.Snapshot().IsCanonical("rust") {
		t.Error("store lost after reload")
	}
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	_, router, _ := testEnv(t, "secret123")

	req := httptest.NewRequest(http.MethodGet, "/tags", nil)
	req.Header.Set("Authorization", "Bearer secret123")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("authed list = %d, want 200", w.Code)
	}
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	_, router, _ := testEnv(t, "secret123")

	w := do(t, router, http.MethodGet, "/tags", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("unauthed = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_WrongToken(t *testing.T) {
	_, router, _ := testEnv(t, "secret123")

	req := httptest.NewRequest(http.MethodGet, "/tags", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token = %d, want 401", w.Code)
	}
}

// SSE endpoint auth tests.

// blockingSSE writes headers and blocks until the request context is done.
var blockingSSE = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.WriteHeader(http.StatusOK)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	<-r.Context().Done()
})

func TestSSEEvents_AuthProtected(t *testing.T) {
	_, router, _ := testEnvWithSSE(t, "secret", blockingSSE)

	w := do(t, router, http.MethodGet, "/events", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("SSE no auth = %d, want 401", w.Code)
	}
}

func TestSSEEvents_ValidToken(t *testing.T) {
	_, router, _ := testEnvWithSSE(t, "tok", blockingSSE)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code == http.StatusUnauthorized {
		t.Error("SSE with valid token should not 401")
	}
}

func TestSSEEvents_AuthDisabled(t *testing.T) {
	_, router, _ := testEnvWithSSE(t, "", blockingSSE)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code == http.StatusUnauthorized {
		t.Error("SSE should not require auth when disabled")
	}
}
