package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/leolilley/ryeos/internal/chain"
	"github.com/leolilley/ryeos/internal/integrity"
	"github.com/leolilley/ryeos/internal/items"
	"github.com/leolilley/ryeos/internal/orchestrator"
	"github.com/leolilley/ryeos/internal/primitive"
	"github.com/leolilley/ryeos/internal/resolver"
	"github.com/leolilley/ryeos/internal/thread"
	"github.com/leolilley/ryeos/pkg/ryemodels"
)

type fakeProvider struct{}

func (fakeProvider) Name() string { return "fake" }

func (fakeProvider) Complete(ctx context.Context, req *thread.CompletionRequest) (<-chan *thread.CompletionChunk, error) {
	ch := make(chan *thread.CompletionChunk, 2)
	ch <- &thread.CompletionChunk{Text: "done"}
	ch <- &thread.CompletionChunk{Done: true, PromptTokens: 10, CompletionTokens: 5}
	close(ch)
	return ch, nil
}

func newTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	root := t.TempDir()
	res := resolver.New([]resolver.SpaceRoot{{Space: ryemodels.SpaceSystem, Root: root}}, nil)
	verifier := integrity.NewVerifier(integrity.NewStore(nil), nil)
	loader := items.New(res, verifier)

	for _, id := range []string{"rye/agent/identity", "rye/agent/behavior", "rye/agent/tool-protocol", "rye/agent/environment", "rye/agent/completion"} {
		writeKnowledgeItem(t, root, id)
	}

	o := orchestrator.New(orchestrator.Config{
		Provider:      fakeProvider{},
		Loader:        loader,
		ChainResolver: chain.New(loader),
		Primitive:     primitive.New(verifier, nil),
		Authoring:     true,
		MaxIterations: 5,
	})
	return New(Config{Addr: "127.0.0.1:0", Orch: o}), root
}

func writeKnowledgeItem(t *testing.T, root, id string) {
	t.Helper()
	path := filepath.Join(root, "knowledge", id+".md")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	content := "---\nid: " + id + "\ntitle: t\ncategory: c\nversion: 1.0.0\nauthor: a\ncreated_at: 2026-01-01\n---\nbody\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func writeDirective(t *testing.T, root, id string) {
	t.Helper()
	path := filepath.Join(root, "directives", id+".md")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	content := "# " + id + "\n\n```yaml\n" +
		"model:\n  tier: standard\n" +
		"limits:\n  turns: 10\n  tokens: 100000\n  spend: 5\n" +
		"permissions:\n  \"*\": \"*\"\n" +
		"```\n\n<process>\ndo it\n</process>\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestHandleHealthz_ReportsOK(t *testing.T) {
	s, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.mux().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestHandleInvoke_RunsDirectiveToCompletion(t *testing.T) {
	s, root := newTestServer(t)
	writeDirective(t, root, "proj/greet")

	body := `{"directive_id":"proj/greet","capabilities":["*"]}`
	req := httptest.NewRequest(http.MethodPost, "/v1/threads/invoke", strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.mux().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var result ryemodels.ThreadResult
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&result))
	require.Equal(t, ryemodels.StatusCompleted, result.Status)

	statusReq := httptest.NewRequest(http.MethodGet, "/v1/threads/"+result.ThreadID, nil)
	statusRec := httptest.NewRecorder()
	s.mux().ServeHTTP(statusRec, statusReq)
	require.Equal(t, http.StatusOK, statusRec.Code)
}

func TestHandleInvoke_RejectsMissingDirectiveID(t *testing.T) {
	s, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/v1/threads/invoke", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	s.mux().ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleThreadStatus_UnknownIDReturns404(t *testing.T) {
	s, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/v1/threads/does-not-exist", nil)
	rec := httptest.NewRecorder()
	s.mux().ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleCancel_UnknownIDReturns404(t *testing.T) {
	s, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/v1/threads/does-not-exist/cancel", nil)
	rec := httptest.NewRecorder()
	s.mux().ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleListThreads_DefaultsToActiveOnly(t *testing.T) {
	s, root := newTestServer(t)
	writeDirective(t, root, "proj/list")

	body := `{"directive_id":"proj/list","capabilities":["*"]}`
	req := httptest.NewRequest(http.MethodPost, "/v1/threads/invoke", strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.mux().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	listReq := httptest.NewRequest(http.MethodGet, "/v1/threads", nil)
	listRec := httptest.NewRecorder()
	s.mux().ServeHTTP(listRec, listReq)
	require.Equal(t, http.StatusOK, listRec.Code)

	var listPayload map[string]any
	require.NoError(t, json.NewDecoder(listRec.Body).Decode(&listPayload))
	require.Empty(t, listPayload["threads"])

	allReq := httptest.NewRequest(http.MethodGet, "/v1/threads?all=true", nil)
	allRec := httptest.NewRecorder()
	s.mux().ServeHTTP(allRec, allReq)
	require.Equal(t, http.StatusOK, allRec.Code)

	var payload map[string]any
	require.NoError(t, json.NewDecoder(allRec.Body).Decode(&payload))
	threads, ok := payload["threads"].([]any)
	require.True(t, ok)
	require.Len(t, threads, 1)
}
