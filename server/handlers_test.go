package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var payload map[string]interface{}
	require.NoError(t, jsoniter.Unmarshal(w.Body.Bytes(), &payload))
	return payload
}

func assertValidation(t *testing.T, w *httptest.ResponseRecorder, fragment string) {
	t.Helper()
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	payload := decode(t, w)
	assert.Equal(t, "validation", payload["error"])
	assert.Contains(t, payload["message"], fragment)
	assert.NotEmpty(t, payload["request_id"])
}

func TestRootEndpoint(t *testing.T) {
	s := testServer()
	w := do(s, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, w.Code)
	payload := decode(t, w)
	assert.Equal(t, "ragent", payload["name"])
	assert.Equal(t, "1.2.3", payload["version"])
	assert.Equal(t, "/api/v1/health", payload["health"])
}

func TestHealthEndpoint(t *testing.T) {
	s := testServer()
	w := do(s, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", decode(t, w)["status"])
}

func TestUploadRequiresFile(t *testing.T) {
	s := testServer()
	w := do(s, httptest.NewRequest(http.MethodPost, "/api/v1/documents", nil))
	assertValidation(t, w, "file field is required")
}

func TestListDocumentsRejectsBadPagination(t *testing.T) {
	s := testServer()

	for _, query := range []string{"page=0", "page=abc", "page_size=0", "page_size=500"} {
		w := do(s, httptest.NewRequest(http.MethodGet, "/api/v1/documents?"+query, nil))
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code, query)
	}
}

func TestListDocumentsRejectsUnknownStatus(t *testing.T) {
	s := testServer()
	w := do(s, httptest.NewRequest(http.MethodGet, "/api/v1/documents?status=bogus", nil))
	assertValidation(t, w, "invalid status filter")
}

func TestSearchRequiresQuery(t *testing.T) {
	s := testServer()
	w := do(s, httptest.NewRequest(http.MethodPost, "/api/v1/documents/search", nil))
	assertValidation(t, w, "query parameter is required")
}

func TestSearchValidatesTopK(t *testing.T) {
	s := testServer()

	for _, topK := range []string{"0", "21", "abc"} {
		w := do(s, httptest.NewRequest(http.MethodPost, "/api/v1/documents/search?query=plan&top_k="+topK, nil))
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code, topK)
	}
}

func TestSearchValidatesDocumentIDs(t *testing.T) {
	s := testServer()
	w := do(s, httptest.NewRequest(http.MethodPost, "/api/v1/documents/search?query=plan&document_ids=not-a-uuid", nil))
	assertValidation(t, w, "Invalid document ID format")
}

func TestSearchValidatesSearchType(t *testing.T) {
	s := testServer()
	w := do(s, httptest.NewRequest(http.MethodPost, "/api/v1/documents/search?query=plan&search_type=fuzzy", nil))
	assertValidation(t, w, "invalid search_type")
}

func TestSearchDocumentsRequiresQuery(t *testing.T) {
	s := testServer()
	w := do(s, httptest.NewRequest(http.MethodPost, "/api/v1/documents/search/documents", nil))
	assertValidation(t, w, "query parameter is required")
}

func TestSendMessageRequiresContent(t *testing.T) {
	s := testServer()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/chats/c1/messages", strings.NewReader(`{"content":"   "}`))
	req.Header.Set("Content-Type", "application/json")

	w := do(s, req)
	assertValidation(t, w, "message content must not be empty")
}

func TestSendMessageRejectsBadJSON(t *testing.T) {
	s := testServer()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/chats/c1/messages", strings.NewReader(`{"content":`))
	req.Header.Set("Content-Type", "application/json")

	w := do(s, req)
	assertValidation(t, w, "invalid message payload")
}

func TestBranchRequiresName(t *testing.T) {
	s := testServer()

	for _, path := range []string{"/api/v1/chats/c1/branches", "/api/v1/chats/c1/branches/switch"} {
		req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(`{"branch_name":"  "}`))
		req.Header.Set("Content-Type", "application/json")
		w := do(s, req)
		assertValidation(t, w, "branch_name must not be empty")
	}
}

func TestHistoryValidatesMaxMessages(t *testing.T) {
	s := testServer()

	for _, max := range []string{"0", "101", "abc"} {
		w := do(s, httptest.NewRequest(http.MethodGet, "/api/v1/chats/c1/history?max_messages="+max, nil))
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code, max)
	}
}
