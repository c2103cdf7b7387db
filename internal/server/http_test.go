package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"support-agent/internal/conversation"
	"support-agent/internal/llm"
	"support-agent/internal/moderation"
	"support-agent/internal/orchestrator"
	"support-agent/internal/storage"
	"support-agent/internal/tool"
)

type cannedProvider struct {
	resp llm.ChatResponse
}

func (p cannedProvider) Complete(context.Context, llm.ChatRequest) (llm.ChatResponse, error) {
	return p.resp, nil
}

type cannedModerator struct {
	flagged bool
}

func (m cannedModerator) Classify(context.Context, string) (moderation.Result, error) {
	return moderation.Result{Flagged: m.flagged}, nil
}

func newTestServer(t *testing.T, moderator moderation.Classifier, provider llm.Provider) (*httptest.Server, *conversation.Manager) {
	t.Helper()
	store, err := storage.NewBoltStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	manager := conversation.NewManager(store)
	orch := orchestrator.New(orchestrator.Options{MaxIterations: 5}, manager, moderator, tool.NewRegistry(), provider, zerolog.Nop())
	srv := httptest.NewServer(New(orch, zerolog.Nop()).Handler())
	t.Cleanup(srv.Close)
	return srv, manager
}

func postChat(t *testing.T, srv *httptest.Server, body string, headers map[string]string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/chat", strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var payload map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	return resp, payload
}

func TestChatHappyPath(t *testing.T) {
	srv, _ := newTestServer(t, cannedModerator{}, cannedProvider{resp: llm.ChatResponse{Content: "Hello visitor!"}})

	resp, payload := postChat(t, srv, `{"message":"hi there"}`, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Hello visitor!", payload["message"])
	assert.NotEmpty(t, payload["conversationId"])

	citations, ok := payload["citations"].([]any)
	require.True(t, ok, "citations must serialize as an array, got %T", payload["citations"])
	assert.Empty(t, citations)
}

func TestChatRejectsMalformedBodies(t *testing.T) {
	srv, _ := newTestServer(t, cannedModerator{}, cannedProvider{resp: llm.ChatResponse{Content: "unused"}})

	for name, body := range map[string]string{
		"empty message": `{"message":"   "}`,
		"unknown field": `{"message":"hi","bogus":true}`,
		"not json":      `{{{`,
		"two objects":   `{"message":"hi"}{"message":"again"}`,
	} {
		resp, payload := postChat(t, srv, body, nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, name)
		assert.NotEmpty(t, payload["error"], name)
	}
}

func TestChatModerationBlockIs403(t *testing.T) {
	srv, _ := newTestServer(t, cannedModerator{flagged: true}, cannedProvider{resp: llm.ChatResponse{Content: "unused"}})

	resp, payload := postChat(t, srv, `{"message":"something awful"}`, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Contains(t, payload["error"], "moderation")
}

func TestChatUnknownConversationIs404(t *testing.T) {
	srv, _ := newTestServer(t, cannedModerator{}, cannedProvider{resp: llm.ChatResponse{Content: "unused"}})

	resp, _ := postChat(t, srv, `{"message":"hi","conversationId":"no-such-id"}`, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestChatMethodNotAllowed(t *testing.T) {
	srv, _ := newTestServer(t, cannedModerator{}, cannedProvider{})

	resp, err := http.Get(srv.URL + "/api/chat")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestChatPassesUserHandleHeader(t *testing.T) {
	srv, manager := newTestServer(t, cannedModerator{}, cannedProvider{resp: llm.ChatResponse{Content: "hello @octocat"}})

	resp, payload := postChat(t, srv, `{"message":"hi","metadata":{"url":"https://site.example/events"}}`,
		map[string]string{"X-User-Handle": "octocat"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	conv, err := manager.Get(context.Background(), payload["conversationId"].(string))
	require.NoError(t, err)
	require.NotEmpty(t, conv.Messages)
	require.NotNil(t, conv.Messages[0].Metadata)
	assert.Equal(t, "https://site.example/events", conv.Messages[0].Metadata.URL)
}

func TestGetConversation(t *testing.T) {
	srv, _ := newTestServer(t, cannedModerator{}, cannedProvider{resp: llm.ChatResponse{Content: "hi"}})

	_, payload := postChat(t, srv, `{"message":"remember me"}`, nil)
	id := payload["conversationId"].(string)

	resp, err := http.Get(srv.URL + "/api/conversations/" + id)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var conv struct {
		ID       string `json:"id"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&conv))
	assert.Equal(t, id, conv.ID)
	require.Len(t, conv.Messages, 2)
	assert.Equal(t, "remember me", conv.Messages[0].Content)
}

func TestGetConversationNotFound(t *testing.T) {
	srv, _ := newTestServer(t, cannedModerator{}, cannedProvider{})

	resp, err := http.Get(srv.URL + "/api/conversations/absent")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestListConversations(t *testing.T) {
	srv, _ := newTestServer(t, cannedModerator{}, cannedProvider{resp: llm.ChatResponse{Content: "hi"}})

	_, first := postChat(t, srv, `{"message":"one"}`, nil)
	_, second := postChat(t, srv, `{"message":"two"}`, nil)

	resp, err := http.Get(srv.URL + "/api/conversations")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var payload struct {
		Conversations []string `json:"conversations"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	assert.Contains(t, payload.Conversations, first["conversationId"].(string))
	assert.Contains(t, payload.Conversations, second["conversationId"].(string))
}

func TestHealthAndMetrics(t *testing.T) {
	srv, _ := newTestServer(t, cannedModerator{}, cannedProvider{resp: llm.ChatResponse{Content: "hi"}})

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	_, _ = postChat(t, srv, `{"message":"count me"}`, nil)

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var metrics map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&metrics))
	assert.EqualValues(t, 1, metrics["turns_total"])
}