package tool

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"support-agent/internal/conversation"
	"support-agent/internal/message"
	"support-agent/internal/notify"
	"support-agent/internal/retrieval"
	"support-agent/internal/tracker"
)

type fakeTracker struct {
	lastReq tracker.IssueRequest
	ref     message.IssueRef
	err     error
}

func (f *fakeTracker) CreateIssue(_ context.Context, req tracker.IssueRequest) (message.IssueRef, error) {
	f.lastReq = req
	return f.ref, f.err
}

type fakeNotifier struct {
	lastReq notify.HandoffRequest
	err     error
	called  bool
}

func (f *fakeNotifier) Notify(_ context.Context, req notify.HandoffRequest) error {
	f.called = true
	f.lastReq = req
	return f.err
}

type fakeEmbedder struct {
	vec []float64
}

func (f fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i := range texts {
		out[i] = f.vec
	}
	return out, nil
}

func writeIndex(t *testing.T, entries []retrieval.Entry) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "index.jsonl")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	enc := json.NewEncoder(f)
	for _, e := range entries {
		require.NoError(t, enc.Encode(e))
	}
	return path
}

func TestSearchSiteReturnsCitations(t *testing.T) {
	path := writeIndex(t, []retrieval.Entry{
		{ID: "p1", Source: "/events", Text: "Upcoming meetups and events.", Vec: []float64{1, 0}},
		{ID: "p2", Source: "/about", Text: "Who we are.", Vec: []float64{0, 1}},
	})
	svc := retrieval.NewService(fakeEmbedder{vec: []float64{1, 0}}, path, 5)
	tl := NewSearchSite(svc, 5)

	res, err := tl.Run(context.Background(), Invocation{}, json.RawMessage(`{"query":"when is the next meetup"}`))
	require.NoError(t, err)

	assert.Contains(t, res.Output, `"success":true`)
	require.NotEmpty(t, res.Citations)
	assert.Equal(t, "p1", res.Citations[0].ID)
	assert.Equal(t, "/events", res.Citations[0].Source)
}

func TestSearchSiteDegradesWhenIndexMissing(t *testing.T) {
	svc := retrieval.NewService(fakeEmbedder{vec: []float64{1}}, filepath.Join(t.TempDir(), "nope.jsonl"), 5)
	tl := NewSearchSite(svc, 5)

	res, err := tl.Run(context.Background(), Invocation{}, json.RawMessage(`{"query":"anything at all"}`))
	require.NoError(t, err, "a missing index must not abort the turn")

	assert.Contains(t, res.Output, `"success":true`)
	assert.Contains(t, res.Output, "temporarily unavailable")
	assert.Empty(t, res.Citations)
}

func TestCreateIssueBuildsBodyAndReturnsRef(t *testing.T) {
	tr := &fakeTracker{ref: message.IssueRef{URL: "https://example.com/issues/42", Number: 42}}
	tl := NewCreateIssue(tr, "community-support-bot", []string{"bug", "support-agent"})

	inv := Invocation{
		Conversation: conversation.Conversation{ID: "conv-1"},
		Metadata:     message.Metadata{URL: "https://site.example/events", UserAgent: "Mozilla/5.0"},
		UserHandle:   "octocat",
	}
	res, err := tl.Run(context.Background(), inv, json.RawMessage(`{
		"title": "Signup button broken",
		"description": "Clicking signup on the events page does nothing at all.",
		"reproduction_steps": ["open /events", "click signup"],
		"severity": "high"
	}`))
	require.NoError(t, err)

	assert.Contains(t, res.Output, `"success":true`)
	assert.Contains(t, res.Output, "https://example.com/issues/42")
	require.NotNil(t, res.Issue)
	assert.Equal(t, 42, res.Issue.Number)

	assert.Equal(t, "Signup button broken", tr.lastReq.Title)
	assert.Equal(t, []string{"bug", "support-agent"}, tr.lastReq.Labels)
	assert.Contains(t, tr.lastReq.Body, "### Reproduction steps")
	assert.Contains(t, tr.lastReq.Body, "1. open /events")
	assert.Contains(t, tr.lastReq.Body, "2. click signup")
	assert.Contains(t, tr.lastReq.Body, "Severity: high")
	assert.Contains(t, tr.lastReq.Body, "Reported by: @octocat")
	assert.Contains(t, tr.lastReq.Body, "Page: https://site.example/events")
	assert.Contains(t, tr.lastReq.Body, "Conversation: conv-1")
}

func TestCreateIssueTrackerFailureDegrades(t *testing.T) {
	tr := &fakeTracker{err: errors.New("503 from tracker")}
	tl := NewCreateIssue(tr, "community-support-bot", nil)

	res, err := tl.Run(context.Background(), Invocation{}, json.RawMessage(`{
		"title": "Signup button broken",
		"description": "Clicking signup on the events page does nothing at all.",
		"reproduction_steps": ["open /events"]
	}`))
	require.NoError(t, err, "tracker outages must not abort the turn")

	assert.Contains(t, res.Output, `"success":false`)
	assert.Contains(t, res.Output, "503 from tracker")
	assert.Nil(t, res.Issue)
}

func TestCommunityListingFilesIssueWithTranscript(t *testing.T) {
	tr := &fakeTracker{ref: message.IssueRef{URL: "https://example.com/issues/7", Number: 7}}
	tl := NewCommunityListing(tr, "community-support-bot", "community-listing")

	inv := Invocation{Conversation: conversation.Conversation{
		ID: "conv-2",
		Messages: []message.Message{
			{Role: message.RoleUser, Content: "I want to list our garden club."},
		},
	}}
	res, err := tl.Run(context.Background(), inv, json.RawMessage(`{
		"name": "Garden Club",
		"summary": "A neighborhood gardening group.",
		"location": "Springfield",
		"contact_email": "club@example.com"
	}`))
	require.NoError(t, err)

	assert.Contains(t, res.Output, `"success":true`)
	require.NotNil(t, res.Issue)
	assert.Equal(t, 7, res.Issue.Number)

	assert.Equal(t, "Community listing: Garden Club", tr.lastReq.Title)
	assert.Equal(t, []string{"community-listing"}, tr.lastReq.Labels)
	assert.Contains(t, tr.lastReq.Body, "Contact: club@example.com")
	assert.Contains(t, tr.lastReq.Body, "garden club")
}

func TestNavigateSiteResolvesKeywordAndPath(t *testing.T) {
	tl := NewNavigateSite()

	res, err := tl.Run(context.Background(), Invocation{}, json.RawMessage(`{"target":"impact"}`))
	require.NoError(t, err)
	assert.Equal(t, "/impact", res.NavigateTo)

	res, err = tl.Run(context.Background(), Invocation{}, json.RawMessage(`{"path":"/blog/2026-recap"}`))
	require.NoError(t, err)
	assert.Equal(t, "/blog/2026-recap", res.NavigateTo)
}

func TestNavigateSiteRejectsUnknownAndEmpty(t *testing.T) {
	tl := NewNavigateSite()

	_, err := tl.Run(context.Background(), Invocation{}, json.RawMessage(`{"target":"warp drive"}`))
	assert.Error(t, err)

	_, err = tl.Run(context.Background(), Invocation{}, json.RawMessage(`{}`))
	assert.Error(t, err)

	_, err = tl.Run(context.Background(), Invocation{}, json.RawMessage(`{"target":"/admin/users"}`))
	assert.Error(t, err)
}

func TestHandoffToHumanRecordsReason(t *testing.T) {
	tl := NewHandoffToHuman()

	res, err := tl.Run(context.Background(), Invocation{}, json.RawMessage(`{"reason":"billing dispute"}`))
	require.NoError(t, err)

	assert.Equal(t, "billing dispute", res.HandoffReason)
	assert.False(t, res.HandoffSubmitted)
	assert.Contains(t, res.Output, "contact details")
}

func TestSubmitHandoffNotifiesWithAccumulatedReason(t *testing.T) {
	n := &fakeNotifier{}
	tl := NewSubmitHandoff(n)

	inv := Invocation{
		Conversation: conversation.Conversation{
			ID: "conv-3",
			Messages: []message.Message{
				{Role: message.RoleUser, Content: "I need a human."},
			},
		},
		Metadata:      message.Metadata{URL: "https://site.example/contact"},
		HandoffReason: "billing dispute",
	}
	res, err := tl.Run(context.Background(), inv, json.RawMessage(`{
		"contact": "visitor@example.com",
		"summary": "Needs help with a billing dispute"
	}`))
	require.NoError(t, err)

	assert.True(t, res.HandoffSubmitted)
	assert.Contains(t, res.Output, `"success":true`)
	require.True(t, n.called)
	assert.Equal(t, "visitor@example.com", n.lastReq.Contact)
	assert.Equal(t, "billing dispute", n.lastReq.Reason)
	assert.Contains(t, n.lastReq.Transcript, "I need a human.")
}

func TestSubmitHandoffNotifierFailureDegrades(t *testing.T) {
	n := &fakeNotifier{err: errors.New("webhook timeout")}
	tl := NewSubmitHandoff(n)

	res, err := tl.Run(context.Background(), Invocation{}, json.RawMessage(`{
		"contact": "visitor@example.com",
		"summary": "Needs help with something"
	}`))
	require.NoError(t, err)

	assert.False(t, res.HandoffSubmitted)
	assert.Contains(t, res.Output, `"success":false`)
	assert.Contains(t, res.Output, "webhook timeout")
}
