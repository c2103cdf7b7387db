package retrieval

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

type stubEmbedder struct {
	vec []float64
	err error
}

func (s stubEmbedder) Embed(_ context.Context, texts []string) ([][]float64, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make([][]float64, len(texts))
	for i := range texts {
		out[i] = s.vec
	}
	return out, nil
}

func writeIndex(t *testing.T, entries []Entry) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "index.jsonl")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	for _, e := range entries {
		if err := enc.Encode(e); err != nil {
			t.Fatal(err)
		}
	}
	return path
}

func TestSearchTextRanksByCosine(t *testing.T) {
	path := writeIndex(t, []Entry{
		{ID: "a", Source: "/about", Text: "about us", Vec: []float64{0, 1}},
		{ID: "b", Source: "/events", Text: "upcoming events", Vec: []float64{1, 0}},
		{ID: "c", Source: "/blog", Text: "blog posts", Vec: []float64{0.7, 0.7}},
	})
	svc := NewService(stubEmbedder{vec: []float64{1, 0}}, path, 5)

	got, err := svc.SearchText(context.Background(), "events", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 citations, got %d", len(got))
	}
	if got[0].ID != "b" || got[1].ID != "c" {
		t.Fatalf("wrong ranking: %q then %q", got[0].ID, got[1].ID)
	}
	if got[0].Score <= got[1].Score {
		t.Fatalf("scores not descending: %v then %v", got[0].Score, got[1].Score)
	}
	if got[0].Content != "upcoming events" {
		t.Fatalf("snippet not carried: %q", got[0].Content)
	}
}

func TestSearchTextMissingIndex(t *testing.T) {
	svc := NewService(stubEmbedder{vec: []float64{1}}, filepath.Join(t.TempDir(), "absent.jsonl"), 5)
	if _, err := svc.SearchText(context.Background(), "anything", 3); !errors.Is(err, ErrIndexMissing) {
		t.Fatalf("expected ErrIndexMissing, got %v", err)
	}
}

func TestLoadSkipsBlankAndVectorlessLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.jsonl")
	raw := `{"id":"a","source":"/x","text":"x","vec":[1]}

{"id":"b","source":"/y","text":"no vector"}
{"id":"","source":"/z","text":"no id","vec":[1]}
{"id":"c","source":"/w","text":"w","vec":[0.5]}
`
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatal(err)
	}
	svc := NewService(stubEmbedder{vec: []float64{1}}, path, 5)
	if err := svc.Load(); err != nil {
		t.Fatal(err)
	}
	if svc.EntryCount() != 2 {
		t.Fatalf("expected 2 usable entries, got %d", svc.EntryCount())
	}
}

func TestLoadRejectsMalformedLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.jsonl")
	if err := os.WriteFile(path, []byte("{not json}\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	svc := NewService(stubEmbedder{}, path, 5)
	if err := svc.Load(); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestSearchEmptyIndexReturnsNothing(t *testing.T) {
	path := writeIndex(t, nil)
	svc := NewService(stubEmbedder{vec: []float64{1}}, path, 5)
	got, err := svc.SearchText(context.Background(), "anything", 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no citations, got %d", len(got))
	}
}
