package retrieval

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"
	"sync"

	"support-agent/internal/message"
)

// ErrIndexMissing reports that the index snapshot has not been built yet.
// Callers treat this as degraded capability, not a failure.
var ErrIndexMissing = errors.New("retrieval: index missing")

type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float64, error)
}

// Entry is one indexed passage of site content, produced offline by the
// site's index builder and loaded here from a JSONL snapshot.
type Entry struct {
	ID     string    `json:"id"`
	Source string    `json:"source"`
	Text   string    `json:"text"`
	Vec    []float64 `json:"vec"`
}

type Service struct {
	embedder  Embedder
	indexPath string
	topK      int

	mu      sync.RWMutex
	entries []Entry
	loaded  bool
}

func NewService(embedder Embedder, indexPath string, topK int) *Service {
	if topK <= 0 {
		topK = 5
	}
	return &Service{
		embedder:  embedder,
		indexPath: strings.TrimSpace(indexPath),
		topK:      topK,
	}
}

// Load reads the JSONL snapshot into memory. A missing file surfaces
// ErrIndexMissing so the orchestrator can continue without retrieval.
func (s *Service) Load() error {
	if s.indexPath == "" {
		return ErrIndexMissing
	}
	f, err := os.Open(s.indexPath)
	if err != nil {
		if os.IsNotExist(err) {
			return ErrIndexMissing
		}
		return fmt.Errorf("open index %s: %w", s.indexPath, err)
	}
	defer f.Close()

	var entries []Entry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 256*1024), 4*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" {
			continue
		}
		var e Entry
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			return fmt.Errorf("parse index line %d: %w", line, err)
		}
		if e.ID == "" || len(e.Vec) == 0 {
			continue
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read index %s: %w", s.indexPath, err)
	}

	s.mu.Lock()
	s.entries = entries
	s.loaded = true
	s.mu.Unlock()
	return nil
}

func (s *Service) EntryCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// SearchText embeds the query and ranks index entries by cosine
// similarity, returning at most k citations.
func (s *Service) SearchText(ctx context.Context, query string, k int) ([]message.Citation, error) {
	if s.embedder == nil {
		return nil, errors.New("retrieval embedder is nil")
	}
	s.mu.RLock()
	loaded := s.loaded
	s.mu.RUnlock()
	if !loaded {
		if err := s.Load(); err != nil {
			return nil, err
		}
	}
	vecs, err := s.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return s.Search(ctx, vecs[0], k)
}

// Search ranks index entries against a precomputed query vector.
func (s *Service) Search(_ context.Context, vec []float64, k int) ([]message.Citation, error) {
	if k <= 0 {
		k = s.topK
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.loaded {
		return nil, ErrIndexMissing
	}

	scored := make([]message.Citation, 0, len(s.entries))
	for _, e := range s.entries {
		score := cosine(vec, e.Vec)
		if score <= 0 {
			continue
		}
		scored = append(scored, message.Citation{
			ID:      e.ID,
			Source:  e.Source,
			Score:   score,
			Content: e.Text,
		})
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	if len(scored) > k {
		scored = scored[:k]
	}
	return scored, nil
}

func cosine(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
