package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"support-agent/internal/message"
	"support-agent/internal/storage"
)

// Conversation is the persisted state of one support-chat session. Messages
// are append-only: the orchestrator adds exactly one user message up front
// and the rest (assistant/tool) as the turn progresses, then saves once.
type Conversation struct {
	ID        string            `json:"id"`
	Messages  []message.Message `json:"messages"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

type Manager struct {
	store storage.Store
}

func NewManager(store storage.Store) *Manager {
	return &Manager{store: store}
}

// Create starts a new conversation. An empty id mints a fresh one; a caller
// supplied id is trusted as-is (the web app may pre-allocate ids).
func (m *Manager) Create(ctx context.Context, id string) (Conversation, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		id = uuid.NewString()
	}
	now := time.Now().UTC()
	c := Conversation{
		ID:        id,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := m.Save(ctx, c); err != nil {
		return Conversation{}, err
	}
	return c, nil
}

func (m *Manager) Get(ctx context.Context, id string) (Conversation, error) {
	raw, err := m.store.LoadConversation(ctx, strings.TrimSpace(id))
	if err != nil {
		return Conversation{}, err
	}
	var c Conversation
	if err := json.Unmarshal(raw, &c); err != nil {
		return Conversation{}, fmt.Errorf("decode conversation: %w", err)
	}
	return c, nil
}

// Append adds a message in memory. Nothing is written until Save.
func (m *Manager) Append(c *Conversation, msg message.Message) {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	c.Messages = append(c.Messages, msg)
	c.UpdatedAt = time.Now().UTC()
}

func (m *Manager) Save(ctx context.Context, c Conversation) error {
	raw, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode conversation: %w", err)
	}
	return m.store.SaveConversation(ctx, c.ID, raw)
}

func (m *Manager) ListIDs(ctx context.Context, limit int) ([]string, error) {
	return m.store.ListConversationIDs(ctx, limit)
}
