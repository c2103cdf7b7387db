package storage

import "context"

type Store interface {
	SaveConversation(ctx context.Context, conversationID string, data []byte) error
	LoadConversation(ctx context.Context, conversationID string) ([]byte, error)
	ListConversationIDs(ctx context.Context, limit int) ([]string, error)
}
