package model

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/schema"
)

type ConversationRepository interface {
	// LoadHistory retrieves the rolling history for a conversation
	LoadHistory(ctx context.Context, conversationID string) (*ConversationHistory, error)

	// SaveHistory replaces the rolling history for a conversation
	SaveHistory(ctx context.Context, conversationID string, messages []*schema.Message) error

	// ClearHistory removes all history for a conversation
	ClearHistory(ctx context.Context, conversationID string) error

	// GetMessageCount returns the number of messages in the conversation
	GetMessageCount(ctx context.Context, conversationID string) (int, error)
}

// ConversationHistory represents loaded conversation data with metadata.
type ConversationHistory struct {
	ConversationID string
	Messages       []*schema.Message
}

// ConversationID is the history key for a platform user.
func ConversationID(platform string, userID int64) string {
	return fmt.Sprintf("%s:%d", platform, userID)
}
