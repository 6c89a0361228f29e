package conversations

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/schema"

	"github.com/zemestet/relaybot/internal/agent/model"
)

// DefaultMaxTurns is how many prior non-system messages survive a turn.
const DefaultMaxTurns = 9

type MessagesManager struct {
	conversationRepo model.ConversationRepository
	maxTurns         int
}

func NewMessagesManager(conversationRepo model.ConversationRepository, config model.ConversationConfig) *MessagesManager {
	maxTurns := config.MaxTurns
	if maxTurns <= 0 {
		maxTurns = DefaultMaxTurns
	}
	return &MessagesManager{
		conversationRepo: conversationRepo,
		maxTurns:         maxTurns,
	}
}

// BuildPromptMessages loads the rolling history, replaces any system message with
// systemPrompt at the head and appends the user message.
func (mm *MessagesManager) BuildPromptMessages(ctx context.Context, conversationID, systemPrompt, userContent string) ([]*schema.Message, error) {
	history, err := mm.conversationRepo.LoadHistory(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	messages := make([]*schema.Message, 0, len(history.Messages)+2)
	messages = append(messages, schema.SystemMessage(systemPrompt))
	messages = append(messages, withoutSystem(history.Messages)...)
	messages = append(messages, schema.UserMessage(userContent))
	return messages, nil
}

// SaveTurn stores the prompt messages of a finished turn, trimmed to the system
// message plus the last maxTurns entries, followed by the assistant reply.
func (mm *MessagesManager) SaveTurn(ctx context.Context, conversationID string, messages []*schema.Message, reply string) error {
	kept := trimHistory(messages, mm.maxTurns)
	kept = append(kept, schema.AssistantMessage(reply, nil))
	if err := mm.conversationRepo.SaveHistory(ctx, conversationID, kept); err != nil {
		return fmt.Errorf("save history: %w", err)
	}
	return nil
}

// Clear forgets the conversation.
func (mm *MessagesManager) Clear(ctx context.Context, conversationID string) error {
	if err := mm.conversationRepo.ClearHistory(ctx, conversationID); err != nil {
		return fmt.Errorf("clear history: %w", err)
	}
	return nil
}

// ====================== Helper function ======================

func withoutSystem(messages []*schema.Message) []*schema.Message {
	out := make([]*schema.Message, 0, len(messages))
	for _, msg := range messages {
		if msg == nil || msg.Role == schema.System {
			continue
		}
		out = append(out, msg)
	}
	return out
}

// trimHistory keeps the first system message (if any) at the head followed by
// the last maxTurns non-system messages.
func trimHistory(messages []*schema.Message, maxTurns int) []*schema.Message {
	var system *schema.Message
	for _, msg := range messages {
		if msg != nil && msg.Role == schema.System {
			system = msg
			break
		}
	}

	tail := trimTail(withoutSystem(messages), maxTurns)
	if system == nil {
		return tail
	}
	return append([]*schema.Message{system}, tail...)
}

func trimTail(messages []*schema.Message, maxTurns int) []*schema.Message {
	if len(messages) <= maxTurns {
		result := make([]*schema.Message, len(messages))
		copy(result, messages)
		return result
	}
	source := messages[len(messages)-maxTurns:]
	result := make([]*schema.Message, len(source))
	copy(result, source)
	return result
}
