package repo

import (
	"context"
	"sync"
	"time"

	"github.com/cloudwego/eino/schema"

	"github.com/zemestet/relaybot/internal/agent/model"
	logx "github.com/zemestet/relaybot/pkg/logger"
)

type entry struct {
	messages []*schema.Message
	touched  time.Time
}

// MemoryConversationRepository keeps rolling histories in process memory.
// Entries idle for longer than ttl are dropped on the next access; ttl <= 0 keeps them forever.
type MemoryConversationRepository struct {
	mu    sync.RWMutex
	items map[string]*entry
	ttl   time.Duration
	now   func() time.Time
}

func NewMemoryConversationRepository(ttl time.Duration) *MemoryConversationRepository {
	return &MemoryConversationRepository{
		items: make(map[string]*entry),
		ttl:   ttl,
		now:   time.Now,
	}
}

func (r *MemoryConversationRepository) expired(e *entry) bool {
	return r.ttl > 0 && r.now().Sub(e.touched) > r.ttl
}

func (r *MemoryConversationRepository) LoadHistory(ctx context.Context, conversationID string) (*model.ConversationHistory, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	e, ok := r.items[conversationID]
	stale := ok && r.expired(e)
	var msgs []*schema.Message
	if ok && !stale {
		msgs = cloneMessages(e.messages)
	}
	r.mu.RUnlock()

	if stale {
		r.mu.Lock()
		if cur, ok := r.items[conversationID]; ok && r.expired(cur) {
			delete(r.items, conversationID)
			logx.Debug().Str("conversationID", conversationID).Dur("ttl", r.ttl).Msg("dropped expired conversation history")
		}
		r.mu.Unlock()
	}
	if msgs == nil {
		msgs = []*schema.Message{}
	}
	return &model.ConversationHistory{ConversationID: conversationID, Messages: msgs}, nil
}

func (r *MemoryConversationRepository) SaveHistory(ctx context.Context, conversationID string, messages []*schema.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[conversationID] = &entry{messages: cloneMessages(messages), touched: r.now()}
	return nil
}

func (r *MemoryConversationRepository) ClearHistory(ctx context.Context, conversationID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.items, conversationID)
	return nil
}

func (r *MemoryConversationRepository) GetMessageCount(ctx context.Context, conversationID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.items[conversationID]
	if !ok || r.expired(e) {
		return 0, nil
	}
	return len(e.messages), nil
}

// cloneMessages copies the slice and the message values so callers cannot mutate stored history.
func cloneMessages(in []*schema.Message) []*schema.Message {
	out := make([]*schema.Message, 0, len(in))
	for _, m := range in {
		if m == nil {
			continue
		}
		c := *m
		out = append(out, &c)
	}
	return out
}

var _ model.ConversationRepository = (*MemoryConversationRepository)(nil)
