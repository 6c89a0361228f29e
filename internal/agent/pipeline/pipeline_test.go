package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zemestet/relaybot/internal/agent/completion"
	"github.com/zemestet/relaybot/internal/agent/conversations"
	"github.com/zemestet/relaybot/internal/agent/metrics"
	"github.com/zemestet/relaybot/internal/agent/model"
	"github.com/zemestet/relaybot/internal/agent/progress"
	"github.com/zemestet/relaybot/internal/agent/prompts"
	"github.com/zemestet/relaybot/internal/agent/registry"
	"github.com/zemestet/relaybot/internal/agent/repo"
	errx "github.com/zemestet/relaybot/internal/core/error"
)

// ====================== fakes ======================

type fakeUpdate struct {
	id       int64
	text     string
	replyErr error

	mu      sync.Mutex
	replies []string
}

func newUpdate(id int64, text string) *fakeUpdate {
	return &fakeUpdate{id: id, text: text}
}

func (u *fakeUpdate) UserID() int64        { return u.id }
func (u *fakeUpdate) Username() string     { return "ann" }
func (u *fakeUpdate) FirstName() string    { return "Ann" }
func (u *fakeUpdate) LastName() string     { return "" }
func (u *fakeUpdate) LanguageCode() string { return "en" }
func (u *fakeUpdate) Text() string         { return u.text }

func (u *fakeUpdate) Reply(_ context.Context, text string) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.replies = append(u.replies, text)
	return u.replyErr
}

func (u *fakeUpdate) Replies() []string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]string(nil), u.replies...)
}

type completerFunc func(ctx context.Context, messages []*schema.Message, opts ...completion.Option) (string, error)

func (f completerFunc) Complete(ctx context.Context, messages []*schema.Message, opts ...completion.Option) (string, error) {
	return f(ctx, messages, opts...)
}

// scripted answers notices with fixed texts and everything else with main.
func scripted(main func(messages []*schema.Message) (string, error)) completerFunc {
	return func(_ context.Context, messages []*schema.Message, _ ...completion.Option) (string, error) {
		if len(messages) == 1 {
			switch messages[0].Content {
			case prompts.StatusNotice.Instruction:
				return "hang on", nil
			case prompts.BusyNotice.Instruction:
				return "still busy", nil
			case prompts.ErrorNotice.Instruction:
				return "", errors.New("notice unavailable")
			}
		}
		return main(messages)
	}
}

type fakeRecorder struct {
	metrics.NoopRecorder

	mu     sync.Mutex
	busy   int
	states []string
}

func (r *fakeRecorder) IncBusy() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.busy++
}

func (r *fakeRecorder) ObservePipeline(_, state string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, state)
}

type fixture struct {
	pipeline *Pipeline
	registry *registry.Registry[int64]
	repo     *repo.MemoryConversationRepository
	recorder *fakeRecorder
}

func newFixture(c progress.Completer, progressCfg model.ProgressConfig) *fixture {
	r := repo.NewMemoryConversationRepository(0)
	reg := registry.New[int64]()
	rec := &fakeRecorder{}
	p := New(Config{
		Completer: c,
		History:   conversations.NewMessagesManager(r, model.ConversationConfig{MaxTurns: 9}),
		Registry:  reg,
		Notifier:  progress.NewNotifier(c, progressCfg, rec),
		Bot: prompts.NewBotInfo(model.BotConfig{
			Name:     "zemest",
			Nickname: "zemestet",
			Username: "@zemestetbot",
			Creator:  "zlaco",
		}),
		Platform:          "telegram",
		MaxResponseLength: 4096,
		Recorder:          rec,
	})
	return &fixture{pipeline: p, registry: reg, repo: r, recorder: rec}
}

var quiet = model.ProgressConfig{GracePeriod: time.Hour, Interval: time.Hour}

// ====================== messages ======================

func TestHelloEndToEnd(t *testing.T) {
	var seen []*schema.Message
	f := newFixture(scripted(func(messages []*schema.Message) (string, error) {
		seen = messages
		return "Hi Ann!", nil
	}), quiet)

	upd := newUpdate(1, "hello")
	state := f.pipeline.HandleMessage(context.Background(), upd)

	assert.Equal(t, StateDone, state)
	assert.Equal(t, []string{"Hi Ann!"}, upd.Replies())
	assert.Zero(t, f.registry.Len())

	require.Len(t, seen, 2)
	assert.Equal(t, schema.System, seen[0].Role)
	assert.Contains(t, seen[0].Content, "User: Ann")
	assert.True(t, strings.HasPrefix(seen[1].Content, "hello\n\nContext:\n"))

	h, err := f.repo.LoadHistory(context.Background(), "telegram:1")
	require.NoError(t, err)
	require.Len(t, h.Messages, 3)
	assert.Equal(t, schema.Assistant, h.Messages[2].Role)
	assert.Equal(t, "Hi Ann!", h.Messages[2].Content)
	assert.Equal(t, []string{string(StateDone)}, f.recorder.states)
}

func TestConcurrentMessageIsRejected(t *testing.T) {
	unblock := make(chan struct{})
	f := newFixture(scripted(func([]*schema.Message) (string, error) {
		<-unblock
		return "first answer", nil
	}), quiet)

	first := newUpdate(1, "slow question")
	finished := make(chan State, 1)
	go func() { finished <- f.pipeline.HandleMessage(context.Background(), first) }()
	require.Eventually(t, func() bool { return f.registry.IsActive(1) }, 2*time.Second, 5*time.Millisecond)

	second := newUpdate(1, "are you there?")
	assert.Equal(t, StateBusy, f.pipeline.HandleMessage(context.Background(), second))
	assert.Equal(t, []string{"still busy"}, second.Replies())
	assert.Equal(t, 1, f.registry.Len())

	close(unblock)
	assert.Equal(t, StateDone, <-finished)
	assert.Equal(t, []string{"first answer"}, first.Replies())
	assert.Zero(t, f.registry.Len())
	assert.Equal(t, 1, f.recorder.busy)
}

func TestDifferentUsersRunInParallel(t *testing.T) {
	unblock := make(chan struct{})
	f := newFixture(scripted(func([]*schema.Message) (string, error) {
		<-unblock
		return "ok", nil
	}), quiet)

	var wg sync.WaitGroup
	states := make([]State, 2)
	for i := range states {
		wg.Add(1)
		go func() {
			defer wg.Done()
			states[i] = f.pipeline.HandleMessage(context.Background(), newUpdate(int64(i+1), "q"))
		}()
	}
	require.Eventually(t, func() bool { return f.registry.Len() == 2 }, 2*time.Second, 5*time.Millisecond)
	close(unblock)
	wg.Wait()

	assert.Equal(t, []State{StateDone, StateDone}, states)
}

func TestCompletionFailureSendsErrorNotice(t *testing.T) {
	f := newFixture(scripted(func([]*schema.Message) (string, error) {
		return "", errx.WrapAPI(500, errors.New("upstream down"))
	}), quiet)

	upd := newUpdate(1, "hello")
	state := f.pipeline.HandleMessage(context.Background(), upd)

	assert.Equal(t, StateError, state)
	assert.Equal(t, []string{prompts.ErrorNotice.Fallback}, upd.Replies())
	assert.Zero(t, f.registry.Len())

	n, err := f.repo.GetMessageCount(context.Background(), "telegram:1")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestLongReplyIsChunked(t *testing.T) {
	long := strings.Repeat("word ", 1000)
	f := newFixture(scripted(func([]*schema.Message) (string, error) {
		return long, nil
	}), quiet)

	upd := newUpdate(1, "tell me a lot")
	require.Equal(t, StateDone, f.pipeline.HandleMessage(context.Background(), upd))

	replies := upd.Replies()
	require.Len(t, replies, 2)
	for _, r := range replies {
		assert.LessOrEqual(t, utf8.RuneCountInString(r), 4096)
		assert.NotEmpty(t, r)
	}
	assert.Equal(t, strings.ReplaceAll(long, " ", ""), strings.ReplaceAll(strings.Join(replies, ""), " ", ""))
}

func TestHistoryIsTrimmedAcrossRuns(t *testing.T) {
	f := newFixture(scripted(func(messages []*schema.Message) (string, error) {
		return "answer", nil
	}), quiet)

	for i := 0; i < 8; i++ {
		require.Equal(t, StateDone, f.pipeline.HandleMessage(context.Background(), newUpdate(1, "question")))
	}

	h, err := f.repo.LoadHistory(context.Background(), "telegram:1")
	require.NoError(t, err)
	require.Len(t, h.Messages, 11)
	assert.Equal(t, schema.System, h.Messages[0].Role)
	for _, m := range h.Messages[1:] {
		assert.NotEqual(t, schema.System, m.Role)
	}
}

func TestProgressMessagesWhileWaiting(t *testing.T) {
	unblock := make(chan struct{})
	f := newFixture(scripted(func([]*schema.Message) (string, error) {
		<-unblock
		return "final", nil
	}), model.ProgressConfig{GracePeriod: 10 * time.Millisecond, Interval: 20 * time.Millisecond})

	upd := newUpdate(1, "slow")
	finished := make(chan State, 1)
	go func() { finished <- f.pipeline.HandleMessage(context.Background(), upd) }()

	require.Eventually(t, func() bool { return len(upd.Replies()) >= 2 }, 2*time.Second, 5*time.Millisecond)
	close(unblock)
	require.Equal(t, StateDone, <-finished)

	replies := upd.Replies()
	assert.Equal(t, "final", replies[len(replies)-1])
	for _, r := range replies[:len(replies)-1] {
		assert.Equal(t, "hang on", r)
	}

	time.Sleep(60 * time.Millisecond)
	assert.Len(t, upd.Replies(), len(replies))
}

func TestPanicIsRecovered(t *testing.T) {
	f := newFixture(scripted(func([]*schema.Message) (string, error) {
		panic("boom")
	}), quiet)

	upd := newUpdate(1, "hello")
	var state State
	require.NotPanics(t, func() { state = f.pipeline.HandleMessage(context.Background(), upd) })

	assert.Equal(t, StateError, state)
	assert.Equal(t, []string{prompts.ApologyText}, upd.Replies())
	assert.Zero(t, f.registry.Len())
}

func TestSendFailureEndsInError(t *testing.T) {
	f := newFixture(scripted(func([]*schema.Message) (string, error) {
		return "answer", nil
	}), quiet)

	upd := newUpdate(1, "hello")
	upd.replyErr = errors.New("bot was blocked by the user")

	assert.Equal(t, StateError, f.pipeline.HandleMessage(context.Background(), upd))
	assert.Zero(t, f.registry.Len())
}

// ====================== commands ======================

func TestCommandsListIsStatic(t *testing.T) {
	f := newFixture(completerFunc(func(context.Context, []*schema.Message, ...completion.Option) (string, error) {
		t.Error("completion must not be called for /commands")
		return "", nil
	}), quiet)

	upd := newUpdate(1, "/commands")
	assert.Equal(t, StateDone, f.pipeline.HandleCommand(context.Background(), upd, "/Commands "))
	require.Len(t, upd.Replies(), 1)
	assert.True(t, strings.HasPrefix(upd.Replies()[0], "Available commands:"))
	assert.Zero(t, f.registry.Len())
}

func TestClearCommandForgetsHistory(t *testing.T) {
	var seen []*schema.Message
	f := newFixture(scripted(func(messages []*schema.Message) (string, error) {
		seen = messages
		return "history cleared", nil
	}), quiet)
	ctx := context.Background()
	require.NoError(t, f.repo.SaveHistory(ctx, "telegram:1", []*schema.Message{schema.UserMessage("old")}))

	upd := newUpdate(1, "/clear")
	assert.Equal(t, StateDone, f.pipeline.HandleCommand(ctx, upd, "/clear"))
	assert.Equal(t, []string{"history cleared"}, upd.Replies())

	n, err := f.repo.GetMessageCount(ctx, "telegram:1")
	require.NoError(t, err)
	assert.Zero(t, n)

	require.Len(t, seen, 2)
	assert.Contains(t, seen[0].Content, "The user entered the command: /clear")
	assert.Equal(t, "/clear", seen[1].Content)
}

func TestCommandFailureFallsBack(t *testing.T) {
	f := newFixture(scripted(func([]*schema.Message) (string, error) {
		return "", errx.EmptyResponse()
	}), quiet)

	upd := newUpdate(1, "/help")
	assert.Equal(t, StateError, f.pipeline.HandleCommand(context.Background(), upd, "/help"))
	assert.Equal(t, []string{prompts.CommandFailedText}, upd.Replies())
}

func TestUnknownCommand(t *testing.T) {
	f := newFixture(scripted(func([]*schema.Message) (string, error) {
		return "should not be used", nil
	}), quiet)

	upd := newUpdate(1, "/nope")
	assert.Equal(t, StateError, f.pipeline.HandleCommand(context.Background(), upd, "/nope"))
	assert.Equal(t, []string{prompts.CommandFailedText}, upd.Replies())
}

func TestCommandWhileBusy(t *testing.T) {
	f := newFixture(scripted(func([]*schema.Message) (string, error) {
		return "x", nil
	}), quiet)
	_, ok := f.registry.Acquire(1)
	require.True(t, ok)

	upd := newUpdate(1, "/help")
	assert.Equal(t, StateBusy, f.pipeline.HandleCommand(context.Background(), upd, "/help"))
	assert.Equal(t, []string{prompts.CommandBusyText}, upd.Replies())
	assert.True(t, f.registry.IsActive(1))
}

func TestStateFinal(t *testing.T) {
	for _, s := range []State{StateDone, StateError, StateBusy} {
		assert.True(t, s.Final(), s)
	}
	for _, s := range []State{StateIdle, StateAcquiring, StateBuildingPrompt, StateCallingAPI, StateUpdatingHistory, StateEmitting} {
		assert.False(t, s.Final(), s)
	}
}
