package channels

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/mymmrac/telego"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zemestet/relaybot/internal/agent/model"
	"github.com/zemestet/relaybot/internal/agent/pipeline"
)

type fakeSender struct {
	mu   sync.Mutex
	sent []*telego.SendMessageParams
	err  error
}

func (s *fakeSender) SendMessage(_ context.Context, params *telego.SendMessageParams) (*telego.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, params)
	return &telego.Message{}, s.err
}

type fakeHandler struct {
	messages []model.Update
	commands []string
}

func (h *fakeHandler) HandleMessage(_ context.Context, upd model.Update) pipeline.State {
	h.messages = append(h.messages, upd)
	return pipeline.StateDone
}

func (h *fakeHandler) HandleCommand(_ context.Context, upd model.Update, command string) pipeline.State {
	h.commands = append(h.commands, command)
	return pipeline.StateDone
}

func TestCommandName(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"/help", "/help"},
		{"/Help", "/help"},
		{"/clear@zemestetbot", "/clear"},
		{"  /commands extra args", "/commands"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, commandName(tt.text))
		})
	}
}

func TestTelegramUpdateMapping(t *testing.T) {
	upd := &telegramUpdate{message: telego.Message{
		Chat: telego.Chat{ID: 777},
		From: &telego.User{ID: 42, Username: "ann", FirstName: "Ann", LastName: "Lee", LanguageCode: "en"},
		Text: "hello",
	}}

	assert.Equal(t, int64(42), upd.UserID())
	assert.Equal(t, "ann", upd.Username())
	assert.Equal(t, "Ann", upd.FirstName())
	assert.Equal(t, "Lee", upd.LastName())
	assert.Equal(t, "en", upd.LanguageCode())
	assert.Equal(t, "hello", upd.Text())

	info := model.NewUserInfo(upd)
	assert.Equal(t, "Ann", info.DisplayName)
	assert.Equal(t, "Ann Lee", info.FullName)
}

func TestTelegramUpdateWithoutSender(t *testing.T) {
	upd := &telegramUpdate{message: telego.Message{Chat: telego.Chat{ID: 777}, Text: "hi"}}

	assert.Equal(t, int64(777), upd.UserID())
	assert.Empty(t, upd.Username())
	assert.Empty(t, upd.FirstName())

	info := model.NewUserInfo(upd)
	assert.Equal(t, "ID:777", info.DisplayName)
	assert.Equal(t, model.NotAvailable, info.Nickname)
}

func TestReplySendsToChat(t *testing.T) {
	s := &fakeSender{}
	upd := &telegramUpdate{sender: s, message: telego.Message{Chat: telego.Chat{ID: 777}}}

	require.NoError(t, upd.Reply(context.Background(), "answer"))
	require.Len(t, s.sent, 1)
	assert.Equal(t, int64(777), s.sent[0].ChatID.ID)
	assert.Equal(t, "answer", s.sent[0].Text)

	s.err = errors.New("forbidden")
	assert.Error(t, upd.Reply(context.Background(), "again"))
}

func TestRouting(t *testing.T) {
	h := &fakeHandler{}
	c := &TelegramChannel{sender: &fakeSender{}, handler: h}

	c.onCommand(context.Background(), telego.Message{Text: "/Clear@zemestetbot", Chat: telego.Chat{ID: 1}})
	c.onText(context.Background(), telego.Message{Text: "hello", Chat: telego.Chat{ID: 1}})
	c.onText(context.Background(), telego.Message{Text: "   ", Chat: telego.Chat{ID: 1}})

	assert.Equal(t, []string{"/clear"}, h.commands)
	require.Len(t, h.messages, 1)
	assert.Equal(t, "hello", h.messages[0].Text())
}

func TestTelegoLoggerRedactsToken(t *testing.T) {
	l := telegoLogger{token: "123:secret"}
	assert.Equal(t, "call https://api.telegram.org/botBOT_TOKEN/getMe", l.redact("call https://api.telegram.org/bot%s/getMe", "123:secret"))
}
