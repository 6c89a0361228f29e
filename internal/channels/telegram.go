package channels

import (
	"context"
	"fmt"
	"strings"

	"github.com/mymmrac/telego"
	th "github.com/mymmrac/telego/telegohandler"
	tu "github.com/mymmrac/telego/telegoutil"

	"github.com/zemestet/relaybot/internal/agent/model"
	"github.com/zemestet/relaybot/internal/agent/pipeline"
	logx "github.com/zemestet/relaybot/pkg/logger"
)

// Platform prefixes conversation ids of Telegram users.
const Platform = "telegram"

// Handler processes inbound messages and commands.
type Handler interface {
	HandleMessage(ctx context.Context, upd model.Update) pipeline.State
	HandleCommand(ctx context.Context, upd model.Update, command string) pipeline.State
}

type sender interface {
	SendMessage(ctx context.Context, params *telego.SendMessageParams) (*telego.Message, error)
}

type TelegramChannel struct {
	bot      *telego.Bot
	sender   sender
	handler  Handler
	commands []string
}

// NewTelegramChannel creates the bot client. commands are the command names
// (without the slash) routed to Handler.HandleCommand.
func NewTelegramChannel(token string, handler Handler, commands []string, opts ...telego.BotOption) (*TelegramChannel, error) {
	opts = append([]telego.BotOption{telego.WithLogger(telegoLogger{token: token})}, opts...)
	bot, err := telego.NewBot(token, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	return &TelegramChannel{
		bot:      bot,
		sender:   bot,
		handler:  handler,
		commands: commands,
	}, nil
}

// Run long-polls for updates until ctx is cancelled. Every update is handled
// in its own goroutine.
func (c *TelegramChannel) Run(ctx context.Context) error {
	logx.Info().Msg("Starting Telegram bot (polling mode)...")

	updates, err := c.bot.UpdatesViaLongPolling(ctx, &telego.GetUpdatesParams{
		Timeout: 30,
	})
	if err != nil {
		return fmt.Errorf("failed to start long polling: %w", err)
	}

	bh, err := th.NewBotHandler(c.bot, updates)
	if err != nil {
		return fmt.Errorf("failed to create bot handler: %w", err)
	}

	for _, name := range c.commands {
		bh.HandleMessage(func(hctx *th.Context, message telego.Message) error {
			c.onCommand(hctx, message)
			return nil
		}, th.CommandEqual(name))
	}
	bh.HandleMessage(func(hctx *th.Context, message telego.Message) error {
		c.onText(hctx, message)
		return nil
	}, th.AnyMessageWithText(), th.Not(th.AnyCommand()))

	go func() {
		<-ctx.Done()
		bh.Stop()
	}()

	logx.Info().Strs("commands", c.commands).Msg("Telegram bot connected")
	bh.Start()
	<-ctx.Done()
	logx.Info().Msg("Telegram bot stopped")
	return nil
}

func (c *TelegramChannel) onCommand(ctx context.Context, message telego.Message) {
	c.handler.HandleCommand(ctx, c.update(message), commandName(message.Text))
}

func (c *TelegramChannel) onText(ctx context.Context, message telego.Message) {
	if strings.TrimSpace(message.Text) == "" {
		return
	}
	c.handler.HandleMessage(ctx, c.update(message))
}

func (c *TelegramChannel) update(message telego.Message) *telegramUpdate {
	return &telegramUpdate{sender: c.sender, message: message}
}

// commandName extracts "/name" from "/Name@botname args".
func commandName(text string) string {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return ""
	}
	name, _, _ := strings.Cut(fields[0], "@")
	return strings.ToLower(name)
}

// telegramUpdate adapts a Telegram message to model.Update.
type telegramUpdate struct {
	sender  sender
	message telego.Message
}

func (u *telegramUpdate) UserID() int64 {
	if u.message.From == nil {
		return u.message.Chat.ID
	}
	return u.message.From.ID
}

func (u *telegramUpdate) Username() string {
	if u.message.From == nil {
		return ""
	}
	return u.message.From.Username
}

func (u *telegramUpdate) FirstName() string {
	if u.message.From == nil {
		return ""
	}
	return u.message.From.FirstName
}

func (u *telegramUpdate) LastName() string {
	if u.message.From == nil {
		return ""
	}
	return u.message.From.LastName
}

func (u *telegramUpdate) LanguageCode() string {
	if u.message.From == nil {
		return ""
	}
	return u.message.From.LanguageCode
}

func (u *telegramUpdate) Text() string {
	return u.message.Text
}

// Reply sends text as a plain message to the chat the update came from.
func (u *telegramUpdate) Reply(ctx context.Context, text string) error {
	_, err := u.sender.SendMessage(ctx, tu.Message(tu.ID(u.message.Chat.ID), text))
	return err
}

var _ model.Update = (*telegramUpdate)(nil)

// telegoLogger routes telego's client logs through zerolog with the token redacted.
type telegoLogger struct {
	token string
}

func (l telegoLogger) redact(format string, args ...any) string {
	msg := fmt.Sprintf(format, args...)
	if l.token != "" {
		msg = strings.ReplaceAll(msg, l.token, "BOT_TOKEN")
	}
	return msg
}

func (l telegoLogger) Debugf(format string, args ...any) {
	logx.Debug().Str("component", "telego").Msg(l.redact(format, args...))
}

func (l telegoLogger) Errorf(format string, args ...any) {
	logx.Error().Str("component", "telego").Msg(l.redact(format, args...))
}
