// Package pipeline turns one inbound message into a sequence of replies.
package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"
	"github.com/sourcegraph/conc"

	"github.com/zemestet/relaybot/internal/agent/chunker"
	"github.com/zemestet/relaybot/internal/agent/completion"
	"github.com/zemestet/relaybot/internal/agent/conversations"
	"github.com/zemestet/relaybot/internal/agent/metrics"
	"github.com/zemestet/relaybot/internal/agent/model"
	"github.com/zemestet/relaybot/internal/agent/progress"
	"github.com/zemestet/relaybot/internal/agent/prompts"
	"github.com/zemestet/relaybot/internal/agent/registry"
	errx "github.com/zemestet/relaybot/internal/core/error"
	logx "github.com/zemestet/relaybot/pkg/logger"
)

const (
	kindMessage = "message"
	kindCommand = "command"
)

// Notifier reports progress to the user until done is closed.
type Notifier interface {
	Run(ctx context.Context, done <-chan struct{}, r model.Replier)
}

// Config wires a Pipeline. Recorder and Callbacks are optional.
type Config struct {
	Completer         progress.Completer
	History           *conversations.MessagesManager
	Registry          *registry.Registry[int64]
	Notifier          Notifier
	Bot               prompts.BotInfo
	Platform          string
	MaxResponseLength int
	Recorder          metrics.Recorder
	Callbacks         []callbacks.Handler
}

type Pipeline struct {
	completer progress.Completer
	history   *conversations.MessagesManager
	registry  *registry.Registry[int64]
	notifier  Notifier
	bot       prompts.BotInfo
	platform  string
	maxLen    int
	recorder  metrics.Recorder
	handlers  []callbacks.Handler
}

func New(cfg Config) *Pipeline {
	if cfg.Recorder == nil {
		cfg.Recorder = metrics.Nop()
	}
	if cfg.MaxResponseLength <= 0 {
		cfg.MaxResponseLength = chunker.TelegramLimit
	}
	return &Pipeline{
		completer: cfg.Completer,
		history:   cfg.History,
		registry:  cfg.Registry,
		notifier:  cfg.Notifier,
		bot:       cfg.Bot,
		platform:  cfg.Platform,
		maxLen:    cfg.MaxResponseLength,
		recorder:  cfg.Recorder,
		handlers:  cfg.Callbacks,
	}
}

// HandleMessage answers a text message and returns the final state. While a
// request of the same user is running the message is rejected with a busy notice.
func (p *Pipeline) HandleMessage(ctx context.Context, upd model.Update) State {
	user := model.NewUserInfo(upd)
	ctx = p.requestContext(ctx, kindMessage, user)
	logger := logx.Ctx(ctx)
	logger.Info().Str("text", upd.Text()).Msg("message received")

	enter(ctx, StateAcquiring)
	handle, ok := p.registry.Acquire(user.UserID)
	if !ok {
		p.recorder.IncBusy()
		logger.Info().Msg("previous request still running")
		p.sendNotice(ctx, upd, prompts.BusyNotice)
		return p.finish(ctx, kindMessage, StateBusy)
	}
	p.recorder.SetInFlight(p.registry.Len())

	// silence stops the notifier and waits for it, so no status message can
	// follow the answer.
	notifyCtx, stopNotify := context.WithCancel(ctx)
	notifierExited := make(chan struct{})
	silence := func() {
		stopNotify()
		<-notifierExited
	}
	state := StateError

	var wg conc.WaitGroup
	wg.Go(func() {
		defer close(notifierExited)
		p.notifier.Run(notifyCtx, handle.Done(), upd)
	})
	wg.Go(func() {
		defer p.release(user.UserID)
		defer silence()
		state = p.process(ctx, upd, user, silence)
	})
	if rec := wg.WaitAndRecover(); rec != nil {
		p.apologize(ctx, upd, rec.Value, rec.Stack)
		state = StateError
	}
	return p.finish(ctx, kindMessage, state)
}

// HandleCommand answers one of the bot commands. It shares the per-user
// registry with HandleMessage.
func (p *Pipeline) HandleCommand(ctx context.Context, upd model.Update, command string) State {
	command = strings.ToLower(strings.TrimSpace(command))
	user := model.NewUserInfo(upd)
	ctx = p.requestContext(ctx, kindCommand, user)
	logx.Ctx(ctx).Info().Str("command", command).Msg("command received")

	enter(ctx, StateAcquiring)
	if _, ok := p.registry.Acquire(user.UserID); !ok {
		p.recorder.IncBusy()
		p.reply(ctx, upd, prompts.CommandBusyText)
		return p.finish(ctx, kindCommand, StateBusy)
	}
	p.recorder.SetInFlight(p.registry.Len())

	state := StateError
	var wg conc.WaitGroup
	wg.Go(func() {
		defer p.release(user.UserID)
		state = p.command(ctx, upd, user, command)
	})
	if rec := wg.WaitAndRecover(); rec != nil {
		p.apologize(ctx, upd, rec.Value, rec.Stack)
		state = StateError
	}
	return p.finish(ctx, kindCommand, state)
}

func (p *Pipeline) process(ctx context.Context, upd model.Update, user model.UserInfo, silence func()) State {
	logger := logx.Ctx(ctx)

	enter(ctx, StateBuildingPrompt)
	systemPrompt, err := prompts.RenderSystemPrompt(ctx, p.bot, user)
	if err != nil {
		logger.Error().Err(err).Msg("system prompt not rendered")
		silence()
		p.sendNotice(ctx, upd, prompts.ErrorNotice)
		return StateError
	}
	conversationID := model.ConversationID(p.platform, user.UserID)
	input := prompts.UserMessage(strings.TrimSpace(upd.Text()), user, p.bot)
	messages, err := p.history.BuildPromptMessages(ctx, conversationID, systemPrompt, input)
	if err != nil {
		logger.Error().Err(err).Msg("prompt messages not built")
		silence()
		p.sendNotice(ctx, upd, prompts.ErrorNotice)
		return StateError
	}

	enter(ctx, StateCallingAPI)
	reply, err := p.completer.Complete(ctx, messages)
	silence()
	if err != nil {
		errx.ReportTo(logger, err).Msg("completion failed")
		p.sendNotice(ctx, upd, prompts.ErrorNotice)
		return StateError
	}

	enter(ctx, StateUpdatingHistory)
	if err := p.history.SaveTurn(ctx, conversationID, messages, reply); err != nil {
		logger.Error().Err(err).Msg("conversation history not updated")
	}

	return p.emit(ctx, upd, reply)
}

func (p *Pipeline) command(ctx context.Context, upd model.Update, user model.UserInfo, command string) State {
	logger := logx.Ctx(ctx)

	if _, ok := p.bot.Lookup(command); !ok {
		p.reply(ctx, upd, prompts.CommandFailedText)
		return StateError
	}
	if command == prompts.CommandCommands {
		return p.emit(ctx, upd, p.bot.CommandList())
	}
	if command == prompts.CommandClear {
		if err := p.history.Clear(ctx, model.ConversationID(p.platform, user.UserID)); err != nil {
			logger.Error().Err(err).Msg("conversation history not cleared")
		}
	}

	enter(ctx, StateBuildingPrompt)
	instruction, err := prompts.RenderCommandPrompt(ctx, p.bot, command)
	if err != nil {
		logger.Error().Err(err).Msg("command prompt not rendered")
		p.reply(ctx, upd, prompts.CommandFailedText)
		return StateError
	}

	enter(ctx, StateCallingAPI)
	reply, err := p.completer.Complete(ctx, commandMessages(instruction, command))
	if err != nil {
		errx.ReportTo(logger, err).Str("command", command).Msg("command completion failed")
		p.reply(ctx, upd, prompts.CommandFailedText)
		return StateError
	}
	return p.emit(ctx, upd, reply)
}

func (p *Pipeline) emit(ctx context.Context, upd model.Update, text string) State {
	enter(ctx, StateEmitting)
	chunks := chunker.Split(text, p.maxLen)
	for i, chunk := range chunks {
		if err := upd.Reply(ctx, chunk); err != nil {
			errx.ReportTo(logx.Ctx(ctx), errx.WrapSend(err)).
				Int("chunk", i+1).
				Int("chunks", len(chunks)).
				Msg("reply not delivered")
			return StateError
		}
	}
	logx.Ctx(ctx).Debug().Int("chunks", len(chunks)).Msg("reply sent")
	return StateDone
}

// sendNotice generates a short notice with the model and falls back to the
// static text when generation fails.
func (p *Pipeline) sendNotice(ctx context.Context, upd model.Update, notice prompts.Notice) {
	text, err := p.completer.Complete(ctx, notice.Messages(), completion.WithShortTimeout())
	if err != nil {
		errx.ReportTo(logx.Ctx(ctx), err).Msg("notice generation failed, using fallback")
		text = notice.Fallback
	}
	p.reply(ctx, upd, text)
}

func (p *Pipeline) reply(ctx context.Context, upd model.Update, text string) {
	if err := upd.Reply(ctx, text); err != nil {
		errx.ReportTo(logx.Ctx(ctx), errx.WrapSend(err)).Msg("reply not delivered")
	}
}

func (p *Pipeline) apologize(ctx context.Context, upd model.Update, value any, stack []byte) {
	err := errx.New(errx.KindUnknown, fmt.Errorf("panic: %v", value), errx.SystemErrorMessage)
	errx.ReportTo(logx.Ctx(ctx), err).Str("stack", string(stack)).Msg("request panicked")
	p.reply(ctx, upd, prompts.ApologyText)
}

func (p *Pipeline) release(userID int64) {
	p.registry.Release(userID)
	p.recorder.SetInFlight(p.registry.Len())
}

func (p *Pipeline) finish(ctx context.Context, kind string, state State) State {
	p.recorder.ObservePipeline(kind, string(state))
	logx.Ctx(ctx).Info().Str("state", string(state)).Msg("request finished")
	return state
}

func (p *Pipeline) requestContext(ctx context.Context, kind string, user model.UserInfo) context.Context {
	logger := logx.With().
		Str("request_id", uuid.NewString()).
		Int64("user_id", user.UserID).
		Str("request_kind", kind).
		Logger()
	ctx = logger.WithContext(ctx)
	return callbacks.InitCallbacks(ctx, &callbacks.RunInfo{Name: "Relay", Type: kind, Component: "Pipeline"}, p.handlers...)
}

func enter(ctx context.Context, state State) {
	logx.Ctx(ctx).Debug().Str("state", string(state)).Msg("pipeline state")
}

func commandMessages(instruction, command string) []*schema.Message {
	return []*schema.Message{
		schema.SystemMessage(instruction),
		schema.UserMessage(command),
	}
}
