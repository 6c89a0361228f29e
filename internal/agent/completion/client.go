// Package completion talks to an OpenAI-compatible chat completions endpoint.
package completion

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components"
	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/zemestet/relaybot/internal/agent/metrics"
	"github.com/zemestet/relaybot/internal/agent/model"
	errx "github.com/zemestet/relaybot/internal/core/error"
	logx "github.com/zemestet/relaybot/pkg/logger"
)

type options struct {
	maxTokens int
	short     bool
}

// Option tunes a single Complete call.
type Option func(*options)

// WithMaxTokens caps the length of the generated reply.
func WithMaxTokens(n int) Option {
	return func(o *options) { o.maxTokens = n }
}

// WithShortTimeout uses the short timeout, meant for notices.
func WithShortTimeout() Option {
	return func(o *options) { o.short = true }
}

// Client sends chat completion requests with fixed sampling parameters.
type Client struct {
	client   openai.Client
	cfg      model.CompletionConfig
	recorder metrics.Recorder
}

// NewClient builds a client for cfg. Retries are disabled; every call is bounded
// by one of the configured timeouts instead.
func NewClient(cfg model.CompletionConfig, recorder metrics.Recorder, opts ...option.RequestOption) *Client {
	if recorder == nil {
		recorder = metrics.Nop()
	}
	base := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithBaseURL(cfg.BaseURL),
		option.WithMaxRetries(0),
		option.WithJSONSet("stream", false),
	}
	return &Client{
		client:   openai.NewClient(append(base, opts...)...),
		cfg:      cfg,
		recorder: recorder,
	}
}

// Complete sends messages and returns the text of the first choice. Failures are
// *errx.AppError of kind api, empty_response, timeout or request. A call
// abandoned through ctx returns kind canceled and is neither recorded as a
// failure nor passed to OnError.
func (c *Client) Complete(ctx context.Context, messages []*schema.Message, opts ...Option) (reply string, err error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	ctx = callbacks.ReuseHandlers(ctx, &callbacks.RunInfo{
		Name:      "Completion",
		Type:      "OpenAICompatible",
		Component: components.ComponentOfChatModel,
	})
	cbConfig := &einomodel.Config{
		Model:       c.cfg.Model,
		MaxTokens:   o.maxTokens,
		Temperature: float32(c.cfg.Temperature),
		TopP:        float32(c.cfg.TopP),
	}
	ctx = callbacks.OnStart(ctx, &einomodel.CallbackInput{Messages: messages, Config: cbConfig})

	start := time.Now()
	var usage *schema.TokenUsage
	defer func() {
		if errx.IsKind(err, errx.KindCanceled) {
			logx.Ctx(ctx).Debug().Str("model", c.cfg.Model).Dur("elapsed", time.Since(start)).Msg("completion canceled")
			return
		}
		var kind string
		var cost float64
		if err != nil {
			kind = string(errx.KindOf(err))
			callbacks.OnError(ctx, err)
		} else if usage != nil {
			_, _, cost = model.ComputeCost(usage, model.ResolvePricing(c.cfg.Model))
		}
		var promptTokens, completionTokens int
		if usage != nil {
			promptTokens, completionTokens = usage.PromptTokens, usage.CompletionTokens
		}
		c.recorder.ObserveCompletion(c.cfg.Model, kind, promptTokens, completionTokens, cost, time.Since(start))
	}()

	params, err := c.buildParams(messages, o)
	if err != nil {
		return "", err
	}

	timeout := c.cfg.Timeout
	if o.short {
		timeout = c.cfg.ShortTimeout
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resp, err := c.client.Chat.Completions.New(callCtx, params)
	if err != nil {
		return "", classify(callCtx, err)
	}

	usage = &schema.TokenUsage{
		PromptTokens:     int(resp.Usage.PromptTokens),
		CompletionTokens: int(resp.Usage.CompletionTokens),
		TotalTokens:      int(resp.Usage.TotalTokens),
	}
	if len(resp.Choices) == 0 {
		return "", errx.EmptyResponse()
	}
	reply = strings.TrimSpace(resp.Choices[0].Message.Content)
	if reply == "" {
		return "", errx.EmptyResponse()
	}

	msg := schema.AssistantMessage(reply, nil)
	msg.ResponseMeta = &schema.ResponseMeta{
		FinishReason: string(resp.Choices[0].FinishReason),
		Usage:        usage,
	}
	callbacks.OnEnd(ctx, &einomodel.CallbackOutput{
		Message: msg,
		Config:  cbConfig,
		TokenUsage: &einomodel.TokenUsage{
			PromptTokens:     usage.PromptTokens,
			CompletionTokens: usage.CompletionTokens,
			TotalTokens:      usage.TotalTokens,
		},
	})
	logx.Ctx(ctx).Debug().Str("model", c.cfg.Model).Dur("elapsed", time.Since(start)).Msg("completion received")
	return reply, nil
}

func (c *Client) buildParams(messages []*schema.Message, o *options) (openai.ChatCompletionNewParams, error) {
	converted, err := convertMessages(messages)
	if err != nil {
		return openai.ChatCompletionNewParams{}, err
	}
	params := openai.ChatCompletionNewParams{
		Messages:         converted,
		Model:            openai.ChatModel(c.cfg.Model),
		Temperature:      openai.Float(c.cfg.Temperature),
		TopP:             openai.Float(c.cfg.TopP),
		FrequencyPenalty: openai.Float(c.cfg.FrequencyPenalty),
		PresencePenalty:  openai.Float(c.cfg.PresencePenalty),
	}
	if o.maxTokens > 0 {
		params.MaxTokens = openai.Int(int64(o.maxTokens))
	}
	return params, nil
}

func convertMessages(messages []*schema.Message) ([]openai.ChatCompletionMessageParamUnion, error) {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		if m == nil {
			continue
		}
		switch m.Role {
		case schema.System:
			out = append(out, openai.SystemMessage(m.Content))
		case schema.User:
			out = append(out, openai.UserMessage(m.Content))
		case schema.Assistant:
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			return nil, errx.WrapRequest(fmt.Errorf("unsupported message role %q", m.Role))
		}
	}
	if len(out) == 0 {
		return nil, errx.WrapRequest(errors.New("no messages to send"))
	}
	return out, nil
}

func classify(callCtx context.Context, err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return errx.WrapAPI(apiErr.StatusCode, err)
	}
	if errors.Is(callCtx.Err(), context.Canceled) {
		return errx.WrapCanceled(err)
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		return errx.WrapTimeout(err)
	}
	return errx.WrapRequest(err)
}
