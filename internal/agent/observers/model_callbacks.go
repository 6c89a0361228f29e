package observers

import (
	"context"
	"strings"

	einocb "github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	callbackHelper "github.com/cloudwego/eino/utils/callbacks"

	agentmodel "github.com/zemestet/relaybot/internal/agent/model"
	errx "github.com/zemestet/relaybot/internal/core/error"
	logx "github.com/zemestet/relaybot/pkg/logger"
)

// newModelHandler builds a typed ModelCallbackHandler that logs completion calls,
// their token usage and estimated cost.
func newModelHandler() *callbackHelper.ModelCallbackHandler {
	return &callbackHelper.ModelCallbackHandler{
		OnStart: func(ctx context.Context, info *einocb.RunInfo, input *model.CallbackInput) context.Context {
			ev := logx.Ctx(ctx).Debug().Str("component", info.Name)
			if input != nil {
				ev = ev.Int("messages", len(input.Messages))
				if um := lastUserContent(input.Messages); um != "" {
					ev = ev.Str("user", firstLine(um))
				}
			}
			ev.Msg("completion start")
			return ctx
		},
		OnEnd: func(ctx context.Context, info *einocb.RunInfo, output *model.CallbackOutput) context.Context {
			if output == nil || output.Message == nil {
				return ctx
			}
			ev := logx.Ctx(ctx).Info().
				Str("component", info.Name).
				Int("reply_length", len([]rune(output.Message.Content)))

			var modelName string
			if output.Config != nil {
				modelName = output.Config.Model
				ev = ev.Str("model", modelName)
			}
			if meta := output.Message.ResponseMeta; meta != nil && meta.Usage != nil {
				in, out, total := agentmodel.ComputeCost(meta.Usage, agentmodel.ResolvePricing(modelName))
				ev = ev.
					Int("prompt_tokens", meta.Usage.PromptTokens).
					Int("completion_tokens", meta.Usage.CompletionTokens).
					Int("total_tokens", meta.Usage.TotalTokens).
					Float64("input_cost_usd", in).
					Float64("output_cost_usd", out).
					Float64("total_cost_usd", total)
			}
			ev.Msg("completion end")
			return ctx
		},
		OnError: func(ctx context.Context, info *einocb.RunInfo, err error) context.Context {
			errx.ReportTo(logx.Ctx(ctx), err).Str("component", info.Name).Msg("completion failed")
			return ctx
		},
	}
}

func lastUserContent(msgs []*schema.Message) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		m := msgs[i]
		if m == nil {
			continue
		}
		if m.Role == schema.User {
			return strings.TrimSpace(m.Content)
		}
	}
	return ""
}

// firstLine drops the context block appended to user messages.
func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
