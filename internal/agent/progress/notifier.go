// Package progress keeps users informed while a long request is running.
package progress

import (
	"context"
	"fmt"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/sourcegraph/conc/panics"

	"github.com/zemestet/relaybot/internal/agent/completion"
	"github.com/zemestet/relaybot/internal/agent/metrics"
	"github.com/zemestet/relaybot/internal/agent/model"
	"github.com/zemestet/relaybot/internal/agent/prompts"
	errx "github.com/zemestet/relaybot/internal/core/error"
	logx "github.com/zemestet/relaybot/pkg/logger"
)

// Completer generates text for a prompt.
type Completer interface {
	Complete(ctx context.Context, messages []*schema.Message, opts ...completion.Option) (string, error)
}

// Notifier sends "still working" messages after a grace period and then at a
// fixed interval until the request it watches is done.
type Notifier struct {
	completer Completer
	grace     time.Duration
	interval  time.Duration
	notice    prompts.Notice
	recorder  metrics.Recorder
}

func NewNotifier(completer Completer, cfg model.ProgressConfig, recorder metrics.Recorder) *Notifier {
	if recorder == nil {
		recorder = metrics.Nop()
	}
	return &Notifier{
		completer: completer,
		grace:     cfg.GracePeriod,
		interval:  cfg.Interval,
		notice:    prompts.StatusNotice,
		recorder:  recorder,
	}
}

// Run blocks until done is closed, ctx is cancelled or a message cannot be
// delivered. It never panics.
func (n *Notifier) Run(ctx context.Context, done <-chan struct{}, r model.Replier) {
	var pc panics.Catcher
	pc.Try(func() { n.loop(ctx, done, r) })
	if rec := pc.Recovered(); rec != nil {
		logx.Ctx(ctx).Error().
			Str("panic", fmt.Sprint(rec.Value)).
			Str("stack", string(rec.Stack)).
			Msg("progress notifier panicked")
	}
}

func (n *Notifier) loop(ctx context.Context, done <-chan struct{}, r model.Replier) {
	timer := time.NewTimer(n.grace)
	defer timer.Stop()

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		text := n.generate(ctx)

		select {
		case <-done:
			logx.Ctx(ctx).Debug().Msg("request finished, dropping status message")
			return
		case <-ctx.Done():
			return
		default:
		}

		if err := r.Reply(ctx, text); err != nil {
			errx.ReportTo(logx.Ctx(ctx), errx.WrapSend(err)).Msg("status message not delivered")
			return
		}
		n.recorder.IncProgress()
		timer.Reset(n.interval)
	}
}

func (n *Notifier) generate(ctx context.Context) string {
	text, err := n.completer.Complete(ctx, n.notice.Messages(), completion.WithShortTimeout())
	if err != nil {
		if ctx.Err() == nil {
			errx.ReportTo(logx.Ctx(ctx), err).Msg("status message generation failed, using fallback")
		}
		return n.notice.Fallback
	}
	return text
}
