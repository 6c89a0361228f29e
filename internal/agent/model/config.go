package model

import (
	"fmt"
	"net/url"
	"time"

	errx "github.com/zemestet/relaybot/internal/core/error"
)

// ================ Config ================

// CompletionConfig describes the OpenAI-compatible completion endpoint and its fixed sampling parameters.
type CompletionConfig struct {
	APIKey           string        `envconfig:"AI_API_KEY" required:"true"`
	BaseURL          string        `envconfig:"AI_API_URL" default:"https://openrouter.ai/api/v1/"`
	Model            string        `envconfig:"AI_MODEL" default:"openai/gpt-3.5-turbo"`
	Temperature      float64       `envconfig:"AI_TEMPERATURE" default:"1.2"`
	TopP             float64       `envconfig:"AI_TOP_P" default:"1.0"`
	FrequencyPenalty float64       `envconfig:"AI_FREQUENCY_PENALTY" default:"1.5"`
	PresencePenalty  float64       `envconfig:"AI_PRESENCE_PENALTY" default:"0.8"`
	Timeout          time.Duration `envconfig:"AI_TIMEOUT" default:"60s"`
	ShortTimeout     time.Duration `envconfig:"AI_SHORT_TIMEOUT" default:"10s"`
}

// Validate checks the endpoint URL and both timeouts.
func (c CompletionConfig) Validate() error {
	if c.APIKey == "" {
		return errx.Config("missing AI_API_KEY", nil)
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return errx.Config(fmt.Sprintf("invalid AI_API_URL %q", c.BaseURL), err)
	}
	if u.Scheme == "" || u.Host == "" {
		return errx.Config(fmt.Sprintf("invalid AI_API_URL %q", c.BaseURL), nil)
	}
	if c.Timeout <= 0 || c.ShortTimeout <= 0 {
		return errx.Config("timeouts must be > 0", nil)
	}
	return nil
}

// ProgressConfig controls the "still working" notifier.
type ProgressConfig struct {
	GracePeriod time.Duration `envconfig:"PROGRESS_GRACE_PERIOD" default:"5s"`
	Interval    time.Duration `envconfig:"PROGRESS_INTERVAL" default:"15s"`
}

func (c ProgressConfig) Validate() error {
	if c.GracePeriod < 0 || c.Interval <= 0 {
		return errx.Config("progress grace period must be >= 0 and interval > 0", nil)
	}
	return nil
}

type ConversationConfig struct {
	TTL      string `envconfig:"CONVERSATION_TTL" default:"24h"`
	MaxTurns int    `envconfig:"CONVERSATION_MAX_TURNS" default:"9"`
}

func (c ConversationConfig) Validate() error {
	if _, err := time.ParseDuration(c.TTL); err != nil {
		return errx.Config(fmt.Sprintf("invalid CONVERSATION_TTL %q", c.TTL), err)
	}
	if c.MaxTurns <= 0 {
		return errx.Config("CONVERSATION_MAX_TURNS must be > 0", nil)
	}
	return nil
}

// BotConfig carries the static identity used in the system prompt.
type BotConfig struct {
	Name     string `envconfig:"BOT_NAME" default:"zemest"`
	Nickname string `envconfig:"BOT_NICKNAME" default:"zemestet"`
	Username string `envconfig:"BOT_USERNAME" default:"@zemestetbot"`
	Creator  string `envconfig:"BOT_CREATOR" default:"zlaco"`
}
