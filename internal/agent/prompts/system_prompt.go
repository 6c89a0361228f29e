package prompts

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"

	"github.com/zemestet/relaybot/internal/agent/model"
)

//go:embed template/system_prompt.txt
var systemPromptTemplate string

//go:embed template/command_prompt.txt
var commandPromptTemplate string

// RenderSystemPrompt renders the system prompt for one request and triggers prompt callbacks.
func RenderSystemPrompt(ctx context.Context, bot BotInfo, user model.UserInfo) (string, error) {
	vars := map[string]any{
		"Name":            bot.Name,
		"Creator":         bot.Creator,
		"Username":        bot.Username,
		"Nickname":        bot.Nickname,
		"Link":            link(bot.Username),
		"Location":        bot.Location,
		"Kind":            bot.Kind,
		"Cost":            bot.Cost,
		"Description":     bot.Description(),
		"Features":        strings.Join(bot.Features, ", "),
		"Commands":        bot.CommandInstructions(),
		"UserDisplayName": user.DisplayName,
		"LanguageCode":    user.LanguageCode,
	}
	return render(ctx, "SystemPrompt", systemPromptTemplate, vars)
}

// RenderCommandPrompt renders the instruction sent as the user message for a bot command.
func RenderCommandPrompt(ctx context.Context, bot BotInfo, command string) (string, error) {
	vars := map[string]any{
		"Command":  command,
		"Commands": bot.CommandInstructions(),
		"Name":     bot.Name,
		"Username": bot.Username,
	}
	return render(ctx, "CommandPrompt", commandPromptTemplate, vars)
}

func render(ctx context.Context, name, tpl string, vars map[string]any) (string, error) {
	ctx = callbacks.ReuseHandlers(ctx, &callbacks.RunInfo{
		Name:      name,
		Type:      "GoTemplate",
		Component: components.ComponentOfPrompt,
	})

	msgs, err := prompt.FromMessages(schema.GoTemplate, schema.SystemMessage(tpl)).Format(ctx, vars)
	if err != nil {
		return "", fmt.Errorf("%s render: %w", name, err)
	}
	if len(msgs) == 0 || msgs[0] == nil {
		return "", fmt.Errorf("%s render: empty result", name)
	}
	return strings.TrimSpace(msgs[0].Content), nil
}

func link(username string) string {
	return "https://t.me/" + strings.TrimPrefix(username, "@")
}
