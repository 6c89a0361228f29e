package prompts

import (
	"fmt"
	"strings"

	"github.com/zemestet/relaybot/internal/agent/model"
)

const (
	CommandStart    = "/start"
	CommandClear    = "/clear"
	CommandHelp     = "/help"
	CommandCommands = "/commands"
)

// Command is one entry of the bot's command table. Instruction tells the model
// how to react; Summary is what users see in the command list.
type Command struct {
	Name        string
	Summary     string
	Instruction string
	Hidden      bool
}

// BotInfo is the static description of the bot. It is built once at start
// and only read afterwards.
type BotInfo struct {
	Name     string
	Nickname string
	Username string
	Creator  string
	Cost     string
	Location string
	Kind     string
	Purpose  string
	Features []string
	Answers  []string
	Commands []Command
}

var defaultCommands = []Command{
	{
		Name:        CommandStart,
		Summary:     "start talking to the bot",
		Instruction: "this command exists, but do not list it when the user asks about commands; on receiving it, greet the user and start working with them",
		Hidden:      true,
	},
	{
		Name:        CommandClear,
		Summary:     "forget the conversation history",
		Instruction: "on receiving it, forget all previous messages and do not rely on them in later answers; the chat history has been cleared",
	},
	{
		Name:        CommandHelp,
		Summary:     "how to use the bot",
		Instruction: "on receiving it, help the user use you: suggest the available commands and a couple of topics, and describe your capabilities",
	},
	{
		Name:        CommandCommands,
		Summary:     "list the available commands",
		Instruction: "on receiving it, list all your commands except /start",
	},
}

// NewBotInfo builds the bot description from configuration.
func NewBotInfo(cfg model.BotConfig) BotInfo {
	return BotInfo{
		Name:     cfg.Name,
		Nickname: cfg.Nickname,
		Username: cfg.Username,
		Creator:  cfg.Creator,
		Cost:     "free",
		Location: "Telegram",
		Kind:     "bot based on AI",
		Purpose:  "Answering requests through an AI completion API",
		Features: []string{
			"every message is answered by the AI",
			"adaptive answers",
			"remembers the recent conversation",
		},
		Answers: []string{
			"answers any question without a subjective opinion",
			"sends answers longer than the Telegram limit as several messages",
		},
		Commands: append([]Command(nil), defaultCommands...),
	}
}

// Lookup returns the command named name.
func (b BotInfo) Lookup(name string) (Command, bool) {
	for _, c := range b.Commands {
		if c.Name == name {
			return c, true
		}
	}
	return Command{}, false
}

// CommandNames lists all command names without the leading slash.
func (b BotInfo) CommandNames() []string {
	names := make([]string, 0, len(b.Commands))
	for _, c := range b.Commands {
		names = append(names, strings.TrimPrefix(c.Name, "/"))
	}
	return names
}

// CommandInstructions renders the command table for the model.
func (b BotInfo) CommandInstructions() string {
	lines := make([]string, 0, len(b.Commands))
	for _, c := range b.Commands {
		lines = append(lines, fmt.Sprintf("  • %s - %s", c.Name, c.Instruction))
	}
	return strings.Join(lines, "\n")
}

// CommandList renders the user-facing list of visible commands.
func (b BotInfo) CommandList() string {
	var sb strings.Builder
	sb.WriteString("Available commands:")
	for _, c := range b.Commands {
		if c.Hidden {
			continue
		}
		sb.WriteString("\n")
		sb.WriteString(c.Name)
		sb.WriteString(" - ")
		sb.WriteString(c.Summary)
	}
	return sb.String()
}

// Description is the one-paragraph summary used in prompts.
func (b BotInfo) Description() string {
	return fmt.Sprintf("%s. %s.", b.Purpose, strings.Join(b.Answers, "; "))
}
