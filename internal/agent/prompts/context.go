package prompts

import (
	"fmt"
	"strings"

	"github.com/zemestet/relaybot/internal/agent/model"
)

// ContextBlock formats what is known about the user and the bot. It is appended
// to every user message so the model can personalise the answer.
func ContextBlock(user model.UserInfo, bot BotInfo) string {
	username := user.Nickname
	if username != model.NotAvailable {
		username = "@" + strings.TrimPrefix(username, "@")
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "First name: %s\n", user.FirstName)
	fmt.Fprintf(&sb, "Username: %s\n", username)
	fmt.Fprintf(&sb, "ID: %d\n", user.UserID)
	fmt.Fprintf(&sb, "Last name: %s\n", user.LastName)
	fmt.Fprintf(&sb, "Language: %s\n", user.LanguageCode)
	fmt.Fprintf(&sb, "Bot: %s (%s). %s", bot.Name, bot.Username, bot.Description())
	return sb.String()
}

// UserMessage is the content of the user turn sent to the model.
func UserMessage(input string, user model.UserInfo, bot BotInfo) string {
	return input + "\n\nContext:\n" + ContextBlock(user, bot)
}
