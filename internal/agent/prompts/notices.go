package prompts

import "github.com/cloudwego/eino/schema"

// Notice is a short message generated by the model with a static fallback
// used when generation fails.
type Notice struct {
	Instruction string
	Fallback    string
}

var (
	// StatusNotice is sent periodically while a long request is still running.
	StatusNotice = Notice{
		Instruction: "Write a short creative message telling the user that processing of their request is taking a while.",
		Fallback:    "Working on it...",
	}
	// BusyNotice answers a message sent while the previous one is still being processed.
	BusyNotice = Notice{
		Instruction: "The user sent another request while the previous one is still being processed. Politely tell them it is in progress.",
		Fallback:    "Your request is being processed...",
	}
	// ErrorNotice is sent when a request could not be answered.
	ErrorNotice = Notice{
		Instruction: "Write a short message telling the user that their request could not be processed.",
		Fallback:    "An error occurred",
	}
)

const (
	// CommandBusyText answers a command sent while a request is running.
	CommandBusyText = "Your request is already being processed..."
	// CommandFailedText is sent when the model could not answer a command.
	CommandFailedText = "Could not process the command"
	// ApologyText is sent when a request fails unexpectedly.
	ApologyText = "Sorry, something went wrong while processing your request. Please try again."
)

// Messages returns the prompt sent to the model to generate the notice.
func (n Notice) Messages() []*schema.Message {
	return []*schema.Message{schema.SystemMessage(n.Instruction)}
}
