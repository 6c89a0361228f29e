package model

import (
	"context"
	"fmt"
	"strings"

	errx "github.com/zemestet/relaybot/internal/core/error"
	logx "github.com/zemestet/relaybot/pkg/logger"
)

// NotAvailable is the placeholder for user fields the platform did not provide.
const NotAvailable = "N/A"

// Replier sends one outbound message to the user an update came from.
type Replier interface {
	Reply(ctx context.Context, text string) error
}

// Update is the slice of an inbound platform event the relay needs.
type Update interface {
	Replier
	UserID() int64
	Username() string
	FirstName() string
	LastName() string
	LanguageCode() string
	Text() string
}

// UserInfo is the normalised view of the sender used for prompts and logs.
type UserInfo struct {
	UserID       int64
	DisplayName  string // first name > username > ID:<id>
	Nickname     string
	FirstName    string
	LastName     string
	FullName     string
	LanguageCode string
	MessageText  string
}

// NewUserInfo extracts UserInfo from u. Missing fields degrade to NotAvailable.
func NewUserInfo(u Update) UserInfo {
	if u == nil {
		errx.Report(errx.New(errx.KindUserInfo, nil, "update is nil")).Msg("user info unavailable")
		return UserInfo{
			DisplayName:  NotAvailable,
			Nickname:     NotAvailable,
			FirstName:    NotAvailable,
			LastName:     NotAvailable,
			FullName:     NotAvailable,
			LanguageCode: NotAvailable,
			MessageText:  NotAvailable,
		}
	}

	first := strings.TrimSpace(u.FirstName())
	last := strings.TrimSpace(u.LastName())
	username := strings.TrimSpace(u.Username())

	display := first
	if display == "" {
		display = username
	}
	if display == "" {
		display = fmt.Sprintf("ID:%d", u.UserID())
	}

	info := UserInfo{
		UserID:       u.UserID(),
		DisplayName:  display,
		Nickname:     orNA(username),
		FirstName:    orNA(first),
		LastName:     orNA(last),
		FullName:     orNA(strings.TrimSpace(first + " " + last)),
		LanguageCode: orNA(strings.TrimSpace(u.LanguageCode())),
		MessageText:  orNA(u.Text()),
	}
	if first == "" && username == "" {
		logx.Debug().Int64("user_id", info.UserID).Msg("user has neither first name nor username")
	}
	return info
}

func orNA(s string) string {
	if s == "" {
		return NotAvailable
	}
	return s
}
