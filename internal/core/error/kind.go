package errx

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Kind classifies failures by how they propagate.
type Kind string

const (
	KindConfig        Kind = "config"
	KindAPI           Kind = "api"
	KindEmptyResponse Kind = "empty_response"
	KindTimeout       Kind = "timeout"
	KindRequest       Kind = "request"
	KindCanceled      Kind = "canceled"
	KindUserInfo      Kind = "user_info"
	KindSend          Kind = "send"
	KindUnknown       Kind = "unknown"
)

// Details describes how a kind is reported.
type Details struct {
	Level       zerolog.Level
	Description string
	NotifyAdmin bool
}

var registry = map[Kind]Details{
	KindConfig:        {Level: zerolog.FatalLevel, Description: "configuration error", NotifyAdmin: true},
	KindAPI:           {Level: zerolog.ErrorLevel, Description: "completion api error", NotifyAdmin: true},
	KindEmptyResponse: {Level: zerolog.WarnLevel, Description: "empty completion response"},
	KindTimeout:       {Level: zerolog.ErrorLevel, Description: "completion request timeout", NotifyAdmin: true},
	KindRequest:       {Level: zerolog.ErrorLevel, Description: "completion request error", NotifyAdmin: true},
	KindCanceled:      {Level: zerolog.DebugLevel, Description: "completion canceled by caller"},
	KindUserInfo:      {Level: zerolog.WarnLevel, Description: "missing user info"},
	KindSend:          {Level: zerolog.ErrorLevel, Description: "message delivery error", NotifyAdmin: true},
	KindUnknown:       {Level: zerolog.ErrorLevel, Description: "unknown error", NotifyAdmin: true},
}

// DetailsOf returns the reporting details for kind, falling back to KindUnknown.
func DetailsOf(kind Kind) Details {
	if d, ok := registry[kind]; ok {
		return d
	}
	return registry[KindUnknown]
}

// Report starts a log event for err at the severity registered for its kind.
// The caller adds context fields and calls Msg.
func Report(err error) *zerolog.Event {
	return ReportTo(&log.Logger, err)
}

// ReportTo is Report against a specific logger.
func ReportTo(logger *zerolog.Logger, err error) *zerolog.Event {
	kind := KindOf(err)
	d := DetailsOf(kind)
	ev := logger.WithLevel(d.Level).
		Err(err).
		Str("error_kind", string(kind)).
		Str("error_description", d.Description)
	if d.NotifyAdmin {
		ev = ev.Bool("notify_admin", true)
	}
	if status := StatusOf(err); status != 0 {
		ev = ev.Int("status", status)
	}
	return ev
}
