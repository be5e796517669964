// Package notify delivers attendance notifications to Slack and keeps
// evidence images on disk. Delivery is asynchronous and best-effort.
package notify

import (
	"time"

	"github.com/kozaktomas/attendance-cam/internal/constants"
)

// Kind classifies a message.
type Kind string

// Kind constants.
const (
	KindEntry    Kind = "entry"
	KindExit     Kind = "exit"
	KindAlert    Kind = "alert"
	KindEvidence Kind = "evidence"
)

// Message is one outbound notification.
type Message struct {
	Kind Kind
	User string
	Text string
}

// EntryMessage formats an entry notification.
func EntryMessage(user string, at time.Time) Message {
	return Message{Kind: KindEntry, User: user, Text: "+ " + user + " " + at.Format(constants.StatusTimeLayout)}
}

// ExitMessage formats an exit notification.
func ExitMessage(user string, at time.Time) Message {
	return Message{Kind: KindExit, User: user, Text: "- " + user + " " + at.Format(constants.StatusTimeLayout)}
}

// AlertMessage formats a system alert.
func AlertMessage(msg string) Message {
	return Message{Kind: KindAlert, Text: ":warning: [SYSTEM ALERT] " + msg}
}
