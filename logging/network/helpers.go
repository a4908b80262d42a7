package network

import (
	"context"

	"buckaneers/server/logging"
)

const (
	// EventMessageIgnored is emitted when an inbound frame cannot be used.
	EventMessageIgnored logging.EventType = "network.message_ignored"
	// EventMailboxOverflow is emitted when a mailbox has to drop a message.
	EventMailboxOverflow logging.EventType = "network.mailbox_overflow"
)

// MessageIgnoredPayload describes why an inbound frame was skipped.
type MessageIgnoredPayload struct {
	Reason string `json:"reason"`
	Bytes  int    `json:"bytes"`
}

// MailboxOverflowPayload names the mailbox that overflowed.
type MailboxOverflowPayload struct {
	Mailbox  string `json:"mailbox"`
	Capacity int    `json:"capacity"`
}

// MessageIgnored publishes a debug event for a malformed or unknown message.
func MessageIgnored(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload MessageIgnoredPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	event := logging.Event{
		Type:     EventMessageIgnored,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityDebug,
		Category: logging.CategoryNetwork,
		Payload:  payload,
		Extra:    extra,
	}
	pub.Publish(ctx, event)
}

// MailboxOverflow publishes a warning when a mailbox drops a message.
func MailboxOverflow(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload MailboxOverflowPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	event := logging.Event{
		Type:     EventMailboxOverflow,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityWarn,
		Category: logging.CategoryNetwork,
		Payload:  payload,
		Extra:    extra,
	}
	pub.Publish(ctx, event)
}
