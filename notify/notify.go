// Package notify tells operators when task runs finish.
package notify

import (
	"context"
	"fmt"

	"github.com/mongodb/grip"
	"github.com/mongodb/grip/message"
	"github.com/scrapedash/scrapedash"
)

// Notification describes a finished task run.
type Notification struct {
	TaskId   string
	TaskName string
	RunId    string
	Status   scrapedash.TaskStatus
}

// Text renders the notification as a single line.
func (n Notification) Text() string {
	return fmt.Sprintf("task %s run %s finished: %s", n.TaskName, n.RunId, n.Status)
}

// Sender delivers notifications to one channel.
type Sender interface {
	Send(context.Context, Notification) error
	Name() string
}

// New returns the sender configured in the notify settings. Without any
// configured channel notifications are dropped.
func New(conf scrapedash.NotifyConfig) Sender {
	if conf.Telegram.Enabled() {
		return NewTelegramSender(conf.Telegram)
	}
	return NoopSender{}
}

// Send delivers the notification and logs failures. A failed notification
// never fails the run that produced it.
func Send(ctx context.Context, s Sender, n Notification) {
	if s == nil {
		return
	}
	grip.Error(message.WrapError(s.Send(ctx, n), message.Fields{
		"message": "could not send run notification",
		"sender":  s.Name(),
		"task_id": n.TaskId,
		"run_id":  n.RunId,
		"status":  n.Status.String(),
	}))
}

// NoopSender drops every notification.
type NoopSender struct{}

func (NoopSender) Send(context.Context, Notification) error { return nil }
func (NoopSender) Name() string                             { return "noop" }
