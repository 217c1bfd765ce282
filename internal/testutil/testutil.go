// Package testutil holds fakes shared by service and handler tests.
package testutil

import (
	"context"
	"sync"

	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectologger/zapadapter"
	"go.uber.org/zap"

	"github.com/Ramsey-B/fern/pkg/models"
)

func Logger() ectologger.Logger {
	return zapadapter.NewZapEctoLogger(zap.NewNop(), nil)
}

// Outbox records notifications and events instead of sending them.
type Outbox struct {
	mu            sync.Mutex
	Notifications []models.Notification
	Events        []models.ExchangeEvent

	NotifyErr  error
	PublishErr error
}

func (o *Outbox) Enqueue(_ context.Context, n *models.Notification) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.NotifyErr != nil {
		return o.NotifyErr
	}
	o.Notifications = append(o.Notifications, *n)
	return nil
}

func (o *Outbox) PublishEvent(_ context.Context, evt *models.ExchangeEvent) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.PublishErr != nil {
		return o.PublishErr
	}
	o.Events = append(o.Events, *evt)
	return nil
}

// EventTypes lists published event types in order.
func (o *Outbox) EventTypes() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	types := make([]string, 0, len(o.Events))
	for _, e := range o.Events {
		types = append(types, e.Type)
	}
	return types
}

// NotificationsFor returns the kinds sent to userID in order.
func (o *Outbox) NotificationsFor(userID int64) []models.NotificationKind {
	o.mu.Lock()
	defer o.mu.Unlock()
	var kinds []models.NotificationKind
	for _, n := range o.Notifications {
		if n.UserID == userID {
			kinds = append(kinds, n.Kind)
		}
	}
	return kinds
}
