// Package settlement carries out the side effects owed once an authoritative write has
// committed. Failures never undo the write; they come back as warnings.
package settlement

import (
	"context"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/Ramsey-B/fern/internal/repositories"
	fernerrors "github.com/Ramsey-B/fern/pkg/errors"
	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/reputation"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

type Notifier interface {
	Enqueue(ctx context.Context, n *models.Notification) error
}

type EventPublisher interface {
	PublishEvent(ctx context.Context, evt *models.ExchangeEvent) error
}

// CompletionCounter counts a user's completed exchanges from the exchange records.
type CompletionCounter interface {
	CountCompletedForUser(ctx context.Context, userID int64) (int, error)
}

// Warning is a side effect that failed after the primary write succeeded.
type Warning struct {
	Code       string `json:"code"`
	Intent     string `json:"intent"`
	Dependency string `json:"dependency"`
	Message    string `json:"message"`
}

type Dispatcher struct {
	logger     ectologger.Logger
	products   repositories.ProductRepo
	counter    CompletionCounter
	reputation repositories.ReputationRepo
	messages   repositories.MessageRepo
	notifier   Notifier
	publisher  EventPublisher
	catalog    *reputation.Catalog
}

type Dependencies struct {
	Products   repositories.ProductRepo
	Counter    CompletionCounter
	Reputation repositories.ReputationRepo
	Messages   repositories.MessageRepo
	Notifier   Notifier
	Publisher  EventPublisher
	Catalog    *reputation.Catalog
}

func NewDispatcher(logger ectologger.Logger, deps Dependencies) *Dispatcher {
	return &Dispatcher{
		logger:     logger,
		products:   deps.Products,
		counter:    deps.Counter,
		reputation: deps.Reputation,
		messages:   deps.Messages,
		notifier:   deps.Notifier,
		publisher:  deps.Publisher,
		catalog:    deps.Catalog,
	}
}

// Dispatch runs every intent in order, continuing past failures.
func (d *Dispatcher) Dispatch(ctx context.Context, intents []models.Intent) []Warning {
	if len(intents) == 0 {
		return nil
	}
	ctx, span := tracing.StartSpan(ctx, "settlement.Dispatch")
	defer span.End()

	var warnings []Warning
	for _, intent := range intents {
		start := time.Now()
		err := d.execute(ctx, intent)
		metrics.SideEffectDuration.WithLabelValues(intent.IntentName()).Observe(time.Since(start).Seconds())

		if err == nil {
			metrics.SideEffectsTotal.WithLabelValues(intent.IntentName(), "success").Inc()
			continue
		}

		metrics.SideEffectsTotal.WithLabelValues(intent.IntentName(), "failure").Inc()
		failure, ok := fernerrors.As(err)
		if !ok || failure.Code != fernerrors.CodeDependencyFailure {
			failure = fernerrors.DependencyFailure(dependencyOf(intent), err)
		}
		d.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"intent":     intent.IntentName(),
			"dependency": failure.Meta["dependency"],
		}).Warn("side effect failed after commit")

		warnings = append(warnings, Warning{
			Code:       string(failure.Code),
			Intent:     intent.IntentName(),
			Dependency: fmt.Sprint(failure.Meta["dependency"]),
			Message:    failure.Message,
		})
	}
	return warnings
}

func (d *Dispatcher) execute(ctx context.Context, intent models.Intent) error {
	switch in := intent.(type) {
	case models.SetProductStatus:
		return d.products.SetStatus(ctx, in.ProductID, in.Status)
	case models.RecountReputation:
		return d.recount(ctx, in.UserID)
	case models.Notify:
		n := in.Notification
		return d.notify(ctx, &n)
	case models.PostSystemMessage:
		msg := in.Message
		return d.messages.Create(ctx, &msg)
	case models.PublishEvent:
		evt := in.Event
		err := d.publisher.PublishEvent(ctx, &evt)
		result := "success"
		if err != nil {
			result = "failure"
		}
		metrics.EventsPublishedTotal.WithLabelValues(evt.Type, result).Inc()
		return err
	}
	return fmt.Errorf("unknown intent %T", intent)
}

func (d *Dispatcher) notify(ctx context.Context, n *models.Notification) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	return d.notifier.Enqueue(ctx, n)
}

// recount rebuilds the user's completed count from the exchange records and grants any badge
// the new count earns. Running it twice leaves the same state.
func (d *Dispatcher) recount(ctx context.Context, userID int64) error {
	completed, err := d.counter.CountCompletedForUser(ctx, userID)
	if err != nil {
		return err
	}
	if err := d.reputation.SetCompletedExchanges(ctx, userID, completed); err != nil {
		return err
	}

	var notifyErr error
	for _, badge := range d.catalog.Earned(completed) {
		granted, err := d.reputation.GrantBadge(ctx, userID, badge.Key)
		if err != nil {
			return err
		}
		if !granted {
			continue
		}

		metrics.BadgesGrantedTotal.WithLabelValues(badge.Key).Inc()
		d.logger.WithContext(ctx).WithFields(map[string]any{
			"user_id":             userID,
			"badge":               badge.Key,
			"completed_exchanges": completed,
		}).Info("badge granted")

		if err := d.notify(ctx, &models.Notification{
			UserID: userID,
			Kind:   models.NotificationBadgeGranted,
			Title:  fmt.Sprintf("New badge: %s", badge.Name),
			Body:   badge.Description,
			Data:   map[string]string{"badge": badge.Key},
		}); err != nil {
			notifyErr = fernerrors.DependencyFailure("notifications", err)
		}
	}
	return notifyErr
}

func dependencyOf(intent models.Intent) string {
	switch intent.(type) {
	case models.SetProductStatus:
		return "products"
	case models.RecountReputation:
		return "reputation"
	case models.Notify:
		return "notifications"
	case models.PostSystemMessage:
		return "chat"
	case models.PublishEvent:
		return "events"
	}
	return intent.IntentName()
}
