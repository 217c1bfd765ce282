package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// NotificationQueue appends user notifications to a Redis Stream consumed by the delivery workers.
type NotificationQueue struct {
	client *Client
	stream string
	maxLen int64
}

func NewNotificationQueue(client *Client, stream string, maxLen int64) *NotificationQueue {
	return &NotificationQueue{client: client, stream: stream, maxLen: maxLen}
}

// streamValues renders n as stream entry fields.
func streamValues(n *models.Notification) (map[string]any, error) {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}

	payload, err := json.Marshal(n)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal notification: %w", err)
	}

	return map[string]any{
		"id":      n.ID.String(),
		"user_id": strconv.FormatInt(n.UserID, 10),
		"kind":    string(n.Kind),
		"data":    string(payload),
	}, nil
}

// Enqueue adds a notification to the stream.
func (q *NotificationQueue) Enqueue(ctx context.Context, n *models.Notification) error {
	ctx, span := tracing.StartSpan(ctx, "NotificationQueue.Enqueue")
	defer span.End()

	values, err := streamValues(n)
	if err != nil {
		return err
	}

	args := &redis.XAddArgs{
		Stream: q.stream,
		Values: values,
	}
	if q.maxLen > 0 {
		args.MaxLen = q.maxLen
		args.Approx = true
	}

	id, err := q.client.rdb.XAdd(ctx, args).Result()
	if err != nil {
		q.client.logger.WithContext(ctx).WithError(err).Errorf("Failed to publish notification to stream %s", q.stream)
		return err
	}

	q.client.logger.WithContext(ctx).WithFields(map[string]any{
		"notification_id": n.ID,
		"user_id":         n.UserID,
		"kind":            n.Kind,
		"message_id":      id,
	}).Debugf("Queued notification on stream %s", q.stream)
	return nil
}
