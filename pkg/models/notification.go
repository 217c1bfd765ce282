package models

import (
	"time"

	"github.com/google/uuid"
)

type NotificationKind string

const (
	NotificationProposalReceived    NotificationKind = "proposal_received"
	NotificationProposalAccepted    NotificationKind = "proposal_accepted"
	NotificationProposalRejected    NotificationKind = "proposal_rejected"
	NotificationProposalCountered   NotificationKind = "proposal_countered"
	NotificationExchangeProposed    NotificationKind = "exchange_proposed"
	NotificationExchangeAccepted    NotificationKind = "exchange_accepted"
	NotificationExchangeRejected    NotificationKind = "exchange_rejected"
	NotificationExchangeCancelled   NotificationKind = "exchange_cancelled"
	NotificationExchangeStarted     NotificationKind = "exchange_started"
	NotificationExchangeCompleted   NotificationKind = "exchange_completed"
	NotificationExchangeFailed      NotificationKind = "exchange_failed"
	NotificationExchangeNeedsReview NotificationKind = "exchange_needs_review"
	NotificationValidationRequested NotificationKind = "validation_requested"
	NotificationBadgeGranted        NotificationKind = "badge_granted"
)

type Notification struct {
	ID        uuid.UUID         `json:"id"`
	UserID    int64             `json:"user_id"`
	Kind      NotificationKind  `json:"kind"`
	Title     string            `json:"title"`
	Body      string            `json:"body"`
	Data      map[string]string `json:"data,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// ExchangeEvent is the domain event published for downstream consumers.
type ExchangeEvent struct {
	Type           string     `json:"type"`
	ExchangeID     *uuid.UUID `json:"exchange_id,omitempty"`
	ProposalID     *uuid.UUID `json:"proposal_id,omitempty"`
	ConversationID uuid.UUID  `json:"conversation_id"`
	Status         string     `json:"status"`
	ActorID        int64      `json:"actor_id,omitempty"`
	Participants   []int64    `json:"participants"`
	TraceID        string     `json:"trace_id,omitempty"`
	Timestamp      time.Time  `json:"timestamp"`
}
