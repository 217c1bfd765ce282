package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/Ramsey-B/fern/pkg/database"
)

// Conversation is the chat thread two users hold about a listing.
type Conversation struct {
	ID               uuid.UUID  `db:"id" json:"id"`
	InitiatorID      int64      `db:"initiator_id" json:"initiator_id"`
	OwnerID          int64      `db:"owner_id" json:"owner_id"`
	ProductID        uuid.UUID  `db:"product_id" json:"product_id"`
	OfferedProductID *uuid.UUID `db:"offered_product_id" json:"offered_product_id,omitempty"`
	ExchangeID       *uuid.UUID `db:"exchange_id" json:"exchange_id,omitempty"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at" json:"updated_at"`
}

// RequestedProduct is the listing the conversation was opened on.
func (c *Conversation) RequestedProduct() *uuid.UUID {
	id := c.ProductID
	return &id
}

func (c *Conversation) IsParticipant(userID int64) bool {
	return userID != 0 && (userID == c.InitiatorID || userID == c.OwnerID)
}

// Counterpart returns the other participant, 0 when userID is not a participant.
func (c *Conversation) Counterpart(userID int64) int64 {
	switch userID {
	case c.InitiatorID:
		return c.OwnerID
	case c.OwnerID:
		return c.InitiatorID
	}
	return 0
}

type MessageKind string

const (
	MessageKindText     MessageKind = "text"
	MessageKindSystem   MessageKind = "system"
	MessageKindProposal MessageKind = "proposal"
)

type ChatMessage struct {
	ID             uuid.UUID                      `db:"id" json:"id"`
	ConversationID uuid.UUID                      `db:"conversation_id" json:"conversation_id"`
	SenderID       *int64                         `db:"sender_id" json:"sender_id,omitempty"`
	Kind           MessageKind                    `db:"kind" json:"kind"`
	Body           string                         `db:"body" json:"body"`
	Metadata       database.JSONB[map[string]any] `db:"metadata" json:"metadata"`
	CreatedAt      time.Time                      `db:"created_at" json:"created_at"`
}
