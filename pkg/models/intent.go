package models

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/Ramsey-B/fern/pkg/database"
)

// Intent is a side effect owed to a collaborator once the authoritative write has committed.
type Intent interface {
	IntentName() string
}

type SetProductStatus struct {
	ProductID uuid.UUID
	Status    ProductStatus
}

func (SetProductStatus) IntentName() string { return "set_product_status" }

// RecountReputation recomputes a user's completed exchange count and evaluates badges.
type RecountReputation struct {
	UserID int64
}

func (RecountReputation) IntentName() string { return "recount_reputation" }

type Notify struct {
	Notification Notification
}

func (Notify) IntentName() string { return "notify" }

type PostSystemMessage struct {
	Message ChatMessage
}

func (PostSystemMessage) IntentName() string { return "post_system_message" }

type PublishEvent struct {
	Event ExchangeEvent
}

func (PublishEvent) IntentName() string { return "publish_event" }

// SettlementIntents is the full settlement of a completed exchange.
func SettlementIntents(e *Exchange) []Intent {
	intents := make([]Intent, 0, 6)
	for _, userID := range e.Participants() {
		intents = append(intents, RecountReputation{UserID: userID})
	}
	for _, productID := range e.ProductIDs() {
		intents = append(intents, SetProductStatus{ProductID: productID, Status: ProductStatusExchanged})
	}
	for _, userID := range e.Participants() {
		intents = append(intents, Notify{Notification: Notification{
			UserID: userID,
			Kind:   NotificationExchangeCompleted,
			Title:  "Exchange completed",
			Body:   "Both of you confirmed the exchange. Thanks for trading!",
			Data:   exchangeData(e),
		}})
	}
	return intents
}

// ReleaseIntents returns the products of a failed exchange to the catalogue.
func ReleaseIntents(e *Exchange) []Intent {
	intents := make([]Intent, 0, 4)
	for _, productID := range e.ProductIDs() {
		intents = append(intents, SetProductStatus{ProductID: productID, Status: ProductStatusAvailable})
	}
	for _, userID := range e.Participants() {
		intents = append(intents, Notify{Notification: Notification{
			UserID: userID,
			Kind:   NotificationExchangeFailed,
			Title:  "Exchange did not happen",
			Body:   "Both of you reported the exchange as unsuccessful. Your items are available again.",
			Data:   exchangeData(e),
		}})
	}
	return intents
}

// ReviewIntents tells both participants their reports disagree.
func ReviewIntents(e *Exchange) []Intent {
	intents := make([]Intent, 0, 2)
	for _, userID := range e.Participants() {
		intents = append(intents, Notify{Notification: Notification{
			UserID: userID,
			Kind:   NotificationExchangeNeedsReview,
			Title:  "Exchange under review",
			Body:   "Your reports about this exchange disagree. Our team will look into it.",
			Data:   exchangeData(e),
		}})
	}
	return intents
}

// NotifyUser builds a notification intent about an exchange.
func NotifyUser(e *Exchange, userID int64, kind NotificationKind, title, body string) Intent {
	return Notify{Notification: Notification{
		UserID: userID,
		Kind:   kind,
		Title:  title,
		Body:   body,
		Data:   exchangeData(e),
	}}
}

func exchangeData(e *Exchange) map[string]string {
	return map[string]string{
		"exchange_id":     e.ID.String(),
		"conversation_id": e.ConversationID.String(),
		"status":          string(e.Status),
	}
}

// ExchangeEventFor describes e's current state as a domain event.
func ExchangeEventFor(e *Exchange, actorID int64) ExchangeEvent {
	id := e.ID
	return ExchangeEvent{
		Type:           fmt.Sprintf("exchange.%s", e.Status),
		ExchangeID:     &id,
		ConversationID: e.ConversationID,
		Status:         string(e.Status),
		ActorID:        actorID,
		Participants:   e.Participants(),
	}
}

// ProposalEventFor describes p's current state as a domain event.
func ProposalEventFor(p *Proposal, eventType string, exchangeID *uuid.UUID) ExchangeEvent {
	id := p.ID
	return ExchangeEvent{
		Type:           eventType,
		ProposalID:     &id,
		ExchangeID:     exchangeID,
		ConversationID: p.ConversationID,
		Status:         string(p.Status),
		ActorID:        p.ProposerID,
		Participants:   []int64{p.ProposerID, p.RecipientID},
	}
}

// SystemMessage posts an engine-authored line into the conversation transcript.
func SystemMessage(conversationID uuid.UUID, kind MessageKind, body string, metadata map[string]any) Intent {
	return PostSystemMessage{Message: ChatMessage{
		ConversationID: conversationID,
		Kind:           kind,
		Body:           body,
		Metadata:       database.NewJSONB(metadata),
	}}
}
