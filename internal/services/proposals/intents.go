package proposals

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Ramsey-B/fern/pkg/models"
)

var decisionNotifications = map[models.ProposalStatus]struct {
	kind  models.NotificationKind
	title string
}{
	models.ProposalStatusAccepted:       {models.NotificationProposalAccepted, "Proposal accepted"},
	models.ProposalStatusRejected:       {models.NotificationProposalRejected, "Proposal rejected"},
	models.ProposalStatusCounterOffered: {models.NotificationProposalCountered, "Counter-offer received"},
}

func createdIntents(p *models.Proposal, exchangeID *uuid.UUID) []models.Intent {
	return []models.Intent{
		models.SystemMessage(p.ConversationID, models.MessageKindProposal, p.Description, card(p)),
		models.Notify{Notification: models.Notification{
			UserID: p.RecipientID,
			Kind:   models.NotificationProposalReceived,
			Title:  "New proposal",
			Body:   p.Description,
			Data:   notificationData(p),
		}},
		models.PublishEvent{Event: models.ProposalEventFor(p, "proposal.created", exchangeID)},
	}
}

func respondedIntents(p *models.Proposal, exchangeID *uuid.UUID) []models.Intent {
	n := decisionNotifications[p.Status]
	body := n.title
	if p.ResponseText != nil && *p.ResponseText != "" {
		body = fmt.Sprintf("%s: %s", n.title, *p.ResponseText)
	}

	event := models.ProposalEventFor(p, fmt.Sprintf("proposal.%s", p.Status), exchangeID)
	event.ActorID = p.RecipientID

	return []models.Intent{
		models.SystemMessage(p.ConversationID, models.MessageKindSystem, body, card(p)),
		models.Notify{Notification: models.Notification{
			UserID: p.ProposerID,
			Kind:   n.kind,
			Title:  n.title,
			Body:   body,
			Data:   notificationData(p),
		}},
		models.PublishEvent{Event: event},
	}
}

// card is the transcript metadata clients render as a proposal card.
func card(p *models.Proposal) map[string]any {
	data := map[string]any{
		"proposal_id": p.ID.String(),
		"kind":        string(p.Kind),
		"status":      string(p.Status),
	}
	if p.Price != nil {
		data["price"] = *p.Price
	}
	if p.MeetingDate != nil {
		data["meeting_date"] = p.MeetingDate.Format(time.RFC3339)
	}
	if p.MeetingPlace != nil {
		data["meeting_place"] = *p.MeetingPlace
	}
	if p.ParentID != nil {
		data["parent_id"] = p.ParentID.String()
	}
	return data
}

func notificationData(p *models.Proposal) map[string]string {
	return map[string]string{
		"proposal_id":     p.ID.String(),
		"conversation_id": p.ConversationID.String(),
		"kind":            string(p.Kind),
	}
}
