package models

import (
	"time"

	"github.com/google/uuid"
)

type ExchangeStatus string

const (
	ExchangeStatusPending     ExchangeStatus = "pending"
	ExchangeStatusAccepted    ExchangeStatus = "accepted"
	ExchangeStatusRejected    ExchangeStatus = "rejected"
	ExchangeStatusCancelled   ExchangeStatus = "cancelled"
	ExchangeStatusInProgress  ExchangeStatus = "in_progress"
	ExchangeStatusCompleted   ExchangeStatus = "completed"
	ExchangeStatusFailed      ExchangeStatus = "failed"
	ExchangeStatusNeedsReview ExchangeStatus = "needs_review"
)

func (s ExchangeStatus) Valid() bool {
	switch s {
	case ExchangeStatusPending, ExchangeStatusAccepted, ExchangeStatusRejected, ExchangeStatusCancelled,
		ExchangeStatusInProgress, ExchangeStatusCompleted, ExchangeStatusFailed, ExchangeStatusNeedsReview:
		return true
	}
	return false
}

// Terminal reports whether no transition can leave s.
func (s ExchangeStatus) Terminal() bool {
	switch s {
	case ExchangeStatusRejected, ExchangeStatusCancelled, ExchangeStatusCompleted, ExchangeStatusFailed, ExchangeStatusNeedsReview:
		return true
	}
	return false
}

// Role is the part a user plays in an exchange.
type Role string

const (
	RoleNone     Role = ""
	RoleProposer Role = "proposer"
	RoleReceiver Role = "receiver"
	RoleSystem   Role = "system"
)

type Exchange struct {
	ID                   uuid.UUID      `db:"id" json:"id"`
	ConversationID       uuid.UUID      `db:"conversation_id" json:"conversation_id"`
	ProposerID           int64          `db:"proposer_id" json:"proposer_id"`
	ReceiverID           int64          `db:"receiver_id" json:"receiver_id"`
	OfferedProductID     *uuid.UUID     `db:"offered_product_id" json:"offered_product_id,omitempty"`
	RequestedProductID   *uuid.UUID     `db:"requested_product_id" json:"requested_product_id"`
	Status               ExchangeStatus `db:"status" json:"status"`
	Message              *string        `db:"message" json:"message,omitempty"`
	AdditionalAmount     *float64       `db:"additional_amount" json:"additional_amount,omitempty"`
	AdditionalConditions *string        `db:"additional_conditions" json:"additional_conditions,omitempty"`
	MeetingDate          *time.Time     `db:"meeting_date" json:"meeting_date,omitempty"`
	MeetingPlace         *string        `db:"meeting_place" json:"meeting_place,omitempty"`
	MeetingNotes         *string        `db:"meeting_notes" json:"meeting_notes,omitempty"`
	RejectionReason      *string        `db:"rejection_reason" json:"rejection_reason,omitempty"`
	RespondedAt          *time.Time     `db:"responded_at" json:"responded_at,omitempty"`
	CompletedAt          *time.Time     `db:"completed_at" json:"completed_at,omitempty"`
	CreatedAt            time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time      `db:"updated_at" json:"updated_at"`
}

func (e *Exchange) RoleOf(userID int64) Role {
	switch userID {
	case e.ProposerID:
		return RoleProposer
	case e.ReceiverID:
		return RoleReceiver
	}
	return RoleNone
}

func (e *Exchange) IsParticipant(userID int64) bool {
	return e.RoleOf(userID) != RoleNone
}

// Counterpart returns the other participant, 0 when userID is not a participant.
func (e *Exchange) Counterpart(userID int64) int64 {
	switch userID {
	case e.ProposerID:
		return e.ReceiverID
	case e.ReceiverID:
		return e.ProposerID
	}
	return 0
}

func (e *Exchange) Participants() []int64 {
	return []int64{e.ProposerID, e.ReceiverID}
}

// ProductIDs returns the items that change hands.
func (e *Exchange) ProductIDs() []uuid.UUID {
	var ids []uuid.UUID
	if e.RequestedProductID != nil {
		ids = append(ids, *e.RequestedProductID)
	}
	if e.OfferedProductID != nil {
		ids = append(ids, *e.OfferedProductID)
	}
	return ids
}

// ExchangeChanges is the set of fields a transition writes alongside the new status.
// Nil fields are left untouched.
type ExchangeChanges struct {
	MeetingDate          *time.Time
	MeetingPlace         *string
	MeetingNotes         *string
	AdditionalAmount     *float64
	AdditionalConditions *string
	RejectionReason      *string
	ClearRejection       bool
	RespondedAt          *time.Time
	CompletedAt          *time.Time
}

// ApplyTo writes the change set onto e.
func (c ExchangeChanges) ApplyTo(e *Exchange) {
	if c.MeetingDate != nil {
		e.MeetingDate = c.MeetingDate
	}
	if c.MeetingPlace != nil {
		e.MeetingPlace = c.MeetingPlace
	}
	if c.MeetingNotes != nil {
		e.MeetingNotes = c.MeetingNotes
	}
	if c.AdditionalAmount != nil {
		e.AdditionalAmount = c.AdditionalAmount
	}
	if c.AdditionalConditions != nil {
		e.AdditionalConditions = c.AdditionalConditions
	}
	if c.ClearRejection {
		e.RejectionReason = nil
	}
	if c.RejectionReason != nil {
		e.RejectionReason = c.RejectionReason
	}
	if c.RespondedAt != nil {
		e.RespondedAt = c.RespondedAt
	}
	if c.CompletedAt != nil {
		e.CompletedAt = c.CompletedAt
	}
}

// ExchangeFilter narrows exchange listings.
type ExchangeFilter struct {
	UserID int64
	Status *ExchangeStatus
	Limit  int
}
