package models

import (
	"strings"
	"time"

	"github.com/google/uuid"

	fernerrors "github.com/Ramsey-B/fern/pkg/errors"
	"github.com/Ramsey-B/fern/pkg/utils"
)

type ProposalKind string

const (
	ProposalKindPrice         ProposalKind = "price"
	ProposalKindExchangeTerms ProposalKind = "exchange_terms"
	ProposalKindMeeting       ProposalKind = "meeting"
	ProposalKindConditions    ProposalKind = "conditions"
	ProposalKindOther         ProposalKind = "other"
)

func (k ProposalKind) Valid() bool {
	switch k {
	case ProposalKindPrice, ProposalKindExchangeTerms, ProposalKindMeeting, ProposalKindConditions, ProposalKindOther:
		return true
	}
	return false
}

type ProposalStatus string

const (
	ProposalStatusPending        ProposalStatus = "pending"
	ProposalStatusAccepted       ProposalStatus = "accepted"
	ProposalStatusRejected       ProposalStatus = "rejected"
	ProposalStatusCounterOffered ProposalStatus = "counter_offered"
)

type ProposalDecision string

const (
	DecisionAccept  ProposalDecision = "accept"
	DecisionReject  ProposalDecision = "reject"
	DecisionCounter ProposalDecision = "counter"
)

// Status is the proposal status a decision resolves to.
func (d ProposalDecision) Status() (ProposalStatus, bool) {
	switch d {
	case DecisionAccept:
		return ProposalStatusAccepted, true
	case DecisionReject:
		return ProposalStatusRejected, true
	case DecisionCounter:
		return ProposalStatusCounterOffered, true
	}
	return "", false
}

// Proposal is one entry in a conversation's negotiation ledger. Kind-specific fields
// are stored flat and exposed through Terms.
type Proposal struct {
	ID             uuid.UUID      `db:"id" json:"id"`
	ConversationID uuid.UUID      `db:"conversation_id" json:"conversation_id"`
	ProposerID     int64          `db:"proposer_id" json:"proposer_id"`
	RecipientID    int64          `db:"recipient_id" json:"recipient_id"`
	ParentID       *uuid.UUID     `db:"parent_id" json:"parent_id,omitempty"`
	Kind           ProposalKind   `db:"kind" json:"kind"`
	Description    string         `db:"description" json:"description"`
	AttachmentURL  *string        `db:"attachment_url" json:"attachment_url,omitempty"`
	Price          *float64       `db:"price" json:"price,omitempty"`
	MeetingDate    *time.Time     `db:"meeting_date" json:"meeting_date,omitempty"`
	MeetingPlace   *string        `db:"meeting_place" json:"meeting_place,omitempty"`
	Conditions     *string        `db:"conditions" json:"conditions,omitempty"`
	Status         ProposalStatus `db:"status" json:"status"`
	ResponseText   *string        `db:"response_text" json:"response_text,omitempty"`
	RespondedAt    *time.Time     `db:"responded_at" json:"responded_at,omitempty"`
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at" json:"updated_at"`
}

// ProposalTerms is the kind-specific payload of a proposal.
type ProposalTerms interface {
	Kind() ProposalKind
	Validate() error
	// Apply folds the accepted terms into the exchange change set.
	Apply(changes *ExchangeChanges)
}

type PriceTerms struct {
	Price float64
}

func (PriceTerms) Kind() ProposalKind { return ProposalKindPrice }

func (t PriceTerms) Validate() error {
	if t.Price <= 0 {
		return fernerrors.InvalidProposal("price proposals require a positive price").With("field", "price")
	}
	return nil
}

func (t PriceTerms) Apply(changes *ExchangeChanges) {
	amount := t.Price
	changes.AdditionalAmount = &amount
}

type ExchangeTermsTerms struct {
	Conditions *string
}

func (ExchangeTermsTerms) Kind() ProposalKind { return ProposalKindExchangeTerms }

func (ExchangeTermsTerms) Validate() error { return nil }

func (t ExchangeTermsTerms) Apply(changes *ExchangeChanges) {
	if t.Conditions != nil {
		changes.AdditionalConditions = t.Conditions
	}
}

type MeetingTerms struct {
	Date  time.Time
	Place string
	Notes *string
}

func (MeetingTerms) Kind() ProposalKind { return ProposalKindMeeting }

func (t MeetingTerms) Validate() error {
	if t.Date.IsZero() {
		return fernerrors.InvalidProposal("meeting proposals require a meeting date").With("field", "meeting_date")
	}
	if strings.TrimSpace(t.Place) == "" {
		return fernerrors.InvalidProposal("meeting proposals require a meeting place").With("field", "meeting_place")
	}
	return nil
}

func (t MeetingTerms) Apply(changes *ExchangeChanges) {
	date := t.Date.UTC()
	place := t.Place
	changes.MeetingDate = &date
	changes.MeetingPlace = &place
	if t.Notes != nil {
		changes.MeetingNotes = t.Notes
	}
}

type ConditionsTerms struct {
	Conditions *string
}

func (ConditionsTerms) Kind() ProposalKind { return ProposalKindConditions }

func (ConditionsTerms) Validate() error { return nil }

func (t ConditionsTerms) Apply(changes *ExchangeChanges) {
	if t.Conditions != nil {
		changes.AdditionalConditions = t.Conditions
	}
}

type OtherTerms struct{}

func (OtherTerms) Kind() ProposalKind { return ProposalKindOther }

func (OtherTerms) Validate() error { return nil }

func (OtherTerms) Apply(*ExchangeChanges) {}

// Terms rebuilds the typed payload from the stored columns.
func (p *Proposal) Terms() ProposalTerms {
	switch p.Kind {
	case ProposalKindPrice:
		var price float64
		if p.Price != nil {
			price = *p.Price
		}
		return PriceTerms{Price: price}
	case ProposalKindExchangeTerms:
		return ExchangeTermsTerms{Conditions: p.Conditions}
	case ProposalKindMeeting:
		t := MeetingTerms{Notes: p.Conditions}
		if p.MeetingDate != nil {
			t.Date = *p.MeetingDate
		}
		if p.MeetingPlace != nil {
			t.Place = *p.MeetingPlace
		}
		return t
	case ProposalKindConditions:
		return ConditionsTerms{Conditions: p.Conditions}
	default:
		return OtherTerms{}
	}
}

// SetTerms flattens terms onto the proposal's columns.
func (p *Proposal) SetTerms(terms ProposalTerms) {
	p.Kind = terms.Kind()
	p.Price, p.MeetingDate, p.MeetingPlace, p.Conditions = nil, nil, nil, nil

	switch t := terms.(type) {
	case PriceTerms:
		price := t.Price
		p.Price = &price
	case ExchangeTermsTerms:
		p.Conditions = t.Conditions
	case MeetingTerms:
		date := t.Date.UTC()
		place := t.Place
		p.MeetingDate = &date
		p.MeetingPlace = &place
		p.Conditions = t.Notes
	case ConditionsTerms:
		p.Conditions = t.Conditions
	}
}

// ProposalDraft is the caller-supplied content of a new proposal.
type ProposalDraft struct {
	Kind          ProposalKind `json:"proposal_type"`
	Description   string       `json:"description" validate:"max=2000"`
	AttachmentURL *string      `json:"attachment_url" validate:"omitempty,url"`
	Price         *float64     `json:"proposed_price"`
	MeetingDate   *time.Time   `json:"meeting_date"`
	MeetingPlace  *string      `json:"meeting_place" validate:"omitempty,max=500"`
	Conditions    *string      `json:"conditions" validate:"omitempty,max=2000"`
}

// BuildTerms validates the draft and returns its typed payload.
func (d ProposalDraft) BuildTerms() (ProposalTerms, error) {
	if !d.Kind.Valid() {
		return nil, fernerrors.InvalidProposal("unknown proposal kind %q", d.Kind).With("field", "kind")
	}
	if strings.TrimSpace(d.Description) == "" {
		return nil, fernerrors.InvalidProposal("description is required").With("field", "description")
	}
	if _, err := utils.Validate(d); err != nil {
		return nil, fernerrors.InvalidProposal("%s", err.Error()).With("field", utils.InvalidField(err))
	}

	var terms ProposalTerms
	switch d.Kind {
	case ProposalKindPrice:
		if d.Price == nil {
			return nil, fernerrors.InvalidProposal("price proposals require a price").With("field", "price")
		}
		terms = PriceTerms{Price: *d.Price}
	case ProposalKindExchangeTerms:
		terms = ExchangeTermsTerms{Conditions: d.Conditions}
	case ProposalKindMeeting:
		t := MeetingTerms{Notes: d.Conditions}
		if d.MeetingDate != nil {
			t.Date = *d.MeetingDate
		}
		if d.MeetingPlace != nil {
			t.Place = *d.MeetingPlace
		}
		terms = t
	case ProposalKindConditions:
		terms = ConditionsTerms{Conditions: d.Conditions}
	default:
		terms = OtherTerms{}
	}

	if err := terms.Validate(); err != nil {
		return nil, err
	}
	return terms, nil
}
