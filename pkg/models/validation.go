package models

import (
	"time"

	"github.com/google/uuid"
)

// ValidationReport is one participant's attestation about whether the physical exchange happened.
// There is at most one per (exchange, user).
type ValidationReport struct {
	ExchangeID         uuid.UUID `db:"exchange_id" json:"exchange_id"`
	UserID             int64     `db:"user_id" json:"user_id"`
	WasSuccessful      bool      `db:"was_successful" json:"was_successful"`
	Rating             *int      `db:"rating" json:"rating,omitempty"`
	Comment            *string   `db:"comment" json:"comment,omitempty"`
	ProblemDescription *string   `db:"problem_description" json:"problem_description,omitempty"`
	SubmittedAt        time.Time `db:"submitted_at" json:"submitted_at"`
	UpdatedAt          time.Time `db:"updated_at" json:"updated_at"`
}
