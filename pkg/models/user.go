package models

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID                 int64     `db:"id" json:"id"`
	ExternalID         string    `db:"external_id" json:"-"`
	DisplayName        string    `db:"display_name" json:"display_name"`
	CompletedExchanges int       `db:"completed_exchanges" json:"completed_exchanges"`
	CreatedAt          time.Time `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time `db:"updated_at" json:"updated_at"`
}

type BadgeGrant struct {
	UserID    int64     `db:"user_id" json:"user_id"`
	BadgeKey  string    `db:"badge_key" json:"badge_key"`
	GrantedAt time.Time `db:"granted_at" json:"granted_at"`
}

type ProductStatus string

const (
	ProductStatusAvailable ProductStatus = "available"
	ProductStatusExchanged ProductStatus = "exchanged"
)

type Product struct {
	ID        uuid.UUID     `db:"id" json:"id"`
	OwnerID   int64         `db:"owner_id" json:"owner_id"`
	Title     string        `db:"title" json:"title"`
	Status    ProductStatus `db:"status" json:"status"`
	CreatedAt time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt time.Time     `db:"updated_at" json:"updated_at"`
}
