package repositories

import (
	"context"

	"github.com/google/uuid"

	"github.com/Ramsey-B/fern/pkg/models"
)

// TxRunner runs fn in one database transaction. Repositories called with the ctx passed
// to fn join that transaction.
type TxRunner interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type UserRepo interface {
	GetByID(ctx context.Context, id int64) (*models.User, error)
	ResolveUserID(ctx context.Context, subject string) (int64, error)
}

type ConversationRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Conversation, error)
	// GetForUpdate locks the conversation row for the rest of the transaction.
	GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Conversation, error)
	// LinkExchange sets the conversation's exchange only when none is linked yet.
	LinkExchange(ctx context.Context, conversationID, exchangeID uuid.UUID) error
}

type MessageRepo interface {
	Create(ctx context.Context, msg *models.ChatMessage) error
}

type ProposalRepo interface {
	Create(ctx context.Context, p *models.Proposal) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Proposal, error)
	ListByConversation(ctx context.Context, conversationID uuid.UUID) ([]models.Proposal, error)
	// Resolve moves a pending proposal to status. ErrConditionNotMet when it is no longer pending.
	Resolve(ctx context.Context, id uuid.UUID, status models.ProposalStatus, responseText *string) (*models.Proposal, error)
}

type ExchangeRepo interface {
	Create(ctx context.Context, e *models.Exchange) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Exchange, error)
	// GetForUpdate locks the exchange row for the rest of the transaction.
	GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Exchange, error)
	List(ctx context.Context, filter models.ExchangeFilter) ([]models.Exchange, error)
	// Transition writes to and changes only while the exchange is in one of from.
	// ErrConditionNotMet when the guard fails.
	Transition(ctx context.Context, id uuid.UUID, from []models.ExchangeStatus, to models.ExchangeStatus, changes models.ExchangeChanges) (*models.Exchange, error)
	CountCompletedForUser(ctx context.Context, userID int64) (int, error)
}

type ValidationRepo interface {
	// Upsert stores the caller's report while the exchange is in one of eligible.
	// ErrConditionNotMet when it is not.
	Upsert(ctx context.Context, report *models.ValidationReport, eligible []models.ExchangeStatus) error
	ListByExchange(ctx context.Context, exchangeID uuid.UUID) ([]models.ValidationReport, error)
}

type ProductRepo interface {
	SetStatus(ctx context.Context, id uuid.UUID, status models.ProductStatus) error
}

type ReputationRepo interface {
	// SetCompletedExchanges never lowers the stored count.
	SetCompletedExchanges(ctx context.Context, userID int64, count int) error
	// GrantBadge reports whether the badge was newly granted.
	GrantBadge(ctx context.Context, userID int64, badgeKey string) (bool, error)
	ListBadges(ctx context.Context, userID int64) ([]models.BadgeGrant, error)
}
