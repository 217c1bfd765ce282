package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/Ramsey-B/fern/pkg/database"
	fernerrors "github.com/Ramsey-B/fern/pkg/errors"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

const (
	conversationsTable = "conversations"
	chatMessagesTable  = "chat_messages"
)

var (
	conversationStruct = database.NewStruct(new(models.Conversation))
	chatMessageStruct  = database.NewStruct(new(models.ChatMessage))
)

type ConversationRepository struct {
	*Repository
}

func NewConversationRepository(db database.DB, logger ectologger.Logger) *ConversationRepository {
	return &ConversationRepository{
		Repository: NewRepository(db, logger),
	}
}

func (r *ConversationRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Conversation, error) {
	ctx, span := tracing.StartSpan(ctx, "ConversationRepository.GetByID")
	defer span.End()

	return r.get(ctx, id, false)
}

func (r *ConversationRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Conversation, error) {
	ctx, span := tracing.StartSpan(ctx, "ConversationRepository.GetForUpdate")
	defer span.End()

	return r.get(ctx, id, true)
}

func (r *ConversationRepository) get(ctx context.Context, id uuid.UUID, lock bool) (*models.Conversation, error) {
	sb := conversationStruct.SelectFrom(conversationsTable)
	sb.Where(sb.Equal("id", id))
	if lock {
		sb.ForUpdate()
	}

	query, args := sb.Build()
	var conversation models.Conversation
	err := r.Conn(ctx).GetContext(ctx, &conversation, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fernerrors.NotFound("conversation %s does not exist", id)
	}
	if err != nil {
		return nil, r.internal(ctx, err, map[string]any{"conversation_id": id}, "failed to get conversation")
	}
	return &conversation, nil
}

func (r *ConversationRepository) LinkExchange(ctx context.Context, conversationID, exchangeID uuid.UUID) error {
	ctx, span := tracing.StartSpan(ctx, "ConversationRepository.LinkExchange")
	defer span.End()

	ub := database.NewUpdateBuilder()
	ub.Update(conversationsTable).
		Set(ub.Assign("exchange_id", exchangeID), ub.Assign("updated_at", now())).
		Where(ub.Equal("id", conversationID), ub.IsNull("exchange_id"))

	query, args := ub.Build()
	res, err := r.Conn(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		return r.internal(ctx, err, map[string]any{
			"conversation_id": conversationID,
			"exchange_id":     exchangeID,
		}, "failed to link exchange")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrConditionNotMet
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"conversation_id": conversationID,
		"exchange_id":     exchangeID,
	}).Debug("Linked exchange to conversation")
	return nil
}

// MessageRepository appends to conversation threads.
type MessageRepository struct {
	*Repository
}

func NewMessageRepository(db database.DB, logger ectologger.Logger) *MessageRepository {
	return &MessageRepository{
		Repository: NewRepository(db, logger),
	}
}

func (r *MessageRepository) Create(ctx context.Context, msg *models.ChatMessage) error {
	ctx, span := tracing.StartSpan(ctx, "MessageRepository.Create")
	defer span.End()

	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = now()
	}

	ib := chatMessageStruct.InsertInto(chatMessagesTable, msg)
	query, args := ib.Build()
	if _, err := r.Conn(ctx).ExecContext(ctx, query, args...); err != nil {
		return r.internal(ctx, err, map[string]any{"conversation_id": msg.ConversationID}, "failed to post message")
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"conversation_id": msg.ConversationID,
		"message_id":      msg.ID,
		"kind":            msg.Kind,
	}).Debugf("Created %s", chatMessagesTable)
	return nil
}
