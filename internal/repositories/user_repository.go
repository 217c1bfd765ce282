package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/pkg/database"
	fernerrors "github.com/Ramsey-B/fern/pkg/errors"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

const (
	usersTable      = "users"
	userBadgesTable = "user_badges"
)

var (
	userStruct  = database.NewStruct(new(models.User))
	badgeStruct = database.NewStruct(new(models.BadgeGrant))
)

// UserRepository reads users and maintains their reputation.
type UserRepository struct {
	*Repository
}

func NewUserRepository(db database.DB, logger ectologger.Logger) *UserRepository {
	return &UserRepository{
		Repository: NewRepository(db, logger),
	}
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	ctx, span := tracing.StartSpan(ctx, "UserRepository.GetByID")
	defer span.End()

	sb := userStruct.SelectFrom(usersTable)
	sb.Where(sb.Equal("id", id))

	query, args := sb.Build()
	var user models.User
	err := r.Conn(ctx).GetContext(ctx, &user, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fernerrors.NotFound("user %d does not exist", id)
	}
	if err != nil {
		return nil, r.internal(ctx, err, map[string]any{"user_id": id}, "failed to get user")
	}
	return &user, nil
}

// ResolveUserID maps an identity-provider subject to the internal user id.
func (r *UserRepository) ResolveUserID(ctx context.Context, subject string) (int64, error) {
	ctx, span := tracing.StartSpan(ctx, "UserRepository.ResolveUserID")
	defer span.End()

	sb := database.NewSelectBuilder()
	sb.Select("id").From(usersTable).Where(sb.Equal("external_id", subject))

	query, args := sb.Build()
	var id int64
	err := r.Conn(ctx).GetContext(ctx, &id, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fernerrors.NotFound("user %s does not exist", subject)
	}
	if err != nil {
		return 0, r.internal(ctx, err, map[string]any{"subject": subject}, "failed to resolve user")
	}
	return id, nil
}

// SetCompletedExchanges stores a recounted completed-exchange total. A lower total than the
// stored one is ignored: completed exchanges never revert, so a smaller count is a stale recount.
func (r *UserRepository) SetCompletedExchanges(ctx context.Context, userID int64, count int) error {
	ctx, span := tracing.StartSpan(ctx, "UserRepository.SetCompletedExchanges")
	defer span.End()

	ub := database.NewUpdateBuilder()
	ub.Update(usersTable).
		Set(
			fmt.Sprintf("completed_exchanges = GREATEST(completed_exchanges, %s)", ub.Var(count)),
			ub.Assign("updated_at", now()),
		).
		Where(ub.Equal("id", userID))

	query, args := ub.Build()
	res, err := r.Conn(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		return r.internal(ctx, err, map[string]any{"user_id": userID}, "failed to update completed exchanges")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fernerrors.NotFound("user %d does not exist", userID)
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"user_id":             userID,
		"completed_exchanges": count,
	}).Debugf("Updated %s", usersTable)
	return nil
}

// GrantBadge records the badge once. It reports false when the user already held it.
func (r *UserRepository) GrantBadge(ctx context.Context, userID int64, badgeKey string) (bool, error) {
	ctx, span := tracing.StartSpan(ctx, "UserRepository.GrantBadge")
	defer span.End()

	ib := database.NewInsertBuilder()
	ib.InsertInto(userBadgesTable).
		Cols("user_id", "badge_key", "granted_at").
		Values(userID, badgeKey, now())
	ib.OnConflictDoNothing("user_id", "badge_key")

	query, args := ib.Build()
	res, err := r.Conn(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		return false, r.internal(ctx, err, map[string]any{"user_id": userID, "badge": badgeKey}, "failed to grant badge")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, r.internal(ctx, err, map[string]any{"user_id": userID, "badge": badgeKey}, "failed to grant badge")
	}
	return n == 1, nil
}

func (r *UserRepository) ListBadges(ctx context.Context, userID int64) ([]models.BadgeGrant, error) {
	ctx, span := tracing.StartSpan(ctx, "UserRepository.ListBadges")
	defer span.End()

	sb := badgeStruct.SelectFrom(userBadgesTable)
	sb.Where(sb.Equal("user_id", userID)).OrderBy("granted_at")

	query, args := sb.Build()
	var grants []models.BadgeGrant
	if err := r.Conn(ctx).SelectContext(ctx, &grants, query, args...); err != nil {
		return nil, r.internal(ctx, err, map[string]any{"user_id": userID}, "failed to list badges")
	}
	return grants, nil
}
