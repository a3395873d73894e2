package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/nguyentranbao-ct/family-chat/internal/models"
	"github.com/nguyentranbao-ct/family-chat/internal/repo/mongodb"
	"github.com/nguyentranbao-ct/family-chat/pkg/util"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

func validateParams(params any) error {
	if err := validate.Struct(params); err != nil {
		return models.BadRequest("%s", err.Error())
	}
	return nil
}

// now truncates to the storage precision so cursors survive a round trip.
func now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

// chatAccess holds the lookups and the member_ids sync shared by the services.
type chatAccess struct {
	chatRepo       mongodb.ChatRepository
	membershipRepo mongodb.ChatMembershipRepository
}

func (a chatAccess) getChat(ctx context.Context, chatID primitive.ObjectID) (*models.Chat, error) {
	chat, err := a.chatRepo.GetByID(ctx, chatID)
	if models.IsNotFound(err) {
		return nil, models.NotFound("chat %s not found", chatID.Hex())
	}
	if err != nil {
		return nil, err
	}
	return chat, nil
}

// requireMember returns the caller's membership or Forbidden.
func (a chatAccess) requireMember(ctx context.Context, chatID, userID primitive.ObjectID) (*models.ChatMembership, error) {
	m, err := a.membershipRepo.Get(ctx, chatID, userID)
	if models.IsNotFound(err) {
		return nil, models.Forbidden("not a member of chat %s", chatID.Hex())
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

// syncMemberIDs rewrites chat.member_ids from the membership rows.
func (a chatAccess) syncMemberIDs(ctx context.Context, chatID primitive.ObjectID) ([]primitive.ObjectID, error) {
	ms, err := a.membershipRepo.ListByChat(ctx, chatID)
	if err != nil {
		return nil, err
	}
	ids := util.ConvertList(ms, func(m *models.ChatMembership) primitive.ObjectID {
		return m.UserID
	})
	if err := a.chatRepo.SetMemberIDs(ctx, chatID, ids); err != nil {
		return nil, fmt.Errorf("sync member ids: %w", err)
	}
	return ids, nil
}

func pageLimit(limit, def, max int) int {
	if limit <= 0 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}

// buildPage trims the extra row fetched to detect a next page.
func buildPage[T any](rows []T, limit int, cursorOf func(T) string) *models.Page[T] {
	page := &models.Page[T]{Items: rows}
	if len(rows) > limit {
		page.Items = rows[:limit]
		page.NextCursor = util.Ptr(cursorOf(page.Items[limit-1]))
	}
	if page.Items == nil {
		page.Items = []T{}
	}
	return page
}

func newMemberships(chatID primitive.ObjectID, at time.Time, admin primitive.ObjectID, userIDs []primitive.ObjectID) []*models.ChatMembership {
	return util.ConvertList(userIDs, func(id primitive.ObjectID) *models.ChatMembership {
		role := models.RoleMember
		if id == admin {
			role = models.RoleAdmin
		}
		return &models.ChatMembership{
			ChatID:    chatID,
			UserID:    id,
			Role:      role,
			CreatedAt: at,
			UpdatedAt: at,
		}
	})
}
