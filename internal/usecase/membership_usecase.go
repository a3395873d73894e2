package usecase

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/nguyentranbao-ct/family-chat/internal/models"
	"github.com/nguyentranbao-ct/family-chat/internal/repo/mongodb"
	log "github.com/nguyentranbao-ct/family-chat/pkg/logger/logctx"
	"github.com/nguyentranbao-ct/family-chat/pkg/util"
)

type MembershipUseCase struct {
	chatAccess
	messageRepo mongodb.MessageRepository
	broadcaster Broadcaster
}

var _ MembershipUsecase = (*MembershipUseCase)(nil)

func NewMembershipUseCase(
	chatRepo mongodb.ChatRepository,
	membershipRepo mongodb.ChatMembershipRepository,
	messageRepo mongodb.MessageRepository,
	broadcaster Broadcaster,
) *MembershipUseCase {
	return &MembershipUseCase{
		chatAccess: chatAccess{
			chatRepo:       chatRepo,
			membershipRepo: membershipRepo,
		},
		messageRepo: messageRepo,
		broadcaster: broadcaster,
	}
}

// UpdateReadCursor moves the member's read cursor to messageID when it is
// newer than the stored one. The bool reports whether anything changed.
func (uc *MembershipUseCase) UpdateReadCursor(ctx context.Context, chatID, userID, messageID primitive.ObjectID) (bool, error) {
	if _, err := uc.requireMember(ctx, chatID, userID); err != nil {
		return false, err
	}

	msg, err := uc.messageRepo.GetByID(ctx, messageID)
	if models.IsNotFound(err) {
		return false, models.NotFound("message %s not found", messageID.Hex())
	}
	if err != nil {
		return false, err
	}
	if msg.ChatID != chatID {
		return false, models.BadRequest("message %s does not belong to chat %s", messageID.Hex(), chatID.Hex())
	}

	advanced, err := uc.membershipRepo.AdvanceReadCursor(ctx, chatID, userID, messageID)
	if err != nil {
		return false, err
	}
	if advanced {
		uc.broadcaster.Broadcast(ctx, []primitive.ObjectID{userID}, models.EventReadUpdated, models.ReadCursorEvent{
			ChatID:            chatID,
			UserID:            userID,
			LastReadMessageID: messageID,
		})
	}
	return advanced, nil
}

// AddMembers adds users to a group chat. The whole batch is rejected when
// any of them is already a member.
func (uc *MembershipUseCase) AddMembers(ctx context.Context, chatID, actorID primitive.ObjectID, userIDs []primitive.ObjectID) ([]*models.ChatMembership, error) {
	userIDs = util.Uniq(userIDs)
	if len(userIDs) == 0 {
		return nil, models.BadRequest("no users to add")
	}
	for _, id := range userIDs {
		if id.IsZero() {
			return nil, models.BadRequest("user ids must not be empty")
		}
	}

	chat, err := uc.getChat(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if chat.Type != models.ChatTypeGroup {
		return nil, models.BadRequest("members can only be added to group chats")
	}
	actor, err := uc.requireMember(ctx, chatID, actorID)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() {
		return nil, models.Forbidden("only admins can add members")
	}

	current, err := uc.membershipRepo.ListByChat(ctx, chatID)
	if err != nil {
		return nil, err
	}
	for _, m := range current {
		if util.SliceIncludes(userIDs, m.UserID) {
			return nil, models.BadRequest("user %s is already a member", m.UserID.Hex())
		}
	}

	added := newMemberships(chatID, now(), primitive.NilObjectID, userIDs)
	if err := uc.membershipRepo.CreateMany(ctx, added); err != nil {
		if !errors.Is(err, mongodb.ErrDuplicateKey) {
			return nil, err
		}
		// a concurrent add won some rows, the rest of the batch is written
		if _, syncErr := uc.syncMemberIDs(ctx, chatID); syncErr != nil {
			return nil, syncErr
		}
		return nil, models.BadRequest("some users are already members")
	}

	memberIDs, err := uc.syncMemberIDs(ctx, chatID)
	if err != nil {
		return nil, err
	}

	log.Infow(ctx, "members added", "chat_id", chatID.Hex(), "count", len(added))
	uc.broadcaster.Broadcast(ctx, memberIDs, models.EventMembersAdded, models.MemberEvent{
		ChatID:  chatID,
		UserIDs: userIDs,
	})
	return added, nil
}

// RemoveMember removes targetID from a group chat. Anyone may leave, only
// admins may remove somebody else.
func (uc *MembershipUseCase) RemoveMember(ctx context.Context, chatID, actorID, targetID primitive.ObjectID) error {
	chat, err := uc.getChat(ctx, chatID)
	if err != nil {
		return err
	}
	if chat.Type != models.ChatTypeGroup {
		return models.BadRequest("members can only be removed from group chats")
	}
	actor, err := uc.requireMember(ctx, chatID, actorID)
	if err != nil {
		return err
	}
	if actorID != targetID && !actor.IsAdmin() {
		return models.Forbidden("only admins can remove other members")
	}

	if err := uc.membershipRepo.Delete(ctx, chatID, targetID); err != nil {
		if models.IsNotFound(err) {
			return models.NotFound("user %s is not a member", targetID.Hex())
		}
		return err
	}

	memberIDs, err := uc.syncMemberIDs(ctx, chatID)
	if err != nil {
		return err
	}

	log.Infow(ctx, "member removed", "chat_id", chatID.Hex(), "user_id", targetID.Hex(), "by", actorID.Hex())
	uc.broadcaster.Broadcast(ctx, append(memberIDs, targetID), models.EventMemberRemoved, models.MemberEvent{
		ChatID:  chatID,
		UserIDs: []primitive.ObjectID{targetID},
	})
	return nil
}

func (uc *MembershipUseCase) ListMembers(ctx context.Context, chatID, userID primitive.ObjectID) ([]*models.ChatMembership, error) {
	if _, err := uc.getChat(ctx, chatID); err != nil {
		return nil, err
	}
	if _, err := uc.requireMember(ctx, chatID, userID); err != nil {
		return nil, err
	}
	return uc.membershipRepo.ListByChat(ctx, chatID)
}
