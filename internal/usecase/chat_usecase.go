package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/sync/errgroup"

	"github.com/nguyentranbao-ct/family-chat/internal/config"
	"github.com/nguyentranbao-ct/family-chat/internal/models"
	"github.com/nguyentranbao-ct/family-chat/internal/repo/mongodb"
	log "github.com/nguyentranbao-ct/family-chat/pkg/logger/logctx"
	"github.com/nguyentranbao-ct/family-chat/pkg/util"
)

const summaryConcurrency = 8

type ChatUseCase struct {
	chatAccess
	conf        config.ChatConfig
	messageRepo mongodb.MessageRepository
	broadcaster Broadcaster
}

var _ ChatUsecase = (*ChatUseCase)(nil)

func NewChatUseCase(
	conf *config.Config,
	chatRepo mongodb.ChatRepository,
	membershipRepo mongodb.ChatMembershipRepository,
	messageRepo mongodb.MessageRepository,
	broadcaster Broadcaster,
) *ChatUseCase {
	return &ChatUseCase{
		chatAccess: chatAccess{
			chatRepo:       chatRepo,
			membershipRepo: membershipRepo,
		},
		conf:        conf.Chat,
		messageRepo: messageRepo,
		broadcaster: broadcaster,
	}
}

// CreateDM returns the dm between the two users, creating it on first use.
// The bool reports whether this call created it.
func (uc *ChatUseCase) CreateDM(ctx context.Context, userID, peerID primitive.ObjectID) (*models.Chat, bool, error) {
	if userID.IsZero() || peerID.IsZero() {
		return nil, false, models.BadRequest("both users are required")
	}
	if userID == peerID {
		return nil, false, models.BadRequest("cannot start a dm with yourself")
	}

	hash, memberIDs := mongodb.DMHash(userID, peerID)
	existing, err := uc.chatRepo.GetDMByHash(ctx, hash)
	if err == nil {
		if err := uc.ensureDMMemberships(ctx, existing); err != nil {
			return nil, false, err
		}
		return existing, false, nil
	}
	if !models.IsNotFound(err) {
		return nil, false, err
	}

	at := now()
	chat := &models.Chat{
		Type:          models.ChatTypeDM,
		CreatedBy:     userID,
		MemberIDs:     memberIDs,
		MemberIDsHash: hash,
		CreatedAt:     at,
		UpdatedAt:     at,
	}
	if err := uc.chatRepo.Create(ctx, chat); err != nil {
		if !errors.Is(err, mongodb.ErrDuplicateKey) {
			return nil, false, err
		}
		// lost the insert race, the winner's chat is the dm
		existing, err := uc.chatRepo.GetDMByHash(ctx, hash)
		if err != nil {
			return nil, false, fmt.Errorf("refetch dm after conflict: %w", err)
		}
		if err := uc.ensureDMMemberships(ctx, existing); err != nil {
			return nil, false, err
		}
		return existing, false, nil
	}

	if err := uc.ensureDMMemberships(ctx, chat); err != nil {
		return nil, false, err
	}

	log.Infow(ctx, "dm created", "chat_id", chat.ID.Hex(), "created_by", userID.Hex())
	uc.broadcaster.Broadcast(ctx, chat.MemberIDs, models.EventChatCreated, chat)
	return chat, true, nil
}

// ensureDMMemberships writes whichever of the two dm memberships is missing.
// A create that failed after inserting the chat is repaired by the next call.
func (uc *ChatUseCase) ensureDMMemberships(ctx context.Context, chat *models.Chat) error {
	current, err := uc.membershipRepo.ListByChat(ctx, chat.ID)
	if err != nil {
		return err
	}
	if len(current) == len(chat.MemberIDs) {
		return nil
	}

	joined := util.ConvertList(current, func(m *models.ChatMembership) primitive.ObjectID {
		return m.UserID
	})
	var missing []primitive.ObjectID
	for _, id := range chat.MemberIDs {
		if !util.SliceIncludes(joined, id) {
			missing = append(missing, id)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	err = uc.membershipRepo.CreateMany(ctx, newMemberships(chat.ID, chat.CreatedAt, primitive.NilObjectID, missing))
	if err != nil && !errors.Is(err, mongodb.ErrDuplicateKey) {
		return fmt.Errorf("create dm memberships: %w", err)
	}
	return nil
}

type CreateGroupParams struct {
	CreatorID primitive.ObjectID
	Title     string `validate:"required,max=200"`
	MemberIDs []primitive.ObjectID
}

// CreateGroup creates a group chat with the creator as its first member and admin.
func (uc *ChatUseCase) CreateGroup(ctx context.Context, params CreateGroupParams) (*models.Chat, error) {
	params.Title = strings.TrimSpace(params.Title)
	if err := validateParams(params); err != nil {
		return nil, err
	}
	if params.CreatorID.IsZero() {
		return nil, models.BadRequest("creator is required")
	}
	for _, id := range params.MemberIDs {
		if id.IsZero() {
			return nil, models.BadRequest("member ids must not be empty")
		}
	}

	memberIDs := util.Uniq(append([]primitive.ObjectID{params.CreatorID}, params.MemberIDs...))
	at := now()
	chat := &models.Chat{
		Type:      models.ChatTypeGroup,
		Title:     util.Ptr(params.Title),
		CreatedBy: params.CreatorID,
		MemberIDs: memberIDs,
		CreatedAt: at,
		UpdatedAt: at,
	}
	if err := uc.chatRepo.Create(ctx, chat); err != nil {
		return nil, err
	}

	memberships := newMemberships(chat.ID, at, params.CreatorID, memberIDs)
	if err := uc.membershipRepo.CreateMany(ctx, memberships); err != nil {
		return nil, err
	}

	log.Infow(ctx, "group created", "chat_id", chat.ID.Hex(), "members", len(memberIDs))
	uc.broadcaster.Broadcast(ctx, chat.MemberIDs, models.EventChatCreated, chat)
	return chat, nil
}

// ListUserChats pages the user's chats by latest activity, each with its
// newest message and the user's unread count.
func (uc *ChatUseCase) ListUserChats(ctx context.Context, userID primitive.ObjectID, page PageParams) (*models.Page[*models.ChatSummary], error) {
	limit := pageLimit(page.Limit, uc.conf.ChatPageSize, uc.conf.MaxChatPageSize)

	memberships, err := uc.membershipRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	chatIDs := make([]primitive.ObjectID, 0, len(memberships))
	readCursors := make(map[primitive.ObjectID]*primitive.ObjectID, len(memberships))
	for _, m := range memberships {
		chatIDs = append(chatIDs, m.ChatID)
		readCursors[m.ChatID] = m.LastReadMessageID
	}

	var before *models.Chat
	if page.Before != "" {
		cursorID, err := models.ParseObjectID(page.Before, "cursor")
		if err != nil {
			return nil, err
		}
		if _, ok := readCursors[cursorID]; !ok {
			return nil, models.BadRequest("cursor %s is not one of your chats", page.Before)
		}
		if before, err = uc.getChat(ctx, cursorID); err != nil {
			return nil, err
		}
	}

	chats, err := uc.chatRepo.ListByIDs(ctx, chatIDs, before, limit+1)
	if err != nil {
		return nil, err
	}
	result := buildPage(chats, limit, func(c *models.Chat) string {
		return c.ID.Hex()
	})

	summaries := make([]*models.ChatSummary, len(result.Items))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(summaryConcurrency)
	for i, chat := range result.Items {
		g.Go(func() error {
			latest, err := uc.messageRepo.GetLatest(gctx, chat.ID)
			if err != nil {
				return err
			}
			unread, err := uc.messageRepo.Count(gctx, chat.ID, readCursors[chat.ID])
			if err != nil {
				return err
			}
			summaries[i] = &models.ChatSummary{
				Chat:        chat,
				LastMessage: latest,
				UnreadCount: unread,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("load chat summaries: %w", err)
	}

	return &models.Page[*models.ChatSummary]{
		Items:      summaries,
		NextCursor: result.NextCursor,
	}, nil
}

func (uc *ChatUseCase) GetChat(ctx context.Context, chatID, userID primitive.ObjectID) (*models.Chat, error) {
	chat, err := uc.getChat(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if _, err := uc.requireMember(ctx, chatID, userID); err != nil {
		return nil, err
	}
	return chat, nil
}

// ClearChat deletes every message of the chat. Admins only.
func (uc *ChatUseCase) ClearChat(ctx context.Context, chatID, actorID primitive.ObjectID) error {
	chat, err := uc.getChat(ctx, chatID)
	if err != nil {
		return err
	}
	actor, err := uc.requireMember(ctx, chatID, actorID)
	if err != nil {
		return err
	}
	if !actor.IsAdmin() {
		return models.Forbidden("only admins can clear chat %s", chatID.Hex())
	}

	deleted, err := uc.messageRepo.DeleteByChat(ctx, chatID)
	if err != nil {
		return err
	}
	if err := uc.membershipRepo.ResetReadCursors(ctx, chatID); err != nil {
		return err
	}
	if err := uc.chatRepo.Touch(ctx, chatID, now()); err != nil {
		return err
	}

	log.Infow(ctx, "chat cleared", "chat_id", chatID.Hex(), "deleted_messages", deleted)
	uc.broadcaster.Broadcast(ctx, chat.MemberIDs, models.EventChatCleared, map[string]any{
		"chat_id": chatID,
	})
	return nil
}

// RemoveUserFromAllChats runs when a user leaves the family: their dms are
// deleted outright and they are stripped from every other chat.
func (uc *ChatUseCase) RemoveUserFromAllChats(ctx context.Context, userID primitive.ObjectID) error {
	memberships, err := uc.membershipRepo.ListByUser(ctx, userID)
	if err != nil {
		return err
	}

	for _, m := range memberships {
		chat, err := uc.chatRepo.GetByID(ctx, m.ChatID)
		if models.IsNotFound(err) {
			// orphan row, the chat is already gone
			if err := uc.membershipRepo.Delete(ctx, m.ChatID, userID); err != nil && !models.IsNotFound(err) {
				return err
			}
			continue
		}
		if err != nil {
			return err
		}

		if chat.Type == models.ChatTypeDM {
			err = uc.deleteDM(ctx, chat)
		} else {
			err = uc.stripMember(ctx, chat, userID)
		}
		if err != nil {
			return fmt.Errorf("remove user from chat %s: %w", chat.ID.Hex(), err)
		}
	}

	log.Infow(ctx, "user removed from all chats", "user_id", userID.Hex(), "chats", len(memberships))
	return nil
}

func (uc *ChatUseCase) deleteDM(ctx context.Context, chat *models.Chat) error {
	if _, err := uc.messageRepo.DeleteByChat(ctx, chat.ID); err != nil {
		return err
	}
	if _, err := uc.membershipRepo.DeleteByChat(ctx, chat.ID); err != nil {
		return err
	}
	if err := uc.chatRepo.Delete(ctx, chat.ID); err != nil && !models.IsNotFound(err) {
		return err
	}
	uc.broadcaster.Broadcast(ctx, chat.MemberIDs, models.EventChatDeleted, map[string]any{
		"chat_id": chat.ID,
	})
	return nil
}

func (uc *ChatUseCase) stripMember(ctx context.Context, chat *models.Chat, userID primitive.ObjectID) error {
	if err := uc.membershipRepo.Delete(ctx, chat.ID, userID); err != nil && !models.IsNotFound(err) {
		return err
	}
	remaining, err := uc.syncMemberIDs(ctx, chat.ID)
	if err != nil {
		return err
	}
	uc.broadcaster.Broadcast(ctx, append(remaining, userID), models.EventMemberRemoved, models.MemberEvent{
		ChatID:  chat.ID,
		UserIDs: []primitive.ObjectID{userID},
	})
	return nil
}
