package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/nguyentranbao-ct/family-chat/internal/config"
	"github.com/nguyentranbao-ct/family-chat/internal/models"
	"github.com/nguyentranbao-ct/family-chat/internal/repo/mongodb"
	log "github.com/nguyentranbao-ct/family-chat/pkg/logger/logctx"
	"github.com/nguyentranbao-ct/family-chat/pkg/util"
)

const notifyTimeout = 5 * time.Second

// dmPromotionCount is the message count at which both dm members become admins.
const dmPromotionCount = 2

type MessageUseCase struct {
	chatAccess
	conf        config.ChatConfig
	messageRepo mongodb.MessageRepository
	broadcaster Broadcaster
	notifier    Notifier
}

var _ MessageUsecase = (*MessageUseCase)(nil)

func NewMessageUseCase(
	conf *config.Config,
	chatRepo mongodb.ChatRepository,
	membershipRepo mongodb.ChatMembershipRepository,
	messageRepo mongodb.MessageRepository,
	broadcaster Broadcaster,
	notifier Notifier,
) *MessageUseCase {
	return &MessageUseCase{
		chatAccess: chatAccess{
			chatRepo:       chatRepo,
			membershipRepo: membershipRepo,
		},
		conf:        conf.Chat,
		messageRepo: messageRepo,
		broadcaster: broadcaster,
		notifier:    notifier,
	}
}

type CreateMessageParams struct {
	ChatID     primitive.ObjectID
	SenderID   primitive.ObjectID
	SenderName string
	Body       string `validate:"required,max=8000"`
	ClientID   string `validate:"omitempty,max=128"`
}

// CreateMessage stores a message. With a ClientID the call is idempotent:
// a repeat returns the stored message and false, and triggers nothing.
func (uc *MessageUseCase) CreateMessage(ctx context.Context, params CreateMessageParams) (*models.Message, bool, error) {
	// blank bodies are rejected but the stored body keeps its whitespace
	check := params
	check.Body = strings.TrimSpace(params.Body)
	if err := validateParams(check); err != nil {
		return nil, false, err
	}

	chat, err := uc.getChat(ctx, params.ChatID)
	if err != nil {
		return nil, false, err
	}
	if _, err := uc.requireMember(ctx, params.ChatID, params.SenderID); err != nil {
		return nil, false, err
	}

	if params.ClientID != "" {
		existing, err := uc.messageRepo.GetByClientID(ctx, params.ChatID, params.ClientID)
		if err == nil {
			return existing, false, nil
		}
		if !models.IsNotFound(err) {
			return nil, false, err
		}
	}

	msg := &models.Message{
		ChatID:    params.ChatID,
		SenderID:  params.SenderID,
		Body:      params.Body,
		ClientID:  params.ClientID,
		CreatedAt: now(),
	}
	if err := uc.messageRepo.Create(ctx, msg); err != nil {
		if params.ClientID == "" || !errors.Is(err, mongodb.ErrDuplicateKey) {
			return nil, false, err
		}
		// a concurrent request with the same client id won the insert
		existing, err := uc.messageRepo.GetByClientID(ctx, params.ChatID, params.ClientID)
		if err != nil {
			return nil, false, fmt.Errorf("refetch message after conflict: %w", err)
		}
		return existing, false, nil
	}

	// the message is stored; failures below are logged, not returned
	if err := uc.chatRepo.Touch(ctx, chat.ID, msg.CreatedAt); err != nil {
		log.Warnw(ctx, "failed to touch chat", "chat_id", chat.ID.Hex(), "error", err)
	}
	if chat.Type == models.ChatTypeDM {
		uc.promoteDM(ctx, chat)
	}

	uc.broadcaster.Broadcast(ctx, chat.MemberIDs, models.EventMessageCreated, msg)
	uc.notify(ctx, chat, msg, params.SenderName)
	return msg, true, nil
}

// promoteDM makes both dm members admins once the dm holds exactly two messages.
func (uc *MessageUseCase) promoteDM(ctx context.Context, chat *models.Chat) {
	count, err := uc.messageRepo.Count(ctx, chat.ID, nil)
	if err != nil {
		log.Warnw(ctx, "failed to count dm messages", "chat_id", chat.ID.Hex(), "error", err)
		return
	}
	if count != dmPromotionCount {
		return
	}
	promoted, err := uc.membershipRepo.SetRole(ctx, chat.ID, models.RoleMember, models.RoleAdmin)
	if err != nil {
		log.Errorw(ctx, "failed to promote dm members", "chat_id", chat.ID.Hex(), "error", err)
		return
	}
	log.Infow(ctx, "dm members promoted", "chat_id", chat.ID.Hex(), "promoted", promoted)
}

func (uc *MessageUseCase) notify(ctx context.Context, chat *models.Chat, msg *models.Message, senderName string) {
	recipients := make([]primitive.ObjectID, 0, len(chat.MemberIDs))
	for _, id := range chat.MemberIDs {
		if id != msg.SenderID {
			recipients = append(recipients, id)
		}
	}
	if len(recipients) == 0 {
		return
	}

	ctx, cancel := util.NewTimeoutContext(ctx, notifyTimeout)
	defer cancel()

	n := models.Notification{
		ChatID:       chat.ID,
		MessageID:    msg.ID,
		SenderID:     msg.SenderID,
		SenderName:   senderName,
		Preview:      util.Truncate(msg.Body, uc.conf.PreviewLength),
		RecipientIDs: recipients,
		CreatedAt:    msg.CreatedAt,
	}
	if err := uc.notifier.Notify(ctx, n); err != nil {
		log.Warnw(ctx, "failed to dispatch notification", "chat_id", chat.ID.Hex(), "message_id", msg.ID.Hex(), "error", err)
	}
}

// ListMessages pages a chat's history, newest first.
func (uc *MessageUseCase) ListMessages(ctx context.Context, chatID, userID primitive.ObjectID, page PageParams) (*models.Page[*models.Message], error) {
	if _, err := uc.getChat(ctx, chatID); err != nil {
		return nil, err
	}
	if _, err := uc.requireMember(ctx, chatID, userID); err != nil {
		return nil, err
	}

	chatIDs := []primitive.ObjectID{chatID}
	return uc.list(ctx, mongodb.MessageQuery{ChatIDs: chatIDs}, page)
}

type SearchParams struct {
	UserID primitive.ObjectID
	Query  string `validate:"required,max=200"`
	// ChatID narrows the search to one chat, otherwise every chat of the user.
	ChatID *primitive.ObjectID
	Page   PageParams
}

func (uc *MessageUseCase) Search(ctx context.Context, params SearchParams) (*models.Page[*models.Message], error) {
	params.Query = strings.TrimSpace(params.Query)
	if err := validateParams(params); err != nil {
		return nil, err
	}

	var chatIDs []primitive.ObjectID
	if params.ChatID != nil {
		if _, err := uc.getChat(ctx, *params.ChatID); err != nil {
			return nil, err
		}
		if _, err := uc.requireMember(ctx, *params.ChatID, params.UserID); err != nil {
			return nil, err
		}
		chatIDs = []primitive.ObjectID{*params.ChatID}
	} else {
		memberships, err := uc.membershipRepo.ListByUser(ctx, params.UserID)
		if err != nil {
			return nil, err
		}
		chatIDs = util.ConvertList(memberships, func(m *models.ChatMembership) primitive.ObjectID {
			return m.ChatID
		})
	}

	return uc.list(ctx, mongodb.MessageQuery{ChatIDs: chatIDs, Text: params.Query}, params.Page)
}

func (uc *MessageUseCase) list(ctx context.Context, q mongodb.MessageQuery, page PageParams) (*models.Page[*models.Message], error) {
	limit := pageLimit(page.Limit, uc.conf.MessagePageSize, uc.conf.MaxMessagePageSize)

	if page.Before != "" {
		before, err := uc.resolveCursor(ctx, page.Before, q.ChatIDs)
		if err != nil {
			return nil, err
		}
		q.Before = before
	}
	q.Limit = limit + 1

	msgs, err := uc.messageRepo.List(ctx, q)
	if err != nil {
		return nil, err
	}
	return buildPage(msgs, limit, func(m *models.Message) string {
		return m.ID.Hex()
	}), nil
}

// resolveCursor loads the cursor message, which must belong to one of chatIDs.
func (uc *MessageUseCase) resolveCursor(ctx context.Context, cursor string, chatIDs []primitive.ObjectID) (*models.Message, error) {
	id, err := models.ParseObjectID(cursor, "cursor")
	if err != nil {
		return nil, err
	}
	msg, err := uc.messageRepo.GetByID(ctx, id)
	if models.IsNotFound(err) {
		return nil, models.NotFound("cursor message %s not found", cursor)
	}
	if err != nil {
		return nil, err
	}
	if !util.SliceIncludes(chatIDs, msg.ChatID) {
		return nil, models.BadRequest("cursor message %s belongs to another chat", cursor)
	}
	return msg, nil
}
