package usecase

import (
	"context"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/nguyentranbao-ct/family-chat/internal/models"
)

// Broadcaster pushes realtime events to users. Delivery is best effort and
// implementations must not block the caller on the network.
type Broadcaster interface {
	Broadcast(ctx context.Context, userIDs []primitive.ObjectID, event string, data any)
}

// Notifier hands out of band notifications to the dispatcher.
type Notifier interface {
	Notify(ctx context.Context, n models.Notification) error
}

type PageParams struct {
	Limit int
	// Before is the hex id of the last item of the previous page.
	Before string
}

type ChatUsecase interface {
	CreateDM(ctx context.Context, userID, peerID primitive.ObjectID) (*models.Chat, bool, error)
	CreateGroup(ctx context.Context, params CreateGroupParams) (*models.Chat, error)
	ListUserChats(ctx context.Context, userID primitive.ObjectID, page PageParams) (*models.Page[*models.ChatSummary], error)
	GetChat(ctx context.Context, chatID, userID primitive.ObjectID) (*models.Chat, error)
	ClearChat(ctx context.Context, chatID, actorID primitive.ObjectID) error
	RemoveUserFromAllChats(ctx context.Context, userID primitive.ObjectID) error
}

type MembershipUsecase interface {
	UpdateReadCursor(ctx context.Context, chatID, userID, messageID primitive.ObjectID) (bool, error)
	AddMembers(ctx context.Context, chatID, actorID primitive.ObjectID, userIDs []primitive.ObjectID) ([]*models.ChatMembership, error)
	RemoveMember(ctx context.Context, chatID, actorID, targetID primitive.ObjectID) error
	ListMembers(ctx context.Context, chatID, userID primitive.ObjectID) ([]*models.ChatMembership, error)
}

type MessageUsecase interface {
	CreateMessage(ctx context.Context, params CreateMessageParams) (*models.Message, bool, error)
	ListMessages(ctx context.Context, chatID, userID primitive.ObjectID, page PageParams) (*models.Page[*models.Message], error)
	Search(ctx context.Context, params SearchParams) (*models.Page[*models.Message], error)
}
