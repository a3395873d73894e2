package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Realtime event names pushed to members' channels.
const (
	EventChatCreated    = "chat_created"
	EventChatCleared    = "chat_cleared"
	EventChatDeleted    = "chat_deleted"
	EventMessageCreated = "message_created"
	EventMembersAdded   = "members_added"
	EventMemberRemoved  = "member_removed"
	EventReadUpdated    = "read_updated"
)

// Notification is handed to the out of band notification dispatcher.
type Notification struct {
	ChatID       primitive.ObjectID   `json:"chat_id"`
	MessageID    primitive.ObjectID   `json:"message_id"`
	SenderID     primitive.ObjectID   `json:"sender_id"`
	SenderName   string               `json:"sender_name"`
	Preview      string               `json:"preview"`
	RecipientIDs []primitive.ObjectID `json:"recipient_ids"`
	CreatedAt    time.Time            `json:"created_at"`
}

const PatternFamilyMemberRemoved = "family.member_removed"

// FamilyEvent is a family membership event published by the family service.
type FamilyEvent struct {
	Pattern string          `json:"pattern"`
	Data    FamilyEventData `json:"data"`
}

type FamilyEventData struct {
	FamilyID string `json:"family_id"`
	UserID   string `json:"user_id" validate:"required"`
}

type ReadCursorEvent struct {
	ChatID            primitive.ObjectID `json:"chat_id"`
	UserID            primitive.ObjectID `json:"user_id"`
	LastReadMessageID primitive.ObjectID `json:"last_read_message_id"`
}

type MemberEvent struct {
	ChatID  primitive.ObjectID   `json:"chat_id"`
	UserIDs []primitive.ObjectID `json:"user_ids"`
}
