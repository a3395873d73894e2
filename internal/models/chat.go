package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type ChatType string

const (
	ChatTypeDM    ChatType = "dm"
	ChatTypeGroup ChatType = "group"
	ChatTypeAI    ChatType = "ai"
)

type Chat struct {
	ID        primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	Type      ChatType             `bson:"type" json:"type"`
	Title     *string              `bson:"title" json:"title"` // always nil for dm
	CreatedBy primitive.ObjectID   `bson:"created_by" json:"created_by"`
	MemberIDs []primitive.ObjectID `bson:"member_ids" json:"member_ids"`
	// MemberIDsHash is only set for dm chats, see DMHash.
	MemberIDsHash string    `bson:"member_ids_hash,omitempty" json:"-"`
	CreatedAt     time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt     time.Time `bson:"updated_at" json:"updated_at"`
}

func (Chat) CollectionName() string {
	return "chats"
}

// ChatSummary is a chat as listed to one of its members.
type ChatSummary struct {
	*Chat
	LastMessage *Message `json:"last_message"`
	UnreadCount int64    `json:"unread_count"`
}

type Page[T any] struct {
	Items      []T     `json:"items"`
	NextCursor *string `json:"next_cursor,omitempty"`
}
