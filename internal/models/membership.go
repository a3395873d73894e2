package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type MemberRole string

const (
	RoleAdmin  MemberRole = "admin"
	RoleMember MemberRole = "member"
)

type ChatMembership struct {
	ID     primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ChatID primitive.ObjectID `bson:"chat_id" json:"chat_id"`
	UserID primitive.ObjectID `bson:"user_id" json:"user_id"`
	Role   MemberRole         `bson:"role" json:"role"`
	// LastReadMessageID only moves forward, nil until the member reads anything.
	LastReadMessageID *primitive.ObjectID `bson:"last_read_message_id,omitempty" json:"last_read_message_id,omitempty"`
	CreatedAt         time.Time           `bson:"created_at" json:"created_at"`
	UpdatedAt         time.Time           `bson:"updated_at" json:"updated_at"`
}

func (ChatMembership) CollectionName() string {
	return "chat_memberships"
}

func (m *ChatMembership) IsAdmin() bool {
	return m.Role == RoleAdmin
}
