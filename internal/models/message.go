package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	MaxMessageBodyLength = 8000
	MaxStoredBodyBytes   = 100 * 1024
)

type Message struct {
	ID       primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ChatID   primitive.ObjectID `bson:"chat_id" json:"chat_id"`
	SenderID primitive.ObjectID `bson:"sender_id" json:"sender_id"`
	Body     string             `bson:"body" json:"body"`
	// ClientID is the sender supplied idempotency key, unique per chat.
	ClientID  string     `bson:"client_id,omitempty" json:"client_id,omitempty"`
	CreatedAt time.Time  `bson:"created_at" json:"created_at"`
	EditedAt  *time.Time `bson:"edited_at,omitempty" json:"edited_at,omitempty"`
	Deleted   bool       `bson:"deleted" json:"deleted"`
}

func (Message) CollectionName() string {
	return "messages"
}
