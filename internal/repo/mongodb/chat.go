package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/nguyentranbao-ct/family-chat/internal/models"
)

type ChatRepository interface {
	// Create inserts chat, returning ErrDuplicateKey when a dm for the same pair exists.
	Create(ctx context.Context, chat *models.Chat) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.Chat, error)
	GetDMByHash(ctx context.Context, hash string) (*models.Chat, error)
	// ListByIDs pages chats among ids, newest activity first, strictly after the before chat.
	ListByIDs(ctx context.Context, ids []primitive.ObjectID, before *models.Chat, limit int) ([]*models.Chat, error)
	SetMemberIDs(ctx context.Context, id primitive.ObjectID, memberIDs []primitive.ObjectID) error
	Touch(ctx context.Context, id primitive.ObjectID, at time.Time) error
	Delete(ctx context.Context, id primitive.ObjectID) error
}

type chatRepo struct {
	baseRepo[models.Chat]
}

func NewChatRepository(db *DB) ChatRepository {
	return &chatRepo{
		baseRepo: newBaseRepo[models.Chat](db),
	}
}

func (r *chatRepo) createIndexes(ctx context.Context) error {
	return createIndexes(ctx, r.coll, []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "member_ids", Value: 1},
				{Key: "updated_at", Value: -1},
			},
			Options: options.Index().SetName("member_ids_updated_at"),
		},
		{
			Keys: bson.D{
				{Key: "type", Value: 1},
				{Key: "member_ids_hash", Value: 1},
			},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"member_ids_hash": bson.M{"$exists": true}}).
				SetName("dm_member_ids_hash"),
		},
		{
			Keys:    bson.D{{Key: "updated_at", Value: -1}, {Key: "_id", Value: -1}},
			Options: options.Index().SetName("updated_at_id"),
		},
	})
}

func (r *chatRepo) Create(ctx context.Context, chat *models.Chat) error {
	now := time.Now()
	if chat.ID.IsZero() {
		chat.ID = primitive.NewObjectID()
	}
	if chat.CreatedAt.IsZero() {
		chat.CreatedAt = now
	}
	if chat.UpdatedAt.IsZero() {
		chat.UpdatedAt = chat.CreatedAt
	}
	return wrapWriteErr("failed to create chat", r.insert(ctx, chat))
}

func (r *chatRepo) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Chat, error) {
	chat, err := r.findOne(ctx, bson.M{"_id": id})
	if err != nil {
		return nil, fmt.Errorf("failed to get chat: %w", err)
	}
	return chat, nil
}

func (r *chatRepo) GetDMByHash(ctx context.Context, hash string) (*models.Chat, error) {
	filter := bson.M{
		"type":            models.ChatTypeDM,
		"member_ids_hash": hash,
	}
	chat, err := r.findOne(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to get dm chat: %w", err)
	}
	return chat, nil
}

func (r *chatRepo) ListByIDs(ctx context.Context, ids []primitive.ObjectID, before *models.Chat, limit int) ([]*models.Chat, error) {
	if len(ids) == 0 {
		return []*models.Chat{}, nil
	}

	filter := bson.M{"_id": bson.M{"$in": ids}}
	if before != nil {
		for k, v := range beforeFilter("updated_at", before.UpdatedAt, before.ID) {
			filter[k] = v
		}
	}
	opts := options.Find().
		SetSort(bsonDesc("updated_at")).
		SetLimit(int64(limit))

	chats, err := r.find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list chats: %w", err)
	}
	return chats, nil
}

func (r *chatRepo) SetMemberIDs(ctx context.Context, id primitive.ObjectID, memberIDs []primitive.ObjectID) error {
	update := bson.M{"$set": bson.M{
		"member_ids": memberIDs,
		"updated_at": time.Now(),
	}}
	if _, err := r.updateOne(ctx, bson.M{"_id": id}, update); err != nil {
		return fmt.Errorf("failed to set chat members: %w", err)
	}
	return nil
}

// Touch bumps updated_at, never moving it backwards.
func (r *chatRepo) Touch(ctx context.Context, id primitive.ObjectID, at time.Time) error {
	update := bson.M{"$max": bson.M{"updated_at": at}}
	if _, err := r.updateOne(ctx, bson.M{"_id": id}, update); err != nil {
		return fmt.Errorf("failed to touch chat: %w", err)
	}
	return nil
}

func (r *chatRepo) Delete(ctx context.Context, id primitive.ObjectID) error {
	if err := r.deleteOne(ctx, bson.M{"_id": id}); err != nil {
		return fmt.Errorf("failed to delete chat: %w", err)
	}
	return nil
}
