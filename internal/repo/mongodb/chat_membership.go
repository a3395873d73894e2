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

type ChatMembershipRepository interface {
	// CreateMany inserts every row it can. It returns ErrDuplicateKey when some
	// (chat, user) pair already existed; the other rows are still written.
	CreateMany(ctx context.Context, memberships []*models.ChatMembership) error
	Get(ctx context.Context, chatID, userID primitive.ObjectID) (*models.ChatMembership, error)
	// ListByChat returns memberships in join order.
	ListByChat(ctx context.Context, chatID primitive.ObjectID) ([]*models.ChatMembership, error)
	ListByUser(ctx context.Context, userID primitive.ObjectID) ([]*models.ChatMembership, error)
	Delete(ctx context.Context, chatID, userID primitive.ObjectID) error
	DeleteByChat(ctx context.Context, chatID primitive.ObjectID) (int64, error)
	SetRole(ctx context.Context, chatID primitive.ObjectID, from, to models.MemberRole) (int64, error)
	// AdvanceReadCursor only writes when messageID is newer than the stored cursor.
	AdvanceReadCursor(ctx context.Context, chatID, userID, messageID primitive.ObjectID) (bool, error)
	ResetReadCursors(ctx context.Context, chatID primitive.ObjectID) error
}

type chatMembershipRepo struct {
	baseRepo[models.ChatMembership]
}

func NewChatMembershipRepository(db *DB) ChatMembershipRepository {
	return &chatMembershipRepo{
		baseRepo: newBaseRepo[models.ChatMembership](db),
	}
}

func (r *chatMembershipRepo) createIndexes(ctx context.Context) error {
	return createIndexes(ctx, r.coll, []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "chat_id", Value: 1},
				{Key: "user_id", Value: 1},
			},
			Options: options.Index().
				SetUnique(true).
				SetName("chat_id_user_id"),
		},
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}},
			Options: options.Index().SetName("user_id"),
		},
	})
}

func (r *chatMembershipRepo) CreateMany(ctx context.Context, memberships []*models.ChatMembership) error {
	now := time.Now()
	for _, m := range memberships {
		if m.ID.IsZero() {
			m.ID = primitive.NewObjectID()
		}
		if m.CreatedAt.IsZero() {
			m.CreatedAt = now
		}
		m.UpdatedAt = m.CreatedAt
	}
	return wrapWriteErr("failed to create memberships", r.insertMany(ctx, memberships))
}

func (r *chatMembershipRepo) Get(ctx context.Context, chatID, userID primitive.ObjectID) (*models.ChatMembership, error) {
	m, err := r.findOne(ctx, bson.M{"chat_id": chatID, "user_id": userID})
	if err != nil {
		return nil, fmt.Errorf("failed to get membership: %w", err)
	}
	return m, nil
}

func (r *chatMembershipRepo) ListByChat(ctx context.Context, chatID primitive.ObjectID) ([]*models.ChatMembership, error) {
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	ms, err := r.find(ctx, bson.M{"chat_id": chatID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list chat memberships: %w", err)
	}
	return ms, nil
}

func (r *chatMembershipRepo) ListByUser(ctx context.Context, userID primitive.ObjectID) ([]*models.ChatMembership, error) {
	ms, err := r.find(ctx, bson.M{"user_id": userID})
	if err != nil {
		return nil, fmt.Errorf("failed to list user memberships: %w", err)
	}
	return ms, nil
}

func (r *chatMembershipRepo) Delete(ctx context.Context, chatID, userID primitive.ObjectID) error {
	if err := r.deleteOne(ctx, bson.M{"chat_id": chatID, "user_id": userID}); err != nil {
		return fmt.Errorf("failed to delete membership: %w", err)
	}
	return nil
}

func (r *chatMembershipRepo) DeleteByChat(ctx context.Context, chatID primitive.ObjectID) (int64, error) {
	n, err := r.deleteMany(ctx, bson.M{"chat_id": chatID})
	if err != nil {
		return 0, fmt.Errorf("failed to delete chat memberships: %w", err)
	}
	return n, nil
}

func (r *chatMembershipRepo) SetRole(ctx context.Context, chatID primitive.ObjectID, from, to models.MemberRole) (int64, error) {
	filter := bson.M{"chat_id": chatID, "role": from}
	update := bson.M{"$set": bson.M{"role": to, "updated_at": time.Now()}}
	n, err := r.updateMany(ctx, filter, update)
	if err != nil {
		return 0, fmt.Errorf("failed to set membership roles: %w", err)
	}
	return n, nil
}

func (r *chatMembershipRepo) AdvanceReadCursor(ctx context.Context, chatID, userID, messageID primitive.ObjectID) (bool, error) {
	// a null match also covers documents without the field
	filter := bson.M{
		"chat_id": chatID,
		"user_id": userID,
		"$or": bson.A{
			bson.M{"last_read_message_id": nil},
			bson.M{"last_read_message_id": bson.M{"$lt": messageID}},
		},
	}
	update := bson.M{"$set": bson.M{
		"last_read_message_id": messageID,
		"updated_at":           time.Now(),
	}}
	result, err := r.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, fmt.Errorf("failed to advance read cursor: %w", err)
	}
	return result.ModifiedCount > 0, nil
}

func (r *chatMembershipRepo) ResetReadCursors(ctx context.Context, chatID primitive.ObjectID) error {
	update := bson.M{
		"$unset": bson.M{"last_read_message_id": ""},
		"$set":   bson.M{"updated_at": time.Now()},
	}
	if _, err := r.updateMany(ctx, bson.M{"chat_id": chatID}, update); err != nil {
		return fmt.Errorf("failed to reset read cursors: %w", err)
	}
	return nil
}
