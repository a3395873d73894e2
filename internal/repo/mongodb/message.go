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

var ErrBodyTooLarge = models.BadRequest("message body exceeds %d bytes", models.MaxStoredBodyBytes)

// MessageQuery drives both chat history and text search.
type MessageQuery struct {
	ChatIDs []primitive.ObjectID
	// Text, when set, restricts results through the body text index.
	Text string
	// Before is the exclusive cursor; results are strictly older than it.
	Before *models.Message
	Limit  int
}

type MessageRepository interface {
	// Create inserts msg, returning ErrDuplicateKey when the chat already has its client id.
	Create(ctx context.Context, msg *models.Message) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.Message, error)
	GetByClientID(ctx context.Context, chatID primitive.ObjectID, clientID string) (*models.Message, error)
	// GetLatest returns nil without error when the chat has no messages.
	GetLatest(ctx context.Context, chatID primitive.ObjectID) (*models.Message, error)
	List(ctx context.Context, q MessageQuery) ([]*models.Message, error)
	// Count counts messages of the chat, only those newer than after when set.
	Count(ctx context.Context, chatID primitive.ObjectID, after *primitive.ObjectID) (int64, error)
	DeleteByChat(ctx context.Context, chatID primitive.ObjectID) (int64, error)
}

type messageRepo struct {
	baseRepo[models.Message]
}

func NewMessageRepository(db *DB) MessageRepository {
	return &messageRepo{
		baseRepo: newBaseRepo[models.Message](db),
	}
}

func (r *messageRepo) createIndexes(ctx context.Context) error {
	return createIndexes(ctx, r.coll, []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "chat_id", Value: 1},
				{Key: "created_at", Value: -1},
				{Key: "_id", Value: -1},
			},
			Options: options.Index().SetName("chat_id_created_at_id"),
		},
		{
			Keys: bson.D{
				{Key: "chat_id", Value: 1},
				{Key: "client_id", Value: 1},
			},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"client_id": bson.M{"$exists": true}}).
				SetName("chat_id_client_id"),
		},
		{
			Keys:    bson.D{{Key: "body", Value: "text"}},
			Options: options.Index().SetName("body_text"),
		},
	})
}

func (r *messageRepo) Create(ctx context.Context, msg *models.Message) error {
	if len(msg.Body) > models.MaxStoredBodyBytes {
		return ErrBodyTooLarge
	}
	if msg.ID.IsZero() {
		msg.ID = primitive.NewObjectID()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	return wrapWriteErr("failed to create message", r.insert(ctx, msg))
}

func (r *messageRepo) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Message, error) {
	msg, err := r.findOne(ctx, bson.M{"_id": id})
	if err != nil {
		return nil, fmt.Errorf("failed to get message: %w", err)
	}
	return msg, nil
}

func (r *messageRepo) GetByClientID(ctx context.Context, chatID primitive.ObjectID, clientID string) (*models.Message, error) {
	msg, err := r.findOne(ctx, bson.M{"chat_id": chatID, "client_id": clientID})
	if err != nil {
		return nil, fmt.Errorf("failed to get message by client id: %w", err)
	}
	return msg, nil
}

func (r *messageRepo) GetLatest(ctx context.Context, chatID primitive.ObjectID) (*models.Message, error) {
	opts := options.FindOne().SetSort(bsonDesc("created_at"))
	msg, err := r.findOne(ctx, bson.M{"chat_id": chatID}, opts)
	if models.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest message: %w", err)
	}
	return msg, nil
}

func (q MessageQuery) filter() bson.M {
	filter := bson.M{}
	if len(q.ChatIDs) == 1 {
		filter["chat_id"] = q.ChatIDs[0]
	} else {
		filter["chat_id"] = bson.M{"$in": q.ChatIDs}
	}
	if q.Text != "" {
		filter["$text"] = bson.M{"$search": q.Text}
	}
	if q.Before != nil {
		for k, v := range beforeFilter("created_at", q.Before.CreatedAt, q.Before.ID) {
			filter[k] = v
		}
	}
	return filter
}

func (r *messageRepo) List(ctx context.Context, q MessageQuery) ([]*models.Message, error) {
	if len(q.ChatIDs) == 0 {
		return []*models.Message{}, nil
	}

	filter := q.filter()
	opts := options.Find().SetSort(bsonDesc("created_at"))
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}

	msgs, err := r.find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	return msgs, nil
}

func (r *messageRepo) Count(ctx context.Context, chatID primitive.ObjectID, after *primitive.ObjectID) (int64, error) {
	filter := bson.M{"chat_id": chatID}
	if after != nil {
		filter["_id"] = bson.M{"$gt": *after}
	}
	n, err := r.count(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to count messages: %w", err)
	}
	return n, nil
}

func (r *messageRepo) DeleteByChat(ctx context.Context, chatID primitive.ObjectID) (int64, error) {
	n, err := r.deleteMany(ctx, bson.M{"chat_id": chatID})
	if err != nil {
		return 0, fmt.Errorf("failed to delete chat messages: %w", err)
	}
	return n, nil
}
