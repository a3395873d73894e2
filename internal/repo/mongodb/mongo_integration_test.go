package mongodb

import (
	"context"
	"os"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/nguyentranbao-ct/family-chat/internal/models"
)

// openTestDB connects to FAMILY_CHAT_TEST_MONGO_URI and hands out a throwaway
// database with every index in place. Tests skip when the variable is unset.
func openTestDB(t *testing.T) *DB {
	t.Helper()
	uri := os.Getenv("FAMILY_CHAT_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("FAMILY_CHAT_TEST_MONGO_URI not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	require.NoError(t, err)
	require.NoError(t, client.Ping(ctx, nil))

	db := &DB{
		Client:   client,
		Database: client.Database("family_chat_test_" + primitive.NewObjectID().Hex()),
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = db.Database.Drop(ctx)
		_ = client.Disconnect(ctx)
	})

	require.NoError(t, EnsureIndexes(ctx,
		NewChatRepository(db),
		NewChatMembershipRepository(db),
		NewMessageRepository(db),
	))
	return db
}

func TestMongoMessageListPagesThroughEqualTimestamps(t *testing.T) {
	db := openTestDB(t)
	ctx := t.Context()
	repo := NewMessageRepository(db)

	chatID, otherChat, sender := primitive.NewObjectID(), primitive.NewObjectID(), primitive.NewObjectID()
	at := time.Now().UTC().Truncate(time.Millisecond)
	var want []primitive.ObjectID
	for range 25 {
		msg := &models.Message{ChatID: chatID, SenderID: sender, Body: "same instant", CreatedAt: at}
		require.NoError(t, repo.Create(ctx, msg))
		want = append(want, msg.ID)
	}
	require.NoError(t, repo.Create(ctx, &models.Message{ChatID: otherChat, SenderID: sender, Body: "elsewhere", CreatedAt: at}))
	slices.Reverse(want)

	var (
		got    []primitive.ObjectID
		before *models.Message
	)
	for page := 0; ; page++ {
		require.Less(t, page, 10, "pagination does not terminate")
		msgs, err := repo.List(ctx, MessageQuery{
			ChatIDs: []primitive.ObjectID{chatID},
			Before:  before,
			Limit:   4,
		})
		require.NoError(t, err)
		if len(msgs) == 0 {
			break
		}
		for _, m := range msgs {
			got = append(got, m.ID)
		}
		before = msgs[len(msgs)-1]
	}

	assert.Equal(t, want, got)
}

func TestMongoChatListPagesThroughEqualTimestamps(t *testing.T) {
	db := openTestDB(t)
	ctx := t.Context()
	repo := NewChatRepository(db)

	at := time.Now().UTC().Truncate(time.Millisecond)
	var ids []primitive.ObjectID
	for range 7 {
		chat := &models.Chat{
			Type:      models.ChatTypeGroup,
			CreatedBy: primitive.NewObjectID(),
			CreatedAt: at,
			UpdatedAt: at,
		}
		require.NoError(t, repo.Create(ctx, chat))
		ids = append(ids, chat.ID)
	}

	var (
		got    []primitive.ObjectID
		before *models.Chat
	)
	for page := 0; ; page++ {
		require.Less(t, page, 10, "pagination does not terminate")
		chats, err := repo.ListByIDs(ctx, ids, before, 3)
		require.NoError(t, err)
		if len(chats) == 0 {
			break
		}
		for _, c := range chats {
			got = append(got, c.ID)
		}
		before = chats[len(chats)-1]
	}

	want := slices.Clone(ids)
	slices.Reverse(want)
	assert.Equal(t, want, got)
}

func TestMongoDMHashIsUnique(t *testing.T) {
	db := openTestDB(t)
	ctx := t.Context()
	repo := NewChatRepository(db)

	hash, memberIDs := DMHash(primitive.NewObjectID(), primitive.NewObjectID())
	newDM := func() *models.Chat {
		return &models.Chat{Type: models.ChatTypeDM, MemberIDs: memberIDs, MemberIDsHash: hash}
	}
	require.NoError(t, repo.Create(ctx, newDM()))
	assert.ErrorIs(t, repo.Create(ctx, newDM()), ErrDuplicateKey)

	// groups carry no hash and never collide
	require.NoError(t, repo.Create(ctx, &models.Chat{Type: models.ChatTypeGroup}))
	require.NoError(t, repo.Create(ctx, &models.Chat{Type: models.ChatTypeGroup}))
}

func TestMongoMembershipCreateManyKeepsNonConflictingRows(t *testing.T) {
	db := openTestDB(t)
	ctx := t.Context()
	repo := NewChatMembershipRepository(db)

	chatID := primitive.NewObjectID()
	u1, u2, u3 := primitive.NewObjectID(), primitive.NewObjectID(), primitive.NewObjectID()
	member := func(userID primitive.ObjectID) *models.ChatMembership {
		return &models.ChatMembership{ChatID: chatID, UserID: userID, Role: models.RoleMember}
	}
	require.NoError(t, repo.CreateMany(ctx, []*models.ChatMembership{member(u1)}))

	err := repo.CreateMany(ctx, []*models.ChatMembership{member(u2), member(u1), member(u3)})
	assert.ErrorIs(t, err, ErrDuplicateKey)

	ms, err := repo.ListByChat(ctx, chatID)
	require.NoError(t, err)
	var userIDs []primitive.ObjectID
	for _, m := range ms {
		userIDs = append(userIDs, m.UserID)
	}
	assert.ElementsMatch(t, []primitive.ObjectID{u1, u2, u3}, userIDs)
}

func TestMongoAdvanceReadCursorOnlyMovesForward(t *testing.T) {
	db := openTestDB(t)
	ctx := t.Context()
	repo := NewChatMembershipRepository(db)

	chatID, userID := primitive.NewObjectID(), primitive.NewObjectID()
	require.NoError(t, repo.CreateMany(ctx, []*models.ChatMembership{
		{ChatID: chatID, UserID: userID, Role: models.RoleMember},
	}))
	older, newer := primitive.NewObjectID(), primitive.NewObjectID()

	updated, err := repo.AdvanceReadCursor(ctx, chatID, userID, newer)
	require.NoError(t, err)
	assert.True(t, updated)

	updated, err = repo.AdvanceReadCursor(ctx, chatID, userID, older)
	require.NoError(t, err)
	assert.False(t, updated)

	m, err := repo.Get(ctx, chatID, userID)
	require.NoError(t, err)
	require.NotNil(t, m.LastReadMessageID)
	assert.Equal(t, newer, *m.LastReadMessageID)
}
