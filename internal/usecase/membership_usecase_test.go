package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"google.golang.org/grpc/codes"

	"github.com/nguyentranbao-ct/family-chat/internal/models"
)

func assertMembersInSync(t *testing.T, env *testEnv, chatID primitive.ObjectID) []primitive.ObjectID {
	t.Helper()
	chat, err := env.chats.GetByID(context.Background(), chatID)
	require.NoError(t, err)
	assert.ElementsMatch(t, chat.MemberIDs, memberUserIDs(env.memberships.byChat(chatID)))
	return chat.MemberIDs
}

func TestTripGroupScenario(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u1, u2, u3 := primitive.NewObjectID(), primitive.NewObjectID(), primitive.NewObjectID()

	trip, err := env.chat.CreateGroup(ctx, CreateGroupParams{
		CreatorID: u1,
		Title:     "Trip",
		MemberIDs: []primitive.ObjectID{u2, u3},
	})
	require.NoError(t, err)
	assert.Equal(t, []primitive.ObjectID{u1, u2, u3}, trip.MemberIDs)

	ms, err := env.membership.ListMembers(ctx, trip.ID, u2)
	require.NoError(t, err)
	require.Len(t, ms, 3)
	assert.Equal(t, models.RoleAdmin, ms[0].Role)
	assert.Equal(t, models.RoleMember, ms[1].Role)
	assert.Equal(t, models.RoleMember, ms[2].Role)

	require.NoError(t, env.membership.RemoveMember(ctx, trip.ID, u1, u2))

	memberIDs := assertMembersInSync(t, env, trip.ID)
	assert.Equal(t, []primitive.ObjectID{u1, u3}, memberIDs)
	assert.Len(t, env.memberships.byChat(trip.ID), 2)

	_, err = env.membership.ListMembers(ctx, trip.ID, u2)
	assert.Equal(t, codes.PermissionDenied, models.Code(err))
}

func TestAddMembers(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	users := newUsers(5)
	admin, member := users[0], users[1]

	group, err := env.chat.CreateGroup(ctx, CreateGroupParams{CreatorID: admin, Title: "Home", MemberIDs: []primitive.ObjectID{member}})
	require.NoError(t, err)

	t.Run("non admin", func(t *testing.T) {
		_, err := env.membership.AddMembers(ctx, group.ID, member, users[2:3])
		assert.Equal(t, codes.PermissionDenied, models.Code(err))
	})

	t.Run("non member", func(t *testing.T) {
		_, err := env.membership.AddMembers(ctx, group.ID, users[4], users[2:3])
		assert.Equal(t, codes.PermissionDenied, models.Code(err))
	})

	t.Run("existing member rejects batch", func(t *testing.T) {
		_, err := env.membership.AddMembers(ctx, group.ID, admin, []primitive.ObjectID{users[2], member})
		assert.Equal(t, codes.InvalidArgument, models.Code(err))
		assert.Len(t, env.memberships.byChat(group.ID), 2)
	})

	t.Run("empty", func(t *testing.T) {
		_, err := env.membership.AddMembers(ctx, group.ID, admin, nil)
		assert.Equal(t, codes.InvalidArgument, models.Code(err))
	})

	t.Run("unknown chat", func(t *testing.T) {
		_, err := env.membership.AddMembers(ctx, primitive.NewObjectID(), admin, users[2:3])
		assert.Equal(t, codes.NotFound, models.Code(err))
	})

	t.Run("adds", func(t *testing.T) {
		added, err := env.membership.AddMembers(ctx, group.ID, admin, []primitive.ObjectID{users[2], users[3], users[2]})
		require.NoError(t, err)
		require.Len(t, added, 2)
		for _, m := range added {
			assert.Equal(t, models.RoleMember, m.Role)
		}
		memberIDs := assertMembersInSync(t, env, group.ID)
		assert.ElementsMatch(t, users[:4], memberIDs)
		assert.Len(t, env.broadcaster.named(models.EventMembersAdded), 1)
	})
}

func TestAddMembers_ConcurrentOverlap(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	users := newUsers(4)
	admin := users[0]

	group, err := env.chat.CreateGroup(ctx, CreateGroupParams{CreatorID: admin, Title: "Home", MemberIDs: users[1:2]})
	require.NoError(t, err)

	// another admin request adds users[3] between the member check and the insert
	env.memberships.beforeCreate = func([]*models.ChatMembership) {
		env.memberships.beforeCreate = nil
		_, err := env.membership.AddMembers(ctx, group.ID, admin, users[3:4])
		require.NoError(t, err)
	}

	_, err = env.membership.AddMembers(ctx, group.ID, admin, users[2:4])
	assert.Equal(t, codes.InvalidArgument, models.Code(err))

	memberIDs := assertMembersInSync(t, env, group.ID)
	assert.ElementsMatch(t, users, memberIDs)
}

func TestAddMembers_DMRejected(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	users := newUsers(3)

	dm, _, err := env.chat.CreateDM(ctx, users[0], users[1])
	require.NoError(t, err)

	_, err = env.membership.AddMembers(ctx, dm.ID, users[0], users[2:])
	assert.Equal(t, codes.InvalidArgument, models.Code(err))
	assertMembersInSync(t, env, dm.ID)
}

func TestRemoveMember(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	users := newUsers(4)
	admin := users[0]

	group, err := env.chat.CreateGroup(ctx, CreateGroupParams{CreatorID: admin, Title: "Home", MemberIDs: users[1:3]})
	require.NoError(t, err)

	err = env.membership.RemoveMember(ctx, group.ID, users[1], users[2])
	assert.Equal(t, codes.PermissionDenied, models.Code(err))

	err = env.membership.RemoveMember(ctx, group.ID, admin, users[3])
	assert.Equal(t, codes.NotFound, models.Code(err))

	// members can always leave
	require.NoError(t, env.membership.RemoveMember(ctx, group.ID, users[2], users[2]))
	memberIDs := assertMembersInSync(t, env, group.ID)
	assert.ElementsMatch(t, users[:2], memberIDs)

	events := env.broadcaster.named(models.EventMemberRemoved)
	require.Len(t, events, 1)
	assert.Contains(t, events[0].UserIDs, users[2])
}

func TestRemoveMember_DMRejected(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	users := newUsers(2)

	dm, _, err := env.chat.CreateDM(ctx, users[0], users[1])
	require.NoError(t, err)

	err = env.membership.RemoveMember(ctx, dm.ID, users[0], users[0])
	assert.Equal(t, codes.InvalidArgument, models.Code(err))
	assert.Len(t, env.memberships.byChat(dm.ID), 2)
}

func TestUpdateReadCursor(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	users := newUsers(3)

	dm, _, err := env.chat.CreateDM(ctx, users[0], users[1])
	require.NoError(t, err)
	other, _, err := env.chat.CreateDM(ctx, users[0], users[2])
	require.NoError(t, err)

	var msgs []*models.Message
	for _, body := range []string{"one", "two", "three"} {
		msg, _, err := env.message.CreateMessage(ctx, CreateMessageParams{ChatID: dm.ID, SenderID: users[1], Body: body})
		require.NoError(t, err)
		msgs = append(msgs, msg)
	}
	foreign, _, err := env.message.CreateMessage(ctx, CreateMessageParams{ChatID: other.ID, SenderID: users[2], Body: "hi"})
	require.NoError(t, err)

	readCursor := func() *primitive.ObjectID {
		m, err := env.memberships.Get(ctx, dm.ID, users[0])
		require.NoError(t, err)
		return m.LastReadMessageID
	}

	advanced, err := env.membership.UpdateReadCursor(ctx, dm.ID, users[0], msgs[1].ID)
	require.NoError(t, err)
	assert.True(t, advanced)
	assert.Equal(t, msgs[1].ID, *readCursor())

	advanced, err = env.membership.UpdateReadCursor(ctx, dm.ID, users[0], msgs[0].ID)
	require.NoError(t, err)
	assert.False(t, advanced)
	assert.Equal(t, msgs[1].ID, *readCursor())

	advanced, err = env.membership.UpdateReadCursor(ctx, dm.ID, users[0], msgs[1].ID)
	require.NoError(t, err)
	assert.False(t, advanced)

	advanced, err = env.membership.UpdateReadCursor(ctx, dm.ID, users[0], msgs[2].ID)
	require.NoError(t, err)
	assert.True(t, advanced)
	assert.Equal(t, msgs[2].ID, *readCursor())
	assert.Len(t, env.broadcaster.named(models.EventReadUpdated), 2)

	_, err = env.membership.UpdateReadCursor(ctx, dm.ID, users[2], msgs[2].ID)
	assert.Equal(t, codes.PermissionDenied, models.Code(err))

	_, err = env.membership.UpdateReadCursor(ctx, dm.ID, users[0], primitive.NewObjectID())
	assert.Equal(t, codes.NotFound, models.Code(err))

	_, err = env.membership.UpdateReadCursor(ctx, dm.ID, users[0], foreign.ID)
	assert.Equal(t, codes.InvalidArgument, models.Code(err))
	assert.Equal(t, msgs[2].ID, *readCursor())
}
