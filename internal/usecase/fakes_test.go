package usecase

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/nguyentranbao-ct/family-chat/internal/config"
	"github.com/nguyentranbao-ct/family-chat/internal/models"
	"github.com/nguyentranbao-ct/family-chat/internal/repo/mongodb"
)

func idLess(a, b primitive.ObjectID) bool {
	return bytes.Compare(a[:], b[:]) < 0
}

// newerFirst orders by (at desc, id desc).
func newerFirst(atA time.Time, idA primitive.ObjectID, atB time.Time, idB primitive.ObjectID) bool {
	if !atA.Equal(atB) {
		return atA.After(atB)
	}
	return idLess(idB, idA)
}

func olderThan(at time.Time, id primitive.ObjectID, cursorAt time.Time, cursorID primitive.ObjectID) bool {
	return at.Before(cursorAt) || (at.Equal(cursorAt) && idLess(id, cursorID))
}

type fakeChatRepo struct {
	mu    sync.Mutex
	chats map[primitive.ObjectID]*models.Chat
	// beforeCreate runs outside the lock right before an insert.
	beforeCreate func(chat *models.Chat)
}

func newFakeChatRepo() *fakeChatRepo {
	return &fakeChatRepo{chats: map[primitive.ObjectID]*models.Chat{}}
}

func cloneChat(c *models.Chat) *models.Chat {
	cp := *c
	cp.MemberIDs = append([]primitive.ObjectID(nil), c.MemberIDs...)
	return &cp
}

func (r *fakeChatRepo) Create(_ context.Context, chat *models.Chat) error {
	if r.beforeCreate != nil {
		r.beforeCreate(chat)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if chat.MemberIDsHash != "" {
		for _, c := range r.chats {
			if c.Type == chat.Type && c.MemberIDsHash == chat.MemberIDsHash {
				return fmt.Errorf("failed to create chat: %w", mongodb.ErrDuplicateKey)
			}
		}
	}
	if chat.ID.IsZero() {
		chat.ID = primitive.NewObjectID()
	}
	r.chats[chat.ID] = cloneChat(chat)
	return nil
}

func (r *fakeChatRepo) GetByID(_ context.Context, id primitive.ObjectID) (*models.Chat, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.chats[id]
	if !ok {
		return nil, fmt.Errorf("failed to get chat: %w", models.ErrNotFound)
	}
	return cloneChat(c), nil
}

func (r *fakeChatRepo) GetDMByHash(_ context.Context, hash string) (*models.Chat, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.chats {
		if c.Type == models.ChatTypeDM && c.MemberIDsHash == hash {
			return cloneChat(c), nil
		}
	}
	return nil, fmt.Errorf("failed to get dm chat: %w", models.ErrNotFound)
}

func (r *fakeChatRepo) ListByIDs(_ context.Context, ids []primitive.ObjectID, before *models.Chat, limit int) ([]*models.Chat, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []*models.Chat{}
	for _, id := range ids {
		c, ok := r.chats[id]
		if !ok {
			continue
		}
		if before != nil && !olderThan(c.UpdatedAt, c.ID, before.UpdatedAt, before.ID) {
			continue
		}
		out = append(out, cloneChat(c))
	}
	sort.Slice(out, func(i, j int) bool {
		return newerFirst(out[i].UpdatedAt, out[i].ID, out[j].UpdatedAt, out[j].ID)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeChatRepo) SetMemberIDs(_ context.Context, id primitive.ObjectID, memberIDs []primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.chats[id]
	if !ok {
		return models.ErrNotFound
	}
	c.MemberIDs = append([]primitive.ObjectID(nil), memberIDs...)
	return nil
}

func (r *fakeChatRepo) Touch(_ context.Context, id primitive.ObjectID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.chats[id]
	if !ok {
		return models.ErrNotFound
	}
	if at.After(c.UpdatedAt) {
		c.UpdatedAt = at
	}
	return nil
}

func (r *fakeChatRepo) Delete(_ context.Context, id primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.chats[id]; !ok {
		return models.ErrNotFound
	}
	delete(r.chats, id)
	return nil
}

func (r *fakeChatRepo) setUpdatedAt(id primitive.ObjectID, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chats[id].UpdatedAt = at
}

func (r *fakeChatRepo) size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.chats)
}

type fakeMembershipRepo struct {
	mu           sync.Mutex
	rows         []*models.ChatMembership
	setRoleCalls int
	// failNextCreate is returned once by the next CreateMany, which writes nothing.
	failNextCreate error
	// beforeCreate runs ahead of each CreateMany, outside the lock.
	beforeCreate func(memberships []*models.ChatMembership)
}

func cloneMembership(m *models.ChatMembership) *models.ChatMembership {
	cp := *m
	return &cp
}

func (r *fakeMembershipRepo) find(chatID, userID primitive.ObjectID) (int, bool) {
	for i, m := range r.rows {
		if m.ChatID == chatID && m.UserID == userID {
			return i, true
		}
	}
	return -1, false
}

// CreateMany mirrors an unordered InsertMany: every non-conflicting row is
// written and a conflict is reported afterwards.
func (r *fakeMembershipRepo) CreateMany(_ context.Context, memberships []*models.ChatMembership) error {
	if hook := r.beforeCreate; hook != nil {
		hook(memberships)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.failNextCreate; err != nil {
		r.failNextCreate = nil
		return err
	}
	conflict := false
	for _, m := range memberships {
		if _, exists := r.find(m.ChatID, m.UserID); exists {
			conflict = true
			continue
		}
		if m.ID.IsZero() {
			m.ID = primitive.NewObjectID()
		}
		r.rows = append(r.rows, cloneMembership(m))
	}
	if conflict {
		return fmt.Errorf("failed to create memberships: %w", mongodb.ErrDuplicateKey)
	}
	return nil
}

func (r *fakeMembershipRepo) Get(_ context.Context, chatID, userID primitive.ObjectID) (*models.ChatMembership, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i, ok := r.find(chatID, userID)
	if !ok {
		return nil, fmt.Errorf("failed to get membership: %w", models.ErrNotFound)
	}
	return cloneMembership(r.rows[i]), nil
}

func (r *fakeMembershipRepo) ListByChat(_ context.Context, chatID primitive.ObjectID) ([]*models.ChatMembership, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []*models.ChatMembership{}
	for _, m := range r.rows {
		if m.ChatID == chatID {
			out = append(out, cloneMembership(m))
		}
	}
	sort.Slice(out, func(i, j int) bool { return idLess(out[i].ID, out[j].ID) })
	return out, nil
}

func (r *fakeMembershipRepo) ListByUser(_ context.Context, userID primitive.ObjectID) ([]*models.ChatMembership, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []*models.ChatMembership{}
	for _, m := range r.rows {
		if m.UserID == userID {
			out = append(out, cloneMembership(m))
		}
	}
	return out, nil
}

func (r *fakeMembershipRepo) Delete(_ context.Context, chatID, userID primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	i, ok := r.find(chatID, userID)
	if !ok {
		return fmt.Errorf("failed to delete membership: %w", models.ErrNotFound)
	}
	r.rows = append(r.rows[:i], r.rows[i+1:]...)
	return nil
}

func (r *fakeMembershipRepo) DeleteByChat(_ context.Context, chatID primitive.ObjectID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.rows[:0]
	var n int64
	for _, m := range r.rows {
		if m.ChatID == chatID {
			n++
			continue
		}
		kept = append(kept, m)
	}
	r.rows = kept
	return n, nil
}

func (r *fakeMembershipRepo) SetRole(_ context.Context, chatID primitive.ObjectID, from, to models.MemberRole) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.setRoleCalls++
	var n int64
	for _, m := range r.rows {
		if m.ChatID == chatID && m.Role == from {
			m.Role = to
			n++
		}
	}
	return n, nil
}

func (r *fakeMembershipRepo) AdvanceReadCursor(_ context.Context, chatID, userID, messageID primitive.ObjectID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i, ok := r.find(chatID, userID)
	if !ok {
		return false, nil
	}
	m := r.rows[i]
	if m.LastReadMessageID != nil && !idLess(*m.LastReadMessageID, messageID) {
		return false, nil
	}
	id := messageID
	m.LastReadMessageID = &id
	return true, nil
}

func (r *fakeMembershipRepo) ResetReadCursors(_ context.Context, chatID primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.rows {
		if m.ChatID == chatID {
			m.LastReadMessageID = nil
		}
	}
	return nil
}

func (r *fakeMembershipRepo) byChat(chatID primitive.ObjectID) []*models.ChatMembership {
	out, _ := r.ListByChat(context.Background(), chatID)
	return out
}

type fakeMessageRepo struct {
	mu   sync.Mutex
	msgs []*models.Message
	// beforeCreate runs outside the lock right before an insert.
	beforeCreate func(msg *models.Message)
}

func cloneMessage(m *models.Message) *models.Message {
	cp := *m
	return &cp
}

func (r *fakeMessageRepo) Create(_ context.Context, msg *models.Message) error {
	if r.beforeCreate != nil {
		r.beforeCreate(msg)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(msg.Body) > models.MaxStoredBodyBytes {
		return mongodb.ErrBodyTooLarge
	}
	if msg.ClientID != "" {
		for _, m := range r.msgs {
			if m.ChatID == msg.ChatID && m.ClientID == msg.ClientID {
				return fmt.Errorf("failed to create message: %w", mongodb.ErrDuplicateKey)
			}
		}
	}
	if msg.ID.IsZero() {
		msg.ID = primitive.NewObjectID()
	}
	r.msgs = append(r.msgs, cloneMessage(msg))
	return nil
}

func (r *fakeMessageRepo) GetByID(_ context.Context, id primitive.ObjectID) (*models.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.msgs {
		if m.ID == id {
			return cloneMessage(m), nil
		}
	}
	return nil, fmt.Errorf("failed to get message: %w", models.ErrNotFound)
}

func (r *fakeMessageRepo) GetByClientID(_ context.Context, chatID primitive.ObjectID, clientID string) (*models.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.msgs {
		if m.ChatID == chatID && m.ClientID == clientID {
			return cloneMessage(m), nil
		}
	}
	return nil, fmt.Errorf("failed to get message by client id: %w", models.ErrNotFound)
}

func (r *fakeMessageRepo) GetLatest(ctx context.Context, chatID primitive.ObjectID) (*models.Message, error) {
	msgs, _ := r.List(ctx, mongodb.MessageQuery{ChatIDs: []primitive.ObjectID{chatID}, Limit: 1})
	if len(msgs) == 0 {
		return nil, nil
	}
	return msgs[0], nil
}

func matchesText(body, query string) bool {
	body = strings.ToLower(body)
	for _, term := range strings.Fields(strings.ToLower(query)) {
		if strings.Contains(body, term) {
			return true
		}
	}
	return false
}

func (r *fakeMessageRepo) List(_ context.Context, q mongodb.MessageQuery) ([]*models.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []*models.Message{}
	for _, m := range r.msgs {
		inChat := false
		for _, id := range q.ChatIDs {
			inChat = inChat || m.ChatID == id
		}
		if !inChat {
			continue
		}
		if q.Text != "" && !matchesText(m.Body, q.Text) {
			continue
		}
		if q.Before != nil && !olderThan(m.CreatedAt, m.ID, q.Before.CreatedAt, q.Before.ID) {
			continue
		}
		out = append(out, cloneMessage(m))
	}
	sort.Slice(out, func(i, j int) bool {
		return newerFirst(out[i].CreatedAt, out[i].ID, out[j].CreatedAt, out[j].ID)
	})
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (r *fakeMessageRepo) Count(_ context.Context, chatID primitive.ObjectID, after *primitive.ObjectID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, m := range r.msgs {
		if m.ChatID != chatID {
			continue
		}
		if after != nil && !idLess(*after, m.ID) {
			continue
		}
		n++
	}
	return n, nil
}

func (r *fakeMessageRepo) DeleteByChat(_ context.Context, chatID primitive.ObjectID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.msgs[:0]
	var n int64
	for _, m := range r.msgs {
		if m.ChatID == chatID {
			n++
			continue
		}
		kept = append(kept, m)
	}
	r.msgs = kept
	return n, nil
}

// seed stores a message directly, bypassing the service.
func (r *fakeMessageRepo) seed(chatID, senderID primitive.ObjectID, body string, at time.Time) *models.Message {
	m := &models.Message{ChatID: chatID, SenderID: senderID, Body: body, CreatedAt: at}
	_ = r.Create(context.Background(), m)
	return m
}

func (r *fakeMessageRepo) countChat(chatID primitive.ObjectID) int {
	n, _ := r.Count(context.Background(), chatID, nil)
	return int(n)
}

type broadcast struct {
	UserIDs []primitive.ObjectID
	Event   string
	Data    any
}

type fakeBroadcaster struct {
	mu     sync.Mutex
	events []broadcast
}

func (b *fakeBroadcaster) Broadcast(_ context.Context, userIDs []primitive.ObjectID, event string, data any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, broadcast{UserIDs: userIDs, Event: event, Data: data})
}

func (b *fakeBroadcaster) named(event string) []broadcast {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []broadcast
	for _, e := range b.events {
		if e.Event == event {
			out = append(out, e)
		}
	}
	return out
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []models.Notification
	err  error
}

func (n *fakeNotifier) Notify(_ context.Context, notification models.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, notification)
	return n.err
}

type testEnv struct {
	chats       *fakeChatRepo
	memberships *fakeMembershipRepo
	messages    *fakeMessageRepo
	broadcaster *fakeBroadcaster
	notifier    *fakeNotifier

	chat       *ChatUseCase
	membership *MembershipUseCase
	message    *MessageUseCase
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	conf := &config.Config{
		Chat: config.ChatConfig{
			MessagePageSize:    50,
			MaxMessagePageSize: 100,
			ChatPageSize:       20,
			MaxChatPageSize:    50,
			PreviewLength:      20,
		},
	}
	env := &testEnv{
		chats:       newFakeChatRepo(),
		memberships: &fakeMembershipRepo{},
		messages:    &fakeMessageRepo{},
		broadcaster: &fakeBroadcaster{},
		notifier:    &fakeNotifier{},
	}
	env.chat = NewChatUseCase(conf, env.chats, env.memberships, env.messages, env.broadcaster)
	env.membership = NewMembershipUseCase(env.chats, env.memberships, env.messages, env.broadcaster)
	env.message = NewMessageUseCase(conf, env.chats, env.memberships, env.messages, env.broadcaster, env.notifier)
	return env
}

func newUsers(n int) []primitive.ObjectID {
	ids := make([]primitive.ObjectID, n)
	for i := range ids {
		ids[i] = primitive.NewObjectID()
	}
	return ids
}

func memberUserIDs(ms []*models.ChatMembership) []primitive.ObjectID {
	ids := make([]primitive.ObjectID, 0, len(ms))
	for _, m := range ms {
		ids = append(ids, m.UserID)
	}
	return ids
}
