package services

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/armada-chat/armada/internal/agent"
	"github.com/armada-chat/armada/internal/model"
	"github.com/armada-chat/armada/internal/notify"
	"github.com/armada-chat/armada/internal/presence"
	"github.com/armada-chat/armada/internal/repository"
	"github.com/armada-chat/armada/internal/storage"
	"github.com/armada-chat/armada/internal/ws"
	"github.com/armada-chat/armada/middleware/jwt"
	"github.com/armada-chat/armada/middleware/log"
)

// syncPool runs jobs inline so tests observe side effects immediately.
type syncPool struct{}

func (syncPool) Submit(job func()) { job() }

type env struct {
	db       *gorm.DB
	redis    *storage.Redis
	hub      *ws.Hub
	presence *presence.Registry
	gateway  *notify.RecordingGateway
	runner   *agent.StubRunner

	userRepo repository.IUserRepository
	roomRepo repository.IRoomRepository
	msgRepo  repository.IMessageRepository
	pushRepo repository.IPushRepository

	auth     *AuthService
	users    *UserService
	rooms    *RoomService
	messages *MessageService
	chat     *ChatService
}

func newTestEnv(t *testing.T) *env {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, storage.Migrate(db))

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	log := logger.NewNopLogger()
	e := &env{
		db:       db,
		redis:    storage.NewRedisFromClient(rdb),
		hub:      ws.NewHub(log),
		presence: presence.NewRegistry(),
		gateway:  notify.NewRecordingGateway(),
		runner:   &agent.StubRunner{Reply: "done"},
	}

	e.userRepo = repository.NewUserRepository(db)
	e.roomRepo = repository.NewRoomRepository(db)
	e.msgRepo = repository.NewMessageRepository(db)
	e.pushRepo = repository.NewPushRepository(db)

	accounting := NewAccountingService(e.roomRepo, e.pushRepo, e.presence, e.hub, e.gateway, log)
	sink := NewInlineSink(accounting, syncPool{}, log)

	e.auth = NewAuthService(e.userRepo, jwt.NewTokenManager("test-secret", 1, 24))
	e.users = NewUserService(e.userRepo, e.pushRepo)
	e.rooms = NewRoomService(e.roomRepo, e.userRepo, e.hub, e.redis, log)
	e.messages = NewMessageService(e.msgRepo, e.roomRepo, e.userRepo, e.redis, e.hub, nil, sink, log)
	e.chat = NewChatService(e.roomRepo, e.userRepo, e.messages, e.presence, e.hub, e.redis, log)

	bridge := NewAgentBridge(e.messages, e.chat, e.runner, syncPool{}, e.hub, log)
	e.messages.SetBridge(bridge)

	require.NoError(t, SeedBots(context.Background(), e.userRepo, agent.BotIDs(), agent.BotName))
	return e
}

func (e *env) createUser(t *testing.T, name, email string) *model.User {
	t.Helper()
	resp, err := e.auth.Register(context.Background(), &RegisterRequest{
		Email:    email,
		FullName: name,
		Password: "password123",
	})
	require.NoError(t, err)
	return resp.User
}

func (e *env) createRoom(t *testing.T, creator *model.User, name string, members ...*model.User) *model.Room {
	t.Helper()
	ids := make([]uuid.UUID, 0, len(members))
	for _, m := range members {
		ids = append(ids, m.ID)
	}
	room, err := e.rooms.Create(context.Background(), creator.ID, &CreateRoomRequest{
		Name:      name,
		MemberIDs: ids,
	})
	require.NoError(t, err)
	return room
}

func (e *env) membership(t *testing.T, roomID, userID uuid.UUID) *model.Membership {
	t.Helper()
	m, err := e.roomRepo.GetMembership(context.Background(), roomID, userID)
	require.NoError(t, err)
	return m
}

func TestRegisterAndLogin(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	resp, err := e.auth.Register(ctx, &RegisterRequest{
		Email:    "Alice@Example.com",
		FullName: "Alice Hart",
		Password: "password123",
	})
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", resp.User.Email, "emails are normalized")
	assert.NotEmpty(t, resp.Token)

	_, err = e.auth.Register(ctx, &RegisterRequest{
		Email:    "alice@example.com",
		FullName: "Imposter",
		Password: "password123",
	})
	assert.ErrorIs(t, err, ErrEmailTaken)

	_, err = e.auth.Login(ctx, &LoginRequest{Email: "alice@example.com", Password: "password123"})
	assert.NoError(t, err)

	_, err = e.auth.Login(ctx, &LoginRequest{Email: "alice@example.com", Password: "wrong-password"})
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = e.auth.Register(ctx, &RegisterRequest{Email: "bob@example.com", FullName: "Bob", Password: "short"})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestBotAccountsCannotLogin(t *testing.T) {
	e := newTestEnv(t)
	bot, err := e.userRepo.FindByID(context.Background(), agent.EmailAIBotID)
	require.NoError(t, err)
	require.True(t, bot.IsBot)

	_, err = e.auth.Login(context.Background(), &LoginRequest{Email: bot.Email, Password: "anything"})
	assert.ErrorIs(t, err, ErrReservedAccount)
}

func TestPostUpdatesUnreadAndReadMarkers(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	alice := e.createUser(t, "Alice Hart", "alice@example.com")
	bob := e.createUser(t, "Bob Stone", "bob@example.com")
	carol := e.createUser(t, "Carol Finch", "carol@example.com")
	room := e.createRoom(t, alice, "general", bob, carol)

	// Carol is looking at the room; Bob is away.
	e.presence.Connect("carol-conn", carol.ID)
	e.presence.JoinRoom(carol.ID, room.ID)

	before, err := e.roomRepo.FindByID(ctx, room.ID)
	require.NoError(t, err)

	msg, err := e.messages.Post(ctx, alice.ID, &PostRequest{RoomID: room.ID, Content: "hello team"})
	require.NoError(t, err)
	require.NotNil(t, msg.SenderID)
	assert.Equal(t, alice.ID, *msg.SenderID)

	assert.EqualValues(t, 0, e.membership(t, room.ID, alice.ID).UnreadCount, "sender never counts own message")
	assert.EqualValues(t, 1, e.membership(t, room.ID, bob.ID).UnreadCount, "absent member gets the bump")
	assert.EqualValues(t, 0, e.membership(t, room.ID, carol.ID).UnreadCount, "active viewer gets no bump")

	assert.NotNil(t, e.membership(t, room.ID, alice.ID).LastReadAt, "sender read marker advances on post")

	after, err := e.roomRepo.FindByID(ctx, room.ID)
	require.NoError(t, err)
	assert.True(t, after.UpdatedAt.After(before.UpdatedAt), "room activity timestamp moves")
}

func TestPushDispatchSkipsActiveViewers(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	alice := e.createUser(t, "Alice Hart", "alice@example.com")
	bob := e.createUser(t, "Bob Stone", "bob@example.com")
	carol := e.createUser(t, "Carol Finch", "carol@example.com")
	room := e.createRoom(t, alice, "general", bob, carol)

	_, err := e.users.Subscribe(ctx, bob.ID, "bob-device-1")
	require.NoError(t, err)
	_, err = e.users.Subscribe(ctx, bob.ID, "bob-device-2")
	require.NoError(t, err)
	_, err = e.users.Subscribe(ctx, carol.ID, "carol-device")
	require.NoError(t, err)

	e.presence.Connect("carol-conn", carol.ID)
	e.presence.JoinRoom(carol.ID, room.ID)

	_, err = e.messages.Post(ctx, alice.ID, &PostRequest{RoomID: room.ID, Content: "ship it"})
	require.NoError(t, err)

	assert.Len(t, e.gateway.SentTo("bob-device-1"), 1)
	assert.Len(t, e.gateway.SentTo("bob-device-2"), 1, "every device of an absent member is pushed")
	assert.Empty(t, e.gateway.SentTo("carol-device"), "active viewer gets no push")

	sent := e.gateway.SentTo("bob-device-1")[0]
	assert.Equal(t, "general", sent.Title)
	assert.Equal(t, "ship it", sent.Body)
}

func TestPushFailureIsIsolated(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	alice := e.createUser(t, "Alice Hart", "alice@example.com")
	bob := e.createUser(t, "Bob Stone", "bob@example.com")
	carol := e.createUser(t, "Carol Finch", "carol@example.com")
	room := e.createRoom(t, alice, "general", bob, carol)

	_, err := e.users.Subscribe(ctx, bob.ID, "bob-broken")
	require.NoError(t, err)
	_, err = e.users.Subscribe(ctx, carol.ID, "carol-device")
	require.NoError(t, err)
	e.gateway.Fail["bob-broken"] = assert.AnError

	_, err = e.messages.Post(ctx, alice.ID, &PostRequest{RoomID: room.ID, Content: "hello"})
	require.NoError(t, err)

	assert.Len(t, e.gateway.SentTo("carol-device"), 1, "one broken endpoint does not stop the rest")
	assert.EqualValues(t, 1, e.membership(t, room.ID, bob.ID).UnreadCount, "accounting survives push failure")
}

func TestMarkReadIsIdempotent(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	alice := e.createUser(t, "Alice Hart", "alice@example.com")
	bob := e.createUser(t, "Bob Stone", "bob@example.com")
	room := e.createRoom(t, alice, "general", bob)

	m1, err := e.messages.Post(ctx, alice.ID, &PostRequest{RoomID: room.ID, Content: "one"})
	require.NoError(t, err)
	_, err = e.messages.Post(ctx, alice.ID, &PostRequest{RoomID: room.ID, Content: "two"})
	require.NoError(t, err)
	require.EqualValues(t, 2, e.membership(t, room.ID, bob.ID).UnreadCount)

	n, err := e.messages.MarkRead(ctx, bob.ID, room.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.EqualValues(t, 0, e.membership(t, room.ID, bob.ID).UnreadCount)
	assert.NotNil(t, e.membership(t, room.ID, bob.ID).LastReadAt)

	receipts, err := e.messages.Receipts(ctx, alice.ID, m1.ID)
	require.NoError(t, err)
	require.Len(t, receipts, 1)
	assert.Equal(t, bob.ID, receipts[0].UserID)

	// Marking again receipts nothing new and keeps a single row per message.
	n, err = e.messages.MarkRead(ctx, bob.ID, room.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	receipts, err = e.messages.Receipts(ctx, alice.ID, m1.ID)
	require.NoError(t, err)
	assert.Len(t, receipts, 1)
}

func TestMarkReadExplicitSubset(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	alice := e.createUser(t, "Alice Hart", "alice@example.com")
	bob := e.createUser(t, "Bob Stone", "bob@example.com")
	room := e.createRoom(t, alice, "general", bob)

	m1, err := e.messages.Post(ctx, alice.ID, &PostRequest{RoomID: room.ID, Content: "one"})
	require.NoError(t, err)
	m2, err := e.messages.Post(ctx, alice.ID, &PostRequest{RoomID: room.ID, Content: "two"})
	require.NoError(t, err)
	m3, err := e.messages.Post(ctx, alice.ID, &PostRequest{RoomID: room.ID, Content: "three"})
	require.NoError(t, err)

	n, err := e.messages.MarkRead(ctx, bob.ID, room.ID, []uuid.UUID{m2.ID})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.EqualValues(t, 0, e.membership(t, room.ID, bob.ID).UnreadCount)

	receipts, err := e.messages.Receipts(ctx, alice.ID, m2.ID)
	require.NoError(t, err)
	require.Len(t, receipts, 1)
	assert.Equal(t, bob.ID, receipts[0].UserID)

	receipts, err = e.messages.Receipts(ctx, alice.ID, m1.ID)
	require.NoError(t, err)
	assert.Empty(t, receipts, "messages outside the subset stay unreceipted")

	// Ids already receipted or foreign to the room are skipped silently.
	n, err = e.messages.MarkRead(ctx, bob.ID, room.ID, []uuid.UUID{m2.ID, uuid.New()})
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	// Omitting ids sweeps whatever is left.
	n, err = e.messages.MarkRead(ctx, bob.ID, room.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	for _, m := range []uuid.UUID{m1.ID, m3.ID} {
		receipts, err = e.messages.Receipts(ctx, alice.ID, m)
		require.NoError(t, err)
		assert.Len(t, receipts, 1)
	}
}

func TestEditRules(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	alice := e.createUser(t, "Alice Hart", "alice@example.com")
	bob := e.createUser(t, "Bob Stone", "bob@example.com")
	room := e.createRoom(t, alice, "general", bob)

	msg, err := e.messages.Post(ctx, alice.ID, &PostRequest{RoomID: room.ID, Content: "draft"})
	require.NoError(t, err)

	_, err = e.messages.Edit(ctx, bob.ID, msg.ID, "hijacked")
	assert.ErrorIs(t, err, ErrForbidden, "only the sender edits")

	edited, err := e.messages.Edit(ctx, alice.ID, msg.ID, "final")
	require.NoError(t, err)
	assert.Equal(t, model.MessageEdited, edited.State)
	assert.NotNil(t, edited.EditedAt)

	require.NoError(t, e.messages.Delete(ctx, alice.ID, msg.ID))
	_, err = e.messages.Edit(ctx, alice.ID, msg.ID, "too late")
	assert.ErrorIs(t, err, ErrMessageDeleted)
}

func TestDeleteRules(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	alice := e.createUser(t, "Alice Hart", "alice@example.com")
	bob := e.createUser(t, "Bob Stone", "bob@example.com")
	room := e.createRoom(t, alice, "general", bob)

	msg, err := e.messages.Post(ctx, bob.ID, &PostRequest{RoomID: room.ID, Content: "oops"})
	require.NoError(t, err)

	// Alice created the room so her membership is room admin.
	require.NoError(t, e.messages.Delete(ctx, alice.ID, msg.ID))

	page, err := e.messages.List(ctx, alice.ID, room.ID, 1, 50)
	require.NoError(t, err)
	assert.Empty(t, page.Items, "deleted messages leave the listing")

	found, err := e.msgRepo.FindByID(ctx, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, model.MessageDeleted, found.State, "the row itself survives")

	// Deleting twice is a no-op.
	assert.NoError(t, e.messages.Delete(ctx, alice.ID, msg.ID))
}

func TestNonAdminCannotDeleteOthersMessage(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	alice := e.createUser(t, "Alice Hart", "alice@example.com")
	bob := e.createUser(t, "Bob Stone", "bob@example.com")
	room := e.createRoom(t, alice, "general", bob)

	msg, err := e.messages.Post(ctx, alice.ID, &PostRequest{RoomID: room.ID, Content: "mine"})
	require.NoError(t, err)

	err = e.messages.Delete(ctx, bob.ID, msg.ID)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestListPagination(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	alice := e.createUser(t, "Alice Hart", "alice@example.com")
	room := e.createRoom(t, alice, "general")

	contents := []string{"one", "two", "three", "four", "five"}
	for _, c := range contents {
		_, err := e.messages.Post(ctx, alice.ID, &PostRequest{RoomID: room.ID, Content: c})
		require.NoError(t, err)
	}

	page, err := e.messages.List(ctx, alice.ID, room.ID, 1, 2)
	require.NoError(t, err)
	assert.EqualValues(t, 5, page.Total)
	assert.True(t, page.HasMore)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "five", page.Items[0].Content, "newest first, sequence breaks timestamp ties")
	assert.Equal(t, "four", page.Items[1].Content)

	page, err = e.messages.List(ctx, alice.ID, room.ID, 3, 2)
	require.NoError(t, err)
	assert.False(t, page.HasMore)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "one", page.Items[0].Content)
}

func TestReactionReplaceSemantics(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	alice := e.createUser(t, "Alice Hart", "alice@example.com")
	bob := e.createUser(t, "Bob Stone", "bob@example.com")
	room := e.createRoom(t, alice, "general", bob)

	msg, err := e.messages.Post(ctx, alice.ID, &PostRequest{RoomID: room.ID, Content: "vote"})
	require.NoError(t, err)

	require.NoError(t, e.messages.React(ctx, bob.ID, msg.ID, "👍"))
	require.NoError(t, e.messages.React(ctx, bob.ID, msg.ID, "🎉"), "second emoji replaces the first")

	summary, err := e.messages.Reactions(ctx, alice.ID, msg.ID)
	require.NoError(t, err)
	require.Len(t, summary, 1)
	assert.Equal(t, "🎉", summary[0].Emoji)
	assert.EqualValues(t, 1, summary[0].Count)

	require.NoError(t, e.messages.Unreact(ctx, bob.ID, msg.ID, "👍"), "stale emoji removal is a no-op")
	summary, err = e.messages.Reactions(ctx, alice.ID, msg.ID)
	require.NoError(t, err)
	require.Len(t, summary, 1, "reaction survives a mismatched emoji delete")

	require.NoError(t, e.messages.Unreact(ctx, bob.ID, msg.ID, "🎉"))
	summary, err = e.messages.Reactions(ctx, alice.ID, msg.ID)
	require.NoError(t, err)
	assert.Empty(t, summary)
}

func TestMentionsResolveByFullName(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	alice := e.createUser(t, "Alice Hart", "alice@example.com")
	bob := e.createUser(t, "Bob Stone", "bob@example.com")
	room := e.createRoom(t, alice, "general", bob)

	msg, err := e.messages.Post(ctx, alice.ID, &PostRequest{
		RoomID:  room.ID,
		Content: `@"Bob Stone" can you take a look?`,
	})
	require.NoError(t, err)

	var mentions []model.Mention
	require.NoError(t, e.db.Where("message_id = ?", msg.ID).Find(&mentions).Error)
	require.Len(t, mentions, 1)
	assert.Equal(t, bob.ID, mentions[0].MentionedUserID)
}

func TestAgentBridgePostsBotReply(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	alice := e.createUser(t, "Alice Hart", "alice@example.com")
	room := e.createRoom(t, alice, "general")
	e.runner.Reply = "email sent to bob@example.com"

	trigger, err := e.messages.Post(ctx, alice.ID, &PostRequest{
		RoomID:  room.ID,
		Content: "@emailAi send bob the launch notes",
	})
	require.NoError(t, err)

	require.Len(t, e.runner.Calls, 1)
	assert.Equal(t, agent.EmailAI, e.runner.Calls[0].Agent)
	assert.Equal(t, "send bob the launch notes", e.runner.Calls[0].Prompt)

	page, err := e.messages.List(ctx, alice.ID, room.ID, 1, 10)
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	reply := page.Items[0]
	require.NotNil(t, reply.SenderID)
	assert.Equal(t, agent.EmailAIBotID, *reply.SenderID)
	assert.Equal(t, "email sent to bob@example.com", reply.Content)
	require.NotNil(t, reply.ReplyToID)
	assert.Equal(t, trigger.ID, *reply.ReplyToID, "bot reply anchors to the triggering message")
}

func TestAgentBridgeFailureLeavesNoReply(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	alice := e.createUser(t, "Alice Hart", "alice@example.com")
	room := e.createRoom(t, alice, "general")
	e.runner.Err = assert.AnError

	_, err := e.messages.Post(ctx, alice.ID, &PostRequest{
		RoomID:  room.ID,
		Content: "@searchAi find the roadmap",
	})
	require.NoError(t, err, "agent failure never fails the triggering post")

	page, err := e.messages.List(ctx, alice.ID, room.ID, 1, 10)
	require.NoError(t, err)
	assert.Len(t, page.Items, 1, "only the user's message exists")
}

func TestBotReplyDoesNotRetrigger(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	alice := e.createUser(t, "Alice Hart", "alice@example.com")
	room := e.createRoom(t, alice, "general")
	e.runner.Reply = "@searchAi should not loop"

	_, err := e.messages.Post(ctx, alice.ID, &PostRequest{
		RoomID:  room.ID,
		Content: "@searchAi find something",
	})
	require.NoError(t, err)
	assert.Len(t, e.runner.Calls, 1, "a bot reply that looks like a mention is not re-invoked")
}

type denyLimiter struct{}

func (denyLimiter) Allow(context.Context, uuid.UUID) (bool, error) { return false, nil }

func TestRateLimitedPost(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	alice := e.createUser(t, "Alice Hart", "alice@example.com")
	room := e.createRoom(t, alice, "general")

	limited := NewMessageService(e.msgRepo, e.roomRepo, e.userRepo, e.redis, e.hub, denyLimiter{}, NewInlineSink(
		NewAccountingService(e.roomRepo, e.pushRepo, e.presence, e.hub, e.gateway, logger.NewNopLogger()),
		syncPool{}, logger.NewNopLogger()), logger.NewNopLogger())

	_, err := limited.Post(ctx, alice.ID, &PostRequest{RoomID: room.ID, Content: "spam"})
	assert.ErrorIs(t, err, ErrRateLimited)
}

func TestDirectRoomDedupe(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	alice := e.createUser(t, "Alice Hart", "alice@example.com")
	bob := e.createUser(t, "Bob Stone", "bob@example.com")

	first, err := e.rooms.CreateDirect(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	second, err := e.rooms.CreateDirect(ctx, bob.ID, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID, "one direct room per pair, either direction")

	_, err = e.rooms.CreateDirect(ctx, alice.ID, alice.ID)
	assert.ErrorIs(t, err, ErrSelfConversation)
}

func TestRoomDeleteCascades(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	alice := e.createUser(t, "Alice Hart", "alice@example.com")
	bob := e.createUser(t, "Bob Stone", "bob@example.com")
	room := e.createRoom(t, alice, "doomed", bob)

	parent, err := e.messages.Post(ctx, alice.ID, &PostRequest{RoomID: room.ID, Content: "root"})
	require.NoError(t, err)
	_, err = e.messages.Post(ctx, bob.ID, &PostRequest{RoomID: room.ID, Content: "reply", ReplyToID: &parent.ID})
	require.NoError(t, err)
	require.NoError(t, e.messages.React(ctx, bob.ID, parent.ID, "👍"))
	_, err = e.messages.MarkRead(ctx, bob.ID, room.ID, nil)
	require.NoError(t, err)

	require.NoError(t, e.rooms.Delete(ctx, room.ID, alice.ID))

	var count int64
	require.NoError(t, e.db.Model(&model.Message{}).Where("room_id = ?", room.ID).Count(&count).Error)
	assert.Zero(t, count, "messages are gone")
	require.NoError(t, e.db.Model(&model.Membership{}).Where("room_id = ?", room.ID).Count(&count).Error)
	assert.Zero(t, count, "memberships are gone")
	require.NoError(t, e.db.Model(&model.Reaction{}).Count(&count).Error)
	assert.Zero(t, count, "reactions are gone")
	require.NoError(t, e.db.Model(&model.ReadReceipt{}).Count(&count).Error)
	assert.Zero(t, count, "receipts are gone")

	_, err = e.roomRepo.FindByID(ctx, room.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestRoomDeleteRequiresPrivilege(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	alice := e.createUser(t, "Alice Hart", "alice@example.com")
	bob := e.createUser(t, "Bob Stone", "bob@example.com")
	room := e.createRoom(t, alice, "general", bob)

	err := e.rooms.Delete(ctx, room.ID, bob.ID)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestRoomDetailCarriesRecentMessages(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	alice := e.createUser(t, "Alice Hart", "alice@example.com")
	bob := e.createUser(t, "Bob Stone", "bob@example.com")
	room := e.createRoom(t, alice, "general", bob)

	_, err := e.messages.Post(ctx, alice.ID, &PostRequest{RoomID: room.ID, Content: "first"})
	require.NoError(t, err)
	_, err = e.messages.Post(ctx, alice.ID, &PostRequest{RoomID: room.ID, Content: "second"})
	require.NoError(t, err)

	detail, err := e.rooms.Get(ctx, room.ID, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, room.ID, detail.Room.ID)
	require.Len(t, detail.Recent, 2)

	var newest model.Message
	require.NoError(t, json.Unmarshal(detail.Recent[0], &newest))
	assert.Equal(t, "second", newest.Content, "cache reads newest first")

	mallory := e.createUser(t, "Mallory Vale", "mallory@example.com")
	_, err = e.rooms.Get(ctx, room.ID, mallory.ID)
	assert.ErrorIs(t, err, ErrNotMember)
}

func TestCreateRoomRejectsUnknownMembers(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	alice := e.createUser(t, "Alice Hart", "alice@example.com")
	_, err := e.rooms.Create(ctx, alice.ID, &CreateRoomRequest{
		Name:      "ghosts",
		MemberIDs: []uuid.UUID{uuid.New()},
	})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRoomListCarriesUnread(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	alice := e.createUser(t, "Alice Hart", "alice@example.com")
	bob := e.createUser(t, "Bob Stone", "bob@example.com")
	quiet := e.createRoom(t, alice, "quiet", bob)
	busy := e.createRoom(t, alice, "busy", bob)

	_, err := e.messages.Post(ctx, alice.ID, &PostRequest{RoomID: busy.ID, Content: "ping"})
	require.NoError(t, err)

	rooms, err := e.rooms.List(ctx, bob.ID)
	require.NoError(t, err)
	require.Len(t, rooms, 2)
	assert.Equal(t, busy.ID, rooms[0].Room.ID, "active room sorts first")
	assert.EqualValues(t, 1, rooms[0].UnreadCount)
	for _, r := range rooms {
		if r.Room.ID == quiet.ID {
			assert.EqualValues(t, 0, r.UnreadCount)
		}
	}
}

func TestNonMemberCannotPostOrList(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	alice := e.createUser(t, "Alice Hart", "alice@example.com")
	mallory := e.createUser(t, "Mallory Vane", "mallory@example.com")
	room := e.createRoom(t, alice, "private")

	_, err := e.messages.Post(ctx, mallory.ID, &PostRequest{RoomID: room.ID, Content: "hi"})
	assert.ErrorIs(t, err, ErrNotMember)

	_, err = e.messages.List(ctx, mallory.ID, room.ID, 1, 10)
	assert.ErrorIs(t, err, ErrNotMember)
}

func TestConnectionStatusTransitions(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	alice := e.createUser(t, "Alice Hart", "alice@example.com")

	e.chat.UserConnected(ctx, "conn-1", alice.ID, true)
	u, err := e.userRepo.FindByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.True(t, u.IsOnline)

	online, err := e.redis.IsUserOnline(ctx, alice.ID)
	require.NoError(t, err)
	assert.True(t, online)

	// Second tab: no state change expected.
	e.chat.UserConnected(ctx, "conn-2", alice.ID, false)

	e.chat.UserDisconnected(ctx, "conn-1", alice.ID, false)
	u, err = e.userRepo.FindByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.True(t, u.IsOnline, "still online on the remaining connection")

	e.chat.UserDisconnected(ctx, "conn-2", alice.ID, true)
	u, err = e.userRepo.FindByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.False(t, u.IsOnline)
	assert.NotNil(t, u.LastSeenAt)
}

func TestMembershipLeaveAndRejoinKeepsRow(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	alice := e.createUser(t, "Alice Hart", "alice@example.com")
	bob := e.createUser(t, "Bob Stone", "bob@example.com")
	room := e.createRoom(t, alice, "general", bob)

	require.NoError(t, e.rooms.RemoveMember(ctx, room.ID, bob.ID, bob.ID))
	ok, err := e.roomRepo.IsMember(ctx, room.ID, bob.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, e.rooms.AddMember(ctx, room.ID, alice.ID, bob.ID))
	ok, err = e.roomRepo.IsMember(ctx, room.ID, bob.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	var count int64
	require.NoError(t, e.db.Model(&model.Membership{}).
		Where("room_id = ? AND user_id = ?", room.ID, bob.ID).Count(&count).Error)
	assert.EqualValues(t, 1, count, "rejoin reactivates the existing row")
}
