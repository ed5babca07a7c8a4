package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat-sync/internal/errs"
	"chat-sync/internal/models"
	"chat-sync/internal/testutil"
)

func TestCreateChatWithParticipants(t *testing.T) {
	conn := testutil.NewDB(t)
	users := testutil.SeedUsers(t, conn, 3)
	repo := NewChatRepo(conn)
	ctx := context.Background()

	chat, err := repo.CreateChat(ctx, strPtr("team"), []int{users[2], users[0], users[2], users[1]})
	require.NoError(t, err)

	assert.NotZero(t, chat.ID)
	assert.Equal(t, "team", *chat.Name)
	assert.Nil(t, chat.LastMessage)
	require.Len(t, chat.Participants, 3)
	assert.Equal(t, users[0], chat.Participants[0].ID)

	ok, err := repo.IsParticipant(ctx, chat.ID, users[1])
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.IsParticipant(ctx, chat.ID, 999)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCreateChatRollsBackOnUnknownUser(t *testing.T) {
	conn := testutil.NewDB(t)
	users := testutil.SeedUsers(t, conn, 1)
	repo := NewChatRepo(conn)

	_, err := repo.CreateChat(context.Background(), nil, []int{users[0], 999})
	assert.ErrorIs(t, err, ErrUnknownUser)

	var count int
	require.NoError(t, conn.Get(&count, `SELECT COUNT(*) FROM chats`))
	assert.Zero(t, count)

	_, err = repo.CreateChat(context.Background(), nil, []int{users[0]})
	assert.Equal(t, errs.KindValidation, errs.KindOf(err))
}

func TestFindSharedChat(t *testing.T) {
	conn := testutil.NewDB(t)
	users := testutil.SeedUsers(t, conn, 3)
	repo := NewChatRepo(conn)
	ctx := context.Background()

	_, err := repo.FindSharedChat(ctx, users[0], users[1])
	assert.ErrorIs(t, err, ErrChatNotFound)

	group, err := repo.CreateChat(ctx, strPtr("trio"), users)
	require.NoError(t, err)

	shared, err := repo.FindSharedChat(ctx, users[1], users[0])
	require.NoError(t, err)
	assert.Equal(t, group.ID, shared.ID)
}

func TestListChatsOrdering(t *testing.T) {
	conn := testutil.NewDB(t)
	users := testutil.SeedUsers(t, conn, 4)
	repo := NewChatRepo(conn)
	messages := NewMessageRepo(conn)
	ctx := context.Background()

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return base }
	quiet := newChat(t, repo, users[0], users[1])
	busy := newChat(t, repo, users[0], users[2])
	pinned := newChat(t, repo, users[0], users[3])

	messages.now = func() time.Time { return base.Add(time.Minute) }
	_, err := messages.PersistMessage(ctx, models.NewMessage{ChatID: busy.ID, SenderID: users[2], Content: strPtr("ping")})
	require.NoError(t, err)

	_, err = repo.SetPinned(ctx, pinned.ID, true)
	require.NoError(t, err)

	list, err := repo.ListChats(ctx, users[0])
	require.NoError(t, err)
	require.Len(t, list, 3)

	assert.Equal(t, pinned.ID, list[0].ID)
	assert.True(t, list[0].Pinned)
	assert.Equal(t, busy.ID, list[1].ID)
	require.NotNil(t, list[1].LastMessage)
	assert.Equal(t, 1, list[1].UnreadCount)
	assert.Len(t, list[1].Participants, 2)
	assert.Equal(t, quiet.ID, list[2].ID)
	assert.Nil(t, list[2].LastMessage)

	other, err := repo.ListChats(ctx, 999)
	require.NoError(t, err)
	assert.Empty(t, other)

	_, err = repo.SetPinned(ctx, 999, true)
	assert.ErrorIs(t, err, ErrChatNotFound)
}

func TestUserPresence(t *testing.T) {
	conn := testutil.NewDB(t)
	users := NewUserRepo(conn)
	ctx := context.Background()

	u, err := users.CreateUser(ctx, "alice", "")
	require.NoError(t, err)
	assert.Equal(t, "alice", u.DisplayName)
	assert.Equal(t, models.PresenceOffline, u.Status)

	_, err = users.CreateUser(ctx, "alice", "Alice")
	assert.ErrorIs(t, err, ErrUsernameTaken)

	seen := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, users.SetPresence(ctx, u.ID, models.PresenceOnline, seen))

	got, err := users.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PresenceOnline, got.Status)
	require.NotNil(t, got.LastSeen)
	assert.True(t, seen.Equal(*got.LastSeen))

	assert.ErrorIs(t, users.SetPresence(ctx, 999, models.PresenceOnline, seen), ErrUserNotFound)
	_, err = users.GetUser(ctx, 999)
	assert.ErrorIs(t, err, ErrUserNotFound)

	list, err := users.UsersByIDs(ctx, []int{999, u.ID})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, u.ID, list[0].ID)
}
