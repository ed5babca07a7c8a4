package repositories

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"time"

	"github.com/jmoiron/sqlx"

	"chat-sync/internal/db"
	"chat-sync/internal/errs"
	"chat-sync/internal/models"
)

const chatColumns = `c.id, c.name, c.pinned, c.created_at`

// ChatRepository abstracts chat persistence.
type ChatRepository interface {
	GetChat(ctx context.Context, chatID int) (models.Chat, error)
	ParticipantsOf(ctx context.Context, chatID int) ([]models.User, error)
	IsParticipant(ctx context.Context, chatID int, userID int) (bool, error)
	CreateChat(ctx context.Context, name *string, userIDs []int) (models.ChatDetails, error)
	FindSharedChat(ctx context.Context, userA, userB int) (models.Chat, error)
	ListChats(ctx context.Context, userID int) ([]models.ChatDetails, error)
	SetPinned(ctx context.Context, chatID int, pinned bool) (models.Chat, error)
}

// ChatRepo is a sqlx implementation of ChatRepository.
type ChatRepo struct {
	db       *sqlx.DB
	messages *MessageRepo
	now      func() time.Time
}

// NewChatRepo constructs a ChatRepo.
func NewChatRepo(db *sqlx.DB) *ChatRepo {
	return &ChatRepo{db: db, messages: NewMessageRepo(db), now: utcNow}
}

// GetChat fetches a chat by id.
func (r *ChatRepo) GetChat(ctx context.Context, chatID int) (models.Chat, error) {
	var chat models.Chat
	err := r.db.GetContext(ctx, &chat, r.db.Rebind(`SELECT `+chatColumns+` FROM chats c WHERE c.id = ?`), chatID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Chat{}, ErrChatNotFound
	}
	if err != nil {
		return models.Chat{}, errs.Internal("get chat", err)
	}
	return chat, nil
}

// ParticipantsOf lists the users of a chat ordered by id.
func (r *ChatRepo) ParticipantsOf(ctx context.Context, chatID int) ([]models.User, error) {
	users := []models.User{}
	err := r.db.SelectContext(ctx, &users, r.db.Rebind(`SELECT `+userColumns+` FROM users u
        INNER JOIN participants p ON p.user_id = u.id
        WHERE p.chat_id = ? ORDER BY u.id`), chatID)
	if err != nil {
		return nil, errs.Internal("list participants", err)
	}
	return users, nil
}

// IsParticipant checks whether a user belongs to the chat.
func (r *ChatRepo) IsParticipant(ctx context.Context, chatID int, userID int) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists,
		r.db.Rebind(`SELECT EXISTS(SELECT 1 FROM participants WHERE chat_id = ? AND user_id = ?)`), chatID, userID)
	if err != nil {
		return false, errs.Internal("check participant", err)
	}
	return exists, nil
}

// CreateChat creates a chat and its participants atomically.
func (r *ChatRepo) CreateChat(ctx context.Context, name *string, userIDs []int) (details models.ChatDetails, err error) {
	ids := uniqueSorted(userIDs)
	if len(ids) < 2 {
		return models.ChatDetails{}, errs.Validation("a chat needs at least two participants")
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.ChatDetails{}, errs.Internal("create chat", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var chat models.Chat
	if err = tx.QueryRowxContext(ctx,
		tx.Rebind(`INSERT INTO chats (name, pinned, created_at) VALUES (?, ?, ?) RETURNING id, name, pinned, created_at`),
		blankToNil(name), false, r.now()).StructScan(&chat); err != nil {
		return models.ChatDetails{}, errs.Internal("create chat", err)
	}

	for _, id := range ids {
		if _, err = tx.ExecContext(ctx, tx.Rebind(`INSERT INTO participants (chat_id, user_id) VALUES (?, ?)`), chat.ID, id); err != nil {
			if db.IsForeignKeyViolation(err) {
				return models.ChatDetails{}, ErrUnknownUser.WithDetails("user %d", id).Wrap(err)
			}
			return models.ChatDetails{}, errs.Internal("add participant", err)
		}
	}

	participants := []models.User{}
	if err = tx.SelectContext(ctx, &participants, tx.Rebind(`SELECT `+userColumns+` FROM users u
        INNER JOIN participants p ON p.user_id = u.id
        WHERE p.chat_id = ? ORDER BY u.id`), chat.ID); err != nil {
		return models.ChatDetails{}, errs.Internal("create chat", err)
	}

	if err = tx.Commit(); err != nil {
		return models.ChatDetails{}, errs.Internal("create chat", err)
	}
	return models.ChatDetails{Chat: chat, Participants: participants}, nil
}

// FindSharedChat returns the oldest chat containing both users.
func (r *ChatRepo) FindSharedChat(ctx context.Context, userA, userB int) (models.Chat, error) {
	var chat models.Chat
	err := r.db.GetContext(ctx, &chat, r.db.Rebind(`SELECT `+chatColumns+` FROM chats c
        INNER JOIN participants pa ON pa.chat_id = c.id AND pa.user_id = ?
        INNER JOIN participants pb ON pb.chat_id = c.id AND pb.user_id = ?
        ORDER BY c.id LIMIT 1`), userA, userB)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Chat{}, ErrChatNotFound
	}
	if err != nil {
		return models.Chat{}, errs.Internal("find shared chat", err)
	}
	return chat, nil
}

// ListChats returns the user's chats with participants, last message and unread
// count. Pinned chats come first, then the most recently active.
func (r *ChatRepo) ListChats(ctx context.Context, userID int) ([]models.ChatDetails, error) {
	var chats []models.Chat
	err := r.db.SelectContext(ctx, &chats, r.db.Rebind(`SELECT `+chatColumns+` FROM chats c
        INNER JOIN participants p ON p.chat_id = c.id
        WHERE p.user_id = ?`), userID)
	if err != nil {
		return nil, errs.Internal("list chats", err)
	}
	result := make([]models.ChatDetails, 0, len(chats))
	if len(chats) == 0 {
		return result, nil
	}

	chatIDs := make([]int, len(chats))
	for i, c := range chats {
		chatIDs[i] = c.ID
	}

	query, args, err := sqlx.In(`SELECT p.chat_id, `+userColumns+` FROM participants p
        INNER JOIN users u ON u.id = p.user_id
        WHERE p.chat_id IN (?) ORDER BY u.id`, chatIDs)
	if err != nil {
		return nil, errs.Internal("list chats", err)
	}
	var rows []struct {
		ChatID int `db:"chat_id"`
		models.User
	}
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return nil, errs.Internal("list chats", err)
	}
	participants := make(map[int][]models.User, len(chats))
	for _, row := range rows {
		participants[row.ChatID] = append(participants[row.ChatID], row.User)
	}

	last, err := r.messages.LastMessages(ctx, chatIDs)
	if err != nil {
		return nil, err
	}
	unread, err := r.messages.UnreadCounts(ctx, userID, chatIDs)
	if err != nil {
		return nil, err
	}

	for _, c := range chats {
		d := models.ChatDetails{Chat: c, Participants: participants[c.ID], UnreadCount: unread[c.ID]}
		if m, ok := last[c.ID]; ok {
			d.LastMessage = &m
		}
		result = append(result, d)
	}

	sort.SliceStable(result, func(i, j int) bool {
		a, b := result[i], result[j]
		if a.Pinned != b.Pinned {
			return a.Pinned
		}
		at, bt := lastActivity(a), lastActivity(b)
		if !at.Equal(bt) {
			return at.After(bt)
		}
		return a.ID > b.ID
	})
	return result, nil
}

// SetPinned updates the pinned flag, the only mutable chat attribute.
func (r *ChatRepo) SetPinned(ctx context.Context, chatID int, pinned bool) (models.Chat, error) {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`UPDATE chats SET pinned = ? WHERE id = ?`), pinned, chatID)
	if err != nil {
		return models.Chat{}, errs.Internal("pin chat", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return models.Chat{}, errs.Internal("pin chat", err)
	} else if n == 0 {
		return models.Chat{}, ErrChatNotFound
	}
	return r.GetChat(ctx, chatID)
}

func lastActivity(d models.ChatDetails) time.Time {
	if d.LastMessage != nil {
		return d.LastMessage.SentAt
	}
	return d.CreatedAt
}

func uniqueSorted(ids []int) []int {
	set := make(map[int]struct{}, len(ids))
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		if _, ok := set[id]; ok {
			continue
		}
		set[id] = struct{}{}
		out = append(out, id)
	}
	sort.Ints(out)
	return out
}
