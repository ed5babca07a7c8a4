package repositories

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"chat-sync/internal/db"
	"chat-sync/internal/errs"
	"chat-sync/internal/models"
)

const messageColumns = `id, chat_id, sender_id, content, media_url, media_type, status, is_read, sent_at`

// MessageRepository defines interactions for chat messages.
type MessageRepository interface {
	PersistMessage(ctx context.Context, msg models.NewMessage) (models.Message, error)
	SetStatus(ctx context.Context, messageID int, status models.DeliveryStatus) (models.Message, bool, error)
	MarkRead(ctx context.Context, messageID int) (models.Message, bool, error)
	GetMessage(ctx context.Context, messageID int) (models.Message, error)
	MessagesOf(ctx context.Context, chatID int) ([]models.Message, error)
	LastMessages(ctx context.Context, chatIDs []int) (map[int]models.Message, error)
	UnreadCounts(ctx context.Context, userID int, chatIDs []int) (map[int]int, error)
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db, now: utcNow}
}

// PersistMessage stores a new message with status sent and returns it with its
// assigned id and timestamp.
func (r *MessageRepo) PersistMessage(ctx context.Context, in models.NewMessage) (models.Message, error) {
	if !in.HasBody() {
		return models.Message{}, ErrEmptyMessage
	}
	content := blankToNil(in.Content)
	mediaURL := blankToNil(in.MediaURL)
	var mediaType *string
	if mediaURL != nil {
		kind := models.MediaOther
		if in.MediaType != nil {
			kind = models.NormalizeMediaKind(*in.MediaType)
		}
		mediaType = &kind
	}

	if ok, err := r.exists(ctx, `SELECT EXISTS(SELECT 1 FROM chats WHERE id = ?)`, in.ChatID); err != nil {
		return models.Message{}, errs.Internal("persist message", err)
	} else if !ok {
		return models.Message{}, ErrUnknownChat.WithDetails("chat %d", in.ChatID)
	}
	if ok, err := r.exists(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE id = ?)`, in.SenderID); err != nil {
		return models.Message{}, errs.Internal("persist message", err)
	} else if !ok {
		return models.Message{}, ErrUnknownSender.WithDetails("user %d", in.SenderID)
	}

	query := r.db.Rebind(`INSERT INTO messages (chat_id, sender_id, content, media_url, media_type, status, is_read, sent_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?) RETURNING ` + messageColumns)

	var msg models.Message
	err := r.db.QueryRowxContext(ctx, query,
		in.ChatID, in.SenderID, content, mediaURL, mediaType, string(models.StatusSent), false, r.now()).
		StructScan(&msg)
	if err != nil {
		if db.IsForeignKeyViolation(err) {
			return models.Message{}, ErrUnknownChat.Wrap(err)
		}
		return models.Message{}, errs.Internal("persist message", err)
	}
	return msg, nil
}

// SetStatus moves a message forward to status. The guard lives in the UPDATE
// so concurrent writers cannot regress a status; a backward or lateral move
// leaves the row untouched and returns it unchanged.
func (r *MessageRepo) SetStatus(ctx context.Context, messageID int, status models.DeliveryStatus) (models.Message, bool, error) {
	if !status.Valid() {
		return models.Message{}, false, ErrInvalidStatus.WithDetails("%q", status)
	}

	changed := false
	if from := models.StatusesBefore(status); len(from) > 0 {
		allowed := make([]string, len(from))
		for i, s := range from {
			allowed[i] = string(s)
		}
		query, args, err := sqlx.In(`UPDATE messages SET status = ?, is_read = ? WHERE id = ? AND status IN (?)`,
			string(status), status == models.StatusRead, messageID, allowed)
		if err != nil {
			return models.Message{}, false, errs.Internal("set message status", err)
		}
		res, err := r.db.ExecContext(ctx, r.db.Rebind(query), args...)
		if err != nil {
			return models.Message{}, false, errs.Internal("set message status", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return models.Message{}, false, errs.Internal("set message status", err)
		}
		changed = n == 1
	}

	msg, err := r.GetMessage(ctx, messageID)
	if err != nil {
		return models.Message{}, false, err
	}
	return msg, changed, nil
}

// MarkRead sets a message to read. changed is false when the message was
// already read (or in error), so repeated calls are harmless.
func (r *MessageRepo) MarkRead(ctx context.Context, messageID int) (models.Message, bool, error) {
	res, err := r.db.ExecContext(ctx,
		r.db.Rebind(`UPDATE messages SET status = 'read', is_read = TRUE WHERE id = ? AND status NOT IN ('read', 'error')`),
		messageID)
	if err != nil {
		return models.Message{}, false, errs.Internal("mark message read", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return models.Message{}, false, errs.Internal("mark message read", err)
	}

	msg, err := r.GetMessage(ctx, messageID)
	if err != nil {
		return models.Message{}, false, err
	}
	return msg, n == 1, nil
}

// GetMessage retrieves a single message.
func (r *MessageRepo) GetMessage(ctx context.Context, messageID int) (models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg, r.db.Rebind(`SELECT `+messageColumns+` FROM messages WHERE id = ?`), messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	if err != nil {
		return models.Message{}, errs.Internal("get message", err)
	}
	return msg, nil
}

// MessagesOf returns the chat's messages, oldest first.
func (r *MessageRepo) MessagesOf(ctx context.Context, chatID int) ([]models.Message, error) {
	msgs := []models.Message{}
	err := r.db.SelectContext(ctx, &msgs,
		r.db.Rebind(`SELECT `+messageColumns+` FROM messages WHERE chat_id = ? ORDER BY sent_at ASC, id ASC`), chatID)
	if err != nil {
		return nil, errs.Internal("list messages", err)
	}
	return msgs, nil
}

// LastMessages returns the newest message of each chat that has one.
func (r *MessageRepo) LastMessages(ctx context.Context, chatIDs []int) (map[int]models.Message, error) {
	out := make(map[int]models.Message, len(chatIDs))
	if len(chatIDs) == 0 {
		return out, nil
	}
	query, args, err := sqlx.In(`SELECT `+messageColumns+` FROM messages m
        WHERE m.chat_id IN (?)
        AND m.id = (SELECT m2.id FROM messages m2 WHERE m2.chat_id = m.chat_id ORDER BY m2.sent_at DESC, m2.id DESC LIMIT 1)`, chatIDs)
	if err != nil {
		return nil, errs.Internal("last messages", err)
	}
	var msgs []models.Message
	if err := r.db.SelectContext(ctx, &msgs, r.db.Rebind(query), args...); err != nil {
		return nil, errs.Internal("last messages", err)
	}
	for _, m := range msgs {
		out[m.ChatID] = m
	}
	return out, nil
}

// UnreadCounts returns, per chat, how many messages from other senders userID
// has not read. Chats without unread messages are absent.
func (r *MessageRepo) UnreadCounts(ctx context.Context, userID int, chatIDs []int) (map[int]int, error) {
	out := make(map[int]int, len(chatIDs))
	if len(chatIDs) == 0 {
		return out, nil
	}
	query, args, err := sqlx.In(`SELECT chat_id, COUNT(*) AS unread FROM messages
        WHERE sender_id <> ? AND is_read = FALSE AND status <> 'error' AND chat_id IN (?)
        GROUP BY chat_id`, userID, chatIDs)
	if err != nil {
		return nil, errs.Internal("unread counts", err)
	}
	var rows []struct {
		ChatID int `db:"chat_id"`
		Unread int `db:"unread"`
	}
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return nil, errs.Internal("unread counts", err)
	}
	for _, row := range rows {
		out[row.ChatID] = row.Unread
	}
	return out, nil
}

func (r *MessageRepo) exists(ctx context.Context, query string, args ...any) (bool, error) {
	var ok bool
	err := r.db.GetContext(ctx, &ok, r.db.Rebind(query), args...)
	return ok, err
}

func blankToNil(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	return s
}
