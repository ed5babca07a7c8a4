package models

import (
	"strings"
	"time"
)

// DeliveryStatus is the lifecycle stage of a message.
type DeliveryStatus string

const (
	StatusSending   DeliveryStatus = "sending"
	StatusSent      DeliveryStatus = "sent"
	StatusDelivered DeliveryStatus = "delivered"
	StatusRead      DeliveryStatus = "read"
	StatusError     DeliveryStatus = "error"
)

var statusRank = map[DeliveryStatus]int{
	StatusSending:   0,
	StatusSent:      1,
	StatusDelivered: 2,
	StatusRead:      3,
}

var allStatuses = []DeliveryStatus{StatusSending, StatusSent, StatusDelivered, StatusRead, StatusError}

// Valid reports whether s is a known status.
func (s DeliveryStatus) Valid() bool {
	_, ok := statusRank[s]
	return ok || s == StatusError
}

// Rank orders the forward statuses. Error has no rank and returns -1.
func (s DeliveryStatus) Rank() int {
	if r, ok := statusRank[s]; ok {
		return r
	}
	return -1
}

// CanAdvanceTo reports whether a message in status s may move to next.
// Forward moves follow sending -> sent -> delivered -> read. Error is reachable
// from sending and sent only, and nothing leaves error.
func (s DeliveryStatus) CanAdvanceTo(next DeliveryStatus) bool {
	if !s.Valid() || !next.Valid() || s == StatusError {
		return false
	}
	if next == StatusError {
		return s == StatusSending || s == StatusSent
	}
	return s.Rank() < next.Rank()
}

// StatusesBefore lists every status from which next is reachable. The store uses
// it to build the compare-and-set guard of a status update.
func StatusesBefore(next DeliveryStatus) []DeliveryStatus {
	var out []DeliveryStatus
	for _, s := range allStatuses {
		if s.CanAdvanceTo(next) {
			out = append(out, s)
		}
	}
	return out
}

// Media kinds recognized by clients. Other values are stored as given.
const (
	MediaImage = "image"
	MediaVoice = "voice"
	MediaOther = "other"
)

// NormalizeMediaKind lower-cases a media kind and maps blanks to "other".
func NormalizeMediaKind(kind string) string {
	kind = strings.ToLower(strings.TrimSpace(kind))
	if kind == "" {
		return MediaOther
	}
	return kind
}

// Message is a chat message. Read mirrors Status == read for older clients.
type Message struct {
	ID        int            `db:"id" json:"id"`
	ChatID    int            `db:"chat_id" json:"chatId"`
	SenderID  int            `db:"sender_id" json:"senderId"`
	Content   *string        `db:"content" json:"content"`
	MediaURL  *string        `db:"media_url" json:"mediaUrl"`
	MediaType *string        `db:"media_type" json:"mediaType"`
	Status    DeliveryStatus `db:"status" json:"status"`
	Read      bool           `db:"is_read" json:"read"`
	SentAt    time.Time      `db:"sent_at" json:"timestamp"`
}

// WithStatus returns a copy of m carrying status.
func (m Message) WithStatus(status DeliveryStatus) Message {
	m.Status = status
	m.Read = status == StatusRead
	return m
}

// NewMessage is the input of a message insert.
type NewMessage struct {
	ChatID    int
	SenderID  int
	Content   *string
	MediaURL  *string
	MediaType *string
}

// HasBody reports whether the message carries text or media.
func (n NewMessage) HasBody() bool {
	return nonBlank(n.Content) || nonBlank(n.MediaURL)
}

func nonBlank(s *string) bool {
	return s != nil && strings.TrimSpace(*s) != ""
}
