package models

import "time"

// Chat is a conversation. A chat without a name is a direct chat whose title
// clients derive from the participant set.
type Chat struct {
	ID        int       `db:"id" json:"id"`
	Name      *string   `db:"name" json:"name"`
	Pinned    bool      `db:"pinned" json:"pinned"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// Participant joins a chat and a user.
type Participant struct {
	ChatID int `db:"chat_id" json:"chatId"`
	UserID int `db:"user_id" json:"userId"`
}

// ChatDetails is the chat-list view: the chat plus its participants, the most
// recent message and the number of messages the viewer has not read.
type ChatDetails struct {
	Chat
	Participants []User   `json:"participants"`
	LastMessage  *Message `json:"lastMessage"`
	UnreadCount  int      `json:"unreadCount"`
}

// HasParticipant reports whether userID is part of the chat.
func (c ChatDetails) HasParticipant(userID int) bool {
	for _, p := range c.Participants {
		if p.ID == userID {
			return true
		}
	}
	return false
}
