package models

import "time"

// RequestStatus is the state of a connection request.
type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestAccepted RequestStatus = "accepted"
	RequestRejected RequestStatus = "rejected"
)

// ConnectionRequest is an invitation between two users. Accepting it creates
// the chat between them.
type ConnectionRequest struct {
	ID         int           `db:"id" json:"id"`
	SenderID   int           `db:"sender_id" json:"senderId"`
	ReceiverID int           `db:"receiver_id" json:"receiverId"`
	Status     RequestStatus `db:"status" json:"status"`
	Message    *string       `db:"message" json:"message"`
	CreatedAt  time.Time     `db:"created_at" json:"createdAt"`
	UpdatedAt  time.Time     `db:"updated_at" json:"updatedAt"`

	Sender *User `db:"-" json:"sender,omitempty"`
}
