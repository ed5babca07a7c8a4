package models

import "time"

// PresenceStatus is the persisted reachability of a user.
type PresenceStatus string

const (
	PresenceOnline  PresenceStatus = "online"
	PresenceOffline PresenceStatus = "offline"
)

// User is a chat participant as seen by this service. Accounts and credentials
// live in the auth service.
type User struct {
	ID          int            `db:"id" json:"id"`
	Username    string         `db:"username" json:"username"`
	DisplayName string         `db:"display_name" json:"displayName"`
	AvatarURL   *string        `db:"avatar_url" json:"avatarUrl"`
	Status      PresenceStatus `db:"status" json:"status"`
	LastSeen    *time.Time     `db:"last_seen" json:"lastSeen"`
}
