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

const userColumns = `u.id, u.username, u.display_name, u.avatar_url, u.status, u.last_seen`

// UserRepository reads the user rows this service needs and tracks presence.
type UserRepository interface {
	GetUser(ctx context.Context, userID int) (models.User, error)
	UsersByIDs(ctx context.Context, ids []int) ([]models.User, error)
	CreateUser(ctx context.Context, username, displayName string) (models.User, error)
	SetPresence(ctx context.Context, userID int, status models.PresenceStatus, lastSeen time.Time) error
}

// UserRepo is a sqlx implementation of UserRepository.
type UserRepo struct {
	db *sqlx.DB
}

// NewUserRepo constructs a UserRepo.
func NewUserRepo(db *sqlx.DB) *UserRepo {
	return &UserRepo{db: db}
}

// GetUser fetches a user by id.
func (r *UserRepo) GetUser(ctx context.Context, userID int) (models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user, r.db.Rebind(`SELECT `+userColumns+` FROM users u WHERE u.id = ?`), userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrUserNotFound
	}
	if err != nil {
		return models.User{}, errs.Internal("get user", err)
	}
	return user, nil
}

// UsersByIDs returns the users that exist among ids, ordered by id.
func (r *UserRepo) UsersByIDs(ctx context.Context, ids []int) ([]models.User, error) {
	users := []models.User{}
	if len(ids) == 0 {
		return users, nil
	}
	query, args, err := sqlx.In(`SELECT `+userColumns+` FROM users u WHERE u.id IN (?) ORDER BY u.id`, ids)
	if err != nil {
		return nil, errs.Internal("list users", err)
	}
	if err := r.db.SelectContext(ctx, &users, r.db.Rebind(query), args...); err != nil {
		return nil, errs.Internal("list users", err)
	}
	return users, nil
}

// CreateUser provisions a user row. Accounts are owned by the auth service;
// this exists for seeding and tests.
func (r *UserRepo) CreateUser(ctx context.Context, username, displayName string) (models.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return models.User{}, errs.Validation("username is required")
	}
	if strings.TrimSpace(displayName) == "" {
		displayName = username
	}

	var user models.User
	err := r.db.QueryRowxContext(ctx,
		r.db.Rebind(`INSERT INTO users (username, display_name, status) VALUES (?, ?, ?)
        RETURNING id, username, display_name, avatar_url, status, last_seen`),
		username, displayName, string(models.PresenceOffline)).StructScan(&user)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return models.User{}, ErrUsernameTaken.WithDetails("%s", username)
		}
		return models.User{}, errs.Internal("create user", err)
	}
	return user, nil
}

// SetPresence records the user's online state and last-seen time.
func (r *UserRepo) SetPresence(ctx context.Context, userID int, status models.PresenceStatus, lastSeen time.Time) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`UPDATE users SET status = ?, last_seen = ? WHERE id = ?`),
		string(status), lastSeen.UTC(), userID)
	if err != nil {
		return errs.Internal("set presence", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errs.Internal("set presence", err)
	}
	if n == 0 {
		return ErrUserNotFound
	}
	return nil
}
