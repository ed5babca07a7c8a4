package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"chat-sync/internal/db"
	"chat-sync/internal/errs"
	"chat-sync/internal/models"
)

const requestColumns = `id, sender_id, receiver_id, status, message, created_at, updated_at`

// ConnectionRequestRepository persists invitations between users.
type ConnectionRequestRepository interface {
	CreateRequest(ctx context.Context, senderID, receiverID int, message *string) (models.ConnectionRequest, error)
	GetRequest(ctx context.Context, requestID int) (models.ConnectionRequest, error)
	ListRequests(ctx context.Context, userID int) ([]models.ConnectionRequest, error)
	RespondRequest(ctx context.Context, requestID int, status models.RequestStatus) (models.ConnectionRequest, error)
}

// ConnectionRequestRepo is a sqlx implementation of ConnectionRequestRepository.
type ConnectionRequestRepo struct {
	db    *sqlx.DB
	users *UserRepo
	now   func() time.Time
}

// NewConnectionRequestRepo constructs a ConnectionRequestRepo.
func NewConnectionRequestRepo(db *sqlx.DB) *ConnectionRequestRepo {
	return &ConnectionRequestRepo{db: db, users: NewUserRepo(db), now: utcNow}
}

// CreateRequest stores a pending request. At most one non-rejected request may
// exist per unordered pair of users; the partial unique index backs the check
// against concurrent inserts.
func (r *ConnectionRequestRepo) CreateRequest(ctx context.Context, senderID, receiverID int, message *string) (models.ConnectionRequest, error) {
	if senderID == receiverID {
		return models.ConnectionRequest{}, errs.Validation("cannot send a connection request to yourself")
	}

	var exists bool
	err := r.db.GetContext(ctx, &exists, r.db.Rebind(`SELECT EXISTS(SELECT 1 FROM connection_requests
        WHERE ((sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?))
        AND status <> 'rejected')`), senderID, receiverID, receiverID, senderID)
	if err != nil {
		return models.ConnectionRequest{}, errs.Internal("create connection request", err)
	}
	if exists {
		return models.ConnectionRequest{}, ErrDuplicateRequest
	}

	now := r.now()
	var req models.ConnectionRequest
	err = r.db.QueryRowxContext(ctx,
		r.db.Rebind(`INSERT INTO connection_requests (sender_id, receiver_id, status, message, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?) RETURNING `+requestColumns),
		senderID, receiverID, string(models.RequestPending), blankToNil(message), now, now).StructScan(&req)
	if err != nil {
		switch {
		case db.IsUniqueViolation(err):
			return models.ConnectionRequest{}, ErrDuplicateRequest.Wrap(err)
		case db.IsForeignKeyViolation(err):
			return models.ConnectionRequest{}, ErrUnknownUser.Wrap(err)
		}
		return models.ConnectionRequest{}, errs.Internal("create connection request", err)
	}
	return req, nil
}

// GetRequest fetches a request by id.
func (r *ConnectionRequestRepo) GetRequest(ctx context.Context, requestID int) (models.ConnectionRequest, error) {
	var req models.ConnectionRequest
	err := r.db.GetContext(ctx, &req, r.db.Rebind(`SELECT `+requestColumns+` FROM connection_requests WHERE id = ?`), requestID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ConnectionRequest{}, ErrRequestNotFound
	}
	if err != nil {
		return models.ConnectionRequest{}, errs.Internal("get connection request", err)
	}
	return req, nil
}

// ListRequests returns the incoming and outgoing requests of a user, newest
// first, each with its sender attached.
func (r *ConnectionRequestRepo) ListRequests(ctx context.Context, userID int) ([]models.ConnectionRequest, error) {
	reqs := []models.ConnectionRequest{}
	err := r.db.SelectContext(ctx, &reqs, r.db.Rebind(`SELECT `+requestColumns+` FROM connection_requests
        WHERE sender_id = ? OR receiver_id = ?
        ORDER BY created_at DESC, id DESC`), userID, userID)
	if err != nil {
		return nil, errs.Internal("list connection requests", err)
	}
	if len(reqs) == 0 {
		return reqs, nil
	}

	ids := make([]int, 0, len(reqs))
	for _, req := range reqs {
		ids = append(ids, req.SenderID)
	}
	senders, err := r.users.UsersByIDs(ctx, uniqueSorted(ids))
	if err != nil {
		return nil, err
	}
	byID := make(map[int]models.User, len(senders))
	for _, u := range senders {
		byID[u.ID] = u
	}
	for i := range reqs {
		if u, ok := byID[reqs[i].SenderID]; ok {
			reqs[i].Sender = &u
		}
	}
	return reqs, nil
}

// RespondRequest moves a pending request to accepted or rejected. Answering a
// request that is no longer pending fails with ErrRequestAnswered.
func (r *ConnectionRequestRepo) RespondRequest(ctx context.Context, requestID int, status models.RequestStatus) (models.ConnectionRequest, error) {
	if status != models.RequestAccepted && status != models.RequestRejected {
		return models.ConnectionRequest{}, ErrInvalidStatus.WithDetails("%q", status)
	}

	var req models.ConnectionRequest
	err := r.db.QueryRowxContext(ctx,
		r.db.Rebind(`UPDATE connection_requests SET status = ?, updated_at = ?
        WHERE id = ? AND status = 'pending' RETURNING `+requestColumns),
		string(status), r.now(), requestID).StructScan(&req)
	if errors.Is(err, sql.ErrNoRows) {
		if _, getErr := r.GetRequest(ctx, requestID); getErr != nil {
			return models.ConnectionRequest{}, getErr
		}
		return models.ConnectionRequest{}, ErrRequestAnswered
	}
	if err != nil {
		return models.ConnectionRequest{}, errs.Internal("respond connection request", err)
	}
	return req, nil
}
