package ws

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"chat-sync/internal/delivery"
	"chat-sync/internal/errs"
	"chat-sync/internal/logx"
	"chat-sync/internal/models"
	"chat-sync/internal/observability"
	"chat-sync/internal/presence"
	"chat-sync/internal/protocol"
	"chat-sync/internal/repositories"
	"chat-sync/internal/telemetry"
)

// State of a live connection.
type State int

const (
	StateUnauthenticated State = iota
	StateBound
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateBound:
		return "bound"
	default:
		return "closed"
	}
}

var (
	ErrIdentityMismatch = errs.Forbidden("userId does not match the authenticated user")
	ErrSenderMismatch   = errs.Validation("senderId does not match the bound user")
	ErrRateLimited      = errs.Validation("too many frames")
)

// Router is the part of the delivery router a connection dispatches to.
type Router interface {
	Submit(ctx context.Context, sub delivery.Submission) (delivery.Result, error)
	MarkRead(ctx context.Context, readerID, messageID int) (models.Message, error)
	RelayTyping(ctx context.Context, userID, chatID int, isTyping bool) error
	RelayCallRequest(ctx context.Context, callerID int, req protocol.CallRequest) error
	RelayCallResponse(ctx context.Context, responderID int, resp protocol.CallResponse) error
}

// Deps are the collaborators shared by every connection.
type Deps struct {
	Registry *presence.Registry
	Router   Router
	Users    repositories.UserRepository
	Events   *telemetry.Emitter
}

// Connection runs the protocol for one live session: it starts
// unauthenticated, binds to a user on a valid user_status frame and ends
// closed. Frames are handled one at a time in arrival order.
type Connection struct {
	mu       sync.Mutex
	state    State
	authID   int
	userID   int
	clientID string

	session presence.Session
	deps    Deps
	logger  zerolog.Logger
	now     func() time.Time
}

// NewConnection creates a connection for a session whose upgrade request
// authenticated authID.
func NewConnection(authID int, session presence.Session, deps Deps) *Connection {
	return &Connection{
		state:   StateUnauthenticated,
		authID:  authID,
		session: session,
		deps:    deps,
		logger:  logx.Component("ws").With().Int("auth_user_id", authID).Logger(),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (c *Connection) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// UserID returns the bound user, or 0 before binding.
func (c *Connection) UserID() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userID
}

// HandleFrame processes one raw inbound frame. Failures are answered with an
// error frame; the connection stays open.
func (c *Connection) HandleFrame(ctx context.Context, data []byte) {
	state := c.State()
	if state == StateClosed {
		return
	}

	inbound, err := protocol.Decode(data)
	if err != nil {
		// before binding only a broken user_status is worth an answer
		if state == StateUnauthenticated && protocol.PeekType(data) != protocol.TypeUserStatus {
			observability.IncInboundFrame("invalid", "ignored")
			return
		}
		observability.IncInboundFrame("invalid", "rejected")
		c.reply(err)
		return
	}

	frameType := string(inbound.FrameType())
	if state == StateUnauthenticated {
		status, ok := inbound.(protocol.UserStatus)
		if !ok {
			observability.IncInboundFrame(frameType, "ignored")
			return
		}
		err = c.bind(ctx, status)
	} else {
		err = c.dispatch(ctx, inbound)
	}

	if err != nil {
		observability.IncInboundFrame(frameType, "error")
		if errs.KindOf(err) == errs.KindInternal {
			c.logger.Error().Err(err).Str("frame_type", frameType).Msg("frame processing failed")
		}
		c.reply(err)
		return
	}
	observability.IncInboundFrame(frameType, "ok")
}

func (c *Connection) bind(ctx context.Context, p protocol.UserStatus) error {
	if p.UserID != c.authID {
		return ErrIdentityMismatch
	}
	if _, err := c.deps.Users.GetUser(ctx, p.UserID); err != nil {
		return err
	}

	c.mu.Lock()
	if c.state != StateUnauthenticated {
		c.mu.Unlock()
		return nil
	}
	c.state = StateBound
	c.userID = p.UserID
	c.clientID = p.ClientID
	c.mu.Unlock()

	c.logger = c.logger.With().Int("user_id", p.UserID).Str("client_id", p.ClientID).Logger()
	unlock := c.deps.Registry.LockUser(p.UserID)
	c.deps.Registry.Register(p.UserID, c.session, p.ClientID)
	c.presenceChanged(ctx, p.UserID, models.PresenceOnline)
	unlock()

	if err := c.session.Send(protocol.PresenceSnapshotFrame(c.deps.Registry.Online())); err != nil {
		c.logger.Warn().Err(err).Msg("send presence snapshot")
	}
	c.logger.Info().Msg("session bound")
	return nil
}

func (c *Connection) dispatch(ctx context.Context, inbound protocol.Inbound) error {
	userID := c.UserID()

	switch p := inbound.(type) {
	case protocol.UserStatus:
		if p.UserID != userID {
			return ErrIdentityMismatch
		}
		return nil
	case protocol.SendMessage:
		if p.SenderID != userID {
			return ErrSenderMismatch
		}
		_, err := c.deps.Router.Submit(ctx, delivery.Submission{
			ChatID:    p.ChatID,
			SenderID:  p.SenderID,
			Content:   p.Content,
			MediaURL:  p.MediaURL,
			MediaType: p.MediaType,
			MessageID: p.MessageID,
			TempID:    string(p.TempID),
			Path:      delivery.PathWS,
		})
		return err
	case protocol.Typing:
		return c.deps.Router.RelayTyping(ctx, userID, p.ChatID, p.Active())
	case protocol.Read:
		_, err := c.deps.Router.MarkRead(ctx, userID, p.MessageID)
		return err
	case protocol.CallRequest:
		return c.deps.Router.RelayCallRequest(ctx, userID, p)
	case protocol.CallResponse:
		return c.deps.Router.RelayCallResponse(ctx, userID, p)
	default:
		return protocol.ErrUnknownType.WithDetails("%q", inbound.FrameType())
	}
}

// Close ends the connection. When it was bound and still the user's live
// session, the user goes offline. Calling Close again does nothing.
func (c *Connection) Close(ctx context.Context) {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return
	}
	wasBound := c.state == StateBound
	c.state = StateClosed
	userID := c.userID
	c.mu.Unlock()

	c.session.Close()
	if !wasBound {
		return
	}

	unlock := c.deps.Registry.LockUser(userID)
	defer unlock()
	if !c.deps.Registry.Unregister(userID, c.session) {
		c.logger.Debug().Msg("session already replaced, presence unchanged")
		return
	}
	c.presenceChanged(ctx, userID, models.PresenceOffline)
	c.logger.Info().Msg("session closed")
}

func (c *Connection) presenceChanged(ctx context.Context, userID int, status models.PresenceStatus) {
	if err := c.deps.Users.SetPresence(ctx, userID, status, c.now()); err != nil {
		c.logger.Warn().Err(err).Str("status", string(status)).Msg("persist presence")
	}
	c.deps.Registry.BroadcastPresence(userID, status)
	c.deps.Events.Emit(ctx, telemetry.EventPresenceChanged, &userID, map[string]any{
		"status": status,
	})
}

func (c *Connection) reply(err error) {
	if sendErr := c.session.Send(protocol.ErrorFrame(err)); sendErr != nil && !errors.Is(sendErr, presence.ErrSessionClosed) {
		c.logger.Warn().Err(sendErr).Msg("send error frame")
	}
}
