// Package delivery decides who receives a message, typing indicator, read
// receipt or call signal, and what the stored delivery status becomes.
package delivery

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"chat-sync/internal/dedup"
	"chat-sync/internal/errs"
	"chat-sync/internal/logx"
	"chat-sync/internal/models"
	"chat-sync/internal/observability"
	"chat-sync/internal/presence"
	"chat-sync/internal/protocol"
	"chat-sync/internal/repositories"
	"chat-sync/internal/telemetry"
)

// Submission paths, used as a metrics label.
const (
	PathHTTP = "http"
	PathWS   = "ws"
)

var (
	ErrNotParticipant  = errs.Forbidden("not a participant of this chat")
	ErrNoSharedChat    = errs.Forbidden("no shared chat with this user")
	ErrMessageMismatch = errs.Validation("message does not belong to this chat and sender")
	ErrSelfCall        = errs.Validation("cannot call yourself")
)

// Submission is a message submitted through either write path.
type Submission struct {
	ChatID    int
	SenderID  int
	Content   *string
	MediaURL  *string
	MediaType *string
	// MessageID is set when the client already knows the server identity.
	MessageID *int
	TempID    string
	Path      string
}

// Result of a submission. Duplicate is true when no new message was stored.
type Result struct {
	Message   models.Message
	Duplicate bool
}

// Router routes chat traffic to live sessions.
type Router struct {
	messages repositories.MessageRepository
	chats    repositories.ChatRepository
	registry *presence.Registry
	window   dedup.Window
	events   *telemetry.Emitter
	logger   zerolog.Logger
}

// NewRouter builds a Router. window and events may be nil.
func NewRouter(messages repositories.MessageRepository, chats repositories.ChatRepository, registry *presence.Registry, window dedup.Window, events *telemetry.Emitter) *Router {
	return &Router{
		messages: messages,
		chats:    chats,
		registry: registry,
		window:   window,
		events:   events,
		logger:   logx.Component("delivery"),
	}
}

// Submit persists a message at most once per logical submission and
// delivers it. A retry carrying the server id, or an identical payload inside
// the dedup window, returns the stored message without pushing it again.
func (r *Router) Submit(ctx context.Context, sub Submission) (Result, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "delivery.submit")
	defer span.End()
	span.SetAttributes(
		attribute.Int("chat.id", sub.ChatID),
		attribute.Int("user.id", sub.SenderID),
		attribute.String("submit.path", sub.Path),
	)

	res, err := r.submit(ctx, sub)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Result{}, err
	}
	span.SetAttributes(attribute.Int("message.id", res.Message.ID), attribute.Bool("submit.duplicate", res.Duplicate))
	return res, nil
}

func (r *Router) submit(ctx context.Context, sub Submission) (Result, error) {
	if err := r.authorize(ctx, sub.ChatID, sub.SenderID); err != nil {
		return Result{}, err
	}

	if sub.MessageID != nil {
		msg, err := r.messages.GetMessage(ctx, *sub.MessageID)
		if err != nil {
			return Result{}, err
		}
		if msg.ChatID != sub.ChatID || msg.SenderID != sub.SenderID {
			return Result{}, ErrMessageMismatch
		}
		observability.IncDedupHit(sub.Path, "message_id")
		return Result{Message: msg, Duplicate: true}, nil
	}

	in := models.NewMessage{
		ChatID:    sub.ChatID,
		SenderID:  sub.SenderID,
		Content:   sub.Content,
		MediaURL:  sub.MediaURL,
		MediaType: sub.MediaType,
	}
	if !in.HasBody() {
		return Result{}, repositories.ErrEmptyMessage
	}

	key := dedup.Key(sub.ChatID, sub.SenderID, sub.Content, sub.MediaURL)
	claimed := false
	if r.window != nil {
		existingID, duplicate, err := r.window.Begin(ctx, key)
		switch {
		case err != nil:
			r.logger.Warn().Err(err).Int("chat_id", sub.ChatID).Msg("dedup window unavailable, persisting without it")
		case duplicate:
			msg, err := r.messages.GetMessage(ctx, existingID)
			if err != nil {
				return Result{}, err
			}
			observability.IncDedupHit(sub.Path, "content")
			return Result{Message: msg, Duplicate: true}, nil
		default:
			claimed = true
		}
	}

	msg, err := r.messages.PersistMessage(ctx, in)
	if err != nil {
		if claimed {
			if abortErr := r.window.Abort(context.WithoutCancel(ctx), key); abortErr != nil {
				r.logger.Warn().Err(abortErr).Msg("release dedup claim")
			}
		}
		return Result{}, err
	}
	if claimed {
		if err := r.window.Complete(context.WithoutCancel(ctx), key, msg.ID); err != nil {
			r.logger.Warn().Err(err).Int("message_id", msg.ID).Msg("settle dedup claim")
		}
	}

	r.events.Emit(ctx, telemetry.EventMessagePersisted, &msg.SenderID, map[string]any{
		"message_id": msg.ID,
		"chat_id":    msg.ChatID,
		"path":       sub.Path,
	})

	return Result{Message: r.Deliver(ctx, msg, sub.TempID)}, nil
}

// Deliver pushes a freshly stored message to every reachable participant
// other than the sender, advances it to delivered when at least one push
// went out, and acknowledges the final status to the sender once. It
// returns the message as stored afterwards.
func (r *Router) Deliver(ctx context.Context, msg models.Message, tempID string) models.Message {
	participants, err := r.chats.ParticipantsOf(ctx, msg.ChatID)
	if err != nil {
		r.logger.Error().Err(err).Int("chat_id", msg.ChatID).Msg("load participants for delivery")
	}

	frame := protocol.MessageFrame(msg.WithStatus(models.StatusDelivered))
	reached := 0
	for _, p := range participants {
		if p.ID == msg.SenderID {
			continue
		}
		if r.Notify(p.ID, frame) {
			reached++
		}
	}

	if reached > 0 {
		updated, changed, err := r.messages.SetStatus(ctx, msg.ID, models.StatusDelivered)
		if err != nil {
			r.logger.Error().Err(err).Int("message_id", msg.ID).Msg("mark message delivered")
		} else {
			msg = updated
			if changed {
				r.statusChanged(ctx, msg)
			}
		}
	}

	r.Notify(msg.SenderID, protocol.MessageSentFrame(msg.ID, msg.Status, tempID))
	return msg
}

// MarkRead records that readerID read the message. The original sender
// gets a read receipt only when the status actually changed; the reader and
// other participants get nothing. A sender reading their own message is a
// no-op.
func (r *Router) MarkRead(ctx context.Context, readerID, messageID int) (models.Message, error) {
	msg, err := r.messages.GetMessage(ctx, messageID)
	if err != nil {
		return models.Message{}, err
	}
	if err := r.authorize(ctx, msg.ChatID, readerID); err != nil {
		return models.Message{}, err
	}
	if msg.SenderID == readerID {
		return msg, nil
	}

	updated, changed, err := r.messages.MarkRead(ctx, messageID)
	if err != nil {
		return models.Message{}, err
	}
	if changed {
		r.statusChanged(ctx, updated)
		r.events.Emit(ctx, telemetry.EventMessageRead, &readerID, map[string]any{
			"message_id": updated.ID,
			"chat_id":    updated.ChatID,
		})
		r.Notify(updated.SenderID, protocol.ReadFrame(updated.ID, updated.ChatID))
	}
	return updated, nil
}

// RelayTyping forwards a typing indicator to the other reachable
// participants. Nothing is stored.
func (r *Router) RelayTyping(ctx context.Context, userID, chatID int, isTyping bool) error {
	if err := r.authorize(ctx, chatID, userID); err != nil {
		return err
	}
	participants, err := r.chats.ParticipantsOf(ctx, chatID)
	if err != nil {
		return err
	}
	frame := protocol.TypingFrame(chatID, userID, isTyping)
	for _, p := range participants {
		if p.ID != userID {
			r.Notify(p.ID, frame)
		}
	}
	return nil
}

// RelayCallRequest forwards a call request to its recipient. When the
// recipient is not reachable the caller is told the call was declined.
func (r *Router) RelayCallRequest(ctx context.Context, callerID int, req protocol.CallRequest) error {
	if req.RecipientID == callerID {
		return ErrSelfCall
	}
	if err := r.requireSharedChat(ctx, callerID, req.RecipientID); err != nil {
		return err
	}
	if !r.Notify(req.RecipientID, protocol.CallRequestFrame(callerID, req.CallType)) {
		r.Notify(callerID, protocol.CallResponseFrame(req.RecipientID, false, req.CallType))
	}
	return nil
}

// RelayCallResponse forwards the callee's answer to the caller.
func (r *Router) RelayCallResponse(ctx context.Context, responderID int, resp protocol.CallResponse) error {
	if resp.CallerID == responderID {
		return ErrSelfCall
	}
	if err := r.requireSharedChat(ctx, responderID, resp.CallerID); err != nil {
		return err
	}
	accepted := resp.Accepted != nil && *resp.Accepted
	r.Notify(resp.CallerID, protocol.CallResponseFrame(responderID, accepted, resp.CallType))
	return nil
}

// Notify pushes one frame to userID's live session. A missing session or a
// failed send is an unreachable recipient for this push only; it reports
// whether the frame was queued.
func (r *Router) Notify(userID int, frame protocol.Frame) bool {
	session, ok := r.registry.Route(userID)
	if !ok {
		observability.IncPush(string(frame.Type), observability.OutcomeUnreachable)
		return false
	}
	if err := session.Send(frame); err != nil {
		observability.IncPush(string(frame.Type), observability.OutcomeFailed)
		r.logger.Warn().Err(err).
			Int("user_id", userID).
			Str("frame_type", string(frame.Type)).
			Msg("push failed")
		return false
	}
	observability.IncPush(string(frame.Type), observability.OutcomeSent)
	return true
}

func (r *Router) statusChanged(ctx context.Context, msg models.Message) {
	observability.IncStatusTransition(string(msg.Status))
	r.events.Emit(ctx, telemetry.EventMessageStatusChanged, nil, map[string]any{
		"message_id": msg.ID,
		"chat_id":    msg.ChatID,
		"status":     msg.Status,
	})
}

// authorize fails with NotFound for a missing chat and Forbidden for a
// non-participant.
func (r *Router) authorize(ctx context.Context, chatID, userID int) error {
	ok, err := r.chats.IsParticipant(ctx, chatID, userID)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	if _, err := r.chats.GetChat(ctx, chatID); err != nil {
		return err
	}
	return ErrNotParticipant
}

func (r *Router) requireSharedChat(ctx context.Context, userA, userB int) error {
	_, err := r.chats.FindSharedChat(ctx, userA, userB)
	if errors.Is(err, repositories.ErrChatNotFound) {
		return ErrNoSharedChat
	}
	return err
}
