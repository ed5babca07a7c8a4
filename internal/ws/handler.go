package ws

import (
	"context"
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"

	"chat-sync/internal/logx"
	"chat-sync/internal/middleware"
	"chat-sync/internal/observability"
	"chat-sync/internal/telemetry"
)

// Options tune the live transport.
type Options struct {
	// AllowedOrigins lists accepted Origin headers; "*" accepts any.
	AllowedOrigins []string
	// FrameRate and FrameBurst bound inbound frames per connection. A zero
	// rate disables the limit.
	FrameRate  float64
	FrameBurst int
}

// Handler upgrades authenticated requests to live sessions.
type Handler struct {
	auth     middleware.Authenticator
	deps     Deps
	opts     Options
	upgrader websocket.Upgrader
	sessions sync.WaitGroup
}

func NewHandler(auth middleware.Authenticator, deps Deps, opts Options) *Handler {
	h := &Handler{auth: auth, deps: deps, opts: opts}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

// Handle authenticates the upgrade request with a bearer header or token
// query parameter, upgrades it and runs the session until it closes.
func (h *Handler) Handle(c *gin.Context) {
	ctx, span := telemetry.Tracer().Start(c.Request.Context(), "ws.handshake")

	userID, err := h.auth.Authenticate(observability.BearerToken(c.Request))
	if err != nil {
		span.End()
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}
	span.SetAttributes(attribute.Int("user.id", userID))

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		span.End()
		logx.Warn("websocket upgrade failed", "error", err.Error(), "user_id", userID)
		return
	}

	info := newConnInfo(c.Request, userID, span.SpanContext().TraceID().String())
	span.End()

	// the request context is cancelled once this handler returns
	sessionCtx := context.WithoutCancel(ctx)

	client := NewClient(conn, info, h.limiter())
	connection := NewConnection(userID, client, h.deps)

	observability.IncWSActive()
	observability.IncWSEvent("ws_connect")
	h.deps.Events.Emit(sessionCtx, telemetry.EventWSConnect, &userID, info.eventPayload("ws_connect", ""))

	go client.WritePump()
	h.sessions.Add(1)
	go func() {
		defer h.sessions.Done()
		reason := client.ReadPump(sessionCtx, connection.HandleFrame)
		connection.Close(sessionCtx)

		observability.DecWSActive()
		observability.IncWSEvent("ws_disconnect")
		h.deps.Events.Emit(sessionCtx, telemetry.EventWSDisconnect, &userID, info.eventPayload("ws_disconnect", reason))
	}()
}

// Wait blocks until every session started by Handle has finished closing,
// including its offline presence write, or ctx is done.
func (h *Handler) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		h.sessions.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Handler) limiter() *rate.Limiter {
	if h.opts.FrameRate <= 0 {
		return nil
	}
	burst := h.opts.FrameBurst
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(h.opts.FrameRate), burst)
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range h.opts.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}
