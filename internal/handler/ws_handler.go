package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-assessment/internal/engine"
	"github.com/stemsi/exstem-assessment/internal/middleware"
	"github.com/stemsi/exstem-assessment/internal/repository"
	"github.com/stemsi/exstem-assessment/internal/response"
	"github.com/stemsi/exstem-assessment/internal/service"
	ws "github.com/stemsi/exstem-assessment/internal/websocket"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// subscribeFunc opens the event stream of a user's test. The returned
// function closes it.
type subscribeFunc func(ctx context.Context, userID int) (<-chan *redis.Message, func() error)

// WSHandler streams a running test over WebSocket.
type WSHandler struct {
	assessment *service.AssessmentService
	subscribe  subscribeFunc
	log        zerolog.Logger
	upgrader   websocket.Upgrader

	mu     sync.Mutex
	conns  map[*ws.Conn]struct{}
	closed bool
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(assessment *service.AssessmentService, cache *repository.SessionCache, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return newWSHandler(assessment, func(ctx context.Context, userID int) (<-chan *redis.Message, func() error) {
		pubsub := cache.Subscribe(ctx, userID)
		return pubsub.Channel(), pubsub.Close
	}, log, allowedOrigins)
}

func newWSHandler(assessment *service.AssessmentService, subscribe subscribeFunc, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		assessment: assessment,
		subscribe:  subscribe,
		log:        log.With().Str("component", "ws_handler").Logger(),
		upgrader:   buildUpgrader(allowedOrigins),
		conns:      make(map[*ws.Conn]struct{}),
	}
}

// Shutdown closes every open stream with a "service restart" close frame
// and refuses new ones. Hijacked connections are not closed by
// http.Server.Shutdown, so register this with RegisterOnShutdown.
func (h *WSHandler) Shutdown() {
	h.mu.Lock()
	h.closed = true
	conns := make([]*ws.Conn, 0, len(h.conns))
	for conn := range h.conns {
		conns = append(conns, conn)
	}
	h.mu.Unlock()

	for _, conn := range conns {
		_ = conn.CloseWithReason(websocket.CloseServiceRestart, "server restarting")
	}
	h.log.Info().Int("count", len(conns)).Msg("Test streams closed")
}

func (h *WSHandler) track(conn *ws.Conn) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.conns[conn] = struct{}{}
	return true
}

func (h *WSHandler) untrack(conn *ws.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns, conn)
}

// TestStream godoc
// WS /ws/v1/test/stream?token=...
//
// Client actions are applied through AssessmentService. State changes come
// back on the user's event channel, so every open tab and every instance
// sees the same updates. Only "state", "pong" and errors are written
// directly to the requesting connection.
func (h *WSHandler) TestStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	raw, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	conn := ws.Wrap(raw)
	defer conn.Close()

	if !h.track(conn) {
		_ = conn.CloseWithReason(websocket.CloseServiceRestart, "server restarting")
		return
	}
	defer h.untrack(conn)

	userID := claims.UserID
	wsLog := h.log.With().Int("user_id", userID).Logger()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	events, closeEvents := h.subscribe(ctx, userID)
	defer func() { _ = closeEvents() }()
	go h.forward(ctx, conn, events)

	wsLog.Info().Msg("Test taker connected")
	h.sendState(ctx, conn, userID)

	for {
		msg, err := conn.ReadRequest()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			return
		}
		h.dispatch(ctx, conn, wsLog, userID, msg)
	}
}

func (h *WSHandler) dispatch(ctx context.Context, conn *ws.Conn, wsLog zerolog.Logger, userID int, msg ws.RequestPayload) {
	var err error
	switch msg.Action {
	case ws.ActionState:
		h.sendState(ctx, conn, userID)
		return
	case ws.ActionPing:
		_ = conn.WriteTyped(ws.PongResponse{Event: ws.EventPong})
		return
	case ws.ActionSelect:
		if msg.QuestionID == "" || msg.OptionIndex == nil {
			_ = conn.WriteError(string(response.ErrInvalidPayload), "question_id and option_index are required", false)
			return
		}
		_, err = h.assessment.SelectAnswer(ctx, userID, msg.QuestionID, *msg.OptionIndex)
	case ws.ActionMark:
		if msg.QuestionID == "" {
			_ = conn.WriteError(string(response.ErrInvalidPayload), "question_id is required", false)
			return
		}
		_, err = h.assessment.ToggleMark(ctx, userID, msg.QuestionID)
	case ws.ActionGoTo:
		if msg.Index == nil {
			_ = conn.WriteError(string(response.ErrInvalidPayload), "index is required", false)
			return
		}
		_, err = h.assessment.GoTo(ctx, userID, *msg.Index)
	case ws.ActionNext:
		_, err = h.assessment.Next(ctx, userID)
	case ws.ActionPrevious:
		_, err = h.assessment.Previous(ctx, userID)
	case ws.ActionSubmit:
		_, err = h.assessment.Submit(ctx, userID)
	default:
		wsLog.Warn().Str("action", string(msg.Action)).Msg("Unknown action")
		_ = conn.WriteError(string(response.ErrInvalidPayload), "unknown action: "+string(msg.Action), false)
		return
	}

	if err != nil {
		h.writeError(conn, wsLog, err)
	}
}

func (h *WSHandler) sendState(ctx context.Context, conn *ws.Conn, userID int) {
	view, err := h.assessment.State(ctx, userID)
	if err != nil {
		h.writeError(conn, h.log, err)
		return
	}
	_ = conn.WriteTyped(ws.StateResponse{Event: ws.EventState, State: view})
}

// forward relays published events until ctx ends or the channel closes.
func (h *WSHandler) forward(ctx context.Context, conn *ws.Conn, events <-chan *redis.Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-events:
			if !ok {
				return
			}
			if err := conn.WriteRaw([]byte(msg.Payload)); err != nil {
				return
			}
		}
	}
}

func (h *WSHandler) writeError(conn *ws.Conn, log zerolog.Logger, err error) {
	_, code := classify(err)
	msg := response.GetMessage(code)
	if code == response.ErrInternal {
		log.Error().Err(err).Msg("Test action failed")
	} else if errors.Is(err, engine.ErrPersistFailure) {
		log.Warn().Err(err).Msg("Submit not stored yet")
	}
	_ = conn.WriteError(string(code), msg, response.Retryable(code))
}
