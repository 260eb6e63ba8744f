package signal

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/dkeye/Watch/internal/app"
	"github.com/dkeye/Watch/internal/core"
	"github.com/dkeye/Watch/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var ErrBackpressure = errors.New("backpressure")

// Controller upgrades authenticated HTTP requests to websocket sessions and
// translates wire commands into coordinator calls.
type Controller struct {
	Coord      *app.Coordinator
	ReadLimit  int64
	PingPeriod time.Duration
	SendBuffer int
	ChatLimit  *ChatRateLimiter
}

func NewController(coord *app.Coordinator, readLimit int64, pingPeriod time.Duration, sendBuffer int) *Controller {
	if sendBuffer <= 0 {
		sendBuffer = 64
	}
	return &Controller{
		Coord:      coord,
		ReadLimit:  readLimit,
		PingPeriod: pingPeriod,
		SendBuffer: sendBuffer,
		ChatLimit:  NewChatRateLimiter(10, 10*time.Second),
	}
}

// WsConn is the adapter-owned transport endpoint. TrySend never blocks;
// full buffers surface as backpressure to the policy layer.
type WsConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func (c *WsConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errors.New("connection closed")
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *WsConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handle performs the upgrade for one connection. Identity must already be
// resolved by the HTTP middleware; the socket is refused without it.
func (ctl *Controller) Handle(ctx context.Context, c *gin.Context) {
	sid := core.SessionID(c.GetString("client_token"))
	accountID := c.GetString("account_id")
	displayName := c.GetString("display_name")
	if sid == "" || accountID == "" || displayName == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "identity required"})
		return
	}

	user, err := domain.NewUser(domain.UserID(accountID), displayName)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}
	if ctl.ReadLimit > 0 {
		ws.SetReadLimit(ctl.ReadLimit)
	}

	conn := &WsConn{
		conn: ws,
		send: make(chan core.Frame, ctl.SendBuffer),
	}

	sess := core.NewMemberSession(user, conn)
	ctx, cancel := context.WithCancel(ctx)
	ctl.Coord.Registry.BindUser(sid, user)
	ctl.Coord.Registry.BindSignal(sid, sess, cancel)
	log.Info().Str("module", "signal").Str("sid", string(sid)).Str("user", accountID).Msg("new WS connection")

	ctl.sendJSON(conn, iceServersEvent())

	go ctl.writePump(ctx, conn)
	go ctl.readPump(ctx, sid, conn)
}

func (ctl *Controller) sendJSON(c *WsConn, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("sendJSON marshal")
		return
	}
	_ = c.TrySend(b)
}

// sendError reports a scoped failure to the offending connection only.
func (ctl *Controller) sendError(c *WsConn, err error) {
	ctl.sendJSON(c, app.NewErrorEvent(errorMessage(err)))
}

// errorMessage maps the domain taxonomy onto client-facing text; anything
// unexpected gets a generic message rather than internals.
func errorMessage(err error) string {
	switch {
	case errors.Is(err, domain.ErrRoomNotFound):
		return "Room not found"
	case errors.Is(err, domain.ErrNotAuthorized):
		return "Only the host can do that"
	case errors.Is(err, domain.ErrInvalidIndex):
		return "Invalid playlist item"
	case errors.Is(err, domain.ErrPlaylistEmpty):
		return "Playlist is empty"
	case errors.Is(err, domain.ErrInvalidItem):
		return "Invalid request"
	case errors.Is(err, domain.ErrTargetUnreachable):
		return "Peer is no longer connected"
	case errors.Is(err, domain.ErrEmptyMessage):
		return "Message is empty"
	case errors.Is(err, domain.ErrChatDisabled):
		return "Chat is disabled in this room"
	case errors.Is(err, domain.ErrNotInRoom):
		return "Join a room first"
	case errors.Is(err, domain.ErrRateLimited):
		return "You are sending messages too quickly"
	default:
		return "Request failed"
	}
}
