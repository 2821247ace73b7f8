package realtime

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/classlive/backend/internal/signaling"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // allow all origins in dev; restrict in production
	},
}

// WSMessage is the WebSocket message envelope.
type WSMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// SignalSubscriber delivers addressed signaling envelopes (answers,
// candidates) to a single user across instances.
type SignalSubscriber interface {
	SubscribeUser(sessionID, userID uuid.UUID, handler func(env signaling.Envelope)) (cancel func(), err error)
}

// Client represents a single WebSocket connection in a session.
type Client struct {
	ID           string
	SessionID    uuid.UUID
	UserID       uuid.UUID
	Role         string
	hub          *Hub
	conn         *websocket.Conn
	send         chan WSMessage
	cancelSignal func()
	logger       *zap.Logger
}

// ServeWs handles the WebSocket upgrade and runs the client loop. signals may
// be nil; clients then receive room broadcasts only.
func ServeWs(hub *Hub, logger *zap.Logger, validate func(token string) (userID uuid.UUID, role string, err error), signals SignalSubscriber) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionIDStr := c.Query("session_id")
		token := c.Query("token")
		if sessionIDStr == "" || token == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "session_id and token required"})
			return
		}
		sessionID, err := uuid.Parse(sessionIDStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session_id"})
			return
		}
		userID, role, err := validate(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", zap.Error(err))
			return
		}

		client := &Client{
			ID:        uuid.New().String(),
			SessionID: sessionID,
			UserID:    userID,
			Role:      role,
			hub:       hub,
			conn:      conn,
			send:      make(chan WSMessage, 256),
			logger:    logger,
		}
		if signals != nil {
			cancel, err := signals.SubscribeUser(sessionID, userID, func(env signaling.Envelope) {
				data, err := json.Marshal(env)
				if err != nil {
					return
				}
				select {
				case client.send <- WSMessage{Event: env.Event, Data: data}:
				default:
				}
			})
			if err != nil {
				logger.Warn("signal subscribe failed", zap.Error(err), zap.String("session_id", sessionID.String()))
			} else {
				client.cancelSignal = cancel
			}
		}
		hub.Register(client)
		go client.writePump()
		client.readPump()
	}
}

func (c *Client) readPump() {
	defer func() {
		if c.cancelSignal != nil {
			c.cancelSignal()
		}
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(65536)
	_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
		return nil
	})

	for {
		var msg WSMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			break
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))

		switch msg.Event {
		case "join":
			c.hub.BroadcastToSessionAndPublish(c.SessionID, "audience_count", map[string]int{
				"count": c.hub.AudienceCount(c.SessionID),
			})
		case "typing", "reaction_burst":
			// Ephemeral audience events relay as-is; nothing is persisted.
			c.hub.BroadcastToSessionAndPublish(c.SessionID, msg.Event, json.RawMessage(msg.Data))
		default:
			// State-changing operations go through the REST API; ignore
			// anything else arriving on the socket.
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(PingInterval * time.Second)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
