package ws

import (
	"context"
	"time"

	"ridepool/internal/config"
	"ridepool/internal/realtime"
	"ridepool/pkg/logger"

	"github.com/gorilla/websocket"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Client is one WebSocket connection, adapting the socket to the engine's
// Session interface. Creation implies the handshake already authenticated the
// user; an unauthenticated socket never becomes a Client.
type Client struct {
	engine *realtime.Engine
	conn   *websocket.Conn
	send   chan []byte
	cfg    *config.WebSocketConfig
	log    *logger.Logger

	id        string
	userID    primitive.ObjectID
	cohortKey string
}

func NewClient(engine *realtime.Engine, conn *websocket.Conn, cfg *config.WebSocketConfig, log *logger.Logger, id string, userID primitive.ObjectID, cohortKey string) *Client {
	return &Client{
		engine:    engine,
		conn:      conn,
		send:      make(chan []byte, cfg.SendQueueSize),
		cfg:       cfg,
		log:       log,
		id:        id,
		userID:    userID,
		cohortKey: cohortKey,
	}
}

func (c *Client) ID() string                 { return c.id }
func (c *Client) UserID() primitive.ObjectID { return c.userID }
func (c *Client) CohortKey() string          { return c.cohortKey }

// Send queues an outbound event without blocking the broadcaster. A client
// whose queue is full has stalled; the frame is dropped and the read pump
// will notice the dead connection soon enough.
func (c *Client) Send(ev realtime.Outbound) {
	data, err := realtime.EncodeOutbound(ev)
	if err != nil {
		c.log.WithConnID(c.id).WithError(err).Error("Failed to encode outbound event")
		return
	}

	select {
	case c.send <- data:
	default:
		c.log.WithConnID(c.id).Warn("Send queue full, dropping frame")
	}
}

// ReadPump consumes inbound frames until the connection dies, dispatching
// each decoded event to the engine on this goroutine. One goroutine per
// connection keeps a single connection's events strictly ordered.
func (c *Client) ReadPump() {
	defer func() {
		c.engine.Disconnect(c.id)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(c.cfg.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongTimeout))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.WithConnID(c.id).WithError(err).Warn("WebSocket read error")
			}
			break
		}

		ev, err := realtime.DecodeInbound(message)
		if err != nil {
			// A malformed frame is the client's problem, not a reason to
			// drop the connection.
			c.log.WithConnID(c.id).WithError(err).Warn("Ignoring malformed frame")
			continue
		}

		c.engine.Handle(context.Background(), c, ev)
	}
}

// WritePump drains the send queue onto the socket and keeps the connection
// alive with pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
