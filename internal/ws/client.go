package ws

import (
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/Cramiac/SyncTunes/internal/models"
	"github.com/Cramiac/SyncTunes/internal/protocol"
	"github.com/Cramiac/SyncTunes/internal/services"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 16 * 1024
)

// Client is one member's websocket attachment to a room. The read pump is
// the only reader and routes inbound messages to the coordinator; the write
// pump is the only writer and drains the member's outbox, so a slow peer
// never blocks anyone else.
type Client struct {
	roomID   string
	memberID string
	conn     *websocket.Conn
	coord    *services.RoomCoordinator
	updates  <-chan protocol.Message
	out      chan protocol.Message
}

func NewClient(roomID, memberID string, conn *websocket.Conn, coord *services.RoomCoordinator, updates <-chan protocol.Message) *Client {
	return &Client{
		roomID:   roomID,
		memberID: memberID,
		conn:     conn,
		coord:    coord,
		updates:  updates,
		out:      make(chan protocol.Message, 16),
	}
}

// QueueMessage enqueues a message addressed to this client only, e.g. the
// initial catch-up snapshot. Must be called before Run.
func (c *Client) QueueMessage(msg protocol.Message) {
	select {
	case c.out <- msg:
	default:
	}
}

// Run drives both pumps and blocks until the connection is gone. On exit
// the member enters the reconnecting grace period rather than being removed
// outright; if a newer attachment already took over, Detach leaves the
// member alone.
func (c *Client) Run() {
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		c.writePump()
	}()

	c.readPump()

	c.coord.Detach(c.roomID, c.memberID, c.updates)
	c.conn.Close()
	<-writerDone
}

func (c *Client) readPump() {
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		c.coord.MarkAlive(c.roomID, c.memberID)
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("ws: read error for member %s: %v", c.memberID, err)
			}
			return
		}

		var msg protocol.Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.sendError("malformed message")
			continue
		}
		c.handle(msg)
	}
}

func (c *Client) handle(msg protocol.Message) {
	switch msg.Type {
	case protocol.TypeHeartbeat:
		c.coord.MarkAlive(c.roomID, c.memberID)

	case protocol.TypeSyncPing:
		var ping protocol.SyncPing
		if err := msg.Decode(&ping); err != nil {
			c.sendError("malformed sync_ping")
			return
		}
		// T1 is stamped here at receipt; T2 is stamped by the write pump
		// just before the pong goes out.
		pong, err := protocol.NewMessage(protocol.TypeSyncPong, protocol.SyncPong{
			T0: ping.T0,
			T1: time.Now().UnixNano(),
		})
		if err == nil {
			c.QueueMessage(pong)
		}

	case protocol.TypeTransition:
		var req protocol.TransitionRequest
		if err := msg.Decode(&req); err != nil {
			c.sendError("malformed transition")
			return
		}
		_, err := c.coord.ProposeTransition(c.roomID, c.memberID, req.Transition, req.Version, true)
		if err != nil && !errors.Is(err, services.ErrStaleTransition) {
			// Stale proposals are resolved silently; everything else the
			// member should hear about.
			c.sendError(err.Error())
		}

	case protocol.TypeStateUpdate:
		var st models.PlaybackState
		if err := msg.Decode(&st); err != nil {
			c.sendError("malformed state_update")
			return
		}
		// Losing or duplicate states are dropped without comment; the
		// rebroadcast of the winner corrects the sender.
		c.coord.ApplyRemoteState(c.roomID, c.memberID, st)

	case protocol.TypeResync:
		var req protocol.Resync
		if err := msg.Decode(&req); err != nil {
			c.sendError("malformed resync")
			return
		}
		snap, err := c.coord.Reconnect(c.roomID, c.memberID, req.Version)
		if err != nil {
			c.sendError(err.Error())
			return
		}
		if snap != nil {
			if m, err := protocol.NewMessage(protocol.TypeCatchUp, snap); err == nil {
				c.QueueMessage(m)
			}
		}

	case protocol.TypeChat:
		var chat protocol.ChatSend
		if err := msg.Decode(&chat); err != nil {
			c.sendError("malformed chat")
			return
		}
		if _, err := c.coord.SendChat(c.roomID, c.memberID, chat.Text); err != nil {
			c.sendError(err.Error())
		}

	default:
		c.sendError("unknown message type")
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-c.updates:
			if !ok {
				// Coordinator severed the subscription: the member was
				// removed or the room was torn down.
				c.conn.SetWriteDeadline(time.Now().Add(writeWait))
				c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "room closed"))
				c.conn.Close()
				return
			}
			if err := c.write(msg); err != nil {
				return
			}

		case msg := <-c.out:
			if err := c.write(msg); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) write(msg protocol.Message) error {
	if msg.Type == protocol.TypeSyncPong {
		var pong protocol.SyncPong
		if err := msg.Decode(&pong); err == nil {
			pong.T2 = time.Now().UnixNano()
			if restamped, err := protocol.NewMessage(protocol.TypeSyncPong, pong); err == nil {
				msg = restamped
			}
		}
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		log.Printf("ws: write error for member %s: %v", c.memberID, err)
		return err
	}
	return nil
}

func (c *Client) sendError(text string) {
	if msg, err := protocol.NewMessage(protocol.TypeError, protocol.ErrorPayload{Error: text}); err == nil {
		c.QueueMessage(msg)
	}
}

// Close force-closes the underlying connection, e.g. when the same member
// attaches again.
func (c *Client) Close() {
	c.conn.Close()
}
