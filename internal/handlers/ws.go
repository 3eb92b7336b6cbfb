package handlers

import (
	"log"
	"net/http"
	"strconv"

	"github.com/Cramiac/SyncTunes/internal/protocol"
	"github.com/Cramiac/SyncTunes/internal/services"
	"github.com/Cramiac/SyncTunes/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

type WSHandler struct {
	coord  *services.RoomCoordinator
	tokens *services.TokenService
	hub    *ws.Hub
}

func NewWSHandler(coord *services.RoomCoordinator, tokens *services.TokenService, hub *ws.Hub) *WSHandler {
	return &WSHandler{coord: coord, tokens: tokens, hub: hub}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// HandleRoomWebSocket godoc
// @Summary      Attach to a room's realtime channel
// @Description  Carries playback/membership/chat updates downstream and transitions, heartbeats and clock-sync pings upstream
// @Tags         websocket
// @Param        code path string true "Room join code"
// @Param        token query string true "Member token from create/join"
// @Param        version query int false "Last playback version the member holds"
// @Router       /ws/room/{code} [get]
func (h *WSHandler) HandleRoomWebSocket(c *gin.Context) {
	tokenRoomID, memberID, err := h.tokens.ValidateMemberToken(c.Query("token"))
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "invalid token"})
		return
	}

	roomID, err := h.coord.RoomIDByCode(c.Param("code"))
	if err != nil {
		c.JSON(statusFor(err), ErrorResponse{Error: err.Error()})
		return
	}
	if roomID != tokenRoomID {
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "token is for a different room"})
		return
	}

	lastVersion, _ := strconv.ParseUint(c.DefaultQuery("version", "0"), 10, 64)

	// The outbox opens and the catch-up snapshot is taken under one lock
	// acquisition, so no update can fall between them.
	updates, snap, err := h.coord.Attach(roomID, memberID, lastVersion)
	if err != nil {
		c.JSON(statusFor(err), ErrorResponse{Error: err.Error()})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("ws: upgrade error: %v", err)
		h.coord.Unsubscribe(roomID, memberID, updates)
		return
	}

	client := ws.NewClient(roomID, memberID, conn, h.coord, updates)
	if snap != nil {
		if msg, err := protocol.NewMessage(protocol.TypeCatchUp, snap); err == nil {
			client.QueueMessage(msg)
		}
	}

	h.hub.Add(roomID, memberID, client)
	defer h.hub.Remove(roomID, memberID, client)

	client.Run()
}
