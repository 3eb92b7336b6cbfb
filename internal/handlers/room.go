package handlers

import (
	"net/http"
	"strconv"

	"github.com/Cramiac/SyncTunes/internal/services"

	"github.com/gin-gonic/gin"
)

type RoomHandler struct {
	coord    *services.RoomCoordinator
	tokens   *services.TokenService
	archiver services.Archiver
}

func NewRoomHandler(coord *services.RoomCoordinator, tokens *services.TokenService, archiver services.Archiver) *RoomHandler {
	return &RoomHandler{coord: coord, tokens: tokens, archiver: archiver}
}

type CreateRoomRequest struct {
	DisplayName string `json:"display_name" binding:"required,min=1,max=100"`
}

type JoinRoomRequest struct {
	Code        string `json:"code" binding:"required,len=6"`
	DisplayName string `json:"display_name" binding:"required,min=1,max=100"`
}

type KickRequest struct {
	MemberID string `json:"member_id" binding:"required"`
}

// CreateRoom godoc
// @Summary      Create a listening room
// @Description  Creates a room with a shareable join code; the creator becomes host
// @Tags         rooms
// @Accept       json
// @Produce      json
// @Param        request body CreateRoomRequest true "Host display name"
// @Success      201 {object} map[string]interface{}
// @Router       /api/v1/rooms [post]
func (h *RoomHandler) CreateRoom(c *gin.Context) {
	var req CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	snap, member, err := h.coord.CreateRoom(req.DisplayName)
	if err != nil {
		c.JSON(statusFor(err), ErrorResponse{Error: err.Error()})
		return
	}

	token, err := h.tokens.IssueMemberToken(snap.Room.ID, member.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to issue token"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"room":     snap.Room,
		"members":  snap.Members,
		"playback": snap.Playback,
		"queue":    snap.Queue,
		"member":   snap.Members[0],
		"token":    token,
	})
}

// Join godoc
// @Summary      Join a room by code
// @Tags         rooms
// @Accept       json
// @Produce      json
// @Param        request body JoinRoomRequest true "Join code and display name"
// @Success      200 {object} map[string]interface{}
// @Failure      404 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Router       /api/v1/rooms/join [post]
func (h *RoomHandler) Join(c *gin.Context) {
	var req JoinRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	snap, member, err := h.coord.JoinRoom(req.Code, req.DisplayName)
	if err != nil {
		c.JSON(statusFor(err), ErrorResponse{Error: err.Error()})
		return
	}

	token, err := h.tokens.IssueMemberToken(snap.Room.ID, member.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to issue token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"room":     snap.Room,
		"members":  snap.Members,
		"playback": snap.Playback,
		"queue":    snap.Queue,
		"member":   member,
		"token":    token,
	})
}

// Leave godoc
// @Summary      Leave the current room
// @Tags         rooms
// @Security     BearerAuth
// @Success      200 {object} MessageResponse
// @Router       /api/v1/rooms/leave [post]
func (h *RoomHandler) Leave(c *gin.Context) {
	roomID := c.GetString("room_id")
	memberID := c.GetString("member_id")

	if err := h.coord.LeaveRoom(roomID, memberID); err != nil {
		c.JSON(statusFor(err), ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "left room"})
}

// GetState godoc
// @Summary      Current room snapshot for the calling member
// @Tags         rooms
// @Security     BearerAuth
// @Success      200 {object} map[string]interface{}
// @Router       /api/v1/rooms/state [get]
func (h *RoomHandler) GetState(c *gin.Context) {
	roomID := c.GetString("room_id")

	snap, err := h.coord.Snapshot(roomID)
	if err != nil {
		c.JSON(statusFor(err), ErrorResponse{Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"room":     snap.Room,
		"members":  snap.Members,
		"playback": snap.Playback,
		"queue":    snap.Queue,
	})
}

// Kick godoc
// @Summary      Remove a member from the room (host only)
// @Tags         rooms
// @Security     BearerAuth
// @Param        request body KickRequest true "Member to remove"
// @Success      200 {object} MessageResponse
// @Failure      403 {object} ErrorResponse
// @Router       /api/v1/rooms/kick [post]
func (h *RoomHandler) Kick(c *gin.Context) {
	roomID := c.GetString("room_id")
	memberID := c.GetString("member_id")

	var req KickRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	if err := h.coord.KickMember(roomID, memberID, req.MemberID); err != nil {
		c.JSON(statusFor(err), ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "member removed"})
}

// History godoc
// @Summary      Recently closed rooms
// @Tags         rooms
// @Produce      json
// @Param        limit query int false "Max records" default(20)
// @Success      200 {array} models.RoomRecord
// @Router       /api/v1/rooms/history [get]
func (h *RoomHandler) History(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit <= 0 || limit > 100 {
		limit = 20
	}

	records, err := h.archiver.ListRecent(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, records)
}
