package handlers

import (
	"errors"
	"net/http"

	"github.com/Cramiac/SyncTunes/internal/models"
	"github.com/Cramiac/SyncTunes/internal/playback"
	"github.com/Cramiac/SyncTunes/internal/services"

	"github.com/gin-gonic/gin"
)

type PlaybackHandler struct {
	coord *services.RoomCoordinator
}

func NewPlaybackHandler(coord *services.RoomCoordinator) *PlaybackHandler {
	return &PlaybackHandler{coord: coord}
}

type TransitionRequest struct {
	Transition playback.Transition `json:"transition" binding:"required"`
	Version    *uint64             `json:"version,omitempty"`
}

type EnqueueRequest struct {
	Track models.TrackRef `json:"track" binding:"required"`
}

type TransitionResponse struct {
	Accepted bool                 `json:"accepted"`
	Reason   string               `json:"reason,omitempty"`
	Playback models.PlaybackState `json:"playback"`
}

// Transition godoc
// @Summary      Propose a playback transition
// @Description  Any member may propose play/pause/seek/load/advance; stale proposals are dropped, not errors
// @Tags         playback
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        request body TransitionRequest true "Transition and optional base version"
// @Success      200 {object} TransitionResponse
// @Router       /api/v1/rooms/transition [post]
func (h *PlaybackHandler) Transition(c *gin.Context) {
	roomID := c.GetString("room_id")
	memberID := c.GetString("member_id")

	var req TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	var base uint64
	check := req.Version != nil
	if check {
		base = *req.Version
	}

	st, err := h.coord.ProposeTransition(roomID, memberID, req.Transition, base, check)
	if err != nil {
		if errors.Is(err, services.ErrStaleTransition) {
			// Superseded concurrently; the caller corrects from the
			// rebroadcast state without a user-visible failure.
			c.JSON(http.StatusOK, TransitionResponse{Accepted: false, Reason: "stale", Playback: st})
			return
		}
		if errors.Is(err, services.ErrRoomNotFound) || errors.Is(err, services.ErrRoomClosed) || errors.Is(err, services.ErrMemberNotFound) {
			c.JSON(statusFor(err), ErrorResponse{Error: err.Error()})
			return
		}
		c.JSON(http.StatusOK, TransitionResponse{Accepted: false, Reason: err.Error(), Playback: st})
		return
	}

	c.JSON(http.StatusOK, TransitionResponse{Accepted: true, Playback: st})
}

// Enqueue godoc
// @Summary      Append a track to the room queue
// @Tags         playback
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        request body EnqueueRequest true "Track reference"
// @Success      200 {object} map[string]interface{}
// @Router       /api/v1/rooms/queue [post]
func (h *PlaybackHandler) Enqueue(c *gin.Context) {
	roomID := c.GetString("room_id")
	memberID := c.GetString("member_id")

	var req EnqueueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	queue, err := h.coord.EnqueueTrack(roomID, memberID, req.Track)
	if err != nil {
		c.JSON(statusFor(err), ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"queue": queue})
}

// ClearQueue godoc
// @Summary      Clear the room queue (host only)
// @Tags         playback
// @Security     BearerAuth
// @Success      200 {object} MessageResponse
// @Failure      403 {object} ErrorResponse
// @Router       /api/v1/rooms/queue [delete]
func (h *PlaybackHandler) ClearQueue(c *gin.Context) {
	roomID := c.GetString("room_id")
	memberID := c.GetString("member_id")

	if err := h.coord.ClearQueue(roomID, memberID); err != nil {
		c.JSON(statusFor(err), ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "queue cleared"})
}
