package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wireplan-server/internal/proto"
	"github.com/vovakirdan/wireplan-server/internal/service/rounds"
	"github.com/vovakirdan/wireplan-server/internal/store"
)

// RoundLister serves the round archive.
type RoundLister interface {
	List(ctx context.Context, limit int, beforeID *int64) ([]*store.Round, error)
}

// APIHandlers provides HTTP handlers for REST API endpoints.
type APIHandlers struct {
	hub    Hub
	rounds RoundLister
	log    *zerolog.Logger
}

// NewAPIHandlers creates a new API handlers instance.
func NewAPIHandlers(hub Hub, rounds RoundLister, logger *zerolog.Logger) *APIHandlers {
	return &APIHandlers{
		hub:    hub,
		rounds: rounds,
		log:    logger,
	}
}

// ErrorResponse represents an error response body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// RoomsResponse lists the lobby.
type RoomsResponse struct {
	Rooms []proto.Room `json:"rooms"`
}

// RoundResponse is one archived round.
type RoundResponse struct {
	ID         int64            `json:"id"`
	RoomID     string           `json:"roomId"`
	Round      int              `json:"round"`
	RevealedAt time.Time        `json:"revealedAt"`
	Estimates  []proto.Estimate `json:"estimates"`
}

// RoundsResponse lists archived rounds, newest first.
type RoundsResponse struct {
	Rounds []RoundResponse `json:"rounds"`
}

// ListRooms returns a snapshot of every live room.
// GET /api/rooms
func (h *APIHandlers) ListRooms(c *gin.Context) {
	views, err := h.hub.Rooms(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("failed to list rooms")
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "hub unavailable"})
		return
	}
	c.JSON(http.StatusOK, RoomsResponse{Rooms: roomsOut(views)})
}

// ListRounds returns archived revealed rounds.
// GET /api/rounds?limit=20&before=123
func (h *APIHandlers) ListRounds(c *gin.Context) {
	if h.rounds == nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "round archive disabled"})
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid limit"})
			return
		}
		limit = n
	}
	var beforeID *int64
	if raw := c.Query("before"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid before id"})
			return
		}
		beforeID = &id
	}

	list, err := h.rounds.List(c.Request.Context(), limit, beforeID)
	if err != nil {
		if errors.Is(err, rounds.ErrInvalidLimit) {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid limit"})
			return
		}
		h.log.Error().Err(err).Msg("failed to list rounds")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	resp := RoundsResponse{Rounds: make([]RoundResponse, 0, len(list))}
	for _, r := range list {
		item := RoundResponse{
			ID:         r.ID,
			RoomID:     r.RoomID,
			Round:      r.Number,
			RevealedAt: r.RevealedAt,
			Estimates:  make([]proto.Estimate, 0, len(r.Estimates)),
		}
		for _, e := range r.Estimates {
			item.Estimates = append(item.Estimates, proto.Estimate{ID: e.ParticipantID, Name: e.Name, Value: e.Value})
		}
		resp.Rounds = append(resp.Rounds, item)
	}
	c.JSON(http.StatusOK, resp)
}
