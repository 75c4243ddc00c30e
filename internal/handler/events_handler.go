package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"inputfeed/internal/input"
	"inputfeed/internal/repository"
	"inputfeed/internal/transport/httpdto"
	"inputfeed/internal/websocket"

	"github.com/gin-gonic/gin"
)

type EventsHandler struct {
	repo  repository.EventRepository
	authz *websocket.Authorizer
}

func NewEventsHandler(repo repository.EventRepository, authz *websocket.Authorizer) *EventsHandler {
	return &EventsHandler{repo: repo, authz: authz}
}

// List returns recently logged records, newest first, in the consumer shape.
func (h *EventsHandler) List(c *gin.Context) {
	claims, err := h.authz.Authenticate(c.Request)
	if err != nil {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	tag := c.Query("type")
	if tag != "" && !input.Tag(tag).Known() {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("unknown event type", "INVALID_TYPES"))
		return
	}
	scope := tag
	if scope == "" {
		scope = websocket.AllTypes
	}
	if !claims.Allows(scope) {
		c.JSON(http.StatusForbidden, httpdto.NewErrorResponse("event type not allowed", "FORBIDDEN"))
		return
	}

	limit, _ := strconv.Atoi(c.Query("limit"))
	if limit <= 0 {
		limit = 100
	}

	rows, err := h.repo.Recent(c.Request.Context(), tag, limit)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, httpdto.NewErrorResponse("failed to load events", "INTERNAL_ERROR"))
		return
	}

	events := make([]json.RawMessage, 0, len(rows))
	for _, row := range rows {
		events = append(events, row.Payload)
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.EventsResponse{
		Events: events,
		Count:  len(events),
	}))
}
