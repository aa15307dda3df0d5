package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/waypointcpa/taskpool-backend/internal/requestdata"
	"github.com/waypointcpa/taskpool-backend/internal/sse"
)

type EventsHandler struct {
	hub *sse.Hub
}

func NewEventsHandler(hub *sse.Hub) *EventsHandler {
	return &EventsHandler{hub: hub}
}

// Stream holds the connection open and pushes task events as they happen.
func (eh *EventsHandler) Stream(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}

	client := eh.hub.NewClient(rd.UserID)
	defer eh.hub.CloseClient(client)

	eh.hub.ServeHTTP(c.Writer, c.Request, client)
}
