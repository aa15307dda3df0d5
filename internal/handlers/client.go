package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	pkgerrors "github.com/waypointcpa/taskpool-backend/internal/pkg/errors"
	"github.com/waypointcpa/taskpool-backend/internal/services"
	"github.com/waypointcpa/taskpool-backend/internal/types"
)

type ClientHandler struct {
	clientService services.ClientService
}

func NewClientHandler(clientService services.ClientService) *ClientHandler {
	return &ClientHandler{clientService: clientService}
}

type createClientRequest struct {
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	CompanyName string `json:"company_name"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
}

func (ch *ClientHandler) Create(c *gin.Context) {
	var req createClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	client, err := ch.clientService.Create(c.Request.Context(), &types.Client{
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		CompanyName: req.CompanyName,
		Email:       req.Email,
		Phone:       req.Phone,
	})
	if err != nil {
		if errors.Is(err, pkgerrors.ErrInvalidArgument) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"client": client})
}

func (ch *ClientHandler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	clients, err := ch.clientService.List(c.Request.Context(), limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"clients": clients})
}

type verifyMatchRequest struct {
	ClientID string `json:"client_id" binding:"required"`
}

// VerifyMatch records a staff confirmation of which client an inbound item
// belongs to, overriding whatever the matcher computed.
func (ch *ClientHandler) VerifyMatch(c *gin.Context) {
	matchID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req verifyMatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	clientID, err := uuid.Parse(req.ClientID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid client_id"})
		return
	}
	match, err := ch.clientService.VerifyMatch(c.Request.Context(), matchID, clientID)
	if err != nil {
		switch {
		case errors.Is(err, pkgerrors.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "match or client not found"})
		case errors.Is(err, pkgerrors.ErrUnauthorized):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"match": match})
}
