package handlers

import (
	"ridepool/internal/realtime"
	"ridepool/internal/utils"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PresenceHandler answers online/offline lookups against the live registry.
type PresenceHandler struct {
	registry *realtime.Registry
}

func NewPresenceHandler(registry *realtime.Registry) *PresenceHandler {
	return &PresenceHandler{registry: registry}
}

func (h *PresenceHandler) GetPresence(c *gin.Context) {
	userID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid user ID")
		return
	}

	utils.SuccessResponse(c, "Presence retrieved", gin.H{
		"user_id": userID.Hex(),
		"online":  h.registry.IsOnline(userID),
	})
}
