package handlers

import (
	"errors"
	"net/http"
	"time"

	"ridepool/internal/models"
	"ridepool/internal/realtime"
	"ridepool/internal/repositories/interfaces"
	"ridepool/internal/services"
	"ridepool/internal/utils"
	"ridepool/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// RideHandler serves the ride HTTP surface. Every mutation that real-time
// watchers care about is pushed into the engine's outbound path after it is
// persisted.
type RideHandler struct {
	rides  interfaces.RideRepository
	chats  services.ChatService
	guard  *realtime.Guard
	engine *realtime.Engine
	log    *logger.Logger
}

func NewRideHandler(rides interfaces.RideRepository, chats services.ChatService, guard *realtime.Guard, engine *realtime.Engine, log *logger.Logger) *RideHandler {
	return &RideHandler{
		rides:  rides,
		chats:  chats,
		guard:  guard,
		engine: engine,
		log:    log,
	}
}

type CreateRideRequest struct {
	Origin      string    `json:"origin" binding:"required"`
	Destination string    `json:"destination" binding:"required"`
	DepartAt    time.Time `json:"depart_at" binding:"required"`
	Seats       int       `json:"seats" binding:"required,min=1,max=8"`
	Notes       string    `json:"notes"`
}

// CreateRide persists a new ride and announces it to the poster's cohort.
func (h *RideHandler) CreateRide(c *gin.Context) {
	var request CreateRideRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		utils.BadRequestResponse(c, "Invalid request: "+err.Error())
		return
	}

	userID, ok := currentUserID(c)
	if !ok {
		utils.UnauthorizedResponse(c)
		return
	}

	ride := &models.Ride{
		PosterID:    userID,
		CohortKey:   c.GetString("cohort_key"),
		Origin:      request.Origin,
		Destination: request.Destination,
		DepartAt:    request.DepartAt,
		Seats:       request.Seats,
		Notes:       request.Notes,
	}

	if err := h.rides.Create(c.Request.Context(), ride); err != nil {
		h.log.WithError(err).Error("Failed to create ride")
		utils.InternalServerErrorResponse(c)
		return
	}

	h.engine.NotifyRideCreated(ride)

	utils.CreatedResponse(c, "Ride created", ride)
}

func (h *RideHandler) GetRide(c *gin.Context) {
	rideID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid ride ID")
		return
	}

	ride, err := h.rides.GetByID(c.Request.Context(), rideID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			utils.NotFoundResponse(c, "Ride")
			return
		}
		h.log.WithError(err).Error("Failed to get ride")
		utils.InternalServerErrorResponse(c)
		return
	}

	utils.SuccessResponse(c, "Ride retrieved", ride)
}

// ListRides returns the caller's cohort rides, paginated.
func (h *RideHandler) ListRides(c *gin.Context) {
	params := utils.GetPaginationParams(c)

	rides, total, err := h.rides.GetByCohort(c.Request.Context(), c.GetString("cohort_key"), params)
	if err != nil {
		h.log.WithError(err).Error("Failed to list rides")
		utils.InternalServerErrorResponse(c)
		return
	}

	utils.SuccessResponseWithMeta(c, "Rides retrieved", rides, &utils.Meta{
		Pagination: utils.CreatePaginationMeta(params, total),
		Count:      len(rides),
	})
}

// ListMyRides returns the rides the caller posted, paginated.
func (h *RideHandler) ListMyRides(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		utils.UnauthorizedResponse(c)
		return
	}

	params := utils.GetPaginationParams(c)

	rides, total, err := h.rides.GetByPoster(c.Request.Context(), userID, params)
	if err != nil {
		h.log.WithError(err).Error("Failed to list posted rides")
		utils.InternalServerErrorResponse(c)
		return
	}

	utils.SuccessResponseWithMeta(c, "Rides retrieved", rides, &utils.Meta{
		Pagination: utils.CreatePaginationMeta(params, total),
		Count:      len(rides),
	})
}

// JoinRide adds the caller to the passenger list (or flips a "left" entry
// back to "joined") and fans the update out.
func (h *RideHandler) JoinRide(c *gin.Context) {
	rideID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid ride ID")
		return
	}

	userID, ok := currentUserID(c)
	if !ok {
		utils.UnauthorizedResponse(c)
		return
	}

	ride, err := h.rides.GetByID(c.Request.Context(), rideID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			utils.NotFoundResponse(c, "Ride")
			return
		}
		h.log.WithError(err).Error("Failed to get ride")
		utils.InternalServerErrorResponse(c)
		return
	}

	if ride.PosterID == userID {
		utils.BadRequestResponse(c, "Poster is already part of the ride")
		return
	}
	if !ride.HasJoinedPassenger(userID) && ride.JoinedSeats() >= ride.Seats {
		utils.ErrorResponse(c, http.StatusConflict, "RIDE_FULL", "No seats left on this ride")
		return
	}

	if err := h.rides.AddPassenger(c.Request.Context(), rideID, userID); err != nil {
		h.log.WithError(err).WithRideID(rideID).Error("Failed to join ride")
		utils.InternalServerErrorResponse(c)
		return
	}

	h.engine.NotifyParticipantUpdate(rideID, ride.PosterID, userID, realtime.ActionJoined)

	utils.SuccessResponse(c, "Joined ride", nil)
}

// LeaveRide marks the caller's passenger entry "left" and fans the update
// out. Their chat authorization lapses with the status flip.
func (h *RideHandler) LeaveRide(c *gin.Context) {
	rideID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid ride ID")
		return
	}

	userID, ok := currentUserID(c)
	if !ok {
		utils.UnauthorizedResponse(c)
		return
	}

	ride, err := h.rides.GetByID(c.Request.Context(), rideID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			utils.NotFoundResponse(c, "Ride")
			return
		}
		h.log.WithError(err).Error("Failed to get ride")
		utils.InternalServerErrorResponse(c)
		return
	}

	if err := h.rides.SetPassengerStatus(c.Request.Context(), rideID, userID, models.PassengerStatusLeft); err != nil {
		h.log.WithError(err).WithRideID(rideID).Error("Failed to leave ride")
		utils.InternalServerErrorResponse(c)
		return
	}

	h.engine.NotifyParticipantUpdate(rideID, ride.PosterID, userID, realtime.ActionLeft)

	utils.SuccessResponse(c, "Left ride", nil)
}

// DeleteRide removes a ride and cascades into its chat history. Chat members
// hear ride-deleted before the history disappears.
func (h *RideHandler) DeleteRide(c *gin.Context) {
	rideID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid ride ID")
		return
	}

	userID, ok := currentUserID(c)
	if !ok {
		utils.UnauthorizedResponse(c)
		return
	}

	ride, err := h.rides.GetByID(c.Request.Context(), rideID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			utils.NotFoundResponse(c, "Ride")
			return
		}
		h.log.WithError(err).Error("Failed to get ride")
		utils.InternalServerErrorResponse(c)
		return
	}

	if ride.PosterID != userID {
		utils.ForbiddenResponse(c)
		return
	}

	h.engine.NotifyRideDeleted(rideID)

	if err := h.chats.DeleteAllForRide(c.Request.Context(), rideID); err != nil {
		h.log.WithError(err).WithRideID(rideID).Error("Failed to delete ride chat history")
		utils.InternalServerErrorResponse(c)
		return
	}
	if err := h.rides.Delete(c.Request.Context(), rideID); err != nil {
		h.log.WithError(err).WithRideID(rideID).Error("Failed to delete ride")
		utils.InternalServerErrorResponse(c)
		return
	}

	utils.SuccessResponse(c, "Ride deleted", nil)
}

// GetChatHistory serves paginated scroll-back for a ride's chat. The same
// authorization rule applies as on the socket: poster or joined passenger.
func (h *RideHandler) GetChatHistory(c *gin.Context) {
	rideID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid ride ID")
		return
	}

	userID, ok := currentUserID(c)
	if !ok {
		utils.UnauthorizedResponse(c)
		return
	}

	if err := h.guard.Authorize(c.Request.Context(), userID, rideID); err != nil {
		switch {
		case errors.Is(err, services.ErrRideNotFound):
			utils.NotFoundResponse(c, "Ride")
		case errors.Is(err, services.ErrNotParticipant):
			utils.ForbiddenResponse(c)
		default:
			h.log.WithError(err).Error("Chat history authorization failed")
			utils.InternalServerErrorResponse(c)
		}
		return
	}

	params := utils.GetPaginationParams(c)

	messages, total, err := h.chats.Page(c.Request.Context(), rideID, params)
	if err != nil {
		h.log.WithError(err).WithRideID(rideID).Error("Failed to load chat history")
		utils.InternalServerErrorResponse(c)
		return
	}

	utils.SuccessResponseWithMeta(c, "Messages retrieved", messages, &utils.Meta{
		Pagination: utils.CreatePaginationMeta(params, total),
		Count:      len(messages),
	})
}

func currentUserID(c *gin.Context) (primitive.ObjectID, bool) {
	value, exists := c.Get("user_id")
	if !exists {
		return primitive.NilObjectID, false
	}

	userID, ok := value.(primitive.ObjectID)
	return userID, ok
}
