package routes

import (
	"ridepool/internal/handlers"
	"ridepool/internal/middleware"

	"github.com/gin-gonic/gin"
)

// SetupRideRoutes sets up routes for ride and chat history functionality
func SetupRideRoutes(r *gin.RouterGroup, rideHandler *handlers.RideHandler, jwtSecret string) {
	rides := r.Group("/rides")
	rides.Use(middleware.AuthRequired(jwtSecret))
	{
		rides.POST("/", rideHandler.CreateRide)
		rides.GET("/", rideHandler.ListRides)
		rides.GET("/mine", rideHandler.ListMyRides)
		rides.GET("/:id", rideHandler.GetRide)
		rides.POST("/:id/join", rideHandler.JoinRide)
		rides.POST("/:id/leave", rideHandler.LeaveRide)
		rides.DELETE("/:id", rideHandler.DeleteRide)

		rides.GET("/:id/messages", rideHandler.GetChatHistory)
	}
}

// SetupPresenceRoutes sets up routes for presence lookups
func SetupPresenceRoutes(r *gin.RouterGroup, presenceHandler *handlers.PresenceHandler, jwtSecret string) {
	users := r.Group("/users")
	users.Use(middleware.AuthRequired(jwtSecret))
	{
		users.GET("/:id/presence", presenceHandler.GetPresence)
	}
}
