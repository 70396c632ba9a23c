package router

import (
	"github.com/labstack/echo/v4"

	"unimarket/internal/adapter/api/handler"
	"unimarket/internal/adapter/api/middleware"
)

func SetupReservationRouter(e *echo.Echo, reservationHandler *handler.ReservationHandler, authMiddleware *middleware.AuthMiddleware) {
	reservations := e.Group("/v1/reservations")
	reservations.Use(authMiddleware.Authenticate)

	reservations.POST("/request/:productId", reservationHandler.RequestReservation)
	reservations.GET("/buyer", reservationHandler.ListBuyerReservations)
	reservations.GET("/seller", reservationHandler.ListSellerReservations)

	// Seller decisions and buyer cancellation
	reservations.PUT("/accept/:id", reservationHandler.AcceptReservation)
	reservations.PUT("/reject/:id", reservationHandler.RejectReservation)
	reservations.PUT("/cancel/:id", reservationHandler.CancelReservation)
	reservations.PUT("/sold/:id", reservationHandler.MarkSold)
}
