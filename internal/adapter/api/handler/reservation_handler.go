package handler

import (
	"github.com/labstack/echo/v4"

	"unimarket/internal/usecase"
	"unimarket/pkg/response"
)

type ReservationHandler struct {
	reservationUseCase *usecase.ReservationUseCase
}

func NewReservationHandler(reservationUseCase *usecase.ReservationUseCase) *ReservationHandler {
	return &ReservationHandler{
		reservationUseCase: reservationUseCase,
	}
}

// RequestReservation creates a pending reservation for the product on
// behalf of the authenticated buyer.
func (h *ReservationHandler) RequestReservation(c echo.Context) error {
	productID := c.Param("productId")
	userID := c.Get("uid").(string)

	reservation, err := h.reservationUseCase.Request(c.Request().Context(), userID, productID)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Created(c, reservation)
}

func (h *ReservationHandler) ListBuyerReservations(c echo.Context) error {
	userID := c.Get("uid").(string)

	reservations, err := h.reservationUseCase.ListForBuyer(c.Request().Context(), userID)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, reservations)
}

func (h *ReservationHandler) ListSellerReservations(c echo.Context) error {
	userID := c.Get("uid").(string)

	reservations, err := h.reservationUseCase.ListForSeller(c.Request().Context(), userID)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, reservations)
}

func (h *ReservationHandler) AcceptReservation(c echo.Context) error {
	reservationID := c.Param("id")
	userID := c.Get("uid").(string)

	reservation, err := h.reservationUseCase.Accept(c.Request().Context(), userID, reservationID)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, reservation)
}

func (h *ReservationHandler) RejectReservation(c echo.Context) error {
	reservationID := c.Param("id")
	userID := c.Get("uid").(string)

	reservation, err := h.reservationUseCase.Reject(c.Request().Context(), userID, reservationID)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, reservation)
}

func (h *ReservationHandler) CancelReservation(c echo.Context) error {
	reservationID := c.Param("id")
	userID := c.Get("uid").(string)

	reservation, err := h.reservationUseCase.Cancel(c.Request().Context(), userID, reservationID)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, reservation)
}

func (h *ReservationHandler) MarkSold(c echo.Context) error {
	reservationID := c.Param("id")
	userID := c.Get("uid").(string)

	reservation, err := h.reservationUseCase.MarkSold(c.Request().Context(), userID, reservationID)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, reservation)
}
