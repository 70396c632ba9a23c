package usecase

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"unimarket/internal/domain/entity"
	"unimarket/internal/domain/repository"
	"unimarket/internal/infrastructure/ratelimit"
	"unimarket/pkg/errors"
	"unimarket/pkg/logger"
)

type ReservationUseCase struct {
	reservationRepo repository.ReservationRepository
	productRepo     repository.ProductRepository
	userRepo        repository.UserRepository
	messaging       *MessagingUseCase
	rateLimiter     *ratelimit.RateLimiter

	// cancelWindow bounds how long after the request a buyer may cancel.
	// Zero means no limit.
	cancelWindow time.Duration
}

func NewReservationUseCase(
	reservationRepo repository.ReservationRepository,
	productRepo repository.ProductRepository,
	userRepo repository.UserRepository,
	messaging *MessagingUseCase,
	cancelWindowHours int,
) *ReservationUseCase {
	return &ReservationUseCase{
		reservationRepo: reservationRepo,
		productRepo:     productRepo,
		userRepo:        userRepo,
		messaging:       messaging,
		rateLimiter:     ratelimit.NewRateLimiter(),
		cancelWindow:    time.Duration(cancelWindowHours) * time.Hour,
	}
}

type ReservationResponse struct {
	*entity.Reservation
	Product *entity.Product `json:"product,omitempty"`
	Buyer   *entity.User    `json:"buyer,omitempty"`
	Seller  *entity.User    `json:"seller,omitempty"`
}

// Request creates a pending reservation for the buyer and notifies the
// seller through the conversation between them. The notification is
// best-effort: a messaging failure is logged but never rolls back the
// reservation.
func (uc *ReservationUseCase) Request(ctx context.Context, buyerID, productID string) (*entity.Reservation, error) {
	allowed, wait := uc.rateLimiter.Allow(buyerID, "reserve")
	if !allowed {
		logger.Warn("Reservation request rate limited: user %s must wait %v", buyerID, wait)
		return nil, errors.TooManyRequests("Too many reservation requests")
	}

	product, err := uc.productRepo.GetByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if product.SellerID == buyerID {
		return nil, errors.BadRequest("You cannot reserve your own product", nil)
	}
	if !product.Availability {
		return nil, errors.Conflict("Product is not available", nil)
	}

	if existing, err := uc.reservationRepo.FindPending(ctx, productID, buyerID); err == nil && existing != nil {
		return nil, errors.Conflict("You already have a pending reservation for this product", nil)
	} else if err != nil && !errors.Is(err, "NOT_FOUND") {
		return nil, err
	}

	reservation := &entity.Reservation{
		ProductID: productID,
		BuyerID:   buyerID,
		SellerID:  product.SellerID,
		Status:    entity.ReservationPending,
	}

	if err := uc.reservationRepo.Create(ctx, reservation); err != nil {
		return nil, err
	}

	text := fmt.Sprintf("Reservation requested for %s at %s", product.Title, formatPrice(product.Price))
	uc.notify(ctx, buyerID, product.SellerID, productID, text)

	return reservation, nil
}

// Accept marks the reservation accepted and takes the product off the
// market in one atomic step; two concurrent accepts resolve to a single
// winner.
func (uc *ReservationUseCase) Accept(ctx context.Context, sellerID, reservationID string) (*entity.Reservation, error) {
	reservation, err := uc.authorize(ctx, reservationID, sellerID, roleSeller)
	if err != nil {
		return nil, err
	}

	accepted, err := uc.reservationRepo.Accept(ctx, reservation.ID)
	if err != nil {
		return nil, err
	}

	uc.notifyProduct(ctx, sellerID, accepted.BuyerID, accepted.ProductID, "Your reservation for %s was accepted")

	return accepted, nil
}

// Reject declines a pending reservation; the product stays on the market.
func (uc *ReservationUseCase) Reject(ctx context.Context, sellerID, reservationID string) (*entity.Reservation, error) {
	reservation, err := uc.authorize(ctx, reservationID, sellerID, roleSeller)
	if err != nil {
		return nil, err
	}

	rejected, err := uc.reservationRepo.Transition(ctx, reservation.ID, entity.ReservationPending, entity.ReservationRejected)
	if err != nil {
		return nil, err
	}

	uc.notifyProduct(ctx, sellerID, rejected.BuyerID, rejected.ProductID, "Your reservation for %s was rejected")

	return rejected, nil
}

// Cancel lets the buyer withdraw a pending reservation, subject to the
// configured cancellation window.
func (uc *ReservationUseCase) Cancel(ctx context.Context, buyerID, reservationID string) (*entity.Reservation, error) {
	reservation, err := uc.authorize(ctx, reservationID, buyerID, roleBuyer)
	if err != nil {
		return nil, err
	}

	if uc.cancelWindow > 0 && time.Since(reservation.RequestDate) > uc.cancelWindow {
		return nil, errors.Conflict(
			fmt.Sprintf("Reservation can no longer be canceled after %d hours", int(uc.cancelWindow.Hours())), nil)
	}

	canceled, err := uc.reservationRepo.Transition(ctx, reservation.ID, entity.ReservationPending, entity.ReservationCanceled)
	if err != nil {
		return nil, err
	}

	uc.notifyProduct(ctx, buyerID, canceled.SellerID, canceled.ProductID, "The reservation for %s was canceled by the buyer")

	return canceled, nil
}

// MarkSold closes out an accepted reservation after the handover.
func (uc *ReservationUseCase) MarkSold(ctx context.Context, sellerID, reservationID string) (*entity.Reservation, error) {
	if _, err := uc.authorize(ctx, reservationID, sellerID, roleSeller); err != nil {
		return nil, err
	}

	return uc.reservationRepo.MarkSold(ctx, reservationID)
}

func (uc *ReservationUseCase) ListForBuyer(ctx context.Context, buyerID string) ([]*ReservationResponse, error) {
	reservations, err := uc.reservationRepo.ListByBuyer(ctx, buyerID)
	if err != nil {
		return nil, err
	}
	return uc.annotate(ctx, reservations, roleBuyer), nil
}

func (uc *ReservationUseCase) ListForSeller(ctx context.Context, sellerID string) ([]*ReservationResponse, error) {
	reservations, err := uc.reservationRepo.ListBySeller(ctx, sellerID)
	if err != nil {
		return nil, err
	}
	return uc.annotate(ctx, reservations, roleSeller), nil
}

type reservationRole int

const (
	roleBuyer reservationRole = iota
	roleSeller
)

// authorize fetches the reservation and verifies the acting user holds the
// required role. A role mismatch reads as NOT_FOUND, matching the lookup
// semantics of "find my reservation with this id".
func (uc *ReservationUseCase) authorize(ctx context.Context, reservationID, userID string, role reservationRole) (*entity.Reservation, error) {
	reservation, err := uc.reservationRepo.GetByID(ctx, reservationID)
	if err != nil {
		return nil, err
	}

	switch role {
	case roleSeller:
		if reservation.SellerID != userID {
			return nil, errors.NotFound("Reservation", nil)
		}
	case roleBuyer:
		if reservation.BuyerID != userID {
			return nil, errors.NotFound("Reservation", nil)
		}
	}

	return reservation, nil
}

func (uc *ReservationUseCase) annotate(ctx context.Context, reservations []*entity.Reservation, viewer reservationRole) []*ReservationResponse {
	var responses []*ReservationResponse
	for _, reservation := range reservations {
		response := &ReservationResponse{Reservation: reservation}

		if product, err := uc.productRepo.GetByID(ctx, reservation.ProductID); err == nil {
			response.Product = product
		} else {
			logger.Warn("Product %s not found for reservation %s: %v", reservation.ProductID, reservation.ID, err)
		}

		// Attach the counterparty profile only; the viewer knows who they are.
		switch viewer {
		case roleBuyer:
			if seller, err := uc.userRepo.GetByID(ctx, reservation.SellerID); err == nil {
				response.Seller = seller
			}
		case roleSeller:
			if buyer, err := uc.userRepo.GetByID(ctx, reservation.BuyerID); err == nil {
				response.Buyer = buyer
			}
		}

		responses = append(responses, response)
	}
	return responses
}

// notifyProduct resolves the product title and sends an automated message
// with it substituted into the format string.
func (uc *ReservationUseCase) notifyProduct(ctx context.Context, senderID, receiverID, productID, format string) {
	title := "the product"
	if product, err := uc.productRepo.GetByID(ctx, productID); err == nil {
		title = product.Title
	}
	uc.notify(ctx, senderID, receiverID, productID, fmt.Sprintf(format, title))
}

func (uc *ReservationUseCase) notify(ctx context.Context, senderID, receiverID, productID, text string) {
	if _, err := uc.messaging.SendAutomatedMessage(ctx, senderID, receiverID, productID, text); err != nil {
		logger.Warn("Failed to send reservation notification from %s to %s: %v", senderID, receiverID, err)
	}
}

func formatPrice(price float64) string {
	return strconv.FormatFloat(price, 'f', -1, 64)
}
