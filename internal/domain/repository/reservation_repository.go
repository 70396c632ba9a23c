package repository

import (
	"context"

	"unimarket/internal/domain/entity"
)

type ReservationRepository interface {
	Create(ctx context.Context, reservation *entity.Reservation) error
	GetByID(ctx context.Context, id string) (*entity.Reservation, error)
	// FindPending returns the pending reservation for a (product, buyer)
	// pair, or a NOT_FOUND error.
	FindPending(ctx context.Context, productID, buyerID string) (*entity.Reservation, error)
	ListByBuyer(ctx context.Context, buyerID string) ([]*entity.Reservation, error)
	ListBySeller(ctx context.Context, sellerID string) ([]*entity.Reservation, error)

	// Transition conditionally moves a reservation from fromStatus to
	// toStatus and stamps the response date. The check and write run in a
	// single storage transaction; a reservation no longer in fromStatus
	// yields a CONFLICT error, so two racing callers get exactly one
	// success.
	Transition(ctx context.Context, id, fromStatus, toStatus string) (*entity.Reservation, error)

	// Accept atomically sets the reservation accepted and the product
	// unavailable. Fails with CONFLICT if the reservation is not pending
	// or the product is no longer available; neither write is applied
	// partially.
	Accept(ctx context.Context, id string) (*entity.Reservation, error)

	// MarkSold moves an accepted reservation to sold and re-affirms the
	// product unavailable.
	MarkSold(ctx context.Context, id string) (*entity.Reservation, error)
}
