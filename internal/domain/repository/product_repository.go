package repository

import (
	"context"

	"unimarket/internal/domain/entity"
)

// ProductRepository is a read-only view of the listing subsystem. The
// availability flag is only written through ReservationRepository's
// transactional accept.
type ProductRepository interface {
	GetByID(ctx context.Context, id string) (*entity.Product, error)
}
