package repository

import (
	"context"

	"unimarket/internal/domain/entity"
)

// UserRepository is a read-only view of the account subsystem.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*entity.User, error)
}
