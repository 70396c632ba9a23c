package repository

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"unimarket/internal/domain/entity"
	"unimarket/internal/domain/repository"
	"unimarket/pkg/errors"
	"unimarket/pkg/logger"
)

type firestoreReservationRepository struct {
	client *firestore.Client
}

func NewFirestoreReservationRepository(client *firestore.Client) repository.ReservationRepository {
	return &firestoreReservationRepository{
		client: client,
	}
}

func (r *firestoreReservationRepository) Create(ctx context.Context, reservation *entity.Reservation) error {
	if reservation.ID == "" {
		reservation.ID = uuid.New().String()
	}

	now := time.Now()
	reservation.CreatedAt = now
	reservation.UpdatedAt = now
	if reservation.RequestDate.IsZero() {
		reservation.RequestDate = now
	}
	if reservation.Status == "" {
		reservation.Status = entity.ReservationPending
	}

	_, err := r.client.Collection("reservations").Doc(reservation.ID).Create(ctx, reservation)
	if err != nil {
		return errors.Internal("Failed to create reservation", err)
	}

	return nil
}

func (r *firestoreReservationRepository) GetByID(ctx context.Context, id string) (*entity.Reservation, error) {
	doc, err := r.client.Collection("reservations").Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, errors.NotFound("Reservation", err)
		}
		return nil, errors.Internal("Failed to get reservation", err)
	}

	var reservation entity.Reservation
	if err := doc.DataTo(&reservation); err != nil {
		return nil, errors.Internal("Failed to parse reservation data", err)
	}
	reservation.ID = doc.Ref.ID

	return &reservation, nil
}

func (r *firestoreReservationRepository) FindPending(ctx context.Context, productID, buyerID string) (*entity.Reservation, error) {
	docs, err := r.client.Collection("reservations").
		Where("productId", "==", productID).
		Where("buyerId", "==", buyerID).
		Where("status", "==", entity.ReservationPending).
		Limit(1).Documents(ctx).GetAll()
	if err != nil {
		return nil, errors.Internal("Failed to query pending reservation", err)
	}
	if len(docs) == 0 {
		return nil, errors.NotFound("Pending reservation", nil)
	}

	var reservation entity.Reservation
	if err := docs[0].DataTo(&reservation); err != nil {
		return nil, errors.Internal("Failed to parse reservation data", err)
	}
	reservation.ID = docs[0].Ref.ID

	return &reservation, nil
}

func (r *firestoreReservationRepository) ListByBuyer(ctx context.Context, buyerID string) ([]*entity.Reservation, error) {
	return r.list(ctx, "buyerId", buyerID)
}

func (r *firestoreReservationRepository) ListBySeller(ctx context.Context, sellerID string) ([]*entity.Reservation, error) {
	return r.list(ctx, "sellerId", sellerID)
}

func (r *firestoreReservationRepository) list(ctx context.Context, field, value string) ([]*entity.Reservation, error) {
	docs, err := r.client.Collection("reservations").Where(field, "==", value).Documents(ctx).GetAll()
	if err != nil {
		logger.Error("Firestore error while listing reservations for %s=%s: %v", field, value, err)
		return nil, errors.Internal("Failed to list reservations", err)
	}

	var reservations []*entity.Reservation
	for _, doc := range docs {
		var reservation entity.Reservation
		if err := doc.DataTo(&reservation); err != nil {
			logger.Warn("Skipping malformed reservation %s: %v", doc.Ref.ID, err)
			continue
		}
		reservation.ID = doc.Ref.ID
		reservations = append(reservations, &reservation)
	}

	return reservations, nil
}

// Transition performs a conditional status move inside a transaction so
// that two racing callers get exactly one success.
func (r *firestoreReservationRepository) Transition(ctx context.Context, id, fromStatus, toStatus string) (*entity.Reservation, error) {
	var updated entity.Reservation

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		docRef := r.client.Collection("reservations").Doc(id)
		doc, err := tx.Get(docRef)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return errors.NotFound("Reservation", err)
			}
			return err
		}

		var reservation entity.Reservation
		if err := doc.DataTo(&reservation); err != nil {
			return err
		}
		reservation.ID = doc.Ref.ID

		if reservation.Status != fromStatus {
			return errors.Conflict("Reservation is not "+fromStatus, nil)
		}

		now := time.Now()
		reservation.Status = toStatus
		reservation.ResponseDate = &now
		reservation.UpdatedAt = now

		updated = reservation
		return tx.Set(docRef, reservation)
	})
	if err != nil {
		if appErr, ok := err.(*errors.AppError); ok {
			return nil, appErr
		}
		return nil, errors.Internal("Failed to transition reservation", err)
	}

	return &updated, nil
}

// Accept flips the reservation to accepted and the product to unavailable
// as a single unit. The availability check-and-set inside the transaction
// is what prevents two concurrent accepts from both succeeding.
func (r *firestoreReservationRepository) Accept(ctx context.Context, id string) (*entity.Reservation, error) {
	var updated entity.Reservation

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		resRef := r.client.Collection("reservations").Doc(id)
		resDoc, err := tx.Get(resRef)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return errors.NotFound("Reservation", err)
			}
			return err
		}

		var reservation entity.Reservation
		if err := resDoc.DataTo(&reservation); err != nil {
			return err
		}
		reservation.ID = resDoc.Ref.ID

		if reservation.Status != entity.ReservationPending {
			return errors.Conflict("Reservation is not pending", nil)
		}

		prodRef := r.client.Collection("products").Doc(reservation.ProductID)
		prodDoc, err := tx.Get(prodRef)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return errors.NotFound("Product", err)
			}
			return err
		}

		var product entity.Product
		if err := prodDoc.DataTo(&product); err != nil {
			return err
		}
		if !product.Availability {
			return errors.Conflict("Product is no longer available", nil)
		}

		now := time.Now()
		product.Availability = false
		product.UpdatedAt = now
		reservation.Status = entity.ReservationAccepted
		reservation.ResponseDate = &now
		reservation.UpdatedAt = now

		if err := tx.Set(prodRef, product); err != nil {
			return err
		}

		updated = reservation
		return tx.Set(resRef, reservation)
	})
	if err != nil {
		if appErr, ok := err.(*errors.AppError); ok {
			return nil, appErr
		}
		return nil, errors.Internal("Failed to accept reservation", err)
	}

	return &updated, nil
}

func (r *firestoreReservationRepository) MarkSold(ctx context.Context, id string) (*entity.Reservation, error) {
	var updated entity.Reservation

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		resRef := r.client.Collection("reservations").Doc(id)
		resDoc, err := tx.Get(resRef)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return errors.NotFound("Reservation", err)
			}
			return err
		}

		var reservation entity.Reservation
		if err := resDoc.DataTo(&reservation); err != nil {
			return err
		}
		reservation.ID = resDoc.Ref.ID

		if reservation.Status != entity.ReservationAccepted {
			return errors.Conflict("Reservation is not accepted", nil)
		}

		now := time.Now()
		reservation.Status = entity.ReservationSold
		reservation.ResponseDate = &now
		reservation.UpdatedAt = now

		// Re-affirm the product is off the market.
		prodRef := r.client.Collection("products").Doc(reservation.ProductID)
		if err := tx.Update(prodRef, []firestore.Update{
			{Path: "availability", Value: false},
			{Path: "updatedAt", Value: now},
		}); err != nil {
			return err
		}

		updated = reservation
		return tx.Set(resRef, reservation)
	})
	if err != nil {
		if appErr, ok := err.(*errors.AppError); ok {
			return nil, appErr
		}
		return nil, errors.Internal("Failed to mark reservation sold", err)
	}

	return &updated, nil
}
