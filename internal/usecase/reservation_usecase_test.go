package usecase

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"unimarket/internal/domain/entity"
	"unimarket/pkg/errors"
)

type fakeReservationRepo struct {
	mu           sync.Mutex
	reservations map[string]*entity.Reservation
	products     *fakeProductRepo
	seq          int
}

func newFakeReservationRepo(products *fakeProductRepo) *fakeReservationRepo {
	return &fakeReservationRepo{
		reservations: make(map[string]*entity.Reservation),
		products:     products,
	}
}

func (r *fakeReservationRepo) Create(ctx context.Context, reservation *entity.Reservation) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.seq++
	if reservation.ID == "" {
		reservation.ID = fmt.Sprintf("res-%d", r.seq)
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
	copied := *reservation
	r.reservations[reservation.ID] = &copied
	return nil
}

func (r *fakeReservationRepo) GetByID(ctx context.Context, id string) (*entity.Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	reservation, ok := r.reservations[id]
	if !ok {
		return nil, errors.NotFound("Reservation", nil)
	}
	copied := *reservation
	return &copied, nil
}

func (r *fakeReservationRepo) FindPending(ctx context.Context, productID, buyerID string) (*entity.Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, reservation := range r.reservations {
		if reservation.ProductID == productID && reservation.BuyerID == buyerID && reservation.Status == entity.ReservationPending {
			copied := *reservation
			return &copied, nil
		}
	}
	return nil, errors.NotFound("Pending reservation", nil)
}

func (r *fakeReservationRepo) ListByBuyer(ctx context.Context, buyerID string) ([]*entity.Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result []*entity.Reservation
	for _, reservation := range r.reservations {
		if reservation.BuyerID == buyerID {
			copied := *reservation
			result = append(result, &copied)
		}
	}
	return result, nil
}

func (r *fakeReservationRepo) ListBySeller(ctx context.Context, sellerID string) ([]*entity.Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result []*entity.Reservation
	for _, reservation := range r.reservations {
		if reservation.SellerID == sellerID {
			copied := *reservation
			result = append(result, &copied)
		}
	}
	return result, nil
}

func (r *fakeReservationRepo) Transition(ctx context.Context, id, fromStatus, toStatus string) (*entity.Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	reservation, ok := r.reservations[id]
	if !ok {
		return nil, errors.NotFound("Reservation", nil)
	}
	if reservation.Status != fromStatus {
		return nil, errors.Conflict(fmt.Sprintf("Reservation is %s, not %s", reservation.Status, fromStatus), nil)
	}

	now := time.Now()
	reservation.Status = toStatus
	reservation.ResponseDate = &now
	reservation.UpdatedAt = now

	copied := *reservation
	return &copied, nil
}

func (r *fakeReservationRepo) Accept(ctx context.Context, id string) (*entity.Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	reservation, ok := r.reservations[id]
	if !ok {
		return nil, errors.NotFound("Reservation", nil)
	}
	if reservation.Status != entity.ReservationPending {
		return nil, errors.Conflict("Reservation is no longer pending", nil)
	}

	r.products.mu.Lock()
	product, ok := r.products.products[reservation.ProductID]
	if !ok || !product.Availability {
		r.products.mu.Unlock()
		return nil, errors.Conflict("Product is no longer available", nil)
	}
	product.Availability = false
	r.products.mu.Unlock()

	now := time.Now()
	reservation.Status = entity.ReservationAccepted
	reservation.ResponseDate = &now
	reservation.UpdatedAt = now

	copied := *reservation
	return &copied, nil
}

func (r *fakeReservationRepo) MarkSold(ctx context.Context, id string) (*entity.Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	reservation, ok := r.reservations[id]
	if !ok {
		return nil, errors.NotFound("Reservation", nil)
	}
	if reservation.Status != entity.ReservationAccepted {
		return nil, errors.Conflict("Only accepted reservations can be marked sold", nil)
	}

	now := time.Now()
	reservation.Status = entity.ReservationSold
	reservation.UpdatedAt = now

	copied := *reservation
	return &copied, nil
}

func newReservationFixture(cancelWindowHours int) (*ReservationUseCase, *fakeReservationRepo, *fakeProductRepo, *fakeConversationRepo) {
	conversationRepo := newFakeConversationRepo()
	userRepo := &fakeUserRepo{users: map[string]*entity.User{
		"u1": {ID: "u1", Name: "Ana"},
		"u2": {ID: "u2", Name: "Ben"},
		"u3": {ID: "u3", Name: "Cleo"},
	}}
	productRepo := &fakeProductRepo{products: map[string]*entity.Product{
		"p1": {ID: "p1", SellerID: "u2", Title: "Calculus textbook", Price: 20, Availability: true},
		"p2": {ID: "p2", SellerID: "u2", Title: "Desk lamp", Price: 8, Availability: true},
	}}
	reservationRepo := newFakeReservationRepo(productRepo)

	messaging := NewMessagingUseCase(conversationRepo, userRepo, productRepo, newFakeBroadcaster())
	uc := NewReservationUseCase(reservationRepo, productRepo, userRepo, messaging, cancelWindowHours)

	return uc, reservationRepo, productRepo, conversationRepo
}

func TestRequestReservationCreatesPendingAndNotifiesSeller(t *testing.T) {
	uc, _, _, conversationRepo := newReservationFixture(48)
	ctx := context.Background()

	reservation, err := uc.Request(ctx, "u1", "p1")
	require.NoError(t, err)

	assert.Equal(t, entity.ReservationPending, reservation.Status)
	assert.Equal(t, "u1", reservation.BuyerID)
	assert.Equal(t, "u2", reservation.SellerID, "seller is snapshotted from the product")
	assert.False(t, reservation.RequestDate.IsZero())

	// The seller learns about it through a system message from the buyer.
	messages := conversationRepo.messages["u1_u2"]
	require.Len(t, messages, 1)
	assert.Equal(t, entity.MessageTypeSystem, messages[0].Type)
	assert.Equal(t, "u1", messages[0].SenderID)
	assert.Equal(t, "Reservation requested for Calculus textbook at 20", messages[0].Text)
	assert.Equal(t, "p1", messages[0].ProductID)
}

func TestRequestReservationGuards(t *testing.T) {
	uc, _, productRepo, _ := newReservationFixture(48)
	ctx := context.Background()

	_, err := uc.Request(ctx, "u2", "p1")
	assert.True(t, errors.Is(err, "BAD_REQUEST"), "sellers cannot reserve their own product")

	_, err = uc.Request(ctx, "u1", "missing")
	assert.True(t, errors.Is(err, "NOT_FOUND"))

	productRepo.mu.Lock()
	productRepo.products["p1"].Availability = false
	productRepo.mu.Unlock()

	_, err = uc.Request(ctx, "u1", "p1")
	assert.True(t, errors.Is(err, "CONFLICT"))
}

func TestRequestReservationRejectsDuplicatePending(t *testing.T) {
	uc, _, _, _ := newReservationFixture(48)
	ctx := context.Background()

	_, err := uc.Request(ctx, "u1", "p1")
	require.NoError(t, err)

	_, err = uc.Request(ctx, "u1", "p1")
	assert.True(t, errors.Is(err, "CONFLICT"))

	// A second product is a separate reservation.
	_, err = uc.Request(ctx, "u1", "p2")
	assert.NoError(t, err)
}

func TestConcurrentAcceptHasSingleWinner(t *testing.T) {
	uc, _, productRepo, _ := newReservationFixture(48)
	ctx := context.Background()

	first, err := uc.Request(ctx, "u1", "p1")
	require.NoError(t, err)
	second, err := uc.Request(ctx, "u3", "p1")
	require.NoError(t, err)

	results := make(chan error, 2)
	var wg sync.WaitGroup
	for _, id := range []string{first.ID, second.ID} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := uc.Accept(ctx, "u2", id)
			results <- err
		}(id)
	}
	wg.Wait()
	close(results)

	var wins, conflicts int
	for err := range results {
		if err == nil {
			wins++
		} else if errors.Is(err, "CONFLICT") {
			conflicts++
		}
	}
	assert.Equal(t, 1, wins, "exactly one accept succeeds")
	assert.Equal(t, 1, conflicts)

	product, err := productRepo.GetByID(ctx, "p1")
	require.NoError(t, err)
	assert.False(t, product.Availability)
}

func TestAcceptNotifiesBuyer(t *testing.T) {
	uc, _, _, conversationRepo := newReservationFixture(48)
	ctx := context.Background()

	reservation, err := uc.Request(ctx, "u1", "p1")
	require.NoError(t, err)

	accepted, err := uc.Accept(ctx, "u2", reservation.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.ReservationAccepted, accepted.Status)
	require.NotNil(t, accepted.ResponseDate)

	messages := conversationRepo.messages["u1_u2"]
	require.Len(t, messages, 2)
	assert.Equal(t, "u2", messages[1].SenderID)
	assert.Equal(t, "Your reservation for Calculus textbook was accepted", messages[1].Text)
}

func TestRejectKeepsProductAvailable(t *testing.T) {
	uc, _, productRepo, _ := newReservationFixture(48)
	ctx := context.Background()

	reservation, err := uc.Request(ctx, "u1", "p1")
	require.NoError(t, err)

	rejected, err := uc.Reject(ctx, "u2", reservation.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.ReservationRejected, rejected.Status)

	product, err := productRepo.GetByID(ctx, "p1")
	require.NoError(t, err)
	assert.True(t, product.Availability)

	// Terminal states do not transition again.
	_, err = uc.Reject(ctx, "u2", reservation.ID)
	assert.True(t, errors.Is(err, "CONFLICT"))
}

func TestReservationRoleGuards(t *testing.T) {
	uc, _, _, _ := newReservationFixture(48)
	ctx := context.Background()

	reservation, err := uc.Request(ctx, "u1", "p1")
	require.NoError(t, err)

	// A stranger, and even the buyer, cannot act as the seller.
	_, err = uc.Accept(ctx, "u3", reservation.ID)
	assert.True(t, errors.Is(err, "NOT_FOUND"))
	_, err = uc.Accept(ctx, "u1", reservation.ID)
	assert.True(t, errors.Is(err, "NOT_FOUND"))

	// Only the buyer may cancel.
	_, err = uc.Cancel(ctx, "u2", reservation.ID)
	assert.True(t, errors.Is(err, "NOT_FOUND"))
}

func TestCancelWithinWindow(t *testing.T) {
	uc, reservationRepo, _, _ := newReservationFixture(48)
	ctx := context.Background()

	reservation, err := uc.Request(ctx, "u1", "p1")
	require.NoError(t, err)

	canceled, err := uc.Cancel(ctx, "u1", reservation.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.ReservationCanceled, canceled.Status)

	stored, err := reservationRepo.GetByID(ctx, reservation.ID)
	require.NoError(t, err)
	assert.True(t, stored.Terminal())
}

func TestCancelAfterWindowCloses(t *testing.T) {
	uc, reservationRepo, _, _ := newReservationFixture(48)
	ctx := context.Background()

	reservation, err := uc.Request(ctx, "u1", "p1")
	require.NoError(t, err)

	reservationRepo.mu.Lock()
	reservationRepo.reservations[reservation.ID].RequestDate = time.Now().Add(-72 * time.Hour)
	reservationRepo.mu.Unlock()

	_, err = uc.Cancel(ctx, "u1", reservation.ID)
	assert.True(t, errors.Is(err, "CONFLICT"))
}

func TestCancelWindowDisabled(t *testing.T) {
	uc, reservationRepo, _, _ := newReservationFixture(0)
	ctx := context.Background()

	reservation, err := uc.Request(ctx, "u1", "p1")
	require.NoError(t, err)

	reservationRepo.mu.Lock()
	reservationRepo.reservations[reservation.ID].RequestDate = time.Now().Add(-30 * 24 * time.Hour)
	reservationRepo.mu.Unlock()

	_, err = uc.Cancel(ctx, "u1", reservation.ID)
	assert.NoError(t, err)
}

func TestMarkSoldRequiresAcceptedState(t *testing.T) {
	uc, _, _, _ := newReservationFixture(48)
	ctx := context.Background()

	reservation, err := uc.Request(ctx, "u1", "p1")
	require.NoError(t, err)

	_, err = uc.MarkSold(ctx, "u2", reservation.ID)
	assert.True(t, errors.Is(err, "CONFLICT"), "pending reservations cannot be sold directly")

	_, err = uc.Accept(ctx, "u2", reservation.ID)
	require.NoError(t, err)

	sold, err := uc.MarkSold(ctx, "u2", reservation.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.ReservationSold, sold.Status)
}

func TestReservationListsAttachCounterparties(t *testing.T) {
	uc, _, _, _ := newReservationFixture(48)
	ctx := context.Background()

	_, err := uc.Request(ctx, "u1", "p1")
	require.NoError(t, err)
	_, err = uc.Request(ctx, "u3", "p2")
	require.NoError(t, err)

	mine, err := uc.ListForBuyer(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "Calculus textbook", mine[0].Product.Title)
	assert.Equal(t, "Ben", mine[0].Seller.Name)
	assert.Nil(t, mine[0].Buyer)

	incoming, err := uc.ListForSeller(ctx, "u2")
	require.NoError(t, err)
	require.Len(t, incoming, 2)
	for _, reservation := range incoming {
		assert.NotNil(t, reservation.Buyer)
		assert.Nil(t, reservation.Seller)
	}
}
