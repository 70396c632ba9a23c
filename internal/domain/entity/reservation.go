package entity

import "time"

const (
	ReservationPending  = "pending"
	ReservationAccepted = "accepted"
	ReservationRejected = "rejected"
	ReservationCanceled = "canceled"
	ReservationSold     = "sold"
)

type Reservation struct {
	ID        string `json:"id" firestore:"id"`
	ProductID string `json:"product_id" firestore:"productId"`
	BuyerID   string `json:"buyer_id" firestore:"buyerId"`
	// SellerID is snapshotted from the product at request time so a later
	// ownership change cannot alter who may respond to an in-flight request.
	SellerID     string     `json:"seller_id" firestore:"sellerId"`
	Status       string     `json:"status" firestore:"status"`
	RequestDate  time.Time  `json:"request_date" firestore:"requestDate"`
	ResponseDate *time.Time `json:"response_date,omitempty" firestore:"responseDate,omitempty"`
	CreatedAt    time.Time  `json:"created_at" firestore:"createdAt"`
	UpdatedAt    time.Time  `json:"updated_at" firestore:"updatedAt"`
}

// Terminal reports whether no further transition is allowed, except that
// an accepted reservation may still be marked sold.
func (r *Reservation) Terminal() bool {
	switch r.Status {
	case ReservationRejected, ReservationCanceled, ReservationSold:
		return true
	}
	return false
}
