package entity

import "time"

// Product is owned by the listing subsystem; the messaging and reservation
// core only reads it, apart from the availability flag which is flipped by
// a successful reservation accept.
type Product struct {
	ID           string    `json:"id" firestore:"id"`
	SellerID     string    `json:"seller_id" firestore:"sellerId"`
	Title        string    `json:"title" firestore:"title"`
	Description  string    `json:"description,omitempty" firestore:"description,omitempty"`
	Price        float64   `json:"price" firestore:"price"`
	Images       []string  `json:"images,omitempty" firestore:"images,omitempty"`
	Availability bool      `json:"availability" firestore:"availability"`
	CreatedAt    time.Time `json:"created_at" firestore:"createdAt"`
	UpdatedAt    time.Time `json:"updated_at" firestore:"updatedAt"`
}
