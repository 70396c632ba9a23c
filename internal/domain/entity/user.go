package entity

import "time"

type User struct {
	ID        string    `json:"id" firestore:"id"`
	Name      string    `json:"name" firestore:"name"`
	Email     string    `json:"email" firestore:"email"`
	Phone     string    `json:"phone,omitempty" firestore:"phone,omitempty"`
	CreatedAt time.Time `json:"created_at" firestore:"createdAt"`
}
