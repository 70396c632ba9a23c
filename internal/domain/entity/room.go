package entity

// RoomKey identifies the conversation between two users, independent of
// argument order. Firebase UIDs are alphanumeric, so the "_" separator can
// never collide with an ID and two distinct pairs always produce distinct
// keys.
type RoomKey struct {
	userLow   string
	userHigh  string
	productID string
}

func NewRoomKey(userA, userB string) RoomKey {
	if userB < userA {
		userA, userB = userB, userA
	}
	return RoomKey{userLow: userA, userHigh: userB}
}

// WithProduct returns a copy of the key tagged with a product, used for
// realtime room names scoped to a listing.
func (k RoomKey) WithProduct(productID string) RoomKey {
	k.productID = productID
	return k
}

// PairID is the canonical identifier for the participant pair. It is used
// as the conversation document ID, which makes pair uniqueness a primary
// key constraint.
func (k RoomKey) PairID() string {
	return k.userLow + "_" + k.userHigh
}

func (k RoomKey) String() string {
	if k.productID == "" {
		return k.PairID()
	}
	return k.PairID() + "_" + k.productID
}

func (k RoomKey) Users() (string, string) {
	return k.userLow, k.userHigh
}

func (k RoomKey) HasUser(userID string) bool {
	return userID == k.userLow || userID == k.userHigh
}
