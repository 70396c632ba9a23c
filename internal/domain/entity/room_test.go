package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewRoomKeyIsOrderIndependent(t *testing.T) {
	a := NewRoomKey("user-b", "user-a")
	b := NewRoomKey("user-a", "user-b")

	assert.Equal(t, a, b)
	assert.Equal(t, "user-a_user-b", a.PairID())
}

func TestRoomKeyDistinctPairsDistinctKeys(t *testing.T) {
	assert.NotEqual(t, NewRoomKey("u1", "u2").PairID(), NewRoomKey("u1", "u3").PairID())
	assert.NotEqual(t, NewRoomKey("u1", "u2").PairID(), NewRoomKey("u2", "u3").PairID())
}

func TestRoomKeyWithProduct(t *testing.T) {
	key := NewRoomKey("u2", "u1").WithProduct("p9")

	assert.Equal(t, "u1_u2", key.PairID())
	assert.Equal(t, "u1_u2_p9", key.String())

	// The untagged key renders as the plain pair id.
	assert.Equal(t, "u1_u2", NewRoomKey("u1", "u2").String())
}

func TestRoomKeyHasUser(t *testing.T) {
	key := NewRoomKey("u1", "u2")

	assert.True(t, key.HasUser("u1"))
	assert.True(t, key.HasUser("u2"))
	assert.False(t, key.HasUser("u3"))
}

func TestConversationOtherParticipant(t *testing.T) {
	c := &Conversation{Participants: []string{"u1", "u2"}}

	assert.Equal(t, "u2", c.OtherParticipant("u1"))
	assert.Equal(t, "u1", c.OtherParticipant("u2"))
	assert.True(t, c.HasParticipant("u1"))
	assert.False(t, c.HasParticipant("u3"))
}

func TestReservationTerminal(t *testing.T) {
	for status, terminal := range map[string]bool{
		ReservationPending:  false,
		ReservationAccepted: false,
		ReservationRejected: true,
		ReservationCanceled: true,
		ReservationSold:     true,
	} {
		r := &Reservation{Status: status}
		assert.Equal(t, terminal, r.Terminal(), "status %s", status)
	}
}
