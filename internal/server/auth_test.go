package server

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func TestTicketRedeem(t *testing.T) {
	tk := newTickets([]byte("secret"), time.Minute)

	ticket, err := tk.sign("room")
	require.NoError(t, err)

	actor, err := tk.redeem(ticket.Token, "room")
	require.NoError(t, err)
	require.Equal(t, ticket.ActorId, actor)

	_, err = tk.redeem(ticket.Token, "room")
	require.ErrorIs(t, err, ErrActorReused)
}

func TestTicketActorsUnique(t *testing.T) {
	tk := newTickets([]byte("secret"), time.Minute)

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		ticket, err := tk.sign("room")
		require.NoError(t, err)
		require.False(t, seen[string(ticket.ActorId)])
		seen[string(ticket.ActorId)] = true
	}
}

func TestTicketRejected(t *testing.T) {
	tk := newTickets([]byte("secret"), time.Minute)
	ticket, err := tk.sign("room")
	require.NoError(t, err)

	_, err = tk.redeem(ticket.Token, "other")
	require.ErrorIs(t, err, ErrRoomMismatch)

	forged := newTickets([]byte("not the secret"), time.Minute)
	_, err = forged.redeem(ticket.Token, "room")
	require.ErrorIs(t, err, jwt.ErrTokenSignatureInvalid)

	expired := newTickets([]byte("secret"), -time.Second)
	ticket, err = expired.sign("room")
	require.NoError(t, err)
	_, err = expired.redeem(ticket.Token, "room")
	require.ErrorIs(t, err, jwt.ErrTokenExpired)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{Room: "room"})
	signed, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = tk.redeem(signed, "room")
	require.Error(t, err)
}

func TestTicketPrune(t *testing.T) {
	tk := newTickets([]byte("secret"), time.Minute)
	ticket, err := tk.sign("room")
	require.NoError(t, err)
	_, err = tk.redeem(ticket.Token, "room")
	require.NoError(t, err)

	require.Equal(t, 0, tk.prune(time.Now()))
	require.Equal(t, 1, tk.prune(time.Now().Add(2*time.Minute)))
	require.Empty(t, tk.used)
}
