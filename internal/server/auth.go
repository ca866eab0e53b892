package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/mux"
	co "github.com/ilnaes/ownpad/internal/common"
	"github.com/oklog/ulid/v2"
)

var ErrActorReused = errors.New("actor already connected")

// Claims bind a freshly minted actor to one room. The actor is the
// token subject.
type Claims struct {
	Room string `json:"room"`
	jwt.RegisteredClaims
}

// Ticket is returned by the join endpoint.
type Ticket struct {
	ActorId co.ActorId `json:"actorId"`
	Token   string     `json:"token"`
}

// tickets remembers which actors have connected so that a ticket is good
// for one connection only
type tickets struct {
	secret []byte
	ttl    time.Duration

	used map[co.ActorId]time.Time // actor -> ticket expiry
	mu   sync.Mutex
}

func newTickets(secret []byte, ttl time.Duration) *tickets {
	return &tickets{
		secret: secret,
		ttl:    ttl,
		used:   make(map[co.ActorId]time.Time),
	}
}

// room -> ticket for a new actor
func (t *tickets) sign(room string) (Ticket, error) {
	actor := co.ActorId(ulid.Make().String())
	now := time.Now()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Room: room,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   string(actor),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	})
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return Ticket{}, err
	}

	return Ticket{ActorId: actor, Token: signed}, nil
}

// token -> actor, checking signature, expiry, room and reuse
func (t *tickets) redeem(token, room string) (co.ActorId, error) {
	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(_ *jwt.Token) (interface{}, error) {
		return t.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", err
	}
	if !parsed.Valid || claims.Subject == "" || claims.ExpiresAt == nil {
		return "", fmt.Errorf("invalid ticket")
	}
	if claims.Room != room {
		return "", ErrRoomMismatch
	}

	actor := co.ActorId(claims.Subject)

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.used[actor]; ok {
		return "", ErrActorReused
	}
	t.used[actor] = claims.ExpiresAt.Time
	return actor, nil
}

// forgets actors whose tickets have expired, they cannot come back anyway
func (t *tickets) prune(now time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := 0
	for actor, exp := range t.used {
		if now.After(exp) {
			delete(t.used, actor)
			n++
		}
	}
	return n
}

func (s *Server) join(w http.ResponseWriter, r *http.Request) {
	room := mux.Vars(r)["room"]

	ticket, err := s.tickets.sign(room)
	if err != nil {
		http.Error(w, "Could not sign ticket", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(ticket)
}
