package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/golang/glog"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	co "github.com/ilnaes/ownpad/internal/common"
	"github.com/ilnaes/ownpad/internal/config"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

type Server struct {
	cfg     *config.Config
	rooms   *Registry
	tickets *tickets
	policy  co.Policy
}

func NewServer(cfg *config.Config, store Store) *Server {
	return &Server{
		cfg:     cfg,
		rooms:   NewRegistry(store),
		tickets: newTickets(cfg.Secret, cfg.TicketTTL),
		policy:  co.Policy{AllowUnowned: cfg.AllowUnowned},
	}
}

func (s *Server) Rooms() *Registry {
	return s.rooms
}

func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/rooms/{room}/join", s.join).Methods("POST")
	r.HandleFunc("/rooms/{room}", s.snapshot).Methods("GET")
	r.HandleFunc("/ws/{room}", s.ws)

	return r
}

// set up websocket, the ticket is checked before upgrading
func (s *Server) ws(w http.ResponseWriter, r *http.Request) {
	room := mux.Vars(r)["room"]

	actor, err := s.tickets.redeem(r.URL.Query().Get("token"), room)
	if err != nil {
		glog.V(1).Infof("[ws]ticket for %s = %s\n", room, err)
		if errors.Is(err, ErrActorReused) {
			http.Error(w, "Ticket already used", http.StatusConflict)
		} else {
			http.Error(w, "Invalid ticket", http.StatusForbidden)
		}
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		glog.Warningf("[ws]upgrade = %s\n", err)
		return
	}

	c := s.NewClient(actor, conn)
	c.interact(room)
}

func (s *Server) snapshot(w http.ResponseWriter, r *http.Request) {
	room, ok := s.rooms.Get(mux.Vars(r)["room"])
	if !ok {
		http.Error(w, "No such room", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(room.Snapshot())
}
