package server

import (
	"context"
	"errors"
	"sync"

	"github.com/golang/glog"
	co "github.com/ilnaes/ownpad/internal/common"
)

// Registry owns every live room. A room is created by its first join
// and torn down when its last member leaves.
type Registry struct {
	rooms map[string]*Room
	store Store

	// called after a room is torn down
	OnTeardown func(room string)

	mu sync.Mutex // protects rooms, held before any room lock and across teardown
}

func NewRegistry(store Store) *Registry {
	return &Registry{
		rooms: make(map[string]*Room),
		store: store,
	}
}

func (g *Registry) Get(id string) (*Room, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	room, ok := g.rooms[id]
	return room, ok
}

func (g *Registry) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	return len(g.rooms)
}

// Join adds c to room id, creating the room with c as its owner if
// needed, and sends c the seed. The store is read without holding the
// registry lock.
func (g *Registry) Join(ctx context.Context, id string, c *Client) *Room {
	g.mu.Lock()
	defer g.mu.Unlock()

	room, ok := g.rooms[id]
	if !ok {
		g.mu.Unlock()
		doc := g.load(ctx, id)
		g.mu.Lock()

		// someone else may have created it meanwhile
		if room, ok = g.rooms[id]; !ok {
			room = newRoom(id, c.actor, doc, g.store)
			g.rooms[id] = room
			glog.Infof("[room]%s created by %s\n", id, c.actor)
		}
	}

	room.join(c)
	glog.V(1).Infof("[room]%s join %s\n", id, c.actor)
	return room
}

func (g *Registry) load(ctx context.Context, id string) co.Document {
	doc, err := g.store.Load(ctx, id)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			glog.Warningf("[store]load %s = %s\n", id, err)
		}
		return co.NewDocument()
	}
	return doc
}

// Leave removes c from room, tearing the room down if it was the last
// member.
func (g *Registry) Leave(ctx context.Context, room *Room, c *Client) {
	g.mu.Lock()
	defer g.mu.Unlock()

	left := room.leave(c)
	glog.V(1).Infof("[room]%s leave %s (%d left)\n", room.Id, c.actor, left)
	if left > 0 || g.rooms[room.Id] != room {
		return
	}

	delete(g.rooms, room.Id)
	if err := g.store.Delete(ctx, room.Id); err != nil {
		glog.Warningf("[store]delete %s = %s\n", room.Id, err)
	}
	glog.Infof("[room]%s torn down\n", room.Id)

	if g.OnTeardown != nil {
		g.OnTeardown(room.Id)
	}
}
