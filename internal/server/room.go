package server

import (
	"context"
	"errors"
	"sync"

	"github.com/golang/glog"
	co "github.com/ilnaes/ownpad/internal/common"
	"golang.org/x/exp/slices"
)

var (
	ErrRoomMismatch = errors.New("message for another room")
	ErrUnknownBase  = errors.New("edit made against an unknown document")
)

// HistoryLen is how many accepted documents a room remembers to check
// edits made against a stale copy.
const HistoryLen = 64

// Room holds the authoritative document of one room and its members.
// Every change is applied and relayed while holding the lock, so members
// see changes in the order the room accepted them.
type Room struct {
	Id    string
	Owner co.ActorId // first joiner, kept for the room's lifetime

	doc     co.Document
	history []co.Document // recent accepted documents, oldest first
	clients map[*Client]struct{}
	store   Store

	sync.Mutex // protects doc, history and clients
}

type Snapshot struct {
	co.Document
	Owner   co.ActorId `json:"ownerId"`
	Members int        `json:"members"`
}

func newRoom(id string, owner co.ActorId, doc co.Document, store Store) *Room {
	r := &Room{
		Id:      id,
		Owner:   owner,
		clients: make(map[*Client]struct{}),
		store:   store,
	}
	r.set(doc)
	return r
}

func (r *Room) Snapshot() Snapshot {
	r.Lock()
	defer r.Unlock()

	return Snapshot{
		Document: co.Document{Content: r.doc.Content, Ranges: append(co.RangeSet{}, r.doc.Ranges...)},
		Owner:    r.Owner,
		Members:  len(r.clients),
	}
}

// adds c and sends it the current document
func (r *Room) join(c *Client) {
	r.Lock()
	defer r.Unlock()

	r.clients[c] = struct{}{}
	c.write(co.Response{
		Type:    co.Seed,
		Content: r.doc.Content,
		Ranges:  r.doc.Ranges,
		IsOwner: c.actor == r.Owner,
		ActorId: c.actor,
		OwnerId: r.Owner,
	})
}

// removes c, returns how many members are left
func (r *Room) leave(c *Client) int {
	r.Lock()
	defer r.Unlock()

	delete(r.clients, c)
	return len(r.clients)
}

// edit replaces the document with m.Content written by c, the later
// edit winning over anything that landed since c saw m.Base. When enforce
// is set the ranges are derived here from c's own change to m.Base, and an
// edit deleting text c may not delete is refused.
func (r *Room) edit(ctx context.Context, c *Client, m co.Request, enforce bool, policy co.Policy) error {
	r.Lock()
	defer r.Unlock()

	doc := co.Received(m.Content, m.Ranges)
	if enforce {
		base, ok := r.base(m.Base)
		if !ok {
			glog.V(1).Infof("[room]%s unknown base from %s\n", r.Id, c.actor)
			r.reject(c, ErrUnknownBase)
			return ErrUnknownBase
		}

		verified, d := base.Apply(m.Content, c.actor)
		if d.DeletedLength > 0 && !policy.CanDelete(base.Ranges, d.ChangeStart, d.OldEnd, c.actor, r.Owner) {
			glog.V(1).Infof("[room]%s rejected delete [%d,%d) by %s\n", r.Id, d.ChangeStart, d.OldEnd, c.actor)
			r.reject(c, co.ErrNotPermitted)
			return co.ErrNotPermitted
		}
		if !slices.Equal(doc.Ranges, verified.Ranges) {
			// c gets the ranges the room keeps
			glog.V(2).Infof("[room]%s corrected ranges from %s\n", r.Id, c.actor)
			c.write(co.Response{Type: co.Update, Content: verified.Content, Ranges: verified.Ranges})
		}
		doc = verified
	}

	if doc.Content == r.doc.Content && slices.Equal(doc.Ranges, r.doc.Ranges) {
		return nil
	}

	r.set(doc)
	r.save(ctx)
	r.broadcast(c, co.Response{Type: co.Update, Content: doc.Content, Ranges: doc.Ranges})
	return nil
}

// base finds the most recent accepted document with content
func (r *Room) base(content string) (co.Document, bool) {
	for i := len(r.history) - 1; i >= 0; i-- {
		if r.history[i].Content == content {
			return r.history[i], true
		}
	}
	return co.Document{}, false
}

// called while holding the lock
func (r *Room) set(doc co.Document) {
	r.doc = doc
	if len(r.history) == HistoryLen {
		copy(r.history, r.history[1:])
		r.history = r.history[:HistoryLen-1]
	}
	r.history = append(r.history, doc)
}

// sends c the room state in place of its edit
func (r *Room) reject(c *Client, err error) {
	c.write(co.Response{
		Type:    co.Rejected,
		Content: r.doc.Content,
		Ranges:  r.doc.Ranges,
		Message: err.Error(),
	})
}

// load replaces the document and all of its history with text imported
// by c. Everyone, c included, gets the result.
func (r *Room) load(ctx context.Context, c *Client, text string) {
	r.Lock()
	defer r.Unlock()

	r.set(co.LoadDocument(text, c.actor))
	glog.V(1).Infof("[room]%s loaded %d chars by %s\n", r.Id, co.Length(text), c.actor)
	r.save(ctx)
	r.broadcast(nil, co.Response{Type: co.Update, Content: r.doc.Content, Ranges: r.doc.Ranges})
}

// called while holding the lock
func (r *Room) broadcast(except *Client, res co.Response) {
	for c := range r.clients {
		if c != except {
			c.write(res)
		}
	}
}

// called while holding the lock; a failed save never undoes an edit
func (r *Room) save(ctx context.Context) {
	if err := r.store.Save(ctx, r.Id, r.doc); err != nil {
		glog.Warningf("[store]save %s = %s\n", r.Id, err)
	}
}
