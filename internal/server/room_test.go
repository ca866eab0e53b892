package server

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	co "github.com/ilnaes/ownpad/internal/common"
	"github.com/stretchr/testify/require"
)

func testClient(actor co.ActorId) *Client {
	return &Client{
		actor: actor,
		send:  make(chan []byte, 16),
		done:  make(chan struct{}),
	}
}

func recv(t *testing.T, c *Client) co.Response {
	t.Helper()
	select {
	case buf := <-c.send:
		var res co.Response
		require.NoError(t, json.Unmarshal(buf, &res))
		return res
	case <-time.After(waitTimeout):
		t.Fatalf("nothing sent to %s", c.actor)
	}
	return co.Response{}
}

func quiet(t *testing.T, c *Client) {
	t.Helper()
	select {
	case buf := <-c.send:
		t.Fatalf("unexpected frame to %s: %s", c.actor, buf)
	default:
	}
}

// joins every client to a room and drains the seeds
func testRoom(t *testing.T, owner co.ActorId, doc co.Document, clients ...*Client) *Room {
	room := newRoom("room", owner, doc, NewMemoryStore())
	for _, c := range clients {
		room.join(c)
		require.Equal(t, co.Seed, recv(t, c).Type)
	}
	return room
}

func TestStaleEditWins(t *testing.T) {
	for _, enforce := range []bool{false, true} {
		t.Run(map[bool]string{false: "open", true: "enforced"}[enforce], func(t *testing.T) {
			ctx := context.Background()
			a, b, c := testClient("a"), testClient("b"), testClient("c")
			room := testRoom(t, "b", co.Document{
				Content: "XY",
				Ranges:  co.RangeSet{{Start: 0, End: 2, Owner: "a"}},
			}, a, b, c)

			require.NoError(t, room.edit(ctx, a, co.Request{
				Type:    co.Edit,
				RoomId:  "room",
				Base:    "XY",
				Content: "aXY",
				Ranges:  co.RangeSet{{Start: 0, End: 3, Owner: "a"}},
			}, enforce, co.Policy{}))
			recv(t, b)
			recv(t, c)

			// b appends without having seen a's edit
			require.NoError(t, room.edit(ctx, b, co.Request{
				Type:    co.Edit,
				RoomId:  "room",
				Base:    "XY",
				Content: "XYb",
				Ranges:  co.RangeSet{{Start: 0, End: 2, Owner: "a"}, {Start: 2, End: 3, Owner: "b"}},
			}, enforce, co.Policy{}))

			want := co.Document{
				Content: "XYb",
				Ranges:  co.RangeSet{{Start: 0, End: 2, Owner: "a"}, {Start: 2, End: 3, Owner: "b"}},
			}
			require.Equal(t, want, room.Snapshot().Document)
			for _, cl := range []*Client{a, c} {
				res := recv(t, cl)
				require.Equal(t, co.Update, res.Type)
				require.Equal(t, want.Content, res.Content)
				require.Equal(t, want.Ranges, res.Ranges)
			}
			quiet(t, b)
		})
	}
}

func TestStaleAppendAccepted(t *testing.T) {
	ctx := context.Background()
	a, c := testClient("a"), testClient("c")
	room := testRoom(t, "owner", co.Document{
		Content: "cc",
		Ranges:  co.RangeSet{{Start: 0, End: 2, Owner: "c"}},
	}, a, c)

	require.NoError(t, room.edit(ctx, a, co.Request{
		Base:    "cc",
		Content: "acc",
		Ranges:  co.RangeSet{{Start: 0, End: 1, Owner: "a"}, {Start: 1, End: 3, Owner: "c"}},
	}, true, co.Policy{}))
	recv(t, c)

	// c only added text in its own view
	require.NoError(t, room.edit(ctx, c, co.Request{
		Base:    "cc",
		Content: "ccd",
		Ranges:  co.RangeSet{{Start: 0, End: 3, Owner: "c"}},
	}, true, co.Policy{}))
	require.Equal(t, co.Document{
		Content: "ccd",
		Ranges:  co.RangeSet{{Start: 0, End: 3, Owner: "c"}},
	}, room.Snapshot().Document)
	require.Equal(t, "ccd", recv(t, a).Content)
	quiet(t, c)
}

func TestEnforcedEditChecksBase(t *testing.T) {
	ctx := context.Background()
	a, c := testClient("a"), testClient("c")
	doc := co.Document{
		Content: "XY",
		Ranges:  co.RangeSet{{Start: 0, End: 2, Owner: "a"}},
	}
	room := testRoom(t, "owner", doc, a, c)

	err := room.edit(ctx, c, co.Request{Base: "XY", Content: "X"}, true, co.Policy{})
	require.ErrorIs(t, err, co.ErrNotPermitted)
	res := recv(t, c)
	require.Equal(t, co.Rejected, res.Type)
	require.Equal(t, doc.Content, res.Content)
	require.Equal(t, doc.Ranges, res.Ranges)

	err = room.edit(ctx, c, co.Request{Base: "never seen", Content: "XYz"}, true, co.Policy{})
	require.ErrorIs(t, err, ErrUnknownBase)
	require.Equal(t, co.Rejected, recv(t, c).Type)

	require.Equal(t, doc, room.Snapshot().Document)
	quiet(t, a)

	// claimed ranges are replaced and the sender told
	require.NoError(t, room.edit(ctx, c, co.Request{
		Base:    "XY",
		Content: "XYz",
		Ranges:  co.RangeSet{{Start: 0, End: 3, Owner: "c"}},
	}, true, co.Policy{}))
	want := co.RangeSet{{Start: 0, End: 2, Owner: "a"}, {Start: 2, End: 3, Owner: "c"}}
	require.Equal(t, want, room.Snapshot().Ranges)
	require.Equal(t, want, recv(t, c).Ranges)
	require.Equal(t, want, recv(t, a).Ranges)
}

func TestHistoryBounded(t *testing.T) {
	ctx := context.Background()
	c := testClient("c")
	room := testRoom(t, "c", co.NewDocument(), c)

	base := ""
	for i := 0; i < HistoryLen+1; i++ {
		content := base + "x"
		require.NoError(t, room.edit(ctx, c, co.Request{
			Base:    base,
			Content: content,
			Ranges:  co.RangeSet{{Start: 0, End: i + 1, Owner: "c"}},
		}, true, co.Policy{}))
		base = content
	}
	require.Len(t, room.history, HistoryLen)
	quiet(t, c)

	// the empty document has been forgotten
	_, ok := room.base("")
	require.False(t, ok)
	_, ok = room.base(base)
	require.True(t, ok)
}

type slowStore struct {
	Store
	loading chan struct{}
	release chan struct{}
}

func (s slowStore) Load(ctx context.Context, room string) (co.Document, error) {
	if room == "slow" {
		close(s.loading)
		<-s.release
	}
	return s.Store.Load(ctx, room)
}

func TestJoinDoesNotBlockOtherRooms(t *testing.T) {
	ctx := context.Background()
	store := slowStore{
		Store:   NewMemoryStore(),
		loading: make(chan struct{}),
		release: make(chan struct{}),
	}
	g := NewRegistry(store)

	joined := make(chan *Room)
	go func() {
		joined <- g.Join(ctx, "slow", testClient("a"))
	}()
	<-store.loading

	done := make(chan struct{})
	go func() {
		b := testClient("b")
		g.Leave(ctx, g.Join(ctx, "fast", b), b)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(waitTimeout):
		t.Fatal("join blocked by another room's load")
	}

	close(store.release)
	room := <-joined
	require.Equal(t, co.ActorId("a"), room.Owner)
	require.Equal(t, 1, g.Len())
}
