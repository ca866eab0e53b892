package server

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/gorilla/websocket"
	co "github.com/ilnaes/ownpad/internal/common"
)

const (
	WriteTimeout = 10 * time.Second
	StoreTimeout = 5 * time.Second
)

// Client is one websocket connection, bound to one actor in one room.
type Client struct {
	s     *Server
	room  *Room
	actor co.ActorId
	conn  *websocket.Conn

	send chan []byte
	done chan struct{}
	once sync.Once
}

func (s *Server) NewClient(actor co.ActorId, conn *websocket.Conn) *Client {
	return &Client{
		s:     s,
		actor: actor,
		conn:  conn,
		send:  make(chan []byte, s.cfg.SendBuffer),
		done:  make(chan struct{}),
	}
}

// queues res without blocking; a client that cannot keep up is dropped
func (c *Client) write(res co.Response) {
	buf, err := json.Marshal(res)
	if err != nil {
		glog.Errorf("[ws]%s marshal = %s\n", c.actor, err)
		return
	}

	select {
	case c.send <- buf:
	case <-c.done:
	default:
		glog.Warningf("[ws]%s send buffer full, dropping\n", c.actor)
		c.close()
	}
}

func (c *Client) close() {
	c.once.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

func (c *Client) writeLoop() {
	for {
		select {
		case buf := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(WriteTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, buf); err != nil {
				glog.V(1).Infof("[ws]%s write = %s\n", c.actor, err)
				c.close()
				return
			}
		case <-c.done:
			return
		}
	}
}

// handles one inbound frame
func (c *Client) handle(buf []byte) {
	var m co.Request
	if err := json.Unmarshal(buf, &m); err != nil {
		c.write(co.Response{Type: co.Error, Message: "bad message"})
		return
	}
	if m.RoomId != c.room.Id {
		c.write(co.Response{Type: co.Error, Message: ErrRoomMismatch.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), StoreTimeout)
	defer cancel()

	switch m.Type {
	case co.Edit:
		c.room.edit(ctx, c, m, c.s.cfg.EnforceDeletes, c.s.policy)
	case co.Load:
		c.room.load(ctx, c, m.Content)
	case co.Clear:
		c.room.load(ctx, c, "")
	default:
		c.write(co.Response{Type: co.Error, Message: "unknown message type " + m.Type})
	}
}

// serves the connection until it closes; frames are handled in arrival
// order
func (c *Client) interact(roomId string) {
	ctx, cancel := context.WithTimeout(context.Background(), StoreTimeout)
	c.room = c.s.rooms.Join(ctx, roomId, c)
	cancel()
	go c.writeLoop()

	for {
		_, buf, err := c.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				glog.V(1).Infof("[ws]%s read = %s\n", c.actor, err)
			}
			break
		}
		c.handle(buf)
	}

	ctx, cancel = context.WithTimeout(context.Background(), StoreTimeout)
	defer cancel()

	c.s.rooms.Leave(ctx, c.room, c)
	c.close()
}
