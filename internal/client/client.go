package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/golang/glog"
	"github.com/gorilla/websocket"
	co "github.com/ilnaes/ownpad/internal/common"
)

var ErrRejected = errors.New("rejected by server")

const UpdateBuffer = 64

// Update is a document received from the room. Err is set when the server
// refused one of our edits, Document is then the room's state, or when it
// could not handle a message.
type Update struct {
	co.Document
	Err error
}

// Client edits one room. Local edits and remote updates are applied to
// the session one at a time.
type Client struct {
	room    string
	conn    *websocket.Conn
	session *co.Session
	updates chan Update
	done    chan struct{}

	sync.Mutex // protects session and conn writes
}

type ticket struct {
	ActorId co.ActorId `json:"actorId"`
	Token   string     `json:"token"`
}

// Dial joins room on the server at baseURL (http or https) and waits
// for the seed.
func Dial(ctx context.Context, baseURL, room string, policy co.Policy) (*Client, error) {
	base, err := url.Parse(strings.TrimSuffix(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", baseURL, err)
	}

	t, err := join(ctx, base, room)
	if err != nil {
		return nil, err
	}

	ws := *base
	switch base.Scheme {
	case "https":
		ws.Scheme = "wss"
	default:
		ws.Scheme = "ws"
	}
	ws.Path = base.Path + "/ws/" + url.PathEscape(room)
	ws.RawPath = ""
	ws.RawQuery = url.Values{"token": {t.Token}}.Encode()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, ws.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", room, err)
	}

	var seed co.Response
	if err := conn.ReadJSON(&seed); err != nil {
		conn.Close()
		return nil, fmt.Errorf("read seed: %w", err)
	}
	if seed.Type != co.Seed {
		conn.Close()
		return nil, fmt.Errorf("expected seed, got %q", seed.Type)
	}

	c := &Client{
		room:    room,
		conn:    conn,
		session: co.NewSession(seed, policy),
		updates: make(chan Update, UpdateBuffer),
		done:    make(chan struct{}),
	}
	go c.readLoop()

	return c, nil
}

func join(ctx context.Context, base *url.URL, room string) (ticket, error) {
	u := base.String() + "/rooms/" + url.PathEscape(room) + "/join"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, nil)
	if err != nil {
		return ticket{}, err
	}

	res, err := http.DefaultClient.Do(req)
	if err != nil {
		return ticket{}, fmt.Errorf("join %s: %w", room, err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return ticket{}, fmt.Errorf("join %s: %s", room, res.Status)
	}

	var t ticket
	if err := json.NewDecoder(res.Body).Decode(&t); err != nil {
		return ticket{}, fmt.Errorf("join %s: %w", room, err)
	}
	return t, nil
}

func (c *Client) readLoop() {
	defer close(c.updates)
	defer close(c.done)

	for {
		var res co.Response
		if err := c.conn.ReadJSON(&res); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				glog.V(1).Infof("[client]%s read = %s\n", c.room, err)
			}
			return
		}

		u := Update{}
		switch res.Type {
		case co.Update:
		case co.Rejected:
			u.Err = fmt.Errorf("%w: %s", ErrRejected, res.Message)
		case co.Error:
			// no room state attached
			c.notify(Update{Document: c.Document(), Err: errors.New(res.Message)})
			continue
		default:
			continue
		}

		c.Lock()
		u.Document = c.session.Remote(res.Content, res.Ranges)
		c.Unlock()

		c.notify(u)
	}
}

// never blocks the read loop; Document is always current
func (c *Client) notify(u Update) {
	select {
	case c.updates <- u:
	default:
		glog.V(2).Infof("[client]%s update dropped\n", c.room)
	}
}

// Updates delivers every document received from the room. It is closed
// when the connection ends.
func (c *Client) Updates() <-chan Update {
	return c.updates
}

// Done is closed when the connection ends.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

func (c *Client) Actor() co.ActorId {
	c.Lock()
	defer c.Unlock()
	return c.session.Actor()
}

func (c *Client) IsOwner() bool {
	c.Lock()
	defer c.Unlock()
	return c.session.IsOwner()
}

func (c *Client) Document() co.Document {
	c.Lock()
	defer c.Unlock()
	return c.session.Document()
}

func (c *Client) CanDelete(start, end int) bool {
	c.Lock()
	defer c.Unlock()
	return c.session.CanDelete(start, end)
}

// Edit replaces the document with content. Edits that delete text this
// actor may not delete are refused with co.ErrNotPermitted.
func (c *Client) Edit(content string) error {
	c.Lock()
	defer c.Unlock()

	d := co.Compute(c.session.Document().Content, content)
	if d.IsNoop() {
		return nil
	}
	if d.DeletedLength > 0 && !c.session.CanDelete(d.ChangeStart, d.OldEnd) {
		return co.ErrNotPermitted
	}

	return c.commit(content)
}

// Replace swaps the selection [start, end) for text, like typing over it.
func (c *Client) Replace(start, end int, text string) error {
	c.Lock()
	defer c.Unlock()

	if !c.session.CanDelete(start, end) {
		return co.ErrNotPermitted
	}
	if end < start {
		start, end = end, start
	}

	content := co.Splice(c.session.Document().Content, start, end, text)
	return c.commit(content)
}

func (c *Client) Insert(pos int, text string) error {
	return c.Replace(pos, pos, text)
}

// called while holding the lock
func (c *Client) commit(content string) error {
	base := c.session.Document().Content
	doc, d := c.session.Local(content)
	if d.IsNoop() {
		return nil
	}

	return c.conn.WriteJSON(co.Request{
		Type:    co.Edit,
		RoomId:  c.room,
		Base:    base,
		Content: doc.Content,
		Ranges:  doc.Ranges,
	})
}

// Load replaces the whole document with text owned by this actor.
func (c *Client) Load(text string) error {
	c.Lock()
	defer c.Unlock()

	c.session.Load(text)
	return c.conn.WriteJSON(co.Request{Type: co.Load, RoomId: c.room, Content: text})
}

// Clear empties the document for everyone.
func (c *Client) Clear() error {
	c.Lock()
	defer c.Unlock()

	c.session.Load("")
	return c.conn.WriteJSON(co.Request{Type: co.Clear, RoomId: c.room})
}

func (c *Client) Close() error {
	c.Lock()
	err := c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.Unlock()

	c.conn.Close()
	<-c.done
	return err
}
