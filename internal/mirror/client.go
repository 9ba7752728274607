package mirror

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

// frame is the wire format exchanged with the mirror store. The store
// answers "read" with a single snapshot frame carrying the request ID and
// pushes unsolicited snapshot frames for subscribed collections.
type frame struct {
	Op         string          `json:"op"` // write | read | subscribe | unsubscribe | snapshot | error
	Collection string          `json:"collection,omitempty"`
	ReqID      int             `json:"reqId,omitempty"`
	Value      json.RawMessage `json:"value,omitempty"`
	Error      string          `json:"error,omitempty"`
}

// Client is a websocket-backed Store. Only one Client may hold a given
// mirror connection at a time; the server rejects a second session for
// the same access key.
type Client struct {
	conn    *websocket.Conn
	writeMu sync.Mutex // serializes websocket writes

	mu      sync.Mutex
	subs    map[string]map[int]ChangeFunc
	pending map[int]chan frame
	nextID  int
	closed  bool

	done chan struct{}
}

// Dial connects to the mirror store at cfg.DatabaseURL, authenticating
// with the access key. Implements Dialer.
func Dial(ctx context.Context, cfg Config) (Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+cfg.AccessKey)

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, cfg.DatabaseURL, header)
	if err != nil {
		if resp != nil {
			switch resp.StatusCode {
			case http.StatusUnauthorized, http.StatusForbidden:
				return nil, fmt.Errorf("dial %s: %w", cfg.DatabaseURL, ErrInvalidKey)
			case http.StatusConflict:
				return nil, fmt.Errorf("dial %s: %w", cfg.DatabaseURL, ErrDuplicateSession)
			}
		}
		return nil, fmt.Errorf("dial %s: %w: %v", cfg.DatabaseURL, ErrUnreachable, err)
	}

	c := &Client{
		conn:    conn,
		subs:    make(map[string]map[int]ChangeFunc),
		pending: make(map[int]chan frame),
		done:    make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

// Write replaces the collection's document with value.
func (c *Client) Write(ctx context.Context, collection string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", collection, err)
	}
	return c.send(frame{Op: "write", Collection: collection, Value: raw})
}

// ReadOnce fetches the collection's current document into out.
func (c *Client) ReadOnce(ctx context.Context, collection string, out any) (bool, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false, ErrUnreachable
	}
	c.nextID++
	id := c.nextID
	reply := make(chan frame, 1)
	c.pending[id] = reply
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	if err := c.send(frame{Op: "read", Collection: collection, ReqID: id}); err != nil {
		return false, err
	}

	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case <-c.done:
		return false, ErrUnreachable
	case f := <-reply:
		if f.Error != "" {
			return false, fmt.Errorf("read %s: %s", collection, f.Error)
		}
		if len(f.Value) == 0 || string(f.Value) == "null" {
			return false, nil
		}
		if err := json.Unmarshal(f.Value, out); err != nil {
			return false, fmt.Errorf("decode %s snapshot: %w", collection, err)
		}
		return true, nil
	}
}

// Subscribe registers fn for snapshot pushes on collection.
func (c *Client) Subscribe(collection string, fn ChangeFunc) (func(), error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrUnreachable
	}
	first := len(c.subs[collection]) == 0
	if c.subs[collection] == nil {
		c.subs[collection] = make(map[int]ChangeFunc)
	}
	c.nextID++
	id := c.nextID
	c.subs[collection][id] = fn
	c.mu.Unlock()

	if first {
		if err := c.send(frame{Op: "subscribe", Collection: collection}); err != nil {
			c.mu.Lock()
			delete(c.subs[collection], id)
			c.mu.Unlock()
			return nil, err
		}
	}

	return func() {
		c.mu.Lock()
		delete(c.subs[collection], id)
		last := len(c.subs[collection]) == 0
		closed := c.closed
		c.mu.Unlock()

		if last && !closed {
			// Best effort; the server drops the subscription on close anyway.
			_ = c.send(frame{Op: "unsubscribe", Collection: collection})
		}
	}, nil
}

// Close tears down the connection. Subscriptions stop firing once the
// read loop observes the closed connection.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	err := c.conn.Close()
	<-c.done
	return err
}

func (c *Client) send(f frame) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.WriteJSON(f); err != nil {
		return fmt.Errorf("mirror send %s/%s: %w", f.Op, f.Collection, err)
	}
	return nil
}

// readLoop dispatches inbound frames: replies to pending reads by request
// ID, snapshot pushes to subscribers. Exits when the connection drops.
func (c *Client) readLoop() {
	defer close(c.done)

	for {
		var f frame
		if err := c.conn.ReadJSON(&f); err != nil {
			c.mu.Lock()
			c.closed = true
			for id, ch := range c.pending {
				ch <- frame{Error: "connection closed"}
				delete(c.pending, id)
			}
			c.mu.Unlock()
			return
		}

		if f.ReqID != 0 {
			c.mu.Lock()
			ch, ok := c.pending[f.ReqID]
			delete(c.pending, f.ReqID)
			c.mu.Unlock()
			if ok {
				ch <- f
			}
			continue
		}

		if f.Op != "snapshot" {
			continue
		}

		c.mu.Lock()
		fns := make([]ChangeFunc, 0, len(c.subs[f.Collection]))
		for _, fn := range c.subs[f.Collection] {
			fns = append(fns, fn)
		}
		c.mu.Unlock()

		raw := f.Value
		if string(raw) == "null" {
			raw = nil
		}
		for _, fn := range fns {
			fn(raw)
		}
	}
}
