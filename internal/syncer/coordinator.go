// Package syncer owns the connect/disconnect lifecycle of the realtime
// mirror and reconciles inbound remote snapshots into local state.
package syncer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/iqralabs/iqra/internal/exam"
	"github.com/iqralabs/iqra/internal/gateway"
	"github.com/iqralabs/iqra/internal/mirror"
	"github.com/iqralabs/iqra/internal/store"
)

// State is the connection lifecycle state.
type State string

const (
	Disconnected State = "disconnected"
	Connecting   State = "connecting"
	Connected    State = "connected"
)

// Status is a point-in-time snapshot of the connection. Transient, never
// persisted; recomputed on every connect attempt.
type Status struct {
	State     State
	LastError string
	Category  mirror.Category
}

// collectionKeys maps each subscribed collection to its local store key.
var collectionKeys = map[string]string{
	mirror.CollectionNews:     store.KeyNews,
	mirror.CollectionSettings: store.KeySettings,
	mirror.CollectionHistory:  store.KeyHistory,
}

// Coordinator drives the mirror connection and runs inbound
// reconciliation through the single-writer update loop.
//
// Reconciliation policy is last-writer-from-remote-wins: every inbound
// snapshot overwrites the corresponding local record in full. A nil or
// empty snapshot means "no data yet" and does not overwrite local state.
type Coordinator struct {
	gw   *gateway.Gateway
	loop *Loop
	dial mirror.Dialer

	// lifecycleMu serializes Connect/Disconnect. Held across the awaited
	// release of the previous connection so only one remote connection
	// ever exists.
	lifecycleMu sync.Mutex

	mu         sync.Mutex // guards the fields below
	state      State
	lastErr    string
	category   mirror.Category
	remote     mirror.Store
	unsubs     []func()
	generation int

	onApply func(collection string) // optional, for presentation refresh
}

// New creates a coordinator in the Disconnected state.
// The dialer defaults to the websocket client.
func New(gw *gateway.Gateway, loop *Loop, dial mirror.Dialer) *Coordinator {
	if dial == nil {
		dial = mirror.Dial
	}
	return &Coordinator{
		gw:    gw,
		loop:  loop,
		dial:  dial,
		state: Disconnected,
	}
}

// SetOnApply registers a callback invoked (on the update loop) after an
// inbound snapshot has been applied. Used by presentation surfaces.
func (c *Coordinator) SetOnApply(fn func(collection string)) {
	c.mu.Lock()
	c.onApply = fn
	c.mu.Unlock()
}

// Status returns the current connection status.
func (c *Coordinator) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Status{State: c.state, LastError: c.lastErr, Category: c.category}
}

// Connect validates cfg, releases any previously-held connection, and
// establishes a new one. Idempotent: calling Connect while Connected
// cleanly swaps to the new configuration without leaking the old
// subscriptions.
//
// On validation failure the remote store is never contacted and the
// stored configuration is left untouched.
func (c *Coordinator) Connect(ctx context.Context, cfg mirror.Config) error {
	if err := cfg.Validate(); err != nil {
		c.setFailed(err)
		return err
	}

	c.lifecycleMu.Lock()
	defer c.lifecycleMu.Unlock()

	c.setState(Connecting)

	// Release the previous connection first; only one active remote
	// connection may exist at a time. Close is awaited: it returns after
	// the old read loop has stopped delivering.
	c.release()

	remote, err := c.dial(ctx, cfg)
	if err != nil {
		c.setFailed(err)
		return fmt.Errorf("mirror connect: %w", err)
	}

	if err := c.gw.SaveMirrorConfig(cfg); err != nil {
		slog.Warn("persist mirror config failed", "error", err)
	}

	c.mu.Lock()
	c.remote = remote
	c.generation++
	gen := c.generation
	c.mu.Unlock()

	for collection := range collectionKeys {
		if err := c.subscribe(remote, collection, gen); err != nil {
			c.setFailed(err)
			c.release()
			return fmt.Errorf("mirror subscribe %s: %w", collection, err)
		}
	}

	c.gw.SetRemote(remote)
	c.setState(Connected)
	slog.Info("mirror connected", "url", cfg.DatabaseURL)

	c.pushInitial(ctx, remote)
	return nil
}

// Disconnect clears the stored configuration and tears down the
// connection. Subsequent gateway writes become local-only. Idempotent.
func (c *Coordinator) Disconnect() error {
	c.lifecycleMu.Lock()
	defer c.lifecycleMu.Unlock()

	c.release()
	c.setState(Disconnected)

	if err := c.gw.ClearMirrorConfig(); err != nil {
		return fmt.Errorf("clear mirror config: %w", err)
	}
	slog.Info("mirror disconnected")
	return nil
}

// Close tears down the connection without touching the stored
// configuration, so the next start can Resume. Idempotent.
func (c *Coordinator) Close() error {
	c.lifecycleMu.Lock()
	defer c.lifecycleMu.Unlock()

	c.release()
	c.setState(Disconnected)
	return nil
}

// Resume reconnects using the stored configuration, if any. Called at
// startup so a device picks up where it left off. No stored config is
// not an error.
func (c *Coordinator) Resume(ctx context.Context) error {
	cfg, ok := c.gw.MirrorConfig()
	if !ok {
		return nil
	}
	return c.Connect(ctx, cfg)
}

// subscribe opens one change subscription. The generation check drops
// events from a connection that has since been replaced: a change pushed
// under an old configuration after reconnect must not affect local state.
func (c *Coordinator) subscribe(remote mirror.Store, collection string, gen int) error {
	unsub, err := remote.Subscribe(collection, func(raw json.RawMessage) {
		c.loop.Submit(func() {
			c.mu.Lock()
			stale := gen != c.generation
			onApply := c.onApply
			c.mu.Unlock()

			if stale {
				slog.Debug("dropping stale mirror snapshot", "collection", collection)
				return
			}
			c.apply(collection, raw, onApply)
		})
	})
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.unsubs = append(c.unsubs, unsub)
	c.mu.Unlock()
	return nil
}

// apply overwrites the local record with the remote snapshot. Runs on the
// update loop.
func (c *Coordinator) apply(collection string, raw json.RawMessage, onApply func(string)) {
	if len(raw) == 0 || string(raw) == "null" {
		// No data yet on the remote side; keep local state.
		return
	}

	key, ok := collectionKeys[collection]
	if !ok {
		slog.Warn("snapshot for unknown collection ignored", "collection", collection)
		return
	}

	if err := c.gw.PutRaw(key, raw); err != nil {
		slog.Error("reconcile write failed", "collection", collection, "error", err)
		return
	}

	slog.Debug("remote snapshot applied", "collection", collection, "bytes", len(raw))
	if onApply != nil {
		onApply(collection)
	}
}

// pushInitial mirrors existing local data once after a successful
// connect, so a fresh remote store starts from this device's state.
// Best-effort, like all mirror pushes.
func (c *Coordinator) pushInitial(ctx context.Context, remote mirror.Store) {
	if news := c.gw.News(); len(news) > 0 {
		if err := remote.Write(ctx, mirror.CollectionNews, news); err != nil {
			slog.Warn("initial news push failed", "error", err)
		}
	}
	if settings, ok := c.gw.Settings(); ok {
		if err := remote.Write(ctx, mirror.CollectionSettings, settings); err != nil {
			slog.Warn("initial settings push failed", "error", err)
		}
	}
	if history := c.gw.History(); len(history) > 0 {
		if len(history) > exam.RemoteHistoryCap {
			history = history[:exam.RemoteHistoryCap]
		}
		if err := remote.Write(ctx, mirror.CollectionHistory, history); err != nil {
			slog.Warn("initial history push failed", "error", err)
		}
	}
}

// release tears down subscriptions and closes the current connection.
// Callers hold lifecycleMu.
func (c *Coordinator) release() {
	c.mu.Lock()
	remote := c.remote
	unsubs := c.unsubs
	c.remote = nil
	c.unsubs = nil
	c.generation++
	c.mu.Unlock()

	c.gw.SetRemote(nil)

	for _, unsub := range unsubs {
		unsub()
	}
	if remote != nil {
		if err := remote.Close(); err != nil {
			slog.Warn("mirror close failed", "error", err)
		}
	}
}

func (c *Coordinator) setState(s State) {
	c.mu.Lock()
	c.state = s
	if s != Disconnected {
		c.lastErr = ""
		c.category = ""
	}
	c.mu.Unlock()
}

func (c *Coordinator) setFailed(err error) {
	c.mu.Lock()
	c.state = Disconnected
	c.lastErr = err.Error()
	c.category = mirror.Classify(err)
	c.mu.Unlock()
	slog.Warn("mirror connect failed", "category", string(mirror.Classify(err)), "error", err)
}
