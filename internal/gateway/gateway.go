// Package gateway is the persistence gateway: typed JSON records over the
// durable local store, mirrored outward to the realtime store when one is
// connected. The local store is always the system of record; mirror
// pushes are best-effort and never surface failures to the learner.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/iqralabs/iqra/internal/exam"
	"github.com/iqralabs/iqra/internal/mirror"
	"github.com/iqralabs/iqra/internal/store"
)

// pushTimeout bounds a single fire-and-forget mirror push.
const pushTimeout = 10 * time.Second

// Gateway mediates all reads and writes of shared state.
type Gateway struct {
	local *store.Local

	mu     sync.RWMutex
	remote mirror.Store // nil while disconnected
}

// New creates a gateway over the local store. No mirror is attached until
// the sync coordinator connects one.
func New(local *store.Local) *Gateway {
	return &Gateway{local: local}
}

// SetRemote attaches (or, with nil, detaches) the connected mirror.
// Called by the sync coordinator on connect and disconnect.
func (g *Gateway) SetRemote(m mirror.Store) {
	g.mu.Lock()
	g.remote = m
	g.mu.Unlock()
}

func (g *Gateway) currentRemote() mirror.Store {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.remote
}

// History returns the stored exam history, most recent first. Corrupt
// stored JSON is treated as absent.
func (g *Gateway) History() []exam.Result {
	var history []exam.Result
	g.getJSON(store.KeyHistory, &history)
	return history
}

// SaveHistory writes the full history locally and pushes the most recent
// entries to the mirror when connected.
func (g *Gateway) SaveHistory(history []exam.Result) error {
	if err := g.putJSON(store.KeyHistory, history); err != nil {
		return err
	}

	capped := history
	if len(capped) > exam.RemoteHistoryCap {
		capped = capped[:exam.RemoteHistoryCap]
	}
	g.pushRemote(mirror.CollectionHistory, capped)
	return nil
}

// News returns the stored news feed.
func (g *Gateway) News() []exam.NewsItem {
	var news []exam.NewsItem
	g.getJSON(store.KeyNews, &news)
	return news
}

// SaveNews writes the news feed locally and mirrors it when connected.
func (g *Gateway) SaveNews(news []exam.NewsItem) error {
	if err := g.putJSON(store.KeyNews, news); err != nil {
		return err
	}
	g.pushRemote(mirror.CollectionNews, news)
	return nil
}

// Settings returns the stored settings. The second return is false when
// none have been saved yet.
func (g *Gateway) Settings() (exam.Settings, bool) {
	var s exam.Settings
	ok := g.getJSON(store.KeySettings, &s)
	return s, ok
}

// SaveSettings writes settings locally and mirrors them when connected.
func (g *Gateway) SaveSettings(s exam.Settings) error {
	if err := g.putJSON(store.KeySettings, s); err != nil {
		return err
	}
	g.pushRemote(mirror.CollectionSettings, s)
	return nil
}

// Progress returns the unlock ledger for a content-language, creating the
// starting ledger when none is stored. Progress is local-only.
func (g *Gateway) Progress(lang string) exam.UserProgress {
	p := exam.NewProgress()
	if g.getJSON(store.ProgressKey(lang), &p) {
		if p.CurrentLevel < 1 || p.MaxUnlockedLevel < 1 || p.MaxUnlockedLevel > exam.TotalLevels {
			return exam.NewProgress()
		}
	}
	return p
}

// SaveProgress writes a content-language's ledger.
func (g *Gateway) SaveProgress(lang string, p exam.UserProgress) error {
	return g.putJSON(store.ProgressKey(lang), p)
}

// MirrorConfig returns the stored mirror connection configuration.
func (g *Gateway) MirrorConfig() (mirror.Config, bool) {
	var cfg mirror.Config
	ok := g.getJSON(store.KeyMirrorConfig, &cfg)
	return cfg, ok
}

// SaveMirrorConfig persists the connection configuration.
func (g *Gateway) SaveMirrorConfig(cfg mirror.Config) error {
	return g.putJSON(store.KeyMirrorConfig, cfg)
}

// ClearMirrorConfig removes the stored configuration; subsequent writes
// become local-only.
func (g *Gateway) ClearMirrorConfig() error {
	return g.local.Delete(store.KeyMirrorConfig)
}

// PutRaw overwrites a local record with a raw remote snapshot. Used by
// the sync coordinator for inbound reconciliation; deliberately does not
// push back to the mirror.
func (g *Gateway) PutRaw(key string, raw []byte) error {
	return g.local.Set(key, string(raw))
}

// getJSON loads and decodes a record. Returns false when the record is
// absent or corrupt; corrupt state is logged and treated as absent
// rather than crashing.
func (g *Gateway) getJSON(key string, out any) bool {
	value, ok, err := g.local.Get(key)
	if err != nil {
		slog.Error("local read failed", "key", key, "error", err)
		return false
	}
	if !ok {
		return false
	}
	if err := json.Unmarshal([]byte(value), out); err != nil {
		slog.Warn("corrupt local record ignored", "key", key, "error", err)
		return false
	}
	return true
}

func (g *Gateway) putJSON(key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %q: %w", key, err)
	}
	if err := g.local.Set(key, string(raw)); err != nil {
		return fmt.Errorf("persist %q: %w", key, err)
	}
	return nil
}

// pushRemote mirrors a collection outward. Fire-and-forget: failures are
// logged and never retried, and local state is already durable.
func (g *Gateway) pushRemote(collection string, value any) {
	remote := g.currentRemote()
	if remote == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), pushTimeout)
	defer cancel()

	if err := remote.Write(ctx, collection, value); err != nil {
		slog.Warn("mirror push failed", "collection", collection, "error", err)
	}
}
