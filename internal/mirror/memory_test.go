package mirror

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_WriteThenReadOnce(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	require.NoError(t, m.Write(ctx, CollectionSettings, map[string]string{"schoolNameEn": "Test"}))

	var got map[string]string
	ok, err := m.ReadOnce(ctx, CollectionSettings, &got)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Test", got["schoolNameEn"])
}

func TestMemory_ReadOnce_Empty(t *testing.T) {
	m := NewMemory()

	var got map[string]string
	ok, err := m.ReadOnce(context.Background(), CollectionNews, &got)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemory_SubscribeReceivesPush(t *testing.T) {
	m := NewMemory()

	var seen []string
	cancel, err := m.Subscribe(CollectionNews, func(raw json.RawMessage) {
		seen = append(seen, string(raw))
	})
	require.NoError(t, err)

	m.PushRemote(CollectionNews, json.RawMessage(`[{"id":"n1"}]`))
	assert.Equal(t, []string{`[{"id":"n1"}]`}, seen)

	cancel()
	m.PushRemote(CollectionNews, json.RawMessage(`[{"id":"n2"}]`))
	assert.Len(t, seen, 1, "cancelled subscription must not fire")
}

func TestMemory_CloseStopsEverything(t *testing.T) {
	m := NewMemory()

	fired := false
	_, err := m.Subscribe(CollectionHistory, func(json.RawMessage) { fired = true })
	require.NoError(t, err)

	require.NoError(t, m.Close())
	m.PushRemote(CollectionHistory, json.RawMessage(`[]`))
	assert.False(t, fired)

	assert.ErrorIs(t, m.Write(context.Background(), CollectionHistory, []string{}), ErrUnreachable)
	_, err = m.Subscribe(CollectionHistory, func(json.RawMessage) {})
	assert.ErrorIs(t, err, ErrUnreachable)
}
