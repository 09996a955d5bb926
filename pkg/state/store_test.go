package state

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreRoundTrip(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	snap := &Snapshot{
		SessionID:    "abc-123",
		State:        "COLLECTING",
		TemplateName: "spend",
		Title:        "Early Retirement",
		Values:       map[string]string{"goal": "retire early"},
		PlanJSON:     json.RawMessage(`{"risk_assessment":"moderate"}`),
	}
	require.NoError(t, store.Save(snap))
	assert.False(t, snap.UpdatedAt.IsZero())

	loaded, err := store.Load("abc-123")
	require.NoError(t, err)
	assert.Equal(t, "spend", loaded.TemplateName)
	assert.Equal(t, "retire early", loaded.Values["goal"])
	assert.JSONEq(t, `{"risk_assessment":"moderate"}`, string(loaded.PlanJSON))

	ids, err := store.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"abc-123"}, ids)
}

func TestStoreLoadMissing(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	_, err = store.Load("nope")
	assert.Error(t, err)
}

func TestStoreSaveOverwrites(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Save(&Snapshot{SessionID: "s", State: "AWAITING_TEMPLATE", Values: map[string]string{}}))
	require.NoError(t, store.Save(&Snapshot{SessionID: "s", State: "READY", Values: map[string]string{}}))

	loaded, err := store.Load("s")
	require.NoError(t, err)
	assert.Equal(t, "READY", loaded.State)
}
