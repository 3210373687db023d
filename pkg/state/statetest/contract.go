// Package statetest holds the behaviour every state.Store backend must show.
package statetest

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-rased/pkg/state"
)

// Run exercises store against the Store contract. Each call uses its own
// slot names, so a shared backend may be reused across runs.
func Run(t *testing.T, store state.Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("load missing", func(t *testing.T) {
		data, meta, ok, err := store.Load(ctx, state.Ref{Slot: "contract-missing"})
		require.NoError(t, err)
		require.False(t, ok)
		require.Nil(t, data)
		require.Empty(t, meta.ETag)
	})

	t.Run("save then load", func(t *testing.T) {
		ref := state.Ref{Slot: "contract-roundtrip"}
		t.Cleanup(func() { _ = store.Delete(ctx, ref) })

		payload := []byte(`{"students":[]}`)
		saved, err := store.Save(ctx, ref, payload, state.Meta{Extra: map[string]string{"source": "test"}})
		require.NoError(t, err)
		require.NotEmpty(t, saved.SnapshotID)
		require.Equal(t, state.ETag(payload), saved.ETag)
		require.False(t, saved.UpdatedAt.IsZero())

		data, meta, ok, err := store.Load(ctx, ref)
		require.NoError(t, err)
		require.True(t, ok)
		require.JSONEq(t, string(payload), string(data))
		require.Equal(t, saved.ETag, meta.ETag)
		require.Equal(t, "test", meta.Extra["source"])
	})

	t.Run("owners are isolated", func(t *testing.T) {
		alice := state.Ref{Slot: "contract-owned", Owner: "alice"}
		bob := state.Ref{Slot: "contract-owned", Owner: "bob"}
		t.Cleanup(func() {
			_ = store.Delete(ctx, alice)
			_ = store.Delete(ctx, bob)
		})

		_, err := store.Save(ctx, alice, []byte(`{"owner":"alice"}`), state.Meta{})
		require.NoError(t, err)

		_, _, ok, err := store.Load(ctx, bob)
		require.NoError(t, err)
		require.False(t, ok)
	})

	t.Run("etag mismatch", func(t *testing.T) {
		ref := state.Ref{Slot: "contract-etag"}
		t.Cleanup(func() { _ = store.Delete(ctx, ref) })

		first, err := store.Save(ctx, ref, []byte(`{"v":1}`), state.Meta{})
		require.NoError(t, err)

		second, err := store.Save(ctx, ref, []byte(`{"v":2}`), state.Meta{ETag: first.ETag})
		require.NoError(t, err)

		_, err = store.Save(ctx, ref, []byte(`{"v":3}`), state.Meta{ETag: first.ETag})
		require.True(t, errors.Is(err, state.ErrETagMismatch), "got %v", err)

		data, meta, ok, err := store.Load(ctx, ref)
		require.NoError(t, err)
		require.True(t, ok)
		require.JSONEq(t, `{"v":2}`, string(data))
		require.Equal(t, second.ETag, meta.ETag)
	})

	t.Run("delete", func(t *testing.T) {
		ref := state.Ref{Slot: "contract-delete"}
		_, err := store.Save(ctx, ref, []byte(`{}`), state.Meta{})
		require.NoError(t, err)

		require.NoError(t, store.Delete(ctx, ref))
		require.NoError(t, store.Delete(ctx, ref))

		_, _, ok, err := store.Load(ctx, ref)
		require.NoError(t, err)
		require.False(t, ok)
	})

	t.Run("invalid ref", func(t *testing.T) {
		_, err := store.Save(ctx, state.Ref{}, []byte(`{}`), state.Meta{})
		require.True(t, errors.Is(err, state.ErrInvalidRef), "got %v", err)

		_, _, _, err = store.Load(ctx, state.Ref{Slot: "a/b"})
		require.True(t, errors.Is(err, state.ErrInvalidRef), "got %v", err)
	})
}
