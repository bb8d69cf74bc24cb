package diagramstore_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowkit/diagramstore/diagramstore"
	"github.com/flowkit/diagramstore/diagramstore/backend"
	"github.com/flowkit/diagramstore/diagramstore/quota"
	"github.com/flowkit/diagramstore/testutil"
	"github.com/flowkit/diagramstore/types"
)

func TestNewRequiresBackend(t *testing.T) {
	_, err := diagramstore.New(nil)
	assert.Error(t, err)
}

func TestSaveThenLoad(t *testing.T) {
	store, _ := testutil.NewStore(t)

	saved, err := store.Save(testutil.Diagram("Checkout Flow", testutil.WithID("d1")))
	require.NoError(t, err)
	assert.Equal(t, "d1", saved.ID)
	assert.False(t, saved.CreatedAt.IsZero())

	documents, err := store.Load()
	require.NoError(t, err)
	require.Len(t, documents, 1)
	assert.Equal(t, "d1", documents[0].ID)
	assert.Equal(t, "Checkout Flow", documents[0].Name)
	assert.NotNil(t, documents[0].Payload.Icons)
	assert.Len(t, documents[0].Payload.Icons, 0)
}

func TestSave(t *testing.T) {
	t.Run("generates an id when none is given", func(t *testing.T) {
		store, _ := testutil.NewStore(t)
		saved, err := store.Save(testutil.Diagram("Unnamed Flow"))
		require.NoError(t, err)
		assert.NotEmpty(t, saved.ID)
	})

	t.Run("missing name is a validation error", func(t *testing.T) {
		store, _ := testutil.NewStore(t)
		_, err := store.Save(types.Document{})
		var validationErr *types.ValidationError
		assert.ErrorAs(t, err, &validationErr)
	})

	t.Run("nil payload arrays are normalized, not rejected", func(t *testing.T) {
		store, _ := testutil.NewStore(t)
		saved, err := store.Save(types.Document{Name: "Fresh"})
		require.NoError(t, err)

		loaded, err := store.Get(saved.ID)
		require.NoError(t, err)
		assert.NotNil(t, loaded.Payload.Items)
		assert.NotNil(t, loaded.Payload.Views)
		assert.NotNil(t, loaded.Payload.Colors)
	})

	t.Run("existing id replaces in place", func(t *testing.T) {
		store, universe, _ := testutil.LoadUniverse(t)
		before, err := store.Load()
		require.NoError(t, err)

		updated := universe.Checkout
		updated.Name = "Checkout v2"
		_, err = store.Save(updated)
		require.NoError(t, err)

		after, err := store.Load()
		require.NoError(t, err)
		assert.Len(t, after, len(before), "collection length unchanged on overwrite")

		got, err := store.Get(universe.Checkout.ID)
		require.NoError(t, err)
		assert.Equal(t, "Checkout v2", got.Name)
		assert.True(t, got.CreatedAt.Equal(universe.Checkout.CreatedAt), "creation time preserved")
	})

	t.Run("icons are stripped before persistence", func(t *testing.T) {
		store, universe, mem := testutil.LoadUniverse(t)

		raw, ok, err := mem.Get(types.DiagramsKey)
		require.NoError(t, err)
		require.True(t, ok)
		assert.NotContains(t, raw, "isoflow-router")

		got, err := store.Get(universe.Network.ID)
		require.NoError(t, err)
		assert.Len(t, got.Payload.Icons, 0)
	})

	t.Run("non-capacity write failure is reported without retry", func(t *testing.T) {
		flaky := testutil.NewFlaky(backend.NewMemory())
		store, err := diagramstore.New(flaky)
		require.NoError(t, err)

		flaky.FailNextSets(10, errors.New("disk detached"))
		before := flaky.SetCalls()
		_, err = store.Save(testutil.Diagram("Doomed"))

		var saveErr *types.SaveError
		require.ErrorAs(t, err, &saveErr)
		assert.NotErrorIs(t, err, types.ErrStorageFull)
		assert.Equal(t, 1, flaky.SetCalls()-before, "exactly one attempt, no retry")
	})
}

func TestLoadCorruption(t *testing.T) {
	t.Run("corrupt collection yields empty and clears the key", func(t *testing.T) {
		store, mem := testutil.NewStore(t)
		require.NoError(t, mem.Set(types.DiagramsKey, "not-json"))

		documents, err := store.Load()
		require.NoError(t, err)
		assert.Empty(t, documents)

		_, ok, _ := mem.Get(types.DiagramsKey)
		assert.False(t, ok, "corrupt key cleared")
	})

	t.Run("corrupt collection recovers from orphaned keys", func(t *testing.T) {
		store, mem := testutil.NewStore(t)
		require.NoError(t, mem.Set(types.DiagramsKey, "{broken"))
		require.NoError(t, mem.Set(types.LegacyDocumentPrefix+"d9",
			`{"id":"d9","name":"Survivor","data":{"items":[],"views":[],"colors":[]}}`))

		documents, err := store.Load()
		require.NoError(t, err)
		require.Len(t, documents, 1)
		assert.Equal(t, "Survivor", documents[0].Name)

		// The salvage was persisted under the collection key.
		raw, ok, _ := mem.Get(types.DiagramsKey)
		assert.True(t, ok)
		assert.Contains(t, raw, "Survivor")
	})

	t.Run("invalid entries in a readable blob are dropped and rewritten", func(t *testing.T) {
		store, mem := testutil.NewStore(t)
		require.NoError(t, mem.Set(types.DiagramsKey,
			`[{"id":"d1","name":"Good","data":{"items":[],"views":[],"colors":[]}},`+
				`{"id":"d2","data":{"items":[],"views":[],"colors":[]}}]`))

		documents, err := store.Load()
		require.NoError(t, err)
		require.Len(t, documents, 1)
		assert.Equal(t, "d1", documents[0].ID)
	})
}

func TestQuotaRecoveryOnSave(t *testing.T) {
	// Small quota with reclaimable low-priority data: the save triggers
	// capacity, cleanup frees the temp/cache keys, and the retry lands.
	mem := backend.NewMemoryWithQuota(2048)
	require.NoError(t, mem.Set(types.TempPrefix+"autosave", pad(700)))
	require.NoError(t, mem.Set(types.CachePrefix+"thumb", pad(700)))

	var events []quota.Event
	store, err := diagramstore.New(mem,
		diagramstore.WithQuotaObserver(func(e quota.Event) { events = append(events, e) }))
	require.NoError(t, err)

	saved, err := store.Save(testutil.Diagram("Big Diagram",
		testutil.WithItems(`{"id":"a","blob":"`+pad(900)+`"}`)))
	require.NoError(t, err)

	documents, err := store.Load()
	require.NoError(t, err)
	require.Len(t, documents, 1)
	assert.Equal(t, saved.ID, documents[0].ID)

	require.Len(t, events, 1)
	assert.True(t, events[0].RecoveryAttempted)
	assert.Greater(t, events[0].FreedBytes, int64(0))

	keys, _ := mem.Keys()
	assert.NotContains(t, keys, types.TempPrefix+"autosave")
}

func TestQuotaExhaustionSurfacesStorageFull(t *testing.T) {
	mem := backend.NewMemoryWithQuota(64)
	store, err := diagramstore.New(mem)
	require.NoError(t, err)

	_, err = store.Save(testutil.Diagram("Too Big",
		testutil.WithItems(`{"blob":"`+pad(500)+`"}`)))
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrStorageFull)

	var saveErr *types.SaveError
	assert.ErrorAs(t, err, &saveErr)
}

func TestDelete(t *testing.T) {
	store, universe, _ := testutil.LoadUniverse(t)

	require.NoError(t, store.Delete(universe.Empty.ID))
	_, err := store.Get(universe.Empty.ID)
	assert.ErrorIs(t, err, types.ErrNotFound)

	assert.ErrorIs(t, store.Delete("never-existed"), types.ErrNotFound)

	documents, err := store.Load()
	require.NoError(t, err)
	assert.Len(t, documents, 2)
}

func TestLastOpened(t *testing.T) {
	store, universe, _ := testutil.LoadUniverse(t)

	t.Run("unset pointer is nil", func(t *testing.T) {
		pointer, err := store.LastOpened()
		require.NoError(t, err)
		assert.Nil(t, pointer)
	})

	t.Run("set and read back", func(t *testing.T) {
		data := json.RawMessage(`{"items":[{"id":"cart"}]}`)
		require.NoError(t, store.SetLastOpened(universe.Checkout.ID, data))

		pointer, err := store.LastOpened()
		require.NoError(t, err)
		require.NotNil(t, pointer)
		assert.Equal(t, universe.Checkout.ID, pointer.ID)
		assert.JSONEq(t, string(data), string(pointer.Data))
	})

	t.Run("clear removes both keys", func(t *testing.T) {
		require.NoError(t, store.ClearLastOpened())
		pointer, err := store.LastOpened()
		require.NoError(t, err)
		assert.Nil(t, pointer)
	})

	t.Run("empty id is rejected", func(t *testing.T) {
		var validationErr *types.ValidationError
		assert.ErrorAs(t, store.SetLastOpened("", nil), &validationErr)
	})
}

func TestInfo(t *testing.T) {
	store, _, mem := testutil.LoadUniverse(t)
	require.NoError(t, mem.Set(types.CachePrefix+"thumb", pad(100)))

	info, err := store.Info()
	require.NoError(t, err)
	assert.Greater(t, info.DocumentBytes, int64(0))
	assert.Greater(t, info.OtherBytes, int64(99))
	assert.Equal(t, info.UsedBytes, info.DocumentBytes+info.OtherBytes)
	assert.Equal(t, int64(0), info.QuotaBytes)
}

func TestCheckIntegrity(t *testing.T) {
	t.Run("clean store reports valid", func(t *testing.T) {
		store, _, _ := testutil.LoadUniverse(t)
		report, err := store.CheckIntegrity()
		require.NoError(t, err)
		assert.True(t, report.IsValid)
		assert.False(t, report.AutoFixed)
	})

	t.Run("violations are dropped and the cleaned collection rewritten", func(t *testing.T) {
		store, mem := testutil.NewStore(t)
		require.NoError(t, mem.Set(types.DiagramsKey,
			`[{"id":"d1","name":"Good","data":{"items":[],"views":[],"colors":[]}},`+
				`{"id":"d2","name":"Bad","data":{"items":[],"colors":[]}},`+
				`{"id":"d3","name":"Fine","data":{"items":[],"views":[],"colors":[]}}]`))

		// Raw decode keeps schema-invalid entries out already; write the
		// collection through Save to get a mixed state the checker sees.
		report, err := store.CheckIntegrity()
		require.NoError(t, err)
		assert.True(t, report.IsValid || report.AutoFixed)

		documents, err := store.Load()
		require.NoError(t, err)
		assert.Len(t, documents, 2)
	})

	t.Run("malformed last-opened pointer is cleared", func(t *testing.T) {
		store, mem := testutil.NewStore(t)
		require.NoError(t, mem.Set(types.LastOpenedIDKey, "dangling"))

		report, err := store.CheckIntegrity()
		require.NoError(t, err)
		assert.False(t, report.IsValid)
		assert.NotEmpty(t, report.Issues)

		_, ok, _ := mem.Get(types.LastOpenedIDKey)
		assert.False(t, ok)
	})

	t.Run("last-opened pointer with invalid snapshot json is cleared", func(t *testing.T) {
		store, mem := testutil.NewStore(t)
		require.NoError(t, mem.Set(types.LastOpenedIDKey, "d1"))
		require.NoError(t, mem.Set(types.LastOpenedDataKey, `{not valid json`))

		report, err := store.CheckIntegrity()
		require.NoError(t, err)
		assert.False(t, report.IsValid)
		assert.NotEmpty(t, report.Issues)

		_, ok, _ := mem.Get(types.LastOpenedIDKey)
		assert.False(t, ok)
		_, ok, _ = mem.Get(types.LastOpenedDataKey)
		assert.False(t, ok)

		pointer, err := store.LastOpened()
		require.NoError(t, err)
		assert.Nil(t, pointer)
	})
}

func TestBackupFullCycle(t *testing.T) {
	store, mem := testutil.NewStore(t)
	names := []string{"Alpha", "Beta", "Gamma", "Delta", "Epsilon"}
	for _, name := range names {
		_, err := store.Save(testutil.Diagram(name,
			testutil.WithID("id-"+name),
			testutil.WithItems(`{"id":"item-`+name+`"}`)))
		require.NoError(t, err)
	}
	require.NoError(t, store.SetLastOpened("id-Gamma", json.RawMessage(`{"items":[]}`)))

	snapshot, err := store.CreateBackup()
	require.NoError(t, err)
	require.Len(t, snapshot.Data.Diagrams, 5)
	require.NotNil(t, snapshot.Data.LastOpened)

	// Wipe everything, then restore.
	keys, _ := mem.Keys()
	for _, key := range keys {
		require.NoError(t, mem.Remove(key))
	}
	restored, err := store.RestoreBackup(snapshot)
	require.NoError(t, err)
	assert.Equal(t, 5, restored)

	documents, err := store.Load()
	require.NoError(t, err)
	require.Len(t, documents, 5)
	for i, name := range names {
		assert.Equal(t, "id-"+name, documents[i].ID)
		assert.Equal(t, name, documents[i].Name)
		assert.JSONEq(t, `{"id":"item-`+name+`"}`, string(documents[i].Payload.Items[0]))
	}

	pointer, err := store.LastOpened()
	require.NoError(t, err)
	require.NotNil(t, pointer)
	assert.Equal(t, "id-Gamma", pointer.ID)
}

func TestLoadErrorOnBackendFailure(t *testing.T) {
	flaky := testutil.NewFlaky(backend.NewMemory())
	store, err := diagramstore.New(flaky)
	require.NoError(t, err)

	flaky.FailGets(errors.New("io failure"))
	_, err = store.Load()
	var loadErr *types.LoadError
	assert.ErrorAs(t, err, &loadErr)
}

func pad(n int) string {
	out := make([]byte, n)
	for i := range out {
		out[i] = 'x'
	}
	return string(out)
}
