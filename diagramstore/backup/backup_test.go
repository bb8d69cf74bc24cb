package backup_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowkit/diagramstore/diagramstore/backend"
	"github.com/flowkit/diagramstore/diagramstore/backup"
	"github.com/flowkit/diagramstore/diagramstore/codec"
	"github.com/flowkit/diagramstore/testutil"
	"github.com/flowkit/diagramstore/types"
)

func TestCreate(t *testing.T) {
	docs := []types.Document{
		testutil.Diagram("One", testutil.WithID("d1")),
		testutil.Diagram("Two", testutil.WithID("d2")),
	}
	lp := &types.LastOpened{ID: "d1", Data: json.RawMessage(`{"items":[]}`)}
	info := types.StorageInfo{UsedBytes: 128, DocumentBytes: 100, OtherBytes: 28}

	snapshot := backup.Create(docs, lp, info)

	assert.Equal(t, types.BackupFormatVersion, snapshot.Version)
	assert.NotZero(t, snapshot.Timestamp)
	assert.Equal(t, docs, snapshot.Data.Diagrams)
	assert.Equal(t, lp, snapshot.Data.LastOpened)
	assert.Equal(t, info, snapshot.Data.StorageInfo)

	// Construction is pure: mutating the snapshot leaves the input alone.
	snapshot.Data.Diagrams[0].Name = "Mutated"
	assert.Equal(t, "One", docs[0].Name)
}

func TestRestore(t *testing.T) {
	t.Run("round trip reproduces the collection", func(t *testing.T) {
		mem := backend.NewMemory()
		service := backup.NewService(mem, nil)

		docs := make([]types.Document, 0, 5)
		for _, name := range []string{"A", "B", "C", "D", "E"} {
			docs = append(docs, testutil.Diagram(name,
				testutil.WithID("id-"+name),
				testutil.WithItems(`{"id":"item-`+name+`"}`)))
		}
		lp := &types.LastOpened{ID: "id-C", Data: json.RawMessage(`{"items":[]}`)}
		snapshot := backup.Create(docs, lp, types.StorageInfo{})

		restored, err := service.Restore(snapshot)
		require.NoError(t, err)
		assert.Equal(t, 5, restored)

		raw, ok, err := mem.Get(types.DiagramsKey)
		require.NoError(t, err)
		require.True(t, ok)
		result := codec.Decode(raw, true)
		require.Len(t, result.Documents, 5)
		for i, doc := range result.Documents {
			assert.Equal(t, docs[i].ID, doc.ID)
			assert.Equal(t, docs[i].Name, doc.Name)
			assert.Equal(t, docs[i].Payload.Items, doc.Payload.Items)
		}

		id, ok, _ := mem.Get(types.LastOpenedIDKey)
		assert.True(t, ok)
		assert.Equal(t, "id-C", id)
		data, ok, _ := mem.Get(types.LastOpenedDataKey)
		assert.True(t, ok)
		assert.JSONEq(t, `{"items":[]}`, data)
	})

	t.Run("restore clears the namespace first", func(t *testing.T) {
		mem := backend.NewMemory()
		require.NoError(t, mem.Set(types.TempPrefix+"stale", "x"))
		require.NoError(t, mem.Set(types.LastOpenedIDKey, "gone"))
		require.NoError(t, mem.Set("foreign.key", "kept"))

		service := backup.NewService(mem, nil)
		snapshot := backup.Create([]types.Document{testutil.Diagram("Only", testutil.WithID("d1"))}, nil, types.StorageInfo{})
		_, err := service.Restore(snapshot)
		require.NoError(t, err)

		keys, _ := mem.Keys()
		assert.NotContains(t, keys, types.TempPrefix+"stale")
		assert.NotContains(t, keys, types.LastOpenedIDKey)
		assert.Contains(t, keys, "foreign.key")
	})

	t.Run("invalid snapshot is rejected without touching storage", func(t *testing.T) {
		mem := backend.NewMemory()
		require.NoError(t, mem.Set(types.DiagramsKey, `[]`))
		service := backup.NewService(mem, nil)

		cases := map[string]types.BackupSnapshot{
			"wrong version": {
				Version: "0.9",
				Data:    types.BackupData{Diagrams: []types.Document{}},
			},
			"missing collection": {
				Version: types.BackupFormatVersion,
			},
			"invalid document": {
				Version: types.BackupFormatVersion,
				Data: types.BackupData{Diagrams: []types.Document{
					testutil.Diagram("Bad", testutil.WithID("d1"), testutil.Invalid("colors")),
				}},
			},
		}
		for name, snapshot := range cases {
			t.Run(name, func(t *testing.T) {
				_, err := service.Restore(snapshot)
				var restoreErr *types.RestoreError
				require.ErrorAs(t, err, &restoreErr)

				// Existing data untouched.
				value, ok, _ := mem.Get(types.DiagramsKey)
				assert.True(t, ok)
				assert.Equal(t, `[]`, value)
			})
		}
	})

	t.Run("pointer without a payload snapshot is not restored", func(t *testing.T) {
		mem := backend.NewMemory()
		service := backup.NewService(mem, nil)
		snapshot := backup.Create([]types.Document{testutil.Diagram("Only", testutil.WithID("d1"))},
			&types.LastOpened{ID: "d1"}, types.StorageInfo{})

		_, err := service.Restore(snapshot)
		require.NoError(t, err)

		_, ok, _ := mem.Get(types.LastOpenedIDKey)
		assert.False(t, ok)
		_, ok, _ = mem.Get(types.LastOpenedDataKey)
		assert.False(t, ok)
	})

	t.Run("pointer with malformed snapshot is not restored", func(t *testing.T) {
		mem := backend.NewMemory()
		service := backup.NewService(mem, nil)
		snapshot := backup.Create([]types.Document{testutil.Diagram("Only", testutil.WithID("d1"))},
			&types.LastOpened{ID: "d1", Data: json.RawMessage(`{broken`)}, types.StorageInfo{})

		_, err := service.Restore(snapshot)
		require.NoError(t, err)

		_, ok, _ := mem.Get(types.LastOpenedIDKey)
		assert.False(t, ok)
	})

	t.Run("restore is idempotent", func(t *testing.T) {
		mem := backend.NewMemory()
		service := backup.NewService(mem, nil)
		snapshot := backup.Create([]types.Document{testutil.Diagram("Only", testutil.WithID("d1"))}, nil, types.StorageInfo{})

		_, err := service.Restore(snapshot)
		require.NoError(t, err)
		first, _, _ := mem.Get(types.DiagramsKey)

		_, err = service.Restore(snapshot)
		require.NoError(t, err)
		second, _, _ := mem.Get(types.DiagramsKey)
		assert.Equal(t, first, second)
	})
}

func TestEncodeDecodeFile(t *testing.T) {
	snapshot := backup.Create([]types.Document{testutil.Diagram("Only", testutil.WithID("d1"))},
		nil, types.StorageInfo{UsedBytes: 10})

	data, err := backup.Encode(snapshot)
	require.NoError(t, err)

	decoded, err := backup.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, snapshot.Version, decoded.Version)
	assert.Equal(t, snapshot.Timestamp, decoded.Timestamp)
	require.Len(t, decoded.Data.Diagrams, 1)
	assert.Equal(t, "d1", decoded.Data.Diagrams[0].ID)

	_, err = backup.Decode([]byte("{broken"))
	var restoreErr *types.RestoreError
	assert.ErrorAs(t, err, &restoreErr)
}
