package backup_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowkit/diagramstore/diagramstore/backend"
	"github.com/flowkit/diagramstore/diagramstore/backup"
	"github.com/flowkit/diagramstore/types"
)

func TestRecoverStorage(t *testing.T) {
	t.Run("reconstructs from orphaned document keys", func(t *testing.T) {
		mem := backend.NewMemory()
		require.NoError(t, mem.Set(types.LegacyDocumentPrefix+"d1",
			`{"id":"d1","name":"Salvaged","data":{"items":[],"views":[],"colors":[]}}`))
		require.NoError(t, mem.Set(types.LegacyDocumentPrefix+"d2",
			`{"id":"d2","name":"Also Salvaged","data":{"items":[{"id":"a"}],"views":[],"colors":[]}}`))
		require.NoError(t, mem.Set(types.TempPrefix+"noise", "x"))

		service := backup.NewService(mem, nil)
		result := service.RecoverStorage()

		assert.Equal(t, 2, result.RecoveredCount)
		ids := []string{result.Documents[0].ID, result.Documents[1].ID}
		assert.ElementsMatch(t, []string{"d1", "d2"}, ids)
	})

	t.Run("skips unparseable and invalid orphans", func(t *testing.T) {
		mem := backend.NewMemory()
		require.NoError(t, mem.Set(types.LegacyDocumentPrefix+"good",
			`{"id":"good","name":"Fine","data":{"items":[],"views":[],"colors":[]}}`))
		require.NoError(t, mem.Set(types.LegacyDocumentPrefix+"garbage", "{not json"))
		require.NoError(t, mem.Set(types.LegacyDocumentPrefix+"noname",
			`{"id":"noname","data":{"items":[],"views":[],"colors":[]}}`))

		service := backup.NewService(mem, nil)
		result := service.RecoverStorage()

		require.Equal(t, 1, result.RecoveredCount)
		assert.Equal(t, "good", result.Documents[0].ID)
	})

	t.Run("duplicate ids keep the first seen", func(t *testing.T) {
		mem := backend.NewMemory()
		require.NoError(t, mem.Set(types.LegacyDocumentPrefix+"a",
			`{"id":"dup","name":"First","data":{"items":[],"views":[],"colors":[]}}`))
		require.NoError(t, mem.Set(types.LegacyDocumentPrefix+"b",
			`{"id":"dup","name":"Second","data":{"items":[],"views":[],"colors":[]}}`))

		service := backup.NewService(mem, nil)
		result := service.RecoverStorage()
		assert.Equal(t, 1, result.RecoveredCount)
	})

	t.Run("empty store yields empty result", func(t *testing.T) {
		service := backup.NewService(backend.NewMemory(), nil)
		result := service.RecoverStorage()
		assert.Equal(t, 0, result.RecoveredCount)
		assert.NotNil(t, result.Documents)
		assert.Empty(t, result.Documents)
	})
}
