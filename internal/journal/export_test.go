package journal

import (
	"bytes"
	"encoding/csv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trade-journal-go/internal/storage"
)

func TestWriteCSV(t *testing.T) {
	store, _ := setupStore(t, storage.NewMemory())
	_, err := store.Add(aaplInput())
	require.NoError(t, err)
	open := aaplInput()
	open.ExitPrice = nil
	open.Notes = "still running, watch 155"
	_, err = store.Add(open)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, store.All()))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)

	header := records[0]
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[name] = i
	}

	closed := records[1]
	assert.Equal(t, "trade-1", closed[col["id"]])
	assert.Equal(t, "2025-03-14", closed[col["date"]])
	assert.Equal(t, "152", closed[col["exit"]])
	assert.Equal(t, "target_hit", closed[col["outcome"]])
	assert.Equal(t, "25", closed[col["sl_amount"]])
	assert.Equal(t, "15", closed[col["pnl"]])

	running := records[2]
	assert.Equal(t, "", running[col["exit"]])
	assert.Equal(t, "", running[col["pnl"]])
	assert.Equal(t, "open", running[col["outcome"]])
	assert.Equal(t, "still running, watch 155", running[col["notes"]])
}
