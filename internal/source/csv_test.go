package source_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/arc-self/infosweep/internal/source"
)

func TestCSV_FetchEvents_DecodesValidRowsAndSkipsShortOnes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "replay.csv")
	contents := "1,ignored,2024-01-01T00:00:00Z,dev,main.go,aGVsbG8=\n" +
		"2,ignored\n" +
		"3,ignored,2024-01-02T00:00:00Z,dev,bad.txt,not-base64!!\n"
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	csvSrc := source.NewCSV(source.CSVConfig{Path: path}, zap.NewNop())
	events, err := csvSrc.FetchEvents(context.Background())
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "main.go", events[0].Filename())
	assert.Equal(t, []byte("hello"), events[0].Content())
}

func TestCSV_FetchEvents_MissingFile(t *testing.T) {
	csvSrc := source.NewCSV(source.CSVConfig{Path: "/no/such/file.csv"}, zap.NewNop())
	_, err := csvSrc.FetchEvents(context.Background())
	assert.Error(t, err)
}
