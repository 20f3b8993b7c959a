package scheduler_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/arc-self/infosweep/internal/queue"
	"github.com/arc-self/infosweep/internal/scheduler"
	"github.com/arc-self/infosweep/internal/source"
)

func TestScheduler_Build_UnknownTypeFails(t *testing.T) {
	s := scheduler.New(queue.NewSimple(1), zap.NewNop())
	scheduler.RegisterDefaults(s)

	err := s.Build([]scheduler.SourceSpec{{Type: "not-a-real-source"}}, scheduler.Deps{Logger: zap.NewNop()})
	require.Error(t, err)
	assert.ErrorIs(t, err, source.ErrUnknownSourceType)
}

func TestScheduler_Build_RegisteredTypesSucceed(t *testing.T) {
	s := scheduler.New(queue.NewSimple(1), zap.NewNop())
	scheduler.RegisterDefaults(s)

	specs := []scheduler.SourceSpec{
		{Type: "gist", TimeoutSec: 30},
		{Type: "pastebin", TimeoutSec: 30},
		{Type: "github-public-events", TimeoutSec: 30},
		{Type: "csv", Path: "/tmp/replay.csv"},
	}
	err := s.Build(specs, scheduler.Deps{Logger: zap.NewNop()})
	require.NoError(t, err)
}

func TestScheduler_Start_RunsCSVOnceNotOnAPollLoop(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "replay.csv")
	contents := "1,ignored,2024-01-01T00:00:00Z,dev,main.go,aGVsbG8=\n"
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	q := queue.NewSimple(4)
	s := scheduler.New(q, zap.NewNop())
	scheduler.RegisterDefaults(s)
	require.NoError(t, s.Build([]scheduler.SourceSpec{{Type: "csv", Path: path}}, scheduler.Deps{Logger: zap.NewNop()}))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	s.Start(ctx)

	item, err := q.GetBlocking(ctx)
	require.NoError(t, err)
	assert.Equal(t, "main.go", item.(interface{ Filename() string }).Filename())

	// Single-pass: the one row enqueued is all there ever will be,
	// unlike a polled source that would keep refilling the queue.
	assert.Eventually(t, func() bool { return q.Depth() == 0 }, time.Second, 10*time.Millisecond)
}

func TestScheduler_Register_CustomBuilder(t *testing.T) {
	s := scheduler.New(queue.NewSimple(1), zap.NewNop())
	called := false
	s.Register("custom", func(spec scheduler.SourceSpec, deps scheduler.Deps) (source.Source, error) {
		called = true
		return source.NewCSV(source.CSVConfig{Path: spec.Path}, deps.Logger), nil
	})

	require.NoError(t, s.Build([]scheduler.SourceSpec{{Type: "custom", Path: "x.csv"}}, scheduler.Deps{Logger: zap.NewNop()}))
	assert.True(t, called)
}
