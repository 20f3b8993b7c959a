package source

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/arc-self/infosweep/internal/model"
)

// CSV replays previously captured events from a local archive file —
// useful for backfill and deterministic testing — grounded on
// infobserve/sources/csv.py. Unlike the network sources, a single
// FetchEvents call reads and decodes the whole file; the upstream's
// per-row KeyError tolerance becomes a per-row column-count check here,
// and the upstream's stray `event_list.append(None)` (which would crash
// any consumer dereferencing it) is not replicated.
type CSV struct {
	name     string
	path     string
	interval time.Duration
	logger   *zap.Logger
}

type CSVConfig struct {
	Path    string
	Timeout time.Duration
}

func NewCSV(cfg CSVConfig, logger *zap.Logger) *CSV {
	return &CSV{name: "csv", path: cfg.Path, interval: cfg.Timeout, logger: logger}
}

func (c *CSV) Name() string            { return c.name }
func (c *CSV) Interval() time.Duration { return c.interval }

// SinglePass marks CSV as a one-shot replay source: the scheduler runs
// FetchEvents exactly once rather than polling it forever.
func (c *CSV) SinglePass() {}

// Row layout, matching infobserve/events/csv.py's positional unpacking:
// [0]=id [1]=unused [2]=created_at [3]=creator [4]=filename [5]=content(base64)
const (
	csvColID = iota
	csvColUnused
	csvColCreatedAt
	csvColCreator
	csvColFilename
	csvColContent
	csvColCount
)

func (c *CSV) FetchEvents(ctx context.Context) ([]model.Event, error) {
	f, err := os.Open(c.path)
	if err != nil {
		return nil, fmt.Errorf("source/csv: open: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	var out []model.Event
	for {
		row, err := reader.Read()
		if err != nil {
			break
		}
		if len(row) < csvColCount {
			c.logger.Error("source/csv: short row, skipping")
			continue
		}
		ev := model.NewCsvEvent(row[csvColID], row[csvColCreatedAt], row[csvColCreator], row[csvColFilename], row[csvColContent])
		if err := ev.Realize(ctx, nil); err != nil {
			return nil, fmt.Errorf("source/csv: realize: %w", err)
		}
		if ev.IsValid() {
			out = append(out, ev)
		}
	}
	c.logger.Info("source/csv: enqueued all rows", zap.Int("count", len(out)))
	return out, nil
}
