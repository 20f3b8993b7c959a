package retention_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/arc-self/infosweep/internal/retention"
)

func TestJob_Start_InvalidScheduleFails(t *testing.T) {
	job := retention.New(nil, 24*time.Hour, zap.NewNop())
	err := job.Start("not-a-cron-expression")
	assert.Error(t, err)
}

func TestJob_StartAndStop(t *testing.T) {
	job := retention.New(nil, 24*time.Hour, zap.NewNop())
	// A once-a-year schedule never fires during the test, so Stop never
	// has to wait on an in-flight sweep touching the nil pool.
	require.NoError(t, job.Start("0 0 1 1 *"))
	job.Stop()
}
