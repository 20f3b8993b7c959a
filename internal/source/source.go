// Package source implements the producer side of the pipeline: each
// Source polls an upstream on a timer and pushes realized Events onto
// the raw queue, grounded on infobserve/sources/*.py's
// fetch_events/fetch_events_scheduled split.
package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/arc-self/infosweep/internal/model"
	"github.com/arc-self/infosweep/internal/queue"
)

// ErrBadCredentials mirrors infobserve's BadCredentials exception,
// raised when an upstream API reports an authentication failure.
var ErrBadCredentials = errors.New("source: bad credentials")

// ErrUnknownSourceType is returned by the Scheduler's registry when a
// configured source tag has no registered constructor, mirroring
// SourceFactory.get_source's ValueError(config.get("type")).
var ErrUnknownSourceType = errors.New("source: unknown source type")

// Source is the producer contract every upstream implements.
type Source interface {
	// Name returns the configured source tag, used for logging and
	// index-cache partitioning.
	Name() string
	// FetchEvents performs one poll cycle and returns the realized
	// events ready for matching.
	FetchEvents(ctx context.Context) ([]model.Event, error)
	// Interval returns the sleep duration between poll cycles.
	Interval() time.Duration
}

// SinglePass is implemented by sources whose whole feed is exhausted by
// one FetchEvents call — CSV replay, not a live poll — so the scheduler
// can run them once and let the task end instead of driving them
// through RunScheduled's infinite loop.
type SinglePass interface {
	Source
	SinglePass()
}

// RunOnce drives exactly one fetch-and-enqueue cycle, the Go analogue
// of infobserve's fetch_events without fetch_events_scheduled's sleep
// wrapper — used for SinglePass sources like CSV replay, where the task
// is expected to end once every row has been enqueued.
func RunOnce(ctx context.Context, src Source, out queue.Queue, logger *zap.Logger) error {
	events, err := src.FetchEvents(ctx)
	if err != nil {
		return fmt.Errorf("source: single-pass fetch failed: %w", err)
	}
	for _, ev := range events {
		if !ev.IsValid() {
			continue
		}
		if err := out.PutBlocking(ctx, ev); err != nil {
			return ctx.Err()
		}
	}
	logger.Info("source: single-pass run complete", zap.String("source", src.Name()), zap.Int("enqueued", len(events)))
	return nil
}

// RunScheduled drives one Source's poll loop until ctx is canceled,
// the Go analogue of fetch_events_scheduled: fetch, enqueue each
// event, sleep, repeat. Transport errors are logged and the cycle
// retried after a capped exponential backoff rather than the fixed
// interval, a gap in the teacher's own scan_poller.go filled here
// because a persistently unreachable upstream would otherwise hammer it
// every single interval tick (DESIGN.md Open Question #3).
func RunScheduled(ctx context.Context, src Source, out queue.Queue, logger *zap.Logger) error {
	consecutiveErrors := 0
	for {
		events, err := src.FetchEvents(ctx)
		if err != nil {
			logger.Warn("source: fetch cycle failed, will retry", zap.String("source", src.Name()), zap.Error(err))
			consecutiveErrors++
		} else {
			consecutiveErrors = 0
			for _, ev := range events {
				if !ev.IsValid() {
					continue
				}
				if err := out.PutBlocking(ctx, ev); err != nil {
					return ctx.Err()
				}
			}
		}

		delay := nextDelay(src.Interval(), consecutiveErrors)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

// nextDelay returns the base interval on a clean cycle, or a capped
// exponential backoff (base * 2^errs, capped at 10x base, +/-20% jitter)
// after consecutive failures.
func nextDelay(base time.Duration, errs int) time.Duration {
	if errs == 0 {
		return base
	}
	backoff := base
	for i := 0; i < errs && backoff < base*10; i++ {
		backoff *= 2
	}
	if backoff > base*10 {
		backoff = base * 10
	}
	jitter := time.Duration(rand.Int63n(int64(backoff) / 5))
	return backoff + jitter
}

// filterCached returns ids not already present in cached, preserving
// input order — the Go analogue of
// `filter(lambda elem: elem["id"] not in cached_ids, gists)`.
func filterCached[T any](items []T, idOf func(T) string, cached map[string]struct{}) []T {
	out := make([]T, 0, len(items))
	for _, item := range items {
		if _, skip := cached[idOf(item)]; !skip {
			out = append(out, item)
		}
	}
	return out
}

// badCredentialsBody is the shape GitHub returns instead of a JSON
// array when authentication fails, mirroring gist.py's
// `isinstance(gists, dict) and gists["message"] == BAD_CREDENTIALS`
// check.
type badCredentialsBody struct {
	Message string `json:"message"`
}

const badCredentialsMessage = "Bad credentials"

// unmarshalOrBadCredentials inspects body for GitHub's authentication
// failure shape before the caller attempts to decode it as the
// expected array/object. Any other object shape is left to the
// caller's own decode to fail naturally.
func unmarshalOrBadCredentials(body []byte) error {
	var probe badCredentialsBody
	if err := json.Unmarshal(body, &probe); err == nil && probe.Message == badCredentialsMessage {
		return ErrBadCredentials
	}
	return nil
}
