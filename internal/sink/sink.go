// Package sink consumes ProcessedEvents off the processed queue and
// persists them, grounded on infobserve/loaders/postgres.py's
// insert-event-then-matches-then-ascii_match order, and on
// abc-service/internal/service/item_service.go's pool.Begin/tx.Rollback/
// tx.Commit transaction idiom.
package sink

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/arc-self/infosweep/internal/model"
	"github.com/arc-self/infosweep/internal/queue"
	"github.com/arc-self/infosweep/internal/store"
)

// Notifier is the optional fanout hook invoked after a successful
// commit. A nil Notifier means no fanout is configured.
type Notifier interface {
	NotifyMatch(ctx context.Context, source string, eventID int64, rules []string) error
}

// Loader consumes ProcessedEvents off a queue and persists them
// transactionally, one event (plus its matches and ascii matches) per
// transaction.
type Loader struct {
	pool     *pgxpool.Pool
	consume  queue.Queue
	logger   *zap.Logger
	notifier Notifier
}

func NewLoader(pool *pgxpool.Pool, consume queue.Queue, logger *zap.Logger, notifier Notifier) *Loader {
	return &Loader{pool: pool, consume: consume, logger: logger, notifier: notifier}
}

// Run consumes until ctx is canceled. Each item's persistence failure is
// logged and the item dropped — matching the upstream's fire-and-forget
// consumer loop, which never stops on a single bad insert.
func (l *Loader) Run(ctx context.Context) error {
	for {
		item, err := l.consume.GetBlocking(ctx)
		if err != nil {
			return ctx.Err()
		}
		processed, ok := item.(*model.ProcessedEvent)
		if !ok {
			l.logger.Error("sink: unexpected item type on processed queue")
			l.consume.Notify()
			continue
		}
		if err := l.persist(ctx, processed); err != nil {
			l.logger.Error("sink: persist failed", zap.Error(err), zap.String("source", processed.Source))
		}
		l.consume.Notify()
	}
}

func (l *Loader) persist(ctx context.Context, processed *model.ProcessedEvent) error {
	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("sink: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	qtx := store.New(tx)

	eventID, err := qtx.InsertEvent(ctx, store.InsertEventParams{
		Source:         processed.Source,
		RawContent:     processed.RawContent,
		Filename:       processed.EventFilename,
		Creator:        processed.EventCreator,
		TimeCreated:    processed.TimeCreated,
		TimeDiscovered: processed.TimeDiscovered,
	})
	if err != nil {
		return fmt.Errorf("sink: insert event: %w", err)
	}
	processed.SetEventID(eventID)

	for _, match := range processed.Matches {
		matchID, err := qtx.InsertMatch(ctx, store.InsertMatchParams{
			EventID:     match.EventID,
			RuleMatched: match.RuleMatched,
			TagsMatched: match.TagsMatched,
		})
		if err != nil {
			return fmt.Errorf("sink: insert match: %w", err)
		}
		match.SetMatchID(matchID)

		for _, am := range match.AsciiMatches {
			if _, err := qtx.InsertAsciiMatch(ctx, store.InsertAsciiMatchParams{
				MatchID:       am.MatchID,
				MatchedString: am.MatchedString,
			}); err != nil {
				return fmt.Errorf("sink: insert ascii match: %w", err)
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("sink: commit: %w", err)
	}

	l.logger.Debug("sink: inserted event",
		zap.String("source", processed.Source),
		zap.Strings("rules_matched", processed.RulesMatched()),
	)

	if l.notifier != nil {
		if err := l.notifier.NotifyMatch(ctx, processed.Source, eventID, processed.RulesMatched()); err != nil {
			l.logger.Warn("sink: match notify failed", zap.Error(err))
		}
	}

	return nil
}
