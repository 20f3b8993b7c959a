// Package scheduler builds and launches the configured Sources,
// grounded on infobserve/sources/factory.py's SourceFactory registry
// and infobserve/schedulers/source.py's per-source task scheduling.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/arc-self/infosweep/internal/httpapi"
	"github.com/arc-self/infosweep/internal/queue"
	"github.com/arc-self/infosweep/internal/source"
)

// SourceSpec is one entry of the pipeline's configured `sources:` list.
type SourceSpec struct {
	Type       string
	OAuthToken string
	Username   string
	DevKey     string
	Path       string
	TimeoutSec int
	FanoutCap  int
}

// Builder constructs a source.Source from its spec. Registered per
// source type, mirroring SourceFactory._sources.
type Builder func(spec SourceSpec, deps Deps) (source.Source, error)

// Deps carries the shared collaborators every source constructor needs.
type Deps struct {
	Pool   *pgxpool.Pool
	Logger *zap.Logger
}

// Scheduler owns the registry and the set of configured sources.
type Scheduler struct {
	registry map[string]Builder
	sources  []source.Source
	queue    queue.Queue
	logger   *zap.Logger
}

func New(q queue.Queue, logger *zap.Logger) *Scheduler {
	return &Scheduler{registry: make(map[string]Builder), queue: q, logger: logger}
}

// Register adds a source type to the registry, mirroring
// SourceFactory.register_source.
func (s *Scheduler) Register(sourceType string, b Builder) {
	s.registry[sourceType] = b
}

// Build instantiates every configured source, failing fast on an
// unregistered type exactly like SourceFactory.get_source's ValueError.
func (s *Scheduler) Build(specs []SourceSpec, deps Deps) error {
	for _, spec := range specs {
		builder, ok := s.registry[spec.Type]
		if !ok {
			return fmt.Errorf("%w: %q", source.ErrUnknownSourceType, spec.Type)
		}
		s.logger.Debug("scheduler: configured source", zap.String("type", spec.Type))
		src, err := builder(spec, deps)
		if err != nil {
			return fmt.Errorf("scheduler: build %q: %w", spec.Type, err)
		}
		s.sources = append(s.sources, src)
	}
	return nil
}

// Start launches one goroutine per configured source, each running its
// own poll loop until ctx is canceled, mirroring
// SourceScheduler.schedule's per-source loop.create_task call.
func (s *Scheduler) Start(ctx context.Context) {
	for _, src := range s.sources {
		src := src
		s.logger.Debug("scheduler: scheduling source", zap.String("name", src.Name()))
		if _, oneShot := src.(source.SinglePass); oneShot {
			go func() {
				if err := source.RunOnce(ctx, src, s.queue, s.logger); err != nil && ctx.Err() == nil {
					s.logger.Error("scheduler: single-pass source failed", zap.String("name", src.Name()), zap.Error(err))
				}
			}()
			continue
		}
		go func() {
			if err := source.RunScheduled(ctx, src, s.queue, s.logger); err != nil && ctx.Err() == nil {
				s.logger.Error("scheduler: source loop exited", zap.String("name", src.Name()), zap.Error(err))
			}
		}()
	}
}

// DefaultSession builds the shared httpapi.Session a default GitHub-API
// source builder uses.
func DefaultSession(timeoutSec int, oauth string) httpapi.Session {
	timeout := time.Duration(timeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	opts := []httpapi.Option{httpapi.WithAccept("application/vnd.github.v3+json")}
	if oauth != "" {
		opts = append(opts, httpapi.WithOAuthToken(oauth))
	}
	return httpapi.NewClient(timeout, opts...)
}
