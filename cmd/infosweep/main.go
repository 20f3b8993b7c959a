// Command infosweep runs the content-harvesting pipeline: one goroutine
// per configured source feeding a bounded raw queue, a rule-matching
// consumer forwarding hits to a processed queue, a sink loader
// persisting matches to Postgres, plus the admin HTTP surface and the
// retention cron job. Wiring is grounded on
// discovery-service/cmd/api/main.go's Vault-then-pool-then-poller-then-
// echo-then-signal.Notify shutdown sequence (OTel dropped per DESIGN.md).
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/arc-self/infosweep/internal/adminapi"
	"github.com/arc-self/infosweep/internal/config"
	"github.com/arc-self/infosweep/internal/eventbus"
	"github.com/arc-self/infosweep/internal/matcher"
	"github.com/arc-self/infosweep/internal/model"
	"github.com/arc-self/infosweep/internal/queue"
	"github.com/arc-self/infosweep/internal/retention"
	"github.com/arc-self/infosweep/internal/ruleengine"
	"github.com/arc-self/infosweep/internal/scheduler"
	"github.com/arc-self/infosweep/internal/secrets"
	"github.com/arc-self/infosweep/internal/sink"
	"github.com/arc-self/infosweep/internal/store"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "infosweep: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := pflag.StringP("config", "c", "config.yaml", "path to the pipeline config file")
	pflag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("logger init: %w", err)
	}
	defer logger.Sync()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("config load: %w", err)
	}

	dsn := cfg.Postgres.DSN
	if cfg.Vault != nil && cfg.Vault.Address != "" {
		mgr, err := secrets.NewManager(cfg.Vault.Address, cfg.Vault.Token)
		if err != nil {
			return fmt.Errorf("vault connect: %w", err)
		}
		creds, err := mgr.LoadCredentials(cfg.Vault.SecretPath)
		if err != nil {
			return fmt.Errorf("vault load credentials: %w", err)
		}
		if creds.PostgresDSN != "" {
			dsn = creds.PostgresDSN
		}
		applyVaultCredentials(cfg, creds)
	}

	rootCtx, rootCancel := context.WithCancel(context.Background())
	defer rootCancel()

	pool, err := store.NewPool(rootCtx, dsn)
	if err != nil {
		return fmt.Errorf("postgres connect: %w", err)
	}
	defer pool.Close()
	if err := store.Migrate(rootCtx, pool); err != nil {
		return fmt.Errorf("postgres migrate: %w", err)
	}
	logger.Info("infosweep: connected to postgres")

	var notifier sink.Notifier
	if cfg.Nats != nil && cfg.Nats.URL != "" {
		bus, err := eventbus.NewClient(cfg.Nats.URL, logger)
		if err != nil {
			return fmt.Errorf("nats connect: %w", err)
		}
		defer bus.Close()
		if err := bus.ProvisionStreams(); err != nil {
			return fmt.Errorf("nats provision streams: %w", err)
		}
		notifier = bus
	}

	rawQueue, sinkQueue := buildQueues(cfg, logger)

	rulePaths, err := ruleengine.ResolveRuleFiles(cfg.Rules.Paths)
	if err != nil {
		return fmt.Errorf("resolve rule files: %w", err)
	}
	rules, err := ruleengine.LoadRules(rulePaths)
	if err != nil {
		return fmt.Errorf("load rules: %w", err)
	}
	engine, err := ruleengine.Compile(rules, cfg.Rules.ExternalVars)
	if err != nil {
		return fmt.Errorf("compile rules: %w", err)
	}
	logger.Info("infosweep: rule engine compiled", zap.Int("rules", len(rules)))

	sched := scheduler.New(rawQueue, logger)
	scheduler.RegisterDefaults(sched)

	specs := make([]scheduler.SourceSpec, 0, len(cfg.Sources))
	for _, s := range cfg.Sources {
		specs = append(specs, scheduler.SourceSpec{
			Type:       s.Type,
			OAuthToken: s.OAuth,
			Username:   s.Username,
			DevKey:     s.DevKey,
			Path:       s.Path,
			TimeoutSec: s.TimeoutSec,
			FanoutCap:  s.FanoutCap,
		})
	}
	if err := sched.Build(specs, scheduler.Deps{Pool: pool, Logger: logger}); err != nil {
		return fmt.Errorf("scheduler build: %w", err)
	}

	consumer := matcher.NewConsumer(rawQueue, sinkQueue, engine, logger)
	loader := sink.NewLoader(pool, sinkQueue, logger, notifier)

	sched.Start(rootCtx)
	go func() {
		if err := consumer.Run(rootCtx); err != nil && rootCtx.Err() == nil {
			logger.Error("infosweep: matcher exited", zap.Error(err))
		}
	}()
	go func() {
		if err := loader.Run(rootCtx); err != nil && rootCtx.Err() == nil {
			logger.Error("infosweep: sink exited", zap.Error(err))
		}
	}()

	retentionJob := retention.New(pool, time.Duration(cfg.Retention.MaxAgeDays)*24*time.Hour, logger)
	if err := retentionJob.Start(cfg.Retention.Schedule); err != nil {
		return fmt.Errorf("retention start: %w", err)
	}
	defer retentionJob.Stop()

	reloader := &ruleReloader{paths: cfg.Rules.Paths, extVars: cfg.Rules.ExternalVars, consumer: consumer, logger: logger}
	admin := adminapi.New(consumer, reloader, logger, rootCancel)
	admin.Start(rootCtx, cfg.Admin.ListenAddr)
	logger.Info("infosweep: admin API listening", zap.String("addr", cfg.Admin.ListenAddr))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
	logger.Info("infosweep: shutdown signal received")

	if err := consumer.Stop(context.Background(), false); err != nil {
		logger.Error("infosweep: matcher stop failed", zap.Error(err))
	}
	rootCancel()
	logger.Info("infosweep: shutdown complete")
	return nil
}

// processedEventCodec (de)serializes *model.ProcessedEvent for the
// Redis-backed sink queue. The raw (source -> matcher) queue always
// uses the in-process Simple backend: model.Event is an interface
// spanning several concrete types (GistEvent, CommitFileEvent,
// PasteEvent, CsvEvent), and round-tripping it through a broker would
// need a type registry nothing in the retrieved pack models — the
// processed queue's single concrete struct has no such problem.
var processedEventCodec = queue.Codec{
	Encode: func(item any) ([]byte, error) {
		pe, ok := item.(*model.ProcessedEvent)
		if !ok {
			return nil, fmt.Errorf("processed event codec: unexpected type %T", item)
		}
		return json.Marshal(pe)
	},
	Decode: func(data []byte) (any, error) {
		var pe model.ProcessedEvent
		if err := json.Unmarshal(data, &pe); err != nil {
			return nil, err
		}
		return &pe, nil
	},
}

func buildQueues(cfg *config.Config, logger *zap.Logger) (queue.Queue, queue.Queue) {
	rawQueue := queue.NewSimple(cfg.Queue.RawMaxSize)

	if cfg.Queue.Backend == "redis" && cfg.Redis != nil {
		client := redis.NewClient(&redis.Options{
			Addr: fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
		})
		logger.Info("infosweep: sink queue backed by redis", zap.String("addr", client.Options().Addr))
		return rawQueue, queue.NewRedis(client, "infosweep:sink", cfg.Queue.SinkMaxSize, processedEventCodec)
	}
	return rawQueue, queue.NewSimple(cfg.Queue.SinkMaxSize)
}

func applyVaultCredentials(cfg *config.Config, creds secrets.Credentials) {
	for i := range cfg.Sources {
		switch cfg.Sources[i].Type {
		case "gist":
			if creds.GistOAuthToken != "" {
				cfg.Sources[i].OAuth = creds.GistOAuthToken
			}
		case "github-public-events":
			if creds.GithubOAuthToken != "" {
				cfg.Sources[i].OAuth = creds.GithubOAuthToken
			}
		case "pastebin":
			if creds.PastebinDevKey != "" {
				cfg.Sources[i].DevKey = creds.PastebinDevKey
			}
		}
	}
}

// ruleReloader implements adminapi.RuleReloader, re-resolving and
// recompiling the configured rule paths on each /rules/reload call.
// extVars is re-applied on every recompile, so a config change to
// yara_external_vars takes effect on the next reload without a restart.
type ruleReloader struct {
	paths    []string
	extVars  map[string]string
	consumer *matcher.Consumer
	logger   *zap.Logger
}

func (r *ruleReloader) Reload(ctx context.Context) error {
	resolved, err := ruleengine.ResolveRuleFiles(r.paths)
	if err != nil {
		return fmt.Errorf("resolve rule files: %w", err)
	}
	rules, err := ruleengine.LoadRules(resolved)
	if err != nil {
		return fmt.Errorf("load rules: %w", err)
	}
	engine, err := ruleengine.Compile(rules, r.extVars)
	if err != nil {
		return fmt.Errorf("compile rules: %w", err)
	}
	if err := r.consumer.Recompile(ctx, engine, true); err != nil {
		return fmt.Errorf("recompile: %w", err)
	}
	r.logger.Info("infosweep: rules reloaded", zap.Int("rules", len(rules)))
	return nil
}
