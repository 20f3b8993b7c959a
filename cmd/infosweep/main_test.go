package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/arc-self/infosweep/internal/config"
	"github.com/arc-self/infosweep/internal/matcher"
	"github.com/arc-self/infosweep/internal/model"
	"github.com/arc-self/infosweep/internal/queue"
	"github.com/arc-self/infosweep/internal/ruleengine"
	"github.com/arc-self/infosweep/internal/secrets"
)

func TestBuildQueues_DefaultsToInMemoryBoth(t *testing.T) {
	cfg := &config.Config{Queue: config.QueueConfig{Backend: "memory", RawMaxSize: 4, SinkMaxSize: 4}}
	raw, sinkQ := buildQueues(cfg, zap.NewNop())
	assert.Equal(t, 4, raw.MaxSize())
	assert.Equal(t, 4, sinkQ.MaxSize())
}

func TestBuildQueues_RedisBackendNeedsRedisConfig(t *testing.T) {
	cfg := &config.Config{Queue: config.QueueConfig{Backend: "redis", SinkMaxSize: 10}}
	// No Redis config supplied: falls back to in-memory for the sink
	// queue rather than constructing a client with an empty address.
	_, sinkQ := buildQueues(cfg, zap.NewNop())
	assert.Equal(t, 10, sinkQ.MaxSize())
}

func TestBuildQueues_RedisBackendWiresRedisSinkQueue(t *testing.T) {
	cfg := &config.Config{
		Queue: config.QueueConfig{Backend: "redis", SinkMaxSize: 10},
		Redis: &config.RedisConfig{Host: "localhost", Port: 6379},
	}
	_, sinkQ := buildQueues(cfg, zap.NewNop())
	_, isRedis := sinkQ.(*queue.Redis)
	assert.True(t, isRedis)
}

func TestProcessedEventCodec_RoundTrip(t *testing.T) {
	ev := model.NewGistEvent("g1", "https://x/raw", "a.txt", "dev", 5, time.Now())
	pe := model.NewProcessedEvent(ev, []*model.Match{{RuleMatched: "hit", TagsMatched: []string{"t"}}})

	data, err := processedEventCodec.Encode(pe)
	require.NoError(t, err)

	decoded, err := processedEventCodec.Decode(data)
	require.NoError(t, err)
	got, ok := decoded.(*model.ProcessedEvent)
	require.True(t, ok)
	assert.Equal(t, pe.Source, got.Source)
	assert.Equal(t, pe.RulesMatched(), got.RulesMatched())
}

func TestProcessedEventCodec_EncodeRejectsWrongType(t *testing.T) {
	_, err := processedEventCodec.Encode("not-a-processed-event")
	assert.Error(t, err)
}

func TestApplyVaultCredentials_OverridesOnlyNonEmptyFields(t *testing.T) {
	cfg := &config.Config{Sources: []config.SourceConfig{
		{Type: "gist", OAuth: "old-gist"},
		{Type: "pastebin", DevKey: "old-key"},
		{Type: "csv", Path: "replay.csv"},
	}}

	applyVaultCredentials(cfg, secrets.Credentials{GistOAuthToken: "new-gist"})
	assert.Equal(t, "new-gist", cfg.Sources[0].OAuth)
	assert.Equal(t, "old-key", cfg.Sources[1].DevKey)
	assert.Equal(t, "replay.csv", cfg.Sources[2].Path)
}

func TestRuleReloader_Reload_SwapsEngine(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
rules:
  - name: hit
    tags: []
    pattern: "secret"
`), 0o644))

	engine, err := ruleengine.Compile(nil, nil)
	require.NoError(t, err)
	consumer := matcher.NewConsumer(queue.NewSimple(1), queue.NewSimple(1), engine, zap.NewNop())

	reloader := &ruleReloader{paths: []string{path}, consumer: consumer, logger: zap.NewNop()}
	require.NoError(t, reloader.Reload(context.Background()))
}

func TestRuleReloader_Reload_CarriesExternalVarsIntoCompile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
rules:
  - name: hit
    tags: []
    pattern: "${prefix}-secret"
`), 0o644))

	engine, err := ruleengine.Compile(nil, nil)
	require.NoError(t, err)
	consumer := matcher.NewConsumer(queue.NewSimple(1), queue.NewSimple(1), engine, zap.NewNop())

	reloader := &ruleReloader{
		paths:    []string{path},
		extVars:  map[string]string{"prefix": "acct"},
		consumer: consumer,
		logger:   zap.NewNop(),
	}
	require.NoError(t, reloader.Reload(context.Background()))
}
