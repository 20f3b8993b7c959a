package source

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"

	"github.com/arc-self/infosweep/internal/httpapi"
	"github.com/arc-self/infosweep/internal/indexcache"
	"github.com/arc-self/infosweep/internal/model"
)

const gistAPIVersion = "application/vnd.github.v3+json"

// gistAPIEntry is the subset of GitHub's public gists API response this
// source cares about.
type gistAPIEntry struct {
	ID    string `json:"id"`
	Files map[string]struct {
		RawURL   string `json:"raw_url"`
		Size     int    `json:"size"`
		Filename string `json:"filename"`
	} `json:"files"`
	Owner struct {
		Login string `json:"login"`
	} `json:"owner"`
	CreatedAt time.Time `json:"created_at"`
	Message   string    `json:"message"`
}

// Gist polls GitHub's public gists feed, grounded on
// infobserve/sources/gist.py.
type Gist struct {
	name       string
	session    httpapi.Session
	cache      *indexcache.Cache
	interval   time.Duration
	fanoutCap  int
	uri        string
	logger     *zap.Logger
}

// GistConfig configures a Gist source from the pipeline's YAML config
// block.
type GistConfig struct {
	OAuthToken string
	Timeout    time.Duration
	FanoutCap  int
}

func NewGist(cfg GistConfig, session httpapi.Session, cache *indexcache.Cache, logger *zap.Logger) *Gist {
	cap := cfg.FanoutCap
	if cap <= 0 {
		cap = 8
	}
	return &Gist{
		name:      "gist",
		session:   session,
		cache:     cache,
		interval:  cfg.Timeout,
		fanoutCap: cap,
		uri:       "https://api.github.com/gists/public",
		logger:    logger,
	}
}

func (g *Gist) Name() string          { return g.name }
func (g *Gist) Interval() time.Duration { return g.interval }

func (g *Gist) FetchEvents(ctx context.Context) ([]model.Event, error) {
	body, status, err := g.session.Get(ctx, g.uri)
	if err != nil {
		return nil, fmt.Errorf("source/gist: fetch: %w", err)
	}
	if status < 200 || status >= 300 {
		return nil, fmt.Errorf("source/gist: unexpected status %d", status)
	}

	if err := unmarshalOrBadCredentials(body); err != nil {
		return nil, err
	}
	var entries []gistAPIEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, fmt.Errorf("source/gist: decode: %w", err)
	}

	cached, err := g.cache.Query(ctx)
	if err != nil {
		return nil, fmt.Errorf("source/gist: query cache: %w", err)
	}
	entries = filterCached(entries, func(e gistAPIEntry) string { return e.ID }, cached)

	g.logger.Debug("source/gist: fetched", zap.Int("not_cached", len(entries)))

	events := make([]*model.GistEvent, 0, len(entries))
	for _, entry := range entries {
		for _, file := range entry.Files {
			events = append(events, model.NewGistEvent(entry.ID, file.RawURL, file.Filename, entry.Owner.Login, file.Size, entry.CreatedAt))
			break // mirrors GistEvent.unpack: only the first file key is used
		}
	}

	// Bounded concurrent fan-out of the raw-content fetches, grounded
	// on sourcegraph/conc's pool usage in the coachpo-meltica Fanout
	// reference.
	p := pool.New().WithMaxGoroutines(g.fanoutCap)
	for _, ev := range events {
		ev := ev
		p.Go(func() {
			_ = ev.Realize(ctx, g.session)
		})
	}
	p.Wait()

	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.ID)
	}
	if err := g.cache.Update(ctx, ids); err != nil {
		g.logger.Warn("source/gist: index cache update failed", zap.Error(err))
	}

	out := make([]model.Event, 0, len(events))
	for _, ev := range events {
		if len(ev.Content()) == 0 {
			continue
		}
		out = append(out, ev)
	}
	return out, nil
}
