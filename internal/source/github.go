package source

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"

	"github.com/arc-self/infosweep/internal/httpapi"
	"github.com/arc-self/infosweep/internal/model"
)

const githubAPIVersion = "application/vnd.github.v3+json"

type githubPushEvent struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"created_at"`
	Actor     struct {
		Login string `json:"login"`
	} `json:"actor"`
	Payload struct {
		Commits []struct {
			SHA string `json:"sha"`
			URL string `json:"url"`
		} `json:"commits"`
	} `json:"payload"`
}

type githubCommitDetail struct {
	Files []struct {
		RawURL   string `json:"raw_url"`
		Filename string `json:"filename"`
	} `json:"files"`
}

// Github polls GitHub's public events feed for PushEvents and fans each
// one out into its changed-file CommitFileEvents, grounded on
// infobserve/sources/github.py and infobserve/events/github.py.
type Github struct {
	name      string
	session   httpapi.Session
	interval  time.Duration
	fanoutCap int
	uri       string
	logger    *zap.Logger
}

type GithubConfig struct {
	OAuthToken string
	Timeout    time.Duration
	FanoutCap  int
}

func NewGithub(cfg GithubConfig, session httpapi.Session, logger *zap.Logger) *Github {
	cap := cfg.FanoutCap
	if cap <= 0 {
		cap = 8
	}
	return &Github{
		name:      "github-public-events",
		session:   session,
		interval:  cfg.Timeout,
		fanoutCap: cap,
		uri:       "https://api.github.com/events",
		logger:    logger,
	}
}

func (g *Github) Name() string            { return g.name }
func (g *Github) Interval() time.Duration { return g.interval }

func (g *Github) FetchEvents(ctx context.Context) ([]model.Event, error) {
	body, status, err := g.session.Get(ctx, g.uri)
	if err != nil {
		return nil, fmt.Errorf("source/github: fetch: %w", err)
	}
	if status < 200 || status >= 300 {
		return nil, fmt.Errorf("source/github: unexpected status %d", status)
	}

	var raw []githubPushEvent
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("source/github: decode: %w", err)
	}

	pushes := make([]githubPushEvent, 0, len(raw))
	for _, ev := range raw {
		if ev.Type == "PushEvent" {
			pushes = append(pushes, ev)
		}
	}
	g.logger.Debug("source/github: push events", zap.Int("count", len(pushes)))

	composites := make([]*model.CompositeEvent, len(pushes))
	p := pool.New().WithMaxGoroutines(g.fanoutCap)
	for i, push := range pushes {
		i, push := i, push
		p.Go(func() {
			composites[i] = g.realizePush(ctx, push)
		})
	}
	p.Wait()

	// Each push is enqueued as a single item — the matcher fans it out
	// into its children itself, so notify() is called once per parent
	// regardless of how many files it touched.
	var out []model.Event
	for _, c := range composites {
		if c == nil {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

// realizePush fetches each commit's file list, then each non-blacklisted
// file's raw content, building the CompositeEvent the matcher will later
// fan out into individual CommitFileEvents.
func (g *Github) realizePush(ctx context.Context, push githubPushEvent) *model.CompositeEvent {
	composite := model.NewCompositeEvent(push.ID, push.Actor.Login, push.CreatedAt)

	for _, commit := range push.Payload.Commits {
		body, status, err := g.session.Get(ctx, commit.URL)
		if err != nil || status < 200 || status >= 300 {
			g.logger.Warn("source/github: dropped commit url", zap.String("url", commit.URL))
			continue
		}
		var detail githubCommitDetail
		if err := json.Unmarshal(body, &detail); err != nil {
			continue
		}
		for _, f := range detail.Files {
			if model.IsBlacklistedExtension(f.Filename) {
				continue
			}
			child := model.NewCommitFileEvent(push.ID, push.Actor.Login, f.Filename, f.RawURL, push.CreatedAt)
			composite.Children = append(composite.Children, child)
		}
	}

	realizeCap := g.fanoutCap
	p := pool.New().WithMaxGoroutines(realizeCap)
	for _, child := range composite.Children {
		child := child
		p.Go(func() {
			_ = child.Realize(ctx, g.session)
		})
	}
	p.Wait()

	return composite
}
