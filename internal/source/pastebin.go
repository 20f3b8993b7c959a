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

type pastebinEntry struct {
	Key       string `json:"key"`
	Date      string `json:"date"`
	Title     string `json:"title"`
	Size      string `json:"size"`
	ScrapeURL string `json:"scrape_url"`
}

// Pastebin polls Pastebin's recent-pastes scraping API, grounded on
// infobserve/sources/pastebin.py. Pastebin never exposes an author for
// public pastes, so every PasteEvent's creator is "Anonymous" (see
// model.PasteEvent.Creator).
type Pastebin struct {
	name      string
	session   httpapi.Session
	devKey    string
	interval  time.Duration
	fanoutCap int
	uri       string
	logger    *zap.Logger
}

type PastebinConfig struct {
	DevKey    string
	Timeout   time.Duration
	FanoutCap int
}

func NewPastebin(cfg PastebinConfig, session httpapi.Session, logger *zap.Logger) *Pastebin {
	cap := cfg.FanoutCap
	if cap <= 0 {
		cap = 8
	}
	return &Pastebin{
		name:      "pastebin",
		session:   session,
		devKey:    cfg.DevKey,
		interval:  cfg.Timeout,
		fanoutCap: cap,
		uri:       "https://pastebin.com/api_scraping/api_scrape_item.php?limit=50",
		logger:    logger,
	}
}

func (p *Pastebin) Name() string            { return p.name }
func (p *Pastebin) Interval() time.Duration { return p.interval }

func (p *Pastebin) FetchEvents(ctx context.Context) ([]model.Event, error) {
	body, status, err := p.session.Get(ctx, p.uri)
	if err != nil {
		return nil, fmt.Errorf("source/pastebin: fetch: %w", err)
	}
	if status == 403 {
		return nil, fmt.Errorf("source/pastebin: IP not whitelisted")
	}
	if status < 200 || status >= 300 {
		return nil, fmt.Errorf("source/pastebin: unexpected status %d", status)
	}

	var entries []pastebinEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, fmt.Errorf("source/pastebin: decode: %w", err)
	}

	events := make([]*model.PasteEvent, 0, len(entries))
	for _, e := range entries {
		unixDate, err := parseUnixSeconds(e.Date)
		if err != nil {
			continue
		}
		pe := model.NewPasteEvent(e.Key, e.ScrapeURL, e.Title, 0, unixDate)
		events = append(events, pe)
	}

	fanout := pool.New().WithMaxGoroutines(p.fanoutCap)
	for _, ev := range events {
		ev := ev
		fanout.Go(func() {
			_ = ev.Realize(ctx, p.session)
		})
	}
	fanout.Wait()

	// Drop any paste whose content failed to fetch, mirroring
	// `event_list = [x for x in event_list if x.raw_content]`.
	out := make([]model.Event, 0, len(events))
	for _, ev := range events {
		if len(ev.Content()) > 0 {
			out = append(out, ev)
		}
	}
	p.logger.Debug("source/pastebin: events ready", zap.Int("count", len(out)))
	return out, nil
}

func parseUnixSeconds(s string) (time.Time, error) {
	var secs int64
	_, err := fmt.Sscanf(s, "%d", &secs)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(secs, 0).UTC(), nil
}
