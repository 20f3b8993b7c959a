// Package model defines the event, match, and cache record shapes that
// flow between the producer, matcher, and sink stages of the pipeline.
package model

import (
	"context"
	"path"
	"strings"
	"time"
)

// Session is the minimal HTTP contract a Source needs to realize an
// event's raw content. See internal/httpapi for the concrete
// implementation.
type Session interface {
	Get(ctx context.Context, url string) ([]byte, int, error)
}

// Event is the common contract every raw event type satisfies. A Source
// produces Events; the matcher consumes their Content after Realize has
// populated it.
type Event interface {
	Timestamp() time.Time
	SourceTag() string
	// Realize fetches any content the event only holds a pointer to
	// (a raw_url, a commit file reference). It must never return an
	// error for a remote-fetch failure — those are swallowed and
	// leave the event invalid, per the upstream's try/except-and-drop
	// convention. A non-nil error here means a programming invariant
	// was violated.
	Realize(ctx context.Context, session Session) error
	IsValid() bool
	Content() []byte
	Filename() string
	Creator() string
	// SourceID is the identity used for index-cache dedup lookups.
	SourceID() string
}

// fileExtBlacklist mirrors infobserve's Commit.file_ext_blacklist: files
// with these extensions are dropped from a commit's fan-out before any
// content is ever fetched.
var fileExtBlacklist = map[string]struct{}{
	".jpg": {}, ".gif": {}, ".psd": {}, ".pdf": {}, ".jpeg": {}, ".png": {},
	".webp": {}, ".pyc": {}, ".sqlite3": {}, ".woff": {}, ".ttf": {},
	".woff2": {}, ".zip": {}, ".gz": {}, ".h5": {},
}

// IsBlacklistedExtension reports whether filename's extension should be
// excluded from commit fan-out before a fetch is attempted.
func IsBlacklistedExtension(filename string) bool {
	_, blacklisted := fileExtBlacklist[strings.ToLower(path.Ext(filename))]
	return blacklisted
}

// GistEvent is produced by the gist source from a single entry of
// GitHub's public gists feed.
type GistEvent struct {
	ID        string
	RawURL    string
	Size      int
	filename  string
	creator   string
	createdAt time.Time
	content   []byte
}

func NewGistEvent(id, rawURL, filename, creator string, size int, createdAt time.Time) *GistEvent {
	return &GistEvent{ID: id, RawURL: rawURL, filename: filename, creator: creator, Size: size, createdAt: createdAt}
}

func (g *GistEvent) Timestamp() time.Time { return g.createdAt }
func (g *GistEvent) SourceTag() string    { return "gist" }
func (g *GistEvent) Filename() string     { return g.filename }
func (g *GistEvent) Creator() string      { return g.creator }
func (g *GistEvent) Content() []byte      { return g.content }
func (g *GistEvent) SourceID() string     { return g.ID }
func (g *GistEvent) IsValid() bool        { return g.RawURL != "" }

func (g *GistEvent) Realize(ctx context.Context, session Session) error {
	body, status, err := session.Get(ctx, g.RawURL)
	if err != nil || status < 200 || status >= 300 {
		return nil
	}
	g.content = decodeContent(body)
	return nil
}

// PasteEvent is produced by the pastebin source. Creator is always
// "Anonymous" — Pastebin's public feed never exposes an author.
type PasteEvent struct {
	ID        string
	ScrapeURL string
	Size      int
	filename  string
	pasteDate time.Time
	content   []byte
}

func NewPasteEvent(id, scrapeURL, title string, size int, pasteDate time.Time) *PasteEvent {
	return &PasteEvent{ID: id, ScrapeURL: scrapeURL, filename: title, Size: size, pasteDate: pasteDate}
}

func (p *PasteEvent) Timestamp() time.Time { return p.pasteDate }
func (p *PasteEvent) SourceTag() string    { return "pastebin" }
func (p *PasteEvent) Filename() string     { return p.filename }
func (p *PasteEvent) Creator() string      { return "Anonymous" }
func (p *PasteEvent) Content() []byte      { return p.content }
func (p *PasteEvent) SourceID() string     { return p.ID }
func (p *PasteEvent) IsValid() bool        { return p.ScrapeURL != "" }

func (p *PasteEvent) Realize(ctx context.Context, session Session) error {
	body, status, err := session.Get(ctx, p.ScrapeURL)
	if err != nil || status < 200 || status >= 300 {
		return nil
	}
	p.content = decodeContent(body)
	return nil
}

// CommitFileEvent represents a single file changed in a GitHub push
// commit, fetched as the leaf of a CompositeEvent's fan-out.
type CommitFileEvent struct {
	PushID    string
	creator   string
	filename  string
	createdAt time.Time
	rawURL    string
	content   []byte
}

func NewCommitFileEvent(pushID, creator, filename, rawURL string, createdAt time.Time) *CommitFileEvent {
	return &CommitFileEvent{PushID: pushID, creator: creator, filename: filename, rawURL: rawURL, createdAt: createdAt}
}

func (c *CommitFileEvent) Timestamp() time.Time { return c.createdAt }
func (c *CommitFileEvent) SourceTag() string    { return "github-public-events" }
func (c *CommitFileEvent) Filename() string     { return c.filename }
func (c *CommitFileEvent) Creator() string      { return c.creator }
func (c *CommitFileEvent) Content() []byte      { return c.content }
func (c *CommitFileEvent) SourceID() string     { return c.PushID + "/" + c.filename }
func (c *CommitFileEvent) IsValid() bool        { return len(c.content) > 0 }

func (c *CommitFileEvent) Realize(ctx context.Context, session Session) error {
	body, status, err := session.Get(ctx, c.rawURL)
	if err != nil || status < 200 || status >= 300 {
		return nil
	}
	c.content = decodeContent(body)
	return nil
}

// CompositeEvent is a GitHub PushEvent carried through the raw queue as
// a single item, its CommitFileEvent children already realized by the
// producer — the matcher fans it out internally via FanOut rather than
// the queue ever holding one entry per child, grounded on
// infobserve/processors/yara_processor.py's `for git_event in
// event.commit_raw_content()` loop over a single dequeued GithubEvent.
type CompositeEvent struct {
	PushID    string
	CreatedAt time.Time
	Children  []*CommitFileEvent

	creator string
}

func NewCompositeEvent(pushID, creator string, createdAt time.Time) *CompositeEvent {
	return &CompositeEvent{PushID: pushID, creator: creator, CreatedAt: createdAt}
}

func (c *CompositeEvent) Timestamp() time.Time { return c.CreatedAt }
func (c *CompositeEvent) SourceTag() string    { return "github-public-events" }
func (c *CompositeEvent) Filename() string     { return "" }
func (c *CompositeEvent) Creator() string      { return c.creator }
func (c *CompositeEvent) Content() []byte      { return nil }
func (c *CompositeEvent) SourceID() string     { return c.PushID }

// Realize is a no-op: a CompositeEvent only ever reaches the queue after
// Github.FetchEvents has already realized every child's content.
func (c *CompositeEvent) Realize(ctx context.Context, _ Session) error { return nil }

// IsValid reports whether the push fanned out to at least one
// non-blacklisted child whose content was actually fetched — an empty
// or entirely-failed push is dropped before it ever reaches the queue.
func (c *CompositeEvent) IsValid() bool {
	for _, child := range c.FanOut() {
		if len(child.Content()) > 0 {
			return true
		}
	}
	return false
}

// FanOut returns the non-blacklisted CommitFileEvents for every file
// changed across every commit in the push. Children may still have
// empty content if their individual fetch failed; callers matching
// against them must check Content() themselves.
func (c *CompositeEvent) FanOut() []*CommitFileEvent {
	out := make([]*CommitFileEvent, 0, len(c.Children))
	for _, child := range c.Children {
		if IsBlacklistedExtension(child.filename) {
			continue
		}
		out = append(out, child)
	}
	return out
}

// CsvEvent replays a previously captured event from a CSV archive, used
// for backfill/replay testing. raw_content is base64-encoded in the
// source file.
type CsvEvent struct {
	ID          string
	filename    string
	creator     string
	createdAt   time.Time
	contentB64  string
	content     []byte
	decodeError bool
}

func NewCsvEvent(id, createdAt, creator, filename, contentB64 string) *CsvEvent {
	ts, _ := time.Parse(time.RFC3339, createdAt)
	return &CsvEvent{ID: id, filename: filename, creator: creator, createdAt: ts, contentB64: contentB64}
}

func (c *CsvEvent) Timestamp() time.Time { return c.createdAt }
func (c *CsvEvent) SourceTag() string    { return "csv" }
func (c *CsvEvent) Filename() string     { return c.filename }
func (c *CsvEvent) Creator() string      { return c.creator }
func (c *CsvEvent) Content() []byte      { return c.content }
func (c *CsvEvent) SourceID() string     { return c.ID }
func (c *CsvEvent) IsValid() bool        { return !c.decodeError }

// Realize decodes the base64 payload captured in the CSV row. It never
// performs network I/O — CSV replay is a pure local transform, grounded
// on infobserve/events/csv.py's base64.b64decode call.
func (c *CsvEvent) Realize(ctx context.Context, _ Session) error {
	decoded, err := decodeBase64(c.contentB64)
	if err != nil {
		c.decodeError = true
		return nil
	}
	c.content = decoded
	return nil
}
