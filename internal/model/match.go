package model

import "time"

// AsciiMatch is one matched string within a Match, decoded as UTF-8 text.
type AsciiMatch struct {
	ID            int64
	MatchID       int64
	MatchedString string
}

// Match is a single rule hit against an event's content, carrying every
// matched string the rule engine reported.
type Match struct {
	MatchID      int64
	EventID      int64
	RuleMatched  string
	TagsMatched  []string
	AsciiMatches []*AsciiMatch
}

// SetMatchID back-propagates the persisted match id onto every
// AsciiMatch it owns, mirroring Match.set_match_id.
func (m *Match) SetMatchID(id int64) {
	m.MatchID = id
	for _, am := range m.AsciiMatches {
		am.MatchID = id
	}
}

// ProcessedEvent is an Event that survived rule matching and is ready
// for persistence. It holds the raw content verbatim; no IDs are
// assigned until the sink has inserted it.
type ProcessedEvent struct {
	EventID       int64
	Source        string
	RawContent    []byte
	EventFilename string
	EventCreator  string
	TimeCreated   time.Time
	TimeDiscovered time.Time
	Matches       []*Match
}

// NewProcessedEvent builds a ProcessedEvent from a realized Event plus
// the RuleMatch results the engine produced for it.
func NewProcessedEvent(e Event, matches []*Match) *ProcessedEvent {
	return &ProcessedEvent{
		Source:         e.SourceTag(),
		RawContent:     e.Content(),
		EventFilename:  e.Filename(),
		EventCreator:   e.Creator(),
		TimeCreated:    e.Timestamp(),
		TimeDiscovered: time.Now().UTC(),
		Matches:        matches,
	}
}

// SetEventID back-propagates the persisted event id onto every Match it
// owns, mirroring ProcessedEvent.set_event_id.
func (p *ProcessedEvent) SetEventID(id int64) {
	p.EventID = id
	for _, m := range p.Matches {
		m.EventID = id
	}
}

// RulesMatched returns the unique set of rule names that fired for this
// event.
func (p *ProcessedEvent) RulesMatched() []string {
	seen := make(map[string]struct{}, len(p.Matches))
	out := make([]string, 0, len(p.Matches))
	for _, m := range p.Matches {
		if _, ok := seen[m.RuleMatched]; !ok {
			seen[m.RuleMatched] = struct{}{}
			out = append(out, m.RuleMatched)
		}
	}
	return out
}
