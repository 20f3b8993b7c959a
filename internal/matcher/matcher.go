// Package matcher implements the rule-matching consumer state machine:
// Idle -> Running -> Draining -> Terminated, with Running -> Running on
// a RECOMPILE command, grounded on
// infobserve/processors/yara_processor.py's asyncio.wait-over-two-queues
// consumer loop.
package matcher

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/arc-self/infosweep/internal/model"
	"github.com/arc-self/infosweep/internal/queue"
	"github.com/arc-self/infosweep/internal/ruleengine"
)

// State is the consumer's externally-observable lifecycle stage.
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateDraining
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

type commandKind int

const (
	cmdRecompile commandKind = iota
	cmdStop
)

type command struct {
	kind commandKind
	// done is closed once this command has been fully handled,
	// letting RecompileAndWait/StopAndWait block on it (the Go
	// equivalent of YaraProcessor.compile_rules(block=True) joining
	// the command queue).
	done chan struct{}
}

// Consumer is the rule-matching pipeline stage: it pulls RawEvents off
// the source queue, matches them against the compiled rule engine, and
// forwards hits to the processed queue.
type Consumer struct {
	source    queue.Queue
	processed queue.Queue
	cmdCh     chan command
	logger    *zap.Logger

	mu     sync.RWMutex
	engine *ruleengine.Engine

	pendingEngineMu sync.Mutex
	pendingEngine   *ruleengine.Engine

	state atomic.Int32
}

// NewConsumer builds a Consumer already compiled against engine.
func NewConsumer(source, processed queue.Queue, engine *ruleengine.Engine, logger *zap.Logger) *Consumer {
	c := &Consumer{
		source:    source,
		processed: processed,
		cmdCh:     make(chan command),
		engine:    engine,
		logger:    logger,
	}
	c.state.Store(int32(StateIdle))
	return c
}

func (c *Consumer) State() State { return State(c.state.Load()) }

// Recompile swaps in a newly compiled engine. If the consumer is
// currently Running, the swap is scheduled via the command channel so
// it happens between items rather than mid-match; otherwise it applies
// immediately.
func (c *Consumer) Recompile(ctx context.Context, engine *ruleengine.Engine, wait bool) error {
	c.mu.Lock()
	if c.State() != StateRunning {
		c.engine = engine
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	cmd := command{kind: cmdRecompile, done: make(chan struct{})}
	// Stash the pending engine where Run's command handler can find it.
	c.pendingEngineMu.Lock()
	c.pendingEngine = engine
	c.pendingEngineMu.Unlock()

	select {
	case c.cmdCh <- cmd:
	case <-ctx.Done():
		return ctx.Err()
	}
	if wait {
		select {
		case <-cmd.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Stop requests a drain: remaining items already in the source queue at
// the moment the command is handled will still be processed, then Run
// returns. If immediate is true, queued items are dropped without being
// matched.
func (c *Consumer) Stop(ctx context.Context, immediate bool) error {
	if immediate {
		for {
			_, err := c.source.GetNonBlocking()
			if err != nil {
				break
			}
			c.source.Notify()
		}
	}
	cmd := command{kind: cmdStop, done: make(chan struct{})}
	select {
	case c.cmdCh <- cmd:
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

// fetchResult carries the outcome of one background source.GetBlocking
// call back into Run's select loop.
type fetchResult struct {
	item any
	err  error
}

// Run drives the consumer loop until it drains to Terminated or ctx is
// canceled. Each iteration races a fresh source-queue fetch against the
// command channel, exactly mirroring the upstream's
// asyncio.wait([source_queue.get, cmd_queue.get], FIRST_COMPLETED) —
// whichever is ready first is handled, and a still-pending fetch is
// simply abandoned to GC rather than canceled (GetBlocking exits on its
// own once ctx is done).
func (c *Consumer) Run(ctx context.Context) error {
	c.state.Store(int32(StateRunning))
	defer c.state.Store(int32(StateTerminated))

	fetchCtx, cancelFetch := context.WithCancel(ctx)
	defer cancelFetch()

	draining := false
	remaining := -1 // -1 means "unbounded" (not yet draining)
	fetchCh := c.startFetch(fetchCtx)

	for {
		if draining && remaining <= 0 {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()

		case cmd := <-c.cmdCh:
			switch cmd.kind {
			case cmdRecompile:
				c.state.Store(int32(StateRunning))
				c.pendingEngineMu.Lock()
				pending := c.pendingEngine
				c.pendingEngineMu.Unlock()
				if pending != nil {
					c.mu.Lock()
					c.engine = pending
					c.mu.Unlock()
				}
				c.logger.Info("matcher: recompiled rule engine")
			case cmdStop:
				draining = true
				remaining = c.source.Depth()
				c.state.Store(int32(StateDraining))
				c.logger.Info("matcher: draining before stop", zap.Int("remaining", remaining))
			}
			close(cmd.done)

		case res := <-fetchCh:
			if res.err == nil {
				c.handle(ctx, res.item)
				c.source.Notify()
				if draining {
					remaining--
				}
			}
			if draining && remaining <= 0 {
				return nil
			}
			fetchCh = c.startFetch(fetchCtx)
		}
	}
}

// startFetch launches one source.GetBlocking call in the background and
// returns a channel that receives its single result.
func (c *Consumer) startFetch(ctx context.Context) <-chan fetchResult {
	out := make(chan fetchResult, 1)
	go func() {
		item, err := c.source.GetBlocking(ctx)
		out <- fetchResult{item: item, err: err}
	}()
	return out
}

// handle matches a single dequeued item against the current engine and
// forwards any hit to the processed queue. A *model.CompositeEvent
// fans out into its children here rather than at the queue: the queue
// holds one item per push, and Run's single Notify() call per dequeue
// already covers every child matched below.
func (c *Consumer) handle(ctx context.Context, item any) {
	switch v := item.(type) {
	case *model.CompositeEvent:
		for _, child := range v.FanOut() {
			if len(child.Content()) == 0 {
				continue
			}
			c.matchAndForward(ctx, child)
		}
	case model.Event:
		c.matchAndForward(ctx, v)
	default:
		c.logger.Error("matcher: unexpected item type on source queue")
	}
}

func (c *Consumer) matchAndForward(ctx context.Context, event model.Event) {
	c.mu.RLock()
	engine := c.engine
	c.mu.RUnlock()

	matches := engine.Match(event.Content())
	if len(matches) == 0 || ruleengine.HasBlacklist(matches) {
		return
	}

	processed := model.NewProcessedEvent(event, toModelMatches(matches))
	if err := c.processed.PutBlocking(ctx, processed); err != nil {
		c.logger.Warn("matcher: failed to enqueue processed event", zap.Error(err))
	}
}

func toModelMatches(rm []*ruleengine.RuleMatch) []*model.Match {
	out := make([]*model.Match, 0, len(rm))
	for _, m := range rm {
		ascii := make([]*model.AsciiMatch, 0, len(m.Strings))
		for _, s := range m.Strings {
			ascii = append(ascii, &model.AsciiMatch{MatchedString: s.Value})
		}
		out = append(out, &model.Match{RuleMatched: m.Rule, TagsMatched: m.Tags, AsciiMatches: ascii})
	}
	return out
}
