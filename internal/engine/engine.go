package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/vellum/internal/ir"
	"github.com/roach88/vellum/internal/variant"
)

// Engine is the explicit context object for one document: its component
// tree, Dependency Store, action queue and collaborators. Its lifecycle is
// create (New) → initialize → process actions → terminate.
//
// CRITICAL: All mutations happen on a single writer. Either call
// Initialize, Dispatch and Terminate from one goroutine, or run the Run
// loop and submit events with Enqueue from anywhere; do not mix the two
// while Run is active.
//
// Thread-safety model:
//   - Enqueue(): safe from any goroutine
//   - Run(): must be called from exactly one goroutine
//   - everything else: the single writer only
type Engine struct {
	registry *Registry
	doc      NodeSpec

	documentID      string
	idGen           IDGenerator
	logger          *slog.Logger
	metrics         Metrics
	journal         Journal
	clock           *Clock
	queue           *eventQueue
	maxInverseDepth int
	variantRequest  VariantRequest
	variantDefaults variant.Config

	state   lifecycle
	pending []ActionRequest

	root       *Component
	components []*Component
	byName     map[string]*Component
	typeCounts map[string]int
	stack      *CycleDetector
	diags      diagnostics
	variant    VariantInfo

	recomputations int
}

type lifecycle int

const (
	stateCreated lifecycle = iota
	stateInitialized
	stateTerminated
)

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithJournal records every processed action.
func WithJournal(j Journal) Option {
	return func(e *Engine) { e.journal = j }
}

// WithIDGenerator sets the generator used for the document ID when none is
// given with WithDocumentID.
func WithIDGenerator(g IDGenerator) Option {
	return func(e *Engine) { e.idGen = g }
}

// WithDocumentID fixes the document ID, as replay does.
func WithDocumentID(id string) Option {
	return func(e *Engine) { e.documentID = id }
}

// WithClock resumes action sequencing from a clock, as replay does.
func WithClock(c *Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithMaxInverseDepth bounds inverse chains.
//
// Default: 64 (DefaultMaxInverseDepth)
func WithMaxInverseDepth(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxInverseDepth = n
		}
	}
}

// WithVariant selects the variant to initialize.
func WithVariant(v VariantRequest) Option {
	return func(e *Engine) { e.variantRequest = v }
}

// WithVariantDefaults fills numVariants and the unique-enumeration cap
// when the document does not declare them. Zero leaves the built-in
// defaults.
func WithVariantDefaults(numVariants, uniqueCap int) Option {
	return func(e *Engine) {
		e.variantDefaults = variant.Config{NumVariants: numVariants, UniqueCap: uniqueCap}
	}
}

// New creates an engine for doc. Nothing is built until Initialize.
func New(reg *Registry, doc NodeSpec, opts ...Option) *Engine {
	e := &Engine{
		registry:        reg,
		doc:             doc,
		idGen:           UUIDv7Generator{},
		logger:          slog.Default(),
		metrics:         noopMetrics{},
		clock:           NewClock(),
		queue:           newEventQueue(),
		maxInverseDepth: DefaultMaxInverseDepth,
		byName:          make(map[string]*Component),
		typeCounts:      make(map[string]int),
		stack:           NewCycleDetector(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.documentID == "" {
		e.documentID = e.idGen.Generate()
	}
	return e
}

// DocumentID returns the document's ID.
func (e *Engine) DocumentID() string { return e.documentID }

// Clock returns the action sequence clock.
func (e *Engine) Clock() *Clock { return e.clock }

// Initialized reports whether Initialize has completed.
func (e *Engine) Initialized() bool { return e.state == stateInitialized }

// Enqueue submits an event for processing by the Run loop.
// Thread-safe: may be called from any goroutine.
//
// Returns false if the engine has been stopped.
func (e *Engine) Enqueue(ev Event) bool {
	return e.queue.Enqueue(ev)
}

// QueueLen returns the number of events waiting for the Run loop.
func (e *Engine) QueueLen() int { return e.queue.Len() }

// Run starts the single-writer event loop.
// Blocks until context is cancelled, Stop() is called or a terminate event
// is processed.
//
// ERROR HANDLING: a failing event is logged and reported on its reply
// channel; processing continues with the next event.
func (e *Engine) Run(ctx context.Context) error {
	e.logger.Info("engine starting", "document", e.documentID)

	for {
		event, ok := e.queue.TryDequeue()
		if ok {
			res := e.processEvent(ctx, event)
			if res.Err != nil {
				e.logger.Error("event processing failed",
					"type", event.Type.String(),
					"error", res.Err,
				)
			}
			if event.Reply != nil {
				select {
				case event.Reply <- res:
				case <-ctx.Done():
				}
			}
			if event.Type == EventTypeTerminate {
				e.logger.Info("engine stopping: terminated")
				return nil
			}
			continue
		}

		select {
		case <-ctx.Done():
			e.logger.Info("engine stopping: context cancelled")
			e.queue.Close()
			return ctx.Err()

		case <-e.queue.Wait():
			// The signal channel closes when the queue is closed.
			if e.queue.Closed() && e.queue.Len() == 0 {
				e.logger.Info("engine stopping: queue closed")
				return nil
			}
		}
	}
}

// Stop closes the event queue, which will cause Run() to return.
func (e *Engine) Stop() {
	e.queue.Close()
}

// Drain processes queued events synchronously until the queue is empty.
// For callers that enqueue without running the Run loop.
func (e *Engine) Drain(ctx context.Context) []EventResult {
	var out []EventResult
	for {
		event, ok := e.queue.TryDequeue()
		if !ok {
			return out
		}
		res := e.processEvent(ctx, event)
		if event.Reply != nil {
			event.Reply <- res
		}
		out = append(out, res)
	}
}

func (e *Engine) processEvent(ctx context.Context, event Event) EventResult {
	switch event.Type {
	case EventTypeInitialize:
		return EventResult{Err: e.Initialize(ctx)}
	case EventTypeAction:
		if event.Action == nil {
			return EventResult{Err: fmt.Errorf("action event missing request")}
		}
		rec, queued, err := e.Dispatch(ctx, *event.Action)
		return EventResult{Record: rec, Queued: queued, Err: err}
	case EventTypeTerminate:
		e.Terminate()
		return EventResult{}
	default:
		return EventResult{Err: fmt.Errorf("unknown event type: %d", event.Type)}
	}
}

// Initialize builds the component tree, selects the variant, and replays
// actions that arrived earlier, in arrival order.
func (e *Engine) Initialize(ctx context.Context) error {
	switch e.state {
	case stateInitialized:
		return nil
	case stateTerminated:
		return &RuntimeError{Code: ErrCodeTerminated, Message: "document was terminated"}
	}

	e.root = e.build(e.doc, nil)
	if e.root == nil {
		return &RuntimeError{
			Code:    ErrCodeUnknownComponent,
			Message: fmt.Sprintf("document root has unknown type %q", e.doc.Type),
		}
	}
	e.setUpVariants()
	e.state = stateInitialized

	e.logger.Info("document initialized",
		"document", e.documentID,
		"components", len(e.components),
		"variant", e.variant.Name,
		"pending", len(e.pending),
	)

	pending := e.pending
	e.pending = nil
	for _, req := range pending {
		if _, _, err := e.Dispatch(ctx, req); err != nil {
			e.logger.Warn("queued action failed",
				"component", req.Component,
				"action", req.Action,
				"error", err,
			)
		}
	}
	return nil
}

// Dispatch processes one action. Before initialization the request is
// queued (queued is true) and replayed by Initialize.
func (e *Engine) Dispatch(ctx context.Context, req ActionRequest) (rec *ActionRecord, queued bool, err error) {
	switch e.state {
	case stateCreated:
		e.pending = append(e.pending, req)
		e.logger.Debug("action queued until initialization",
			"component", req.Component,
			"action", req.Action,
		)
		return nil, true, nil
	case stateTerminated:
		return nil, false, &RuntimeError{Code: ErrCodeTerminated, Message: "document was terminated"}
	}
	rec, err = e.processAction(ctx, req)
	return rec, false, err
}

// Terminate discards the Dependency Store and every queued action. The
// engine cannot be used afterwards.
func (e *Engine) Terminate() {
	if e.state == stateTerminated {
		return
	}
	dropped := len(e.pending) + len(e.queue.Drop())
	e.queue.Close()
	e.pending = nil
	e.root = nil
	e.components = nil
	e.byName = make(map[string]*Component)
	e.stack.Reset()
	e.state = stateTerminated
	e.logger.Info("document terminated", "document", e.documentID, "dropped", dropped)
}

// processAction runs an action handler and journals the outcome.
func (e *Engine) processAction(ctx context.Context, req ActionRequest) (*ActionRecord, error) {
	start := time.Now()

	res := e.resolvePath(req.Component, e.root, true)
	if !res.Resolved {
		return nil, &RuntimeError{
			Code:    ErrCodeUnknownComponent,
			Message: fmt.Sprintf("no component %q", req.Component),
		}
	}
	comp := e.components[res.NodeIndex]
	fn, ok := comp.typ.Actions[req.Action]
	if !ok {
		return nil, &RuntimeError{
			Code:      ErrCodeUnknownAction,
			Message:   fmt.Sprintf("%s has no action %q", comp.typ.Name, req.Action),
			Component: comp.name,
		}
	}

	args := req.Args
	if args == nil {
		args = ir.IRObject{}
	}
	seq := e.clock.Next()
	id, err := ir.ActionID(e.documentID, comp.name, req.Action, args, seq)
	if err != nil {
		return nil, fmt.Errorf("action id: %w", err)
	}

	e.logger.Debug("processing action",
		"id", id,
		"component", comp.name,
		"action", req.Action,
		"seq", seq,
	)

	ac := &ActionContext{Reader: Reader{e: e, c: comp}}
	actionErr := safeCall(func() error { return fn(ac, args) })

	rec := &ActionRecord{
		ID:         id,
		DocumentID: e.documentID,
		Seq:        seq,
		Component:  comp.name,
		Action:     req.Action,
		Args:       args,
	}
	if actionErr != nil {
		rec.Error = actionErr.Error()
	}
	if rec.EssentialHash, err = ir.EssentialHash(e.Essentials()); err != nil {
		return rec, fmt.Errorf("essential hash: %w", err)
	}

	if e.journal != nil {
		if err := e.journal.RecordAction(ctx, *rec); err != nil {
			return rec, fmt.Errorf("record action %s: %w", id, err)
		}
	}

	outcome := "applied"
	if actionErr != nil {
		outcome = "failed"
	}
	e.metrics.ActionProcessed(req.Action, outcome, time.Since(start))
	e.logger.Info("action processed",
		"id", id,
		"component", comp.name,
		"action", req.Action,
		"outcome", outcome,
	)
	if actionErr != nil {
		return rec, fmt.Errorf("%s.%s: %w", comp.name, req.Action, actionErr)
	}
	return rec, nil
}

// ready returns an error unless the engine is initialized.
func (e *Engine) ready() error {
	switch e.state {
	case stateCreated:
		return &RuntimeError{Code: ErrCodeNotInitialized, Message: "document is not initialized"}
	case stateTerminated:
		return &RuntimeError{Code: ErrCodeTerminated, Message: "document was terminated"}
	}
	return nil
}

// Value reads the variable named by path, "component.variable" or
// "component" for its primary variable.
func (e *Engine) Value(path string) (ir.IRValue, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	return e.lookup(path, e.root)
}

// Recomputations returns how many definitions have run, across all
// variables. Reading fresh values does not change it.
func (e *Engine) Recomputations() int { return e.recomputations }

// Diagnostics returns the warnings and errors collected so far.
func (e *Engine) Diagnostics() []Diagnostic {
	return e.diags.snapshot()
}

// Registry returns the component registry.
func (e *Engine) Registry() *Registry { return e.registry }
