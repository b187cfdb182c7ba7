package poller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"go-der-dashboard/internal/metrics"
	"go-der-dashboard/internal/model"
	"go-der-dashboard/internal/store"
)

// DefaultInterval is the time between two ticks when none is configured
const DefaultInterval = 10 * time.Second

// BatchFetcher fetches the current state of every id in one request.
// Ids missing from the answer are left tracked.
type BatchFetcher func(ctx context.Context, ids []string) ([]model.Pollable, error)

// Config tunes a Poller. Zero values fall back to defaults.
type Config struct {
	Interval time.Duration
	// NewTicker builds the tick source for Start
	NewTicker TickerFactory
	// MaxConcurrentFetches bounds how many types are fetched in parallel within a tick
	MaxConcurrentFetches int
	// Pending reports keys with an unsettled optimistic mutation. Poll results for
	// those keys only refresh progress on the stored entity.
	Pending func(model.Key) bool
}

// Skip reasons reported for types that were not fetched
const (
	SkipEmpty    = "empty"
	SkipInFlight = "in_flight"
)

// TypeReport describes what one tick did for one pollable type
type TypeReport struct {
	Type      model.Type
	Requested []string
	Returned  int
	Completed []string
	Skipped   string
	Err       error
}

// Report describes one tick, one entry per registered type in registration order
type Report struct {
	Types []TypeReport
}

// Requests returns the number of batch fetches the tick issued
func (r Report) Requests() int {
	n := 0
	for _, tr := range r.Types {
		if tr.Skipped == "" {
			n++
		}
	}
	return n
}

// For returns the entry of type t
func (r Report) For(t model.Type) (TypeReport, bool) {
	for _, tr := range r.Types {
		if tr.Type == t {
			return tr, true
		}
	}
	return TypeReport{}, false
}

type typeState struct {
	fetch       BatchFetcher
	tracked     *trackedSet
	inFlight    bool
	lastPoll    time.Time
	lastErr     string
	unsubscribe func()
}

// Poller tracks incomplete pollable entities and refreshes them in the store until
// their jobs complete. Each tick issues at most one batched fetch per pollable type.
type Poller struct {
	store *store.Store
	log   *zap.SugaredLogger
	cfg   Config

	mu    sync.Mutex
	types map[model.Type]*typeState
	order []model.Type

	runMu  sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	ticks  sync.WaitGroup
}

// New creates a poller bound to st. Call RegisterPollableType before Start.
func New(st *store.Store, cfg Config, log *zap.SugaredLogger) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.NewTicker == nil {
		cfg.NewTicker = NewTimeTicker
	}
	if cfg.MaxConcurrentFetches <= 0 {
		cfg.MaxConcurrentFetches = 4
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Poller{
		store: st,
		log:   log,
		cfg:   cfg,
		types: make(map[model.Type]*typeState),
	}
}

// Interval returns the configured tick interval
func (p *Poller) Interval() time.Duration {
	return p.cfg.Interval
}

// RegisterPollableType makes t pollable with fetch as its batch status fetcher.
// The poller starts observing the store for t, and incomplete entities of t
// already in the store become tracked.
func (p *Poller) RegisterPollableType(t model.Type, fetch BatchFetcher) error {
	if fetch == nil {
		return fmt.Errorf("%w: nil fetcher for %s", model.ErrInvalidArgument, t)
	}

	p.mu.Lock()
	if _, ok := p.types[t]; ok {
		p.mu.Unlock()
		return fmt.Errorf("%w: %s is already pollable", model.ErrInvalidArgument, t)
	}
	st := &typeState{fetch: fetch, tracked: newTrackedSet(t)}
	p.types[t] = st
	p.order = append(p.order, t)
	p.mu.Unlock()

	st.unsubscribe = p.store.Subscribe(t, p.onStoreEvent)

	for _, e := range p.store.GetAll(t) {
		if pe, ok := e.(model.Pollable); ok {
			p.observe(pe)
		}
	}
	p.log.Debugw("Registered pollable type", "type", t)
	return nil
}

// Register starts tracking every incomplete entity; complete ones are ignored.
// All entities must belong to registered pollable types.
func (p *Poller) Register(entities ...model.Pollable) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, e := range entities {
		if _, ok := p.types[e.EntityType()]; !ok {
			return fmt.Errorf("%w: %s is not a pollable type", model.ErrInvalidArgument, e.EntityType())
		}
	}
	for _, e := range entities {
		if e.ProgressState().IsComplete {
			continue
		}
		if p.types[e.EntityType()].tracked.track(e.EntityID()) {
			p.log.Debugw("Tracking job", "type", e.EntityType(), "id", e.EntityID())
		}
	}
	return nil
}

// IsTracked reports whether id of type t is awaited
func (p *Poller) IsTracked(t model.Type, id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	st, ok := p.types[t]
	return ok && st.tracked.contains(id)
}

// Tracked returns the tracked ids of t in ascending order
func (p *Poller) Tracked(t model.Type) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	st, ok := p.types[t]
	if !ok {
		return nil
	}
	return st.tracked.list()
}

// Status returns a view of every pollable type in registration order
func (p *Poller) Status() []model.TrackingStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]model.TrackingStatus, 0, len(p.order))
	for _, t := range p.order {
		st := p.types[t]
		out = append(out, model.TrackingStatus{
			Type:       t,
			TrackedIDs: st.tracked.list(),
			InFlight:   st.inFlight,
			LastPoll:   st.lastPoll,
			LastError:  st.lastErr,
		})
	}
	return out
}

type fetchJob struct {
	typ   model.Type
	ids   []string
	fetch BatchFetcher
	index int
}

// Tick runs one poll round synchronously and reports what it did.
// A type is skipped when it has nothing tracked or when its previous fetch has not returned.
func (p *Poller) Tick(ctx context.Context) Report {
	p.mu.Lock()
	report := Report{Types: make([]TypeReport, len(p.order))}
	var jobs []fetchJob
	for i, t := range p.order {
		st := p.types[t]
		report.Types[i].Type = t
		switch {
		case st.tracked.len() == 0:
			report.Types[i].Skipped = SkipEmpty
		case st.inFlight:
			report.Types[i].Skipped = SkipInFlight
			metrics.PollerFetches.WithLabelValues(string(t), "skipped").Inc()
		default:
			st.inFlight = true
			ids := st.tracked.list()
			report.Types[i].Requested = ids
			jobs = append(jobs, fetchJob{typ: t, ids: ids, fetch: st.fetch, index: i})
		}
	}
	p.mu.Unlock()

	var g errgroup.Group
	g.SetLimit(p.cfg.MaxConcurrentFetches)
	for _, job := range jobs {
		g.Go(func() error {
			returned, completed, err := p.poll(ctx, job)
			tr := &report.Types[job.index]
			tr.Returned = returned
			tr.Completed = completed
			tr.Err = err
			return nil
		})
	}
	_ = g.Wait()
	return report
}

// poll fetches and merges one type. Errors are logged here and never retried early.
func (p *Poller) poll(ctx context.Context, job fetchJob) (returned int, completed []string, err error) {
	start := time.Now()
	defer func() {
		metrics.PollerFetchDuration.WithLabelValues(string(job.typ)).Observe(time.Since(start).Seconds())
		p.mu.Lock()
		st := p.types[job.typ]
		st.inFlight = false
		st.lastPoll = start
		st.lastErr = ""
		if err != nil {
			st.lastErr = err.Error()
		}
		p.mu.Unlock()
	}()

	// ids held by the store now; those missing at merge time were removed mid-fetch
	present := make(map[string]bool, len(job.ids))
	for _, id := range job.ids {
		if _, ok := p.store.GetOne(job.typ, id); ok {
			present[id] = true
		}
	}

	results, err := p.safeFetch(ctx, job)
	if err != nil {
		metrics.PollerFetches.WithLabelValues(string(job.typ), "error").Inc()
		p.log.Warnw("Poll failed, retrying next tick", "type", job.typ, "ids", job.ids, "error", err)
		return 0, nil, err
	}
	metrics.PollerFetches.WithLabelValues(string(job.typ), "ok").Inc()

	requested := make(map[string]bool, len(job.ids))
	for _, id := range job.ids {
		requested[id] = true
	}

	// Entities untracked while the request was out (completed through another path)
	// are newer in the store than in this answer.
	p.mu.Lock()
	tracked := p.types[job.typ].tracked
	candidates := make([]model.Entity, 0, len(results))
	for _, r := range results {
		if r == nil || r.EntityType() != job.typ || !requested[r.EntityID()] {
			p.log.Warnw("Dropping unexpected poll result", "type", job.typ, "result", r)
			continue
		}
		if !tracked.contains(r.EntityID()) {
			p.log.Debugw("Dropping stale poll result", "type", job.typ, "id", r.EntityID())
			continue
		}
		candidates = append(candidates, r)
	}
	p.mu.Unlock()

	merge, err := p.store.MergeMany(candidates, p.mergeFor(present))
	if err != nil {
		p.log.Errorw("Merging poll result failed", "type", job.typ, "error", err)
		return 0, nil, err
	}

	p.mu.Lock()
	for _, e := range merge {
		if e.(model.Pollable).ProgressState().IsComplete {
			tracked.complete(e.EntityID())
			completed = append(completed, e.EntityID())
		}
	}
	p.mu.Unlock()

	if len(merge) < len(job.ids) {
		p.log.Debugw("Poll result omitted tracked ids", "type", job.typ, "requested", len(job.ids), "returned", len(merge))
	}
	for _, id := range completed {
		p.log.Infow("Job complete", "type", job.typ, "id", id)
	}
	return len(merge), completed, nil
}

// mergeFor returns the merge applied under the store lock. Entities removed while the
// fetch was out stay removed, and entities with a pending mutation keep their
// optimistic fields and only take the fresh progress.
func (p *Poller) mergeFor(present map[string]bool) store.MergeFunc {
	return func(current, incoming model.Entity) model.Entity {
		key := model.KeyOf(incoming)
		if current == nil {
			if present[key.ID] {
				p.log.Debugw("Dropping poll result for removed entity", "entity", key)
				return nil
			}
			return incoming
		}
		if p.cfg.Pending == nil || !p.cfg.Pending(key) {
			return incoming
		}

		cp, err := store.Clone(current)
		if err != nil {
			p.log.Warnw("Cannot refresh progress of pending entity", "entity", key, "error", err)
			return nil
		}
		pu, ok := cp.(model.ProgressUpdater)
		if !ok {
			return nil
		}
		pu.SetProgress(incoming.(model.Pollable).ProgressState())
		p.log.Debugw("Refreshed progress of entity with pending mutation", "entity", key)
		return pu
	}
}

func (p *Poller) safeFetch(ctx context.Context, job fetchJob) (results []model.Pollable, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("fetch %s panicked: %v", job.typ, r)
		}
	}()
	return job.fetch(ctx, job.ids)
}

// onStoreEvent keeps tracked sets in line with entities entering or leaving the store
func (p *Poller) onStoreEvent(ev store.Event) {
	switch ev.Op {
	case store.OpUpsert:
		for _, e := range ev.Entities {
			if pe, ok := e.(model.Pollable); ok {
				p.observe(pe)
			}
		}
	case store.OpRemove:
		p.mu.Lock()
		if st, ok := p.types[ev.Type]; ok {
			for _, id := range ev.IDs {
				st.tracked.remove(id)
			}
		}
		p.mu.Unlock()
	case store.OpReplace:
		present := make(map[string]bool, len(ev.IDs))
		for _, id := range ev.IDs {
			present[id] = true
		}
		p.mu.Lock()
		if st, ok := p.types[ev.Type]; ok {
			for _, id := range st.tracked.list() {
				if !present[id] {
					st.tracked.remove(id)
				}
			}
		}
		p.mu.Unlock()
		for _, e := range ev.Entities {
			if pe, ok := e.(model.Pollable); ok {
				p.observe(pe)
			}
		}
	}
}

func (p *Poller) observe(e model.Pollable) {
	p.mu.Lock()
	defer p.mu.Unlock()
	st, ok := p.types[e.EntityType()]
	if !ok {
		return
	}
	if e.ProgressState().IsComplete {
		st.tracked.complete(e.EntityID())
		return
	}
	if st.tracked.track(e.EntityID()) {
		p.log.Debugw("Tracking job", "type", e.EntityType(), "id", e.EntityID())
	}
}

// ErrAlreadyRunning is returned by Start on a running poller
var ErrAlreadyRunning = errors.New("poller already running")

// Start launches the tick loop. Each tick runs in its own goroutine so a slow fetch
// never delays the timer; overlapping fetches of one type are skipped by Tick.
func (p *Poller) Start(ctx context.Context) error {
	p.runMu.Lock()
	defer p.runMu.Unlock()
	if p.cancel != nil {
		return ErrAlreadyRunning
	}

	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	ticker := p.cfg.NewTicker(p.cfg.Interval)

	go p.run(ctx, ticker, p.done)
	p.log.Infow("Poller started", "interval", p.cfg.Interval)
	return nil
}

func (p *Poller) run(ctx context.Context, ticker Ticker, done chan struct{}) {
	defer close(done)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			p.ticks.Add(1)
			go func() {
				defer p.ticks.Done()
				p.Tick(ctx)
			}()
		}
	}
}

// Stop clears the timer and waits for ticks in progress to return
func (p *Poller) Stop() {
	p.runMu.Lock()
	defer p.runMu.Unlock()
	if p.cancel == nil {
		return
	}
	p.cancel()
	<-p.done
	p.ticks.Wait()
	p.cancel = nil
	p.done = nil
	p.log.Infow("Poller stopped")
}

// Close stops the poller and detaches it from the store
func (p *Poller) Close() {
	p.Stop()
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, st := range p.types {
		if st.unsubscribe != nil {
			st.unsubscribe()
		}
	}
}
