package poller_test

import (
	"context"
	"errors"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"go-der-dashboard/internal/model"
	"go-der-dashboard/internal/poller"
	"go-der-dashboard/internal/store"
)

// fakeServer answers batch fetches from a map of scenario states
type fakeServer struct {
	mu      sync.Mutex
	states  map[string]model.Progress
	calls   [][]string
	failure error
	gate    chan struct{}
	entered chan struct{}
}

func newFakeServer() *fakeServer {
	return &fakeServer{states: map[string]model.Progress{}}
}

func (f *fakeServer) set(id string, complete bool, pct float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states[id] = model.Progress{IsComplete: complete, PercentComplete: pct}
}

func (f *fakeServer) drop(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.states, id)
}

func (f *fakeServer) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeServer) fetch(ctx context.Context, ids []string) ([]model.Pollable, error) {
	f.mu.Lock()
	f.calls = append(f.calls, append([]string(nil), ids...))
	gate, entered := f.gate, f.entered
	f.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
	}
	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failure != nil {
		return nil, f.failure
	}
	var out []model.Pollable
	for _, id := range ids {
		if p, ok := f.states[id]; ok {
			out = append(out, &model.Scenario{ID: id, Name: "study " + id, Progress: p})
		}
	}
	return out, nil
}

func incomplete(id string, pct float64) *model.Scenario {
	return &model.Scenario{ID: id, Name: "study " + id, Progress: model.Progress{PercentComplete: pct}}
}

var _ = Describe("Poller", func() {
	var (
		st     *store.Store
		p      *poller.Poller
		server *fakeServer
		ctx    context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		st = store.New(nil)
		server = newFakeServer()
		p = poller.New(st, poller.Config{Interval: time.Hour}, nil)
		Expect(p.RegisterPollableType(model.TypeScenario, server.fetch)).To(Succeed())
	})

	AfterEach(func() {
		p.Close()
	})

	Describe("Register", func() {
		It("tracks incomplete entities and ignores complete ones", func() {
			done := &model.Scenario{ID: "done", Progress: model.Progress{IsComplete: true, PercentComplete: 100}}
			Expect(p.Register(incomplete("s1", 0), done)).To(Succeed())

			Expect(p.IsTracked(model.TypeScenario, "s1")).To(BeTrue())
			Expect(p.IsTracked(model.TypeScenario, "done")).To(BeFalse())
		})

		It("rejects entities of types that are not pollable", func() {
			group := &model.MeterGroup{ID: "g1", Progress: &model.Progress{}}
			err := p.Register(group)
			Expect(errors.Is(err, model.ErrInvalidArgument)).To(BeTrue())
			Expect(p.Tracked(model.TypeMeterGroup)).To(BeEmpty())
		})

		It("rejects registering the same type twice", func() {
			err := p.RegisterPollableType(model.TypeScenario, server.fetch)
			Expect(errors.Is(err, model.ErrInvalidArgument)).To(BeTrue())
		})
	})

	Describe("Tick", func() {
		It("keeps an id tracked until a poll reports it complete", func() {
			Expect(p.Register(incomplete("s1", 10))).To(Succeed())
			Expect(p.IsTracked(model.TypeScenario, "s1")).To(BeTrue())

			server.set("s1", true, 100)
			report := p.Tick(ctx)

			tr, ok := report.For(model.TypeScenario)
			Expect(ok).To(BeTrue())
			Expect(tr.Requested).To(Equal([]string{"s1"}))
			Expect(tr.Completed).To(Equal([]string{"s1"}))
			Expect(p.IsTracked(model.TypeScenario, "s1")).To(BeFalse())

			e, ok := st.GetOne(model.TypeScenario, "s1")
			Expect(ok).To(BeTrue())
			Expect(e.(*model.Scenario).Progress.IsComplete).To(BeTrue())
		})

		It("issues no request when nothing is tracked", func() {
			report := p.Tick(ctx)

			Expect(server.callCount()).To(Equal(0))
			Expect(report.Requests()).To(Equal(0))
			tr, _ := report.For(model.TypeScenario)
			Expect(tr.Skipped).To(Equal(poller.SkipEmpty))
		})

		It("batches every tracked id of a type into one request", func() {
			Expect(p.Register(incomplete("b", 0), incomplete("a", 0), incomplete("c", 0))).To(Succeed())
			server.set("a", false, 20)
			server.set("b", false, 40)
			server.set("c", true, 100)

			p.Tick(ctx)

			Expect(server.calls).To(Equal([][]string{{"a", "b", "c"}}))
			Expect(p.Tracked(model.TypeScenario)).To(Equal([]string{"a", "b"}))

			e, _ := st.GetOne(model.TypeScenario, "b")
			Expect(e.(*model.Scenario).Progress.PercentComplete).To(Equal(40.0))
		})

		It("leaves ids missing from the answer tracked", func() {
			Expect(p.Register(incomplete("gone", 0))).To(Succeed())
			server.drop("gone")

			report := p.Tick(ctx)
			tr, _ := report.For(model.TypeScenario)

			Expect(tr.Returned).To(Equal(0))
			Expect(p.IsTracked(model.TypeScenario, "gone")).To(BeTrue())
		})

		It("keeps ids tracked and the store untouched when the fetch fails", func() {
			Expect(st.UpsertOne(incomplete("s1", 10))).To(Succeed())
			server.failure = &model.NetworkError{Op: "GET /v1/cost/scenario/", Status: 502}

			report := p.Tick(ctx)
			tr, _ := report.For(model.TypeScenario)

			Expect(errors.Is(tr.Err, model.ErrNetworkFailure)).To(BeTrue())
			Expect(p.IsTracked(model.TypeScenario, "s1")).To(BeTrue())
			e, _ := st.GetOne(model.TypeScenario, "s1")
			Expect(e.(*model.Scenario).Progress.PercentComplete).To(Equal(10.0))

			status := p.Status()
			Expect(status).To(HaveLen(1))
			Expect(status[0].LastError).To(ContainSubstring("502"))

			// the next interval is the retry
			server.failure = nil
			server.set("s1", true, 100)
			p.Tick(ctx)
			Expect(p.IsTracked(model.TypeScenario, "s1")).To(BeFalse())
		})

		It("skips a type whose previous fetch is still in flight", func() {
			Expect(p.Register(incomplete("s1", 0))).To(Succeed())
			server.set("s1", false, 50)
			server.gate = make(chan struct{})
			server.entered = make(chan struct{}, 1)

			first := make(chan poller.Report)
			go func() { first <- p.Tick(ctx) }()
			Eventually(server.entered).Should(Receive())

			second := p.Tick(ctx)
			tr, _ := second.For(model.TypeScenario)
			Expect(tr.Skipped).To(Equal(poller.SkipInFlight))
			Expect(second.Requests()).To(Equal(0))
			Expect(server.callCount()).To(Equal(1))

			close(server.gate)
			var r poller.Report
			Eventually(first).Should(Receive(&r))
			Expect(r.Requests()).To(Equal(1))
		})

		It("does not resurrect an entity removed while its fetch was out", func() {
			Expect(st.UpsertOne(incomplete("s1", 0))).To(Succeed())
			server.set("s1", false, 60)
			server.gate = make(chan struct{})
			server.entered = make(chan struct{}, 1)

			done := make(chan poller.Report)
			go func() { done <- p.Tick(ctx) }()
			Eventually(server.entered).Should(Receive())

			st.RemoveOne(model.Key{Type: model.TypeScenario, ID: "s1"})
			close(server.gate)
			Eventually(done).Should(Receive())

			_, ok := st.GetOne(model.TypeScenario, "s1")
			Expect(ok).To(BeFalse())
			Expect(p.IsTracked(model.TypeScenario, "s1")).To(BeFalse())
		})

		It("does not resurrect an entity whose removal is still being dispatched", func() {
			blocked := store.New(nil)
			removing := make(chan struct{})
			release := make(chan struct{})
			blocked.Subscribe(model.TypeScenario, func(ev store.Event) {
				if ev.Op == store.OpRemove {
					close(removing)
					<-release
				}
			})
			bp := poller.New(blocked, poller.Config{Interval: time.Hour}, nil)
			Expect(bp.RegisterPollableType(model.TypeScenario, server.fetch)).To(Succeed())
			defer bp.Close()

			Expect(blocked.UpsertOne(incomplete("s1", 0))).To(Succeed())
			server.set("s1", false, 60)
			server.gate = make(chan struct{})
			server.entered = make(chan struct{}, 1)

			done := make(chan poller.Report)
			go func() { done <- bp.Tick(ctx) }()
			Eventually(server.entered).Should(Receive())

			removed := make(chan struct{})
			go func() {
				blocked.RemoveOne(model.Key{Type: model.TypeScenario, ID: "s1"})
				close(removed)
			}()
			Eventually(removing).Should(BeClosed())
			// the poller has not heard of the removal yet
			Expect(bp.IsTracked(model.TypeScenario, "s1")).To(BeTrue())

			close(server.gate)
			var r poller.Report
			Eventually(done).Should(Receive(&r))
			tr, _ := r.For(model.TypeScenario)
			Expect(tr.Returned).To(Equal(0))

			close(release)
			Eventually(removed).Should(BeClosed())
			_, ok := blocked.GetOne(model.TypeScenario, "s1")
			Expect(ok).To(BeFalse())
		})

		It("only refreshes progress of entities with a pending mutation", func() {
			pending := model.Key{Type: model.TypeScenario, ID: "s1"}
			pp := poller.New(st, poller.Config{
				Interval: time.Hour,
				Pending:  func(k model.Key) bool { return k == pending },
			}, nil)
			p.Close()
			p = pp
			Expect(p.RegisterPollableType(model.TypeScenario, server.fetch)).To(Succeed())

			optimistic := incomplete("s1", 50)
			optimistic.Name = "renamed"
			Expect(st.UpsertMany([]model.Entity{optimistic, incomplete("s2", 0)})).To(Succeed())
			server.set("s1", true, 100)
			server.set("s2", false, 30)

			p.Tick(ctx)

			e, _ := st.GetOne(model.TypeScenario, "s1")
			Expect(e.(*model.Scenario).Name).To(Equal("renamed"))
			Expect(e.(*model.Scenario).Progress.IsComplete).To(BeTrue())
			Expect(p.IsTracked(model.TypeScenario, "s1")).To(BeFalse())

			other, _ := st.GetOne(model.TypeScenario, "s2")
			Expect(other.(*model.Scenario).Name).To(Equal("study s2"))
			Expect(other.(*model.Scenario).Progress.PercentComplete).To(Equal(30.0))
		})
	})

	Describe("store observation", func() {
		It("tracks incomplete entities entering the store by any path", func() {
			Expect(st.UpsertOne(incomplete("s1", 0))).To(Succeed())
			Expect(p.IsTracked(model.TypeScenario, "s1")).To(BeTrue())

			st.RemoveOne(model.Key{Type: model.TypeScenario, ID: "s1"})
			Expect(p.IsTracked(model.TypeScenario, "s1")).To(BeFalse())
		})

		It("untracks entities that arrive complete", func() {
			Expect(st.UpsertOne(incomplete("s1", 0))).To(Succeed())
			Expect(st.UpsertOne(&model.Scenario{ID: "s1", Progress: model.Progress{IsComplete: true}})).To(Succeed())
			Expect(p.IsTracked(model.TypeScenario, "s1")).To(BeFalse())
		})

		It("follows bulk replacement", func() {
			Expect(st.UpsertMany([]model.Entity{incomplete("old", 0), incomplete("kept", 0)})).To(Succeed())
			Expect(st.ReplaceAll(model.TypeScenario, []model.Entity{incomplete("kept", 5), incomplete("new", 0)})).To(Succeed())

			Expect(p.Tracked(model.TypeScenario)).To(Equal([]string{"kept", "new"}))
		})

		It("picks up entities already in the store when a type is registered", func() {
			group := &model.MeterGroup{ID: "g1", Progress: &model.Progress{PercentComplete: 30}}
			cluster := &model.MeterGroup{ID: "c1"}
			Expect(st.UpsertMany([]model.Entity{group, cluster})).To(Succeed())

			fetch := func(context.Context, []string) ([]model.Pollable, error) { return nil, nil }
			Expect(p.RegisterPollableType(model.TypeMeterGroup, fetch)).To(Succeed())

			Expect(p.Tracked(model.TypeMeterGroup)).To(Equal([]string{"g1"}))
		})
	})

	Describe("Start and Stop", func() {
		It("ticks on the injected ticker and stops cleanly", func() {
			ticker := poller.NewManualTicker()
			p = poller.New(st, poller.Config{Interval: time.Second, NewTicker: ticker.Factory()}, nil)
			Expect(p.RegisterPollableType(model.TypeScenario, server.fetch)).To(Succeed())
			Expect(p.Register(incomplete("s1", 0))).To(Succeed())
			server.set("s1", false, 10)

			Expect(p.Start(ctx)).To(Succeed())
			Expect(p.Start(ctx)).To(MatchError(poller.ErrAlreadyRunning))

			ticker.Fire()
			Eventually(server.callCount).Should(Equal(1))
			Eventually(func() bool { return p.Status()[0].InFlight }).Should(BeFalse())

			server.set("s1", true, 100)
			ticker.Fire()
			Eventually(func() bool { return p.IsTracked(model.TypeScenario, "s1") }).Should(BeFalse())

			p.Stop()
			p.Stop()
			Expect(p.Start(ctx)).To(Succeed())
		})

		It("defaults the interval", func() {
			Expect(poller.New(st, poller.Config{}, nil).Interval()).To(Equal(poller.DefaultInterval))
		})
	})
})
