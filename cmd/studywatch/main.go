package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"sync"
	"time"

	"go-der-dashboard/internal/beo"
	"go-der-dashboard/internal/config"
	"go-der-dashboard/internal/model"
	"go-der-dashboard/internal/poller"
	"go-der-dashboard/internal/store"
	"go-der-dashboard/pkg/logger"
	"go-der-dashboard/pkg/utils"
)

// progressBoard prints a line whenever a watched entity reports new progress
type progressBoard struct {
	mu       sync.Mutex
	pending  map[string]bool
	last     map[string]float64
	finished chan struct{}
}

func newProgressBoard(ids []string) *progressBoard {
	b := &progressBoard{
		pending:  make(map[string]bool, len(ids)),
		last:     make(map[string]float64, len(ids)),
		finished: make(chan struct{}),
	}
	for _, id := range ids {
		b.pending[id] = true
		b.last[id] = -1
	}
	return b
}

func (b *progressBoard) observe(ev store.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, e := range ev.Entities {
		pe, ok := e.(model.Pollable)
		if !ok || !b.pending[pe.EntityID()] {
			continue
		}
		prog := pe.ProgressState()
		if prog.PercentComplete != b.last[pe.EntityID()] || prog.IsComplete {
			b.last[pe.EntityID()] = prog.PercentComplete
			fmt.Printf("%s %-36s %5.1f%%\n", time.Now().Format("15:04:05"), pe.EntityID(), prog.PercentComplete)
		}
		if prog.IsComplete {
			delete(b.pending, pe.EntityID())
			fmt.Printf("✅ %s complete\n", pe.EntityID())
		}
	}
	if len(b.pending) == 0 {
		select {
		case <-b.finished:
		default:
			close(b.finished)
		}
	}
}

func (b *progressBoard) remaining() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, 0, len(b.pending))
	for id := range b.pending {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func main() {
	os.Exit(run(os.Args[1:]))
}

// run watches the ids named in args and returns the process exit code:
// 0 when every job completed, 1 when watching failed, 2 on bad usage.
func run(args []string) int {
	fs := flag.NewFlagSet("studywatch", flag.ContinueOnError)
	pconfig := fs.String("config", os.Getenv("DASHBOARD_CONFIG"), "path to config file")
	ptype := fs.String("type", string(model.TypeScenario), "entity type: scenario or meterGroup")
	pinterval := fs.String("interval", "", "poll interval, e.g. 5s (defaults to the configured one)")
	ptimeout := fs.String("timeout", "1h", "give up after this long")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "usage: studywatch [flags] id [id...]\n\nWatches scenarios or meter groups on the BEO until they complete.\n\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return 2
	}

	ids := fs.Args()
	if len(ids) == 1 {
		ids = utils.SplitList(ids[0])
	}
	if len(ids) == 0 {
		fs.Usage()
		return 2
	}

	conf, err := config.Load(*pconfig)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	base := logger.New(conf.LogLevel, logger.ParseFormat(conf.LogFormat))
	defer base.Sync()
	log := logger.For(base, logger.ComponentPoller)

	t, err := model.ParseType(*ptype)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	client, err := beo.New(conf.BEO.BaseURL.String(), beo.Options{
		SessionCookie: conf.BEO.SessionCookie,
		Timeout:       conf.BEO.Timeout,
		Log:           logger.For(base, logger.ComponentBEO),
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	fetch, ok := client.Fetchers()[t]
	if !ok {
		fmt.Fprintf(os.Stderr, "%s has no progress to watch\n", t)
		return 2
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	ctx, cancelTimeout := context.WithTimeout(ctx, utils.ParseDuration(*ptimeout, time.Hour))
	defer cancelTimeout()

	st := store.New(logger.For(base, logger.ComponentStore))
	board := newProgressBoard(ids)
	unsubscribe := st.Subscribe(t, board.observe)
	defer unsubscribe()

	p := poller.New(st, poller.Config{Interval: utils.ParseDuration(*pinterval, conf.PollInterval)}, log)
	if err := p.RegisterPollableType(t, fetch); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer p.Close()

	set, err := client.List(ctx, t, beo.ListQuery{IDs: ids, PageSize: len(ids)})
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ cannot fetch %s: %v\n", t, err)
		return 1
	}
	found := make(map[string]bool, len(set.Data))
	for _, e := range set.Data {
		found[e.EntityID()] = true
	}
	missing := 0
	for _, id := range ids {
		if !found[id] {
			fmt.Fprintf(os.Stderr, "❌ %s %s not found\n", t, id)
			missing++
		}
	}
	if missing > 0 {
		return 1
	}
	if err := st.UpsertMany(set.Data); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	if err := p.Start(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	select {
	case <-board.finished:
		fmt.Printf("🎉 all %d done\n", len(ids))
		return 0
	case <-ctx.Done():
		fmt.Fprintf(os.Stderr, "⏹  stopped with %v still running: %v\n", board.remaining(), ctx.Err())
		return 1
	}
}
