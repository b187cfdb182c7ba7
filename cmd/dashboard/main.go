package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"go-der-dashboard/internal/api"
	"go-der-dashboard/internal/api/handler"
	"go-der-dashboard/internal/beo"
	"go-der-dashboard/internal/config"
	"go-der-dashboard/internal/journal"
	"go-der-dashboard/internal/notify"
	"go-der-dashboard/internal/optimistic"
	"go-der-dashboard/internal/poller"
	"go-der-dashboard/internal/store"
	"go-der-dashboard/pkg/logger"
	"go-der-dashboard/pkg/utils"
)

// @title DER Dashboard Gateway API
// @version 1.0
// @description Model store, optimistic mutations and job polling in front of the BEO.
// @BasePath /api/v1
func main() {
	pconfig := flag.String("config", os.Getenv("DASHBOARD_CONFIG"), "path to config file")
	skipLoad := flag.Bool("skip-load", false, "do not load collections from the BEO at startup")
	flag.Parse()

	conf, err := config.Load(*pconfig)
	if err != nil {
		panic(err)
	}

	base := logger.New(conf.LogLevel, logger.ParseFormat(conf.LogFormat))
	defer base.Sync()
	log := logger.For(base, logger.ComponentAPI)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Init DB
	db, err := journal.Open(conf.JournalPath)
	if err != nil {
		log.Fatalw("Cannot open journal", "path", conf.JournalPath, "error", err)
	}
	defer db.Close()
	logger.For(base, logger.ComponentJournal).Infow("Journal opened", "path", conf.JournalPath)

	st := store.New(logger.For(base, logger.ComponentStore))
	center := notify.New(conf.NotificationTTL, db, logger.For(base, logger.ComponentNotify))

	client, err := beo.New(conf.BEO.BaseURL.String(), beo.Options{
		SessionCookie: conf.BEO.SessionCookie,
		Timeout:       conf.BEO.Timeout,
		PageSize:      conf.BEO.PageSize,
		Log:           logger.For(base, logger.ComponentBEO),
	})
	if err != nil {
		log.Fatalw("Invalid BEO configuration", "error", err)
	}

	coordinator := optimistic.New(st, center, db, logger.For(base, logger.ComponentCoordinator))
	p := poller.New(st, poller.Config{
		Interval: conf.PollInterval,
		Pending:  coordinator.Pending,
	}, logger.For(base, logger.ComponentPoller))
	for t, fetch := range client.Fetchers() {
		if err := p.RegisterPollableType(t, fetch); err != nil {
			log.Fatalw("Cannot register pollable type", "type", t, "error", err)
		}
	}
	defer p.Close()

	loader := beo.NewLoader(client, st, conf.Retry, conf.BEO.PageSize, logger.For(base, logger.ComponentBEO))
	if !*skipLoad {
		if err := loader.LoadAll(ctx); err != nil {
			log.Warnw("Initial load incomplete, the dashboard starts with what it has", "error", err)
		}
	}

	if err := p.Start(ctx); err != nil {
		log.Fatalw("Cannot start poller", "error", err)
	}

	h := &handler.Handler{
		Store:         st,
		Poller:        p,
		Coordinator:   coordinator,
		BEO:           client,
		Loader:        loader,
		Notifications: center,
		Journal:       db,
		Log:           log,
	}

	opts := api.Options{Log: logger.For(base, logger.ComponentRouter)}
	assets := utils.NewAssetManager(conf.StaticDir)
	if err := assets.EnsureBaseDirExists(); err != nil {
		log.Warnw("Static assets unavailable, serving the API only", "dir", conf.StaticDir, "error", err)
	} else {
		opts.Assets = assets
	}

	// Create router
	r := api.NewRouter(h, opts)

	// Start server
	if err := r.Start(ctx, conf.Listen); err != nil {
		log.Errorw("Server failed", "error", err)
	}
}
