package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"time"

	"go.uber.org/fx"
	_ "modernc.org/sqlite"

	"github.com/theoremus-urban-solutions/trainearly/config"
	"github.com/theoremus-urban-solutions/trainearly/detection"
	"github.com/theoremus-urban-solutions/trainearly/enrichment"
	"github.com/theoremus-urban-solutions/trainearly/gtfsrt"
	"github.com/theoremus-urban-solutions/trainearly/internal"
	"github.com/theoremus-urban-solutions/trainearly/notify"
	"github.com/theoremus-urban-solutions/trainearly/server"
	"github.com/theoremus-urban-solutions/trainearly/service"
	"github.com/theoremus-urban-solutions/trainearly/stats"
	"github.com/theoremus-urban-solutions/trainearly/subscription"
)

const shutdownGrace = 10 * time.Second

// stopTimeout bounds the stop hooks. It outlasts one enrichment lookup, which
// the feed waits for before closing.
func stopTimeout(cfg config.AppConfig) time.Duration {
	return cfg.Enrichment.Timeout() + shutdownGrace
}

func main() {
	path := flag.String("config", "", "path to config.yml (defaults to config.yml, ./config/config.yml)")
	logLevel := flag.String("log-level", "info", "debug|info|warn|error")
	flag.Parse()

	if err := internal.InitLogging(*logLevel); err != nil {
		slog.Error("invalid -log-level", "err", err)
		os.Exit(2)
	}

	cfg, err := config.LoadAppConfig(*path)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}

	app := fx.New(
		fx.NopLogger,
		fx.StopTimeout(stopTimeout(cfg)),
		fx.Supply(cfg),
		fx.Provide(
			newStatsStore,
			newRecorder,
			newDispatcher,
			newService,
			newSubscription,
			newServer,
		),
		fx.Invoke(register),
	)
	if err := app.Err(); err != nil {
		slog.Error("failed to start", "err", err)
		os.Exit(1)
	}
	app.Run()
}

func newStatsStore(cfg config.AppConfig) (*stats.Store, error) {
	loc, err := cfg.Stats.Location()
	if err != nil {
		return nil, err
	}
	return stats.Load(cfg.Stats.Path, loc, time.Now())
}

func newRecorder(cfg config.AppConfig) (*gtfsrt.Recorder, error) {
	loc, err := cfg.Stats.Location()
	if err != nil {
		return nil, err
	}
	return gtfsrt.NewRecorder(cfg.Export.StopID, loc, time.Now()), nil
}

func newDispatcher(cfg config.AppConfig) *notify.Dispatcher {
	var publisher notify.Publisher = notify.LogPublisher{}
	if !cfg.Notify.DryRun {
		publisher = notify.NewTwitterPublisher(notify.Credentials{
			ConsumerKey:       cfg.Notify.ConsumerKey,
			ConsumerSecret:    cfg.Notify.ConsumerSecret,
			AccessToken:       cfg.Notify.AccessToken,
			AccessTokenSecret: cfg.Notify.AccessTokenSecret,
		}, cfg.Notify.Endpoint)
	}

	opts := []notify.Option{notify.WithMinInterval(cfg.Notify.MinInterval())}
	if lat, long, ok := cfg.Notify.Coordinates(); ok {
		opts = append(opts, notify.WithCoordinates(lat, long))
	}
	return notify.NewDispatcher(publisher, opts...)
}

func newService(lc fx.Lifecycle, cfg config.AppConfig, store *stats.Store, d *notify.Dispatcher, rec *gtfsrt.Recorder) (*service.Service, error) {
	loc, err := cfg.Stats.Location()
	if err != nil {
		return nil, err
	}
	opts := []service.Option{service.WithRecorder(rec)}

	if cfg.Enrichment.DSN != "" {
		repo, err := enrichment.Open(cfg.Enrichment.Driver, cfg.Enrichment.DSN, cfg.Enrichment.Query, cfg.Enrichment.Timeout())
		if err != nil {
			return nil, err
		}
		lc.Append(fx.Hook{OnStop: func(context.Context) error { return repo.Close() }})
		opts = append(opts, service.WithLookup(repo))
	} else {
		slog.Info("route enrichment disabled")
	}

	composer := detection.Composer{BaseURL: cfg.Notify.BaseURL, Location: loc}
	return service.New(composer, d, store, opts...), nil
}

func newSubscription(cfg config.AppConfig, svc *service.Service) *subscription.Subscription {
	r := cfg.Feed.Reconnect
	return subscription.New(cfg.Feed.URL, cfg.Feed.Stanox, svc.HandleMessage, subscription.Options{
		InitialInterval:  time.Duration(r.InitialIntervalMS) * time.Millisecond,
		MaxInterval:      time.Duration(r.MaxIntervalMS) * time.Millisecond,
		BreakerThreshold: r.BreakerThreshold,
		BreakerCooldown:  time.Duration(r.BreakerCooldownMS) * time.Millisecond,
	})
}

func newServer(cfg config.AppConfig, sub *subscription.Subscription, store *stats.Store, rec *gtfsrt.Recorder) *server.Server {
	return server.New(cfg.Server.Port, sub, store, rec)
}

// register orders startup as rollover check, status server, then feed. Stop
// hooks run in reverse.
func register(lc fx.Lifecycle, svc *service.Service, srv *server.Server, sub *subscription.Subscription) {
	lc.Append(fx.Hook{
		OnStart: svc.Start,
	})
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error { return srv.Start() },
		OnStop:  srv.Shutdown,
	})
	lc.Append(fx.Hook{
		OnStart: sub.Open,
		OnStop:  sub.Close,
	})
}
