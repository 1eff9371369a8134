// Package app wires the bot together: config, logging, store, the Messenger
// adapter, the feed controller, the relay pipeline, the webhook listener and
// the stats flusher, all under one supervisor.
package app

import (
	"context"
	"errors"
	"time"

	"gardenbot/internal/broadcast"
	"gardenbot/internal/classify"
	"gardenbot/internal/config"
	"gardenbot/internal/eventbus"
	"gardenbot/internal/feed"
	"gardenbot/internal/messenger"
	"gardenbot/internal/relay"
	"gardenbot/internal/runtime/supervisor"
	"gardenbot/internal/stats"
	"gardenbot/internal/stock"
	"gardenbot/internal/store"
	"gardenbot/internal/webhook"
	"gardenbot/pkg/logx"
)

type App struct {
	cfgm *config.Manager
	sup  *supervisor.Supervisor

	log  logx.Logger
	logs *logx.Service
	bus  eventbus.Bus

	store    store.Store
	adapter  *messenger.Adapter
	cache    *stock.Cache
	bcast    *broadcast.Service
	relay    *relay.Relay
	feedCtl  *feed.Controller
	webhook  *webhook.Server
	statsSvc *stats.Service
	counters *stats.Counters
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	// The adapter both sends user traffic and serves as the admin alert sink,
	// but it wants a logger itself. Bootstrap logging with alerting inert,
	// then install the sender.
	logSvc, log := logx.New(mapLoggingConfig(cfg), nil)
	log = log.With(logx.String("comp", "app"))

	counters := &stats.Counters{}

	adapter, err := messenger.New(mapMessengerConfig(cfg), counters,
		logSvc.Logger().With(logx.String("comp", "messenger")))
	if err != nil {
		logSvc.Close()
		return nil, err
	}
	logSvc.SetAlertSender(adapter)

	st, err := store.Open(cfg.Store, logSvc.Logger().With(logx.String("comp", "store")))
	if err != nil {
		logSvc.Close()
		return nil, err
	}
	log.Info("store opened", logx.String("driver", cfg.Store.Driver))

	bus := eventbus.New()
	cache := stock.NewCache()

	bcast := broadcast.New(mapBroadcastConfig(cfg), st, adapter, bus, counters,
		logSvc.Logger().With(logx.String("comp", "broadcast")))

	rel := relay.New(classify.NewTables(cfg.Items), cache, bcast, counters,
		logSvc.Logger().With(logx.String("comp", "relay")))

	feedCtl := feed.NewController(mapFeedConfig(cfg), nil, rel.HandleFrame, bus,
		logSvc.Logger().With(logx.String("comp", "feed")))

	wh := webhook.New(cfg.Webhook, st, adapter, rel, counters,
		logSvc.Logger().With(logx.String("comp", "webhook")))

	statsSvc := stats.New(mapStatsConfig(cfg), counters,
		logSvc.Logger().With(logx.String("comp", "stats")))

	return &App{
		cfgm:     cfgm,
		log:      log,
		logs:     logSvc,
		bus:      bus,
		store:    st,
		adapter:  adapter,
		cache:    cache,
		bcast:    bcast,
		relay:    rel,
		feedCtl:  feedCtl,
		webhook:  wh,
		statsSvc: statsSvc,
		counters: counters,
	}, nil
}

// Done closes when any supervised component fails or Start's context ends.
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		closed := make(chan struct{})
		close(closed)
		return closed
	}
	return a.sup.Context().Done()
}

func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx,
		supervisor.WithLogger(a.log.With(logx.String("comp", "supervisor"))),
		supervisor.WithCancelOnError(true))

	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))

	if err := a.statsSvc.Start(a.sup.Context(), a.bus); err != nil {
		return err
	}

	// The feed giving up is fatal: cancel-on-error tears the app down and
	// the process manager restarts it with a clean slate.
	a.sup.Go("feed.run", func(ctx context.Context) error {
		return a.feedCtl.Run(ctx)
	})

	a.sup.Go("webhook.listen", func(ctx context.Context) error {
		return a.webhook.Start(ctx)
	})

	events, unsub := a.bus.Subscribe(128)
	a.sup.Go0("eventbus.log", func(ctx context.Context) {
		defer unsub()
		for {
			select {
			case <-ctx.Done():
				return
			case e, ok := <-events:
				if !ok {
					return
				}
				a.log.Debug("event", logx.String("type", e.Type), logx.Time("time", e.Time))
			}
		}
	})

	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(ctx context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case newCfg, ok := <-sub:
				if !ok {
					return
				}
				// Coalesce bursts: only the latest config matters.
				for {
					select {
					case newer := <-sub:
						if newer != nil {
							newCfg = newer
						}
					default:
						goto APPLY
					}
				}
			APPLY:
				a.applyConfig(newCfg)
			}
		}
	})

	a.sup.Go("config.watch", func(ctx context.Context) error {
		return a.cfgm.Watch(ctx)
	})

	a.log.Info("app started")
	return nil
}

// applyConfig fans a validated config out to the hot-reloadable services.
// Feed and store changes need a restart; everything else takes effect live.
func (a *App) applyConfig(cfg *config.Config) {
	a.logs.Apply(mapLoggingConfig(cfg))
	a.adapter.Apply(mapMessengerConfig(cfg))
	a.bcast.Apply(mapBroadcastConfig(cfg))
	a.webhook.Apply(cfg.Webhook)
	a.relay.SetTables(classify.NewTables(cfg.Items))
	a.log.Info("config reloaded")
}

func (a *App) Stop(ctx context.Context) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping")

	a.sup.Cancel()

	waitCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	err := a.sup.Wait(waitCtx)

	a.statsSvc.Stop()
	if cerr := a.store.Close(); cerr != nil {
		a.log.Warn("store close failed", logx.Err(cerr))
	}
	a.logs.Close()

	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return nil
}
