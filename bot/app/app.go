// Package app assembles the payout bot: configuration, session storage, the
// API client, the notification bridge, the conversation engine and the
// Telegram runtime.
package app

import (
	"context"
	"log/slog"

	"github.com/jmoiron/sqlx"
	tele "gopkg.in/telebot.v4"

	"payoutbot/bot/copperx"
	"payoutbot/bot/fsm"
	"payoutbot/bot/notify"
	"payoutbot/bot/session"
	"payoutbot/core/database"
	"payoutbot/core/logger"
	"payoutbot/core/metrics"
	tg "payoutbot/core/telegram"
	tghelpers "payoutbot/core/telegram/helpers"
	"payoutbot/core/telegram/middleware"
	"payoutbot/core/telegram/router"
)

// App holds the assembled components.
type App struct {
	cfg      *Config
	db       *sqlx.DB
	store    session.Store
	api      *copperx.Client
	bridge   *notify.Bridge
	engine   *fsm.Engine
	sender   *botSender
	registry *tg.Registry
}

// Bootstrap builds the application from config. The logger must be
// initialized by the caller first.
func Bootstrap(cfg *Config) (*App, error) {
	a := &App{cfg: cfg}

	a.store = session.NewMemoryStore()
	if cfg.Database.Enabled {
		if err := database.RunMigrations(cfg.Database); err != nil {
			return nil, err
		}
		db, err := database.Connect(cfg.Database)
		if err != nil {
			return nil, err
		}
		a.db = db
		a.store = session.NewPostgresStore(db)
	} else {
		logger.DB.Info("session store",
			slog.String("event", "store.memory"),
			slog.String("reason", "database disabled"),
		)
	}

	a.api = copperx.New(copperx.Config{
		BaseURL:        cfg.Copperx.BaseURL,
		TimeoutSeconds: cfg.Copperx.TimeoutSeconds,
	})

	a.sender = &botSender{}
	a.bridge = notify.NewBridge(notify.Config{
		Key:     cfg.Pusher.Key,
		Cluster: cfg.Pusher.Cluster,
	}, channelAuth{api: a.api}, a.sender)

	var notifier fsm.Notifier
	if a.bridge.Enabled() {
		notifier = a.bridge
	}
	a.engine = fsm.New(a.store, a.api, notifier)

	a.registry = tg.NewRegistry()
	a.registerCommands(a.registry)

	return a, nil
}

// Run starts the metrics endpoint and the Telegram runtime, blocking until
// the context is cancelled.
func (a *App) Run(ctx context.Context) error {
	if a.cfg.Metrics.Listen != "" {
		go metrics.Serve(ctx, a.cfg.Metrics.Listen)
	}

	auth := middleware.AuthOptions{
		Check: a.engine,
		OnReject: func(c tele.Context) error {
			return tghelpers.SendText(c, "🔒 You need to log in first. Use /login.")
		},
	}

	routes := router.CommandRoutes(a.registry, router.CommandRouteOptions{Auth: auth})
	routes = append(routes, router.TextRoutes(a.engine, a.registry, router.TextOptions{})...)
	routes = append(routes, router.CallbackRoute(a.registry, router.CallbackOptions{Auth: auth}))

	opts := tg.RunOptions{
		Config:      &a.cfg.Config,
		Registry:    a.registry,
		Middlewares: tg.DefaultMiddlewares(&a.cfg.Config, nil),
		Routes:      routes,
		OnStart: func(_ context.Context, rt tg.Runtime) error {
			a.sender.bind(rt.Bot)
			return nil
		},
		OnStop: func(_ context.Context, _ tg.Runtime) error {
			a.Close()
			return nil
		},
	}
	return tg.Run(ctx, opts)
}

// Close releases the bridge and database resources.
func (a *App) Close() {
	if a.bridge != nil {
		a.bridge.Close()
	}
	if a.db != nil {
		_ = a.db.Close()
	}
}
