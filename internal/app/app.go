package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/jmoiron/sqlx"
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/scamcheck/core/bootstrap"
	"github.com/m3rciful/scamcheck/core/logger"
	corecmd "github.com/m3rciful/scamcheck/core/cmd"
	tg "github.com/m3rciful/scamcheck/core/telegram"
	"github.com/m3rciful/scamcheck/core/telegram/router"
	"github.com/m3rciful/scamcheck/core/telegram/state"
	"github.com/m3rciful/scamcheck/internal/flow"
	"github.com/m3rciful/scamcheck/internal/intake"
	"github.com/m3rciful/scamcheck/internal/locale"
	"github.com/m3rciful/scamcheck/internal/models"
	"github.com/m3rciful/scamcheck/internal/pricewatch"
	"github.com/m3rciful/scamcheck/internal/service"
	"github.com/m3rciful/scamcheck/internal/storage"
)

// App wires storage, services, and the Telegram surface together.
type App struct {
	cfg   *Config
	db    *sqlx.DB
	store *storage.Storage
	loc   *locale.Bundle

	users      *service.Users
	reports    *service.Reports
	guarantors *service.Guarantors
	chats      *service.Chats
	publisher  *service.ChannelPublisher

	transport *intake.Transport
	manager   *intake.Manager
	dialogs   state.Manager
	watcher   *pricewatch.Watcher

	bot atomic.Pointer[tele.Bot]
}

// Bootstrap adapts New to the runner's config carrier contract.
func Bootstrap(carrier corecmd.ConfigCarrier) (corecmd.TelegramApp, error) {
	cfg, ok := carrier.(*Config)
	if !ok {
		return nil, fmt.Errorf("app: unexpected config type %T", carrier)
	}
	return New(cfg)
}

// New initializes infrastructure and builds the application graph.
func New(cfg *Config) (*App, error) {
	res, err := bootstrap.Run(bootstrap.Options{
		Config:   cfg.CoreConfig(),
		Database: cfg.Database,
	})
	if err != nil {
		return nil, err
	}

	loc, err := locale.Load(cfg.Locale.Dir, cfg.Locale.DefaultLang)
	if err != nil {
		_ = res.DB.Close()
		return nil, fmt.Errorf("app: locale load failed: %w", err)
	}

	store := storage.New(res.DB)

	a := &App{
		cfg:   cfg,
		db:    res.DB,
		store: store,
		loc:   loc,
	}

	a.users = service.NewUsers(store.Users)
	a.guarantors = service.NewGuarantors(store.Guarantors)
	a.chats = service.NewChats(store.Chats)
	a.publisher = service.NewChannelPublisher(cfg.Channel.ChatID, loc, cfg.Channel.Lang)
	a.reports = service.NewReports(store.Reports, a.guarantors, a.publisher)

	a.transport = intake.NewTransport(loc)
	a.dialogs = state.NewMemoryManager()
	a.manager = intake.NewManager(loc, loc, a.dialogs)
	for _, name := range []string{models.ReportKindReport, models.ReportKindAppeal} {
		a.manager.Register(flow.New(flow.Config{
			Name:            name,
			MinMedia:        cfg.Intake.MinMedia,
			MaxMedia:        cfg.Intake.MaxMedia,
			MaxDescription:  cfg.Intake.MaxDescription,
			AlbumFlushDelay: cfg.Intake.AlbumFlushDelay,
		}, a.transport, loc, a.reports.Sink(name)))
	}

	if len(cfg.PriceWatch.Symbols) > 0 {
		client := pricewatch.NewClient(cfg.PriceWatch.BaseURL, tg.BuildHTTPClient())
		a.watcher = pricewatch.NewWatcher(pricewatch.Config{
			Symbols:      cfg.PriceWatch.Symbols,
			Interval:     cfg.PriceWatch.Interval,
			ThresholdPct: cfg.PriceWatch.ThresholdPct,
		}, client, pricewatch.NotifierFunc(a.priceAlert))
	}

	a.registerDialogs()

	if err := a.runSeeders(context.Background()); err != nil {
		_ = res.DB.Close()
		return nil, err
	}
	return a, nil
}

// runSeeders applies the optional bootstrap modules, currently only the
// guarantor allowlist seed from configuration.
func (a *App) runSeeders(ctx context.Context) error {
	mods := bootstrap.Modules{
		Seeders: []bootstrap.Seeder{
			bootstrap.SeederFunc(func(ctx context.Context, _ bootstrap.Storage) error {
				for _, entry := range a.cfg.Moderation.SeedGuarantors {
					if err := a.guarantors.Add(ctx, entry, "", 0); err != nil {
						return err
					}
				}
				return nil
			}),
		},
	}
	for _, seeder := range mods.Seeders {
		if err := seeder.Seed(ctx, a.store); err != nil {
			return fmt.Errorf("app: seeding failed: %w", err)
		}
	}
	logger.SEED.Info("seeding complete",
		slog.Int("guarantors", len(a.cfg.Moderation.SeedGuarantors)))
	return nil
}

// TelegramRunOptions builds the bot runtime wiring.
func (a *App) TelegramRunOptions() (tg.RunOptions, error) {
	reg := tg.NewRegistry()
	a.registerCommands(reg)
	if err := a.manager.RegisterCallbacks(reg); err != nil {
		return tg.RunOptions{}, err
	}
	if err := a.registerModerationCallbacks(reg); err != nil {
		return tg.RunOptions{}, err
	}

	adminID := a.cfg.Core.Telegram.AdminID

	routes := router.CommandRoutes(reg, router.CommandRouteOptions{
		AdminID:       adminID,
		OnAdminReject: a.adminRejected(),
	})
	routes = append(routes, router.TextRoutes(a.manager, reg, router.TextOptions{
		UnknownText:     a.UnknownText(),
		UnknownDocument: a.UnknownDocument(),
	})...)
	routes = append(routes, router.MediaRoutes(a.manager, router.MediaOptions{})...)
	routes = append(routes, router.CallbackRoute(reg, router.CallbackOptions{
		NotFound: a.UnknownCallback(),
	}))
	routes = append(routes, tg.Route{Endpoint: tele.OnQuery, Handler: a.handleInlineQuery})

	return tg.RunOptions{
		Config:      a.cfg.CoreConfig(),
		Registry:    reg,
		Middlewares: a.middlewares(),
		Routes:      routes,
		OnStart: func(ctx context.Context, rt tg.Runtime) error {
			a.bot.Store(rt.Bot)
			a.transport.SetBot(rt.Bot)
			a.publisher.SetBot(rt.Bot)
			if a.watcher != nil {
				go a.watcher.Run(ctx)
			}
			go a.autoMessageLoop(ctx)
			return nil
		},
		OnStop: func(ctx context.Context, _ tg.Runtime) error {
			a.manager.Stop()
			return a.db.Close()
		},
	}, nil
}

// priceAlert posts a threshold alert to the channel.
func (a *App) priceAlert(_ context.Context, symbol string, price, _ float64, deltaPct float64) error {
	b := a.bot.Load()
	if b == nil || a.cfg.Channel.ChatID == 0 {
		return nil
	}
	text := fmt.Sprintf(a.loc.Resolve("pricewatch.alert", a.cfg.Channel.Lang), symbol, deltaPct, price)
	_, err := b.Send(tele.ChatID(a.cfg.Channel.ChatID), text)
	return err
}
