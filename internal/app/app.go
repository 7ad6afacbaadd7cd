// Package app assembles the demo services from configuration.
package app

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/signwave/backend/internal/config"
	"github.com/signwave/backend/internal/model/flow"
	"github.com/signwave/backend/internal/model/sign"
	"github.com/signwave/backend/internal/schedule"
	"github.com/signwave/backend/internal/service/avatar"
	"github.com/signwave/backend/internal/service/call"
	flowService "github.com/signwave/backend/internal/service/flow"
	"github.com/signwave/backend/internal/service/history"
	"github.com/signwave/backend/internal/storage/kv"
)

// App holds the wired services.
type App struct {
	Table     *sign.Table
	Presenter *avatar.Presenter
	Flows     *flowService.Service
	Calls     *call.Service
	History   *history.Store

	store kv.Store
	log   zerolog.Logger
}

// New opens storage and builds every service. A nil scheduler means the wall
// clock.
func New(cfg *config.Config, logger zerolog.Logger, sched schedule.Scheduler) (*App, error) {
	store, err := kv.Open(cfg.Storage.Backend, cfg.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("open %s storage: %w", cfg.Storage.Backend, err)
	}
	if sched == nil {
		sched = schedule.NewReal()
	}

	table := sign.NewTable(sign.Seed())

	var opts []avatar.Option
	if cfg.Assets.Dir != "" {
		opts = append(opts, avatar.WithLoader(avatar.NewFSLoader(os.DirFS(cfg.Assets.Dir))))
	}
	presenter := avatar.NewPresenter(table, logger, opts...)

	historyStore := history.NewStore(store, logger)

	flows := flowService.NewService(presenter, logger, flowService.Options{
		Configs:     flowConfigs(cfg.Demo),
		Scheduler:   sched,
		Chooser:     flowService.NewRandomChooser(cfg.Demo.Seed),
		IdleTimeout: cfg.Demo.IdleTimeout,
	})

	calls := call.NewService(presenter, historyStore, logger, call.Options{
		Scheduler:      sched,
		WidgetInterval: cfg.Demo.WidgetInterval,
		PageInterval:   cfg.Demo.PageInterval,
		PublicBaseURL:  cfg.Server.PublicBaseURL,
		IdleTimeout:    cfg.Demo.IdleTimeout,
	})

	logger.Info().
		Str("storage", cfg.Storage.Backend).
		Str("assets", cfg.Assets.Dir).
		Int("signs", len(table.List())).
		Msg("services initialized")

	return &App{
		Table:     table,
		Presenter: presenter,
		Flows:     flows,
		Calls:     calls,
		History:   historyStore,
		store:     store,
		log:       logger,
	}, nil
}

// Close stops every flow and call, then closes storage.
func (a *App) Close() error {
	a.Flows.Shutdown()
	a.Calls.Shutdown()
	if err := a.store.Close(); err != nil {
		return fmt.Errorf("close storage: %w", err)
	}
	return nil
}

func flowConfigs(demo config.DemoConfig) map[flow.Kind]flowService.Config {
	signToText := flowService.DefaultConfig(flow.KindSignToText)
	if demo.SignToTextDelay > 0 {
		signToText.Delay = demo.SignToTextDelay
	}
	if demo.SignToTextShortDelay > 0 {
		signToText.ShortDelay = demo.SignToTextShortDelay
	}

	textToSign := flowService.DefaultConfig(flow.KindTextToSign)
	if demo.TextToSignDelay > 0 {
		textToSign.Delay = demo.TextToSignDelay
	}

	voice := flowService.DefaultConfig(flow.KindVoice)
	if demo.VoiceDelay > 0 {
		voice.Delay = demo.VoiceDelay
	}

	return map[flow.Kind]flowService.Config{
		flow.KindSignToText: signToText,
		flow.KindTextToSign: textToSign,
		flow.KindVoice:      voice,
	}
}
