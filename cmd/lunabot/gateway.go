package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"lunabot/internal/agent"
	"lunabot/internal/bus"
	"lunabot/internal/catalog"
	"lunabot/internal/channel"
	"lunabot/internal/config"
	"lunabot/internal/engagement"
	"lunabot/internal/metrics"
	"lunabot/internal/provider"
	"lunabot/internal/render"
)

func gatewayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "gateway",
		Short: "Start the Telegram relay",
		Long:  "Connects to Telegram, relays every message to Voiceflow and runs the engagement timers. Press Ctrl+C to stop.",
		RunE:  runGateway,
	}
}

func runGateway(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, logCloser := newLogger(cfg.General)
	defer logCloser.Close()

	cards, err := catalog.LoadFile(cfg.Catalog.Path)
	if err != nil {
		return err
	}
	logger.Info("card catalog loaded", "cards", cards.Len(), "file", cfg.Catalog.Path)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	telegram, err := channel.NewTelegram(channel.TelegramConfig{
		Token:     cfg.Telegram.Token,
		AllowFrom: cfg.Telegram.AllowFrom,
		ParseMode: cfg.Telegram.ParseMode,
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	engine := provider.NewVoiceflow(provider.VoiceflowConfig{
		APIKey:    cfg.Voiceflow.APIKey,
		VersionID: cfg.Voiceflow.VersionID,
		APIBase:   cfg.Voiceflow.APIBase,
		Timeout:   cfg.Voiceflow.Timeout(),
		Logger:    logger,
	})

	renderer := render.NewRenderer(render.RendererConfig{
		Platform: telegram,
		Cards:    cards,
		ChunkLen: cfg.Telegram.ChunkSize,
		Logger:   logger,
	})

	scheduler := engagement.NewScheduler(engagement.Config{
		Outlet:          renderer,
		Cards:           cards,
		Logger:          logger,
		InactivityDelay: cfg.Engagement.InactivityDelay(),
		CheckInDelay:    cfg.Engagement.CheckInDelay(),
		GiftDelay:       cfg.Engagement.GiftDelay(),
	})
	renderer.SetLoyalty(scheduler)

	messageBus := bus.New(cfg.General.BusBufferSize, logger)

	loop := agent.NewLoop(agent.LoopConfig{
		Engine:      engine,
		Platform:    telegram,
		Renderer:    renderer,
		Engagement:  scheduler,
		Bus:         messageBus,
		Logger:      logger,
		Concurrency: cfg.General.MaxConcurrentMessages,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return telegram.Start(gctx, messageBus)
	})
	g.Go(func() error {
		loop.Run(gctx)
		return nil
	})
	if cfg.Metrics.Enabled {
		g.Go(func() error {
			return metrics.Serve(gctx, cfg.Metrics.Addr, cfg.Metrics.Path, logger)
		})
	}

	logger.Info("gateway started. Press Ctrl+C to stop.",
		"engine", engine.Name(),
		"version_id", cfg.Voiceflow.VersionID,
	)

	err = g.Wait()
	logger.Info("shutting down gateway")
	scheduler.Stop()
	messageBus.Close()
	telegram.Stop()

	if err != nil {
		return fmt.Errorf("gateway: %w", err)
	}
	logger.Info("shutdown complete")
	return nil
}
