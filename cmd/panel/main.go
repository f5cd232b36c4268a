package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"guildpanel/internal/analytics"
	"guildpanel/internal/audit"
	"guildpanel/internal/bot"
	"guildpanel/internal/bridge"
	"guildpanel/internal/config"
	"guildpanel/internal/greeter"
	"guildpanel/internal/storage"
	"guildpanel/internal/templates"
	"guildpanel/internal/web"

	"github.com/bwmarrin/discordgo"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger, err := config.BuildLogger(cfg.LogLevel, cfg.LogPath)
	if err != nil {
		panic(err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	store, err := storage.New(cfg.DatabasePath)
	if err != nil {
		logger.Fatal("storage init failed", zap.Error(err))
	}
	defer store.Close()
	if err := store.Migrate(); err != nil {
		logger.Fatal("migrations failed", zap.Error(err))
	}

	session, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		logger.Fatal("session init failed", zap.Error(err))
	}

	guildBridge := bridge.NewDiscordBridge(session, logger)
	greeterService := greeter.New(store, guildBridge, logger)
	analyticsService := analytics.New(store, guildBridge, logger)
	templateService := templates.New(store, guildBridge, logger)
	auditLogger := audit.NewLogger(store, logger)

	hub := web.NewHub(logger)
	botSvc := bot.New(cfg, logger, session, greeterService, analyticsService, hub)

	if err := botSvc.Start(); err != nil {
		logger.Fatal("bot start failed", zap.Error(err))
	}
	logger.Info("bot started")

	server := web.NewServer(cfg, logger, store, guildBridge, templateService, analyticsService, auditLogger, hub)

	rootCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go auditLogger.RunRetention(rootCtx, cfg.RetentionDays)
	go analyticsService.RunSnapshots(rootCtx, botSvc.GuildIDs)
	go func() {
		if err := server.Start(rootCtx); err != nil {
			logger.Error("http server error", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logger.Info("shutdown requested")
	cancel()

	ctx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	_ = server.Shutdown(ctx)
	botSvc.Close(ctx)
}
