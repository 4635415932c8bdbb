package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"roomreserve/config"
	"roomreserve/dispatcher"
	"roomreserve/dispatcher/channels"
	"roomreserve/eventbus"
	"roomreserve/logger"
	"roomreserve/model"
	"roomreserve/queue"
	"roomreserve/repository/postgres"
	"roomreserve/worker"

	"go.uber.org/zap"
)

func main() {
	logger.Init()
	zlog := logger.Get()
	defer zlog.Sync()

	// Try to load from config.yaml first, fallback to environment variables
	cfg, err := config.Initialise("config.yaml", false)
	if err != nil {
		log.Printf("Config file not found or invalid, using environment variables: %v", err)
		cfg, err = config.Initialise("", true)
		if err != nil {
			log.Fatal("Failed to load configuration:", err)
		}
	}

	repo, err := postgres.New(&cfg.Database)
	if err != nil {
		log.Fatal("Failed to initialize repository:", err)
	}

	// The worker pushes realtime deliveries across processes through the
	// Redis bridge; API instances forward them to their live sessions.
	bridge, err := eventbus.NewRedisBridge(cfg.Redis.GetRedisURL(), cfg.Redis.Password, cfg.Redis.DB, nil)
	if err != nil {
		log.Fatal("Failed to initialize event bridge:", err)
	}

	senders := map[string]dispatcher.ChannelSender{
		model.ChannelRealtime: channels.NewRealtimeSender(bridge),
		model.ChannelSMS:      channels.NewSMSSender(cfg.Channels.SMS),
		model.ChannelTelegram: channels.NewTelegramSender(cfg.Channels.Telegram),
		model.ChannelWhatsapp: channels.NewWhatsappSender(cfg.Channels.Whatsapp),
	}

	disp := dispatcher.New(repo, senders,
		dispatcher.WithMaxAttempts(cfg.Dispatcher.MaxAttempts),
		dispatcher.WithBackoffBase(time.Duration(cfg.Dispatcher.BackoffBaseMillis)*time.Millisecond),
		dispatcher.WithSendTimeout(time.Duration(cfg.Dispatcher.SendTimeoutSeconds)*time.Second),
	)

	consumer := queue.NewReader(&cfg.Kafka)
	defer consumer.Close()

	processor := worker.NewNotificationProcessor(
		repo,
		disp,
		consumer,
		cfg.Worker.MaxWorkers,
		time.Duration(cfg.Worker.RecoverySweepSeconds)*time.Second,
		time.Duration(cfg.Worker.RecoveryMinAgeSecs)*time.Second,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		zlog.Info("received shutdown signal, stopping worker")
		cancel()
	}()

	zlog.Info("notification worker started")
	if err := processor.Start(ctx); err != nil && err != context.Canceled {
		zlog.Fatal("worker error", zap.Error(err))
	}
	zlog.Info("worker stopped gracefully")
}
