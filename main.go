package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/example/engbot/internal/bot"
	"github.com/example/engbot/internal/config"
	"github.com/example/engbot/internal/database"
	"github.com/example/engbot/internal/logger"
	"github.com/example/engbot/internal/review"
	"github.com/example/engbot/internal/scheduler"
	sr "github.com/example/engbot/internal/spaced_repetition"
)

const shutdownTimeout = 5 * time.Second

func main() {
	flags := pflag.NewFlagSet("engbot", pflag.ExitOnError)
	config.RegisterFlags(flags)
	_ = flags.Parse(os.Args[1:])

	configFile, _ := flags.GetString("config")
	envFile, _ := flags.GetString("env-file")
	cfg, err := config.Load(config.Options{ConfigFile: configFile, EnvFile: envFile, Flags: flags})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Error("engbot stopped with error", "error", err)
		log.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *logger.Logger) error {
	// Контекст отменяется по Ctrl+C или SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Connect(ctx, cfg.DBType, cfg.DBDSN)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()
	log.Info("database connected", "type", cfg.DBType)

	store := database.NewStore(db)
	cache := sr.NewCache(cfg.CacheCapacity)
	sm2 := sr.NewSM2(sr.WithCache(cache), sr.WithBatchWorkers(cfg.BatchWorkers))
	reviews := review.NewService(store, sm2, log.With("component", "review"))

	var notifier scheduler.Notifier = logNotifier{log: log.With("component", "notifier")}
	botDone := make(chan struct{})
	if cfg.EnableBot {
		api, err := bot.Connect(cfg.TelegramBotToken)
		if err != nil {
			return err
		}
		log.Info("authorized on telegram", "account", api.Self.UserName)

		botCfg := bot.DefaultConfig()
		botCfg.AdminUserIDs = cfg.Admins
		botCfg.QueueCapacity = cfg.QueueCapacity
		b := bot.New(api, reviews, botCfg, log.With("component", "bot"))
		notifier = b

		updates := api.GetUpdatesChan(b.UpdatesConfig())
		go func() {
			defer close(botDone)
			b.Run(ctx, updates)
		}()
		defer api.StopReceivingUpdates()
	} else {
		close(botDone)
	}

	if cfg.EnableScheduler {
		window := scheduler.Window{StartHour: cfg.NotificationStartHour, EndHour: cfg.NotificationEndHour}
		sched := scheduler.New(notifier, store.Users, reviews, window,
			log.With("component", "scheduler"), scheduler.WithCache(cache))
		if err := sched.Start(); err != nil {
			return err
		}
		defer sched.Stop()
	}

	log.Info("engbot started", "bot", cfg.EnableBot, "scheduler", cfg.EnableScheduler)
	<-ctx.Done()
	log.Info("shutting down")

	select {
	case <-botDone:
	case <-time.After(shutdownTimeout):
		log.Warn("bot handlers did not finish in time", "timeout", shutdownTimeout)
	}
	return nil
}

// logNotifier stands in for the bot when Telegram is disabled.
type logNotifier struct {
	log *logger.Logger
}

func (n logNotifier) SendReminders(userID int64, count int) error {
	n.log.Info("cards due", "user_id", userID, "count", count)
	return nil
}
