package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/leonelquinteros/gotext"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"hyperliquid-alert-bot/config"
	"hyperliquid-alert-bot/internal/alert"
	"hyperliquid-alert-bot/internal/cron"
	"hyperliquid-alert-bot/internal/database"
	"hyperliquid-alert-bot/internal/engine"
	"hyperliquid-alert-bot/internal/hyperliquid"
	"hyperliquid-alert-bot/internal/metrics"
	"hyperliquid-alert-bot/internal/telegram"
)

func init() {
	config.InitConfig()
	setupLogging()
}

func main() {
	gotext.Configure("locales", strings.ToLower(config.GetString("lang")), "default")

	store, err := database.Open(config.GetString("db_path"))
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	metrics.LoadFromStore(store)

	client := hyperliquid.NewClient(config.GetString("hyperliquid_api_url"))
	feed := hyperliquid.NewFeed(config.GetString("hyperliquid_ws_url"))
	if err := feed.Dial(); err != nil {
		log.Fatalf("Failed to connect to price feed: %v", err)
	}

	alertService := alert.NewService(store, client)
	cronService := cron.NewService(store, client)

	bot, err := telegram.NewBot(telegram.BotConfig{
		Token:          config.GetString("telegram_bot_token"),
		Debug:          config.GetBool("debug"),
		UpdatesTimeout: 60,
	}, alertService, cronService, nil)
	if err != nil {
		log.Fatalf("Failed to create bot: %v", err)
	}

	eng := engine.New(engine.Config{
		Store:            store,
		Evaluator:        alert.NewEvaluator(store, config.GetFloat64("price_band_epsilon")),
		Cooldowns:        alert.NewCooldowns(store, bot, config.GetDuration("cooldown_window"), alert.DefaultNotifyTimeout),
		Scheduler:        cron.NewScheduler(store),
		Feed:             feed,
		Prices:           client,
		Notifier:         bot,
		SweepInterval:    config.GetDuration("sweep_interval"),
		CronPollInterval: config.GetDuration("cron_poll_interval"),
	})
	bot.Subscriber = eng

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	updates, err := bot.GetUpdatesChannel()
	if err != nil {
		log.Fatalf("Failed to get updates channel: %v", err)
	}
	go handleUpdates(bot, updates)

	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				metrics.SaveToStore(store)
			}
		}
	}()

	go func() {
		if err := launchMetricsAndHealthServer(config.GetInt("metrics_port")); err != nil {
			log.Fatalf("Failed to start metrics and health server: %v", err)
		}
	}()

	if err := eng.Run(ctx); err != nil {
		log.Fatalf("Failed to start alert engine: %v", err)
	}

	bot.Bot.StopReceivingUpdates()
	metrics.SaveToStore(store)
	log.Println("Metrics saved, shutting down...")
}

func setupLogging() {
	log.SetLevel(log.ErrorLevel)
	if config.GetBool("debug") {
		log.SetLevel(log.DebugLevel)
	}
	log.Debug("Starting alert bot...")
}

func handleUpdates(bot *telegram.Bot, updates tgbotapi.UpdatesChannel) {
	for update := range updates {
		if update.Message == nil || !update.Message.IsCommand() {
			log.Debug("Received non-command update")
			continue
		}

		metrics.MessagesHandled.Inc()
		handleCommand(bot, update)
	}
}

func handleCommand(bot *telegram.Bot, update tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			stackBuf := make([]byte, 1024)
			stackSize := runtime.Stack(stackBuf, false)
			stackTrace := bytes.TrimRight(stackBuf[:stackSize], "\x00")
			log.Errorf("Recovered from panic: %v\nStack trace: %s", r, stackTrace)
		}
	}()

	err := bot.SendMessage(telegram.Message{
		ChatID:    update.Message.Chat.ID,
		Text:      bot.HandleUpdate(update),
		MessageID: update.Message.MessageID,
	})

	if err != nil {
		log.Errorf("Failed to send message: %v", err)
	} else {
		metrics.CommandsProcessed.Inc()
	}
}

func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func launchMetricsAndHealthServer(port int) error {
	http.Handle("/metrics", promhttp.Handler())
	http.HandleFunc("/health", healthCheckHandler)

	log.Infof("Launching metrics and health endpoint on :%d", port)
	return http.ListenAndServe(fmt.Sprintf(":%d", port), http.DefaultServeMux)
}
