// Command watchdog hosts the Watchdog Core Loop (spec §2): polling,
// state-machine transitions, SL/TP placement, the trailing procedure, and
// persistence. Independently restartable from the Scanner process.
package main

import (
	"context"
	"log"
	"time"

	"futures_orchestrator/internal/config"
	"futures_orchestrator/internal/exchange"
	"futures_orchestrator/internal/filtercache"
	"futures_orchestrator/internal/logger"
	"futures_orchestrator/internal/notify"
	"futures_orchestrator/internal/procctl"
	"futures_orchestrator/internal/queue"
	"futures_orchestrator/internal/recovery"
	"futures_orchestrator/internal/store"
	"futures_orchestrator/internal/watchdog"
)

func main() {
	cfg := config.Load()
	logger.Setup("watchdog.log", cfg.MaxLogSizeMB, cfg.MaxLogBackups)
	snapshot := config.NewSnapshot(cfg)

	pidPath := watchdogPIDPath(cfg.PIDFilePath)
	if err := procctl.WritePIDFile(pidPath); err != nil {
		log.Fatalf("watchdog: write pid file: %v", err)
	}
	defer procctl.RemovePIDFile(pidPath)

	notifier := notify.NewTelegram(cfg.TelegramBotToken, cfg.TelegramChatID)
	gateway := exchange.NewBinanceGateway(cfg.BinanceAPIKey, cfg.BinanceAPISecret, cfg.BinanceUseTestnet, cfg.ExchangeWeightPerMinute, cfg.RateLimitSafetyMargin)
	filters := filtercache.New(gateway)
	requestQ := queue.New(cfg.QueueFilePath)

	liveStore, err := store.Load(cfg.StateFilePath)
	if err != nil {
		log.Printf("watchdog: %v; starting with an empty live set", err)
		if sendErr := notifier.Send("Watchdog StateLoadFailed: state file and backup both unreadable, starting empty"); sendErr != nil {
			log.Printf("watchdog: notifier send failed: %v", sendErr)
		}
	}

	ctx := context.Background()
	_, report, err := recovery.Reconcile(ctx, liveStore, gateway)
	if err != nil {
		log.Printf("watchdog: startup reconcile failed: %v", err)
	} else {
		summary := report.String()
		log.Printf("watchdog: startup reconciliation\n%s", summary)
		if sendErr := notifier.Send("Watchdog startup reconciliation:\n" + summary); sendErr != nil {
			log.Printf("watchdog: notifier send failed: %v", sendErr)
		}
	}

	core := watchdog.New(liveStore, gateway, filters, requestQ, notifier, snapshot)

	shutdownCtx, cancel := context.WithCancel(ctx)
	stop := procctl.OnShutdown(func() {
		cancel()
		log.Println("watchdog: shutdown signal received, finishing in-flight poll")
	})
	defer stop()

	log.Println("watchdog: starting poll loop")
	for {
		select {
		case <-shutdownCtx.Done():
			log.Println("watchdog: exiting")
			return
		default:
		}

		if err := core.DrainRequests(shutdownCtx); err != nil {
			log.Printf("watchdog: drain requests: %v", err)
		}
		core.Poll(shutdownCtx)

		select {
		case <-shutdownCtx.Done():
			return
		case <-time.After(time.Duration(snapshot.Get().PollIntervalSeconds) * time.Second):
		}
	}
}

func watchdogPIDPath(base string) string {
	return base + ".watchdog"
}
