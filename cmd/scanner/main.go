// Command scanner hosts the Order Executor and the batch scheduler that
// repeatedly invokes the (out-of-scope) signal analyzer over the configured
// ticker list (spec §2). Grounded on the teacher's main.go poll loop and
// signal-handling shape.
package main

import (
	"context"
	"log"
	"sync"
	"time"

	"futures_orchestrator/internal/config"
	"futures_orchestrator/internal/exchange"
	"futures_orchestrator/internal/executor"
	"futures_orchestrator/internal/filtercache"
	"futures_orchestrator/internal/logger"
	"futures_orchestrator/internal/models"
	"futures_orchestrator/internal/notify"
	"futures_orchestrator/internal/procctl"
	"futures_orchestrator/internal/queue"
	"futures_orchestrator/internal/recovery"
	"futures_orchestrator/internal/store"
)

// Analyzer is the out-of-scope signal-analysis engine (spec §1): the
// Scanner's sole external collaborator for producing TradingSignals. Only
// its interface is specified; no implementation lives in this module.
type Analyzer interface {
	Analyze(ctx context.Context, symbol string) (*models.TradingSignal, error)
}

// noSignalAnalyzer is a placeholder satisfying Analyzer until a real
// analyzer is wired in; it never produces a signal.
type noSignalAnalyzer struct{}

func (noSignalAnalyzer) Analyze(ctx context.Context, symbol string) (*models.TradingSignal, error) {
	return nil, nil
}

func main() {
	cfg := config.Load()
	logger.Setup("scanner.log", cfg.MaxLogSizeMB, cfg.MaxLogBackups)
	snapshot := config.NewSnapshot(cfg)

	if err := procctl.WritePIDFile(cfg.PIDFilePath); err != nil {
		log.Fatalf("scanner: write pid file: %v", err)
	}
	defer procctl.RemovePIDFile(cfg.PIDFilePath)

	notifier := notify.NewTelegram(cfg.TelegramBotToken, cfg.TelegramChatID)
	gateway := exchange.NewBinanceGateway(cfg.BinanceAPIKey, cfg.BinanceAPISecret, cfg.BinanceUseTestnet, cfg.ExchangeWeightPerMinute, cfg.RateLimitSafetyMargin)
	filters := filtercache.New(gateway)
	requestQ := queue.New(cfg.QueueFilePath)
	analyzer := Analyzer(noSignalAnalyzer{})

	ctx, cancel := context.WithCancel(context.Background())
	stop := procctl.OnShutdown(func() {
		cancel()
		log.Println("scanner: shutdown signal received, finishing in-flight batch")
	})
	defer stop()

	log.Println("scanner: starting")

	for {
		select {
		case <-ctx.Done():
			log.Println("scanner: exiting")
			return
		default:
		}

		runBatch(ctx, cfg, snapshot, gateway, filters, requestQ, notifier, analyzer)

		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Duration(snapshot.Get().PollIntervalSeconds) * time.Second):
		}
	}
}

// runBatch reloads the hot-reloadable config and ticker list, reconciles the
// Symbol Availability Table against the current state file, then dispatches
// one Analyze+Execute pass per symbol across a bounded worker pool (spec §5).
func runBatch(ctx context.Context, cfg *config.Config, snapshot *config.Snapshot, gateway exchange.Gateway, filters *filtercache.Cache, requestQ *queue.Queue, notifier notify.Notifier, analyzer Analyzer) {
	// Only the scalar trading parameters are taken from the re-read; mode,
	// credentials and file paths stay as loaded at startup.
	freshCfg := config.Load()
	next := *cfg
	next.RiskPercent = freshCfg.RiskPercent
	next.Leverage = freshCfg.Leverage
	next.MaxConcurrentOrders = freshCfg.MaxConcurrentOrders
	next.PollIntervalSeconds = freshCfg.PollIntervalSeconds
	next.MaxSLTPAttempts = freshCfg.MaxSLTPAttempts
	next.TrailingTriggerFraction = freshCfg.TrailingTriggerFraction
	next.TrailingCloseFraction = freshCfg.TrailingCloseFraction
	next.TrailingSLFraction = freshCfg.TrailingSLFraction
	snapshot.Swap(&next)
	cfg = snapshot.Get()

	symbols, err := config.LoadTickerList(cfg.TickerListPath)
	if err != nil {
		log.Printf("scanner: load ticker list: %v", err)
		return
	}

	liveStore, err := store.Load(cfg.StateFilePath)
	if err != nil {
		log.Printf("scanner: state file unreadable, proceeding with empty live view: %v", err)
	}

	avail, report, err := recovery.Reconcile(ctx, liveStore, gateway)
	if err != nil {
		log.Printf("scanner: reconcile: %v", err)
		avail = models.AvailabilityTable{}
	} else {
		log.Printf("scanner: reconciliation summary\n%s", report.String())
	}

	exec := executor.New(gateway, filters, liveStore, requestQ, notifier, snapshot, avail)

	sem := make(chan struct{}, cfg.WorkerPoolSize)
	var wg sync.WaitGroup
	for _, symbol := range symbols {
		symbol := symbol
		sem <- struct{}{}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			processSymbol(ctx, exec, analyzer, symbol)
		}()
	}
	wg.Wait()
}

func processSymbol(ctx context.Context, exec *executor.Executor, analyzer Analyzer, symbol string) {
	signal, err := analyzer.Analyze(ctx, symbol)
	if err != nil {
		log.Printf("scanner: analyze %s: %v", symbol, err)
		return
	}
	if signal == nil {
		return
	}

	callCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if _, err := exec.Execute(callCtx, *signal); err != nil {
		log.Printf("scanner: execute %s: %v", symbol, err)
	}
}
