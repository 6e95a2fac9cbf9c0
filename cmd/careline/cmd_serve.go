package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/user/careline/internal/agents"
	"github.com/user/careline/internal/alert"
	"github.com/user/careline/internal/connectivity"
	"github.com/user/careline/internal/conversation"
	"github.com/user/careline/internal/delivery"
	"github.com/user/careline/internal/gateway"
	"github.com/user/careline/internal/rag"
	"github.com/user/careline/internal/ratelimit"
	"github.com/user/careline/internal/router"
	"github.com/user/careline/internal/sweep"
	"github.com/user/careline/internal/telegram"
	"github.com/user/careline/internal/types"
	"github.com/user/careline/pkg/llm"
	"github.com/user/careline/pkg/llm/llamacpp"
	"github.com/user/careline/pkg/llm/openai"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the careline daemon",
	RunE:  runServe,
}

// logTransport stands in for a real channel when no transport is
// configured, so development setups still see outbound replies.
type logTransport struct{}

func (logTransport) Send(ctx context.Context, recipient string, segments []string) error {
	for _, segment := range segments {
		slog.Info("outbound reply (no transport configured)", "recipient", recipient, "text", segment)
	}
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	setupLogging(cfg)

	store := openStore(cfg)
	defer store.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Inference engines
	local := llamacpp.New(cfg.Local.BaseURL, cfg.Local.Model)
	embedder := llamacpp.New(cfg.Embeddings.BaseURL, "embeddings")
	cloudGen := openai.New(&llm.Config{
		BaseURL:     cfg.Cloud.BaseURL,
		APIKey:      cfg.Cloud.APIKey,
		Model:       cfg.Cloud.Model,
		MaxTokens:   cfg.Cloud.MaxTokens,
		Temperature: cfg.Cloud.Temperature,
	})

	// Retrieval index, seeded on first run
	idx := rag.New(store, embedder)
	if err := rag.Seed(ctx, idx, false); err != nil {
		slog.Warn("guideline seeding failed, continuing without", "error", err)
	}

	// Cloud-side coordinator and specialists
	alerts := alert.New(cfg.Alert.WebhookURL)
	coordinator := agents.NewCoordinator(cloudGen,
		agents.NewPrimaryCare(cloudGen, idx),
		agents.NewMaternalHealth(cloudGen, idx),
		agents.NewRxSafety(cloudGen, idx),
		agents.NewReferral(alerts),
	)

	// Router
	probe := connectivity.New(cfg.Connectivity.ProbeURL)
	rtr := router.New(local, agents.NewEngine(coordinator), probe, idx)

	// Transport
	var adapter *telegram.Adapter
	var transport types.Transport = logTransport{}
	if cfg.Telegram.Token != "" {
		var err error
		adapter, err = telegram.New(cfg.Telegram.Token)
		if err != nil {
			return fmt.Errorf("create telegram adapter: %w", err)
		}
		transport = adapter
	} else {
		slog.Warn("telegram adapter disabled (no token)")
	}

	// Gateway
	est := conversation.NewEstimator(cfg.Cloud.Model)
	limiter := ratelimit.New(cfg.RateLimit.PerHour, cfg.RateLimit.PerDay)
	gw := gateway.New(store, limiter, est, rtr, delivery.New(transport), cfg.AutoSendThreshold, int64(cfg.MaxConcurrent))
	gw.Start(ctx)
	defer gw.Stop()

	if adapter != nil {
		adapter.AttachGateway(gw)
		go adapter.Start(ctx)
		slog.Info("telegram adapter started")
	}

	// Expiry sweep
	sweeper := sweep.New(store, time.Duration(cfg.Sweep.AuditRetentionDays)*24*time.Hour)
	if err := sweeper.Start(cfg.Sweep.Schedule); err != nil {
		return fmt.Errorf("start sweep: %w", err)
	}
	defer sweeper.Stop()

	slog.Info("careline started",
		"data_dir", cfg.DataDir,
		"log_level", cfg.LogLevel,
		"max_concurrent", cfg.MaxConcurrent,
		"auto_send_threshold", cfg.AutoSendThreshold,
		"local_model", cfg.Local.Model,
		"cloud_model", cfg.Cloud.Model,
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	slog.Info("shutting down", "signal", sig)
	return nil
}
