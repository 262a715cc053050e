package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/MinderBot/MinderBot/internal/bus"
	"github.com/MinderBot/MinderBot/internal/channels"
	"github.com/MinderBot/MinderBot/internal/claims"
	"github.com/MinderBot/MinderBot/internal/config"
	"github.com/MinderBot/MinderBot/internal/delivery"
	"github.com/MinderBot/MinderBot/internal/events"
	"github.com/MinderBot/MinderBot/internal/interpret"
	"github.com/MinderBot/MinderBot/internal/router"
	"github.com/MinderBot/MinderBot/internal/store"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the bot: channels, dialogue core and reminder scheduler",
	RunE:  runWorker,
}

func runWorker(cmd *cobra.Command, args []string) error {
	printHeader("MinderBot Worker")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := slog.New(slog.NewTextHandler(os.Stderr, nil))

	if err := os.MkdirAll(cfg.Paths.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	st, err := store.Open(cfg.Paths.DBPath())
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	var pub events.Publisher = events.NopPublisher{}
	if cfg.Events.Enabled {
		kp := events.NewKafkaPublisher(cfg.Events, log)
		defer kp.Close()
		pub = kp
	}

	msgBus := bus.NewMessageBus()

	registry := channels.NewRegistry(log)
	if cfg.Channels.WhatsApp.Enabled {
		registry.Register(channels.NewWhatsAppChannel(cfg.Channels.WhatsApp, cfg.Paths.DataDir, msgBus, log))
	}
	if cfg.Channels.Slack.Enabled {
		registry.Register(channels.NewSlackChannel(cfg.Channels.Slack, msgBus, log))
	}

	interp := interpret.NewOpenAIInterpreter(cfg.Interpreter)
	core := router.New(st, msgBus, interp, pub, cfg.Dialogue, log)
	dispatcher := delivery.New(st, registry, pub, cfg.Scheduler, log)
	// NewManager hands the dispatcher its claim identity.
	manager := claims.NewManager(st, dispatcher, cfg.Scheduler, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := registry.StartAll(ctx); err != nil {
		return err
	}
	defer registry.StopAll()

	go func() {
		if err := msgBus.DispatchOutbound(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("outbound dispatcher stopped", "error", err)
		}
	}()
	go func() {
		if err := core.Loop(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("dialogue loop stopped", "error", err)
		}
	}()

	log.Info("minderbot running",
		"worker_id", manager.WorkerID(),
		"db", cfg.Paths.DBPath())

	err = manager.Run(ctx)
	if errors.Is(err, context.Canceled) {
		log.Info("shutting down")
		return nil
	}
	return err
}
