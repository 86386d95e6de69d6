package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/supermarsx/smsgate-sub000/internal/api"
	"github.com/supermarsx/smsgate-sub000/internal/bus"
	"github.com/supermarsx/smsgate-sub000/internal/config"
	"github.com/supermarsx/smsgate-sub000/internal/creds"
	"github.com/supermarsx/smsgate-sub000/internal/policy"
	"github.com/supermarsx/smsgate-sub000/internal/runtime"
	"github.com/supermarsx/smsgate-sub000/internal/scheduler"
	"github.com/supermarsx/smsgate-sub000/internal/source"
	"github.com/supermarsx/smsgate-sub000/internal/store"
	"github.com/supermarsx/smsgate-sub000/internal/worker"
)

// policyRefreshInterval is the pull cadence for the policy document. Pushes
// over the control channel arrive ahead of it; the pull is the safety net.
const policyRefreshInterval = 5 * time.Minute

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the sync engine",
	Run:   runDaemon,
}

var daemonSignals = []os.Signal{os.Interrupt, syscall.SIGTERM}

func runDaemon(cmd *cobra.Command, args []string) {
	printHeader("📡 smsgated Daemon")

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Config error: %v\n", err)
		os.Exit(1)
	}
	setupLogging(cfg.Logging)

	if err := config.EnsureDir(cfg.Paths.DataDir); err != nil {
		fmt.Printf("Data dir error: %v\n", err)
		os.Exit(1)
	}
	st, err := store.New(filepath.Join(cfg.Paths.DataDir, "engine.db"))
	if err != nil {
		fmt.Printf("Store error: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	credStore := creds.NewFileStore(cfg.Paths.DataDir)
	client := api.New(cfg.Backend.BaseURL, cfg.Backend.IngestPath,
		time.Duration(cfg.Backend.RequestTimeoutSeconds)*time.Second,
		credStore, api.DeviceMeta{
			Manufacturer: cfg.Device.Manufacturer,
			Model:        cfg.Device.Model,
			OSVersion:    cfg.Device.OSVersion,
			AppVersion:   cfg.Device.AppVersion,
		})

	b := bus.New()
	status := runtime.NewStatus()
	repo := policy.NewRepository(st, client, b)
	sched := scheduler.New(st)
	journal := source.NewJournal(cfg.Capture.JournalPath)

	syncWorker := worker.NewSync(st, client, repo, sched, status)
	reconcileWorker := worker.NewReconcile(st, journal, repo, sched, credStore)
	heartbeatWorker := worker.NewHeartbeat(st, client, repo, sched, status, credStore, b)
	inventoryWorker := worker.NewInventory(st, configuredLines(cfg), client, repo, sched, credStore)
	retentionWorker := worker.NewRetention(st, repo, sched)
	captureWorker := worker.NewCapture(st, journal, b, credStore, time.Now().UTC())

	sched.Register(worker.TaskSync, syncWorker.Run)
	sched.Register(worker.TaskReconcile, reconcileWorker.Run)
	sched.Register(worker.TaskHeartbeat, heartbeatWorker.Run)
	sched.Register(worker.TaskInventory, inventoryWorker.Run)
	sched.Register(worker.TaskRetention, retentionWorker.Run)
	sched.Register(worker.TaskPolicy, func(ctx context.Context) scheduler.Outcome {
		if err := repo.Refresh(ctx); err != nil {
			slog.Warn("Policy refresh failed", "error", err)
			return scheduler.OutcomeRetry
		}
		sched.ScheduleAfter(worker.TaskPolicy, policyRefreshInterval)
		return scheduler.OutcomeSuccess
	})

	b.Subscribe(bus.EventPolicyChanged, func(bus.Event) {
		pol := repo.Effective()
		sched.ScheduleAfter(worker.TaskSync, pol.SyncInterval)
		sched.ScheduleAfter(worker.TaskReconcile, pol.ReconcileInterval)
		sched.ScheduleAfter(worker.TaskHeartbeat, pol.HeartbeatInterval)
		sched.ScheduleAfter(worker.TaskInventory, pol.InventoryPollInterval)
	})
	b.Subscribe(bus.EventMessageCaptured, func(bus.Event) {
		sched.RunNow(worker.TaskSync)
	})
	b.Subscribe(bus.EventConnectivity, func(bus.Event) {
		sched.RunNow(worker.TaskSync)
	})

	ctx, stop := signal.NotifyContext(context.Background(), daemonSignals...)
	defer stop()

	if err := syncWorker.Startup(); err != nil {
		fmt.Printf("Queue recovery error: %v\n", err)
		os.Exit(1)
	}

	go b.Dispatch(ctx)
	sched.Start(ctx)

	go captureWorker.Run(ctx)
	go reconcileWorker.BootScan(ctx)
	if cfg.Backend.PushEnabled {
		push := api.NewPushChannel(client.Base(), credStore, func(msg api.PushMessage) {
			if msg.Type != api.PushTypeConfigUpdate {
				return
			}
			if err := repo.ApplyPush(msg.Version, msg.Config); err != nil {
				slog.Warn("Pushed policy rejected", "error", err)
			}
		})
		go push.Run(ctx)
	}

	pol := repo.Effective()
	sched.RunNow(worker.TaskPolicy)
	sched.ScheduleAfter(worker.TaskSync, time.Second)
	sched.ScheduleAfter(worker.TaskReconcile, pol.ReconcileInterval)
	sched.ScheduleAfter(worker.TaskHeartbeat, pol.HeartbeatInterval)
	sched.ScheduleAfter(worker.TaskInventory, pol.InventoryPollInterval)
	sched.ScheduleAfter(worker.TaskRetention, time.Minute)

	slog.Info("Engine running", "backend", cfg.Backend.BaseURL, "data_dir", cfg.Paths.DataDir)
	<-ctx.Done()
	slog.Info("Shutting down")
	sched.Stop()
}

func configuredLines(cfg *config.Config) worker.StaticLines {
	lines := make(worker.StaticLines, 0, len(cfg.Inventory.Lines))
	for _, l := range cfg.Inventory.Lines {
		lines = append(lines, api.LineFact{Slot: l.Slot, Carrier: l.Carrier, Number: l.Number, ICCID: l.ICCID})
	}
	return lines
}

func setupLogging(cfg config.LoggingConfig) {
	var level slog.Level
	switch strings.ToLower(strings.TrimSpace(cfg.Level)) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}
