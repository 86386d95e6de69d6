package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/supermarsx/smsgate-sub000/internal/config"
	"github.com/supermarsx/smsgate-sub000/internal/creds"
	"github.com/supermarsx/smsgate-sub000/internal/queue"
	"github.com/supermarsx/smsgate-sub000/internal/store"
	"github.com/supermarsx/smsgate-sub000/internal/worker"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		printHeader("🏷️ smsgated Version")
		fmt.Printf("Version: %s\n", version)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show engine status",
	Run: func(cmd *cobra.Command, args []string) {
		printHeader("📊 smsgated Status")
		fmt.Printf("Version: %s\n", version)

		cfg, err := config.Load()
		if err != nil {
			fmt.Printf("Config:  ✗ %v\n", err)
			return
		}
		configPath, _ := config.ConfigPath()
		if _, err := os.Stat(configPath); err == nil {
			fmt.Println("Config:  ✓ Found (" + configPath + ")")
		} else {
			fmt.Println("Config:  ✗ Not found (using defaults)")
		}
		fmt.Printf("Backend: %s\n", cfg.Backend.BaseURL)

		credStore := creds.NewFileStore(cfg.Paths.DataDir)
		if id, err := creds.DeviceID(credStore); err == nil {
			fmt.Printf("Paired:  ✓ Device %s\n", id)
		} else if errors.Is(err, creds.ErrNotPaired) {
			fmt.Println("Paired:  ✗ Not paired (run 'smsgated pair <code>' first)")
		} else {
			fmt.Printf("Paired:  ? %v\n", err)
		}

		dbPath := filepath.Join(cfg.Paths.DataDir, "engine.db")
		if _, err := os.Stat(dbPath); err != nil {
			fmt.Println("Queue:   ✗ No local database yet")
			return
		}
		st, err := store.New(dbPath)
		if err != nil {
			fmt.Printf("Queue:   ✗ %v\n", err)
			return
		}
		defer st.Close()

		counts, err := st.CountByStatus()
		if err != nil {
			fmt.Printf("Queue:   ✗ %v\n", err)
			return
		}
		fmt.Printf("Queue:   %d queued, %d sending, %d acked, %d failed\n",
			counts[queue.StatusQueued], counts[queue.StatusSending],
			counts[queue.StatusAcked], counts[queue.StatusFailed])

		if hb, ok, err := st.LatestHeartbeatSample(); err == nil && ok {
			delivered := "✗ undelivered"
			if hb.Delivered {
				delivered = "✓ delivered"
			}
			fmt.Printf("Heartbeat: %s at %s (depth %d)\n",
				delivered, hb.SentAt.Local().Format("2006-01-02 15:04:05"), hb.QueueDepth)
		} else {
			fmt.Println("Heartbeat: none recorded")
		}

		for _, name := range []string{worker.TaskSync, worker.TaskReconcile, worker.TaskHeartbeat, worker.TaskInventory, worker.TaskRetention, worker.TaskPolicy} {
			status, lastRun, ok, err := st.TaskRun(name)
			if err != nil || !ok {
				fmt.Printf("Task %-10s never ran\n", name)
				continue
			}
			fmt.Printf("Task %-10s %s at %s\n", name, status, lastRun.Local().Format("2006-01-02 15:04:05"))
		}
	},
}
