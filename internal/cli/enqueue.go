package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/supermarsx/smsgate-sub000/internal/config"
	"github.com/supermarsx/smsgate-sub000/internal/creds"
	"github.com/supermarsx/smsgate-sub000/internal/queue"
	"github.com/supermarsx/smsgate-sub000/internal/store"
)

var (
	enqueueSender string
	enqueueLine   string
)

var enqueueCmd = &cobra.Command{
	Use:   "enqueue <body>",
	Short: "Queue a message by hand (testing and diagnostics)",
	Args:  cobra.ExactArgs(1),
	Run:   runEnqueue,
}

func init() {
	enqueueCmd.Flags().StringVar(&enqueueSender, "sender", "", "sender address (required)")
	enqueueCmd.Flags().StringVar(&enqueueLine, "line", "", "line identifier")
	enqueueCmd.MarkFlagRequired("sender")
}

func runEnqueue(cmd *cobra.Command, args []string) {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Config error: %v\n", err)
		os.Exit(1)
	}

	credStore := creds.NewFileStore(cfg.Paths.DataDir)
	deviceID, err := creds.DeviceID(credStore)
	if err != nil {
		fmt.Printf("Not paired: %v\n", err)
		os.Exit(1)
	}

	st, err := store.New(filepath.Join(cfg.Paths.DataDir, "engine.db"))
	if err != nil {
		fmt.Printf("Store error: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	now := time.Now().UTC()
	m := &queue.Message{
		ID:          uuid.NewString(),
		DeviceID:    deviceID,
		ReceivedAt:  now,
		Sender:      enqueueSender,
		Body:        args[0],
		Fingerprint: queue.Fingerprint(enqueueSender, args[0], now, enqueueLine),
		LineID:      enqueueLine,
		Status:      queue.StatusQueued,
		Provenance:  queue.ProvenancePrimary,
	}
	if err := st.InsertMessage(m); err != nil {
		fmt.Printf("Enqueue failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Queued: ✓ %s (seq %d)\n", m.ID, m.Seq)
	fmt.Println("The running daemon will pick it up on its next sync pass.")
}
