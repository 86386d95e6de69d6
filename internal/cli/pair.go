package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/skip2/go-qrcode"
	"github.com/spf13/cobra"

	"github.com/supermarsx/smsgate-sub000/internal/api"
	"github.com/supermarsx/smsgate-sub000/internal/config"
	"github.com/supermarsx/smsgate-sub000/internal/creds"
)

var pairQR bool

var pairCmd = &cobra.Command{
	Use:   "pair <code>",
	Short: "Pair this device with the backend using a one-time code",
	Args:  cobra.ExactArgs(1),
	Run:   runPair,
}

func init() {
	pairCmd.Flags().BoolVar(&pairQR, "qr", false, "also save a QR code of the device identity for the backoffice app")
}

func runPair(cmd *cobra.Command, args []string) {
	printHeader("🔗 smsgated Pair")

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Config error: %v\n", err)
		os.Exit(1)
	}
	if err := config.EnsureDir(cfg.Paths.DataDir); err != nil {
		fmt.Printf("Data dir error: %v\n", err)
		os.Exit(1)
	}

	credStore := creds.NewFileStore(cfg.Paths.DataDir)
	if id, err := creds.DeviceID(credStore); err == nil {
		fmt.Printf("Already paired as device %s; pairing again replaces the stored identity.\n", id)
	}

	client := api.New(cfg.Backend.BaseURL, cfg.Backend.IngestPath,
		time.Duration(cfg.Backend.RequestTimeoutSeconds)*time.Second, credStore, api.DeviceMeta{})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	deviceID, token, err := client.Pair(ctx, args[0])
	if err != nil {
		fmt.Printf("Pairing failed: %v\n", err)
		os.Exit(1)
	}

	if err := credStore.Set(creds.KeyDeviceID, deviceID); err != nil {
		fmt.Printf("Credential save failed: %v\n", err)
		os.Exit(1)
	}
	if err := credStore.Set(creds.KeyDeviceToken, token); err != nil {
		fmt.Printf("Credential save failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Paired: ✓ Device %s\n", deviceID)

	if pairQR {
		qrPath := filepath.Join(cfg.Paths.DataDir, "device-qr.png")
		payload := fmt.Sprintf("%s/devices/%s", cfg.Backend.BaseURL, deviceID)
		if err := qrcode.WriteFile(payload, qrcode.Medium, 512, qrPath); err != nil {
			fmt.Printf("QR code write failed: %v\n", err)
			return
		}
		fmt.Printf("🖼️  Device QR code saved to: %s\n", qrPath)
		fmt.Println("Scan it with the backoffice app to open this device.")
	}
}
