// Package config provides configuration types and loading for smsgated.
package config

// Config is the root configuration struct.
// Top-level groups: Paths, Backend, Device, Capture, Inventory, Logging.
type Config struct {
	Paths     PathsConfig     `json:"paths"`
	Backend   BackendConfig   `json:"backend"`
	Device    DeviceConfig    `json:"device"`
	Capture   CaptureConfig   `json:"capture"`
	Inventory InventoryConfig `json:"inventory"`
	Logging   LoggingConfig   `json:"logging"`
}

// PathsConfig groups all filesystem path settings.
type PathsConfig struct {
	DataDir string `json:"dataDir" envconfig:"DATA_DIR"`
}

// BackendConfig describes the backend the engine syncs against.
type BackendConfig struct {
	BaseURL               string `json:"baseUrl" envconfig:"BASE_URL"`
	IngestPath            string `json:"ingestPath" envconfig:"INGEST_PATH"`
	RequestTimeoutSeconds int    `json:"requestTimeoutSeconds" envconfig:"REQUEST_TIMEOUT_SECONDS"`
	PushEnabled           bool   `json:"pushEnabled" envconfig:"PUSH_ENABLED"`
}

// DeviceConfig is the static device description attached to ingest calls.
type DeviceConfig struct {
	Manufacturer string `json:"manufacturer" envconfig:"MANUFACTURER"`
	Model        string `json:"model" envconfig:"MODEL"`
	OSVersion    string `json:"osVersion" envconfig:"OS_VERSION"`
	AppVersion   string `json:"appVersion" envconfig:"APP_VERSION"`
}

// CaptureConfig configures the message capture source.
type CaptureConfig struct {
	JournalPath string `json:"journalPath" envconfig:"JOURNAL_PATH"`
}

// InventoryConfig declares the device's communication lines on platforms
// without a probe.
type InventoryConfig struct {
	Lines []LineConfig `json:"lines,omitempty"`
}

// LineConfig describes one configured line.
type LineConfig struct {
	Slot    int    `json:"slot"`
	Carrier string `json:"carrier,omitempty"`
	Number  string `json:"number,omitempty"`
	ICCID   string `json:"iccid,omitempty"`
}

// LoggingConfig controls the structured logger.
type LoggingConfig struct {
	Level  string `json:"level" envconfig:"LEVEL"`
	Format string `json:"format" envconfig:"FORMAT"`
}

// DefaultConfig returns a config with sane defaults.
func DefaultConfig() *Config {
	return &Config{
		Paths: PathsConfig{
			DataDir: "~/.smsgated",
		},
		Backend: BackendConfig{
			BaseURL:               "http://localhost:8080",
			IngestPath:            "/messages",
			RequestTimeoutSeconds: 15,
			PushEnabled:           true,
		},
		Capture: CaptureConfig{
			JournalPath: "~/.smsgated/capture.jsonl",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}
