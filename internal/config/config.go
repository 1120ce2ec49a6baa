package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// CameraConfig describes how to reach the camera.
// Simulate selects the synthetic camera (no gphoto2 needed).
type CameraConfig struct {
	Simulate      bool   `yaml:"simulate"`
	CaptureTarget string `yaml:"capture_target"` // pushed to the camera on init, e.g. "1" for memory card
	Keep          bool   `yaml:"keep"`           // keep the image on the camera after download
	GPhoto2Bin    string `yaml:"gphoto2_bin"`
}

// PrintingConfig controls the print subsystem.
type PrintingConfig struct {
	Enabled        bool   `yaml:"enabled"`
	Simulate       bool   `yaml:"simulate"`
	Printer        string `yaml:"printer"`         // CUPS queue name
	LimitPerUser   int    `yaml:"limit_per_user"`  // 0 = unlimited
	PollIntervalMs int    `yaml:"poll_interval_ms"`
	LpBin          string `yaml:"lp_bin"`
	LpstatBin      string `yaml:"lpstat_bin"`
	KeepFullSize   *bool  `yaml:"keep_fullsize,omitempty"` // default: same as Enabled
}

// LayoutConfig is one named collage layout: a rows x cols grid on a canvas.
type LayoutConfig struct {
	Rows       int    `yaml:"rows"`
	Cols       int    `yaml:"cols"`
	Width      int    `yaml:"width"`  // canvas width in px (print resolution)
	Height     int    `yaml:"height"` // canvas height in px
	Margin     int    `yaml:"margin"` // gap between cells and border in px
	Background string `yaml:"background"`
}

// CollageConfig holds the available layouts.
type CollageConfig struct {
	Layouts      map[string]LayoutConfig `yaml:"layouts"`
	PreviewWidth int                     `yaml:"preview_width"`
}

// WebappConfig describes the client-facing web surface.
type WebappConfig struct {
	Addr                string `yaml:"addr"`
	Password            string `yaml:"password"`
	EnableRemoteRelease bool   `yaml:"enable_remote_release"`
	MaxImages           int    `yaml:"max_images"`
	GrayscaleMode       bool   `yaml:"grayscale_mode"`
}

// SlideshowConfig is forwarded to clients on connect.
type SlideshowConfig struct {
	Enabled               bool `yaml:"enabled"`
	ActivatesAfterSeconds int  `yaml:"activates_after_seconds"`
	SecondsPerPhoto       int  `yaml:"seconds_per_photo"`
}

// GPIOConfig wires a physical shutter button and a busy LED.
type GPIOConfig struct {
	Enabled    bool `yaml:"enabled"`
	Mock       bool `yaml:"mock"`       // use mock GPIO (true=dev/test, false=real Raspberry Pi)
	ButtonPin  int  `yaml:"button_pin"` // BCM pin, pulled up, pressed = LOW
	LEDPin     int  `yaml:"led_pin"`    // 0 = no LED
	DebounceMs int  `yaml:"debounce_ms"`
	PollMs     int  `yaml:"poll_ms"`
}

// MQTTConfig enables mirroring of outbound events to a broker.
type MQTTConfig struct {
	Broker      string `yaml:"broker"` // e.g. "tcp://localhost:1883"; empty = disabled
	ClientID    string `yaml:"client_id"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	TopicPrefix string `yaml:"topic_prefix"`
}

// AuditConfig adds a Postgres sink next to print-log.txt.
type AuditConfig struct {
	PostgresURL string `yaml:"postgres_url"`
}

// LoggingConfig configures the debug logger.
type LoggingConfig struct {
	Level int    `yaml:"level"` // 0-4 (0=off, 1=info, 2=live, 3=verbose, 4=trace)
	File  string `yaml:"file"`
}

// Config aggregates all application configuration.
type Config struct {
	ContentDir   string          `yaml:"content_dir"`
	MaxImageSize int             `yaml:"max_image_size"`
	Camera       CameraConfig    `yaml:"camera"`
	Printing     PrintingConfig  `yaml:"printing"`
	Collage      CollageConfig   `yaml:"collage"`
	Webapp       WebappConfig    `yaml:"webapp"`
	Slideshow    SlideshowConfig `yaml:"slideshow"`
	GPIO         GPIOConfig      `yaml:"gpio"`
	MQTT         MQTTConfig      `yaml:"mqtt"`
	Audit        AuditConfig     `yaml:"audit"`
	Logging      LoggingConfig   `yaml:"logging"`
}

// Environment variables that override secrets from the YAML file.
const (
	EnvPassword     = "PHOTOBOOTH_PASSWORD"
	EnvPostgresURL  = "PHOTOBOOTH_AUDIT_POSTGRES_URL"
	EnvMQTTPassword = "PHOTOBOOTH_MQTT_PASSWORD"
)

// Load reads a YAML file and returns the configuration.
// A .env file next to the working directory is loaded first, if present.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML, applies environment overrides, defaults, and validation.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal yaml: %w", err)
	}

	applyEnv(&cfg)

	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv(EnvPassword)); v != "" {
		cfg.Webapp.Password = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvPostgresURL)); v != "" {
		cfg.Audit.PostgresURL = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvMQTTPassword)); v != "" {
		cfg.MQTT.Password = v
	}
}

func (cfg *Config) applyDefaults() error {
	if cfg.ContentDir == "" {
		cfg.ContentDir = "content"
	}
	if cfg.MaxImageSize < 0 {
		return fmt.Errorf("max_image_size must be >= 0, got %d", cfg.MaxImageSize)
	}
	if cfg.MaxImageSize == 0 {
		cfg.MaxImageSize = 1500
	}

	if cfg.Camera.GPhoto2Bin == "" {
		cfg.Camera.GPhoto2Bin = "gphoto2"
	}

	if cfg.Printing.LimitPerUser < 0 {
		return fmt.Errorf("printing.limit_per_user must be >= 0, got %d", cfg.Printing.LimitPerUser)
	}
	if cfg.Printing.PollIntervalMs <= 0 {
		cfg.Printing.PollIntervalMs = 5000
	}
	if cfg.Printing.LpBin == "" {
		cfg.Printing.LpBin = "lp"
	}
	if cfg.Printing.LpstatBin == "" {
		cfg.Printing.LpstatBin = "lpstat"
	}
	if cfg.Printing.Enabled && !cfg.Printing.Simulate && cfg.Printing.Printer == "" {
		return fmt.Errorf("printing.printer is required when printing is enabled")
	}

	if cfg.Collage.PreviewWidth <= 0 {
		cfg.Collage.PreviewWidth = 800
	}
	if len(cfg.Collage.Layouts) == 0 {
		cfg.Collage.Layouts = DefaultLayouts()
	}
	for name, l := range cfg.Collage.Layouts {
		if l.Rows <= 0 || l.Cols <= 0 {
			return fmt.Errorf("collage layout %q: rows and cols must be > 0", name)
		}
		if l.Width <= 0 || l.Height <= 0 {
			return fmt.Errorf("collage layout %q: width and height must be > 0", name)
		}
		if l.Margin < 0 || 2*l.Margin >= l.Width || 2*l.Margin >= l.Height {
			return fmt.Errorf("collage layout %q: margin %d out of range", name, l.Margin)
		}
		if (l.Width-l.Margin*(l.Cols+1))/l.Cols <= 0 || (l.Height-l.Margin*(l.Rows+1))/l.Rows <= 0 {
			return fmt.Errorf("collage layout %q: cells are empty with margin %d", name, l.Margin)
		}
		if l.Background == "" {
			l.Background = "#ffffff"
			cfg.Collage.Layouts[name] = l
		}
	}

	if cfg.Webapp.Addr == "" {
		cfg.Webapp.Addr = ":8080"
	}
	if cfg.Webapp.MaxImages <= 0 {
		cfg.Webapp.MaxImages = 50
	}

	if cfg.Slideshow.ActivatesAfterSeconds <= 0 {
		cfg.Slideshow.ActivatesAfterSeconds = 30
	}
	if cfg.Slideshow.SecondsPerPhoto <= 0 {
		cfg.Slideshow.SecondsPerPhoto = 8
	}
	if cfg.Slideshow.SecondsPerPhoto < 4 {
		cfg.Slideshow.SecondsPerPhoto = 4 // fade takes 3s
	}

	if cfg.GPIO.Enabled && cfg.GPIO.ButtonPin <= 0 {
		return fmt.Errorf("gpio.button_pin is required when gpio is enabled")
	}
	if cfg.GPIO.DebounceMs <= 0 {
		cfg.GPIO.DebounceMs = 50
	}
	if cfg.GPIO.PollMs <= 0 {
		cfg.GPIO.PollMs = 10
	}

	if cfg.MQTT.TopicPrefix == "" {
		cfg.MQTT.TopicPrefix = "photobooth"
	}
	if cfg.MQTT.ClientID == "" {
		cfg.MQTT.ClientID = "photobooth"
	}

	if cfg.Logging.Level < 0 || cfg.Logging.Level > 4 {
		return fmt.Errorf("logging.level must be between 0 and 4, got %d", cfg.Logging.Level)
	}
	return nil
}

// DefaultLayouts is used when the config file declares none.
// Sizes are 4x6in at 300 dpi.
func DefaultLayouts() map[string]LayoutConfig {
	return map[string]LayoutConfig{
		"single": {Rows: 1, Cols: 1, Width: 1800, Height: 1200, Margin: 40, Background: "#ffffff"},
		"quad":   {Rows: 2, Cols: 2, Width: 1800, Height: 1200, Margin: 30, Background: "#ffffff"},
		"strip":  {Rows: 3, Cols: 1, Width: 600, Height: 1800, Margin: 25, Background: "#000000"},
	}
}

// PhotosDir returns the directory holding resized web photos.
func (c *Config) PhotosDir() string {
	return filepath.Join(c.ContentDir, "photos")
}

// TmpDir returns the directory holding rendered collages.
func (c *Config) TmpDir() string {
	return filepath.Join(c.ContentDir, "photos", "tmp")
}

// FullSizeDir returns the directory holding untouched originals.
func (c *Config) FullSizeDir() string {
	return filepath.Join(c.ContentDir, "photos_fullsize")
}

// PrintLogPath returns the append-only print audit file.
func (c *Config) PrintLogPath() string {
	return filepath.Join(c.ContentDir, "print-log.txt")
}

// ContactsPath returns the file collecting visitor contact addresses.
func (c *Config) ContactsPath() string {
	return filepath.Join(c.ContentDir, "contact-addresses.txt")
}

// KeepFullSize reports whether originals are written before resizing.
func (c *Config) KeepFullSize() bool {
	if c.Printing.KeepFullSize != nil {
		return *c.Printing.KeepFullSize
	}
	return c.Printing.Enabled
}

// PrintingSimulated reports whether the simulated print driver is used.
func (c *Config) PrintingSimulated() bool {
	return !c.Printing.Enabled || c.Printing.Simulate
}

// PollInterval returns the delay between two print job status polls.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Printing.PollIntervalMs) * time.Millisecond
}

// Debounce returns the button debounce duration.
func (c *Config) Debounce() time.Duration {
	return time.Duration(c.GPIO.DebounceMs) * time.Millisecond
}

// ButtonPoll returns the button sampling period.
func (c *Config) ButtonPoll() time.Duration {
	return time.Duration(c.GPIO.PollMs) * time.Millisecond
}

// EnsureDirs creates every content directory the booth writes to.
func (c *Config) EnsureDirs() error {
	for _, dir := range []string{c.PhotosDir(), c.TmpDir(), c.FullSizeDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}
