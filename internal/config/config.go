package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the complete studio-capture configuration
type Config struct {
	InstanceID string        `yaml:"instance_id"`
	SpoolDir   string        `yaml:"spool_dir"` // where assembled clips are spooled
	Capture    CaptureConfig `yaml:"capture"`
	Quality    QualityConfig `yaml:"quality"`
	MQTT       MQTTConfig    `yaml:"mqtt"`
	Upload     UploadConfig  `yaml:"upload"`
	Server     ServerConfig  `yaml:"server"`
}

// CaptureConfig contains device selection and recording limits.
// Device ids are optional; empty means platform default.
type CaptureConfig struct {
	VideoDeviceID        string `yaml:"video_device_id"`
	AudioDeviceID        string `yaml:"audio_device_id"`
	Width                int    `yaml:"width"`  // preview/analysis resolution
	Height               int    `yaml:"height"`
	FPS                  int    `yaml:"fps"`
	Format               string `yaml:"format"`                  // clip container format
	MaxRecordingSeconds  int    `yaml:"max_recording_seconds"`   // hard ceiling (default 90)
	AnalysisIntervalMs   int    `yaml:"analysis_interval_ms"`    // quality tick period (default 1000)
	QualityCheckCeilingS int    `yaml:"quality_check_ceiling_s"` // analysis loop safety net (default 30)
}

// QualityConfig contains the readiness threshold and the per-analyzer
// band boundaries. Two generations of these constants exist in the
// product history; this is the later one (threshold 80, six-band audio
// ladder). All of them are tunables, not hard law.
type QualityConfig struct {
	ReadyThreshold int `yaml:"ready_threshold"`

	Face        FaceBands        `yaml:"face"`
	Lighting    LightingBands    `yaml:"lighting"`
	Audio       AudioBands       `yaml:"audio"`
	Positioning PositioningBands `yaml:"positioning"`
}

// FaceBands holds the face-presence decision ladder boundaries.
type FaceBands struct {
	DarkBrightness  float64 `yaml:"dark_brightness"`  // below: near-black / camera blocked
	FlatVariance    float64 `yaml:"flat_variance"`    // below: no discernible subject
	PartialVariance float64 `yaml:"partial_variance"` // below: partially visible
}

// LightingBands holds the mean-brightness band boundaries.
type LightingBands struct {
	DarkBelow   float64 `yaml:"dark_below"`
	BrightAbove float64 `yaml:"bright_above"`
}

// AudioBands holds the six-band audio level ladder boundaries plus the
// activity level used by the transient-mute heuristic.
type AudioBands struct {
	VeryLow     float64 `yaml:"very_low"`     // mean below: very low (20, error)
	Low         float64 `yaml:"low"`          // mean below: low (45, warning)
	Moderate    float64 `yaml:"moderate"`     // mean below: moderate (65, warning)
	OptimalHigh float64 `yaml:"optimal_high"` // optimal band upper bound (scales 70-100)
	LoudHigh    float64 `yaml:"loud_high"`    // loud band upper bound (70, warning); above: too loud (40, error)
	ActiveLevel float64 `yaml:"active_level"` // previous mean above this counts as audibly active
}

// PositioningBands holds the frame-balance thresholds.
type PositioningBands struct {
	MinFaceScore  int     `yaml:"min_face_score"` // below: position cannot be assessed
	OffCenter     float64 `yaml:"off_center"`     // imbalance above: markedly off-center
	Acceptable    float64 `yaml:"acceptable"`     // imbalance above: acceptable
	FallbackFloor int     `yaml:"fallback_floor"` // generous estimate floor on analysis failure
}

// MQTTConfig contains broker settings for the telemetry emitter.
// An empty broker disables telemetry emission entirely.
type MQTTConfig struct {
	Broker string     `yaml:"broker"`
	Topics MQTTTopics `yaml:"topics"`
	QoS    byte       `yaml:"qos"`
}

// MQTTTopics contains topic templates
type MQTTTopics struct {
	Quality  string `yaml:"quality"`
	Sessions string `yaml:"sessions"`
}

// UploadConfig points at the external save collaborator.
type UploadConfig struct {
	BaseURL  string `yaml:"base_url"`
	TimeoutS int    `yaml:"timeout_s"`
}

// ServerConfig contains the quality-feed endpoint settings.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// Default returns a fully populated configuration with the current
// generation of quality constants.
func Default() *Config {
	return &Config{
		InstanceID: "studio-capture",
		SpoolDir:   os.TempDir(),
		Capture: CaptureConfig{
			Width:                640,
			Height:               480,
			FPS:                  15,
			Format:               "webm",
			MaxRecordingSeconds:  90,
			AnalysisIntervalMs:   1000,
			QualityCheckCeilingS: 30,
		},
		Quality: DefaultQuality(),
		// Topics are derived from the instance id during validation.
		MQTT: MQTTConfig{
			QoS: 0,
		},
		Upload: UploadConfig{
			TimeoutS: 30,
		},
		Server: ServerConfig{
			Addr: ":8090",
		},
	}
}

// DefaultQuality returns the later-generation analyzer constants.
func DefaultQuality() QualityConfig {
	return QualityConfig{
		ReadyThreshold: 80,
		Face: FaceBands{
			DarkBrightness:  10,
			FlatVariance:    100,
			PartialVariance: 500,
		},
		Lighting: LightingBands{
			DarkBelow:   60,
			BrightAbove: 200,
		},
		Audio: AudioBands{
			VeryLow:     5,
			Low:         12,
			Moderate:    18,
			OptimalHigh: 110,
			LoudHigh:    150,
			ActiveLevel: 25,
		},
		Positioning: PositioningBands{
			MinFaceScore:  20,
			OffCenter:     80,
			Acceptable:    40,
			FallbackFloor: 65,
		},
	}
}

// Load reads a YAML configuration file, applies environment overrides
// and validates the result. A missing path returns defaults plus
// environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	applyEnv(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// applyEnv layers .env / process environment on top of the file values.
func applyEnv(cfg *Config) {
	if err := godotenv.Load(); err != nil {
		// No .env file is fine; the process environment still applies.
		slog.Debug("no .env file found, using process environment")
	}

	cfg.InstanceID = getEnv("STUDIO_INSTANCE_ID", cfg.InstanceID)
	cfg.SpoolDir = getEnv("STUDIO_SPOOL_DIR", cfg.SpoolDir)
	cfg.MQTT.Broker = getEnv("STUDIO_MQTT_BROKER", cfg.MQTT.Broker)
	cfg.Upload.BaseURL = getEnv("STUDIO_UPLOAD_URL", cfg.Upload.BaseURL)
	cfg.Server.Addr = getEnv("STUDIO_SERVER_ADDR", cfg.Server.Addr)
	cfg.Quality.ReadyThreshold = getEnvInt("STUDIO_READY_THRESHOLD", cfg.Quality.ReadyThreshold)
	cfg.Capture.MaxRecordingSeconds = getEnvInt("STUDIO_MAX_RECORDING_S", cfg.Capture.MaxRecordingSeconds)
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("ignoring non-integer environment override", "key", key, "value", v)
		return fallback
	}
	return n
}
