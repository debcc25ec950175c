// conf/config.go
package conf

import (
	"strings"
	"sync"

	"github.com/spf13/viper"

	"github.com/zinkosoft/sensestream/internal/errors"
)

// Settings is the flat, immutable configuration record built once at
// startup. All knobs are sourced from environment variables (see env.go)
// with defaults from defaults.go; a handful are additionally exposed as
// CLI flags.
type Settings struct {
	Debug bool

	Main struct {
		Name     string // node name, used as record source identifier
		LogLevel string // logging verbosity
	}

	Model struct {
		Path          string // encoder model file
		VocabPath     string // CTC vocabulary, one piece per line
		EmbeddingPath string // task-query embedding table
		Language      string // auto, en, zh, ja, ko, yue
		UseITN        bool   // include inverse text normalization query
		Threads       int    // interpreter threads, 0 = all CPUs
		UseXNNPACK    bool   // enable XNNPACK delegate
	}

	Audio struct {
		Device          string  // preferred device substring
		ChunkDuration   float64 // analysis window length in seconds
		OverlapDuration float64 // window overlap in seconds, hop = chunk - overlap
	}

	VAD struct {
		Enabled        bool
		Mode           string // fast or accurate
		ZCRMin         float64
		ZCRMax         float64
		EntropyMax     float64
		RMSMargin      float64
		NoiseCalibSecs float64
		Adaptive       bool
	}

	Stitcher struct {
		Enabled             bool
		ConfidenceThreshold float64
		OverlapWordCount    int
	}

	Timeline struct {
		Enabled               bool
		MinWordConfidence     float64
		OverlapConfidence     float64
		ConfidenceReplacement bool
	}

	LanguageLock struct {
		Enabled    bool
		WarmupSecs float64
		MinSamples int
		Confidence float64
	}

	Output struct {
		MinChars            int
		SimilarityThreshold float64
		DuplicateCooldown   float64 // seconds
		FilterBGM           bool
		FilterEvents        []string
		ShowEmotions        bool
		ShowEvents          bool
		ShowLanguage        bool
	}

	WebServer struct {
		Enabled bool
		Port    string
		Metrics bool // expose /metrics
	}

	MQTT struct {
		Enabled  bool
		Broker   string // tcp://host:port
		Topic    string
		Username string
		Password string
	}
}

// HopSeconds returns the per-chunk global-time increment.
func (s *Settings) HopSeconds() float64 {
	return s.Audio.ChunkDuration - s.Audio.OverlapDuration
}

// settingsInstance is the current settings instance
var (
	settingsInstance *Settings
	settingsMutex    sync.RWMutex
)

// Load builds the Settings record from defaults and process environment
// variables. Invalid values fail fast
// with the configuration error category.
func Load() (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	settings := &Settings{}

	setDefaultConfig()
	bindEnvVars()
	viper.AutomaticEnv()

	if err := viper.Unmarshal(settings); err != nil {
		return nil, errors.New(err).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Context("operation", "unmarshal").
			Build()
	}

	// FILTER_EVENTS arrives as a comma separated string from the
	// environment; viper only splits when the value came from a config
	// file, so normalize here.
	if raw := viper.GetString("output.filterevents"); raw != "" {
		settings.Output.FilterEvents = splitCSV(raw)
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, err
	}

	settingsInstance = settings
	return settings, nil
}

func splitCSV(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// GetSettings returns the current settings instance
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}
