// conf/defaults.go default values for settings
package conf

import "github.com/spf13/viper"

// Sets default values for the configuration.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	// Main configuration
	viper.SetDefault("main.name", "SenseStream")
	viper.SetDefault("main.loglevel", "INFO")

	// Model configuration
	viper.SetDefault("model.path", "")
	viper.SetDefault("model.vocabpath", "")
	viper.SetDefault("model.embeddingpath", "")
	viper.SetDefault("model.language", "auto")
	viper.SetDefault("model.useitn", true)
	viper.SetDefault("model.threads", 0)
	viper.SetDefault("model.usexnnpack", true)

	// Audio capture and framing
	viper.SetDefault("audio.device", "default")
	viper.SetDefault("audio.chunkduration", 3.0)
	viper.SetDefault("audio.overlapduration", 1.5)

	// Voice activity detection
	viper.SetDefault("vad.enabled", true)
	viper.SetDefault("vad.mode", "accurate")
	viper.SetDefault("vad.zcrmin", 0.02)
	viper.SetDefault("vad.zcrmax", 0.35)
	viper.SetDefault("vad.entropymax", 0.85)
	viper.SetDefault("vad.rmsmargin", 0.004)
	viper.SetDefault("vad.noisecalibsecs", 1.5)
	viper.SetDefault("vad.adaptive", true)

	// Chunk-boundary stitching
	viper.SetDefault("stitcher.enabled", true)
	viper.SetDefault("stitcher.confidencethreshold", 0.6)
	viper.SetDefault("stitcher.overlapwordcount", 4)

	// Timeline merging
	viper.SetDefault("timeline.enabled", true)
	viper.SetDefault("timeline.minwordconfidence", 0.4)
	viper.SetDefault("timeline.overlapconfidence", 0.6)
	viper.SetDefault("timeline.confidencereplacement", true)

	// Language auto-lock
	viper.SetDefault("languagelock.enabled", true)
	viper.SetDefault("languagelock.warmupsecs", 10.0)
	viper.SetDefault("languagelock.minsamples", 3)
	viper.SetDefault("languagelock.confidence", 0.6)

	// Output formatting and filtering
	viper.SetDefault("output.minchars", 3)
	viper.SetDefault("output.similaritythreshold", 0.85)
	viper.SetDefault("output.duplicatecooldown", 4.0)
	viper.SetDefault("output.filterbgm", false)
	viper.SetDefault("output.filterevents", "")
	viper.SetDefault("output.showemotions", false)
	viper.SetDefault("output.showevents", true)
	viper.SetDefault("output.showlanguage", true)

	// Web server / broadcast
	viper.SetDefault("webserver.enabled", true)
	viper.SetDefault("webserver.port", "8080")
	viper.SetDefault("webserver.metrics", true)

	// MQTT publishing
	viper.SetDefault("mqtt.enabled", false)
	viper.SetDefault("mqtt.broker", "")
	viper.SetDefault("mqtt.topic", "sensestream/transcriptions")
	viper.SetDefault("mqtt.username", "")
	viper.SetDefault("mqtt.password", "")
}
