// conf/env.go environment variable bindings
package conf

import "github.com/spf13/viper"

// bindEnvVars maps the recognized environment variables onto viper keys.
// Every variable is optional except MODEL_PATH, which validation enforces.
func bindEnvVars() {
	bind := func(key, env string) {
		// BindEnv only errors on an empty key
		_ = viper.BindEnv(key, env)
	}

	bind("main.loglevel", "LOG_LEVEL")

	bind("model.path", "MODEL_PATH")
	bind("model.vocabpath", "VOCAB_PATH")
	bind("model.embeddingpath", "EMBEDDING_PATH")
	bind("model.language", "LANGUAGE")
	bind("model.useitn", "USE_ITN")
	bind("model.threads", "MODEL_THREADS")
	bind("model.usexnnpack", "USE_XNNPACK")

	bind("audio.device", "AUDIO_DEVICE")
	bind("audio.chunkduration", "CHUNK_DURATION")
	bind("audio.overlapduration", "OVERLAP_DURATION")

	bind("vad.enabled", "ENABLE_VAD")
	bind("vad.mode", "VAD_MODE")
	bind("vad.zcrmin", "VAD_ZCR_MIN")
	bind("vad.zcrmax", "VAD_ZCR_MAX")
	bind("vad.entropymax", "VAD_ENTROPY_MAX")
	bind("vad.rmsmargin", "RMS_MARGIN")
	bind("vad.noisecalibsecs", "NOISE_CALIB_SECS")
	bind("vad.adaptive", "ADAPTIVE_NOISE_FLOOR")

	bind("stitcher.enabled", "ENABLE_CONFIDENCE_STITCHING")
	bind("stitcher.confidencethreshold", "CONFIDENCE_THRESHOLD")
	bind("stitcher.overlapwordcount", "OVERLAP_WORD_COUNT")

	bind("timeline.enabled", "ENABLE_TIMELINE_MERGING")
	bind("timeline.minwordconfidence", "TIMELINE_MIN_WORD_CONFIDENCE")
	bind("timeline.overlapconfidence", "TIMELINE_OVERLAP_CONFIDENCE")
	bind("timeline.confidencereplacement", "TIMELINE_CONFIDENCE_REPLACEMENT")

	bind("languagelock.enabled", "ENABLE_LANGUAGE_LOCK")
	bind("languagelock.warmupsecs", "LANGUAGE_LOCK_WARMUP_S")
	bind("languagelock.minsamples", "LANGUAGE_LOCK_MIN_SAMPLES")
	bind("languagelock.confidence", "LANGUAGE_LOCK_CONFIDENCE")

	bind("output.minchars", "MIN_CHARS")
	bind("output.similaritythreshold", "SIMILARITY_THRESHOLD")
	bind("output.duplicatecooldown", "DUPLICATE_COOLDOWN_S")
	bind("output.filterbgm", "FILTER_BGM")
	bind("output.filterevents", "FILTER_EVENTS")
	bind("output.showemotions", "SHOW_EMOTIONS")
	bind("output.showevents", "SHOW_EVENTS")
	bind("output.showlanguage", "SHOW_LANGUAGE")

	bind("webserver.enabled", "ENABLE_WEBSERVER")
	bind("webserver.port", "WEBSERVER_PORT")
	bind("webserver.metrics", "ENABLE_METRICS")

	bind("mqtt.enabled", "MQTT_ENABLED")
	bind("mqtt.broker", "MQTT_BROKER")
	bind("mqtt.topic", "MQTT_TOPIC")
	bind("mqtt.username", "MQTT_USERNAME")
	bind("mqtt.password", "MQTT_PASSWORD")
}
