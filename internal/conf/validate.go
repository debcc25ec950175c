// conf/validate.go
package conf

import (
	"fmt"
	"strings"

	"github.com/zinkosoft/sensestream/internal/errors"
)

var validLanguages = map[string]bool{
	"auto": true, "en": true, "zh": true, "ja": true, "ko": true, "yue": true,
}

var validEvents = map[string]bool{
	"BGM": true, "Applause": true, "Laughter": true, "Crying": true,
	"Sneeze": true, "Cough": true, "Breath": true, "Speech": true,
}

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("validation errors: %v", ve.Errors)
}

// ValidateSettings validates the entire Settings struct and returns a
// configuration-category error (exit code 2) on failure.
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	if err := validateModelSettings(settings); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}
	if err := validateAudioSettings(settings); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}
	if err := validateVADSettings(settings); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}
	if err := validateMergeSettings(settings); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}
	if err := validateOutputSettings(settings); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if len(ve.Errors) > 0 {
		return errors.New(ve).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Context("error_count", len(ve.Errors)).
			Build()
	}
	return nil
}

func validateModelSettings(settings *Settings) error {
	var errs []string

	if settings.Model.Path == "" {
		errs = append(errs, "MODEL_PATH is required")
	}
	if !validLanguages[strings.ToLower(settings.Model.Language)] {
		errs = append(errs, fmt.Sprintf("unknown LANGUAGE %q, must be one of auto, en, zh, ja, ko, yue", settings.Model.Language))
	}
	if settings.Model.Threads < 0 {
		errs = append(errs, "MODEL_THREADS must be >= 0")
	}

	return joinErrs("model", errs)
}

func validateAudioSettings(settings *Settings) error {
	var errs []string

	if settings.Audio.ChunkDuration <= 0 {
		errs = append(errs, "CHUNK_DURATION must be positive")
	}
	if settings.Audio.OverlapDuration < 0 {
		errs = append(errs, "OVERLAP_DURATION must be >= 0")
	}
	if settings.Audio.ChunkDuration <= settings.Audio.OverlapDuration {
		errs = append(errs, "CHUNK_DURATION must be greater than OVERLAP_DURATION")
	}

	return joinErrs("audio", errs)
}

func validateVADSettings(settings *Settings) error {
	var errs []string

	if settings.VAD.Mode != "fast" && settings.VAD.Mode != "accurate" {
		errs = append(errs, fmt.Sprintf("unknown VAD_MODE %q, must be fast or accurate", settings.VAD.Mode))
	}
	if settings.VAD.ZCRMin < 0 || settings.VAD.ZCRMax > 1 || settings.VAD.ZCRMin >= settings.VAD.ZCRMax {
		errs = append(errs, "VAD_ZCR_MIN/MAX must satisfy 0 <= min < max <= 1")
	}
	if settings.VAD.EntropyMax <= 0 || settings.VAD.EntropyMax > 1 {
		errs = append(errs, "VAD_ENTROPY_MAX must be in (0, 1]")
	}
	if settings.VAD.RMSMargin < 0 {
		errs = append(errs, "RMS_MARGIN must be >= 0")
	}
	if settings.VAD.NoiseCalibSecs <= 0 {
		errs = append(errs, "NOISE_CALIB_SECS must be positive")
	}

	return joinErrs("vad", errs)
}

func validateMergeSettings(settings *Settings) error {
	var errs []string

	if t := settings.Stitcher.ConfidenceThreshold; t < 0 || t > 1 {
		errs = append(errs, "CONFIDENCE_THRESHOLD must be in [0, 1]")
	}
	if settings.Stitcher.OverlapWordCount < 1 {
		errs = append(errs, "OVERLAP_WORD_COUNT must be >= 1")
	}
	if t := settings.Timeline.MinWordConfidence; t < 0 || t > 1 {
		errs = append(errs, "TIMELINE_MIN_WORD_CONFIDENCE must be in [0, 1]")
	}
	if t := settings.Timeline.OverlapConfidence; t < 0 || t > 1 {
		errs = append(errs, "TIMELINE_OVERLAP_CONFIDENCE must be in [0, 1]")
	}
	if settings.LanguageLock.WarmupSecs < 0 {
		errs = append(errs, "LANGUAGE_LOCK_WARMUP_S must be >= 0")
	}
	if settings.LanguageLock.MinSamples < 1 {
		errs = append(errs, "LANGUAGE_LOCK_MIN_SAMPLES must be >= 1")
	}
	if c := settings.LanguageLock.Confidence; c <= 0 || c > 1 {
		errs = append(errs, "LANGUAGE_LOCK_CONFIDENCE must be in (0, 1]")
	}

	return joinErrs("merge", errs)
}

func validateOutputSettings(settings *Settings) error {
	var errs []string

	if settings.Output.MinChars < 0 {
		errs = append(errs, "MIN_CHARS must be >= 0")
	}
	if t := settings.Output.SimilarityThreshold; t < 0 || t > 1 {
		errs = append(errs, "SIMILARITY_THRESHOLD must be in [0, 1]")
	}
	if settings.Output.DuplicateCooldown < 0 {
		errs = append(errs, "DUPLICATE_COOLDOWN_S must be >= 0")
	}
	for _, ev := range settings.Output.FilterEvents {
		if !validEvents[ev] {
			errs = append(errs, fmt.Sprintf("unknown event tag %q in FILTER_EVENTS", ev))
		}
	}

	return joinErrs("output", errs)
}

func joinErrs(section string, errs []string) error {
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%s: %s", section, strings.Join(errs, "; "))
}
