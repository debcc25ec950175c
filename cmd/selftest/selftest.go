// Package selftest exercises the signal path offline: DSP primitives,
// VAD classification, CTC decoding and the boundary merge logic, plus an
// optional WAV fixture pass. No audio device or model file is required.
package selftest

import (
	"fmt"
	"math"
	"os"
	"runtime"
	"strings"

	"github.com/go-audio/wav"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/spf13/cobra"

	"github.com/zinkosoft/sensestream/internal/conf"
	"github.com/zinkosoft/sensestream/internal/dsp"
	"github.com/zinkosoft/sensestream/internal/errors"
	"github.com/zinkosoft/sensestream/internal/sensevoice"
	"github.com/zinkosoft/sensestream/internal/transcript"
	"github.com/zinkosoft/sensestream/internal/vad"
)

// Command creates the selftest command.
func Command(settings *conf.Settings) *cobra.Command {
	var wavPath string

	cmd := &cobra.Command{
		Use:   "selftest",
		Short: "Run the offline pipeline self test",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(settings, wavPath)
		},
	}

	cmd.Flags().StringVar(&wavPath, "wav", "", "Optional WAV fixture to push through log-mel feature extraction")

	return cmd
}

type check struct {
	name string
	ok   bool
	note string
}

func run(settings *conf.Settings, wavPath string) error {
	printHostInfo()

	checks := []check{
		checkSpectralEntropy(),
		checkVAD(settings),
		checkDecode(),
		checkBoundaryMerge(),
	}
	if wavPath != "" {
		checks = append(checks, checkWavFixture(wavPath))
	}

	failed := 0
	for _, c := range checks {
		status := "PASS"
		if !c.ok {
			status = "FAIL"
			failed++
		}
		fmt.Printf("%-28s %s  %s\n", c.name, status, c.note)
	}

	if failed > 0 {
		return errors.Newf("%d of %d self test checks failed", failed, len(checks)).
			Component("selftest").
			Category(errors.CategoryValidation).
			Build()
	}
	fmt.Println("all checks passed")
	return nil
}

func printHostInfo() {
	if info, err := host.Info(); err == nil {
		fmt.Printf("host: %s %s (%s), kernel %s\n",
			info.Platform, info.PlatformVersion, info.KernelArch, info.KernelVersion)
	}
	fmt.Printf("go: %s, cpus: %d\n\n", runtime.Version(), runtime.NumCPU())
}

// checkSpectralEntropy verifies the entropy feature separates a pure
// tone from wideband noise.
func checkSpectralEntropy() check {
	n := 16000
	tone := make([]float32, n)
	noise := make([]float32, n)
	seed := uint64(1)
	for i := 0; i < n; i++ {
		tone[i] = float32(0.5 * math.Sin(2*math.Pi*440*float64(i)/16000))
		seed = seed*6364136223846793005 + 1442695040888963407
		noise[i] = float32(seed>>40)/float32(1<<24)*2 - 1
	}
	toneH := dsp.SpectralEntropy(tone)
	noiseH := dsp.SpectralEntropy(noise)
	ok := toneH < noiseH && toneH < 0.5 && noiseH > 0.5
	return check{
		name: "spectral entropy",
		ok:   ok,
		note: fmt.Sprintf("tone=%.3f noise=%.3f", toneH, noiseH),
	}
}

// checkVAD verifies the energy gate and the accurate-mode decision on
// synthetic speech-like and silent windows.
func checkVAD(settings *conf.Settings) check {
	detector := vad.NewDetector(vad.Config{
		Enabled:    true,
		Mode:       vad.ModeAccurate,
		ZCRMin:     settings.VAD.ZCRMin,
		ZCRMax:     settings.VAD.ZCRMax,
		EntropyMax: settings.VAD.EntropyMax,
		RMSMargin:  settings.VAD.RMSMargin,
	})

	n := 48000
	voiced := make([]float32, n)
	silence := make([]float32, n)
	for i := 0; i < n; i++ {
		// modulated tone stack approximating a voiced frame
		t := float64(i) / 16000
		voiced[i] = float32(0.2*math.Sin(2*math.Pi*180*t) + 0.1*math.Sin(2*math.Pi*360*t))
		silence[i] = float32(0.0005 * math.Sin(2*math.Pi*60*t))
	}

	speechDecision := detector.Detect(voiced, 0.002)
	silenceDecision := detector.Detect(silence, 0.002)
	ok := speechDecision.IsSpeech && !silenceDecision.IsSpeech
	return check{
		name: "vad classification",
		ok:   ok,
		note: fmt.Sprintf("voiced=%v silence=%v", speechDecision.IsSpeech, silenceDecision.IsSpeech),
	}
}

// checkDecode runs the CTC decoder over a scripted logit matrix and
// verifies collapse, blank removal and word merging.
func checkDecode() check {
	vocab := sensevoice.NewVocabulary([]string{
		"<blank>", "▁hel", "lo", "▁world", "<|en|>", "<|NEUTRAL|>",
	})
	decoder := sensevoice.NewCTCDecoder(vocab)

	// frame sequence: tag, tag, hel, hel, blank, lo, blank, world, world
	ids := []int{4, 5, 1, 1, 0, 2, 0, 3, 3}
	logits := scriptedLogits(ids, vocab.Size(), 0)

	res := decoder.Decode(logits, 0, 3000)
	ok := res.Text == "hello world" &&
		res.Meta.Language == "English" &&
		res.Meta.Emotion == "NEUTRAL" &&
		len(res.Words) == 2 &&
		res.AvgConfidence > 0.9
	return check{
		name: "ctc decode",
		ok:   ok,
		note: fmt.Sprintf("text=%q lang=%s conf=%.2f", res.Text, res.Meta.Language, res.AvgConfidence),
	}
}

// checkBoundaryMerge replays the canonical two-chunk overlap scenario
// through the stitcher and the timeline merger.
func checkBoundaryMerge() check {
	stitcher := transcript.NewConfidenceStitcher(transcript.StitcherConfig{
		Enabled:             true,
		ConfidenceThreshold: 0.6,
		OverlapWordCount:    2,
	})
	merger := transcript.NewTimelineMerger(transcript.TimelineConfig{
		Enabled:           true,
		MinWordConfidence: 0.4,
		OverlapConfidence: 0.6,
	})

	chunk0 := result([]string{"hello", "how", "are", "you"}, []float64{0.9, 0.9, 0.5, 0.4}, 0, 700)
	stitcher.Process(chunk0)
	first := merger.Merge(0, chunk0.Words)

	chunk1 := result([]string{"are", "you", "doing", "today"}, []float64{0.9, 0.9, 0.9, 0.9}, 0, 700)
	stitcher.Process(chunk1)
	second := merger.Merge(1500, chunk1.Words)

	ok := len(first) == 4 && len(second) == 2 &&
		second[0].Text == "doing" && second[1].Text == "today"
	return check{
		name: "boundary merge",
		ok:   ok,
		note: fmt.Sprintf("first=%d second=%d", len(first), len(second)),
	}
}

// checkWavFixture decodes a 16-bit WAV file and verifies feature
// extraction produces frames.
func checkWavFixture(path string) check {
	file, err := os.Open(path)
	if err != nil {
		return check{name: "wav fixture", note: err.Error()}
	}
	defer file.Close()

	decoder := wav.NewDecoder(file)
	buf, err := decoder.FullPCMBuffer()
	if err != nil || !decoder.IsValidFile() {
		return check{name: "wav fixture", note: "not a valid WAV file"}
	}

	samples := make([]float32, len(buf.Data))
	for i, v := range buf.Data {
		samples[i] = float32(v) / 32768.0
	}

	mel := dsp.NewMelBank(int(decoder.SampleRate), sensevoice.NumMelBins)
	frames := mel.Compute(samples)
	ok := len(frames) > 0
	return check{
		name: "wav fixture",
		ok:   ok,
		note: fmt.Sprintf("%d samples, %d mel frames", len(samples), len(frames)),
	}
}

// scriptedLogits builds a logit matrix whose per-frame argmax follows ids.
func scriptedLogits(ids []int, vocabSize, taskRows int) *sensevoice.Logits {
	frames := taskRows + len(ids)
	data := make([]float32, vocabSize*frames)
	for t, id := range ids {
		data[id*frames+taskRows+t] = 8.0
	}
	return &sensevoice.Logits{Data: data, Vocab: vocabSize, Frames: frames}
}

// result builds a decode result with evenly spaced word timings.
func result(words []string, confs []float64, startMS, wordMS float64) *sensevoice.DecodeResult {
	res := &sensevoice.DecodeResult{}
	var sum float64
	for i, w := range words {
		res.Words = append(res.Words, sensevoice.WordTiming{
			Text:       w,
			StartMS:    startMS + float64(i)*wordMS,
			EndMS:      startMS + float64(i+1)*wordMS,
			Confidence: confs[i],
		})
		sum += confs[i]
	}
	res.AvgConfidence = sum / float64(len(words))
	res.Text = strings.Join(words, " ")
	return res
}
