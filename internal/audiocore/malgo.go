package audiocore

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/gen2brain/malgo"

	"github.com/zinkosoft/sensestream/internal/errors"
)

const frameChannelCapacity = 50

// MalgoSource implements AudioSource using malgo for cross-platform audio
// capture.
type MalgoSource struct {
	preferred string
	log       *slog.Logger

	ctx    *malgo.AllocatedContext
	device *malgo.Device

	frameChan chan Frame
	errorChan chan error

	mu         sync.Mutex
	running    atomic.Bool
	cancel     context.CancelFunc
	actualRate uint32
	deviceName string
}

// NewMalgoSource creates a source that captures from the device whose name
// contains preferred ("default" selects the system default device).
func NewMalgoSource(preferred string, log *slog.Logger) *MalgoSource {
	return &MalgoSource{
		preferred: preferred,
		log:       log,
		frameChan: make(chan Frame, frameChannelCapacity),
		errorChan: make(chan error, 10),
	}
}

// Frames returns the bounded frame channel.
func (s *MalgoSource) Frames() <-chan Frame {
	return s.frameChan
}

// Errors returns the capture error channel.
func (s *MalgoSource) Errors() <-chan error {
	return s.errorChan
}

// SampleRate returns the negotiated capture rate.
func (s *MalgoSource) SampleRate() int {
	return int(s.actualRate)
}

// Name returns the selected device name.
func (s *MalgoSource) Name() string {
	return s.deviceName
}

// Start initializes the capture device, probing the supported sample rates
// in preference order, and begins streaming frames.
func (s *MalgoSource) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running.Load() {
		return errors.New(nil).
			Component("audiocore").
			Category(errors.CategoryState).
			Context("error", "source already running").
			Build()
	}

	backend, err := getBackendForPlatform()
	if err != nil {
		return err
	}

	malgoCtx, err := malgo.InitContext([]malgo.Backend{backend}, malgo.ContextConfig{}, nil)
	if err != nil {
		return errors.New(err).
			Component("audiocore").
			Category(errors.CategoryDevice).
			Context("operation", "init_context").
			Build()
	}
	s.ctx = malgoCtx

	devices, err := malgoCtx.Devices(malgo.Capture)
	if err != nil {
		_ = malgoCtx.Uninit()
		return errors.New(err).
			Component("audiocore").
			Category(errors.CategoryDevice).
			Context("operation", "enumerate_devices").
			Build()
	}

	deviceInfo, err := selectDevice(devices, s.preferred)
	if err != nil {
		_ = malgoCtx.Uninit()
		return err
	}
	s.deviceName = deviceInfo.Name()

	deviceCallbacks := malgo.DeviceCallbacks{
		Data: s.onAudioData,
		Stop: s.onDeviceStop,
	}

	// Probe supported rates in preference order; the first rate the
	// device opens at wins.
	var device *malgo.Device
	var lastErr error
	for _, rate := range probeRates {
		deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
		deviceConfig.Capture.Format = malgo.FormatS16
		deviceConfig.Capture.Channels = 1
		deviceConfig.Capture.DeviceID = deviceInfo.ID.Pointer()
		deviceConfig.SampleRate = rate
		deviceConfig.Alsa.NoMMap = 1

		device, lastErr = malgo.InitDevice(malgoCtx.Context, deviceConfig, deviceCallbacks)
		if lastErr == nil {
			s.actualRate = device.SampleRate()
			break
		}
	}
	if device == nil {
		_ = malgoCtx.Uninit()
		return errors.New(lastErr).
			Component("audiocore").
			Category(errors.CategoryDevice).
			Context("device_name", s.deviceName).
			Context("error", "no supported sample rate").
			Build()
	}
	s.device = device

	captureCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	if err := device.Start(); err != nil {
		device.Uninit()
		s.cancel()
		_ = malgoCtx.Uninit()
		return errors.New(err).
			Component("audiocore").
			Category(errors.CategoryDevice).
			Context("device_name", s.deviceName).
			Context("operation", "start_device").
			Build()
	}

	s.running.Store(true)
	s.log.Info("audio capture started",
		"device", s.deviceName,
		"sample_rate", s.actualRate)

	go s.monitor(captureCtx)

	return nil
}

// Stop halts audio capture and closes the channels.
func (s *MalgoSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running.Load() {
		return nil
	}
	s.running.Store(false)

	if s.cancel != nil {
		s.cancel()
	}

	if s.device != nil {
		_ = s.device.Stop()
		s.device.Uninit()
		s.device = nil
	}

	if s.ctx != nil {
		_ = s.ctx.Uninit()
		s.ctx = nil
	}

	close(s.frameChan)
	close(s.errorChan)

	return nil
}

// onAudioData bridges the malgo push callback to the frame channel. This
// is the only place audio-thread code touches the pipeline; it never calls
// back into higher-level components.
func (s *MalgoSource) onAudioData(pOutput, pInput []byte, framecount uint32) {
	if !s.running.Load() {
		return
	}

	samples := make([]float32, framecount)
	for i := uint32(0); i < framecount && int(2*i+1) < len(pInput); i++ {
		v := int16(pInput[2*i]) | int16(pInput[2*i+1])<<8
		samples[i] = float32(v) / 32768.0
	}

	select {
	case s.frameChan <- Frame{Samples: samples}:
	default:
		// The capture channel is full. The audio thread must not block;
		// report the drop. The dropped samples are not replaced.
		s.reportError(errors.New(nil).
			Component("audiocore").
			Category(errors.CategoryAudio).
			Context("error", "capture channel full, dropping frame").
			Build())
	}
}

// onDeviceStop fires when the device stops outside Stop(); this is an
// unrecoverable capture failure. Teardown stays with Stop so the device
// and context are still released on the shutdown path.
func (s *MalgoSource) onDeviceStop() {
	if !s.running.Load() {
		return
	}
	s.reportError(errors.New(nil).
		Component("audiocore").
		Category(errors.CategoryCapture).
		Context("device_name", s.deviceName).
		Context("error", "audio device stopped unexpectedly").
		Build())
}

func (s *MalgoSource) reportError(err error) {
	select {
	case s.errorChan <- err:
	default:
	}
}

// monitor stops the device when the context is cancelled.
func (s *MalgoSource) monitor(ctx context.Context) {
	<-ctx.Done()
	_ = s.Stop()
}
