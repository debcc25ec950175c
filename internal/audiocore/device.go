package audiocore

import (
	"runtime"
	"strings"

	"github.com/gen2brain/malgo"

	"github.com/zinkosoft/sensestream/internal/errors"
)

// AudioDeviceInfo holds information about an audio capture device.
type AudioDeviceInfo struct {
	Index     int
	Name      string
	IsDefault bool
}

// getBackendForPlatform returns the appropriate malgo backend for the
// current platform.
func getBackendForPlatform() (malgo.Backend, error) {
	switch runtime.GOOS {
	case "linux":
		return malgo.BackendAlsa, nil
	case "windows":
		return malgo.BackendWasapi, nil
	case "darwin":
		return malgo.BackendCoreaudio, nil
	default:
		return malgo.BackendNull, errors.New(nil).
			Component("audiocore").
			Category(errors.CategoryDevice).
			Context("error", "unsupported operating system").
			Context("os", runtime.GOOS).
			Build()
	}
}

// EnumerateDevices returns a list of available audio capture devices.
func EnumerateDevices() ([]AudioDeviceInfo, error) {
	backend, err := getBackendForPlatform()
	if err != nil {
		return nil, err
	}

	ctx, err := malgo.InitContext([]malgo.Backend{backend}, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, errors.New(err).
			Component("audiocore").
			Category(errors.CategoryDevice).
			Context("operation", "init_context").
			Context("backend", runtime.GOOS).
			Build()
	}
	defer func() { _ = ctx.Uninit() }()

	infos, err := ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, errors.New(err).
			Component("audiocore").
			Category(errors.CategoryDevice).
			Context("operation", "enumerate_devices").
			Build()
	}

	devices := make([]AudioDeviceInfo, 0, len(infos))
	for i := range infos {
		// Skip the discard/null device
		if strings.Contains(infos[i].Name(), "Discard all samples") {
			continue
		}
		devices = append(devices, AudioDeviceInfo{
			Index:     i,
			Name:      infos[i].Name(),
			IsDefault: infos[i].IsDefault == 1,
		})
	}

	return devices, nil
}

// selectDevice finds a capture device matching the preferred name. Matching
// order: default device for empty/"default", exact name, then substring.
func selectDevice(devices []malgo.DeviceInfo, preferred string) (*malgo.DeviceInfo, error) {
	if preferred == "" || preferred == "default" || preferred == "sysdefault" {
		for i := range devices {
			if devices[i].IsDefault == 1 {
				return &devices[i], nil
			}
		}
		if len(devices) > 0 {
			return &devices[0], nil
		}
	}

	for i := range devices {
		if devices[i].Name() == preferred {
			return &devices[i], nil
		}
	}

	for i := range devices {
		if strings.Contains(devices[i].Name(), preferred) {
			return &devices[i], nil
		}
	}

	return nil, errors.New(nil).
		Component("audiocore").
		Category(errors.CategoryDevice).
		Context("device_name", preferred).
		Context("available_devices", len(devices)).
		Context("error", "no matching audio device found").
		Build()
}
