package embedding

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

// Device is a compute backend the encoder can run on.
type Device string

// Devices in default priority order.
const (
	DeviceCoreML Device = "coreml"
	DeviceCUDA   Device = "cuda"
	DeviceCPU    Device = "cpu"
)

// DefaultDevicePriority tries the Apple accelerator first, then a CUDA GPU, then the CPU.
var DefaultDevicePriority = []Device{DeviceCoreML, DeviceCUDA, DeviceCPU}

// ParseDevices converts configured device names, preserving order.
func ParseDevices(names []string) ([]Device, error) {
	if len(names) == 0 {
		return append([]Device(nil), DefaultDevicePriority...), nil
	}
	devices := make([]Device, 0, len(names))
	for _, name := range names {
		d := Device(strings.ToLower(strings.TrimSpace(name)))
		switch d {
		case DeviceCoreML, DeviceCUDA, DeviceCPU:
			devices = append(devices, d)
		default:
			return nil, fmt.Errorf("unknown device %q", name)
		}
	}
	return devices, nil
}

// Supported reports whether d can exist on the given operating system.
func (d Device) Supported(goos string) bool {
	switch d {
	case DeviceCoreML:
		return goos == "darwin"
	case DeviceCUDA:
		return goos != "darwin"
	default:
		return true
	}
}

// SelectDevice walks priority in order and returns the first device for which
// try succeeds. Devices unsupported on this OS are skipped without calling try.
func SelectDevice(priority []Device, try func(Device) error) (Device, error) {
	return selectDevice(priority, runtime.GOOS, try)
}

func selectDevice(priority []Device, goos string, try func(Device) error) (Device, error) {
	var errs []error
	for _, d := range priority {
		if !d.Supported(goos) {
			continue
		}
		err := try(d)
		if err == nil {
			return d, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", d, err))
	}
	if len(errs) == 0 {
		return "", fmt.Errorf("no supported device in %v on %s", priority, goos)
	}
	return "", fmt.Errorf("no usable device: %w", errors.Join(errs...))
}
