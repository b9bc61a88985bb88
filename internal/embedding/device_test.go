package embedding

import (
	"errors"
	"reflect"
	"testing"
)

func TestSelectDevice(t *testing.T) {
	tests := []struct {
		name    string
		goos    string
		failing map[Device]bool
		want    Device
		tried   []Device
	}{
		{"darwin prefers coreml", "darwin", nil, DeviceCoreML, []Device{DeviceCoreML}},
		{"linux skips coreml", "linux", nil, DeviceCUDA, []Device{DeviceCUDA}},
		{"linux without gpu falls back to cpu", "linux", map[Device]bool{DeviceCUDA: true}, DeviceCPU, []Device{DeviceCUDA, DeviceCPU}},
		{"darwin coreml failure falls back to cpu", "darwin", map[Device]bool{DeviceCoreML: true}, DeviceCPU, []Device{DeviceCoreML, DeviceCPU}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var tried []Device
			got, err := selectDevice(DefaultDevicePriority, tt.goos, func(d Device) error {
				tried = append(tried, d)
				if tt.failing[d] {
					return errors.New("unavailable")
				}
				return nil
			})
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("selected %s, want %s", got, tt.want)
			}
			if !reflect.DeepEqual(tried, tt.tried) {
				t.Errorf("tried %v, want %v", tried, tt.tried)
			}
		})
	}
}

func TestSelectDevice_allFail(t *testing.T) {
	boom := errors.New("boom")
	_, err := selectDevice([]Device{DeviceCPU}, "linux", func(Device) error { return boom })
	if !errors.Is(err, boom) {
		t.Errorf("expected wrapped boom, got %v", err)
	}
	if _, err := selectDevice([]Device{DeviceCoreML}, "linux", func(Device) error { return nil }); err == nil {
		t.Error("expected error when no device is supported")
	}
}

func TestParseDevices(t *testing.T) {
	got, err := ParseDevices([]string{" CUDA", "cpu"})
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, []Device{DeviceCUDA, DeviceCPU}) {
		t.Errorf("got %v", got)
	}
	defaults, _ := ParseDevices(nil)
	if !reflect.DeepEqual(defaults, DefaultDevicePriority) {
		t.Errorf("empty list should give default priority, got %v", defaults)
	}
	defaults[0] = DeviceCPU
	if DefaultDevicePriority[0] != DeviceCoreML {
		t.Errorf("ParseDevices must return a copy; default priority changed to %v", DefaultDevicePriority)
	}
	if _, err := ParseDevices([]string{"tpu"}); err == nil {
		t.Error("expected error for unknown device")
	}
}
