package app

import (
	"fmt"
	"io"

	"github.com/emmett/voxwake/internal/audio"
)

// DeviceManager handles audio device selection and listing
type DeviceManager struct {
	out  io.Writer
	list func() ([]audio.DeviceInfo, error)
}

// NewDeviceManager creates a new DeviceManager writing to out
func NewDeviceManager(out io.Writer) *DeviceManager {
	return &DeviceManager{out: out, list: audio.ListDevices}
}

// ListDevices prints all available capture devices
func (dm *DeviceManager) ListDevices() error {
	devices, err := dm.list()
	if err != nil {
		return fmt.Errorf("failed to list devices: %w", err)
	}
	if len(devices) == 0 {
		fmt.Fprintln(dm.out, "No audio capture devices found.")
		return fmt.Errorf("no devices found")
	}

	fmt.Fprintf(dm.out, "Found %d capture device(s):\n\n", len(devices))
	for i, device := range devices {
		marker := ""
		if device.IsDefault {
			marker = " [DEFAULT]"
		}
		fmt.Fprintf(dm.out, "%d. %s%s\n", i+1, device.Name, marker)
		fmt.Fprintf(dm.out, "   ID: %s\n", device.ID)
	}
	fmt.Fprintln(dm.out)
	fmt.Fprintln(dm.out, "To use a specific device, run:")
	fmt.Fprintf(dm.out, "  voxwake --device %q\n", devices[0].Name)
	return nil
}

// SelectDevice checks that query names an existing device and returns it.
// An empty query selects the system default.
func (dm *DeviceManager) SelectDevice(query string) (*audio.DeviceInfo, error) {
	devices, err := dm.list()
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}
	if len(devices) == 0 {
		return nil, fmt.Errorf("no audio capture devices found")
	}
	if query == "" {
		for i := range devices {
			if devices[i].IsDefault {
				return &devices[i], nil
			}
		}
		return &devices[0], nil
	}
	idx, err := audio.MatchDevice(devices, query)
	if err != nil {
		return nil, fmt.Errorf("%w (use --list-devices to see what is available)", err)
	}
	return &devices[idx], nil
}
