package audio

import (
	"fmt"
	"strings"

	"github.com/gen2brain/malgo"
)

// DeviceInfo contains information about a capture device
type DeviceInfo struct {
	ID        string // "capture-N", stable for the lifetime of the device list
	Name      string // Human-readable device name
	IsDefault bool   // Whether this is the system default capture device
}

// String returns a human-readable representation of the device
func (d DeviceInfo) String() string {
	defaultMarker := ""
	if d.IsDefault {
		defaultMarker = " [DEFAULT]"
	}
	return fmt.Sprintf("%s: %s%s", d.ID, d.Name, defaultMarker)
}

// ListDevices returns all available capture devices
func ListDevices() ([]DeviceInfo, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize malgo context: %w", err)
	}
	defer func() {
		_ = ctx.Uninit()
		ctx.Free()
	}()

	infos, err := ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate devices: %w", err)
	}
	return describeDevices(infos), nil
}

func describeDevices(infos []malgo.DeviceInfo) []DeviceInfo {
	devices := make([]DeviceInfo, 0, len(infos))
	for i, info := range infos {
		devices = append(devices, DeviceInfo{
			ID:        fmt.Sprintf("capture-%d", i),
			Name:      info.Name(),
			IsDefault: info.IsDefault > 0,
		})
	}
	return devices
}

// MatchDevice returns the index of the device selected by query: an exact
// "capture-N" ID first, then a case-insensitive name substring.
func MatchDevice(devices []DeviceInfo, query string) (int, error) {
	for i, d := range devices {
		if d.ID == query {
			return i, nil
		}
	}
	q := strings.ToLower(query)
	for i, d := range devices {
		if strings.Contains(strings.ToLower(d.Name), q) {
			return i, nil
		}
	}
	return -1, fmt.Errorf("no capture device matching %q", query)
}

// findCaptureDevice resolves query against the devices of an open context.
func findCaptureDevice(ctx *malgo.AllocatedContext, query string) (*malgo.DeviceInfo, error) {
	infos, err := ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate devices: %w", err)
	}
	idx, err := MatchDevice(describeDevices(infos), query)
	if err != nil {
		return nil, err
	}
	return &infos[idx], nil
}
