package audio

import (
	"testing"
	"time"
)

func TestMatchDevice(t *testing.T) {
	devices := []DeviceInfo{
		{ID: "capture-0", Name: "Built-in Microphone"},
		{ID: "capture-1", Name: "USB Audio capture-0 Bridge"},
	}
	tests := []struct {
		query   string
		want    int
		wantErr bool
	}{
		{query: "capture-0", want: 0},
		{query: "usb", want: 1},
		{query: "MICROPHONE", want: 0},
		{query: "hdmi", wantErr: true},
	}
	for _, tt := range tests {
		got, err := MatchDevice(devices, tt.query)
		if (err != nil) != tt.wantErr {
			t.Errorf("MatchDevice(%q) err = %v", tt.query, err)
			continue
		}
		if got != tt.want && !tt.wantErr {
			t.Errorf("MatchDevice(%q) = %d, want %d", tt.query, got, tt.want)
		}
	}
}

func TestFrameDuration(t *testing.T) {
	if got := FrameDuration(1280, 16000); got != 80*time.Millisecond {
		t.Errorf("FrameDuration = %v, want 80ms", got)
	}
	if got := DefaultConfig().FrameDuration(); got != 80*time.Millisecond {
		t.Errorf("DefaultConfig().FrameDuration = %v", got)
	}
}
