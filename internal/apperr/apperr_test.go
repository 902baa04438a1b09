package apperr

import (
	"errors"
	"fmt"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestWrapAndInspect(t *testing.T) {
	cause := errors.New("device busy")
	err := fmt.Errorf("start: %w", Wrap(cause, DeviceOpen, "open capture device"))

	if CodeOf(err) != DeviceOpen {
		t.Errorf("CodeOf = %v", CodeOf(err))
	}
	if !Is(err, DeviceOpen) || Is(err, Scoring) {
		t.Error("Is does not match the wrapped code")
	}
	if !errors.Is(err, cause) {
		t.Error("cause lost")
	}
	if CodeOf(cause) != Unknown {
		t.Errorf("CodeOf(plain) = %v", CodeOf(cause))
	}
	if got := Wrap(cause, DeviceOpen, "open").Error(); got != "[DEVICE_OPEN] open: device busy" {
		t.Errorf("Error() = %q", got)
	}
}

func TestNestedCodes(t *testing.T) {
	inner := New(Scoring, "model failed")
	outer := Wrap(inner, Unavailable, "detector stopped")
	if !Is(outer, Scoring) || !Is(outer, Unavailable) {
		t.Error("nested code not found")
	}
	if CodeOf(outer) != Unavailable {
		t.Errorf("CodeOf = %v, want outermost", CodeOf(outer))
	}
}

func TestToStatus(t *testing.T) {
	tests := []struct {
		err  error
		want codes.Code
	}{
		{Newf(InvalidArgument, "bad %d", 1), codes.InvalidArgument},
		{New(Config, "missing model"), codes.FailedPrecondition},
		{New(DeviceOpen, "no mic"), codes.Unavailable},
		{status.Error(codes.NotFound, "x"), codes.NotFound},
		{errors.New("plain"), codes.Internal},
	}
	for _, tt := range tests {
		if got := status.Code(ToStatus(tt.err)); got != tt.want {
			t.Errorf("ToStatus(%v) code = %v, want %v", tt.err, got, tt.want)
		}
	}
	if ToStatus(nil) != nil {
		t.Error("ToStatus(nil) != nil")
	}
}

func TestCodeString(t *testing.T) {
	if Transcription.String() != "TRANSCRIPTION" || Code(99).String() != "CODE(99)" {
		t.Errorf("got %s and %s", Transcription, Code(99))
	}
}
