package grpc

import (
	"context"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/emmett/voxwake/internal/app"
	"github.com/emmett/voxwake/internal/apperr"
	"github.com/emmett/voxwake/internal/audio"
	"github.com/emmett/voxwake/internal/detect"
)

// DetectorService implements DetectorServer over an app.Service
type DetectorService struct {
	svc *app.Service
	log *slog.Logger
}

// NewDetectorService creates the detector service
func NewDetectorService(svc *app.Service, log *slog.Logger) *DetectorService {
	return &DetectorService{svc: svc, log: log}
}

func (d *DetectorService) Start(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	// the detector outlives the call
	if err := d.svc.StartListening(context.WithoutCancel(ctx)); err != nil {
		return nil, err
	}
	return StatusStruct(d.svc.Status())
}

func (d *DetectorService) Stop(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	if err := d.svc.StopListening(); err != nil {
		return nil, apperr.Wrap(err, apperr.Unavailable, "stop listening")
	}
	return StatusStruct(d.svc.Status())
}

func (d *DetectorService) Status(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	return StatusStruct(d.svc.Status())
}

func (d *DetectorService) Transcribe(ctx context.Context, in *wrapperspb.BytesValue) (*wrapperspb.StringValue, error) {
	data := in.GetValue()
	if len(data)%2 != 0 {
		return nil, apperr.Newf(apperr.InvalidArgument, "audio must be 16-bit PCM, got %d bytes", len(data))
	}
	text, err := d.svc.TranscribePCM(ctx, audio.BytesToSamples(data))
	if err != nil {
		return nil, err
	}
	return wrapperspb.String(text), nil
}

func (d *DetectorService) Events(_ *emptypb.Empty, stream grpc.ServerStreamingServer[structpb.Struct]) error {
	events, cancel := d.svc.Subscribe(64)
	defer cancel()

	// the first message is the current capture state
	first, err := EventStruct(d.stateEvent())
	if err != nil {
		return err
	}
	if err := stream.Send(first); err != nil {
		return err
	}

	ctx := stream.Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			msg, err := EventStruct(ev)
			if err != nil {
				return err
			}
			if err := stream.Send(msg); err != nil {
				return err
			}
		}
	}
}

func (d *DetectorService) stateEvent() detect.Event {
	state := detect.StateInactive
	if d.svc.Status().State == detect.Capturing.String() {
		state = detect.StateActive
	}
	return detect.Event{Type: detect.EventState, State: state, Timestamp: time.Now()}
}

// StatusStruct encodes a status snapshot
func StatusStruct(st app.Status) (*structpb.Struct, error) {
	fields := map[string]any{
		"listening":   st.Listening,
		"state":       st.State,
		"activations": float64(st.Activations),
		"utterances":  float64(st.Utterances),
		"recent":      float64(st.Recent),
	}
	if st.LastError != "" {
		fields["last_error"] = st.LastError
	}
	if st.LastTranscription != "" {
		fields["last_transcription"] = st.LastTranscription
	}
	return structpb.NewStruct(fields)
}

// EventStruct encodes an event with the same field names as its JSON form
func EventStruct(ev detect.Event) (*structpb.Struct, error) {
	fields := map[string]any{
		"id":        ev.ID,
		"type":      string(ev.Type),
		"timestamp": ev.Timestamp.Format("2006-01-02T15:04:05.000Z07:00"),
	}
	if ev.Text != "" {
		fields["text"] = ev.Text
	}
	if ev.State != "" {
		fields["state"] = ev.State
	}
	if ev.Error != "" {
		fields["error"] = ev.Error
	}
	return structpb.NewStruct(fields)
}
