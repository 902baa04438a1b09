// Package apperr provides structured errors shared by the detection pipeline and
// the servers that expose it. Codes map onto gRPC status codes so a pipeline error
// can cross the RPC boundary without losing its meaning.
package apperr

import (
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Code classifies an error.
type Code int

const (
	Unknown Code = iota
	Internal
	InvalidArgument
	Unavailable
	Config
	DeviceOpen
	FrameRead
	Scoring
	Transcription
	ModelLoad
)

var codeNames = map[Code]string{
	Unknown:         "UNKNOWN",
	Internal:        "INTERNAL",
	InvalidArgument: "INVALID_ARGUMENT",
	Unavailable:     "UNAVAILABLE",
	Config:          "CONFIG",
	DeviceOpen:      "DEVICE_OPEN",
	FrameRead:       "FRAME_READ",
	Scoring:         "SCORING",
	Transcription:   "TRANSCRIPTION",
	ModelLoad:       "MODEL_LOAD",
}

// grpcCodeMap maps error codes to gRPC status codes.
var grpcCodeMap = map[Code]codes.Code{
	Unknown:         codes.Unknown,
	Internal:        codes.Internal,
	InvalidArgument: codes.InvalidArgument,
	Unavailable:     codes.Unavailable,
	Config:          codes.FailedPrecondition,
	DeviceOpen:      codes.Unavailable,
	FrameRead:       codes.Internal,
	Scoring:         codes.Internal,
	Transcription:   codes.Internal,
	ModelLoad:       codes.Unavailable,
}

func (c Code) String() string {
	if s, ok := codeNames[c]; ok {
		return s
	}
	return fmt.Sprintf("CODE(%d)", int(c))
}

// Error is the structured error type.
type Error struct {
	Code     Code
	Message  string
	Metadata map[string]string
	Cause    error
}

// Error implements the error interface.
func (e *Error) Error() string {
	s := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if len(e.Metadata) > 0 {
		s += fmt.Sprintf(" %v", e.Metadata)
	}
	if e.Cause != nil {
		s += fmt.Sprintf(": %v", e.Cause)
	}
	return s
}

// Unwrap returns the underlying cause for errors.Is/As.
func (e *Error) Unwrap() error { return e.Cause }

// GRPCCode returns the corresponding gRPC status code.
func (e *Error) GRPCCode() codes.Code {
	if c, ok := grpcCodeMap[e.Code]; ok {
		return c
	}
	return codes.Unknown
}

// GRPCStatus lets status.FromError and status.Code recognise the error.
func (e *Error) GRPCStatus() *status.Status {
	return status.New(e.GRPCCode(), e.Error())
}

// WithMetadata adds a metadata entry and returns the receiver.
func (e *Error) WithMetadata(key, value string) *Error {
	if e.Metadata == nil {
		e.Metadata = make(map[string]string)
	}
	e.Metadata[key] = value
	return e
}

// New creates a new Error with the given code and message.
func New(code Code, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

// Newf creates a new Error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps err with a code and message.
func Wrap(err error, code Code, msg string) *Error {
	return &Error{Code: code, Message: msg, Cause: err}
}

// Wrapf wraps err with a code and formatted message.
func Wrapf(err error, code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Cause: err}
}

// CodeOf returns the code of the first *Error in err's chain, or Unknown.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return Unknown
}

// Is reports whether err carries the given code anywhere in its chain.
func Is(err error, code Code) bool {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return false
		}
		if e.Code == code {
			return true
		}
		err = e.Cause
	}
	return false
}

// ToStatus converts any error into a gRPC status error.
func ToStatus(err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e.GRPCStatus().Err()
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	return status.Error(codes.Internal, err.Error())
}
