// Package capture records an operator's reaction while a video plays.
//
// A Synchronizer reads the video file and the capture device in strict
// lockstep: one frame from each per iteration. The file frame is shown to
// the operator and the device frame is appended to the reaction recording.
// There is no timestamp resampling between the two sources, so any drift
// between their clocks is carried into the output.
package capture

import (
	"context"
	"errors"
	"fmt"

	"ytreact/internal/media"
)

// Sentinel errors for recording.
var (
	// ErrDeviceUnavailable means the video file or the capture device
	// could not be opened. The item should be skipped.
	ErrDeviceUnavailable = errors.New("capture: source unavailable")
	// ErrNoFrames means both sources opened but no frame pair was read.
	ErrNoFrames = errors.New("capture: no frames recorded")
)

// ReadKind tags a ReadResult.
type ReadKind int

const (
	// Frame carries one decoded frame.
	Frame ReadKind = iota
	// EndOfStream means the source has no more frames.
	EndOfStream
	// DeviceError means the source failed.
	DeviceError
)

func (k ReadKind) String() string {
	switch k {
	case Frame:
		return "frame"
	case EndOfStream:
		return "end of stream"
	case DeviceError:
		return "device error"
	default:
		return fmt.Sprintf("ReadKind(%d)", int(k))
	}
}

// ReadResult is the outcome of one read from a FrameSource.
type ReadResult struct {
	Kind ReadKind
	// Data is a raw bgr24 frame when Kind is Frame. Sources return a new
	// slice for every frame.
	Data []byte
	// Err is set when Kind is DeviceError.
	Err error
}

// FrameSource produces frames on demand.
type FrameSource interface {
	Read(ctx context.Context) ReadResult
	Close() error
}

// FrameSink receives the recorded frames.
type FrameSink interface {
	WriteFrame(frame []byte) error
	Close() error
}

// Display shows frames to the operator. Show returns an error once the
// operator has closed the display.
type Display interface {
	Show(frame []byte) error
	Close() error
}

// Backend opens the sources and sinks used by a Synchronizer.
type Backend interface {
	OpenFile(ctx context.Context, path string) (FrameSource, media.StreamInfo, error)
	OpenDevice(ctx context.Context) (FrameSource, media.StreamInfo, error)
	CreateWriter(ctx context.Context, path string, width, height int, fps float64) (FrameSink, error)
	OpenDisplay(ctx context.Context, width, height int, fps float64) (Display, error)
}

// Session describes an open capture.
type Session struct {
	SourceOpen bool
	DeviceOpen bool
	// FrameRate comes from the video file.
	FrameRate float64
	// Width and Height come from the capture device.
	Width  int
	Height int
}

// Recording is a finished reaction recording.
type Recording struct {
	Path    string
	Frames  int
	Session Session
	// Stopped is true when the operator ended the recording.
	Stopped bool
}
