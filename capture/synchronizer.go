package capture

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"ytreact/internal/media"

	"golang.org/x/sync/errgroup"
)

const (
	// DefaultQueueDepth is the number of frames buffered per source.
	DefaultQueueDepth = 2
	// defaultFrameRate is used when the file reports no usable rate.
	defaultFrameRate = 30.0
)

// Synchronizer records a reaction while a video plays.
type Synchronizer struct {
	Backend Backend
	// QueueDepth bounds the frames buffered per source.
	QueueDepth int
	// Preview shows the video to the operator.
	Preview bool
	// StopSignal, if set, is called when recording starts. Closing the
	// returned channel ends the recording after the current frame. The
	// returned func is called when the recording ends.
	StopSignal func() (<-chan struct{}, func())
}

// NewSynchronizer creates a Synchronizer with preview enabled.
func NewSynchronizer(backend Backend) *Synchronizer {
	return &Synchronizer{
		Backend:    backend,
		QueueDepth: DefaultQueueDepth,
		Preview:    true,
	}
}

// Record plays sourcePath and records the capture device into
// {id}_reaction.mp4 next to it. It returns ErrDeviceUnavailable when either
// input cannot be opened and ErrNoFrames when nothing was recorded.
func (s *Synchronizer) Record(ctx context.Context, sourcePath string) (*Recording, error) {
	var (
		src, dev         FrameSource
		srcInfo, devInfo media.StreamInfo
		g                errgroup.Group
	)
	g.Go(func() error {
		var err error
		src, srcInfo, err = s.Backend.OpenFile(ctx, sourcePath)
		if err != nil {
			return fmt.Errorf("open video %s: %w", sourcePath, err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		dev, devInfo, err = s.Backend.OpenDevice(ctx)
		if err != nil {
			return fmt.Errorf("open capture device: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		closeSource(src)
		closeSource(dev)
		log.Printf("capture: %v", err)
		return nil, fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}

	session := Session{
		SourceOpen: true,
		DeviceOpen: true,
		FrameRate:  srcInfo.FrameRate,
		Width:      devInfo.Width,
		Height:     devInfo.Height,
	}
	if session.FrameRate <= 0 {
		log.Printf("capture: %s reports no frame rate, assuming %.0f fps", sourcePath, defaultFrameRate)
		session.FrameRate = defaultFrameRate
	}

	out := media.ReactionPath(sourcePath)
	sink, err := s.Backend.CreateWriter(ctx, out, session.Width, session.Height, session.FrameRate)
	if err != nil {
		closeSource(src)
		closeSource(dev)
		return nil, fmt.Errorf("create reaction writer: %w", err)
	}

	var display Display
	if s.Preview {
		display, err = s.Backend.OpenDisplay(ctx, srcInfo.Width, srcInfo.Height, session.FrameRate)
		if err != nil {
			log.Printf("capture: preview unavailable: %v", err)
			display = nil
		}
	}

	var stop <-chan struct{}
	if s.StopSignal != nil {
		var release func()
		stop, release = s.StopSignal()
		defer release()
	}

	log.Printf("capture: recording %s at %.2f fps, device %dx%d", out, session.FrameRate, session.Width, session.Height)
	frames, stopped, loopErr := s.loop(ctx, src, dev, sink, display, stop)

	if display != nil {
		display.Close()
	}
	closeErr := sink.Close()

	if frames == 0 {
		os.Remove(out)
		if loopErr != nil {
			return nil, loopErr
		}
		return nil, ErrNoFrames
	}
	if loopErr != nil {
		return nil, loopErr
	}
	if closeErr != nil {
		return nil, fmt.Errorf("finish reaction %s: %w", out, closeErr)
	}

	log.Printf("capture: wrote %d frames to %s", frames, out)
	return &Recording{Path: out, Frames: frames, Session: session, Stopped: stopped}, nil
}

// loop pairs frames until either source ends, the operator stops, or ctx
// is done. Both sources are closed before it returns.
func (s *Synchronizer) loop(ctx context.Context, src, dev FrameSource, sink FrameSink, display Display, stop <-chan struct{}) (frames int, stopped bool, err error) {
	depth := s.QueueDepth
	if depth <= 0 {
		depth = DefaultQueueDepth
	}

	loopCtx, cancel := context.WithCancel(ctx)
	srcCh := make(chan ReadResult, depth)
	devCh := make(chan ReadResult, depth)

	var pumps errgroup.Group
	pumps.Go(func() error { pump(loopCtx, src, srcCh); return nil })
	pumps.Go(func() error { pump(loopCtx, dev, devCh); return nil })

	defer func() {
		cancel()
		closeSource(src)
		closeSource(dev)
		pumps.Wait()
	}()

	for {
		fr, ok := receive(ctx, srcCh, stop)
		if !ok {
			return frames, stopped || isStopped(stop), ctx.Err()
		}
		dr, ok := receive(ctx, devCh, stop)
		if !ok {
			return frames, stopped || isStopped(stop), ctx.Err()
		}

		if fr.Kind != Frame || dr.Kind != Frame {
			logEnd("video", fr)
			logEnd("device", dr)
			return frames, stopped, nil
		}

		if display != nil {
			if err := display.Show(fr.Data); err != nil {
				log.Printf("capture: preview closed, stopping")
				stopped = true
			}
		}
		if err := sink.WriteFrame(dr.Data); err != nil {
			return frames, stopped, fmt.Errorf("write reaction frame %d: %w", frames+1, err)
		}
		frames++

		if stopped || isStopped(stop) {
			return frames, true, nil
		}
		if ctx.Err() != nil {
			return frames, stopped, ctx.Err()
		}
	}
}

// pump reads src into out until the source ends or ctx is done.
func pump(ctx context.Context, src FrameSource, out chan<- ReadResult) {
	defer close(out)
	for {
		r := src.Read(ctx)
		select {
		case out <- r:
		case <-ctx.Done():
			return
		}
		if r.Kind != Frame {
			return
		}
	}
}

// receive waits for the next result. It returns false when the operator
// stops or ctx is done first.
func receive(ctx context.Context, ch <-chan ReadResult, stop <-chan struct{}) (ReadResult, bool) {
	select {
	case r, ok := <-ch:
		if !ok {
			return ReadResult{Kind: EndOfStream}, true
		}
		return r, true
	case <-stop:
		return ReadResult{}, false
	case <-ctx.Done():
		return ReadResult{}, false
	}
}

func isStopped(stop <-chan struct{}) bool {
	select {
	case <-stop:
		return true
	default:
		return false
	}
}

func logEnd(name string, r ReadResult) {
	switch r.Kind {
	case EndOfStream:
		log.Printf("capture: %s ended", name)
	case DeviceError:
		log.Printf("capture: %s failed: %v", name, r.Err)
	}
}

func closeSource(src FrameSource) {
	if src == nil {
		return
	}
	if err := src.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
		log.Printf("capture: close source: %v", err)
	}
}
