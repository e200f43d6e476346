package capture

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"ytreact/internal/media"
)

type fakeSource struct {
	tag    byte
	frames int
	failAt int // DeviceError instead of frame failAt (1-based), 0 = never
	n      int
	closed atomic.Bool
}

func (s *fakeSource) Read(ctx context.Context) ReadResult {
	if ctx.Err() != nil {
		return ReadResult{Kind: DeviceError, Err: ctx.Err()}
	}
	if s.failAt > 0 && s.n+1 == s.failAt {
		return ReadResult{Kind: DeviceError, Err: errors.New("unplugged")}
	}
	if s.n >= s.frames {
		return ReadResult{Kind: EndOfStream}
	}
	s.n++
	return ReadResult{Kind: Frame, Data: []byte{s.tag, byte(s.n)}}
}

func (s *fakeSource) Close() error {
	s.closed.Store(true)
	return nil
}

type fakeSink struct {
	mu      sync.Mutex
	frames  [][]byte
	onWrite func(n int)
	closed  bool
}

func (s *fakeSink) WriteFrame(frame []byte) error {
	s.mu.Lock()
	s.frames = append(s.frames, frame)
	n := len(s.frames)
	s.mu.Unlock()
	if s.onWrite != nil {
		s.onWrite(n)
	}
	return nil
}

func (s *fakeSink) Close() error {
	s.closed = true
	return nil
}

type fakeDisplay struct {
	shown  [][]byte
	failAt int
	closed bool
}

func (d *fakeDisplay) Show(frame []byte) error {
	d.shown = append(d.shown, frame)
	if d.failAt > 0 && len(d.shown) >= d.failAt {
		return errors.New("window closed")
	}
	return nil
}

func (d *fakeDisplay) Close() error {
	d.closed = true
	return nil
}

type fakeBackend struct {
	src, dev         *fakeSource
	srcInfo, devInfo media.StreamInfo
	srcErr, devErr   error
	sink             *fakeSink
	display          *fakeDisplay

	writerPath   string
	writerWidth  int
	writerHeight int
	writerFPS    float64
}

func newFakeBackend(srcFrames, devFrames int) *fakeBackend {
	return &fakeBackend{
		src:     &fakeSource{tag: 'v', frames: srcFrames},
		dev:     &fakeSource{tag: 'd', frames: devFrames},
		srcInfo: media.StreamInfo{Width: 1280, Height: 720, FrameRate: 30, HasAudio: true},
		devInfo: media.StreamInfo{Width: 640, Height: 480, FrameRate: 15},
		sink:    &fakeSink{},
		display: &fakeDisplay{},
	}
}

func (b *fakeBackend) OpenFile(ctx context.Context, path string) (FrameSource, media.StreamInfo, error) {
	if b.srcErr != nil {
		return nil, media.StreamInfo{}, b.srcErr
	}
	return b.src, b.srcInfo, nil
}

func (b *fakeBackend) OpenDevice(ctx context.Context) (FrameSource, media.StreamInfo, error) {
	if b.devErr != nil {
		return nil, media.StreamInfo{}, b.devErr
	}
	return b.dev, b.devInfo, nil
}

func (b *fakeBackend) CreateWriter(ctx context.Context, path string, width, height int, fps float64) (FrameSink, error) {
	b.writerPath, b.writerWidth, b.writerHeight, b.writerFPS = path, width, height, fps
	return b.sink, nil
}

func (b *fakeBackend) OpenDisplay(ctx context.Context, width, height int, fps float64) (Display, error) {
	return b.display, nil
}

func TestRecord_Lockstep(t *testing.T) {
	tests := []struct {
		name      string
		srcFrames int
		devFrames int
		want      int
	}{
		{"equal", 30, 30, 30},
		{"video shorter", 30, 45, 30},
		{"device shorter", 45, 12, 12},
		{"single frame", 1, 100, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newFakeBackend(tt.srcFrames, tt.devFrames)
			s := NewSynchronizer(b)

			rec, err := s.Record(context.Background(), filepath.Join("work", "abc.mp4"))
			if err != nil {
				t.Fatalf("Record() error = %v", err)
			}
			if rec.Frames != tt.want || len(b.sink.frames) != tt.want {
				t.Errorf("frames = %d (sink %d), want %d", rec.Frames, len(b.sink.frames), tt.want)
			}
			if len(b.display.shown) != tt.want {
				t.Errorf("shown = %d, want %d", len(b.display.shown), tt.want)
			}
			for i, f := range b.sink.frames {
				if f[0] != 'd' || int(f[1]) != i+1 {
					t.Fatalf("sink frame %d = %v, want device frame %d", i, f, i+1)
				}
			}
			for i, f := range b.display.shown {
				if f[0] != 'v' || int(f[1]) != i+1 {
					t.Fatalf("shown frame %d = %v, want video frame %d", i, f, i+1)
				}
			}
			if !b.src.closed.Load() || !b.dev.closed.Load() || !b.sink.closed || !b.display.closed {
				t.Error("sources, sink and display must all be released")
			}
			if rec.Stopped {
				t.Error("Stopped = true without a stop signal")
			}
		})
	}
}

func TestRecord_SessionAndWriter(t *testing.T) {
	b := newFakeBackend(30, 30)
	s := NewSynchronizer(b)

	rec, err := s.Record(context.Background(), filepath.Join("work", "abc.mp4"))
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join("work", "abc_reaction.mp4"); rec.Path != want || b.writerPath != want {
		t.Errorf("path = %q / %q, want %q", rec.Path, b.writerPath, want)
	}
	if b.writerWidth != 640 || b.writerHeight != 480 {
		t.Errorf("writer size = %dx%d, want device size 640x480", b.writerWidth, b.writerHeight)
	}
	if b.writerFPS != 30 {
		t.Errorf("writer fps = %v, want video rate 30", b.writerFPS)
	}
	want := Session{SourceOpen: true, DeviceOpen: true, FrameRate: 30, Width: 640, Height: 480}
	if rec.Session != want {
		t.Errorf("Session = %+v, want %+v", rec.Session, want)
	}
}

func TestRecord_DefaultFrameRate(t *testing.T) {
	b := newFakeBackend(3, 3)
	b.srcInfo.FrameRate = 0
	rec, err := NewSynchronizer(b).Record(context.Background(), "abc.mp4")
	if err != nil {
		t.Fatal(err)
	}
	if rec.Session.FrameRate != defaultFrameRate || b.writerFPS != defaultFrameRate {
		t.Errorf("frame rate = %v / %v, want %v", rec.Session.FrameRate, b.writerFPS, defaultFrameRate)
	}
}

func TestRecord_StopAtFrame(t *testing.T) {
	for _, k := range []int{1, 7, 29} {
		b := newFakeBackend(30, 30)
		stop := make(chan struct{})
		b.sink.onWrite = func(n int) {
			if n == k {
				close(stop)
			}
		}
		s := NewSynchronizer(b)
		s.StopSignal = func() (<-chan struct{}, func()) { return stop, func() {} }

		rec, err := s.Record(context.Background(), "abc.mp4")
		if err != nil {
			t.Fatalf("k=%d: Record() error = %v", k, err)
		}
		if rec.Frames != k || len(b.sink.frames) != k {
			t.Errorf("k=%d: frames = %d (sink %d)", k, rec.Frames, len(b.sink.frames))
		}
		if !rec.Stopped {
			t.Errorf("k=%d: Stopped = false", k)
		}
	}
}

func TestRecord_PreviewClosedStops(t *testing.T) {
	b := newFakeBackend(30, 30)
	b.display.failAt = 5
	rec, err := NewSynchronizer(b).Record(context.Background(), "abc.mp4")
	if err != nil {
		t.Fatal(err)
	}
	if rec.Frames != 5 || !rec.Stopped {
		t.Errorf("Frames = %d, Stopped = %v; want 5, true", rec.Frames, rec.Stopped)
	}
}

func TestRecord_NoPreview(t *testing.T) {
	b := newFakeBackend(4, 4)
	s := NewSynchronizer(b)
	s.Preview = false
	rec, err := s.Record(context.Background(), "abc.mp4")
	if err != nil {
		t.Fatal(err)
	}
	if rec.Frames != 4 || len(b.display.shown) != 0 {
		t.Errorf("Frames = %d, shown = %d", rec.Frames, len(b.display.shown))
	}
}

func TestRecord_OpenFailure(t *testing.T) {
	tests := []struct {
		name   string
		srcErr error
		devErr error
	}{
		{"video", errors.New("no such file"), nil},
		{"device", nil, errors.New("/dev/video0: no such device")},
		{"both", errors.New("a"), errors.New("b")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newFakeBackend(10, 10)
			b.srcErr, b.devErr = tt.srcErr, tt.devErr

			rec, err := NewSynchronizer(b).Record(context.Background(), "abc.mp4")
			if rec != nil {
				t.Errorf("Record() = %+v, want nil", rec)
			}
			if !errors.Is(err, ErrDeviceUnavailable) {
				t.Errorf("error = %v, want ErrDeviceUnavailable", err)
			}
			if tt.srcErr == nil && !b.src.closed.Load() {
				t.Error("opened video source was not closed")
			}
			if tt.devErr == nil && !b.dev.closed.Load() {
				t.Error("opened device was not closed")
			}
			if b.writerPath != "" {
				t.Error("writer created despite open failure")
			}
		})
	}
}

func TestRecord_NoFrames(t *testing.T) {
	b := newFakeBackend(0, 10)
	rec, err := NewSynchronizer(b).Record(context.Background(), "abc.mp4")
	if rec != nil || !errors.Is(err, ErrNoFrames) {
		t.Errorf("Record() = %v, %v; want nil, ErrNoFrames", rec, err)
	}
}

func TestRecord_DeviceErrorEndsRecording(t *testing.T) {
	b := newFakeBackend(30, 30)
	b.dev.failAt = 11
	rec, err := NewSynchronizer(b).Record(context.Background(), "abc.mp4")
	if err != nil {
		t.Fatal(err)
	}
	if rec.Frames != 10 {
		t.Errorf("Frames = %d, want 10", rec.Frames)
	}
}

func TestRecord_ContextCancelled(t *testing.T) {
	b := newFakeBackend(30, 30)
	ctx, cancel := context.WithCancel(context.Background())
	b.sink.onWrite = func(n int) {
		if n == 3 {
			cancel()
		}
	}
	rec, err := NewSynchronizer(b).Record(ctx, "abc.mp4")
	if rec != nil || !errors.Is(err, context.Canceled) {
		t.Errorf("Record() = %v, %v; want nil, context.Canceled", rec, err)
	}
	if !b.sink.closed {
		t.Error("writer not finalized after cancel")
	}
}

func TestKeyboard_Stop(t *testing.T) {
	r := strings.NewReader("hello\n Q \n")
	k := &Keyboard{key: "q"}
	first, _ := k.Stop()
	k.run(r)

	select {
	case <-first:
	default:
		t.Fatal("stop channel not closed by q line")
	}

	second, release := k.Stop()
	select {
	case <-second:
		t.Fatal("new stop channel closed by an earlier key press")
	default:
	}
	release()
	if len(k.waiters) != 0 {
		t.Errorf("waiters = %d after release, want 0", len(k.waiters))
	}
	release()
}

func TestRecord_ReleasesKeyboardWaiter(t *testing.T) {
	k := &Keyboard{key: "q"}
	for i := 0; i < 3; i++ {
		s := NewSynchronizer(newFakeBackend(5, 5))
		s.StopSignal = k.Stop
		if _, err := s.Record(context.Background(), "abc.mp4"); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	if len(k.waiters) != 0 {
		t.Errorf("waiters = %d after recordings ended, want 0", len(k.waiters))
	}
}

func TestReadKind_String(t *testing.T) {
	if Frame.String() != "frame" || EndOfStream.String() != "end of stream" || DeviceError.String() != "device error" {
		t.Error("ReadKind.String() mismatch")
	}
}
