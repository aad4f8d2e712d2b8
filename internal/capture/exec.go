package capture

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"

	"github.com/dictalabs/dicta-core/internal/config"
	"github.com/mattn/go-shellwords"
)

const segmentReadSize = 32 * 1024

// execDevice shells out to an external recorder (ffmpeg, parecord, sox...)
// that writes encoded audio to stdout. Each read becomes one segment.
type execDevice struct {
	cmd []string
}

func NewExecDevice(cfg config.CaptureConfig) (Device, error) {
	parser := shellwords.NewParser()
	args, err := parser.Parse(cfg.Command)
	if err != nil {
		return nil, fmt.Errorf("parse capture command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("capture command is empty")
	}
	return &execDevice{cmd: args}, nil
}

func (d *execDevice) Open(ctx context.Context) (Stream, error) {
	cmd := exec.CommandContext(ctx, d.cmd[0], d.cmd[1:]...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}

	s := &execStream{
		cmd:      cmd,
		stdout:   stdout,
		segments: make(chan Segment),
		pumpDone: make(chan struct{}),
		done:     make(chan struct{}),
	}
	go s.pump()
	return s, nil
}

type execStream struct {
	cmd      *exec.Cmd
	stdout   io.ReadCloser
	segments chan Segment
	pumpDone chan struct{}
	done     chan struct{}
	stopOnce sync.Once

	mu  sync.Mutex
	err error
}

func (s *execStream) Segments() <-chan Segment { return s.segments }

func (s *execStream) pump() {
	defer close(s.pumpDone)
	defer close(s.segments)
	seq := 0
	buf := make([]byte, segmentReadSize)
	for {
		n, err := s.stdout.Read(buf)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])
			s.segments <- Segment{Sequence: seq, Data: data}
			seq++
		}
		if err != nil {
			if err != io.EOF {
				s.setErr(err)
			}
			return
		}
	}
}

// Stop terminates the recorder and waits for the pump to drain whatever the
// process flushed on the way out. The done channel is the stop confirmation.
func (s *execStream) Stop() <-chan struct{} {
	s.stopOnce.Do(func() {
		go func() {
			defer close(s.done)
			if s.cmd.Process != nil {
				_ = s.cmd.Process.Signal(os.Interrupt)
			}
			// all reads from the pipe must finish before Wait
			<-s.pumpDone
			// recorders exit non-zero when interrupted; not a capture failure
			_ = s.cmd.Wait()
		}()
	})
	return s.done
}

func (s *execStream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *execStream) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err == nil {
		s.err = err
	}
}
