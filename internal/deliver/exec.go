package deliver

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"sync"

	"github.com/mattn/go-shellwords"
)

// execSink pipes the text to an external injection command (wtype, xdotool
// type --file -, a paste helper...) on stdin.
type execSink struct {
	cmd []string
	mu  sync.Mutex
}

func NewExecSink(command string) (Sink, error) {
	parser := shellwords.NewParser()
	args, err := parser.Parse(command)
	if err != nil {
		return nil, fmt.Errorf("parse delivery command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("delivery command is empty")
	}
	return &execSink{cmd: args}, nil
}

func (s *execSink) Replace(ctx context.Context, _, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cmd := exec.CommandContext(ctx, s.cmd[0], s.cmd[1:]...)
	cmd.Stdin = bytes.NewBufferString(text)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("delivery command failed: %w: %s", err, stderr.String())
	}
	return nil
}
