// Package format runs the cosmetic reformat pass over rewritten source.
// Formatting is best effort: a stage that fails leaves its input unchanged
// and the failure is only logged.
package format

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/l3aro/pyrefine/internal/log"
)

// Formatter normalizes source text. Format never fails; on any problem it
// returns src.
type Formatter interface {
	Format(ctx context.Context, src []byte) []byte
}

// Nop returns its input unchanged.
type Nop struct{}

func (Nop) Format(_ context.Context, src []byte) []byte {
	return src
}

// ExecFormatter pipes source through external commands, such as black and
// isort, reading stdin and writing stdout.
type ExecFormatter struct {
	commands [][]string
	timeout  time.Duration
	logger   log.Logger
}

// NewExecFormatter creates a formatter running commands in order. Each
// command gets its own timeout; zero means none.
func NewExecFormatter(commands [][]string, timeout time.Duration, logger log.Logger) *ExecFormatter {
	return &ExecFormatter{
		commands: commands,
		timeout:  timeout,
		logger:   log.OrNop(logger),
	}
}

// Format runs every stage. A failing stage is skipped and the next stage
// receives the previous output.
func (f *ExecFormatter) Format(ctx context.Context, src []byte) []byte {
	out := src
	for _, argv := range f.commands {
		if len(argv) == 0 {
			continue
		}
		formatted, err := f.run(ctx, argv, out)
		if err != nil {
			f.logger.Warn("formatter failed, keeping input", "command", argv[0], "error", err)
			continue
		}
		out = formatted
	}
	return out
}

func (f *ExecFormatter) run(ctx context.Context, argv []string, src []byte) ([]byte, error) {
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Stdin = bytes.NewReader(src)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = time.Second

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%w: %s", err, firstLine(msg))
		}
		return nil, err
	}
	if stdout.Len() == 0 && len(src) > 0 {
		return nil, fmt.Errorf("%s produced no output", argv[0])
	}
	return stdout.Bytes(), nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

var (
	_ Formatter = Nop{}
	_ Formatter = (*ExecFormatter)(nil)
)
