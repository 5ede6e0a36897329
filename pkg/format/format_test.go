package format

import (
	"bytes"
	"context"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/l3aro/pyrefine/internal/log"
)

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func TestNop(t *testing.T) {
	src := []byte("x = 1\n")
	assert.Equal(t, src, Nop{}.Format(context.Background(), src))
}

func TestExecFormatter_Stages(t *testing.T) {
	requireShell(t)

	tests := []struct {
		name     string
		commands [][]string
		want     string
	}{
		{
			name:     "single stage",
			commands: [][]string{{"sh", "-c", "tr a-z A-Z"}},
			want:     "X = 1\n",
		},
		{
			name:     "stages chain",
			commands: [][]string{{"sh", "-c", "tr a-z A-Z"}, {"sh", "-c", "sed 's/1/2/'"}},
			want:     "X = 2\n",
		},
		{
			name:     "failing stage is skipped",
			commands: [][]string{{"sh", "-c", "echo boom >&2; exit 1"}, {"sh", "-c", "tr a-z A-Z"}},
			want:     "X = 1\n",
		},
		{
			name:     "missing binary is skipped",
			commands: [][]string{{"pyrefine-no-such-formatter"}},
			want:     "x = 1\n",
		},
		{
			name:     "empty output is ignored",
			commands: [][]string{{"sh", "-c", "cat >/dev/null"}},
			want:     "x = 1\n",
		},
		{
			name:     "empty command ignored",
			commands: [][]string{{}},
			want:     "x = 1\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewExecFormatter(tt.commands, 10*time.Second, nil)
			got := f.Format(context.Background(), []byte("x = 1\n"))
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func TestExecFormatter_Timeout(t *testing.T) {
	requireShell(t)

	var buf bytes.Buffer
	logger := log.New(log.LoggerConfig{Level: log.WarnLevel, Output: &buf})
	f := NewExecFormatter([][]string{{"sh", "-c", "exec sleep 5"}}, 50*time.Millisecond, logger)

	start := time.Now()
	got := f.Format(context.Background(), []byte("x = 1\n"))
	assert.Equal(t, "x = 1\n", string(got))
	assert.Less(t, time.Since(start), 4*time.Second)
	assert.True(t, strings.Contains(buf.String(), "formatter failed"), buf.String())
}
