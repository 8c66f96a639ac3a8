package process_test

import (
	"context"
	"testing"
	"time"

	"github.com/boutlab/bout/pkg/process"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// echoScript is a tiny shell program that behaves enough like a UCI engine to exercise
// Controller: it echoes back whatever it reads, one line at a time.
const echoScript = `while IFS= read -r line; do echo "got $line"; done`

func TestControllerWriteReadRoundTrip(t *testing.T) {
	ctx := context.Background()

	c, err := process.Spawn(ctx, "/bin/sh", []string{"-c", echoScript}, "", nil, "echo")
	require.NoError(t, err)
	defer c.Kill()

	require.NoError(t, c.WriteLine("hello"))

	status, lines := c.ReadUntil(ctx, "got", 2*time.Second)
	assert.Equal(t, process.OK, status)
	require.Len(t, lines, 1)
	assert.Equal(t, "got hello", lines[0])
}

func TestControllerReadTimeout(t *testing.T) {
	ctx := context.Background()

	c, err := process.Spawn(ctx, "/bin/sh", []string{"-c", "sleep 5"}, "", nil, "sleeper")
	require.NoError(t, err)
	defer c.Kill()

	status, lines := c.ReadUntil(ctx, "never", 50*time.Millisecond)
	assert.Equal(t, process.Timeout, status)
	assert.Empty(t, lines)
}

func TestControllerReadUntilSurfacesPartialLineOnTimeout(t *testing.T) {
	ctx := context.Background()

	// printf with no trailing newline, then a long sleep: the bytes are flushed to the
	// pipe immediately but never become a complete line.
	c, err := process.Spawn(ctx, "/bin/sh", []string{"-c", `printf 'info dept'; sleep 5`}, "", nil, "partial")
	require.NoError(t, err)
	defer c.Kill()

	status, lines := c.ReadUntil(ctx, "never", 200*time.Millisecond)
	assert.Equal(t, process.Timeout, status)
	require.Len(t, lines, 1)
	assert.Equal(t, "info dept", lines[0])
}

func TestControllerIsAliveAndKill(t *testing.T) {
	ctx := context.Background()

	c, err := process.Spawn(ctx, "/bin/sh", []string{"-c", "sleep 5"}, "", nil, "sleeper")
	require.NoError(t, err)

	assert.True(t, c.IsAlive())
	c.Kill()

	status, _ := c.ReadUntil(ctx, "anything", time.Second)
	assert.Equal(t, process.Err, status)
}
