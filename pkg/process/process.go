// Package process spawns and drives a child process over its stdin/stdout pipes with
// deadline-based reads and cooperative cancellation. It is the lowest layer of the
// tournament core: everything else talks to an engine only through a Controller.
package process

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/seekerror/logw"
	"go.uber.org/atomic"
)

// ReadStatus is the outcome of a ReadUntil call.
type ReadStatus int

const (
	OK ReadStatus = iota
	Timeout
	Err
)

// SpawnError is returned by Spawn when the executable cannot be launched.
type SpawnError struct {
	Command string
	Cause   error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("spawn %q: %v", e.Command, e.Cause)
}

func (e *SpawnError) Unwrap() error {
	return e.Cause
}

// IoError is returned by WriteLine on a pipe failure.
type IoError struct {
	Cause error
}

func (e *IoError) Error() string {
	return fmt.Sprintf("io: %v", e.Cause)
}

func (e *IoError) Unwrap() error {
	return e.Cause
}

var (
	liveMu sync.Mutex
	live   = map[*Controller]struct{}{}
)

// KillAll terminates every live child process. Used on final tournament shutdown.
func KillAll() {
	liveMu.Lock()
	cs := make([]*Controller, 0, len(live))
	for c := range live {
		cs = append(cs, c)
	}
	liveMu.Unlock()

	for _, c := range cs {
		c.Kill()
	}
}

type line struct {
	text string
	err  error
}

// Controller owns one child process's pipes. Not safe for concurrent Spawn/Kill/reads
// from multiple goroutines at once; a single MatchRunner thread drives it, matching the
// "engine I/O is strictly serialized by the driving worker" guarantee of the owning
// EngineHandle.
type Controller struct {
	name string
	cmd  *exec.Cmd
	in   io.WriteCloser

	lines  chan line
	alive  atomic.Bool
	killed atomic.Bool

	onLine func(string) // read-log sink; may be nil

	partialMu sync.Mutex
	partial   string // bytes read but not yet newline-terminated
}

// Spawn starts command with args, redirecting its stdio to pipes owned by the returned
// Controller. If cpuSet is non-empty, CPU affinity is applied to the child (best effort;
// see affinity_linux.go). On Linux the child is placed in its own process group so that
// signals delivered to this process do not reach it; on other systems it stays in this
// process's group.
func Spawn(ctx context.Context, command string, args []string, dir string, cpuSet []int, logName string) (*Controller, error) {
	cmd := exec.Command(command, args...)
	cmd.Dir = dir
	setProcessGroup(cmd)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, &SpawnError{Command: command, Cause: err}
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, &SpawnError{Command: command, Cause: err}
	}

	if err := cmd.Start(); err != nil {
		return nil, &SpawnError{Command: command, Cause: err}
	}

	if len(cpuSet) > 0 {
		if err := setAffinity(cmd.Process.Pid, cpuSet); err != nil {
			logw.Warningf(ctx, "%v: failed to set cpu affinity to %v: %v", logName, cpuSet, err)
		}
	}

	c := &Controller{
		name:  logName,
		cmd:   cmd,
		in:    stdin,
		lines: make(chan line, 64),
	}
	c.alive.Store(true)

	go c.pump(stdout)
	go c.awaitExit()

	liveMu.Lock()
	live[c] = struct{}{}
	liveMu.Unlock()

	logw.Infof(ctx, "%v: spawned pid=%v", logName, cmd.Process.Pid)
	return c, nil
}

// SetReadLog installs a sink that every non-empty line read from the child is forwarded
// to, before it is made available to ReadUntil's caller.
func (c *Controller) SetReadLog(fn func(string)) {
	c.onLine = fn
}

// pump reads raw chunks off stdout rather than blocking a full ReadString('\n') call, so
// that bytes received but not yet newline-terminated are visible via setPartial as soon
// as the pipe delivers them, not only once a line completes.
func (c *Controller) pump(stdout io.Reader) {
	var acc []byte
	buf := make([]byte, 4096)
	for {
		n, err := stdout.Read(buf)
		if n > 0 {
			acc = append(acc, buf[:n]...)
			for {
				i := bytes.IndexByte(acc, '\n')
				if i < 0 {
					break
				}
				s := strings.TrimRight(string(acc[:i]), "\r")
				acc = acc[i+1:]
				if s != "" {
					c.lines <- line{text: s}
				}
			}
			c.setPartial(string(acc))
		}
		if err != nil {
			if len(acc) > 0 {
				c.lines <- line{text: string(acc)}
				c.setPartial("")
			}
			c.lines <- line{err: err}
			return
		}
	}
}

func (c *Controller) setPartial(s string) {
	c.partialMu.Lock()
	c.partial = s
	c.partialMu.Unlock()
}

// takePartial returns and clears whatever has been read but not yet newline-terminated.
func (c *Controller) takePartial() string {
	c.partialMu.Lock()
	defer c.partialMu.Unlock()
	s := c.partial
	c.partial = ""
	return s
}

func (c *Controller) awaitExit() {
	_ = c.cmd.Wait()
	c.alive.Store(false)
}

// IsAlive reports whether the child has not exited.
func (c *Controller) IsAlive() bool {
	return c.alive.Load()
}

// WriteLine appends a trailing newline if absent and writes s to the child's stdin.
func (c *Controller) WriteLine(s string) error {
	if !strings.HasSuffix(s, "\n") {
		s += "\n"
	}
	if _, err := io.WriteString(c.in, s); err != nil {
		if !c.IsAlive() {
			c.Kill()
		}
		return &IoError{Cause: err}
	}
	return nil
}

// ReadUntil accumulates lines from the child's stdout into out (discarding empty lines)
// until one begins with prefix, returning OK; returns Timeout if timeout is positive and
// elapses first (timeout <= 0 means wait indefinitely), and Err on pipe failure, EOF, or
// ctx cancellation before the sentinel. On Timeout, whatever bytes pump has read but not
// yet newline-terminated are appended to out as a final partial entry: partial data is
// observable, not dropped.
func (c *Controller) ReadUntil(ctx context.Context, prefix string, timeout time.Duration) (ReadStatus, []string) {
	var deadline <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		deadline = t.C
	}

	var out []string
	for {
		select {
		case l, ok := <-c.lines:
			if !ok || l.err != nil {
				return Err, out
			}
			if c.onLine != nil {
				c.onLine(l.text)
			}
			out = append(out, l.text)
			if strings.HasPrefix(l.text, prefix) {
				return OK, out
			}
		case <-ctx.Done():
			return Err, out
		case <-deadline:
			if p := c.takePartial(); p != "" {
				out = append(out, p)
			}
			return Timeout, out
		}
	}
}

// Kill removes the controller from the live-process set, terminates the child if it is
// still alive, and closes its handles. Idempotent.
func (c *Controller) Kill() {
	if !c.killed.CAS(false, true) {
		return
	}

	liveMu.Lock()
	delete(live, c)
	liveMu.Unlock()

	if c.cmd.Process != nil {
		killProcessGroup(c.cmd)
	}
	_ = c.in.Close()
	c.alive.Store(false)
}
