// Package engineclient implements the UCI-style wire protocol on top of a
// process.Controller: handshake, new-game/readiness probes, position/go/bestmove, and
// info-line parsing. It is the protocol adapter the match runner drives turn by turn.
package engineclient

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/boutlab/bout/pkg/process"
	"github.com/seekerror/logw"
	"go.uber.org/atomic"
)

// HandshakeError is returned by Start when the engine never emits "uciok" in time.
type HandshakeError struct {
	Name  string
	Cause error
}

func (e *HandshakeError) Error() string {
	return fmt.Sprintf("handshake with %v failed: %v", e.Name, e.Cause)
}

// Status is the outcome of a blocking protocol operation.
type Status int

const (
	OK Status = iota
	Timeout
	ProtocolErr
)

// Config describes how to spawn and configure one engine process. It is the subset of
// tournament.EngineConfig the wire protocol needs; tournament.EngineConfig carries the
// rest (time control, restart policy) and is translated into this on lease creation.
type Config struct {
	Name             string
	Command          string
	Args             []string
	Dir              string
	Options          map[string]string // setoption name/value pairs sent once after handshake
	HandshakeTimeout time.Duration     // default 10s if zero
	ProbeTimeout     time.Duration     // default 5s if zero, used by IsResponsive
}

// ScoreType discriminates a reported evaluation.
type ScoreType int

const (
	NoScore ScoreType = iota
	Centipawn
	Mate
)

// Info is the most recent "info ..." line, parsed per the tokenization rule: find the
// token equal to a key and read the following token as its value; missing keys default
// to zero.
type Info struct {
	Depth     int
	SelDepth  int
	Nodes     int
	Nps       int
	ScoreType ScoreType
	Score     int
	PV        []string
}

// GoParams is the search budget for one "go" command, populated by the caller (the
// match runner, from Participant's time control) and serialized verbatim.
type GoParams struct {
	WTimeMs, BTimeMs int
	WIncMs, BIncMs   int
	MovesToGo        int
	MoveTimeMs       int
	Depth            int
	Nodes            int
	Infinite         bool
}

// Handle is a live engine under the UCI protocol. Not safe for concurrent use: a match
// borrows it exclusively for the duration of a game.
type Handle struct {
	cfg Config
	ctl *process.Controller

	lastInfo Info
	output   []string

	responsive atomic.Bool
}

// New returns a handle for cfg, not yet started.
func New(cfg Config) *Handle {
	if cfg.HandshakeTimeout == 0 {
		cfg.HandshakeTimeout = 10 * time.Second
	}
	if cfg.ProbeTimeout == 0 {
		cfg.ProbeTimeout = 5 * time.Second
	}
	return &Handle{cfg: cfg}
}

// Name returns the configured engine name, for logging.
func (h *Handle) Name() string {
	return h.cfg.Name
}

// Start spawns the engine (pinned to cpuSet, if non-empty), performs the UCI handshake,
// and applies the configured options.
func (h *Handle) Start(ctx context.Context, cpuSet []int) error {
	ctl, err := process.Spawn(ctx, h.cfg.Command, h.cfg.Args, h.cfg.Dir, cpuSet, h.cfg.Name)
	if err != nil {
		return err
	}
	h.ctl = ctl
	ctl.SetReadLog(func(s string) { logw.Debugf(ctx, "%v << %v", h.cfg.Name, s) })

	if err := ctl.WriteLine("uci"); err != nil {
		return &HandshakeError{Name: h.cfg.Name, Cause: err}
	}
	status, _ := ctl.ReadUntil(ctx, "uciok", h.cfg.HandshakeTimeout)
	if status != process.OK {
		return &HandshakeError{Name: h.cfg.Name, Cause: fmt.Errorf("no uciok (status=%v)", status)}
	}

	for k, v := range h.cfg.Options {
		if err := ctl.WriteLine(fmt.Sprintf("setoption name %v value %v", k, v)); err != nil {
			return &HandshakeError{Name: h.cfg.Name, Cause: err}
		}
	}

	h.responsive.Store(true)
	return nil
}

// NewGame sends ucinewgame followed by a readiness probe. It returns false if the probe
// fails; the caller should treat this as a fatal engine failure.
func (h *Handle) NewGame(ctx context.Context) bool {
	if err := h.ctl.WriteLine("ucinewgame"); err != nil {
		return false
	}
	return h.IsResponsive(ctx)
}

// SetPosition emits a single "position" line: either the starting position or a FEN,
// followed by the moves played so far in wire notation.
func (h *Handle) SetPosition(startpos bool, fen string, moves []string) error {
	var sb strings.Builder
	if startpos {
		sb.WriteString("position startpos")
	} else {
		fmt.Fprintf(&sb, "position fen %v", fen)
	}
	if len(moves) > 0 {
		sb.WriteString(" moves ")
		sb.WriteString(strings.Join(moves, " "))
	}
	return h.ctl.WriteLine(sb.String())
}

// Go emits a "go" command populated from p.
func (h *Handle) Go(p GoParams) error {
	var sb strings.Builder
	sb.WriteString("go")
	switch {
	case p.Infinite:
		sb.WriteString(" infinite")
	case p.MoveTimeMs > 0:
		fmt.Fprintf(&sb, " movetime %v", p.MoveTimeMs)
	case p.Depth > 0:
		fmt.Fprintf(&sb, " depth %v", p.Depth)
	case p.Nodes > 0:
		fmt.Fprintf(&sb, " nodes %v", p.Nodes)
	default:
		fmt.Fprintf(&sb, " wtime %v btime %v winc %v binc %v", p.WTimeMs, p.BTimeMs, p.WIncMs, p.BIncMs)
		if p.MovesToGo > 0 {
			fmt.Fprintf(&sb, " movestogo %v", p.MovesToGo)
		}
	}
	return h.ctl.WriteLine(sb.String())
}

// BestMove reads until a "bestmove" line, returning the chosen move's wire notation, the
// last parsed info line (score/pv/nps/...), and the read status (OK or Timeout).
func (h *Handle) BestMove(ctx context.Context, deadline time.Duration) (string, Info, Status) {
	h.lastInfo = Info{}

	status, lines := h.ctl.ReadUntil(ctx, "bestmove", deadline)
	h.output = lines

	for _, l := range lines {
		if strings.HasPrefix(l, "info") {
			h.lastInfo = mergeInfo(h.lastInfo, parseInfo(l))
		}
	}

	switch status {
	case process.OK:
		last := lines[len(lines)-1]
		fields := strings.Fields(last)
		if len(fields) < 2 {
			return "", h.lastInfo, ProtocolErr
		}
		return fields[1], h.lastInfo, OK
	case process.Timeout:
		return "", h.lastInfo, Timeout
	default:
		return "", h.lastInfo, ProtocolErr
	}
}

// Output returns the lines accumulated since the previous read, then clears the buffer.
func (h *Handle) Output() []string {
	out := h.output
	h.output = nil
	return out
}

// IsResponsive round-trips an isready/readyok probe with a short deadline.
func (h *Handle) IsResponsive(ctx context.Context) bool {
	if h.ctl == nil || !h.ctl.IsAlive() {
		h.responsive.Store(false)
		return false
	}
	if err := h.ctl.WriteLine("isready"); err != nil {
		h.responsive.Store(false)
		return false
	}
	status, _ := h.ctl.ReadUntil(ctx, "readyok", h.cfg.ProbeTimeout)
	ok := status == process.OK
	h.responsive.Store(ok)
	return ok
}

// Quit sends "quit" and kills the underlying process.
func (h *Handle) Quit() {
	if h.ctl == nil {
		return
	}
	_ = h.ctl.WriteLine("quit")
	h.ctl.Kill()
}

func mergeInfo(prev, next Info) Info {
	if next.ScoreType == NoScore {
		next.ScoreType = prev.ScoreType
		next.Score = prev.Score
	}
	if len(next.PV) == 0 {
		next.PV = prev.PV
	}
	return next
}

// parseInfo tokenizes an "info ..." line per the rule: find the token equal to a key,
// read the following token as its value (integer keys default to 0 if absent/malformed).
func parseInfo(l string) Info {
	fields := strings.Fields(l)

	var info Info
	for i, f := range fields {
		next := func() (string, bool) {
			if i+1 < len(fields) {
				return fields[i+1], true
			}
			return "", false
		}
		nextInt := func() int {
			if s, ok := next(); ok {
				if v, err := strconv.Atoi(s); err == nil {
					return v
				}
			}
			return 0
		}

		switch f {
		case "depth":
			info.Depth = nextInt()
		case "seldepth":
			info.SelDepth = nextInt()
		case "nodes":
			info.Nodes = nextInt()
		case "nps":
			info.Nps = nextInt()
		case "score":
			if kind, ok := next(); ok {
				switch kind {
				case "cp":
					info.ScoreType = Centipawn
				case "mate":
					info.ScoreType = Mate
				}
				if i+2 < len(fields) {
					if v, err := strconv.Atoi(fields[i+2]); err == nil {
						info.Score = v
					}
				}
			}
		case "pv":
			if i+1 < len(fields) {
				info.PV = append([]string(nil), fields[i+1:]...)
			}
		}
	}
	return info
}
