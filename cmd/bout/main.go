package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/BurntSushi/toml"
	"github.com/boutlab/bout/pkg/affinity"
	"github.com/boutlab/bout/pkg/book"
	"github.com/boutlab/bout/pkg/match"
	"github.com/boutlab/bout/pkg/output"
	"github.com/boutlab/bout/pkg/process"
	"github.com/boutlab/bout/pkg/stats"
	"github.com/boutlab/bout/pkg/tournament"
	"github.com/seekerror/build"
	"github.com/seekerror/logw"
	"github.com/seekerror/stdlib/pkg/lang"
	"github.com/seekerror/stdlib/pkg/util/iox"
)

var version = build.NewVersion(0, 1, 0)

var (
	configPath  = flag.String("config", "", "path to the tournament TOML configuration file")
	jsonOut     = flag.String("out", "", "path to write the tournament JSON summary (overrides output.json_path)")
	printVer    = flag.Bool("version", false, "print the version and exit")
	concurrency = flag.Int("concurrency", 0, "worker pool size (overrides concurrency in the config file)")
)

func init() {
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, `usage: bout -config tourney.toml [options]

bout is an engine-vs-engine UCI tournament runner.
Options:
`)
		flag.PrintDefaults()
	}
}

// tomlConfig mirrors tournament.Config in the shape a TOML file can express (plain
// fields, no generics), translated by toConfig.
type tomlConfig struct {
	Concurrency int `toml:"concurrency"`

	Engines []struct {
		Name    string            `toml:"name"`
		Command string            `toml:"command"`
		Args    []string          `toml:"args"`
		Dir     string            `toml:"dir"`
		Options map[string]string `toml:"options"`
		Threads int               `toml:"threads"`

		TimeControl struct {
			Mode       string `toml:"mode"` // classical | movetime | depth | nodes | infinite
			BaseMs     int    `toml:"base_ms"`
			IncMs      int    `toml:"inc_ms"`
			MovesToGo  int    `toml:"moves_to_go"`
			MoveTimeMs int    `toml:"movetime_ms"`
			Depth      int    `toml:"depth"`
			Nodes      int    `toml:"nodes"`
			ToleranceMs int   `toml:"tolerance_ms"`
		} `toml:"time_control"`

		Restart struct {
			Enabled    bool `toml:"enabled"`
			MaxRetries int  `toml:"max_retries"`
		} `toml:"restart"`
	} `toml:"engine"`

	Book struct {
		Path string `toml:"path"`
	} `toml:"book"`

	Draw struct {
		Enabled    bool `toml:"enabled"`
		MoveNumber int  `toml:"move_number"`
		Score      int  `toml:"score"`
		MoveCount  int  `toml:"move_count"`
	} `toml:"draw"`

	Resign struct {
		Enabled   bool `toml:"enabled"`
		Score     int  `toml:"score"`
		MoveCount int  `toml:"move_count"`
	} `toml:"resign"`

	SPRT struct {
		Enabled bool    `toml:"enabled"`
		Alpha   float64 `toml:"alpha"`
		Beta    float64 `toml:"beta"`
		Elo0    float64 `toml:"elo0"`
		Elo1    float64 `toml:"elo1"`
	} `toml:"sprt"`

	Output struct {
		JSONPath string `toml:"json_path"`
		PGNDir   string `toml:"pgn_dir"`
	} `toml:"output"`

	Affinity struct {
		Topology [][]int `toml:"topology"` // SMT sibling groups; flat 1-wide groups if omitted
	} `toml:"affinity"`
}

func timeControlMode(s string) match.TimeControlMode {
	switch s {
	case "movetime":
		return match.MoveTime
	case "depth":
		return match.FixedDepth
	case "nodes":
		return match.FixedNodes
	case "infinite":
		return match.Infinite
	default:
		return match.Classical
	}
}

func toConfig(tc tomlConfig) (tournament.Config, string, *affinity.Allocator, error) {
	var cfg tournament.Config
	cfg.Concurrency = tc.Concurrency
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}

	for _, e := range tc.Engines {
		ec := tournament.EngineConfig{
			Name:    e.Name,
			Command: e.Command,
			Args:    e.Args,
			Dir:     e.Dir,
			Options: e.Options,
			Threads: e.Threads,
			TimeControl: match.TimeControl{
				Mode:        timeControlMode(e.TimeControl.Mode),
				BaseMs:      e.TimeControl.BaseMs,
				IncMs:       e.TimeControl.IncMs,
				MovesToGo:   e.TimeControl.MovesToGo,
				MoveTimeMs:  e.TimeControl.MoveTimeMs,
				Depth:       e.TimeControl.Depth,
				Nodes:       e.TimeControl.Nodes,
				ToleranceMs: e.TimeControl.ToleranceMs,
			},
			Restart: tournament.RestartPolicy{
				Enabled:    e.Restart.Enabled,
				MaxRetries: e.Restart.MaxRetries,
			},
		}
		cfg.Engines = append(cfg.Engines, ec)
	}
	if len(cfg.Engines) < 2 {
		return cfg, "", nil, fmt.Errorf("config: need at least 2 [[engine]] entries, got %v", len(cfg.Engines))
	}

	if tc.Book.Path == "" {
		return cfg, "", nil, fmt.Errorf("config: book.path is required")
	}
	b, err := book.Load(tc.Book.Path)
	if err != nil {
		return cfg, "", nil, err
	}
	cfg.Book = b

	cfg.Draw = match.DrawConfig{Enabled: tc.Draw.Enabled, MoveNumber: tc.Draw.MoveNumber, Score: tc.Draw.Score, MoveCount: tc.Draw.MoveCount}
	cfg.Resign = match.ResignConfig{Enabled: tc.Resign.Enabled, Score: tc.Resign.Score, MoveCount: tc.Resign.MoveCount}

	if tc.SPRT.Enabled {
		cfg.SPRT = lang.Some(tournament.SPRTConfig{Alpha: tc.SPRT.Alpha, Beta: tc.SPRT.Beta, Elo0: tc.SPRT.Elo0, Elo1: tc.SPRT.Elo1})
	}

	jsonPath := tc.Output.JSONPath
	if jsonPath == "" {
		return cfg, "", nil, fmt.Errorf("config: output.json_path is required")
	}

	var allocator *affinity.Allocator
	if len(tc.Affinity.Topology) > 0 {
		allocator = affinity.New(tc.Affinity.Topology)
	} else {
		n := 1
		for _, e := range cfg.Engines {
			n += e.Threads
		}
		allocator = affinity.NewFlat(n)
	}

	return cfg, jsonPath, allocator, nil
}

// app bundles the process's shutdown signal, mirroring the teacher's uci.Driver /
// console.Driver embedding of iox.AsyncCloser for lifecycle coordination.
type app struct {
	iox.AsyncCloser
}

func main() {
	flag.Parse()
	ctx := context.Background()

	if *printVer {
		fmt.Println(version)
		return
	}
	if *configPath == "" {
		flag.Usage()
		os.Exit(2)
	}

	var tc tomlConfig
	if _, err := toml.DecodeFile(*configPath, &tc); err != nil {
		logw.Exitf(ctx, "load config %v: %v", *configPath, err)
	}

	cfg, jsonPath, allocator, err := toConfig(tc)
	if err != nil {
		logw.Exitf(ctx, "%v", err)
	}
	if *jsonOut != "" {
		jsonPath = *jsonOut
	}
	if *concurrency > 0 {
		cfg.Concurrency = *concurrency
	}

	sink := multiSink{output.NewConsole(ctx), output.NewJSON(jsonPath, tc.Output.PGNDir)}

	rr := tournament.New(cfg, allocator, sink)

	a := &app{AsyncCloser: iox.NewAsyncCloser()}
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-sig:
			logw.Infof(ctx, "interrupt received, stopping after current ply")
			rr.Stop()
		case <-a.Closed():
		}
	}()

	done := make(chan *output.Report, 1)
	go func() {
		done <- rr.Run(ctx)
	}()

	report := <-done
	a.Close()
	process.KillAll()

	sink.OnTournamentCompleted(*report)

	os.Exit(0)
}

// multiSink fans the same callbacks out to every configured sink.
type multiSink []output.Sink

func (m multiSink) OnMatchStarted(data match.MatchData) {
	for _, s := range m {
		s.OnMatchStarted(data)
	}
}

func (m multiSink) OnMatchCompleted(data match.MatchData, entry stats.Entry) {
	for _, s := range m {
		s.OnMatchCompleted(data, entry)
	}
}

func (m multiSink) OnTournamentCompleted(report output.Report) {
	for _, s := range m {
		s.OnTournamentCompleted(report)
	}
}
