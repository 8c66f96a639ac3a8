package tournament

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/boutlab/bout/pkg/affinity"
	"github.com/boutlab/bout/pkg/board"
	"github.com/boutlab/bout/pkg/match"
	"github.com/boutlab/bout/pkg/output"
	"github.com/boutlab/bout/pkg/sprt"
	"github.com/boutlab/bout/pkg/stats"
	"github.com/seekerror/logw"
	"go.uber.org/atomic"
)

// RoundRobin is the §4.7 scheduler: it enumerates every pairing implied by Config,
// dispatches them to a worker pool, retries matches that report needs_restart, and
// drives a StatsAggregator (and, if configured, an SprtDecider) from the results.
type RoundRobin struct {
	cfg Config

	engines map[string]EngineConfig
	pool    *enginePool
	cpus    *affinity.Allocator
	stats   *stats.Aggregator
	sprt    *sprt.Decider

	stop *atomic.Bool
	sink output.Sink
}

// New returns a RoundRobin ready to Run. cpus is the CPU topology allocator shared by
// every concurrent match; sink receives per-match and final tournament callbacks.
func New(cfg Config, cpus *affinity.Allocator, sink output.Sink) *RoundRobin {
	engines := make(map[string]EngineConfig, len(cfg.Engines))
	for _, e := range cfg.Engines {
		engines[e.Name] = e
	}

	var decider *sprt.Decider
	if s, ok := cfg.SPRT.V(); ok {
		decider = sprt.NewDecider(s.Alpha, s.Beta, s.Elo0, s.Elo1)
	}

	return &RoundRobin{
		cfg:     cfg,
		engines: engines,
		pool:    newEnginePool(engines),
		cpus:    cpus,
		stats:   stats.New(),
		sprt:    decider,
		stop:    atomic.NewBool(false),
		sink:    sink,
	}
}

// Stop raises the global interrupt flag; in-flight matches finish their current ply and
// return, then Run's worker joins complete.
func (r *RoundRobin) Stop() {
	r.stop.Store(true)
}

// Stats exposes the running aggregator, mainly for tests.
func (r *RoundRobin) Stats() *stats.Aggregator {
	return r.stats
}

// Run enumerates and plays every pairing to completion (or until SPRT/interruption stops
// the tournament early), then returns the final report. It also tears down every pooled
// engine process before returning.
func (r *RoundRobin) Run(ctx context.Context) *output.Report {
	jobs := make(chan Pairing, r.cfg.Concurrency*2+1)
	go r.enumerate(jobs)

	var wg sync.WaitGroup
	for i := 0; i < r.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.work(ctx, jobs)
		}()
	}
	wg.Wait()

	r.pool.CloseAll()

	return &output.Report{
		Engines: r.engineNames(),
		Stats:   r.stats.Snapshot(),
	}
}

func (r *RoundRobin) engineNames() []string {
	names := make([]string, 0, len(r.engines))
	for name := range r.engines {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// enumerate produces every pairing in stable (engine-pair, round) order and closes jobs
// once exhausted or the stop flag is raised. Each drawn opening yields two pairings
// (colors swapped) sharing the same (Round, OpeningIndex) coordinates so StatsAggregator
// can match them into one game pair.
func (r *RoundRobin) enumerate(jobs chan<- Pairing) {
	defer close(jobs)

	names := r.engineNames()
	rounds := r.cfg.Book.Len()

	for i := 0; i < len(names); i++ {
		for j := i + 1; j < len(names); j++ {
			for round := 0; round < rounds; round++ {
				if r.stop.Load() {
					return
				}
				opening, idx := r.cfg.Book.Next()

				jobs <- Pairing{EngineA: names[i], EngineB: names[j], WhiteIsA: true, Opening: opening, Round: round, OpeningIndex: idx}
				jobs <- Pairing{EngineA: names[i], EngineB: names[j], WhiteIsA: false, Opening: opening, Round: round, OpeningIndex: idx}
			}
		}
	}
}

func (r *RoundRobin) work(ctx context.Context, jobs <-chan Pairing) {
	for p := range jobs {
		if r.stop.Load() {
			continue
		}
		r.runPairing(ctx, p)
	}
}

// runPairing runs one pairing, retrying up to the larger of the two engines'
// RestartPolicy.MaxRetries when the match reports needs_restart (§4.7 step 3).
func (r *RoundRobin) runPairing(ctx context.Context, p Pairing) {
	cfgA, cfgB := r.engines[p.EngineA], r.engines[p.EngineB]

	maxRetries := 0
	if cfgA.Restart.Enabled || cfgB.Restart.Enabled {
		maxRetries = cfgA.Restart.MaxRetries
		if cfgB.Restart.MaxRetries > maxRetries {
			maxRetries = cfgB.Restart.MaxRetries
		}
		if maxRetries == 0 {
			maxRetries = 1
		}
	}

	for attempt := 0; ; attempt++ {
		data, err := r.attemptPairing(ctx, p, cfgA, cfgB)
		if err != nil {
			logw.Errorf(ctx, "pairing %v vs %v: %v", p.EngineA, p.EngineB, err)
			return
		}
		if !data.NeedsRestart || attempt >= maxRetries {
			r.record(p, data)
			return
		}
		logw.Warningf(ctx, "pairing %v vs %v needs restart (attempt %v): %v", p.EngineA, p.EngineB, attempt+1, data.Reason)
	}
}

// attemptPairing leases engines and a CPU set for each, runs one MatchRunner, and
// releases every lease on every exit path (§4.7 step 4), discarding rather than
// returning engine handles to the pool when the match asked for a restart.
func (r *RoundRobin) attemptPairing(ctx context.Context, p Pairing, cfgA, cfgB EngineConfig) (*match.MatchData, error) {
	cpuA, okA := r.cpus.Acquire(cfgA.Threads)
	if !okA {
		return nil, fmt.Errorf("no cpu set available for %v (threads=%v)", cfgA.Name, cfgA.Threads)
	}
	cpuLeaseA := NewLease(cpuA, r.cpus.Release)
	defer cpuLeaseA.Release()

	cpuB, okB := r.cpus.Acquire(cfgB.Threads)
	if !okB {
		return nil, fmt.Errorf("no cpu set available for %v (threads=%v)", cfgB.Name, cfgB.Threads)
	}
	cpuLeaseB := NewLease(cpuB, r.cpus.Release)
	defer cpuLeaseB.Release()

	hp, err := r.pool.Acquire(ctx, p.EngineA, p.EngineB, cpuA, cpuB)
	if err != nil {
		return nil, err
	}

	handleLease := NewLease(hp, func(hp *handlePair) { r.pool.Release(p.EngineA, p.EngineB, hp) })
	defer handleLease.Release()

	whiteName, blackName := p.EngineA, p.EngineB
	whiteCfg, blackCfg := cfgA, cfgB
	whiteHandle, blackHandle := hp.a, hp.b
	if !p.WhiteIsA {
		whiteName, blackName = p.EngineB, p.EngineA
		whiteCfg, blackCfg = cfgB, cfgA
		whiteHandle, blackHandle = hp.b, hp.a
	}

	if r.sink != nil {
		r.sink.OnMatchStarted(match.MatchData{
			OpeningFEN: p.Opening.FEN,
			Players: [2]match.PlayerInfo{
				{Name: whiteName, Color: board.White},
				{Name: blackName, Color: board.Black},
			},
		})
	}

	white := match.NewParticipant(whiteHandle, board.White, whiteCfg.TimeControl)
	black := match.NewParticipant(blackHandle, board.Black, blackCfg.TimeControl)

	canRestart := cfgA.Restart.Enabled || cfgB.Restart.Enabled
	runner := match.NewRunner(white, black, p.Opening.FEN, p.Opening.Moves, r.cfg.Draw, r.cfg.Resign, canRestart, r.stop)
	data := runner.Run(ctx, whiteName, blackName)

	if data.NeedsRestart {
		handleLease.release = func(hp *handlePair) { r.pool.Discard(hp) }
	}

	return data, nil
}

func (r *RoundRobin) record(p Pairing, data *match.MatchData) {
	lowerResult := translateResult(p.EngineA, p.EngineB, data)
	r.stats.Record(p.EngineA, p.EngineB, lowerResult, p.Round, p.OpeningIndex)

	entry := r.stats.Entry(p.EngineA, p.EngineB)
	if r.sink != nil {
		r.sink.OnMatchCompleted(*data, entry)
	}

	if r.sprt != nil {
		w, d, l := wdlForEngineA(p.EngineA, p.EngineB, entry)
		if r.sprt.Decide(w, d, l) != sprt.Continue {
			r.stop.Store(true)
		}
	}
}

// translateResult maps data's outcome to the stats.GameResult from PairKey's Lower
// engine's perspective, regardless of which color it played.
func translateResult(engineA, engineB string, data *match.MatchData) stats.GameResult {
	lower := engineA
	if engineB < engineA {
		lower = engineB
	}
	for _, pl := range data.Players {
		if pl.Name != lower {
			continue
		}
		switch pl.Result {
		case match.Win:
			return stats.Win
		case match.Lose:
			return stats.Loss
		default:
			return stats.Draw
		}
	}
	return stats.Draw
}

// wdlForEngineA reorients entry (always stored Lower/Higher) to engineA's perspective.
func wdlForEngineA(engineA, engineB string, entry stats.Entry) (w, d, l int) {
	if engineA < engineB {
		return entry.WinsLower, entry.Draws, entry.WinsHigher
	}
	return entry.WinsHigher, entry.Draws, entry.WinsLower
}
