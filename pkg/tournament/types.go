// Package tournament implements the round-robin scheduler: it enumerates engine
// pairings, runs matches concurrently up to a configured parallelism, restarts matches
// on recoverable engine failure, and feeds results into a statistics aggregator and
// (optionally) an SPRT early-stopping decider.
package tournament

import (
	"time"

	"github.com/boutlab/bout/pkg/book"
	"github.com/boutlab/bout/pkg/match"
	"github.com/seekerror/stdlib/pkg/lang"
)

// RestartPolicy governs whether a match that failed with needs_restart is retried.
type RestartPolicy struct {
	Enabled    bool
	MaxRetries int // per pairing attempt; 0 with Enabled still allows one retry
}

// EngineConfig is immutable, process-lifetime configuration for one engine.
type EngineConfig struct {
	Name    string
	Command string
	Args    []string
	Dir     string
	Options map[string]string

	TimeControl match.TimeControl
	Threads     int // search-thread count; sizes the engine's AffinityAllocator lease

	Restart RestartPolicy

	HandshakeTimeout lang.Optional[time.Duration]
	ProbeTimeout     lang.Optional[time.Duration]
}

// SPRTConfig parameterizes early stopping. Absent (the zero Optional) means the
// tournament plays out every scheduled game regardless of outcome trend.
type SPRTConfig struct {
	Alpha, Beta float64
	Elo0, Elo1  float64
}

// Config is the full tournament configuration: the engines to pair, the opening book to
// draw starting positions from, concurrency, and the adjudication/SPRT policy.
type Config struct {
	Engines     []EngineConfig
	Book        *book.Book
	Concurrency int

	Draw   match.DrawConfig
	Resign match.ResignConfig
	SPRT   lang.Optional[SPRTConfig]
}

// Pairing is one scheduled game: an ordered pair of engines (WhiteIsA decides which
// plays white), the opening to start from, and the (round, opening) coordinates used to
// match it with its color-swapped partner in StatsAggregator's pentanomial bookkeeping.
type Pairing struct {
	EngineA, EngineB string
	WhiteIsA         bool
	Opening          book.Opening
	Round            int // index of the opening within EngineA-vs-EngineB's own schedule
	OpeningIndex     int // book index, shared across every pair that drew this opening
}
