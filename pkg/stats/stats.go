// Package stats aggregates match outcomes into a thread-safe per-engine-pair win/draw/
// loss tally plus a pentanomial histogram over game pairs (two games from the same
// opening, played with colors swapped).
package stats

import (
	"sort"
	"sync"

	"github.com/puzpuzpuz/xsync/v3"
)

// GameResult is one match's result from the perspective of a single named engine.
type GameResult int

const (
	Loss GameResult = iota
	Draw
	Win
)

// PairKey identifies an unordered pair of engines, ordered lexicographically so the same
// pair always hashes to the same key regardless of argument order.
type PairKey struct {
	Lower, Higher string
}

// NewPairKey returns the PairKey for a and b in either order.
func NewPairKey(a, b string) PairKey {
	if a <= b {
		return PairKey{Lower: a, Higher: b}
	}
	return PairKey{Lower: b, Higher: a}
}

// Entry is the running tally for one engine pair, always from Lower's perspective.
type Entry struct {
	WinsLower  int
	Draws      int
	WinsHigher int
	// Pentanomial[i] counts completed game pairs whose combined score (from Lower's
	// perspective, 1 per win, 0.5 per draw) fell in bucket i: 0 -> LL, 1 -> LD/DL,
	// 2 -> LW/WL/DD, 3 -> WD/DW, 4 -> WW.
	Pentanomial [5]int
}

func (e Entry) Total() int {
	return e.WinsLower + e.Draws + e.WinsHigher
}

type pairState struct {
	mu      sync.Mutex
	entry   Entry
	pending map[pairID]GameResult // first game of a pair, keyed by (round, opening), awaiting its partner
}

type pairID struct {
	round, opening int
}

// Aggregator is the thread-safe StatsAggregator. Zero value is not usable; use New.
type Aggregator struct {
	pairs *xsync.MapOf[PairKey, *pairState]
}

// New returns an empty Aggregator.
func New() *Aggregator {
	return &Aggregator{pairs: xsync.NewMapOf[PairKey, *pairState]()}
}

// Record feeds one completed match's result into the pair identified by (engineA,
// engineB), attributing lowerResult to whichever of the two sorts lower. round and
// opening identify the game pair this match belongs to (§3: games are matched by
// (round_index, opening_index); the first game records provisionally, the second
// finalizes the pair and increments one pentanomial bucket).
func (a *Aggregator) Record(engineA, engineB string, lowerResult GameResult, round, opening int) {
	key := NewPairKey(engineA, engineB)
	state, _ := a.pairs.LoadOrCompute(key, func() *pairState {
		return &pairState{pending: map[pairID]GameResult{}}
	})

	state.mu.Lock()
	defer state.mu.Unlock()

	switch lowerResult {
	case Win:
		state.entry.WinsLower++
	case Draw:
		state.entry.Draws++
	case Loss:
		state.entry.WinsHigher++
	}

	id := pairID{round: round, opening: opening}
	if first, ok := state.pending[id]; ok {
		delete(state.pending, id)
		bucket := pentanomialBucket(first, lowerResult)
		state.entry.Pentanomial[bucket]++
		return
	}
	state.pending[id] = lowerResult
}

func pentanomialBucket(a, b GameResult) int {
	score := func(r GameResult) float64 {
		switch r {
		case Win:
			return 1
		case Draw:
			return 0.5
		default:
			return 0
		}
	}
	total := score(a) + score(b) // in {0, 0.5, 1, 1.5, 2}
	return int(total * 2)
}

// Entry returns a snapshot of the running tally for the pair (engineA, engineB), always
// normalized so Lower/Higher match the canonical PairKey ordering.
func (a *Aggregator) Entry(engineA, engineB string) Entry {
	state, ok := a.pairs.Load(NewPairKey(engineA, engineB))
	if !ok {
		return Entry{}
	}
	state.mu.Lock()
	defer state.mu.Unlock()
	return state.entry
}

// Snapshot returns every pair's entry as a map keyed by pair; use Keys for a sorted
// iteration order.
func (a *Aggregator) Snapshot() map[PairKey]Entry {
	out := make(map[PairKey]Entry)
	a.pairs.Range(func(key PairKey, state *pairState) bool {
		state.mu.Lock()
		out[key] = state.entry
		state.mu.Unlock()
		return true
	})
	return out
}

// Keys returns every known pair key, sorted for deterministic iteration (e.g. JSON
// output ordering).
func (a *Aggregator) Keys() []PairKey {
	var keys []PairKey
	a.pairs.Range(func(key PairKey, _ *pairState) bool {
		keys = append(keys, key)
		return true
	})
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Lower != keys[j].Lower {
			return keys[i].Lower < keys[j].Lower
		}
		return keys[i].Higher < keys[j].Higher
	})
	return keys
}
