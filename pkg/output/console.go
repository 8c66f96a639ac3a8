package output

import (
	"context"
	"sort"

	"github.com/boutlab/bout/pkg/match"
	"github.com/boutlab/bout/pkg/stats"
	"github.com/seekerror/logw"
)

// Console logs one line per lifecycle event via logw, the way the teacher's
// pkg/engine/console driver renders progress: no buffering, no structured fields beyond
// what Sprintf needs.
type Console struct {
	ctx context.Context
}

// NewConsole returns a Console sink bound to ctx for logging.
func NewConsole(ctx context.Context) *Console {
	return &Console{ctx: ctx}
}

func (c *Console) OnMatchStarted(data match.MatchData) {
	logw.Infof(c.ctx, "match started: %v (white) vs %v (black), opening %v", data.Players[0].Name, data.Players[1].Name, data.OpeningFEN)
}

func (c *Console) OnMatchCompleted(data match.MatchData, entry stats.Entry) {
	logw.Infof(c.ctx, "match finished: %v vs %v, termination=%v reason=%q plies=%v duration=%v (tally %v-%v-%v)",
		data.Players[0].Name, data.Players[1].Name, data.Termination, data.Reason, len(data.Moves), data.Duration(),
		entry.WinsLower, entry.Draws, entry.WinsHigher)
}

func (c *Console) OnTournamentCompleted(report Report) {
	logw.Infof(c.ctx, "tournament complete: %v engines, %v pairs tracked", len(report.Engines), len(report.Stats))
	for _, key := range sortedKeys(report.Stats) {
		e := report.Stats[key]
		logw.Infof(c.ctx, "  %v vs %v: %v-%v-%v (pentanomial %v)", key.Lower, key.Higher, e.WinsLower, e.Draws, e.WinsHigher, e.Pentanomial)
	}
}

func sortedKeys(m map[stats.PairKey]stats.Entry) []stats.PairKey {
	keys := make([]stats.PairKey, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Lower != keys[j].Lower {
			return keys[i].Lower < keys[j].Lower
		}
		return keys[i].Higher < keys[j].Higher
	})
	return keys
}
