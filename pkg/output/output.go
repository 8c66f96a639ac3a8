// Package output implements the tournament's persisted-state and progress-reporting
// sinks: a human-readable console renderer (grounded on the teacher's pkg/engine/console
// line-oriented style) and a JSON+PGN writer for the final tournament document.
package output

import (
	"github.com/boutlab/bout/pkg/match"
	"github.com/boutlab/bout/pkg/stats"
)

// Report is the final tournament summary handed to OnTournamentCompleted.
type Report struct {
	Engines []string
	Stats   map[stats.PairKey]stats.Entry
}

// Sink receives tournament progress and final-state callbacks. Implementations must not
// block the calling worker for long: Console logs and returns; JSON writes each match's
// PGN file as it completes and buffers the match summaries in memory, writing the
// tournament document once, in OnTournamentCompleted.
type Sink interface {
	OnMatchStarted(data match.MatchData)
	OnMatchCompleted(data match.MatchData, entry stats.Entry)
	OnTournamentCompleted(report Report)
}
