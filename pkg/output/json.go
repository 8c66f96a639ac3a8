package output

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/boutlab/bout/pkg/match"
	"github.com/boutlab/bout/pkg/stats"
)

// JSON persists the tournament document (engine list, per-match summaries and the full
// stats map) to JSONPath, and writes one PGN file per completed match to
// PGNDir/<match-id>.pgn. The tournament configuration is not included in the document.
type JSON struct {
	JSONPath string
	PGNDir   string

	mu        sync.Mutex
	completed []document
}

type document struct {
	White, Black string
	Termination  string
	Reason       string
	Plies        int
}

// NewJSON returns a JSON sink writing to jsonPath, with per-match PGN files under
// pgnDir (created if absent).
func NewJSON(jsonPath, pgnDir string) *JSON {
	return &JSON{JSONPath: jsonPath, PGNDir: pgnDir}
}

func (j *JSON) OnMatchStarted(match.MatchData) {}

func (j *JSON) OnMatchCompleted(data match.MatchData, _ stats.Entry) {
	j.mu.Lock()
	j.completed = append(j.completed, document{
		White:       data.Players[0].Name,
		Black:       data.Players[1].Name,
		Termination: data.Termination.String(),
		Reason:      data.Reason,
		Plies:       len(data.Moves),
	})
	j.mu.Unlock()

	if j.PGNDir != "" && data.PGN != "" {
		if err := j.writePGN(data); err != nil {
			// A PGN write failure must not abort the tournament; the JSON summary is
			// the source of truth, PGN is a convenience artifact.
			fmt.Fprintf(os.Stderr, "output: write pgn for match %v: %v\n", data.ID, err)
		}
	}
}

func (j *JSON) writePGN(data match.MatchData) error {
	if err := os.MkdirAll(j.PGNDir, 0o755); err != nil {
		return err
	}
	path := filepath.Join(j.PGNDir, fmt.Sprintf("%v.pgn", data.ID))
	return os.WriteFile(path, []byte(data.PGN), 0o644)
}

type tournamentDocument struct {
	Engines []string               `json:"engines"`
	Matches []document             `json:"matches"`
	Stats   map[string]stats.Entry `json:"stats"`
}

func (j *JSON) OnTournamentCompleted(report Report) {
	j.mu.Lock()
	defer j.mu.Unlock()

	statsByKey := make(map[string]stats.Entry, len(report.Stats))
	for k, v := range report.Stats {
		statsByKey[fmt.Sprintf("%v:%v", k.Lower, k.Higher)] = v
	}

	doc := tournamentDocument{
		Engines: report.Engines,
		Matches: j.completed,
		Stats:   statsByKey,
	}

	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "output: marshal tournament document: %v\n", err)
		return
	}
	if err := os.WriteFile(j.JSONPath, b, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "output: write %v: %v\n", j.JSONPath, err)
	}
}
