// Package sprt implements an online Sequential Probability Ratio Test over (win, draw,
// loss) counts, the early-stopping rule for engine-vs-engine elo comparisons.
package sprt

import "math"

// Decision is the current verdict of a Decider.
type Decision int

const (
	Continue Decision = iota
	AcceptH0          // elo >= elo1
	AcceptH1          // elo <= elo0
)

func (d Decision) String() string {
	switch d {
	case Continue:
		return "continue"
	case AcceptH0:
		return "h0"
	case AcceptH1:
		return "h1"
	default:
		return "?"
	}
}

// Decider holds the test parameters and derived bounds. Stateless across calls other
// than its fixed configuration; callers pass the running (W, D, L) counts each time.
type Decider struct {
	alpha, beta      float64
	elo0, elo1       float64
	lowerLn, upperLn float64
}

// NewDecider returns a Decider for the given significance levels and elo hypotheses.
// Panics if alpha == 0, beta == 0, or elo0 >= elo1 (configuration error, caught before
// any match starts).
func NewDecider(alpha, beta, elo0, elo1 float64) *Decider {
	if alpha == 0 || beta == 0 || elo0 >= elo1 {
		panic("sprt: invalid parameters")
	}
	return &Decider{
		alpha: alpha, beta: beta, elo0: elo0, elo1: elo1,
		lowerLn: math.Log(beta / (1 - alpha)),
		upperLn: math.Log((1 - beta) / alpha),
	}
}

// score converts an elo difference to a win expectation via the logistic curve.
func score(elo float64) float64 {
	return 1 / (1 + math.Pow(10, -elo/400))
}

// LLR computes the log-likelihood ratio for the running counts. Returns 0 if any of W,
// D, L is zero (too little data to say anything).
func (d *Decider) LLR(w, draws, l int) float64 {
	if w == 0 || draws == 0 || l == 0 {
		return 0
	}

	n := float64(w + draws + l)
	a := (float64(w) + float64(draws)/2) / n
	b := (float64(w) + float64(draws)/4) / n
	variance := b - a*a
	varS := variance / n

	s0, s1 := score(d.elo0), score(d.elo1)
	return (s1 - s0) * (2*a - s0 - s1) / varS / 2
}

// Decide returns the current decision for the running counts.
func (d *Decider) Decide(w, draws, l int) Decision {
	llr := d.LLR(w, draws, l)
	switch {
	case llr > d.upperLn:
		return AcceptH0
	case llr < d.lowerLn:
		return AcceptH1
	default:
		return Continue
	}
}

// Bounds returns the natural-log lower and upper decision bounds.
func (d *Decider) Bounds() (lower, upper float64) {
	return d.lowerLn, d.upperLn
}
