package dartscore

import (
	"fmt"
	"strings"
)

// Game is the score keeping of a count down game, or free play when Target
// is zero
type Game struct {
	// Target is the starting score, 0 for free play
	Target int `json:"target"`
	// Remaining is the score left to reach zero
	Remaining int `json:"remaining"`
	// LastThrow is the description of the most recent counted throw
	LastThrow string `json:"last_throw,omitempty"`
	// Throws holds every counted throw description in order
	Throws []string `json:"throws,omitempty"`
}

// Outcome is the result of applying a throw to a game
type Outcome struct {
	// Text is the status message for display
	Text string
	// Labels are the dart labels of the throw
	Labels []string
	// Total is the summed value of the throw
	Total int
	// Bust is set when the throw exceeded the remaining score
	Bust bool
	// Completed is set when the throw brought the remaining score to zero
	Completed bool
}

// NewGame returns a game counting down from target, or free play when
// target is zero
func NewGame(target int) *Game {

	if target < 0 {
		target = 0
	}

	return &Game{
		Target:    target,
		Remaining: target,
	}
}

// FreePlay reports if the game has no target score
func (g *Game) FreePlay() bool {
	return g.Target == 0
}

// Apply records a throw and returns the outcome.  In free play the throw is
// only reported.  A throw scoring more than the remaining score is a bust and
// leaves the game unchanged.
func (g *Game) Apply(labels []string, total int) Outcome {

	out := Outcome{
		Labels: append([]string(nil), labels...),
		Total:  total,
	}

	joined := strings.Join(labels, ", ")

	if g.FreePlay() {
		out.Text = fmt.Sprintf("Score: %d (%s)", total, joined)
		return out
	}

	if total > g.Remaining {
		out.Bust = true
		out.Text = fmt.Sprintf("Bust! Throw not counted. Score remains: %d", g.Remaining)
		return out
	}

	g.Remaining -= total
	g.LastThrow = fmt.Sprintf("%s scored %d", joined, total)
	g.Throws = append(g.Throws, g.LastThrow)

	out.Text = fmt.Sprintf("Score: %d\nLast throw: %s", g.Remaining, g.LastThrow)

	if g.Remaining == 0 {
		out.Completed = true
		out.Text += "\nCongratulations, you finished the game!"
	}

	return out
}

// Reset clears the throw history and restores the starting score
func (g *Game) Reset() {
	g.Remaining = g.Target
	g.LastThrow = ""
	g.Throws = nil
}

// Snapshot returns a deep copy of the game
func (g *Game) Snapshot() Game {
	cp := *g
	cp.Throws = append([]string(nil), g.Throws...)
	return cp
}
