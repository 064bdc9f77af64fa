package dartscore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGameThrowSubtracts(t *testing.T) {

	g := NewGame(301)
	out := g.Apply([]string{"T15"}, 45)

	assert.False(t, out.Bust)
	assert.False(t, out.Completed)
	assert.Equal(t, 256, g.Remaining)
	require.Len(t, g.Throws, 1)
	assert.Equal(t, "T15 scored 45", g.Throws[0])
	assert.Equal(t, "Score: 256\nLast throw: T15 scored 45", out.Text)
}

func TestGameTextShowsOnlyLastThrow(t *testing.T) {

	g := NewGame(501)
	g.Apply([]string{"T20", "T20", "S1"}, 121)
	out := g.Apply([]string{"S5", "miss"}, 5)

	assert.Equal(t, 375, g.Remaining)
	assert.Equal(t, "S5, miss scored 5", g.LastThrow)
	assert.Equal(t, "Score: 375\nLast throw: S5, miss scored 5", out.Text)
	assert.Equal(t, []string{"T20, T20, S1 scored 121", "S5, miss scored 5"}, g.Throws)
}

func TestGameBust(t *testing.T) {

	g := NewGame(301)
	g.Remaining = 40

	out := g.Apply([]string{"T20"}, 60)

	assert.True(t, out.Bust)
	assert.Contains(t, out.Text, "Bust")
	assert.Equal(t, "Bust! Throw not counted. Score remains: 40", out.Text)
	assert.Equal(t, 40, g.Remaining)
	assert.Empty(t, g.Throws)
}

func TestGameCompletion(t *testing.T) {

	g := NewGame(301)
	g.Remaining = 40

	out := g.Apply([]string{"D20"}, 40)

	assert.True(t, out.Completed)
	assert.Equal(t, 0, g.Remaining)
	assert.Contains(t, out.Text, "Congratulations, you finished the game!")

	// mode is kept after completion
	assert.Equal(t, 301, g.Target)
	assert.False(t, g.FreePlay())
}

func TestGameFreePlay(t *testing.T) {

	g := NewGame(0)
	out := g.Apply([]string{"T20", "S1"}, 61)

	assert.True(t, g.FreePlay())
	assert.Equal(t, "Score: 61 (T20, S1)", out.Text)
	assert.Empty(t, g.Throws)
	assert.Equal(t, 0, g.Remaining)
}

func TestGameResetAndSnapshot(t *testing.T) {

	g := NewGame(301)
	g.Apply([]string{"T20"}, 60)

	snap := g.Snapshot()
	g.Reset()

	assert.Equal(t, 301, g.Remaining)
	assert.Empty(t, g.Throws)
	assert.Empty(t, g.LastThrow)

	// snapshot is unaffected by later changes
	assert.Equal(t, 241, snap.Remaining)
	assert.Len(t, snap.Throws, 1)

	assert.Equal(t, 0, NewGame(-5).Target)
}
