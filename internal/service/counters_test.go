package service

import (
	"context"
	"fmt"
	"testing"
	"wrestling-tracker/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecomputeFullRecord(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	a := env.createEntity(t, domain.TypeSuperstar, "A")
	b := env.createEntity(t, domain.TypeSuperstar, "B")
	c := env.createEntity(t, domain.TypeSuperstar, "C")
	d := env.createEntity(t, domain.TypeSuperstar, "D")
	p := env.createEntity(t, domain.TypeSuperstar, "P")
	team := env.createEntity(t, "team", "A&P")
	env.setAttr(t, team, "team_members", fmt.Sprintf("[%d,%d]", a, p))
	env.setAttr(t, a, "teams", fmt.Sprintf("[%d]", team))

	// Singles win for A.
	env.newMatch(t, fmt.Sprintf(`[{"participant":%d,"is_winner":true},{"participant":%d}]`, a, b))

	// Singles loss for A.
	env.newMatch(t, fmt.Sprintf(`[{"participant":%d},{"participant":%d,"is_winner":true}]`, a, b))

	// Tag win, attributed to A through the team.
	env.newMatch(t, fmt.Sprintf(`[{"participant":%d,"is_winner":true},{"participant":%d},{"participant":%d}]`, team, c, d))

	// Tag draw: four participants, no winners, drawn result.
	draw := env.newMatch(t, fmt.Sprintf(`[{"participant":%d},{"participant":%d},{"participant":%d},{"participant":%d}]`, a, p, c, d))
	env.setAttr(t, draw, domain.AttrMatchResult, "Draw")

	// A match A is not in must never count, even if the coarse scan finds it.
	env.newMatch(t, fmt.Sprintf(`[{"participant":%d,"is_winner":true},{"participant":%d}]`, b, c))

	done, err := env.counters.Recompute(ctx, a)
	require.NoError(t, err)
	require.True(t, done)

	// Plain counters hold singles results only; tag results live in tag_*.
	assert.Equal(t, 4, env.counterValue(t, a, "total_matches"))
	assert.Equal(t, 1, env.counterValue(t, a, "wins"))
	assert.Equal(t, 1, env.counterValue(t, a, "losses"))
	assert.Equal(t, 0, env.counterValue(t, a, "draws"))
	assert.Equal(t, 0, env.counterValue(t, a, "nocontests"))
	assert.Equal(t, 2, env.counterValue(t, a, "tag_matches"))
	assert.Equal(t, 1, env.counterValue(t, a, "tag_wins"))
	assert.Equal(t, 0, env.counterValue(t, a, "tag_losses"))
	assert.Equal(t, 1, env.counterValue(t, a, "tag_draws"))
}

func TestRecomputeSinglesAndTagPartition(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	a := env.createEntity(t, domain.TypeSuperstar, "A")
	b := env.createEntity(t, domain.TypeSuperstar, "B")
	c := env.createEntity(t, domain.TypeSuperstar, "C")
	d := env.createEntity(t, domain.TypeSuperstar, "D")
	partner := env.createEntity(t, domain.TypeSuperstar, "Partner")
	team := env.createEntity(t, "team", "A & Partner")
	env.setAttr(t, team, "team_members", fmt.Sprintf("[%d,%d]", a, partner))
	env.setAttr(t, a, "teams", fmt.Sprintf("[%d]", team))

	// Three singles wins.
	for i := 0; i < 3; i++ {
		env.newMatch(t, fmt.Sprintf(`[{"participant":%d,"is_winner":true},{"participant":%d}]`, a, b))
	}

	// One tag loss through the team.
	env.newMatch(t, fmt.Sprintf(`[{"participant":%d},{"participant":%d,"is_winner":true},{"participant":%d,"is_winner":true}]`, team, c, d))

	_, err := env.counters.Recompute(ctx, a)
	require.NoError(t, err)

	assert.Equal(t, 4, env.counterValue(t, a, "total_matches"))
	assert.Equal(t, 3, env.counterValue(t, a, "wins"))
	assert.Equal(t, 0, env.counterValue(t, a, "losses"))
	assert.Equal(t, 1, env.counterValue(t, a, "tag_matches"))
	assert.Equal(t, 0, env.counterValue(t, a, "tag_wins"))
	assert.Equal(t, 1, env.counterValue(t, a, "tag_losses"))
}

func TestRecomputeOverwritesStaleCounters(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	a := env.createEntity(t, domain.TypeSuperstar, "A")
	env.setAttr(t, a, "total_matches", "17")
	env.setAttr(t, a, "wins", "17")

	b := env.createEntity(t, domain.TypeSuperstar, "B")
	env.newMatch(t, fmt.Sprintf(`[{"participant":%d},{"participant":%d,"is_winner":true}]`, a, b))

	_, err := env.counters.Recompute(ctx, a)
	require.NoError(t, err)

	assert.Equal(t, 1, env.counterValue(t, a, "total_matches"))
	assert.Equal(t, 0, env.counterValue(t, a, "wins"))
	assert.Equal(t, 1, env.counterValue(t, a, "losses"))
}

func TestRecomputeSkipsMalformedMatch(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	a := env.createEntity(t, domain.TypeSuperstar, "A")
	b := env.createEntity(t, domain.TypeSuperstar, "B")

	// A corrupt repeater value resolves to nothing; the match simply does
	// not count rather than aborting the run.
	corrupt := env.newMatch(t, "")
	env.setAttr(t, corrupt, domain.AttrParticipantsDetails, fmt.Sprintf(`{{not json %d`, a))

	env.newMatch(t, fmt.Sprintf(`[{"participant":%d,"is_winner":true},{"participant":%d}]`, a, b))

	done, err := env.counters.Recompute(ctx, a)
	require.NoError(t, err)
	require.True(t, done)
	assert.Equal(t, 1, env.counterValue(t, a, "total_matches"))
	assert.Equal(t, 1, env.counterValue(t, a, "wins"))
}

func TestRecomputeNoContest(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	a := env.createEntity(t, domain.TypeSuperstar, "A")
	b := env.createEntity(t, domain.TypeSuperstar, "B")
	match := env.newMatch(t, fmt.Sprintf(`[{"participant":%d},{"participant":%d}]`, a, b))
	env.setAttr(t, match, domain.AttrMatchResult, "No Contest")

	_, err := env.counters.Recompute(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, 1, env.counterValue(t, a, "total_matches"))
	assert.Equal(t, 1, env.counterValue(t, a, "nocontests"))
	assert.Equal(t, 0, env.counterValue(t, a, "tag_nocontests"))
}
