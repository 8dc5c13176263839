package service

import (
	"context"
	"fmt"
	"testing"
	"wrestling-tracker/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandFromMembershipAttr(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	team := env.createEntity(t, "team", "The Pair")
	env.setAttr(t, team, "team_members", "[101,102,101]")

	members, err := env.teams.Expand(ctx, team)
	require.NoError(t, err)
	assert.Equal(t, []int64{101, 102}, members)
}

func TestExpandFromChildEntities(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	team := env.createEntity(t, "stable", "The Stable")
	var want []int64
	for i := 0; i < 3; i++ {
		id, err := env.repo.Create(ctx, &domain.Entity{Type: domain.TypeSuperstar, Title: fmt.Sprintf("Member %d", i), ParentID: team})
		require.NoError(t, err)
		want = append(want, id)
	}

	members, err := env.teams.Expand(ctx, team)
	require.NoError(t, err)
	assert.ElementsMatch(t, want, members)
}

func TestExpandParticipantKeepsUnresolvableTeam(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	team := env.createEntity(t, "team", "Mystery Partners")

	ids, err := env.teams.ExpandParticipant(ctx, team)
	require.NoError(t, err)
	assert.Equal(t, []int64{team}, ids)
}

func TestExpandParticipantSuperstarIsItself(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	superstar := env.createEntity(t, domain.TypeSuperstar, "Solo")
	ids, err := env.teams.ExpandParticipant(ctx, superstar)
	require.NoError(t, err)
	assert.Equal(t, []int64{superstar}, ids)
}

func TestTeamsForUnionsAllKeys(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	superstar := env.createEntity(t, domain.TypeSuperstar, "Joiner")
	env.setAttr(t, superstar, "teams", "[5]")
	env.setAttr(t, superstar, "member_of", "5,6")
	env.setAttr(t, superstar, "team", "7")

	teams, err := env.teams.TeamsFor(ctx, superstar)
	require.NoError(t, err)
	assert.Equal(t, []int64{5, 6, 7}, teams)
}

func TestExpandRowsFlattensAndDedupes(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	a := env.createEntity(t, domain.TypeSuperstar, "A")
	b := env.createEntity(t, domain.TypeSuperstar, "B")
	team := env.createEntity(t, "team", "AB")
	env.setAttr(t, team, "members", fmt.Sprintf("[%d,%d]", a, b))

	rows := []domain.ParticipantRow{
		{Participant: team, IsWinner: true},
		{Participant: a},
	}
	expanded, err := env.teams.ExpandRows(ctx, rows)
	require.NoError(t, err)
	assert.Equal(t, []int64{a, b}, expanded)
}
