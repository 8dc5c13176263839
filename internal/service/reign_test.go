package service

import (
	"context"
	"fmt"
	"testing"
	"wrestling-tracker/internal/domain"
	"wrestling-tracker/internal/events"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (e *testEnv) newReign(t *testing.T, championship int64, champions []int64, start, end string) int64 {
	t.Helper()
	id := e.createEntity(t, domain.TypeReign, "Reign")
	e.setAttr(t, id, domain.AttrReignTitle, fmt.Sprintf("%d", championship))
	e.setAttr(t, id, domain.AttrReignChampions, domain.EncodeIDList(champions))
	if start != "" {
		e.setAttr(t, id, domain.AttrReignStartDate, start)
	}
	if end != "" {
		e.setAttr(t, id, domain.AttrReignEndDate, end)
	}
	return id
}

func TestApplyCreditsChampions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	champ := env.createEntity(t, domain.TypeChampionship, "World Title")
	x := env.createEntity(t, domain.TypeSuperstar, "X")
	reign := env.newReign(t, champ, []int64{x}, "2024-01-01", "")

	var emitted []events.Event
	env.notifier.Subscribe(events.ReignApplied, func(ev events.Event) { emitted = append(emitted, ev) })

	result, err := env.reigns.Apply(ctx, reign, ApplyOptions{Manual: true})
	require.NoError(t, err)
	require.Equal(t, domain.StatusOK, result.Status)
	assert.Equal(t, []int64{x}, result.AppliedChampions)

	assert.Equal(t, 1, env.counterValue(t, x, domain.AttrTitleReignCount))
	assert.Equal(t, fmt.Sprintf("[%d]", reign), env.attr(t, x, domain.AttrCurrentTitles))
	assert.Equal(t, "1", env.attr(t, reign, domain.AttrReignIsCurrent))
	assert.Equal(t, "1", env.attr(t, reign, domain.AttrReignManual))
	assert.NotEmpty(t, env.attr(t, reign, domain.AttrReignSnapshot))
	require.Len(t, emitted, 1)
}

func TestApplyIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	champ := env.createEntity(t, domain.TypeChampionship, "Title")
	x := env.createEntity(t, domain.TypeSuperstar, "X")
	reign := env.newReign(t, champ, []int64{x}, "2024-01-01", "")

	for i := 0; i < 3; i++ {
		result, err := env.reigns.Apply(ctx, reign, ApplyOptions{})
		require.NoError(t, err)
		require.Equal(t, domain.StatusOK, result.Status)
	}

	assert.Equal(t, 1, env.counterValue(t, x, domain.AttrTitleReignCount))
	assert.Equal(t, fmt.Sprintf("[%d]", reign), env.attr(t, x, domain.AttrCurrentTitles))
}

func TestApplyClosesRivalReign(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	champ := env.createEntity(t, domain.TypeChampionship, "Title")
	old := env.createEntity(t, domain.TypeSuperstar, "Old Champ")
	new_ := env.createEntity(t, domain.TypeSuperstar, "New Champ")

	oldReign := env.newReign(t, champ, []int64{old}, "2023-06-01", "")
	_, err := env.reigns.Apply(ctx, oldReign, ApplyOptions{})
	require.NoError(t, err)
	require.Equal(t, fmt.Sprintf("[%d]", oldReign), env.attr(t, old, domain.AttrCurrentTitles))

	newReign := env.newReign(t, champ, []int64{new_}, "2024-02-02", "")
	result, err := env.reigns.Apply(ctx, newReign, ApplyOptions{})
	require.NoError(t, err)
	require.Equal(t, domain.StatusOK, result.Status)
	assert.Equal(t, []int64{oldReign}, result.ClosedReignIDs)

	assert.Equal(t, "0", env.attr(t, oldReign, domain.AttrReignIsCurrent))
	assert.Equal(t, "2024-02-02", env.attr(t, oldReign, domain.AttrReignEndDate))
	assert.Equal(t, "[]", env.attr(t, old, domain.AttrCurrentTitles))
	assert.Equal(t, fmt.Sprintf("[%d]", newReign), env.attr(t, new_, domain.AttrCurrentTitles))

	// The closed reign keeps its credit: one reign each.
	assert.Equal(t, 1, env.counterValue(t, old, domain.AttrTitleReignCount))
	assert.Equal(t, 1, env.counterValue(t, new_, domain.AttrTitleReignCount))
}

func TestReverseRestoresPriorState(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	champ := env.createEntity(t, domain.TypeChampionship, "Title")
	old := env.createEntity(t, domain.TypeSuperstar, "Old Champ")
	new_ := env.createEntity(t, domain.TypeSuperstar, "New Champ")

	oldReign := env.newReign(t, champ, []int64{old}, "2023-06-01", "")
	_, err := env.reigns.Apply(ctx, oldReign, ApplyOptions{})
	require.NoError(t, err)

	newReign := env.newReign(t, champ, []int64{new_}, "2024-02-02", "")
	_, err = env.reigns.Apply(ctx, newReign, ApplyOptions{})
	require.NoError(t, err)

	require.NoError(t, env.reigns.ReverseSnapshotEffects(ctx, newReign))

	// The new champion's credit and title are gone, the old reign is
	// current again.
	assert.Equal(t, 0, env.counterValue(t, new_, domain.AttrTitleReignCount))
	assert.Equal(t, "[]", env.attr(t, new_, domain.AttrCurrentTitles))
	assert.Equal(t, "1", env.attr(t, oldReign, domain.AttrReignIsCurrent))
	assert.Empty(t, env.attr(t, oldReign, domain.AttrReignEndDate))
	assert.Equal(t, fmt.Sprintf("[%d]", oldReign), env.attr(t, old, domain.AttrCurrentTitles))
	assert.Empty(t, env.attr(t, newReign, domain.AttrReignSnapshot))

	// Reversing twice is harmless.
	require.NoError(t, env.reigns.ReverseSnapshotEffects(ctx, newReign))
	assert.Equal(t, 0, env.counterValue(t, new_, domain.AttrTitleReignCount))
}

func TestApplyLockContention(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	champ := env.createEntity(t, domain.TypeChampionship, "Title")
	x := env.createEntity(t, domain.TypeSuperstar, "X")
	reign := env.newReign(t, champ, []int64{x}, "2024-01-01", "")

	release, ok := env.locks.TryAcquire(fmt.Sprintf("reign:%d", reign))
	require.True(t, ok)
	defer release()

	result, err := env.reigns.Apply(ctx, reign, ApplyOptions{})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusError, result.Status)
	assert.Equal(t, "Lock active", result.Message)
	assert.Equal(t, 0, env.counterValue(t, x, domain.AttrTitleReignCount))
}

func TestApplyWithLegacyKeys(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	champ := env.createEntity(t, domain.TypeChampionship, "Title")
	x := env.createEntity(t, domain.TypeSuperstar, "X")
	reign := env.createEntity(t, domain.TypeReign, "Legacy Reign")
	env.setAttr(t, reign, domain.AttrReignTitleLegacy, fmt.Sprintf("%d", champ))
	env.setAttr(t, reign, domain.AttrReignChampsLegacy, fmt.Sprintf("a:1:{i:0;i:%d;}", x))
	env.setAttr(t, reign, domain.AttrReignStartLegacy, "2020-05-05")

	result, err := env.reigns.Apply(ctx, reign, ApplyOptions{})
	require.NoError(t, err)
	require.Equal(t, domain.StatusOK, result.Status)

	// Canonical keys now hold the resolved values.
	assert.Equal(t, fmt.Sprintf("%d", champ), env.attr(t, reign, domain.AttrReignTitle))
	assert.Equal(t, fmt.Sprintf("[%d]", x), env.attr(t, reign, domain.AttrReignChampions))
	assert.Equal(t, "2020-05-05", env.attr(t, reign, domain.AttrReignStartDate))
	assert.Equal(t, 1, env.counterValue(t, x, domain.AttrTitleReignCount))
}

func TestApplyWithoutChampions(t *testing.T) {
	env := newTestEnv(t)

	reign := env.createEntity(t, domain.TypeReign, "Empty")
	result, err := env.reigns.Apply(context.Background(), reign, ApplyOptions{})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusError, result.Status)
}

func TestReverseAndCloseForMatch(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	champ := env.createEntity(t, domain.TypeChampionship, "Title")
	x := env.createEntity(t, domain.TypeSuperstar, "X")
	y := env.createEntity(t, domain.TypeSuperstar, "Y")
	match := env.newMatch(t, fmt.Sprintf(`[{"participant":%d,"is_winner":true},{"participant":%d}]`, x, y))

	reign := env.newReign(t, champ, []int64{x}, "2024-01-01", "")
	env.setAttr(t, reign, domain.AttrReignWonMatch, fmt.Sprintf("%d", match))
	env.setAttr(t, match, domain.AttrReignCreated, fmt.Sprintf("%d", reign))
	_, err := env.reigns.Apply(ctx, reign, ApplyOptions{})
	require.NoError(t, err)

	reversed, err := env.reigns.ReverseAndCloseForMatch(ctx, match, "winners changed")
	require.NoError(t, err)
	require.True(t, reversed)

	assert.Equal(t, 0, env.counterValue(t, x, domain.AttrTitleReignCount))
	assert.Equal(t, "[]", env.attr(t, x, domain.AttrCurrentTitles))

	gone, err := env.repo.Get(ctx, reign)
	require.NoError(t, err)
	assert.Nil(t, gone)

	// Nothing left to reverse.
	reversed, err = env.reigns.ReverseAndCloseForMatch(ctx, match, "again")
	require.NoError(t, err)
	assert.False(t, reversed)
}

func TestReverseAndCloseDeleteFailureLeavesEndedDraft(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	champ := env.createEntity(t, domain.TypeChampionship, "Title")
	x := env.createEntity(t, domain.TypeSuperstar, "X")
	match := env.newMatch(t, fmt.Sprintf(`[{"participant":%d,"is_winner":true}]`, x))

	reign := env.newReign(t, champ, []int64{x}, "2024-01-01", "")
	env.setAttr(t, reign, domain.AttrReignWonMatch, fmt.Sprintf("%d", match))
	env.setAttr(t, match, domain.AttrReignCreated, fmt.Sprintf("%d", reign))
	_, err := env.reigns.Apply(ctx, reign, ApplyOptions{})
	require.NoError(t, err)

	// Block the delete so the draft-demotion fallback runs.
	_, err = env.db.Exec(fmt.Sprintf(
		`CREATE TRIGGER block_reign_delete BEFORE DELETE ON entities
		 WHEN OLD.id = %d BEGIN SELECT RAISE(ABORT, 'blocked'); END`, reign))
	require.NoError(t, err)

	reversed, err := env.reigns.ReverseAndCloseForMatch(ctx, match, "winners changed")
	require.NoError(t, err)
	require.True(t, reversed)

	// The surviving draft is ended, so it can never read as current again.
	entity, err := env.repo.Get(ctx, reign)
	require.NoError(t, err)
	require.NotNil(t, entity)
	assert.Equal(t, domain.StatusDraft, entity.Status)
	assert.Equal(t, "0", env.attr(t, reign, domain.AttrReignIsCurrent))
	assert.NotEmpty(t, env.attr(t, reign, domain.AttrReignEndDate))
	assert.Equal(t, fmt.Sprintf("%d", match), env.attr(t, reign, domain.AttrReignEndedByMatch))

	current, err := env.reigns.currentReignsOf(ctx, champ)
	require.NoError(t, err)
	assert.Empty(t, current)
}

func TestFindReignForMatchBySearch(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	champ := env.createEntity(t, domain.TypeChampionship, "Title")
	x := env.createEntity(t, domain.TypeSuperstar, "X")
	match := env.newMatch(t, "")

	// No back reference on the match; the reign side still points at it.
	reign := env.newReign(t, champ, []int64{x}, "2024-01-01", "")
	env.setAttr(t, reign, domain.AttrReignWonMatch, fmt.Sprintf("%d", match))

	found, err := env.reigns.FindReignForMatch(ctx, match)
	require.NoError(t, err)
	assert.Equal(t, reign, found)
}
