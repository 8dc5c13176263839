package repository

import (
	"context"
	"database/sql"
	"testing"
	"wrestling-tracker/internal/database"
	"wrestling-tracker/internal/domain"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T) *EntityRepository {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec("PRAGMA foreign_keys = ON")
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db, zerolog.Nop()))

	return NewEntityRepository(db, zerolog.Nop())
}

func TestEntityCRUD(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	id, err := repo.Create(ctx, &domain.Entity{Type: domain.TypeSuperstar, Title: "Someone"})
	require.NoError(t, err)
	require.NotZero(t, id)

	e, err := repo.Get(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, e)
	assert.Equal(t, "Someone", e.Title)
	assert.Equal(t, domain.StatusPublish, e.Status)

	require.NoError(t, repo.SetStatus(ctx, id, domain.StatusDraft))
	e, err = repo.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDraft, e.Status)

	require.NoError(t, repo.Delete(ctx, id))
	e, err = repo.Get(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, e)
}

func TestDeleteCascadesAttributes(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	id, err := repo.Create(ctx, &domain.Entity{Type: domain.TypeMatch})
	require.NoError(t, err)
	require.NoError(t, repo.SetAttr(ctx, id, "k", "v"))
	require.NoError(t, repo.Delete(ctx, id))

	id2, err := repo.Create(ctx, &domain.Entity{Type: domain.TypeMatch})
	require.NoError(t, err)
	if id2 == id {
		v, err := repo.Attr(ctx, id2, "k")
		require.NoError(t, err)
		assert.Empty(t, v)
	}
}

func TestAttrUpsertAndHasAttr(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	id, err := repo.Create(ctx, &domain.Entity{Type: domain.TypeMatch})
	require.NoError(t, err)

	has, err := repo.HasAttr(ctx, id, "k")
	require.NoError(t, err)
	assert.False(t, has)

	require.NoError(t, repo.SetAttr(ctx, id, "k", ""))
	has, err = repo.HasAttr(ctx, id, "k")
	require.NoError(t, err)
	assert.True(t, has, "present-but-empty must be distinguishable from missing")

	require.NoError(t, repo.SetAttr(ctx, id, "k", "v2"))
	v, err := repo.Attr(ctx, id, "k")
	require.NoError(t, err)
	assert.Equal(t, "v2", v)
}

func TestFindIDsByAttrs(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	newReign := func(status, champ string) int64 {
		id, err := repo.Create(ctx, &domain.Entity{Type: domain.TypeReign, Status: status})
		require.NoError(t, err)
		require.NoError(t, repo.SetAttr(ctx, id, "wf_reign_title", champ))
		return id
	}
	published := newReign(domain.StatusPublish, "9")
	drafted := newReign(domain.StatusDraft, "9")
	newReign(domain.StatusPublish, "8")

	ids, err := repo.FindIDsByAttrs(ctx, domain.TypeReign, []AttrCondition{{Key: "wf_reign_title", Value: "9"}})
	require.NoError(t, err)
	assert.Equal(t, []int64{published}, ids)

	ids, err = repo.FindIDsByAttrs(ctx, domain.TypeReign, []AttrCondition{{Key: "wf_reign_title", Value: "9"}},
		domain.StatusPublish, domain.StatusDraft)
	require.NoError(t, err)
	assert.Equal(t, []int64{published, drafted}, ids)
}

func TestSearchIDsByAttrLike(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	m1, err := repo.Create(ctx, &domain.Entity{Type: domain.TypeMatch})
	require.NoError(t, err)
	require.NoError(t, repo.SetAttr(ctx, m1, "match_participants", "[77,88]"))

	m2, err := repo.Create(ctx, &domain.Entity{Type: domain.TypeMatch})
	require.NoError(t, err)
	require.NoError(t, repo.SetAttr(ctx, m2, "match_participants", "[99]"))

	trashed, err := repo.Create(ctx, &domain.Entity{Type: domain.TypeMatch, Status: domain.StatusTrash})
	require.NoError(t, err)
	require.NoError(t, repo.SetAttr(ctx, trashed, "match_participants", "[77]"))

	ids, err := repo.SearchIDsByAttrLike(ctx, domain.TypeMatch, []string{"match_participants"}, []string{"%77%"}, 100)
	require.NoError(t, err)
	assert.Equal(t, []int64{m1}, ids)
}

func TestTypedAttrHelpers(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	id, err := repo.Create(ctx, &domain.Entity{Type: domain.TypeMatch})
	require.NoError(t, err)

	require.NoError(t, repo.SetAttr(ctx, id, "ref", `{"ID":12}`))
	ref, err := repo.AttrID(ctx, id, "ref")
	require.NoError(t, err)
	assert.Equal(t, int64(12), ref)

	require.NoError(t, repo.SetAttrIDList(ctx, id, "list", []int64{3, 3, 4}))
	list, err := repo.AttrIDList(ctx, id, "list")
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 4}, list)

	require.NoError(t, repo.SetAttr(ctx, id, "flag", "yes"))
	flag, err := repo.AttrBool(ctx, id, "flag")
	require.NoError(t, err)
	assert.True(t, flag)
}

func TestTerms(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	id, err := repo.Create(ctx, &domain.Entity{Type: domain.TypeMatch})
	require.NoError(t, err)

	require.NoError(t, repo.SetTerm(ctx, id, "match_type", "Tag Team", "tag-team"))
	require.NoError(t, repo.SetTerm(ctx, id, "match_type", "Tag Team Match", "tag-team"))

	terms, err := repo.Terms(ctx, id, "match_type")
	require.NoError(t, err)
	require.Len(t, terms, 1)
	assert.Equal(t, "Tag Team Match", terms[0].Name)
	assert.Equal(t, "tag-team", terms[0].Slug)
}
