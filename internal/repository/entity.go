package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"
	"wrestling-tracker/internal/domain"

	"github.com/rs/zerolog"
)

// EntityRepository is the generic attribute store the whole engine runs on:
// typed entities (posts) with string-valued attribute bags and taxonomy
// terms. It is the core's only I/O dependency.
type EntityRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewEntityRepository(sqlDB *sql.DB, logger zerolog.Logger) *EntityRepository {
	return &EntityRepository{
		db:     sqlDB,
		logger: logger,
	}
}

func (r *EntityRepository) Create(ctx context.Context, e *domain.Entity) (int64, error) {
	if e.Status == "" {
		e.Status = domain.StatusPublish
	}
	now := time.Now()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO entities (entity_type, title, status, parent_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		e.Type, e.Title, e.Status, e.ParentID, e.CreatedAt, now)
	if err != nil {
		return 0, fmt.Errorf("failed to create %s entity: %w", e.Type, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read new entity id: %w", err)
	}
	e.ID = id
	return id, nil
}

func (r *EntityRepository) Get(ctx context.Context, id int64) (*domain.Entity, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, entity_type, title, status, parent_id, created_at, updated_at
		 FROM entities WHERE id = ?`, id)

	var e domain.Entity
	err := row.Scan(&e.ID, &e.Type, &e.Title, &e.Status, &e.ParentID, &e.CreatedAt, &e.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load entity %d: %w", id, err)
	}
	return &e, nil
}

// EntityType returns the type slug of an entity, or "" when it does not exist.
func (r *EntityRepository) EntityType(ctx context.Context, id int64) (string, error) {
	var t string
	err := r.db.QueryRowContext(ctx, `SELECT entity_type FROM entities WHERE id = ?`, id).Scan(&t)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read entity type of %d: %w", id, err)
	}
	return t, nil
}

func (r *EntityRepository) SetStatus(ctx context.Context, id int64, status string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE entities SET status = ?, updated_at = ? WHERE id = ?`, status, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to set status of entity %d: %w", id, err)
	}
	return nil
}

// Delete permanently removes an entity with its attributes and terms.
func (r *EntityRepository) Delete(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM entities WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete entity %d: %w", id, err)
	}
	return nil
}

func (r *EntityRepository) Children(ctx context.Context, parentID int64, entityType string) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id FROM entities WHERE parent_id = ? AND entity_type = ? AND status != ?`,
		parentID, entityType, domain.StatusTrash)
	if err != nil {
		return nil, fmt.Errorf("failed to list children of %d: %w", parentID, err)
	}
	defer rows.Close()
	return scanIDs(rows)
}

func (r *EntityRepository) Attr(ctx context.Context, id int64, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx,
		`SELECT value FROM attributes WHERE entity_id = ? AND key = ?`, id, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read attribute %s of entity %d: %w", key, id, err)
	}
	return value, nil
}

// HasAttr distinguishes a missing attribute from one stored empty.
func (r *EntityRepository) HasAttr(ctx context.Context, id int64, key string) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx,
		`SELECT 1 FROM attributes WHERE entity_id = ? AND key = ?`, id, key).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to probe attribute %s of entity %d: %w", key, id, err)
	}
	return true, nil
}

func (r *EntityRepository) SetAttr(ctx context.Context, id int64, key, value string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO attributes (entity_id, key, value) VALUES (?, ?, ?)
		 ON CONFLICT (entity_id, key) DO UPDATE SET value = excluded.value`,
		id, key, value)
	if err != nil {
		return fmt.Errorf("failed to set attribute %s on entity %d: %w", key, id, err)
	}
	return nil
}

func (r *EntityRepository) DeleteAttr(ctx context.Context, id int64, key string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM attributes WHERE entity_id = ? AND key = ?`, id, key)
	if err != nil {
		return fmt.Errorf("failed to delete attribute %s of entity %d: %w", key, id, err)
	}
	return nil
}

// AttrsWithPrefix returns all attributes of an entity whose key starts with
// prefix. Used to reconstruct flattened repeater rows
// (participants_details_{i}_{field}).
func (r *EntityRepository) AttrsWithPrefix(ctx context.Context, id int64, prefix string) (map[string]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT key, value FROM attributes WHERE entity_id = ? AND key LIKE ?`,
		id, prefix+"%")
	if err != nil {
		return nil, fmt.Errorf("failed to list attributes of entity %d: %w", id, err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("failed to scan attribute row: %w", err)
		}
		out[k] = v
	}
	return out, rows.Err()
}

// Typed attribute readers. A missing attribute decodes to the zero value.

func (r *EntityRepository) AttrID(ctx context.Context, id int64, key string) (int64, error) {
	raw, err := r.Attr(ctx, id, key)
	if err != nil {
		return 0, err
	}
	return domain.ParseID(raw), nil
}

func (r *EntityRepository) AttrIDList(ctx context.Context, id int64, key string) ([]int64, error) {
	raw, err := r.Attr(ctx, id, key)
	if err != nil {
		return nil, err
	}
	return domain.ParseIDList(raw), nil
}

func (r *EntityRepository) AttrBool(ctx context.Context, id int64, key string) (bool, error) {
	raw, err := r.Attr(ctx, id, key)
	if err != nil {
		return false, err
	}
	return domain.ParseBool(raw), nil
}

func (r *EntityRepository) AttrInt(ctx context.Context, id int64, key string) (int, error) {
	raw, err := r.Attr(ctx, id, key)
	if err != nil {
		return 0, err
	}
	return int(domain.ParseID(raw)), nil
}

func (r *EntityRepository) SetAttrIDList(ctx context.Context, id int64, key string, ids []int64) error {
	return r.SetAttr(ctx, id, key, domain.EncodeIDList(ids))
}

type Term struct {
	Taxonomy string
	Name     string
	Slug     string
}

func (r *EntityRepository) Terms(ctx context.Context, id int64, taxonomy string) ([]Term, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT taxonomy, name, slug FROM terms WHERE entity_id = ? AND taxonomy = ?`,
		id, taxonomy)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s terms of entity %d: %w", taxonomy, id, err)
	}
	defer rows.Close()

	var out []Term
	for rows.Next() {
		var t Term
		if err := rows.Scan(&t.Taxonomy, &t.Name, &t.Slug); err != nil {
			return nil, fmt.Errorf("failed to scan term row: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *EntityRepository) SetTerm(ctx context.Context, id int64, taxonomy, name, slug string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO terms (entity_id, taxonomy, name, slug) VALUES (?, ?, ?, ?)
		 ON CONFLICT (entity_id, taxonomy, slug) DO UPDATE SET name = excluded.name`,
		id, taxonomy, name, slug)
	if err != nil {
		return fmt.Errorf("failed to set term %s on entity %d: %w", slug, id, err)
	}
	return nil
}

func scanIDs(rows *sql.Rows) ([]int64, error) {
	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan id: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
