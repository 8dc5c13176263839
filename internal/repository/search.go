package repository

import (
	"context"
	"fmt"
	"strings"
	"wrestling-tracker/internal/domain"
)

// AttrCondition is one equality condition on an attribute value.
type AttrCondition struct {
	Key   string
	Value string
}

// FindIDsByAttrs returns IDs of entities of the given type matching every
// condition. Statuses defaults to publish when empty.
func (r *EntityRepository) FindIDsByAttrs(ctx context.Context, entityType string, conds []AttrCondition, statuses ...string) ([]int64, error) {
	if len(statuses) == 0 {
		statuses = []string{domain.StatusPublish}
	}

	var sb strings.Builder
	args := make([]any, 0, len(conds)*2+len(statuses)+1)
	sb.WriteString(`SELECT e.id FROM entities e`)
	for i := range conds {
		fmt.Fprintf(&sb, ` JOIN attributes a%d ON a%d.entity_id = e.id AND a%d.key = ? AND a%d.value = ?`, i, i, i, i)
	}
	sb.WriteString(` WHERE e.entity_type = ? AND e.status IN (` + placeholders(len(statuses)) + `) ORDER BY e.id`)

	for _, c := range conds {
		args = append(args, c.Key, c.Value)
	}
	args = append(args, entityType)
	for _, s := range statuses {
		args = append(args, s)
	}

	rows, err := r.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s entities by attributes: %w", entityType, err)
	}
	defer rows.Close()
	return scanIDs(rows)
}

// SearchIDsByAttrLike is the coarse candidate query of counter recomputation:
// IDs of entities of the given type holding any of the keys with a value
// matching any LIKE pattern. Callers must re-verify hits against resolved
// participant data.
func (r *EntityRepository) SearchIDsByAttrLike(ctx context.Context, entityType string, keys, patterns []string, limit int) ([]int64, error) {
	if len(keys) == 0 || len(patterns) == 0 {
		return nil, nil
	}

	var likes []string
	args := make([]any, 0, len(keys)+len(patterns)+2)
	args = append(args, entityType)
	for _, k := range keys {
		args = append(args, k)
	}
	for _, p := range patterns {
		likes = append(likes, "a.value LIKE ?")
		args = append(args, p)
	}
	args = append(args, limit)

	query := `SELECT DISTINCT a.entity_id FROM attributes a
		JOIN entities e ON e.id = a.entity_id AND e.entity_type = ?
		WHERE e.status != '` + domain.StatusTrash + `'
		AND a.key IN (` + placeholders(len(keys)) + `)
		AND (` + strings.Join(likes, " OR ") + `)
		ORDER BY a.entity_id LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search %s entities by attribute: %w", entityType, err)
	}
	defer rows.Close()
	return scanIDs(rows)
}

// AllIDsOfType lists every non-trashed entity of a type, for bulk sweeps.
func (r *EntityRepository) AllIDsOfType(ctx context.Context, entityType string) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id FROM entities WHERE entity_type = ? AND status != ? ORDER BY id`,
		entityType, domain.StatusTrash)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s entities: %w", entityType, err)
	}
	defer rows.Close()
	return scanIDs(rows)
}

// AttrValuesForKeys streams every stored value of the given attribute keys.
// Bulk sweeps union the decoded ID lists.
func (r *EntityRepository) AttrValuesForKeys(ctx context.Context, keys []string, limit int) ([]string, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	args := make([]any, 0, len(keys)+1)
	for _, k := range keys {
		args = append(args, k)
	}
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx,
		`SELECT value FROM attributes WHERE key IN (`+placeholders(len(keys))+`) LIMIT ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list attribute values: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("failed to scan attribute value: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
