package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/roach88/annotie/internal/record"
)

// LoggedChangeSet is one entry of an annotation's change-set log.
type LoggedChangeSet struct {
	Pos          int64            `json:"pos"`
	ID           string           `json:"id"`
	AnnotationID string           `json:"annotation_id"`
	Session      string           `json:"session"`
	Seq          int64            `json:"seq"`
	ChangeSet    record.ChangeSet `json:"changeset"`
}

// AnnotationInfo summarizes a stored annotation.
type AnnotationInfo struct {
	ID         string `json:"id"`
	ParentID   string `json:"parent_id,omitempty"`
	Rows       int    `json:"rows"`
	ChangeSets int    `json:"changesets"`
}

// LoadAnnotation returns the stored flat record of an annotation.
func (s *Store) LoadAnnotation(ctx context.Context, id string) (record.Record, error) {
	rec, err := loadRecord(ctx, s.db, id)
	if err != nil {
		return record.Record{}, fmt.Errorf("load annotation %s: %w", id, err)
	}
	return rec, nil
}

func loadRecord(ctx context.Context, q querier, id string) (record.Record, error) {
	rec := record.NewRecord()
	err := q.QueryRowContext(ctx, `
		SELECT last_entity_id, last_group_id, last_tie_id
		FROM annotations WHERE id = ?
	`, id).Scan(&rec.LastEntityID, &rec.LastGroupID, &rec.LastTieID)
	if errors.Is(err, sql.ErrNoRows) {
		return record.Record{}, fmt.Errorf("%w: %s", ErrAnnotationNotFound, id)
	}
	if err != nil {
		return record.Record{}, err
	}

	rows, err := q.QueryContext(ctx, `
		SELECT kind, row_id, fields FROM annotation_rows
		WHERE annotation_id = ?
		ORDER BY kind ASC, row_id COLLATE BINARY ASC
	`, id)
	if err != nil {
		return record.Record{}, err
	}
	defer rows.Close()

	for rows.Next() {
		var kind, rowID, fields string
		if err := rows.Scan(&kind, &rowID, &fields); err != nil {
			return record.Record{}, err
		}
		if err := rec.SetRow(record.Kind(kind), rowID, []byte(fields)); err != nil {
			return record.Record{}, err
		}
	}
	return rec, rows.Err()
}

// ListChangeSets returns an annotation's log in the order it was applied.
func (s *Store) ListChangeSets(ctx context.Context, annotationID string) ([]LoggedChangeSet, error) {
	if err := requireAnnotation(ctx, s.db, annotationID); err != nil {
		return nil, fmt.Errorf("list change-sets: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT pos, id, session, seq, payload FROM changesets
		WHERE annotation_id = ?
		ORDER BY pos ASC
	`, annotationID)
	if err != nil {
		return nil, fmt.Errorf("list change-sets: %w", err)
	}
	defer rows.Close()

	var out []LoggedChangeSet
	for rows.Next() {
		entry := LoggedChangeSet{AnnotationID: annotationID}
		var payload string
		if err := rows.Scan(&entry.Pos, &entry.ID, &entry.Session, &entry.Seq, &payload); err != nil {
			return nil, fmt.Errorf("list change-sets: scan: %w", err)
		}
		if err := json.Unmarshal([]byte(payload), &entry.ChangeSet); err != nil {
			return nil, fmt.Errorf("list change-sets: decode %s: %w", entry.ID, err)
		}
		out = append(out, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list change-sets: %w", err)
	}
	return out, nil
}

// ListAnnotations summarizes every stored annotation, ordered by id.
func (s *Store) ListAnnotations(ctx context.Context) ([]AnnotationInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT a.id, COALESCE(a.parent_id, ''),
			(SELECT COUNT(*) FROM annotation_rows r WHERE r.annotation_id = a.id),
			(SELECT COUNT(*) FROM changesets c WHERE c.annotation_id = a.id)
		FROM annotations a
		ORDER BY a.id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list annotations: %w", err)
	}
	defer rows.Close()

	var out []AnnotationInfo
	for rows.Next() {
		var info AnnotationInfo
		if err := rows.Scan(&info.ID, &info.ParentID, &info.Rows, &info.ChangeSets); err != nil {
			return nil, fmt.Errorf("list annotations: scan: %w", err)
		}
		out = append(out, info)
	}
	return out, rows.Err()
}

// Lineage returns id followed by its ancestors, nearest first.
func (s *Store) Lineage(ctx context.Context, id string) ([]string, error) {
	var out []string
	seen := map[string]bool{}
	for cur := id; cur != ""; {
		if seen[cur] {
			return nil, fmt.Errorf("lineage %s: cycle at %s", id, cur)
		}
		seen[cur] = true

		var parent sql.NullString
		err := s.db.QueryRowContext(ctx, `SELECT parent_id FROM annotations WHERE id = ?`, cur).Scan(&parent)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("lineage %s: %w: %s", id, ErrAnnotationNotFound, cur)
		}
		if err != nil {
			return nil, fmt.Errorf("lineage %s: %w", id, err)
		}
		out = append(out, cur)
		cur = parent.String
	}
	return out, nil
}
