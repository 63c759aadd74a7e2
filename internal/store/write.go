package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/annotie/internal/record"
)

// CreateAnnotation stores a new annotation and opens its log with an import
// entry that recreates rec.
//
// The record is stored as given; callers validate it first (schema and
// annotation.Initialize).
func (s *Store) CreateAnnotation(ctx context.Context, id string, rec record.Record) error {
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if err := insertAnnotation(ctx, tx, id, "", rec); err != nil {
			return err
		}
		return appendBase(ctx, tx, id, ImportSession, rec)
	})
	if err != nil {
		return fmt.Errorf("create annotation %s: %w", id, err)
	}
	return nil
}

// ApplyChangeSet merges one change-set into a stored annotation and appends
// it to the log, all in one transaction.
//
// changesetID is the content-addressed id computed by the sender. A change-set
// whose id is already logged is skipped and applied=false is returned; this is
// what makes retried sends safe. An empty changesetID is computed here.
func (s *Store) ApplyChangeSet(ctx context.Context, annotationID, changesetID, session string, seq int64, cs record.ChangeSet) (applied bool, err error) {
	err = s.inTx(ctx, func(tx *sql.Tx) error {
		if err := requireAnnotation(ctx, tx, annotationID); err != nil {
			return err
		}
		applied, err = logAndMerge(ctx, tx, annotationID, changesetID, session, seq, cs)
		return err
	})
	if err != nil {
		return false, fmt.Errorf("apply change-set: %w", err)
	}
	return applied, nil
}

// AppendChangeSet stamps cs with the next sequence number of session and
// applies it. Unlike ApplyChangeSet it never skips: every call is a new log
// entry, so a payload repeated after a different edit still takes effect.
// The sequence number is allocated inside the write transaction.
func (s *Store) AppendChangeSet(ctx context.Context, annotationID, session string, cs record.ChangeSet) (changesetID string, seq int64, err error) {
	err = s.inTx(ctx, func(tx *sql.Tx) error {
		if err := requireAnnotation(ctx, tx, annotationID); err != nil {
			return err
		}
		last, err := lastSeq(ctx, tx, annotationID, session)
		if err != nil {
			return err
		}
		seq = last + 1
		if changesetID, err = record.ChangeSetID(annotationID, session, seq, cs); err != nil {
			return err
		}
		_, err = logAndMerge(ctx, tx, annotationID, changesetID, session, seq, cs)
		return err
	})
	if err != nil {
		return "", 0, fmt.Errorf("append change-set: %w", err)
	}
	return changesetID, seq, nil
}

// LastSeq returns the highest sequence number session has logged against
// annotationID, or 0 when it has logged nothing.
func (s *Store) LastSeq(ctx context.Context, annotationID, session string) (int64, error) {
	if err := requireAnnotation(ctx, s.db, annotationID); err != nil {
		return 0, fmt.Errorf("last seq: %w", err)
	}
	last, err := lastSeq(ctx, s.db, annotationID, session)
	if err != nil {
		return 0, fmt.Errorf("last seq: %w", err)
	}
	return last, nil
}

func lastSeq(ctx context.Context, q querier, annotationID, session string) (int64, error) {
	var last int64
	err := q.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(seq), 0) FROM changesets
		WHERE annotation_id = ? AND session = ?
	`, annotationID, session).Scan(&last)
	return last, err
}

// logAndMerge appends one entry to the log and, unless its id was already
// logged, merges it into the stored rows.
func logAndMerge(ctx context.Context, q querier, annotationID, changesetID, session string, seq int64, cs record.ChangeSet) (bool, error) {
	id, payload, err := encodeChangeSet(annotationID, session, seq, cs)
	if err != nil {
		return false, err
	}
	if changesetID == "" {
		changesetID = id
	}
	res, err := q.ExecContext(ctx, `
		INSERT INTO changesets (id, annotation_id, session, seq, payload)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, changesetID, annotationID, session, seq, payload)
	if err != nil {
		return false, fmt.Errorf("log: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("log: %w", err)
	}
	if n == 0 {
		return false, nil
	}
	if err := mergeChangeSet(ctx, q, annotationID, cs); err != nil {
		return false, fmt.Errorf("%s: %w", changesetID, err)
	}
	return true, nil
}

// Fork copies the current rows and counters of parentID into a new
// annotation childID whose parent_id points back at the parent. The child's
// log starts with a fork entry recreating the copied state; later edits to
// either side do not affect the other.
func (s *Store) Fork(ctx context.Context, parentID, childID string) error {
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		rec, err := loadRecord(ctx, tx, parentID)
		if err != nil {
			return err
		}
		if err := insertAnnotation(ctx, tx, childID, parentID, rec); err != nil {
			return err
		}
		return appendBase(ctx, tx, childID, ForkSession, rec)
	})
	if err != nil {
		return fmt.Errorf("fork %s to %s: %w", parentID, childID, err)
	}
	return nil
}

func insertAnnotation(ctx context.Context, q querier, id, parentID string, rec record.Record) error {
	var parent sql.NullString
	if parentID != "" {
		parent = sql.NullString{String: parentID, Valid: true}
	}
	res, err := q.ExecContext(ctx, `
		INSERT INTO annotations (id, parent_id, last_entity_id, last_group_id, last_tie_id)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, id, parent, rec.LastEntityID, rec.LastGroupID, rec.LastTieID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return ErrAnnotationExists
	}

	rows, err := encodeRows(rec)
	if err != nil {
		return err
	}
	for _, r := range rows {
		if _, err := q.ExecContext(ctx, `
			INSERT INTO annotation_rows (annotation_id, kind, row_id, fields)
			VALUES (?, ?, ?, ?)
		`, id, string(r.kind), r.id, r.fields); err != nil {
			return fmt.Errorf("insert %s[%s]: %w", r.kind, r.id, err)
		}
	}
	return nil
}

// appendBase logs the change-set that rebuilds rec from nothing.
func appendBase(ctx context.Context, q querier, annotationID, session string, rec record.Record) error {
	cs, err := record.FromRecord(rec)
	if err != nil {
		return err
	}
	id, payload, err := encodeChangeSet(annotationID, session, 0, cs)
	if err != nil {
		return err
	}
	_, err = q.ExecContext(ctx, `
		INSERT INTO changesets (id, annotation_id, session, seq, payload)
		VALUES (?, ?, ?, ?, ?)
	`, id, annotationID, session, 0, payload)
	return err
}

func requireAnnotation(ctx context.Context, q querier, id string) error {
	var one int
	err := q.QueryRowContext(ctx, `SELECT 1 FROM annotations WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", ErrAnnotationNotFound, id)
	}
	return err
}

// mergeChangeSet applies the field-level merge rules row by row.
func mergeChangeSet(ctx context.Context, q querier, annotationID string, cs record.ChangeSet) error {
	for _, kind := range record.Kinds {
		entries := cs.Entries(kind)
		ids := make([]string, 0, len(entries))
		for id := range entries {
			ids = append(ids, id)
		}
		for _, id := range record.SortIDs(ids) {
			entry := entries[id]
			if entry.IsDelete() {
				if _, err := q.ExecContext(ctx, `
					DELETE FROM annotation_rows
					WHERE annotation_id = ? AND kind = ? AND row_id = ?
				`, annotationID, string(kind), id); err != nil {
					return fmt.Errorf("delete %s[%s]: %w", kind, id, err)
				}
				continue
			}

			var existing sql.NullString
			err := q.QueryRowContext(ctx, `
				SELECT fields FROM annotation_rows
				WHERE annotation_id = ? AND kind = ? AND row_id = ?
			`, annotationID, string(kind), id).Scan(&existing)
			if err != nil && !errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("read %s[%s]: %w", kind, id, err)
			}
			var stored []byte
			if existing.Valid {
				stored = []byte(existing.String)
			}
			merged, err := record.MergeFields(kind, stored, entry.Fields())
			if err != nil {
				return fmt.Errorf("%w: %s[%s]: %w", ErrInvalidRow, kind, id, err)
			}
			if _, err := q.ExecContext(ctx, `
				INSERT INTO annotation_rows (annotation_id, kind, row_id, fields)
				VALUES (?, ?, ?, ?)
				ON CONFLICT(annotation_id, kind, row_id) DO UPDATE SET fields = excluded.fields
			`, annotationID, string(kind), id, string(merged)); err != nil {
				return fmt.Errorf("write %s[%s]: %w", kind, id, err)
			}
		}
	}

	if _, err := q.ExecContext(ctx, `
		UPDATE annotations SET
			last_entity_id = COALESCE(?, last_entity_id),
			last_group_id  = COALESCE(?, last_group_id),
			last_tie_id    = COALESCE(?, last_tie_id)
		WHERE id = ?
	`, nullInt(cs.LastEntityID), nullInt(cs.LastGroupID), nullInt(cs.LastTieID), annotationID); err != nil {
		return fmt.Errorf("update counters: %w", err)
	}
	return nil
}

func nullInt(p *int64) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *p, Valid: true}
}
