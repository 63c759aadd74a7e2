package store

import (
	"fmt"

	"github.com/roach88/annotie/internal/record"
)

// Sessions used for log entries that do not come from an editing session.
const (
	ImportSession = "import"
	ForkSession   = "fork"
)

// storedRow is one canonical row ready for annotation_rows.
type storedRow struct {
	kind   record.Kind
	id     string
	fields string
}

// encodeRows flattens a record into canonical JSON rows in write order.
func encodeRows(rec record.Record) ([]storedRow, error) {
	var out []storedRow
	for _, kind := range record.Kinds {
		for _, id := range rec.IDs(kind) {
			data, err := rec.RowJSON(kind, id)
			if err != nil {
				return nil, fmt.Errorf("encode %s[%s]: %w", kind, id, err)
			}
			out = append(out, storedRow{kind: kind, id: id, fields: string(data)})
		}
	}
	return out, nil
}

// encodeChangeSet returns the log payload and content-addressed id.
func encodeChangeSet(annotationID, session string, seq int64, cs record.ChangeSet) (id, payload string, err error) {
	data, err := record.MarshalCanonical(cs)
	if err != nil {
		return "", "", fmt.Errorf("encode change-set: %w", err)
	}
	id, err = record.ChangeSetID(annotationID, session, seq, cs)
	if err != nil {
		return "", "", err
	}
	return id, string(data), nil
}
