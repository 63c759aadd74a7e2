package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/annotie/internal/record"
)

// createTestStore creates a new store in a temp directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// smallRecord is a one-entity annotation with a mention and a self tie.
func smallRecord() record.Record {
	rec := record.NewRecord()
	rec.Groups["1"] = record.Group{Name: "Zeus"}
	rec.Entities["1"] = record.Entity{Name: "Zeus", GroupID: "1"}
	rec.Locations["0_0"] = record.Location{Start: 0, End: 0, EntityID: "1"}
	rec.Ties["1"] = record.Tie{
		Start: 0, End: 0,
		SourceEntity: record.ByLocation("0_0"),
		TargetEntity: record.ByEntity("1"),
		Label:        "self",
		Weight:       1,
	}
	rec.LastEntityID, rec.LastGroupID, rec.LastTieID = 1, 1, 1
	return rec
}
