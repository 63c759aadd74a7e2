package store

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/annotie/internal/record"
)

func TestOpen_ReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "annotie.db")
	ctx := context.Background()

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	if err := s.CreateAnnotation(ctx, "doc-1", smallRecord()); err != nil {
		t.Fatalf("CreateAnnotation() failed: %v", err)
	}
	s.Close()

	for i := 0; i < 2; i++ {
		s, err := Open(path)
		if err != nil {
			t.Fatalf("reopen %d failed: %v", i, err)
		}
		rec, err := s.LoadAnnotation(ctx, "doc-1")
		s.Close()
		if err != nil {
			t.Fatalf("reopen %d: LoadAnnotation() failed: %v", i, err)
		}
		if rec.Len(record.KindEntity) != 1 {
			t.Errorf("reopen %d: %d entities, want 1", i, rec.Len(record.KindEntity))
		}
	}
}

func TestOpen_Memory(t *testing.T) {
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	defer s.Close()

	if err := s.CreateAnnotation(context.Background(), "doc-1", smallRecord()); err != nil {
		t.Fatalf("CreateAnnotation() failed: %v", err)
	}
	if _, err := s.LoadAnnotation(context.Background(), "doc-1"); err != nil {
		t.Errorf("in-memory rows lost between statements: %v", err)
	}
}

func TestOpen_InvalidPath(t *testing.T) {
	if _, err := Open("/nonexistent/dir/annotie.db"); err == nil {
		t.Error("expected error for invalid path, got nil")
	}
}

func TestClose_NilDB(t *testing.T) {
	s := &Store{db: nil}
	if err := s.Close(); err != nil {
		t.Errorf("Close() on nil db should not error: %v", err)
	}
}

func TestPragmas(t *testing.T) {
	tests := []struct {
		name string
		opts []Option
		want map[string]string
	}{
		{
			name: "defaults",
			want: map[string]string{"journal_mode": "wal", "synchronous": "1", "busy_timeout": "5000", "foreign_keys": "1"},
		},
		{
			name: "options",
			opts: []Option{WithBusyTimeout(250 * time.Millisecond), WithSynchronous("FULL")},
			want: map[string]string{"synchronous": "2", "busy_timeout": "250"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Open(filepath.Join(t.TempDir(), "annotie.db"), tt.opts...)
			if err != nil {
				t.Fatalf("Open() failed: %v", err)
			}
			defer s.Close()

			for name, want := range tt.want {
				got, err := s.pragma(name)
				if err != nil {
					t.Fatal(err)
				}
				if got != want {
					t.Errorf("%s = %q, want %q", name, got, want)
				}
			}
		})
	}
}

func TestInTx_RollsBackOnError(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `INSERT INTO annotations (id) VALUES ('a')`); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("inTx() = %v, want %v", err, boom)
	}

	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM annotations`).Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("%d annotations after rollback, want 0", n)
	}
}

func TestSchema_RowKindCheck(t *testing.T) {
	s := createTestStore(t)

	if _, err := s.db.Exec(`INSERT INTO annotations (id) VALUES ('a')`); err != nil {
		t.Fatalf("insert annotation: %v", err)
	}
	_, err := s.db.Exec(`INSERT INTO annotation_rows (annotation_id, kind, row_id, fields) VALUES ('a', 'mentions', '1', '{}')`)
	if err == nil {
		t.Error("expected CHECK constraint to reject unknown kind")
	}
}

func TestSchema_RowsNeedAnnotation(t *testing.T) {
	s := createTestStore(t)

	_, err := s.db.Exec(`INSERT INTO annotation_rows (annotation_id, kind, row_id, fields) VALUES ('missing', 'groups', '1', '{}')`)
	if err == nil {
		t.Error("expected foreign key violation")
	}
}

func TestMigrate_FromUnversioned(t *testing.T) {
	path := filepath.Join(t.TempDir(), "annotie.db")

	// A database created before the session index existed.
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("sql.Open() failed: %v", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
	if _, err := db.Exec(`DROP INDEX IF EXISTS idx_changesets_session`); err != nil {
		t.Fatalf("drop index: %v", err)
	}
	db.Close()

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	version, err := s.pragma("user_version")
	if err != nil {
		t.Fatal(err)
	}
	if want := "1"; version != want || schemaVersion() != 1 {
		t.Errorf("user_version = %s, want %s", version, want)
	}

	var name string
	err = s.db.QueryRow(
		"SELECT name FROM sqlite_master WHERE type='index' AND name='idx_changesets_session'",
	).Scan(&name)
	if err != nil {
		t.Errorf("migration index missing: %v", err)
	}
}
