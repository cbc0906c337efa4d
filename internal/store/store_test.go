package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/roach88/docmap/internal/testutil"
)

// createTestStore opens a store in a temporary directory.
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

func samplePipeline(t *testing.T) mongo.Pipeline {
	t.Helper()
	oid, err := primitive.ObjectIDFromHex("507f1f77bcf86cd799439011")
	if err != nil {
		t.Fatal(err)
	}
	return mongo.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "_id", Value: bson.D{{Key: "$eq", Value: oid}}}}}},
		{{Key: "$project", Value: bson.D{{Key: "name", Value: 1}, {Key: "_id", Value: 1}}}},
		{{Key: "$skip", Value: int64(0)}},
	}
}

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	for i := 0; i < 3; i++ {
		s, err := Open(path)
		if err != nil {
			t.Fatalf("Open() iteration %d failed: %v", i, err)
		}
		s.Close()
	}

	s, err := Open(path)
	if err != nil {
		t.Fatalf("final Open() failed: %v", err)
	}
	defer s.Close()

	for _, table := range []string{"pipelines", "validators"} {
		var name string
		err := s.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?",
			table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %q not found after idempotent opens: %v", table, err)
		}
	}
}

func TestDSNEscapesPath(t *testing.T) {
	got := dsn("/var/lib/docmap/a?b#c.db")
	want := "file:///var/lib/docmap/a%3Fb%23c.db?_busy_timeout=5000&_journal_mode=WAL&_synchronous=NORMAL"
	if got != want {
		t.Errorf("dsn() = %q, want %q", got, want)
	}
}

func TestOpen_PathWithURIDelimiters(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "plans?v=1#draft")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "plans 100%.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	if _, _, err := s.SavePipeline(context.Background(), "User", nil, samplePipeline(t)); err != nil {
		t.Fatal(err)
	}
	s.Close()

	if _, err := os.Stat(path); err != nil {
		t.Errorf("database not created at %s: %v", path, err)
	}
	entries, err := os.ReadDir(filepath.Dir(dir))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("stray files next to the store directory: %d entries", len(entries))
	}
}

func TestOpen_Pragmas(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	for name, want := range map[string]string{
		"journal_mode": "wal",
		"synchronous":  "1",
		"busy_timeout": "5000",
	} {
		got, err := s.pragma(ctx, name)
		if err != nil {
			t.Error(err)
			continue
		}
		if got != want {
			t.Errorf("%s = %q, want %q", name, got, want)
		}
	}
}

func TestOpen_SchemaVersion(t *testing.T) {
	s := createTestStore(t)

	version, err := s.SchemaVersion(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if version != currentSchemaVersion {
		t.Errorf("user_version = %d, want %d", version, currentSchemaVersion)
	}

	for _, index := range []string{"idx_pipelines_model", "idx_validators_fingerprint"} {
		var name string
		err = s.db.QueryRow("SELECT name FROM sqlite_master WHERE type='index' AND name=?", index).Scan(&name)
		if err != nil {
			t.Errorf("migration index %s missing: %v", index, err)
		}
	}
}

func TestOpen_MigratesOlderStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "old.db")
	s, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.db.Exec("DROP INDEX idx_validators_fingerprint"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.db.Exec("PRAGMA user_version = 1"); err != nil {
		t.Fatal(err)
	}
	s.Close()

	s, err = Open(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer s.Close()

	version, err := s.SchemaVersion(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if version != currentSchemaVersion {
		t.Errorf("user_version = %d after reopen, want %d", version, currentSchemaVersion)
	}
	var name string
	if err := s.db.QueryRow("SELECT name FROM sqlite_master WHERE type='index' AND name='idx_validators_fingerprint'").Scan(&name); err != nil {
		t.Errorf("pending migration not applied: %v", err)
	}
}

func TestSavePipeline_Idempotent(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	p := samplePipeline(t)

	first, inserted, err := s.SavePipeline(ctx, "User", []string{"b", "a", "b"}, p)
	if err != nil {
		t.Fatalf("SavePipeline() failed: %v", err)
	}
	if !inserted {
		t.Error("first save should insert")
	}
	if len(first.Fingerprint) != 64 {
		t.Errorf("fingerprint %q is not a sha256 hex digest", first.Fingerprint)
	}

	second, inserted, err := s.SavePipeline(ctx, "User", []string{"a", "b"}, p)
	if err != nil {
		t.Fatalf("second SavePipeline() failed: %v", err)
	}
	if inserted {
		t.Error("identical plan should not insert again")
	}
	if second.Seq != first.Seq || second.Fingerprint != first.Fingerprint {
		t.Errorf("got %+v, want existing %+v", second, first)
	}

	other, inserted, err := s.SavePipeline(ctx, "Admin", []string{"a", "b"}, p)
	if err != nil {
		t.Fatal(err)
	}
	if !inserted || other.Fingerprint == first.Fingerprint {
		t.Error("same stages under another model are a distinct plan")
	}
}

func TestGetPipeline_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	p := samplePipeline(t)

	saved, _, err := s.SavePipeline(ctx, "User", nil, p)
	if err != nil {
		t.Fatal(err)
	}

	got, err := s.GetPipeline(ctx, saved.Fingerprint)
	if err != nil {
		t.Fatalf("GetPipeline() failed: %v", err)
	}
	if got.Model != "User" || len(got.Views) != 0 {
		t.Errorf("unexpected record %+v", got)
	}
	if len(got.Stages) != len(p) {
		t.Fatalf("got %d stages, want %d", len(got.Stages), len(p))
	}

	match := got.Stages[0][0].Value.(bson.D)
	eq := match[0].Value.(bson.D)[0].Value
	if _, ok := eq.(primitive.ObjectID); !ok {
		t.Errorf("ObjectID decoded as %T", eq)
	}
	project := got.Stages[1][0].Value.(bson.D)
	if project[0].Key != "name" || project[1].Key != "_id" {
		t.Errorf("projection key order lost: %v", project)
	}
}

func TestGetPipeline_NotFound(t *testing.T) {
	s := createTestStore(t)

	_, err := s.GetPipeline(context.Background(), "missing")
	if !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("got %v, want sql.ErrNoRows", err)
	}
}

func TestListPipelines_Ordering(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	empty, err := s.ListPipelines(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	if empty == nil || len(empty) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", empty)
	}

	for i, m := range []string{"User", "Post", "User"} {
		p := mongo.Pipeline{{{Key: "$limit", Value: int64(i + 1)}}}
		if _, _, err := s.SavePipeline(ctx, m, nil, p); err != nil {
			t.Fatal(err)
		}
	}

	all, err := s.ListPipelines(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Fatalf("got %d pipelines, want 3", len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i-1].Seq >= all[i].Seq {
			t.Errorf("pipelines not ordered by seq: %d then %d", all[i-1].Seq, all[i].Seq)
		}
	}

	users, err := s.ListPipelines(ctx, "User")
	if err != nil {
		t.Fatal(err)
	}
	if len(users) != 2 {
		t.Fatalf("got %d User pipelines, want 2", len(users))
	}
	for _, rec := range users {
		if rec.Model != "User" {
			t.Errorf("unexpected model %q", rec.Model)
		}
	}
}

func TestSaveValidator_Revisions(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	v1 := bson.D{{Key: "$jsonSchema", Value: bson.D{{Key: "bsonType", Value: "object"}}}}
	rec, err := s.SaveValidator(ctx, "User", "bson", v1)
	if err != nil {
		t.Fatalf("SaveValidator() failed: %v", err)
	}
	if rec.Revision != 1 {
		t.Errorf("revision = %d, want 1", rec.Revision)
	}

	rec, err = s.SaveValidator(ctx, "User", "bson", v1)
	if err != nil {
		t.Fatal(err)
	}
	if rec.Revision != 1 {
		t.Errorf("unchanged validator bumped revision to %d", rec.Revision)
	}

	v2 := bson.D{{Key: "$jsonSchema", Value: bson.D{
		{Key: "bsonType", Value: "object"},
		{Key: "required", Value: bson.A{"name"}},
	}}}
	rec, err = s.SaveValidator(ctx, "User", "bson", v2)
	if err != nil {
		t.Fatal(err)
	}
	if rec.Revision != 2 {
		t.Errorf("revision = %d, want 2", rec.Revision)
	}
	if len(rec.Document[0].Value.(bson.D)) != 2 {
		t.Errorf("stored document not replaced: %v", rec.Document)
	}

	if _, err := s.GetValidator(ctx, "User", "json"); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("dialects are stored separately, got %v", err)
	}
}

func TestSavePipeline_DistinctIdentifiers(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	ids := testutil.NewIDSequence()

	seen := make(map[string]primitive.ObjectID)
	for i := 0; i < 3; i++ {
		oid := ids.Next()
		p := mongo.Pipeline{{{Key: "$match", Value: bson.D{{Key: "_id", Value: bson.D{{Key: "$eq", Value: oid}}}}}}}
		rec, inserted, err := s.SavePipeline(ctx, "User", nil, p)
		if err != nil {
			t.Fatal(err)
		}
		if !inserted {
			t.Errorf("pipeline for %s was not inserted", oid.Hex())
		}
		seen[rec.Fingerprint] = oid
	}
	if len(seen) != 3 {
		t.Fatalf("got %d fingerprints, want 3", len(seen))
	}

	for fp, want := range seen {
		got, err := s.GetPipeline(ctx, fp)
		if err != nil {
			t.Fatal(err)
		}
		match := got.Stages[0][0].Value.(bson.D)
		eq := match[0].Value.(bson.D)[0].Value
		if eq != want {
			t.Errorf("stored %v, want %s", eq, want.Hex())
		}
	}

	ids.Reset()
	if _, inserted, err := s.SavePipeline(ctx, "User", nil, mongo.Pipeline{{{Key: "$match", Value: bson.D{{Key: "_id", Value: bson.D{{Key: "$eq", Value: ids.Next()}}}}}}}); err != nil || inserted {
		t.Errorf("replayed identifier inserted=%v err=%v, want existing row", inserted, err)
	}
}
