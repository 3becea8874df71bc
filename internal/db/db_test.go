package db

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"sort"
	"testing"

	"github.com/roach88/eventstate/internal/sqlite"
)

type testValue struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func openTestDB(t *testing.T) *DB {
	t.Helper()
	d, err := Open(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { d.Close() })
	return d
}

func TestOpenAppliesPragmasAndSchema(t *testing.T) {
	d := openTestDB(t)

	mode, err := sqlite.Pragma(d.db, "journal_mode")
	if err != nil {
		t.Fatal(err)
	}
	if mode != "wal" {
		t.Errorf("journal_mode = %q, want wal", mode)
	}

	version, err := sqlite.UserVersion(d.db)
	if err != nil {
		t.Fatal(err)
	}
	if version != schema.Version {
		t.Errorf("user_version = %d, want %d", version, schema.Version)
	}
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	for i := 0; i < 2; i++ {
		d, err := Open(path)
		if err != nil {
			t.Fatalf("Open() #%d error = %v", i, err)
		}
		d.Close()
	}
}

func TestColumnFamilyInsertGetUpdateDelete(t *testing.T) {
	ctx := context.Background()
	d := openTestDB(t)
	cf := NewColumnFamily[testValue](d, 1, "TEST")
	key := NewKey().Text("a").Int64(1)

	if err := cf.Insert(ctx, key, testValue{Name: "one", Count: 1}); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	got, ok, err := cf.Get(ctx, key)
	if err != nil || !ok {
		t.Fatalf("Get() = %v, %v, %v", got, ok, err)
	}
	if got.Name != "one" || got.Count != 1 {
		t.Errorf("Get() = %+v", got)
	}

	err = cf.Insert(ctx, key, testValue{Name: "again"})
	if !errors.Is(err, ErrKeyExists) || !IsInconsistencyError(err) {
		t.Errorf("second Insert() error = %v, want ErrKeyExists inconsistency", err)
	}

	if err := cf.Update(ctx, key, testValue{Name: "two", Count: 2}); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	got, _, _ = cf.Get(ctx, key)
	if got.Count != 2 {
		t.Errorf("after Update() count = %d, want 2", got.Count)
	}

	if err := cf.Delete(ctx, key); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, ok, _ := cf.Get(ctx, key); ok {
		t.Error("key still present after Delete()")
	}

	if err := cf.Delete(ctx, key); !errors.Is(err, ErrKeyNotFound) {
		t.Errorf("Delete() of missing key error = %v, want ErrKeyNotFound", err)
	}
	if err := cf.Update(ctx, key, testValue{}); !errors.Is(err, ErrKeyNotFound) {
		t.Errorf("Update() of missing key error = %v, want ErrKeyNotFound", err)
	}
	if err := cf.DeleteIfExists(ctx, key); err != nil {
		t.Errorf("DeleteIfExists() error = %v", err)
	}
}

func TestColumnFamiliesAreDisjoint(t *testing.T) {
	ctx := context.Background()
	d := openTestDB(t)
	first := NewColumnFamily[int64](d, 1, "FIRST")
	second := NewColumnFamily[int64](d, 2, "SECOND")
	key := NewKey().Int64(7)

	if err := first.Upsert(ctx, key, 1); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if ok, _ := second.Exists(ctx, key); ok {
		t.Error("key written to FIRST is visible in SECOND")
	}
	empty, err := second.IsEmpty(ctx)
	if err != nil || !empty {
		t.Errorf("IsEmpty() = %v, %v, want true", empty, err)
	}
}

func TestScanPrefixInKeyOrder(t *testing.T) {
	ctx := context.Background()
	d := openTestDB(t)
	cf := NewColumnFamily[Nil](d, 1, "INDEX")

	for _, v := range []int64{3, -5, 10, 0} {
		if err := cf.Upsert(ctx, NewKey().Text("t").Text("f1").Int64(v), Nil{}); err != nil {
			t.Fatal(err)
		}
	}
	// Same tenant, different id that shares a byte prefix with "f1".
	if err := cf.Upsert(ctx, NewKey().Text("t").Text("f10").Int64(1), Nil{}); err != nil {
		t.Fatal(err)
	}

	prefix := NewKey().Text("t").Text("f1")
	entries, err := cf.Scan(ctx, prefix)
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}

	var got []int64
	for _, e := range entries {
		r := ReadKey(e.Key)
		if err := r.Skip(prefix); err != nil {
			t.Fatal(err)
		}
		v, err := r.Int64()
		if err != nil {
			t.Fatal(err)
		}
		got = append(got, v)
	}
	want := []int64{-5, 0, 3, 10}
	if len(got) != len(want) {
		t.Fatalf("Scan() returned %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Scan() returned %v, want %v", got, want)
		}
	}
}

func TestWhileEqualPrefixStopsAndAllowsDeletes(t *testing.T) {
	ctx := context.Background()
	d := openTestDB(t)
	cf := NewColumnFamily[int64](d, 1, "COUNTS")
	for i := int64(1); i <= 4; i++ {
		if err := cf.Upsert(ctx, NewKey().Int64(9).Int64(i), i); err != nil {
			t.Fatal(err)
		}
	}

	visited := 0
	err := cf.WhileEqualPrefix(ctx, NewKey().Int64(9), func(key Key, v int64) (bool, error) {
		visited++
		if err := cf.Delete(ctx, key); err != nil {
			return false, err
		}
		return v < 2, nil
	})
	if err != nil {
		t.Fatalf("WhileEqualPrefix() error = %v", err)
	}
	if visited != 2 {
		t.Errorf("visited %d entries, want 2", visited)
	}

	removed, err := cf.DeletePrefix(ctx, NewKey().Int64(9))
	if err != nil || removed != 2 {
		t.Errorf("DeletePrefix() = %d, %v, want 2 removed", removed, err)
	}
}

func TestKeyStringEncodingPreservesOrder(t *testing.T) {
	values := []string{"b", "a", "", "ab", "a\x00", "a\x00b", "\xff"}
	encoded := make([]string, len(values))
	for i, v := range values {
		encoded[i] = string(NewKey().Text(v))
	}

	sortedValues := append([]string(nil), values...)
	sort.Strings(sortedValues)
	sort.Strings(encoded)

	for i, enc := range encoded {
		got, err := ReadKey([]byte(enc)).Text()
		if err != nil {
			t.Fatalf("Text() error = %v", err)
		}
		if got != sortedValues[i] {
			t.Errorf("position %d decoded %q, want %q", i, got, sortedValues[i])
		}
	}
}

func TestTransactionRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	d := openTestDB(t)
	cf := NewColumnFamily[int64](d, 1, "VALUES")
	boom := errors.New("boom")

	err := d.Transaction(ctx, func(ctx context.Context) error {
		if err := cf.Upsert(ctx, NewKey().Int64(1), 1); err != nil {
			return err
		}
		if err := d.SetLastPosition(ctx, 5); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Transaction() error = %v, want boom", err)
	}

	if ok, _ := cf.Exists(ctx, NewKey().Int64(1)); ok {
		t.Error("write survived rolled back transaction")
	}
	if pos, _ := d.LastPosition(ctx); pos != 0 {
		t.Errorf("LastPosition() = %d after rollback, want 0", pos)
	}
}

func TestTransactionNestedJoinsOuter(t *testing.T) {
	ctx := context.Background()
	d := openTestDB(t)
	cf := NewColumnFamily[int64](d, 1, "VALUES")

	err := d.Transaction(ctx, func(ctx context.Context) error {
		if !InTransaction(ctx) {
			t.Error("InTransaction() = false inside Transaction")
		}
		return d.Transaction(ctx, func(ctx context.Context) error {
			return cf.Upsert(ctx, NewKey().Int64(1), 1)
		})
	})
	if err != nil {
		t.Fatalf("Transaction() error = %v", err)
	}
	if ok, _ := cf.Exists(ctx, NewKey().Int64(1)); !ok {
		t.Error("nested write was not committed")
	}
}

func TestDigestAndSnapshotRestore(t *testing.T) {
	ctx := context.Background()
	source := openTestDB(t)
	cf := NewColumnFamily[testValue](source, 3, "THINGS")
	for i := int64(0); i < 3; i++ {
		if err := cf.Upsert(ctx, NewKey().Int64(i), testValue{Name: "<x>", Count: int(i)}); err != nil {
			t.Fatal(err)
		}
	}
	if err := source.SetLastPosition(ctx, 42); err != nil {
		t.Fatal(err)
	}

	want, err := source.Digest(ctx)
	if err != nil {
		t.Fatalf("Digest() error = %v", err)
	}

	var buf bytes.Buffer
	if err := source.Snapshot(ctx, &buf); err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}

	target := openTestDB(t)
	if err := NewColumnFamily[int64](target, 9, "STALE").Upsert(ctx, NewKey().Int64(1), 1); err != nil {
		t.Fatal(err)
	}
	if err := target.Restore(ctx, &buf); err != nil {
		t.Fatalf("Restore() error = %v", err)
	}

	got, err := target.Digest(ctx)
	if err != nil {
		t.Fatalf("Digest() error = %v", err)
	}
	if got != want {
		t.Errorf("restored digest = %s, want %s", got, want)
	}
	if pos, _ := target.LastPosition(ctx); pos != 42 {
		t.Errorf("restored LastPosition() = %d, want 42", pos)
	}
}

func TestDigestChangesWithState(t *testing.T) {
	ctx := context.Background()
	d := openTestDB(t)
	cf := NewColumnFamily[int64](d, 1, "VALUES")

	empty, _ := d.Digest(ctx)
	if err := cf.Upsert(ctx, NewKey().Int64(1), 1); err != nil {
		t.Fatal(err)
	}
	one, _ := d.Digest(ctx)
	if err := cf.Upsert(ctx, NewKey().Int64(1), 2); err != nil {
		t.Fatal(err)
	}
	two, _ := d.Digest(ctx)

	if empty == one || one == two {
		t.Errorf("digest did not change: %s %s %s", empty, one, two)
	}
}
