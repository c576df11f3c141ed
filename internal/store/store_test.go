package store

import (
	"context"
	"path/filepath"
	"testing"
)

func TestPutGetDelete(t *testing.T) {
	st, err := Open(filepath.Join(t.TempDir(), "nested", "fanpanel.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = st.Close()
	})

	ctx := context.Background()
	if _, ok, err := st.Get(ctx, "hist"); err != nil || ok {
		t.Fatalf("expected missing key, got ok=%v err=%v", ok, err)
	}
	if err := st.Put(ctx, "hist", []byte(`{"a":1}`)); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := st.Put(ctx, "hist", []byte(`{"a":2}`)); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	value, ok, err := st.Get(ctx, "hist")
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if string(value) != `{"a":2}` {
		t.Fatalf("unexpected value %q", value)
	}
	if err := st.Delete(ctx, "hist"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, _ := st.Get(ctx, "hist"); ok {
		t.Fatalf("expected key to be deleted")
	}
	if err := st.Delete(ctx, "hist"); err != nil {
		t.Fatalf("delete missing: %v", err)
	}
}

func TestOpenFailsWhenMigrationFails(t *testing.T) {
	// A directory at the database path cannot be opened as a SQLite file.
	path := t.TempDir()
	st, err := Open(path)
	if err == nil {
		_ = st.Close()
		t.Fatalf("expected open error for directory path")
	}
	if st != nil {
		t.Fatalf("expected nil store on error")
	}
}
