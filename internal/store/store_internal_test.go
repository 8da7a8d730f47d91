package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"quill/internal/content"
)

func TestMalformedJSONColumnsLoadAsAbsent(t *testing.T) {
	st, err := OpenPath(filepath.Join(t.TempDir(), "quill.db"))
	if err != nil {
		t.Fatalf("OpenPath failed: %v", err)
	}
	defer st.Close()
	ctx := context.Background()

	wf, _ := content.New("topic", "")
	wf.SetEditedDraft("edited", []string{"a"})
	if err := st.Create(ctx, wf); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := st.db.ExecContext(ctx,
		`UPDATE workflows SET edit_changes_json = ?, seo_data_json = ? WHERE id = ?`,
		"{not json", "[1,2", wf.ID,
	); err != nil {
		t.Fatalf("corrupt columns: %v", err)
	}

	fetched, err := st.Get(ctx, wf.ID)
	if err != nil {
		t.Fatalf("Get must not fail on malformed JSON: %v", err)
	}
	if fetched.EditChanges() != nil {
		t.Fatalf("expected nil edit changes, got %v", fetched.EditChanges())
	}
	if fetched.SEO != nil {
		t.Fatalf("expected nil seo, got %+v", fetched.SEO)
	}
	if fetched.EditedDraft != "edited" {
		t.Fatalf("other fields must survive, got %q", fetched.EditedDraft)
	}
}

func TestSchemaMismatchDetected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quill.db")
	st, err := OpenPath(path)
	if err != nil {
		t.Fatalf("OpenPath failed: %v", err)
	}
	if _, err := st.db.Exec(fmt.Sprintf("PRAGMA user_version = %d", schemaVersion+1)); err != nil {
		t.Fatalf("bump version: %v", err)
	}
	_ = st.Close()

	if _, err := OpenPath(path); !errors.Is(err, ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}
}

func TestIsSQLiteBusy(t *testing.T) {
	if isSQLiteBusy(nil) {
		t.Fatal("nil is not busy")
	}
	if !isSQLiteBusy(errors.New("database is locked (5) (SQLITE_BUSY)")) {
		t.Fatal("expected busy detection from message")
	}
	calls := 0
	err := retryOnBusy(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New("SQLITE_BUSY")
		}
		return nil
	})
	if err != nil || calls != 3 {
		t.Fatalf("expected success after 3 attempts, got %v after %d", err, calls)
	}
}
