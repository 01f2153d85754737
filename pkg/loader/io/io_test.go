package io

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/OFFIS-RIT/dishgraph/backend/pkg/loader"
)

func TestIOArchiveLoader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "batch.jsonl")
	content := `{"text":"Franklin BBQ is amazing","source_type":"comment","source_id":"c1"}` + "\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}

	l := NewIOArchiveLoader()
	file := loader.ArchiveFile{ID: "b1", FilePath: path, Loader: l}
	units, err := file.Units(context.Background(), loader.DecodeOptions{})
	if err != nil {
		t.Fatalf("Units() error: %v", err)
	}
	if len(units) != 1 || units[0].SourceID != "c1" {
		t.Fatalf("unexpected units %+v", units)
	}

	if err := os.WriteFile(path, []byte("changed"), 0o600); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}
	got, err := l.GetFileBytes(context.Background(), file)
	if err != nil || string(got) != content {
		t.Fatalf("expected cached content, got %q (%v)", got, err)
	}

	l.Forget(file)
	got, err = l.GetFileBytes(context.Background(), file)
	if err != nil || string(got) != "changed" {
		t.Fatalf("expected fresh content after Forget, got %q (%v)", got, err)
	}
}

func TestIOArchiveLoader_Missing(t *testing.T) {
	l := NewIOArchiveLoader()
	file := loader.ArchiveFile{ID: "b1", FilePath: filepath.Join(t.TempDir(), "missing.jsonl")}
	if _, err := l.GetFileBytes(context.Background(), file); err == nil {
		t.Fatal("expected error for missing file")
	}
}
