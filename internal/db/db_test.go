package db

import (
	"strings"
	"testing"
)

func TestFiles(t *testing.T) {
	files, err := Files()
	if err != nil {
		t.Fatalf("Files() error: %v", err)
	}
	var up, down int
	for _, f := range files {
		switch {
		case strings.HasSuffix(f, ".up.sql"):
			up++
		case strings.HasSuffix(f, ".down.sql"):
			down++
		}
	}
	if up == 0 || up != down {
		t.Fatalf("expected paired up/down migrations, got %v", files)
	}
}

func TestSchemaHasUniqueKeys(t *testing.T) {
	b, err := migrations.ReadFile("migrations/000001_dish_graph.up.sql")
	if err != nil {
		t.Fatalf("read migration: %v", err)
	}
	schema := string(b)
	for _, want := range []string{
		"entities (type, lower(name))",
		"entity_aliases (type, lower(alias))",
		"UNIQUE (connection_id, source_type, source_id)",
		"CREATE EXTENSION IF NOT EXISTS pg_trgm",
	} {
		if !strings.Contains(schema, want) {
			t.Fatalf("schema is missing %q", want)
		}
	}
}
