package pgx

import (
	"errors"
	"fmt"
	"testing"

	"github.com/OFFIS-RIT/dishgraph/backend/pkg/store"

	pgxv5 "github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestMapErr(t *testing.T) {
	tests := []struct {
		name string
		in   error
		want error
	}{
		{name: "nil", in: nil, want: nil},
		{name: "no rows", in: pgxv5.ErrNoRows, want: store.ErrNotFound},
		{name: "unique violation", in: &pgconn.PgError{Code: "23505", ConstraintName: "entities_type_name_key"}, want: store.ErrUniqueViolation},
		{name: "wrapped unique violation", in: fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"}), want: store.ErrUniqueViolation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mapErr(tt.in)
			if tt.want == nil {
				if got != nil {
					t.Fatalf("mapErr() = %v, want nil", got)
				}
				return
			}
			if !errors.Is(got, tt.want) {
				t.Fatalf("mapErr() = %v, want %v", got, tt.want)
			}
		})
	}

	other := &pgconn.PgError{Code: "40P01"}
	if got := mapErr(other); errors.Is(got, store.ErrUniqueViolation) || !errors.Is(got, other) {
		t.Fatalf("deadlock must pass through, got %v", got)
	}
}

func TestNonNil(t *testing.T) {
	if got := nonNil(nil); got == nil || len(got) != 0 {
		t.Fatalf("nonNil(nil) = %#v", got)
	}
}
