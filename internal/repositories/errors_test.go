package repositories

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestMapError(t *testing.T) {
	cases := map[string]struct {
		err  error
		want error
	}{
		"noRows":     {pgx.ErrNoRows, ErrNotFound},
		"unique":     {&pgconn.PgError{Code: "23505"}, ErrConflict},
		"foreignKey": {fmt.Errorf("exec: %w", &pgconn.PgError{Code: "23503"}), ErrNotFound},
		"badUUID":    {&pgconn.PgError{Code: "22P02"}, ErrInvalid},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			if got := mapError("op", tc.err); !errors.Is(got, tc.want) {
				t.Fatalf("got %v want %v", got, tc.want)
			}
		})
	}

	if mapError("op", nil) != nil {
		t.Fatal("expected nil passthrough")
	}

	boom := errors.New("boom")
	wrapped := mapError("select video", boom)
	if !errors.Is(wrapped, boom) || wrapped.Error() != "select video: boom" {
		t.Fatalf("unexpected wrap %v", wrapped)
	}
}

func TestIsUndefinedTable(t *testing.T) {
	if !isUndefinedTable(fmt.Errorf("insert: %w", &pgconn.PgError{Code: "42P01"})) {
		t.Fatal("expected undefined table detection")
	}
	if isUndefinedTable(errors.New("other")) {
		t.Fatal("unexpected match")
	}
}
