package store

import "testing"

func TestCheckReadOnly(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		wantErr bool
	}{
		{name: "select", query: "SELECT * FROM plots"},
		{name: "lowercase with", query: "with x as (select 1) select * from x"},
		{name: "leading comment", query: "-- count\nSELECT count(*) FROM entities"},
		{name: "delete", query: "DELETE FROM plots", wantErr: true},
		{name: "drop", query: "  drop table entities", wantErr: true},
		{name: "empty", query: "   ", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckReadOnly(tt.query)
			if tt.wantErr && err == nil {
				t.Fatalf("expected error for %q", tt.query)
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
		})
	}
}

func TestPositionalArgs(t *testing.T) {
	args := PositionalArgs(map[string]any{"2": "b", "1": "a", "4": "d"})
	if len(args) != 2 || args[0] != "a" || args[1] != "b" {
		t.Fatalf("expected [a b], got %v", args)
	}
}
