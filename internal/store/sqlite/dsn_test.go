package sqlite

import "testing"

func TestParseDSN(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
		wantErr  bool
	}{
		{name: "memory", input: "sqlite://:memory:", expected: ":memory:"},
		{name: "absolute", input: "sqlite:///var/lib/story.db", expected: "/var/lib/story.db"},
		{name: "explicit relative", input: "sqlite://./story.db", expected: "./story.db"},
		{name: "parent relative", input: "sqlite://../story.db", expected: "../story.db"},
		{name: "bare relative", input: "sqlite://story.db", expected: "./story.db"},
		{name: "escaped", input: "sqlite://my%20story.db", expected: "./my story.db"},
		{name: "query kept", input: "sqlite://story.db?_pragma=foreign_keys(1)", expected: "./story.db?_pragma=foreign_keys(1)"},
		{name: "wrong scheme", input: "postgres://localhost/story", wantErr: true},
		{name: "empty path", input: "sqlite://", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseDSN(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if got != tt.expected {
				t.Errorf("parseDSN(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}
