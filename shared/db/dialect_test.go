package db

import "testing"

func TestRebind(t *testing.T) {
	tests := []struct {
		name     string
		dialect  Dialect
		query    string
		expected string
	}{
		{
			name:     "SQLite untouched",
			dialect:  DialectSQLite,
			query:    "SELECT * FROM posts WHERE id = ? AND slug = ?",
			expected: "SELECT * FROM posts WHERE id = ? AND slug = ?",
		},
		{
			name:     "Postgres numbered",
			dialect:  DialectPostgres,
			query:    "SELECT * FROM posts WHERE id = ? AND slug = ?",
			expected: "SELECT * FROM posts WHERE id = $1 AND slug = $2",
		},
		{
			name:     "Quoted question mark kept",
			dialect:  DialectPostgres,
			query:    "SELECT '?' FROM posts WHERE id = ?",
			expected: "SELECT '?' FROM posts WHERE id = $1",
		},
		{
			name:     "No placeholders",
			dialect:  DialectPostgres,
			query:    "SELECT COUNT(*) FROM posts",
			expected: "SELECT COUNT(*) FROM posts",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Rebind(tt.dialect, tt.query); got != tt.expected {
				t.Errorf("Rebind() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestPlaceholders(t *testing.T) {
	tests := []struct {
		n        int
		expected string
	}{
		{0, ""},
		{1, "?"},
		{3, "?, ?, ?"},
	}

	for _, tt := range tests {
		if got := Placeholders(tt.n); got != tt.expected {
			t.Errorf("Placeholders(%d) = %q, want %q", tt.n, got, tt.expected)
		}
	}
}
