package db

import "testing"

func TestParseDatabaseName(t *testing.T) {
	tests := []struct {
		connString string
		want       string
		wantErr    bool
	}{
		{connString: "user:pass@tcp(localhost:3306)/appdb", want: "appdb"},
		{connString: "user:pass@tcp(localhost:3306)/appdb?parseTime=true", want: "appdb"},
		{connString: "root@/local", want: "local"},
		{connString: "user:pass@tcp(localhost:3306)/", wantErr: true},
		{connString: "user:pass@tcp(localhost:3306)/?parseTime=true", wantErr: true},
		{connString: "no-slash-here", wantErr: true},
	}

	for _, tt := range tests {
		got, err := ParseDatabaseName(tt.connString)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseDatabaseName(%q) expected error, got %q", tt.connString, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseDatabaseName(%q) error: %v", tt.connString, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseDatabaseName(%q) = %q, want %q", tt.connString, got, tt.want)
		}
	}
}
