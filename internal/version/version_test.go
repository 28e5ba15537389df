package version

import (
	"strings"
	"testing"
)

func TestBuildIDFor(t *testing.T) {
	tests := []struct {
		name      string
		date      string
		expected  int
		wantError bool
	}{
		{name: "epoch date", date: "2020-06-01", expected: 0},
		{name: "next day after epoch", date: "2020-06-02", expected: 1},
		{name: "one year later", date: "2021-06-01", expected: 365},
		{name: "leap day included", date: "2024-06-01", expected: 1461},
		{name: "invalid format", date: "invalid", wantError: true},
		{name: "empty date", date: "", wantError: true},
		{name: "before epoch", date: "2020-05-31", wantError: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := BuildIDFor(tt.date)
			if tt.wantError {
				if err == nil {
					t.Fatalf("expected error, got nil (id=%d)", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.expected {
				t.Errorf("BuildIDFor(%q) = %d, want %d", tt.date, got, tt.expected)
			}
		})
	}
}

func TestInfo(t *testing.T) {
	old := BuildDate
	defer func() { BuildDate = old }()

	BuildDate = ""
	info := Info()
	if info.Calculated || info.Error == "" {
		t.Errorf("Expected uncalculated info with error, got %+v", info)
	}
	if !strings.Contains(String(), "build unknown") {
		t.Errorf("Unexpected build string: %s", String())
	}

	BuildDate = "2020-06-11"
	info = Info()
	if !info.Calculated || info.BuildID != 10 {
		t.Errorf("Expected build 10, got %+v", info)
	}
	if info.GoVersion == "" {
		t.Errorf("Expected Go version to be set")
	}
}
