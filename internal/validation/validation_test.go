package validation

import (
	"errors"
	"strings"
	"testing"
)

func TestParseSelections(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []string
		wantErr error
	}{
		{name: "single", input: "Asia", want: []string{"Asia"}},
		{name: "multiple with spaces", input: "North America, South America", want: []string{"North America", "South America"}},
		{name: "apostrophe and period", input: "Xi'an,St. Louis", want: []string{"Xi'an", "St. Louis"}},
		{name: "hyphenated", input: "Baden-Baden", want: []string{"Baden-Baden"}},
		{name: "empty input", input: "", want: nil},
		{name: "blank entries dropped", input: "Asia,,  ,Europe", want: []string{"Asia", "Europe"}},
		{name: "injection characters", input: "Asia;DROP TABLE", wantErr: ErrNameInvalidChars},
		{name: "angle brackets", input: "<script>", wantErr: ErrNameInvalidChars},
		{name: "too long", input: strings.Repeat("a", 81), wantErr: ErrNameTooLong},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSelections(tt.input)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("ParseSelections(%q) error = %v, want %v", tt.input, err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if len(got) != len(tt.want) {
				t.Fatalf("ParseSelections(%q) = %v, want %v", tt.input, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("ParseSelections(%q)[%d] = %q, want %q", tt.input, i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestParseSelections_Cap(t *testing.T) {
	parts := make([]string, 51)
	for i := range parts {
		parts[i] = "City" + strings.Repeat("x", i%5)
	}
	if _, err := ParseSelections(strings.Join(parts, ",")); !errors.Is(err, ErrTooManySelections) {
		t.Errorf("ParseSelections(51 names) error = %v, want ErrTooManySelections", err)
	}
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		wantErr error
	}{
		{input: "min", want: "min"},
		{input: "max", want: "max"},
		{input: "MAX", want: "max"},
		{input: " min ", want: "min"},
		{input: "", want: "max"},
		{input: "median", wantErr: ErrInvalidMode},
	}
	for _, tt := range tests {
		got, err := ParseMode(tt.input)
		if !errors.Is(err, tt.wantErr) {
			t.Errorf("ParseMode(%q) error = %v, want %v", tt.input, err, tt.wantErr)
			continue
		}
		if err == nil && got != tt.want {
			t.Errorf("ParseMode(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestParseYear(t *testing.T) {
	tests := []struct {
		input   string
		want    int
		wantErr error
	}{
		{input: "2005", want: 2005},
		{input: "1900", want: 1900},
		{input: "2024", want: 2024},
		{input: "1899", wantErr: ErrInvalidYear},
		{input: "2025", wantErr: ErrInvalidYear},
		{input: "abc", wantErr: ErrInvalidYear},
		{input: "", wantErr: ErrInvalidYear},
	}
	for _, tt := range tests {
		got, err := ParseYear(tt.input, 1900, 2024)
		if !errors.Is(err, tt.wantErr) {
			t.Errorf("ParseYear(%q) error = %v, want %v", tt.input, err, tt.wantErr)
			continue
		}
		if err == nil && got != tt.want {
			t.Errorf("ParseYear(%q) = %d, want %d", tt.input, got, tt.want)
		}
	}
}
