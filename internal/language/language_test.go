package language

import (
	"slices"
	"testing"
)

func TestToISO2(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"en", "en"},
		{"EN", "en"},
		{"eng", "en"},
		{"fre", "fr"},
		{"ger", "de"},
		{"jpn", "ja"},
		{"chi", "zh"},
		{"German", "de"},
		{"deutsch", "de"},
		{"xy", "xy"},
		{"xyz", ""},
		{" ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ToISO2(tt.input); got != tt.expected {
				t.Errorf("ToISO2(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestDisplayName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"ja", "Japanese"},
		{"fra", "French"},
		{"xx", "XX"},
		{"", "Unknown"},
	}
	for _, tt := range tests {
		if got := DisplayName(tt.input); got != tt.expected {
			t.Errorf("DisplayName(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestNormalizeList(t *testing.T) {
	tests := []struct {
		name     string
		input    []string
		expected []string
	}{
		{"nil", nil, nil},
		{"dedup across forms", []string{"en", "eng", "English"}, []string{"en"}},
		{"unknown passes through", []string{"de", "xx"}, []string{"de", "xx"}},
		{"strips whitespace", []string{" ja ", " "}, []string{"ja"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeList(tt.input); !slices.Equal(got, tt.expected) {
				t.Fatalf("NormalizeList(%v) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestDetect(t *testing.T) {
	tests := []struct {
		title    string
		expected string
	}{
		{"Pink Floyd - The Wall (1979) [FLAC]", ""},
		{"Rammstein - Mutter (German Edition) [FLAC]", "de"},
		{"Utada Hikaru - First Love [JPN] [MP3 320]", "ja"},
		{"Kraftwerk - Computerwelt (Deutsch) FLAC", "de"},
		{"Artist - Fin de Siecle [FLAC]", ""},
		{"Artist - Germany Calling [MP3]", ""},
		{"Artist - Album (Ger) [FLAC]", "de"},
	}
	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			if got := Detect(tt.title); got != tt.expected {
				t.Errorf("Detect(%q) = %q, want %q", tt.title, got, tt.expected)
			}
		})
	}
}
