package customformat_test

import (
	"testing"

	"needle/internal/config"
	"needle/internal/customformat"
)

func TestCalculatorMatch(t *testing.T) {
	formats, err := customformat.FromConfig([]config.CustomFormat{
		{Name: "WEB", Conditions: []config.CustomFormatCondition{{Type: config.ConditionReleaseTitle, Value: `\bWEB\b`}}},
		{Name: "Vinyl", Conditions: []config.CustomFormatCondition{
			{Type: config.ConditionReleaseTitle, Value: `\bvinyl\b`},
			{Type: config.ConditionReleaseTitle, Value: `\bLP\b`},
		}},
		{Name: "NoGRP", Conditions: []config.CustomFormatCondition{{Type: config.ConditionReleaseGroup, Value: `^GRP$`, Negate: true}}},
		{Name: "Small torrent", Conditions: []config.CustomFormatCondition{
			{Type: config.ConditionProtocol, Value: "torrent", Required: true},
			{Type: config.ConditionSize, MaxGB: 1},
		}},
	})
	if err != nil {
		t.Fatalf("FromConfig failed: %v", err)
	}
	calc := customformat.NewCalculator(formats)

	cases := []struct {
		name string
		in   customformat.Input
		want []string
	}{
		{"web", customformat.Input{Title: "Artist-Album-WEB-2020-GRP", ReleaseGroup: "GRP", Protocol: "usenet", Size: 2 << 30}, []string{"WEB"}},
		{"vinyl any", customformat.Input{Title: "Artist - Album (LP)", ReleaseGroup: "XYZ", Protocol: "usenet", Size: 2 << 30}, []string{"Vinyl", "NoGRP"}},
		{"small torrent", customformat.Input{Title: "Artist - Album", ReleaseGroup: "GRP", Protocol: "torrent", Size: 400 << 20}, []string{"Small torrent"}},
		{"required protocol fails", customformat.Input{Title: "Artist - Album", ReleaseGroup: "GRP", Protocol: "usenet", Size: 400 << 20}, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := calc.Match(tc.in)
			if len(got) != len(tc.want) {
				t.Fatalf("Match = %v, want %v", got, tc.want)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Fatalf("Match = %v, want %v", got, tc.want)
				}
			}
		})
	}
}

func TestFromConfigRejectsBadPattern(t *testing.T) {
	_, err := customformat.FromConfig([]config.CustomFormat{{Name: "bad", Conditions: []config.CustomFormatCondition{{Type: config.ConditionReleaseTitle, Value: "("}}}})
	if err == nil {
		t.Fatal("expected compile error")
	}
}
