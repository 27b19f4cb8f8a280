package download_test

import (
	"testing"

	"needle/internal/download"
)

func TestTransition(t *testing.T) {
	cases := []struct {
		from download.State
		obs  download.Observation
		want download.State
	}{
		{download.StateDownloading, download.ObservedPending, download.StateDownloading},
		{download.StateDownloading, download.ObservedUnusablePath, download.StateDownloading},
		{download.StateDownloading, download.ObservedImportable, download.StateImporting},
		{download.StateDownloading, download.ObservedBlocked, download.StateWarning},
		{download.StateWarning, download.ObservedImportable, download.StateImporting},
		{download.StateWarning, download.ObservedImported, download.StateImported},
		{download.StateImporting, download.ObservedIncomplete, download.StateDownloading},
		{download.StateImporting, download.ObservedImported, download.StateImported},
		{download.StateDownloading, download.ObservedClientFailed, download.StateFailed},
		{download.StateImported, download.ObservedPending, download.StateImported},
		{download.StateImported, download.ObservedClientFailed, download.StateImported},
		{download.StateFailed, download.ObservedImported, download.StateFailed},
		{download.StateWarning, "", download.StateWarning},
		{"", "", download.StateDownloading},
	}
	for _, tc := range cases {
		if got := download.Transition(tc.from, tc.obs); got != tc.want {
			t.Fatalf("Transition(%q, %q) = %q, want %q", tc.from, tc.obs, got, tc.want)
		}
	}
}

func TestTerminalStates(t *testing.T) {
	for state, want := range map[download.State]bool{
		download.StateDownloading: false,
		download.StateImporting:   false,
		download.StateWarning:     false,
		download.StateImported:    true,
		download.StateFailed:      true,
	} {
		if state.Terminal() != want {
			t.Fatalf("%s terminal = %v, want %v", state, !want, want)
		}
	}
}
