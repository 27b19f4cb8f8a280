package services_test

import (
	"errors"
	"strings"
	"testing"

	"needle/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrExternalTool, "grab", "add", "client refused", base)
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	for _, fragment := range []string{"grab", "add", "client refused"} {
		if !strings.Contains(err.Error(), fragment) {
			t.Fatalf("expected %q in error string %q", fragment, err.Error())
		}
	}
}

func TestWrapDefaultsToTransient(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("expected placeholder detail, got %q", err.Error())
	}
}

func TestIsTransient(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"transient", services.Wrap(services.ErrTransient, "rss", "fetch", "", errors.New("reset")), true},
		{"timeout", services.Wrap(services.ErrTimeout, "poll", "", "", nil), true},
		{"external", services.Wrap(services.ErrExternalTool, "grab", "", "", nil), true},
		{"validation", services.Wrap(services.ErrValidation, "import", "", "", nil), false},
		{"plain", errors.New("other"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := services.IsTransient(tc.err); got != tc.want {
				t.Fatalf("IsTransient = %v, want %v", got, tc.want)
			}
		})
	}
}
