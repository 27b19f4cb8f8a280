package logs_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"needle/internal/logs"
)

func TestLast(t *testing.T) {
	path := filepath.Join(t.TempDir(), "needled.log")
	content := "a correlation_id=1\nb correlation_id=2\nc correlation_id=1\npartial"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}

	cases := []struct {
		name   string
		limit  int
		filter logs.Filter
		want   []string
	}{
		{"last two", 2, nil, []string{"b correlation_id=2", "c correlation_id=1"}},
		{"filtered", 5, logs.Filter{"correlation_id=1"}, []string{"a correlation_id=1", "c correlation_id=1"}},
		{"no limit", 0, nil, nil},
	}
	for _, tc := range cases {
		lines, offset, err := logs.Last(path, tc.limit, tc.filter)
		if err != nil {
			t.Fatalf("%s: Last failed: %v", tc.name, err)
		}
		if len(lines) != len(tc.want) {
			t.Fatalf("%s: got %#v", tc.name, lines)
		}
		for i := range lines {
			if lines[i] != tc.want[i] {
				t.Fatalf("%s: got %#v", tc.name, lines)
			}
		}
		if offset != int64(len(content)-len("partial")) {
			t.Fatalf("%s: expected the partial line to stay unread, offset %d", tc.name, offset)
		}
	}

	lines, offset, err := logs.Last(filepath.Join(t.TempDir(), "missing.log"), 5, nil)
	if err != nil || len(lines) != 0 || offset != 0 {
		t.Fatalf("expected nothing for a missing file, got %v %d %v", lines, offset, err)
	}
}

func TestFollowEmitsAppendedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "needled.log")
	if err := os.WriteFile(path, []byte("start\n"), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}
	_, offset, err := logs.Last(path, 1, nil)
	if err != nil {
		t.Fatalf("Last failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		mu   sync.Mutex
		seen []string
	)
	done := make(chan error, 1)
	go func() {
		done <- logs.Follow(ctx, path, offset, 10*time.Millisecond, logs.Filter{"download_id=x"}, func(line string) {
			mu.Lock()
			seen = append(seen, line)
			mu.Unlock()
		})
	}()

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open append: %v", err)
	}
	if _, err := f.WriteString("other download_id=y\nlater download_id=x\n"); err != nil {
		t.Fatalf("append log: %v", err)
	}
	_ = f.Close()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := len(seen)
		mu.Unlock()
		if n > 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	cancel()
	<-done

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 1 || seen[0] != "later download_id=x" {
		t.Fatalf("unexpected follow lines: %#v", seen)
	}
}
