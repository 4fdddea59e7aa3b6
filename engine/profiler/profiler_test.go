package profiler

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestTickLogsPerInterval(t *testing.T) {
	var buf bytes.Buffer
	p := NewProfiler(slog.New(slog.NewTextHandler(&buf, nil)))

	p.SetInterval(time.Hour)
	for range 3 {
		if p.Tick() {
			t.Fatal("logged before the interval elapsed")
		}
	}
	if buf.Len() != 0 {
		t.Fatalf("unexpected output %q", buf.String())
	}

	p.SetInterval(0)
	if !p.Tick() {
		t.Fatal("did not log with a zero interval")
	}
	out := buf.String()
	for _, key := range []string{"msg=profiler", "fps=", "frames=4", "heap_mb="} {
		if !strings.Contains(out, key) {
			t.Errorf("output %q lacks %q", out, key)
		}
	}
	if p.Frames() != 4 {
		t.Errorf("Frames = %d, want 4", p.Frames())
	}
}
