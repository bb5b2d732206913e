package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestLevelFromString(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range cases {
		if got := levelFromString(in).Level(); got != want {
			t.Fatalf("level %q: expected %v, got %v", in, want, got)
		}
	}
}

func TestNewTagsService(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "booking-api", "warn")
	logger.Info("dropped")
	logger.Warn("kept", "confirmation_number", "HCS-ABC234")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("expected a single JSON record, got %q: %v", buf.String(), err)
	}
	if rec["msg"] != "kept" || rec["service"] != "booking-api" || rec["confirmation_number"] != "HCS-ABC234" {
		t.Fatalf("unexpected record %v", rec)
	}
}
