package httpapi

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"debug":   zerolog.DebugLevel,
		" WARN ":  zerolog.WarnLevel,
		"warning": zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"":        zerolog.InfoLevel,
		"bogus":   zerolog.InfoLevel,
	}
	for in, want := range cases {
		if got := parseLevel(in); got != want {
			t.Fatalf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNewLoggerWith_JSON(t *testing.T) {
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.InfoLevel) })

	var buf bytes.Buffer
	log := NewLoggerWith(LoggerConfig{Level: "info", Out: &buf})
	log.Debug().Msg("hidden")
	log.Info().Str("session_id", "abc").Msg("session opened")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected one line, got %q", buf.String())
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if entry["service"] != "mapcore" || entry["session_id"] != "abc" || entry["message"] != "session opened" {
		t.Fatalf("unexpected entry %v", entry)
	}
}

func TestNewLoggerWith_Console(t *testing.T) {
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.InfoLevel) })

	var buf bytes.Buffer
	log := NewLoggerWith(LoggerConfig{Level: "info", Format: "console", Out: &buf})
	log.Info().Msg("mapcore listening")

	out := buf.String()
	if strings.HasPrefix(out, "{") || !strings.Contains(out, "mapcore listening") {
		t.Fatalf("expected console output, got %q", out)
	}
}
