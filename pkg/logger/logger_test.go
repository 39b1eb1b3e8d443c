package logx

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog/log"
)

// Mutates the global logger, so it does not run in parallel.
func TestInitWriterLevelsAndFields(t *testing.T) {
	var buf bytes.Buffer
	InitWriter(&buf, Config{Service: "test-svc"})
	t.Cleanup(func() { Init() })

	log.Debug().Msg("hidden")
	log.Info().Str("intent", "unknown").Msg("visible")

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	if len(lines) != 1 {
		t.Fatalf("expected one line at info level, got %d: %s", len(lines), buf.String())
	}
	var entry map[string]any
	if err := json.Unmarshal(lines[0], &entry); err != nil {
		t.Fatalf("unmarshal log line: %v", err)
	}
	if entry["service"] != "test-svc" || entry["intent"] != "unknown" || entry["message"] != "visible" {
		t.Fatalf("unexpected entry: %#v", entry)
	}
	if _, ok := entry["caller"]; !ok {
		t.Fatal("expected caller field")
	}

	buf.Reset()
	InitWriter(&buf, Config{Debug: true})
	log.Debug().Msg("shown")
	if !bytes.Contains(buf.Bytes(), []byte("shown")) {
		t.Fatalf("debug line missing: %s", buf.String())
	}
}
