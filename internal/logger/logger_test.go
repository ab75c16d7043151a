package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/google/uuid"
)

func TestNew_JSONWithService(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "backtest", slog.LevelInfo)
	l.Debug("hidden")
	l.Info("replay done", "symbol", "AAA")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("expected one JSON line, got %q: %v", buf.String(), err)
	}
	if line["service"] != "backtest" {
		t.Errorf("service = %v, want backtest", line["service"])
	}
	if line["symbol"] != "AAA" {
		t.Errorf("symbol = %v, want AAA", line["symbol"])
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"", slog.LevelInfo, false},
		{"DEBUG", slog.LevelDebug, false},
		{"warning", slog.LevelWarn, false},
		{" error ", slog.LevelError, false},
		{"verbose", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLevel(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestRunID_RoundTrip(t *testing.T) {
	ctx := context.Background()
	if id := RunID(ctx); id != "" {
		t.Errorf("expected empty run id, got %q", id)
	}

	id := NewRunID()
	if _, err := uuid.Parse(id); err != nil {
		t.Fatalf("run id %q is not a uuid: %v", id, err)
	}
	ctx = WithRunID(ctx, id)
	if got := RunID(ctx); got != id {
		t.Errorf("RunID = %q, want %q", got, id)
	}
}

func TestFromContext(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, nil))

	FromContext(context.Background(), base).Info("no run")
	ctx := WithRunID(context.Background(), "run-1")
	FromContext(ctx, base).Info("tagged")

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if bytes.Contains(lines[0], []byte("run_id")) {
		t.Errorf("untagged line has run_id: %s", lines[0])
	}
	if !bytes.Contains(lines[1], []byte(`"run_id":"run-1"`)) {
		t.Errorf("tagged line missing run_id: %s", lines[1])
	}
}
