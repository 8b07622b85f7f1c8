package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestWithRequestID_And_RequestIDFromContext(t *testing.T) {
	ctx := context.Background()
	requestID := "req-12345"

	if got := RequestIDFromContext(ctx); got != "" {
		t.Errorf("RequestIDFromContext() on empty ctx = %v, want empty", got)
	}

	ctx = WithRequestID(ctx, requestID)
	if got := RequestIDFromContext(ctx); got != requestID {
		t.Errorf("RequestIDFromContext() = %v, want %v", got, requestID)
	}
}

func TestFromContext_AttachesRequestID(t *testing.T) {
	var buf bytes.Buffer
	base := New(&buf, slog.LevelInfo)

	ctx := WithRequestID(context.Background(), "req-67890")
	FromContext(ctx, base).Info("job submitted")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v: %s", err, buf.String())
	}
	if entry["request_id"] != "req-67890" {
		t.Errorf("got request_id %v, want req-67890", entry["request_id"])
	}
	if entry["msg"] != "job submitted" {
		t.Errorf("got msg %v", entry["msg"])
	}
}

func TestFromContext_NoRequestID(t *testing.T) {
	base := New(&bytes.Buffer{}, slog.LevelInfo)
	if got := FromContext(context.Background(), base); got != base {
		t.Error("FromContext() without request ID should return the base logger")
	}
}

func TestNew_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, slog.LevelWarn)

	log.Info("hidden")
	if buf.Len() != 0 {
		t.Errorf("info line written at warn level: %s", buf.String())
	}
	log.Warn("shown")
	if buf.Len() == 0 {
		t.Error("warn line not written")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"INFO", slog.LevelInfo, false},
		{"", slog.LevelInfo, false},
		{"warning", slog.LevelWarn, false},
		{" error ", slog.LevelError, false},
		{"verbose", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
