package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func TestLoggerRedactsSecrets(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogConfig{Level: "debug", Format: "json", Output: &buf})

	logger.Info(context.Background(), "registering credential api_key=gsk_abcdefghijklmnopqrstuvwx")

	out := buf.String()
	if strings.Contains(out, "gsk_abcdefghijklmnopqrstuvwx") {
		t.Errorf("secret leaked into log output: %s", out)
	}
	if !strings.Contains(out, "REDACTED") {
		t.Errorf("redaction marker missing: %s", out)
	}
}

func TestLoggerIncludesContextFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogConfig{Level: "info", Format: "json", Output: &buf})

	ctx := context.WithValue(context.Background(), RequestIDKey, "req-42")
	ctx = context.WithValue(ctx, TaskTypeKey, "bug_fixing")
	logger.Info(ctx, "processing")

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("log output is not JSON: %v", err)
	}
	if record["request_id"] != "req-42" {
		t.Errorf("request_id = %v", record["request_id"])
	}
	if record["task_type"] != "bug_fixing" {
		t.Errorf("task_type = %v", record["task_type"])
	}
}

func TestLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogConfig{Level: "warn", Format: "text", Output: &buf})

	logger.Info(context.Background(), "invisible")
	logger.Warn(context.Background(), "visible")

	out := buf.String()
	if strings.Contains(out, "invisible") {
		t.Error("info record should be filtered at warn level")
	}
	if !strings.Contains(out, "visible") {
		t.Error("warn record missing")
	}
}

func TestRedactValueHandlesErrors(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogConfig{Level: "info", Format: "json", Output: &buf})

	err := errTokenLeak{}
	logger.Error(context.Background(), "failed", "error", err)
	if strings.Contains(buf.String(), "eyJhbGci.eyJzdWIi.sig") {
		t.Errorf("error value not redacted: %s", buf.String())
	}
}

type errTokenLeak struct{}

func (errTokenLeak) Error() string {
	return "auth failed for token: eyJhbGci.eyJzdWIi.sig"
}
