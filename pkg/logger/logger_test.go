package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestNewFallsBackToInfo(t *testing.T) {
	l := New(LoggingConfig{Level: "not-a-level"})
	if l.Logger.GetLevel() != logrus.InfoLevel {
		t.Fatalf("expected info level, got %s", l.Logger.GetLevel())
	}
}

func TestComponentField(t *testing.T) {
	var buf bytes.Buffer
	l := New(LoggingConfig{Level: "debug", Format: "json"})
	l.Logger.SetOutput(&buf)

	l.Component("bookings").WithField("business_id", "b1").Info("booked")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if entry["component"] != "bookings" {
		t.Fatalf("component missing: %v", entry)
	}
	if entry["business_id"] != "b1" {
		t.Fatalf("field missing: %v", entry)
	}
	if entry["msg"] != "booked" {
		t.Fatalf("message missing: %v", entry)
	}
}
