package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/ppiankov/imgpull/internal/model"
	"github.com/sirupsen/logrus"
)

func TestNew_Levels(t *testing.T) {
	tests := []struct {
		name    string
		cfg     model.LogConfig
		verbose bool
		want    logrus.Level
	}{
		{"default", model.LogConfig{}, false, logrus.WarnLevel},
		{"configured", model.LogConfig{Level: "info"}, false, logrus.InfoLevel},
		{"verbose wins", model.LogConfig{Level: "error"}, true, logrus.DebugLevel},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := New(tt.cfg, &bytes.Buffer{}, tt.verbose)
			if err != nil {
				t.Fatalf("New failed: %v", err)
			}
			if logger.GetLevel() != tt.want {
				t.Errorf("expected level %v, got %v", tt.want, logger.GetLevel())
			}
		})
	}
}

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(model.LogConfig{Level: "info", Format: "json"}, &buf, false)
	if err != nil {
		t.Fatal(err)
	}
	logger.WithField("document", "a.md").Info("document processed")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected JSON output, got %q: %v", buf.String(), err)
	}
	if entry["document"] != "a.md" || entry["msg"] != "document processed" {
		t.Errorf("unexpected entry: %v", entry)
	}
}

func TestNew_Invalid(t *testing.T) {
	if _, err := New(model.LogConfig{Level: "loud"}, &bytes.Buffer{}, false); err == nil {
		t.Error("expected error for unknown level")
	}
	_, err := New(model.LogConfig{Format: "xml"}, &bytes.Buffer{}, false)
	if err == nil || !strings.Contains(err.Error(), "xml") {
		t.Errorf("expected error for unknown format, got %v", err)
	}
}

func TestDiscard(t *testing.T) {
	if Discard().IsLevelEnabled(logrus.ErrorLevel) {
		t.Error("expected discard logger to drop errors")
	}
}
