package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestSetRoutesPackageFunctions(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	Set(zap.New(core))
	t.Cleanup(func() { Set(nil) })

	Info("processed", zap.String("operation", "ClaimReward"))
	Warn("rejected", zap.Uint32("code", 4))

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Message != "processed" || entries[0].ContextMap()["operation"] != "ClaimReward" {
		t.Fatalf("unexpected entry %+v", entries[0])
	}
}

func TestInitializeWritesFiles(t *testing.T) {
	dir := t.TempDir()
	logFile := filepath.Join(dir, "logs", "survey.log")
	errFile := filepath.Join(dir, "logs", "error.log")
	if err := Initialize(Configuration{LogFile: logFile, ErrorFile: errFile, Level: "debug"}); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	t.Cleanup(func() { Set(nil) })

	Debug("debug line")
	Error("error line")
	_ = Sync()

	all, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(all), "debug line") || !strings.Contains(string(all), "error line") {
		t.Fatalf("log file missing entries: %s", all)
	}
	errs, err := os.ReadFile(errFile)
	if err != nil {
		t.Fatalf("read error log: %v", err)
	}
	if strings.Contains(string(errs), "debug line") || !strings.Contains(string(errs), "error line") {
		t.Fatalf("error file should hold only errors: %s", errs)
	}
}
