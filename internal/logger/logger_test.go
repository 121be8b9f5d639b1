package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name     string
		env      string
		level    string
		encoding string
		wantErr  bool
	}{
		{"dev console", "dev", "debug", "console", false},
		{"prod json", "prod", "info", "json", false},
		{"default encoding", "test", "warn", "", false},
		{"invalid level", "dev", "verbose", "json", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lg, err := New(tt.env, tt.level, tt.encoding, "catalog-shop", "test")
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && lg == nil {
				t.Fatal("New() returned nil logger")
			}
		})
	}
}

func TestNew_LevelFilter(t *testing.T) {
	lg, err := New("prod", "warn", "json", "catalog-shop", "test")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if lg.Core().Enabled(zapcore.DebugLevel) {
		t.Error("debug should be disabled at warn level")
	}
	if !lg.Core().Enabled(zapcore.WarnLevel) {
		t.Error("warn should be enabled at warn level")
	}
}

func TestNew_WithFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.log")

	lg, err := New("dev", "info", "console", "catalog-shop", "1.2.3", WithFile(path, 1, 1, 1))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	lg.Info("order placed")
	_ = lg.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	content := string(data)
	for _, want := range []string{"order placed", `"service":"catalog-shop"`, `"version":"1.2.3"`} {
		if !strings.Contains(content, want) {
			t.Errorf("log file missing %s: %s", want, content)
		}
	}
}
