package logging

import (
	"testing"

	"okx-spread-bot/internal/config"

	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	cases := []struct {
		in   string
		want zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"info", zapcore.InfoLevel},
		{"warn", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"bogus", zapcore.InfoLevel},
		{"", zapcore.InfoLevel},
	}
	for _, c := range cases {
		if got := ParseLevel(c.in, zapcore.InfoLevel); got != c.want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestLevelWindow(t *testing.T) {
	window := levelWindow{min: zapcore.InfoLevel, max: zapcore.WarnLevel}
	if window.Enabled(zapcore.DebugLevel) {
		t.Fatal("debug admitted below window")
	}
	if !window.Enabled(zapcore.InfoLevel) || !window.Enabled(zapcore.WarnLevel) {
		t.Fatal("levels inside window rejected")
	}
	if window.Enabled(zapcore.ErrorLevel) {
		t.Fatal("error admitted above window")
	}
}

func TestNewFeedDisabled(t *testing.T) {
	logger := NewFeed(config.FeedLogConfig{Enabled: false})
	if logger.Core().Enabled(zapcore.ErrorLevel) {
		t.Fatal("disabled feed logger should be a nop")
	}
}

func TestNewFeedWindow(t *testing.T) {
	logger := NewFeed(config.FeedLogConfig{Enabled: true, MinLevel: "warn", MaxLevel: "warn"})
	core := logger.Core()
	if core.Enabled(zapcore.InfoLevel) {
		t.Fatal("info admitted below window")
	}
	if !core.Enabled(zapcore.WarnLevel) {
		t.Fatal("warn rejected inside window")
	}
	if core.Enabled(zapcore.ErrorLevel) {
		t.Fatal("error admitted above window")
	}
}
