package logger

import (
	"testing"

	"productradar/internal/config"
)

func TestNew_UnknownLevelFallsBackToInfo(t *testing.T) {
	l, err := New(config.LogConfig{Level: "loud", Encoding: "json"})
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if l.Core().Enabled(-1) {
		t.Fatalf("debug enabled for fallback level")
	}
	if !l.Core().Enabled(0) {
		t.Fatalf("info disabled for fallback level")
	}
}

func TestOrNop(t *testing.T) {
	if OrNop(nil) == nil {
		t.Fatalf("OrNop(nil) returned nil")
	}
}
