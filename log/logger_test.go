package log

import (
	"testing"

	"go.uber.org/zap"
)

func TestConfigureRejectsUnknownLevel(t *testing.T) {
	if err := Configure("loud", ""); err == nil {
		t.Fatal("expected unknown level to fail")
	}
}

func TestGetInstanceIsSingleton(t *testing.T) {
	if err := Configure("debug", ""); err != nil {
		t.Fatalf("configure failed: %v", err)
	}
	a := GetInstance()
	b := GetInstance()
	if a != b {
		t.Fatal("expected the same logger instance")
	}
	if !a.Core().Enabled(zap.DebugLevel) {
		t.Fatal("debug level not applied")
	}
}
