package config

import (
	"testing"
	"time"
)

func TestGetSystemSettingDuration(t *testing.T) {
	t.Setenv(ENGINE_CHECK_DB_INTERVAL, "250ms")
	if got := GetSystemSettingDuration(ENGINE_CHECK_DB_INTERVAL, time.Second); got != 250*time.Millisecond {
		t.Errorf("expected 250ms, got %s", got)
	}

	t.Setenv(ENGINE_CHECK_DB_INTERVAL, "soon")
	if got := GetSystemSettingDuration(ENGINE_CHECK_DB_INTERVAL, time.Second); got != time.Second {
		t.Errorf("expected fallback for unparseable value, got %s", got)
	}

	t.Setenv(ENGINE_CHECK_DB_INTERVAL, "-5s")
	if got := GetSystemSettingDuration(ENGINE_CHECK_DB_INTERVAL, time.Second); got != time.Second {
		t.Errorf("expected fallback for non-positive value, got %s", got)
	}

	// unset falls through to the built-in default for the key
	t.Setenv(ENGINE_CHECK_DB_INTERVAL, "")
	if got := GetSystemSettingDuration(ENGINE_CHECK_DB_INTERVAL, time.Second); got != 3*time.Second {
		t.Errorf("expected built-in 3s default, got %s", got)
	}
}
