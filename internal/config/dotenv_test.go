package config

import "testing"

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Quorum != 5 {
		t.Errorf("Quorum = %d, want 5", cfg.Quorum)
	}
	if cfg.ShortRoundSeconds != 60 || cfg.LongRoundSeconds != 300 {
		t.Errorf("round allowances = %d/%d, want 60/300", cfg.ShortRoundSeconds, cfg.LongRoundSeconds)
	}
	if cfg.IntermissionSeconds != 10 {
		t.Errorf("IntermissionSeconds = %d, want 10", cfg.IntermissionSeconds)
	}
	if !cfg.ForceResolve {
		t.Error("ForceResolve should default to true")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("QUORUM", "3")
	t.Setenv("SHORT_ROUND_SECONDS", "15")
	t.Setenv("LONG_ROUND_SECONDS", "45")
	t.Setenv("INTERMISSION_SECONDS", "2")
	t.Setenv("FORCE_RESOLVE", "false")

	cfg := Load()
	if cfg.Quorum != 3 {
		t.Errorf("Quorum = %d, want 3", cfg.Quorum)
	}
	if cfg.ShortRoundSeconds != 15 || cfg.LongRoundSeconds != 45 {
		t.Errorf("round allowances = %d/%d, want 15/45", cfg.ShortRoundSeconds, cfg.LongRoundSeconds)
	}
	if cfg.IntermissionSeconds != 2 {
		t.Errorf("IntermissionSeconds = %d, want 2", cfg.IntermissionSeconds)
	}
	if cfg.ForceResolve {
		t.Error("ForceResolve should be disabled")
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("QUORUM", "1")
	t.Setenv("SHORT_ROUND_SECONDS", "zero")
	t.Setenv("FORCE_RESOLVE", "maybe")

	cfg := Load()
	if cfg.Quorum != 5 {
		t.Errorf("Quorum = %d, want default 5 for out-of-range value", cfg.Quorum)
	}
	if cfg.ShortRoundSeconds != 60 {
		t.Errorf("ShortRoundSeconds = %d, want default 60 for junk value", cfg.ShortRoundSeconds)
	}
	if !cfg.ForceResolve {
		t.Error("ForceResolve should keep its default on junk input")
	}
}
