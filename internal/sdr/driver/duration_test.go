package driver

import (
	"encoding/json"
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

func TestTimeDurationString(t *testing.T) {
	testCases := []struct {
		in   time.Duration
		want string
	}{
		{0, "0s"},
		{30 * time.Second, "30s"},
		{15 * time.Minute, "15m"},
		{2 * time.Hour, "2h"},
		{90 * time.Second, "90s"},
		{1500 * time.Millisecond, "1.5s"},
	}

	for _, tc := range testCases {
		t.Run(tc.want, func(t *testing.T) {
			if got := NewTimeDuration(tc.in).String(); got != tc.want {
				t.Errorf("String() = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestTimeDurationValidate(t *testing.T) {
	if err := NewTimeDuration(500 * time.Millisecond).Validate(); err == nil {
		t.Error("expected sub-second duration to be rejected")
	}
	if err := NewTimeDuration(-time.Second).Validate(); err == nil {
		t.Error("expected negative duration to be rejected")
	}
	if err := NewTimeDuration(time.Second).Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestTimeDurationUnmarshal(t *testing.T) {
	var cfg struct {
		Interval TimeDuration `yaml:"interval" json:"interval"`
	}

	if err := yaml.Unmarshal([]byte("interval: 45s\n"), &cfg); err != nil {
		t.Fatalf("Failed to unmarshal YAML: %v", err)
	}
	if cfg.Interval.Duration() != 45*time.Second {
		t.Errorf("YAML interval = %s", cfg.Interval.Duration())
	}

	if err := json.Unmarshal([]byte(`{"interval":"2m"}`), &cfg); err != nil {
		t.Fatalf("Failed to unmarshal JSON: %v", err)
	}
	if cfg.Interval.Duration() != 2*time.Minute {
		t.Errorf("JSON interval = %s", cfg.Interval.Duration())
	}

	if err := yaml.Unmarshal([]byte("interval: soon\n"), &cfg); err == nil {
		t.Error("expected error for invalid duration")
	}

	out, err := json.Marshal(cfg)
	if err != nil {
		t.Fatalf("Failed to marshal JSON: %v", err)
	}
	if string(out) != `{"interval":"2m"}` {
		t.Errorf("marshalled = %s", out)
	}
}
