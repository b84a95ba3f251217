package ratelimit

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg := LoadConfig()

	require.True(t, cfg.Enabled)
	assert.Equal(t, 600, cfg.DefaultLimit)
	assert.Equal(t, time.Minute, cfg.DefaultWindow)
	assert.Empty(t, cfg.Whitelist)

	rule := Match(http.MethodPost, "/api/calculate-score-gemini", cfg.Rules)
	require.NotNil(t, rule)
	assert.Equal(t, 30, rule.Limit)
	assert.Equal(t, time.Hour, rule.Window)
	assert.Equal(t, 3, rule.Burst)
}

func TestLoadConfig_FromEnv(t *testing.T) {
	t.Setenv("RATE_LIMIT_DEFAULT_LIMIT", "50")
	t.Setenv("RATE_LIMIT_MODEL_LIMIT", "5")
	t.Setenv("RATE_LIMIT_MODEL_WINDOW", "10m")
	t.Setenv("RATE_LIMIT_WHITELIST", "127.0.0.1, ::1 ,")

	cfg := LoadConfig()
	assert.Equal(t, 50, cfg.DefaultLimit)
	assert.Equal(t, map[string]bool{"127.0.0.1": true, "::1": true}, cfg.Whitelist)

	rule := Match(http.MethodPost, "/api/chat", cfg.Rules)
	require.NotNil(t, rule)
	assert.Equal(t, 5, rule.Limit)
	assert.Equal(t, 10*time.Minute, rule.Window)
	assert.Equal(t, 1, rule.Burst)
}

func TestLoadConfig_Disabled(t *testing.T) {
	t.Setenv("RATE_LIMIT_ENABLED", "false")
	assert.False(t, LoadConfig().Enabled)
}

func TestMatch(t *testing.T) {
	rules := []Rule{
		{Method: http.MethodGet, Path: "/"},
		{Method: http.MethodPost, Path: "/api/workflow/", Limit: 1},
		{Method: http.MethodPost, Path: "/api/workflow/financials", Limit: 2},
	}

	tests := []struct {
		method, path string
		want         int // index into rules, -1 for none
	}{
		{http.MethodGet, "/", 0},
		{http.MethodGet, "/api/workflow", -1},
		{http.MethodPost, "/api/workflow/personal", 1},
		{http.MethodPost, "/api/workflow/financials", 2},
		{http.MethodGet, "/api/workflow/personal", -1},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			got := Match(tt.method, tt.path, rules)
			if tt.want < 0 {
				assert.Nil(t, got)
				return
			}
			assert.Same(t, &rules[tt.want], got)
		})
	}
}
