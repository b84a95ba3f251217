package ratelimit

import (
	"net/http"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Rule limits one method and path. A Path ending in "/" matches by prefix.
type Rule struct {
	Method string
	Path   string
	Limit  int // requests per Window; 0 means unlimited
	Window time.Duration
	Burst  int // defaults to Limit
}

// Config holds rate limiting configuration.
type Config struct {
	Enabled         bool
	DefaultLimit    int
	DefaultWindow   time.Duration
	CleanupInterval time.Duration
	IdleTTL         time.Duration
	Whitelist       map[string]bool
	Blacklist       map[string]bool
	Rules           []Rule
}

// LoadConfig reads RATE_LIMIT_* variables from the environment.
func LoadConfig() *Config {
	v := viper.New()
	v.SetEnvPrefix("RATE_LIMIT")
	v.AutomaticEnv()
	v.SetDefault("ENABLED", true)
	v.SetDefault("DEFAULT_LIMIT", 600)
	v.SetDefault("DEFAULT_WINDOW", time.Minute)
	v.SetDefault("MODEL_LIMIT", 30)
	v.SetDefault("MODEL_WINDOW", time.Hour)
	v.SetDefault("CLEANUP_INTERVAL", 5*time.Minute)

	if !v.GetBool("ENABLED") {
		return &Config{Enabled: false}
	}

	return &Config{
		Enabled:         true,
		DefaultLimit:    v.GetInt("DEFAULT_LIMIT"),
		DefaultWindow:   v.GetDuration("DEFAULT_WINDOW"),
		CleanupInterval: v.GetDuration("CLEANUP_INTERVAL"),
		IdleTTL:         time.Hour,
		Whitelist:       parseIPList(v.GetString("WHITELIST")),
		Blacklist:       parseIPList(v.GetString("BLACKLIST")),
		Rules:           DefaultRules(v.GetInt("MODEL_LIMIT"), v.GetDuration("MODEL_WINDOW")),
	}
}

// DefaultRules returns the per-endpoint rules. Endpoints that can reach the
// generative model get the model limit; probes are unlimited.
func DefaultRules(modelLimit int, modelWindow time.Duration) []Rule {
	burst := max(modelLimit/10, 1)
	model := func(method, path string) Rule {
		return Rule{Method: method, Path: path, Limit: modelLimit, Window: modelWindow, Burst: burst}
	}
	return []Rule{
		{Method: http.MethodGet, Path: "/health"},
		{Method: http.MethodGet, Path: "/metrics"},
		{Method: http.MethodGet, Path: "/"},

		model(http.MethodPost, "/api/calculate-score-gemini"),
		model(http.MethodPost, "/api/ai-insights-gemini"),
		model(http.MethodPost, "/api/workflow/financials"),
		model(http.MethodPost, "/api/workflow/continue"),
		model(http.MethodPost, "/api/chat"),

		{Method: http.MethodPost, Path: "/api/auth/anonymous", Limit: 20, Window: time.Minute, Burst: 5},
	}
}

// Match returns the rule for a request, or nil when the default applies.
// Exact paths win over prefixes.
func Match(method, path string, rules []Rule) *Rule {
	for i := range rules {
		if rules[i].Method == method && rules[i].Path == path {
			return &rules[i]
		}
	}
	for i := range rules {
		r := &rules[i]
		if r.Method == method && strings.HasSuffix(r.Path, "/") && r.Path != "/" && strings.HasPrefix(path, r.Path) {
			return r
		}
	}
	return nil
}

func parseIPList(list string) map[string]bool {
	result := make(map[string]bool)
	for _, ip := range strings.Split(list, ",") {
		if ip = strings.TrimSpace(ip); ip != "" {
			result[ip] = true
		}
	}
	return result
}
