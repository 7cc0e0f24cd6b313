package ratelimit

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// EndpointConfig limits one route. Path uses the patterns understood by
// MatchEndpoint. Burst defaults to Limit when zero.
type EndpointConfig struct {
	Path   string
	Method string
	Limit  int
	Window time.Duration
	Burst  int
}

// LoadConfig reads RATE_LIMIT_* environment variables.
func LoadConfig() *Config {
	enabled := getEnvBool("RATE_LIMIT_ENABLED", true)
	if !enabled {
		return &Config{Enabled: false}
	}

	defaultLimit := getEnvInt("RATE_LIMIT_DEFAULT_LIMIT", 1000)
	defaultWindow := getEnvDuration("RATE_LIMIT_DEFAULT_WINDOW", time.Minute)
	cleanupInterval := getEnvDuration("RATE_LIMIT_CLEANUP_INTERVAL", 5*time.Minute)
	idleTTL := getEnvDuration("RATE_LIMIT_IDLE_TTL", time.Hour)

	whitelist := parseIPList(getEnvString("RATE_LIMIT_WHITELIST", ""))
	blacklist := parseIPList(getEnvString("RATE_LIMIT_BLACKLIST", ""))

	return &Config{
		Enabled:         enabled,
		DefaultLimit:    defaultLimit,
		DefaultWindow:   defaultWindow,
		CleanupInterval: cleanupInterval,
		IdleTTL:         idleTTL,
		Whitelist:       whitelist,
		Blacklist:       blacklist,
		EndpointConfigs: DefaultEndpointConfigs(),
	}
}

// DefaultEndpointConfigs limits pipeline runs hardest since each one makes
// several generation calls. Reads fall through to the default limit and
// /health is never limited.
func DefaultEndpointConfigs() []EndpointConfig {
	return []EndpointConfig{
		{Path: "/roadmap", Method: "POST", Limit: getEnvInt("RATE_LIMIT_ROADMAP_PER_HOUR", 10), Window: time.Hour, Burst: 2},
		{Path: "/search_posts", Method: "POST", Limit: getEnvInt("RATE_LIMIT_SEARCH_PER_MINUTE", 100), Window: time.Minute, Burst: 10},
		{Path: "/runs/{id}", Method: "GET", Limit: 300, Window: time.Minute, Burst: 30},
	}
}

// envOr parses the environment variable key, falling back to def when it
// is unset or malformed.
func envOr[T any](key string, def T, parse func(string) (T, error)) T {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	v, err := parse(raw)
	if err != nil {
		return def
	}
	return v
}

func getEnvString(key, def string) string {
	return envOr(key, def, func(s string) (string, error) { return s, nil })
}

func getEnvInt(key string, def int) int {
	return envOr(key, def, strconv.Atoi)
}

func getEnvBool(key string, def bool) bool {
	return envOr(key, def, strconv.ParseBool)
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	return envOr(key, def, time.ParseDuration)
}

// parseIPList turns "a, b,,c" into a set.
func parseIPList(list string) map[string]bool {
	result := make(map[string]bool)
	for _, ip := range strings.Split(list, ",") {
		if ip = strings.TrimSpace(ip); ip != "" {
			result[ip] = true
		}
	}
	return result
}
