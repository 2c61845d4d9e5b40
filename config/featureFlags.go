package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultTimezone        = "America/Sao_Paulo"
	defaultSummaryEndShift = -3
)

// DefaultTimezone is used when a request does not carry one.
//
// Set via env:
// - DEFAULT_TIMEZONE=America/Sao_Paulo
func DefaultTimezone() string {
	if v := strings.TrimSpace(os.Getenv("DEFAULT_TIMEZONE")); v != "" {
		return v
	}
	return defaultTimezone
}

// SummaryEndShift is added to the end-of-day boundary of a summary period.
// The historical value of -3h matches the deployment locale (UTC-3) and has not been confirmed as a general rule.
//
// Set via env:
// - SUMMARY_END_SHIFT_HOURS=-3
func SummaryEndShift() time.Duration {
	hours := defaultSummaryEndShift
	if v := strings.TrimSpace(os.Getenv("SUMMARY_END_SHIFT_HOURS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			hours = n
		}
	}
	return time.Duration(hours) * time.Hour
}

// DetachLaunchesOnSummaryDelete also clears summary_id on the launches of a deleted summary.
// Off by default: deletion historically leaves the reference in place.
//
// Set via env:
// - SUMMARY_DELETE_DETACH_LAUNCHES=true
func DetachLaunchesOnSummaryDelete() bool {
	return envBool("SUMMARY_DELETE_DETACH_LAUNCHES")
}

// SkipMigrations disables AutoMigrate on startup.
func SkipMigrations() bool {
	return envBool("SKIP_MIGRATIONS")
}

// TokenLifespan is the session and principal cache lifetime (TOKEN_HOUR_LIFESPAN, default 24h).
func TokenLifespan() time.Duration {
	return time.Duration(intFromEnv("TOKEN_HOUR_LIFESPAN", 24)) * time.Hour
}

func envBool(key string) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	return v == "1" || v == "true" || v == "yes" || v == "y"
}
