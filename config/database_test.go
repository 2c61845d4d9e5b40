package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDsnFromEnv(t *testing.T) {
	t.Setenv("DB_USER", "tesouraria")
	t.Setenv("DB_PASSWORD", "pw")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", "3306")
	t.Setenv("DB_NAME", "church")

	dsn := dsnFromEnv()
	assert.Contains(t, dsn, "tesouraria:pw@tcp(127.0.0.1:3306)/church?")
	assert.Contains(t, dsn, "parseTime=true")

	t.Setenv("DB_HOST", "/cloudsql/project:region:instance")
	assert.Contains(t, dsnFromEnv(), "@unix(/cloudsql/project:region:instance)/church")
}

func TestRetryDelay(t *testing.T) {
	assert.Equal(t, 2*time.Second, retryDelay(1))
	assert.Equal(t, 16*time.Second, retryDelay(4))
	assert.Equal(t, 30*time.Second, retryDelay(5))
	assert.Equal(t, 30*time.Second, retryDelay(12))
}

func TestConfigurePool(t *testing.T) {
	t.Setenv("DB_MAX_OPEN_CONNS", "7")
	t.Setenv("DB_MAX_IDLE_CONNS", "")
	t.Setenv("DB_CONN_MAX_LIFETIME_SECONDS", "0")
	t.Setenv("DB_CONN_MAX_IDLE_TIME_SECONDS", "x")

	var open, idle int
	var lifetime, idleTime time.Duration
	configurePool(
		func(n int) { open = n },
		func(n int) { idle = n },
		func(d time.Duration) { lifetime = d },
		func(d time.Duration) { idleTime = d },
	)
	assert.Equal(t, 7, open)
	assert.Equal(t, 10, idle)
	assert.Equal(t, time.Duration(0), lifetime)
	assert.Equal(t, 60*time.Second, idleTime)
}
