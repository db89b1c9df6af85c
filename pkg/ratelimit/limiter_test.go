package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/linelogic/fraudgate/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() config.RateLimitConfig {
	return config.RateLimitConfig{
		EdgeWindowSeconds: 3600,
		EdgeMaxAttempts:   10,
		RedisPrefix:       "fg",
	}
}

func TestNewLimiter(t *testing.T) {
	client, _ := redismock.NewClientMock()
	cfg := testConfig()

	limiter := NewLimiter(client, cfg)

	assert.NotNil(t, limiter)
	assert.NotNil(t, limiter.client)
	assert.NotNil(t, limiter.script)
	assert.Equal(t, cfg.EdgeMaxAttempts, limiter.cfg.EdgeMaxAttempts)
	assert.Equal(t, cfg.RedisPrefix, limiter.cfg.RedisPrefix)
}

func TestKeyFormat(t *testing.T) {
	client, _ := redismock.NewClientMock()
	cfg := testConfig()
	cfg.RedisPrefix = "custom"
	limiter := NewLimiter(client, cfg)

	assert.Equal(t, "custom:edge:1.2.3.4", limiter.Key("1.2.3.4"))
}

func TestAllow_NonPositiveLimitBypasses(t *testing.T) {
	client, _ := redismock.NewClientMock()
	cfg := testConfig()
	cfg.EdgeMaxAttempts = 0
	limiter := NewLimiter(client, cfg)

	result, err := limiter.Allow(context.Background(), "1.2.3.4")

	require.NoError(t, err)
	assert.True(t, result.Allowed)
	assert.Zero(t, result.RetryAfter)
}

func TestAllow_UnderLimit(t *testing.T) {
	client, mock := redismock.NewClientMock()
	limiter := NewLimiter(client, testConfig())

	mock.ExpectEvalSha(limiter.script.Hash(), []string{"fg:edge:1.2.3.4"}, 3600).
		SetVal([]interface{}{int64(3), int64(3500)})

	result, err := limiter.Allow(context.Background(), "1.2.3.4")

	require.NoError(t, err)
	assert.True(t, result.Allowed)
	assert.Equal(t, 3, result.Attempts)
	assert.Equal(t, 7, result.Remaining)
	assert.Zero(t, result.RetryAfter)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAllow_AtLimitStillAllowed(t *testing.T) {
	client, mock := redismock.NewClientMock()
	limiter := NewLimiter(client, testConfig())

	mock.ExpectEvalSha(limiter.script.Hash(), []string{"fg:edge:1.2.3.4"}, 3600).
		SetVal([]interface{}{int64(10), int64(1800)})

	result, err := limiter.Allow(context.Background(), "1.2.3.4")

	require.NoError(t, err)
	assert.True(t, result.Allowed)
	assert.Equal(t, 10, result.Attempts)
	assert.Equal(t, 0, result.Remaining)
}

func TestAllow_OverLimitDeniedWithRetryAfter(t *testing.T) {
	client, mock := redismock.NewClientMock()
	limiter := NewLimiter(client, testConfig())

	mock.ExpectEvalSha(limiter.script.Hash(), []string{"fg:edge:5.6.7.8"}, 3600).
		SetVal([]interface{}{int64(11), int64(1200)})

	result, err := limiter.Allow(context.Background(), "5.6.7.8")

	require.NoError(t, err)
	assert.False(t, result.Allowed)
	assert.Equal(t, 11, result.Attempts)
	assert.Equal(t, 0, result.Remaining)
	assert.Equal(t, 1200*time.Second, result.RetryAfter)
}

func TestAllow_NegativeTTLFallsBackToWindow(t *testing.T) {
	client, mock := redismock.NewClientMock()
	limiter := NewLimiter(client, testConfig())

	mock.ExpectEvalSha(limiter.script.Hash(), []string{"fg:edge:5.6.7.8"}, 3600).
		SetVal([]interface{}{int64(11), int64(-1)})

	result, err := limiter.Allow(context.Background(), "5.6.7.8")

	require.NoError(t, err)
	assert.False(t, result.Allowed)
	assert.Equal(t, 3600*time.Second, result.RetryAfter)
}

func TestAllow_RedisErrorSurfaces(t *testing.T) {
	client, mock := redismock.NewClientMock()
	limiter := NewLimiter(client, testConfig())

	mock.ExpectEvalSha(limiter.script.Hash(), []string{"fg:edge:1.2.3.4"}, 3600).
		SetErr(errors.New("connection refused"))

	_, err := limiter.Allow(context.Background(), "1.2.3.4")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limit script")
}

func TestScriptHash_Deterministic(t *testing.T) {
	client, _ := redismock.NewClientMock()
	cfg := testConfig()
	limiter1 := NewLimiter(client, cfg)
	limiter2 := NewLimiter(client, cfg)

	assert.Equal(t, limiter1.script.Hash(), limiter2.script.Hash())
	assert.NotEmpty(t, limiter1.script.Hash())
}

func TestToInt(t *testing.T) {
	tests := []struct {
		name   string
		input  interface{}
		expect int
	}{
		{"int64", int64(42), 42},
		{"int", int(99), 99},
		{"string valid", "123", 123},
		{"string invalid", "abc", 0},
		{"float64", float64(7.9), 7},
		{"nil", nil, 0},
		{"negative int64", int64(-5), -5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expect, toInt(tt.input))
		})
	}
}

func TestConfigEdgeWindow(t *testing.T) {
	tests := []struct {
		name    string
		seconds int
		expect  time.Duration
	}{
		{"positive", 3600, time.Hour},
		{"zero falls back", 0, time.Hour},
		{"negative falls back", -1, time.Hour},
		{"custom", 120, 2 * time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.RateLimitConfig{EdgeWindowSeconds: tt.seconds}
			assert.Equal(t, tt.expect, cfg.EdgeWindow())
		})
	}
}
