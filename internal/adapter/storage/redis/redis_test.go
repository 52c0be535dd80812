package redis

import (
	"context"
	"strconv"
	"testing"
	"time"

	"engagement-rewards/config"

	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRedisConfig(t *testing.T, s *miniredis.Miniredis) config.RedisConfig {
	port, err := strconv.Atoi(s.Port())
	require.NoError(t, err)
	return config.RedisConfig{Host: s.Host(), Port: port}
}

func TestNewClient_Connects(t *testing.T) {
	s := miniredis.RunT(t)

	client, err := NewClient(context.Background(), testRedisConfig(t, s), zerolog.Nop())
	require.NoError(t, err)
	defer client.Close()

	hc := NewHealthCheck(client)
	assert.Equal(t, "redis", hc.Name())
	assert.NoError(t, hc.Ping(context.Background()))
}

func TestNewClient_Unreachable(t *testing.T) {
	s := miniredis.RunT(t)
	cfg := testRedisConfig(t, s)
	s.Close()

	_, err := NewClient(context.Background(), cfg, zerolog.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pinging redis")
}

func TestHealthCheck_WritesKey(t *testing.T) {
	s := miniredis.RunT(t)
	client, err := NewClient(context.Background(), testRedisConfig(t, s), zerolog.Nop())
	require.NoError(t, err)
	defer client.Close()

	hc := NewHealthCheck(client)
	require.NoError(t, hc.Ping(context.Background()))
	assert.True(t, s.Exists(healthCheckKey))
	assert.Greater(t, s.TTL(healthCheckKey), time.Duration(0))

	s.SetError("READONLY You can't write against a read only replica.")
	err = hc.Ping(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis write check")
}
