package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubPG struct{ err error }

func (s stubPG) Ping(ctx context.Context) error { return s.err }

type stubRedis struct{ err error }

func (s stubRedis) Ping(ctx context.Context) *redis.StatusCmd {
	cmd := redis.NewStatusCmd(ctx)
	if s.err != nil {
		cmd.SetErr(s.err)
	}
	return cmd
}

func newHealthHandler(pgErr, redisErr error) *HealthHandler {
	return &HealthHandler{
		pg:      stubPG{err: pgErr},
		redis:   stubRedis{err: redisErr},
		env:     "test",
		version: "test",
	}
}

func TestLiveness(t *testing.T) {
	h := newHealthHandler(nil, nil)

	rec := httptest.NewRecorder()
	h.Liveness(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp LivenessResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "test", resp.Version)
}

func TestReadinessAllUp(t *testing.T) {
	h := newHealthHandler(nil, nil)

	rec := httptest.NewRecorder()
	h.Readiness(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp ReadinessResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "ok", resp.Dependencies["postgres"].Status)
	assert.Equal(t, "ok", resp.Dependencies["redis"].Status)
}

func TestReadinessPostgresDownIsError(t *testing.T) {
	h := newHealthHandler(errors.New("connection refused"), nil)

	rec := httptest.NewRecorder()
	h.Readiness(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var resp ReadinessResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, "down", resp.Dependencies["postgres"].Status)
	assert.NotEmpty(t, resp.Dependencies["postgres"].Impact)
}

func TestReadinessRedisDownIsDegraded(t *testing.T) {
	h := newHealthHandler(nil, errors.New("connection refused"))

	rec := httptest.NewRecorder()
	h.Readiness(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	// Degraded, not out of rotation: availability reads do not need Redis.
	require.Equal(t, http.StatusOK, rec.Code)
	var resp ReadinessResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "degraded", resp.Status)
	assert.Equal(t, "ok", resp.Dependencies["postgres"].Status)
	assert.Equal(t, "down", resp.Dependencies["redis"].Status)
}
