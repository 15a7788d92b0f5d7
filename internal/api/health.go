package api

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// pgPinger and redisPinger are the probe seams behind the readiness check.
type pgPinger interface {
	Ping(ctx context.Context) error
}

type redisPinger interface {
	Ping(ctx context.Context) *redis.StatusCmd
}

// HealthHandler reports process liveness and dependency readiness. Postgres
// down takes the whole service out; Redis down only loses the booking lock,
// availability reads keep working, so the service reports degraded and stays
// in rotation.
type HealthHandler struct {
	pg      pgPinger
	redis   redisPinger
	env     string
	version string
}

func NewHealthHandler(pgPool *pgxpool.Pool, redis *redis.Client, env, version string) *HealthHandler {
	return &HealthHandler{
		pg:      pgPool,
		redis:   redis,
		env:     env,
		version: version,
	}
}

type LivenessResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Env     string `json:"env,omitempty"`
}

// DependencyStatus names what a down dependency costs this service, so an
// operator reading the probe output knows what still works.
type DependencyStatus struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
	Impact string `json:"impact,omitempty"`
}

type ReadinessResponse struct {
	Status       string                      `json:"status"`
	Version      string                      `json:"version,omitempty"`
	Env          string                      `json:"env,omitempty"`
	Dependencies map[string]DependencyStatus `json:"dependencies"`
}

func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	resp := LivenessResponse{
		Status:  "ok",
		Version: h.version,
		Env:     h.env,
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	deps := make(map[string]DependencyStatus, 2)
	status := "ok"

	if err := h.pingPostgres(ctx); err != nil {
		deps["postgres"] = DependencyStatus{
			Status: "down",
			Error:  err.Error(),
			Impact: "appointments and availability unavailable",
		}
		status = "error"
	} else {
		deps["postgres"] = DependencyStatus{Status: "ok"}
	}

	if err := h.pingRedis(ctx); err != nil {
		deps["redis"] = DependencyStatus{
			Status: "down",
			Error:  err.Error(),
			Impact: "booking lock unavailable, availability reads unaffected",
		}
		if status == "ok" {
			status = "degraded"
		}
	} else {
		deps["redis"] = DependencyStatus{Status: "ok"}
	}

	resp := ReadinessResponse{
		Status:       status,
		Version:      h.version,
		Env:          h.env,
		Dependencies: deps,
	}

	httpStatus := http.StatusOK
	if status == "error" {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, resp)
}

func (h *HealthHandler) pingPostgres(ctx context.Context) error {
	pgCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	return h.pg.Ping(pgCtx)
}

func (h *HealthHandler) pingRedis(ctx context.Context) error {
	rCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	return h.redis.Ping(rCtx).Err()
}
