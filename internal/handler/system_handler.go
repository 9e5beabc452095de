package handler

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/stemsi/exstem-assessment/internal/config"
	"github.com/stemsi/exstem-assessment/internal/response"
	"github.com/stemsi/exstem-assessment/internal/service"
)

const healthTimeout = 2 * time.Second

// SystemHandler reports liveness and runtime figures of this instance.
type SystemHandler struct {
	checks     map[string]func(context.Context) error
	queueDepth func(context.Context) (int64, error)
	assessment *service.AssessmentService
	instanceID string
	startTime  time.Time
}

func NewSystemHandler(pool *pgxpool.Pool, rdb *redis.Client, assessment *service.AssessmentService, instanceID string) *SystemHandler {
	return &SystemHandler{
		checks: map[string]func(context.Context) error{
			"postgres": pool.Ping,
			"redis": func(ctx context.Context) error {
				return rdb.Ping(ctx).Err()
			},
		},
		queueDepth: func(ctx context.Context) (int64, error) {
			return rdb.LLen(ctx, config.WorkerKey.PersistAnswersQueue).Result()
		},
		assessment: assessment,
		instanceID: instanceID,
		startTime:  time.Now(),
	}
}

// Health godoc
// GET /health
// Returns 503 when a backing store is unreachable.
func (h *SystemHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	status := http.StatusOK
	deps := make(map[string]string, len(h.checks))
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			deps[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		deps[name] = "ok"
	}

	c.JSON(status, gin.H{"status": http.StatusText(status), "dependencies": deps})
}

type runtimeStats struct {
	InstanceID    string `json:"instance_id"`
	Uptime        string `json:"uptime"`
	ActiveTests   int    `json:"active_tests"`
	AuditQueueLen int64  `json:"audit_queue_len"`
	Goroutines    int    `json:"goroutines"`
	HeapAlloc     uint64 `json:"heap_alloc"`
	NumGC         uint32 `json:"num_gc"`
	GoVersion     string `json:"go_version"`
}

// Runtime godoc
// GET /api/v1/admin/system
func (h *SystemHandler) Runtime(c *gin.Context) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	stats := runtimeStats{
		InstanceID:  h.instanceID,
		Uptime:      time.Since(h.startTime).Round(time.Second).String(),
		ActiveTests: h.assessment.ActiveCount(),
		Goroutines:  runtime.NumGoroutine(),
		HeapAlloc:   mem.HeapAlloc,
		NumGC:       mem.NumGC,
		GoVersion:   runtime.Version(),
	}
	if depth, err := h.queueDepth(c.Request.Context()); err == nil {
		stats.AuditQueueLen = depth
	} else {
		_ = c.Error(err)
	}

	response.Success(c, http.StatusOK, stats)
}
