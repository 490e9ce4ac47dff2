package delivery

import (
	"context"
	"net/http"
	"time"

	"adsync/internal/domain"
	"adsync/pkg/logger"
	"adsync/pkg/metrics"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// handles HTTP requests
type HTTPHandlers struct {
	syncService domain.SyncRunner
	runs        domain.RunRepository
	logger      *logger.Logger
	metrics     *metrics.Metrics
}

// creates new HTTP handlers
func NewHTTPHandlers(
	syncService domain.SyncRunner,
	runs domain.RunRepository,
	logger *logger.Logger,
	metrics *metrics.Metrics,
) *HTTPHandlers {
	return &HTTPHandlers{
		syncService: syncService,
		runs:        runs,
		logger:      logger,
		metrics:     metrics,
	}
}

// number of trailing days re-synced for a single target date; older windows
// are re-pulled because late-arriving attribution changes revenue figures
const defaultLookbackDays = 27

// SyncRun triggers a sync run and acknowledges immediately. The run itself
// takes minutes because of intentional rate-limit pauses, so the caller must
// not block on it: the run summary is the completion side channel.
func (h *HTTPHandlers) SyncRun(c *gin.Context) {
	start := time.Now()
	h.metrics.IncHTTPRequestsInFlight()
	defer h.metrics.DecHTTPRequestsInFlight()

	requestID := uuid.New().String()

	rangeStart, rangeEnd, err := h.parseRange(c)
	if err != nil {
		h.metrics.RecordHTTPRequest("POST", "/sync/run", "400", time.Since(start))
		c.JSON(http.StatusBadRequest, gin.H{
			"error":      "Invalid date parameters",
			"message":    err.Error(),
			"request_id": requestID,
		})
		return
	}

	runID := uuid.New().String()

	// detach from the request context: the run outlives this request
	runCtx := context.WithValue(context.Background(), logger.RequestIDKey, requestID)
	go func() {
		if _, err := h.syncService.Run(runCtx, runID, rangeStart, rangeEnd); err != nil {
			h.logger.WithContext(runCtx).WithError(err).WithField("run_id", runID).Error("Sync run failed to start")
		}
	}()

	h.metrics.RecordHTTPRequest("POST", "/sync/run", "202", time.Since(start))
	c.JSON(http.StatusAccepted, gin.H{
		"message":     "Sync run accepted",
		"run_id":      runID,
		"range_start": rangeStart.Format("2006-01-02"),
		"range_end":   rangeEnd.Format("2006-01-02"),
		"request_id":  requestID,
	})
}

// GetRun returns the stored summary for one run.
func (h *HTTPHandlers) GetRun(c *gin.Context) {
	start := time.Now()
	h.metrics.IncHTTPRequestsInFlight()
	defer h.metrics.DecHTTPRequestsInFlight()

	requestID := uuid.New().String()
	runID := c.Param("id")

	summary, err := h.runs.Get(c.Request.Context(), runID)
	if err != nil {
		h.metrics.RecordHTTPRequest("GET", "/sync/runs/:id", "404", time.Since(start))
		c.JSON(http.StatusNotFound, gin.H{
			"error":      "Run not found",
			"run_id":     runID,
			"request_id": requestID,
		})
		return
	}

	h.metrics.RecordHTTPRequest("GET", "/sync/runs/:id", "200", time.Since(start))
	c.JSON(http.StatusOK, gin.H{
		"run":        summary,
		"request_id": requestID,
	})
}

// HealthCheck returns the health status of the service
func (h *HTTPHandlers) HealthCheck(c *gin.Context) {
	start := time.Now()
	h.metrics.IncHTTPRequestsInFlight()
	defer h.metrics.DecHTTPRequestsInFlight()

	health := gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"service":   "adsync",
		"version":   "1.0.0",
	}

	h.metrics.RecordHTTPRequest("GET", "/health", "200", time.Since(start))
	c.JSON(http.StatusOK, health)
}

// parseRange resolves the requested sync range: an explicit start/end pair,
// or a target date (default yesterday) expanded to a trailing lookback so
// late attribution on older windows is re-synced.
func (h *HTTPHandlers) parseRange(c *gin.Context) (time.Time, time.Time, error) {
	if startStr := c.Query("start"); startStr != "" {
		rangeStart, err := time.Parse("2006-01-02", startStr)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		rangeEnd, err := time.Parse("2006-01-02", c.Query("end"))
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		return rangeStart, rangeEnd, nil
	}

	target := time.Now().UTC().AddDate(0, 0, -1)
	if dateStr := c.Query("date"); dateStr != "" {
		parsed, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		target = parsed
	}
	return target.AddDate(0, 0, -defaultLookbackDays), target, nil
}
