package observability

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/gqlregistry/registry-core/internal/domain/registry"
	"github.com/gqlregistry/registry-core/internal/pkg/logger"
)

// Metrics holds the process-wide counters/histograms/gauges. Nil-safe on every
// method so callers can pass a disabled *Metrics around without branching.
type Metrics struct {
	apiRequests *CounterVec
	apiLatency  *HistogramVec
	apiInflight *Gauge
	apiReqTotal *Counter
	apiReqError *Counter
	apiReqGood  *Counter

	checkTotal    *CounterVec
	checkDuration *HistogramVec
	checkStage    *HistogramVec

	publishTotal    *CounterVec
	publishDuration *HistogramVec

	deleteTotal *CounterVec

	lockWaitDuration *HistogramVec
	lockContention    *CounterVec

	idempotencyHit  *Counter
	idempotencyMiss *Counter

	artifactUploadDuration *HistogramVec
	artifactUploadError    *CounterVec

	pendingChecks *GaugeVec
	pgStats       *GaugeVec
	redisUp       *Gauge
	redisPing     *Gauge

	purgeRunTotal   *Counter
	purgeErrorTotal *Counter
	purgeExpired    *Counter

	sloLatencyThreshold float64
}

var (
	initOnce sync.Once
	instance *Metrics
)

// Enabled reports whether METRICS_ENABLED is set truthy.
func Enabled() bool {
	v := strings.TrimSpace(os.Getenv("METRICS_ENABLED"))
	if v == "" {
		return false
	}
	return strings.EqualFold(v, "true") || v == "1" || strings.EqualFold(v, "yes")
}

// Current returns the process-wide Metrics instance, or nil if disabled.
func Current() *Metrics {
	return instance
}

func parseFloatEnv(key string, fallback float64) float64 {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return fallback
	}
	return f
}

func scrapeInterval() time.Duration {
	v := strings.TrimSpace(os.Getenv("METRICS_SCRAPE_INTERVAL_SECONDS"))
	if v == "" {
		return 10 * time.Second
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 10 * time.Second
	}
	return time.Duration(n) * time.Second
}

// Init builds the singleton Metrics instance if METRICS_ENABLED is set.
func Init(log *logger.Logger) *Metrics {
	if !Enabled() {
		return nil
	}
	initOnce.Do(func() {
		latencyThreshold := parseFloatEnv("SLO_API_LATENCY_THRESHOLD_SECONDS", 0.5)
		instance = &Metrics{
			apiRequests: NewCounterVec("registry_api_requests_total", "Total API requests by method/route/status.", []string{"method", "route", "status"}),
			apiLatency: NewHistogramVec(
				"registry_api_request_duration_seconds",
				"API request latency in seconds by method/route/status.",
				[]string{"method", "route", "status"},
				[]float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			),
			apiInflight: NewGauge("registry_api_inflight_requests", "In-flight API requests."),
			apiReqTotal: NewCounter("registry_api_requests_total_all", "Total API requests (all)."),
			apiReqError: NewCounter("registry_api_requests_error_total", "Total API requests with 5xx status."),
			apiReqGood:  NewCounter("registry_api_requests_good_latency_total", "Total API requests under SLO latency threshold."),

			checkTotal: NewCounterVec(
				"registry_schema_check_total",
				"Schema checks run by project type and result.",
				[]string{"project_type", "result"},
			),
			checkDuration: NewHistogramVec(
				"registry_schema_check_duration_seconds",
				"End-to-end schema check duration in seconds.",
				[]string{"project_type", "result"},
				[]float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			),
			checkStage: NewHistogramVec(
				"registry_schema_check_stage_duration_seconds",
				"Duration of an individual check pipeline stage in seconds.",
				[]string{"stage", "outcome"},
				[]float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2},
			),

			publishTotal: NewCounterVec(
				"registry_schema_publish_total",
				"Schema publish attempts by project type and result.",
				[]string{"project_type", "result"},
			),
			publishDuration: NewHistogramVec(
				"registry_schema_publish_duration_seconds",
				"End-to-end publish duration in seconds, including artifact upload.",
				[]string{"project_type", "result"},
				[]float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 20},
			),

			deleteTotal: NewCounterVec(
				"registry_schema_delete_total",
				"Service delete attempts by result.",
				[]string{"result"},
			),

			lockWaitDuration: NewHistogramVec(
				"registry_lock_wait_duration_seconds",
				"Time spent waiting to acquire the per-target lock.",
				[]string{"outcome"},
				[]float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5},
			),
			lockContention: NewCounterVec(
				"registry_lock_contention_total",
				"Lock acquisition attempts that observed an existing holder.",
				[]string{"outcome"},
			),

			idempotencyHit:  NewCounter("registry_idempotency_cache_hit_total", "Idempotency cache hits."),
			idempotencyMiss: NewCounter("registry_idempotency_cache_miss_total", "Idempotency cache misses."),

			artifactUploadDuration: NewHistogramVec(
				"registry_artifact_upload_duration_seconds",
				"Artifact upload duration in seconds by artifact type.",
				[]string{"artifact_type"},
				[]float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			),
			artifactUploadError: NewCounterVec(
				"registry_artifact_upload_error_total",
				"Artifact upload failures by artifact type.",
				[]string{"artifact_type"},
			),

			pendingChecks: NewGaugeVec("registry_pending_schema_checks", "Pending (non-expired) schema checks by project type.", []string{"project_type"}),
			pgStats:       NewGaugeVec("registry_postgres_stats", "Postgres connection stats.", []string{"metric"}),
			redisUp:       NewGauge("registry_redis_up", "Redis connectivity (1=up, 0=down)."),
			redisPing:     NewGauge("registry_redis_ping_seconds", "Redis ping latency in seconds."),

			purgeRunTotal:   NewCounter("registry_expired_check_purge_total", "Expired-check purge ticks run."),
			purgeErrorTotal: NewCounter("registry_expired_check_purge_error_total", "Expired-check purge ticks that errored."),
			purgeExpired:    NewCounter("registry_expired_check_purge_rows_total", "Schema check rows deleted by the purge worker."),

			sloLatencyThreshold: latencyThreshold,
		}
		if log != nil {
			log.Info("Observability metrics enabled")
		}
	})
	return instance
}

func (m *Metrics) StartServer(ctx context.Context, log *logger.Logger, addr string) {
	if m == nil {
		return
	}
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           http.HandlerFunc(m.WriteHTTP),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = srv.Shutdown(shutdownCtx)
		cancel()
	}()
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if log != nil {
				log.Error("metrics server failed", "error", err, "addr", addr)
			}
		}
	}()
}

func (m *Metrics) WriteHTTP(w http.ResponseWriter, r *http.Request) {
	if m == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	_ = m.WritePrometheus(w)
}

func (m *Metrics) WritePrometheus(w io.Writer) error {
	if m == nil {
		return nil
	}
	writers := []interface{ WritePrometheus(io.Writer) error }{
		m.apiRequests, m.apiLatency, m.apiInflight, m.apiReqTotal, m.apiReqError, m.apiReqGood,
		m.checkTotal, m.checkDuration, m.checkStage,
		m.publishTotal, m.publishDuration,
		m.deleteTotal,
		m.lockWaitDuration, m.lockContention,
		m.idempotencyHit, m.idempotencyMiss,
		m.artifactUploadDuration, m.artifactUploadError,
		m.pendingChecks, m.pgStats, m.redisUp, m.redisPing,
		m.purgeRunTotal, m.purgeErrorTotal, m.purgeExpired,
	}
	for _, wr := range writers {
		if err := wr.WritePrometheus(w); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) ObserveAPI(method, route, status string, dur time.Duration) {
	if m == nil {
		return
	}
	if method == "" {
		method = "UNKNOWN"
	}
	if route == "" {
		route = "unknown"
	}
	if status == "" {
		status = "0"
	}
	m.apiRequests.Inc(method, route, status)
	m.apiLatency.Observe(dur.Seconds(), method, route, status)
	m.apiReqTotal.Inc()
	if isServerErrorStatus(status) {
		m.apiReqError.Inc()
	}
	if m.sloLatencyThreshold > 0 && dur.Seconds() <= m.sloLatencyThreshold {
		m.apiReqGood.Inc()
	}
}

func (m *Metrics) ApiInflightInc() {
	if m == nil {
		return
	}
	m.apiInflight.Inc()
}

func (m *Metrics) ApiInflightDec() {
	if m == nil {
		return
	}
	m.apiInflight.Dec()
}

// ObserveCheck records one completed check run (§4.6 end to end).
func (m *Metrics) ObserveCheck(projectType, result string, dur time.Duration) {
	if m == nil {
		return
	}
	m.checkTotal.Inc(projectType, result)
	m.checkDuration.Observe(dur.Seconds(), projectType, result)
}

// ObserveCheckStage records one pipeline stage outcome (§4.4).
func (m *Metrics) ObserveCheckStage(stage, outcome string, dur time.Duration) {
	if m == nil {
		return
	}
	m.checkStage.Observe(dur.Seconds(), stage, outcome)
}

// ObservePublish records one completed publish attempt (§4.6).
func (m *Metrics) ObservePublish(projectType, result string, dur time.Duration) {
	if m == nil {
		return
	}
	m.publishTotal.Inc(projectType, result)
	m.publishDuration.Observe(dur.Seconds(), projectType, result)
}

// IncDelete records a delete-service attempt outcome.
func (m *Metrics) IncDelete(result string) {
	if m == nil {
		return
	}
	m.deleteTotal.Inc(result)
}

// ObserveLockWait records the time spent acquiring the per-target lock.
func (m *Metrics) ObserveLockWait(outcome string, dur time.Duration) {
	if m == nil {
		return
	}
	m.lockWaitDuration.Observe(dur.Seconds(), outcome)
	m.lockContention.Inc(outcome)
}

func (m *Metrics) IncIdempotencyHit() {
	if m == nil {
		return
	}
	m.idempotencyHit.Inc()
}

func (m *Metrics) IncIdempotencyMiss() {
	if m == nil {
		return
	}
	m.idempotencyMiss.Inc()
}

// ObserveArtifactUpload records one artifact-store write (§6).
func (m *Metrics) ObserveArtifactUpload(artifactType string, dur time.Duration, err error) {
	if m == nil {
		return
	}
	m.artifactUploadDuration.Observe(dur.Seconds(), artifactType)
	if err != nil {
		m.artifactUploadError.Inc(artifactType)
	}
}

func (m *Metrics) IncPurgeRun(expiredRows int64, err error) {
	if m == nil {
		return
	}
	m.purgeRunTotal.Inc()
	if err != nil {
		m.purgeErrorTotal.Inc()
		return
	}
	m.purgeExpired.Add(float64(expiredRows))
}

func (m *Metrics) StartPostgresCollector(ctx context.Context, log *logger.Logger, db *gorm.DB) {
	if m == nil || db == nil {
		return
	}
	interval := scrapeInterval()
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sqlDB, err := db.DB()
				if err != nil {
					if log != nil {
						log.Warn("metrics: postgres stats unavailable", "error", err)
					}
					continue
				}
				stats := sqlDB.Stats()
				m.pgStats.Set(float64(stats.OpenConnections), "open_connections")
				m.pgStats.Set(float64(stats.InUse), "in_use")
				m.pgStats.Set(float64(stats.Idle), "idle")
				m.pgStats.Set(float64(stats.WaitCount), "wait_count")
				m.pgStats.Set(stats.WaitDuration.Seconds(), "wait_duration_seconds")
				m.pgStats.Set(float64(stats.MaxOpenConnections), "max_open_connections")
				m.pgStats.Set(float64(stats.MaxIdleClosed), "max_idle_closed")
				m.pgStats.Set(float64(stats.MaxIdleTimeClosed), "max_idle_time_closed")
				m.pgStats.Set(float64(stats.MaxLifetimeClosed), "max_lifetime_closed")
			}
		}
	}()
}

func (m *Metrics) StartRedisCollector(ctx context.Context, log *logger.Logger, addr string) {
	if m == nil {
		return
	}
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return
	}
	interval := scrapeInterval()
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				_ = rdb.Close()
				return
			case <-ticker.C:
				start := time.Now()
				if err := rdb.Ping(ctx).Err(); err != nil {
					m.redisUp.Set(0)
					if log != nil {
						log.Warn("metrics: redis ping failed", "error", err)
					}
					continue
				}
				m.redisUp.Set(1)
				m.redisPing.Set(time.Since(start).Seconds())
			}
		}
	}()
}

// StartPendingCheckCollector tracks outstanding (non-expired) schema_checks
// per project type so dashboards can see purge-worker backlog (§5).
func (m *Metrics) StartPendingCheckCollector(ctx context.Context, log *logger.Logger, db *gorm.DB) {
	if m == nil || db == nil {
		return
	}
	interval := scrapeInterval()
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				var rows []struct {
					ProjectType string
					Count       int64
				}
				err := db.WithContext(ctx).
					Table("schema_checks").
					Select("projects.type as project_type, count(*) as count").
					Joins("JOIN targets ON targets.id = schema_checks.target_id").
					Joins("JOIN projects ON projects.id = targets.project_id").
					Where("schema_checks.expires_at > now()").
					Group("projects.type").
					Scan(&rows).Error
				if err != nil {
					if log != nil {
						log.Warn("metrics: pending check query failed", "error", err)
					}
					continue
				}
				for _, pt := range []registry.ProjectType{registry.ProjectTypeSingle, registry.ProjectTypeFederation, registry.ProjectTypeStitching} {
					m.pendingChecks.Set(0, string(pt))
				}
				for _, row := range rows {
					m.pendingChecks.Set(float64(row.Count), row.ProjectType)
				}
			}
		}
	}()
}

// ---- lightweight metric primitives (Prometheus exposition) ----

type CounterVec struct {
	name       string
	help       string
	labelNames []string
	mu         sync.RWMutex
	values     map[string]float64
}

func NewCounterVec(name, help string, labels []string) *CounterVec {
	return &CounterVec{name: name, help: help, labelNames: labels, values: map[string]float64{}}
}

func (c *CounterVec) Inc(values ...string) {
	if c == nil {
		return
	}
	lbl := labelString(c.labelNames, values)
	c.mu.Lock()
	c.values[lbl]++
	c.mu.Unlock()
}

func (c *CounterVec) Add(v float64, values ...string) {
	if c == nil {
		return
	}
	lbl := labelString(c.labelNames, values)
	c.mu.Lock()
	c.values[lbl] += v
	c.mu.Unlock()
}

func (c *CounterVec) WritePrometheus(w io.Writer) error {
	if c == nil {
		return nil
	}
	if _, err := fmt.Fprintf(w, "# HELP %s %s\n", c.name, c.help); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "# TYPE %s counter\n", c.name); err != nil {
		return err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	for k, v := range c.values {
		if _, err := fmt.Fprintf(w, "%s%s %f\n", c.name, k, v); err != nil {
			return err
		}
	}
	return nil
}

type Counter struct {
	name string
	help string
	mu   sync.RWMutex
	val  float64
}

func NewCounter(name, help string) *Counter {
	return &Counter{name: name, help: help}
}

func (c *Counter) Inc() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.val++
	c.mu.Unlock()
}

func (c *Counter) Add(v float64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.val += v
	c.mu.Unlock()
}

func (c *Counter) Value() float64 {
	if c == nil {
		return 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.val
}

func (c *Counter) WritePrometheus(w io.Writer) error {
	if c == nil {
		return nil
	}
	if _, err := fmt.Fprintf(w, "# HELP %s %s\n", c.name, c.help); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "# TYPE %s counter\n", c.name); err != nil {
		return err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, err := fmt.Fprintf(w, "%s %f\n", c.name, c.val)
	return err
}

type Gauge struct {
	name string
	help string
	mu   sync.RWMutex
	val  float64
}

func NewGauge(name, help string) *Gauge {
	return &Gauge{name: name, help: help}
}

func (g *Gauge) Set(v float64) {
	if g == nil {
		return
	}
	g.mu.Lock()
	g.val = v
	g.mu.Unlock()
}

func (g *Gauge) Inc() {
	if g == nil {
		return
	}
	g.mu.Lock()
	g.val++
	g.mu.Unlock()
}

func (g *Gauge) Dec() {
	if g == nil {
		return
	}
	g.mu.Lock()
	g.val--
	g.mu.Unlock()
}

func (g *Gauge) WritePrometheus(w io.Writer) error {
	if g == nil {
		return nil
	}
	if _, err := fmt.Fprintf(w, "# HELP %s %s\n", g.name, g.help); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "# TYPE %s gauge\n", g.name); err != nil {
		return err
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, err := fmt.Fprintf(w, "%s %f\n", g.name, g.val)
	return err
}

type GaugeVec struct {
	name       string
	help       string
	labelNames []string
	mu         sync.RWMutex
	values     map[string]float64
}

func NewGaugeVec(name, help string, labels []string) *GaugeVec {
	return &GaugeVec{name: name, help: help, labelNames: labels, values: map[string]float64{}}
}

func (g *GaugeVec) Set(v float64, values ...string) {
	if g == nil {
		return
	}
	lbl := labelString(g.labelNames, values)
	g.mu.Lock()
	g.values[lbl] = v
	g.mu.Unlock()
}

func (g *GaugeVec) WritePrometheus(w io.Writer) error {
	if g == nil {
		return nil
	}
	if _, err := fmt.Fprintf(w, "# HELP %s %s\n", g.name, g.help); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "# TYPE %s gauge\n", g.name); err != nil {
		return err
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	for k, v := range g.values {
		if _, err := fmt.Fprintf(w, "%s%s %f\n", g.name, k, v); err != nil {
			return err
		}
	}
	return nil
}

type HistogramVec struct {
	name       string
	help       string
	labelNames []string
	buckets    []float64
	mu         sync.RWMutex
	values     map[string]*histogram
}

type histogram struct {
	buckets []float64
	counts  []uint64
	sum     float64
	total   uint64
}

func NewHistogramVec(name, help string, labels []string, buckets []float64) *HistogramVec {
	if len(buckets) == 0 {
		buckets = []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5}
	}
	return &HistogramVec{name: name, help: help, labelNames: labels, buckets: buckets, values: map[string]*histogram{}}
}

func (h *HistogramVec) Observe(v float64, values ...string) {
	if h == nil {
		return
	}
	lbl := labelString(h.labelNames, values)
	h.mu.Lock()
	defer h.mu.Unlock()
	hist, ok := h.values[lbl]
	if !ok {
		hist = &histogram{
			buckets: h.buckets,
			counts:  make([]uint64, len(h.buckets)+1),
		}
		h.values[lbl] = hist
	}
	hist.sum += v
	hist.total++
	for i, b := range hist.buckets {
		if v <= b {
			hist.counts[i]++
		}
	}
	hist.counts[len(hist.counts)-1]++
}

func (h *HistogramVec) WritePrometheus(w io.Writer) error {
	if h == nil {
		return nil
	}
	if _, err := fmt.Fprintf(w, "# HELP %s %s\n", h.name, h.help); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "# TYPE %s histogram\n", h.name); err != nil {
		return err
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for k, v := range h.values {
		for i, b := range v.buckets {
			if _, err := fmt.Fprintf(w, "%s_bucket%s %d\n", h.name, withLe(k, fmt.Sprintf("%g", b)), v.counts[i]); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintf(w, "%s_bucket%s %d\n", h.name, withLe(k, "+Inf"), v.counts[len(v.counts)-1]); err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "%s_sum%s %f\n", h.name, k, v.sum); err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "%s_count%s %d\n", h.name, k, v.total); err != nil {
			return err
		}
	}
	return nil
}

func labelString(names []string, values []string) string {
	if len(names) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("{")
	for i, name := range names {
		if i > 0 {
			b.WriteString(",")
		}
		val := "unknown"
		if i < len(values) {
			val = values[i]
		}
		b.WriteString(name)
		b.WriteString("=\"")
		b.WriteString(escapeLabel(val))
		b.WriteString("\"")
	}
	b.WriteString("}")
	return b.String()
}

func escapeLabel(v string) string {
	if v == "" {
		return ""
	}
	v = strings.ReplaceAll(v, "\\", "\\\\")
	v = strings.ReplaceAll(v, "\"", "\\\"")
	v = strings.ReplaceAll(v, "\n", "\\n")
	return v
}

func withLe(labels string, le string) string {
	le = escapeLabel(le)
	if labels == "" || labels == "{}" {
		return "{le=\"" + le + "\"}"
	}
	if strings.HasSuffix(labels, "}") {
		return strings.TrimSuffix(labels, "}") + ",le=\"" + le + "\"}"
	}
	return "{le=\"" + le + "\"}"
}

func isServerErrorStatus(status string) bool {
	status = strings.TrimSpace(status)
	if len(status) < 3 {
		return false
	}
	return status[0] == '5'
}
