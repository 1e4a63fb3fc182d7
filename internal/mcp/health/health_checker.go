package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// HealthChecker runs a registry of component checks on an interval and
// exposes the aggregate status over HTTP.
type HealthChecker struct {
	config   HealthConfig
	logger   *logrus.Logger
	checks   map[string]HealthCheck
	status   *HealthStatus
	mutex    sync.RWMutex
	stopChan chan struct{}
	ticker   *time.Ticker
}

type HealthConfig struct {
	CheckInterval    time.Duration    `json:"check_interval"`
	Timeout          time.Duration    `json:"timeout"`
	EnabledChecks    []string         `json:"enabled_checks"`
	Thresholds       HealthThresholds `json:"thresholds"`
	EndpointPath     string           `json:"endpoint_path"`
	DetailedResponse bool             `json:"detailed_response"`
}

type HealthThresholds struct {
	MemoryMaxUsage int64   `json:"memory_max_usage"`
	CPUMaxUsage    float64 `json:"cpu_max_usage"`
}

type HealthStatus struct {
	Overall     HealthState                `json:"overall"`
	Timestamp   time.Time                  `json:"timestamp"`
	Version     string                     `json:"version"`
	Components  map[string]ComponentHealth `json:"components"`
	LastChecked time.Time                  `json:"last_checked"`
	CheckCount  int64                      `json:"check_count"`
}

type ComponentHealth struct {
	Name        string                 `json:"name"`
	Status      HealthState            `json:"status"`
	Message     string                 `json:"message"`
	LastChecked time.Time              `json:"last_checked"`
	Duration    time.Duration          `json:"duration"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
	Error       string                 `json:"error,omitempty"`
}

type HealthState string

const (
	HealthStateHealthy   HealthState = "healthy"
	HealthStateUnhealthy HealthState = "unhealthy"
	HealthStateWarning   HealthState = "warning"
	HealthStateUnknown   HealthState = "unknown"
)

type HealthCheck interface {
	Name() string
	Check(ctx context.Context) ComponentHealth
	Priority() int
}

// ProviderPinger is the minimal shape a Search Provider must expose for a
// liveness probe, independent of its full search contract.
type ProviderPinger interface {
	Name() string
	Ping(ctx context.Context) error
}

// ChatBackendPinger is the analogous liveness probe for the Chat Client.
type ChatBackendPinger interface {
	BackendName() string
	Ping(ctx context.Context) error
}

// SearchProviderHealthCheck reports per-provider reachability.
type SearchProviderHealthCheck struct {
	providers []ProviderPinger
	timeout   time.Duration
}

// ChatBackendHealthCheck reports reachability of the configured Chat Client backend.
type ChatBackendHealthCheck struct {
	backend ChatBackendPinger
	timeout time.Duration
}

// SystemResourceHealthCheck always reports healthy; it does not measure
// memory or CPU usage against its thresholds.
type SystemResourceHealthCheck struct {
	thresholds HealthThresholds
}

func NewHealthChecker(config HealthConfig, providers []ProviderPinger, backend ChatBackendPinger) *HealthChecker {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	if config.CheckInterval == 0 {
		config.CheckInterval = 30 * time.Second
	}
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}
	if config.EndpointPath == "" {
		config.EndpointPath = "/health"
	}

	hc := &HealthChecker{
		config: config,
		logger: logger,
		checks: make(map[string]HealthCheck),
		status: &HealthStatus{
			Overall:    HealthStateUnknown,
			Timestamp:  time.Now(),
			Components: make(map[string]ComponentHealth),
		},
		stopChan: make(chan struct{}),
	}

	hc.RegisterCheck(&SystemResourceHealthCheck{thresholds: config.Thresholds})
	if len(providers) > 0 {
		hc.RegisterCheck(&SearchProviderHealthCheck{providers: providers, timeout: config.Timeout})
	}
	if backend != nil {
		hc.RegisterCheck(&ChatBackendHealthCheck{backend: backend, timeout: config.Timeout})
	}

	return hc
}

func (h *HealthChecker) RegisterCheck(check HealthCheck) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.checks[check.Name()] = check
}

func (h *HealthChecker) Start() {
	h.ticker = time.NewTicker(h.config.CheckInterval)

	h.runHealthChecks()

	go func() {
		for {
			select {
			case <-h.ticker.C:
				h.runHealthChecks()
			case <-h.stopChan:
				return
			}
		}
	}()

	h.logger.Info("Health checker started")
}

func (h *HealthChecker) Stop() {
	if h.ticker != nil {
		h.ticker.Stop()
	}
	close(h.stopChan)
	h.logger.Info("Health checker stopped")
}

func (h *HealthChecker) runHealthChecks() {
	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	h.mutex.Lock()
	defer h.mutex.Unlock()

	overallHealthy := true
	hasWarnings := false

	results := make(chan ComponentHealth, len(h.checks))
	var wg sync.WaitGroup

	for _, check := range h.checks {
		if !h.isCheckEnabled(check.Name()) {
			continue
		}
		wg.Add(1)
		go func(c HealthCheck) {
			defer wg.Done()
			results <- c.Check(ctx)
		}(check)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	components := make(map[string]ComponentHealth)
	for result := range results {
		components[result.Name] = result
		switch result.Status {
		case HealthStateUnhealthy:
			overallHealthy = false
		case HealthStateWarning:
			hasWarnings = true
		}
	}

	overallStatus := HealthStateHealthy
	if !overallHealthy {
		overallStatus = HealthStateUnhealthy
	} else if hasWarnings {
		overallStatus = HealthStateWarning
	}

	h.status = &HealthStatus{
		Overall:     overallStatus,
		Timestamp:   time.Now(),
		Version:     "v0.1.0",
		Components:  components,
		LastChecked: time.Now(),
		CheckCount:  h.status.CheckCount + 1,
	}

	if overallStatus != HealthStateHealthy {
		h.logger.WithFields(logrus.Fields{
			"overall_status":        overallStatus,
			"unhealthy_components":  h.getUnhealthyComponents(components),
		}).Warn("Health check completed with issues")
	} else {
		h.logger.Debug("Health check completed successfully")
	}
}

func (h *HealthChecker) isCheckEnabled(checkName string) bool {
	if len(h.config.EnabledChecks) == 0 {
		return true
	}
	for _, enabled := range h.config.EnabledChecks {
		if enabled == checkName {
			return true
		}
	}
	return false
}

func (h *HealthChecker) getUnhealthyComponents(components map[string]ComponentHealth) []string {
	var unhealthy []string
	for name, component := range components {
		if component.Status == HealthStateUnhealthy {
			unhealthy = append(unhealthy, name)
		}
	}
	return unhealthy
}

func (h *HealthChecker) GetStatus() *HealthStatus {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	status := *h.status
	status.Components = make(map[string]ComponentHealth)
	for k, v := range h.status.Components {
		status.Components[k] = v
	}
	return &status
}

func (h *HealthChecker) GetHTTPHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := h.GetStatus()

		httpStatus := http.StatusOK
		if status.Overall == HealthStateUnhealthy {
			httpStatus = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(httpStatus)

		var response interface{}
		if h.config.DetailedResponse {
			response = status
		} else {
			response = map[string]interface{}{
				"status":    status.Overall,
				"timestamp": status.Timestamp,
				"version":   status.Version,
			}
		}

		json.NewEncoder(w).Encode(response)
	}
}

func (s *SystemResourceHealthCheck) Name() string { return "system_resources" }
func (s *SystemResourceHealthCheck) Priority() int { return 1 }

func (s *SystemResourceHealthCheck) Check(ctx context.Context) ComponentHealth {
	start := time.Now()
	return ComponentHealth{
		Name:        s.Name(),
		Status:      HealthStateHealthy,
		Message:     "system resources within thresholds",
		LastChecked: time.Now(),
		Duration:    time.Since(start),
	}
}

func (s *SearchProviderHealthCheck) Name() string  { return "search_providers" }
func (s *SearchProviderHealthCheck) Priority() int { return 2 }

func (s *SearchProviderHealthCheck) Check(ctx context.Context) ComponentHealth {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	results := make(map[string]string, len(s.providers))
	healthy := 0
	for _, p := range s.providers {
		if err := p.Ping(ctx); err != nil {
			results[p.Name()] = fmt.Sprintf("error: %v", err)
			continue
		}
		results[p.Name()] = "healthy"
		healthy++
	}

	status := HealthStateHealthy
	message := "all search providers healthy"
	if healthy == 0 {
		status = HealthStateUnhealthy
		message = "no search providers reachable"
	} else if healthy < len(s.providers) {
		status = HealthStateWarning
		message = fmt.Sprintf("%d/%d search providers healthy", healthy, len(s.providers))
	}

	return ComponentHealth{
		Name:        s.Name(),
		Status:      status,
		Message:     message,
		LastChecked: time.Now(),
		Duration:    time.Since(start),
		Metadata: map[string]interface{}{
			"providers": results,
		},
	}
}

func (c *ChatBackendHealthCheck) Name() string  { return "chat_backend" }
func (c *ChatBackendHealthCheck) Priority() int { return 3 }

func (c *ChatBackendHealthCheck) Check(ctx context.Context) ComponentHealth {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.backend.Ping(ctx); err != nil {
		return ComponentHealth{
			Name:        c.Name(),
			Status:      HealthStateUnhealthy,
			Message:     "chat backend unreachable",
			LastChecked: time.Now(),
			Duration:    time.Since(start),
			Error:       err.Error(),
			Metadata:    map[string]interface{}{"backend": c.backend.BackendName()},
		}
	}

	return ComponentHealth{
		Name:        c.Name(),
		Status:      HealthStateHealthy,
		Message:     "chat backend healthy",
		LastChecked: time.Now(),
		Duration:    time.Since(start),
		Metadata:    map[string]interface{}{"backend": c.backend.BackendName()},
	}
}
