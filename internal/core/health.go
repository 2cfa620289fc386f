package core

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// healthCheckTimeout bounds the whole /health request.
const healthCheckTimeout = 2 * time.Second

const (
	statusHealthy   = "healthy"
	statusUnhealthy = "unhealthy"
)

// HealthProbe is one subsystem checked by /health, e.g. the scheduler or the
// MQTT connection.
type HealthProbe interface {
	Name() string
	// Check returns nil when the subsystem is working. It must honor ctx.
	Check(ctx context.Context) error
}

type componentStatus struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type healthResponse struct {
	Status     string                     `json:"status"`
	Components map[string]componentStatus `json:"components,omitempty"`
}

type probeResult struct {
	name string
	err  error
}

// HandleHealth runs every probe concurrently and answers 200 when all pass,
// 503 otherwise. Probes still running at the deadline are reported as timed
// out.
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	probes := s.HealthProbes
	if len(probes) == 0 {
		JSON(w, r, http.StatusOK, healthResponse{Status: statusHealthy})
		return
	}

	// Buffered so late probes never block after we stop listening.
	results := make(chan probeResult, len(probes))
	for _, p := range probes {
		go func() {
			results <- probeResult{name: p.Name(), err: runProbe(ctx, p)}
		}()
	}

	components := make(map[string]componentStatus, len(probes))
	healthy := true
collect:
	for range probes {
		select {
		case res := <-results:
			if res.err != nil {
				healthy = false
				components[res.name] = componentStatus{Status: statusUnhealthy, Message: res.err.Error()}
				continue
			}
			components[res.name] = componentStatus{Status: statusHealthy}
		case <-ctx.Done():
			break collect
		}
	}

	for _, p := range probes {
		if _, ok := components[p.Name()]; !ok {
			healthy = false
			components[p.Name()] = componentStatus{Status: statusUnhealthy, Message: "health check timed out"}
		}
	}

	resp := healthResponse{Status: statusHealthy, Components: components}
	status := http.StatusOK
	if !healthy {
		resp.Status = statusUnhealthy
		status = http.StatusServiceUnavailable
	}
	JSON(w, r, status, resp)
}

func runProbe(ctx context.Context, p HealthProbe) (err error) {
	defer func() {
		if rvr := recover(); rvr != nil {
			err = fmt.Errorf("probe panicked: %v", rvr)
		}
	}()
	return p.Check(ctx)
}
