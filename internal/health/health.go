// Package health exposes the process liveness endpoint used by container
// orchestrators.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// checkTimeout is the maximum time allowed for all probes to complete.
const checkTimeout = 2 * time.Second

// Probe is a subsystem health check.
type Probe interface {
	// Name identifies the probe in the response body.
	Name() string

	// Check returns an error if the subsystem is unhealthy. It should respect
	// the context deadline.
	Check(ctx context.Context) error
}

type componentStatus struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type response struct {
	Status     string                     `json:"status"`
	Components map[string]componentStatus `json:"components,omitempty"`
}

type handler struct {
	probes []Probe
	logger *slog.Logger
}

// NewRouter mounts GET /health over probes.
func NewRouter(logger *slog.Logger, probes ...Probe) http.Handler {
	h := &handler{
		probes: probes,
		logger: logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/health", h.serveHealth)
	return r
}

// serveHealth runs every probe concurrently under checkTimeout. It returns
// 200 when all pass and 503 when any fails, panics or does not finish in time.
func (h *handler) serveHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
	defer cancel()

	if len(h.probes) == 0 {
		writeJSON(w, http.StatusOK, response{Status: "healthy"})
		return
	}

	type result struct {
		err      error
		finished bool
	}

	var (
		mu      sync.Mutex
		results = make([]result, len(h.probes))
		wg      sync.WaitGroup
	)

	for i, probe := range h.probes {
		wg.Add(1)
		go func(i int, p Probe) {
			defer wg.Done()

			var err error
			func() {
				defer func() {
					if rec := recover(); rec != nil {
						err = fmt.Errorf("probe panicked: %v", rec)
					}
				}()
				err = p.Check(ctx)
			}()

			mu.Lock()
			results[i] = result{err: err, finished: true}
			mu.Unlock()
		}(i, probe)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		// Probes still running are reported as timed out below.
	}

	mu.Lock()
	defer mu.Unlock()

	resp := response{
		Status:     "healthy",
		Components: make(map[string]componentStatus, len(h.probes)),
	}
	status := http.StatusOK

	for i, probe := range h.probes {
		name := probe.Name()
		if _, taken := resp.Components[name]; taken {
			name = fmt.Sprintf("%s#%d", name, i)
		}

		res := results[i]
		switch {
		case !res.finished:
			resp.Components[name] = componentStatus{Status: "unhealthy", Message: "health check timed out"}
		case res.err != nil:
			resp.Components[name] = componentStatus{Status: "unhealthy", Message: res.err.Error()}
		default:
			resp.Components[name] = componentStatus{Status: "healthy"}
			continue
		}
		resp.Status = "unhealthy"
		status = http.StatusServiceUnavailable
	}

	if status != http.StatusOK {
		h.logger.Warn("health check failed", "components", resp.Components)
	}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"status":"unhealthy"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
