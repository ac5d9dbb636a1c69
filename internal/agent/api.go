package agent

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/carlosprados/pmcontrol/internal/control"
	"github.com/carlosprados/pmcontrol/internal/version"
)

// Router returns the HTTP handler for the local API.
func (a *Agent) Router() http.Handler {
	mux := http.NewServeMux()

	// Liveness probe
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":   "ok",
			"version":  version.Version,
			"uptime":   time.Since(a.start).String(),
			"closed":   a.closed.Load(),
			"time_utc": time.Now().UTC().Format(time.RFC3339),
		})
	})

	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("GET /v1/agent", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, a.Status())
	})

	// POST /v1/agent:start and /v1/agent:stop
	mux.HandleFunc("POST /v1/agent:start", func(w http.ResponseWriter, r *http.Request) {
		a.writeResult(w, a.Start())
	})
	mux.HandleFunc("POST /v1/agent:stop", func(w http.ResponseWriter, r *http.Request) {
		a.writeResult(w, a.Stop())
	})

	// PUT {"level": 1..7}
	mux.HandleFunc("PUT /v1/agent/log-level", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Level int32 `json:"level"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		a.writeResult(w, a.SetLogLevel(req.Level))
	})

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("pmcontrol supervisor is running. See /healthz, /metrics and /v1/agent\n"))
	})

	return mux
}

func (a *Agent) writeResult(w http.ResponseWriter, res control.Result) {
	code := http.StatusOK
	switch res {
	case control.Success:
	case control.AlreadyStarted, control.NotStarted:
		code = http.StatusConflict
	case control.InvalidParam:
		code = http.StatusBadRequest
	default:
		code = http.StatusInternalServerError
	}
	writeJSON(w, code, map[string]any{"result": res.String(), "code": int32(res)})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug().Err(err).Msg("write response")
	}
}
