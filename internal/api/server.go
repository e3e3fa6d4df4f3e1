// Package api exposes route planning, simulation, and the run archive
// over HTTP.
package api

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/varun99015/stellarroute/internal/config"
	"github.com/varun99015/stellarroute/internal/db"
	"github.com/varun99015/stellarroute/internal/httputil"
	"github.com/varun99015/stellarroute/internal/monitoring"
	"github.com/varun99015/stellarroute/internal/pathing"
	"github.com/varun99015/stellarroute/internal/sim"
	"github.com/varun99015/stellarroute/internal/timeutil"
	"github.com/varun99015/stellarroute/internal/version"
)

// ANSI escape codes for cyan and reset
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

type Server struct {
	db    *db.DB
	cfg   *config.TuningConfig
	clock timeutil.Clock

	mu         sync.Mutex
	lastRun    *sim.RunResult  // most recent simulation, kept for the debug charts
	lastRoutes []pathing.Route // most recent plan, same purpose
}

func NewServer(database *db.DB, cfg *config.TuningConfig, clock timeutil.Clock) *Server {
	if cfg == nil {
		cfg = config.EmptyTuningConfig()
	}
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Server{
		db:    database,
		cfg:   cfg,
		clock: clock,
	}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		monitoring.Logf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/routes", s.planRoutes)
	mux.HandleFunc("/simulate", s.runSimulation)
	mux.HandleFunc("/runs", s.listRuns)
	mux.HandleFunc("/scenarios", s.listScenarios)
	mux.HandleFunc("/params", s.showParams)
	mux.HandleFunc("/charts/routes", s.routeChart)
	mux.HandleFunc("/charts/lastrun", s.lastRunChart)
	return mux
}

// listRuns returns archived run summaries, or a single run when ?id= is
// given.
func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.WriteJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.db == nil {
		httputil.WriteJSONError(w, http.StatusServiceUnavailable, "run archive not configured")
		return
	}

	if id := r.URL.Query().Get("id"); id != "" {
		run, err := s.db.Run(id)
		if errors.Is(err, sql.ErrNoRows) {
			httputil.WriteJSONError(w, http.StatusNotFound, "unknown run "+id)
			return
		}
		if err != nil {
			httputil.WriteJSONError(w, http.StatusInternalServerError, err.Error())
			return
		}
		httputil.WriteJSON(w, http.StatusOK, run)
		return
	}

	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if v, err := strconv.Atoi(l); err == nil && v > 0 && v <= 500 {
			limit = v
		}
	}
	runs, err := s.db.Runs(limit)
	if err != nil {
		httputil.WriteJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{"runs": runs})
}

// listScenarios names the storm scenarios a simulation can request.
func (s *Server) listScenarios(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.WriteJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{"scenarios": sim.Scenarios()})
}

// showParams reports the server's effective tuning parameters.
func (s *Server) showParams(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.WriteJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"lambda":           s.cfg.GetLambda(),
		"heuristic":        s.cfg.GetHeuristic(),
		"bidirectional":    s.cfg.GetBidirectional(),
		"filter_mode":      s.cfg.GetFilterMode(),
		"alpha":            s.cfg.GetAlpha(),
		"alpha_floor":      s.cfg.GetAlphaFloor(),
		"resync_threshold": s.cfg.GetResyncThreshold(),
		"resync_blend":     s.cfg.GetResyncBlend(),
		"coast_weight":     s.cfg.GetCoastWeight(),
		"max_outage":       s.cfg.GetMaxOutage().String(),
		"scenario":         s.cfg.GetScenario(),
		"speed":            s.cfg.GetSpeed(),
		"cell_size":        s.cfg.GetCellSize(),
		"tick_seconds":     s.cfg.GetTickSeconds(),
		"min_satellites":   s.cfg.GetMinSatellites(),
		"version":          version.Version,
	})
}
