package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/varun99015/stellarroute/internal/config"
	"github.com/varun99015/stellarroute/internal/db"
	"github.com/varun99015/stellarroute/internal/monitoring"
	"github.com/varun99015/stellarroute/internal/sim"
	"github.com/varun99015/stellarroute/internal/timeutil"
)

func newTestServer(t *testing.T) (*Server, *http.ServeMux) {
	t.Helper()
	monitoring.SetLogger(nil)

	database, err := db.NewDB(filepath.Join(t.TempDir(), "api.db"))
	if err != nil {
		t.Fatalf("NewDB: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	clock := timeutil.NewMockClock(time.Unix(1800000000, 0).UTC())
	srv := NewServer(database, config.DefaultTuningConfig(), clock)
	return srv, srv.ServeMux()
}

func doJSON(t *testing.T, mux *http.ServeMux, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode request: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestPlanRoutes(t *testing.T) {
	srv, mux := newTestServer(t)

	rec := doJSON(t, mux, http.MethodPost, "/routes", map[string]interface{}{
		"terrain": map[string]interface{}{"width": 12, "height": 12, "kp": 3},
		"start":   []int{0, 0},
		"goal":    []int{11, 11},
		"lambdas": []float64{1.0},
		"archive": true,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp planResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Routes) != 4 {
		t.Errorf("got %d routes, want 4 (shortest/balanced/safest + custom)", len(resp.Routes))
	}
	if len(resp.Pareto) == 0 {
		t.Error("pareto frontier is empty")
	}
	if len(resp.Ranking) != len(resp.Routes) {
		t.Errorf("ranking has %d entries, want %d", len(resp.Ranking), len(resp.Routes))
	}
	if len(resp.ArchivedIDs) != len(resp.Routes) {
		t.Errorf("archived %d routes, want %d", len(resp.ArchivedIDs), len(resp.Routes))
	}

	stored, err := srv.db.Routes(10)
	if err != nil {
		t.Fatalf("Routes: %v", err)
	}
	if len(stored) != len(resp.Routes) {
		t.Errorf("archive holds %d routes, want %d", len(stored), len(resp.Routes))
	}
}

func TestPlanRoutesUnreachable(t *testing.T) {
	_, mux := newTestServer(t)

	// A blocked column splits the grid in two.
	cells := [][]string{
		{"grass", "blocked", "grass"},
		{"grass", "blocked", "grass"},
		{"grass", "blocked", "grass"},
	}
	risk := [][]float64{
		{0.1, 0.1, 0.1},
		{0.1, 0.1, 0.1},
		{0.1, 0.1, 0.1},
	}
	rec := doJSON(t, mux, http.MethodPost, "/routes", map[string]interface{}{
		"terrain": map[string]interface{}{"cells": cells, "risk": risk},
		"start":   []int{0, 0},
		"goal":    []int{2, 2},
	})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404; body %s", rec.Code, rec.Body.String())
	}
}

func TestPlanRoutesBadRequests(t *testing.T) {
	_, mux := newTestServer(t)

	cases := []struct {
		name   string
		method string
		body   interface{}
		want   int
	}{
		{"wrong method", http.MethodGet, nil, http.StatusMethodNotAllowed},
		{"empty terrain", http.MethodPost, map[string]interface{}{
			"start": []int{0, 0}, "goal": []int{1, 1},
		}, http.StatusBadRequest},
		{"start out of bounds", http.MethodPost, map[string]interface{}{
			"terrain": map[string]interface{}{"width": 4, "height": 4},
			"start":   []int{-1, 0},
			"goal":    []int{3, 3},
		}, http.StatusBadRequest},
		{"negative lambda", http.MethodPost, map[string]interface{}{
			"terrain": map[string]interface{}{"width": 4, "height": 4},
			"start":   []int{0, 0},
			"goal":    []int{3, 3},
			"lambdas": []float64{-1},
		}, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := doJSON(t, mux, tc.method, "/routes", tc.body)
			if rec.Code != tc.want {
				t.Errorf("status = %d, want %d; body %s", rec.Code, tc.want, rec.Body.String())
			}
		})
	}

	req := httptest.NewRequest(http.MethodPost, "/routes", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("malformed JSON: status = %d, want 400", rec.Code)
	}
}

func TestRunSimulation(t *testing.T) {
	srv, mux := newTestServer(t)

	rec := doJSON(t, mux, http.MethodPost, "/simulate", map[string]interface{}{
		"terrain":  map[string]interface{}{"width": 6, "height": 6, "kp": 2},
		"start":    []int{0, 0},
		"goal":     []int{5, 5},
		"scenario": "normal",
		"seed":     7,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var result sim.RunResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if result.ID == "" {
		t.Error("run has no ID")
	}
	if result.Scenario != sim.ScenarioNormal {
		t.Errorf("scenario = %q, want %q", result.Scenario, sim.ScenarioNormal)
	}
	if result.Stats.Ticks == 0 {
		t.Error("run produced no ticks")
	}
	if result.Stats.GPSAvailability != 1.0 {
		t.Errorf("availability = %f under a calm sky, want 1.0", result.Stats.GPSAvailability)
	}

	// The run lands in the archive and is retrievable by ID.
	rec = doJSON(t, mux, http.MethodGet, "/runs?id="+result.ID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /runs?id=: status = %d, body %s", rec.Code, rec.Body.String())
	}
	var stored db.RunSummary
	if err := json.Unmarshal(rec.Body.Bytes(), &stored); err != nil {
		t.Fatalf("decode stored run: %v", err)
	}
	if stored.ID != result.ID {
		t.Errorf("stored ID = %q, want %q", stored.ID, result.ID)
	}

	srv.mu.Lock()
	last := srv.lastRun
	srv.mu.Unlock()
	if last == nil || last.ID != result.ID {
		t.Error("lastRun not stashed for the debug chart")
	}
}

func TestRunSimulationRejectsBadInput(t *testing.T) {
	_, mux := newTestServer(t)

	rec := doJSON(t, mux, http.MethodPost, "/simulate", map[string]interface{}{
		"terrain":  map[string]interface{}{"width": 4, "height": 4},
		"start":    []int{0, 0},
		"goal":     []int{3, 3},
		"scenario": "apocalyptic",
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown scenario: status = %d, want 400; body %s", rec.Code, rec.Body.String())
	}

	cells := [][]string{
		{"grass", "blocked"},
		{"grass", "blocked"},
	}
	risk := [][]float64{{0, 0}, {0, 0}}
	rec = doJSON(t, mux, http.MethodPost, "/simulate", map[string]interface{}{
		"terrain": map[string]interface{}{"cells": cells, "risk": risk},
		"start":   []int{0, 0},
		"goal":    []int{1, 1},
	})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("unreachable goal: status = %d, want 422; body %s", rec.Code, rec.Body.String())
	}
}

func TestCharts(t *testing.T) {
	_, mux := newTestServer(t)

	// Nothing planned or simulated yet.
	if rec := doJSON(t, mux, http.MethodGet, "/charts/routes", nil); rec.Code != http.StatusNotFound {
		t.Errorf("routes chart before planning: status = %d, want 404", rec.Code)
	}
	if rec := doJSON(t, mux, http.MethodGet, "/charts/lastrun", nil); rec.Code != http.StatusNotFound {
		t.Errorf("run chart before simulating: status = %d, want 404", rec.Code)
	}

	rec := doJSON(t, mux, http.MethodPost, "/routes", map[string]interface{}{
		"terrain": map[string]interface{}{"width": 8, "height": 8, "kp": 4},
		"start":   []int{0, 0},
		"goal":    []int{7, 7},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("plan: status = %d, body %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, mux, http.MethodGet, "/charts/routes", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("routes chart: status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("content type = %q, want text/html", ct)
	}
	if !strings.Contains(rec.Body.String(), "echarts") {
		t.Error("chart output does not reference echarts")
	}

	rec = doJSON(t, mux, http.MethodPost, "/simulate", map[string]interface{}{
		"terrain": map[string]interface{}{"width": 6, "height": 6},
		"start":   []int{0, 0},
		"goal":    []int{5, 5},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("simulate: status = %d, body %s", rec.Code, rec.Body.String())
	}
	rec = doJSON(t, mux, http.MethodGet, "/charts/lastrun", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("run chart: status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "echarts") {
		t.Error("run chart output does not reference echarts")
	}
}

func TestListRuns(t *testing.T) {
	_, mux := newTestServer(t)

	rec := doJSON(t, mux, http.MethodGet, "/runs", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var listing struct {
		Runs []db.RunSummary `json:"runs"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &listing); err != nil {
		t.Fatalf("decode listing: %v", err)
	}
	if len(listing.Runs) != 0 {
		t.Errorf("fresh archive lists %d runs, want 0", len(listing.Runs))
	}

	rec = doJSON(t, mux, http.MethodGet, "/runs?id=no-such-run", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown ID: status = %d, want 404", rec.Code)
	}

	if rec := doJSON(t, mux, http.MethodPost, "/runs", nil); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST /runs: status = %d, want 405", rec.Code)
	}
}

func TestScenariosAndParams(t *testing.T) {
	_, mux := newTestServer(t)

	rec := doJSON(t, mux, http.MethodGet, "/scenarios", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("scenarios: status = %d", rec.Code)
	}
	var scen struct {
		Scenarios []sim.Scenario `json:"scenarios"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &scen); err != nil {
		t.Fatalf("decode scenarios: %v", err)
	}
	if len(scen.Scenarios) != 3 {
		t.Errorf("got %d scenarios, want 3", len(scen.Scenarios))
	}

	rec = doJSON(t, mux, http.MethodGet, "/params", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("params: status = %d", rec.Code)
	}
	var params map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &params); err != nil {
		t.Fatalf("decode params: %v", err)
	}
	for _, key := range []string{"lambda", "filter_mode", "max_outage", "scenario"} {
		if _, ok := params[key]; !ok {
			t.Errorf("params missing %q", key)
		}
	}
}
