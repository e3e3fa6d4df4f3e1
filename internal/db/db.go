// Package db archives planned routes and simulation runs in SQLite.
package db

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/varun99015/stellarroute/internal/pathing"
	"github.com/varun99015/stellarroute/internal/sim"
	"github.com/varun99015/stellarroute/internal/terrain"
)

type DB struct {
	*sql.DB
}

// NewDB opens (or creates) the archive at path and applies any pending
// migrations.
func NewDB(path string) (*DB, error) {
	sqldb, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	db := &DB{sqldb}
	if err := db.MigrateUp(); err != nil {
		sqldb.Close()
		return nil, fmt.Errorf("migrating archive: %w", err)
	}
	return db, nil
}

// RunSummary is the archived form of a simulation run. Per-tick records
// stay in memory; the archive keeps the summary statistics and the path.
type RunSummary struct {
	ID              string         `json:"id"`
	Scenario        string         `json:"scenario"`
	Seed            int64          `json:"seed"`
	Ticks           int            `json:"ticks"`
	MeanError       float64        `json:"mean_error"`
	MedianError     float64        `json:"median_error"`
	P95Error        float64        `json:"p95_error"`
	MaxError        float64        `json:"max_error"`
	GPSAvailability float64        `json:"gps_availability"`
	Resyncs         int            `json:"resyncs"`
	Degraded        bool           `json:"degraded"`
	Path            []terrain.Cell `json:"path"`
	CreatedAt       time.Time      `json:"created_at"`
}

// SaveRun archives a completed simulation run.
func (db *DB) SaveRun(res *sim.RunResult) error {
	pathJSON, err := json.Marshal(res.Path)
	if err != nil {
		return fmt.Errorf("encoding run path: %w", err)
	}

	_, err = db.Exec(
		`INSERT INTO runs (
			id, scenario, seed, ticks, mean_error, median_error, p95_error,
			max_error, gps_availability, resyncs, degraded, path_json, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		res.ID, string(res.Scenario), res.Seed, res.Stats.Ticks,
		res.Stats.MeanError, res.Stats.MedianError, res.Stats.P95Error,
		res.Stats.MaxError, res.Stats.GPSAvailability, res.Stats.Resyncs,
		boolToInt(res.Stats.Degraded), string(pathJSON), res.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting run %s: %w", res.ID, err)
	}
	return nil
}

// Run loads one archived run by ID. Returns sql.ErrNoRows when the ID
// is unknown.
func (db *DB) Run(id string) (*RunSummary, error) {
	row := db.QueryRow(
		`SELECT id, scenario, seed, ticks, mean_error, median_error, p95_error,
			max_error, gps_availability, resyncs, degraded, path_json, created_at
		FROM runs WHERE id = ?`, id)
	return scanRun(row)
}

// Runs returns the most recent archived runs, newest first.
func (db *DB) Runs(limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.Query(
		`SELECT id, scenario, seed, ticks, mean_error, median_error, p95_error,
			max_error, gps_availability, resyncs, degraded, path_json, created_at
		FROM runs ORDER BY created_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(s scanner) (*RunSummary, error) {
	var (
		r        RunSummary
		degraded int
		pathJSON string
	)
	if err := s.Scan(
		&r.ID, &r.Scenario, &r.Seed, &r.Ticks, &r.MeanError, &r.MedianError,
		&r.P95Error, &r.MaxError, &r.GPSAvailability, &r.Resyncs,
		&degraded, &pathJSON, &r.CreatedAt,
	); err != nil {
		return nil, err
	}
	r.Degraded = degraded != 0
	if err := json.Unmarshal([]byte(pathJSON), &r.Path); err != nil {
		return nil, fmt.Errorf("decoding run path: %w", err)
	}
	return &r, nil
}

// RouteRecord is the archived form of a planned route.
type RouteRecord struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Lambda    float64        `json:"lambda"`
	Distance  float64        `json:"distance"`
	TotalRisk float64        `json:"total_risk"`
	AvgRisk   float64        `json:"avg_risk"`
	TotalCost float64        `json:"total_cost"`
	Path      []terrain.Cell `json:"path"`
	CreatedAt time.Time      `json:"created_at"`
}

// SaveRoute archives a planned route and returns its assigned ID.
func (db *DB) SaveRoute(route pathing.Route, now time.Time) (string, error) {
	pathJSON, err := json.Marshal(route.Path)
	if err != nil {
		return "", fmt.Errorf("encoding route path: %w", err)
	}

	id := uuid.New().String()
	_, err = db.Exec(
		`INSERT INTO routes (
			id, name, lambda, distance, total_risk, avg_risk, total_cost,
			path_json, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, route.Name, route.Lambda, route.Metrics.Distance,
		route.Metrics.TotalRisk, route.Metrics.AvgRisk, route.Metrics.TotalCost,
		string(pathJSON), now,
	)
	if err != nil {
		return "", fmt.Errorf("inserting route %s: %w", route.Name, err)
	}
	return id, nil
}

// Routes returns the most recent archived routes, newest first.
func (db *DB) Routes(limit int) ([]RouteRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.Query(
		`SELECT id, name, lambda, distance, total_risk, avg_risk, total_cost,
			path_json, created_at
		FROM routes ORDER BY created_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var routes []RouteRecord
	for rows.Next() {
		var (
			r        RouteRecord
			pathJSON string
		)
		if err := rows.Scan(
			&r.ID, &r.Name, &r.Lambda, &r.Distance, &r.TotalRisk,
			&r.AvgRisk, &r.TotalCost, &pathJSON, &r.CreatedAt,
		); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(pathJSON), &r.Path); err != nil {
			return nil, fmt.Errorf("decoding route path: %w", err)
		}
		routes = append(routes, r)
	}
	return routes, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
