// Copyright 2025 The PsWeed Authors
// SPDX-License-Identifier: Apache-2.0

// Package pscands stores persistent scatterer candidate sets and weeding runs
// in DuckDB.
package pscands

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/jcodagnone/psweed/spatial"
	"github.com/jcodagnone/psweed/weed"
)

// Repository defines the storage operations for candidates and runs.
type Repository interface {
	// CreateSchema creates the database schema.
	CreateSchema() error

	//////// Candidates
	// ImportCSV replaces a candidate set with the rows of a CSV file with a
	// header of id,row,col,coherence and optional lon,lat columns.
	ImportCSV(set, path string) (int, error)
	// SaveCandidates replaces a candidate set. Slice order is kept as the
	// processing order.
	SaveCandidates(set string, cands []weed.Candidate) error
	// LoadCandidates returns a candidate set in processing order.
	LoadCandidates(set string) ([]weed.Candidate, error)
	// ListSets returns every stored set with its size.
	ListSets() ([]SetInfo, error)

	//////// Runs
	// SaveRun stores a weeding result and assigns run.ID. onRow, if not nil,
	// is called after each stored candidate.
	SaveRun(run *Run, cands []weed.Candidate, res *weed.Result, onRow func()) error
	// ListRuns returns the runs of a set, newest first. An empty set lists all.
	ListRuns(set string) ([]*Run, error)
	// SurvivorCells counts the survivors of a run per H3 cell.
	SurvivorCells(runID int64) ([]CellCount, error)
}

// SetInfo summarizes a stored candidate set.
type SetInfo struct {
	Name       string `json:"name"`
	Candidates int    `json:"candidates"`
}

// Run is a stored weeding invocation.
type Run struct {
	ID             int64     `json:"id"`
	Set            string    `json:"set"`
	CreatedAt      time.Time `json:"created_at"`
	Total          int       `json:"total"`
	Kept           int       `json:"kept"`
	Clusters       int       `json:"clusters"`
	Links          int       `json:"links"`
	SkipNeighbours bool      `json:"skip_neighbours"`
	// H3Res is the resolution survivors were indexed at, zero for none.
	H3Res int `json:"h3_res"`
}

// CellCount is the number of survivors inside an H3 cell.
type CellCount struct {
	Cell  uint64 `json:"cell"`
	Count int    `json:"count"`
}

type sqlRepository struct {
	db *sql.DB
}

func NewSQLRepository(db *sql.DB) Repository {
	return &sqlRepository{db: db}
}

func (r *sqlRepository) CreateSchema() error {
	_, err := r.db.Exec(`
		CREATE SEQUENCE IF NOT EXISTS run_id_seq START 1;

		CREATE TABLE IF NOT EXISTS candidates (
			set_name VARCHAR NOT NULL,
			ord INTEGER NOT NULL,
			id BIGINT NOT NULL,
			pix_row INTEGER NOT NULL,
			pix_col INTEGER NOT NULL,
			coherence DOUBLE,
			point STRUCT(x DOUBLE, y DOUBLE),
			PRIMARY KEY (set_name, id)
		);

		CREATE TABLE IF NOT EXISTS runs (
			run_id BIGINT PRIMARY KEY DEFAULT nextval('run_id_seq'),
			set_name VARCHAR NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			total INTEGER NOT NULL,
			kept INTEGER NOT NULL,
			clusters INTEGER NOT NULL,
			links INTEGER NOT NULL,
			skip_neighbours BOOLEAN NOT NULL,
			h3_res INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS run_results (
			run_id BIGINT NOT NULL,
			id BIGINT NOT NULL,
			kept BOOLEAN NOT NULL,
			survivor BIGINT,
			h3_cell UBIGINT
		);
	`)

	return err
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func (r *sqlRepository) ImportCSV(set, path string) (int, error) {
	source := fmt.Sprintf("read_csv(%s, header = true)", quoteLiteral(path))

	probe, err := r.db.Query("SELECT * FROM " + source + " LIMIT 0")
	if err != nil {
		return 0, fmt.Errorf("reading header of %s: %w", path, err)
	}

	columns, err := probe.Columns()
	probe.Close()

	if err != nil {
		return 0, fmt.Errorf("reading header of %s: %w", path, err)
	}

	for _, c := range []string{"id", "row", "col", "coherence"} {
		if !slices.Contains(columns, c) {
			return 0, fmt.Errorf("%s: missing column %q", path, c)
		}
	}

	geo := slices.Contains(columns, "lon") && slices.Contains(columns, "lat")

	query := `SELECT id, "row", col, coherence`
	if geo {
		query += ", lon, lat"
	}

	rows, err := r.db.Query(query + " FROM " + source)
	if err != nil {
		return 0, fmt.Errorf("querying %s: %w", path, err)
	}
	defer rows.Close()

	var cands []weed.Candidate

	for rows.Next() {
		var c weed.Candidate

		var coh, lon, lat sql.NullFloat64

		dest := []any{&c.ID, &c.Pixel.Row, &c.Pixel.Col, &coh}
		if geo {
			dest = append(dest, &lon, &lat)
		}

		if err := rows.Scan(dest...); err != nil {
			return 0, fmt.Errorf("scanning %s line %d: %w", path, len(cands)+2, err)
		}

		c.Coherence = coh.Float64
		if !coh.Valid {
			c.Coherence = math.NaN()
		}

		if lon.Valid && lat.Valid {
			c.Point = &spatial.Point{Lat: lat.Float64, Lng: lon.Float64}
		}

		cands = append(cands, c)
	}

	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("reading %s: %w", path, err)
	}

	if err := r.SaveCandidates(set, cands); err != nil {
		return 0, err
	}

	return len(cands), nil
}

func (r *sqlRepository) SaveCandidates(set string, cands []weed.Candidate) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("starting transaction for %s: %w", set, err)
	}

	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			log.Printf("failed to rollback transaction for %s: %v", set, err)
		}
	}()

	if _, err := tx.Exec("DELETE FROM candidates WHERE set_name = ?", set); err != nil {
		return fmt.Errorf("deleting candidates of %s: %w", set, err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO candidates (set_name, ord, id, pix_row, pix_col, coherence, point)
		VALUES (?, ?, ?, ?, ?, ?,
			CASE WHEN ?::DOUBLE IS NULL THEN NULL ELSE struct_pack(x := ?::DOUBLE, y := ?::DOUBLE) END)
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for i, c := range cands {
		var lng, lat any
		if c.Point != nil {
			lng = c.Point.Lng
			lat = c.Point.Lat
		}

		if _, err := stmt.Exec(set, i, c.ID, c.Pixel.Row, c.Pixel.Col, c.Coherence, lng, lng, lat); err != nil {
			return fmt.Errorf("inserting candidate %d of %s: %w", c.ID, set, err)
		}
	}

	return tx.Commit()
}

func (r *sqlRepository) LoadCandidates(set string) ([]weed.Candidate, error) {
	rows, err := r.db.Query(`
		SELECT id, pix_row, pix_col, coherence, point
		FROM candidates
		WHERE set_name = ?
		ORDER BY ord
	`, set)
	if err != nil {
		return nil, fmt.Errorf("querying candidates of %s: %w", set, err)
	}
	defer rows.Close()

	cands := []weed.Candidate{}

	for rows.Next() {
		var c weed.Candidate

		var coh sql.NullFloat64

		var point any

		if err := rows.Scan(&c.ID, &c.Pixel.Row, &c.Pixel.Col, &coh, &point); err != nil {
			return nil, fmt.Errorf("scanning candidate: %w", err)
		}

		c.Coherence = coh.Float64
		if !coh.Valid {
			c.Coherence = math.NaN()
		}

		if point != nil {
			c.Point = &spatial.Point{}
			if err := c.Point.Scan(point); err != nil {
				return nil, fmt.Errorf("scanning point of candidate %d: %w", c.ID, err)
			}
		}

		cands = append(cands, c)
	}

	return cands, rows.Err()
}

func (r *sqlRepository) ListSets() ([]SetInfo, error) {
	rows, err := r.db.Query("SELECT set_name, count(*) FROM candidates GROUP BY set_name ORDER BY set_name")
	if err != nil {
		return nil, fmt.Errorf("querying sets: %w", err)
	}
	defer rows.Close()

	sets := []SetInfo{}

	for rows.Next() {
		var s SetInfo
		if err := rows.Scan(&s.Name, &s.Candidates); err != nil {
			return nil, fmt.Errorf("scanning set: %w", err)
		}

		sets = append(sets, s)
	}

	return sets, rows.Err()
}

func (r *sqlRepository) SaveRun(run *Run, cands []weed.Candidate, res *weed.Result, onRow func()) error {
	if len(cands) != len(res.Keep) {
		return fmt.Errorf("run of %s: %d candidates but mask of %d", run.Set, len(cands), len(res.Keep))
	}

	survivorOf := make(map[int]int)

	for _, cl := range res.Clusters {
		for _, id := range cl.Members {
			survivorOf[id] = cl.Survivor
		}
	}

	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	run.Total = len(cands)
	run.Kept = res.Kept()
	run.Clusters = len(res.Clusters)
	run.Links = res.Links

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("starting transaction for run of %s: %w", run.Set, err)
	}

	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			log.Printf("failed to rollback transaction for run of %s: %v", run.Set, err)
		}
	}()

	err = tx.QueryRow(`
		INSERT INTO runs (set_name, created_at, total, kept, clusters, links, skip_neighbours, h3_res)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING run_id
	`, run.Set, run.CreatedAt, run.Total, run.Kept, run.Clusters, run.Links, run.SkipNeighbours, run.H3Res).Scan(&run.ID)
	if err != nil {
		return fmt.Errorf("inserting run of %s: %w", run.Set, err)
	}

	stmt, err := tx.Prepare("INSERT INTO run_results (run_id, id, kept, survivor, h3_cell) VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for i, c := range cands {
		var survivor, cell any
		if s, ok := survivorOf[c.ID]; ok {
			survivor = s
		}

		if res.Keep[i] && run.H3Res > 0 && c.Point != nil {
			h, err := c.Point.Cell(run.H3Res)
			if err != nil {
				log.Printf("candidate %d of %s left without h3 cell: %v", c.ID, run.Set, err)
			} else {
				cell = h
			}
		}

		if _, err := stmt.Exec(run.ID, c.ID, res.Keep[i], survivor, cell); err != nil {
			return fmt.Errorf("inserting result of candidate %d: %w", c.ID, err)
		}

		if onRow != nil {
			onRow()
		}
	}

	return tx.Commit()
}

func (r *sqlRepository) ListRuns(set string) ([]*Run, error) {
	rows, err := r.db.Query(`
		SELECT run_id, set_name, created_at, total, kept, clusters, links, skip_neighbours, h3_res
		FROM runs
		WHERE ? = '' OR set_name = ?
		ORDER BY run_id DESC
	`, set, set)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	runs := []*Run{}

	for rows.Next() {
		var run Run
		if err := rows.Scan(
			&run.ID, &run.Set, &run.CreatedAt, &run.Total, &run.Kept,
			&run.Clusters, &run.Links, &run.SkipNeighbours, &run.H3Res,
		); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}

		runs = append(runs, &run)
	}

	return runs, rows.Err()
}

func (r *sqlRepository) SurvivorCells(runID int64) ([]CellCount, error) {
	rows, err := r.db.Query(`
		SELECT h3_cell, count(*) AS n
		FROM run_results
		WHERE run_id = ? AND kept AND h3_cell IS NOT NULL
		GROUP BY h3_cell
		ORDER BY n DESC, h3_cell
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("querying cells of run %d: %w", runID, err)
	}
	defer rows.Close()

	cells := []CellCount{}

	for rows.Next() {
		var c CellCount
		if err := rows.Scan(&c.Cell, &c.Count); err != nil {
			return nil, fmt.Errorf("scanning cell: %w", err)
		}

		cells = append(cells, c)
	}

	return cells, rows.Err()
}
