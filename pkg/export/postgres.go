package export

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dd0wney/cluso-hydraulics/pkg/results"
)

// PostgresConfig configures the PostgreSQL exporter
type PostgresConfig struct {
	URL      string `yaml:"url" validate:"required"`
	MaxConns int32  `yaml:"max_conns" validate:"omitempty,min=1"`
}

// PGExporter stores runs, steps and per-element results in PostgreSQL
type PGExporter struct {
	pool *pgxpool.Pool
}

// NewPGExporter connects, pings and creates the tables if missing
func NewPGExporter(ctx context.Context, cfg PostgresConfig) (*PGExporter, error) {
	config, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}
	config.MaxConns = 8
	if cfg.MaxConns > 0 {
		config.MaxConns = cfg.MaxConns
	}
	config.MaxConnLifetime = 5 * time.Minute
	config.MaxConnIdleTime = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database unreachable: %w", err)
	}

	e := &PGExporter{pool: pool}
	if err := e.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}
	return e, nil
}

func (e *PGExporter) Name() string { return "postgres" }

// Ping checks database connectivity
func (e *PGExporter) Ping(ctx context.Context) error {
	return e.pool.Ping(ctx)
}

// Export writes the run in one transaction. Element results are bulk
// loaded with COPY.
func (e *PGExporter) Export(ctx context.Context, sim *results.Simulation) error {
	if sim == nil {
		return ErrNoSimulation
	}
	tx, err := e.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO simulations (run_id, network, fingerprint, units, started, steps, unbalanced)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, sim.RunID, sim.Network, sim.Fingerprint, string(sim.Units), sim.Started, len(sim.Steps), sim.Unbalanced())
	if err != nil {
		return fmt.Errorf("failed to insert simulation: %w", err)
	}

	batch := &pgx.Batch{}
	for _, step := range sim.Steps {
		batch.Queue(`
			INSERT INTO simulation_steps (run_id, time_s, status, trials, relative_error)
			VALUES ($1, $2, $3, $4, $5)
		`, sim.RunID, int64(step.Time/time.Second), step.Status.String(), step.Trials, step.RelativeError)
	}
	for _, c := range sim.ControlLog {
		batch.Queue(`
			INSERT INTO control_events (run_id, time_s, link_id, status, setting, reason)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, sim.RunID, int64(c.Time/time.Second), c.Link, c.Status.String(), c.Setting, c.Reason)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to insert steps: %w", err)
	}

	if _, err := tx.CopyFrom(ctx, pgx.Identifier{"node_results"}, nodeColumns, pgx.CopyFromRows(nodeRows(sim))); err != nil {
		return fmt.Errorf("failed to copy node results: %w", err)
	}
	if _, err := tx.CopyFrom(ctx, pgx.Identifier{"link_results"}, linkColumns, pgx.CopyFromRows(linkRows(sim))); err != nil {
		return fmt.Errorf("failed to copy link results: %w", err)
	}
	return tx.Commit(ctx)
}

// Close closes the connection pool
func (e *PGExporter) Close() error {
	e.pool.Close()
	return nil
}

var (
	nodeColumns = []string{"run_id", "time_s", "node_id", "head", "pressure", "demand", "isolated"}
	linkColumns = []string{"run_id", "time_s", "link_id", "flow", "velocity", "headloss", "status", "setting", "power"}
)

func nodeRows(sim *results.Simulation) [][]any {
	var rows [][]any
	for _, step := range sim.Steps {
		t := int64(step.Time / time.Second)
		for _, id := range results.SortedIDs(step.Nodes) {
			n := step.Nodes[id]
			rows = append(rows, []any{sim.RunID, t, id, n.Head, n.Pressure, n.Demand, n.Isolated})
		}
	}
	return rows
}

func linkRows(sim *results.Simulation) [][]any {
	var rows [][]any
	for _, step := range sim.Steps {
		t := int64(step.Time / time.Second)
		for _, id := range results.SortedIDs(step.Links) {
			l := step.Links[id]
			rows = append(rows, []any{sim.RunID, t, id, l.Flow, l.Velocity, l.HeadLoss, l.Status.String(), l.Setting, l.Power})
		}
	}
	return rows
}
