package export

import "context"

// migrate creates the result tables
func (e *PGExporter) migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS simulations (
		run_id UUID PRIMARY KEY,
		network TEXT NOT NULL,
		fingerprint TEXT NOT NULL,
		units TEXT NOT NULL,
		started TIMESTAMPTZ NOT NULL,
		steps INTEGER NOT NULL,
		unbalanced INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS simulation_steps (
		run_id UUID NOT NULL REFERENCES simulations(run_id) ON DELETE CASCADE,
		time_s BIGINT NOT NULL,
		status TEXT NOT NULL,
		trials INTEGER NOT NULL,
		relative_error DOUBLE PRECISION NOT NULL,
		PRIMARY KEY (run_id, time_s)
	);

	CREATE TABLE IF NOT EXISTS control_events (
		run_id UUID NOT NULL REFERENCES simulations(run_id) ON DELETE CASCADE,
		time_s BIGINT NOT NULL,
		link_id TEXT NOT NULL,
		status TEXT NOT NULL,
		setting DOUBLE PRECISION NOT NULL,
		reason TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS node_results (
		run_id UUID NOT NULL REFERENCES simulations(run_id) ON DELETE CASCADE,
		time_s BIGINT NOT NULL,
		node_id TEXT NOT NULL,
		head DOUBLE PRECISION NOT NULL,
		pressure DOUBLE PRECISION NOT NULL,
		demand DOUBLE PRECISION NOT NULL,
		isolated BOOLEAN NOT NULL
	);

	CREATE TABLE IF NOT EXISTS link_results (
		run_id UUID NOT NULL REFERENCES simulations(run_id) ON DELETE CASCADE,
		time_s BIGINT NOT NULL,
		link_id TEXT NOT NULL,
		flow DOUBLE PRECISION NOT NULL,
		velocity DOUBLE PRECISION NOT NULL,
		headloss DOUBLE PRECISION NOT NULL,
		status TEXT NOT NULL,
		setting DOUBLE PRECISION NOT NULL,
		power DOUBLE PRECISION NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_simulations_fingerprint ON simulations(fingerprint);
	CREATE INDEX IF NOT EXISTS idx_node_results_run ON node_results(run_id, node_id);
	CREATE INDEX IF NOT EXISTS idx_link_results_run ON link_results(run_id, link_id);
	`

	_, err := e.pool.Exec(ctx, schema)
	return err
}
