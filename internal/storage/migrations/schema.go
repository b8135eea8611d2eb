package migrations

// SQLite returns a manager holding the release store schema for SQLite.
func SQLite() *Manager {
	m := NewManager()
	m.Register(Migration{
		Version:     1,
		Description: "Release, motif and handle tables",
		Up: `
			CREATE TABLE IF NOT EXISTS releases (
				loop_type TEXT NOT NULL,
				id TEXT NOT NULL,
				major INTEGER NOT NULL,
				minor INTEGER NOT NULL,
				created_at TEXT NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				PRIMARY KEY (loop_type, id)
			);

			CREATE TABLE IF NOT EXISTS motifs (
				loop_type TEXT NOT NULL,
				release_id TEXT NOT NULL,
				handle TEXT NOT NULL,
				version INTEGER NOT NULL,
				name TEXT NOT NULL,
				kind TEXT NOT NULL,
				comment TEXT NOT NULL DEFAULT '',
				signature TEXT NOT NULL DEFAULT '',
				position INTEGER NOT NULL,
				PRIMARY KEY (loop_type, release_id, handle),
				FOREIGN KEY (loop_type, release_id) REFERENCES releases(loop_type, id)
			);

			CREATE TABLE IF NOT EXISTS motif_members (
				loop_type TEXT NOT NULL,
				release_id TEXT NOT NULL,
				handle TEXT NOT NULL,
				loop_id TEXT NOT NULL,
				position INTEGER NOT NULL,
				PRIMARY KEY (loop_type, release_id, handle, loop_id),
				FOREIGN KEY (loop_type, release_id, handle) REFERENCES motifs(loop_type, release_id, handle)
			);

			CREATE TABLE IF NOT EXISTS motif_parents (
				loop_type TEXT NOT NULL,
				release_id TEXT NOT NULL,
				handle TEXT NOT NULL,
				parent_id TEXT NOT NULL,
				PRIMARY KEY (loop_type, release_id, handle, parent_id),
				FOREIGN KEY (loop_type, release_id, handle) REFERENCES motifs(loop_type, release_id, handle)
			);

			CREATE TABLE IF NOT EXISTS handles (
				handle TEXT PRIMARY KEY,
				loop_type TEXT NOT NULL,
				release_id TEXT NOT NULL
			);

			CREATE TABLE IF NOT EXISTS config (
				key TEXT PRIMARY KEY,
				value TEXT NOT NULL
			);

			CREATE INDEX IF NOT EXISTS idx_motif_members_loop ON motif_members(loop_id);
		`,
		Down: `
			DROP INDEX IF EXISTS idx_motif_members_loop;
			DROP TABLE IF EXISTS config;
			DROP TABLE IF EXISTS handles;
			DROP TABLE IF EXISTS motif_parents;
			DROP TABLE IF EXISTS motif_members;
			DROP TABLE IF EXISTS motifs;
			DROP TABLE IF EXISTS releases;
		`,
	})
	m.Register(Migration{
		Version:     2,
		Description: "Pipeline event log",
		Up: `
			CREATE TABLE IF NOT EXISTS pipeline_events (
				id TEXT PRIMARY KEY,
				run_id TEXT NOT NULL,
				type TEXT NOT NULL,
				stage TEXT NOT NULL DEFAULT '',
				severity TEXT NOT NULL,
				message TEXT NOT NULL DEFAULT '',
				data TEXT NOT NULL DEFAULT '{}',
				timestamp TEXT NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_pipeline_events_run ON pipeline_events(run_id, timestamp);
		`,
		Down: `
			DROP INDEX IF EXISTS idx_pipeline_events_run;
			DROP TABLE IF EXISTS pipeline_events;
		`,
	})
	m.Register(Migration{
		Version:     3,
		Description: "Append-only release tables",
		Up: `
			CREATE TRIGGER IF NOT EXISTS releases_no_update BEFORE UPDATE ON releases
			BEGIN SELECT RAISE(ABORT, 'releases are append-only'); END;
			CREATE TRIGGER IF NOT EXISTS releases_no_delete BEFORE DELETE ON releases
			BEGIN SELECT RAISE(ABORT, 'releases are append-only'); END;
			CREATE TRIGGER IF NOT EXISTS motifs_no_update BEFORE UPDATE ON motifs
			BEGIN SELECT RAISE(ABORT, 'releases are append-only'); END;
			CREATE TRIGGER IF NOT EXISTS motifs_no_delete BEFORE DELETE ON motifs
			BEGIN SELECT RAISE(ABORT, 'releases are append-only'); END;
			CREATE TRIGGER IF NOT EXISTS motif_members_no_update BEFORE UPDATE ON motif_members
			BEGIN SELECT RAISE(ABORT, 'releases are append-only'); END;
			CREATE TRIGGER IF NOT EXISTS motif_members_no_delete BEFORE DELETE ON motif_members
			BEGIN SELECT RAISE(ABORT, 'releases are append-only'); END;
		`,
		Down: `
			DROP TRIGGER IF EXISTS motif_members_no_delete;
			DROP TRIGGER IF EXISTS motif_members_no_update;
			DROP TRIGGER IF EXISTS motifs_no_delete;
			DROP TRIGGER IF EXISTS motifs_no_update;
			DROP TRIGGER IF EXISTS releases_no_delete;
			DROP TRIGGER IF EXISTS releases_no_update;
		`,
	})
	return m
}

// Postgres returns a manager holding the release store schema for
// PostgreSQL.
func Postgres() *Manager {
	m := NewManager()
	m.Register(Migration{
		Version:     1,
		Description: "Release, motif and handle tables",
		Up: `
			CREATE TABLE IF NOT EXISTS releases (
				loop_type TEXT NOT NULL,
				id TEXT NOT NULL,
				major INTEGER NOT NULL,
				minor INTEGER NOT NULL,
				created_at TIMESTAMPTZ NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				PRIMARY KEY (loop_type, id)
			);

			CREATE TABLE IF NOT EXISTS motifs (
				loop_type TEXT NOT NULL,
				release_id TEXT NOT NULL,
				handle TEXT NOT NULL,
				version INTEGER NOT NULL,
				name TEXT NOT NULL,
				kind TEXT NOT NULL,
				comment TEXT NOT NULL DEFAULT '',
				signature TEXT NOT NULL DEFAULT '',
				position INTEGER NOT NULL,
				PRIMARY KEY (loop_type, release_id, handle),
				FOREIGN KEY (loop_type, release_id) REFERENCES releases(loop_type, id)
			);

			CREATE TABLE IF NOT EXISTS motif_members (
				loop_type TEXT NOT NULL,
				release_id TEXT NOT NULL,
				handle TEXT NOT NULL,
				loop_id TEXT NOT NULL,
				position INTEGER NOT NULL,
				PRIMARY KEY (loop_type, release_id, handle, loop_id),
				FOREIGN KEY (loop_type, release_id, handle) REFERENCES motifs(loop_type, release_id, handle)
			);

			CREATE TABLE IF NOT EXISTS motif_parents (
				loop_type TEXT NOT NULL,
				release_id TEXT NOT NULL,
				handle TEXT NOT NULL,
				parent_id TEXT NOT NULL,
				PRIMARY KEY (loop_type, release_id, handle, parent_id),
				FOREIGN KEY (loop_type, release_id, handle) REFERENCES motifs(loop_type, release_id, handle)
			);

			CREATE TABLE IF NOT EXISTS handles (
				handle TEXT PRIMARY KEY,
				loop_type TEXT NOT NULL,
				release_id TEXT NOT NULL
			);

			CREATE TABLE IF NOT EXISTS config (
				key TEXT PRIMARY KEY,
				value TEXT NOT NULL
			);

			CREATE INDEX IF NOT EXISTS idx_motif_members_loop ON motif_members(loop_id);
		`,
		Down: `
			DROP TABLE IF EXISTS config, handles, motif_parents, motif_members, motifs, releases;
		`,
	})
	m.Register(Migration{
		Version:     2,
		Description: "Pipeline event log",
		Up: `
			CREATE TABLE IF NOT EXISTS pipeline_events (
				id TEXT PRIMARY KEY,
				run_id TEXT NOT NULL,
				type TEXT NOT NULL,
				stage TEXT NOT NULL DEFAULT '',
				severity TEXT NOT NULL,
				message TEXT NOT NULL DEFAULT '',
				data JSONB NOT NULL DEFAULT '{}',
				timestamp TIMESTAMPTZ NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_pipeline_events_run ON pipeline_events(run_id, timestamp);
		`,
		Down: `
			DROP TABLE IF EXISTS pipeline_events;
		`,
	})
	m.Register(Migration{
		Version:     3,
		Description: "Append-only release tables",
		Up: `
			CREATE OR REPLACE FUNCTION reject_release_mutation() RETURNS trigger AS $$
			BEGIN
				RAISE EXCEPTION 'releases are append-only';
			END;
			$$ LANGUAGE plpgsql;

			CREATE TRIGGER releases_append_only BEFORE UPDATE OR DELETE ON releases
				FOR EACH ROW EXECUTE FUNCTION reject_release_mutation();
			CREATE TRIGGER motifs_append_only BEFORE UPDATE OR DELETE ON motifs
				FOR EACH ROW EXECUTE FUNCTION reject_release_mutation();
			CREATE TRIGGER motif_members_append_only BEFORE UPDATE OR DELETE ON motif_members
				FOR EACH ROW EXECUTE FUNCTION reject_release_mutation();
		`,
		Down: `
			DROP TRIGGER IF EXISTS motif_members_append_only ON motif_members;
			DROP TRIGGER IF EXISTS motifs_append_only ON motifs;
			DROP TRIGGER IF EXISTS releases_append_only ON releases;
			DROP FUNCTION IF EXISTS reject_release_mutation();
		`,
	})
	return m
}
