package postgres

import "fmt"

type statements struct {
	schema         []string
	upsertFile     string
	getFile        string
	getFiles       string
	listFiles      string
	deleteFile     string
	countFiles     string
	saveCheckpoint string
	loadCheckpoint string
}

const fileColumns = "id, root, path, size, mode, mod_time, hash, indexed_at, updated_at"

// buildStatements renders every query for table. table must already be
// validated against validTableName.
func buildStatements(table string) statements {
	checkpoints := table + "_checkpoints"
	return statements{
		schema: []string{
			fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	id         BIGINT PRIMARY KEY,
	root       TEXT NOT NULL,
	path       TEXT NOT NULL,
	size       BIGINT NOT NULL,
	mode       BIGINT NOT NULL,
	mod_time   TIMESTAMPTZ NOT NULL,
	hash       TEXT NOT NULL DEFAULT '',
	indexed_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
)`, table),
			fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_root_path_idx ON %s (root, path)`, table, table),
			fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	root       TEXT PRIMARY KEY,
	run_id     TEXT NOT NULL,
	files      BIGINT NOT NULL,
	last_run   TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
)`, checkpoints),
		},
		// xmax is 0 only for freshly inserted rows. The WHERE clause skips
		// rows whose content is unchanged, so they return nothing.
		upsertFile: fmt.Sprintf(`
INSERT INTO %s AS f (%s)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
ON CONFLICT (id) DO UPDATE SET
	root = EXCLUDED.root,
	size = EXCLUDED.size,
	mode = EXCLUDED.mode,
	mod_time = EXCLUDED.mod_time,
	hash = CASE
		WHEN EXCLUDED.hash = '' AND f.size = EXCLUDED.size AND f.mode = EXCLUDED.mode
			AND f.mod_time = EXCLUDED.mod_time THEN f.hash
		ELSE EXCLUDED.hash
	END,
	updated_at = EXCLUDED.updated_at
WHERE f.root <> EXCLUDED.root
	OR f.size <> EXCLUDED.size
	OR f.mode <> EXCLUDED.mode
	OR f.mod_time <> EXCLUDED.mod_time
	OR (EXCLUDED.hash <> '' AND f.hash <> EXCLUDED.hash)
RETURNING (xmax = 0) AS inserted`, table, fileColumns),
		getFile:    fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, fileColumns, table),
		getFiles:   fmt.Sprintf(`SELECT %s FROM %s WHERE id = ANY($1)`, fileColumns, table),
		listFiles:  fmt.Sprintf(`SELECT %s FROM %s WHERE root = $1 ORDER BY path`, fileColumns, table),
		deleteFile: fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, table),
		countFiles: fmt.Sprintf(`SELECT count(*) FROM %s`, table),
		saveCheckpoint: fmt.Sprintf(`
INSERT INTO %s (root, run_id, files, last_run, updated_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (root) DO UPDATE SET
	run_id = EXCLUDED.run_id,
	files = EXCLUDED.files,
	last_run = EXCLUDED.last_run,
	updated_at = EXCLUDED.updated_at`, checkpoints),
		loadCheckpoint: fmt.Sprintf(`SELECT root, run_id, files, last_run, updated_at FROM %s WHERE root = $1`, checkpoints),
	}
}
