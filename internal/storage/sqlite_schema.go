package storage

const schemaVersion = 1

// schema defines the complete durable schema for the ThinkGraph and memory
// hierarchy. Tables are created if absent; there is no down-migration path.
const schema = `
CREATE TABLE IF NOT EXISTS schema_metadata (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS thinking_nodes (
	id          TEXT PRIMARY KEY,
	session_id  TEXT NOT NULL,
	reasoning   TEXT NOT NULL,
	input_query TEXT,
	response    TEXT,
	confidence  REAL NOT NULL,
	steps_json  TEXT,
	node_type   TEXT NOT NULL,
	input_tokens  INTEGER NOT NULL DEFAULT 0,
	output_tokens INTEGER NOT NULL DEFAULT 0,
	parent_id   TEXT,
	created_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_thinking_nodes_session ON thinking_nodes(session_id, created_at);

CREATE TABLE IF NOT EXISTS reasoning_edges (
	id          TEXT PRIMARY KEY,
	source_id   TEXT NOT NULL,
	target_id   TEXT NOT NULL,
	type        TEXT NOT NULL,
	weight      REAL NOT NULL DEFAULT 1.0,
	metadata_json TEXT,
	created_at  INTEGER NOT NULL,
	FOREIGN KEY (source_id) REFERENCES thinking_nodes(id) ON DELETE CASCADE,
	FOREIGN KEY (target_id) REFERENCES thinking_nodes(id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_reasoning_edges_source ON reasoning_edges(source_id);
CREATE INDEX IF NOT EXISTS idx_reasoning_edges_target ON reasoning_edges(target_id);

CREATE TABLE IF NOT EXISTS decision_points (
	id                TEXT PRIMARY KEY,
	node_id           TEXT NOT NULL,
	step_number       INTEGER NOT NULL,
	description       TEXT NOT NULL,
	chosen_path       TEXT NOT NULL,
	alternatives_json TEXT,
	confidence        REAL NOT NULL,
	reasoning_excerpt TEXT,
	FOREIGN KEY (node_id) REFERENCES thinking_nodes(id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_decision_points_node ON decision_points(node_id);

CREATE TABLE IF NOT EXISTS memory_entries (
	id               TEXT NOT NULL,
	session_id       TEXT NOT NULL,
	tier             TEXT NOT NULL,
	content          TEXT NOT NULL,
	importance       REAL NOT NULL,
	last_accessed_at INTEGER NOT NULL,
	access_count     INTEGER NOT NULL DEFAULT 0,
	source           TEXT NOT NULL,
	source_id        TEXT,
	tags_json        TEXT,
	created_at       INTEGER NOT NULL,
	PRIMARY KEY (session_id, id)
);
CREATE INDEX IF NOT EXISTS idx_memory_entries_tier ON memory_entries(session_id, tier);

CREATE TABLE IF NOT EXISTS sessions (
	session_id            TEXT PRIMARY KEY,
	last_thinking_node_id TEXT,
	cumulative_output_tokens INTEGER NOT NULL DEFAULT 0,
	max_session_output_tokens INTEGER NOT NULL DEFAULT 0,
	compaction_count      INTEGER NOT NULL DEFAULT 0,
	max_compactions       INTEGER NOT NULL DEFAULT 0,
	state                 TEXT NOT NULL,
	plan_json             TEXT
);
`

const upsertSchemaVersion = `INSERT INTO schema_metadata(key, value) VALUES ('version', ?)
	ON CONFLICT(key) DO UPDATE SET value=excluded.value`
