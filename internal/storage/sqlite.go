package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	_ "modernc.org/sqlite"

	"reasonforge/internal/types"
)

// SQLiteStorage implements Storage on a modernc.org/sqlite-backed database.
// It is the durable alternative to MemoryStorage; the two are
// interchangeable behind the Storage interface.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens (and migrates) a SQLite database at path. A
// busyTimeoutMS of 0 uses a 5 second default, matching a single-writer
// single-process deployment.
func NewSQLiteStorage(path string, busyTimeoutMS int) (*SQLiteStorage, error) {
	if busyTimeoutMS <= 0 {
		busyTimeoutMS = 5000
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)", path, busyTimeoutMS)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite is not safe for concurrent writers on one handle
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: migrate: %w", err)
	}
	if _, err := db.Exec(upsertSchemaVersion, strconv.Itoa(schemaVersion)); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: record schema version: %w", err)
	}
	return &SQLiteStorage{db: db}, nil
}

// Close releases the underlying database handle.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

func (s *SQLiteStorage) SaveNode(ctx context.Context, node *types.ThinkingNode) error {
	if node.ID == "" {
		return fmt.Errorf("storage: node id is required")
	}
	stepsJSON, err := json.Marshal(node.Steps)
	if err != nil {
		return fmt.Errorf("storage: encode steps: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO thinking_nodes
			(id, session_id, reasoning, input_query, response, confidence, steps_json, node_type, input_tokens, output_tokens, parent_id, created_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(id) DO UPDATE SET reasoning=excluded.reasoning, response=excluded.response, confidence=excluded.confidence`,
		node.ID, node.SessionID, node.Reasoning, node.InputQuery, node.Response, node.Confidence,
		string(stepsJSON), string(node.NodeType), node.Usage.InputTokens, node.Usage.OutputTokens,
		nullable(node.ParentID), node.CreatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("storage: save node: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) GetNode(ctx context.Context, id string) (*types.ThinkingNode, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, session_id, reasoning, input_query, response, confidence, steps_json, node_type, input_tokens, output_tokens, parent_id, created_at
		FROM thinking_nodes WHERE id = ?`, id)
	return scanNode(row)
}

func (s *SQLiteStorage) ListNodesBySession(ctx context.Context, sessionID string) ([]*types.ThinkingNode, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, reasoning, input_query, response, confidence, steps_json, node_type, input_tokens, output_tokens, parent_id, created_at
		FROM thinking_nodes WHERE session_id = ? ORDER BY created_at ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("storage: list nodes: %w", err)
	}
	defer rows.Close()

	var out []*types.ThinkingNode
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNode(row rowScanner) (*types.ThinkingNode, error) {
	var n types.ThinkingNode
	var inputQuery, response, parentID sql.NullString
	var stepsJSON string
	var nodeType string
	var createdAtNanos int64
	if err := row.Scan(&n.ID, &n.SessionID, &n.Reasoning, &inputQuery, &response, &n.Confidence,
		&stepsJSON, &nodeType, &n.Usage.InputTokens, &n.Usage.OutputTokens, &parentID, &createdAtNanos); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("storage: node not found")
		}
		return nil, fmt.Errorf("storage: scan node: %w", err)
	}
	n.InputQuery = inputQuery.String
	n.Response = response.String
	n.ParentID = parentID.String
	n.NodeType = types.NodeType(nodeType)
	n.CreatedAt = time.Unix(0, createdAtNanos).UTC()
	if stepsJSON != "" {
		if err := json.Unmarshal([]byte(stepsJSON), &n.Steps); err != nil {
			return nil, fmt.Errorf("storage: decode steps: %w", err)
		}
	}
	return &n, nil
}

func (s *SQLiteStorage) SaveEdge(ctx context.Context, edge *types.ReasoningEdge) error {
	if edge.SourceID == "" || edge.TargetID == "" {
		return fmt.Errorf("storage: edge requires source and target")
	}
	metaJSON, err := json.Marshal(edge.Metadata)
	if err != nil {
		return fmt.Errorf("storage: encode edge metadata: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO reasoning_edges (id, source_id, target_id, type, weight, metadata_json, created_at)
		VALUES (?,?,?,?,?,?,?)
		ON CONFLICT(id) DO NOTHING`,
		edge.ID, edge.SourceID, edge.TargetID, string(edge.Type), edge.Weight, string(metaJSON), edge.CreatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("storage: save edge: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) GetOutgoing(ctx context.Context, nodeID string) ([]*types.ReasoningEdge, error) {
	return s.queryEdges(ctx, `SELECT id, source_id, target_id, type, weight, metadata_json, created_at FROM reasoning_edges WHERE source_id = ?`, nodeID)
}

func (s *SQLiteStorage) GetIncoming(ctx context.Context, nodeID string) ([]*types.ReasoningEdge, error) {
	return s.queryEdges(ctx, `SELECT id, source_id, target_id, type, weight, metadata_json, created_at FROM reasoning_edges WHERE target_id = ?`, nodeID)
}

func (s *SQLiteStorage) queryEdges(ctx context.Context, query, nodeID string) ([]*types.ReasoningEdge, error) {
	rows, err := s.db.QueryContext(ctx, query, nodeID)
	if err != nil {
		return nil, fmt.Errorf("storage: query edges: %w", err)
	}
	defer rows.Close()

	var out []*types.ReasoningEdge
	for rows.Next() {
		var e types.ReasoningEdge
		var edgeType string
		var metaJSON string
		var createdAtNanos int64
		if err := rows.Scan(&e.ID, &e.SourceID, &e.TargetID, &edgeType, &e.Weight, &metaJSON, &createdAtNanos); err != nil {
			return nil, fmt.Errorf("storage: scan edge: %w", err)
		}
		e.Type = types.EdgeType(edgeType)
		e.CreatedAt = time.Unix(0, createdAtNanos).UTC()
		if metaJSON != "" && metaJSON != "null" {
			if err := json.Unmarshal([]byte(metaJSON), &e.Metadata); err != nil {
				return nil, fmt.Errorf("storage: decode edge metadata: %w", err)
			}
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

func (s *SQLiteStorage) SaveDecisionPoint(ctx context.Context, dp *types.DecisionPoint) error {
	if dp.NodeID == "" {
		return fmt.Errorf("storage: decision point requires a node id")
	}
	altJSON, err := json.Marshal(dp.Alternatives)
	if err != nil {
		return fmt.Errorf("storage: encode alternatives: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO decision_points (id, node_id, step_number, description, chosen_path, alternatives_json, confidence, reasoning_excerpt)
		VALUES (?,?,?,?,?,?,?,?)
		ON CONFLICT(id) DO NOTHING`,
		dp.ID, dp.NodeID, dp.StepNumber, dp.Description, dp.ChosenPath, string(altJSON), dp.Confidence, dp.ReasoningExcerpt)
	if err != nil {
		return fmt.Errorf("storage: save decision point: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) ListDecisionPointsByNode(ctx context.Context, nodeID string) ([]*types.DecisionPoint, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, node_id, step_number, description, chosen_path, alternatives_json, confidence, reasoning_excerpt
		FROM decision_points WHERE node_id = ? ORDER BY step_number ASC`, nodeID)
	if err != nil {
		return nil, fmt.Errorf("storage: list decision points: %w", err)
	}
	defer rows.Close()

	var out []*types.DecisionPoint
	for rows.Next() {
		var dp types.DecisionPoint
		var altJSON string
		var excerpt sql.NullString
		if err := rows.Scan(&dp.ID, &dp.NodeID, &dp.StepNumber, &dp.Description, &dp.ChosenPath, &altJSON, &dp.Confidence, &excerpt); err != nil {
			return nil, fmt.Errorf("storage: scan decision point: %w", err)
		}
		dp.ReasoningExcerpt = excerpt.String
		if altJSON != "" && altJSON != "null" {
			if err := json.Unmarshal([]byte(altJSON), &dp.Alternatives); err != nil {
				return nil, fmt.Errorf("storage: decode alternatives: %w", err)
			}
		}
		out = append(out, &dp)
	}
	return out, rows.Err()
}

func (s *SQLiteStorage) SaveMemoryEntry(ctx context.Context, sessionID string, entry *types.MemoryEntry) error {
	if entry.ID == "" {
		return fmt.Errorf("storage: memory entry id is required")
	}
	tagsJSON, err := json.Marshal(entry.Tags)
	if err != nil {
		return fmt.Errorf("storage: encode tags: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO memory_entries (id, session_id, tier, content, importance, last_accessed_at, access_count, source, source_id, tags_json, created_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(session_id, id) DO UPDATE SET
			tier=excluded.tier, content=excluded.content, importance=excluded.importance,
			last_accessed_at=excluded.last_accessed_at, access_count=excluded.access_count`,
		entry.ID, sessionID, string(entry.Tier), entry.Content, entry.Importance,
		entry.LastAccessedAt.UnixNano(), entry.AccessCount, string(entry.Source),
		nullable(entry.SourceID), string(tagsJSON), entry.CreatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("storage: save memory entry: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) GetMemoryEntry(ctx context.Context, sessionID, id string) (*types.MemoryEntry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, tier, content, importance, last_accessed_at, access_count, source, source_id, tags_json, created_at
		FROM memory_entries WHERE session_id = ? AND id = ?`, sessionID, id)
	return scanMemoryEntry(row)
}

func (s *SQLiteStorage) DeleteMemoryEntry(ctx context.Context, sessionID, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM memory_entries WHERE session_id = ? AND id = ?`, sessionID, id)
	if err != nil {
		return fmt.Errorf("storage: delete memory entry: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) ListMemoryEntries(ctx context.Context, sessionID string, tier types.MemoryTier) ([]*types.MemoryEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tier, content, importance, last_accessed_at, access_count, source, source_id, tags_json, created_at
		FROM memory_entries WHERE session_id = ? AND tier = ?`, sessionID, string(tier))
	if err != nil {
		return nil, fmt.Errorf("storage: list memory entries: %w", err)
	}
	defer rows.Close()

	var out []*types.MemoryEntry
	for rows.Next() {
		e, err := scanMemoryEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func scanMemoryEntry(row rowScanner) (*types.MemoryEntry, error) {
	var e types.MemoryEntry
	var tier, source string
	var sourceID sql.NullString
	var tagsJSON string
	var lastAccessedNanos, createdAtNanos int64
	if err := row.Scan(&e.ID, &tier, &e.Content, &e.Importance, &lastAccessedNanos, &e.AccessCount, &source, &sourceID, &tagsJSON, &createdAtNanos); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("storage: memory entry not found")
		}
		return nil, fmt.Errorf("storage: scan memory entry: %w", err)
	}
	e.Tier = types.MemoryTier(tier)
	e.Source = types.MemorySource(source)
	e.SourceID = sourceID.String
	e.LastAccessedAt = time.Unix(0, lastAccessedNanos).UTC()
	e.CreatedAt = time.Unix(0, createdAtNanos).UTC()
	if tagsJSON != "" && tagsJSON != "null" {
		if err := json.Unmarshal([]byte(tagsJSON), &e.Tags); err != nil {
			return nil, fmt.Errorf("storage: decode tags: %w", err)
		}
	}
	return &e, nil
}

func (s *SQLiteStorage) SaveSession(ctx context.Context, snap *SessionSnapshot) error {
	if snap.SessionID == "" {
		return fmt.Errorf("storage: session id is required")
	}
	var planJSON []byte
	var err error
	if snap.Plan != nil {
		planJSON, err = json.Marshal(snap.Plan)
		if err != nil {
			return fmt.Errorf("storage: encode plan: %w", err)
		}
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sessions (session_id, last_thinking_node_id, cumulative_output_tokens, max_session_output_tokens, compaction_count, max_compactions, state, plan_json)
		VALUES (?,?,?,?,?,?,?,?)
		ON CONFLICT(session_id) DO UPDATE SET
			last_thinking_node_id=excluded.last_thinking_node_id,
			cumulative_output_tokens=excluded.cumulative_output_tokens,
			compaction_count=excluded.compaction_count,
			state=excluded.state,
			plan_json=excluded.plan_json`,
		snap.SessionID, nullable(snap.LastThinkingNodeID), snap.Budget.CumulativeOutputTokens,
		snap.Budget.MaxSessionOutputTokens, snap.Budget.CompactionCount, snap.Budget.MaxCompactions,
		string(snap.State), string(planJSON))
	if err != nil {
		return fmt.Errorf("storage: save session: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) GetSession(ctx context.Context, sessionID string) (*SessionSnapshot, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT session_id, last_thinking_node_id, cumulative_output_tokens, max_session_output_tokens, compaction_count, max_compactions, state, plan_json
		FROM sessions WHERE session_id = ?`, sessionID)

	var snap SessionSnapshot
	var lastNodeID sql.NullString
	var state string
	var planJSON sql.NullString
	if err := row.Scan(&snap.SessionID, &lastNodeID, &snap.Budget.CumulativeOutputTokens, &snap.Budget.MaxSessionOutputTokens,
		&snap.Budget.CompactionCount, &snap.Budget.MaxCompactions, &state, &planJSON); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("storage: session %s not found", sessionID)
		}
		return nil, fmt.Errorf("storage: scan session: %w", err)
	}
	snap.LastThinkingNodeID = lastNodeID.String
	snap.State = types.SessionState(state)
	if planJSON.Valid && planJSON.String != "" {
		var plan types.TaskPlan
		if err := json.Unmarshal([]byte(planJSON.String), &plan); err != nil {
			return nil, fmt.Errorf("storage: decode plan: %w", err)
		}
		snap.Plan = &plan
	}
	return &snap, nil
}

func (s *SQLiteStorage) GetMetrics(ctx context.Context) (*Metrics, error) {
	m := &Metrics{}
	counts := []struct {
		table string
		dest  *int
	}{
		{"thinking_nodes", &m.NodeCount},
		{"reasoning_edges", &m.EdgeCount},
		{"decision_points", &m.DecisionPointCount},
		{"memory_entries", &m.MemoryEntryCount},
		{"sessions", &m.SessionCount},
	}
	for _, c := range counts {
		row := s.db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", c.table))
		if err := row.Scan(c.dest); err != nil {
			return nil, fmt.Errorf("storage: count %s: %w", c.table, err)
		}
	}
	return m, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

var _ Storage = (*SQLiteStorage)(nil)
