package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/discvscan/internal/model"
	"github.com/nao1215/discvscan/internal/sink"
)

// DBFileName is the name of the database file inside the data directory.
const DBFileName = "discvscan.db"

// timeLayout stores timestamps with fixed-width fractions so that text
// ordering matches time ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// CrawlDB provides SQLite-based storage for crawl sessions and measurements.
type CrawlDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures CrawlDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging so readers do not block the
	// crawl's writes.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// ReadOnlyOptions returns options for commands that only read past crawls.
func ReadOnlyOptions() Options {
	return Options{
		CreateIfNotExists: false,
		EnableWAL:         true,
	}
}

// Open opens or creates a CrawlDB in dbDir.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*CrawlDB, error) {
	dbPath := filepath.Join(dbDir, DBFileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (run a crawl first)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	var dsn string
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	} else {
		dsn = dbPath + "?mode=rw"
	}
	// A crawl writes while report and compare read the same file.
	dsn += "&_pragma=busy_timeout(5000)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	cdb := &CrawlDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := cdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return cdb, nil
}

// Path returns the database file path.
func (cdb *CrawlDB) Path() string {
	return cdb.dbPath
}

// Close closes the database connection.
func (cdb *CrawlDB) Close() error {
	return cdb.db.Close()
}

// createTables creates the database schema if it doesn't exist.
func (cdb *CrawlDB) createTables() error {
	schema := `
	-- One row per crawl run
	CREATE TABLE IF NOT EXISTS crawl_sessions (
		id TEXT PRIMARY KEY,
		started_at TEXT NOT NULL,
		local_node TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_started ON crawl_sessions(started_at);

	-- One row per successful measurement
	CREATE TABLE IF NOT EXISTS measurements (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL REFERENCES crawl_sessions(id),
		cycle INTEGER NOT NULL,
		node_id TEXT NOT NULL,
		endpoint TEXT,
		rtt_min_ms REAL,
		rtt_avg_ms REAL,
		bw_max_mbps REAL,
		bw_avg_mbps REAL,
		pubkey TEXT,
		fork_digest TEXT,
		attnets TEXT,
		attnets_count INTEGER,
		client TEXT,
		query_ms REAL,
		measured_at TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_measurements_cycle ON measurements(session_id, cycle);
	CREATE INDEX IF NOT EXISTS idx_measurements_node ON measurements(node_id);

	-- One row per cycle that ran to completion
	CREATE TABLE IF NOT EXISTS cycles (
		session_id TEXT NOT NULL REFERENCES crawl_sessions(id),
		cycle INTEGER NOT NULL,
		measured INTEGER NOT NULL,
		completed_at TEXT NOT NULL,
		PRIMARY KEY (session_id, cycle)
	);
	`

	_, err := cdb.db.ExecContext(context.Background(), schema)
	return err
}

// Recorder appends the measurements of one crawl session.
// It implements sink.Sink.
type Recorder struct {
	cdb     *CrawlDB
	session model.CrawlSession
}

// StartSession creates a new crawl session for the local node and returns
// its recorder.
func (cdb *CrawlDB) StartSession(ctx context.Context, localNode model.NodeID, startedAt time.Time) (*Recorder, error) {
	session := model.CrawlSession{
		ID:        uuid.NewString(),
		StartedAt: startedAt.UTC(),
		LocalNode: localNode.String(),
	}

	query := `INSERT INTO crawl_sessions (id, started_at, local_node) VALUES (?, ?, ?)`
	if _, err := cdb.db.ExecContext(ctx, query,
		session.ID,
		session.StartedAt.Format(timeLayout),
		session.LocalNode,
	); err != nil {
		return nil, fmt.Errorf("failed to create crawl session: %w", err)
	}

	return &Recorder{cdb: cdb, session: session}, nil
}

// Session returns the session the recorder writes to.
func (r *Recorder) Session() model.CrawlSession {
	return r.session
}

// Append implements sink.Sink.
func (r *Recorder) Append(ctx context.Context, row model.MeasurementRow) error {
	query := `
	INSERT INTO measurements (
		session_id, cycle, node_id, endpoint,
		rtt_min_ms, rtt_avg_ms, bw_max_mbps, bw_avg_mbps,
		pubkey, fork_digest, attnets, attnets_count, client,
		query_ms, measured_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.cdb.db.ExecContext(ctx, query,
		r.session.ID,
		row.Cycle,
		row.NodeID.String(),
		row.Endpoint,
		row.RTTMinMillis(),
		row.RTTAvgMillis(),
		row.Stats.BWMaxMbps(),
		row.Stats.BWAvgMbps(),
		row.PublicKeyHex(),
		row.ForkDigestHex(),
		row.AttnetsHex(),
		row.Attributes.AttnetsCount,
		row.Attributes.Client,
		row.QueryMillis(),
		row.MeasuredAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("%w: failed to insert measurement: %v", sink.ErrPersistence, err)
	}
	return nil
}

// CompleteCycle implements sink.CycleRecorder.
func (r *Recorder) CompleteCycle(ctx context.Context, cycle, measured int, at time.Time) error {
	query := `
	INSERT INTO cycles (session_id, cycle, measured, completed_at)
	VALUES (?, ?, ?, ?)
	`

	if _, err := r.cdb.db.ExecContext(ctx, query,
		r.session.ID,
		cycle,
		measured,
		at.UTC().Format(timeLayout),
	); err != nil {
		return fmt.Errorf("%w: failed to record cycle %d: %v", sink.ErrPersistence, cycle, err)
	}
	return nil
}

// Close implements sink.Sink. The database itself is closed by its owner.
func (r *Recorder) Close() error {
	return nil
}

// ListSessions returns all crawl sessions, newest first.
func (cdb *CrawlDB) ListSessions(ctx context.Context) ([]model.CrawlSession, error) {
	query := `
	SELECT s.id, s.started_at, s.local_node, COUNT(m.id)
	FROM crawl_sessions s
	LEFT JOIN measurements m ON m.session_id = s.id
	GROUP BY s.id
	ORDER BY s.started_at DESC
	`

	rows, err := cdb.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []model.CrawlSession
	for rows.Next() {
		var s model.CrawlSession
		var startedAt string
		if err := rows.Scan(&s.ID, &startedAt, &s.LocalNode, &s.Measurements); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		s.StartedAt = parseTimestamp(startedAt)
		sessions = append(sessions, s)
	}

	return sessions, rows.Err()
}

// GetSession returns the session with the given ID, or nil if there is none.
func (cdb *CrawlDB) GetSession(ctx context.Context, id string) (*model.CrawlSession, error) {
	query := `
	SELECT s.id, s.started_at, s.local_node, COUNT(m.id)
	FROM crawl_sessions s
	LEFT JOIN measurements m ON m.session_id = s.id
	WHERE s.id = ?
	GROUP BY s.id
	`

	var s model.CrawlSession
	var startedAt string
	err := cdb.db.QueryRowContext(ctx, query, id).Scan(&s.ID, &startedAt, &s.LocalNode, &s.Measurements)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	s.StartedAt = parseTimestamp(startedAt)
	return &s, nil
}

// LatestSession returns the most recent session, or nil if there is none.
func (cdb *CrawlDB) LatestSession(ctx context.Context) (*model.CrawlSession, error) {
	sessions, err := cdb.ListSessions(ctx)
	if err != nil {
		return nil, err
	}
	if len(sessions) == 0 {
		return nil, nil
	}
	return &sessions[0], nil
}

// Summary aggregates the measurements of a session.
func (cdb *CrawlDB) Summary(ctx context.Context, sessionID string) (*model.CrawlSummary, error) {
	session, err := cdb.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, nil
	}

	summary := &model.CrawlSummary{
		Session:     *session,
		GeneratedAt: time.Now(),
	}

	summary.Cycles, err = cdb.cycleSummaries(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	summary.Clients, err = cdb.countNodesBy(ctx, sessionID, "client")
	if err != nil {
		return nil, err
	}

	summary.ForkDigests, err = cdb.countNodesBy(ctx, sessionID, "fork_digest")
	if err != nil {
		return nil, err
	}

	return summary, nil
}

func (cdb *CrawlDB) cycleSummaries(ctx context.Context, sessionID string) ([]model.CycleSummary, error) {
	query := `
	SELECT m.cycle, COUNT(DISTINCT m.node_id), AVG(m.rtt_avg_ms), AVG(m.bw_avg_mbps),
		EXISTS (SELECT 1 FROM cycles c WHERE c.session_id = m.session_id AND c.cycle = m.cycle)
	FROM measurements m
	WHERE m.session_id = ?
	GROUP BY m.cycle
	ORDER BY m.cycle
	`

	rows, err := cdb.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to summarise cycles: %w", err)
	}
	defer rows.Close()

	var cycles []model.CycleSummary
	for rows.Next() {
		var c model.CycleSummary
		if err := rows.Scan(&c.Cycle, &c.Nodes, &c.AvgRTTMillis, &c.AvgBWMbps, &c.Complete); err != nil {
			return nil, fmt.Errorf("failed to scan cycle: %w", err)
		}
		cycles = append(cycles, c)
	}

	return cycles, rows.Err()
}

// countNodesBy counts distinct nodes per value of column. column is one of
// a fixed set of names, never user input.
func (cdb *CrawlDB) countNodesBy(ctx context.Context, sessionID, column string) ([]model.Count, error) {
	query := fmt.Sprintf(`
	SELECT COALESCE(NULLIF(%s, ''), 'unknown') AS label, COUNT(DISTINCT node_id)
	FROM measurements
	WHERE session_id = ?
	GROUP BY label
	`, column)

	rows, err := cdb.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to count nodes by %s: %w", column, err)
	}
	defer rows.Close()

	var counts []model.Count
	for rows.Next() {
		var c model.Count
		if err := rows.Scan(&c.Label, &c.Nodes); err != nil {
			return nil, fmt.Errorf("failed to scan count: %w", err)
		}
		counts = append(counts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	model.SortCounts(counts)
	return counts, nil
}

// CycleNodes returns the distinct node IDs measured in one cycle of a session.
func (cdb *CrawlDB) CycleNodes(ctx context.Context, sessionID string, cycle int) ([]string, error) {
	query := `
	SELECT DISTINCT node_id FROM measurements
	WHERE session_id = ? AND cycle = ?
	ORDER BY node_id
	`

	rows, err := cdb.db.QueryContext(ctx, query, sessionID, cycle)
	if err != nil {
		return nil, fmt.Errorf("failed to list cycle nodes: %w", err)
	}
	defer rows.Close()

	var nodes []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan node: %w", err)
		}
		nodes = append(nodes, id)
	}

	return nodes, rows.Err()
}

// timestampFormats contains the timestamp formats that SQLite may return.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999",
}

// parseTimestamp attempts to parse a timestamp string using multiple formats.
// If parsing fails with all formats, returns zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
