package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"media_scrooper/models"
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS extraction_runs (
		id INTEGER PRIMARY KEY,
		run_id TEXT,
		site_id TEXT,
		target_url TEXT,
		started_at DATETIME,
		finished_at DATETIME,
		status TEXT,
		winner TEXT,
		candidates INTEGER DEFAULT 0,
		errors_count INTEGER DEFAULT 0,
		report JSON
	);

	CREATE TABLE IF NOT EXISTS run_logs (
		id INTEGER PRIMARY KEY,
		run_id INTEGER,
		timestamp DATETIME,
		level TEXT,
		message TEXT,
		site_id TEXT
	);

	CREATE TABLE IF NOT EXISTS site_stats (
		site_id TEXT PRIMARY KEY,
		last_run_at DATETIME,
		last_run_status TEXT,
		total_runs INTEGER,
		total_candidates INTEGER,
		success_rate REAL
	);

	CREATE TABLE IF NOT EXISTS cursors (
		site_id TEXT NOT NULL,
		target_url TEXT NOT NULL,
		cursor TEXT NOT NULL,
		updated_at DATETIME,
		PRIMARY KEY (site_id, target_url)
	);

	CREATE TABLE IF NOT EXISTS commands (
		id INTEGER PRIMARY KEY,
		command TEXT,
		params JSON,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		processed_at DATETIME
	);

	CREATE INDEX IF NOT EXISTS idx_commands_pending ON commands(processed_at) WHERE processed_at IS NULL;
	CREATE INDEX IF NOT EXISTS idx_logs_run ON run_logs(run_id, timestamp);
	CREATE INDEX IF NOT EXISTS idx_runs_status ON extraction_runs(status, started_at);
	CREATE INDEX IF NOT EXISTS idx_runs_site ON extraction_runs(site_id, started_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) CreateRun(run *models.ExtractionRun) (int64, error) {
	result, err := s.db.Exec(`
		INSERT INTO extraction_runs (run_id, site_id, target_url, started_at, status, candidates, errors_count)
		VALUES (?, ?, ?, ?, ?, 0, 0)`,
		run.RunID, run.SiteID, run.TargetURL, run.StartedAt, run.Status)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

func (s *SQLiteStore) UpdateRun(run *models.ExtractionRun) error {
	var report interface{}
	if len(run.Report) > 0 {
		report = string(run.Report)
	}
	_, err := s.db.Exec(`
		UPDATE extraction_runs SET run_id = ?, finished_at = ?, status = ?, winner = ?,
			candidates = ?, errors_count = ?, report = ?
		WHERE id = ?`,
		run.RunID, run.FinishedAt, run.Status, run.Winner,
		run.Candidates, run.ErrorsCount, report, run.ID)
	return err
}

func (s *SQLiteStore) GetRun(id int64) (*models.ExtractionRun, error) {
	row := s.db.QueryRow(`
		SELECT id, COALESCE(run_id, ''), site_id, target_url, started_at, finished_at, status,
			COALESCE(winner, ''), candidates, errors_count, report
		FROM extraction_runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return run, err
}

// RecentRuns returns the newest runs first. An empty siteID lists all sites.
func (s *SQLiteStore) RecentRuns(siteID string, limit int) ([]models.ExtractionRun, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `
		SELECT id, COALESCE(run_id, ''), site_id, target_url, started_at, finished_at, status,
			COALESCE(winner, ''), candidates, errors_count, report
		FROM extraction_runs`
	args := []interface{}{}
	if siteID != "" {
		query += " WHERE site_id = ?"
		args = append(args, siteID)
	}
	query += " ORDER BY started_at DESC, id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []models.ExtractionRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row scanner) (*models.ExtractionRun, error) {
	var run models.ExtractionRun
	var finished sql.NullTime
	var report sql.NullString
	if err := row.Scan(&run.ID, &run.RunID, &run.SiteID, &run.TargetURL, &run.StartedAt, &finished,
		&run.Status, &run.Winner, &run.Candidates, &run.ErrorsCount, &report); err != nil {
		return nil, err
	}
	if finished.Valid {
		t := finished.Time
		run.FinishedAt = &t
	}
	if report.Valid {
		run.Report = json.RawMessage(report.String)
	}
	return &run, nil
}

func (s *SQLiteStore) Log(runID *int64, level models.LogLevel, message, siteID string) error {
	_, err := s.db.Exec(`
		INSERT INTO run_logs (run_id, timestamp, level, message, site_id)
		VALUES (?, ?, ?, ?, ?)`,
		runID, time.Now(), level, message, siteID)
	return err
}

func (s *SQLiteStore) RunLogs(runID int64) ([]models.RunLog, error) {
	rows, err := s.db.Query(`
		SELECT id, run_id, timestamp, level, message, site_id
		FROM run_logs WHERE run_id = ? ORDER BY timestamp, id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []models.RunLog
	for rows.Next() {
		var l models.RunLog
		var rid sql.NullInt64
		if err := rows.Scan(&l.ID, &rid, &l.Timestamp, &l.Level, &l.Message, &l.SiteID); err != nil {
			return nil, err
		}
		if rid.Valid {
			v := rid.Int64
			l.RunID = &v
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

func (s *SQLiteStore) UpdateSiteStats(siteID string) error {
	_, err := s.db.Exec(`
		INSERT INTO site_stats (site_id, last_run_at, last_run_status, total_runs, total_candidates, success_rate)
		SELECT
			?,
			(SELECT started_at FROM extraction_runs WHERE site_id = ? ORDER BY started_at DESC, id DESC LIMIT 1),
			(SELECT status FROM extraction_runs WHERE site_id = ? ORDER BY started_at DESC, id DESC LIMIT 1),
			(SELECT COUNT(*) FROM extraction_runs WHERE site_id = ?),
			(SELECT COALESCE(SUM(candidates), 0) FROM extraction_runs WHERE site_id = ?),
			(SELECT CAST(SUM(CASE WHEN status IN ('completed', 'partial') THEN 1 ELSE 0 END) AS REAL) /
				NULLIF(COUNT(*), 0) FROM extraction_runs WHERE site_id = ? AND status != 'running')
		ON CONFLICT(site_id) DO UPDATE SET
			last_run_at = excluded.last_run_at,
			last_run_status = excluded.last_run_status,
			total_runs = excluded.total_runs,
			total_candidates = excluded.total_candidates,
			success_rate = excluded.success_rate`,
		siteID, siteID, siteID, siteID, siteID, siteID)
	return err
}

func (s *SQLiteStore) GetSiteStats(siteID string) (*models.SiteStats, error) {
	row := s.db.QueryRow(`
		SELECT site_id, last_run_at, COALESCE(last_run_status, ''), COALESCE(total_runs, 0),
			COALESCE(total_candidates, 0), COALESCE(success_rate, 0)
		FROM site_stats WHERE site_id = ?`, siteID)

	var st models.SiteStats
	var last sql.NullTime
	err := row.Scan(&st.SiteID, &last, &st.LastRunStatus, &st.TotalRuns, &st.TotalCandidates, &st.SuccessRate)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if last.Valid {
		t := last.Time
		st.LastRunAt = &t
	}
	return &st, nil
}

func (s *SQLiteStore) GetCursor(siteID, targetURL string) (models.Cursor, error) {
	var c string
	err := s.db.QueryRow(`
		SELECT cursor FROM cursors WHERE site_id = ? AND target_url = ?`, siteID, targetURL).Scan(&c)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return models.Cursor(c), err
}

func (s *SQLiteStore) SetCursor(siteID, targetURL string, c models.Cursor) error {
	if c == "" {
		return s.ClearCursor(siteID, targetURL)
	}
	_, err := s.db.Exec(`
		INSERT INTO cursors (site_id, target_url, cursor, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(site_id, target_url) DO UPDATE SET cursor = excluded.cursor, updated_at = excluded.updated_at`,
		siteID, targetURL, string(c), time.Now())
	return err
}

// ClearCursor drops one target's cursor. An empty targetURL clears the
// whole site; both empty clears everything.
func (s *SQLiteStore) ClearCursor(siteID, targetURL string) error {
	var err error
	switch {
	case siteID == "" && targetURL == "":
		_, err = s.db.Exec(`DELETE FROM cursors`)
	case targetURL == "":
		_, err = s.db.Exec(`DELETE FROM cursors WHERE site_id = ?`, siteID)
	case siteID == "":
		_, err = s.db.Exec(`DELETE FROM cursors WHERE target_url = ?`, targetURL)
	default:
		_, err = s.db.Exec(`DELETE FROM cursors WHERE site_id = ? AND target_url = ?`, siteID, targetURL)
	}
	return err
}

// TouchCursor restarts the rest period of an existing cursor without
// changing it. Targets without a cursor are left alone.
func (s *SQLiteStore) TouchCursor(siteID, targetURL string) error {
	_, err := s.db.Exec(`UPDATE cursors SET updated_at = ? WHERE site_id = ? AND target_url = ?`,
		time.Now(), siteID, targetURL)
	return err
}

// CursorTarget is a target with a saved resume point.
type CursorTarget struct {
	SiteID    string
	TargetURL string
	UpdatedAt time.Time
}

// TargetsWithCursor lists targets whose last run stopped early, oldest
// first.
func (s *SQLiteStore) TargetsWithCursor() ([]CursorTarget, error) {
	rows, err := s.db.Query(`
		SELECT site_id, target_url, updated_at FROM cursors ORDER BY updated_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CursorTarget
	for rows.Next() {
		var t CursorTarget
		if err := rows.Scan(&t.SiteID, &t.TargetURL, &t.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) GetPendingCommands() ([]models.Command, error) {
	rows, err := s.db.Query(`
		SELECT id, command, params, created_at, processed_at
		FROM commands WHERE processed_at IS NULL ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cmds []models.Command
	for rows.Next() {
		var cmd models.Command
		var params sql.NullString
		if err := rows.Scan(&cmd.ID, &cmd.Command, &params, &cmd.CreatedAt, &cmd.ProcessedAt); err != nil {
			return nil, err
		}
		if params.Valid {
			cmd.Params = json.RawMessage(params.String)
		}
		cmds = append(cmds, cmd)
	}
	return cmds, rows.Err()
}

func (s *SQLiteStore) MarkCommandProcessed(id int64) error {
	_, err := s.db.Exec(`UPDATE commands SET processed_at = ? WHERE id = ?`, time.Now(), id)
	return err
}

func (s *SQLiteStore) EnqueueCommand(cmd models.CommandType, params models.CommandParams) (int64, error) {
	data, err := json.Marshal(params)
	if err != nil {
		return 0, err
	}
	result, err := s.db.Exec(`
		INSERT INTO commands (command, params, created_at) VALUES (?, ?, ?)`,
		cmd, string(data), time.Now())
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// ResetAllData clears all SQLite operational tables
func (s *SQLiteStore) ResetAllData() error {
	tables := []string{
		"run_logs",
		"extraction_runs",
		"site_stats",
		"cursors",
		"commands",
	}

	for _, table := range tables {
		_, err := s.db.Exec(fmt.Sprintf("DELETE FROM %s", table))
		if err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	return nil
}
