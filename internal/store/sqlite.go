package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"go-post-archiver/internal/model"
)

// SQLite 封装 *sql.DB，基于 modernc.org/sqlite（纯 Go 实现），记录运行历史与逐条结果。
type SQLite struct {
	db *sql.DB
}

// Run 为一次运行的索引记录。
type Run struct {
	ID         int64
	Site       string
	State      string
	StartedAt  time.Time
	FinishedAt time.Time
	Converted  int
	Failed     int
	Saved      int
}

// Item 为单个 URL 的处理结果。
type Item struct {
	RunID   int64
	Index   int
	URL     string
	Slug    string
	Title   string
	Status  string // ok|failed
	Stage   string
	Kind    string
	Message string
}

// OpenSQLite 打开 SQLite 数据库并执行自动迁移。
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	s := &SQLite{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *SQLite) Close() error { return s.db.Close() }

// Reset 清空运行索引（不删除数据库文件）。
func (s *SQLite) Reset(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM items`); err != nil {
		return fmt.Errorf("delete items: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM runs`); err != nil {
		return fmt.Errorf("delete runs: %w", err)
	}
	return nil
}

// migrate 执行建表语句，保持幂等。
func (s *SQLite) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            site TEXT NOT NULL,
            state TEXT NOT NULL DEFAULT 'running',
            started_at TIMESTAMP,
            finished_at TIMESTAMP,
            converted INTEGER NOT NULL DEFAULT 0,
            failed INTEGER NOT NULL DEFAULT 0,
            saved INTEGER NOT NULL DEFAULT 0
        );`,
		`CREATE TABLE IF NOT EXISTS items (
            run_id INTEGER NOT NULL,
            idx INTEGER NOT NULL,
            url TEXT NOT NULL,
            slug TEXT,
            title TEXT,
            status TEXT NOT NULL,
            stage TEXT,
            kind TEXT,
            message TEXT,
            UNIQUE(run_id, idx, stage)
        );`,
	}
	for _, q := range stmts {
		if _, err := s.db.Exec(q); err != nil {
			return fmt.Errorf("exec migrate: %w", err)
		}
	}
	return nil
}

// BeginRun 新建一条运行记录并返回其 ID。
func (s *SQLite) BeginRun(ctx context.Context, site string, startedAt time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `INSERT INTO runs(site, state, started_at) VALUES(?,?,?)`, site, "running", nowOr(startedAt))
	if err != nil {
		return 0, fmt.Errorf("insert run %s: %w", site, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("run id: %w", err)
	}
	return id, nil
}

// RecordResult 在一个事务内写入逐条结果并更新运行汇总。
func (s *SQLite) RecordResult(ctx context.Context, runID int64, r *model.Result) error {
	if r == nil {
		return errors.New("result required")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const upsert = `INSERT INTO items(run_id, idx, url, slug, title, status, stage, kind, message)
        VALUES(?,?,?,?,?,?,?,?,?)
        ON CONFLICT(run_id, idx, stage) DO UPDATE SET url=excluded.url, slug=excluded.slug, title=excluded.title,
            status=excluded.status, kind=excluded.kind, message=excluded.message`
	for _, d := range r.Documents {
		if _, err := tx.ExecContext(ctx, upsert, runID, d.Index, d.URL, d.Slug, d.Title, "ok", "", "", ""); err != nil {
			return fmt.Errorf("record item %s: %w", d.URL, err)
		}
	}
	for _, f := range r.Failures {
		if _, err := tx.ExecContext(ctx, upsert, runID, f.Index, f.URL, "", "", "failed", f.Stage, f.Kind, f.Message()); err != nil {
			return fmt.Errorf("record failure %s: %w", f.URL, err)
		}
	}
	st := r.Stats()
	if _, err := tx.ExecContext(ctx, `UPDATE runs SET state=?, finished_at=?, converted=?, failed=?, saved=? WHERE id=?`,
		string(r.State), nowOr(r.FinishedAt), st.Converted, st.Failed, st.Saved, runID); err != nil {
		return fmt.Errorf("update run %d: %w", runID, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// ListItems 返回某次运行的逐条结果，按 sitemap 顺序。
func (s *SQLite) ListItems(ctx context.Context, runID int64) ([]Item, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT run_id, idx, url, COALESCE(slug,''), COALESCE(title,''), status,
        COALESCE(stage,''), COALESCE(kind,''), COALESCE(message,'') FROM items WHERE run_id = ? ORDER BY idx, stage`, runID)
	if err != nil {
		return nil, fmt.Errorf("query items: %w", err)
	}
	defer rows.Close()
	var out []Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.RunID, &it.Index, &it.URL, &it.Slug, &it.Title, &it.Status, &it.Stage, &it.Kind, &it.Message); err != nil {
			return nil, fmt.Errorf("scan items: %w", err)
		}
		out = append(out, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate items: %w", err)
	}
	return out, nil
}

// LastRun 返回某站点最近一次运行；不存在时返回 sql.ErrNoRows。
func (s *SQLite) LastRun(ctx context.Context, site string) (Run, error) {
	var (
		r          Run
		startedAt  sql.NullTime
		finishedAt sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, `SELECT id, site, state, started_at, finished_at, converted, failed, saved
        FROM runs WHERE site = ? ORDER BY id DESC LIMIT 1`, site).
		Scan(&r.ID, &r.Site, &r.State, &startedAt, &finishedAt, &r.Converted, &r.Failed, &r.Saved)
	if err != nil {
		return Run{}, fmt.Errorf("last run %s: %w", site, err)
	}
	if startedAt.Valid {
		r.StartedAt = startedAt.Time
	}
	if finishedAt.Valid {
		r.FinishedAt = finishedAt.Time
	}
	return r, nil
}

func nowOr(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now()
	}
	return t
}
