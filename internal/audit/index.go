package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"github.com/example/house-heist/internal/game"
)

// Index keeps a queryable copy of the audit trail in SQLite. Writes are
// queued to one writer goroutine and batched into transactions; when the
// queue is full entries are dropped, the journal staying the source of
// truth.
type Index struct {
	db  *sql.DB
	log *log.Logger

	ch   chan indexReq
	wg   sync.WaitGroup
	once sync.Once

	closed  atomic.Bool
	dropped atomic.Uint64
}

type indexReq struct {
	entry game.AuditEntry
	// sync, when set, asks the writer to commit and close it.
	sync chan struct{}
}

// Query filters Entries. Zero fields match everything.
type Query struct {
	Round  uint64
	Player game.PlayerID
	Limit  int
}

func OpenIndex(path string, logger *log.Logger) (*Index, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.Default()
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	ix := &Index{
		db:  db,
		log: logger,
		ch:  make(chan indexReq, 4096),
	}
	ix.wg.Add(1)
	go func() {
		defer ix.wg.Done()
		ix.loop()
	}()
	return ix, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS audits (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			at TEXT NOT NULL,
			round INTEGER NOT NULL,
			conn INTEGER NOT NULL,
			player TEXT NOT NULL,
			operation TEXT NOT NULL,
			detail TEXT NOT NULL,
			target_x INTEGER,
			target_y INTEGER,
			raw_json TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_audits_round ON audits(round, seq);`,
		`CREATE INDEX IF NOT EXISTS idx_audits_player ON audits(player, seq);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (ix *Index) Close() error {
	var err error
	ix.once.Do(func() {
		ix.closed.Store(true)
		close(ix.ch)
		ix.wg.Wait()
		err = ix.db.Close()
	})
	return err
}

// Write queues e without blocking.
func (ix *Index) Write(e game.AuditEntry) error {
	if ix == nil || ix.closed.Load() {
		return nil
	}
	select {
	case ix.ch <- indexReq{entry: e}:
	default:
		ix.dropped.Add(1)
	}
	return nil
}

// Dropped is the number of entries lost to a full queue.
func (ix *Index) Dropped() uint64 { return ix.dropped.Load() }

// Sync waits until every entry queued before it is committed.
func (ix *Index) Sync(ctx context.Context) error {
	if ix.closed.Load() {
		return nil
	}
	done := make(chan struct{})
	select {
	case ix.ch <- indexReq{sync: done}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Entries returns the indexed entries matching q in insertion order,
// including everything written before the call.
func (ix *Index) Entries(ctx context.Context, q Query) ([]game.AuditEntry, error) {
	if err := ix.Sync(ctx); err != nil {
		return nil, err
	}
	var (
		where []string
		args  []any
	)
	if q.Round != 0 {
		where = append(where, "round = ?")
		args = append(args, int64(q.Round))
	}
	if q.Player != "" {
		where = append(where, "player = ?")
		args = append(args, string(q.Player))
	}
	stmt := "SELECT raw_json FROM audits"
	if len(where) > 0 {
		stmt += " WHERE " + strings.Join(where, " AND ")
	}
	stmt += " ORDER BY seq"
	if q.Limit > 0 {
		stmt += " LIMIT ?"
		args = append(args, q.Limit)
	}

	rows, err := ix.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []game.AuditEntry
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var e game.AuditEntry
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			return nil, fmt.Errorf("audit row: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (ix *Index) loop() {
	ctx := context.Background()

	insert, err := ix.db.Prepare(`INSERT INTO audits(at,round,conn,player,operation,detail,target_x,target_y,raw_json) VALUES(?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		ix.log.Printf("prepare audit insert: %v", err)
		for r := range ix.ch {
			if r.sync != nil {
				close(r.sync)
			}
		}
		return
	}
	defer insert.Close()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 256
		commitMaxWait = 200 * time.Millisecond
	)
	begin := func() {
		if tx != nil {
			return
		}
		txx, err := ix.db.BeginTx(ctx, nil)
		if err != nil {
			ix.log.Printf("begin audit tx: %v", err)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		if err := tx.Commit(); err != nil {
			ix.log.Printf("commit audit tx: %v", err)
		}
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	defer commit()

	tick := time.NewTicker(commitMaxWait)
	defer tick.Stop()
	for {
		var r indexReq
		select {
		case req, ok := <-ix.ch:
			if !ok {
				return
			}
			r = req
		case <-tick.C:
			// Readers share the single connection, so idle batches are
			// not left open.
			if time.Since(lastCommit) >= commitMaxWait {
				commit()
			}
			continue
		}
		if r.sync != nil {
			commit()
			close(r.sync)
			continue
		}
		begin()
		if tx == nil {
			continue
		}
		e := r.entry
		raw, _ := json.Marshal(e)
		var x, y sql.NullInt64
		if e.Target != nil {
			x = sql.NullInt64{Int64: int64(e.Target.X), Valid: true}
			y = sql.NullInt64{Int64: int64(e.Target.Y), Valid: true}
		}
		if _, err := tx.Stmt(insert).Exec(
			e.At.UTC().Format(time.RFC3339Nano),
			int64(e.Round),
			int64(e.Conn),
			string(e.Player),
			e.Operation,
			e.Detail,
			x, y,
			string(raw),
		); err != nil {
			ix.log.Printf("insert audit: %v", err)
			_ = tx.Rollback()
			tx = nil
			continue
		}
		opCount++
		if opCount >= commitEvery {
			commit()
		}
	}
}
