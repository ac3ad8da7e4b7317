package inmemdb

import (
	"context"
	"database/sql"
	"sync"

	"github.com/tesina/backend/core"
	"github.com/tesina/backend/core/career"
	"github.com/tesina/backend/core/certificate"
	"github.com/tesina/backend/core/evalplan"
	"github.com/tesina/backend/core/grading"
	"github.com/tesina/backend/core/panel"
	"github.com/tesina/backend/core/user"
)

// DB is the in-memory storage used by tests. A single transaction lock stands
// in for row-level locking: BeginTx blocks until the previous transaction
// commits or rolls back, which preserves the serialization that case number
// allocation relies on.
type DB struct {
	mutex sync.RWMutex
	txMu  sync.Mutex

	users       map[string]*user.User
	careers     map[string]*career.Career
	periods     map[string]*career.Period
	staff       map[int64]*career.StaffAssignment
	staffSeq    int64
	plans       map[string]*evalplan.Plan
	items       map[string]*evalplan.Item
	rubrics     map[string]*evalplan.Rubric
	overrides   []evalplan.ComponentGrader
	panels      map[string]*panel.Panel
	members     map[string][]panel.Member
	assignments map[string]*panel.Assignment
	entries     map[string]*grading.Entry // keyed by assignment:key:grader
	certs       map[string]*certificate.Certificate
}

var _ core.DB = (*DB)(nil)

func NewDB() *DB {
	return &DB{
		users:       make(map[string]*user.User),
		careers:     make(map[string]*career.Career),
		periods:     make(map[string]*career.Period),
		staff:       make(map[int64]*career.StaffAssignment),
		plans:       make(map[string]*evalplan.Plan),
		items:       make(map[string]*evalplan.Item),
		rubrics:     make(map[string]*evalplan.Rubric),
		panels:      make(map[string]*panel.Panel),
		members:     make(map[string][]panel.Member),
		assignments: make(map[string]*panel.Assignment),
		entries:     make(map[string]*grading.Entry),
		certs:       make(map[string]*certificate.Certificate),
	}
}

func (db *DB) BeginTx(ctx context.Context, opts *sql.TxOptions) (core.DBTransactor, error) {
	db.txMu.Lock()
	return &txn{db: db}, nil
}

// txn embeds a nil DBExecutor for interface compliance only; the in-memory
// repositories operate on the DB maps directly and never touch the executor.
type txn struct {
	core.DBExecutor
	db   *DB
	done bool
}

func (t *txn) Commit() error {
	if t.done {
		return sql.ErrTxDone
	}
	t.done = true
	t.db.txMu.Unlock()
	return nil
}

func (t *txn) Rollback() error {
	if t.done {
		return sql.ErrTxDone
	}
	t.done = true
	t.db.txMu.Unlock()
	return nil
}

// the raw executor surface is never reachable for an in-memory DB
func (db *DB) Exec(query string, args ...interface{}) (sql.Result, error) {
	return nil, sql.ErrConnDone
}
func (db *DB) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return nil, sql.ErrConnDone
}
func (db *DB) Query(query string, args ...interface{}) (*sql.Rows, error) {
	return nil, sql.ErrConnDone
}
func (db *DB) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return nil, sql.ErrConnDone
}
func (db *DB) QueryRow(query string, args ...interface{}) *sql.Row               { return nil }
func (db *DB) QueryRowContext(ctx context.Context, q string, a ...interface{}) *sql.Row { return nil }
