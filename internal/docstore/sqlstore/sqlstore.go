// Package sqlstore keeps documents as JSON rows in a single "documents" table.
// PostgreSQL is reached through wbf/dbpg; SQLite runs embedded through modernc.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/rs/zerolog"
	"github.com/wb-go/wbf/dbpg"
	_ "modernc.org/sqlite"

	"github.com/Match-Score-project/Match-Score/internal/docstore"
)

const table = "documents"

type Dialect int

const (
	Postgres Dialect = iota
	SQLite
)

func (d Dialect) String() string {
	if d == SQLite {
		return "sqlite"
	}
	return "postgres"
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Store struct {
	master  *sql.DB
	reader  execer
	dialect Dialect
	sb      sq.StatementBuilderType
	log     *zerolog.Logger
	close   func() error
}

// NewPostgres wraps a dbpg pool. Reads outside transactions go through the pool,
// which may route them to replicas; writes and transactions use the master.
func NewPostgres(db *dbpg.DB, log *zerolog.Logger) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("db cannot be nil")
	}
	if err := db.Master.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping DB: %w", err)
	}
	return &Store{
		master:  db.Master,
		reader:  db,
		dialect: Postgres,
		sb:      sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
		log:     log,
		close:   db.Master.Close,
	}, nil
}

// OpenSQLite opens an embedded database. A single connection serializes every
// transaction, which is what keeps concurrent roster writes consistent.
func OpenSQLite(dsn string, log *zerolog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &Store{
		master:  db,
		reader:  db,
		dialect: SQLite,
		sb:      sq.StatementBuilder.PlaceholderFormat(sq.Question),
		log:     log,
		close:   db.Close,
	}, nil
}

func (s *Store) Dialect() Dialect { return s.dialect }

func (s *Store) MigrateUp(migrationsDir string) error {
	files, err := filepath.Glob(filepath.Join(migrationsDir, "*.up.sql"))
	if err != nil {
		return fmt.Errorf("failed to read migration files: %w", err)
	}
	sort.Strings(files)

	for _, file := range files {
		sqlBytes, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("failed to read migration file %s: %w", file, err)
		}

		if _, err := s.master.ExecContext(context.Background(), string(sqlBytes)); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", file, err)
		}
	}

	s.log.Info().Str("dialect", s.dialect.String()).Msgf("Migrations applied successfully from %s", migrationsDir)
	return nil
}

func (s *Store) MigrateDown(migrationsDir string) error {
	files, err := filepath.Glob(filepath.Join(migrationsDir, "*.down.sql"))
	if err != nil {
		return fmt.Errorf("failed to read rollback files: %w", err)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(files)))

	for _, file := range files {
		sqlBytes, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("failed to read rollback file %s: %w", file, err)
		}

		if _, err := s.master.ExecContext(context.Background(), string(sqlBytes)); err != nil {
			return fmt.Errorf("failed to rollback migration %s: %w", file, err)
		}
	}

	s.log.Info().Msgf("Migrations rolled back successfully from %s", migrationsDir)
	return nil
}

func (s *Store) Get(ctx context.Context, ref docstore.Ref) (docstore.Document, error) {
	return s.get(ctx, s.reader, ref, false)
}

func (s *Store) get(ctx context.Context, q execer, ref docstore.Ref, lock bool) (docstore.Document, error) {
	b := s.sb.Select("data").From(table).Where(sq.Eq{"path": ref.Path()})
	if lock && s.dialect == Postgres {
		b = b.Suffix("FOR UPDATE")
	}
	query, args, err := b.ToSql()
	if err != nil {
		return docstore.Document{}, fmt.Errorf("build select: %w", err)
	}

	var raw []byte
	if err := q.QueryRowContext(ctx, query, args...).Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return docstore.Document{}, fmt.Errorf("%w: %s", docstore.ErrNotFound, ref.Path())
		}
		return docstore.Document{}, fmt.Errorf("failed to get document %s: %w", ref.Path(), err)
	}
	var f docstore.Fields
	if err := json.Unmarshal(raw, &f); err != nil {
		return docstore.Document{}, fmt.Errorf("corrupt document %s: %w", ref.Path(), err)
	}
	return docstore.Document{Ref: ref, Fields: f}, nil
}

func (s *Store) Query(ctx context.Context, q docstore.Query) ([]docstore.Document, error) {
	return s.query(ctx, s.reader, q)
}

// query narrows candidates in SQL by collection and by the string filters the
// dialect can compare byte-wise. The shared evaluator still runs over the rows.
func (s *Store) query(ctx context.Context, ex execer, q docstore.Query) ([]docstore.Document, error) {
	b := s.sb.Select("path", "data").From(table).Where(sq.Eq{"collection": q.Collection.Name})
	if !q.Group {
		b = b.Where(sq.Eq{"parent": q.Collection.Parent})
	}
	pushed, _ := q.Pushdown()
	for _, f := range pushed {
		b = b.Where(s.filterExpr(f))
	}
	if q.PushLimit() {
		b = b.OrderBy("path").Limit(uint64(q.Limit))
	}
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := ex.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", q.Collection.Path(), err)
	}
	defer rows.Close()

	var docs []docstore.Document
	for rows.Next() {
		var (
			path string
			raw  []byte
		)
		if err := rows.Scan(&path, &raw); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		ref, err := docstore.ParseRef(path)
		if err != nil {
			return nil, fmt.Errorf("bad stored path %q: %w", path, err)
		}
		var f docstore.Fields
		if err := json.Unmarshal(raw, &f); err != nil {
			return nil, fmt.Errorf("corrupt document %s: %w", path, err)
		}
		docs = append(docs, docstore.Document{Ref: ref, Fields: f})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate documents: %w", err)
	}
	return q.Apply(docs), nil
}

// filterExpr compares a JSON string field. Field names reaching here are plain
// identifiers, so they are safe to inline into the path expression.
func (s *Store) filterExpr(f docstore.Filter) sq.Sqlizer {
	op := string(f.Op)
	if f.Op == docstore.OpEq {
		op = "="
	}
	if s.dialect == SQLite {
		path := "'$." + f.Field + "'"
		return sq.Expr("json_type(data, "+path+") = 'text' AND json_extract(data, "+path+") "+op+" ?", f.Value)
	}
	return sq.Expr("jsonb_typeof(data->'"+f.Field+"') = 'string' AND (data->>'"+f.Field+"') COLLATE \"C\" "+op+" ?", f.Value)
}

func (s *Store) Add(ctx context.Context, c docstore.CollectionRef, f docstore.Fields) (docstore.Ref, error) {
	ref := c.NewDoc()
	if err := s.Batch(ctx, []docstore.Write{docstore.Create(ref, f)}); err != nil {
		return docstore.Ref{}, err
	}
	return ref, nil
}

func (s *Store) Set(ctx context.Context, ref docstore.Ref, f docstore.Fields) error {
	return s.Batch(ctx, []docstore.Write{docstore.Set(ref, f)})
}

func (s *Store) Merge(ctx context.Context, ref docstore.Ref, f docstore.Fields) error {
	return s.Batch(ctx, []docstore.Write{docstore.Merge(ref, f)})
}

func (s *Store) Update(ctx context.Context, ref docstore.Ref, f docstore.Fields) error {
	return s.Batch(ctx, []docstore.Write{docstore.Update(ref, f)})
}

func (s *Store) Delete(ctx context.Context, ref docstore.Ref) error {
	return s.Batch(ctx, []docstore.Write{docstore.Delete(ref)})
}

func (s *Store) Batch(ctx context.Context, writes []docstore.Write) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		return s.applyWrites(ctx, tx, writes)
	})
}

func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.master.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *Store) applyWrites(ctx context.Context, tx *sql.Tx, writes []docstore.Write) error {
	for _, w := range writes {
		if !w.Ref.Valid() {
			return fmt.Errorf("%w: %q", docstore.ErrInvalidPath, w.Ref.Path())
		}
		exists := true
		cur, err := s.get(ctx, tx, w.Ref, true)
		if errors.Is(err, docstore.ErrNotFound) {
			exists = false
		} else if err != nil {
			return err
		}

		next, keep, err := docstore.ApplyWrite(cur.Fields, exists, w)
		if err != nil {
			return err
		}
		if !keep {
			if err := s.remove(ctx, tx, w.Ref); err != nil {
				return err
			}
			continue
		}
		if w.Kind == docstore.WriteCreate {
			if err := s.insert(ctx, tx, w.Ref, next); err != nil {
				return err
			}
			continue
		}
		if err := s.upsert(ctx, tx, w.Ref, next); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) upsert(ctx context.Context, tx *sql.Tx, ref docstore.Ref, f docstore.Fields) error {
	raw, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("encode document %s: %w", ref.Path(), err)
	}
	query, args, err := s.sb.Insert(table).
		Columns("path", "parent", "collection", "doc_id", "data", "updated_at").
		Values(ref.Path(), ref.Parent, ref.Collection, ref.ID, string(raw), time.Now().UTC()).
		Suffix("ON CONFLICT (path) DO UPDATE SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build upsert: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to write document %s: %w", ref.Path(), err)
	}
	return nil
}

// insert never touches an existing row. The row lock taken by get cannot cover
// a path that does not exist yet, so a concurrent creator is caught here.
func (s *Store) insert(ctx context.Context, tx *sql.Tx, ref docstore.Ref, f docstore.Fields) error {
	raw, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("encode document %s: %w", ref.Path(), err)
	}
	query, args, err := s.sb.Insert(table).
		Columns("path", "parent", "collection", "doc_id", "data", "updated_at").
		Values(ref.Path(), ref.Parent, ref.Collection, ref.ID, string(raw), time.Now().UTC()).
		Suffix("ON CONFLICT (path) DO NOTHING").
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to create document %s: %w", ref.Path(), err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to create document %s: %w", ref.Path(), err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", docstore.ErrAlreadyExists, ref.Path())
	}
	return nil
}

func (s *Store) remove(ctx context.Context, tx *sql.Tx, ref docstore.Ref) error {
	query, args, err := s.sb.Delete(table).Where(sq.Eq{"path": ref.Path()}).ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to delete document %s: %w", ref.Path(), err)
	}
	return nil
}

type sqlTx struct {
	docstore.TxWrites
	s  *Store
	tx *sql.Tx
}

// Get locks the row on PostgreSQL until the transaction ends.
func (t *sqlTx) Get(ctx context.Context, ref docstore.Ref) (docstore.Document, error) {
	if err := t.CheckRead(); err != nil {
		return docstore.Document{}, err
	}
	return t.s.get(ctx, t.tx, ref, true)
}

func (t *sqlTx) Query(ctx context.Context, q docstore.Query) ([]docstore.Document, error) {
	if err := t.CheckRead(); err != nil {
		return nil, err
	}
	return t.s.query(ctx, t.tx, q)
}

// RunTransaction must not be nested with non-transactional calls on the same
// store inside fn: on SQLite the only connection belongs to the transaction.
func (s *Store) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx docstore.Tx) error) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		t := &sqlTx{s: s, tx: tx}
		if err := fn(ctx, t); err != nil {
			return err
		}
		return s.applyWrites(ctx, tx, t.Writes)
	})
}

func (s *Store) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}
