// Package sqlitegraph implements scmemory.Store on top of SQLite, so a
// knowledge base can outlive the process that loaded it.
//
// All elements live in one table. Connectors carry their endpoints in the
// source and target columns, which are NULL for nodes and links. Addresses are
// AUTOINCREMENT row ids and are never reused after an erase.
package sqlitegraph

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/vk/scagents/internal/sc"
	"github.com/vk/scagents/internal/scmemory"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

const schema = `
CREATE TABLE IF NOT EXISTS elements (
	addr    INTEGER PRIMARY KEY AUTOINCREMENT,
	type    INTEGER NOT NULL,
	source  INTEGER,
	target  INTEGER,
	content TEXT,
	idtf    TEXT UNIQUE
);
CREATE INDEX IF NOT EXISTS elements_source ON elements(source);
CREATE INDEX IF NOT EXISTS elements_target ON elements(target);
`

// Store is a SQLite-backed graph store.
type Store struct {
	db *sql.DB
}

var _ scmemory.Store = (*Store)(nil)

// Open opens or creates the graph database at path. ":memory:" gives a
// private in-memory database.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := openDB("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// A single connection keeps ":memory:" databases shared and serializes
	// writers without SQLITE_BUSY retries.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000"} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) insert(ctx context.Context, t sc.Type, source, target sql.NullInt64) (sc.Addr, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO elements (type, source, target) VALUES (?, ?, ?)`,
		int64(t), source, target)
	if err != nil {
		return sc.EmptyAddr, fmt.Errorf("inserting element: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return sc.EmptyAddr, fmt.Errorf("reading element address: %w", err)
	}
	return sc.Addr(id), nil
}

func (s *Store) CreateNode(ctx context.Context, t sc.Type) (sc.Addr, error) {
	if !t.IsValidNodeType() {
		return sc.EmptyAddr, fmt.Errorf("creating node of type %s: %w", t, scmemory.ErrInvalidType)
	}
	return s.insert(ctx, t, sql.NullInt64{}, sql.NullInt64{})
}

func (s *Store) CreateLink(ctx context.Context, t sc.Type) (sc.Addr, error) {
	if !t.IsValidLinkType() {
		return sc.EmptyAddr, fmt.Errorf("creating link of type %s: %w", t, scmemory.ErrInvalidType)
	}
	return s.insert(ctx, t, sql.NullInt64{}, sql.NullInt64{})
}

func (s *Store) CreateConnector(ctx context.Context, t sc.Type, source, target sc.Addr) (sc.Addr, error) {
	if !t.IsValidConnectorType() {
		return sc.EmptyAddr, fmt.Errorf("creating connector of type %s: %w", t, scmemory.ErrInvalidType)
	}
	for _, end := range []sc.Addr{source, target} {
		ok, err := s.IsElement(ctx, end)
		if err != nil {
			return sc.EmptyAddr, err
		}
		if !ok {
			return sc.EmptyAddr, fmt.Errorf("connector end %s: %w", end, scmemory.ErrElementNotFound)
		}
	}
	return s.insert(ctx, t,
		sql.NullInt64{Int64: int64(source), Valid: true},
		sql.NullInt64{Int64: int64(target), Valid: true})
}

// EraseElement deletes the element together with every connector that
// transitively depends on it.
func (s *Store) EraseElement(ctx context.Context, a sc.Addr) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin erase: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		WITH RECURSIVE doomed(addr) AS (
			SELECT addr FROM elements WHERE addr = ?
			UNION
			SELECT e.addr FROM elements e JOIN doomed d ON e.source = d.addr OR e.target = d.addr
		)
		DELETE FROM elements WHERE addr IN (SELECT addr FROM doomed)`, int64(a))
	if err != nil {
		return fmt.Errorf("erasing %s: %w", a, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("erasing %s: %w", a, err)
	}
	if n == 0 {
		return fmt.Errorf("erasing %s: %w", a, scmemory.ErrElementNotFound)
	}
	return tx.Commit()
}

func (s *Store) IsElement(ctx context.Context, a sc.Addr) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM elements WHERE addr = ?`, int64(a)).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("looking up %s: %w", a, err)
	}
	return true, nil
}

type row struct {
	typ     sc.Type
	source  sql.NullInt64
	target  sql.NullInt64
	content sql.NullString
	idtf    sql.NullString
}

func (s *Store) get(ctx context.Context, a sc.Addr) (row, error) {
	var r row
	var typ int64
	err := s.db.QueryRowContext(ctx,
		`SELECT type, source, target, content, idtf FROM elements WHERE addr = ?`, int64(a)).
		Scan(&typ, &r.source, &r.target, &r.content, &r.idtf)
	if errors.Is(err, sql.ErrNoRows) {
		return r, fmt.Errorf("element %s: %w", a, scmemory.ErrElementNotFound)
	}
	if err != nil {
		return r, fmt.Errorf("reading %s: %w", a, err)
	}
	r.typ = sc.Type(typ)
	return r, nil
}

func (s *Store) ElementType(ctx context.Context, a sc.Addr) (sc.Type, error) {
	r, err := s.get(ctx, a)
	if err != nil {
		return 0, err
	}
	return r.typ, nil
}

func (s *Store) ConnectorEnds(ctx context.Context, a sc.Addr) (sc.Addr, sc.Addr, error) {
	r, err := s.get(ctx, a)
	if err != nil {
		return sc.EmptyAddr, sc.EmptyAddr, err
	}
	if !r.typ.IsConnector() {
		return sc.EmptyAddr, sc.EmptyAddr, fmt.Errorf("element %s: %w", a, scmemory.ErrNotConnector)
	}
	return sc.Addr(r.source.Int64), sc.Addr(r.target.Int64), nil
}

func (s *Store) SetLinkContent(ctx context.Context, a sc.Addr, content string) error {
	r, err := s.get(ctx, a)
	if err != nil {
		return err
	}
	if !r.typ.IsLink() {
		return fmt.Errorf("element %s: %w", a, scmemory.ErrNotLink)
	}
	if _, err := s.db.ExecContext(ctx, `UPDATE elements SET content = ? WHERE addr = ?`, content, int64(a)); err != nil {
		return fmt.Errorf("writing content of %s: %w", a, err)
	}
	return nil
}

func (s *Store) LinkContent(ctx context.Context, a sc.Addr) (string, bool, error) {
	r, err := s.get(ctx, a)
	if err != nil {
		return "", false, err
	}
	if !r.typ.IsLink() {
		return "", false, fmt.Errorf("element %s: %w", a, scmemory.ErrNotLink)
	}
	return r.content.String, r.content.Valid, nil
}

func (s *Store) SetSystemIdentifier(ctx context.Context, a sc.Addr, idtf string) error {
	if _, err := s.get(ctx, a); err != nil {
		return err
	}
	owner, ok, err := s.ResolveSystemIdentifier(ctx, idtf)
	if err != nil {
		return err
	}
	if ok && owner != a {
		return fmt.Errorf("identifier %q: %w", idtf, scmemory.ErrIdentifierInUse)
	}
	if _, err := s.db.ExecContext(ctx, `UPDATE elements SET idtf = ? WHERE addr = ?`, idtf, int64(a)); err != nil {
		return fmt.Errorf("naming %s: %w", a, err)
	}
	return nil
}

func (s *Store) ResolveSystemIdentifier(ctx context.Context, idtf string) (sc.Addr, bool, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `SELECT addr FROM elements WHERE idtf = ?`, idtf).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return sc.EmptyAddr, false, nil
	}
	if err != nil {
		return sc.EmptyAddr, false, fmt.Errorf("resolving %q: %w", idtf, err)
	}
	return sc.Addr(id), true, nil
}

func (s *Store) SystemIdentifier(ctx context.Context, a sc.Addr) (string, bool, error) {
	r, err := s.get(ctx, a)
	if err != nil {
		return "", false, err
	}
	return r.idtf.String, r.idtf.Valid, nil
}

func (s *Store) SystemIdentifiers(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT idtf FROM elements WHERE idtf IS NOT NULL ORDER BY idtf`)
	if err != nil {
		return nil, fmt.Errorf("listing identifiers: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var idtf string
		if err := rows.Scan(&idtf); err != nil {
			return nil, fmt.Errorf("scanning identifier: %w", err)
		}
		out = append(out, idtf)
	}
	return out, rows.Err()
}

// Iterate3 translates the filters into one join over the elements table.
func (s *Store) Iterate3(ctx context.Context, source sc.Filter, connectorType sc.Type, target sc.Filter) ([]sc.Triple, error) {
	var (
		where = []string{"c.source IS NOT NULL"}
		args  []any
	)
	if mask := connectorType.AsConst(); mask != 0 {
		where = append(where, "(c.type & ?) = ?")
		args = append(args, int64(mask), int64(mask))
	}
	where, args = endpointClause(where, args, "c.source", "src.type", source)
	where, args = endpointClause(where, args, "c.target", "tgt.type", target)

	query := `SELECT c.addr, c.source, c.target
		FROM elements c
		JOIN elements src ON src.addr = c.source
		JOIN elements tgt ON tgt.addr = c.target
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY c.addr`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("iterating connectors: %w", err)
	}
	defer rows.Close()

	var out []sc.Triple
	for rows.Next() {
		var c, src, tgt int64
		if err := rows.Scan(&c, &src, &tgt); err != nil {
			return nil, fmt.Errorf("scanning connector: %w", err)
		}
		out = append(out, sc.Triple{Source: sc.Addr(src), Connector: sc.Addr(c), Target: sc.Addr(tgt)})
	}
	return out, rows.Err()
}

func endpointClause(where []string, args []any, addrCol, typeCol string, f sc.Filter) ([]string, []any) {
	if f.IsFixed() {
		return append(where, addrCol+" = ?"), append(args, int64(f.Addr))
	}
	if mask := f.Type.AsConst(); mask != 0 {
		return append(where, "("+typeCol+" & ?) = ?"), append(args, int64(mask), int64(mask))
	}
	return where, args
}
