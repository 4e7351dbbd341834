package mediaadmin

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"

	"modernc.org/sqlite/vtab"

	"github.com/viant/mediasnap/snapshot"
)

// ModuleName is the virtual table module registered by Register.
const ModuleName = "media_admin"

// ErrMemoryDatabase is returned by Register for in-memory databases. Their
// pool holds a single connection, so a media_admin query calling back into
// the store would wait on itself.
var ErrMemoryDatabase = errors.New(ModuleName + ": a file-backed database is required")

// Module exposes snapshot statistics and collection through a virtual table.
// Usage:
//
//	CREATE VIRTUAL TABLE media_admin USING media_admin(name, value);
//	SELECT name, value FROM media_admin;                      -- snapshot stats
//	SELECT value FROM media_admin WHERE name MATCH 'collect:500'; -- collect one page
//	SELECT value FROM media_admin WHERE name MATCH 'version';
type Module struct {
	store atomic.Pointer[snapshot.SQLiteStore]
}

type Table struct {
	module *Module
}

type Cursor struct {
	table *Table
	rows  []row
	pos   int
}

type row struct {
	name  string
	value int64
}

// module is the process-wide instance: the driver keeps the first module
// registered under a name, so later Register calls only swap the store.
var module = &Module{}

// Register installs the media_admin module and binds it to store. Modules
// are visible to connections opened after the first Register call only;
// connections already in the pool of an earlier handle do not see it.
// The module serves the most recently registered store.
func Register(db *sql.DB, store *snapshot.SQLiteStore) error {
	if db == nil || store == nil {
		return fmt.Errorf("%s: db and store are required", ModuleName)
	}
	file, err := mainDatabaseFile(db)
	if err != nil {
		return err
	}
	if file == "" {
		return ErrMemoryDatabase
	}
	module.store.Store(store)
	if err := vtab.RegisterModule(db, ModuleName, module); err != nil {
		if !strings.Contains(err.Error(), "already registered") {
			return err
		}
	}
	return nil
}

func mainDatabaseFile(db *sql.DB) (string, error) {
	var file string
	err := db.QueryRowContext(context.Background(), `SELECT file FROM pragma_database_list WHERE name = 'main'`).Scan(&file)
	if err != nil {
		return "", fmt.Errorf("%s: database list: %w", ModuleName, err)
	}
	return file, nil
}

func (m *Module) Create(ctx vtab.Context, args []string) (vtab.Table, error) {
	return m.connect(ctx, args)
}

func (m *Module) Connect(ctx vtab.Context, args []string) (vtab.Table, error) {
	return m.connect(ctx, args)
}

func (m *Module) connect(ctx vtab.Context, args []string) (vtab.Table, error) {
	if len(args) < 3 {
		return nil, fmt.Errorf("%s: need at least 3 args", ModuleName)
	}
	if err := ctx.Declare(fmt.Sprintf("CREATE TABLE %s(name TEXT, value INTEGER)", args[2])); err != nil {
		return nil, err
	}
	return &Table{module: m}, nil
}

func (t *Table) BestIndex(info *vtab.IndexInfo) error {
	for i := range info.Constraints {
		c := &info.Constraints[i]
		if !c.Usable {
			continue
		}
		if c.Column == 0 && c.Op == vtab.OpMATCH {
			c.ArgIndex = 0
			c.Omit = true
			info.IdxNum = 1
			break
		}
	}
	return nil
}

func (t *Table) Open() (vtab.Cursor, error) { return &Cursor{table: t}, nil }
func (t *Table) Disconnect() error          { return nil }
func (t *Table) Destroy() error             { return nil }

func (c *Cursor) Filter(idxNum int, idxStr string, vals []vtab.Value) error {
	c.rows = nil
	c.pos = 0
	ctx := context.Background()
	store := c.table.module.store.Load()
	if store == nil {
		return fmt.Errorf("%s: no store registered", ModuleName)
	}
	if idxNum != 1 || len(vals) == 0 || vals[0] == nil {
		rows, err := statsRows(ctx, store)
		if err != nil {
			return err
		}
		c.rows = rows
		return nil
	}
	op, ok := vals[0].(string)
	if !ok {
		return fmt.Errorf("%s: MATCH expects an operation as TEXT", ModuleName)
	}
	r, err := runOp(ctx, store, op)
	if err != nil {
		return err
	}
	c.rows = []row{r}
	return nil
}

func (c *Cursor) Next() error {
	if c.pos < len(c.rows) {
		c.pos++
	}
	return nil
}

func (c *Cursor) Eof() bool { return c.pos >= len(c.rows) }

func (c *Cursor) Column(col int) (vtab.Value, error) {
	if c.pos < 0 || c.pos >= len(c.rows) {
		return nil, fmt.Errorf("%s: Column out of range", ModuleName)
	}
	switch col {
	case 0:
		return c.rows[c.pos].name, nil
	case 1:
		return c.rows[c.pos].value, nil
	}
	return nil, nil
}

func (c *Cursor) Rowid() (int64, error) { return int64(c.pos + 1), nil }

func (c *Cursor) Close() error {
	c.rows = nil
	c.pos = 0
	return nil
}

func statsRows(ctx context.Context, store *snapshot.SQLiteStore) ([]row, error) {
	st, err := store.Stats(ctx)
	if err != nil {
		return nil, err
	}
	return []row{
		{"version", st.Version},
		{"pending", int64(st.Pending)},
		{"current", int64(st.Current)},
		{"current_full_size", int64(st.CurrentFullSize)},
		{"current_thumbnails", int64(st.CurrentThumbnails)},
		{"superseded", int64(st.Superseded)},
		{"total", int64(st.Total)},
	}, nil
}

// runOp executes a MATCH operation. Supported: "collect[:pageSize]".
func runOp(ctx context.Context, store *snapshot.SQLiteStore, op string) (row, error) {
	name, arg, _ := strings.Cut(strings.TrimSpace(op), ":")
	switch name {
	case "collect":
		pageSize := 1000
		if arg != "" {
			n, err := strconv.Atoi(arg)
			if err != nil || n <= 0 {
				return row{}, fmt.Errorf("%s: invalid page size %q", ModuleName, arg)
			}
			pageSize = n
		}
		page, err := store.PageOfOldMediaObjects(ctx, pageSize)
		if err != nil {
			return row{}, err
		}
		if err := store.DeleteOldMediaObjects(ctx, page); err != nil {
			return row{}, err
		}
		return row{"collected", int64(len(page))}, nil
	case "version":
		v, err := store.CurrentSnapshotVersion(ctx)
		if err != nil {
			return row{}, err
		}
		return row{"version", v}, nil
	}
	return row{}, fmt.Errorf("%s: unsupported operation %q", ModuleName, op)
}
