// Package datarecording stores what happens in a simulation in a SQLite
// database. Entries are plain structs; every exported field becomes a
// column.
package datarecording

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"reflect"
	"sort"
	"strings"
	"sync"

	// Pure Go SQLite driver, registered as "sqlite".
	_ "github.com/glebarez/go-sqlite"
	"github.com/rs/xid"
	"github.com/tebeka/atexit"
)

// DefaultBatchSize is the number of buffered entries that triggers a flush.
const DefaultBatchSize = 1000

// DataRecorder is a backend that can record and store data.
type DataRecorder interface {
	// CreateTable creates a new table shaped like sampleEntry.
	CreateTable(tableName string, sampleEntry any)

	// InsertData buffers an entry for a table that already exists.
	InsertData(tableName string, entry any)

	// ListTables returns the names of all tables, sorted.
	ListTables() []string

	// Flush writes all the buffered entries into the database.
	Flush() error

	// Close flushes and closes the database.
	Close() error

	// Filename returns the database file. It is empty for a recorder
	// created on an open database.
	Filename() string
}

// New creates a recorder writing to path.sqlite3. An empty path picks a
// unique name. The file must not exist yet.
func New(path string, batchSize int) (DataRecorder, error) {
	if path == "" {
		path = "solclock_recording_" + xid.New().String()
	}

	filename := path + ".sqlite3"
	if _, err := os.Stat(filename); err == nil {
		return nil, fmt.Errorf("file %s already exists", filename)
	}

	db, err := sql.Open("sqlite", filename)
	if err != nil {
		return nil, err
	}

	w := newWriter(db, batchSize)
	w.filename = filename

	atexit.Register(func() { _ = w.Flush() })

	return w, nil
}

// NewWithDB creates a recorder on an open database.
func NewWithDB(db *sql.DB, batchSize int) DataRecorder {
	w := newWriter(db, batchSize)

	atexit.Register(func() { _ = w.Flush() })

	return w
}

func newWriter(db *sql.DB, batchSize int) *sqliteWriter {
	if batchSize < 1 {
		batchSize = DefaultBatchSize
	}

	return &sqliteWriter{
		db:        db,
		batchSize: batchSize,
		tables:    make(map[string]*table),
	}
}

type table struct {
	structType reflect.Type
	entries    []any
}

type sqliteWriter struct {
	lock sync.Mutex

	db         *sql.DB
	filename   string
	tables     map[string]*table
	batchSize  int
	entryCount int
	closed     bool
}

func columnType(kind reflect.Kind) (string, bool) {
	switch kind {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32,
		reflect.Uint64:
		return "INTEGER", true
	case reflect.Float32, reflect.Float64:
		return "REAL", true
	case reflect.String:
		return "TEXT", true
	default:
		return "", false
	}
}

func columns(structType reflect.Type) ([]string, error) {
	if structType.Kind() != reflect.Struct {
		return nil, fmt.Errorf("entry must be a struct, got %s", structType)
	}

	var cols []string
	for i := 0; i < structType.NumField(); i++ {
		field := structType.Field(i)
		if !field.IsExported() {
			return nil, fmt.Errorf("field %s is not exported", field.Name)
		}

		sqlType, ok := columnType(field.Type.Kind())
		if !ok {
			return nil, fmt.Errorf(
				"field %s has unsupported type %s", field.Name, field.Type)
		}

		cols = append(cols, quoteIdent(field.Name)+" "+sqlType)
	}

	return cols, nil
}

// quoteIdent quotes a table or column name so that names such as When or
// Order are not read as SQL keywords.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (w *sqliteWriter) CreateTable(tableName string, sampleEntry any) {
	structType := reflect.TypeOf(sampleEntry)

	cols, err := columns(structType)
	if err != nil {
		panic(err)
	}

	w.lock.Lock()
	defer w.lock.Unlock()

	if _, exists := w.tables[tableName]; exists {
		panic(fmt.Sprintf("table %s already exists", tableName))
	}

	w.mustExecute(`CREATE TABLE ` + quoteIdent(tableName) +
		` (` + "\n\t" + strings.Join(cols, ", \n\t") + "\n" + `);`)

	w.tables[tableName] = &table{structType: structType}
}

func (w *sqliteWriter) InsertData(tableName string, entry any) {
	w.lock.Lock()
	defer w.lock.Unlock()

	t, exists := w.tables[tableName]
	if !exists {
		panic(fmt.Sprintf("table %s does not exist", tableName))
	}

	if reflect.TypeOf(entry) != t.structType {
		panic(fmt.Sprintf("entry of type %T does not match table %s",
			entry, tableName))
	}

	t.entries = append(t.entries, entry)

	w.entryCount++
	if w.entryCount >= w.batchSize {
		if err := w.flushLocked(); err != nil {
			panic(err)
		}
	}
}

func (w *sqliteWriter) ListTables() []string {
	w.lock.Lock()
	defer w.lock.Unlock()

	tables := make([]string, 0, len(w.tables))
	for name := range w.tables {
		tables = append(tables, name)
	}

	sort.Strings(tables)

	return tables
}

func (w *sqliteWriter) Flush() error {
	w.lock.Lock()
	defer w.lock.Unlock()

	return w.flushLocked()
}

func (w *sqliteWriter) flushLocked() error {
	if w.entryCount == 0 || w.closed {
		return nil
	}

	tx, err := w.db.Begin()
	if err != nil {
		return err
	}

	for name, t := range w.tables {
		if len(t.entries) == 0 {
			continue
		}

		if err := insertAll(tx, name, t); err != nil {
			return errors.Join(err, tx.Rollback())
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	for _, t := range w.tables {
		t.entries = nil
	}

	w.entryCount = 0

	return nil
}

func insertAll(tx *sql.Tx, tableName string, t *table) error {
	marks := make([]string, t.structType.NumField())
	for i := range marks {
		marks[i] = "?"
	}

	stmt, err := tx.Prepare("INSERT INTO " + quoteIdent(tableName) +
		" VALUES (" + strings.Join(marks, ", ") + ")")
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, entry := range t.entries {
		value := reflect.ValueOf(entry)

		args := make([]any, value.NumField())
		for i := range args {
			args[i] = fieldValue(value.Field(i))
		}

		if _, err := stmt.Exec(args...); err != nil {
			return err
		}
	}

	return nil
}

// fieldValue converts unsigned integers, which database/sql does not
// accept above the int64 range.
func fieldValue(v reflect.Value) any {
	switch v.Kind() {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32,
		reflect.Uint64:
		return int64(v.Uint())
	default:
		return v.Interface()
	}
}

func (w *sqliteWriter) Filename() string {
	return w.filename
}

func (w *sqliteWriter) Close() error {
	w.lock.Lock()
	defer w.lock.Unlock()

	if w.closed {
		return nil
	}

	err := w.flushLocked()
	w.closed = true

	return errors.Join(err, w.db.Close())
}

func (w *sqliteWriter) mustExecute(query string) sql.Result {
	res, err := w.db.Exec(query)
	if err != nil {
		panic(fmt.Errorf("failed to execute %q: %w", query, err))
	}

	return res
}
