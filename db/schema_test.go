package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	pgx "github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// fakeRows serves canned rows through the pgx.Rows interface.
type fakeRows struct {
	rows [][]any
	pos  int
	err  error
}

func (r *fakeRows) Close()                                       {}
func (r *fakeRows) Err() error                                   { return r.err }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }

func (r *fakeRows) Next() bool {
	if r.pos >= len(r.rows) {
		return false
	}
	r.pos++
	return true
}

func (r *fakeRows) Values() ([]any, error) { return r.rows[r.pos-1], nil }

func (r *fakeRows) Scan(dest ...any) error {
	row := r.rows[r.pos-1]
	if len(dest) != len(row) {
		return fmt.Errorf("scan: %d targets for %d values", len(dest), len(row))
	}
	for i, d := range dest {
		switch p := d.(type) {
		case *string:
			*p = row[i].(string)
		case *bool:
			*p = row[i].(bool)
		default:
			return fmt.Errorf("scan: unsupported target %T", d)
		}
	}
	return nil
}

// fakeQuerier answers by matching the query text and table argument.
type fakeQuerier struct {
	tables  []string
	columns map[string][][]any
	fks     map[string][][]any
	err     error
	queries int
}

func (q *fakeQuerier) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	q.queries++
	if q.err != nil {
		return nil, q.err
	}
	switch sql {
	case listTablesSQL:
		rows := make([][]any, 0, len(q.tables))
		for _, name := range q.tables {
			rows = append(rows, []any{name})
		}
		return &fakeRows{rows: rows}, nil
	case columnsSQL:
		return &fakeRows{rows: q.columns[args[1].(string)]}, nil
	case foreignKeysSQL:
		return &fakeRows{rows: q.fks[args[1].(string)]}, nil
	}
	return nil, errors.New("unexpected query")
}

func newShopQuerier() *fakeQuerier {
	return &fakeQuerier{
		tables: []string{"orders", "users"},
		columns: map[string][][]any{
			"users": {
				{"id", "integer", false, "nextval('users_id_seq'::regclass)", true},
				{"email", "character varying(100)", false, "", false},
				{"nickname", "text", true, "", false},
			},
			"orders": {
				{"id", "bigint", false, "", true},
				{"user_id", "integer", false, "", false},
				{"total", "numeric", true, "0", false},
			},
		},
		fks: map[string][][]any{
			"orders": {{"orders_user_id_fkey", "user_id", "users", "id"}},
		},
	}
}

func TestFetchTableSchema(t *testing.T) {
	d := New(newShopQuerier())
	ts, err := d.FetchTableSchema(context.Background(), "", "orders")
	if err != nil {
		t.Fatal(err)
	}
	want := &TableSchema{
		Name: "orders",
		Columns: []ColumnInfo{
			{Name: "id", DataType: "bigint", IsPK: true},
			{Name: "user_id", DataType: "integer"},
			{Name: "total", DataType: "numeric", IsNullable: true, Default: "0"},
		},
		ForeignKeys: []ForeignKeyInfo{
			{ConstraintName: "orders_user_id_fkey", Column: "user_id", ForeignTable: "users", ForeignColumn: "id"},
		},
	}
	if diff := cmp.Diff(want, ts); diff != "" {
		t.Errorf("schema (-want +got):\n%s", diff)
	}
}

func TestFetchTableSchemaMissingTable(t *testing.T) {
	d := New(newShopQuerier())
	_, err := d.FetchTableSchema(context.Background(), "public", "ghost")
	if err == nil || !strings.Contains(err.Error(), "public.ghost not found") {
		t.Fatalf("err = %v", err)
	}
}

func TestLoadSchemaAllTables(t *testing.T) {
	d := New(newShopQuerier())
	tables, err := d.LoadSchema(context.Background(), "public", nil)
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, ts := range tables {
		names = append(names, ts.Name)
	}
	if diff := cmp.Diff([]string{"orders", "users"}, names); diff != "" {
		t.Errorf("tables (-want +got):\n%s", diff)
	}
}

func TestLoadSchemaEmpty(t *testing.T) {
	d := New(&fakeQuerier{})
	if _, err := d.LoadSchema(context.Background(), "", nil); err == nil {
		t.Fatal("expected error for a schema without tables")
	}
}

func TestLoadSchemaQueryError(t *testing.T) {
	d := New(&fakeQuerier{err: errors.New("permission denied")})
	_, err := d.LoadSchema(context.Background(), "", []string{"users"})
	if err == nil || !strings.Contains(err.Error(), "permission denied") {
		t.Fatalf("err = %v", err)
	}
}

func TestFormatSchemaText(t *testing.T) {
	d := New(newShopQuerier())
	tables, err := d.LoadSchema(context.Background(), "", []string{"users", "orders"})
	if err != nil {
		t.Fatal(err)
	}
	got := FormatSchemaText(tables)
	want := "table: users (id integer PRIMARY KEY DEFAULT nextval('users_id_seq'::regclass), " +
		"email character varying(100) NOT NULL, nickname text).\n" +
		"table: orders (id bigint PRIMARY KEY, user_id integer NOT NULL REFERENCES users(id), " +
		"total numeric DEFAULT 0)."
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("schema text (-want +got):\n%s", diff)
	}
}

func TestCloseWithoutPool(t *testing.T) {
	d := New(newShopQuerier())
	d.Close()
	d.Close()
}
