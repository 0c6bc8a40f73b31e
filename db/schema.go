// schema.go fetches table definitions and renders them as schema text
// for the composer's schema field.
//
// These functions gather:
//   - Column definitions (name, type, nullable, default, PK)
//   - Foreign key relationships (outgoing)
//
// The output uses the same shape as the form's example:
//
//	table: Users (UserID integer PRIMARY KEY, FirstName varchar(50) NOT NULL).
package db

import (
	"context"
	"fmt"
	"strings"
)

// ColumnInfo describes a single column in a table.
type ColumnInfo struct {
	Name       string
	DataType   string
	IsNullable bool
	Default    string
	IsPK       bool
}

// ForeignKeyInfo describes a foreign key constraint.
type ForeignKeyInfo struct {
	ConstraintName string
	Column         string
	ForeignTable   string
	ForeignColumn  string
}

// TableSchema holds complete schema information for a table.
type TableSchema struct {
	Name        string
	Columns     []ColumnInfo
	ForeignKeys []ForeignKeyInfo
}

const listTablesSQL = `
	SELECT table_name
	FROM information_schema.tables
	WHERE table_schema = $1 AND table_type = 'BASE TABLE'
	ORDER BY table_name`

// columnsSQL renders character types with their length and flags primary
// key columns.
const columnsSQL = `
	SELECT c.column_name,
	       CASE WHEN c.character_maximum_length IS NOT NULL
	            THEN c.data_type || '(' || c.character_maximum_length || ')'
	            ELSE c.data_type END,
	       c.is_nullable = 'YES',
	       COALESCE(c.column_default, ''),
	       EXISTS (
	           SELECT 1
	           FROM information_schema.table_constraints tc
	           JOIN information_schema.key_column_usage kcu
	             ON kcu.constraint_name = tc.constraint_name
	            AND kcu.table_schema = tc.table_schema
	           WHERE tc.constraint_type = 'PRIMARY KEY'
	             AND tc.table_schema = c.table_schema
	             AND tc.table_name = c.table_name
	             AND kcu.column_name = c.column_name
	       )
	FROM information_schema.columns c
	WHERE c.table_schema = $1 AND c.table_name = $2
	ORDER BY c.ordinal_position`

const foreignKeysSQL = `
	SELECT tc.constraint_name, kcu.column_name,
	       ccu.table_name, ccu.column_name
	FROM information_schema.table_constraints tc
	JOIN information_schema.key_column_usage kcu
	  ON tc.constraint_name = kcu.constraint_name
	 AND tc.table_schema = kcu.table_schema
	JOIN information_schema.constraint_column_usage ccu
	  ON ccu.constraint_name = tc.constraint_name
	 AND ccu.table_schema = tc.table_schema
	WHERE tc.constraint_type = 'FOREIGN KEY'
	  AND tc.table_schema = $1 AND tc.table_name = $2
	ORDER BY kcu.column_name`

// ListTables returns the base tables of a schema ("public" if empty).
func (d *DB) ListTables(ctx context.Context, schema string) ([]string, error) {
	if schema == "" {
		schema = "public"
	}
	rows, err := d.Pool.Query(ctx, listTablesSQL, schema)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}

// FetchTableSchema retrieves columns and foreign keys for a table.
func (d *DB) FetchTableSchema(ctx context.Context, schema, table string) (*TableSchema, error) {
	if schema == "" {
		schema = "public"
	}
	ts := &TableSchema{Name: table}

	rows, err := d.Pool.Query(ctx, columnsSQL, schema, table)
	if err != nil {
		return nil, fmt.Errorf("describe %s: %w", table, err)
	}
	for rows.Next() {
		var col ColumnInfo
		if err := rows.Scan(&col.Name, &col.DataType, &col.IsNullable, &col.Default, &col.IsPK); err != nil {
			rows.Close()
			return nil, fmt.Errorf("describe %s: %w", table, err)
		}
		ts.Columns = append(ts.Columns, col)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("describe %s: %w", table, err)
	}
	if len(ts.Columns) == 0 {
		return nil, fmt.Errorf("table %s.%s not found", schema, table)
	}

	rows, err = d.Pool.Query(ctx, foreignKeysSQL, schema, table)
	if err != nil {
		return nil, fmt.Errorf("foreign keys %s: %w", table, err)
	}
	defer rows.Close()
	for rows.Next() {
		var fk ForeignKeyInfo
		if err := rows.Scan(&fk.ConstraintName, &fk.Column, &fk.ForeignTable, &fk.ForeignColumn); err != nil {
			return nil, fmt.Errorf("foreign keys %s: %w", table, err)
		}
		ts.ForeignKeys = append(ts.ForeignKeys, fk)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("foreign keys %s: %w", table, err)
	}
	return ts, nil
}

// LoadSchema fetches the named tables, or every base table of the schema
// when tables is empty.
func (d *DB) LoadSchema(ctx context.Context, schema string, tables []string) ([]TableSchema, error) {
	if len(tables) == 0 {
		var err error
		tables, err = d.ListTables(ctx, schema)
		if err != nil {
			return nil, err
		}
		if len(tables) == 0 {
			return nil, fmt.Errorf("schema %q has no tables", schemaOrPublic(schema))
		}
	}

	out := make([]TableSchema, 0, len(tables))
	for _, name := range tables {
		ts, err := d.FetchTableSchema(ctx, schema, name)
		if err != nil {
			return nil, err
		}
		out = append(out, *ts)
	}
	return out, nil
}

// FormatSchemaText renders one "table: ..." line per table.
func FormatSchemaText(tables []TableSchema) string {
	var sb strings.Builder
	for i, ts := range tables {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(formatTable(ts))
	}
	return sb.String()
}

func formatTable(ts TableSchema) string {
	refs := make(map[string]ForeignKeyInfo, len(ts.ForeignKeys))
	for _, fk := range ts.ForeignKeys {
		refs[fk.Column] = fk
	}

	parts := make([]string, 0, len(ts.Columns))
	for _, col := range ts.Columns {
		var b strings.Builder
		b.WriteString(col.Name)
		b.WriteString(" ")
		b.WriteString(col.DataType)
		if col.IsPK {
			b.WriteString(" PRIMARY KEY")
		} else if !col.IsNullable {
			b.WriteString(" NOT NULL")
		}
		if col.Default != "" {
			b.WriteString(" DEFAULT ")
			b.WriteString(col.Default)
		}
		if fk, ok := refs[col.Name]; ok {
			fmt.Fprintf(&b, " REFERENCES %s(%s)", fk.ForeignTable, fk.ForeignColumn)
		}
		parts = append(parts, b.String())
	}
	return fmt.Sprintf("table: %s (%s).", ts.Name, strings.Join(parts, ", "))
}

func schemaOrPublic(schema string) string {
	if schema == "" {
		return "public"
	}
	return schema
}
