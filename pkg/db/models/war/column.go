package war

import (
	"errors"
	"fmt"
	"strings"
)

// ColumnDef describes one column of a ClickHouse table. The column lists in
// this package are the single source of truth for table schemas: CREATE TABLE
// statements and INSERT column lists are both derived from them so the two
// can never drift apart.
type ColumnDef struct {
	Name string

	// Type is the ClickHouse type, e.g. "UInt64" or "DateTime64(3, 'UTC')".
	Type string

	// Codec is an optional compression codec such as "ZSTD(1)" or
	// "Delta, ZSTD(3)". Empty means the table default.
	Codec string
}

// SQL renders the column for a CREATE TABLE statement,
// e.g. "player_tag String CODEC(ZSTD(1))".
func (c ColumnDef) SQL() string {
	def := c.Name + " " + c.Type
	if c.Codec != "" {
		def += " CODEC(" + c.Codec + ")"
	}
	return def
}

// Validate reports malformed definitions before they reach DDL.
func (c ColumnDef) Validate() error {
	if c.Name == "" {
		return errors.New("column name cannot be empty")
	}
	if c.Type == "" {
		return fmt.Errorf("column %s: type cannot be empty", c.Name)
	}
	return nil
}

// ColumnsToSchemaSQL renders the column definitions for the body of a
// CREATE TABLE statement, one per line.
func ColumnsToSchemaSQL(columns []ColumnDef) string {
	parts := make([]string, len(columns))
	for i, col := range columns {
		parts[i] = col.SQL()
	}
	return strings.Join(parts, ",\n\t\t\t")
}

// ColumnsToNameList returns just the column names, in table order.
func ColumnsToNameList(columns []ColumnDef) []string {
	names := make([]string, len(columns))
	for i, col := range columns {
		names[i] = col.Name
	}
	return names
}

// ColumnsToInsertList renders the column names as a comma-separated list for
// INSERT INTO and SELECT statements.
func ColumnsToInsertList(columns []ColumnDef) string {
	return strings.Join(ColumnsToNameList(columns), ", ")
}

// ValidateColumns returns the first invalid definition in the list.
func ValidateColumns(columns []ColumnDef) error {
	for _, col := range columns {
		if err := col.Validate(); err != nil {
			return err
		}
	}
	return nil
}
