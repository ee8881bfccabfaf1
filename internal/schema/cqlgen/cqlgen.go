// Package cqlgen builds CQL DDL statements from table mappings. All
// functions are pure: identical mapping and flags always yield
// byte-identical output, which the migration checksums rely on.
package cqlgen

import (
	"fmt"
	"strings"

	"github.com/vietddude/cqlguard/internal/schema/mapping"
)

// UnsupportedTypeError reports a column whose semantic type has no CQL
// spelling. Generation never silently defaults a type.
type UnsupportedTypeError struct {
	Column string
	GoType string
}

func (e *UnsupportedTypeError) Error() string {
	return fmt.Sprintf("no CQL type for column %q (Go type %s)", e.Column, e.GoType)
}

// cqlTypes is the total semantic-to-storage lookup table.
var cqlTypes = map[mapping.TypeKind]string{
	mapping.TypeText:      "text",
	mapping.TypeInt:       "int",
	mapping.TypeBigInt:    "bigint",
	mapping.TypeFloat:     "float",
	mapping.TypeDouble:    "double",
	mapping.TypeBoolean:   "boolean",
	mapping.TypeTimestamp: "timestamp",
	mapping.TypeUUID:      "uuid",
	mapping.TypeBlob:      "blob",
}

// CreateTableCQL renders the CREATE TABLE statement for m.
func CreateTableCQL(m *mapping.TableMapping, ifNotExists bool) (string, error) {
	var b strings.Builder
	b.WriteString("CREATE TABLE ")
	if ifNotExists {
		b.WriteString("IF NOT EXISTS ")
	}
	b.WriteString(m.QualifiedTable())
	b.WriteString(" (")

	for _, c := range m.Columns {
		cqlType, ok := cqlTypes[c.Type]
		if !ok {
			return "", &UnsupportedTypeError{Column: c.Name, GoType: c.GoType}
		}
		b.WriteString(c.Name)
		b.WriteString(" ")
		b.WriteString(cqlType)
		b.WriteString(", ")
	}

	b.WriteString("PRIMARY KEY (")
	b.WriteString(primaryKey(m))
	b.WriteString("))")

	if clause := clusteringOrder(m); clause != "" {
		b.WriteString(" WITH CLUSTERING ORDER BY (")
		b.WriteString(clause)
		b.WriteString(")")
	}
	return b.String(), nil
}

// DropTableCQL renders the DROP TABLE statement for m.
func DropTableCQL(m *mapping.TableMapping, ifExists bool) string {
	var b strings.Builder
	b.WriteString("DROP TABLE ")
	if ifExists {
		b.WriteString("IF EXISTS ")
	}
	b.WriteString(m.QualifiedTable())
	return b.String()
}

// CreateIndexCQL renders a secondary index statement on col. An empty
// indexName falls back to <table>_<column>_idx.
func CreateIndexCQL(m *mapping.TableMapping, col mapping.Column, indexName string, ifNotExists bool) string {
	if indexName == "" {
		indexName = DefaultIndexName(m, col)
	}
	var b strings.Builder
	b.WriteString("CREATE INDEX ")
	if ifNotExists {
		b.WriteString("IF NOT EXISTS ")
	}
	b.WriteString(indexName)
	b.WriteString(" ON ")
	b.WriteString(m.QualifiedTable())
	b.WriteString(" (")
	b.WriteString(col.Name)
	b.WriteString(")")
	return b.String()
}

// DropIndexCQL renders the DROP INDEX statement.
func DropIndexCQL(keyspace, indexName string, ifExists bool) string {
	var b strings.Builder
	b.WriteString("DROP INDEX ")
	if ifExists {
		b.WriteString("IF EXISTS ")
	}
	if keyspace != "" {
		b.WriteString(keyspace)
		b.WriteString(".")
	}
	b.WriteString(indexName)
	return b.String()
}

// DefaultIndexName is the generated name used when the caller supplies
// none.
func DefaultIndexName(m *mapping.TableMapping, col mapping.Column) string {
	return fmt.Sprintf("%s_%s_idx", m.Table, col.Name)
}

func primaryKey(m *mapping.TableMapping) string {
	var pks, cks []string
	for _, c := range m.PartitionKeys() {
		pks = append(pks, c.Name)
	}
	for _, c := range m.ClusteringKeys() {
		cks = append(cks, c.Name)
	}
	key := "(" + strings.Join(pks, ", ") + ")"
	if len(cks) > 0 {
		key += ", " + strings.Join(cks, ", ")
	}
	return key
}

func clusteringOrder(m *mapping.TableMapping) string {
	cks := m.ClusteringKeys()
	if len(cks) == 0 {
		return ""
	}
	explicit := false
	parts := make([]string, 0, len(cks))
	for _, c := range cks {
		order := "ASC"
		if c.ClusteringOrder == mapping.OrderDesc {
			order = "DESC"
		}
		if c.ClusteringOrder != mapping.OrderNone {
			explicit = true
		}
		parts = append(parts, c.Name+" "+order)
	}
	if !explicit {
		return ""
	}
	return strings.Join(parts, ", ")
}
