// Package mapping resolves entity struct declarations into immutable
// table mappings.
package mapping

import "fmt"

// TypeKind is the semantic column type recorded on a mapping. The
// storage (CQL) spelling is decided by the generator, not here.
type TypeKind int

const (
	TypeUnknown TypeKind = iota
	TypeText
	TypeInt
	TypeBigInt
	TypeFloat
	TypeDouble
	TypeBoolean
	TypeTimestamp
	TypeUUID
	TypeBlob
)

// Order is the clustering order of a column.
type Order int

const (
	OrderNone Order = iota
	OrderAsc
	OrderDesc
)

// Column describes one mapped column in declaration order.
type Column struct {
	Name            string // storage name
	Field           string // Go field name
	Type            TypeKind
	GoType          string
	PartitionKey    bool
	ClusteringKey   bool
	ClusteringOrder Order
}

// TableMapping is the resolved, immutable entity-to-table mapping.
// Column order equals declaration order on the entity.
type TableMapping struct {
	EntityName string
	Keyspace   string
	Table      string
	Columns    []Column
}

// PartitionKeys returns the partition key columns in order.
func (m *TableMapping) PartitionKeys() []Column {
	var out []Column
	for _, c := range m.Columns {
		if c.PartitionKey {
			out = append(out, c)
		}
	}
	return out
}

// ClusteringKeys returns the clustering key columns in order.
func (m *TableMapping) ClusteringKeys() []Column {
	var out []Column
	for _, c := range m.Columns {
		if c.ClusteringKey {
			out = append(out, c)
		}
	}
	return out
}

// Column looks a column up by Go field name or storage name.
func (m *TableMapping) Column(name string) (Column, bool) {
	for _, c := range m.Columns {
		if c.Field == name || c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// QualifiedTable returns keyspace.table, or just the table when no
// keyspace is set.
func (m *TableMapping) QualifiedTable() string {
	if m.Keyspace == "" {
		return m.Table
	}
	return m.Keyspace + "." + m.Table
}

// MappingError reports a malformed entity declaration.
type MappingError struct {
	Entity string
	Reason string
}

func (e *MappingError) Error() string {
	return fmt.Sprintf("mapping %s: %s", e.Entity, e.Reason)
}
