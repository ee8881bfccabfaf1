package mapping

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/google/uuid"
)

// TableNamer lets an entity override the snake_cased default table name.
type TableNamer interface {
	TableName() string
}

// Resolver turns entity structs into table mappings. Resolution is
// memoized per entity type: the same type always yields the identical
// mapping object, and concurrent resolutions can never produce two
// divergent mappings (first writer wins).
//
// Columns are declared with the `cql` struct tag:
//
//	ID      uuid.UUID `cql:"id,partitionkey"`
//	Bucket  string    `cql:"bucket,partitionkey"`
//	At      time.Time `cql:"at,clusteringkey,desc"`
//	Payload []byte    `cql:"payload"`
//
// An empty name falls back to the snake_cased field name; `cql:"-"`
// skips the field. Partition key columns must come first, followed by
// the clustering columns, then regular columns.
type Resolver struct {
	keyspace string

	mu    sync.Mutex
	cache map[reflect.Type]*TableMapping
}

// NewResolver creates a resolver for the given keyspace.
func NewResolver(keyspace string) *Resolver {
	return &Resolver{
		keyspace: keyspace,
		cache:    make(map[reflect.Type]*TableMapping),
	}
}

// Keyspace returns the keyspace mappings are resolved into.
func (r *Resolver) Keyspace() string {
	return r.keyspace
}

// Resolve returns the table mapping for entity's type.
func (r *Resolver) Resolve(entity any) (*TableMapping, error) {
	t := reflect.TypeOf(entity)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return nil, &MappingError{Entity: fmt.Sprintf("%T", entity), Reason: "entity must be a struct"}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if m, ok := r.cache[t]; ok {
		return m, nil
	}
	m, err := r.build(t)
	if err != nil {
		return nil, err
	}
	r.cache[t] = m
	return m, nil
}

func (r *Resolver) build(t reflect.Type) (*TableMapping, error) {
	m := &TableMapping{
		EntityName: t.Name(),
		Keyspace:   r.keyspace,
		Table:      tableName(t),
	}

	seen := make(map[string]bool)
	sawClustering := false
	sawRegular := false

	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		tag := f.Tag.Get("cql")
		if tag == "-" {
			continue
		}

		col, err := parseColumn(t.Name(), f, tag)
		if err != nil {
			return nil, err
		}

		if seen[col.Name] {
			return nil, &MappingError{Entity: t.Name(), Reason: fmt.Sprintf("duplicate column name %q", col.Name)}
		}
		seen[col.Name] = true

		switch {
		case col.PartitionKey:
			if sawClustering || sawRegular {
				return nil, &MappingError{Entity: t.Name(), Reason: fmt.Sprintf("partition key %q must precede all other columns", col.Name)}
			}
		case col.ClusteringKey:
			if sawRegular {
				return nil, &MappingError{Entity: t.Name(), Reason: fmt.Sprintf("clustering key %q must precede regular columns", col.Name)}
			}
			sawClustering = true
		default:
			sawRegular = true
		}

		m.Columns = append(m.Columns, col)
	}

	if len(m.PartitionKeys()) == 0 {
		return nil, &MappingError{Entity: t.Name(), Reason: "no partition key declared"}
	}
	return m, nil
}

func parseColumn(entity string, f reflect.StructField, tag string) (Column, error) {
	col := Column{
		Field:  f.Name,
		GoType: f.Type.String(),
		Type:   typeKindOf(f.Type),
	}

	parts := strings.Split(tag, ",")
	col.Name = strings.TrimSpace(parts[0])
	if col.Name == "" {
		col.Name = snakeCase(f.Name)
	}

	for _, p := range parts[1:] {
		switch strings.TrimSpace(p) {
		case "partitionkey":
			col.PartitionKey = true
		case "clusteringkey":
			col.ClusteringKey = true
		case "asc":
			col.ClusteringOrder = OrderAsc
		case "desc":
			col.ClusteringOrder = OrderDesc
		case "":
		default:
			return Column{}, &MappingError{Entity: entity, Reason: fmt.Sprintf("column %q: unknown tag option %q", col.Name, p)}
		}
	}

	if col.PartitionKey && col.ClusteringKey {
		return Column{}, &MappingError{Entity: entity, Reason: fmt.Sprintf("column %q cannot be both partition and clustering key", col.Name)}
	}
	if col.ClusteringOrder != OrderNone && !col.ClusteringKey {
		return Column{}, &MappingError{Entity: entity, Reason: fmt.Sprintf("clustering order on non-clustering column %q", col.Name)}
	}
	return col, nil
}

var (
	timeType = reflect.TypeOf(time.Time{})
	uuidType = reflect.TypeOf(uuid.UUID{})
	blobType = reflect.TypeOf([]byte(nil))
)

func typeKindOf(t reflect.Type) TypeKind {
	switch t {
	case timeType:
		return TypeTimestamp
	case uuidType:
		return TypeUUID
	case blobType:
		return TypeBlob
	}
	switch t.Kind() {
	case reflect.String:
		return TypeText
	case reflect.Bool:
		return TypeBoolean
	case reflect.Int16, reflect.Int32:
		return TypeInt
	case reflect.Int, reflect.Int64:
		return TypeBigInt
	case reflect.Float32:
		return TypeFloat
	case reflect.Float64:
		return TypeDouble
	default:
		return TypeUnknown
	}
}

func tableName(t reflect.Type) string {
	if namer, ok := reflect.New(t).Interface().(TableNamer); ok {
		return namer.TableName()
	}
	return snakeCase(t.Name())
}

func snakeCase(s string) string {
	var b strings.Builder
	prevUpper := false
	for i, r := range s {
		if unicode.IsUpper(r) {
			if i > 0 && !prevUpper {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			prevUpper = true
			continue
		}
		b.WriteRune(r)
		prevUpper = false
	}
	return b.String()
}
