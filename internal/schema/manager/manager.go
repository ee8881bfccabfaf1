// Package manager orchestrates schema changes: resolve mapping,
// generate CQL, execute through the resilient executor, and track
// applied migrations in a ledger table.
package manager

import (
	"context"
	"log/slog"

	"github.com/vietddude/cqlguard/internal/infra/cassandra"
	"github.com/vietddude/cqlguard/internal/resilience/executor"
	"github.com/vietddude/cqlguard/internal/resilience/policy"
	"github.com/vietddude/cqlguard/internal/schema/cqlgen"
	"github.com/vietddude/cqlguard/internal/schema/mapping"
)

// ddlOptions is the profile for guarded DDL. Every statement the
// manager issues carries an IF [NOT] EXISTS guard, which makes it safe
// to re-run and therefore safe to retry.
var ddlOptions = policy.Options{
	Profile:    policy.ProfileDefaultRetryAndCircuitBreaker,
	Idempotent: true,
}

// Manager applies entity schemas against the cluster.
type Manager struct {
	session  cassandra.Session
	exec     *executor.Executor
	resolver *mapping.Resolver
	log      *slog.Logger
}

// New creates a schema manager. A nil logger uses the default.
func New(session cassandra.Session, exec *executor.Executor, resolver *mapping.Resolver, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{session: session, exec: exec, resolver: resolver, log: log}
}

// Resolver returns the mapping resolver the manager uses.
func (m *Manager) Resolver() *mapping.Resolver {
	return m.resolver
}

// CreateTable creates the table for entity if it does not exist.
func (m *Manager) CreateTable(ctx context.Context, entity any) error {
	tm, err := m.resolver.Resolve(entity)
	if err != nil {
		return err
	}
	stmt, err := cqlgen.CreateTableCQL(tm, true)
	if err != nil {
		return err
	}
	m.log.Debug("Creating table", "table", tm.QualifiedTable())
	return m.execDDL(ctx, "schema.create_table."+tm.Table, stmt)
}

// DropTable drops the table for entity if it exists.
func (m *Manager) DropTable(ctx context.Context, entity any) error {
	tm, err := m.resolver.Resolve(entity)
	if err != nil {
		return err
	}
	stmt := cqlgen.DropTableCQL(tm, true)
	m.log.Debug("Dropping table", "table", tm.QualifiedTable())
	return m.execDDL(ctx, "schema.drop_table."+tm.Table, stmt)
}

// CreateIndex creates a secondary index on the entity column named by
// field (Go field name or storage name). An empty indexName gets the
// generated <table>_<column>_idx.
func (m *Manager) CreateIndex(ctx context.Context, entity any, field, indexName string) error {
	tm, err := m.resolver.Resolve(entity)
	if err != nil {
		return err
	}
	col, ok := tm.Column(field)
	if !ok {
		return &mapping.MappingError{Entity: tm.EntityName, Reason: "no column for " + field}
	}
	stmt := cqlgen.CreateIndexCQL(tm, col, indexName, true)
	m.log.Debug("Creating index", "table", tm.QualifiedTable(), "column", col.Name)
	return m.execDDL(ctx, "schema.create_index."+tm.Table, stmt)
}

// DropIndex drops the named index if it exists.
func (m *Manager) DropIndex(ctx context.Context, indexName string) error {
	stmt := cqlgen.DropIndexCQL(m.resolver.Keyspace(), indexName, true)
	m.log.Debug("Dropping index", "index", indexName)
	return m.execDDL(ctx, "schema.drop_index."+indexName, stmt)
}

func (m *Manager) execDDL(ctx context.Context, key, stmt string) error {
	return m.exec.Execute(ctx, key, ddlOptions, func(ctx context.Context) error {
		return m.session.Exec(ctx, stmt)
	})
}
