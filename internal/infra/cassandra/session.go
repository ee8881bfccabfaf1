// Package cassandra provides the cluster-session capability: an
// already connected, pool-managed handle to the cluster. Connection
// establishment, host discovery and protocol negotiation are opaque to
// the rest of the system.
package cassandra

import "context"

// Iter streams rows from a query result.
type Iter interface {
	// Scan copies the next row into dest, returning false when the
	// result set is exhausted or an error occurred.
	Scan(dest ...any) bool

	// Close releases the iterator and returns any error seen while
	// iterating.
	Close() error
}

// Session is the opaque cluster handle. Implementations are safe for
// concurrent use by many callers.
type Session interface {
	// Exec runs a statement that returns no rows.
	Exec(ctx context.Context, stmt string, values ...any) error

	// Query runs a statement and returns an iterator over its rows.
	Query(ctx context.Context, stmt string, values ...any) Iter

	// Close shuts the session down.
	Close()
}
