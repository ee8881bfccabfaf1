package manager

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/vietddude/cqlguard/internal/infra/cassandra"
)

// fakeSession is an in-memory Session that records executed statements
// and emulates the migration ledger table.
type fakeSession struct {
	mu     sync.Mutex
	execs  []string
	ledger []ledgerRow

	failContains string
	failErr      error
}

type ledgerRow struct {
	scriptID  string
	appliedAt time.Time
	checksum  string
}

func (s *fakeSession) Exec(ctx context.Context, stmt string, values ...any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failContains != "" && strings.Contains(stmt, s.failContains) {
		return s.failErr
	}
	s.execs = append(s.execs, stmt)

	if strings.HasPrefix(stmt, "INSERT INTO schema_migrations") {
		id := values[0].(string)
		if strings.HasSuffix(stmt, "IF NOT EXISTS") {
			for _, row := range s.ledger {
				if row.scriptID == id {
					return nil
				}
			}
		}
		s.ledger = append(s.ledger, ledgerRow{
			scriptID:  id,
			appliedAt: values[1].(time.Time),
			checksum:  values[2].(string),
		})
	}
	return nil
}

func (s *fakeSession) Query(ctx context.Context, stmt string, values ...any) cassandra.Iter {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.Contains(stmt, "FROM schema_migrations") {
		rows := make([]ledgerRow, len(s.ledger))
		copy(rows, s.ledger)
		return &ledgerIter{rows: rows}
	}
	return &ledgerIter{}
}

func (s *fakeSession) Close() {}

func (s *fakeSession) executed() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.execs))
	copy(out, s.execs)
	return out
}

func (s *fakeSession) ledgerIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.ledger))
	for _, row := range s.ledger {
		ids = append(ids, row.scriptID)
	}
	return ids
}

type ledgerIter struct {
	rows []ledgerRow
	pos  int
}

func (it *ledgerIter) Scan(dest ...any) bool {
	if it.pos >= len(it.rows) {
		return false
	}
	row := it.rows[it.pos]
	it.pos++
	*dest[0].(*string) = row.scriptID
	*dest[1].(*time.Time) = row.appliedAt
	*dest[2].(*string) = row.checksum
	return true
}

func (it *ledgerIter) Close() error { return nil }
