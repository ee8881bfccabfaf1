package manager

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/vietddude/cqlguard/internal/infra/cassandra"
	"github.com/vietddude/cqlguard/internal/resilience/executor"
	"github.com/vietddude/cqlguard/internal/resilience/policy"
)

const defaultLedgerTable = "schema_migrations"

// MigrationRecord is one row of the append-only migration ledger.
type MigrationRecord struct {
	ScriptID  string
	AppliedAt time.Time
	Checksum  string
}

// MigrationApplyError wraps the execution error of a failing script.
// The ledger is left untouched for that script.
type MigrationApplyError struct {
	ScriptID string
	Err      error
}

func (e *MigrationApplyError) Error() string {
	return fmt.Sprintf("apply migration %s: %v", e.ScriptID, e.Err)
}

func (e *MigrationApplyError) Unwrap() error {
	return e.Err
}

// scriptOptions governs migration script statements. Script content is
// user-supplied and cannot be assumed idempotent, so the retry budget
// degrades to a single attempt while the breaker still guards the run.
var scriptOptions = policy.Options{
	Profile:    policy.ProfileDefaultRetryAndCircuitBreaker,
	Idempotent: false,
}

// Migrator applies .cql scripts in strict ascending order by ID and
// records each applied script in the ledger. Scripts run strictly
// sequentially; a failure aborts the remaining sequence.
type Migrator struct {
	session cassandra.Session
	exec    *executor.Executor
	scripts fs.FS
	ledger  string
	log     *slog.Logger
}

// NewMigrator creates a migrator over the scripts filesystem. An empty
// ledgerTable uses "schema_migrations"; a nil logger uses the default.
func NewMigrator(session cassandra.Session, exec *executor.Executor, scripts fs.FS, ledgerTable string, log *slog.Logger) *Migrator {
	if ledgerTable == "" {
		ledgerTable = defaultLedgerTable
	}
	if log == nil {
		log = slog.Default()
	}
	return &Migrator{session: session, exec: exec, scripts: scripts, ledger: ledgerTable, log: log}
}

// Up applies all pending scripts and returns how many were applied.
// A script already in the ledger is skipped, but its stored checksum
// must still match the current content.
func (mg *Migrator) Up(ctx context.Context) (int, error) {
	if err := mg.ensureLedger(ctx); err != nil {
		return 0, err
	}
	applied, err := mg.Applied(ctx)
	if err != nil {
		return 0, err
	}
	scripts, err := mg.loadScripts()
	if err != nil {
		return 0, err
	}

	count := 0
	for _, sc := range scripts {
		if rec, ok := applied[sc.ID]; ok {
			if rec.Checksum != sc.Checksum {
				return count, fmt.Errorf("migration %s: checksum mismatch (ledger %s, script %s)", sc.ID, rec.Checksum, sc.Checksum)
			}
			continue
		}
		mg.log.Info("Applying migration", "script", sc.Name)
		if err := mg.apply(ctx, sc); err != nil {
			return count, &MigrationApplyError{ScriptID: sc.ID, Err: err}
		}
		// Record success only after the script fully applied.
		if err := mg.record(ctx, sc); err != nil {
			return count, fmt.Errorf("record migration %s: %w", sc.ID, err)
		}
		count++
	}
	return count, nil
}

// Applied returns the ledger contents keyed by script ID.
func (mg *Migrator) Applied(ctx context.Context) (map[string]MigrationRecord, error) {
	stmt := fmt.Sprintf("SELECT script_id, applied_at, checksum FROM %s", mg.ledger)
	records := make(map[string]MigrationRecord)

	err := mg.exec.Execute(ctx, "migrate.ledger_read", scriptOptions, func(ctx context.Context) error {
		it := mg.session.Query(ctx, stmt)
		var rec MigrationRecord
		for it.Scan(&rec.ScriptID, &rec.AppliedAt, &rec.Checksum) {
			records[rec.ScriptID] = rec
		}
		return it.Close()
	})
	if err != nil {
		return nil, fmt.Errorf("read migration ledger: %w", err)
	}
	return records, nil
}

// Pending returns the IDs of scripts not yet recorded in the ledger,
// in apply order.
func (mg *Migrator) Pending(ctx context.Context) ([]string, error) {
	if err := mg.ensureLedger(ctx); err != nil {
		return nil, err
	}
	applied, err := mg.Applied(ctx)
	if err != nil {
		return nil, err
	}
	scripts, err := mg.loadScripts()
	if err != nil {
		return nil, err
	}
	var pending []string
	for _, sc := range scripts {
		if _, ok := applied[sc.ID]; !ok {
			pending = append(pending, sc.ID)
		}
	}
	return pending, nil
}

func (mg *Migrator) ensureLedger(ctx context.Context) error {
	stmt := fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %s (script_id text PRIMARY KEY, applied_at timestamp, checksum text)",
		mg.ledger,
	)
	err := mg.exec.Execute(ctx, "migrate.ledger_create", ddlOptions, func(ctx context.Context) error {
		return mg.session.Exec(ctx, stmt)
	})
	if err != nil {
		return fmt.Errorf("create migration ledger: %w", err)
	}
	return nil
}

func (mg *Migrator) apply(ctx context.Context, sc script) error {
	for _, stmt := range sc.Statements {
		err := mg.exec.Execute(ctx, "migrate."+sc.ID, scriptOptions, func(ctx context.Context) error {
			return mg.session.Exec(ctx, stmt)
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (mg *Migrator) record(ctx context.Context, sc script) error {
	// Cassandra INSERT is an upsert; the LWT guard keeps the ledger
	// append-only even when two migrators race on the same script.
	stmt := fmt.Sprintf("INSERT INTO %s (script_id, applied_at, checksum) VALUES (?, ?, ?) IF NOT EXISTS", mg.ledger)
	return mg.exec.Execute(ctx, "migrate.ledger_write", scriptOptions, func(ctx context.Context) error {
		return mg.session.Exec(ctx, stmt, sc.ID, time.Now().UTC(), sc.Checksum)
	})
}

type script struct {
	ID         string
	Name       string
	Checksum   string
	Statements []string
}

// loadScripts reads *.cql files sorted ascending by filename. The
// script ID is the filename up to the first underscore (or the whole
// base name when there is none).
func (mg *Migrator) loadScripts() ([]script, error) {
	names, err := fs.Glob(mg.scripts, "*.cql")
	if err != nil {
		return nil, fmt.Errorf("list migration scripts: %w", err)
	}
	sort.Strings(names)

	scripts := make([]script, 0, len(names))
	for _, name := range names {
		data, err := fs.ReadFile(mg.scripts, name)
		if err != nil {
			return nil, fmt.Errorf("read migration script %s: %w", name, err)
		}
		sum := sha256.Sum256(data)
		scripts = append(scripts, script{
			ID:         scriptID(name),
			Name:       name,
			Checksum:   hex.EncodeToString(sum[:]),
			Statements: splitStatements(string(data)),
		})
	}
	return scripts, nil
}

func scriptID(name string) string {
	base := strings.TrimSuffix(name, ".cql")
	if i := strings.Index(base, "_"); i > 0 {
		return base[:i]
	}
	return base
}

// splitStatements splits script content on ";" and strips comment
// lines starting with "--".
func splitStatements(content string) []string {
	var clean []string
	for _, line := range strings.Split(content, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		clean = append(clean, line)
	}

	var stmts []string
	for _, raw := range strings.Split(strings.Join(clean, "\n"), ";") {
		stmt := strings.TrimSpace(raw)
		if stmt != "" {
			stmts = append(stmts, stmt)
		}
	}
	return stmts
}
