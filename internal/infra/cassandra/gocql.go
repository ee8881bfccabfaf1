package cassandra

import (
	"context"
	"fmt"
	"time"

	"github.com/gocql/gocql"
)

// Config holds cluster connection configuration.
type Config struct {
	Hosts       []string      `yaml:"hosts"`
	Keyspace    string        `yaml:"keyspace"`
	Username    string        `yaml:"username"`
	Password    string        `yaml:"password"`
	Timeout     time.Duration `yaml:"timeout"`
	Consistency string        `yaml:"consistency"`
}

// GocqlSession adapts a gocql session to the Session capability and
// translates driver errors into the classified domain taxonomy.
type GocqlSession struct {
	session *gocql.Session
}

// Connect creates a connected session against the configured cluster.
func Connect(cfg Config) (*GocqlSession, error) {
	if len(cfg.Hosts) == 0 {
		return nil, fmt.Errorf("cassandra: no hosts configured")
	}

	cluster := gocql.NewCluster(cfg.Hosts...)
	cluster.Keyspace = cfg.Keyspace
	if cfg.Timeout > 0 {
		cluster.Timeout = cfg.Timeout
	}
	if cfg.Username != "" {
		cluster.Authenticator = gocql.PasswordAuthenticator{
			Username: cfg.Username,
			Password: cfg.Password,
		}
	}
	if cfg.Consistency != "" {
		consistency, err := gocql.ParseConsistencyWrapper(cfg.Consistency)
		if err != nil {
			return nil, fmt.Errorf("cassandra: %w", err)
		}
		cluster.Consistency = consistency
	}

	session, err := cluster.CreateSession()
	if err != nil {
		return nil, translateError("connect", err)
	}
	return &GocqlSession{session: session}, nil
}

// Exec runs a statement that returns no rows.
func (s *GocqlSession) Exec(ctx context.Context, stmt string, values ...any) error {
	err := s.session.Query(stmt, values...).WithContext(ctx).Exec()
	return translateError("exec", err)
}

// Query runs a statement and returns an iterator over its rows.
func (s *GocqlSession) Query(ctx context.Context, stmt string, values ...any) Iter {
	return &gocqlIter{iter: s.session.Query(stmt, values...).WithContext(ctx).Iter()}
}

// Close shuts the session down.
func (s *GocqlSession) Close() {
	s.session.Close()
}

type gocqlIter struct {
	iter *gocql.Iter
}

func (it *gocqlIter) Scan(dest ...any) bool {
	return it.iter.Scan(dest...)
}

func (it *gocqlIter) Close() error {
	return translateError("query", it.iter.Close())
}
