package registry

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"newsdesk/types"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

var clientColumns = []string{
	"id", "schedule", "topic_query", "nlp", "delivery_target",
	"credentials_ref", "source", "source_params",
}

// PostgresRegistry reads clients from a table with clientColumns;
// source_params is a JSON object.
type PostgresRegistry struct {
	db    *sql.DB
	table string
}

func NewPostgresRegistry(dsn, table string) (*PostgresRegistry, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}
	return NewPostgresRegistryFromDB(db, table), nil
}

func NewPostgresRegistryFromDB(db *sql.DB, table string) *PostgresRegistry {
	if table == "" {
		table = "clients"
	}
	return &PostgresRegistry{db: db, table: table}
}

func (p *PostgresRegistry) listQuery() (string, []interface{}, error) {
	return psql.Select(clientColumns...).From(p.table).OrderBy("id").ToSql()
}

func (p *PostgresRegistry) getQuery(id string) (string, []interface{}, error) {
	return psql.Select(clientColumns...).From(p.table).Where(sq.Eq{"id": id}).ToSql()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanClient(row rowScanner) (types.ClientConfig, error) {
	var (
		c                     types.ClientConfig
		credsRef, source, raw sql.NullString
	)
	if err := row.Scan(&c.ID, &c.Schedule, &c.TopicQuery, &c.NLPEnabled, &c.DeliveryTarget, &credsRef, &source, &raw); err != nil {
		return c, err
	}
	c.CredentialsRef = credsRef.String
	c.Source = source.String
	if raw.Valid && raw.String != "" {
		if err := json.Unmarshal([]byte(raw.String), &c.SourceParams); err != nil {
			return c, fmt.Errorf("client %q: bad source_params: %w", c.ID, err)
		}
	}
	return c, nil
}

func (p *PostgresRegistry) List(ctx context.Context) ([]types.ClientConfig, error) {
	query, args, err := p.listQuery()
	if err != nil {
		return nil, err
	}
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list clients: %w", err)
	}
	defer rows.Close()

	var clients []types.ClientConfig
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, err
		}
		clients = append(clients, c)
	}
	return clients, rows.Err()
}

func (p *PostgresRegistry) Get(ctx context.Context, id string) (types.ClientConfig, error) {
	query, args, err := p.getQuery(id)
	if err != nil {
		return types.ClientConfig{}, err
	}
	c, err := scanClient(p.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return c, fmt.Errorf("client %q: %w", id, types.ErrUnknownClient)
	}
	if err != nil {
		return c, fmt.Errorf("failed to load client %q: %w", id, err)
	}
	return c, nil
}

func (p *PostgresRegistry) Close() error { return p.db.Close() }
