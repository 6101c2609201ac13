package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Postgres is the durable store backend. Each collection is a set of
// jsonb documents ordered by position.
type Postgres struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// Schema is the DDL for the collections table.
const Schema = `
CREATE TABLE IF NOT EXISTS hde_collections (
	collection TEXT NOT NULL,
	position   INT  NOT NULL,
	record     JSONB NOT NULL,
	PRIMARY KEY (collection, position)
)`

// OpenPostgres connects, verifies the connection and ensures the schema.
func OpenPostgres(ctx context.Context, dsn string, logger *zap.Logger) (*Postgres, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	if _, err := pool.Exec(ctx, Schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	return &Postgres{pool: pool, logger: logger}, nil
}

// Read returns the collection in position order.
func (p *Postgres) Read(ctx context.Context, collection string) ([]json.RawMessage, error) {
	query := `
		SELECT record
		FROM hde_collections
		WHERE collection = $1
		ORDER BY position ASC
	`

	rows, err := p.pool.Query(ctx, query, collection)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", collection, err)
	}
	defer rows.Close()

	var records []json.RawMessage
	for rows.Next() {
		var r json.RawMessage
		if err := rows.Scan(&r); err != nil {
			return nil, fmt.Errorf("scan %s: %w", collection, err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// Write replaces the collection in one transaction so concurrent readers
// never observe a half-written collection.
func (p *Postgres) Write(ctx context.Context, collection string, records []json.RawMessage) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM hde_collections WHERE collection = $1`, collection); err != nil {
		return fmt.Errorf("clear %s: %w", collection, err)
	}

	batch := &pgx.Batch{}
	for i, r := range records {
		batch.Queue(`INSERT INTO hde_collections (collection, position, record) VALUES ($1, $2, $3)`,
			collection, i, r)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert %s: %w", collection, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (p *Postgres) Close() {
	p.pool.Close()
}
