// Package store provides the keyed JSON collection store consumed by the
// derivation engines. Collections are ordered sequences of JSON records;
// an absent collection reads as empty.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"go.uber.org/zap"
)

// Store is the collection store contract. Write replaces the whole
// collection; there is no record-level locking.
type Store interface {
	Read(ctx context.Context, collection string) ([]json.RawMessage, error)
	Write(ctx context.Context, collection string, records []json.RawMessage) error
}

// Driver identifies a concrete store backend.
type Driver string

const (
	DriverMemory   Driver = "memory"
	DriverPostgres Driver = "postgres"
)

// Open selects a backend from the environment.
//
//	HDE_STORAGE_DRIVER: memory|postgres (default memory)
//	HDE_POSTGRES_DSN: postgres DSN when driver=postgres
func Open(ctx context.Context, logger *zap.Logger) (Store, error) {
	driver := os.Getenv("HDE_STORAGE_DRIVER")
	if driver == "" {
		driver = string(DriverMemory)
	}
	switch Driver(driver) {
	case DriverMemory:
		return NewMemory(), nil
	case DriverPostgres:
		dsn := os.Getenv("HDE_POSTGRES_DSN")
		return OpenPostgres(ctx, dsn, logger)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", driver)
	}
}
