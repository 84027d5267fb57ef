// Package db implements the relational data model and repositories of the
// Nvisy server on PostgreSQL via GORM, including pgvector-backed similarity
// search over file chunk embeddings.
package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/nvisycom/server/common"
	"github.com/nvisycom/server/config"
)

var log = common.Component("db")

// ErrNotFound is returned when a requested row does not exist or is hidden
// by soft-delete scoping.
var ErrNotFound = errors.New("db: record not found")

// ErrConflict is returned when an operation would violate a state invariant
// (duplicate chunk identity, illegal run transition).
var ErrConflict = errors.New("db: conflicting state")

// slowAcquireThreshold is how long a transaction begin may take before a
// warning is logged.
const slowAcquireThreshold = 100 * time.Millisecond

// Client is a clonable handle over the bounded connection pool. All
// repositories are methods on Client; mutations that span multiple
// statements run inside Transaction.
type Client struct {
	gorm *gorm.DB
}

// NewClient opens the PostgreSQL pool with the configured bounds and
// verifies connectivity.
func NewClient(cfg config.PostgresConfig) (*Client, error) {
	gormDB, err := gorm.Open(postgres.Open(cfg.URL), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("db: open: %w", err)
	}

	sqlDB, err := gormDB.DB()
	if err != nil {
		return nil, fmt.Errorf("db: pool handle: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MinIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.MaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ConnectTimeout)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("db: ping: %w", err)
	}

	log.WithField("max_open_conns", cfg.MaxOpenConns).Info("connected to postgres")
	return &Client{gorm: gormDB}, nil
}

// Transaction runs fn inside a database transaction, committing on nil and
// rolling back on error. Slow transaction acquisition is logged.
func (c *Client) Transaction(ctx context.Context, fn func(tx *Client) error) error {
	started := time.Now()
	return c.gorm.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if elapsed := time.Since(started); elapsed > slowAcquireThreshold {
			log.WithField("elapsed", elapsed.String()).Warn("slow connection acquisition")
		}
		return fn(&Client{gorm: tx})
	})
}

// conn returns the context-scoped gorm handle for a single operation.
func (c *Client) conn(ctx context.Context) *gorm.DB {
	return c.gorm.WithContext(ctx)
}

// wrapErr normalises gorm errors into the package sentinels.
func wrapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
