// Package db reads table definitions from a live database so the composer
// can be given a schema without pasting it.
//
// Design decisions:
//   - Uses pgxpool for the connection; a single import runs a handful of
//     catalog queries and closes the pool again.
//   - Catalog queries go through the Querier interface so they can run
//     against a pool, a single connection or a test double.
//   - SSH tunnel integration is handled transparently: if SSH is enabled,
//     we first establish the tunnel, then connect pgx to the local endpoint.
package db

import (
	"context"
	"fmt"

	"github.com/DachengChen/obsql/config"
	"github.com/DachengChen/obsql/ssh"
	pgx "github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Querier runs catalog queries. *pgxpool.Pool and *pgx.Conn satisfy it.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// DB wraps a pgx connection pool and optional SSH tunnel.
type DB struct {
	Pool   Querier
	Tunnel *ssh.Tunnel

	closePool func()
}

// New wraps an existing Querier; Close leaves it open.
func New(q Querier) *DB {
	return &DB{Pool: q}
}

// Connect establishes a connection, optionally through an SSH tunnel.
func Connect(ctx context.Context, cfg config.DBConfig) (*DB, error) {
	d := &DB{}

	if cfg.SSH.Enabled {
		tunnel, err := ssh.NewTunnel(cfg.SSH, cfg.Host, cfg.Port)
		if err != nil {
			return nil, fmt.Errorf("ssh tunnel: %w", err)
		}
		localAddr, err := tunnel.Start(ctx)
		if err != nil {
			return nil, fmt.Errorf("ssh tunnel start: %w", err)
		}
		d.Tunnel = tunnel

		cfg.Host = localAddr.Host
		cfg.Port = localAddr.Port
	}

	pool, err := pgxpool.New(ctx, cfg.DSN())
	if err != nil {
		d.Close()
		return nil, fmt.Errorf("pgx connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		d.Close()
		return nil, fmt.Errorf("pgx ping: %w", err)
	}

	d.Pool = pool
	d.closePool = pool.Close
	return d, nil
}

// Close shuts down the pool and SSH tunnel.
func (d *DB) Close() {
	if d.closePool != nil {
		d.closePool()
		d.closePool = nil
	}
	if d.Tunnel != nil {
		d.Tunnel.Stop()
		d.Tunnel = nil
	}
}

// ImportSchema connects with a saved connection, renders the requested
// tables (all base tables of the connection's schema when none are given)
// as schema text, and disconnects.
func ImportSchema(ctx context.Context, conn config.Connection, tables []string) (string, error) {
	cfg, err := conn.DBConfig()
	if err != nil {
		return "", err
	}
	d, err := Connect(ctx, cfg)
	if err != nil {
		return "", err
	}
	defer d.Close()

	schemas, err := d.LoadSchema(ctx, conn.Schema, tables)
	if err != nil {
		return "", err
	}
	return FormatSchemaText(schemas), nil
}
