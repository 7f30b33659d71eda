package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Pool struct {
	*pgxpool.Pool
}

// PoolConfig tunes the pool. Zero values keep the defaults applied by Open.
type PoolConfig struct {
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
	ApplicationName string

	// ConnectAttempts bounds the startup ping loop. The wait doubles from
	// ConnectBackoff after each failure.
	ConnectAttempts int
	ConnectBackoff  time.Duration
}

func (pc PoolConfig) apply(cfg *pgxpool.Config) {
	cfg.MaxConns = pick(pc.MaxConns, 10)
	cfg.MinConns = pick(pc.MinConns, 1)
	cfg.MaxConnLifetime = pick(pc.MaxConnLifetime, 30*time.Minute)
	cfg.MaxConnIdleTime = pick(pc.MaxConnIdleTime, 5*time.Minute)
	if pc.ApplicationName != "" {
		cfg.ConnConfig.RuntimeParams["application_name"] = pc.ApplicationName
	}
}

func pick[T int32 | int | time.Duration](v, fallback T) T {
	if v > 0 {
		return v
	}
	return fallback
}

// Open builds the pool and pings it until it answers or the attempts run out.
func Open(ctx context.Context, databaseURL string, pc PoolConfig) (*Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	pc.apply(cfg)

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := waitReady(ctx, pool, pick(pc.ConnectAttempts, 1), pick(pc.ConnectBackoff, time.Second)); err != nil {
		pool.Close()
		return nil, err
	}
	return &Pool{Pool: pool}, nil
}

// Pinger is satisfied by *Pool and pgxmock pools.
type Pinger interface {
	Ping(ctx context.Context) error
}

func waitReady(ctx context.Context, p Pinger, attempts int, backoff time.Duration) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = p.Ping(ctx); err == nil {
			return nil
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff << i):
		}
	}
	return fmt.Errorf("database not reachable after %d attempts: %w", attempts, err)
}

func (p *Pool) Close() {
	if p != nil && p.Pool != nil {
		p.Pool.Close()
	}
}

func ReadyCheck(p Pinger) func(context.Context) error {
	return func(ctx context.Context) error {
		if p == nil {
			return errors.New("db not configured")
		}
		return p.Ping(ctx)
	}
}
