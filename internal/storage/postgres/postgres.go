package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/fdg312/diet-hub/internal/storage"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStorage — Postgres реализация storage.Storage
type PostgresStorage struct {
	pool     *pgxpool.Pool
	profiles *PostgresProfilesStorage
	ledger   *PostgresLedgerStorage
	chat     *PostgresChatStorage
	reports  *PostgresReportsStorage
}

// New создаёт PostgresStorage и проверяет соединение
func New(ctx context.Context, databaseURL string) (*PostgresStorage, error) {
	poolCfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if poolCfg.MaxConns > 10 {
		poolCfg.MaxConns = 10
	}
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &PostgresStorage{
		pool:     pool,
		profiles: NewPostgresProfilesStorage(pool),
		ledger:   NewPostgresLedgerStorage(pool),
		chat:     NewPostgresChatStorage(pool),
		reports:  NewPostgresReportsStorage(pool),
	}, nil
}

func (p *PostgresStorage) GetProfilesStorage() storage.ProfilesStorage {
	return p.profiles
}

func (p *PostgresStorage) GetLedgerStorage() storage.LedgerStorage {
	return p.ledger
}

func (p *PostgresStorage) GetChatStorage() storage.ChatStorage {
	return p.chat
}

func (p *PostgresStorage) GetReportsStorage() storage.ReportsStorage {
	return p.reports
}

func (p *PostgresStorage) Close() error {
	p.pool.Close()
	return nil
}
