package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"fundaswipe/models"
)

// PostgresStore keeps family rosters in Postgres, one jsonb document
// per family. Member writes happen inside a transaction that rereads
// the document, so concurrent updates to different members both land.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	store := &PostgresStore{pool: pool}
	if err := store.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return store, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS families (
		code TEXT PRIMARY KEY,
		doc JSONB NOT NULL,
		created_at TIMESTAMPTZ DEFAULT NOW(),
		updated_at TIMESTAMPTZ DEFAULT NOW()
	);
	`
	_, err := s.pool.Exec(ctx, schema)
	return err
}

func (s *PostgresStore) GetGroup(ctx context.Context, code string) (*models.FamilyGroup, error) {
	var doc []byte
	err := s.pool.QueryRow(ctx, `SELECT doc FROM families WHERE code = $1`, code).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetching group %s: %w", code, err)
	}

	var group models.FamilyGroup
	if err := json.Unmarshal(doc, &group); err != nil {
		return nil, fmt.Errorf("decoding group %s: %w", code, err)
	}
	group.Code = code
	return &group, nil
}

func (s *PostgresStore) CreateGroup(ctx context.Context, group *models.FamilyGroup) error {
	doc, err := json.Marshal(group)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO families (code, doc) VALUES ($1, $2)
		 ON CONFLICT (code) DO NOTHING`,
		group.Code, doc,
	)
	if err != nil {
		return fmt.Errorf("creating group %s: %w", group.Code, err)
	}
	return nil
}

func (s *PostgresStore) UpsertMember(ctx context.Context, code string, member *models.Member) error {
	return s.updateDoc(ctx, code, func(group *models.FamilyGroup) {
		if group.Members == nil {
			group.Members = make(map[string]*models.Member)
		}
		group.Members[member.Name] = member
	})
}

func (s *PostgresStore) RemoveMember(ctx context.Context, code, name string) error {
	return s.updateDoc(ctx, code, func(group *models.FamilyGroup) {
		delete(group.Members, name)
	})
}

func (s *PostgresStore) updateDoc(ctx context.Context, code string, mutate func(*models.FamilyGroup)) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var doc []byte
	err = tx.QueryRow(ctx, `SELECT doc FROM families WHERE code = $1 FOR UPDATE`, code).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("group %s not found", code)
	}
	if err != nil {
		return fmt.Errorf("locking group %s: %w", code, err)
	}

	var group models.FamilyGroup
	if err := json.Unmarshal(doc, &group); err != nil {
		return fmt.Errorf("decoding group %s: %w", code, err)
	}
	group.Code = code

	mutate(&group)

	updated, err := json.Marshal(&group)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx,
		`UPDATE families SET doc = $2, updated_at = NOW() WHERE code = $1`,
		code, updated,
	); err != nil {
		return fmt.Errorf("updating group %s: %w", code, err)
	}

	return tx.Commit(ctx)
}
