package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"paperprop/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres keeps one JSONB document per account. Writes are idempotent
// whole-document upserts, so replaying a stale save only rewinds transient
// fields that the next save restores.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// Migrate creates the accounts table if it does not exist.
func (p *Postgres) Migrate(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, `
		create table if not exists accounts (
			id text primary key,
			state jsonb not null,
			updated_at timestamptz not null default now()
		)
	`)
	if err != nil {
		return fmt.Errorf("migrate accounts: %w", err)
	}
	return nil
}

func (p *Postgres) Load(ctx context.Context, accountID string) (model.AccountState, bool, error) {
	var raw []byte
	err := p.pool.QueryRow(ctx, "select state from accounts where id = $1", accountID).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.AccountState{}, false, nil
		}
		return model.AccountState{}, false, fmt.Errorf("load account: %w", err)
	}
	var state model.AccountState
	if err := json.Unmarshal(raw, &state); err != nil {
		return model.AccountState{}, false, fmt.Errorf("decode account state: %w", err)
	}
	return state, true, nil
}

func (p *Postgres) Save(ctx context.Context, accountID string, state model.AccountState) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode account state: %w", err)
	}
	_, err = p.pool.Exec(ctx, `
		insert into accounts (id, state, updated_at) values ($1, $2, now())
		on conflict (id) do update set state = excluded.state, updated_at = now()
	`, accountID, raw)
	if err != nil {
		return fmt.Errorf("save account: %w", err)
	}
	return nil
}
