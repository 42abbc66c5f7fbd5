package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresUsers struct {
	pool *pgxpool.Pool
}

func NewPostgresUsers(pool *pgxpool.Pool) *PostgresUsers {
	return &PostgresUsers{pool: pool}
}

func (p *PostgresUsers) Migrate(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, `
		create table if not exists users (
			id text primary key,
			email text not null unique,
			password_hash text not null,
			created_at timestamptz not null default now()
		)
	`)
	if err != nil {
		return fmt.Errorf("migrate users: %w", err)
	}
	return nil
}

func (p *PostgresUsers) CreateUser(ctx context.Context, id, email, passwordHash string) error {
	_, err := p.pool.Exec(ctx,
		"insert into users (id, email, password_hash) values ($1, $2, $3)",
		id, email, passwordHash)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrEmailTaken
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (p *PostgresUsers) Credentials(ctx context.Context, email string) (string, string, error) {
	var userID, hash string
	err := p.pool.QueryRow(ctx,
		"select id, password_hash from users where email = $1", email).Scan(&userID, &hash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", "", ErrUserNotFound
		}
		return "", "", fmt.Errorf("load credentials: %w", err)
	}
	return userID, hash, nil
}

func (p *PostgresUsers) GetUser(ctx context.Context, userID string) (User, error) {
	var u User
	err := p.pool.QueryRow(ctx,
		"select id, email from users where id = $1", userID).Scan(&u.ID, &u.Email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		return User{}, fmt.Errorf("load user: %w", err)
	}
	return u, nil
}
