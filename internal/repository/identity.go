package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// IdentityRepository resolves auth-store identities: bearer tokens to user
// ids and user ids to email addresses. The auth store is owned by the account
// system; this repository only reads it.
type IdentityRepository struct {
	pool *pgxpool.Pool
}

// NewIdentityRepository creates a new identity repository.
func NewIdentityRepository(pool *pgxpool.Pool) *IdentityRepository {
	return &IdentityRepository{pool: pool}
}

// ResolveToken returns the user id a bearer token belongs to, or uuid.Nil
// when the token is unknown or expired.
func (r *IdentityRepository) ResolveToken(ctx context.Context, token string) (uuid.UUID, error) {
	var userID uuid.UUID
	err := r.pool.QueryRow(ctx, `
		SELECT user_id
		FROM auth_tokens
		WHERE token = $1 AND (expires_at IS NULL OR expires_at > NOW())
	`, token).Scan(&userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, nil
		}
		return uuid.Nil, fmt.Errorf("resolve token: %w", err)
	}
	return userID, nil
}

// EmailByUserID returns the email for a single user id, or empty string when
// no address is on record.
func (r *IdentityRepository) EmailByUserID(ctx context.Context, id uuid.UUID) (string, error) {
	var email string
	err := r.pool.QueryRow(ctx, `
		SELECT email FROM auth_users WHERE id = $1
	`, id).Scan(&email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("email by user id: %w", err)
	}
	return email, nil
}

// EmailsByUserIDs bulk-resolves email addresses. Ids without a resolvable
// email are simply absent from the returned map.
func (r *IdentityRepository) EmailsByUserIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error) {
	if len(ids) == 0 {
		return map[uuid.UUID]string{}, nil
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, email FROM auth_users WHERE id = ANY($1)
	`, ids)
	if err != nil {
		return nil, fmt.Errorf("emails by user ids: %w", err)
	}
	defer rows.Close()

	emails := make(map[uuid.UUID]string, len(ids))
	for rows.Next() {
		var id uuid.UUID
		var email string
		if err := rows.Scan(&id, &email); err != nil {
			return nil, fmt.Errorf("scan auth user: %w", err)
		}
		if email != "" {
			emails[id] = email
		}
	}

	return emails, rows.Err()
}
