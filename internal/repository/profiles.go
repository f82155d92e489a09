package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/elecmate/winback-service/internal/logger"
	"github.com/elecmate/winback-service/internal/models"
)

// ProfilesRepository handles reads and the two narrow campaign writes on the
// profile store.
type ProfilesRepository struct {
	pool *pgxpool.Pool
	log  *logger.Logger
}

// NewProfilesRepository creates a new profiles repository.
func NewProfilesRepository(pool *pgxpool.Pool, log *logger.Logger) *ProfilesRepository {
	return &ProfilesRepository{
		pool: pool,
		log:  log,
	}
}

const profileColumns = `
	id, full_name, username, role, subscribed, free_access_granted, is_admin,
	winback_offer_sent_at, created_at`

func scanProfile(row pgx.Row) (*models.UserProfile, error) {
	var p models.UserProfile
	err := row.Scan(
		&p.ID, &p.FullName, &p.Username, &p.Role,
		&p.Subscribed, &p.FreeAccessGranted, &p.IsAdmin,
		&p.WinbackOfferSentAt, &p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetByID returns a single profile by id, or nil when it does not exist.
func (r *ProfilesRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.UserProfile, error) {
	p, err := scanProfile(r.pool.QueryRow(ctx, `
		SELECT `+profileColumns+`
		FROM profiles
		WHERE id = $1
	`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get profile by id: %w", err)
	}
	return p, nil
}

// ListUnsentByRole returns all profiles of the given role that have not yet
// received the offer, newest first. The remaining eligibility conditions mix
// nullable booleans and a derived date threshold, so they are applied in
// memory by the selector rather than replicated in SQL at every call site.
func (r *ProfilesRepository) ListUnsentByRole(ctx context.Context, role string) ([]*models.UserProfile, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+profileColumns+`
		FROM profiles
		WHERE role = $1 AND winback_offer_sent_at IS NULL
		ORDER BY created_at DESC
	`, role)
	if err != nil {
		return nil, fmt.Errorf("list unsent profiles: %w", err)
	}
	defer rows.Close()

	var profiles []*models.UserProfile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		profiles = append(profiles, p)
	}

	return profiles, rows.Err()
}

// ListByRole returns every profile of the given role, for stats aggregation.
func (r *ProfilesRepository) ListByRole(ctx context.Context, role string) ([]*models.UserProfile, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+profileColumns+`
		FROM profiles
		WHERE role = $1
	`, role)
	if err != nil {
		return nil, fmt.Errorf("list profiles by role: %w", err)
	}
	defer rows.Close()

	var profiles []*models.UserProfile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		profiles = append(profiles, p)
	}

	return profiles, rows.Err()
}

// MarkOfferSent sets the win-back marker on a profile.
func (r *ProfilesRepository) MarkOfferSent(ctx context.Context, id uuid.UUID, sentAt time.Time) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE profiles
		SET winback_offer_sent_at = $2
		WHERE id = $1
	`, id, sentAt)
	if err != nil {
		return fmt.Errorf("mark offer sent: %w", err)
	}

	r.log.Info().
		Str("id", id.String()).
		Time("sent_at", sentAt).
		Msg("marked winback offer sent")

	return nil
}

// ResetStaleOffers clears the marker for unsubscribed profiles whose send is
// older than the cutoff, making them eligible again. Returns the count reset.
func (r *ProfilesRepository) ResetStaleOffers(ctx context.Context, role string, olderThan time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE profiles
		SET winback_offer_sent_at = NULL
		WHERE role = $1
		  AND subscribed = false
		  AND winback_offer_sent_at IS NOT NULL
		  AND winback_offer_sent_at < $2
	`, role, olderThan)
	if err != nil {
		return 0, fmt.Errorf("reset stale offers: %w", err)
	}

	r.log.Info().
		Int64("count", tag.RowsAffected()).
		Time("older_than", olderThan).
		Msg("reset stale winback offers")

	return tag.RowsAffected(), nil
}
