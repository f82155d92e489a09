package campaign

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/elecmate/winback-service/internal/models"
)

// ProfileStore is the profile-store surface the campaign needs.
type ProfileStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.UserProfile, error)
	ListUnsentByRole(ctx context.Context, role string) ([]*models.UserProfile, error)
	ListByRole(ctx context.Context, role string) ([]*models.UserProfile, error)
	MarkOfferSent(ctx context.Context, id uuid.UUID, sentAt time.Time) error
	ResetStaleOffers(ctx context.Context, role string, olderThan time.Time) (int64, error)
}

// IdentityStore resolves internal user ids to email addresses.
type IdentityStore interface {
	EmailByUserID(ctx context.Context, id uuid.UUID) (string, error)
	EmailsByUserIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error)
}

// Selector computes the set of accounts eligible for the win-back offer and
// the aggregate campaign statistics. Both views share one exclusion
// predicate (models.UserProfile.EligibleForWinback) so they cannot disagree.
type Selector struct {
	profiles ProfileStore
	identity IdentityStore
	role     string
	now      func() time.Time
}

// NewSelector creates a Selector targeting the given audience role.
func NewSelector(profiles ProfileStore, identity IdentityStore, role string) *Selector {
	return &Selector{
		profiles: profiles,
		identity: identity,
		role:     role,
		now:      time.Now,
	}
}

// cutoff is the newest signup time still eligible: trial window plus grace,
// computed once per request.
func (s *Selector) cutoff() time.Time {
	return s.now().Add(-(models.TrialPeriod + models.GracePeriod))
}

// GetEligible returns lapsed-trial users who can receive the offer, newest
// first. The store query narrows by role and unsent marker; subscribed,
// free-access and in-grace profiles are filtered in memory; ids without a
// resolvable email are dropped.
func (s *Selector) GetEligible(ctx context.Context) ([]models.EligibleUser, error) {
	profiles, err := s.profiles.ListUnsentByRole(ctx, s.role)
	if err != nil {
		return nil, fmt.Errorf("fetch unsent profiles: %w", err)
	}

	cutoff := s.cutoff()
	var survivors []*models.UserProfile
	var ids []uuid.UUID
	for _, p := range profiles {
		if p.EligibleForWinback(cutoff) {
			survivors = append(survivors, p)
			ids = append(ids, p.ID)
		}
	}

	emails, err := s.identity.EmailsByUserIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("resolve emails: %w", err)
	}

	users := make([]models.EligibleUser, 0, len(survivors))
	for _, p := range survivors {
		email, ok := emails[p.ID]
		if !ok {
			continue
		}
		users = append(users, models.EligibleUser{
			ID:           p.ID,
			FullName:     p.FullName,
			Username:     p.Username,
			Email:        email,
			CreatedAt:    p.CreatedAt,
			TrialEndedAt: p.TrialEndedAt(),
		})
	}

	return users, nil
}

// GetStats recomputes the aggregate campaign view from the profile store.
func (s *Selector) GetStats(ctx context.Context) (*models.CampaignStats, error) {
	profiles, err := s.profiles.ListByRole(ctx, s.role)
	if err != nil {
		return nil, fmt.Errorf("fetch profiles for stats: %w", err)
	}

	cutoff := s.cutoff()
	stats := &models.CampaignStats{}
	for _, p := range profiles {
		if p.EligibleForWinback(cutoff) {
			stats.TotalEligible++
		}
		if p.OfferSent() {
			stats.OffersSent++
			if p.Subscribed {
				stats.Conversions++
			}
		}
	}

	// guard the zero-offers case
	if stats.OffersSent == 0 {
		stats.ConversionRate = "0"
	} else {
		stats.ConversionRate = fmt.Sprintf("%.1f", float64(stats.Conversions)/float64(stats.OffersSent)*100)
	}

	return stats, nil
}
