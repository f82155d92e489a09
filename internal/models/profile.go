package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// RoleElectrician is the audience the win-back campaign targets.
const RoleElectrician = "electrician"

// Trial and grace windows for the win-back offer.
const (
	TrialPeriod = 7 * 24 * time.Hour
	GracePeriod = 24 * time.Hour
)

// UserProfile represents an account in the platform profile store.
// The campaign service only reads profiles and performs two narrow writes:
// setting the offer marker after a successful send and clearing it on reset.
type UserProfile struct {
	ID       uuid.UUID `json:"id" db:"id"`
	FullName string    `json:"full_name" db:"full_name"`
	Username string    `json:"username" db:"username"`
	Role     string    `json:"role" db:"role"`

	// access flags
	Subscribed        bool `json:"subscribed" db:"subscribed"`
	FreeAccessGranted bool `json:"free_access_granted" db:"free_access_granted"`
	IsAdmin           bool `json:"is_admin" db:"is_admin"`

	// campaign marker: non-nil means the offer was already dispatched
	WinbackOfferSentAt *time.Time `json:"winback_offer_sent_at,omitempty" db:"winback_offer_sent_at"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// TrialEndedAt returns the end of the signup trial window.
func (p *UserProfile) TrialEndedAt() time.Time {
	return p.CreatedAt.Add(TrialPeriod)
}

// OfferSent reports whether the win-back marker is set.
func (p *UserProfile) OfferSent() bool {
	return p.WinbackOfferSentAt != nil
}

// EligibleForWinback reports whether the profile can receive the offer.
// The cutoff is now minus trial plus grace (8 days); a profile created after
// it is still inside the grace window. This predicate is shared by the
// eligible-user listing and the campaign stats so the two views agree.
func (p *UserProfile) EligibleForWinback(cutoff time.Time) bool {
	if p.Subscribed || p.FreeAccessGranted {
		return false
	}
	if p.WinbackOfferSentAt != nil {
		return false
	}
	return !p.CreatedAt.After(cutoff)
}

// FirstName returns the first whitespace-delimited token of the full name,
// or empty string when the name is blank.
func (p *UserProfile) FirstName() string {
	fields := strings.Fields(p.FullName)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// EligibleUser is a transient projection of a profile that survived the
// eligibility filter, enriched with the resolved email address. It is built
// per request and never persisted.
type EligibleUser struct {
	ID           uuid.UUID `json:"id"`
	FullName     string    `json:"full_name"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	CreatedAt    time.Time `json:"created_at"`
	TrialEndedAt time.Time `json:"trial_ended_at"`
}

// FirstName returns the leading token of the full name for greeting copy.
func (u *EligibleUser) FirstName() string {
	fields := strings.Fields(u.FullName)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// CampaignStats is the aggregate view recomputed fresh on every stats request.
type CampaignStats struct {
	TotalEligible  int    `json:"totalEligible"`
	OffersSent     int    `json:"offersSent"`
	Conversions    int    `json:"conversions"`
	ConversionRate string `json:"conversionRate"`
}
