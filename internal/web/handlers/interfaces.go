package handlers

import (
	"context"

	"github.com/google/uuid"

	"github.com/elecmate/winback-service/internal/campaign"
	"github.com/elecmate/winback-service/internal/models"
)

// CampaignService defines the dispatcher operations the handler exposes.
type CampaignService interface {
	GetEligible(ctx context.Context) ([]models.EligibleUser, error)
	GetStats(ctx context.Context) (*models.CampaignStats, error)
	SendSingle(ctx context.Context, userID uuid.UUID, version campaign.Version, sentBy uuid.UUID) (*campaign.SendResult, error)
	SendBulk(ctx context.Context, userIDs []uuid.UUID, version campaign.Version, sentBy uuid.UUID) (*campaign.BulkResult, error)
	SendTest(ctx context.Context, toEmail, recipientName string, version campaign.Version) (*campaign.SendResult, error)
	SendManual(ctx context.Context, toEmail, recipientName string, version campaign.Version, sentBy uuid.UUID) (*campaign.SendResult, error)
	ResetSent(ctx context.Context) (int64, error)
	History(ctx context.Context) ([]models.EmailLog, error)
}

// TokenResolver resolves a bearer token against the auth store.
type TokenResolver interface {
	ResolveToken(ctx context.Context, token string) (uuid.UUID, error)
}

// ProfileLoader loads a single profile for the admin check.
type ProfileLoader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.UserProfile, error)
}
