// Package campaign implements the win-back campaign dispatcher: eligibility
// selection, template rendering and the single/bulk send paths with their
// pacing and partial-failure handling.
package campaign

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/elecmate/winback-service/internal/email"
	"github.com/elecmate/winback-service/internal/logger"
	"github.com/elecmate/winback-service/internal/models"
)

// Sentinel errors surfaced to the request handler.
var (
	ErrUserNotFound = errors.New("user not found")
	ErrAlreadySent  = errors.New("winback offer already sent to this user")
	ErrNoEmail      = errors.New("no email address on record for user")
	ErrSendFailed   = errors.New("failed to send email")
)

// AuditLog is the append-only send audit trail.
type AuditLog interface {
	Append(ctx context.Context, rec *models.EmailLog) error
	ListRecent(ctx context.Context, limit int) ([]models.EmailLog, error)
}

// ServiceConfig wires the dispatch service dependencies.
type ServiceConfig struct {
	Profiles     ProfileStore
	Identity     IdentityStore
	Audit        AuditLog
	Sender       email.Sender
	Events       EventPublisher // optional, nil disables publishing
	Pricing      Pricing
	Role         string
	SendDelay    time.Duration
	HistoryLimit int
	Log          *logger.Logger
}

// Service is the campaign dispatcher. One request executes one operation to
// completion; the bulk path is strictly sequential, and the duplicate-send
// guard is the re-read of the profile marker at the start of each per-user
// unit of work. That guard is only sound while bulk sends stay sequential.
type Service struct {
	selector *Selector
	profiles ProfileStore
	identity IdentityStore
	audit    AuditLog
	sender   email.Sender
	events   EventPublisher
	pricing  Pricing
	role     string

	sendDelay    time.Duration
	historyLimit int

	// injectable for tests
	sleep func(time.Duration)
	now   func() time.Time

	log *logger.Logger
}

// NewService creates the campaign dispatcher.
func NewService(cfg ServiceConfig) *Service {
	if cfg.SendDelay <= 0 {
		cfg.SendDelay = 500 * time.Millisecond
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 100
	}
	if cfg.Role == "" {
		cfg.Role = models.RoleElectrician
	}
	if cfg.Log == nil {
		cfg.Log = logger.Get()
	}

	return &Service{
		selector:     NewSelector(cfg.Profiles, cfg.Identity, cfg.Role),
		profiles:     cfg.Profiles,
		identity:     cfg.Identity,
		audit:        cfg.Audit,
		sender:       cfg.Sender,
		events:       cfg.Events,
		pricing:      cfg.Pricing,
		role:         cfg.Role,
		sendDelay:    cfg.SendDelay,
		historyLimit: cfg.HistoryLimit,
		sleep:        time.Sleep,
		now:          time.Now,
		log:          cfg.Log,
	}
}

// GetEligible lists users currently eligible for the offer.
func (s *Service) GetEligible(ctx context.Context) ([]models.EligibleUser, error) {
	return s.selector.GetEligible(ctx)
}

// GetStats recomputes the aggregate campaign view.
func (s *Service) GetStats(ctx context.Context) (*models.CampaignStats, error) {
	return s.selector.GetStats(ctx)
}

// SendResult reports one completed send.
type SendResult struct {
	Email     string `json:"email"`
	MessageID string `json:"message_id"`
	Version   string `json:"version"`
	Subject   string `json:"-"`
}

// SendSingle dispatches the offer to one user. An existing send marker is a
// hard precondition failure, not a silent skip.
func (s *Service) SendSingle(ctx context.Context, userID uuid.UUID, version Version, sentBy uuid.UUID) (*SendResult, error) {
	profile, err := s.profiles.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	if profile == nil {
		return nil, ErrUserNotFound
	}
	if profile.OfferSent() {
		return nil, ErrAlreadySent
	}

	addr, err := s.identity.EmailByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("resolve email: %w", err)
	}
	if addr == "" {
		return nil, ErrNoEmail
	}

	result, err := s.dispatch(ctx, profile, addr, version, "winback_"+string(version), sentBy)
	if err != nil {
		return nil, err
	}

	s.markAndLog(ctx, profile.ID, result, "winback_"+string(version), sentBy)
	return result, nil
}

// BulkError records one failed item of a bulk send.
type BulkError struct {
	UserID string `json:"userId"`
	Email  string `json:"email,omitempty"`
	Error  string `json:"error"`
}

// BulkResult reports the outcome of a bulk send. Errors is omitted when
// every item either succeeded or was skipped.
type BulkResult struct {
	Sent    int         `json:"sent"`
	Skipped int         `json:"skipped"`
	Failed  int         `json:"failed"`
	Errors  []BulkError `json:"errors,omitempty"`
}

// SendBulk dispatches the offer to a list of users, strictly sequentially.
// Per-user failures are collected and do not abort the batch; already-sent
// users are counted as skipped. After each confirmed successful send except
// the final item the loop sleeps the configured delay to stay under the
// provider throughput ceiling. The delay never follows a skip or failure.
func (s *Service) SendBulk(ctx context.Context, userIDs []uuid.UUID, version Version, sentBy uuid.UUID) (*BulkResult, error) {
	result := &BulkResult{}
	template := "winback_" + string(version) + "_bulk"

	for i, userID := range userIDs {
		last := i == len(userIDs)-1

		profile, err := s.profiles.GetByID(ctx, userID)
		if err != nil || profile == nil {
			result.Failed++
			result.Errors = append(result.Errors, BulkError{
				UserID: userID.String(),
				Error:  bulkErrorMessage(err, "user not found"),
			})
			continue
		}
		if profile.OfferSent() {
			result.Skipped++
			continue
		}

		addr, err := s.identity.EmailByUserID(ctx, userID)
		if err != nil || addr == "" {
			result.Failed++
			result.Errors = append(result.Errors, BulkError{
				UserID: userID.String(),
				Error:  bulkErrorMessage(err, "no email address on record"),
			})
			continue
		}

		sent, err := s.dispatch(ctx, profile, addr, version, template, sentBy)
		if err != nil {
			result.Failed++
			result.Errors = append(result.Errors, BulkError{
				UserID: userID.String(),
				Email:  addr,
				Error:  err.Error(),
			})
			continue
		}

		s.markAndLog(ctx, profile.ID, sent, template, sentBy)
		result.Sent++

		if !last {
			s.sleep(s.sendDelay)
		}
	}

	s.log.Info().
		Int("sent", result.Sent).
		Int("skipped", result.Skipped).
		Int("failed", result.Failed).
		Msg("bulk winback send finished")

	return result, nil
}

// SendTest renders and sends a preview to an arbitrary address. It never
// touches the profile store; the audit row is tagged as a test send.
func (s *Service) SendTest(ctx context.Context, toEmail, recipientName string, version Version) (*SendResult, error) {
	if recipientName == "" {
		recipientName = "Test"
	}

	user := models.EligibleUser{FullName: recipientName, Email: toEmail}
	result, err := s.send(ctx, user, version, "test", uuid.Nil)
	if err != nil {
		return nil, err
	}

	s.logSend(ctx, result, "winback_test", uuid.Nil, uuid.Nil)
	return result, nil
}

// SendManual dispatches an off-cycle send to an admin-supplied recipient,
// who may not be an account holder; there is no profile to mark. The audit
// row records the sending admin.
func (s *Service) SendManual(ctx context.Context, toEmail, recipientName string, version Version, sentBy uuid.UUID) (*SendResult, error) {
	user := models.EligibleUser{FullName: recipientName, Email: toEmail}
	result, err := s.send(ctx, user, version, "manual", uuid.Nil)
	if err != nil {
		return nil, err
	}

	s.logSend(ctx, result, "winback_manual", uuid.Nil, sentBy)
	return result, nil
}

// ResetSent clears the send marker for target-role, unsubscribed profiles
// whose send is older than the grace period, re-opening them for selection.
func (s *Service) ResetSent(ctx context.Context) (int64, error) {
	count, err := s.profiles.ResetStaleOffers(ctx, s.role, s.now().Add(-models.GracePeriod))
	if err != nil {
		return 0, err
	}

	if s.events != nil {
		event := OffersResetEvent{Count: count, ResetAt: s.now()}
		if err := s.events.PublishOffersReset(ctx, event); err != nil {
			s.log.Warn().Err(err).Msg("failed to publish reset event")
		}
	}

	return count, nil
}

// History returns the most recent campaign audit rows.
func (s *Service) History(ctx context.Context) ([]models.EmailLog, error) {
	return s.audit.ListRecent(ctx, s.historyLimit)
}

// dispatch renders and sends for a persisted profile.
func (s *Service) dispatch(ctx context.Context, profile *models.UserProfile, addr string, version Version, template string, sentBy uuid.UUID) (*SendResult, error) {
	user := models.EligibleUser{
		ID:           profile.ID,
		FullName:     profile.FullName,
		Username:     profile.Username,
		Email:        addr,
		CreatedAt:    profile.CreatedAt,
		TrialEndedAt: profile.TrialEndedAt(),
	}
	mode := "single"
	if strings.HasSuffix(template, "_bulk") {
		mode = "bulk"
	}
	return s.send(ctx, user, version, mode, profile.ID)
}

// send renders the template and calls the provider. No state is mutated
// here; on provider failure the operation aborts cleanly.
func (s *Service) send(ctx context.Context, user models.EligibleUser, version Version, mode string, userID uuid.UUID) (*SendResult, error) {
	subject, body := Render(user, version, s.pricing)
	recipient := strings.ToLower(strings.TrimSpace(user.Email))

	tags := []email.Tag{
		{Name: "campaign", Value: "winback"},
		{Name: "version", Value: string(version)},
		{Name: "mode", Value: mode},
	}
	if userID != uuid.Nil {
		tags = append(tags, email.Tag{Name: "user_id", Value: userID.String()})
	}

	messageID, err := s.sender.Send(ctx, email.Message{
		To:      recipient,
		Subject: subject,
		HTML:    body,
		Tags:    tags,
	})
	if err != nil {
		s.log.Error().Err(err).Str("to", recipient).Msg("provider send failed")
		return nil, fmt.Errorf("%w: %v", ErrSendFailed, err)
	}

	return &SendResult{
		Email:     recipient,
		MessageID: messageID,
		Version:   string(version),
		Subject:   subject,
	}, nil
}

// markAndLog performs the two advisory writes after a successful send. The
// email is already out, so neither failure fails the operation: retrying the
// send would duplicate it, and both writes can be reconciled out-of-band.
func (s *Service) markAndLog(ctx context.Context, userID uuid.UUID, result *SendResult, template string, sentBy uuid.UUID) {
	if err := s.profiles.MarkOfferSent(ctx, userID, s.now()); err != nil {
		s.log.Error().Err(err).
			Str("user_id", userID.String()).
			Msg("failed to mark offer sent after successful send")
	}

	s.logSend(ctx, result, template, userID, sentBy)
}

// logSend appends the audit row and publishes the sent event, both advisory.
func (s *Service) logSend(ctx context.Context, result *SendResult, template string, userID, sentBy uuid.UUID) {
	meta := models.EmailLogMetadata{
		Version:   result.Version,
		MessageID: result.MessageID,
	}
	if userID != uuid.Nil {
		meta.UserID = userID.String()
	}
	if sentBy != uuid.Nil {
		meta.SentBy = sentBy.String()
	}

	rec := &models.EmailLog{
		ToEmail:   result.Email,
		Subject:   result.Subject,
		Template:  template,
		Status:    "sent",
		MessageID: result.MessageID,
		Metadata:  meta.Encode(),
	}
	if err := s.audit.Append(ctx, rec); err != nil {
		s.log.Error().Err(err).
			Str("message_id", result.MessageID).
			Msg("failed to append email log")
	}

	if s.events != nil {
		event := OfferSentEvent{
			UserID:    meta.UserID,
			Email:     result.Email,
			Version:   result.Version,
			Mode:      strings.TrimPrefix(template, "winback_"),
			MessageID: result.MessageID,
			SentAt:    s.now(),
		}
		if err := s.events.PublishOfferSent(ctx, event); err != nil {
			s.log.Warn().Err(err).Msg("failed to publish sent event")
		}
	}
}

func bulkErrorMessage(err error, fallback string) string {
	if err != nil {
		return err.Error()
	}
	return fallback
}
