package campaign

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elecmate/winback-service/internal/models"
)

func TestService_SendSingle(t *testing.T) {
	profiles := newMockProfileStore()
	user := profiles.add(&models.UserProfile{FullName: "Dave Sparks", CreatedAt: daysAgo(10)})

	identity := &mockIdentityStore{emails: map[uuid.UUID]string{
		user.ID: "  Dave.Sparks@Example.CO.UK ",
	}}
	audit := &mockAuditLog{}
	sender := &mockSender{}

	svc, _ := newTestService(profiles, identity, audit, sender)

	result, err := svc.SendSingle(context.Background(), user.ID, VersionV1, uuid.Nil)
	require.NoError(t, err)

	// recipient is lower-cased and trimmed
	assert.Equal(t, "dave.sparks@example.co.uk", result.Email)
	assert.NotEmpty(t, result.MessageID)

	// marker set and audit row appended
	require.Len(t, profiles.marked, 1)
	assert.Equal(t, user.ID, profiles.marked[0])
	require.Len(t, audit.records, 1)
	assert.Equal(t, "winback_v1", audit.records[0].Template)
	assert.Contains(t, audit.records[0].Metadata, user.ID.String())
}

func TestService_SendSingle_AlreadySent(t *testing.T) {
	profiles := newMockProfileStore()
	sentAt := daysAgo(1)
	user := profiles.add(&models.UserProfile{CreatedAt: daysAgo(10), WinbackOfferSentAt: &sentAt})

	sender := &mockSender{}
	svc, _ := newTestService(profiles, &mockIdentityStore{}, &mockAuditLog{}, sender)

	_, err := svc.SendSingle(context.Background(), user.ID, VersionV1, uuid.Nil)
	require.ErrorIs(t, err, ErrAlreadySent)

	// hard precondition: no email goes out
	assert.Empty(t, sender.sent)
}

func TestService_SendSingle_UserNotFound(t *testing.T) {
	svc, _ := newTestService(newMockProfileStore(), &mockIdentityStore{}, &mockAuditLog{}, &mockSender{})

	_, err := svc.SendSingle(context.Background(), uuid.New(), VersionV1, uuid.Nil)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestService_SendSingle_NoEmail(t *testing.T) {
	profiles := newMockProfileStore()
	user := profiles.add(&models.UserProfile{CreatedAt: daysAgo(10)})

	svc, _ := newTestService(profiles, &mockIdentityStore{}, &mockAuditLog{}, &mockSender{})

	_, err := svc.SendSingle(context.Background(), user.ID, VersionV1, uuid.Nil)
	assert.ErrorIs(t, err, ErrNoEmail)
}

func TestService_SendSingle_ProviderFailureMutatesNothing(t *testing.T) {
	profiles := newMockProfileStore()
	user := profiles.add(&models.UserProfile{CreatedAt: daysAgo(10)})

	identity := &mockIdentityStore{emails: map[uuid.UUID]string{user.ID: "dave@example.co.uk"}}
	audit := &mockAuditLog{}
	sender := &mockSender{failFor: map[string]bool{"dave@example.co.uk": true}}

	svc, _ := newTestService(profiles, identity, audit, sender)

	_, err := svc.SendSingle(context.Background(), user.ID, VersionV1, uuid.Nil)
	require.ErrorIs(t, err, ErrSendFailed)

	assert.Empty(t, profiles.marked)
	assert.Empty(t, audit.records)
	assert.Nil(t, user.WinbackOfferSentAt)
}

func TestService_SendSingle_MarkFailureIsBestEffort(t *testing.T) {
	profiles := newMockProfileStore()
	user := profiles.add(&models.UserProfile{CreatedAt: daysAgo(10)})
	profiles.markErr = assert.AnError

	identity := &mockIdentityStore{emails: map[uuid.UUID]string{user.ID: "dave@example.co.uk"}}
	audit := &mockAuditLog{}

	svc, _ := newTestService(profiles, identity, audit, &mockSender{})

	// the email went out, so a failed marker write must not fail the op
	result, err := svc.SendSingle(context.Background(), user.ID, VersionV1, uuid.Nil)
	require.NoError(t, err)
	assert.Equal(t, "dave@example.co.uk", result.Email)
	assert.Len(t, audit.records, 1)
}

func TestService_SendBulk_PartialFailure(t *testing.T) {
	profiles := newMockProfileStore()
	identity := &mockIdentityStore{emails: map[uuid.UUID]string{}}

	a := profiles.add(&models.UserProfile{FullName: "A", CreatedAt: daysAgo(10)})
	b := profiles.add(&models.UserProfile{FullName: "B", CreatedAt: daysAgo(11)})
	c := profiles.add(&models.UserProfile{FullName: "C", CreatedAt: daysAgo(12)})
	identity.emails[a.ID] = "a@example.co.uk"
	identity.emails[b.ID] = "b@example.co.uk"
	identity.emails[c.ID] = "c@example.co.uk"

	sender := &mockSender{failFor: map[string]bool{"b@example.co.uk": true}}
	svc, sleeps := newTestService(profiles, identity, &mockAuditLog{}, sender)

	result, err := svc.SendBulk(context.Background(), []uuid.UUID{a.ID, b.ID, c.ID}, VersionV1, uuid.Nil)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Sent)
	assert.Equal(t, 0, result.Skipped)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, b.ID.String(), result.Errors[0].UserID)
	assert.Equal(t, "b@example.co.uk", result.Errors[0].Email)

	// survivors are marked, the failed item is not
	assert.NotNil(t, a.WinbackOfferSentAt)
	assert.Nil(t, b.WinbackOfferSentAt)
	assert.NotNil(t, c.WinbackOfferSentAt)

	// delay only after the successful non-final send: (sent-1) * 500ms
	require.Len(t, *sleeps, 1)
	assert.Equal(t, 500*time.Millisecond, (*sleeps)[0])
}

func TestService_SendBulk_SkipsAlreadySent(t *testing.T) {
	profiles := newMockProfileStore()
	identity := &mockIdentityStore{emails: map[uuid.UUID]string{}}

	sentAt := daysAgo(1)
	skipped1 := profiles.add(&models.UserProfile{CreatedAt: daysAgo(10), WinbackOfferSentAt: &sentAt})
	skipped2 := profiles.add(&models.UserProfile{CreatedAt: daysAgo(11), WinbackOfferSentAt: &sentAt})
	fresh := profiles.add(&models.UserProfile{CreatedAt: daysAgo(12)})
	identity.emails[fresh.ID] = "fresh@example.co.uk"

	sender := &mockSender{}
	svc, sleeps := newTestService(profiles, identity, &mockAuditLog{}, sender)

	result, err := svc.SendBulk(context.Background(), []uuid.UUID{skipped1.ID, skipped2.ID, fresh.ID}, VersionV2, uuid.Nil)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Sent)
	assert.Equal(t, 2, result.Skipped)
	assert.Equal(t, 0, result.Failed)
	assert.Empty(t, result.Errors)

	// skips are not errors and never trigger the pacing delay
	assert.Empty(t, *sleeps)
	assert.Len(t, sender.sent, 1)
}

func TestService_SendBulk_AllSuccessPacing(t *testing.T) {
	profiles := newMockProfileStore()
	identity := &mockIdentityStore{emails: map[uuid.UUID]string{}}

	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		p := profiles.add(&models.UserProfile{CreatedAt: daysAgo(10 + i)})
		identity.emails[p.ID] = p.ID.String() + "@example.co.uk"
		ids = append(ids, p.ID)
	}

	svc, sleeps := newTestService(profiles, identity, &mockAuditLog{}, &mockSender{})

	result, err := svc.SendBulk(context.Background(), ids, VersionV1, uuid.Nil)
	require.NoError(t, err)

	assert.Equal(t, 3, result.Sent)
	// no delay after the final item
	assert.Len(t, *sleeps, 2)
}

func TestService_SendBulk_NotFoundCollected(t *testing.T) {
	profiles := newMockProfileStore()
	missing := uuid.New()

	svc, _ := newTestService(profiles, &mockIdentityStore{}, &mockAuditLog{}, &mockSender{})

	result, err := svc.SendBulk(context.Background(), []uuid.UUID{missing}, VersionV1, uuid.Nil)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, missing.String(), result.Errors[0].UserID)
}

func TestService_SendBulk_TemplateTagged(t *testing.T) {
	profiles := newMockProfileStore()
	user := profiles.add(&models.UserProfile{CreatedAt: daysAgo(10)})
	identity := &mockIdentityStore{emails: map[uuid.UUID]string{user.ID: "dave@example.co.uk"}}
	audit := &mockAuditLog{}

	svc, _ := newTestService(profiles, identity, audit, &mockSender{})

	_, err := svc.SendBulk(context.Background(), []uuid.UUID{user.ID}, VersionV3, uuid.Nil)
	require.NoError(t, err)

	require.Len(t, audit.records, 1)
	assert.Equal(t, "winback_v3_bulk", audit.records[0].Template)
}

func TestService_SendTest_NeverTouchesProfiles(t *testing.T) {
	profiles := newMockProfileStore()
	audit := &mockAuditLog{}
	sender := &mockSender{}

	svc, _ := newTestService(profiles, &mockIdentityStore{}, audit, sender)

	result, err := svc.SendTest(context.Background(), "preview@example.co.uk", "", VersionV1)
	require.NoError(t, err)

	assert.Equal(t, "preview@example.co.uk", result.Email)
	assert.Empty(t, profiles.marked)
	require.Len(t, audit.records, 1)
	assert.Equal(t, "winback_test", audit.records[0].Template)
}

func TestService_SendManual_RecordsAdmin(t *testing.T) {
	audit := &mockAuditLog{}
	admin := uuid.New()

	svc, _ := newTestService(newMockProfileStore(), &mockIdentityStore{}, audit, &mockSender{})

	_, err := svc.SendManual(context.Background(), "lead@example.co.uk", "Prospect", VersionV2, admin)
	require.NoError(t, err)

	require.Len(t, audit.records, 1)
	assert.Equal(t, "winback_manual", audit.records[0].Template)
	assert.Contains(t, audit.records[0].Metadata, admin.String())
}

func TestService_ResetSent(t *testing.T) {
	profiles := newMockProfileStore()

	stale := daysAgo(0).Add(-30 * time.Hour)
	fresh := daysAgo(0).Add(-10 * time.Hour)
	resettable := profiles.add(&models.UserProfile{CreatedAt: daysAgo(40), WinbackOfferSentAt: &stale})
	tooRecent := profiles.add(&models.UserProfile{CreatedAt: daysAgo(40), WinbackOfferSentAt: &fresh})
	converted := profiles.add(&models.UserProfile{CreatedAt: daysAgo(40), Subscribed: true, WinbackOfferSentAt: &stale})

	svc, _ := newTestService(profiles, &mockIdentityStore{}, &mockAuditLog{}, &mockSender{})

	count, err := svc.ResetSent(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(1), count)
	assert.Nil(t, resettable.WinbackOfferSentAt)
	assert.NotNil(t, tooRecent.WinbackOfferSentAt)
	assert.NotNil(t, converted.WinbackOfferSentAt)
}

func TestService_EventsPublished(t *testing.T) {
	profiles := newMockProfileStore()
	user := profiles.add(&models.UserProfile{CreatedAt: daysAgo(10)})
	identity := &mockIdentityStore{emails: map[uuid.UUID]string{user.ID: "dave@example.co.uk"}}
	events := &mockPublisher{}

	svc, _ := newTestService(profiles, identity, &mockAuditLog{}, &mockSender{})
	svc.events = events

	_, err := svc.SendSingle(context.Background(), user.ID, VersionV1, uuid.Nil)
	require.NoError(t, err)

	require.Len(t, events.sentEvents, 1)
	assert.Equal(t, "dave@example.co.uk", events.sentEvents[0].Email)
	assert.Equal(t, "v1", events.sentEvents[0].Version)
}

func TestService_History(t *testing.T) {
	audit := &mockAuditLog{}
	for i := 0; i < 5; i++ {
		audit.records = append(audit.records, &models.EmailLog{MessageID: uuid.NewString(), Template: "winback_v1"})
	}

	svc, _ := newTestService(newMockProfileStore(), &mockIdentityStore{}, audit, &mockSender{})
	svc.historyLimit = 3

	logs, err := svc.History(context.Background())
	require.NoError(t, err)
	assert.Len(t, logs, 3)
}
