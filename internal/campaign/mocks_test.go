package campaign

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/elecmate/winback-service/internal/email"
	"github.com/elecmate/winback-service/internal/models"
)

// mockProfileStore is an in-memory ProfileStore.
type mockProfileStore struct {
	profiles map[uuid.UUID]*models.UserProfile
	order    []uuid.UUID // listing order, newest first

	getErr   error
	listErr  error
	markErr  error
	resetErr error

	marked []uuid.UUID
}

func newMockProfileStore() *mockProfileStore {
	return &mockProfileStore{profiles: make(map[uuid.UUID]*models.UserProfile)}
}

func (m *mockProfileStore) add(p *models.UserProfile) *models.UserProfile {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.Role == "" {
		p.Role = models.RoleElectrician
	}
	m.profiles[p.ID] = p
	m.order = append(m.order, p.ID)
	return p
}

func (m *mockProfileStore) GetByID(ctx context.Context, id uuid.UUID) (*models.UserProfile, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.profiles[id], nil
}

func (m *mockProfileStore) ListUnsentByRole(ctx context.Context, role string) ([]*models.UserProfile, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []*models.UserProfile
	for _, id := range m.order {
		p := m.profiles[id]
		if p.Role == role && p.WinbackOfferSentAt == nil {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *mockProfileStore) ListByRole(ctx context.Context, role string) ([]*models.UserProfile, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []*models.UserProfile
	for _, id := range m.order {
		if p := m.profiles[id]; p.Role == role {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *mockProfileStore) MarkOfferSent(ctx context.Context, id uuid.UUID, sentAt time.Time) error {
	if m.markErr != nil {
		return m.markErr
	}
	if p, ok := m.profiles[id]; ok {
		t := sentAt
		p.WinbackOfferSentAt = &t
	}
	m.marked = append(m.marked, id)
	return nil
}

func (m *mockProfileStore) ResetStaleOffers(ctx context.Context, role string, olderThan time.Time) (int64, error) {
	if m.resetErr != nil {
		return 0, m.resetErr
	}
	var count int64
	for _, p := range m.profiles {
		if p.Role == role && !p.Subscribed && p.WinbackOfferSentAt != nil && p.WinbackOfferSentAt.Before(olderThan) {
			p.WinbackOfferSentAt = nil
			count++
		}
	}
	return count, nil
}

// mockIdentityStore resolves ids to emails from a fixed map.
type mockIdentityStore struct {
	emails map[uuid.UUID]string
	err    error
}

func (m *mockIdentityStore) EmailByUserID(ctx context.Context, id uuid.UUID) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	return m.emails[id], nil
}

func (m *mockIdentityStore) EmailsByUserIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error) {
	if m.err != nil {
		return nil, m.err
	}
	out := make(map[uuid.UUID]string)
	for _, id := range ids {
		if e, ok := m.emails[id]; ok && e != "" {
			out[id] = e
		}
	}
	return out, nil
}

// mockAuditLog collects appended rows.
type mockAuditLog struct {
	records   []*models.EmailLog
	appendErr error
}

func (m *mockAuditLog) Append(ctx context.Context, rec *models.EmailLog) error {
	if m.appendErr != nil {
		return m.appendErr
	}
	m.records = append(m.records, rec)
	return nil
}

func (m *mockAuditLog) ListRecent(ctx context.Context, limit int) ([]models.EmailLog, error) {
	var out []models.EmailLog
	for i := len(m.records) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, *m.records[i])
	}
	return out, nil
}

// mockSender records sends and can fail per recipient.
type mockSender struct {
	sent    []email.Message
	failFor map[string]bool // recipient -> fail
	nextID  int
}

func (m *mockSender) Send(ctx context.Context, msg email.Message) (string, error) {
	if m.failFor[msg.To] {
		return "", errors.New("provider rejected send")
	}
	m.sent = append(m.sent, msg)
	m.nextID++
	return uuid.NewString(), nil
}

// mockPublisher counts published events.
type mockPublisher struct {
	sentEvents  []OfferSentEvent
	resetEvents []OffersResetEvent
	err         error
}

func (m *mockPublisher) PublishOfferSent(ctx context.Context, event OfferSentEvent) error {
	if m.err != nil {
		return m.err
	}
	m.sentEvents = append(m.sentEvents, event)
	return nil
}

func (m *mockPublisher) PublishOffersReset(ctx context.Context, event OffersResetEvent) error {
	if m.err != nil {
		return m.err
	}
	m.resetEvents = append(m.resetEvents, event)
	return nil
}

// newTestService assembles a Service over the mocks with sleeps recorded
// instead of slept.
func newTestService(profiles *mockProfileStore, identity *mockIdentityStore, audit *mockAuditLog, sender *mockSender) (*Service, *[]time.Duration) {
	svc := NewService(ServiceConfig{
		Profiles: profiles,
		Identity: identity,
		Audit:    audit,
		Sender:   sender,
		Pricing:  DefaultPricing(),
		Role:     models.RoleElectrician,
	})

	sleeps := &[]time.Duration{}
	svc.sleep = func(d time.Duration) {
		*sleeps = append(*sleeps, d)
	}

	return svc, sleeps
}
