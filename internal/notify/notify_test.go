package notify_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iliyamo/trip-reservation/internal/model"
	"github.com/iliyamo/trip-reservation/internal/notify"
	"github.com/iliyamo/trip-reservation/internal/queue"
)

type sentMail struct{ to, subject, body string }

// fakeMailer captures messages instead of sending them.
type fakeMailer struct {
	sent []sentMail
	err  error
}

func (m *fakeMailer) Send(_ context.Context, to, subject, body string) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentMail{to, subject, body})
	return nil
}

// fakeSource serves one client and its reservations.
type fakeSource struct {
	client       model.Client
	reservations []model.ReservationDetail
}

func (s fakeSource) GetClient(_ context.Context, id uint64) (*model.Client, error) {
	if id != s.client.ID {
		return nil, model.ErrNotFound
	}
	c := s.client
	return &c, nil
}

func (s fakeSource) ListByClient(context.Context, uint64) ([]model.ReservationDetail, error) {
	return s.reservations, nil
}

var (
	_ notify.Mailer          = (*fakeMailer)(nil)
	_ notify.ItinerarySource = fakeSource{}
)

func sampleSource() fakeSource {
	created := time.Date(2026, 3, 1, 14, 5, 0, 0, time.UTC)
	return fakeSource{
		client: model.Client{ID: 3, Name: "Carla Mendes", Email: "carla@example.com"},
		reservations: []model.ReservationDetail{
			{
				Reservation: model.Reservation{ID: 11, PartySize: 2, TotalPriceCents: 250000, CreatedAt: created},
				Trip:        model.TripSummary{Description: "Algarve coast", DepartureAt: time.Date(2026, 8, 10, 7, 0, 0, 0, time.UTC), UnitPriceCents: 125000},
			},
			{
				Reservation: model.Reservation{ID: 12, PartySize: 1, TotalPriceCents: 4550, CreatedAt: created},
				Trip:        model.TripSummary{Description: "Evora", DepartureAt: time.Date(2026, 9, 2, 7, 0, 0, 0, time.UTC), UnitPriceCents: 4550},
			},
		},
	}
}

func TestFormatCents(t *testing.T) {
	tests := map[int64]string{
		0:         "0.00",
		5:         "0.05",
		123450:    "1,234.50",
		100000000: "1,000,000.00",
		-250:      "-2.50",
	}
	for in, want := range tests {
		assert.Equal(t, want, notify.FormatCents(in), "cents %d", in)
	}
}

func TestRenderItinerary(t *testing.T) {
	src := sampleSource()

	body, err := notify.RenderItinerary(src.client, src.reservations, time.UTC)
	require.NoError(t, err)
	assert.Contains(t, body, "Client: Carla Mendes - E-mail: carla@example.com")
	assert.Contains(t, body, "Reservation #11")
	assert.Contains(t, body, "Algarve coast")
	assert.Contains(t, body, "10/08/2026")
	assert.Contains(t, body, "01/03/2026 14:05")
	assert.Contains(t, body, "1,250.00")
	assert.Contains(t, body, "Grand total: 2,545.50")
}

func TestRenderItinerary_Empty(t *testing.T) {
	body, err := notify.RenderItinerary(model.Client{Name: "Nobody"}, nil, nil)
	require.NoError(t, err)
	assert.Contains(t, body, "No reservations.")
	assert.Contains(t, body, "Grand total: 0.00")
}

func TestItineraryNotifier(t *testing.T) {
	m := &fakeMailer{}
	n := notify.NewItineraryNotifier(sampleSource(), m, time.UTC, zap.NewNop())

	ev := queue.NewEvent(queue.KindItineraryRequested, 1, "")
	ev.ClientID = 3
	require.NoError(t, n.Handle(context.Background(), ev))
	require.Len(t, m.sent, 1)
	assert.Equal(t, "carla@example.com", m.sent[0].to)
	assert.Equal(t, "Reservation itinerary", m.sent[0].subject)

	// events it does not care about are ignored
	require.NoError(t, n.Handle(context.Background(), queue.NewEvent(queue.KindReservationCancelled, 1, "")))
	assert.Len(t, m.sent, 1)
}

func TestItineraryNotifier_Errors(t *testing.T) {
	ev := queue.NewEvent(queue.KindReservationCreated, 1, "")
	ev.ClientID = 99
	n := notify.NewItineraryNotifier(sampleSource(), &fakeMailer{}, time.UTC, zap.NewNop())
	assert.ErrorIs(t, n.Handle(context.Background(), ev), model.ErrNotFound)

	ev.ClientID = 3
	smtpErr := errors.New("535 authentication failed")
	n = notify.NewItineraryNotifier(sampleSource(), &fakeMailer{err: smtpErr}, time.UTC, zap.NewNop())
	assert.ErrorIs(t, n.Handle(context.Background(), ev), smtpErr)
}

func TestActivationNotifier(t *testing.T) {
	m := &fakeMailer{}
	n := notify.NewActivationNotifier(m, "https://trips.example.com/")

	ev := queue.NewEvent(queue.KindUserRegistered, 4, "account registered")
	ev.UserEmail, ev.UserName, ev.ActivationCode = "rui@example.com", "Rui", "abc123"
	require.NoError(t, n.Handle(context.Background(), ev))

	require.Len(t, m.sent, 1)
	assert.Equal(t, "Account activation", m.sent[0].subject)
	assert.Contains(t, m.sent[0].body, "https://trips.example.com/v1/auth/activate/abc123")
	assert.Contains(t, m.sent[0].body, "Hello, Rui!")
}
