package notify

import (
	"context"
	"fmt"
	"html/template"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/trip-reservation/internal/model"
	"github.com/iliyamo/trip-reservation/internal/queue"
)

// ItinerarySource loads what an itinerary is built from.
type ItinerarySource interface {
	GetClient(ctx context.Context, id uint64) (*model.Client, error)
	ListByClient(ctx context.Context, clientID uint64) ([]model.ReservationDetail, error)
}

// ItineraryNotifier mails a client their full itinerary after a booking or
// on request.
type ItineraryNotifier struct {
	src    ItinerarySource
	mailer Mailer
	loc    *time.Location
	log    *zap.Logger
}

var _ queue.Handler = (*ItineraryNotifier)(nil)

// NewItineraryNotifier returns a notifier that prints times in loc.
func NewItineraryNotifier(src ItinerarySource, mailer Mailer, loc *time.Location, log *zap.Logger) *ItineraryNotifier {
	return &ItineraryNotifier{src: src, mailer: mailer, loc: loc, log: log}
}

// Handle mails the itinerary on reservation.created and itinerary.requested.
func (n *ItineraryNotifier) Handle(ctx context.Context, ev queue.BookingEvent) error {
	if ev.Kind != queue.KindReservationCreated && ev.Kind != queue.KindItineraryRequested {
		return nil
	}
	client, err := n.src.GetClient(ctx, ev.ClientID)
	if err != nil {
		return fmt.Errorf("itinerary for client %d: %w", ev.ClientID, err)
	}
	reservations, err := n.src.ListByClient(ctx, client.ID)
	if err != nil {
		return fmt.Errorf("itinerary for client %d: %w", client.ID, err)
	}
	body, err := RenderItinerary(*client, reservations, n.loc)
	if err != nil {
		return err
	}
	if err := n.mailer.Send(ctx, client.Email, "Reservation itinerary", body); err != nil {
		return err
	}
	n.log.Debug("itinerary sent", zap.Uint64("client_id", client.ID), zap.Int("reservations", len(reservations)))
	return nil
}

var activationTmpl = template.Must(template.New("activation").Parse(
	`<p>Hello, {{.Name}}!</p>
<p>Click to activate your account: <a href="{{.Link}}">Activate account</a></p>
`))

// ActivationNotifier mails the activation link to a newly registered user.
type ActivationNotifier struct {
	mailer    Mailer
	publicURL string
}

var _ queue.Handler = (*ActivationNotifier)(nil)

// NewActivationNotifier builds links under publicURL.
func NewActivationNotifier(mailer Mailer, publicURL string) *ActivationNotifier {
	return &ActivationNotifier{mailer: mailer, publicURL: strings.TrimRight(publicURL, "/")}
}

// Handle mails the activation link on user.registered.
func (n *ActivationNotifier) Handle(ctx context.Context, ev queue.BookingEvent) error {
	if ev.Kind != queue.KindUserRegistered || ev.ActivationCode == "" {
		return nil
	}
	var buf strings.Builder
	err := activationTmpl.Execute(&buf, struct{ Name, Link string }{
		Name: ev.UserName,
		Link: n.publicURL + "/v1/auth/activate/" + ev.ActivationCode,
	})
	if err != nil {
		return fmt.Errorf("notify: render activation: %w", err)
	}
	return n.mailer.Send(ctx, ev.UserEmail, "Account activation", buf.String())
}
