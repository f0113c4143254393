package notify

import (
	"bytes"
	"fmt"
	"html/template"
	"time"

	"github.com/iliyamo/trip-reservation/internal/model"
)

var itineraryTmpl = template.Must(template.New("itinerary").Funcs(template.FuncMap{
	"money": FormatCents,
}).Parse(`<html>
<body style="font-family: Helvetica, Arial, sans-serif;">
<h2>Reservation itinerary</h2>
<h3>Client: {{.Client.Name}} - E-mail: {{.Client.Email}}</h3>
{{- range .Rows}}
<table border="1" cellpadding="8" cellspacing="0" style="border-collapse: collapse; margin-bottom: 20px;">
<tr style="background-color: rgb(195, 191, 191);"><th colspan="2">Reservation #{{.ID}}</th></tr>
<tr><td><strong>Booked on:</strong></td><td>{{.BookedOn}}</td></tr>
<tr><td><strong>Destination:</strong></td><td>{{.Destination}}</td></tr>
<tr><td><strong>Departure:</strong></td><td>{{.Departure}}</td></tr>
<tr><td><strong>Unit price:</strong></td><td>{{money .UnitPriceCents}}</td></tr>
<tr><td><strong>Party size:</strong></td><td>{{.PartySize}}</td></tr>
<tr><td><strong>Total:</strong></td><td>{{money .TotalPriceCents}}</td></tr>
</table>
{{- else}}
<p>No reservations.</p>
{{- end}}
<p><strong>Grand total: {{money .GrandTotalCents}}</strong></p>
</body>
</html>
`))

type itineraryRow struct {
	ID              uint64
	BookedOn        string
	Destination     string
	Departure       string
	UnitPriceCents  int64
	PartySize       int
	TotalPriceCents int64
}

// RenderItinerary renders a client's reservations as an HTML e-mail body.
// Times are printed in loc; a nil loc means UTC.
func RenderItinerary(client model.Client, reservations []model.ReservationDetail, loc *time.Location) (string, error) {
	if loc == nil {
		loc = time.UTC
	}
	data := struct {
		Client          model.Client
		Rows            []itineraryRow
		GrandTotalCents int64
	}{Client: client}

	for _, r := range reservations {
		data.Rows = append(data.Rows, itineraryRow{
			ID:              r.ID,
			BookedOn:        r.CreatedAt.In(loc).Format("02/01/2006 15:04"),
			Destination:     r.Trip.Description,
			Departure:       r.Trip.DepartureAt.In(loc).Format("02/01/2006"),
			UnitPriceCents:  r.Trip.UnitPriceCents,
			PartySize:       r.PartySize,
			TotalPriceCents: r.TotalPriceCents,
		})
		data.GrandTotalCents += r.TotalPriceCents
	}

	var buf bytes.Buffer
	if err := itineraryTmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("notify: render itinerary: %w", err)
	}
	return buf.String(), nil
}

// FormatCents prints an amount of cents as 1,234.50.
func FormatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign, cents = "-", -cents
	}
	whole, frac := cents/100, cents%100
	s := fmt.Sprintf("%d", whole)
	for i := len(s) - 3; i > 0; i -= 3 {
		s = s[:i] + "," + s[i:]
	}
	return fmt.Sprintf("%s%s.%02d", sign, s, frac)
}
