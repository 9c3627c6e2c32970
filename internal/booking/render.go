package booking

import (
	"fmt"
	"html"
	"strings"

	"github.com/m3rciful/taxibot/core/telegram/state"
)

// Summary renders the collected values for the confirmation step.
func Summary(s state.Session) string {
	var b strings.Builder
	b.WriteString("<b>Please review your order details:</b>\n\n")
	for _, row := range []struct{ label, field string }{
		{"From", FieldOrigin},
		{"To", FieldDestination},
		{"Phone", FieldContact},
		{"Luggage", FieldLuggage},
		{"Time", FieldTime},
		{"Passengers", FieldPassengers},
		{"Comment", FieldNotes},
	} {
		v, _ := s.Lookup(row.field)
		fmt.Fprintf(&b, "<b>%s:</b> %s\n", row.label, html.EscapeString(fmt.Sprint(v)))
	}
	b.WriteString("\nIs everything correct? Type 'yes' to confirm or 'no' to cancel.")
	return b.String()
}
