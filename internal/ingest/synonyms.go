package ingest

import (
	"strings"

	"golang.org/x/text/cases"

	"github.com/sells-group/booking-risk/internal/model"
)

// Synonyms maps folded source column names to canonical field names. Canonical
// names map to themselves.
var Synonyms = map[string]string{
	"booking_id":     model.FieldBookingID,
	"booking_no":     model.FieldBookingID,
	"booking_number": model.FieldBookingID,
	"id":             model.FieldBookingID,

	"pol":             model.FieldPOL,
	"port_of_loading": model.FieldPOL,
	"origin":          model.FieldPOL,
	"origin_port":     model.FieldPOL,

	"pod":               model.FieldPOD,
	"port_of_discharge": model.FieldPOD,
	"destination":       model.FieldPOD,
	"dest_port":         model.FieldPOD,
	"destination_port":  model.FieldPOD,

	"lane":          model.FieldLane,
	"trade_lane":    model.FieldLane,
	"shipping_lane": model.FieldLane,

	"container_state": model.FieldContainerState,
	"container_type":  model.FieldContainerState,
	"container":       model.FieldContainerState,

	"bundle":       model.FieldBundle,
	"package":      model.FieldBundle,
	"service_type": model.FieldBundle,

	"booking_date": model.FieldBookingDate,
	"date":         model.FieldBookingDate,
	"created_date": model.FieldBookingDate,
}

// HeaderKey folds a source column name for synonym lookup: surrounding space is
// trimmed, case is folded and inner spaces or hyphens become underscores.
func HeaderKey(h string) string {
	h = cases.Fold().String(strings.TrimSpace(h))
	return strings.Map(func(r rune) rune {
		if r == ' ' || r == '-' {
			return '_'
		}
		return r
	}, h)
}

// CanonicalName returns the canonical field for a source column name.
func CanonicalName(h string) (string, bool) {
	name, ok := Synonyms[HeaderKey(h)]
	return name, ok
}
