package model

// Canonical column names of a booking record.
const (
	FieldBookingID      = "booking_id"
	FieldBookingDate    = "booking_date"
	FieldPOL            = "pol"
	FieldPOD            = "pod"
	FieldLane           = "lane"
	FieldContainerState = "container_state"
	FieldBundle         = "bundle"
)

// CanonicalFields lists the booking columns in schema order.
var CanonicalFields = []string{
	FieldBookingID,
	FieldBookingDate,
	FieldPOL,
	FieldPOD,
	FieldLane,
	FieldContainerState,
	FieldBundle,
}

// Categorical returns the value of a categorical field by canonical name, or
// nil when the name is not categorical or the value is absent.
func (b Booking) Categorical(field string) *string {
	switch field {
	case FieldPOL:
		return b.POL
	case FieldPOD:
		return b.POD
	case FieldLane:
		return b.Lane
	case FieldContainerState:
		return b.ContainerState
	case FieldBundle:
		return b.Bundle
	}
	return nil
}
