package analytics

import "github.com/sells-group/booking-risk/internal/model"

// Summary holds the headline KPIs. Rates and averages are percentages.
type Summary struct {
	TotalBookings   int     `json:"total_bookings"`
	CancelRate      float64 `json:"cancel_rate"`
	BrokenRouteRate float64 `json:"broken_route_rate"`
	HighRiskCount   int     `json:"high_risk_count"`
	MediumRiskCount int     `json:"medium_risk_count"`
	LowRiskCount    int     `json:"low_risk_count"`
	AvgCancelProb   float64 `json:"avg_cancel_prob"`
	AvgBrokenProb   float64 `json:"avg_broken_prob"`
	UniqueLanes     int     `json:"unique_lanes"`
	UniquePorts     int     `json:"unique_ports"`
}

// TimeSeries is a bucketed booking count with the mean cancel rate (percent).
type TimeSeries struct {
	Dates       []string  `json:"dates"`
	Counts      []int     `json:"counts"`
	CancelRates []float64 `json:"cancel_rates"`
}

type PortBreakdown struct {
	Ports       []string  `json:"ports"`
	CancelRates []float64 `json:"cancel_rates"`
	Counts      []int     `json:"counts"`
}

type LaneBreakdown struct {
	Lanes       []string  `json:"lanes"`
	CancelRates []float64 `json:"cancel_rates"`
	Counts      []int     `json:"counts"`
}

// Distribution is a labeled count series.
type Distribution struct {
	Labels []string `json:"labels"`
	Values []int    `json:"values"`
}

type FlowNode struct {
	Name string `json:"name"`
}

// FlowLink is a weighted edge between node indexes.
type FlowLink struct {
	Source int `json:"source"`
	Target int `json:"target"`
	Value  int `json:"value"`
}

// Flow is a lane -> container state -> cancel risk graph.
type Flow struct {
	Nodes []FlowNode `json:"nodes"`
	Links []FlowLink `json:"links"`
}

// Seasonality is the daily mean cancel rate (percent).
type Seasonality struct {
	Dates  []string  `json:"dates"`
	Values []float64 `json:"values"`
}

// Network is a square POL x POD count matrix over Labels.
type Network struct {
	Labels []string `json:"labels"`
	Matrix [][]int  `json:"matrix"`
}

// RiskyBooking is a row of the top risky bookings list.
type RiskyBooking struct {
	BookingID              string          `json:"booking_id"`
	BookingDate            *model.Date     `json:"booking_date"`
	POL                    *string         `json:"pol"`
	POD                    *string         `json:"pod"`
	Lane                   *string         `json:"lane"`
	CancelProbability      float64         `json:"cancel_probability"`
	CancelRisk             model.RiskLabel `json:"cancel_risk"`
	BrokenRouteProbability float64         `json:"broken_route_probability"`
	BrokenRouteRisk        model.RiskLabel `json:"broken_route_risk"`
}

// RiskMatrix is the mean cancel rate (percent) for each POL x lane pair.
type RiskMatrix struct {
	Ports  []string    `json:"ports"`
	Lanes  []string    `json:"lanes"`
	Matrix [][]float64 `json:"matrix"`
}

type MonthlySeries struct {
	Months []string `json:"months"`
	Counts []int    `json:"counts"`
}

// Ridgeline is the monthly volume of the busiest lanes.
type Ridgeline struct {
	Lanes  []string                 `json:"lanes"`
	Series map[string]MonthlySeries `json:"series"`
}

// StackedArea holds daily counts per lane; Data[i][j] is Lanes[i] on Dates[j].
type StackedArea struct {
	Dates []string `json:"dates"`
	Lanes []string `json:"lanes"`
	Data  [][]int  `json:"data"`
}

type LaneRisk struct {
	Lane              string  `json:"lane"`
	CancelProbability float64 `json:"cancel_probability"`
	Count             int     `json:"count"`
}

type PortRisk struct {
	POL               string  `json:"pol"`
	CancelProbability float64 `json:"cancel_probability"`
	Count             int     `json:"count"`
}

// LabeledValues pairs chart labels with one value each.
type LabeledValues struct {
	Labels []string  `json:"labels"`
	Values []float64 `json:"values"`
}

// Charts is the /api/stats/charts payload. BookingsOverTime is keyed by
// YYYY-MM.
type Charts struct {
	CancelByLane     LabeledValues  `json:"cancel_by_lane"`
	CancelByPort     LabeledValues  `json:"cancel_by_port"`
	BookingsOverTime map[string]int `json:"bookings_over_time"`
}

// Dashboard bundles every view for one filter.
type Dashboard struct {
	Summary             *Summary       `json:"summary"`
	BookingsOverTime    *TimeSeries    `json:"bookings_over_time"`
	CancellationsByPort *PortBreakdown `json:"cancellations_by_port"`
	CancellationsByLane *LaneBreakdown `json:"cancellations_by_lane"`
	RiskDistribution    *Distribution  `json:"risk_distribution"`
	Flow                *Flow          `json:"flow"`
	Seasonality         *Seasonality   `json:"seasonality"`
	Network             *Network       `json:"network"`
	TopRiskyBookings    []RiskyBooking `json:"top_risky_bookings"`
	RiskMatrix          *RiskMatrix    `json:"risk_matrix"`
	Ridgeline           *Ridgeline     `json:"ridgeline"`
	StackedArea         *StackedArea   `json:"stacked_area"`
	Waffle              *Distribution  `json:"waffle"`
	TopRiskyLanes       []LaneRisk     `json:"top_risky_lanes"`
	TopRiskyPorts       []PortRisk     `json:"top_risky_ports"`
}
