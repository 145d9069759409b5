package analytics

import (
	"cmp"
	"slices"

	"github.com/sells-group/booking-risk/internal/model"
)

// Waffle bucket labels. "Empty" counts LCL bookings.
const (
	WaffleLoaded    = "Loaded"
	WaffleEmpty     = "Empty"
	WaffleCancelled = "Cancelled"
	WaffleActive    = "Active"
)

func summarize(rows []model.ScoredBooking) *Summary {
	s := &Summary{}
	if len(rows) == 0 {
		return s
	}

	ids := make(map[string]struct{})
	lanes := make(map[string]struct{})
	ports := make(map[string]struct{})
	var cancel, broken float64
	for _, r := range rows {
		ids[r.BookingID] = struct{}{}
		if r.Lane != nil {
			lanes[*r.Lane] = struct{}{}
		}
		if r.POL != nil {
			ports[*r.POL] = struct{}{}
		}
		cancel += r.CancelProbability
		broken += r.BrokenRouteProbability

		switch r.CancelRisk {
		case model.RiskHigh:
			s.HighRiskCount++
		case model.RiskMedium:
			s.MediumRiskCount++
		case model.RiskLow:
			s.LowRiskCount++
		}
	}

	n := float64(len(rows))
	s.TotalBookings = len(ids)
	s.CancelRate = pct(cancel / n)
	s.BrokenRouteRate = pct(broken / n)
	s.AvgCancelProb = s.CancelRate
	s.AvgBrokenProb = s.BrokenRouteRate
	s.UniqueLanes = len(lanes)
	s.UniquePorts = len(ports)
	return s
}

func bookingsOverTime(rows []model.ScoredBooking, f Frequency) *TimeSeries {
	groups := groupBy(rows, dated(f))
	chronological(groups)

	ts := &TimeSeries{
		Dates:       make([]string, 0, len(groups)),
		Counts:      make([]int, 0, len(groups)),
		CancelRates: make([]float64, 0, len(groups)),
	}
	for _, g := range groups {
		ts.Dates = append(ts.Dates, g.key)
		ts.Counts = append(ts.Counts, g.count)
		ts.CancelRates = append(ts.CancelRates, pct(g.mean()))
	}
	return ts
}

// breakdown returns the top n groups by mean cancel probability.
func breakdown(rows []model.ScoredBooking, key func(model.ScoredBooking) *string, n int) ([]string, []float64, []int) {
	groups := groupBy(rows, key)
	byMeanDesc(groups)
	groups = head(groups, n)

	rates := make([]float64, len(groups))
	counts := make([]int, len(groups))
	for i, g := range groups {
		rates[i] = pct(g.mean())
		counts[i] = g.count
	}
	return keys(groups), rates, counts
}

func cancellationsByPort(rows []model.ScoredBooking, n int) *PortBreakdown {
	ports, rates, counts := breakdown(rows, pol, topN(n, DefaultTopN))
	return &PortBreakdown{Ports: ports, CancelRates: rates, Counts: counts}
}

func cancellationsByLane(rows []model.ScoredBooking, n int) *LaneBreakdown {
	lanes, rates, counts := breakdown(rows, lane, topN(n, DefaultTopN))
	return &LaneBreakdown{Lanes: lanes, CancelRates: rates, Counts: counts}
}

// charts is the compact chart payload: top lanes and ports of loading by mean
// cancel probability and monthly booking counts.
func charts(rows []model.ScoredBooking) *Charts {
	c := &Charts{BookingsOverTime: make(map[string]int)}
	c.CancelByLane.Labels, c.CancelByLane.Values, _ = breakdown(rows, lane, DefaultTopN)
	c.CancelByPort.Labels, c.CancelByPort.Values, _ = breakdown(rows, pol, DefaultTopN)
	for _, g := range groupBy(rows, dated(Monthly)) {
		c.BookingsOverTime[g.key] = g.count
	}
	return c
}

// riskDistribution counts cancel risk labels in the order they first appear.
func riskDistribution(rows []model.ScoredBooking) *Distribution {
	groups := groupBy(rows, func(r model.ScoredBooking) *string {
		if r.CancelRisk == "" {
			return nil
		}
		s := string(r.CancelRisk)
		return &s
	})
	d := &Distribution{Labels: keys(groups), Values: make([]int, len(groups))}
	for i, g := range groups {
		d.Values[i] = g.count
	}
	return d
}

func distinctSorted(rows []model.ScoredBooking, key func(model.ScoredBooking) *string) []string {
	out := keys(groupBy(rows, key))
	slices.Sort(out)
	return out
}

// flow builds lane -> state and state -> risk edges weighted by row count.
// Nodes are the sorted lanes, then the sorted states, then the risk labels.
func flow(rows []model.ScoredBooking) *Flow {
	if len(rows) == 0 {
		return &Flow{Nodes: []FlowNode{}, Links: []FlowLink{}}
	}
	lanes := distinctSorted(rows, lane)
	states := distinctSorted(rows, state)

	nodes := make([]FlowNode, 0, len(lanes)+len(states)+len(model.RiskLabels))
	laneIdx := make(map[string]int, len(lanes))
	stateIdx := make(map[string]int, len(states))
	riskIdx := make(map[model.RiskLabel]int, len(model.RiskLabels))
	for _, l := range lanes {
		laneIdx[l] = len(nodes)
		nodes = append(nodes, FlowNode{Name: l})
	}
	for _, s := range states {
		stateIdx[s] = len(nodes)
		nodes = append(nodes, FlowNode{Name: s})
	}
	for _, r := range model.RiskLabels {
		riskIdx[r] = len(nodes)
		nodes = append(nodes, FlowNode{Name: string(r)})
	}

	type edge struct{ from, to int }
	weights := make(map[edge]int)
	for _, r := range rows {
		if r.Lane == nil || r.ContainerState == nil {
			continue
		}
		s := stateIdx[*r.ContainerState]
		weights[edge{laneIdx[*r.Lane], s}]++
		if r.CancelRisk.Valid() {
			weights[edge{s, riskIdx[r.CancelRisk]}]++
		}
	}

	links := make([]FlowLink, 0, len(weights))
	for e, w := range weights {
		links = append(links, FlowLink{Source: e.from, Target: e.to, Value: w})
	}
	slices.SortFunc(links, func(a, b FlowLink) int {
		if c := cmp.Compare(a.Source, b.Source); c != 0 {
			return c
		}
		return cmp.Compare(a.Target, b.Target)
	})
	return &Flow{Nodes: nodes, Links: links}
}

func seasonality(rows []model.ScoredBooking) *Seasonality {
	groups := groupBy(rows, dated(Daily))
	chronological(groups)

	s := &Seasonality{Dates: keys(groups), Values: make([]float64, len(groups))}
	for i, g := range groups {
		s.Values[i] = pct(g.mean())
	}
	return s
}

// network counts POL -> POD pairs over the most frequent ports. Labels are the
// top POLs followed by top PODs not already listed.
func network(rows []model.ScoredBooking) *Network {
	labels := mostFrequent(rows, pol, networkPorts)
	idx := make(map[string]int)
	for i, p := range labels {
		idx[p] = i
	}
	for _, p := range mostFrequent(rows, pod, networkPorts) {
		if _, ok := idx[p]; !ok {
			idx[p] = len(labels)
			labels = append(labels, p)
		}
	}

	matrix := make([][]int, len(labels))
	for i := range matrix {
		matrix[i] = make([]int, len(labels))
	}
	for _, r := range rows {
		if r.POL == nil || r.POD == nil {
			continue
		}
		i, ok := idx[*r.POL]
		if !ok {
			continue
		}
		j, ok := idx[*r.POD]
		if !ok {
			continue
		}
		matrix[i][j]++
	}
	return &Network{Labels: labels, Matrix: matrix}
}

func topRiskyBookings(rows []model.ScoredBooking, n int) []RiskyBooking {
	sorted := slices.Clone(rows)
	slices.SortStableFunc(sorted, func(a, b model.ScoredBooking) int {
		return cmp.Compare(b.CancelProbability, a.CancelProbability)
	})
	sorted = head(sorted, topN(n, DefaultTopN))

	out := make([]RiskyBooking, len(sorted))
	for i, r := range sorted {
		out[i] = RiskyBooking{
			BookingID:              r.BookingID,
			BookingDate:            r.BookingDate,
			POL:                    r.POL,
			POD:                    r.POD,
			Lane:                   r.Lane,
			CancelProbability:      r.CancelProbability,
			CancelRisk:             r.CancelRisk,
			BrokenRouteProbability: r.BrokenRouteProbability,
			BrokenRouteRisk:        r.BrokenRouteRisk,
		}
	}
	return out
}

// riskMatrix is the mean cancel rate per (top POL, top lane) cell, 0 when the
// cell has no rows.
func riskMatrix(rows []model.ScoredBooking) *RiskMatrix {
	ports := mostFrequent(rows, pol, matrixSize)
	lanes := mostFrequent(rows, lane, matrixSize)
	portIdx := indexOf(ports)
	laneIdx := indexOf(lanes)

	sums := make([][]float64, len(ports))
	counts := make([][]int, len(ports))
	for i := range ports {
		sums[i] = make([]float64, len(lanes))
		counts[i] = make([]int, len(lanes))
	}
	for _, r := range rows {
		if r.POL == nil || r.Lane == nil {
			continue
		}
		i, ok := portIdx[*r.POL]
		if !ok {
			continue
		}
		j, ok := laneIdx[*r.Lane]
		if !ok {
			continue
		}
		sums[i][j] += r.CancelProbability
		counts[i][j]++
	}

	matrix := make([][]float64, len(ports))
	for i := range ports {
		matrix[i] = make([]float64, len(lanes))
		for j := range lanes {
			if counts[i][j] > 0 {
				matrix[i][j] = pct(sums[i][j] / float64(counts[i][j]))
			}
		}
	}
	return &RiskMatrix{Ports: ports, Lanes: lanes, Matrix: matrix}
}

func indexOf(labels []string) map[string]int {
	m := make(map[string]int, len(labels))
	for i, l := range labels {
		m[l] = i
	}
	return m
}

// ridgeline is the monthly row count of each of the busiest lanes.
func ridgeline(rows []model.ScoredBooking) *Ridgeline {
	lanes := mostFrequent(rows, lane, laneSeriesSize)
	series := make(map[string]MonthlySeries, len(lanes))
	for _, l := range lanes {
		var laneRows []model.ScoredBooking
		for _, r := range rows {
			if r.Lane != nil && *r.Lane == l {
				laneRows = append(laneRows, r)
			}
		}
		groups := groupBy(laneRows, dated(Monthly))
		chronological(groups)

		ms := MonthlySeries{Months: keys(groups), Counts: make([]int, len(groups))}
		for i, g := range groups {
			ms.Counts[i] = g.count
		}
		series[l] = ms
	}
	return &Ridgeline{Lanes: lanes, Series: series}
}

// stackedArea counts rows per (busiest lane, date) over every booking date
// present, 0-filled.
func stackedArea(rows []model.ScoredBooking) *StackedArea {
	days := dated(Daily)
	dates := distinctSorted(rows, days)
	lanes := mostFrequent(rows, lane, laneSeriesSize)
	dateIdx := indexOf(dates)
	laneIdx := indexOf(lanes)

	data := make([][]int, len(lanes))
	for i := range data {
		data[i] = make([]int, len(dates))
	}
	for _, r := range rows {
		d := days(r)
		if d == nil || r.Lane == nil {
			continue
		}
		i, ok := laneIdx[*r.Lane]
		if !ok {
			continue
		}
		data[i][dateIdx[*d]]++
	}
	return &StackedArea{Dates: dates, Lanes: lanes, Data: data}
}

// waffle counts fixed buckets: FCL rows as Loaded, LCL rows as Empty, High
// cancel risk as Cancelled and Low cancel risk as Active. A row may fall in
// two buckets.
func waffle(rows []model.ScoredBooking) *Distribution {
	var loaded, empty, cancelled, active int
	for _, r := range rows {
		switch model.Str(r.ContainerState) {
		case "FCL":
			loaded++
		case "LCL":
			empty++
		}
		switch r.CancelRisk {
		case model.RiskHigh:
			cancelled++
		case model.RiskLow:
			active++
		}
	}
	return &Distribution{
		Labels: []string{WaffleLoaded, WaffleEmpty, WaffleCancelled, WaffleActive},
		Values: []int{loaded, empty, cancelled, active},
	}
}

func topRiskyLanes(rows []model.ScoredBooking, n int) []LaneRisk {
	groups := groupBy(rows, lane)
	byMeanDesc(groups)
	groups = head(groups, topN(n, DefaultTopRiskyN))

	out := make([]LaneRisk, len(groups))
	for i, g := range groups {
		out[i] = LaneRisk{Lane: g.key, CancelProbability: g.mean(), Count: g.count}
	}
	return out
}

func topRiskyPorts(rows []model.ScoredBooking, n int) []PortRisk {
	groups := groupBy(rows, pol)
	byMeanDesc(groups)
	groups = head(groups, topN(n, DefaultTopRiskyN))

	out := make([]PortRisk, len(groups))
	for i, g := range groups {
		out[i] = PortRisk{POL: g.key, CancelProbability: g.mean(), Count: g.count}
	}
	return out
}
