package activity

import (
	"sort"

	"github.com/richxcame/fleet-performance/pkg/geo"
	"gonum.org/v1/gonum/stat"
)

// Stats describes the ride durations and fares of finished trips whose
// earnings fall inside the range.
func Stats(trips []TripRecord, r DateRange) TripStats {
	var durations, prices []float64
	for _, t := range trips {
		if !t.IsFinished() || !r.Contains(t.EarningsTimestamp()) {
			continue
		}
		prices = append(prices, t.RidePrice)
		if t.PickupAt > 0 && t.DropoffAt > t.PickupAt {
			durations = append(durations, float64(t.DropoffAt-t.PickupAt))
		}
	}

	s := TripStats{Count: len(prices)}
	if len(prices) > 0 {
		s.MeanRidePrice = stat.Mean(prices, nil)
	}
	if len(durations) > 0 {
		sort.Float64s(durations)
		s.MeanDurationSeconds = stat.Mean(durations, nil)
		s.MedianDurationSeconds = stat.Quantile(0.5, stat.Empirical, durations, nil)
		s.P90DurationSeconds = stat.Quantile(0.9, stat.Empirical, durations, nil)
	}
	return s
}

// Hotspots buckets waiting segments carrying coordinates into H3 cells,
// ordered by waiting time with ties broken by cell id.
func Hotspots(days []DayBucket, resolution int) []Hotspot {
	byCell := map[string]*Hotspot{}
	for _, d := range days {
		for _, seg := range d.Segments {
			if seg.State != StateWaiting || seg.Lat == nil || seg.Lng == nil {
				continue
			}
			if !geo.ValidLatLng(*seg.Lat, *seg.Lng) {
				continue
			}
			cell := geo.LatLngToCell(*seg.Lat, *seg.Lng, resolution)
			if cell == 0 {
				continue
			}
			id := geo.CellToString(cell)
			h, ok := byCell[id]
			if !ok {
				lat, lng := geo.CellToLatLng(cell)
				h = &Hotspot{Cell: id, Lat: lat, Lng: lng}
				byCell[id] = h
			}
			h.WaitingSeconds += seg.Duration()
			h.Segments++
		}
	}

	out := make([]Hotspot, 0, len(byCell))
	for _, h := range byCell {
		out = append(out, *h)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].WaitingSeconds != out[j].WaitingSeconds {
			return out[i].WaitingSeconds > out[j].WaitingSeconds
		}
		return out[i].Cell < out[j].Cell
	})
	return out
}
