package ingest

import (
	"sort"

	"github.com/electronjoe/DamageReview/internal/photo"
)

// DefaultNearest is how many GPS-tagged photos per role are kept around the
// reference location.
const DefaultNearest = 10

// Nearest keeps the limit photos closest to ref, nearest first, followed by
// every photo without a location in its original order. Photos at equal
// distance keep their relative order.
func Nearest(photos []photo.Record, ref photo.Location, limit int) []photo.Record {
	if limit <= 0 {
		limit = DefaultNearest
	}

	type ranked struct {
		rec  photo.Record
		dist float64
	}
	var withGPS []ranked
	var withoutGPS []photo.Record
	for _, p := range photos {
		if !p.HasLocation() {
			withoutGPS = append(withoutGPS, p)
			continue
		}
		withGPS = append(withGPS, ranked{rec: p, dist: photo.Distance(ref, *p.Location)})
	}

	sort.SliceStable(withGPS, func(i, j int) bool {
		return withGPS[i].dist < withGPS[j].dist
	})
	if len(withGPS) > limit {
		withGPS = withGPS[:limit]
	}

	out := make([]photo.Record, 0, len(withGPS)+len(withoutGPS))
	for _, r := range withGPS {
		out = append(out, r.rec)
	}
	return append(out, withoutGPS...)
}
