package photo

import (
	"errors"
	"strings"

	"github.com/rwcarlsen/goexif/exif"
)

// locationResolver reads a coordinate from one encoding of the GPS tags.
type locationResolver func(x *exif.Exif) (Location, bool)

// Resolvers are tried in order; the first one yielding a valid coordinate wins.
var locationResolvers = []locationResolver{
	decimalLatLong,
	rawGPSGroup,
}

func resolveLocation(x *exif.Exif) *Location {
	for _, resolve := range locationResolvers {
		if loc, ok := resolve(x); ok && loc.valid() {
			return &loc
		}
	}
	return nil
}

// decimalLatLong is the common case: degree rationals combined with their
// N/S and E/W references.
func decimalLatLong(x *exif.Exif) (Location, bool) {
	lat, long, err := x.LatLong()
	if err != nil {
		return Location{}, false
	}
	return Location{Latitude: lat, Longitude: long}, true
}

// rawGPSGroup reads the GPS IFD rationals directly. Some encoders omit the
// reference tags or write fewer than three components, which LatLong rejects.
func rawGPSGroup(x *exif.Exif) (Location, bool) {
	lat, err := gpsDegrees(x, exif.GPSLatitude, exif.GPSLatitudeRef, "S")
	if err != nil {
		return Location{}, false
	}
	long, err := gpsDegrees(x, exif.GPSLongitude, exif.GPSLongitudeRef, "W")
	if err != nil {
		return Location{}, false
	}
	return Location{Latitude: lat, Longitude: long}, true
}

var errBadRational = errors.New("zero denominator")

func gpsDegrees(x *exif.Exif, field, ref exif.FieldName, negative string) (float64, error) {
	tag, err := x.Get(field)
	if err != nil {
		return 0, err
	}

	// degrees, minutes, seconds
	scale := [3]float64{1, 60, 3600}
	var deg float64
	for i := 0; i < int(tag.Count) && i < len(scale); i++ {
		num, den, err := tag.Rat2(i)
		if err != nil {
			return 0, err
		}
		if den == 0 {
			if i == 0 {
				return 0, errBadRational
			}
			continue
		}
		deg += float64(num) / float64(den) / scale[i]
	}

	if refTag, err := x.Get(ref); err == nil {
		if s, err := refTag.StringVal(); err == nil && strings.EqualFold(strings.TrimSpace(s), negative) {
			deg = -deg
		}
	}
	return deg, nil
}
