// Package swissgrid converts between Swiss LV95 projected coordinates
// (EPSG:2056) and WGS84 latitude/longitude, and provides great-circle
// distance helpers.
//
// The conversion uses the approximation formulas published by swisstopo
// ("Approximate formulas for the transformation between Swiss projection
// coordinates and WGS84"). The approximation is accurate to about one
// meter across Switzerland, which is more than enough for distance
// bucketing.
package swissgrid

// LV95 false origin (Bern).
const (
	falseEasting  = 2600000.0
	falseNorthing = 1200000.0
)

// ToWGS84 converts LV95 easting/northing to WGS84 latitude/longitude
// in decimal degrees.
func ToWGS84(easting, northing float64) (lat, lon float64) {
	// Auxiliary values: civilian coordinates relative to Bern, in
	// units of 1000 km.
	y := (easting - falseEasting) / 1e6
	x := (northing - falseNorthing) / 1e6

	lonPrime := 2.6779094 +
		4.728982*y +
		0.791484*y*x +
		0.1306*y*x*x -
		0.0436*y*y*y

	latPrime := 16.9023892 +
		3.238272*x -
		0.270978*y*y -
		0.002528*x*x -
		0.0447*y*y*x -
		0.0140*x*x*x

	// Unit conversion from 10000" to degrees.
	return latPrime * 100 / 36, lonPrime * 100 / 36
}

// FromWGS84 converts WGS84 latitude/longitude in decimal degrees to
// LV95 easting/northing.
func FromWGS84(lat, lon float64) (easting, northing float64) {
	// Auxiliary values: sexagesimal seconds relative to Bern, in
	// units of 10000".
	phi := (lat*3600 - 169028.66) / 10000
	lambda := (lon*3600 - 26782.5) / 10000

	easting = 2600072.37 +
		211455.93*lambda -
		10938.51*lambda*phi -
		0.36*lambda*phi*phi -
		44.54*lambda*lambda*lambda

	northing = 1200147.07 +
		308807.95*phi +
		3745.25*lambda*lambda +
		76.63*phi*phi -
		194.56*lambda*lambda*phi +
		119.79*phi*phi*phi

	return easting, northing
}
