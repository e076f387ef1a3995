package scoring

// rangeTable defines five contiguous buckets over a measured value: values
// strictly below the first bound fall into the first bucket, values at or
// below each following bound into that bucket, and everything past the
// last bound into the fifth.
type rangeTable struct {
	bounds [4]float64
	labels [5]string
	points [5]int
}

func (t *rangeTable) classify(v float64) Bucket {
	switch {
	case v < t.bounds[0]:
		return Bucket{Label: t.labels[0], Points: t.points[0]}
	case v <= t.bounds[1]:
		return Bucket{Label: t.labels[1], Points: t.points[1]}
	case v <= t.bounds[2]:
		return Bucket{Label: t.labels[2], Points: t.points[2]}
	case v <= t.bounds[3]:
		return Bucket{Label: t.labels[3], Points: t.points[3]}
	default:
		return Bucket{Label: t.labels[4], Points: t.points[4]}
	}
}

// Low values score high for most metrics. The two proximity metrics invert
// the order: sites close to motorways or parking cater to car traffic and
// score low.
var (
	descending = [5]int{5, 4, 3, 2, 1}
	ascending  = [5]int{1, 2, 3, 4, 5}
)

var rangeTables = map[Metric]*rangeTable{
	MetricEmploymentDensity: {
		bounds: [4]float64{300, 500, 700, 900},
		labels: [5]string{"< 300", "300–500", "501–700", "701–900", "> 900"},
		points: descending,
	},
	MetricCommuterShare: {
		bounds: [4]float64{40, 50, 60, 70},
		labels: [5]string{"< 40 %", "40–50 %", "51–60 %", "61–70 %", "> 70 %"},
		points: descending,
	},
	MetricMotorizationRate: {
		bounds: [4]float64{500, 600, 700, 800},
		labels: [5]string{"< 500", "500–600", "601–700", "701–800", "> 800"},
		points: descending,
	},
	MetricCarModalSplit: {
		bounds: [4]float64{40, 50, 60, 70},
		labels: [5]string{"< 40%", "40–50%", "51–60%", "61–70%", "> 70%"},
		points: descending,
	},
	MetricHeadcount: {
		bounds: [4]float64{50, 100, 250, 500},
		labels: [5]string{"< 50", "50–100", "101–250", "251–500", "> 500"},
		points: descending,
	},
	MetricStopDistance: {
		bounds: [4]float64{300, 500, 750, 1000},
		labels: [5]string{"< 300 m", "300–500 m", "501–750 m", "751–1000 m", "> 1000 m"},
		points: descending,
	},
	MetricMotorwayDistance: {
		bounds: [4]float64{1000, 2000, 3000, 5000},
		labels: [5]string{"< 1000 m", "1000–2000 m", "2001–3000 m", "3001–5000 m", "> 5000 m"},
		points: ascending,
	},
	MetricParkingDistance: {
		bounds: [4]float64{100, 200, 300, 500},
		labels: [5]string{"< 100 m", "100–200 m", "201–300 m", "301–500 m", "> 500 m"},
		points: ascending,
	},
}

// transitPoints maps transit quality classes to points.
var transitPoints = map[string]int{
	"A": 5,
	"B": 4,
	"C": 3,
	"D": 2,
	"E": 1,
}

// sectorPoints maps industry sectors to points. The labels match the
// federal statistics wording used in the portfolio documents, including
// its spelling of "Dienstleisungen".
var sectorPoints = map[string]int{
	"IT & Software":                      5,
	"Finanzen, Versicherungen, Beratung": 4,
	"Verwaltung, Bildung, Gesundheitswesen, Dienstleisungen": 3,
	"Industrie, Produktion & Handel": 2,
	"Logistik & Transport":           1,
}
