package sample

// Sample is a single (distance, reading) measurement for one sensor.
type Sample struct {
	Sensor   string  `json:"sensor"`
	Distance float64 `json:"distance_mm"` // mm
	Reading  float64 `json:"reading"`     // raw counts
}

// Table is the full sweep for one sensor, ordered by ascending distance.
// A Table is treated as read-only once built.
type Table struct {
	Sensor    string    `json:"sensor"`
	Distances []float64 `json:"distances_mm"`
	Readings  []float64 `json:"readings"`
}

// Len returns the number of samples in the sweep.
func (t Table) Len() int {
	return len(t.Distances)
}

// Range is a closed distance window [Min, Max] in mm.
type Range struct {
	Min float64 `json:"min_mm"`
	Max float64 `json:"max_mm"`
}

// Contains reports whether d falls inside the window.
func (r Range) Contains(d float64) bool {
	return d >= r.Min && d <= r.Max
}

// Span returns the window width in mm.
func (r Range) Span() float64 {
	return r.Max - r.Min
}
