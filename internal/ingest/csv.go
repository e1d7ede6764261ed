// Package ingest reads sweep tables produced by the capture rig. The format
// is CSV with the distance in the first column and one sensor per remaining
// column; the header row carries the sensor names.
package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/relabs-tech/range_analyzer/internal/sample"
)

// ErrNoHeader is returned when the file has no usable header row.
var ErrNoHeader = errors.New("sweep file has no header row with sensor names")

// ReadFile parses a sweep CSV and returns one table per sensor column.
// Samples beyond maxDistance are dropped; non-numeric cells are skipped for
// the affected sensor only.
func ReadFile(path string, maxDistance float64) ([]sample.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sweep file: %w", err)
	}
	defer f.Close()

	tables, err := Read(f, maxDistance)
	if err != nil {
		return nil, fmt.Errorf("sweep file %s: %w", path, err)
	}
	return tables, nil
}

// Read parses sweep CSV data from r.
func Read(r io.Reader, maxDistance float64) ([]sample.Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, ErrNoHeader
	}
	if len(header) < 2 {
		return nil, fmt.Errorf("%w: need a distance column and at least one sensor column", ErrNoHeader)
	}

	tables := make([]sample.Table, len(header)-1)
	for i, name := range header[1:] {
		name = strings.TrimSpace(name)
		if name == "" {
			name = fmt.Sprintf("Sensor_%d", i+1)
		}
		tables[i] = sample.Table{Sensor: name}
	}

	line := 1
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line+1, err)
		}
		line++

		dist, err := strconv.ParseFloat(strings.TrimSpace(rec[0]), 64)
		if err != nil || math.IsNaN(dist) {
			// Stray header or annotation row.
			continue
		}
		if dist > maxDistance {
			continue
		}

		for i := range tables {
			if i+1 >= len(rec) {
				continue
			}
			v, err := strconv.ParseFloat(strings.TrimSpace(rec[i+1]), 64)
			if err != nil || math.IsNaN(v) {
				continue
			}
			tables[i].Distances = append(tables[i].Distances, dist)
			tables[i].Readings = append(tables[i].Readings, v)
		}
	}

	for i := range tables {
		sortByDistance(&tables[i])
	}
	return tables, nil
}

// WriteFile writes detected samples as a single-sensor sweep CSV, the same
// layout ReadFile accepts.
func WriteFile(path, sensor string, samples []sample.Sample) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create samples file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"distance", sensor}); err != nil {
		return err
	}
	for _, s := range samples {
		rec := []string{
			strconv.FormatFloat(s.Distance, 'f', -1, 64),
			strconv.FormatFloat(s.Reading, 'f', -1, 64),
		}
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func sortByDistance(t *sample.Table) {
	idx := make([]int, t.Len())
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return t.Distances[idx[a]] < t.Distances[idx[b]]
	})
	dists := make([]float64, t.Len())
	reads := make([]float64, t.Len())
	for i, j := range idx {
		dists[i] = t.Distances[j]
		reads[i] = t.Readings[j]
	}
	t.Distances = dists
	t.Readings = reads
}
