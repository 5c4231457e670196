package temps

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ExtremeMode selects which end of a summary Extreme returns.
type ExtremeMode int

const (
	Min ExtremeMode = iota
	Max
)

func (m ExtremeMode) String() string {
	if m == Min {
		return "min"
	}
	return "max"
}

// ErrBadGroupKeys is returned when Aggregate is given zero or more than two
// group fields.
var ErrBadGroupKeys = errors.New("aggregate: one or two group fields required")

// keySep joins composite key parts into a map key. A control character keeps
// key values like "North America" from colliding with composites.
const keySep = "\x1f"

// Group is one observed key tuple and its arithmetic mean.
type Group struct {
	Key  []string `json:"key"`
	Mean float64  `json:"mean"`
}

// Summary is the result of one Aggregate call: an ordered set of groups.
// Iteration order is group discovery order (first occurrence in the input)
// until SortByMean is called. Summaries are transient views; nothing caches
// them between calls.
type Summary struct {
	groups []Group
	index  map[string]int
}

type accumulator struct {
	sum   float64
	count int
}

// Aggregate groups records by one or two fields, exact match, and returns the
// arithmetic mean of value per group. Only observed key tuples appear; a group
// with zero records is never produced.
func Aggregate(records []Record, keys []Field, value Field) (*Summary, error) {
	if len(keys) == 0 || len(keys) > 2 {
		return nil, ErrBadGroupKeys
	}
	if value != FieldTempCelsius && value != FieldTempFahrenheit {
		return nil, fmt.Errorf("aggregate: field %q is not aggregatable", value)
	}

	accs := make(map[string]*accumulator)
	tuples := make(map[string][]string)
	var order []string

	for _, r := range records {
		parts := make([]string, len(keys))
		for j, k := range keys {
			parts[j] = fieldValue(r, k)
		}
		ck := strings.Join(parts, keySep)
		acc, ok := accs[ck]
		if !ok {
			acc = &accumulator{}
			accs[ck] = acc
			tuples[ck] = parts
			order = append(order, ck)
		}
		acc.sum += numericValue(r, value)
		acc.count++
	}

	s := &Summary{index: make(map[string]int, len(order))}
	for _, ck := range order {
		acc := accs[ck]
		s.index[ck] = len(s.groups)
		s.groups = append(s.groups, Group{Key: tuples[ck], Mean: acc.sum / float64(acc.count)})
	}
	return s, nil
}

// Len returns the number of observed groups.
func (s *Summary) Len() int {
	return len(s.groups)
}

// Groups returns the groups in the summary's current iteration order.
// The returned slice is the summary's own backing; callers must not mutate it.
func (s *Summary) Groups() []Group {
	return s.groups
}

// Mean looks up the mean for an exact key tuple.
func (s *Summary) Mean(key ...string) (float64, bool) {
	i, ok := s.index[strings.Join(key, keySep)]
	if !ok {
		return 0, false
	}
	return s.groups[i].Mean, true
}

// SortByMean reorders the summary ascending by mean value. The sort is stable
// so equal means keep their discovery order.
func (s *Summary) SortByMean() {
	sort.SliceStable(s.groups, func(i, j int) bool {
		return s.groups[i].Mean < s.groups[j].Mean
	})
	for i, g := range s.groups {
		s.index[strings.Join(g.Key, keySep)] = i
	}
}

// Extreme scans the summary linearly for its minimum or maximum mean. Ties go
// to the first-encountered group in the summary's iteration order. Returns
// false for an empty summary.
func Extreme(s *Summary, mode ExtremeMode) (Group, bool) {
	if s == nil || len(s.groups) == 0 {
		return Group{}, false
	}
	best := s.groups[0]
	for _, g := range s.groups[1:] {
		if (mode == Min && g.Mean < best.Mean) || (mode == Max && g.Mean > best.Mean) {
			best = g
		}
	}
	return best, true
}

func fieldValue(r Record, f Field) string {
	switch f {
	case FieldRegion:
		return r.Region
	case FieldCountry:
		return r.Country
	case FieldState:
		return r.State
	case FieldCity:
		return r.City
	case FieldYear:
		return strconv.Itoa(r.Year)
	case FieldMonth:
		return strconv.Itoa(r.Month)
	default:
		return ""
	}
}

func numericValue(r Record, f Field) float64 {
	if f == FieldTempFahrenheit {
		return r.TempFahrenheit
	}
	return r.TempCelsius
}
