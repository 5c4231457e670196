package temps

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ErrUnparseable marks a dataset that cannot be read at all. Row-level
// anomalies never produce it; those are repaired by Clean.
var ErrUnparseable = errors.New("unparseable dataset")

// datasetColumns are the required upload columns, matched case-insensitively
// and in any order. AvgTemperature is in Fahrenheit.
var datasetColumns = []string{"region", "country", "state", "city", "year", "month", "day", "avgtemperature"}

// ParseDataset reads the uploaded temperature CSV into raw records. The header
// row is required; missing or unreadable headers are a hard failure. Data rows
// are handled permissively: short rows read as empty fields and non-numeric
// values parse to zero, which the cleaning pipeline later repairs (a zero year
// is out of range and gets filled, a zero day becomes 1). Row order is
// preserved; the year fill depends on it.
func ParseDataset(r io.Reader) ([]Record, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: read header: %v", ErrUnparseable, err)
	}
	col := make(map[string]int, len(header))
	for i, h := range header {
		col[normalizeHeader(h)] = i
	}
	for _, want := range datasetColumns {
		if _, ok := col[want]; !ok {
			return nil, fmt.Errorf("%w: missing column %q", ErrUnparseable, want)
		}
	}

	var records []Record
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnparseable, err)
		}
		records = append(records, Record{
			Region:         field(row, col["region"]),
			Country:        field(row, col["country"]),
			State:          field(row, col["state"]),
			City:           field(row, col["city"]),
			Year:           parseIntOrZero(field(row, col["year"])),
			Month:          parseIntOrZero(field(row, col["month"])),
			Day:            parseIntOrZero(field(row, col["day"])),
			TempFahrenheit: parseFloatOrZero(field(row, col["avgtemperature"])),
		})
	}
	return records, nil
}

// ParseCityReference reads the external name,state table. Duplicate city names
// resolve last-row-wins.
func ParseCityReference(r io.Reader) (CityReference, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: read header: %v", ErrUnparseable, err)
	}
	col := make(map[string]int, len(header))
	for i, h := range header {
		col[normalizeHeader(h)] = i
	}
	nameIdx, okName := col["name"]
	stateIdx, okState := col["state"]
	if !okName || !okState {
		return nil, fmt.Errorf("%w: city reference needs name and state columns", ErrUnparseable)
	}

	ref := make(CityReference)
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnparseable, err)
		}
		name := strings.TrimSpace(field(row, nameIdx))
		if name == "" {
			continue
		}
		ref[name] = strings.TrimSpace(field(row, stateIdx))
	}
	return ref, nil
}

func normalizeHeader(h string) string {
	h = strings.TrimPrefix(h, "\ufeff") // Excel exports often carry a BOM
	return strings.ToLower(strings.TrimSpace(h))
}

// field returns row[i] or "" when the row is short.
func field(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}

func parseIntOrZero(s string) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return v
}

func parseFloatOrZero(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}
