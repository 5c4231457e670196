package temps

import (
	"errors"
	"strings"
)

const (
	// MinValidYear and MaxValidYear bound the plausible observation years.
	// Anything outside is treated as corrupt and repaired by fill.
	MinValidYear = 1900
	MaxValidYear = 2024

	// UnknownState is assigned when neither the record nor the reference
	// table can name a state.
	UnknownState = "Unknown"
)

// ErrNoValidYear is returned when every year in the dataset is out of range,
// leaving nothing to fill from. The input is unrecoverable at that point.
var ErrNoValidYear = errors.New("no valid year in dataset")

// CleanReport counts the repairs applied during one cleaning pass. Counts feed
// logs and metrics only; they carry no correctness weight.
type CleanReport struct {
	StatesResolved int // state taken from the reference table
	StatesUnknown  int // state defaulted to UnknownState
	DaysCorrected  int // zero day replaced with 1
	YearsFilled    int // out-of-range year replaced by fill
}

// Clean normalizes raw observations in four ordered steps: state resolution,
// day correction, year correction, and Fahrenheit-to-Celsius conversion. Later
// steps assume the invariants of earlier ones, so the order is fixed.
//
// No row is ever dropped and no anomaly raises an error; malformed values are
// coerced in place. The one exception is a dataset whose years are all out of
// range, which returns ErrNoValidYear. The input slice is not modified.
func Clean(records []Record, ref CityReference) ([]Record, CleanReport, error) {
	out := make([]Record, len(records))
	copy(out, records)
	var report CleanReport

	// Step 1: state resolution. The reference table wins even over a
	// non-empty state; UnknownState applies only when the city is absent
	// from the reference and the record has no state of its own.
	for i := range out {
		if state, ok := ref[out[i].City]; ok {
			out[i].State = state
			report.StatesResolved++
		} else if strings.TrimSpace(out[i].State) == "" {
			out[i].State = UnknownState
			report.StatesUnknown++
		}
	}

	// Step 2: day correction. Zero is the upstream "unspecified" sentinel.
	// No month/year consistency check, matching the permissive repair policy.
	for i := range out {
		if out[i].Day == 0 {
			out[i].Day = 1
			report.DaysCorrected++
		}
	}

	if err := fillYears(out, &report); err != nil {
		return nil, CleanReport{}, err
	}

	// Step 4: unit conversion, unconditional and elementwise.
	for i := range out {
		out[i].TempCelsius = FahrenheitToCelsius(out[i].TempFahrenheit)
	}

	return out, report, nil
}

// fillYears nulls out-of-range years and repairs them by forward fill in row
// order, then backward fill for invalid runs at the start of the slice. Row
// order is the original file order, preserved end to end, so "nearest
// preceding" is well defined.
func fillYears(records []Record, report *CleanReport) error {
	invalid := make([]bool, len(records))
	anyValid := false
	for i := range records {
		if records[i].Year < MinValidYear || records[i].Year > MaxValidYear {
			invalid[i] = true
		} else {
			anyValid = true
		}
	}
	if len(records) > 0 && !anyValid {
		return ErrNoValidYear
	}

	lastValid := 0
	haveLast := false
	for i := range records {
		if invalid[i] {
			if haveLast {
				records[i].Year = lastValid
				invalid[i] = false
				report.YearsFilled++
			}
		} else {
			lastValid = records[i].Year
			haveLast = true
		}
	}

	nextValid := 0
	haveNext := false
	for i := len(records) - 1; i >= 0; i-- {
		if invalid[i] {
			if haveNext {
				records[i].Year = nextValid
				report.YearsFilled++
			}
		} else {
			nextValid = records[i].Year
			haveNext = true
		}
	}
	return nil
}
