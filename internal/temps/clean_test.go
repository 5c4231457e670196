package temps

import (
	"errors"
	"math"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

// TestClean_StateResolution verifies the three state outcomes: reference
// overwrite, retained original, and the Unknown fallback.
func TestClean_StateResolution(t *testing.T) {
	ref := CityReference{"Springfield": "Illinois"}
	records := []Record{
		{City: "Springfield", State: "Ohio", Year: 2000, Month: 1, Day: 1},
		{City: "Portland", State: "Oregon", Year: 2000, Month: 1, Day: 1},
		{City: "Atlantis", State: "", Year: 2000, Month: 1, Day: 1},
	}

	cleaned, report, err := Clean(records, ref)
	if err != nil {
		t.Fatalf("Clean() error = %v", err)
	}

	// Reference wins even over a non-empty state.
	if cleaned[0].State != "Illinois" {
		t.Errorf("cleaned[0].State = %q, want %q", cleaned[0].State, "Illinois")
	}
	// City absent from reference, state present: keep original.
	if cleaned[1].State != "Oregon" {
		t.Errorf("cleaned[1].State = %q, want %q", cleaned[1].State, "Oregon")
	}
	// City absent from reference, state empty: Unknown.
	if cleaned[2].State != UnknownState {
		t.Errorf("cleaned[2].State = %q, want %q", cleaned[2].State, UnknownState)
	}
	if report.StatesResolved != 1 {
		t.Errorf("report.StatesResolved = %d, want 1", report.StatesResolved)
	}
	if report.StatesUnknown != 1 {
		t.Errorf("report.StatesUnknown = %d, want 1", report.StatesUnknown)
	}
}

// TestClean_SpringfieldExample runs the full example row from the data-quality
// policy: null state, corrupt year, zero day, freezing-point temperature.
func TestClean_SpringfieldExample(t *testing.T) {
	ref := CityReference{"Springfield": "Illinois"}
	records := []Record{
		{City: "Springfield", Region: "North America", Year: 2003, Month: 5, Day: 12, TempFahrenheit: 60},
		{City: "Springfield", Region: "North America", Year: 2099, Month: 5, Day: 0, TempFahrenheit: 32},
	}

	cleaned, _, err := Clean(records, ref)
	if err != nil {
		t.Fatalf("Clean() error = %v", err)
	}

	got := cleaned[1]
	if got.State != "Illinois" {
		t.Errorf("State = %q, want %q", got.State, "Illinois")
	}
	if got.Year != 2003 {
		t.Errorf("Year = %d, want 2003 (nearest valid neighbor)", got.Year)
	}
	if got.Day != 1 {
		t.Errorf("Day = %d, want 1", got.Day)
	}
	if !almostEqual(got.TempCelsius, 0) {
		t.Errorf("TempCelsius = %v, want 0", got.TempCelsius)
	}
}

// TestClean_YearFill verifies forward-then-backward fill on the sequence
// [invalid, 2005, invalid, invalid, 2010].
func TestClean_YearFill(t *testing.T) {
	records := []Record{
		{Year: 200, Day: 1},
		{Year: 2005, Day: 1},
		{Year: 2200, Day: 1},
		{Year: 0, Day: 1},
		{Year: 2010, Day: 1},
	}

	cleaned, report, err := Clean(records, nil)
	if err != nil {
		t.Fatalf("Clean() error = %v", err)
	}

	want := []int{2005, 2005, 2005, 2005, 2010}
	for i, w := range want {
		if cleaned[i].Year != w {
			t.Errorf("cleaned[%d].Year = %d, want %d", i, cleaned[i].Year, w)
		}
	}
	if report.YearsFilled != 3 {
		t.Errorf("report.YearsFilled = %d, want 3", report.YearsFilled)
	}
}

// TestClean_AllYearsInvalid verifies the unrecoverable-input error instead of
// the silent all-null propagation.
func TestClean_AllYearsInvalid(t *testing.T) {
	records := []Record{
		{Year: 0, Day: 1},
		{Year: 2525, Day: 1},
	}

	_, _, err := Clean(records, nil)
	if !errors.Is(err, ErrNoValidYear) {
		t.Errorf("Clean() error = %v, want ErrNoValidYear", err)
	}
}

// TestClean_Invariants checks that every cleaned record lands in the valid
// day and year ranges when at least one valid year exists.
func TestClean_Invariants(t *testing.T) {
	records := []Record{
		{City: "Oslo", Year: 1899, Month: 2, Day: 0, TempFahrenheit: 20},
		{City: "Oslo", Year: 1995, Month: 2, Day: 28, TempFahrenheit: 25},
		{City: "Oslo", Year: 2025, Month: 3, Day: 0, TempFahrenheit: 40},
	}

	cleaned, _, err := Clean(records, nil)
	if err != nil {
		t.Fatalf("Clean() error = %v", err)
	}
	for i, r := range cleaned {
		if r.Day < 1 || r.Day > 31 {
			t.Errorf("cleaned[%d].Day = %d, want in [1,31]", i, r.Day)
		}
		if r.Year < MinValidYear || r.Year > MaxValidYear {
			t.Errorf("cleaned[%d].Year = %d, want in [%d,%d]", i, r.Year, MinValidYear, MaxValidYear)
		}
		if r.State == "" {
			t.Errorf("cleaned[%d].State is empty, want non-empty", i)
		}
	}
}

// TestClean_Idempotent verifies that cleaning its own output changes nothing.
func TestClean_Idempotent(t *testing.T) {
	ref := CityReference{"Karachi": "Sindh"}
	records := []Record{
		{Region: "Asia", City: "Karachi", Year: 2099, Month: 6, Day: 0, TempFahrenheit: 95.3},
		{Region: "Asia", City: "Karachi", Year: 2001, Month: 6, Day: 2, TempFahrenheit: 97.1},
		{Region: "Europe", City: "Tallinn", State: "", Year: 2001, Month: 6, Day: 2, TempFahrenheit: 60.8},
	}

	once, _, err := Clean(records, ref)
	if err != nil {
		t.Fatalf("Clean() error = %v", err)
	}
	twice, _, err := Clean(once, ref)
	if err != nil {
		t.Fatalf("Clean(Clean()) error = %v", err)
	}

	for i := range once {
		if once[i] != twice[i] {
			t.Errorf("record %d changed on second clean: %+v != %+v", i, once[i], twice[i])
		}
	}
}

// TestClean_DoesNotMutateInput verifies the pipeline works on a copy.
func TestClean_DoesNotMutateInput(t *testing.T) {
	records := []Record{{City: "Lima", Year: 0, Day: 0, TempFahrenheit: 70}, {City: "Lima", Year: 2004, Day: 3, TempFahrenheit: 71}}

	if _, _, err := Clean(records, nil); err != nil {
		t.Fatalf("Clean() error = %v", err)
	}

	if records[0].Year != 0 || records[0].Day != 0 || records[0].State != "" || records[0].TempCelsius != 0 {
		t.Errorf("input record mutated: %+v", records[0])
	}
}

// TestConversion_RoundTrip verifies celsius->fahrenheit inverts the cleaning
// conversion within floating point tolerance.
func TestConversion_RoundTrip(t *testing.T) {
	for _, f := range []float64{-40, 0, 32, 98.6, 212, -99} {
		c := FahrenheitToCelsius(f)
		back := CelsiusToFahrenheit(c)
		if !almostEqual(back, f) {
			t.Errorf("round trip %v°F -> %v°C -> %v°F", f, c, back)
		}
	}
	// -40 is the fixed point of the two scales.
	if !almostEqual(FahrenheitToCelsius(-40), -40) {
		t.Errorf("FahrenheitToCelsius(-40) = %v, want -40", FahrenheitToCelsius(-40))
	}
}
