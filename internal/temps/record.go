package temps

// Field identifies a column of the dataset usable for grouping or aggregation.
type Field string

const (
	FieldRegion         Field = "region"
	FieldCountry        Field = "country"
	FieldState          Field = "state"
	FieldCity           Field = "city"
	FieldYear           Field = "year"
	FieldMonth          Field = "month"
	FieldTempCelsius    Field = "temp_celsius"
	FieldTempFahrenheit Field = "temp_fahrenheit"
)

// Record is one (city, date) temperature observation. TempFahrenheit holds the
// as-uploaded value and is never mutated; TempCelsius is zero until Clean fills
// it, which keeps cleaning a fixed point when re-applied to its own output.
type Record struct {
	Region         string  `json:"region"`
	Country        string  `json:"country"`
	State          string  `json:"state"`
	City           string  `json:"city"`
	Year           int     `json:"year"`
	Month          int     `json:"month"`
	Day            int     `json:"day"`
	TempFahrenheit float64 `json:"tempFahrenheit"`
	TempCelsius    float64 `json:"tempCelsius"`
}

// CityReference maps a city name to its state, built from the external
// reference table. When the same city name appears on multiple rows the last
// row wins; city names mapping to several states are ambiguous upstream and
// are not disambiguated here.
type CityReference map[string]string

// FahrenheitToCelsius converts unconditionally; sentinel or extreme inputs
// propagate as extreme Celsius values.
func FahrenheitToCelsius(f float64) float64 {
	return (f - 32) * 5 / 9
}

// CelsiusToFahrenheit is the inverse of FahrenheitToCelsius.
func CelsiusToFahrenheit(c float64) float64 {
	return c*9/5 + 32
}
