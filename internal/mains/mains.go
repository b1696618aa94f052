// Package mains picks the electrical hum frequency for the noise floor layer.
// A clip recorded near mains wiring picks up a faint 50 or 60 Hz hum; the
// frequency follows the country of the local timezone.
package mains

import (
	"strings"

	tz "github.com/medama-io/go-timezone-country"
	"github.com/thlib/go-timezone-local/tzlocal"
)

const (
	// Auto asks Resolve to detect the frequency.
	Auto = 0
	// Off disables the hum layer.
	Off = -1

	fallbackHz = 50
)

// Resolve turns a configured hum setting into a frequency: Auto detects it,
// Off (or any negative value) yields 0, anything else is returned unchanged.
func Resolve(setting int) int {
	switch {
	case setting < 0:
		return 0
	case setting == Auto:
		return Frequency()
	default:
		return setting
	}
}

// Frequency returns the local mains frequency in Hz, 50 when the timezone
// cannot be read.
func Frequency() int {
	timezone, err := tzlocal.RuntimeTZ()
	if err != nil {
		return fallbackHz
	}
	return FrequencyForTimezone(timezone)
}

// FrequencyForTimezone maps an IANA timezone to 50 or 60 Hz.
func FrequencyForTimezone(timezone string) int {
	if timezone == "UTC" || timezone == "GMT" || strings.HasPrefix(timezone, "Etc/") {
		return fallbackHz
	}

	tzMap, err := tz.NewTimezoneCountryMap()
	if err != nil {
		return fallbackHz
	}
	country, err := tzMap.GetCountry(timezone)
	if err != nil {
		return fallbackHz
	}
	if hz60[country] {
		return 60
	}
	// Japan runs both; Tokyo's 50 Hz grid serves more people.
	return fallbackHz
}

// hz60 lists the 60 Hz countries; everywhere else is 50 Hz.
var hz60 = map[string]bool{
	"United States": true, "Canada": true, "Mexico": true,

	"Belize": true, "Costa Rica": true, "El Salvador": true, "Guatemala": true,
	"Honduras": true, "Nicaragua": true, "Panama": true,

	"Bahamas": true, "Barbados": true, "Cayman Islands": true, "Cuba": true,
	"Dominican Republic": true, "Haiti": true, "Jamaica": true, "Puerto Rico": true,
	"Trinidad and Tobago": true, "U.S. Virgin Islands": true,

	"Brazil": true, "Colombia": true, "Ecuador": true, "Guyana": true,
	"Peru": true, "Suriname": true, "Venezuela": true,

	"South Korea": true, "Taiwan": true, "Philippines": true, "Saudi Arabia": true,

	"Guam": true, "American Samoa": true, "Marshall Islands": true,
	"Micronesia": true, "Palau": true,
}
