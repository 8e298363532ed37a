package airport

import (
	"regexp"
	"strings"
)

// Arrival patterns in priority order; the first that matches wins.
var arrivalPatterns = []*regexp.Regexp{
	regexp.MustCompile(`LND\s+RW?Y\s+(\d+[LCR]?)`),
	regexp.MustCompile(`LANDING\s+RW?Y\s+(\d+[LCR]?)`),
	regexp.MustCompile(`ILS\s+RW?Y\s+(\d+[LCR]?)\s+APCH\s+IN\s+USE`),
	regexp.MustCompile(`RW?Y\s+(\d+[LCR]?)\s+APCH\s+IN\s+USE`),
}

var departurePattern = regexp.MustCompile(`(?:DEPART|DEP)\s+RW?Y\s+(\d+[LCR]?)`)

var windPattern = regexp.MustCompile(`\b(\d{3}|VRB)(\d{2,3})(?:G(\d{2,3}))?KT\b`)

// ParseArrivalRunway extracts the landing runway from ATIS text.
// Returns "" when no arrival runway is announced.
func ParseArrivalRunway(text string) string {
	text = strings.ToUpper(text)
	for _, re := range arrivalPatterns {
		if m := re.FindStringSubmatch(text); m != nil {
			return m[1]
		}
	}
	return ""
}

// ParseDepartureRunway extracts the takeoff runway from ATIS text.
// Returns "" when no departure runway is announced.
func ParseDepartureRunway(text string) string {
	if m := departurePattern.FindStringSubmatch(strings.ToUpper(text)); m != nil {
		return m[1]
	}
	return ""
}

// ParseWind extracts surface wind from a METAR and formats it for a small
// display: "18006KT" becomes "180@6kt", "VRB03KT" becomes "VRB@3kt" and
// gusts are appended as "G22". Returns "" when the METAR has no wind group.
func ParseWind(metar string) string {
	m := windPattern.FindStringSubmatch(strings.ToUpper(metar))
	if m == nil {
		return ""
	}

	wind := m[1] + "@" + trimZeros(m[2])
	if m[3] != "" {
		wind += "G" + trimZeros(m[3])
	}
	return wind + "kt"
}

func trimZeros(s string) string {
	if t := strings.TrimLeft(s, "0"); t != "" {
		return t
	}
	return "0"
}
