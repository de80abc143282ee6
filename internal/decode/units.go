package decode

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// InternalUnitToMM is Altium's "internal unit" scale: 1 internal unit is
// 1/10,000,000 inch = 2.54e-6 mm. This is the constant implied by spec §8's
// testable property ("50000" with magnitude > 10000 → 0.127mm), and matches
// tools/altium_file_reader.py's UNITS_TO_MM = 25.4 / 10_000_000. The prose
// in spec §4.2 ("1 internal unit = 2.54 x 10^-5 mm") is off by a factor of
// ten; the worked examples in §8 are authoritative and are what this
// constant reproduces.
const InternalUnitToMM = 25.4 / 10_000_000.0

// MilToMM converts thousandths of an inch to millimeters.
const MilToMM = 0.0254

// internalUnitThreshold is the magnitude above which an unsuffixed numeric
// value is assumed to be internal units rather than mil (spec §4.2/§8).
const internalUnitThreshold = 10_000.0

var (
	milRe = regexp.MustCompile(`(?i)([0-9.]+)\s*mil`)
	mmRe  = regexp.MustCompile(`(?i)([0-9.]+)\s*mm`)
	numRe = regexp.MustCompile(`[^0-9.\-]`)
)

// ParseDistanceMM converts an Altium distance string to millimeters,
// honoring an explicit "mil"/"mm" suffix, or else inferring internal units
// vs. mil from magnitude (spec §4.2 "Unit inference rule"). The result is
// rounded to 4 decimals. Malformed input yields 0, never an error or panic
// — decoders must never throw on corrupted input (spec §4.2).
func ParseDistanceMM(raw string) float64 {
	s := strings.TrimSpace(raw)
	if s == "" || s == "0" {
		return 0
	}
	s = stripNonPrintable(s)

	lower := strings.ToLower(s)
	if strings.Contains(lower, "mil") {
		if m := milRe.FindStringSubmatch(s); m != nil {
			if v, err := strconv.ParseFloat(m[1], 64); err == nil {
				return round4(v * MilToMM)
			}
		}
	} else if strings.Contains(lower, "mm") {
		if m := mmRe.FindStringSubmatch(s); m != nil {
			if v, err := strconv.ParseFloat(m[1], 64); err == nil {
				return round4(v)
			}
		}
	}

	numeric := numRe.ReplaceAllString(s, "")
	if numeric == "" || numeric == "-" || numeric == "." {
		return 0
	}
	v, err := strconv.ParseFloat(numeric, 64)
	if err != nil {
		return 0
	}
	if math.Abs(v) > internalUnitThreshold {
		return round4(v * InternalUnitToMM)
	}
	return round4(v * MilToMM)
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}

func stripNonPrintable(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= 0x20 && r < 0x7F {
			b.WriteRune(r)
		}
	}
	return b.String()
}
