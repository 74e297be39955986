package core

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
)

// ProgressPrint writes msg to stderr unless quiet is true.
func ProgressPrint(msg string, quiet bool) {
	if !quiet {
		fmt.Fprintln(os.Stderr, msg)
	}
}

// ParseLatLng parses a "lat,lng" string such as "54.352,18.646".
// Whitespace around either component is ignored.
func ParseLatLng(s string) (float64, float64, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid coordinate '%s' (expected lat,lng)", s)
	}

	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid latitude in '%s'", s)
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid longitude in '%s'", s)
	}

	if err := ValidateLatLng(lat, lng); err != nil {
		return 0, 0, err
	}
	return lat, lng, nil
}

// ValidateLatLng rejects non-finite or out-of-range coordinates.
func ValidateLatLng(lat, lng float64) error {
	if math.IsNaN(lat) || math.IsInf(lat, 0) || math.IsNaN(lng) || math.IsInf(lng, 0) {
		return fmt.Errorf("coordinate is not finite: %v,%v", lat, lng)
	}
	if lat < -90 || lat > 90 {
		return fmt.Errorf("latitude out of range: %v", lat)
	}
	if lng < -180 || lng > 180 {
		return fmt.Errorf("longitude out of range: %v", lng)
	}
	return nil
}

// LooksLikeLatLng reports whether s parses as a coordinate pair rather than an address.
func LooksLikeLatLng(s string) bool {
	_, _, err := ParseLatLng(s)
	return err == nil
}

// FormatLatLng renders a coordinate in the "lat,lng" form the provider expects.
func FormatLatLng(lat, lng float64) string {
	return strconv.FormatFloat(lat, 'f', -1, 64) + "," + strconv.FormatFloat(lng, 'f', -1, 64)
}

// UniqueStrings returns values with blanks and duplicates removed, keeping
// first-seen order. Values are kept verbatim since they are used as store keys.
func UniqueStrings(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if strings.TrimSpace(v) == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
