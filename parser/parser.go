// Package parser converts loosely-typed scraped text into canonical values.
// Every function is total: adversarial or empty input yields a zero value.
package parser

import (
	"math"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/aluiziolira/go-scrape-maps/models"
)

// CategorySeparator is the glyph the map UI places between categories.
const CategorySeparator = "·"

// HoursRow is one (day, time range) pair read from the opening-hours table.
type HoursRow struct {
	Day   string
	Range string
}

// ParseRating parses the first whitespace-delimited token as a float.
func ParseRating(text string) float64 {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return 0
	}
	v, err := strconv.ParseFloat(fields[0], 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// ParseReviewCount concatenates every digit in text and parses the result.
func ParseReviewCount(text string) int {
	var b strings.Builder
	for _, r := range text {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return 0
	}
	n, err := strconv.Atoi(b.String())
	if err != nil {
		return 0
	}
	return n
}

// ParseCategories splits text on the category separator.
func ParseCategories(text string) []string {
	out := []string{}
	for _, part := range strings.Split(text, CategorySeparator) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}

// ParseHours builds a day -> time range mapping, skipping incomplete rows.
func ParseHours(rows []HoursRow) map[string]string {
	hours := make(map[string]string, len(rows))
	for _, row := range rows {
		day := strings.TrimSpace(row.Day)
		rng := strings.TrimSpace(row.Range)
		if day == "" || rng == "" {
			continue
		}
		hours[day] = rng
	}
	return hours
}

// ParseCoordinates reads "lat,lng" following the first '@' of a place URL.
func ParseCoordinates(rawURL string) (models.Coordinates, bool) {
	parts := strings.Split(rawURL, "@")
	if len(parts) < 2 {
		return models.Coordinates{}, false
	}
	fields := strings.Split(parts[1], ",")
	if len(fields) < 2 {
		return models.Coordinates{}, false
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(fields[0]), 64)
	if err != nil {
		return models.Coordinates{}, false
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(fields[1]), 64)
	if err != nil {
		return models.Coordinates{}, false
	}
	// NaN and Inf cannot be encoded as JSON numbers.
	if math.IsNaN(lat) || math.IsNaN(lng) || math.IsInf(lat, 0) || math.IsInf(lng, 0) {
		return models.Coordinates{}, false
	}
	return models.Coordinates{Latitude: lat, Longitude: lng}, true
}

// CleanWebsite unwraps redirect links of the form /url?q=<target>&...
func CleanWebsite(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	idx := strings.Index(raw, "/url?q=")
	if idx < 0 {
		return raw
	}
	target := raw[idx+len("/url?q="):]
	if amp := strings.Index(target, "&"); amp >= 0 {
		target = target[:amp]
	}
	if unescaped, err := url.QueryUnescape(target); err == nil {
		target = unescaped
	}
	return target
}

// CleanFilename replaces characters that are invalid in file names.
func CleanFilename(name string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '<', '>', ':', '"', '/', '\\', '|', '?', '*':
			return '_'
		}
		if unicode.IsControl(r) {
			return '_'
		}
		return r
	}, name)
}

var weekdayOrder = map[string]int{
	"monday": 0, "tuesday": 1, "wednesday": 2, "thursday": 3,
	"friday": 4, "saturday": 5, "sunday": 6,
}

// FormatHours renders hours as "Day: range" lines, weekdays first in calendar order.
func FormatHours(hours map[string]string) string {
	if len(hours) == 0 {
		return ""
	}
	days := make([]string, 0, len(hours))
	for day := range hours {
		days = append(days, day)
	}
	sort.Slice(days, func(i, j int) bool {
		oi, iok := weekdayOrder[strings.ToLower(days[i])]
		oj, jok := weekdayOrder[strings.ToLower(days[j])]
		switch {
		case iok && jok:
			return oi < oj
		case iok != jok:
			return iok
		default:
			return days[i] < days[j]
		}
	})
	lines := make([]string, 0, len(days))
	for _, day := range days {
		lines = append(lines, day+": "+hours[day])
	}
	return strings.Join(lines, "\n")
}
