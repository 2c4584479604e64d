package parser

import (
	"reflect"
	"testing"
)

func TestParseRating(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected float64
	}{
		{name: "with suffix", input: "4.5 stars", expected: 4.5},
		{name: "bare number", input: "3", expected: 3},
		{name: "surrounding whitespace", input: "  4.1\n", expected: 4.1},
		{name: "empty", input: "", expected: 0},
		{name: "whitespace only", input: "   ", expected: 0},
		{name: "non numeric", input: "No reviews", expected: 0},
		{name: "comma decimal", input: "4,5", expected: 0},
		{name: "nan literal", input: "NaN", expected: 0},
		{name: "inf literal", input: "Inf stars", expected: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseRating(tt.input); got != tt.expected {
				t.Errorf("ParseRating(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestParseReviewCount(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected int
	}{
		{name: "parenthesised", input: "(1,234 reviews)", expected: 1234},
		{name: "no digits", input: "no reviews", expected: 0},
		{name: "empty", input: "", expected: 0},
		{name: "plain", input: "87", expected: 87},
		{name: "dotted thousands", input: "2.049 Rezensionen", expected: 2049},
		{name: "overflow", input: "99999999999999999999999", expected: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseReviewCount(tt.input); got != tt.expected {
				t.Errorf("ParseReviewCount(%q) = %d, want %d", tt.input, got, tt.expected)
			}
		})
	}
}

func TestParseCategories(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{name: "three categories", input: "Cafe · Bakery · Coffee shop", expected: []string{"Cafe", "Bakery", "Coffee shop"}},
		{name: "empty", input: "", expected: []string{}},
		{name: "single", input: "Bar", expected: []string{"Bar"}},
		{name: "empty segments dropped", input: "· Pub ·  · ", expected: []string{"Pub"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseCategories(tt.input)
			if got == nil {
				t.Fatalf("ParseCategories(%q) returned nil, want non-nil slice", tt.input)
			}
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("ParseCategories(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestParseHours(t *testing.T) {
	rows := []HoursRow{
		{Day: "Monday", Range: "9 AM–5 PM"},
		{Day: "", Range: "9 AM–5 PM"},
		{Day: "Tuesday", Range: " "},
		{Day: " Sunday ", Range: "Closed"},
	}

	got := ParseHours(rows)
	want := map[string]string{"Monday": "9 AM–5 PM", "Sunday": "Closed"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ParseHours() = %v, want %v", got, want)
	}

	if empty := ParseHours(nil); empty == nil || len(empty) != 0 {
		t.Fatalf("ParseHours(nil) = %v, want empty map", empty)
	}
}

func TestParseCoordinates(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantOK  bool
		wantLat float64
		wantLng float64
	}{
		{name: "well formed", input: "https://www.google.com/maps/place/X/@37.422,-122.084,15z/data=!3m1", wantOK: true, wantLat: 37.422, wantLng: -122.084},
		{name: "no marker", input: "https://www.google.com/maps/place/X", wantOK: false},
		{name: "single field", input: "https://maps.test/@37.422", wantOK: false},
		{name: "non numeric", input: "https://maps.test/@abc,def,15z", wantOK: false},
		{name: "beyond geographic range kept", input: "https://maps.test/@137.4,190.5,15z", wantOK: true, wantLat: 137.4, wantLng: 190.5},
		{name: "not a number", input: "https://maps.test/@NaN,10,15z", wantOK: false},
		{name: "infinite", input: "https://maps.test/@10,+Inf,15z", wantOK: false},
		{name: "empty", input: "", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseCoordinates(tt.input)
			if ok != tt.wantOK {
				t.Fatalf("ParseCoordinates(%q) ok = %v, want %v", tt.input, ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if got.Latitude != tt.wantLat || got.Longitude != tt.wantLng {
				t.Errorf("ParseCoordinates(%q) = %+v, want (%v, %v)", tt.input, got, tt.wantLat, tt.wantLng)
			}
		})
	}
}

func TestCleanWebsite(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{input: "https://example.com/", expected: "https://example.com/"},
		{input: "/url?q=https%3A%2F%2Fcafe.test%2Fmenu&sa=U", expected: "https://cafe.test/menu"},
		{input: "  ", expected: ""},
	}

	for _, tt := range tests {
		if got := CleanWebsite(tt.input); got != tt.expected {
			t.Errorf("CleanWebsite(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestCleanFilename(t *testing.T) {
	if got := CleanFilename(`cafe/bar: "best"?`); got != "cafe_bar_ _best__" {
		t.Fatalf("CleanFilename() = %q", got)
	}
}

func TestFormatHours(t *testing.T) {
	hours := map[string]string{
		"Sunday":  "Closed",
		"Monday":  "9 AM–5 PM",
		"Holiday": "10 AM–2 PM",
	}
	want := "Monday: 9 AM–5 PM\nSunday: Closed\nHoliday: 10 AM–2 PM"
	if got := FormatHours(hours); got != want {
		t.Fatalf("FormatHours() = %q, want %q", got, want)
	}
	if got := FormatHours(nil); got != "" {
		t.Fatalf("FormatHours(nil) = %q, want empty", got)
	}
}
