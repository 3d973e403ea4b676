package gamma

import (
	"testing"
	"time"
)

func TestHourlySlug(t *testing.T) {
	cases := []struct {
		name string
		et   time.Time
		want string
	}{
		{"afternoon", time.Date(2026, time.January, 20, 17, 12, 0, 0, eastern), "bitcoin-up-or-down-january-20-5pm-et"},
		{"morning", time.Date(2026, time.August, 3, 9, 0, 0, 0, eastern), "bitcoin-up-or-down-august-3-9am-et"},
		{"noon", time.Date(2026, time.June, 15, 12, 30, 0, 0, eastern), "bitcoin-up-or-down-june-15-12pm-et"},
		{"midnight", time.Date(2026, time.June, 15, 0, 5, 0, 0, eastern), "bitcoin-up-or-down-june-15-12am-et"},
		{"eleven pm", time.Date(2026, time.December, 31, 23, 59, 0, 0, eastern), "bitcoin-up-or-down-december-31-11pm-et"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := HourlySlug(tc.et); got != tc.want {
				t.Fatalf("HourlySlug: got %q want %q", got, tc.want)
			}
		})
	}
}

func TestHourlySlugConvertsToEastern(t *testing.T) {
	// 18:00 UTC in summer is 2pm ET.
	utc := time.Date(2026, time.July, 4, 18, 0, 0, 0, time.UTC)
	if got := HourlySlug(utc); got != "bitcoin-up-or-down-july-4-2pm-et" {
		t.Fatalf("HourlySlug from UTC: got %q", got)
	}
}
