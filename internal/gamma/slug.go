package gamma

import (
	"fmt"
	"strings"
	"time"
)

// Hourly Bitcoin Up or Down markets are slugged in Eastern time, e.g.
// "bitcoin-up-or-down-january-20-5pm-et".

const hourlySlugPrefix = "bitcoin-up-or-down"

var eastern = mustLoadEastern()

func mustLoadEastern() *time.Location {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		panic(fmt.Sprintf("load America/New_York: %v", err))
	}
	return loc
}

// HourlySlug returns the event slug for the hourly market covering t.
func HourlySlug(t time.Time) string {
	et := t.In(eastern)
	month := strings.ToLower(et.Month().String())

	hour := et.Hour()
	var hourStr string
	switch {
	case hour == 0:
		hourStr = "12am"
	case hour < 12:
		hourStr = fmt.Sprintf("%dam", hour)
	case hour == 12:
		hourStr = "12pm"
	default:
		hourStr = fmt.Sprintf("%dpm", hour-12)
	}

	return fmt.Sprintf("%s-%s-%d-%s-et", hourlySlugPrefix, month, et.Day(), hourStr)
}
