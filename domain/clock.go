package domain

import (
	"fmt"
	"time"
)

// GameTime converts the in-game clock (milliseconds since epoch) to time.Time.
func GameTime(timeInt int64) time.Time {
	return time.UnixMilli(timeInt).UTC()
}

func FormatGameDate(timeInt int64) string {
	return GameTime(timeInt).Format("Monday 2 Jan 2006")
}

func FormatGameClock(timeInt int64) string {
	return GameTime(timeInt).Format("15:04:05.000")
}

func FormatGameTime(timeInt int64) string {
	return fmt.Sprintf("%s %s", FormatGameDate(timeInt), FormatGameClock(timeInt))
}
