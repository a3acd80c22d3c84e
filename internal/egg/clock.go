package egg

import (
	"fmt"
	"time"
)

const DateLayout = "2006-01-02"

// Zone builds the fixed-offset location that defines the tracker's local day.
// A fixed UTC offset, not a tz-database zone, so day boundaries never shift
// with DST.
func Zone(offsetHours float64) *time.Location {
	seconds := int(offsetHours * 3600)
	name := fmt.Sprintf("UTC%+g", offsetHours)
	return time.FixedZone(name, seconds)
}

// LocalMidnight returns the start of the local calendar day containing now.
func LocalMidnight(now time.Time, loc *time.Location) time.Time {
	local := now.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}
