package models

import (
	"fmt"
	"time"
)

// Operator messages show times in Vietnam local time (UTC+7, no DST).
var displayZone = time.FixedZone("ICT", 7*60*60)

// FormatDisplayTime renders an epoch-ms instant as "HH:MM DD/MM/YYYY"
// in the fixed display zone.
func FormatDisplayTime(ms int64) string {
	t := time.UnixMilli(ms).In(displayZone)
	return fmt.Sprintf("%02d:%02d %02d/%02d/%04d",
		t.Hour(), t.Minute(), t.Day(), int(t.Month()), t.Year())
}
