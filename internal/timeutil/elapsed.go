package timeutil

import (
	"fmt"
	"time"
)

// FormatElapsed renders a duration as "D days, HH:MM:SS" for the operator
// progress stream. Sub-second remainders are truncated.
func FormatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	sec := int64(d.Seconds())
	days := sec / 86400
	sec %= 86400
	return fmt.Sprintf("%d days, %02d:%02d:%02d", days, sec/3600, (sec%3600)/60, sec%60)
}
