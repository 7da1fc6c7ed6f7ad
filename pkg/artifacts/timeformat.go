package artifacts

import "time"

// utcMillisLayout matches the teacher's hand-rolled formatter's
// "YYYY-MM-DDThh:mm:ss.mmmZ" shape exactly (same layout agent.State uses).
const utcMillisLayout = "2006-01-02T15:04:05.000Z"

func formatUTCTimestamp(ts time.Time) string {
	return ts.UTC().Format(utcMillisLayout)
}

// formatOptionalUTCTimestamp renders a possibly-nil lifecycle timestamp,
// matching the teacher's empty-string-on-missing behavior.
func formatOptionalUTCTimestamp(ts *time.Time) string {
	if ts == nil {
		return ""
	}
	return formatUTCTimestamp(*ts)
}
