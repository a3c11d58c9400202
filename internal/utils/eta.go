package utils

import (
	"fmt"
	"time"
)

// EstimateETA projects remaining scrape time from the average duration of
// the chunks processed so far. Returns "unknown" until at least one chunk
// has finished.
func EstimateETA(elapsed time.Duration, chunksDone, chunksTotal int) string {
	if chunksDone <= 0 || chunksTotal <= 0 || chunksDone >= chunksTotal {
		if chunksDone >= chunksTotal && chunksTotal > 0 {
			return "0s"
		}
		return "unknown"
	}

	perChunk := elapsed / time.Duration(chunksDone)
	remaining := perChunk * time.Duration(chunksTotal-chunksDone)
	return FormatDuration(remaining)
}

// FormatDuration renders a duration as a compact human string, e.g.
// "2h05m", "3m20s", "45s"
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	d = d.Round(time.Second)

	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60

	switch {
	case h > 0:
		return fmt.Sprintf("%dh%02dm", h, m)
	case m > 0:
		return fmt.Sprintf("%dm%02ds", m, s)
	default:
		return fmt.Sprintf("%ds", s)
	}
}
