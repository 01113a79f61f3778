package util

import "time"

// AlignRange truncates both ends of a time range to bucket boundaries of the
// given width. Identical requests inside the same bucket then produce
// identical ranges, which keeps range-keyed cache entries reusable.
func AlignRange(from, to time.Time, width time.Duration) (time.Time, time.Time) {
	if width <= 0 {
		width = time.Minute
	}
	return from.Truncate(width), to.Truncate(width)
}
