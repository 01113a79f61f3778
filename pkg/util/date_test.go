package util

import (
	"testing"
	"time"
)

func TestAlignRange(t *testing.T) {
	from := time.Date(2024, 3, 1, 9, 31, 15, 0, time.UTC)
	to := time.Date(2024, 3, 1, 10, 2, 59, 0, time.UTC)

	af, at := AlignRange(from, to, 5*time.Minute)
	if af.Minute() != 30 || af.Second() != 0 {
		t.Fatalf("from not aligned: %v", af)
	}
	if at.Minute() != 0 || at.Second() != 0 {
		t.Fatalf("to not aligned: %v", at)
	}

	// Zero width falls back to a minute so callers never divide by zero.
	af, _ = AlignRange(from, to, 0)
	if af.Second() != 0 {
		t.Fatalf("fallback alignment failed: %v", af)
	}
}
