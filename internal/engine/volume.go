package engine

import (
	"fmt"
	"strconv"
	"strings"
)

// parseVolume reads display volumes such as "1.2M", "985K" or "4200".
// Unparseable input reads as zero.
func parseVolume(s string) int64 {
	s = strings.TrimSpace(strings.ToUpper(s))
	if s == "" {
		return 0
	}
	mult := 1.0
	switch s[len(s)-1] {
	case 'M':
		mult = 1_000_000
		s = s[:len(s)-1]
	case 'K':
		mult = 1_000
		s = s[:len(s)-1]
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 {
		return 0
	}
	return int64(f*mult + 0.5)
}

// formatVolume renders a share count with one decimal in K or M.
func formatVolume(v int64) string {
	if v >= 1_000_000 {
		return fmt.Sprintf("%.1fM", float64(v)/1_000_000)
	}
	return fmt.Sprintf("%.1fK", float64(v)/1_000)
}
