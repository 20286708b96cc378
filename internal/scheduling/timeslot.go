package scheduling

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// The bookable day runs 09:00 to 17:00 on a 30 minute grid, 17 slots.
const (
	gridStartMinutes = 9 * 60
	gridEndMinutes   = 17 * 60
	gridStepMinutes  = 30
)

// SlotGrid returns the fixed daily grid in order.
func SlotGrid() []string {
	var grid []string
	for m := gridStartMinutes; m <= gridEndMinutes; m += gridStepMinutes {
		grid = append(grid, minutesToClock(m))
	}
	return grid
}

func minutesToClock(m int) string {
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}

// clockToMinutes parses "HH:MM" (or "H:MM") into minutes since midnight.
func clockToMinutes(s string) (int, error) {
	parts := strings.SplitN(strings.TrimSpace(s), ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid time %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("invalid time %q", s)
	}
	mm, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("invalid time %q", s)
	}
	if h < 0 || h > 23 || mm < 0 || mm > 59 {
		return 0, fmt.Errorf("invalid time %q", s)
	}
	return h*60 + mm, nil
}

// ValidClock reports whether s is a well-formed HH:MM value.
func ValidClock(s string) bool {
	_, err := clockToMinutes(s)
	return err == nil
}

var surgeryRangeRe = regexp.MustCompile(`Surgery Time:\s*(\d{1,2}:\d{2})\s*-\s*(\d{1,2}:\d{2})`)

// parseSurgeryRange extracts the embedded "Surgery Time: HH:MM - HH:MM"
// range from a notes field. Returns false when no parseable range is
// present, in which case the booking blocks only its stored start time.
func parseSurgeryRange(notes string) (startMin, endMin int, ok bool) {
	m := surgeryRangeRe.FindStringSubmatch(notes)
	if m == nil {
		return 0, 0, false
	}
	start, err := clockToMinutes(m[1])
	if err != nil {
		return 0, 0, false
	}
	end, err := clockToMinutes(m[2])
	if err != nil {
		return 0, 0, false
	}
	if end < start {
		return 0, 0, false
	}
	return start, end, true
}

// FormatSurgeryRange renders the structured range marker embedded in notes.
func FormatSurgeryRange(start, end string) string {
	return fmt.Sprintf("Surgery Time: %s - %s", start, end)
}
