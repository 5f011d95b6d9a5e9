// Package timeutil converts between minute-of-day values and display
// strings, and carries the shared overlap predicate used by conflict
// detection.
package timeutil

import (
	"fmt"
	"strconv"
	"strings"
)

// MinutesPerDay bounds every minute-of-day value handled by the engine.
const MinutesPerDay = 1440

var dayNames = [7]string{"周日", "周一", "周二", "周三", "周四", "周五", "周六"}

// MinutesToTime renders a minute-of-day value as HH:mm. Out-of-range
// input renders as 00:00.
func MinutesToTime(minutes int) string {
	if minutes < 0 || minutes >= MinutesPerDay {
		return "00:00"
	}
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// TimeToMinutes parses HH:mm into a minute-of-day value. A trailing
// AM/PM marker is accepted too, so "1:05 PM" parses as 785.
func TimeToMinutes(value string) (int, error) {
	trimmed := strings.TrimSpace(value)

	meridiem := ""
	upper := strings.ToUpper(trimmed)
	for _, suffix := range []string{"AM", "PM"} {
		if strings.HasSuffix(upper, suffix) {
			meridiem = suffix
			trimmed = strings.TrimSpace(trimmed[:len(trimmed)-len(suffix)])
			break
		}
	}

	parts := strings.SplitN(trimmed, ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid time %q", value)
	}
	hours, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("invalid time %q", value)
	}
	mins, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("invalid time %q", value)
	}

	if meridiem != "" {
		if hours < 1 || hours > 12 {
			return 0, fmt.Errorf("time %q out of range", value)
		}
		hours %= 12
		if meridiem == "PM" {
			hours += 12
		}
	}
	if hours < 0 || hours > 23 || mins < 0 || mins > 59 {
		return 0, fmt.Errorf("time %q out of range", value)
	}
	return hours*60 + mins, nil
}

// FormatRange renders "HH:mm–HH:mm".
func FormatRange(startMinutes, endMinutes int) string {
	return MinutesToTime(startMinutes) + "–" + MinutesToTime(endMinutes)
}

// IsValidRange reports whether [start, end) is a well-formed intra-day range.
func IsValidRange(startMinutes, endMinutes int) bool {
	return startMinutes >= 0 &&
		startMinutes < MinutesPerDay &&
		endMinutes > startMinutes &&
		endMinutes <= MinutesPerDay
}

// Overlap reports whether two half-open ranges intersect.
func Overlap(start1, end1, start2, end2 int) bool {
	return start1 < end2 && start2 < end1
}

// RoundToInterval snaps a minute value to the nearest multiple of interval.
func RoundToInterval(minutes, interval int) int {
	if interval <= 0 {
		return minutes
	}
	return int(float64(minutes)/float64(interval)+0.5) * interval
}

// DayName returns the fixed display name for a day index, 0=Sunday.
func DayName(dayOfWeek int) string {
	if dayOfWeek < 0 || dayOfWeek > 6 {
		return "未知"
	}
	return dayNames[dayOfWeek]
}

// ParseDayName resolves a display name back to its day index, or -1.
func ParseDayName(name string) int {
	for i, n := range dayNames {
		if n == name {
			return i
		}
	}
	return -1
}

// FormatDuration renders a minute count as a human readable duration.
func FormatDuration(minutes int) string {
	if minutes < 60 {
		return fmt.Sprintf("%d分钟", minutes)
	}
	hours := minutes / 60
	rest := minutes % 60
	if rest == 0 {
		return fmt.Sprintf("%d小时", hours)
	}
	return fmt.Sprintf("%d小时%d分钟", hours, rest)
}

// SchoolSegment is one entry of the standard school template.
type SchoolSegment struct {
	Label        string
	StartMinutes int
	EndMinutes   int
}

// StandardSchoolSchedule returns the built-in six-period template:
// three 40-minute periods in the morning, three in the afternoon,
// 15-minute breaks in between.
func StandardSchoolSchedule() []SchoolSegment {
	template := []struct {
		label string
		start string
		end   string
	}{
		{"第1节", "08:00", "08:40"},
		{"第2节", "08:55", "09:35"},
		{"第3节", "09:50", "10:30"},
		{"第4节", "13:00", "13:40"},
		{"第5节", "13:55", "14:35"},
		{"第6节", "14:50", "15:30"},
	}

	segments := make([]SchoolSegment, 0, len(template))
	for _, s := range template {
		start, _ := TimeToMinutes(s.start)
		end, _ := TimeToMinutes(s.end)
		segments = append(segments, SchoolSegment{Label: s.label, StartMinutes: start, EndMinutes: end})
	}
	return segments
}

// StandardSchoolTime returns the time range for a period index. Indexes
// past the template extend the pattern: 40-minute periods separated by
// 15-minute breaks after the last templated period.
func StandardSchoolTime(segmentIndex int) SchoolSegment {
	schedule := StandardSchoolSchedule()
	if segmentIndex >= 0 && segmentIndex < len(schedule) {
		return schedule[segmentIndex]
	}

	last := schedule[len(schedule)-1]
	extra := segmentIndex - len(schedule) + 1
	start := (last.EndMinutes + extra*55 - 40) % MinutesPerDay
	if start < 0 {
		start += MinutesPerDay
	}
	end := (start + 40) % MinutesPerDay

	return SchoolSegment{
		Label:        fmt.Sprintf("第%d节", segmentIndex+1),
		StartMinutes: start,
		EndMinutes:   end,
	}
}
