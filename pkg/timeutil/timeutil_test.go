package timeutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMinutesToTime(t *testing.T) {
	assert.Equal(t, "00:00", MinutesToTime(0))
	assert.Equal(t, "08:05", MinutesToTime(485))
	assert.Equal(t, "23:59", MinutesToTime(1439))
	assert.Equal(t, "00:00", MinutesToTime(-1))
	assert.Equal(t, "00:00", MinutesToTime(1440))
}

func TestTimeToMinutes(t *testing.T) {
	got, err := TimeToMinutes("08:30")
	require.NoError(t, err)
	assert.Equal(t, 510, got)

	got, err = TimeToMinutes(" 00:00 ")
	require.NoError(t, err)
	assert.Equal(t, 0, got)

	got, err = TimeToMinutes("1:05 PM")
	require.NoError(t, err)
	assert.Equal(t, 785, got)

	got, err = TimeToMinutes("12:00am")
	require.NoError(t, err)
	assert.Equal(t, 0, got)

	for _, bad := range []string{"", "8", "24:00", "12:60", "ab:cd", "13:00 PM"} {
		_, err := TimeToMinutes(bad)
		assert.Error(t, err, bad)
	}
}

func TestIsValidRange(t *testing.T) {
	assert.True(t, IsValidRange(0, 1440))
	assert.True(t, IsValidRange(480, 530))
	assert.False(t, IsValidRange(530, 530))
	assert.False(t, IsValidRange(530, 480))
	assert.False(t, IsValidRange(-1, 60))
	assert.False(t, IsValidRange(0, 1441))
}

func TestOverlap(t *testing.T) {
	assert.True(t, Overlap(480, 530, 510, 560))
	assert.True(t, Overlap(510, 560, 480, 530))
	assert.False(t, Overlap(480, 510, 510, 560), "touching ranges do not overlap")
	assert.False(t, Overlap(480, 500, 510, 560))
}

func TestRoundToInterval(t *testing.T) {
	assert.Equal(t, 480, RoundToInterval(483, 15))
	assert.Equal(t, 495, RoundToInterval(488, 15))
	assert.Equal(t, 510, RoundToInterval(510, 15))
	assert.Equal(t, 7, RoundToInterval(7, 0))
}

func TestDayNames(t *testing.T) {
	assert.Equal(t, "周日", DayName(0))
	assert.Equal(t, "周六", DayName(6))
	assert.Equal(t, "未知", DayName(7))

	assert.Equal(t, 3, ParseDayName("周三"))
	assert.Equal(t, -1, ParseDayName("Funday"))
}

func TestStandardSchoolSchedule(t *testing.T) {
	schedule := StandardSchoolSchedule()
	require.Len(t, schedule, 6)
	assert.Equal(t, "第1节", schedule[0].Label)
	assert.Equal(t, 480, schedule[0].StartMinutes)
	assert.Equal(t, 520, schedule[0].EndMinutes)

	for _, seg := range schedule {
		assert.True(t, IsValidRange(seg.StartMinutes, seg.EndMinutes))
	}
}

func TestStandardSchoolTimeExtension(t *testing.T) {
	last := StandardSchoolSchedule()[5]
	seventh := StandardSchoolTime(6)

	assert.Equal(t, last.EndMinutes+15, seventh.StartMinutes)
	assert.Equal(t, 40, seventh.EndMinutes-seventh.StartMinutes)

	// In-range indexes return the template entry itself.
	assert.Equal(t, StandardSchoolSchedule()[2], StandardSchoolTime(2))
}
