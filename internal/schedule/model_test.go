package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWeekScheduleValidate(t *testing.T) {
	tests := []struct {
		name    string
		week    WeekSchedule
		wantErr bool
	}{
		{
			name: "single block",
			week: WeekSchedule{time.Monday: {{Open: "09:00", Close: "17:00"}}},
		},
		{
			name: "split shift",
			week: WeekSchedule{time.Tuesday: {{Open: "09:00", Close: "12:00"}, {Open: "14:00", Close: "18:00"}}},
		},
		{
			name:    "open after close",
			week:    WeekSchedule{time.Monday: {{Open: "17:00", Close: "09:00"}}},
			wantErr: true,
		},
		{
			name:    "overlapping blocks",
			week:    WeekSchedule{time.Monday: {{Open: "09:00", Close: "13:00"}, {Open: "12:00", Close: "18:00"}}},
			wantErr: true,
		},
		{
			name:    "garbage clock value",
			week:    WeekSchedule{time.Monday: {{Open: "9am", Close: "17:00"}}},
			wantErr: true,
		},
		{
			name: "empty schedule is valid",
			week: WeekSchedule{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.week.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestParseTimeOnDate(t *testing.T) {
	date := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)

	got, err := ParseTimeOnDate(date, "09:30")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 6, 10, 9, 30, 0, 0, time.UTC), got)

	_, err = ParseTimeOnDate(date, "25:00")
	assert.Error(t, err)

	_, err = ParseTimeOnDate(date, "0930")
	assert.Error(t, err)
}

func TestTimeBlockOnDate(t *testing.T) {
	date := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)

	start, end, err := TimeBlock{Open: "10:00", Close: "14:00"}.OnDate(date)
	require.NoError(t, err)
	assert.Equal(t, 4*time.Hour, end.Sub(start))
}

func TestWeekScheduleIsOpen(t *testing.T) {
	week := WeekSchedule{time.Monday: {{Open: "09:00", Close: "17:00"}}}
	assert.True(t, week.IsOpen(time.Monday))
	assert.False(t, week.IsOpen(time.Sunday))
}
