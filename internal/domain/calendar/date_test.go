package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	d, err := Parse("2024-06-10")
	require.NoError(t, err)
	assert.Equal(t, "2024-06-10", d.String())
	assert.Equal(t, New(2024, time.June, 10), d)

	_, err = Parse("10.06.2024")
	require.Error(t, err)

	_, err = Parse("")
	require.Error(t, err)
}

func TestToday(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)

	// 23:30 UTC on June 9th is already June 10th in Berlin.
	now := time.Date(2024, time.June, 9, 23, 30, 0, 0, time.UTC)
	assert.Equal(t, "2024-06-10", Today(now, berlin).String())
	assert.Equal(t, "2024-06-09", Today(now, time.UTC).String())
}

func TestDayNumber(t *testing.T) {
	assert.Equal(t, int64(0), MustParse("1970-01-01").DayNumber())
	d := MustParse("2024-06-10")
	assert.Equal(t, d.DayNumber()+1, d.AddDays(1).DayNumber())
}

func TestZero(t *testing.T) {
	var d Date
	assert.True(t, d.IsZero())
	assert.Equal(t, "", d.String())
	assert.True(t, MustParse("2024-06-09").Before(MustParse("2024-06-10")))
}
