package calendar

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_RoundTrip(t *testing.T) {
	d, err := Parse("2024-02-29")
	require.NoError(t, err)
	assert.Equal(t, "2024-02-29", d.String())
	assert.Equal(t, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), d.Time())
}

func TestParse_Invalid(t *testing.T) {
	_, err := Parse("2024-13-01")
	assert.ErrorIs(t, err, ErrInvalidDate)
}

func TestDate_ZeroValue(t *testing.T) {
	var d Date
	assert.True(t, d.IsZero())
	assert.Equal(t, "", d.String())
	assert.False(t, New(1970, 1, 1).IsZero(), "epoch must not collide with the zero value")
}

func TestDate_BeforeUnixEpoch(t *testing.T) {
	d := MustParse("1969-12-31")
	assert.False(t, d.IsZero())
	assert.Equal(t, "1969-12-31", d.String())
	assert.Equal(t, time.Date(1969, 12, 31, 0, 0, 0, 0, time.UTC), d.Time())
	assert.Equal(t, 1, New(1970, 1, 1).DaysSince(d))

	first := New(1, 1, 1)
	assert.False(t, first.IsZero())
	assert.Equal(t, "0001-01-01", first.String())
	assert.True(t, first.AddDays(-1).IsZero())
}

func TestDate_Arithmetic(t *testing.T) {
	d := MustParse("2024-12-30")
	assert.Equal(t, "2025-01-02", d.AddDays(3).String())
	assert.Equal(t, 3, d.AddDays(3).DaysSince(d))
	assert.True(t, d.Before(d.AddDays(1)))
	assert.True(t, d.AddDays(1).After(d))
	assert.Equal(t, 0, d.Compare(MustParse("2024-12-30")))
	assert.Equal(t, d, Min(d, d.AddDays(5)))
}

func TestDate_FromTimeIgnoresClock(t *testing.T) {
	ts := time.Date(2024, 5, 6, 23, 59, 59, 0, time.UTC)
	assert.Equal(t, "2024-05-06", FromTime(ts).String())
}

func TestDate_JSON(t *testing.T) {
	type wrapper struct {
		D Date `json:"d"`
	}
	b, err := json.Marshal(wrapper{D: MustParse("2023-07-01")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"d":"2023-07-01"}`, string(b))

	var w wrapper
	require.NoError(t, json.Unmarshal([]byte(`{"d":"2023-07-02"}`), &w))
	assert.Equal(t, MustParse("2023-07-02"), w.D)
}

func TestRange(t *testing.T) {
	var got []string
	Range(MustParse("2024-01-30"), MustParse("2024-02-02"), func(d Date) {
		got = append(got, d.String())
	})
	assert.Equal(t, []string{"2024-01-30", "2024-01-31", "2024-02-01", "2024-02-02"}, got)
}

func TestCheckStrictlyIncreasing(t *testing.T) {
	ok := []Date{MustParse("2024-01-01"), MustParse("2024-02-01")}
	idx, err := CheckStrictlyIncreasing(ok)
	assert.NoError(t, err)
	assert.Equal(t, -1, idx)

	bad := []Date{MustParse("2024-02-01"), MustParse("2024-02-01")}
	idx, err = CheckStrictlyIncreasing(bad)
	assert.Error(t, err)
	assert.Equal(t, 1, idx)
}

func TestLastOnOrBefore(t *testing.T) {
	dates := []Date{MustParse("2024-01-01"), MustParse("2024-01-05"), MustParse("2024-01-09")}
	assert.Equal(t, -1, LastOnOrBefore(dates, MustParse("2023-12-31")))
	assert.Equal(t, 0, LastOnOrBefore(dates, MustParse("2024-01-01")))
	assert.Equal(t, 1, LastOnOrBefore(dates, MustParse("2024-01-08")))
	assert.Equal(t, 2, LastOnOrBefore(dates, MustParse("2025-01-01")))
}
